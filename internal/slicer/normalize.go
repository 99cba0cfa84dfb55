package slicer

import (
	"strings"
)

// шумовые токены производителей, не влияющие на идентичность принтера
var vendorNoise = map[string]bool{
	"bambu":    true,
	"bambulab": true,
	"lab":      true,
	"prusa":    true,
	"research": true,
	"original": true,
}

// NormalizePrinterName приводит имя принтера к канонической форме:
// нижний регистр, пунктуация заменяется пробелами, пробелы схлопываются,
// известные вендорные токены отбрасываются.
func NormalizePrinterName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}

	tokens := strings.Fields(b.String())
	kept := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if vendorNoise[tok] {
			continue
		}
		kept = append(kept, tok)
	}

	// если имя состояло из одних вендорных токенов, оставляем их
	if len(kept) == 0 {
		kept = tokens
	}
	return strings.Join(kept, " ")
}

// IsConflict сообщает, считаются ли два имени принтера одним и тем же
// принтером: строгое равенство канонических форм, без fuzzy-сравнения.
func IsConflict(nameA, nameB string) bool {
	return NormalizePrinterName(nameA) == NormalizePrinterName(nameB)
}
