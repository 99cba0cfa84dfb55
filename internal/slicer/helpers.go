package slicer

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstInt(values []string) (int, bool) {
	for _, v := range values {
		if n, ok := parseInt(v); ok {
			return n, true
		}
	}
	return 0, false
}

// filamentsFromArrays собирает материалы из параллельных массивов
// тип/цвет (по элементу на экструдер), вес в настройках отсутствует.
func filamentsFromArrays(types, colours []string) []Filament {
	filaments := make([]Filament, 0, len(types))
	for i, t := range types {
		f := Filament{Type: t}
		if i < len(colours) {
			f.Color = colours[i]
		}
		filaments = append(filaments, f)
	}
	return filaments
}

// applyFilaments заполняет сводку и суммарный вес материалов.
func applyFilaments(meta *Metadata, filaments []Filament) {
	if len(filaments) == 0 {
		return
	}
	if summary := SummarizeFilaments(filaments); summary != "" {
		meta.FilamentSummary = &summary
	}
	if weight := TotalFilamentWeight(filaments); weight > 0 {
		meta.FilamentWeightGrams = &weight
	}
}
