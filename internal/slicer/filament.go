package slicer

import (
	"fmt"
	"strings"
)

// Filament описывает один использованный материал.
type Filament struct {
	Type        string
	Color       string
	WeightGrams float64
}

// SummarizeFilaments сворачивает список материалов в одну строку.
// Одинаковые пары тип+цвет группируются, при нескольких экструдерах с
// одинаковым материалом добавляется префикс-счетчик:
// "2x PLA (#000000), PETG (#FF0000)".
func SummarizeFilaments(filaments []Filament) string {
	if len(filaments) == 0 {
		return ""
	}

	type group struct {
		label string
		count int
	}

	var order []string
	groups := make(map[string]*group)
	for _, f := range filaments {
		ftype := strings.TrimSpace(f.Type)
		if ftype == "" {
			continue
		}
		label := ftype
		if color := strings.TrimSpace(f.Color); color != "" {
			label = fmt.Sprintf("%s (%s)", ftype, color)
		}
		if g, ok := groups[label]; ok {
			g.count++
			continue
		}
		groups[label] = &group{label: label, count: 1}
		order = append(order, label)
	}

	parts := make([]string, 0, len(order))
	for _, label := range order {
		g := groups[label]
		if g.count > 1 {
			parts = append(parts, fmt.Sprintf("%dx %s", g.count, g.label))
		} else {
			parts = append(parts, g.label)
		}
	}
	return strings.Join(parts, ", ")
}

// TotalFilamentWeight суммирует вес всех материалов в граммах.
func TotalFilamentWeight(filaments []Filament) float64 {
	var total float64
	for _, f := range filaments {
		total += f.WeightGrams
	}
	return total
}
