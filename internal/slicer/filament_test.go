package slicer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarizeFilaments(t *testing.T) {
	filaments := []Filament{
		{Type: "PLA", Color: "#000000"},
		{Type: "PLA", Color: "#000000"},
		{Type: "PETG", Color: "#FF0000"},
	}

	assert.Equal(t, "2x PLA (#000000), PETG (#FF0000)", SummarizeFilaments(filaments))
}

func TestSummarizeFilamentsSkipsEmptyTypes(t *testing.T) {
	filaments := []Filament{
		{Type: "", Color: "#000000"},
		{Type: "ABS"},
	}

	assert.Equal(t, "ABS", SummarizeFilaments(filaments))
	assert.Equal(t, "", SummarizeFilaments(nil))
}

func TestTotalFilamentWeight(t *testing.T) {
	filaments := []Filament{
		{Type: "PLA", WeightGrams: 25.5},
		{Type: "PETG", WeightGrams: 10},
	}

	assert.InDelta(t, 35.5, TotalFilamentWeight(filaments), 0.001)
}
