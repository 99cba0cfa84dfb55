package slicer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePrinterName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Bambu Lab X1 Carbon", "x1 carbon"},
		{"bambu x1c", "x1c"},
		{"Bambu X1C ", "x1c"},
		{"Original Prusa MK4", "mk4"},
		{"Prusa Research MK3S+", "mk3s"},
		{"Voron 2.4", "voron 2 4"},
		// имя из одних вендорных токенов не схлопывается в пустоту
		{"Bambu Lab", "bambu lab"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizePrinterName(tt.in), "NormalizePrinterName(%q)", tt.in)
	}
}

func TestIsConflict(t *testing.T) {
	assert.True(t, IsConflict("Bambu X1C ", "bambu x1c"))
	assert.True(t, IsConflict("Bambu Lab X1 Carbon", "X1 Carbon"))
	assert.False(t, IsConflict("X1C", "P1S"))
	assert.False(t, IsConflict("X1 Carbon", "X1 Carbon (2)"))
}
