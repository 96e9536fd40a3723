package mapview

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStyleFor(t *testing.T) {
	tests := []struct {
		name     string
		selected bool
		saved    bool
		want     Style
	}{
		{"default", false, false, Style{Color: "#3b82f6", FillColor: "#3b82f6", Weight: 2, FillOpacity: 0.1, Opacity: 1}},
		{"saved", false, true, Style{Color: "#eab308", FillColor: "#eab308", Weight: 2, FillOpacity: 0.15, Opacity: 1}},
		{"selected", true, false, Style{Color: "#ef4444", FillColor: "#ef4444", Weight: 3, FillOpacity: 0.2, Opacity: 1}},
		{"selected beats saved", true, true, Style{Color: "#ef4444", FillColor: "#ef4444", Weight: 3, FillOpacity: 0.2, Opacity: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StyleFor(tt.selected, tt.saved))
		})
	}
}

func TestStyle_Hover(t *testing.T) {
	base := StyleFor(false, false)
	hover := base.Hover()
	assert.Equal(t, 3, hover.Weight)
	assert.Equal(t, base.Color, hover.Color)
	assert.Equal(t, base.FillOpacity, hover.FillOpacity)
	assert.Equal(t, 2, base.Weight, "Hover must not modify the receiver")
}

func TestLabelFor(t *testing.T) {
	assert.Equal(t, "BUR-000001", LabelFor("BUR-000001", "BUR-000009", "R1"))
	assert.Equal(t, "BUR-000009", LabelFor("", "BUR-000009", "R1"))
	assert.Equal(t, "R1", LabelFor("", "", "R1"))
}
