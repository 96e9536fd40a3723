package mapview

// Feature colours.
const (
	ColorSelected = "#ef4444"
	ColorSaved    = "#eab308"
	ColorDefault  = "#3b82f6"
)

// Style is the path style of one parcel outline.
type Style struct {
	Color       string  `json:"color"`
	FillColor   string  `json:"fillColor"`
	Weight      int     `json:"weight"`
	FillOpacity float64 `json:"fillOpacity"`
	Opacity     float64 `json:"opacity"`
}

// StyleFor picks the outline style. Selection beats saved.
func StyleFor(selected, saved bool) Style {
	switch {
	case selected:
		return Style{Color: ColorSelected, FillColor: ColorSelected, Weight: 3, FillOpacity: 0.2, Opacity: 1}
	case saved:
		return Style{Color: ColorSaved, FillColor: ColorSaved, Weight: 2, FillOpacity: 0.15, Opacity: 1}
	default:
		return Style{Color: ColorDefault, FillColor: ColorDefault, Weight: 2, FillOpacity: 0.1, Opacity: 1}
	}
}

// Hover returns the mouse-over variant: heavier outline, same colours.
func (s Style) Hover() Style {
	s.Weight = 3
	s.Opacity = 1
	return s
}

// LabelFor picks the label text: saved display number, then session number, then propId.
func LabelFor(savedNumber, tempNumber, propID string) string {
	if savedNumber != "" {
		return savedNumber
	}
	if tempNumber != "" {
		return tempNumber
	}
	return propID
}
