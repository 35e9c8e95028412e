package domain

import "strings"

// BarColor is the progress indicator color.
type BarColor string

const (
	BarPink   BarColor = "PINK"
	BarBlue   BarColor = "BLUE"
	BarRed    BarColor = "RED"
	BarGreen  BarColor = "GREEN"
	BarYellow BarColor = "YELLOW"
	BarPurple BarColor = "PURPLE"
	BarWhite  BarColor = "WHITE"
)

// BarStyle is the progress indicator segmentation.
type BarStyle string

const (
	BarSolid       BarStyle = "SOLID"
	BarSegmented6  BarStyle = "SEGMENTED_6"
	BarSegmented10 BarStyle = "SEGMENTED_10"
	BarSegmented12 BarStyle = "SEGMENTED_12"
	BarSegmented20 BarStyle = "SEGMENTED_20"
)

const (
	DefaultBarColor = BarRed
	DefaultBarStyle = BarSolid
)

var barColors = map[BarColor]struct{}{
	BarPink: {}, BarBlue: {}, BarRed: {}, BarGreen: {}, BarYellow: {}, BarPurple: {}, BarWhite: {},
}

var barStyles = map[BarStyle]struct{}{
	BarSolid: {}, BarSegmented6: {}, BarSegmented10: {}, BarSegmented12: {}, BarSegmented20: {},
}

// ParseBarColor parses a configured color. Empty values yield the default with ok=true;
// unknown values yield the default with ok=false.
func ParseBarColor(value string) (BarColor, bool) {
	v := BarColor(strings.ToUpper(strings.TrimSpace(value)))
	if v == "" {
		return DefaultBarColor, true
	}
	if _, ok := barColors[v]; ok {
		return v, true
	}
	return DefaultBarColor, false
}

// ParseBarStyle parses a configured style with the same fallback rules as ParseBarColor.
func ParseBarStyle(value string) (BarStyle, bool) {
	v := BarStyle(strings.ToUpper(strings.TrimSpace(value)))
	if v == "" {
		return DefaultBarStyle, true
	}
	if _, ok := barStyles[v]; ok {
		return v, true
	}
	return DefaultBarStyle, false
}

// ProgressBar is what the indicator shows.
type ProgressBar struct {
	Title    string   `json:"title"`
	Fraction float64  `json:"fraction"`
	Color    BarColor `json:"color"`
	Style    BarStyle `json:"style"`
}
