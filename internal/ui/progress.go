package ui

import "strings"

// ProgressBar draws width segments with a knob at the given fraction.
func ProgressBar(width int, progress float64) string {
	if width <= 0 {
		return ""
	}
	progress = min(max(progress, 0), 1)
	knob := min(int(float64(width)*progress), width-1)

	var b strings.Builder
	for i := range width {
		if i == knob {
			b.WriteRune('🔘')
		} else {
			b.WriteRune('▬')
		}
	}
	return b.String()
}
