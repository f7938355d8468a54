package ui

import "strings"

// ProgressBar draws a fixed-width bar for progress in [0,1].
func ProgressBar(width int, progress float64) string {
	if width <= 0 {
		return ""
	}
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	filled := int(float64(width) * progress)
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}
