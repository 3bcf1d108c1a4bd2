package utils

import (
	"fmt"
	"strings"
)

var mdEscaper = strings.NewReplacer("*", "\\*", "_", "\\_", "`", "\\`", "~", "\\~", "|", "\\|", "[", "\\[", "]", "\\]")

// EscapeMd escapes Discord markdown so titles render literally.
func EscapeMd(s string) string {
	return mdEscaper.Replace(s)
}

func PrettyTime(sec int) string {
	sec = max(sec, 0)
	h, m, s := sec/3600, (sec%3600)/60, sec%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
