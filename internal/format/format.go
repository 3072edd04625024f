// Package format holds pure display helpers for the game UI layer.
package format

import (
	"fmt"
	"math"
	"strings"
)

// Compact renders large values in short form: 1000 -> "1K",
// 1500000 -> "1.5M", 2000000000 -> "2B". Values under 1000 are
// floored to whole coins.
func Compact(n float64) string {
	abs := math.Abs(n)
	switch {
	case abs >= 1e9:
		return trimZero(n/1e9) + "B"
	case abs >= 1e6:
		return trimZero(n/1e6) + "M"
	case abs >= 1e3:
		return trimZero(n/1e3) + "K"
	}
	return fmt.Sprintf("%d", int64(math.Floor(n)))
}

func trimZero(v float64) string {
	s := fmt.Sprintf("%.1f", v)
	return strings.TrimSuffix(s, ".0")
}

// GroupSpaces renders a value with space-separated thousands groups:
// 1000000 -> "1 000 000".
func GroupSpaces(n float64) string {
	s := fmt.Sprintf("%d", int64(math.Floor(math.Abs(n))))
	var b strings.Builder
	if n < 0 {
		b.WriteByte('-')
	}
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
		if len(s) > lead {
			b.WriteByte(' ')
		}
	}
	for i := lead; i < len(s); i += 3 {
		b.WriteString(s[i : i+3])
		if i+3 < len(s) {
			b.WriteByte(' ')
		}
	}
	return b.String()
}

// Duration renders seconds as m:ss, or h:mm:ss once hours are present.
func Duration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// Percent renders value/total as a whole percent capped at 100%.
func Percent(value, total float64) string {
	if total == 0 {
		return "0%"
	}
	p := value / total * 100
	if p > 100 {
		p = 100
	}
	return fmt.Sprintf("%.0f%%", p)
}
