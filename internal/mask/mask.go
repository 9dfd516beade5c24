// Package mask redacts account-like digit runs before text is logged, placed in a prompt,
// or returned to a caller.
package mask

import "strings"

const (
	// Prefix replaces all but the last Keep digits of a masked run.
	Prefix = "****"
	// Keep is the number of trailing digits left visible.
	Keep = 4
	// MinRun and MaxRun bound the length of digit runs that get masked.
	MinRun = 8
	MaxRun = 16
)

// Mask replaces every maximal run of MinRun..MaxRun ASCII digits with Prefix followed by
// the run's last Keep digits. Shorter and longer runs are left as they are.
func Mask(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	changed := false
	for i := 0; i < len(text); {
		if !isDigit(text[i]) {
			b.WriteByte(text[i])
			i++
			continue
		}
		j := i
		for j < len(text) && isDigit(text[j]) {
			j++
		}
		run := text[i:j]
		if n := len(run); n >= MinRun && n <= MaxRun {
			b.WriteString(Prefix)
			b.WriteString(run[n-Keep:])
			changed = true
		} else {
			b.WriteString(run)
		}
		i = j
	}

	if !changed {
		return text
	}
	return b.String()
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
