package connections

import (
	"strconv"
	"strings"
	"unicode"
)

// MaxNameLength bounds programmatic names.
const MaxNameLength = 40

// SafeName derives a programmatic name from a label: letters, digits and
// single underscores, starting with a letter, at most MaxNameLength long.
func SafeName(label string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range label {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		default:
			pendingSep = true
		}
	}
	name := b.String()
	if name == "" {
		name = "Connection"
	} else if !unicode.IsLetter(rune(name[0])) {
		name = "C_" + name
	}
	return truncate(name, MaxNameLength)
}

// UniqueName returns base, or base_2, base_3 ... the first one not taken.
// Suffixed names still fit in MaxNameLength.
func UniqueName(base string, taken func(string) bool) string {
	if !taken(base) {
		return base
	}
	for i := 2; ; i++ {
		suffix := "_" + strconv.Itoa(i)
		cand := truncate(base, MaxNameLength-len(suffix)) + suffix
		if !taken(cand) {
			return cand
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimRight(s[:n], "_")
}
