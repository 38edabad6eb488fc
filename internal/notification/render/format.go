// Package render turns a paid consultation into the ops email bodies and the
// CSV attachment. Sensitive identifiers are masked in every format.
package render

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const dateTimeLayout = "02/01/2006 15:04"

var paris = loadParis()

func loadParis() *time.Location {
	loc, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		return time.FixedZone("CET", 3600)
	}
	return loc
}

// MaskSensitive keeps the first 3 and last 2 characters. Values of 5
// characters or fewer are returned unchanged.
func MaskSensitive(value string) string {
	n := utf8.RuneCountInString(value)
	if n <= 5 {
		return value
	}
	runes := []rune(value)
	return string(runes[:3]) + strings.Repeat("*", n-5) + string(runes[n-2:])
}

// ShouldMask reports whether values under key are masked.
func ShouldMask(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "nir") || strings.Contains(k, "securite_sociale")
}

// FormatValue applies masking where the key requires it.
func FormatValue(key, value string) string {
	if ShouldMask(key) {
		return MaskSensitive(value)
	}
	return value
}

// FormatKey turns a snake_case key into a label: underscores become spaces
// and each word is capitalised.
func FormatKey(key string) string {
	var b strings.Builder
	upper := true
	for _, r := range key {
		switch {
		case r == '_':
			b.WriteRune(' ')
			upper = true
		case upper:
			b.WriteRune(unicode.ToUpper(r))
			upper = false
		default:
			b.WriteRune(r)
			upper = !unicode.IsLetter(r) && !unicode.IsDigit(r)
		}
	}
	return b.String()
}

// FormatDateTime renders t in Europe/Paris as dd/mm/yyyy hh:mm.
func FormatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(paris).Format(dateTimeLayout)
}
