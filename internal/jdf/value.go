package jdf

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

var (
	leadingIntRE   = regexp.MustCompile(`^[+-]?\d+`)
	leadingFloatRE = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)
	commaRunRE     = regexp.MustCompile(`,(\s*,)+\s*`)
)

// Field returns row[i], or "" when the row is shorter.
func Field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// AsInt parses the leading integer of s. Trailing garbage is ignored;
// anything without leading digits yields nil.
func AsInt(s string) *int {
	m := leadingIntRE.FindString(strings.TrimSpace(s))
	if m == "" {
		return nil
	}
	v, err := strconv.Atoi(m)
	if err != nil {
		return nil
	}
	return &v
}

// AsFloat parses the leading decimal number of s.
func AsFloat(s string) *float64 {
	m := leadingFloatRE.FindString(strings.TrimSpace(s))
	if m == "" {
		return nil
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return nil
	}
	return &v
}

// AsString returns the trimmed value, or nil when nothing is left.
func AsString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// AsBool reports whether the field is the JDF flag marker "1".
func AsBool(s string) bool {
	return s == "1"
}

// AsDate converts a DDMMYYYY token into a calendar date (UTC midnight).
// Tokens of the wrong length or naming a day that does not exist are
// rejected and yield nil.
func AsDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if len(s) != 8 {
		return nil
	}
	t, err := time.Parse("2006-01-02", s[4:8]+"-"+s[2:4]+"-"+s[0:2])
	if err != nil {
		return nil
	}
	return &t
}

// NormalizeName fixes punctuation spacing in a display name:
// "Praha,hl.n." becomes "Praha, hl. n." and "Brno,,centrum" becomes
// "Brno, centrum". Blank input yields nil.
func NormalizeName(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i, r := range runes {
		b.WriteRune(r)
		if (r == '.' || r == ',') && i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			b.WriteByte(' ')
		}
	}

	out := strings.TrimSpace(commaRunRE.ReplaceAllString(b.String(), ", "))
	return &out
}
