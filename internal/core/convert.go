package core

// convert.go provides type coercion for raw spreadsheet cells.
//
// These functions handle the messy reality of user-provided data:
//   - Boolean vocabularies in English and Polish (yes/no, tak/nie, 1/0)
//   - ISO-8601-like dates with optional time parts, plus dotted day-first dates
//   - Excel formula prefixes (="value") and stray quotes
//   - Placeholder tokens for missing values (NaN, NaT, #N/A)
//
// Every Parse* function returns ok=false for input it cannot coerce.

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// numericRegex validates that a string is a plain numeric literal.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// dateLayouts are tried in order; the first that parses wins.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02",
	"2006.01.02",
	"20060102",
	"02.01.2006",
}

// missingTokens are cell values treated as absent.
var missingTokens = map[string]bool{
	"nan":  true,
	"nat":  true,
	"#n/a": true,
	"null": true,
}

var (
	trueTokens  = map[string]bool{"true": true, "t": true, "yes": true, "y": true, "tak": true, "1": true}
	falseTokens = map[string]bool{"false": true, "f": true, "no": true, "n": true, "nie": true, "0": true}
)

// CleanCell removes common spreadsheet artifacts from a cell value:
//   - Trims whitespace
//   - Removes Excel formula prefix (="...")
//   - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.TrimSpace(strings.Trim(s, `"'`))
}

// IsMissing reports whether a cleaned cell carries no value.
func IsMissing(s string) bool {
	s = CleanCell(s)
	return s == "" || missingTokens[strings.ToLower(s)]
}

// ParseBool accepts the affirmative/negative vocabulary, case-insensitive.
func ParseBool(s string) (bool, bool) {
	s = strings.ToLower(CleanCell(s))
	switch {
	case trueTokens[s]:
		return true, true
	case falseTokens[s]:
		return false, true
	default:
		return false, false
	}
}

// ParseFloat accepts plain numeric literals. NaN and infinities are rejected.
func ParseFloat(s string) (float64, bool) {
	s = CleanCell(s)
	if !numericRegex.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// ParseInt accepts integer literals. Spreadsheet exports often render whole
// numbers as "12.0", so a numeric literal with no fractional part is accepted.
// Values outside the int64 range are rejected, never wrapped or clamped.
func ParseInt(s string) (int64, bool) {
	s = CleanCell(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, true
	}
	f, ok := ParseFloat(s)
	if !ok || f != math.Trunc(f) || f >= 0x1p63 || f < -0x1p63 {
		return 0, false
	}
	return int64(f), true
}

// ParseDate accepts ISO-8601-like date strings. The time of day, if any,
// is dropped; the result is midnight UTC of the calendar date.
func ParseDate(s string) (time.Time, bool) {
	s = CleanCell(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// Coerce converts a raw cell to the Go representation of tag.
func Coerce(raw string, tag TypeTag) (any, bool) {
	switch tag {
	case TypeBoolean:
		return ParseBool(raw)
	case TypeFloat:
		return ParseFloat(raw)
	case TypeInteger:
		return ParseInt(raw)
	case TypeDate:
		t, ok := ParseDate(raw)
		if !ok {
			return nil, false
		}
		return Date{Time: t}, true
	case TypeString:
		return strings.TrimSpace(raw), true
	default:
		return nil, false
	}
}
