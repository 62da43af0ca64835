package normalize

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	maxNotesLength = 500
	maxFieldLength = 1000
)

var (
	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(\d{4})-(\d{1,2})-(\d{1,2})`),
		regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{4})`),
		regexp.MustCompile(`(\d{1,2})-(\d{1,2})-(\d{4})`),
		regexp.MustCompile(`(\d{4})/(\d{1,2})/(\d{1,2})`),
	}
	measurementPattern = regexp.MustCompile(`([\d,]+\.?\d*)\s*([a-zA-Z"']+)?`)
	integerPattern     = regexp.MustCompile(`\d+`)
	controlChars       = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)

	// Keys are lower case; lookups fold the unit first.
	unitNames = map[string]string{
		`"`:      "inches",
		"in":     "inches",
		"inch":   "inches",
		"inches": "inches",
		`'`:      "feet",
		"ft":     "feet",
		"foot":   "feet",
		"feet":   "feet",
		"lb":     "lbs",
		"lbs":    "lbs",
		"pound":  "lbs",
		"pounds": "lbs",
		"kg":     "kg",
		"kgs":    "kg",
		"gram":   "g",
		"grams":  "g",
		"mm":     "mm",
		"cm":     "cm",
		"m":      "m",
	}

	corporateSuffixes = map[string]bool{
		"LLC": true, "INC": true, "CORP": true, "CO": true, "LTD": true, "LP": true, "PC": true,
	}

	// Checked in order; the first key contained in the value wins.
	materials = []struct{ key, name string }{
		{"steel", "Steel"},
		{"aluminum", "Aluminum"},
		{"copper", "Copper"},
		{"brass", "Brass"},
		{"stainless", "Stainless Steel"},
		{"galvanized", "Galvanized Steel"},
	}

)

// NormalizeDate rewrites the first recognized date in s as YYYY-MM-DD.
// Four-digit trailing groups are read as month/day/year. Unrecognized input is returned unchanged.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	for _, re := range datePatterns {
		m := re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		var year, month, day string
		if len(m[3]) == 4 && (strings.Contains(s, "/") || strings.Contains(s, "-")) {
			month, day, year = m[1], m[2], m[3]
		} else {
			year, month, day = m[1], m[2], m[3]
		}
		return year + "-" + zeroPad(month) + "-" + zeroPad(day)
	}
	return s
}

func zeroPad(s string) string {
	if len(s) < 2 {
		return "0" + s
	}
	return s
}

// NormalizeMeasurement keeps the leading number without thousands separators
// followed by a canonical unit name when one is present.
func NormalizeMeasurement(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	m := measurementPattern.FindStringSubmatch(s)
	if m == nil {
		return s
	}
	number := strings.ReplaceAll(m[1], ",", "")
	unit := m[2]
	if canonical, ok := unitNames[strings.ToLower(unit)]; ok {
		unit = canonical
	}
	if unit == "" {
		return number
	}
	return number + " " + unit
}

// NormalizeCount returns the first integer in s, or "1".
func NormalizeCount(s string) string {
	m := integerPattern.FindString(s)
	if m == "" {
		return "1"
	}
	m = strings.TrimLeft(m, "0")
	if m == "" {
		return "0"
	}
	return m
}

// NormalizeIdentifier collapses whitespace and uppercases. It is idempotent.
func NormalizeIdentifier(s string) string {
	return strings.ToUpper(collapse(s))
}

// NormalizeName title-cases each word, keeping corporate suffixes upper case.
func NormalizeName(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if corporateSuffixes[strings.ToUpper(w)] {
			words[i] = strings.ToUpper(w)
		} else {
			words[i] = titleCase(w)
		}
	}
	return strings.Join(words, " ")
}

// NormalizeMaterial maps known metals to their canonical names.
func NormalizeMaterial(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	lower := strings.ToLower(s)
	for _, m := range materials {
		if strings.Contains(lower, m.key) {
			return m.name
		}
	}
	return titleCase(s)
}

// NormalizeNotes collapses whitespace and caps the length.
func NormalizeNotes(s string) string {
	return truncate(collapse(s), maxNotesLength)
}

// Sanitize strips control characters and caps the length of any field.
func Sanitize(s string) string {
	return truncate(controlChars.ReplaceAllString(s, ""), maxFieldLength)
}

// titleCase builds a caser per call; casers keep state and are not safe for concurrent use.
func titleCase(s string) string {
	return cases.Title(language.Und).String(s)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-3]) + "..."
}
