package extractor

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

const (
	englishMonths = `january|february|march|april|may|june|july|august|september|october|november|december|` +
		`jan|feb|mar|apr|jun|jul|aug|sept|sep|oct|nov|dec`
	arabicMonths = `يناير|فبراير|مارس|أبريل|ابريل|إبريل|مايو|يونيو|يونيه|يوليو|يوليه|أغسطس|اغسطس|سبتمبر|أكتوبر|اكتوبر|نوفمبر|ديسمبر`

	arabicDateLabel  = `(?:تاريخ\s+العملية|التاريخ|بتاريخ|تاريخ)\s*:?\s*`
	englishDateLabel = `\b(?:transaction\s+date|txn\s+date|value\s+date|date)\s*:\s*`

	minYear = 1970
	maxYear = 2100
)

var monthsByName = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,

	"يناير": time.January, "فبراير": time.February, "مارس": time.March,
	"أبريل": time.April, "ابريل": time.April, "إبريل": time.April,
	"مايو": time.May, "يونيو": time.June, "يونيه": time.June,
	"يوليو": time.July, "يوليه": time.July, "أغسطس": time.August, "اغسطس": time.August,
	"سبتمبر": time.September, "أكتوبر": time.October, "اكتوبر": time.October,
	"نوفمبر": time.November, "ديسمبر": time.December,
}

func monthNumber(name string) (time.Month, bool) {
	name = strings.ToLower(strings.TrimSuffix(name, "."))
	if m, ok := monthsByName[name]; ok {
		return m, true
	}
	if len(name) >= 3 {
		m, ok := monthsByName[name[:3]]
		return m, ok
	}
	return 0, false
}

// makeDate validates the calendar fields. Two-digit years are taken as 20yy.
func makeDate(year, month, day int) (civil.Date, bool) {
	if year < 100 {
		year += 2000
	}
	if year < minYear || year > maxYear {
		return civil.Date{}, false
	}
	d := civil.Date{Year: year, Month: time.Month(month), Day: day}
	return d, d.IsValid()
}

// numeric builds a normalizer for patterns whose year, month and day are
// all digit groups at the given submatch indexes.
func numeric(yi, mi, di int) func([]string) (civil.Date, bool) {
	return func(g []string) (civil.Date, bool) {
		y, err1 := strconv.Atoi(g[yi])
		m, err2 := strconv.Atoi(g[mi])
		d, err3 := strconv.Atoi(g[di])
		if err1 != nil || err2 != nil || err3 != nil {
			return civil.Date{}, false
		}
		return makeDate(y, m, d)
	}
}

// named builds a normalizer for patterns with a month name.
func named(yi, mi, di int) func([]string) (civil.Date, bool) {
	return func(g []string) (civil.Date, bool) {
		m, ok := monthNumber(g[mi])
		if !ok {
			return civil.Date{}, false
		}
		y, err1 := strconv.Atoi(g[yi])
		d, err2 := strconv.Atoi(g[di])
		if err1 != nil || err2 != nil {
			return civil.Date{}, false
		}
		return makeDate(y, int(m), d)
	}
}

func dateRules() []Rule[civil.Date] {
	return []Rule[civil.Date]{
		// Arabic labeled dates
		{
			Name:      "arabic-labeled-dmy",
			Pattern:   regexp.MustCompile(arabicDateLabel + `(\d{1,2})[/.-](\d{1,2})[/.-](\d{4}|\d{2})\b`),
			Normalize: numeric(3, 2, 1),
		},
		{
			Name:      "arabic-labeled-ymd",
			Pattern:   regexp.MustCompile(arabicDateLabel + `(\d{4})[/.-](\d{1,2})[/.-](\d{1,2})\b`),
			Normalize: numeric(1, 2, 3),
		},
		{
			Name:      "arabic-labeled-month-name",
			Pattern:   regexp.MustCompile(`(?i)` + arabicDateLabel + `(\d{1,2})[\s-]+(` + arabicMonths + `|` + englishMonths + `)\.?[\s,-]+(\d{4})`),
			Normalize: named(3, 2, 1),
		},

		// "Date:" / "Transaction date:" labels
		{
			Name:      "labeled-dmy",
			Pattern:   regexp.MustCompile(`(?i)` + englishDateLabel + `(\d{1,2})[/.-](\d{1,2})[/.-](\d{4}|\d{2})\b`),
			Normalize: numeric(3, 2, 1),
		},
		{
			Name:      "labeled-ymd",
			Pattern:   regexp.MustCompile(`(?i)` + englishDateLabel + `(\d{4})[/.-](\d{1,2})[/.-](\d{1,2})\b`),
			Normalize: numeric(1, 2, 3),
		},
		{
			Name:      "labeled-month-name",
			Pattern:   regexp.MustCompile(`(?i)` + englishDateLabel + `(\d{1,2})[\s-]+(` + englishMonths + `)\.?[\s,-]+(\d{4})\b`),
			Normalize: named(3, 2, 1),
		},

		// Numeric
		{
			Name:      "dmy",
			Pattern:   regexp.MustCompile(`\b(\d{1,2})[/.-](\d{1,2})[/.-](\d{4})\b`),
			Normalize: numeric(3, 2, 1),
		},
		{
			Name:      "ymd",
			Pattern:   regexp.MustCompile(`\b(\d{4})[/.-](\d{1,2})[/.-](\d{1,2})\b`),
			Normalize: numeric(1, 2, 3),
		},

		// Month names
		{
			Name:      "day-month-name",
			Pattern:   regexp.MustCompile(`(?i)\b(\d{1,2})[\s-]+(` + englishMonths + `|` + arabicMonths + `)\.?[\s,-]+(\d{4})\b`),
			Normalize: named(3, 2, 1),
		},
		{
			Name:      "month-name-day",
			Pattern:   regexp.MustCompile(`(?i)\b(` + englishMonths + `)\.?\s+(\d{1,2}),?\s+(\d{4})\b`),
			Normalize: named(3, 1, 2),
		},

		// Ordinal days
		{
			Name:      "ordinal-day-month",
			Pattern:   regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)\s+(?:of\s+)?(` + englishMonths + `)\.?,?\s+(\d{4})\b`),
			Normalize: named(3, 2, 1),
		},
		{
			Name:      "month-ordinal-day",
			Pattern:   regexp.MustCompile(`(?i)\b(` + englishMonths + `)\.?\s+(\d{1,2})(?:st|nd|rd|th),?\s+(\d{4})\b`),
			Normalize: named(3, 1, 2),
		},

		// Loose fallbacks
		{
			Name:      "loose-dmy-short-year",
			Pattern:   regexp.MustCompile(`\b(\d{1,2})[/.-](\d{1,2})[/.-](\d{2})\b`),
			Normalize: numeric(3, 2, 1),
		},
		{
			Name:      "loose-compact",
			Pattern:   regexp.MustCompile(`\b(20\d{2})(\d{2})(\d{2})\b`),
			Normalize: numeric(1, 2, 3),
		},
	}
}
