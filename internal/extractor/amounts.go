package extractor

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// number matches "1,234.500", "45.750", "45,750" and "12".
	number = `(\d{1,3}(?:,\d{3})+\.\d{1,3}|\d+(?:[.,]\d{1,3})?)`
	// numberStart and numberEnd stop number from matching inside a longer
	// figure, so "12.5000" is rejected instead of read as 12.500.
	numberStart = `(?:^|[^\d.,])`
	numberEnd   = `(?:$|[^\d.,]|[.,](?:$|[^\d]))`

	latinCurrency  = `(?:OMR|RO|R\.O|AED|SAR|QAR|KWD|BHD|USD|EUR|GBP|INR)`
	arabicCurrency = `(?:ر\.ع|ريال(?:\s+عماني)?|درهم|دينار)`

	arabicAmountLabel = `(?:المبلغ|بمبلغ|مبلغ|القيمة|بقيمة)\s*:?\s*`
	amountKeywords    = `(?:amount|total|debited|debit|value|cost|pay|paid|sum)`
)

func amountRules() []Rule[decimal.Decimal] {
	return []Rule[decimal.Decimal]{
		{
			Name:      "currency-prefixed",
			Pattern:   regexp.MustCompile(`(?i)(?:\b` + latinCurrency + `|` + arabicCurrency + `)\.?\s*:?\s*` + number + numberEnd),
			Normalize: amountAt(1),
		},
		{
			Name:      "currency-suffixed",
			Pattern:   regexp.MustCompile(`(?i)` + numberStart + number + `\s*(?:` + latinCurrency + `(?:[^\p{L}]|$)|` + arabicCurrency + `)`),
			Normalize: amountAt(1),
		},
		{
			Name:      "arabic-labeled",
			Pattern:   regexp.MustCompile(arabicAmountLabel + number + numberEnd),
			Normalize: amountAt(1),
		},
		{
			Name:      "keyword-labeled",
			Pattern:   regexp.MustCompile(`(?i)\b` + amountKeywords + `\b(?:\s+of)?\s*:?\s*` + number + numberEnd),
			Normalize: amountAt(1),
		},
		{
			Name:      "loose-decimal",
			Pattern:   regexp.MustCompile(numberStart + `(\d+[.,]\d{1,3})` + numberEnd),
			Normalize: amountAt(1),
		},
	}
}

func amountAt(i int) func([]string) (decimal.Decimal, bool) {
	return func(g []string) (decimal.Decimal, bool) {
		return ParseAmount(g[i])
	}
}

// ParseAmount converts a matched number to a decimal. When both ',' and '.'
// appear the commas are thousands separators; otherwise a comma is the
// decimal mark. Non-numeric and non-positive values are rejected.
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, false
	}
	if strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ",", "")
	} else {
		s = strings.Replace(s, ",", ".", 1)
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			return decimal.Decimal{}, false
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		return decimal.Decimal{}, false
	}
	return d, true
}
