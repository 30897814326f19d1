package extractor

import (
	"regexp"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Rule pairs a pattern with the normalizer that turns its submatches into a
// value. Normalize returns false to reject a match, in which case the next
// rule in the table is tried.
type Rule[T any] struct {
	Name      string
	Pattern   *regexp.Regexp
	Normalize func(groups []string) (T, bool)
}

// Tables holds the ordered rule lists used by an Extractor. Order is
// priority: the first rule whose pattern matches and whose normalizer accepts
// wins, even when a later rule would match text that appears earlier.
type Tables struct {
	Dates     []Rule[civil.Date]
	Amounts   []Rule[decimal.Decimal]
	Merchants []Rule[string]

	// DebitMarkers identify Arabic debit notifications that name no
	// merchant; such messages get DefaultDebitMerchant.
	DebitMarkers *regexp.Regexp

	// Stoplist holds upper-cased generic banking words that never count
	// as a merchant on their own.
	Stoplist map[string]struct{}
}

// Match describes which rule produced a value.
type Match[T any] struct {
	Value T
	Rule  string
}

// firstMatch runs rules in order and returns the first accepted value.
// Only the first match of each pattern is considered.
func firstMatch[T any](rules []Rule[T], text string) (Match[T], bool) {
	for _, r := range rules {
		groups := r.Pattern.FindStringSubmatch(text)
		if groups == nil {
			continue
		}
		if v, ok := r.Normalize(groups); ok {
			return Match[T]{Value: v, Rule: r.Name}, true
		}
	}
	var zero Match[T]
	return zero, false
}

// DefaultTables builds a fresh copy of the built-in rule tables. Each call
// returns new slices so callers may reorder or extend them freely.
func DefaultTables() Tables {
	return Tables{
		Dates:        dateRules(),
		Amounts:      amountRules(),
		Merchants:    merchantRules(),
		DebitMarkers: regexp.MustCompile(debitMarkers),
		Stoplist:     defaultStoplist(),
	}
}
