// Package extractor turns the decoded subject and body of a bank notification
// into a candidate transaction.
package extractor

import (
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/bankmail-ledger/internal/domain"
	"github.com/dvloznov/bankmail-ledger/internal/identity"
)

// Field names reported in Result.Missing.
const (
	FieldDate     = "date"
	FieldAmount   = "amount"
	FieldMerchant = "merchant"
)

// Result is the outcome of one extraction. A result with missing fields is
// an ordinary outcome, not an error.
type Result struct {
	Transaction domain.BankTransaction
	Missing     []string

	// Rule names that produced each field, for logging.
	DateRule     string
	AmountRule   string
	MerchantRule string
}

// OK reports whether all required fields were found.
func (r Result) OK() bool {
	return len(r.Missing) == 0
}

// Extractor applies ordered rule tables to notification text. It holds no
// mutable state and is safe for concurrent use.
type Extractor struct {
	tables Tables
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithTables replaces the built-in rule tables.
func WithTables(t Tables) Option {
	return func(e *Extractor) {
		e.tables = t
	}
}

// New returns an Extractor using DefaultTables unless overridden.
func New(opts ...Option) *Extractor {
	e := &Extractor{tables: DefaultTables()}
	for _, opt := range opts {
		opt(e)
	}
	if e.tables.Stoplist == nil {
		e.tables.Stoplist = map[string]struct{}{}
	}
	e.tables.Merchants = bindMerchantRules(e.tables.Merchants, e.tables.Stoplist)
	return e
}

// Extract parses subject and body. The returned transaction carries its
// TransactionID when all fields are present.
func (e *Extractor) Extract(subject, body string) Result {
	subj := Normalize(subject)
	text := strings.TrimSpace(subj + "\n" + Normalize(body))

	res := Result{}
	tx := &res.Transaction
	tx.RawSubject = subject
	tx.RawBody = body

	if m, ok := e.Date(text); ok {
		tx.Date, res.DateRule = m.Value, m.Rule
	} else {
		res.Missing = append(res.Missing, FieldDate)
	}

	if m, ok := e.Amount(text); ok {
		tx.Amount, res.AmountRule = m.Value, m.Rule
	} else {
		res.Missing = append(res.Missing, FieldAmount)
	}

	if m, ok := e.Merchant(text); ok {
		tx.Merchant, res.MerchantRule = m.Value, m.Rule
	} else {
		res.Missing = append(res.Missing, FieldMerchant)
	}

	if !res.OK() {
		return res
	}

	desc := subj
	if desc == "" {
		desc = tx.Merchant
	}
	tx.Description = identity.Truncate(strings.ReplaceAll(desc, "\n", " "), domain.MaxDescriptionLength)
	identity.Assign(tx)
	return res
}

// Date returns the first accepted date in table order. text must already
// be passed through Normalize.
func (e *Extractor) Date(text string) (Match[civil.Date], bool) {
	return firstMatch(e.tables.Dates, text)
}

// Amount returns the first accepted positive amount in table order.
func (e *Extractor) Amount(text string) (Match[decimal.Decimal], bool) {
	return firstMatch(e.tables.Amounts, text)
}

// Merchant runs the positional rules, then the Arabic debit fallback, then
// the capitalized-run scan.
func (e *Extractor) Merchant(text string) (Match[string], bool) {
	if m, ok := firstMatch(e.tables.Merchants, text); ok {
		return m, true
	}
	if e.tables.DebitMarkers != nil && e.tables.DebitMarkers.MatchString(text) {
		return Match[string]{Value: DefaultDebitMerchant, Rule: "arabic-debit-default"}, true
	}
	if m, ok := capitalizedMerchant(text, e.tables.Stoplist); ok {
		return Match[string]{Value: m, Rule: "capitalized-run"}, true
	}
	return Match[string]{}, false
}
