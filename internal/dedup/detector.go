// Package dedup decides whether a freshly extracted transaction is already in
// the ledger.
package dedup

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/dvloznov/bankmail-ledger/internal/domain"
	"github.com/dvloznov/bankmail-ledger/internal/editdistance"
	"github.com/dvloznov/bankmail-ledger/internal/identity"
)

// Rule names reported in a Verdict.
const (
	RuleExact = "exact"
	RuleFuzzy = "fuzzy"
)

// Defaults for the fuzzy rule.
const (
	DefaultMaxFuzzyLength  = 10
	DefaultMaxDistance     = 2
	DefaultAmountTolerance = 0.001
)

// Verdict is the outcome of a duplicate check.
type Verdict struct {
	Duplicate bool
	Rule      string
	Match     *domain.LedgerEntry
}

// Detector compares candidates against a ledger snapshot. It is a pure
// function of its inputs and safe for concurrent use.
type Detector struct {
	maxFuzzyLength  int
	maxDistance     int
	amountTolerance float64
	strictLength    bool
}

// Option configures a Detector.
type Option func(*Detector)

// WithMaxFuzzyLength sets the normalized merchant length up to which the
// full edit-distance comparison runs.
func WithMaxFuzzyLength(n int) Option {
	return func(d *Detector) { d.maxFuzzyLength = n }
}

// WithMaxDistance sets the largest edit distance still considered similar.
func WithMaxDistance(n int) Option {
	return func(d *Detector) { d.maxDistance = n }
}

// WithAmountTolerance sets the exclusive amount tolerance of the fuzzy rule.
func WithAmountTolerance(tol float64) Option {
	return func(d *Detector) { d.amountTolerance = tol }
}

// WithStrictLengthBound applies the edit-distance rule only when both
// normalized names are within the fuzzy length bound (10 runes by default).
// A pair where either name is longer, including a short/long pair, then
// matches only by equality or containment. Without this option such pairs
// are compared with a banded edit distance, which is what lets a one-rune
// typo in a long merchant name count as a duplicate.
func WithStrictLengthBound() Option {
	return func(d *Detector) { d.strictLength = true }
}

// New returns a Detector with the default thresholds.
func New(opts ...Option) *Detector {
	d := &Detector{
		maxFuzzyLength:  DefaultMaxFuzzyLength,
		maxDistance:     DefaultMaxDistance,
		amountTolerance: DefaultAmountTolerance,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// IsDuplicate reports whether tx matches any entry of existing.
func (d *Detector) IsDuplicate(tx domain.BankTransaction, existing []domain.LedgerEntry) bool {
	return d.Check(tx, existing).Duplicate
}

// Check applies the exact-id rule over the whole snapshot first and the
// fuzzy rule only when no id matches.
func (d *Detector) Check(tx domain.BankTransaction, existing []domain.LedgerEntry) Verdict {
	id := tx.TransactionID
	if id == "" {
		id = identity.TransactionID(tx.Date, tx.Amount, tx.Merchant)
	}

	for i := range existing {
		if identity.EntryID(existing[i]) == id {
			return Verdict{Duplicate: true, Rule: RuleExact, Match: &existing[i]}
		}
	}

	amount := tx.Amount.InexactFloat64()
	for i := range existing {
		e := &existing[i]
		if e.Date != tx.Date {
			continue
		}
		if math.Abs(amount-e.Amount.InexactFloat64()) >= d.amountTolerance {
			continue
		}
		if d.MerchantsSimilar(tx.Merchant, e.Merchant) {
			return Verdict{Duplicate: true, Rule: RuleFuzzy, Match: e}
		}
	}

	return Verdict{}
}

// MerchantsSimilar compares normalized merchant names: equal, one containing
// the other, or within the edit-distance bound. An empty name only matches
// another empty name.
func (d *Detector) MerchantsSimilar(a, b string) bool {
	na, nb := identity.NormalizeMerchant(a), identity.NormalizeMerchant(b)
	if na == nb {
		return true
	}
	if na == "" || nb == "" {
		return false
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return true
	}

	la, lb := utf8.RuneCountInString(na), utf8.RuneCountInString(nb)
	if la <= d.maxFuzzyLength && lb <= d.maxFuzzyLength {
		return editdistance.Levenshtein(na, nb) <= d.maxDistance
	}
	if d.strictLength {
		return false
	}
	return editdistance.Within(na, nb, d.maxDistance)
}
