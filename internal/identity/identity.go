// Package identity derives the stable key used to recognise a transaction
// across reprocessing runs.
package identity

import (
	"strings"
	"unicode"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/bankmail-ledger/internal/domain"
)

// NormalizeDate renders d as YYYYMMDD.
func NormalizeDate(d civil.Date) string {
	return strings.ReplaceAll(d.String(), "-", "")
}

// NormalizeAmount renders a with exactly three fractional digits and no
// decimal point, so 12.5 and 12.500 both become "12500".
func NormalizeAmount(a decimal.Decimal) string {
	return strings.Replace(a.StringFixed(3), ".", "", 1)
}

// NormalizeMerchant keeps letters and digits of any script and upper-cases
// them. It is idempotent.
func NormalizeMerchant(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// TransactionID concatenates the normalized date, amount and merchant and
// truncates the result to domain.MaxTransactionIDLength runes.
func TransactionID(date civil.Date, amount decimal.Decimal, merchant string) string {
	id := NormalizeDate(date) + NormalizeAmount(amount) + NormalizeMerchant(merchant)
	return Truncate(id, domain.MaxTransactionIDLength)
}

// Assign fills tx.TransactionID from its date, amount and merchant.
func Assign(tx *domain.BankTransaction) {
	tx.TransactionID = TransactionID(tx.Date, tx.Amount, tx.Merchant)
}

// EntryID returns the entry's stored id, or recomputes it when the row was
// persisted without one.
func EntryID(e domain.LedgerEntry) string {
	if id := strings.TrimSpace(e.TransactionID); id != "" {
		return id
	}
	return TransactionID(e.Date, e.Amount, e.Merchant)
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
