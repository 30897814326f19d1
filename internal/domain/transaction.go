package domain

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Field limits, counted in runes.
const (
	MaxMerchantLength      = 50
	MaxDescriptionLength   = 200
	MaxTransactionIDLength = 50
)

// BankTransaction is one transaction extracted from a bank notification.
// It is created per message during a batch and written to the ledger at most
// once; it is never mutated afterwards.
type BankTransaction struct {
	Date          civil.Date      // calendar date, no time component
	Merchant      string          // display name, at most MaxMerchantLength runes
	Amount        decimal.Decimal // always > 0, single implicit currency
	Description   string          // derived from the subject, at most MaxDescriptionLength runes
	TransactionID string          // pure function of (Date, Amount, Merchant)

	// Kept for audit only.
	RawSubject string
	RawBody    string
}

// LedgerEntry is a transaction reconstructed from a persisted ledger row.
// Entries are read-only for the duration of a batch.
type LedgerEntry struct {
	Date          civil.Date
	Merchant      string
	Amount        decimal.Decimal
	Description   string
	TransactionID string
}

// Entry returns the ledger view of the transaction.
func (t BankTransaction) Entry() LedgerEntry {
	return LedgerEntry{
		Date:          t.Date,
		Merchant:      t.Merchant,
		Amount:        t.Amount,
		Description:   t.Description,
		TransactionID: t.TransactionID,
	}
}
