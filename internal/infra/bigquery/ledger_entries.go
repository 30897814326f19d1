package bigquery

import (
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/bankmail-ledger/internal/domain"
	"github.com/dvloznov/bankmail-ledger/internal/ledger"
)

// LedgerEntryRow mirrors the ledger_entries table. Column order follows the
// ledger row shape; created_ts is bookkeeping only.
type LedgerEntryRow struct {
	Merchant        string              `bigquery:"merchant"`         // REQUIRED
	TransactionDate civil.Date          `bigquery:"transaction_date"` // REQUIRED DATE
	Credit          bigquery.NullString `bigquery:"credit"`           // always NULL
	Amount          *big.Rat            `bigquery:"amount"`           // REQUIRED NUMERIC
	Category        string              `bigquery:"category"`
	Description     string              `bigquery:"description"`
	Balance         bigquery.NullString `bigquery:"balance"` // always NULL
	TransactionID   string              `bigquery:"transaction_id"` // REQUIRED

	CreatedTS time.Time `bigquery:"created_ts"`
}

// toLedgerEntryRow maps a ledger row to its BigQuery form.
func toLedgerEntryRow(r ledger.Row, now time.Time) *LedgerEntryRow {
	return &LedgerEntryRow{
		Merchant:        r.Merchant,
		TransactionDate: r.Date,
		Amount:          r.Amount.Rat(),
		Category:        r.Category,
		Description:     r.Description,
		TransactionID:   r.TransactionID,
		CreatedTS:       now,
	}
}

// snapshotRow is the projection read back for duplicate checks.
type snapshotRow struct {
	Merchant        string              `bigquery:"merchant"`
	TransactionDate civil.Date          `bigquery:"transaction_date"`
	Amount          *big.Rat            `bigquery:"amount"`
	Description     bigquery.NullString `bigquery:"description"`
	TransactionID   bigquery.NullString `bigquery:"transaction_id"`
}

func (s snapshotRow) entry() (domain.LedgerEntry, error) {
	if s.Amount == nil {
		return domain.LedgerEntry{}, fmt.Errorf("entry: %s: amount is NULL", s.TransactionID.StringVal)
	}
	// NUMERIC has at most 9 fractional digits.
	amount, err := decimal.NewFromString(s.Amount.FloatString(9))
	if err != nil {
		return domain.LedgerEntry{}, fmt.Errorf("entry: amount: %w", err)
	}
	return domain.LedgerEntry{
		Date:          s.TransactionDate,
		Merchant:      s.Merchant,
		Amount:        amount,
		Description:   s.Description.StringVal,
		TransactionID: s.TransactionID.StringVal,
	}, nil
}
