// Package ledger defines the append-only ledger contract and its row shape.
package ledger

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/bankmail-ledger/internal/domain"
)

// Store is the append-only ledger. Implementations never update or delete
// rows, and each Append is all-or-nothing.
type Store interface {
	// Snapshot returns every recorded entry. The orchestrator calls it once
	// per batch.
	Snapshot(ctx context.Context) ([]domain.LedgerEntry, error)

	// Append writes one row.
	Append(ctx context.Context, row Row) error
}

// Column positions of a ledger row.
const (
	ColMerchant = iota
	ColDate
	ColCredit
	ColAmount
	ColCategory
	ColDescription
	ColBalance
	ColTransactionID
	NumColumns
)

// Header names the columns in order.
var Header = []string{"Merchant", "Date", "Credit", "Amount", "Category", "Description", "Balance", "Transaction ID"}

// Row is one ledger line. Credit and Balance are always written empty.
type Row struct {
	Merchant      string
	Date          civil.Date
	Credit        string
	Amount        decimal.Decimal
	Category      string
	Description   string
	Balance       string
	TransactionID string
}

// NewRow maps an extracted transaction to a ledger row.
func NewRow(tx domain.BankTransaction, category string) Row {
	return Row{
		Merchant:      tx.Merchant,
		Date:          tx.Date,
		Amount:        tx.Amount,
		Category:      category,
		Description:   tx.Description,
		TransactionID: tx.TransactionID,
	}
}

// Values renders the row in column order:
// merchant, date, credit, amount, category, description, balance, id.
func (r Row) Values() []string {
	return []string{
		r.Merchant,
		r.Date.String(),
		r.Credit,
		r.Amount.StringFixed(3),
		r.Category,
		r.Description,
		r.Balance,
		r.TransactionID,
	}
}

// Entry returns the comparison view of the row.
func (r Row) Entry() domain.LedgerEntry {
	return domain.LedgerEntry{
		Date:          r.Date,
		Merchant:      r.Merchant,
		Amount:        r.Amount,
		Description:   r.Description,
		TransactionID: r.TransactionID,
	}
}

// EntryFromValues rebuilds an entry from a persisted row in column order.
// Rows written by other tools may lack the trailing columns.
func EntryFromValues(values []string) (domain.LedgerEntry, error) {
	get := func(i int) string {
		if i < len(values) {
			return strings.TrimSpace(values[i])
		}
		return ""
	}

	date, err := civil.ParseDate(get(ColDate))
	if err != nil {
		return domain.LedgerEntry{}, fmt.Errorf("EntryFromValues: date %q: %w", get(ColDate), err)
	}
	amount, err := decimal.NewFromString(strings.ReplaceAll(get(ColAmount), ",", ""))
	if err != nil {
		return domain.LedgerEntry{}, fmt.Errorf("EntryFromValues: amount %q: %w", get(ColAmount), err)
	}

	return domain.LedgerEntry{
		Merchant:      get(ColMerchant),
		Date:          date,
		Amount:        amount,
		Description:   get(ColDescription),
		TransactionID: get(ColTransactionID),
	}, nil
}
