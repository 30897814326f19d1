package bigquery

import (
	"math/big"
	"testing"
	"time"

	bq "cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/bankmail-ledger/internal/ledger"
)

func TestToLedgerEntryRow(t *testing.T) {
	now := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	row := ledger.Row{
		Merchant:      "SHELL",
		Date:          civil.Date{Year: 2024, Month: 2, Day: 1},
		Amount:        decimal.RequireFromString("3.250"),
		Category:      "Bank Transaction",
		Description:   "Fuel",
		TransactionID: "202402013250SHELL",
	}

	got := toLedgerEntryRow(row, now)

	if got.Amount.Cmp(big.NewRat(13, 4)) != 0 {
		t.Errorf("amount = %s, want 13/4", got.Amount)
	}
	if got.Credit.Valid || got.Balance.Valid {
		t.Error("credit and balance must be NULL")
	}
	if got.TransactionDate != row.Date || got.TransactionID != row.TransactionID || !got.CreatedTS.Equal(now) {
		t.Errorf("row = %+v", got)
	}
}

func TestSnapshotRowEntry(t *testing.T) {
	row := snapshotRow{
		Merchant:        "SHELL",
		TransactionDate: civil.Date{Year: 2024, Month: 2, Day: 1},
		Amount:          big.NewRat(13, 4),
		TransactionID:   bq.NullString{StringVal: "id-1", Valid: true},
	}

	entry, err := row.entry()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !entry.Amount.Equal(decimal.RequireFromString("3.25")) {
		t.Errorf("amount = %s", entry.Amount)
	}
	if entry.TransactionID != "id-1" || entry.Description != "" {
		t.Errorf("entry = %+v", entry)
	}

	row.Amount = nil
	if _, err := row.entry(); err == nil {
		t.Error("expected error for NULL amount")
	}
}
