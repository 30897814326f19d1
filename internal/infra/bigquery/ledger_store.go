package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/bankmail-ledger/internal/domain"
	"github.com/dvloznov/bankmail-ledger/internal/ledger"
)

// LedgerStore is a ledger.Store backed by one BigQuery table. It holds a
// shared client for the lifetime of the process.
type LedgerStore struct {
	client  *bigquery.Client
	project string
	dataset string
	table   string
	now     func() time.Time
}

// NewLedgerStore creates a LedgerStore for project.dataset.table.
func NewLedgerStore(ctx context.Context, project, dataset, table string) (*LedgerStore, error) {
	client, err := bigquery.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("NewLedgerStore: creating client: %w", err)
	}
	return &LedgerStore{
		client:  client,
		project: project,
		dataset: dataset,
		table:   table,
		now:     time.Now,
	}, nil
}

// Close closes the BigQuery client connection.
func (s *LedgerStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Append streams one row. The transaction id is used as the insert id, so
// a retried insert within BigQuery's dedup window is not stored twice.
func (s *LedgerStore) Append(ctx context.Context, row ledger.Row) error {
	inserter := s.client.DatasetInProject(s.project, s.dataset).Table(s.table).Inserter()

	saver := &bigquery.StructSaver{
		Struct:   toLedgerEntryRow(row, s.now()),
		InsertID: row.TransactionID,
	}
	if err := inserter.Put(ctx, saver); err != nil {
		return fmt.Errorf("Append: inserting %s: %w: %w", row.TransactionID, domain.ErrTransport, err)
	}
	return nil
}

// Snapshot reads every entry of the table.
func (s *LedgerStore) Snapshot(ctx context.Context) ([]domain.LedgerEntry, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT
			merchant,
			transaction_date,
			amount,
			description,
			transaction_id
		FROM `+"`%s.%s.%s`"+`
		ORDER BY created_ts
	`, s.project, s.dataset, s.table))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("Snapshot: running query: %w: %w", domain.ErrTransport, err)
	}

	var entries []domain.LedgerEntry
	for {
		var row snapshotRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("Snapshot: iterating results: %w: %w", domain.ErrTransport, err)
		}

		entry, err := row.entry()
		if err != nil {
			return nil, fmt.Errorf("Snapshot: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

var _ ledger.Store = (*LedgerStore)(nil)
