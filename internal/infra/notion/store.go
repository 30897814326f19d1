// Package notion stores the ledger in a Notion database, one page per row.
package notion

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/bankmail-ledger/internal/domain"
	"github.com/dvloznov/bankmail-ledger/internal/ledger"
)

// LedgerStore is a ledger.Store backed by a Notion database.
type LedgerStore struct {
	service    Service
	databaseID string
}

// NewLedgerStore returns a store writing to databaseID.
func NewLedgerStore(service Service, databaseID string) *LedgerStore {
	return &LedgerStore{service: service, databaseID: databaseID}
}

// Append creates one page. Page creation is a single API call, so a row is
// either fully written or absent.
func (s *LedgerStore) Append(ctx context.Context, row ledger.Row) error {
	if _, err := s.service.CreatePage(ctx, s.databaseID, RowToProperties(row)); err != nil {
		return fmt.Errorf("Append: %s: %w: %w", row.TransactionID, domain.ErrTransport, err)
	}
	return nil
}

// Snapshot pages through the whole database.
func (s *LedgerStore) Snapshot(ctx context.Context) ([]domain.LedgerEntry, error) {
	pages, err := s.queryAllPages(ctx)
	if err != nil {
		return nil, fmt.Errorf("Snapshot: %w: %w", domain.ErrTransport, err)
	}

	entries := make([]domain.LedgerEntry, 0, len(pages))
	for _, page := range pages {
		if page.Archived {
			continue
		}
		entry, err := PageToEntry(page)
		if err != nil {
			return nil, fmt.Errorf("Snapshot: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *LedgerStore) queryAllPages(ctx context.Context) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: 100,
		}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := s.service.QueryDatabase(ctx, s.databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}

var _ ledger.Store = (*LedgerStore)(nil)
