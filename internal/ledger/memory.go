package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/dvloznov/bankmail-ledger/internal/domain"
)

// MemoryStore keeps rows in memory. It is safe for concurrent use.
type MemoryStore struct {
	mu   sync.RWMutex
	rows [][]string
}

// NewMemoryStore returns a store pre-filled with rows in column order.
func NewMemoryStore(rows ...Row) *MemoryStore {
	s := &MemoryStore{}
	for _, r := range rows {
		s.rows = append(s.rows, r.Values())
	}
	return s
}

// Snapshot implements Store.
func (s *MemoryStore) Snapshot(ctx context.Context) ([]domain.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]domain.LedgerEntry, 0, len(s.rows))
	for i, values := range s.rows {
		e, err := EntryFromValues(values)
		if err != nil {
			return nil, fmt.Errorf("Snapshot: row %d: %w", i+1, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Append implements Store.
func (s *MemoryStore) Append(ctx context.Context, row Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rows = append(s.rows, row.Values())
	return nil
}

// Rows returns a copy of the stored rows.
func (s *MemoryStore) Rows() [][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([][]string, len(s.rows))
	for i, r := range s.rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}

var _ Store = (*MemoryStore)(nil)
