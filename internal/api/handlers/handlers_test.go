package handlers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/bankmail-ledger/internal/api/handlers"
	"github.com/dvloznov/bankmail-ledger/internal/dedup"
	"github.com/dvloznov/bankmail-ledger/internal/domain"
	"github.com/dvloznov/bankmail-ledger/internal/extractor"
	"github.com/dvloznov/bankmail-ledger/internal/jobs"
	"github.com/dvloznov/bankmail-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/bankmail-ledger/internal/ledger"
)

type failingStore struct{}

func (failingStore) Snapshot(ctx context.Context) ([]domain.LedgerEntry, error) {
	return nil, fmt.Errorf("query: %w", domain.ErrTransport)
}

func (failingStore) Append(ctx context.Context, row ledger.Row) error { return nil }

func newServer(t *testing.T, store ledger.Store) (http.Handler, *inmemory.Store) {
	t.Helper()
	jobStore := inmemory.NewStore()
	queue := inmemory.NewQueue(10, jobStore)
	t.Cleanup(func() { queue.Close() })

	batches := handlers.NewBatchesHandler(queue, jobStore, zerolog.Nop())
	extract := handlers.NewExtractHandler(extractor.New(), dedup.New(), store, zerolog.Nop())
	return handlers.NewMux(batches, extract), jobStore
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestHealth(t *testing.T) {
	h, _ := newServer(t, nil)
	rec := do(h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy"`)
}

func TestBatches_EnqueueGetList(t *testing.T) {
	h, _ := newServer(t, nil)

	rec := do(h, http.MethodPost, "/api/batches", "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	var job jobs.BatchJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.NotEmpty(t, job.JobID)
	assert.Equal(t, jobs.TriggerAPI, job.Trigger)
	assert.Equal(t, jobs.JobStatusPending, job.Status)

	rec = do(h, http.MethodGet, "/api/batches/"+job.JobID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got jobs.BatchJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, job.JobID, got.JobID)

	rec = do(h, http.MethodGet, "/api/batches?trigger=api&limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Batches []jobs.BatchJob `json:"batches"`
		Count   int             `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Count)

	rec = do(h, http.MethodGet, "/api/batches?trigger=schedule", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 0, list.Count)
}

func TestBatches_NotFoundAndMethod(t *testing.T) {
	h, _ := newServer(t, nil)

	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/api/batches/nope", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(h, http.MethodDelete, "/api/batches", "").Code)
}

func TestExtract(t *testing.T) {
	existing := ledger.NewRow(extractor.New().Extract(
		"Purchase at CARREFOUR HYPERMARKET on 01/02/2024", "OMR 45.750 debited",
	).Transaction, "Bank Transaction")
	h, _ := newServer(t, ledger.NewMemoryStore(existing))

	tests := []struct {
		name          string
		body          string
		wantOK        bool
		wantDuplicate bool
		wantRule      string
	}{
		{
			name:          "exact duplicate",
			body:          `{"subject":"Purchase at CARREFOUR HYPERMARKET on 01/02/2024","body":"OMR 45.750 debited"}`,
			wantOK:        true,
			wantDuplicate: true,
			wantRule:      dedup.RuleExact,
		},
		{
			name:          "fuzzy duplicate",
			body:          `{"subject":"Purchase at CARREFOUR HYPERMARKT on 01/02/2024","body":"OMR 45.751 debited"}`,
			wantOK:        true,
			wantDuplicate: true,
			wantRule:      dedup.RuleFuzzy,
		},
		{
			name:   "new transaction",
			body:   `{"subject":"Purchase at SHELL on 02/02/2024","body":"OMR 5.000"}`,
			wantOK: true,
		},
		{
			name: "no transaction",
			body: `{"subject":"Statement ready","body":"Log in"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(h, http.MethodPost, "/api/extract", tt.body)
			require.Equal(t, http.StatusOK, rec.Code)

			var resp handlers.ExtractResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantOK, resp.OK)
			if !tt.wantOK {
				assert.NotEmpty(t, resp.Missing)
				assert.Nil(t, resp.Transaction)
				return
			}
			require.NotNil(t, resp.Transaction)
			require.NotNil(t, resp.Duplicate)
			assert.Equal(t, tt.wantDuplicate, resp.Duplicate.Duplicate)
			assert.Equal(t, tt.wantRule, resp.Duplicate.Rule)
			if tt.wantDuplicate {
				assert.Equal(t, existing.TransactionID, resp.Duplicate.MatchID)
			}
		})
	}
}

func TestExtract_BadRequests(t *testing.T) {
	h, _ := newServer(t, nil)

	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodPost, "/api/extract", "{").Code)
	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodPost, "/api/extract", `{}`).Code)
}

func TestExtract_WithoutStoreSkipsDuplicateCheck(t *testing.T) {
	h, _ := newServer(t, nil)

	rec := do(h, http.MethodPost, "/api/extract", `{"subject":"Purchase at SHELL on 02/02/2024","body":"OMR 5.000"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp handlers.ExtractResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Nil(t, resp.Duplicate)
	assert.Equal(t, "5.000", resp.Transaction.Amount)
	assert.Equal(t, "2024-02-02", resp.Transaction.Date)
}

func TestExtract_SnapshotFailure(t *testing.T) {
	h, _ := newServer(t, failingStore{})

	rec := do(h, http.MethodPost, "/api/extract", `{"subject":"Purchase at SHELL on 02/02/2024","body":"OMR 5.000"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
