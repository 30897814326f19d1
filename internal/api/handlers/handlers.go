package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/bankmail-ledger/internal/api/middleware"
	"github.com/dvloznov/bankmail-ledger/internal/dedup"
	"github.com/dvloznov/bankmail-ledger/internal/extractor"
	"github.com/dvloznov/bankmail-ledger/internal/identity"
	"github.com/dvloznov/bankmail-ledger/internal/jobs"
	"github.com/dvloznov/bankmail-ledger/internal/ledger"
)

// maxExtractBody caps the size of an extraction request.
const maxExtractBody = 1 << 20

// BatchesHandler handles batch job endpoints.
type BatchesHandler struct {
	publisher jobs.Publisher
	store     jobs.JobStore
	log       zerolog.Logger
}

// NewBatchesHandler creates a new batches handler.
func NewBatchesHandler(publisher jobs.Publisher, store jobs.JobStore, log zerolog.Logger) *BatchesHandler {
	return &BatchesHandler{
		publisher: publisher,
		store:     store,
		log:       log,
	}
}

// EnqueueBatch handles POST /api/batches
func (h *BatchesHandler) EnqueueBatch(w http.ResponseWriter, r *http.Request) {
	job := &jobs.BatchJob{Trigger: jobs.TriggerAPI}
	if err := h.publisher.PublishBatch(r.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue batch")
		middleware.WriteError(w, http.StatusServiceUnavailable, "Failed to enqueue batch")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Msg("Batch enqueued")
	middleware.WriteJSON(w, http.StatusAccepted, job)
}

// GetBatch handles GET /api/batches/{id}
func (h *BatchesHandler) GetBatch(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		h.log.Debug().Err(err).Str("job_id", jobID).Msg("Batch job not found")
		middleware.WriteError(w, http.StatusNotFound, "Batch not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListBatches handles GET /api/batches
func (h *BatchesHandler) ListBatches(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		Status:  jobs.JobStatus(query.Get("status")),
		Trigger: jobs.Trigger(query.Get("trigger")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}
	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	list, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list batches")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list batches")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"batches": list,
		"count":   len(list),
	})
}

// ExtractHandler previews extraction and the duplicate verdict for a
// message without writing anything.
type ExtractHandler struct {
	extractor *extractor.Extractor
	detector  *dedup.Detector
	store     ledger.Store
	log       zerolog.Logger
}

// NewExtractHandler creates a new extraction handler. store may be nil, in
// which case no duplicate check is made.
func NewExtractHandler(ex *extractor.Extractor, detector *dedup.Detector, store ledger.Store, log zerolog.Logger) *ExtractHandler {
	return &ExtractHandler{
		extractor: ex,
		detector:  detector,
		store:     store,
		log:       log,
	}
}

// TransactionView is the JSON form of an extracted transaction.
type TransactionView struct {
	Date          string `json:"date"`
	Merchant      string `json:"merchant"`
	Amount        string `json:"amount"`
	Description   string `json:"description"`
	TransactionID string `json:"transaction_id"`
}

// DuplicateView is the JSON form of a duplicate verdict.
type DuplicateView struct {
	Duplicate bool   `json:"duplicate"`
	Rule      string `json:"rule,omitempty"`
	MatchID   string `json:"match_id,omitempty"`
}

// ExtractResponse is returned by POST /api/extract.
type ExtractResponse struct {
	OK          bool              `json:"ok"`
	Missing     []string          `json:"missing,omitempty"`
	Rules       map[string]string `json:"rules,omitempty"`
	Transaction *TransactionView  `json:"transaction,omitempty"`
	Duplicate   *DuplicateView    `json:"duplicate,omitempty"`
}

// Extract handles POST /api/extract
func (h *ExtractHandler) Extract(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}

	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxExtractBody)).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Subject == "" && req.Body == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Subject or body is required")
		return
	}

	res := h.extractor.Extract(req.Subject, req.Body)
	resp := ExtractResponse{OK: res.OK(), Missing: res.Missing}
	if !res.OK() {
		middleware.WriteJSON(w, http.StatusOK, resp)
		return
	}

	tx := res.Transaction
	resp.Rules = map[string]string{
		extractor.FieldDate:     res.DateRule,
		extractor.FieldAmount:   res.AmountRule,
		extractor.FieldMerchant: res.MerchantRule,
	}
	resp.Transaction = &TransactionView{
		Date:          tx.Date.String(),
		Merchant:      tx.Merchant,
		Amount:        tx.Amount.StringFixed(3),
		Description:   tx.Description,
		TransactionID: tx.TransactionID,
	}

	if h.store != nil {
		start := time.Now()
		snapshot, err := h.store.Snapshot(r.Context())
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to load ledger snapshot")
			middleware.WriteError(w, http.StatusBadGateway, "Failed to load ledger")
			return
		}
		v := h.detector.Check(tx, snapshot)
		resp.Duplicate = &DuplicateView{Duplicate: v.Duplicate, Rule: v.Rule}
		if v.Match != nil {
			resp.Duplicate.MatchID = identity.EntryID(*v.Match)
		}
		h.log.Debug().Int("entries", len(snapshot)).Dur("duration", time.Since(start)).Msg("Duplicate check done")
	}

	middleware.WriteJSON(w, http.StatusOK, resp)
}

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// NewMux registers every endpoint. extract may be nil.
func NewMux(batches *BatchesHandler, extract *ExtractHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", Health)
	mux.HandleFunc("POST /api/batches", batches.EnqueueBatch)
	mux.HandleFunc("GET /api/batches", batches.ListBatches)
	mux.HandleFunc("GET /api/batches/{id}", batches.GetBatch)
	if extract != nil {
		mux.HandleFunc("POST /api/extract", extract.Extract)
	}
	return mux
}
