// Package processor runs one batch: it fetches pending bank notifications,
// records new transactions in the ledger, escalates what it cannot parse and
// labels every settled message.
package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/bankmail-ledger/internal/config"
	"github.com/dvloznov/bankmail-ledger/internal/dedup"
	"github.com/dvloznov/bankmail-ledger/internal/domain"
	"github.com/dvloznov/bankmail-ledger/internal/escalation"
	"github.com/dvloznov/bankmail-ledger/internal/extractor"
	"github.com/dvloznov/bankmail-ledger/internal/labels"
	"github.com/dvloznov/bankmail-ledger/internal/ledger"
	"github.com/dvloznov/bankmail-ledger/internal/logger"
	"github.com/dvloznov/bankmail-ledger/internal/mailsource"
)

// Message outcomes.
const (
	OutcomeRecorded  = "recorded"
	OutcomeDuplicate = "duplicate"
	OutcomeEscalated = "escalated"
	OutcomeSkipped   = "skipped"
	OutcomeError     = "error"
)

// Deps are the collaborators of a Processor. Extractor, Detector, Sink and
// Now default when nil.
type Deps struct {
	Source    mailsource.Source
	Store     ledger.Store
	Labeler   labels.Labeler
	Sink      escalation.Sink
	Extractor *extractor.Extractor
	Detector  *dedup.Detector
	Now       func() time.Time
}

// MessageResult is the outcome of one message.
type MessageResult struct {
	MessageID     string `json:"message_id"`
	Outcome       string `json:"outcome"`
	TransactionID string `json:"transaction_id,omitempty"`
	Rule          string `json:"rule,omitempty"`
	Reason        string `json:"reason,omitempty"`
	Label         string `json:"label,omitempty"`
}

// Summary describes a finished or interrupted batch.
type Summary struct {
	BatchID    string          `json:"batch_id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Total      int             `json:"total"`
	Recorded   int             `json:"recorded"`
	Duplicates int             `json:"duplicates"`
	Escalated  int             `json:"escalated"`
	Skipped    int             `json:"skipped"`
	Errors     int             `json:"errors"`
	Results    []MessageResult `json:"results"`
}

func (s *Summary) add(r MessageResult) {
	switch r.Outcome {
	case OutcomeRecorded:
		s.Recorded++
	case OutcomeDuplicate:
		s.Duplicates++
	case OutcomeEscalated:
		s.Escalated++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeError:
		s.Errors++
	}
	s.Results = append(s.Results, r)
}

// Processor runs batches. Batches must not run concurrently against the
// same ledger.
type Processor struct {
	cfg  config.Config
	deps Deps
}

// New returns a Processor.
func New(cfg config.Config, deps Deps) *Processor {
	if deps.Extractor == nil {
		deps.Extractor = extractor.New()
	}
	if deps.Detector == nil {
		deps.Detector = DetectorFromConfig(cfg.Dedup)
	}
	if deps.Sink == nil {
		deps.Sink = escalation.NopSink{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Processor{cfg: cfg, deps: deps}
}

// DetectorFromConfig builds a duplicate detector from the dedup settings.
// Zero values keep the detector defaults.
func DetectorFromConfig(c config.DedupConfig) *dedup.Detector {
	var opts []dedup.Option
	if c.MaxFuzzyLength > 0 {
		opts = append(opts, dedup.WithMaxFuzzyLength(c.MaxFuzzyLength))
	}
	if c.MaxDistance > 0 {
		opts = append(opts, dedup.WithMaxDistance(c.MaxDistance))
	}
	if c.AmountTolerance > 0 {
		opts = append(opts, dedup.WithAmountTolerance(c.AmountTolerance))
	}
	if c.StrictLengthBound {
		opts = append(opts, dedup.WithStrictLengthBound())
	}
	return dedup.New(opts...)
}

// RunBatch processes every pending message once. The returned summary is
// never nil; on error it covers the messages handled before the failure.
func (p *Processor) RunBatch(ctx context.Context) (*Summary, error) {
	summary := &Summary{
		BatchID:   uuid.NewString(),
		StartedAt: p.deps.Now(),
	}
	defer func() { summary.FinishedAt = p.deps.Now() }()

	log := logger.FromContext(ctx).With().Str("batch_id", summary.BatchID).Logger()
	ctx = logger.WithContext(ctx, log)

	if err := p.cfg.Validate(); err != nil {
		return summary, fmt.Errorf("RunBatch: %w", err)
	}
	if p.deps.Source == nil || p.deps.Store == nil || p.deps.Labeler == nil {
		return summary, fmt.Errorf("RunBatch: %w: source, store and labeler are required", domain.ErrConfiguration)
	}

	processed, err := p.deps.Labeler.Ensure(ctx, p.cfg.Labels.Processed)
	if err != nil {
		return summary, fmt.Errorf("RunBatch: ensure label %q: %w", p.cfg.Labels.Processed, err)
	}
	failed, err := p.deps.Labeler.Ensure(ctx, p.cfg.Labels.Failed)
	if err != nil {
		return summary, fmt.Errorf("RunBatch: ensure label %q: %w", p.cfg.Labels.Failed, err)
	}

	msgs, err := p.deps.Source.Fetch(ctx)
	if err != nil {
		return summary, fmt.Errorf("RunBatch: fetch messages: %w", err)
	}
	summary.Total = len(msgs)

	snapshot, err := p.deps.Store.Snapshot(ctx)
	if err != nil {
		return summary, fmt.Errorf("RunBatch: load ledger snapshot: %w", err)
	}

	// known is the snapshot plus rows appended during this batch.
	known := make([]domain.LedgerEntry, len(snapshot), len(snapshot)+len(msgs))
	copy(known, snapshot)

	pipeline := NewPipeline(
		DecodeStep{},
		ExtractStep{Extractor: p.deps.Extractor},
		IdentifyStep{},
		DedupStep{Detector: p.deps.Detector, Known: func() []domain.LedgerEntry { return known }},
		AppendStep{
			Store:    p.deps.Store,
			Category: p.cfg.Category,
			OnAppend: func(row ledger.Row) { known = append(known, row.Entry()) },
		},
	)

	log.Info().Int("messages", len(msgs)).Int("ledger_entries", len(snapshot)).Msg("Starting batch")

	for _, msg := range msgs {
		if err := ctx.Err(); err != nil {
			log.Warn().Err(err).Int("handled", len(summary.Results)).Msg("Batch interrupted")
			return summary, fmt.Errorf("RunBatch: %w", err)
		}
		summary.add(p.handle(ctx, pipeline, msg, processed, failed))
	}

	log.Info().
		Int("recorded", summary.Recorded).
		Int("duplicates", summary.Duplicates).
		Int("escalated", summary.Escalated).
		Int("skipped", summary.Skipped).
		Int("errors", summary.Errors).
		Msg("Batch completed")

	return summary, nil
}

func (p *Processor) handle(ctx context.Context, pipeline *Pipeline, msg domain.Message, processed, failed labels.Label) MessageResult {
	log := logger.ForMessage(ctx, msg.ID)
	ctx = logger.WithContext(ctx, log)
	result := MessageResult{MessageID: msg.ID}

	// A message whose headers could not be decoded has no sender to check;
	// it is escalated so it does not come back on every batch.
	undecodedSender := msg.DecodeErr != nil && msg.Sender == ""
	if !undecodedSender && !p.cfg.IsRecognizedSender(msg.Sender) {
		log.Debug().Str("sender", msg.Sender).Msg("Skipping message from unrecognized sender")
		result.Outcome = OutcomeSkipped
		return result
	}

	state := &MessageState{Message: msg}
	if err := pipeline.Execute(ctx, state); err != nil {
		log.Error().Err(err).Bool("retry", true).Msg("Message failed")
		result.Outcome = OutcomeError
		result.Reason = err.Error()
		return result
	}

	result.Outcome = state.Outcome
	result.TransactionID = state.Transaction.TransactionID
	result.Rule = state.Verdict.Rule
	if state.Reason != nil {
		result.Reason = state.Reason.Error()
	}

	label := processed
	switch state.Outcome {
	case OutcomeRecorded:
		log.Info().
			Str("transaction_id", state.Row.TransactionID).
			Str("merchant", state.Row.Merchant).
			Str("amount", state.Transaction.Amount.StringFixed(3)).
			Msg("Recorded transaction")
	case OutcomeDuplicate:
		log.Info().
			Str("transaction_id", result.TransactionID).
			Str("rule", result.Rule).
			Msg("Duplicate transaction skipped")
	case OutcomeEscalated:
		label = failed
		req := escalation.Request{
			MessageID:   msg.ID,
			Subject:     msg.Subject,
			Body:        msg.Body,
			Instruction: p.instruction(),
		}
		if err := p.deps.Sink.Escalate(ctx, req); err != nil {
			log.Error().Err(err).Str("stage", "escalation").Bool("retry", true).Msg("Message failed")
			result.Outcome = OutcomeError
			result.Reason = fmt.Sprintf("%s; escalation: %v", result.Reason, err)
			return result
		}
		log.Warn().Str("reason", result.Reason).Msg("Message escalated")
	}

	if err := p.deps.Labeler.Apply(ctx, msg.ID, label); err != nil {
		log.Warn().Err(err).Str("label", label.Name).Msg("Failed to label message")
		return result
	}
	result.Label = label.Name
	return result
}

func (p *Processor) instruction() string {
	if p.cfg.Escalation.Instruction != "" {
		return p.cfg.Escalation.Instruction
	}
	return escalation.DefaultInstruction
}
