package processor

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/bankmail-ledger/internal/dedup"
	"github.com/dvloznov/bankmail-ledger/internal/domain"
	"github.com/dvloznov/bankmail-ledger/internal/extractor"
	"github.com/dvloznov/bankmail-ledger/internal/identity"
	"github.com/dvloznov/bankmail-ledger/internal/ledger"
)

// Step is one stage of the per-message pipeline. A step that settles the
// message sets state.Outcome; later steps are then skipped.
type Step interface {
	Execute(ctx context.Context, state *MessageState) error
}

// MessageState holds what the steps learn about one message.
type MessageState struct {
	Message     domain.Message
	Extraction  extractor.Result
	Transaction domain.BankTransaction
	Verdict     dedup.Verdict
	Row         ledger.Row

	Outcome string
	Reason  error
}

func (s *MessageState) escalate(reason error) {
	s.Outcome = OutcomeEscalated
	s.Reason = reason
}

// DecodeStep escalates messages whose body could not be decoded.
type DecodeStep struct{}

func (DecodeStep) Execute(ctx context.Context, state *MessageState) error {
	if state.Message.DecodeErr != nil {
		state.escalate(state.Message.DecodeErr)
	}
	return nil
}

// ExtractStep pulls date, amount and merchant out of the message.
type ExtractStep struct {
	Extractor *extractor.Extractor
}

func (s ExtractStep) Execute(ctx context.Context, state *MessageState) error {
	res := s.Extractor.Extract(state.Message.Subject, state.Message.Body)
	state.Extraction = res
	if !res.OK() {
		state.escalate(fmt.Errorf("%w: missing %s", domain.ErrExtraction, strings.Join(res.Missing, ", ")))
		return nil
	}
	state.Transaction = res.Transaction
	return nil
}

// IdentifyStep assigns the deterministic transaction id.
type IdentifyStep struct{}

func (IdentifyStep) Execute(ctx context.Context, state *MessageState) error {
	identity.Assign(&state.Transaction)
	return nil
}

// DedupStep compares the transaction with the known ledger entries.
type DedupStep struct {
	Detector *dedup.Detector
	Known    func() []domain.LedgerEntry
}

func (s DedupStep) Execute(ctx context.Context, state *MessageState) error {
	state.Verdict = s.Detector.Check(state.Transaction, s.Known())
	if state.Verdict.Duplicate {
		state.Outcome = OutcomeDuplicate
	}
	return nil
}

// AppendStep writes the ledger row.
type AppendStep struct {
	Store    ledger.Store
	Category string
	OnAppend func(ledger.Row)
}

func (s AppendStep) Execute(ctx context.Context, state *MessageState) error {
	row := ledger.NewRow(state.Transaction, s.Category)
	if err := s.Store.Append(ctx, row); err != nil {
		return fmt.Errorf("AppendStep: %w", err)
	}
	state.Row = row
	state.Outcome = OutcomeRecorded
	if s.OnAppend != nil {
		s.OnAppend(row)
	}
	return nil
}

// Pipeline executes steps in order until one settles the message.
type Pipeline struct {
	steps []Step
}

func NewPipeline(steps ...Step) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs the steps. An error means the message could not be settled
// and must be retried in a later batch.
func (p *Pipeline) Execute(ctx context.Context, state *MessageState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
		if state.Outcome != "" {
			return nil
		}
	}
	return nil
}
