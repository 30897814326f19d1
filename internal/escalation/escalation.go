// Package escalation hands messages the extractor could not handle to an
// external reviewer: a webhook or a Gemini model.
package escalation

import (
	"context"

	"github.com/dvloznov/bankmail-ledger/internal/logger"
)

// DefaultInstruction accompanies every escalated message.
const DefaultInstruction = "This bank notification could not be parsed automatically. " +
	"Identify the transaction date, the amount and the merchant, " +
	"or state that the message is not a transaction."

// Request is one escalated message.
type Request struct {
	MessageID   string `json:"message_id"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
	Instruction string `json:"instruction"`
}

// Sink receives escalated messages. A returned error means the message was
// not delivered and should be retried.
type Sink interface {
	Escalate(ctx context.Context, req Request) error
}

// NopSink drops escalations after logging them.
type NopSink struct{}

func (NopSink) Escalate(ctx context.Context, req Request) error {
	log := logger.ForMessage(ctx, req.MessageID)
	log.Info().
		Str("subject", req.Subject).
		Msg("Escalation disabled, message only labeled as failed")
	return nil
}

var _ Sink = NopSink{}
