package escalation

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/dvloznov/bankmail-ledger/internal/domain"
	"github.com/dvloznov/bankmail-ledger/internal/logger"
)

// ContentGenerator is the part of the genai client used by GeminiSink.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiSink sends escalated messages to a Gemini model. The model answer is
// logged for a human reviewer and never written to the ledger.
type GeminiSink struct {
	models  ContentGenerator
	model   string
	timeout time.Duration
}

// NewGeminiSink creates a genai client using the environment's credentials.
func NewGeminiSink(ctx context.Context, model string, timeout time.Duration) (*GeminiSink, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiSink: create genai client: %w", err)
	}
	return NewGeminiSinkWithGenerator(client.Models, model, timeout), nil
}

// NewGeminiSinkWithGenerator returns a sink over an existing generator.
func NewGeminiSinkWithGenerator(models ContentGenerator, model string, timeout time.Duration) *GeminiSink {
	return &GeminiSink{models: models, model: model, timeout: timeout}
}

// Escalate implements Sink.
func (g *GeminiSink) Escalate(ctx context.Context, req Request) error {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	prompt := req.Instruction + "\n\nSubject: " + req.Subject + "\n\n" + req.Body
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	resp, err := g.models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return fmt.Errorf("GeminiSink.Escalate: generate content: %w: %w", domain.ErrTransport, err)
	}

	log := logger.ForMessage(ctx, req.MessageID)
	log.Info().
		Str("model", g.model).
		Str("review", resp.Text()).
		Msg("Escalated message to model")
	return nil
}

var _ Sink = (*GeminiSink)(nil)
