package escalation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/dvloznov/bankmail-ledger/internal/domain"
	"github.com/dvloznov/bankmail-ledger/internal/logger"
)

// maxResponseBytes caps how much of a webhook response is read.
const maxResponseBytes = 64 << 10

// Response kinds reported by ClassifyResponse.
const (
	KindJSON   = "json"
	KindText   = "text"
	KindBinary = "binary"
)

// WebhookSink posts each request as JSON to a URL.
type WebhookSink struct {
	url    string
	client *http.Client
}

// NewWebhookSink returns a sink posting to url with the given timeout.
func NewWebhookSink(url string, timeout time.Duration) *WebhookSink {
	return &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Escalate implements Sink. Any non-2xx status is a transport failure.
func (w *WebhookSink) Escalate(ctx context.Context, req Request) error {
	log := logger.ForMessage(ctx, req.MessageID)

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("WebhookSink.Escalate: marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("WebhookSink.Escalate: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("WebhookSink.Escalate: %w: %w", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("WebhookSink.Escalate: read response: %w: %w", domain.ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("WebhookSink.Escalate: status %d: %w", resp.StatusCode, domain.ErrTransport)
	}

	log.Info().
		Int("status", resp.StatusCode).
		Str("response_kind", ClassifyResponse(resp.Header.Get("Content-Type"), body)).
		Int("response_bytes", len(body)).
		Msg("Escalated message to webhook")
	return nil
}

// ClassifyResponse reports whether a response body is JSON, text or binary.
// The declared content type wins; otherwise the body is sniffed.
func ClassifyResponse(contentType string, body []byte) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType == "" {
		if json.Valid(body) && len(bytes.TrimSpace(body)) > 0 {
			return KindJSON
		}
		mediaType, _, _ = mime.ParseMediaType(http.DetectContentType(body))
	}

	switch {
	case mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"):
		return KindJSON
	case strings.HasPrefix(mediaType, "text/"):
		return KindText
	default:
		return KindBinary
	}
}

var _ Sink = (*WebhookSink)(nil)
