package mailsource

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dvloznov/bankmail-ledger/internal/domain"
)

var (
	idKeys     = []string{"id", "messageId"}
	senderKeys = []string{"from", "sender"}
	bodyKeys   = []string{"body", "plainBody", "text"}
	htmlKeys   = []string{"html", "htmlBody"}
)

// FromPayload maps a loosely typed message payload into a domain.Message.
// A value of the wrong type is an error; an undecodable HTML body is kept
// as DecodeErr.
func FromPayload(p map[string]any) (domain.Message, error) {
	var msg domain.Message
	var err error

	if msg.ID, err = stringField(p, idKeys...); err != nil {
		return domain.Message{}, err
	}
	if strings.TrimSpace(msg.ID) == "" {
		return domain.Message{}, fmt.Errorf("FromPayload: message id is required")
	}
	if msg.Sender, err = stringField(p, senderKeys...); err != nil {
		return domain.Message{}, err
	}
	if msg.Subject, err = stringField(p, "subject"); err != nil {
		return domain.Message{}, err
	}
	if msg.Body, err = stringField(p, bodyKeys...); err != nil {
		return domain.Message{}, err
	}

	if strings.TrimSpace(msg.Body) == "" {
		htmlBody, err := stringField(p, htmlKeys...)
		if err != nil {
			return domain.Message{}, err
		}
		if htmlBody != "" {
			text, err := HTMLToText(htmlBody)
			if err != nil {
				msg.DecodeErr = fmt.Errorf("FromPayload: %s: %w: %w", msg.ID, domain.ErrEncoding, err)
			}
			msg.Body = text
		}
	}

	return msg, nil
}

// ParseJSON decodes a JSON payload. fallbackID is used when the payload
// carries no id.
func ParseJSON(fallbackID string, raw []byte) (domain.Message, error) {
	var p map[string]any
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.Message{}, fmt.Errorf("ParseJSON: %s: %w: %w", fallbackID, domain.ErrEncoding, err)
	}
	if p == nil {
		p = map[string]any{}
	}
	if id, err := stringField(p, idKeys...); err == nil && strings.TrimSpace(id) == "" {
		p["id"] = fallbackID
	}
	return FromPayload(p)
}

// stringField returns the first non-empty value among keys.
func stringField(p map[string]any, keys ...string) (string, error) {
	for _, k := range keys {
		v, ok := p[k]
		if !ok || v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("FromPayload: field %q: expected string, got %T", k, v)
		}
		if s == "" {
			continue
		}
		return s, nil
	}
	return "", nil
}
