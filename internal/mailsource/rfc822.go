package mailsource

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/htmlindex"

	"github.com/dvloznov/bankmail-ledger/internal/domain"
)

// maxPartDepth bounds multipart nesting.
const maxPartDepth = 8

var errNoTextPart = errors.New("no text/plain or text/html part")

// ParseRFC822 maps a raw RFC 822 message into a domain.Message. Header or
// body decoding problems are recorded in DecodeErr, wrapped with
// domain.ErrEncoding; the message is still returned so it can be escalated.
func ParseRFC822(id string, raw []byte) domain.Message {
	msg := domain.Message{ID: id}

	m, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		msg.DecodeErr = fmt.Errorf("ParseRFC822: %w: %w", domain.ErrEncoding, err)
		return msg
	}

	dec := &mime.WordDecoder{CharsetReader: charsetReader}
	msg.Sender = decodeHeader(dec, m.Header.Get("From"))
	msg.Subject = decodeHeader(dec, m.Header.Get("Subject"))
	if msg.ID == "" {
		msg.ID = strings.Trim(m.Header.Get("Message-Id"), "<> ")
	}

	var parts bodyParts
	if err := parts.walk(textproto.MIMEHeader(m.Header), m.Body, 0); err != nil {
		msg.DecodeErr = fmt.Errorf("ParseRFC822: %s: %w: %w", msg.ID, domain.ErrEncoding, err)
		return msg
	}

	body, err := parts.text()
	if err != nil {
		msg.DecodeErr = fmt.Errorf("ParseRFC822: %s: %w: %w", msg.ID, domain.ErrEncoding, err)
		return msg
	}
	msg.Body = body
	return msg
}

func decodeHeader(dec *mime.WordDecoder, v string) string {
	out, err := dec.DecodeHeader(v)
	if err != nil {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(out)
}

func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", charset, err)
	}
	return enc.NewDecoder().Reader(input), nil
}

// bodyParts keeps the first plain and the first HTML part of a message.
type bodyParts struct {
	plain    string
	html     string
	hasPlain bool
	hasHTML  bool
}

func (b *bodyParts) walk(header textproto.MIMEHeader, r io.Reader, depth int) error {
	if depth > maxPartDepth {
		return fmt.Errorf("multipart nesting deeper than %d", maxPartDepth)
	}

	mediaType, params, err := mime.ParseMediaType(header.Get("Content-Type"))
	if err != nil {
		if header.Get("Content-Type") != "" {
			return fmt.Errorf("content type: %w", err)
		}
		mediaType, params = "text/plain", map[string]string{}
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		mr := multipart.NewReader(r, params["boundary"])
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return fmt.Errorf("multipart: %w", err)
			}
			if isAttachment(part.Header) {
				continue
			}
			if err := b.walk(part.Header, part, depth+1); err != nil {
				return err
			}
		}
	}

	switch mediaType {
	case "text/plain":
		if b.hasPlain {
			return nil
		}
	case "text/html":
		if b.hasHTML {
			return nil
		}
	default:
		return nil
	}

	text, err := decodePart(header, params["charset"], r)
	if err != nil {
		return err
	}
	if mediaType == "text/plain" {
		b.plain, b.hasPlain = text, true
	} else {
		b.html, b.hasHTML = text, true
	}
	return nil
}

func (b *bodyParts) text() (string, error) {
	if b.hasPlain && strings.TrimSpace(b.plain) != "" {
		return b.plain, nil
	}
	if b.hasHTML {
		return HTMLToText(b.html)
	}
	if b.hasPlain {
		return b.plain, nil
	}
	return "", errNoTextPart
}

func isAttachment(h textproto.MIMEHeader) bool {
	disp, _, err := mime.ParseMediaType(h.Get("Content-Disposition"))
	return err == nil && disp == "attachment"
}

// decodePart undoes the transfer encoding and converts the charset to UTF-8.
// multipart.Reader already removes quoted-printable on nested parts.
func decodePart(header textproto.MIMEHeader, charset string, r io.Reader) (string, error) {
	switch strings.ToLower(strings.TrimSpace(header.Get("Content-Transfer-Encoding"))) {
	case "quoted-printable":
		r = quotedprintable.NewReader(r)
	case "base64":
		r = base64.NewDecoder(base64.StdEncoding, r)
	}

	charset = strings.ToLower(strings.TrimSpace(charset))
	if charset != "" && charset != "utf-8" && charset != "us-ascii" {
		cr, err := charsetReader(charset, r)
		if err != nil {
			return "", err
		}
		r = cr
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("decode body: %w", err)
	}
	if !utf8.Valid(data) {
		return "", errors.New("body is not valid UTF-8")
	}
	return string(data), nil
}
