package domain

import "errors"

// Failure classes. Adapters and the batch orchestrator wrap these with
// fmt.Errorf("...: %w", ...) so callers can test them with errors.Is.
var (
	// ErrExtraction means date, amount or merchant could not be found.
	ErrExtraction = errors.New("extraction failure")

	// ErrEncoding means a message body could not be decoded to text.
	ErrEncoding = errors.New("encoding failure")

	// ErrTransport means a ledger, label or escalation call failed.
	ErrTransport = errors.New("transport failure")

	// ErrConfiguration means required configuration is missing or invalid.
	ErrConfiguration = errors.New("configuration failure")
)
