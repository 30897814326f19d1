package domain

// Message is a bank notification mapped at the system boundary into a fixed
// record. Nothing loosely typed reaches the extractor.
type Message struct {
	ID      string // opaque identifier assigned by the message source
	Sender  string // From header as received
	Subject string
	Body    string // plain text, or text recovered from the HTML part

	// DecodeErr is set when the body could not be decoded to text.
	// Such messages are escalated the same way as extraction failures.
	DecodeErr error
}
