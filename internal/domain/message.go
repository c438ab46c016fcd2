package domain

import "time"

// RawMessage is one notification message pulled from the mailbox, with
// headers flattened and the body already decoded.
type RawMessage struct {
	ID       string
	Sender   string // From header, full address
	Subject  string
	Snippet  string // short preview supplied by the mailbox API
	Body     string // decoded text body; falls back to Snippet
	Received time.Time
}

// Confidence rates how trustworthy an extraction is. Low-confidence
// candidates always go to manual review, even from approved senders.
type Confidence string

const (
	ConfidenceHigh Confidence = "high"
	ConfidenceLow  Confidence = "low"
)

// ParsedTransaction is a candidate extracted from a RawMessage. It is not
// yet a Transaction: dedup and the approval gate decide its fate.
type ParsedTransaction struct {
	Merchant      string
	Amount        string // two-decimal string; "0.00" when extraction failed
	Category      string
	PaymentMethod string
	Sender        string
	Subject       string
	OccurredAt    time.Time
	TimeLabel     string // human-relative label for review display
	RawBody       string // first 500 chars of the decoded body
	Rule          string // name of the extraction rule that produced this
	Confidence    Confidence
}
