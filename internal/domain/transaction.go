package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType distinguishes money going out from money coming in.
type TransactionType string

const (
	TypeExpense TransactionType = "expense"
	TypeIncome  TransactionType = "income"
)

// TransactionStatus tracks the review lifecycle of a transaction.
type TransactionStatus string

const (
	// StatusPending marks an auto-detected transaction awaiting manual review.
	StatusPending TransactionStatus = "pending"
	// StatusCompleted marks a confirmed transaction counted in aggregates.
	StatusCompleted TransactionStatus = "completed"
	// StatusRejected marks a dismissed transaction; it is kept for audit but
	// excluded from aggregates and default list views.
	StatusRejected TransactionStatus = "rejected"
)

// Transaction is one financial record, either extracted from a notification
// message or entered directly by the user.
type Transaction struct {
	ID            string            `json:"id"`
	Merchant      string            `json:"merchant"`
	Amount        string            `json:"amount"` // decimal string, always two places
	Category      string            `json:"category"`
	PaymentMethod string            `json:"payment_method,omitempty"`
	OccurredAt    time.Time         `json:"occurred_at"`
	Type          TransactionType   `json:"type"`
	Status        TransactionStatus `json:"status"`
	Notes         string            `json:"notes,omitempty"`
	RawMessage    string            `json:"raw_message,omitempty"`
	Sender        string            `json:"sender,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// DayFormat is how transaction dates appear in the remote sheet and in
// dedup comparisons.
const DayFormat = "2006-01-02"

// TransactionID derives the opaque transaction identifier from its creation
// time. Both backends reconstruct the same ID for the same record, so the
// remote sheet does not need an ID column.
func TransactionID(createdAt time.Time) string {
	return fmt.Sprintf("txn-%d", createdAt.UnixNano())
}

// NormalizeAmount parses a raw amount string (possibly with thousands
// separators) and reformats it to a plain two-decimal string. It rejects
// negative amounts; every stored Transaction.Amount goes through here.
func NormalizeAmount(raw string) (string, error) {
	cleaned := stripThousands(raw)
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return "", fmt.Errorf("NormalizeAmount: parse %q: %w", raw, err)
	}
	if d.IsNegative() {
		return "", fmt.Errorf("NormalizeAmount: negative amount %q", raw)
	}
	return d.StringFixed(2), nil
}

// ParseAmount returns the decimal value of a stored amount string, or zero
// when the string is malformed. Aggregation treats unreadable amounts as
// zero rather than failing.
func ParseAmount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(stripThousands(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func stripThousands(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == ',' || s[i] == ' ' {
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}
