package domain

import "fmt"

// Keyword marks inbound messages as transaction candidates and seeds the
// default categorization for matches.
type Keyword struct {
	ID       string          `json:"id"`
	Text     string          `json:"text"`
	Category TransactionType `json:"category"`
}

// ApprovedSender records a message origin the user has confirmed. Future
// candidates from that origin skip manual review and adopt the remembered
// payment method and category.
type ApprovedSender struct {
	Sender        string `json:"sender"` // exact-match key
	PaymentMethod string `json:"payment_method,omitempty"`
	Category      string `json:"category"`
}

// Category is a user-managed reference entity. Transactions reference it by
// name with no foreign-key enforcement.
type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Icon        string `json:"icon,omitempty"`
	Color       string `json:"color,omitempty"`
	Description string `json:"description,omitempty"`
}

// PaymentMethod is a user-managed reference entity (card, UPI handle, cash).
type PaymentMethod struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Icon        string `json:"icon,omitempty"`
	Color       string `json:"color,omitempty"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
	Last4       string `json:"last4,omitempty"`
}

// StorageMode selects the persistence backend. It is configured once at
// onboarding; switching modes does not migrate data between backends.
type StorageMode string

const (
	// ModeOffline keeps everything in the local encrypted store.
	ModeOffline StorageMode = "offline"
	// ModeAuto creates a fresh spreadsheet and uses it as the remote store.
	ModeAuto StorageMode = "auto"
	// ModeExisting attaches to a user-selected spreadsheet after validating
	// its format.
	ModeExisting StorageMode = "existing"
)

// ParseStorageMode validates a configured mode string.
func ParseStorageMode(s string) (StorageMode, error) {
	switch StorageMode(s) {
	case ModeOffline, ModeAuto, ModeExisting:
		return StorageMode(s), nil
	}
	return "", fmt.Errorf("ParseStorageMode: unknown storage mode %q", s)
}
