package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dvloznov/mailspend/internal/config"
	"github.com/dvloznov/mailspend/internal/domain"
)

// Collection keys. The local backend stores one JSON blob per key; the
// caching decorator derives its cache keys by suffixing these.
const (
	colTransactions    = "transactions"
	colCategories      = "categories"
	colPaymentMethods  = "payment_methods"
	colKeywords        = "keywords"
	colApprovedSenders = "approved_senders"

	cacheSuffix = "_cache"
)

var (
	// ErrIncompatibleSheet is returned when a user-selected spreadsheet does
	// not have the expected tabs and headers. It is surfaced before any
	// state is persisted.
	ErrIncompatibleSheet = errors.New("spreadsheet format does not match the expected schema")

	// ErrNotFound is returned for operations on a missing transaction ID.
	ErrNotFound = errors.New("not found")
)

// Backend is the storage contract every collaborator reads and writes
// through. Implementations: LocalBackend (encrypted local blobs),
// SheetsBackend (remote spreadsheet), CachedBackend (read-through cache
// around a remote). The concrete backend is selected once at construction
// from configuration, never per call.
type Backend interface {
	Transactions(ctx context.Context) ([]domain.Transaction, error)
	PutTransactions(ctx context.Context, txs []domain.Transaction) error
	AppendTransaction(ctx context.Context, tx domain.Transaction) error
	UpdateTransaction(ctx context.Context, tx domain.Transaction) error
	DeleteTransaction(ctx context.Context, id string) error

	Categories(ctx context.Context) ([]domain.Category, error)
	PutCategories(ctx context.Context, cats []domain.Category) error

	PaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error)
	PutPaymentMethods(ctx context.Context, pms []domain.PaymentMethod) error

	Keywords(ctx context.Context) ([]domain.Keyword, error)
	PutKeywords(ctx context.Context, kws []domain.Keyword) error

	ApprovedSenders(ctx context.Context) ([]domain.ApprovedSender, error)
	PutApprovedSenders(ctx context.Context, senders []domain.ApprovedSender) error
	AppendApprovedSender(ctx context.Context, sender domain.ApprovedSender) error
}

// NewBackend builds the backend for the configured storage mode.
//
// offline: everything lives in the local encrypted store.
// auto/existing: a Sheets remote wrapped in the read-through cache; mode
// existing validates the spreadsheet format first and mode auto creates a
// fresh spreadsheet when none is configured yet.
func NewBackend(ctx context.Context, cfg *config.Config, log zerolog.Logger) (Backend, error) {
	kv, err := NewEncryptedKV(cfg.DataDir, cfg.EncryptionKey)
	if err != nil {
		return nil, err
	}

	if cfg.StorageMode == domain.ModeOffline {
		return NewLocalBackend(kv), nil
	}

	remote, err := NewSheetsBackend(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	switch cfg.StorageMode {
	case domain.ModeExisting:
		if err := remote.Validate(ctx); err != nil {
			return nil, err
		}
	case domain.ModeAuto:
		if cfg.SpreadsheetID == "" {
			id, err := remote.Create(ctx)
			if err != nil {
				return nil, fmt.Errorf("store: create spreadsheet: %w", err)
			}
			cfg.SpreadsheetID = id
			log.Info().Str("spreadsheet_id", id).Msg("Created remote spreadsheet")
		}
	}

	return NewCachedBackend(remote, kv, log), nil
}

// EnsureDefaults seeds reference collections that are still empty. Safe to
// call on every startup; it never overwrites user data.
func EnsureDefaults(ctx context.Context, b Backend) error {
	cats, err := b.Categories(ctx)
	if err != nil {
		return fmt.Errorf("store: seed categories: %w", err)
	}
	if len(cats) == 0 {
		if err := b.PutCategories(ctx, domain.DefaultCategories()); err != nil {
			return fmt.Errorf("store: seed categories: %w", err)
		}
	}

	pms, err := b.PaymentMethods(ctx)
	if err != nil {
		return fmt.Errorf("store: seed payment methods: %w", err)
	}
	if len(pms) == 0 {
		if err := b.PutPaymentMethods(ctx, domain.DefaultPaymentMethods()); err != nil {
			return fmt.Errorf("store: seed payment methods: %w", err)
		}
	}
	return nil
}
