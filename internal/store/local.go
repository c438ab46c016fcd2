package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dvloznov/mailspend/internal/domain"
)

// LocalBackend persists every collection as one encrypted JSON blob in the
// local key-value store. Reads of never-written collections yield empty
// slices; a blob that fails to decode surfaces the error to the caller.
type LocalBackend struct {
	kv KV
}

// NewLocalBackend wraps a KV store in the Backend interface.
func NewLocalBackend(kv KV) *LocalBackend {
	return &LocalBackend{kv: kv}
}

func readCollection[T any](kv KV, key string) ([]T, error) {
	raw, ok, err := kv.Get(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", key, err)
	}
	return items, nil
}

func writeCollection[T any](kv KV, key string, items []T) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", key, err)
	}
	return kv.Set(key, raw)
}

func (b *LocalBackend) Transactions(ctx context.Context) ([]domain.Transaction, error) {
	return readCollection[domain.Transaction](b.kv, colTransactions)
}

func (b *LocalBackend) PutTransactions(ctx context.Context, txs []domain.Transaction) error {
	return writeCollection(b.kv, colTransactions, txs)
}

func (b *LocalBackend) AppendTransaction(ctx context.Context, tx domain.Transaction) error {
	txs, err := b.Transactions(ctx)
	if err != nil {
		return err
	}
	return b.PutTransactions(ctx, append(txs, tx))
}

func (b *LocalBackend) UpdateTransaction(ctx context.Context, tx domain.Transaction) error {
	txs, err := b.Transactions(ctx)
	if err != nil {
		return err
	}
	for i := range txs {
		if txs[i].ID == tx.ID {
			txs[i] = tx
			return b.PutTransactions(ctx, txs)
		}
	}
	return fmt.Errorf("store: update transaction %s: %w", tx.ID, ErrNotFound)
}

func (b *LocalBackend) DeleteTransaction(ctx context.Context, id string) error {
	txs, err := b.Transactions(ctx)
	if err != nil {
		return err
	}
	kept := txs[:0]
	found := false
	for _, t := range txs {
		if t.ID == id {
			found = true
			continue
		}
		kept = append(kept, t)
	}
	if !found {
		return fmt.Errorf("store: delete transaction %s: %w", id, ErrNotFound)
	}
	return b.PutTransactions(ctx, kept)
}

func (b *LocalBackend) Categories(ctx context.Context) ([]domain.Category, error) {
	return readCollection[domain.Category](b.kv, colCategories)
}

func (b *LocalBackend) PutCategories(ctx context.Context, cats []domain.Category) error {
	return writeCollection(b.kv, colCategories, cats)
}

func (b *LocalBackend) PaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error) {
	return readCollection[domain.PaymentMethod](b.kv, colPaymentMethods)
}

func (b *LocalBackend) PutPaymentMethods(ctx context.Context, pms []domain.PaymentMethod) error {
	return writeCollection(b.kv, colPaymentMethods, pms)
}

func (b *LocalBackend) Keywords(ctx context.Context) ([]domain.Keyword, error) {
	return readCollection[domain.Keyword](b.kv, colKeywords)
}

func (b *LocalBackend) PutKeywords(ctx context.Context, kws []domain.Keyword) error {
	return writeCollection(b.kv, colKeywords, kws)
}

func (b *LocalBackend) ApprovedSenders(ctx context.Context) ([]domain.ApprovedSender, error) {
	return readCollection[domain.ApprovedSender](b.kv, colApprovedSenders)
}

func (b *LocalBackend) PutApprovedSenders(ctx context.Context, senders []domain.ApprovedSender) error {
	return writeCollection(b.kv, colApprovedSenders, senders)
}

func (b *LocalBackend) AppendApprovedSender(ctx context.Context, sender domain.ApprovedSender) error {
	senders, err := b.ApprovedSenders(ctx)
	if err != nil {
		return err
	}
	return b.PutApprovedSenders(ctx, append(senders, sender))
}

var _ Backend = (*LocalBackend)(nil)
