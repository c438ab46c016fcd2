package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/mailspend/internal/domain"
)

// remoteReadTimeout bounds every remote read; a timeout counts as a
// failure and triggers the cache fallback.
const remoteReadTimeout = 10 * time.Second

// CachedBackend wraps a remote Backend with read-through caching. Every
// successful read refreshes an encrypted local cache record; a failed read
// serves the last-known cache, or an empty collection when nothing was ever
// cached. Reads therefore never surface remote errors to collaborators,
// which must always be able to render something. Writes pass straight
// through to the remote with no local durability guarantee.
type CachedBackend struct {
	remote Backend
	cache  KV
	log    zerolog.Logger
}

// NewCachedBackend wraps remote with the read-through cache.
func NewCachedBackend(remote Backend, cache KV, log zerolog.Logger) *CachedBackend {
	return &CachedBackend{remote: remote, cache: cache, log: log}
}

// cachedRead runs the remote fetch with a bounded deadline, refreshing the
// cache on success and falling back to it on any failure.
func cachedRead[T any](ctx context.Context, b *CachedBackend, col string, fetch func(context.Context) ([]T, error)) ([]T, error) {
	rctx, cancel := context.WithTimeout(ctx, remoteReadTimeout)
	defer cancel()

	items, err := fetch(rctx)
	if err == nil {
		if raw, merr := json.Marshal(items); merr == nil {
			if serr := b.cache.Set(col+cacheSuffix, raw); serr != nil {
				b.log.Warn().Err(serr).Str("collection", col).Msg("Failed to refresh cache")
			}
		}
		return items, nil
	}

	b.log.Warn().Err(err).Str("collection", col).Msg("Remote read failed, serving cache")
	raw, ok, cerr := b.cache.Get(col + cacheSuffix)
	if cerr != nil || !ok {
		return nil, nil
	}
	var cached []T
	if jerr := json.Unmarshal(raw, &cached); jerr != nil {
		b.log.Warn().Err(jerr).Str("collection", col).Msg("Cache record unreadable")
		return nil, nil
	}
	return cached, nil
}

func (b *CachedBackend) Transactions(ctx context.Context) ([]domain.Transaction, error) {
	return cachedRead(ctx, b, colTransactions, b.remote.Transactions)
}

func (b *CachedBackend) PutTransactions(ctx context.Context, txs []domain.Transaction) error {
	return b.remote.PutTransactions(ctx, txs)
}

func (b *CachedBackend) AppendTransaction(ctx context.Context, tx domain.Transaction) error {
	return b.remote.AppendTransaction(ctx, tx)
}

func (b *CachedBackend) UpdateTransaction(ctx context.Context, tx domain.Transaction) error {
	return b.remote.UpdateTransaction(ctx, tx)
}

func (b *CachedBackend) DeleteTransaction(ctx context.Context, id string) error {
	return b.remote.DeleteTransaction(ctx, id)
}

func (b *CachedBackend) Categories(ctx context.Context) ([]domain.Category, error) {
	return cachedRead(ctx, b, colCategories, b.remote.Categories)
}

func (b *CachedBackend) PutCategories(ctx context.Context, cats []domain.Category) error {
	return b.remote.PutCategories(ctx, cats)
}

func (b *CachedBackend) PaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error) {
	return cachedRead(ctx, b, colPaymentMethods, b.remote.PaymentMethods)
}

func (b *CachedBackend) PutPaymentMethods(ctx context.Context, pms []domain.PaymentMethod) error {
	return b.remote.PutPaymentMethods(ctx, pms)
}

func (b *CachedBackend) Keywords(ctx context.Context) ([]domain.Keyword, error) {
	return cachedRead(ctx, b, colKeywords, b.remote.Keywords)
}

func (b *CachedBackend) PutKeywords(ctx context.Context, kws []domain.Keyword) error {
	return b.remote.PutKeywords(ctx, kws)
}

func (b *CachedBackend) ApprovedSenders(ctx context.Context) ([]domain.ApprovedSender, error) {
	return cachedRead(ctx, b, colApprovedSenders, b.remote.ApprovedSenders)
}

func (b *CachedBackend) PutApprovedSenders(ctx context.Context, senders []domain.ApprovedSender) error {
	return b.remote.PutApprovedSenders(ctx, senders)
}

func (b *CachedBackend) AppendApprovedSender(ctx context.Context, sender domain.ApprovedSender) error {
	return b.remote.AppendApprovedSender(ctx, sender)
}

var _ Backend = (*CachedBackend)(nil)
