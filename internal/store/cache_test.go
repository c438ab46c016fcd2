package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/mailspend/internal/domain"
	"github.com/dvloznov/mailspend/internal/logger"
)

// flakyBackend wraps a LocalBackend and fails reads on demand.
type flakyBackend struct {
	*LocalBackend
	failReads bool
}

var errRemoteDown = errors.New("remote unreachable")

func (f *flakyBackend) Transactions(ctx context.Context) ([]domain.Transaction, error) {
	if f.failReads {
		return nil, errRemoteDown
	}
	return f.LocalBackend.Transactions(ctx)
}

func (f *flakyBackend) Categories(ctx context.Context) ([]domain.Category, error) {
	if f.failReads {
		return nil, errRemoteDown
	}
	return f.LocalBackend.Categories(ctx)
}

func newCachedFixture(t *testing.T) (*flakyBackend, *CachedBackend) {
	t.Helper()
	remote := &flakyBackend{LocalBackend: NewLocalBackend(newTestKV(t))}
	cached := NewCachedBackend(remote, newTestKV(t), logger.NewWithWriter(testWriter{t}))
	return remote, cached
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func TestCachedBackendServesCacheOnFailure(t *testing.T) {
	ctx := context.Background()
	remote, cached := newCachedFixture(t)

	created := time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)
	tx := domain.Transaction{
		ID: domain.TransactionID(created), Merchant: "X", Amount: "10.00",
		Type: domain.TypeExpense, Status: domain.StatusCompleted,
		OccurredAt: created, CreatedAt: created,
	}
	if err := remote.AppendTransaction(ctx, tx); err != nil {
		t.Fatalf("seed remote: %v", err)
	}

	// First read succeeds and primes the cache.
	txs, err := cached.Transactions(ctx)
	if err != nil || len(txs) != 1 {
		t.Fatalf("primed read: err=%v n=%d", err, len(txs))
	}

	// Remote goes down: the cached list is served, no error raised.
	remote.failReads = true
	txs, err = cached.Transactions(ctx)
	if err != nil {
		t.Fatalf("fallback read raised: %v", err)
	}
	if len(txs) != 1 || txs[0].Merchant != "X" {
		t.Fatalf("fallback read = %+v, want cached transaction", txs)
	}
}

func TestCachedBackendEmptyWithoutPriorCache(t *testing.T) {
	ctx := context.Background()
	remote, cached := newCachedFixture(t)
	remote.failReads = true

	txs, err := cached.Transactions(ctx)
	if err != nil {
		t.Fatalf("read with no cache raised: %v", err)
	}
	if len(txs) != 0 {
		t.Errorf("expected empty result, got %d", len(txs))
	}
}

func TestCachedBackendRefreshesCache(t *testing.T) {
	ctx := context.Background()
	remote, cached := newCachedFixture(t)

	created := time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)
	first := domain.Transaction{ID: domain.TransactionID(created), Merchant: "First", Amount: "1.00", OccurredAt: created, CreatedAt: created}
	if err := remote.AppendTransaction(ctx, first); err != nil {
		t.Fatal(err)
	}
	if _, err := cached.Transactions(ctx); err != nil {
		t.Fatal(err)
	}

	second := domain.Transaction{ID: domain.TransactionID(created.Add(time.Hour)), Merchant: "Second", Amount: "2.00", OccurredAt: created, CreatedAt: created.Add(time.Hour)}
	if err := remote.AppendTransaction(ctx, second); err != nil {
		t.Fatal(err)
	}
	if _, err := cached.Transactions(ctx); err != nil {
		t.Fatal(err)
	}

	// The refreshed cache now includes both rows.
	remote.failReads = true
	txs, err := cached.Transactions(ctx)
	if err != nil || len(txs) != 2 {
		t.Fatalf("refreshed cache read: err=%v n=%d want 2", err, len(txs))
	}
}

func TestCachedBackendWritesPassThrough(t *testing.T) {
	ctx := context.Background()
	remote, cached := newCachedFixture(t)

	created := time.Now().UTC()
	tx := domain.Transaction{ID: domain.TransactionID(created), Merchant: "Direct", Amount: "3.00", OccurredAt: created, CreatedAt: created}
	if err := cached.AppendTransaction(ctx, tx); err != nil {
		t.Fatalf("AppendTransaction: %v", err)
	}
	txs, err := remote.LocalBackend.Transactions(ctx)
	if err != nil || len(txs) != 1 {
		t.Fatalf("remote after write: err=%v n=%d", err, len(txs))
	}
}
