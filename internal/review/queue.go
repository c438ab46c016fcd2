// Package review holds the manual review queue: transactions the
// ingestion pipeline was not confident enough to complete on its own.
package review

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dvloznov/mailspend/internal/domain"
)

// Gate applies the review verdict. Implemented by ingest.ApprovalGate.
type Gate interface {
	Approve(ctx context.Context, id, method string, promote bool) (domain.Transaction, error)
	Reject(ctx context.Context, id string) (domain.Transaction, error)
}

// TransactionSource reads the current ledger. The queue reloads from it
// after every verdict; a concurrent writer may reorder the queue between
// reloads, which is acceptable for a single-user review flow.
type TransactionSource interface {
	Transactions(ctx context.Context) ([]domain.Transaction, error)
}

// Queue serves pending transactions one at a time.
type Queue struct {
	store TransactionSource
	gate  Gate
	log   zerolog.Logger

	mu      sync.Mutex
	pending []domain.Transaction
	loaded  bool
}

func NewQueue(store TransactionSource, gate Gate, log zerolog.Logger) *Queue {
	return &Queue{
		store: store,
		gate:  gate,
		log:   log.With().Str("component", "review").Logger(),
	}
}

// Next returns the oldest pending transaction, or false when the queue is
// empty. The item stays in the queue until a verdict is applied.
func (q *Queue) Next(ctx context.Context) (domain.Transaction, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.loaded {
		if err := q.reload(ctx); err != nil {
			return domain.Transaction{}, false, fmt.Errorf("Queue.Next: %w", err)
		}
	}
	if len(q.pending) == 0 {
		return domain.Transaction{}, false, nil
	}
	return q.pending[0], true, nil
}

// Pending returns a snapshot of the queue contents.
func (q *Queue) Pending(ctx context.Context) ([]domain.Transaction, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.reload(ctx); err != nil {
		return nil, fmt.Errorf("Queue.Pending: %w", err)
	}
	out := make([]domain.Transaction, len(q.pending))
	copy(out, q.pending)
	return out, nil
}

// Approve completes the transaction and reloads the queue.
func (q *Queue) Approve(ctx context.Context, id, method string, promote bool) (domain.Transaction, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	tx, err := q.gate.Approve(ctx, id, method, promote)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("Queue.Approve: %w", err)
	}
	if err := q.reload(ctx); err != nil {
		q.log.Warn().Err(err).Msg("queue reload failed after approve")
	}
	return tx, nil
}

// Reject marks the transaction rejected and reloads the queue.
func (q *Queue) Reject(ctx context.Context, id string) (domain.Transaction, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	tx, err := q.gate.Reject(ctx, id)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("Queue.Reject: %w", err)
	}
	if err := q.reload(ctx); err != nil {
		q.log.Warn().Err(err).Msg("queue reload failed after reject")
	}
	return tx, nil
}

// reload replaces the queue with the store's current pending transactions,
// oldest first. Caller holds the mutex.
func (q *Queue) reload(ctx context.Context) error {
	txs, err := q.store.Transactions(ctx)
	if err != nil {
		return fmt.Errorf("load transactions: %w", err)
	}
	pending := pending(txs)
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	q.pending = pending
	q.loaded = true
	return nil
}

func pending(txs []domain.Transaction) []domain.Transaction {
	var out []domain.Transaction
	for _, tx := range txs {
		if tx.Status == domain.StatusPending {
			out = append(out, tx)
		}
	}
	return out
}
