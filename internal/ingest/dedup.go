// Package ingest runs the notification-to-transaction pipeline: fetch
// candidate messages, parse them, drop duplicates, and route each survivor
// either straight to the ledger or into the review queue.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/mailspend/internal/domain"
)

// DedupGuard rejects candidates that match an already stored transaction
// on merchant, amount string, and calendar day. Rejected transactions
// count too: a candidate the user already turned down must not resurface.
type DedupGuard struct {
	store TransactionSource
}

// TransactionSource is the read slice of the backend the guard needs.
type TransactionSource interface {
	Transactions(ctx context.Context) ([]domain.Transaction, error)
}

func NewDedupGuard(store TransactionSource) *DedupGuard {
	return &DedupGuard{store: store}
}

// IsDuplicate reports whether cand matches any stored transaction. The
// amount comparison is on the normalized string, so "14.5" and "14.50"
// are distinct only if normalization let them through that way.
func (g *DedupGuard) IsDuplicate(ctx context.Context, cand *domain.ParsedTransaction) (bool, error) {
	existing, err := g.store.Transactions(ctx)
	if err != nil {
		return false, fmt.Errorf("DedupGuard.IsDuplicate: load transactions: %w", err)
	}
	key := dedupKey(cand.Merchant, cand.Amount, cand.OccurredAt)
	for _, tx := range existing {
		if dedupKey(tx.Merchant, tx.Amount, tx.OccurredAt) == key {
			return true, nil
		}
	}
	return false, nil
}

// dedupKey is the identity a candidate is deduplicated on: merchant plus
// normalized amount string plus calendar day.
func dedupKey(merchant, amount string, when time.Time) string {
	return merchant + "\x00" + amount + "\x00" + when.Format(domain.DayFormat)
}
