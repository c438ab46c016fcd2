package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/mailspend/internal/domain"
	"github.com/dvloznov/mailspend/internal/store"
)

// fallbackPaymentMethod is used when an approved sender's remembered
// payment method no longer exists in the configured list.
const fallbackPaymentMethod = "Other"

// GateStore is the slice of the backend the approval gate needs.
type GateStore interface {
	Transactions(ctx context.Context) ([]domain.Transaction, error)
	AppendTransaction(ctx context.Context, tx domain.Transaction) error
	UpdateTransaction(ctx context.Context, tx domain.Transaction) error
	PaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error)
	ApprovedSenders(ctx context.Context) ([]domain.ApprovedSender, error)
	AppendApprovedSender(ctx context.Context, sender domain.ApprovedSender) error
}

// ApprovalGate decides whether a parsed candidate is trusted enough to
// enter the ledger directly. Candidates from approved senders with a
// high-confidence parse are completed immediately with the sender's
// remembered category; everything else is persisted as pending and waits
// for manual review.
type ApprovalGate struct {
	store GateStore
	log   zerolog.Logger
	now   func() time.Time
}

func NewApprovalGate(store GateStore, log zerolog.Logger) *ApprovalGate {
	return &ApprovalGate{
		store: store,
		log:   log.With().Str("component", "approval").Logger(),
		now:   time.Now,
	}
}

// Route persists cand and returns the stored transaction. A low-confidence
// parse always lands in review, even when the sender is approved.
func (g *ApprovalGate) Route(ctx context.Context, cand *domain.ParsedTransaction) (domain.Transaction, error) {
	createdAt := g.now().UTC()
	tx := domain.Transaction{
		ID:            domain.TransactionID(createdAt),
		Merchant:      cand.Merchant,
		Amount:        cand.Amount,
		Category:      cand.Category,
		PaymentMethod: cand.PaymentMethod,
		OccurredAt:    cand.OccurredAt,
		Type:          domain.TypeExpense,
		Status:        domain.StatusPending,
		RawMessage:    cand.RawBody,
		Sender:        cand.Sender,
		CreatedAt:     createdAt,
	}

	approval, approved := g.lookupSender(ctx, cand.Sender)
	if approved && cand.Confidence == domain.ConfidenceHigh {
		tx.Status = domain.StatusCompleted
		tx.Category = approval.Category
		tx.PaymentMethod = g.resolvePaymentMethod(ctx, approval.PaymentMethod)
	}

	if err := g.store.AppendTransaction(ctx, tx); err != nil {
		return domain.Transaction{}, fmt.Errorf("ApprovalGate.Route: persist: %w", err)
	}
	g.log.Info().
		Str("transaction_id", tx.ID).
		Str("merchant", tx.Merchant).
		Str("status", string(tx.Status)).
		Msg("routed candidate")
	return tx, nil
}

// Approve marks a pending transaction completed. method overrides the
// payment method when non-empty. When promote is set, the sender is added
// to the approved list so future notifications skip review.
func (g *ApprovalGate) Approve(ctx context.Context, id, method string, promote bool) (domain.Transaction, error) {
	tx, err := g.findTransaction(ctx, id)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("ApprovalGate.Approve: %w", err)
	}
	tx.Status = domain.StatusCompleted
	if method != "" {
		tx.PaymentMethod = method
	}
	if err := g.store.UpdateTransaction(ctx, tx); err != nil {
		return domain.Transaction{}, fmt.Errorf("ApprovalGate.Approve: update: %w", err)
	}
	if promote && tx.Sender != "" {
		sender := domain.ApprovedSender{
			Sender:        tx.Sender,
			PaymentMethod: tx.PaymentMethod,
			Category:      tx.Category,
		}
		if err := g.store.AppendApprovedSender(ctx, sender); err != nil {
			g.log.Warn().Err(err).Str("sender", tx.Sender).Msg("sender promotion failed")
		}
	}
	return tx, nil
}

// Reject marks a pending transaction rejected. The row is kept so the
// dedup guard can block the same notification from resurfacing, but it is
// excluded from aggregates and views.
func (g *ApprovalGate) Reject(ctx context.Context, id string) (domain.Transaction, error) {
	tx, err := g.findTransaction(ctx, id)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("ApprovalGate.Reject: %w", err)
	}
	tx.Status = domain.StatusRejected
	if err := g.store.UpdateTransaction(ctx, tx); err != nil {
		return domain.Transaction{}, fmt.Errorf("ApprovalGate.Reject: update: %w", err)
	}
	return tx, nil
}

func (g *ApprovalGate) findTransaction(ctx context.Context, id string) (domain.Transaction, error) {
	txs, err := g.store.Transactions(ctx)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("load transactions: %w", err)
	}
	for _, tx := range txs {
		if tx.ID == id {
			return tx, nil
		}
	}
	return domain.Transaction{}, fmt.Errorf("transaction %s: %w", id, store.ErrNotFound)
}

// lookupSender matches on the bare email address so display-name changes
// in the From header do not break an existing approval.
func (g *ApprovalGate) lookupSender(ctx context.Context, sender string) (domain.ApprovedSender, bool) {
	approved, err := g.store.ApprovedSenders(ctx)
	if err != nil {
		g.log.Warn().Err(err).Msg("approved sender load failed, defaulting to review")
		return domain.ApprovedSender{}, false
	}
	addr := senderAddress(sender)
	for _, a := range approved {
		if senderAddress(a.Sender) == addr {
			return a, true
		}
	}
	return domain.ApprovedSender{}, false
}

// resolvePaymentMethod keeps a remembered method only while it still
// exists in the configured list.
func (g *ApprovalGate) resolvePaymentMethod(ctx context.Context, method string) string {
	methods, err := g.store.PaymentMethods(ctx)
	if err != nil {
		g.log.Warn().Err(err).Msg("payment method load failed")
		return fallbackPaymentMethod
	}
	for _, m := range methods {
		if strings.EqualFold(m.Name, method) {
			return method
		}
	}
	return fallbackPaymentMethod
}

// senderAddress extracts the lowercase address from a From header value
// such as "HDFC Bank <alerts@hdfcbank.net>".
func senderAddress(sender string) string {
	sender = strings.TrimSpace(sender)
	if open := strings.LastIndexByte(sender, '<'); open >= 0 {
		if close := strings.IndexByte(sender[open:], '>'); close > 0 {
			sender = sender[open+1 : open+close]
		}
	}
	return strings.ToLower(strings.TrimSpace(sender))
}
