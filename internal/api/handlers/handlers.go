// Package handlers implements the HTTP API surface: transactions, review
// actions, reference configuration, reports, and manual ingestion runs.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/mailspend/internal/api/middleware"
	"github.com/dvloznov/mailspend/internal/domain"
	"github.com/dvloznov/mailspend/internal/ingest"
	"github.com/dvloznov/mailspend/internal/parse"
	"github.com/dvloznov/mailspend/internal/report"
	"github.com/dvloznov/mailspend/internal/store"
)

// TransactionsHandler handles transaction CRUD endpoints.
type TransactionsHandler struct {
	store store.Backend
	log   zerolog.Logger
	now   func() time.Time
}

func NewTransactionsHandler(backend store.Backend, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{store: backend, log: log, now: time.Now}
}

// ListTransactions handles GET /api/transactions. Rejected transactions
// are excluded; ?limit=N caps the result, newest first.
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	txs, err := h.store.Transactions(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list transactions")
		return
	}

	limit := -1
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}
	visible := report.Recent(txs, limit)

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": visible,
		"count":        len(visible),
	})
}

type transactionRequest struct {
	Merchant      string `json:"merchant"`
	Amount        string `json:"amount"`
	Category      string `json:"category"`
	PaymentMethod string `json:"payment_method"`
	OccurredAt    string `json:"occurred_at"`
	Type          string `json:"type"`
	Notes         string `json:"notes"`
}

// CreateTransaction handles POST /api/transactions. Manual entries are
// trusted and stored completed.
func (h *TransactionsHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Merchant == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Merchant is required")
		return
	}

	amount, err := domain.NormalizeAmount(req.Amount)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid amount")
		return
	}

	typ := domain.TransactionType(req.Type)
	if typ == "" {
		typ = domain.TypeExpense
	}
	if typ != domain.TypeExpense && typ != domain.TypeIncome {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid transaction type")
		return
	}

	occurredAt := h.now().UTC()
	if req.OccurredAt != "" {
		occurredAt, err = time.Parse(domain.DayFormat, req.OccurredAt)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid occurred_at, want YYYY-MM-DD")
			return
		}
	}

	category := req.Category
	if category == "" {
		category = parse.Categorize(req.Merchant, req.Notes)
	}

	createdAt := h.now().UTC()
	tx := domain.Transaction{
		ID:            domain.TransactionID(createdAt),
		Merchant:      req.Merchant,
		Amount:        amount,
		Category:      category,
		PaymentMethod: req.PaymentMethod,
		OccurredAt:    occurredAt,
		Type:          typ,
		Status:        domain.StatusCompleted,
		Notes:         req.Notes,
		CreatedAt:     createdAt,
	}

	if err := h.store.AppendTransaction(ctx, tx); err != nil {
		h.log.Error().Err(err).Msg("Failed to store transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to store transaction")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, tx)
}

// UpdateTransaction handles PUT /api/transactions/:id.
func (h *TransactionsHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()

	existing, err := h.findTransaction(ctx, id)
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "Transaction not found")
		return
	}

	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Merchant != "" {
		existing.Merchant = req.Merchant
	}
	if req.Amount != "" {
		amount, err := domain.NormalizeAmount(req.Amount)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid amount")
			return
		}
		existing.Amount = amount
	}
	if req.Category != "" {
		existing.Category = req.Category
	}
	if req.PaymentMethod != "" {
		existing.PaymentMethod = req.PaymentMethod
	}
	if req.Notes != "" {
		existing.Notes = req.Notes
	}
	if req.OccurredAt != "" {
		occurredAt, err := time.Parse(domain.DayFormat, req.OccurredAt)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid occurred_at, want YYYY-MM-DD")
			return
		}
		existing.OccurredAt = occurredAt
	}

	if err := h.store.UpdateTransaction(ctx, existing); err != nil {
		h.log.Error().Err(err).Str("transaction_id", id).Msg("Failed to update transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to update transaction")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, existing)
}

// DeleteTransaction handles DELETE /api/transactions/:id.
func (h *TransactionsHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()

	if err := h.store.DeleteTransaction(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Transaction not found")
			return
		}
		h.log.Error().Err(err).Str("transaction_id", id).Msg("Failed to delete transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete transaction")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

func (h *TransactionsHandler) findTransaction(ctx context.Context, id string) (domain.Transaction, error) {
	txs, err := h.store.Transactions(ctx)
	if err != nil {
		return domain.Transaction{}, err
	}
	for _, tx := range txs {
		if tx.ID == id {
			return tx, nil
		}
	}
	return domain.Transaction{}, store.ErrNotFound
}

// ReportsHandler serves aggregate views of the ledger.
type ReportsHandler struct {
	store store.Backend
	log   zerolog.Logger
}

func NewReportsHandler(backend store.Backend, log zerolog.Logger) *ReportsHandler {
	return &ReportsHandler{store: backend, log: log}
}

// Summary handles GET /api/reports/summary.
func (h *ReportsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	txs, err := h.store.Transactions(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load transactions for summary")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to build summary")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, report.Summarize(txs))
}

// PipelineRunner runs one ingestion pass. Implemented by ingest.Pipeline.
type PipelineRunner interface {
	Run(ctx context.Context) (*ingest.State, error)
}

// IngestHandler triggers ingestion runs on demand.
type IngestHandler struct {
	pipeline PipelineRunner
	log      zerolog.Logger
}

func NewIngestHandler(pipeline PipelineRunner, log zerolog.Logger) *IngestHandler {
	return &IngestHandler{pipeline: pipeline, log: log}
}

// Run handles POST /api/ingest/run.
func (h *IngestHandler) Run(w http.ResponseWriter, r *http.Request) {
	state, err := h.pipeline.Run(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Ingestion run failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Ingestion run failed")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"messages":    len(state.Messages),
		"unparseable": state.Unparseable,
		"duplicates":  state.Duplicates,
		"stored":      state.Stored,
	})
}
