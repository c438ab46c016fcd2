package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/mailspend/internal/api/middleware"
	"github.com/dvloznov/mailspend/internal/review"
	"github.com/dvloznov/mailspend/internal/store"
)

// ReviewHandler exposes the manual review queue.
type ReviewHandler struct {
	queue *review.Queue
	log   zerolog.Logger
}

func NewReviewHandler(queue *review.Queue, log zerolog.Logger) *ReviewHandler {
	return &ReviewHandler{queue: queue, log: log}
}

// Next handles GET /api/review/next.
func (h *ReviewHandler) Next(w http.ResponseWriter, r *http.Request) {
	tx, ok, err := h.queue.Next(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read review queue")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to read review queue")
		return
	}
	if !ok {
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"empty": true})
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"empty": false, "transaction": tx})
}

// Pending handles GET /api/review.
func (h *ReviewHandler) Pending(w http.ResponseWriter, r *http.Request) {
	txs, err := h.queue.Pending(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read review queue")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to read review queue")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"count":        len(txs),
	})
}

// Approve handles POST /api/review/:id/approve.
func (h *ReviewHandler) Approve(w http.ResponseWriter, r *http.Request, id string) {
	var req struct {
		PaymentMethod  string `json:"payment_method"`
		RememberSender bool   `json:"remember_sender"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	tx, err := h.queue.Approve(r.Context(), id, req.PaymentMethod, req.RememberSender)
	if err != nil {
		h.writeVerdictError(w, id, "Approve failed", err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, tx)
}

// Reject handles POST /api/review/:id/reject.
func (h *ReviewHandler) Reject(w http.ResponseWriter, r *http.Request, id string) {
	tx, err := h.queue.Reject(r.Context(), id)
	if err != nil {
		h.writeVerdictError(w, id, "Reject failed", err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, tx)
}

// writeVerdictError maps a verdict failure to a status: a missing
// transaction is the caller's mistake, anything else is a storage fault.
func (h *ReviewHandler) writeVerdictError(w http.ResponseWriter, id, action string, err error) {
	h.log.Error().Err(err).Str("transaction_id", id).Msg(action)
	if errors.Is(err, store.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Transaction not found")
		return
	}
	middleware.WriteError(w, http.StatusInternalServerError, "Failed to apply review verdict")
}
