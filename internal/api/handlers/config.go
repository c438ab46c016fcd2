package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/mailspend/internal/api/middleware"
	"github.com/dvloznov/mailspend/internal/domain"
	"github.com/dvloznov/mailspend/internal/store"
)

// ConfigHandler serves the reference collections: categories, payment
// methods, and search keywords. PUT replaces the whole collection, which
// matches how the presentation layer edits them.
type ConfigHandler struct {
	store store.Backend
	log   zerolog.Logger
}

func NewConfigHandler(backend store.Backend, log zerolog.Logger) *ConfigHandler {
	return &ConfigHandler{store: backend, log: log}
}

// ListCategories handles GET /api/categories.
func (h *ConfigHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.store.Categories(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list categories")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list categories")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": cats,
		"count":      len(cats),
	})
}

// PutCategories handles PUT /api/categories.
func (h *ConfigHandler) PutCategories(w http.ResponseWriter, r *http.Request) {
	var cats []domain.Category
	if err := json.NewDecoder(r.Body).Decode(&cats); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	for i := range cats {
		if cats[i].Name == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Category name is required")
			return
		}
		if cats[i].ID == "" {
			cats[i].ID = uuid.NewString()
		}
	}
	if err := h.store.PutCategories(r.Context(), cats); err != nil {
		h.log.Error().Err(err).Msg("Failed to store categories")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to store categories")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]int{"count": len(cats)})
}

// ListPaymentMethods handles GET /api/payment-methods.
func (h *ConfigHandler) ListPaymentMethods(w http.ResponseWriter, r *http.Request) {
	pms, err := h.store.PaymentMethods(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list payment methods")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list payment methods")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"payment_methods": pms,
		"count":           len(pms),
	})
}

// PutPaymentMethods handles PUT /api/payment-methods.
func (h *ConfigHandler) PutPaymentMethods(w http.ResponseWriter, r *http.Request) {
	var pms []domain.PaymentMethod
	if err := json.NewDecoder(r.Body).Decode(&pms); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	for i := range pms {
		if pms[i].Name == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Payment method name is required")
			return
		}
		if pms[i].ID == "" {
			pms[i].ID = uuid.NewString()
		}
	}
	if err := h.store.PutPaymentMethods(r.Context(), pms); err != nil {
		h.log.Error().Err(err).Msg("Failed to store payment methods")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to store payment methods")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]int{"count": len(pms)})
}

// ListKeywords handles GET /api/keywords.
func (h *ConfigHandler) ListKeywords(w http.ResponseWriter, r *http.Request) {
	kws, err := h.store.Keywords(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list keywords")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list keywords")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"keywords": kws,
		"count":    len(kws),
	})
}

// PutKeywords handles PUT /api/keywords.
func (h *ConfigHandler) PutKeywords(w http.ResponseWriter, r *http.Request) {
	var kws []domain.Keyword
	if err := json.NewDecoder(r.Body).Decode(&kws); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	for i := range kws {
		if kws[i].Text == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Keyword text is required")
			return
		}
		if kws[i].ID == "" {
			kws[i].ID = uuid.NewString()
		}
	}
	if err := h.store.PutKeywords(r.Context(), kws); err != nil {
		h.log.Error().Err(err).Msg("Failed to store keywords")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to store keywords")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]int{"count": len(kws)})
}
