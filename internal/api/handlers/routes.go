package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/dvloznov/mailspend/internal/api/middleware"
)

// NewRouter assembles the API routes. Middleware is applied by the caller.
func NewRouter(tx *TransactionsHandler, rev *ReviewHandler, cfg *ConfigHandler, rep *ReportsHandler, ing *IngestHandler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/transactions", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			tx.ListTransactions(w, r)
		case http.MethodPost:
			tx.CreateTransaction(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/transactions/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/api/transactions/")
		if id == "" || strings.Contains(id, "/") {
			middleware.WriteError(w, http.StatusBadRequest, "Transaction ID is required")
			return
		}
		switch r.Method {
		case http.MethodPut:
			tx.UpdateTransaction(w, r, id)
		case http.MethodDelete:
			tx.DeleteTransaction(w, r, id)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/review", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			rev.Pending(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/review/next", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			rev.Next(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/review/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		rest := strings.TrimPrefix(r.URL.Path, "/api/review/")
		switch {
		case strings.HasSuffix(rest, "/approve"):
			rev.Approve(w, r, strings.TrimSuffix(rest, "/approve"))
		case strings.HasSuffix(rest, "/reject"):
			rev.Reject(w, r, strings.TrimSuffix(rest, "/reject"))
		default:
			middleware.WriteError(w, http.StatusNotFound, "Unknown review action")
		}
	})

	mux.HandleFunc("/api/reports/summary", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			rep.Summary(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/categories", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			cfg.ListCategories(w, r)
		case http.MethodPut:
			cfg.PutCategories(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/payment-methods", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			cfg.ListPaymentMethods(w, r)
		case http.MethodPut:
			cfg.PutPaymentMethods(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/keywords", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			cfg.ListKeywords(w, r)
		case http.MethodPut:
			cfg.PutKeywords(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/ingest/run", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			ing.Run(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return mux
}
