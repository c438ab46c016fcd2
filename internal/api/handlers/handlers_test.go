package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dvloznov/mailspend/internal/domain"
	"github.com/dvloznov/mailspend/internal/ingest"
	"github.com/dvloznov/mailspend/internal/logger"
	"github.com/dvloznov/mailspend/internal/review"
	"github.com/dvloznov/mailspend/internal/store"
)

type stubRunner struct {
	state *ingest.State
	err   error
}

func (s *stubRunner) Run(context.Context) (*ingest.State, error) {
	return s.state, s.err
}

type testAPI struct {
	backend store.Backend
	mux     *http.ServeMux
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	kv, err := store.NewEncryptedKV(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewEncryptedKV: %v", err)
	}
	backend := store.NewLocalBackend(kv)
	if err := store.EnsureDefaults(context.Background(), backend); err != nil {
		t.Fatalf("EnsureDefaults: %v", err)
	}

	log := logger.New()
	gate := ingest.NewApprovalGate(backend, log)
	queue := review.NewQueue(backend, gate, log)

	mux := NewRouter(
		NewTransactionsHandler(backend, log),
		NewReviewHandler(queue, log),
		NewConfigHandler(backend, log),
		NewReportsHandler(backend, log),
		NewIngestHandler(&stubRunner{state: &ingest.State{Duplicates: 2}}, log),
	)
	return &testAPI{backend: backend, mux: mux}
}

func (a *testAPI) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	a.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestCreateAndListTransactions(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/transactions", map[string]string{
		"merchant":    "Blue Tokai",
		"amount":      "240.5",
		"occurred_at": "2024-10-24",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	var created domain.Transaction
	decodeBody(t, rec, &created)
	if created.Amount != "240.50" {
		t.Errorf("Amount = %s, want normalized 240.50", created.Amount)
	}
	if created.Status != domain.StatusCompleted {
		t.Errorf("Status = %s, manual entries are completed", created.Status)
	}
	if created.Category == "" {
		t.Error("category not defaulted")
	}

	rec = api.do(t, http.MethodGet, "/api/transactions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var list struct {
		Transactions []domain.Transaction `json:"transactions"`
		Count        int                  `json:"count"`
	}
	decodeBody(t, rec, &list)
	if list.Count != 1 || list.Transactions[0].ID != created.ID {
		t.Errorf("list = %+v", list)
	}
}

func TestCreateTransactionValidation(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name string
		body map[string]string
	}{
		{"missing merchant", map[string]string{"amount": "10"}},
		{"bad amount", map[string]string{"merchant": "X", "amount": "-5"}},
		{"bad type", map[string]string{"merchant": "X", "amount": "10", "type": "transfer"}},
		{"bad date", map[string]string{"merchant": "X", "amount": "10", "occurred_at": "24/10/2024"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := api.do(t, http.MethodPost, "/api/transactions", tt.body); rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestUpdateAndDeleteTransaction(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/transactions", map[string]string{
		"merchant": "Netflix", "amount": "199",
	})
	var created domain.Transaction
	decodeBody(t, rec, &created)

	rec = api.do(t, http.MethodPut, "/api/transactions/"+created.ID, map[string]string{
		"category": "Entertainment",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d", rec.Code)
	}
	var updated domain.Transaction
	decodeBody(t, rec, &updated)
	if updated.Category != "Entertainment" || updated.Merchant != "Netflix" {
		t.Errorf("updated = %+v", updated)
	}

	if rec = api.do(t, http.MethodDelete, "/api/transactions/"+created.ID, nil); rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if rec = api.do(t, http.MethodDelete, "/api/transactions/"+created.ID, nil); rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestUpdateUnknownTransaction(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, http.MethodPut, "/api/transactions/txn-404", map[string]string{"category": "X"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func pendingTx(id string, created time.Time) domain.Transaction {
	return domain.Transaction{
		ID: id, Merchant: "Starbucks", Amount: "450.00",
		Category: "Food & Dining", PaymentMethod: "UPI",
		Type: domain.TypeExpense, Status: domain.StatusPending,
		Sender: "noreply@gpay.example", OccurredAt: created, CreatedAt: created,
	}
}

func TestReviewFlow(t *testing.T) {
	api := newTestAPI(t)
	ctx := context.Background()
	created := time.Date(2024, 10, 24, 12, 0, 0, 0, time.UTC)
	if err := api.backend.AppendTransaction(ctx, pendingTx("txn-1", created)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec := api.do(t, http.MethodGet, "/api/review/next", nil)
	var next struct {
		Empty       bool               `json:"empty"`
		Transaction domain.Transaction `json:"transaction"`
	}
	decodeBody(t, rec, &next)
	if next.Empty || next.Transaction.ID != "txn-1" {
		t.Fatalf("next = %+v", next)
	}

	rec = api.do(t, http.MethodPost, "/api/review/txn-1/approve", map[string]interface{}{
		"payment_method":  "Cash",
		"remember_sender": true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("approve status = %d: %s", rec.Code, rec.Body.String())
	}
	var approved domain.Transaction
	decodeBody(t, rec, &approved)
	if approved.Status != domain.StatusCompleted || approved.PaymentMethod != "Cash" {
		t.Errorf("approved = %+v", approved)
	}

	senders, err := api.backend.ApprovedSenders(ctx)
	if err != nil || len(senders) != 1 {
		t.Errorf("senders = %v (err %v), want 1 entry", senders, err)
	}

	rec = api.do(t, http.MethodGet, "/api/review/next", nil)
	decodeBody(t, rec, &next)
	if !next.Empty {
		t.Errorf("queue not empty after approval")
	}
}

func TestReviewReject(t *testing.T) {
	api := newTestAPI(t)
	created := time.Date(2024, 10, 24, 12, 0, 0, 0, time.UTC)
	if err := api.backend.AppendTransaction(context.Background(), pendingTx("txn-2", created)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec := api.do(t, http.MethodPost, "/api/review/txn-2/reject", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reject status = %d", rec.Code)
	}

	// Rejected rows disappear from the transaction list.
	rec = api.do(t, http.MethodGet, "/api/transactions", nil)
	var list struct {
		Count int `json:"count"`
	}
	decodeBody(t, rec, &list)
	if list.Count != 0 {
		t.Errorf("list count = %d, want 0", list.Count)
	}
}

func TestReviewVerdictUnknownID(t *testing.T) {
	api := newTestAPI(t)
	if rec := api.do(t, http.MethodPost, "/api/review/txn-absent/approve", nil); rec.Code != http.StatusNotFound {
		t.Errorf("approve status = %d, want 404", rec.Code)
	}
	if rec := api.do(t, http.MethodPost, "/api/review/txn-absent/reject", nil); rec.Code != http.StatusNotFound {
		t.Errorf("reject status = %d, want 404", rec.Code)
	}
}

type emptyLedger struct{}

func (emptyLedger) Transactions(context.Context) ([]domain.Transaction, error) {
	return nil, nil
}

type brokenGate struct{ err error }

func (g *brokenGate) Approve(context.Context, string, string, bool) (domain.Transaction, error) {
	return domain.Transaction{}, g.err
}

func (g *brokenGate) Reject(context.Context, string) (domain.Transaction, error) {
	return domain.Transaction{}, g.err
}

func TestReviewVerdictStorageFailure(t *testing.T) {
	log := logger.New()
	queue := review.NewQueue(emptyLedger{}, &brokenGate{err: errors.New("write refused")}, log)
	h := NewReviewHandler(queue, log)

	rec := httptest.NewRecorder()
	h.Approve(rec, httptest.NewRequest(http.MethodPost, "/api/review/txn-1/approve", nil), "txn-1")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("approve status = %d, want 500", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Reject(rec, httptest.NewRequest(http.MethodPost, "/api/review/txn-1/reject", nil), "txn-1")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("reject status = %d, want 500", rec.Code)
	}
}

func TestReviewUnknownAction(t *testing.T) {
	api := newTestAPI(t)
	if rec := api.do(t, http.MethodPost, "/api/review/txn-1/archive", nil); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestReportsSummary(t *testing.T) {
	api := newTestAPI(t)
	api.do(t, http.MethodPost, "/api/transactions", map[string]string{
		"merchant": "Starbucks", "amount": "450", "category": "Food & Dining",
	})
	api.do(t, http.MethodPost, "/api/transactions", map[string]string{
		"merchant": "Acme Corp", "amount": "5000", "type": "income",
	})

	rec := api.do(t, http.MethodGet, "/api/reports/summary", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("summary status = %d", rec.Code)
	}
	var summary struct {
		TotalExpense string `json:"total_expense"`
		TotalIncome  string `json:"total_income"`
		Net          string `json:"net"`
	}
	decodeBody(t, rec, &summary)
	if summary.TotalExpense != "450.00" || summary.TotalIncome != "5000.00" || summary.Net != "4550.00" {
		t.Errorf("summary = %+v", summary)
	}
}

func TestCategoriesRoundTrip(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/api/categories", nil)
	var list struct {
		Categories []domain.Category `json:"categories"`
	}
	decodeBody(t, rec, &list)
	if len(list.Categories) == 0 {
		t.Fatal("defaults not seeded")
	}

	rec = api.do(t, http.MethodPut, "/api/categories", []domain.Category{
		{Name: "Coffee", Icon: "cup"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("put status = %d", rec.Code)
	}

	rec = api.do(t, http.MethodGet, "/api/categories", nil)
	decodeBody(t, rec, &list)
	if len(list.Categories) != 1 || list.Categories[0].Name != "Coffee" {
		t.Errorf("categories = %+v", list.Categories)
	}
	if list.Categories[0].ID == "" {
		t.Error("ID not assigned on put")
	}
}

func TestPutCategoriesValidation(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, http.MethodPut, "/api/categories", []domain.Category{{Icon: "x"}})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestIngestRun(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, http.MethodPost, "/api/ingest/run", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("run status = %d", rec.Code)
	}
	var resp struct {
		Duplicates int `json:"duplicates"`
	}
	decodeBody(t, rec, &resp)
	if resp.Duplicates != 2 {
		t.Errorf("duplicates = %d", resp.Duplicates)
	}
}

func TestIngestRunFailure(t *testing.T) {
	log := logger.New()
	mux := http.NewServeMux()
	h := NewIngestHandler(&stubRunner{err: errors.New("mailbox down")}, log)
	mux.HandleFunc("/api/ingest/run", h.Run)

	req := httptest.NewRequest(http.MethodPost, "/api/ingest/run", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	api := newTestAPI(t)
	paths := map[string]string{
		"/api/transactions":    http.MethodDelete,
		"/api/review/next":     http.MethodPost,
		"/api/reports/summary": http.MethodPost,
		"/api/keywords":        http.MethodPost,
		"/api/ingest/run":      http.MethodGet,
	}
	for path, method := range paths {
		if rec := api.do(t, method, path, nil); rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s = %d, want 405", method, path, rec.Code)
		}
	}
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
	var resp map[string]string
	decodeBody(t, rec, &resp)
	if resp["status"] != "healthy" {
		t.Errorf("status = %s", resp["status"])
	}
}
