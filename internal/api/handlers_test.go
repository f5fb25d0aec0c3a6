package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/evergreenhq/evergreen/internal/storage"
)

type fakeQuerier struct {
	gotMessage string
	answer     string
	err        error
}

func (f *fakeQuerier) Query(ctx context.Context, message string) (string, error) {
	f.gotMessage = message
	return f.answer, f.err
}

func newTestHandler(t *testing.T, querier *fakeQuerier) (http.Handler, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	h := NewAppHandler(AppDeps{
		Store:        store,
		Orchestrator: func() Querier { return querier },
	})
	return h, store
}

func TestHandleQuery(t *testing.T) {
	querier := &fakeQuerier{answer: "Teams is getting Copilot summaries."}
	h, _ := newTestHandler(t, querier)

	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{"query": "what's new in Teams?"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Response string `json:"response"`
		Success  bool   `json:"success"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !resp.Success || resp.Response != "Teams is getting Copilot summaries." {
		t.Errorf("response = %+v", resp)
	}
	if querier.gotMessage != "what's new in Teams?" {
		t.Errorf("message passed = %q", querier.gotMessage)
	}
}

func TestHandleQueryBadRequests(t *testing.T) {
	h, _ := newTestHandler(t, &fakeQuerier{})

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"empty query", `{"query": ""}`},
		{"missing query", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			var resp struct {
				Error struct {
					Message string `json:"message"`
					Type    string `json:"type"`
				} `json:"error"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decoding error body: %v", err)
			}
			if resp.Error.Type != "invalid_request_error" {
				t.Errorf("error type = %q", resp.Error.Type)
			}
		})
	}
}

func TestHandleQueryOrchestratorError(t *testing.T) {
	h, _ := newTestHandler(t, &fakeQuerier{err: errors.New("model unavailable")})

	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{"query": "hi"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestHandleStats(t *testing.T) {
	h, store := newTestHandler(t, &fakeQuerier{})
	store.UpsertRoadmapItem(storage.RoadmapItem{ID: 1, Title: "a"})
	store.UpsertRoadmapItem(storage.RoadmapItem{ID: 2, Title: "b"})
	store.AddCustomer(storage.Customer{Name: "Contoso"})

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		RoadmapItems int `json:"roadmap_items"`
		Customers    int `json:"customers"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.RoadmapItems != 2 || resp.Customers != 1 {
		t.Errorf("stats = %+v", resp)
	}
}

func TestHandleCustomers(t *testing.T) {
	h, store := newTestHandler(t, &fakeQuerier{})
	store.AddCustomer(storage.Customer{Name: "Contoso", ProductsUsed: "Teams", Priority: storage.PriorityHigh})

	req := httptest.NewRequest(http.MethodGet, "/customers", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var customers []struct {
		ID           int64  `json:"id"`
		Name         string `json:"name"`
		ProductsUsed string `json:"products_used"`
		Priority     string `json:"priority"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&customers); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(customers) != 1 || customers[0].Name != "Contoso" || customers[0].Priority != "high" {
		t.Errorf("customers = %+v", customers)
	}
}

func TestHandleHealth(t *testing.T) {
	h, _ := newTestHandler(t, &fakeQuerier{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "healthy") {
		t.Errorf("body = %s", rec.Body.String())
	}
}
