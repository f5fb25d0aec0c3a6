// Package api exposes the HTTP and MCP surfaces. Both are thin layers over
// the orchestrator, the document store, and the retrieval engine.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/evergreenhq/evergreen/internal/storage"
)

const maxQueryBodySize = 1 << 20 // 1MB

// Querier answers a conversational query. Each request gets a fresh
// conversation, so implementations are factories in disguise: NewAppHandler
// takes a constructor rather than a shared instance.
type Querier interface {
	Query(ctx context.Context, message string) (string, error)
}

// AppDeps holds the HTTP surface's collaborators.
type AppDeps struct {
	Store        *storage.Store
	Orchestrator func() Querier
	Logger       *slog.Logger
}

// NewAppHandler builds the REST surface: query, stats, customers, health.
func NewAppHandler(deps AppDeps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	r := chi.NewRouter()

	r.Post("/query", handleQuery(deps))
	r.Get("/stats", handleStats(deps))
	r.Get("/customers", handleCustomers(deps))
	r.Get("/health", handleHealth())

	return r
}

type queryRequest struct {
	Query string `json:"query"`
}

type queryResponse struct {
	Response string `json:"response"`
	Success  bool   `json:"success"`
}

func handleQuery(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxQueryBodySize)
		defer r.Body.Close()

		var req queryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Query == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "query is required")
			return
		}

		answer, err := deps.Orchestrator().Query(r.Context(), req.Query)
		if err != nil {
			deps.Logger.Error("query failed", "error", err)
			httpError(w, http.StatusInternalServerError, "server_error", "query failed: %v", err)
			return
		}

		writeJSON(w, http.StatusOK, queryResponse{Response: answer, Success: true})
	}
}

type statsResponse struct {
	RoadmapItems int `json:"roadmap_items"`
	Customers    int `json:"customers"`
}

func handleStats(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roadmapItems, err := deps.Store.CountRoadmapItems()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "server_error", "counting roadmap items: %v", err)
			return
		}
		customers, err := deps.Store.CountCustomers()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "server_error", "counting customers: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, statsResponse{RoadmapItems: roadmapItems, Customers: customers})
	}
}

type customerJSON struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	ProductsUsed string    `json:"products_used"`
	Priority     string    `json:"priority"`
	Notes        string    `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func handleCustomers(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customers, err := deps.Store.ListCustomers()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "server_error", "listing customers: %v", err)
			return
		}

		out := make([]customerJSON, len(customers))
		for i, c := range customers {
			out[i] = customerJSON{
				ID:           c.ID,
				Name:         c.Name,
				Description:  c.Description,
				ProductsUsed: c.ProductsUsed,
				Priority:     c.Priority,
				Notes:        c.Notes,
				CreatedAt:    c.CreatedAt,
				UpdatedAt:    c.UpdatedAt,
			}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
