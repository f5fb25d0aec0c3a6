package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/evergreenhq/evergreen/internal/retrieval"
	"github.com/evergreenhq/evergreen/internal/storage"
)

// MCPSearcher abstracts semantic roadmap search for the MCP layer.
type MCPSearcher interface {
	Search(ctx context.Context, query string, topK int, filters []string) ([]retrieval.ScoredItem, error)
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store    *storage.Store
	Searcher MCPSearcher
}

// NewMCPServer creates an MCP server exposing the roadmap corpus and the
// customer base to MCP clients.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"evergreen",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("evergreen provides semantic roadmap search and customer records for product roadmap intelligence."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("search_roadmap",
			mcp.WithDescription("Search the product roadmap using semantic similarity. Use this to find features, updates, or upcoming changes."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("n_results", mcp.Description("Maximum number of results (default 5)")),
		),
		mcpSearchRoadmap(deps),
	)

	s.AddTool(
		mcp.NewTool("get_customer",
			mcp.WithDescription("Get a customer record by name (partial, case-insensitive match)."),
			mcp.WithString("name", mcp.Description("Customer name"), mcp.Required()),
		),
		mcpGetCustomer(deps),
	)

	s.AddTool(
		mcp.NewTool("list_customers",
			mcp.WithDescription("List all customers with their product usage and priority."),
		),
		mcpListCustomers(deps),
	)

	s.AddTool(
		mcp.NewTool("get_roadmap_stats",
			mcp.WithDescription("Get statistics about the roadmap corpus and customer base."),
		),
		mcpRoadmapStats(deps),
	)

	return s
}

func mcpSearchRoadmap(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("n_results", 5)
		if limit <= 0 {
			limit = 5
		}

		results, err := deps.Searcher.Search(ctx, query, limit, nil)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		if len(results) == 0 {
			return mcpText("[]"), nil
		}

		type resultJSON struct {
			ID        int64   `json:"id"`
			Title     string  `json:"title"`
			Status    string  `json:"status"`
			Release   string  `json:"release_date"`
			Products  string  `json:"products"`
			Platforms string  `json:"platforms"`
			Relevance float32 `json:"relevance"`
		}
		out := make([]resultJSON, len(results))
		for i, r := range results {
			out[i] = resultJSON{
				ID:        r.Item.ID,
				Title:     r.Item.Title,
				Status:    r.Item.Status,
				Release:   r.Item.ReleaseDate,
				Products:  r.Item.Products,
				Platforms: r.Item.Platforms,
				Relevance: r.Relevance,
			}
		}

		b, err := json.Marshal(out)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGetCustomer(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := req.RequireString("name")
		if err != nil {
			return mcpError("name is required"), nil
		}

		customer, err := deps.Store.GetCustomerByName(name)
		if err == storage.ErrNotFound {
			return mcpError(fmt.Sprintf("no customer matching %q", name)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("lookup failed: %v", err)), nil
		}

		b, err := json.Marshal(map[string]any{
			"id":            customer.ID,
			"name":          customer.Name,
			"description":   customer.Description,
			"products_used": customer.ProductsUsed,
			"priority":      customer.Priority,
			"notes":         customer.Notes,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal customer: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpListCustomers(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		customers, err := deps.Store.ListCustomers()
		if err != nil {
			return mcpError(fmt.Sprintf("listing customers failed: %v", err)), nil
		}

		type customerSummary struct {
			ID           int64  `json:"id"`
			Name         string `json:"name"`
			ProductsUsed string `json:"products_used"`
			Priority     string `json:"priority"`
		}
		out := make([]customerSummary, len(customers))
		for i, c := range customers {
			out[i] = customerSummary{ID: c.ID, Name: c.Name, ProductsUsed: c.ProductsUsed, Priority: c.Priority}
		}

		b, err := json.Marshal(out)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal customers: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpRoadmapStats(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		roadmapItems, err := deps.Store.CountRoadmapItems()
		if err != nil {
			return mcpError(fmt.Sprintf("counting roadmap items failed: %v", err)), nil
		}
		customers, err := deps.Store.CountCustomers()
		if err != nil {
			return mcpError(fmt.Sprintf("counting customers failed: %v", err)), nil
		}

		b, err := json.Marshal(map[string]int{
			"roadmap_items": roadmapItems,
			"customers":     customers,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal stats: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
