package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/evergreenhq/evergreen/internal/gemini"
	"github.com/evergreenhq/evergreen/internal/storage"
)

// Impact tool kinds.
const (
	KindAnalyzeImpact     Kind = "analyze_customer_impact"
	KindHighImpactChanges Kind = "get_high_impact_changes"
)

const impactSystemPrompt = `You are an impact analysis specialist for Microsoft 365 roadmap changes. Your role is to help users understand how upcoming M365 features and changes will affect their customers.

You have access to the following tools:
- analyze_customer_impact: Analyze impact for a specific customer
- get_high_impact_changes: Get overview of high-impact changes across all customers

When analyzing impact:
1. Consider the customer's current product usage
2. Identify relevant upcoming changes
3. Explain the potential impact (positive and negative)
4. Suggest preparation steps if needed

Help users prioritize their attention on the most impactful changes for their customer base.`

// NewImpactAgent builds the conversation loop for impact analysis. It reads
// customers and roadmap items but writes neither.
func NewImpactAgent(start ChatStarter, store *storage.Store, searcher RoadmapSearcher, maxTurns int, logger *slog.Logger) *Agent {
	return newAgent("impact",
		func() ChatSession { return start(impactSystemPrompt, ImpactTools()) },
		newImpactDispatcher(store, searcher),
		maxTurns, logger)
}

// ImpactTools declares the impact domain's tool set for the model.
func ImpactTools() []gemini.Tool {
	return []gemini.Tool{{FunctionDeclarations: []gemini.FunctionDeclaration{
		{
			Name:        string(KindAnalyzeImpact),
			Description: "Analyze how upcoming M365 roadmap changes affect a specific customer based on their product usage.",
			Parameters: objectSchema(nil, map[string]*gemini.Schema{
				"customer_id":   intParam("Customer ID"),
				"customer_name": stringParam("Customer name"),
			}),
		},
		{
			Name:        string(KindHighImpactChanges),
			Description: "Get an overview of high-impact roadmap changes across all customers.",
			Parameters:  objectSchema(nil, map[string]*gemini.Schema{}),
		},
	}}}
}

func newImpactDispatcher(store *storage.Store, searcher RoadmapSearcher) *Dispatcher {
	return NewDispatcher(map[Kind]Handler{
		KindAnalyzeImpact:     analyzeImpactHandler(store, searcher),
		KindHighImpactChanges: highImpactHandler(store, searcher),
	})
}

func analyzeImpactHandler(store *storage.Store, searcher RoadmapSearcher) Handler {
	return func(ctx context.Context, args Args) string {
		customer, err := lookupCustomer(store, args)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return "Customer not found. Please provide a valid customer ID or name."
			}
			return fmt.Sprintf("✗ Error looking up customer: %v", err)
		}
		if customer == nil {
			return "Customer not found. Please provide a valid customer ID or name."
		}

		products := splitProducts(customer.ProductsUsed)

		type impact struct {
			product, title, status, releaseDate string
		}
		var impacts []impact
		for _, product := range products {
			results, err := searcher.Search(ctx, product, 3, nil)
			if err != nil {
				return fmt.Sprintf("✗ Error searching roadmap for %s: %v", product, err)
			}
			for _, r := range results {
				impacts = append(impacts, impact{
					product:     product,
					title:       valueOr(r.Item.Title, "Unknown"),
					status:      valueOr(r.Item.Status, "Unknown"),
					releaseDate: valueOr(r.Item.ReleaseDate, "TBD"),
				})
			}
		}

		if len(impacts) == 0 {
			return fmt.Sprintf("No upcoming changes found affecting %s's products (%s).", customer.Name, customer.ProductsUsed)
		}

		out := []string{
			fmt.Sprintf("## Impact Analysis for %s\n", customer.Name),
			fmt.Sprintf("**Products Used:** %s", customer.ProductsUsed),
			fmt.Sprintf("**Priority:** %s\n", customer.Priority),
			"### Relevant Roadmap Changes:\n",
		}
		for i, im := range impacts {
			out = append(out, fmt.Sprintf("**%d. %s**\n- Related Product: %s\n- Status: %s\n- Expected: %s\n",
				i+1, im.title, im.product, im.status, im.releaseDate))
		}
		return strings.Join(out, "\n")
	}
}

func highImpactHandler(store *storage.Store, searcher RoadmapSearcher) Handler {
	return func(ctx context.Context, args Args) string {
		customers, err := store.ListCustomers()
		if err != nil {
			return fmt.Sprintf("✗ Error listing customers: %v", err)
		}
		if len(customers) == 0 {
			return "No customers in the database to analyze."
		}

		// Products of high-priority customers, falling back to everyone's.
		products := collectProducts(customers, true)
		if len(products) == 0 {
			products = collectProducts(customers, false)
		}

		out := []string{"## High Impact Changes Overview\n"}
		if len(products) > 5 {
			products = products[:5]
		}
		for _, product := range products {
			results, err := searcher.Search(ctx, product, 2, nil)
			if err != nil {
				return fmt.Sprintf("✗ Error searching roadmap for %s: %v", product, err)
			}
			if len(results) == 0 {
				continue
			}
			out = append(out, "### "+product)
			for _, r := range results {
				out = append(out, fmt.Sprintf("- %s (%s)", valueOr(r.Item.Title, "Unknown"), valueOr(r.Item.Status, "Unknown")))
			}
			out = append(out, "")
		}
		return strings.Join(out, "\n")
	}
}

// collectProducts gathers the distinct products used by customers,
// optionally restricted to high priority, preserving first-seen order.
func collectProducts(customers []storage.Customer, highOnly bool) []string {
	seen := make(map[string]bool)
	var products []string
	for _, c := range customers {
		if highOnly && c.Priority != storage.PriorityHigh {
			continue
		}
		for _, p := range splitProducts(c.ProductsUsed) {
			if !seen[p] {
				seen[p] = true
				products = append(products, p)
			}
		}
	}
	return products
}

func splitProducts(s string) []string {
	var products []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			products = append(products, p)
		}
	}
	return products
}
