package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/evergreenhq/evergreen/internal/gemini"
	"github.com/evergreenhq/evergreen/internal/ingest"
	"github.com/evergreenhq/evergreen/internal/storage"
)

// Orchestrator tool kinds: routes to the domain loops plus the data refresh.
const (
	KindRouteRoadmap  Kind = "route_to_roadmap_agent"
	KindRouteCustomer Kind = "route_to_customer_agent"
	KindRouteImpact   Kind = "route_to_impact_agent"
	KindRefreshData   Kind = "refresh_roadmap_data"
)

const orchestratorSystemPrompt = `You are the Evergreen Multi-Agent Orchestrator. You help users interact with Microsoft 365 roadmap data and customer information.

You manage three specialized agents:
1. **Roadmap Agent**: For questions about M365 features, updates, and roadmap items
2. **Customer Agent**: For managing customer data (add, view, update, delete customers)
3. **Impact Agent**: For analyzing how roadmap changes affect specific customers

Route user requests to the appropriate agent based on their intent:
- Questions about "what's new in Teams/Copilot/etc" → Roadmap Agent
- "Add customer", "list customers", "update customer" → Customer Agent
- "How does this affect [customer]", "impact analysis" → Impact Agent
- "Refresh/update roadmap data" → Use refresh_roadmap_data

Always pass the complete context of the user's question to the sub-agent. Summarize the sub-agent's response clearly for the user.

If the user's intent is unclear, ask for clarification before routing.`

// Refresher triggers a roadmap ingestion run. *ingest.Pipeline satisfies it.
type Refresher interface {
	Run(ctx context.Context, fullSync bool) ingest.Result
}

// Deps is the explicit context object for the orchestrator and its
// sub-agents, constructed once at process start. There are no lazy global
// instances; every loop receives its collaborators from here.
type Deps struct {
	Start     ChatStarter
	Store     *storage.Store
	Searcher  RoadmapSearcher
	Refresher Refresher
	MaxTurns  int
	Logger    *slog.Logger
}

// NewOrchestrator builds the top-level conversation loop. Its tools are
// routes to the domain loops, so composition happens entirely inside its
// dispatcher: each route handler runs a sub-loop to completion and hands the
// sub-agent's answer back to the orchestrating model as a tool result.
func NewOrchestrator(deps Deps) *Agent {
	return newAgent("orchestrator",
		func() ChatSession { return deps.Start(orchestratorSystemPrompt, OrchestratorTools()) },
		newOrchestratorDispatcher(deps),
		deps.MaxTurns, deps.Logger)
}

// OrchestratorTools declares the routing tool set for the model.
func OrchestratorTools() []gemini.Tool {
	return []gemini.Tool{{FunctionDeclarations: []gemini.FunctionDeclaration{
		{
			Name:        string(KindRouteRoadmap),
			Description: "Route to the Roadmap Agent for questions about Microsoft 365 roadmap, features, updates, and upcoming changes.",
			Parameters: objectSchema([]string{"query"}, map[string]*gemini.Schema{
				"query": stringParam("The user's question about the roadmap"),
			}),
		},
		{
			Name:        string(KindRouteCustomer),
			Description: "Route to the Customer Agent for managing customers - adding, viewing, updating, or deleting customer records.",
			Parameters: objectSchema([]string{"query"}, map[string]*gemini.Schema{
				"query": stringParam("The user's request about customers"),
			}),
		},
		{
			Name:        string(KindRouteImpact),
			Description: "Route to the Impact Agent for analyzing how roadmap changes affect specific customers or for impact reports.",
			Parameters: objectSchema([]string{"query"}, map[string]*gemini.Schema{
				"query": stringParam("The user's question about impact analysis"),
			}),
		},
		{
			Name:        string(KindRefreshData),
			Description: "Refresh the roadmap database by fetching latest data from the M365 API.",
			Parameters:  objectSchema(nil, map[string]*gemini.Schema{}),
		},
	}}}
}

func newOrchestratorDispatcher(deps Deps) *Dispatcher {
	return NewDispatcher(map[Kind]Handler{
		KindRouteRoadmap: routeHandler(func() *Agent {
			return NewRoadmapAgent(deps.Start, deps.Searcher, deps.Store, deps.MaxTurns, deps.Logger)
		}),
		KindRouteCustomer: routeHandler(func() *Agent {
			return NewCustomerAgent(deps.Start, deps.Store, deps.MaxTurns, deps.Logger)
		}),
		KindRouteImpact: routeHandler(func() *Agent {
			return NewImpactAgent(deps.Start, deps.Store, deps.Searcher, deps.MaxTurns, deps.Logger)
		}),
		KindRefreshData: refreshHandler(deps.Refresher),
	})
}

// routeHandler delegates a query to a freshly constructed sub-agent. Each
// routed query gets its own sub-conversation; sub-agent turns are not mixed
// into the orchestrator's history.
func routeHandler(build func() *Agent) Handler {
	return func(ctx context.Context, args Args) string {
		query := args.String("query")
		sub := build()
		answer, err := sub.Query(ctx, query)
		if err != nil {
			return fmt.Sprintf("✗ The %s agent failed to answer: %v", sub.name, err)
		}
		return answer
	}
}

func refreshHandler(refresher Refresher) Handler {
	return func(ctx context.Context, args Args) string {
		if refresher == nil {
			return "✗ Roadmap refresh is not available."
		}
		result := refresher.Run(ctx, false)
		if !result.Success {
			return fmt.Sprintf("✗ Failed to refresh roadmap data: %s", result.Message)
		}
		return fmt.Sprintf("✓ Roadmap data refreshed. %d items ingested.", result.ItemsProcessed)
	}
}
