package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/evergreenhq/evergreen/internal/gemini"
	"github.com/evergreenhq/evergreen/internal/retrieval"
)

// Roadmap tool kinds.
const (
	KindSearchRoadmap Kind = "search_roadmap"
	KindRoadmapStats  Kind = "get_roadmap_statistics"
)

const defaultSearchResults = 5

const roadmapSystemPrompt = `You are a Microsoft 365 Roadmap expert assistant. Your role is to help users find information about upcoming and released features in the Microsoft 365 ecosystem.

You have access to the following tools:
- search_roadmap: Search for roadmap items by query
- get_roadmap_statistics: Get statistics about the roadmap database

When a user asks about M365 features, updates, or the roadmap, use the appropriate tool to find relevant information. Provide clear, helpful summaries of the results.

If you don't find relevant results, suggest alternative search terms or ask the user to clarify their question.`

// RoadmapSearcher ranks roadmap items by semantic similarity.
// *retrieval.Retriever satisfies it.
type RoadmapSearcher interface {
	Search(ctx context.Context, query string, topK int, filters []string) ([]retrieval.ScoredItem, error)
}

// RoadmapCounter reports corpus size. *storage.Store satisfies it.
type RoadmapCounter interface {
	CountRoadmapItems() (int, error)
}

// NewRoadmapAgent builds the conversation loop for roadmap questions. It is
// read-only with respect to roadmap content.
func NewRoadmapAgent(start ChatStarter, searcher RoadmapSearcher, counter RoadmapCounter, maxTurns int, logger *slog.Logger) *Agent {
	return newAgent("roadmap",
		func() ChatSession { return start(roadmapSystemPrompt, RoadmapTools()) },
		newRoadmapDispatcher(searcher, counter),
		maxTurns, logger)
}

// RoadmapTools declares the roadmap domain's tool set for the model.
func RoadmapTools() []gemini.Tool {
	return []gemini.Tool{{FunctionDeclarations: []gemini.FunctionDeclaration{
		{
			Name:        string(KindSearchRoadmap),
			Description: "Search the Microsoft 365 Roadmap for features, updates, or changes. Use this to find information about upcoming or released M365 features.",
			Parameters: objectSchema([]string{"query"}, map[string]*gemini.Schema{
				"query":       stringParam("The search query for finding roadmap items"),
				"num_results": intParam("Number of results to return (default 5)"),
			}),
		},
		{
			Name:        string(KindRoadmapStats),
			Description: "Get statistics about the roadmap database, including the total number of items.",
			Parameters:  objectSchema(nil, map[string]*gemini.Schema{}),
		},
	}}}
}

func newRoadmapDispatcher(searcher RoadmapSearcher, counter RoadmapCounter) *Dispatcher {
	return NewDispatcher(map[Kind]Handler{
		KindSearchRoadmap: searchRoadmapHandler(searcher),
		KindRoadmapStats:  roadmapStatsHandler(counter),
	})
}

func searchRoadmapHandler(searcher RoadmapSearcher) Handler {
	return func(ctx context.Context, args Args) string {
		query := args.String("query")
		if query == "" {
			return "✗ A search query is required."
		}
		numResults := defaultSearchResults
		if n, ok := args.Int("num_results"); ok && n > 0 {
			numResults = int(n)
		}

		results, err := searcher.Search(ctx, query, numResults, nil)
		if err != nil {
			return fmt.Sprintf("✗ Error searching roadmap: %v", err)
		}
		return formatSearchResults(results)
	}
}

func formatSearchResults(results []retrieval.ScoredItem) string {
	if len(results) == 0 {
		return "No roadmap items found matching your query."
	}

	var out []string
	for i, r := range results {
		releaseDate := r.Item.ReleaseDate
		if releaseDate == "" {
			releaseDate = "TBD"
		}
		out = append(out, fmt.Sprintf(`**%d. %s**
- Status: %s
- Release Date: %s
- Products: %s
- Platforms: %s`, i+1, r.Item.Title, valueOr(r.Item.Status, "Unknown"), releaseDate,
			valueOr(r.Item.Products, "N/A"), valueOr(r.Item.Platforms, "N/A")))
	}
	return strings.Join(out, "\n\n")
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func roadmapStatsHandler(counter RoadmapCounter) Handler {
	return func(ctx context.Context, args Args) string {
		count, err := counter.CountRoadmapItems()
		if err != nil {
			return fmt.Sprintf("✗ Error reading roadmap statistics: %v", err)
		}
		return fmt.Sprintf("The roadmap database contains %d items.", count)
	}
}
