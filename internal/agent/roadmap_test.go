package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/evergreenhq/evergreen/internal/retrieval"
	"github.com/evergreenhq/evergreen/internal/storage"
)

type fakeSearcher struct {
	gotQuery string
	gotTopK  int
	results  []retrieval.ScoredItem
	err      error
}

func (f *fakeSearcher) Search(ctx context.Context, query string, topK int, filters []string) ([]retrieval.ScoredItem, error) {
	f.gotQuery = query
	f.gotTopK = topK
	return f.results, f.err
}

func scored(title, status, products string) retrieval.ScoredItem {
	return retrieval.ScoredItem{
		Item:      storage.RoadmapItem{Title: title, Status: status, Products: products},
		Distance:  0.2,
		Relevance: 0.8,
	}
}

func TestSearchRoadmapHandler(t *testing.T) {
	searcher := &fakeSearcher{results: []retrieval.ScoredItem{
		scored("Copilot in Teams", "In development", "Microsoft Teams"),
	}}
	d := newRoadmapDispatcher(searcher, nil)
	ctx := context.Background()

	got := d.Dispatch(ctx, string(KindSearchRoadmap), map[string]any{"query": "copilot teams"})
	if searcher.gotQuery != "copilot teams" {
		t.Errorf("query passed = %q", searcher.gotQuery)
	}
	if searcher.gotTopK != defaultSearchResults {
		t.Errorf("topK = %d, want default %d", searcher.gotTopK, defaultSearchResults)
	}
	if !strings.Contains(got, "**1. Copilot in Teams**") {
		t.Errorf("formatted result: %q", got)
	}
	if !strings.Contains(got, "Status: In development") {
		t.Errorf("status missing: %q", got)
	}
	if !strings.Contains(got, "Release Date: TBD") {
		t.Errorf("empty release date must render as TBD: %q", got)
	}
}

func TestSearchRoadmapHandlerNumResults(t *testing.T) {
	searcher := &fakeSearcher{}
	d := newRoadmapDispatcher(searcher, nil)

	d.Dispatch(context.Background(), string(KindSearchRoadmap), map[string]any{"query": "q", "num_results": float64(3)})
	if searcher.gotTopK != 3 {
		t.Errorf("topK = %d, want 3", searcher.gotTopK)
	}
}

func TestSearchRoadmapHandlerEdges(t *testing.T) {
	ctx := context.Background()

	d := newRoadmapDispatcher(&fakeSearcher{}, nil)
	if got := d.Dispatch(ctx, string(KindSearchRoadmap), map[string]any{"query": ""}); got != "✗ A search query is required." {
		t.Errorf("empty query: %q", got)
	}
	if got := d.Dispatch(ctx, string(KindSearchRoadmap), map[string]any{"query": "anything"}); got != "No roadmap items found matching your query." {
		t.Errorf("no results: %q", got)
	}

	failing := newRoadmapDispatcher(&fakeSearcher{err: errors.New("index offline")}, nil)
	if got := failing.Dispatch(ctx, string(KindSearchRoadmap), map[string]any{"query": "q"}); !strings.HasPrefix(got, "✗ Error searching roadmap") {
		t.Errorf("search error: %q", got)
	}
}

func TestRoadmapStatsHandler(t *testing.T) {
	store := openTestStore(t)
	store.UpsertRoadmapItem(storage.RoadmapItem{ID: 1, Title: "a"})
	store.UpsertRoadmapItem(storage.RoadmapItem{ID: 2, Title: "b"})

	d := newRoadmapDispatcher(&fakeSearcher{}, store)
	got := d.Dispatch(context.Background(), string(KindRoadmapStats), nil)
	if got != "The roadmap database contains 2 items." {
		t.Errorf("stats: %q", got)
	}
}
