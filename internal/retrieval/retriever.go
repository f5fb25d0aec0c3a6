package retrieval

import (
	"context"
	"fmt"
)

// Searcher is the vector search half of the retriever, satisfied by *Store.
type Searcher interface {
	Search(vector []float32, topK int, filters []string) ([]ScoredItem, error)
}

// Retriever combines query-mode embedding and vector search to rank roadmap
// items by semantic similarity.
type Retriever struct {
	embedder Embedder
	store    Searcher
}

// NewRetriever creates a Retriever backed by the given Embedder and store.
func NewRetriever(embedder Embedder, store Searcher) *Retriever {
	return &Retriever{embedder: embedder, store: store}
}

// Search embeds the query and returns at most topK items ordered by
// ascending cosine distance. filters restricts results to items whose
// products or platforms contain at least one of the given terms.
func (r *Retriever) Search(ctx context.Context, query string, topK int, filters []string) ([]ScoredItem, error) {
	vec, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	results, err := r.store.Search(vec, topK, filters)
	if err != nil {
		return nil, fmt.Errorf("searching roadmap items: %w", err)
	}
	return results, nil
}
