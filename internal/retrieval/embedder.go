package retrieval

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Embedder turns text into a fixed-dimension vector. Providers optimize
// document and query embeddings differently, so the two modes are distinct:
// EmbedDocument is used at ingestion time, EmbedQuery at search time.
type Embedder interface {
	EmbedDocument(ctx context.Context, text string) ([]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// EmbedDocuments embeds multiple documents concurrently in document mode.
// Returns nil (not error) for empty/nil input.
func EmbedDocuments(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	results := make([][]float32, len(texts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4) // Bound concurrency to avoid overwhelming the provider.

	for i, text := range texts {
		i, text := i, text
		g.Go(func() error {
			vec, err := e.EmbedDocument(gCtx, text)
			if err != nil {
				return fmt.Errorf("embedding document %d: %w", i, err)
			}
			results[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
