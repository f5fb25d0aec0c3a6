package retrieval

import (
	"container/heap"
	"database/sql"
	"fmt"
	"math"
	"strings"

	"github.com/evergreenhq/evergreen/internal/storage"
)

// Store performs brute-force cosine similarity search over the embeddings
// stored in roadmap_items. It never writes; the ingestion pipeline is the
// sole writer of roadmap data.
//
// Brute-force scanning holds up well for roadmap-sized corpora (a few
// thousand items). Revisit with an ANN-capable backend if the corpus grows
// past ~100K vectors.
type Store struct {
	db *sql.DB
}

// NewStore wraps an existing *sql.DB for vector search. The roadmap_items
// table must already exist (created via storage migrations).
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ScoredItem is a roadmap item ranked by cosine distance to a query vector.
// Relevance is 1 - Distance, valid because cosine distance lies in [0, 2].
type ScoredItem struct {
	Item      storage.RoadmapItem
	Distance  float32
	Relevance float32
}

// idScore holds only the ID and similarity during the scan phase of Search.
// Full record details are fetched only for top-K winners.
type idScore struct {
	ID         int64
	Similarity float32
}

// Search scans all stored embeddings and returns the top-K items ordered by
// ascending cosine distance. When filters is non-empty, only items whose
// products or platforms contain at least one filter term (case-insensitive)
// are considered.
func (s *Store) Search(vector []float32, topK int, filters []string) ([]ScoredItem, error) {
	if topK <= 0 {
		return nil, nil
	}

	queryNorm := norm(vector)
	if queryNorm == 0 {
		return nil, nil
	}

	// Phase 1: scan only id + embedding to find top-K candidates.
	query := "SELECT id, embedding FROM roadmap_items WHERE embedding IS NOT NULL"
	where, args := filterClause(filters)
	query += where

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	h := &idScoreHeap{}
	heap.Init(h)

	// Reusable buffer for decoding embeddings to avoid per-row allocations.
	var buf []float32

	for rows.Next() {
		var id int64
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		buf, err = storage.DecodeEmbeddingInto(buf, blob)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding for %d: %w", id, err)
		}

		sim := cosineSimilarity(vector, buf, queryNorm)
		if h.Len() < topK {
			heap.Push(h, idScore{ID: id, Similarity: sim})
		} else if sim > (*h)[0].Similarity {
			(*h)[0] = idScore{ID: id, Similarity: sim}
			heap.Fix(h, 0)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	if h.Len() == 0 {
		return nil, nil
	}

	// Phase 2: fetch full records only for the top-K IDs.
	topIDs := make([]int64, h.Len())
	sims := make(map[int64]float32, h.Len())
	for i := len(topIDs) - 1; i >= 0; i-- {
		item := heap.Pop(h).(idScore)
		topIDs[i] = item.ID
		sims[item.ID] = item.Similarity
	}

	queryArgs := make([]interface{}, len(topIDs))
	for i, id := range topIDs {
		queryArgs[i] = id
	}
	fullQuery := `SELECT id, title, description, status, release_date, products, platforms,
			cloud_instances, release_phase, document
		FROM roadmap_items WHERE id IN (?` + strings.Repeat(",?", len(topIDs)-1) + `)`

	fullRows, err := s.db.Query(fullQuery, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("fetching top-K items: %w", err)
	}
	defer fullRows.Close()

	var results []ScoredItem
	for fullRows.Next() {
		var item storage.RoadmapItem
		if err := fullRows.Scan(&item.ID, &item.Title, &item.Description, &item.Status,
			&item.ReleaseDate, &item.Products, &item.Platforms, &item.CloudInstances,
			&item.ReleasePhase, &item.Document); err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		distance := 1 - sims[item.ID]
		results = append(results, ScoredItem{
			Item:      item,
			Distance:  distance,
			Relevance: 1 - distance,
		})
	}
	if err := fullRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating items: %w", err)
	}

	// Sort by ascending distance (IN query doesn't preserve order).
	sortByDistance(results)

	return results, nil
}

// filterClause builds a WHERE fragment restricting products/platforms to
// rows containing at least one filter term. SQLite LIKE is case-insensitive
// for ASCII, matching the feed's tag vocabulary.
func filterClause(filters []string) (string, []interface{}) {
	if len(filters) == 0 {
		return "", nil
	}
	var terms []string
	var args []interface{}
	for _, f := range filters {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		terms = append(terms, "products LIKE ? OR platforms LIKE ?")
		pattern := "%" + f + "%"
		args = append(args, pattern, pattern)
	}
	if len(terms) == 0 {
		return "", nil
	}
	return " AND (" + strings.Join(terms, " OR ") + ")", args
}

// sortByDistance sorts ScoredItems by ascending distance. Used for small slices (topK).
func sortByDistance(results []ScoredItem) {
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].Distance < results[j-1].Distance; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
}

// norm returns the L2 norm of a vector.
func norm(v []float32) float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return float32(math.Sqrt(sum))
}

// cosineSimilarity computes dot(a,b) / (aNorm * bNorm).
// aNorm is the precomputed L2 norm of vector a.
func cosineSimilarity(a, b []float32, aNorm float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot float64
	var bNormSq float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		bNormSq += float64(b[i]) * float64(b[i])
	}
	bNorm := math.Sqrt(bNormSq)
	if bNorm == 0 {
		return 0
	}
	return float32(dot / (float64(aNorm) * bNorm))
}

// idScoreHeap is a min-heap of idScore ordered by similarity.
// Used during the scan phase of Search to track top-K candidates by ID only.
type idScoreHeap []idScore

func (h idScoreHeap) Len() int            { return len(h) }
func (h idScoreHeap) Less(i, j int) bool  { return h[i].Similarity < h[j].Similarity }
func (h idScoreHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *idScoreHeap) Push(x interface{}) { *h = append(*h, x.(idScore)) }
func (h *idScoreHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
