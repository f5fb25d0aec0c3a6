package retrieval

import (
	"math"
	"testing"

	"github.com/evergreenhq/evergreen/internal/storage"
)

func newTestStore(t *testing.T) (*Store, *storage.Store) {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening storage: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return NewStore(s.DB()), s
}

func insertItem(t *testing.T, s *storage.Store, id int64, products string, embedding []float32) {
	t.Helper()
	err := s.UpsertRoadmapItem(storage.RoadmapItem{
		ID:        id,
		Title:     "item",
		Products:  products,
		Embedding: embedding,
	})
	if err != nil {
		t.Fatalf("upserting item %d: %v", id, err)
	}
}

// TestSearchRanksByDistance inserts vectors at known angles to the query and
// verifies ordering by ascending cosine distance with Relevance = 1 - Distance.
func TestSearchRanksByDistance(t *testing.T) {
	vs, s := newTestStore(t)

	query := []float32{1, 0, 0}
	insertItem(t, s, 1, "Teams", []float32{0, 1, 0})       // orthogonal, distance 1
	insertItem(t, s, 2, "Teams", []float32{1, 0, 0})       // identical, distance 0
	insertItem(t, s, 3, "Teams", []float32{1, 1, 0})       // 45 degrees
	insertItem(t, s, 4, "Teams", []float32{-1, 0, 0})      // opposite, distance 2
	insertItem(t, s, 5, "Teams", []float32{0.9, 0.1, 0.1}) // close

	results, err := vs.Search(query, 3, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}

	wantOrder := []int64{2, 5, 3}
	for i, want := range wantOrder {
		if results[i].Item.ID != want {
			t.Errorf("result %d = item %d, want %d", i, results[i].Item.ID, want)
		}
	}
	for i := 1; i < len(results); i++ {
		if results[i].Distance < results[i-1].Distance {
			t.Errorf("results not in ascending distance order at %d", i)
		}
	}
	for _, r := range results {
		if diff := math.Abs(float64(r.Relevance - (1 - r.Distance))); diff > 1e-6 {
			t.Errorf("item %d: relevance %v != 1 - distance %v", r.Item.ID, r.Relevance, r.Distance)
		}
	}
	if results[0].Distance > 1e-6 {
		t.Errorf("identical vector distance = %v, want ~0", results[0].Distance)
	}
}

func TestSearchFewerItemsThanTopK(t *testing.T) {
	vs, s := newTestStore(t)

	insertItem(t, s, 1, "Teams", []float32{1, 0, 0})
	insertItem(t, s, 2, "Teams", []float32{0, 1, 0})

	results, err := vs.Search([]float32{1, 0, 0}, 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("got %d results, want all 2 stored items", len(results))
	}
}

func TestSearchSkipsUnembeddedRows(t *testing.T) {
	vs, s := newTestStore(t)

	insertItem(t, s, 1, "Teams", []float32{1, 0, 0})
	insertItem(t, s, 2, "Teams", nil)

	results, err := vs.Search([]float32{1, 0, 0}, 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Item.ID != 1 {
		t.Errorf("expected only the embedded row, got %+v", results)
	}
}

func TestSearchFilters(t *testing.T) {
	vs, s := newTestStore(t)

	insertItem(t, s, 1, "Microsoft Teams", []float32{1, 0, 0})
	insertItem(t, s, 2, "SharePoint", []float32{1, 0, 0})
	insertItem(t, s, 3, "Exchange", []float32{1, 0, 0})

	results, err := vs.Search([]float32{1, 0, 0}, 10, []string{"teams", "sharepoint"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	ids := map[int64]bool{}
	for _, r := range results {
		ids[r.Item.ID] = true
	}
	if len(results) != 2 || !ids[1] || !ids[2] {
		t.Errorf("filtered results = %+v, want items 1 and 2", ids)
	}
}

func TestSearchDegenerateInputs(t *testing.T) {
	vs, s := newTestStore(t)
	insertItem(t, s, 1, "Teams", []float32{1, 0, 0})

	if results, err := vs.Search([]float32{1, 0, 0}, 0, nil); err != nil || results != nil {
		t.Errorf("topK=0: got (%v, %v), want (nil, nil)", results, err)
	}
	if results, err := vs.Search([]float32{0, 0, 0}, 5, nil); err != nil || results != nil {
		t.Errorf("zero query vector: got (%v, %v), want (nil, nil)", results, err)
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"zero vector", []float32{1, 0}, []float32{0, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cosineSimilarity(tt.a, tt.b, norm(tt.a))
			if math.Abs(float64(got-tt.want)) > 1e-6 {
				t.Errorf("cosineSimilarity = %v, want %v", got, tt.want)
			}
		})
	}
}
