// Package ingest keeps the searchable roadmap corpus current.
//
// The pipeline fetches the external feed, filters it against the cursor of
// the last completed run, and batch-upserts parsed items with fresh
// embeddings. Runs are recorded in a ledger so the incremental cursor is
// independent of incidental row writes and overlapping runs are refused.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/evergreenhq/evergreen/internal/feed"
	"github.com/evergreenhq/evergreen/internal/retrieval"
	"github.com/evergreenhq/evergreen/internal/storage"
)

// Fetcher retrieves the raw feed.
type Fetcher interface {
	Fetch(ctx context.Context) ([]feed.RawItem, error)
}

// ItemStore is the slice of the document store the pipeline writes through.
type ItemStore interface {
	StartIngestionRun(fullSync bool) (storage.IngestionRun, error)
	FinishIngestionRun(id, status string, cursor time.Time, itemsProcessed int, message string) error
	LastIngestionCursor() (time.Time, bool, error)
	RoadmapDocHashes(ids []int64) (map[int64]string, error)
	UpsertRoadmapItem(item storage.RoadmapItem) error
}

// Result summarizes one pipeline run. A mid-run failure reports the items
// already committed; earlier batches are not rolled back.
type Result struct {
	Success        bool
	ItemsProcessed int
	Message        string
}

// Options tunes pipeline batching. Zero values take the defaults: batches of
// 10 with a 1 second inter-batch delay, sized to embedding provider rate
// limits.
type Options struct {
	BatchSize  int
	BatchDelay time.Duration
	Logger     *slog.Logger
}

// Pipeline performs incremental roadmap ingestion.
type Pipeline struct {
	fetcher  Fetcher
	store    ItemStore
	embedder retrieval.Embedder
	batch    int
	delay    time.Duration
	logger   *slog.Logger
}

// NewPipeline creates a Pipeline with the given dependencies.
func NewPipeline(fetcher Fetcher, store ItemStore, embedder retrieval.Embedder, opts Options) *Pipeline {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.BatchDelay == 0 {
		opts.BatchDelay = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Pipeline{
		fetcher:  fetcher,
		store:    store,
		embedder: embedder,
		batch:    opts.BatchSize,
		delay:    opts.BatchDelay,
		logger:   opts.Logger,
	}
}

// Run executes one ingestion pass. With fullSync the incremental cursor is
// ignored and the whole feed is re-processed. Failures are reported in the
// Result, never raised.
func (p *Pipeline) Run(ctx context.Context, fullSync bool) Result {
	run, err := p.store.StartIngestionRun(fullSync)
	if err != nil {
		if errors.Is(err, storage.ErrRunInProgress) {
			return Result{Success: false, Message: "an ingestion run is already in progress"}
		}
		return Result{Success: false, Message: fmt.Sprintf("starting ingestion run: %v", err)}
	}

	result, cursor := p.execute(ctx, fullSync)

	status := storage.RunCompleted
	if !result.Success {
		status = storage.RunFailed
	}
	if err := p.store.FinishIngestionRun(run.ID, status, cursor, result.ItemsProcessed, result.Message); err != nil {
		p.logger.Error("recording ingestion run", "run_id", run.ID, "error", err)
	}
	return result
}

func (p *Pipeline) execute(ctx context.Context, fullSync bool) (Result, time.Time) {
	var since time.Time
	var haveSince bool
	if !fullSync {
		cursor, ok, err := p.store.LastIngestionCursor()
		if err != nil {
			return Result{Success: false, Message: fmt.Sprintf("loading ingestion cursor: %v", err)}, time.Time{}
		}
		since, haveSince = cursor, ok
	}
	if haveSince {
		p.logger.Info("incremental ingestion", "since", since)
	} else {
		p.logger.Info("no previous ingestion cursor, processing all items")
	}

	raw, err := p.fetcher.Fetch(ctx)
	if err != nil {
		return Result{Success: false, Message: fmt.Sprintf("fetching feed: %v", err)}, time.Time{}
	}
	p.logger.Info("fetched roadmap feed", "total_items", len(raw))

	kept := filterSince(raw, since, haveSince)
	p.logger.Info("filtered feed", "new_or_updated", len(kept))

	items, skipped := parseAll(kept)
	if skipped > 0 {
		p.logger.Warn("skipped feed items without an id", "count", skipped)
	}

	cursor := maxModified(kept)

	if len(items) == 0 {
		return Result{Success: true, Message: "no new items to ingest"}, cursor
	}

	processed := 0
	for start := 0; start < len(items); start += p.batch {
		end := start + p.batch
		if end > len(items) {
			end = len(items)
		}

		if err := p.upsertBatch(ctx, items[start:end]); err != nil {
			msg := fmt.Sprintf("ingesting batch %d: %v", start/p.batch+1, err)
			p.logger.Error("ingestion batch failed", "error", err, "items_processed", processed)
			return Result{Success: false, ItemsProcessed: processed, Message: msg}, time.Time{}
		}
		processed += end - start
		p.logger.Info("ingested batch", "batch", start/p.batch+1, "items", end-start)

		// Inter-batch delay to respect embedding provider rate limits.
		if end < len(items) {
			select {
			case <-ctx.Done():
				msg := fmt.Sprintf("ingestion cancelled: %v", ctx.Err())
				return Result{Success: false, ItemsProcessed: processed, Message: msg}, time.Time{}
			case <-time.After(p.delay):
			}
		}
	}

	msg := fmt.Sprintf("successfully ingested %d roadmap items", processed)
	return Result{Success: true, ItemsProcessed: processed, Message: msg}, cursor
}

// upsertBatch embeds and upserts one batch. Documents whose content hash is
// unchanged keep their stored embedding instead of being re-embedded.
func (p *Pipeline) upsertBatch(ctx context.Context, items []feed.Item) error {
	ids := make([]int64, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	existing, err := p.store.RoadmapDocHashes(ids)
	if err != nil {
		return fmt.Errorf("loading document hashes: %w", err)
	}

	rows := make([]storage.RoadmapItem, len(items))
	var embedTexts []string
	var embedIdx []int
	for i, item := range items {
		doc := buildDocument(item)
		rows[i] = storage.RoadmapItem{
			ID:             item.ID,
			Title:          item.Title,
			Description:    item.Description,
			Status:         item.Status,
			ReleaseDate:    item.PublicDisclosureDate,
			Products:       strings.Join(item.Products, ", "),
			Platforms:      strings.Join(item.Platforms, ", "),
			CloudInstances: strings.Join(item.CloudInstances, ", "),
			ReleasePhase:   item.ReleasePhase,
			Document:       doc,
			DocHash:        hashDocument(doc),
		}
		if existing[item.ID] != rows[i].DocHash {
			embedTexts = append(embedTexts, doc)
			embedIdx = append(embedIdx, i)
		}
	}

	vectors, err := retrieval.EmbedDocuments(ctx, p.embedder, embedTexts)
	if err != nil {
		return fmt.Errorf("embedding documents: %w", err)
	}
	for j, i := range embedIdx {
		rows[i].Embedding = vectors[j]
	}

	for _, row := range rows {
		if err := p.store.UpsertRoadmapItem(row); err != nil {
			return err
		}
	}
	return nil
}

// filterSince keeps an item iff there is no cursor, its modified (falling
// back to created) timestamp exceeds the cursor, or the timestamp is
// unparseable. Unparseable timestamps are included to prefer over-inclusion
// over silent data loss.
func filterSince(raw []feed.RawItem, since time.Time, haveSince bool) []feed.RawItem {
	if !haveSince {
		return raw
	}
	var kept []feed.RawItem
	for _, item := range raw {
		modified, ok := item.ModifiedTime()
		if !ok || modified.After(since) {
			kept = append(kept, item)
		}
	}
	return kept
}

// parseAll parses raw items, skipping (and counting) those without an id.
func parseAll(raw []feed.RawItem) ([]feed.Item, int) {
	items := make([]feed.Item, 0, len(raw))
	skipped := 0
	for _, r := range raw {
		item, err := feed.Parse(r)
		if errors.Is(err, feed.ErrMissingID) {
			skipped++
			continue
		}
		items = append(items, item)
	}
	return items, skipped
}

// maxModified returns the latest parseable modification timestamp among the
// given raw items, used as this run's cursor. A zero return keeps the
// previous cursor.
func maxModified(raw []feed.RawItem) time.Time {
	var max time.Time
	for _, item := range raw {
		if t, ok := item.ModifiedTime(); ok && t.After(max) {
			max = t
		}
	}
	return max
}

// buildDocument denormalizes an item into its searchable document text.
// Regenerated on every ingestion so the corpus never drifts from the feed.
func buildDocument(item feed.Item) string {
	return fmt.Sprintf("%s\n\n%s\n\nStatus: %s\nProducts: %s\nPlatforms: %s",
		item.Title, item.Description, item.Status,
		strings.Join(item.Products, ", "), strings.Join(item.Platforms, ", "))
}

func hashDocument(doc string) string {
	sum := sha256.Sum256([]byte(doc))
	return hex.EncodeToString(sum[:])
}
