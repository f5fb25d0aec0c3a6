package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// UpsertRoadmapItem inserts or replaces a roadmap item keyed by its feed ID.
// All mutable fields are replaced and updated_at is bumped. A nil Embedding
// preserves the previously stored embedding, which lets the ingestion
// pipeline skip re-embedding when the document hash is unchanged.
func (s *Store) UpsertRoadmapItem(item RoadmapItem) error {
	now := time.Now().UTC().Format(time.RFC3339)

	var blob interface{}
	if item.Embedding != nil {
		blob = encodeFloat32s(item.Embedding)
	}

	_, err := s.db.Exec(`
		INSERT INTO roadmap_items
			(id, title, description, status, release_date, products, platforms,
			 cloud_instances, release_phase, document, doc_hash, embedding, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			status = excluded.status,
			release_date = excluded.release_date,
			products = excluded.products,
			platforms = excluded.platforms,
			cloud_instances = excluded.cloud_instances,
			release_phase = excluded.release_phase,
			document = excluded.document,
			doc_hash = excluded.doc_hash,
			embedding = COALESCE(excluded.embedding, roadmap_items.embedding),
			updated_at = excluded.updated_at`,
		item.ID, item.Title, item.Description, item.Status, item.ReleaseDate,
		item.Products, item.Platforms, item.CloudInstances, item.ReleasePhase,
		item.Document, item.DocHash, blob, now, now,
	)
	if err != nil {
		return fmt.Errorf("upserting roadmap item %d: %w", item.ID, err)
	}
	return nil
}

// GetRoadmapItem returns a roadmap item by its feed ID.
func (s *Store) GetRoadmapItem(id int64) (RoadmapItem, error) {
	var item RoadmapItem
	var blob []byte
	var createdAt, updatedAt string
	err := s.db.QueryRow(`
		SELECT id, title, description, status, release_date, products, platforms,
		       cloud_instances, release_phase, document, doc_hash, embedding, created_at, updated_at
		FROM roadmap_items WHERE id = ?`, id,
	).Scan(&item.ID, &item.Title, &item.Description, &item.Status, &item.ReleaseDate,
		&item.Products, &item.Platforms, &item.CloudInstances, &item.ReleasePhase,
		&item.Document, &item.DocHash, &blob, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return RoadmapItem{}, ErrNotFound
	}
	if err != nil {
		return RoadmapItem{}, fmt.Errorf("scanning roadmap item: %w", err)
	}
	if blob != nil {
		if item.Embedding, err = decodeFloat32s(blob); err != nil {
			return RoadmapItem{}, fmt.Errorf("decoding embedding for %d: %w", id, err)
		}
	}
	if item.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return RoadmapItem{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if item.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return RoadmapItem{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return item, nil
}

// RoadmapDocHashes returns the stored document hash for each of the given
// feed IDs. IDs not present in the table are absent from the result, so the
// pipeline embeds them unconditionally.
func (s *Store) RoadmapDocHashes(ids []int64) (map[int64]string, error) {
	hashes := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return hashes, nil
	}
	stmt, err := s.db.Prepare("SELECT doc_hash FROM roadmap_items WHERE id = ? AND embedding IS NOT NULL")
	if err != nil {
		return nil, fmt.Errorf("preparing hash lookup: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		var hash string
		err := stmt.QueryRow(id).Scan(&hash)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("looking up hash for %d: %w", id, err)
		}
		hashes[id] = hash
	}
	return hashes, nil
}

// CountRoadmapItems returns the number of stored roadmap items.
func (s *Store) CountRoadmapItems() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM roadmap_items").Scan(&count)
	return count, err
}
