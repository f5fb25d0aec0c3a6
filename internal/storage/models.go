package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateName is returned when a customer insert violates the unique
// name constraint. The failed insert leaves the table unchanged.
var ErrDuplicateName = errors.New("customer name already exists")

// ErrRunInProgress is returned when an ingestion run is requested while
// another run is still marked running.
var ErrRunInProgress = errors.New("ingestion run already in progress")

// Customer priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

type Customer struct {
	ID           int64
	Name         string
	Description  string
	ProductsUsed string // comma-separated product names
	Priority     string // "low", "medium", "high"
	Notes        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CustomerUpdate holds optional field updates. Nil fields are left untouched.
type CustomerUpdate struct {
	Name         *string
	Description  *string
	ProductsUsed *string
	Priority     *string
	Notes        *string
}

// RoadmapItem is a roadmap feed entry with its searchable document text and
// embedding. ID is the feed's stable identifier and the upsert key.
type RoadmapItem struct {
	ID             int64
	Title          string
	Description    string
	Status         string
	ReleaseDate    string // public disclosure date, may be empty
	Products       string // comma-separated
	Platforms      string // comma-separated
	CloudInstances string // comma-separated
	ReleasePhase   string
	Document       string // denormalized text, rebuilt every ingestion
	DocHash        string // SHA-256 of Document, used to skip re-embedding
	Embedding      []float32
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// IngestionRun is one entry in the ingestion-run ledger. The cursor of the
// most recent completed run bounds the next incremental fetch, independent
// of incidental roadmap_items writes.
type IngestionRun struct {
	ID             string
	StartedAt      time.Time
	CompletedAt    time.Time
	Status         string
	FullSync       bool
	Cursor         time.Time
	ItemsProcessed int
	Message        string
}
