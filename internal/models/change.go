package models

import "time"

// ChangeKind classifies a change record.
type ChangeKind string

const (
	// ChangeCreated records a field of an entity seen for the first time.
	ChangeCreated ChangeKind = "created"
	// ChangeUpdated records a field whose value differs from the last crawl.
	ChangeUpdated ChangeKind = "updated"
	// ChangeRemoved records an entity that disappeared from the catalog.
	// Emitted exactly once, with a nil field value pair.
	ChangeRemoved ChangeKind = "removed"
)

// ChangeRecord is one immutable row of the append-only change log: one changed
// field of one entity in one crawl. Sequence is assigned by the store at
// insert time and is monotonic but gap-tolerant.
type ChangeRecord struct {
	Sequence   int64      `json:"sequence" db:"sequence"`
	EntityType EntityType `json:"entity_type" db:"entity_type"`
	EntityID   string     `json:"entity_id" db:"entity_id"`
	CrawlID    string     `json:"crawl_id" db:"crawl_id"`
	Field      string     `json:"field" db:"field"`
	OldValue   any        `json:"old_value" db:"old_value"`
	NewValue   any        `json:"new_value" db:"new_value"`
	Kind       ChangeKind `json:"kind" db:"kind"`
	DetectedAt time.Time  `json:"detected_at" db:"detected_at"`
}
