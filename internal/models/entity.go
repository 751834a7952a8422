package models

import "time"

// CanonicalEntity is the normalized form of one external catalog record,
// produced fresh by the ingestion validator on every crawl. It is a transient
// input to the diff engine and is never persisted directly.
//
// Field values are restricted to JSON-native types: nil, bool, string,
// float64, []any, and map[string]any. Timestamps are epoch milliseconds as
// float64. The validator enforces this domain so stored and freshly ingested
// values compare equal after a database round trip.
type CanonicalEntity struct {
	EntityType EntityType     `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Fields     map[string]any `json:"fields"`
}

// EntityKey identifies one materialized entity.
type EntityKey struct {
	Type EntityType
	ID   string
}

// Key returns the entity's materialized-state key.
func (e CanonicalEntity) Key() EntityKey {
	return EntityKey{Type: e.EntityType, ID: e.EntityID}
}

// MaterializedEntityState is the latest known canonical attribute mapping for
// one entity, kept in lockstep with the change log: every write to it is
// paired, in the same transaction, with the change records that justify it.
type MaterializedEntityState struct {
	EntityType  EntityType     `json:"entity_type" db:"entity_type"`
	EntityID    string         `json:"entity_id" db:"entity_id"`
	Fields      map[string]any `json:"fields" db:"fields"`
	LastCrawlID string         `json:"last_crawl_id" db:"last_crawl_id"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`
}

// Key returns the state's identity key.
func (s MaterializedEntityState) Key() EntityKey {
	return EntityKey{Type: s.EntityType, ID: s.EntityID}
}
