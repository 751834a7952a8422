// Package diff detects field-level changes between freshly ingested canonical
// entities and the materialized state of the previous crawl.
//
// Compute is a pure function: given the same prior states and canonical
// entities it always produces the same change set in the same order (entities
// by type and id, fields by name). Persistence is the caller's concern.
package diff

import (
	"sort"
	"time"

	"github.com/jonesrussell/catalogwatch/internal/models"
)

// volatileFields lists per-entity-type fields excluded from change detection.
// They are stripped from canonical entities before diffing and never reach
// the change log or the materialized state.
var volatileFields = map[models.EntityType]map[string]bool{
	models.EntityEndpoint: {"uptime_last_30m": true},
}

// Result is the outcome of diffing one category crawl.
type Result struct {
	// Changes is the ordered change set, all sharing the crawl id.
	Changes []models.ChangeRecord
	// Upserts holds the new materialized state for every entity that
	// produced at least one created or updated record.
	Upserts []models.MaterializedEntityState
	// Removals lists entities to drop from the materialized view.
	Removals []models.EntityKey
}

// Compute diffs the current crawl's full entity list against the prior
// materialized states of the same category. prior must contain every
// materialized entity of the category, since anything absent from current is
// reported as removed.
func Compute(
	prior map[models.EntityKey]models.MaterializedEntityState,
	current []models.CanonicalEntity,
	crawlID string,
	now time.Time,
) Result {
	var result Result

	entities := make([]models.CanonicalEntity, len(current))
	copy(entities, current)
	sort.Slice(entities, func(a, b int) bool {
		if entities[a].EntityType != entities[b].EntityType {
			return entities[a].EntityType < entities[b].EntityType
		}
		return entities[a].EntityID < entities[b].EntityID
	})

	seen := make(map[models.EntityKey]bool, len(entities))

	for _, entity := range entities {
		key := entity.Key()
		if seen[key] {
			continue
		}
		seen[key] = true

		fields := stripVolatile(entity.EntityType, entity.Fields)

		old, exists := prior[key]
		var changes []models.ChangeRecord
		if exists {
			changes = diffFields(old.Fields, fields, entity, crawlID, now)
		} else {
			changes = createRecords(fields, entity, crawlID, now)
		}

		if len(changes) == 0 {
			continue
		}

		result.Changes = append(result.Changes, changes...)
		result.Upserts = append(result.Upserts, models.MaterializedEntityState{
			EntityType:  entity.EntityType,
			EntityID:    entity.EntityID,
			Fields:      fields,
			LastCrawlID: crawlID,
			UpdatedAt:   now,
		})
	}

	// Entities known from earlier crawls but absent from this crawl's full
	// list are gone. Dropping the state row means later crawls cannot
	// re-report them.
	removed := make([]models.EntityKey, 0)
	for key := range prior {
		if !seen[key] {
			removed = append(removed, key)
		}
	}
	sort.Slice(removed, func(a, b int) bool {
		if removed[a].Type != removed[b].Type {
			return removed[a].Type < removed[b].Type
		}
		return removed[a].ID < removed[b].ID
	})

	for _, key := range removed {
		result.Changes = append(result.Changes, models.ChangeRecord{
			EntityType: key.Type,
			EntityID:   key.ID,
			CrawlID:    crawlID,
			Kind:       models.ChangeRemoved,
			DetectedAt: now,
		})
		result.Removals = append(result.Removals, key)
	}

	return result
}

// createRecords emits one created record per non-null field, sorted by name.
func createRecords(
	fields map[string]any,
	entity models.CanonicalEntity,
	crawlID string,
	now time.Time,
) []models.ChangeRecord {
	records := make([]models.ChangeRecord, 0, len(fields))
	for _, name := range sortedFieldNames(fields) {
		value := fields[name]
		if value == nil {
			continue
		}
		records = append(records, models.ChangeRecord{
			EntityType: entity.EntityType,
			EntityID:   entity.EntityID,
			CrawlID:    crawlID,
			Field:      name,
			NewValue:   value,
			Kind:       models.ChangeCreated,
			DetectedAt: now,
		})
	}
	return records
}

// diffFields emits one updated record per field, over the union of old and
// new field names, whose value changed under deep equality.
func diffFields(
	oldFields, newFields map[string]any,
	entity models.CanonicalEntity,
	crawlID string,
	now time.Time,
) []models.ChangeRecord {
	union := make(map[string]bool, len(oldFields)+len(newFields))
	for name := range oldFields {
		union[name] = true
	}
	for name := range newFields {
		union[name] = true
	}

	var records []models.ChangeRecord
	for _, name := range sortedFieldNames(union) {
		oldVal := oldFields[name]
		newVal := newFields[name]
		if deepEqual(oldVal, newVal) {
			continue
		}
		records = append(records, models.ChangeRecord{
			EntityType: entity.EntityType,
			EntityID:   entity.EntityID,
			CrawlID:    crawlID,
			Field:      name,
			OldValue:   oldVal,
			NewValue:   newVal,
			Kind:       models.ChangeUpdated,
			DetectedAt: now,
		})
	}
	return records
}

func stripVolatile(entityType models.EntityType, fields map[string]any) map[string]any {
	volatile := volatileFields[entityType]
	out := make(map[string]any, len(fields))
	for name, value := range fields {
		if volatile[name] {
			continue
		}
		out[name] = value
	}
	return out
}

func sortedFieldNames[V any](fields map[string]V) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Replay folds an ascending-sequence change log into the materialized view it
// describes. Applying every record from an empty map reproduces the state the
// live pipeline built.
func Replay(records []models.ChangeRecord) map[models.EntityKey]models.MaterializedEntityState {
	states := make(map[models.EntityKey]models.MaterializedEntityState)

	for _, record := range records {
		key := models.EntityKey{Type: record.EntityType, ID: record.EntityID}

		if record.Kind == models.ChangeRemoved {
			delete(states, key)
			continue
		}

		state, exists := states[key]
		if !exists {
			state = models.MaterializedEntityState{
				EntityType: record.EntityType,
				EntityID:   record.EntityID,
				Fields:     make(map[string]any),
			}
		}
		if record.NewValue == nil {
			delete(state.Fields, record.Field)
		} else {
			state.Fields[record.Field] = record.NewValue
		}
		state.LastCrawlID = record.CrawlID
		state.UpdatedAt = record.DetectedAt
		states[key] = state
	}

	return states
}
