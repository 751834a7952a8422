package ingest

import (
	"sort"

	"github.com/jonesrussell/catalogwatch/internal/models"
)

// The uptimes payload differs from the flat kinds: each item carries a
// per-endpoint time series. The canonical record keeps the ordered
// {timestamp, uptime} sequence as one field plus derived summary fields.

var strictUptimeSchema = strictSchema{
	"id":      {typ: typeString},
	"history": {typ: typeArray},
}

func transformUptimes(items []map[string]any) ([]models.CanonicalEntity, error) {
	entities := make([]models.CanonicalEntity, 0, len(items))

	for i, item := range items {
		id, ok := asString(item["id"])
		if !ok || id == "" {
			return nil, validationErrorf(models.KindUptimes, "item %d: missing id", i)
		}

		rawHistory, ok := item["history"].([]any)
		if !ok {
			return nil, validationErrorf(models.KindUptimes, "item %d: missing history array", i)
		}

		history, err := normalizeHistory(rawHistory, i)
		if err != nil {
			return nil, err
		}

		fields := map[string]any{
			"entity_id": id,
			"history":   history,
		}
		if len(history) > 0 {
			latest := history[len(history)-1].(map[string]any)
			fields["latest_timestamp"] = latest["timestamp"]
			fields["latest_uptime"] = latest["uptime"]
		}

		entities = append(entities, models.CanonicalEntity{
			EntityType: models.EntityUptime,
			EntityID:   id,
			Fields:     fields,
		})
	}

	return entities, nil
}

// normalizeHistory coerces each point to {timestamp: epoch millis, uptime:
// float64} and sorts ascending by timestamp so identical upstream data always
// yields an identical canonical value.
func normalizeHistory(raw []any, itemIdx int) ([]any, error) {
	points := make([]map[string]any, 0, len(raw))

	for j, member := range raw {
		point, ok := member.(map[string]any)
		if !ok {
			return nil, validationErrorf(models.KindUptimes,
				"item %d: history point %d is not an object", itemIdx, j)
		}
		ts, ok := asEpochMillis(point["timestamp"])
		if !ok {
			return nil, validationErrorf(models.KindUptimes,
				"item %d: history point %d has no timestamp", itemIdx, j)
		}
		uptime, ok := asNumber(point["uptime"])
		if !ok {
			return nil, validationErrorf(models.KindUptimes,
				"item %d: history point %d has no uptime", itemIdx, j)
		}
		points = append(points, map[string]any{
			"timestamp": ts,
			"uptime":    uptime,
		})
	}

	sort.Slice(points, func(a, b int) bool {
		return points[a]["timestamp"].(float64) < points[b]["timestamp"].(float64)
	})

	history := make([]any, len(points))
	for i, p := range points {
		history[i] = p
	}
	return history, nil
}
