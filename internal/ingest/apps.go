package ingest

import (
	"strconv"

	"github.com/jonesrussell/catalogwatch/internal/models"
)

// Schema pairs for the authors and apps categories.

var strictAuthorSchema = strictSchema{
	"id":          {typ: typeString},
	"name":        {typ: typeString},
	"description": {typ: typeString, nullable: true},
	"created":     {typ: typeString},
	"model_count": {typ: typeNumber, nullable: true},
}

func transformAuthors(items []map[string]any) ([]models.CanonicalEntity, error) {
	entities := make([]models.CanonicalEntity, 0, len(items))

	for i, item := range items {
		id, ok := asString(item["id"])
		if !ok || id == "" {
			return nil, validationErrorf(models.KindAuthors, "item %d: missing id", i)
		}

		fields := map[string]any{"entity_id": id}
		putString(fields, "name", item["name"])
		putString(fields, "description", item["description"])
		putEpoch(fields, "created_at", item["created"])
		putNumber(fields, "model_count", item["model_count"])

		entities = append(entities, models.CanonicalEntity{
			EntityType: models.EntityAuthor,
			EntityID:   id,
			Fields:     fields,
		})
	}

	return entities, nil
}

// An app item nests the app object beside a sibling token aggregate:
//
//	{"app": {"id": 42, "title": ...}, "total_tokens": "123456"}
//
// The transform flattens the nested object's fields into the canonical record
// alongside the aggregate.
var strictAppSchema = strictSchema{
	"app":          {typ: typeObject},
	"total_tokens": {typ: typeString},
}

func transformApps(items []map[string]any) ([]models.CanonicalEntity, error) {
	entities := make([]models.CanonicalEntity, 0, len(items))

	for i, item := range items {
		app, ok := child(item, "app")
		if !ok {
			return nil, validationErrorf(models.KindApps, "item %d: missing app object", i)
		}

		id, ok := appID(app["id"])
		if !ok {
			return nil, validationErrorf(models.KindApps, "item %d: missing app id", i)
		}

		fields := map[string]any{
			"entity_id": id,
			"app_id":    id,
		}
		putString(fields, "title", app["title"])
		putString(fields, "description", app["description"])
		putString(fields, "main_url", app["main_url"])
		putString(fields, "origin_url", app["origin_url"])
		putString(fields, "source_code_url", app["source_code_url"])
		putEpoch(fields, "created_at", app["created_at"])
		putNumber(fields, "total_tokens", item["total_tokens"])

		entities = append(entities, models.CanonicalEntity{
			EntityType: models.EntityApp,
			EntityID:   id,
			Fields:     fields,
		})
	}

	return entities, nil
}

// appID accepts string or numeric upstream app identifiers.
func appID(v any) (string, bool) {
	switch id := v.(type) {
	case string:
		return id, id != ""
	case float64:
		return strconv.FormatInt(int64(id), 10), true
	default:
		return "", false
	}
}
