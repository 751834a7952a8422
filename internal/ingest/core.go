package ingest

import (
	"github.com/jonesrussell/catalogwatch/internal/models"
)

// Schema pairs for the core category: models, endpoints, providers.

var strictModelSchema = strictSchema{
	"id":             {typ: typeString},
	"name":           {typ: typeString},
	"created":        {typ: typeString},
	"description":    {typ: typeString, nullable: true},
	"context_length": {typ: typeNumber, nullable: true},
	"architecture":   {typ: typeObject},
	"pricing":        {typ: typeObject},
}

func transformModels(items []map[string]any) ([]models.CanonicalEntity, error) {
	entities := make([]models.CanonicalEntity, 0, len(items))

	for i, item := range items {
		id, ok := asString(item["id"])
		if !ok || id == "" {
			return nil, validationErrorf(models.KindModels, "item %d: missing id", i)
		}

		fields := map[string]any{"entity_id": id}
		putString(fields, "name", item["name"])
		putString(fields, "description", item["description"])
		putEpoch(fields, "created_at", item["created"])
		putNumber(fields, "context_length", item["context_length"])

		if arch, present := child(item, "architecture"); present {
			putString(fields, "modality", arch["modality"])
			putString(fields, "tokenizer", arch["tokenizer"])
			putStrings(fields, "input_modalities", arch["input_modalities"])
		}
		// Pricing values arrive as numeric strings ("0.000002").
		if pricing, present := child(item, "pricing"); present {
			putNumber(fields, "pricing_prompt", pricing["prompt"])
			putNumber(fields, "pricing_completion", pricing["completion"])
			putNumber(fields, "pricing_request", pricing["request"])
			putNumber(fields, "pricing_image", pricing["image"])
		}

		entities = append(entities, models.CanonicalEntity{
			EntityType: models.EntityModel,
			EntityID:   id,
			Fields:     fields,
		})
	}

	return entities, nil
}

var strictEndpointSchema = strictSchema{
	"id":                    {typ: typeString},
	"name":                  {typ: typeString},
	"model_id":              {typ: typeString},
	"provider_name":         {typ: typeString},
	"context_length":        {typ: typeNumber, nullable: true},
	"max_completion_tokens": {typ: typeNumber, nullable: true},
	"quantization":          {typ: typeString, nullable: true},
	"status":                {typ: typeNumber},
	"pricing":               {typ: typeObject},
	"uptime_last_30m":       {typ: typeNumber, nullable: true},
}

func transformEndpoints(items []map[string]any) ([]models.CanonicalEntity, error) {
	entities := make([]models.CanonicalEntity, 0, len(items))

	for i, item := range items {
		id, ok := asString(item["id"])
		if !ok || id == "" {
			return nil, validationErrorf(models.KindEndpoints, "item %d: missing id", i)
		}

		fields := map[string]any{"entity_id": id}
		putString(fields, "name", item["name"])
		putString(fields, "model_id", item["model_id"])
		putString(fields, "provider_name", item["provider_name"])
		putNumber(fields, "context_length", item["context_length"])
		putNumber(fields, "max_completion_tokens", item["max_completion_tokens"])
		putString(fields, "quantization", item["quantization"])
		putNumber(fields, "status", item["status"])
		putNumber(fields, "uptime_last_30m", item["uptime_last_30m"])

		if pricing, present := child(item, "pricing"); present {
			putNumber(fields, "pricing_prompt", pricing["prompt"])
			putNumber(fields, "pricing_completion", pricing["completion"])
		}

		entities = append(entities, models.CanonicalEntity{
			EntityType: models.EntityEndpoint,
			EntityID:   id,
			Fields:     fields,
		})
	}

	return entities, nil
}

var strictProviderSchema = strictSchema{
	"id":                 {typ: typeString},
	"name":               {typ: typeString},
	"headquarters":       {typ: typeString, nullable: true},
	"datacenters":        {typ: typeArray, nullable: true},
	"may_log_prompts":    {typ: typeBool},
	"may_train_on_data":  {typ: typeBool},
	"moderation_required": {typ: typeBool},
	"status_page_url":    {typ: typeString, nullable: true},
}

func transformProviders(items []map[string]any) ([]models.CanonicalEntity, error) {
	entities := make([]models.CanonicalEntity, 0, len(items))

	for i, item := range items {
		id, ok := asString(item["id"])
		if !ok || id == "" {
			return nil, validationErrorf(models.KindProviders, "item %d: missing id", i)
		}

		fields := map[string]any{"entity_id": id}
		putString(fields, "name", item["name"])
		putString(fields, "headquarters", item["headquarters"])
		putStrings(fields, "datacenters", item["datacenters"])
		putBool(fields, "may_log_prompts", item["may_log_prompts"])
		putBool(fields, "may_train_on_data", item["may_train_on_data"])
		putBool(fields, "moderation_required", item["moderation_required"])
		putString(fields, "status_page_url", item["status_page_url"])

		entities = append(entities, models.CanonicalEntity{
			EntityType: models.EntityProvider,
			EntityID:   id,
			Fields:     fields,
		})
	}

	return entities, nil
}
