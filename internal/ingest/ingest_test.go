package ingest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/catalogwatch/internal/models"
)

func TestValidate_Models(t *testing.T) {
	payload := []byte(`{"data":[{
		"id": "acme/gpt-1",
		"name": "Acme GPT-1",
		"created": "2024-03-01T00:00:00Z",
		"description": null,
		"context_length": 128000,
		"architecture": {"modality": "text", "tokenizer": "acme", "input_modalities": ["text", "image"]},
		"pricing": {"prompt": "0.000002", "completion": "0.000006"}
	}]}`)

	entities, drift, err := Validate(payload, models.KindModels)
	require.NoError(t, err)
	assert.Nil(t, drift)
	require.Len(t, entities, 1)

	e := entities[0]
	assert.Equal(t, models.EntityModel, e.EntityType)
	assert.Equal(t, "acme/gpt-1", e.EntityID)
	assert.Equal(t, "Acme GPT-1", e.Fields["name"])
	assert.Equal(t, float64(128000), e.Fields["context_length"])
	// numeric-string pricing coerced to numbers
	assert.Equal(t, 0.000002, e.Fields["pricing_prompt"])
	assert.Equal(t, 0.000006, e.Fields["pricing_completion"])
	// ISO date converted to epoch millis
	assert.Equal(t, float64(1709251200000), e.Fields["created_at"])
	// null description dropped
	_, present := e.Fields["description"]
	assert.False(t, present)
	// nested architecture flattened
	assert.Equal(t, "text", e.Fields["modality"])
	assert.Equal(t, []any{"text", "image"}, e.Fields["input_modalities"])
}

func TestValidate_Models_DriftIsNonFatal(t *testing.T) {
	// An unexpected field trips the strict pass but not the transform pass.
	payload := []byte(`{"data":[{
		"id": "acme/gpt-1",
		"name": "Acme GPT-1",
		"created": "2024-03-01T00:00:00Z",
		"description": "d",
		"context_length": 8192,
		"architecture": {},
		"pricing": {},
		"brand_new_field": true
	}]}`)

	entities, drift, err := Validate(payload, models.KindModels)
	require.NoError(t, err)
	require.Len(t, entities, 1)
	require.NotNil(t, drift)
	assert.Contains(t, drift.String(), `unexpected field "brand_new_field"`)
}

func TestValidate_Models_MissingIDIsFatal(t *testing.T) {
	payload := []byte(`{"data":[{"name": "nameless"}]}`)

	_, _, err := Validate(payload, models.KindModels)
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, models.KindModels, verr.Kind)
}

func TestValidate_Endpoints(t *testing.T) {
	payload := []byte(`{"data":[{
		"id": "acme/gpt-1|acmecloud",
		"name": "Acme GPT-1 (AcmeCloud)",
		"model_id": "acme/gpt-1",
		"provider_name": "AcmeCloud",
		"context_length": 128000,
		"max_completion_tokens": null,
		"quantization": "fp8",
		"status": 0,
		"pricing": {"prompt": "0.002", "completion": "0.003"},
		"uptime_last_30m": 99.7
	}]}`)

	entities, drift, err := Validate(payload, models.KindEndpoints)
	require.NoError(t, err)
	assert.Nil(t, drift)
	require.Len(t, entities, 1)

	e := entities[0]
	assert.Equal(t, models.EntityEndpoint, e.EntityType)
	assert.Equal(t, 0.002, e.Fields["pricing_prompt"])
	assert.Equal(t, "fp8", e.Fields["quantization"])
	assert.Equal(t, 99.7, e.Fields["uptime_last_30m"])
	_, present := e.Fields["max_completion_tokens"]
	assert.False(t, present)
}

func TestValidate_Providers(t *testing.T) {
	payload := []byte(`{"data":[{
		"id": "acmecloud",
		"name": "AcmeCloud",
		"headquarters": "US",
		"datacenters": ["us-east", "eu-west"],
		"may_log_prompts": false,
		"may_train_on_data": false,
		"moderation_required": true,
		"status_page_url": null
	}]}`)

	entities, drift, err := Validate(payload, models.KindProviders)
	require.NoError(t, err)
	assert.Nil(t, drift)
	require.Len(t, entities, 1)

	e := entities[0]
	assert.Equal(t, models.EntityProvider, e.EntityType)
	assert.Equal(t, false, e.Fields["may_log_prompts"])
	assert.Equal(t, []any{"us-east", "eu-west"}, e.Fields["datacenters"])
}

func TestValidate_Authors(t *testing.T) {
	payload := []byte(`{"data":[{
		"id": "acme",
		"name": "Acme AI",
		"description": null,
		"created": "2023-01-15T12:00:00Z",
		"model_count": 12
	}]}`)

	entities, drift, err := Validate(payload, models.KindAuthors)
	require.NoError(t, err)
	assert.Nil(t, drift)
	require.Len(t, entities, 1)
	assert.Equal(t, models.EntityAuthor, entities[0].EntityType)
	assert.Equal(t, float64(12), entities[0].Fields["model_count"])
}

func TestValidate_Apps_FlattensNestedObject(t *testing.T) {
	payload := []byte(`{"data":[{
		"app": {
			"id": 42,
			"title": "ChatThing",
			"description": "a chat thing",
			"main_url": "https://chatthing.example",
			"origin_url": "https://chatthing.example/start",
			"created_at": "2024-06-01T00:00:00Z",
			"source_code_url": null
		},
		"total_tokens": "987654321"
	}]}`)

	entities, drift, err := Validate(payload, models.KindApps)
	require.NoError(t, err)
	assert.Nil(t, drift)
	require.Len(t, entities, 1)

	e := entities[0]
	assert.Equal(t, models.EntityApp, e.EntityType)
	// numeric upstream id renamed and stringified
	assert.Equal(t, "42", e.EntityID)
	assert.Equal(t, "42", e.Fields["app_id"])
	// nested app fields merged beside the sibling aggregate
	assert.Equal(t, "ChatThing", e.Fields["title"])
	assert.Equal(t, float64(987654321), e.Fields["total_tokens"])
}

func TestValidate_Uptimes_ProducesOrderedSeries(t *testing.T) {
	// History arrives unordered; the canonical series is ascending.
	payload := []byte(`{"data":[{
		"id": "acme/gpt-1|acmecloud",
		"history": [
			{"timestamp": "2024-07-01T02:00:00Z", "uptime": 99.1},
			{"timestamp": "2024-07-01T00:00:00Z", "uptime": 100},
			{"timestamp": "2024-07-01T01:00:00Z", "uptime": 98.5}
		]
	}]}`)

	entities, drift, err := Validate(payload, models.KindUptimes)
	require.NoError(t, err)
	assert.Nil(t, drift)
	require.Len(t, entities, 1)

	e := entities[0]
	assert.Equal(t, models.EntityUptime, e.EntityType)

	history, ok := e.Fields["history"].([]any)
	require.True(t, ok)
	require.Len(t, history, 3)

	var prev float64
	for _, member := range history {
		point := member.(map[string]any)
		ts := point["timestamp"].(float64)
		assert.Greater(t, ts, prev)
		prev = ts
	}

	assert.Equal(t, 99.1, e.Fields["latest_uptime"])
}

func TestValidate_Uptimes_BadPointIsFatal(t *testing.T) {
	payload := []byte(`{"data":[{
		"id": "e1",
		"history": [{"timestamp": "not-a-date", "uptime": 99}]
	}]}`)

	_, _, err := Validate(payload, models.KindUptimes)
	require.Error(t, err)
}

func TestValidate_EmptyData(t *testing.T) {
	_, _, err := Validate([]byte(`{"something_else": []}`), models.KindModels)
	require.Error(t, err)
}

func TestValidate_NonArrayData(t *testing.T) {
	_, _, err := Validate([]byte(`{"data": {"id": "x"}}`), models.KindModels)
	require.Error(t, err)
}

func TestCheckStrict_ReportsMissingAndTypeMismatch(t *testing.T) {
	items := []map[string]any{{
		"id":      "acme",
		"name":    123.0, // wrong type
		"created": "2023-01-15T12:00:00Z",
		// description and model_count missing
	}}

	drift := CheckStrict(items, models.KindAuthors)
	require.NotNil(t, drift)
	assert.Contains(t, drift.String(), `missing field "description"`)
	assert.Contains(t, drift.String(), `field "name" has type number, want string`)
}
