// Package ingest turns raw upstream catalog payloads into canonical entity
// records.
//
// Every payload kind gets two independent validation passes. The strict pass
// checks the payload against the exact upstream shape and exists solely to
// detect schema drift; its failure is a non-fatal warning. The transform pass
// is the operative mapping; its failure aborts the whole category crawl so no
// partial state is written.
package ingest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jonesrussell/catalogwatch/internal/models"
)

// ValidationError is a fatal transform-pass failure. The crawl that produced
// it commits nothing.
type ValidationError struct {
	Kind   models.PayloadKind
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validate %s payload: %s", e.Kind, e.Reason)
}

func validationErrorf(kind models.PayloadKind, format string, args ...any) error {
	return &ValidationError{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// DriftWarning is a non-fatal strict-pass failure: the upstream shape changed
// in ways the strict contract does not know yet. The crawl proceeds normally.
type DriftWarning struct {
	Kind    models.PayloadKind
	Details []string
}

func (w *DriftWarning) String() string {
	return fmt.Sprintf("schema drift in %s payload: %s", w.Kind, strings.Join(w.Details, "; "))
}

type transformFunc func(items []map[string]any) ([]models.CanonicalEntity, error)

type schemaPair struct {
	strict    strictSchema
	transform transformFunc
}

var schemas = map[models.PayloadKind]schemaPair{
	models.KindModels:    {strict: strictModelSchema, transform: transformModels},
	models.KindEndpoints: {strict: strictEndpointSchema, transform: transformEndpoints},
	models.KindProviders: {strict: strictProviderSchema, transform: transformProviders},
	models.KindAuthors:   {strict: strictAuthorSchema, transform: transformAuthors},
	models.KindApps:      {strict: strictAppSchema, transform: transformApps},
	models.KindUptimes:   {strict: strictUptimeSchema, transform: transformUptimes},
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

// Validate runs both passes for one payload kind. The returned DriftWarning
// is nil when the strict pass succeeds. A non-nil error means the transform
// pass failed and the category crawl must abort.
func Validate(raw []byte, kind models.PayloadKind) ([]models.CanonicalEntity, *DriftWarning, error) {
	pair, ok := schemas[kind]
	if !ok {
		return nil, nil, validationErrorf(kind, "no schema registered")
	}

	items, err := decodeItems(raw, kind)
	if err != nil {
		return nil, nil, err
	}

	drift := CheckStrict(items, kind)

	entities, err := pair.transform(items)
	if err != nil {
		return nil, drift, err
	}

	return entities, drift, nil
}

// CheckStrict runs only the strict pass over already decoded items. It is
// exported so drift detection stays independently callable and testable.
func CheckStrict(items []map[string]any, kind models.PayloadKind) *DriftWarning {
	pair, ok := schemas[kind]
	if !ok {
		return &DriftWarning{Kind: kind, Details: []string{"no schema registered"}}
	}
	details := pair.strict.check(items)
	if len(details) == 0 {
		return nil
	}
	return &DriftWarning{Kind: kind, Details: details}
}

func decodeItems(raw []byte, kind models.PayloadKind) ([]map[string]any, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, validationErrorf(kind, "payload is not a JSON object: %v", err)
	}
	if len(env.Data) == 0 {
		return nil, validationErrorf(kind, "payload has no data array")
	}

	var items []map[string]any
	if err := json.Unmarshal(env.Data, &items); err != nil {
		return nil, validationErrorf(kind, "data is not an array of objects: %v", err)
	}
	return items, nil
}
