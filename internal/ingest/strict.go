package ingest

import (
	"fmt"
	"sort"
)

// maxDriftDetails caps how many discrepancies one warning reports.
const maxDriftDetails = 20

type fieldType int

const (
	typeString fieldType = iota
	typeNumber
	typeBool
	typeObject
	typeArray
)

func (t fieldType) String() string {
	switch t {
	case typeString:
		return "string"
	case typeNumber:
		return "number"
	case typeBool:
		return "bool"
	case typeObject:
		return "object"
	case typeArray:
		return "array"
	default:
		return "unknown"
	}
}

type strictField struct {
	typ      fieldType
	nullable bool
}

// strictSchema is the exact upstream shape of one item: every listed field
// must be present with the listed type, and no other fields may appear.
type strictSchema map[string]strictField

// check returns one detail line per discrepancy, deterministic in order.
func (s strictSchema) check(items []map[string]any) []string {
	var details []string

	for i, item := range items {
		for _, name := range sortedKeys(s) {
			field := s[name]
			val, present := item[name]
			if !present {
				details = append(details, fmt.Sprintf("item %d: missing field %q", i, name))
				continue
			}
			if val == nil {
				if !field.nullable {
					details = append(details, fmt.Sprintf("item %d: field %q is null", i, name))
				}
				continue
			}
			if got := typeOf(val); got != field.typ {
				details = append(details,
					fmt.Sprintf("item %d: field %q has type %s, want %s", i, name, got, field.typ))
			}
		}

		for _, name := range sortedKeys(item) {
			if _, known := s[name]; !known {
				details = append(details, fmt.Sprintf("item %d: unexpected field %q", i, name))
			}
		}

		if len(details) >= maxDriftDetails {
			return details[:maxDriftDetails]
		}
	}

	return details
}

func typeOf(val any) fieldType {
	switch val.(type) {
	case string:
		return typeString
	case float64:
		return typeNumber
	case bool:
		return typeBool
	case map[string]any:
		return typeObject
	case []any:
		return typeArray
	default:
		return fieldType(-1)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
