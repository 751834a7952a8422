// Package models defines the catalogwatch domain records shared across the
// ingestion pipeline, the stores, and the API.
package models

// Category is a crawl scheduling domain. Each category is fetched, validated,
// diffed, and persisted independently; one category failing never affects
// another.
type Category string

const (
	// CategoryCore covers the models, endpoints, and providers payloads,
	// crawled together in one run.
	CategoryCore Category = "core"
	// CategoryAuthors covers model author records.
	CategoryAuthors Category = "authors"
	// CategoryApps covers marketplace app rankings.
	CategoryApps Category = "apps"
	// CategoryUptimes covers per-endpoint uptime series.
	CategoryUptimes Category = "uptimes"
)

// Categories returns all crawl categories in scheduling order.
func Categories() []Category {
	return []Category{CategoryCore, CategoryAuthors, CategoryApps, CategoryUptimes}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryCore, CategoryAuthors, CategoryApps, CategoryUptimes:
		return true
	default:
		return false
	}
}

// PayloadKind identifies one upstream payload shape. A category crawl fetches
// one payload per kind; core fetches three.
type PayloadKind string

const (
	KindModels    PayloadKind = "models"
	KindEndpoints PayloadKind = "endpoints"
	KindProviders PayloadKind = "providers"
	KindAuthors   PayloadKind = "authors"
	KindApps      PayloadKind = "apps"
	KindUptimes   PayloadKind = "uptimes"
)

// Kinds returns the payload kinds fetched by one crawl of the category.
func (c Category) Kinds() []PayloadKind {
	switch c {
	case CategoryCore:
		return []PayloadKind{KindModels, KindEndpoints, KindProviders}
	case CategoryAuthors:
		return []PayloadKind{KindAuthors}
	case CategoryApps:
		return []PayloadKind{KindApps}
	case CategoryUptimes:
		return []PayloadKind{KindUptimes}
	default:
		return nil
	}
}

// EntityType identifies the kind of a canonical entity. Entity types are
// disjoint across categories so removal detection can be scoped to one
// category's materialized set.
type EntityType string

const (
	EntityModel    EntityType = "model"
	EntityEndpoint EntityType = "endpoint"
	EntityProvider EntityType = "provider"
	EntityAuthor   EntityType = "author"
	EntityApp      EntityType = "app"
	EntityUptime   EntityType = "uptime"
)

// Valid reports whether t is a known entity type.
func (t EntityType) Valid() bool {
	switch t {
	case EntityModel, EntityEndpoint, EntityProvider, EntityAuthor, EntityApp, EntityUptime:
		return true
	default:
		return false
	}
}

// EntityTypes returns the entity types a crawl of the category produces.
func (c Category) EntityTypes() []EntityType {
	switch c {
	case CategoryCore:
		return []EntityType{EntityModel, EntityEndpoint, EntityProvider}
	case CategoryAuthors:
		return []EntityType{EntityAuthor}
	case CategoryApps:
		return []EntityType{EntityApp}
	case CategoryUptimes:
		return []EntityType{EntityUptime}
	default:
		return nil
	}
}
