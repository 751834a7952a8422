package models

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	defaultCoreIntervalHours    = 1
	defaultAuthorsIntervalHours = 24
	defaultAppsIntervalHours    = 6
	defaultUptimesIntervalHours = 1
)

// CrawlConfig is the singleton scheduler configuration. Exactly one row
// exists; its absence means the scheduler is idle.
type CrawlConfig struct {
	Enabled              bool      `json:"enabled" db:"enabled"`
	CoreIntervalHours    int       `json:"core_interval_hours" db:"core_interval_hours"`
	AuthorsIntervalHours int       `json:"authors_interval_hours" db:"authors_interval_hours"`
	AppsIntervalHours    int       `json:"apps_interval_hours" db:"apps_interval_hours"`
	UptimesIntervalHours int       `json:"uptimes_interval_hours" db:"uptimes_interval_hours"`
	DelayMinutes         int       `json:"delay_minutes" db:"delay_minutes"`
	JitterMinutes        int       `json:"jitter_minutes" db:"jitter_minutes"`
	UpdatedAt            time.Time `json:"updated_at" db:"updated_at"`
}

// DefaultCrawlConfig returns a disabled configuration with the standard
// intervals filled in.
func DefaultCrawlConfig() CrawlConfig {
	return CrawlConfig{
		CoreIntervalHours:    defaultCoreIntervalHours,
		AuthorsIntervalHours: defaultAuthorsIntervalHours,
		AppsIntervalHours:    defaultAppsIntervalHours,
		UptimesIntervalHours: defaultUptimesIntervalHours,
	}
}

// Interval returns the crawl interval for the category.
func (c CrawlConfig) Interval(cat Category) time.Duration {
	hours := 0
	switch cat {
	case CategoryCore:
		hours = c.CoreIntervalHours
	case CategoryAuthors:
		hours = c.AuthorsIntervalHours
	case CategoryApps:
		hours = c.AppsIntervalHours
	case CategoryUptimes:
		hours = c.UptimesIntervalHours
	}
	return time.Duration(hours) * time.Hour
}

// Delay returns the fixed scheduling delay applied after the interval.
func (c CrawlConfig) Delay() time.Duration {
	return time.Duration(c.DelayMinutes) * time.Minute
}

// Validate checks the configuration for admin updates.
func (c CrawlConfig) Validate() error {
	for _, cat := range Categories() {
		if c.Interval(cat) <= 0 {
			return fmt.Errorf("interval for category %q must be positive", cat)
		}
	}
	if c.DelayMinutes < 0 {
		return fmt.Errorf("delay_minutes must not be negative")
	}
	if c.JitterMinutes < 0 {
		return fmt.Errorf("jitter_minutes must not be negative")
	}
	return nil
}

// RunStatus is the lifecycle state of a crawl run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// CrawlRun is the durable record of one fetch-and-ingest cycle for a single
// category. It gives the scheduler a restart-safe last-run timestamp and
// operators a record of failures.
type CrawlRun struct {
	ID          string     `json:"id" db:"id"`
	Category    Category   `json:"category" db:"category"`
	Status      RunStatus  `json:"status" db:"status"`
	Error       string     `json:"error,omitempty" db:"error"`
	Created     int        `json:"created" db:"created"`
	Updated     int        `json:"updated" db:"updated"`
	Removed     int        `json:"removed" db:"removed"`
	StartedAt   time.Time  `json:"started_at" db:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// RawSnapshot is one upstream payload exactly as fetched, retained for audit.
// Rows are insert-only and never mutated.
type RawSnapshot struct {
	CrawlID   string          `json:"crawl_id" db:"crawl_id"`
	Category  Category        `json:"category" db:"category"`
	Kind      PayloadKind     `json:"kind" db:"kind"`
	Payload   json.RawMessage `json:"payload" db:"payload"`
	FetchedAt time.Time       `json:"fetched_at" db:"fetched_at"`
}
