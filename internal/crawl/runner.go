// Package crawl orchestrates one fetch-and-ingest cycle for a catalog
// category: fetch every payload the category covers, validate, diff against
// the prior materialized state, and persist the change set atomically.
package crawl

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/catalogwatch/internal/diff"
	"github.com/jonesrussell/catalogwatch/internal/events"
	"github.com/jonesrussell/catalogwatch/internal/ingest"
	"github.com/jonesrussell/catalogwatch/internal/logger"
	"github.com/jonesrussell/catalogwatch/internal/models"
	"github.com/jonesrussell/catalogwatch/internal/repository"
	"github.com/jonesrussell/catalogwatch/internal/retry"
)

// Fetcher retrieves one upstream payload by kind.
type Fetcher interface {
	Fetch(ctx context.Context, kind models.PayloadKind) (json.RawMessage, error)
}

// Runner executes category crawls. Safe for concurrent use across distinct
// categories; the scheduler guarantees no two runs of the same category
// overlap.
type Runner struct {
	db        *sqlx.DB
	fetcher   Fetcher
	snapshots *repository.SnapshotRepository
	states    *repository.MaterializedStateRepository
	changes   *repository.ChangeLogRepository
	runs      *repository.CrawlRunRepository
	publisher *events.Publisher
	retryCfg  retry.Config
	logger    logger.Logger
}

func NewRunner(
	db *sqlx.DB,
	fetcher Fetcher,
	snapshots *repository.SnapshotRepository,
	states *repository.MaterializedStateRepository,
	changes *repository.ChangeLogRepository,
	runs *repository.CrawlRunRepository,
	publisher *events.Publisher,
	log logger.Logger,
) *Runner {
	return &Runner{
		db:        db,
		fetcher:   fetcher,
		snapshots: snapshots,
		states:    states,
		changes:   changes,
		runs:      runs,
		publisher: publisher,
		retryCfg:  retry.DefaultConfig(),
		logger:    log,
	}
}

// fetched is one payload with its validated entities.
type fetched struct {
	kind      models.PayloadKind
	payload   json.RawMessage
	fetchedAt time.Time
	entities  []models.CanonicalEntity
}

// Run executes one crawl of the category end to end and records its outcome
// as a crawl run. Any fetch or validation error aborts the whole category
// with no partial writes.
func (r *Runner) Run(ctx context.Context, category models.Category) (*models.CrawlRun, error) {
	run := &models.CrawlRun{
		ID:       uuid.NewString(),
		Category: category,
	}
	if err := r.runs.Start(ctx, run); err != nil {
		return nil, fmt.Errorf("start crawl run: %w", err)
	}

	r.logger.Info("Crawl started",
		logger.String("crawl_id", run.ID),
		logger.String("category", string(category)),
	)

	if err := r.execute(ctx, run); err != nil {
		r.fail(ctx, run, err)
		return run, err
	}

	run.Status = models.RunSucceeded
	if err := r.runs.Complete(ctx, run); err != nil {
		return run, fmt.Errorf("complete crawl run: %w", err)
	}

	r.logger.Info("Crawl completed",
		logger.String("crawl_id", run.ID),
		logger.String("category", string(category)),
		logger.Int("created", run.Created),
		logger.Int("updated", run.Updated),
		logger.Int("removed", run.Removed),
	)

	r.publisher.PublishAsync(events.CrawlEvent{
		EventType: events.EventCrawlCompleted,
		CrawlID:   run.ID,
		Category:  category,
		Created:   run.Created,
		Updated:   run.Updated,
		Removed:   run.Removed,
	})

	return run, nil
}

func (r *Runner) execute(ctx context.Context, run *models.CrawlRun) error {
	payloads, err := r.fetchAndValidate(ctx, run)
	if err != nil {
		return err
	}

	return retry.Do(ctx, r.retryCfg, func() error {
		return r.persist(ctx, run, payloads)
	})
}

// fetchAndValidate pulls every payload the category covers and runs both
// validation passes. A drift warning is reported and the crawl continues; a
// transform failure aborts it.
func (r *Runner) fetchAndValidate(ctx context.Context, run *models.CrawlRun) ([]fetched, error) {
	kinds := run.Category.Kinds()
	payloads := make([]fetched, 0, len(kinds))

	for _, kind := range kinds {
		payload, err := r.fetcher.Fetch(ctx, kind)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", kind, err)
		}
		fetchedAt := time.Now().UTC()

		entities, drift, err := ingest.Validate(payload, kind)
		if err != nil {
			return nil, fmt.Errorf("validate %s: %w", kind, err)
		}
		if drift != nil {
			r.logger.Warn("Payload schema drift",
				logger.String("crawl_id", run.ID),
				logger.String("kind", string(kind)),
				logger.Int("details", len(drift.Details)),
				logger.Any("sample", drift.Details),
			)
			r.publisher.PublishAsync(events.CrawlEvent{
				EventType: events.EventSchemaDrift,
				CrawlID:   run.ID,
				Category:  run.Category,
				Error:     drift.String(),
			})
		}

		payloads = append(payloads, fetched{
			kind:      kind,
			payload:   payload,
			fetchedAt: fetchedAt,
			entities:  entities,
		})
	}

	return payloads, nil
}

// persist writes the crawl's snapshots, change records, and state updates in
// one transaction. Prior states are re-read under lock on every attempt so a
// retried transaction diffs against current data.
func (r *Runner) persist(ctx context.Context, run *models.CrawlRun, payloads []fetched) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin crawl transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, p := range payloads {
		snapshot := models.RawSnapshot{
			CrawlID:   run.ID,
			Category:  run.Category,
			Kind:      p.kind,
			Payload:   p.payload,
			FetchedAt: p.fetchedAt,
		}
		if err := r.snapshots.InsertTx(ctx, tx, snapshot); err != nil {
			return err
		}
	}

	prior, err := r.states.ListForUpdateTx(ctx, tx, run.Category.EntityTypes())
	if err != nil {
		return err
	}

	var entities []models.CanonicalEntity
	for _, p := range payloads {
		entities = append(entities, p.entities...)
	}

	result := diff.Compute(prior, entities, run.ID, time.Now().UTC())

	if err := r.changes.AppendTx(ctx, tx, result.Changes); err != nil {
		return err
	}
	for _, state := range result.Upserts {
		if err := r.states.UpsertTx(ctx, tx, state); err != nil {
			return err
		}
	}
	for _, key := range result.Removals {
		if err := r.states.DeleteTx(ctx, tx, key); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit crawl transaction: %w", err)
	}

	run.Created, run.Updated, run.Removed = countByKind(result.Changes)
	return nil
}

func (r *Runner) fail(ctx context.Context, run *models.CrawlRun, cause error) {
	run.Status = models.RunFailed
	run.Error = cause.Error()

	if err := r.runs.Complete(ctx, run); err != nil {
		r.logger.Error("Failed to record crawl failure",
			logger.String("crawl_id", run.ID),
			logger.Error(err),
		)
	}

	r.logger.Error("Crawl failed",
		logger.String("crawl_id", run.ID),
		logger.String("category", string(run.Category)),
		logger.Error(cause),
	)

	r.publisher.PublishAsync(events.CrawlEvent{
		EventType: events.EventCrawlFailed,
		CrawlID:   run.ID,
		Category:  run.Category,
		Error:     cause.Error(),
	})
}

func countByKind(records []models.ChangeRecord) (created, updated, removed int) {
	for _, rec := range records {
		switch rec.Kind {
		case models.ChangeCreated:
			created++
		case models.ChangeUpdated:
			updated++
		case models.ChangeRemoved:
			removed++
		}
	}
	return created, updated, removed
}
