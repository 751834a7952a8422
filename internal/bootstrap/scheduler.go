package bootstrap

import (
	"context"

	"github.com/jonesrussell/catalogwatch/internal/config"
	"github.com/jonesrussell/catalogwatch/internal/crawl"
	"github.com/jonesrussell/catalogwatch/internal/database"
	"github.com/jonesrussell/catalogwatch/internal/events"
	"github.com/jonesrussell/catalogwatch/internal/fetch"
	"github.com/jonesrussell/catalogwatch/internal/logger"
	"github.com/jonesrussell/catalogwatch/internal/repository"
	"github.com/jonesrussell/catalogwatch/internal/scheduler"
)

// SetupScheduler wires the crawl runner and starts the scheduler loop.
func SetupScheduler(
	ctx context.Context,
	cfg *config.Config,
	db *database.DB,
	publisher *events.Publisher,
	log logger.Logger,
) (*scheduler.Scheduler, error) {
	sqlxDB := db.DB()
	runner := crawl.NewRunner(
		sqlxDB,
		fetch.NewClient(cfg.Upstream, log),
		repository.NewSnapshotRepository(sqlxDB, log),
		repository.NewMaterializedStateRepository(sqlxDB, log),
		repository.NewChangeLogRepository(sqlxDB, log),
		repository.NewCrawlRunRepository(sqlxDB, log),
		publisher,
		log,
	)

	sched := scheduler.New(
		runner,
		repository.NewCrawlConfigRepository(sqlxDB, log),
		repository.NewCrawlRunRepository(sqlxDB, log),
		log,
	)

	if err := sched.Start(ctx, cfg.Crawler.TickInterval); err != nil {
		return nil, err
	}
	return sched, nil
}
