// Package scheduler drives recurring category crawls. A cron ticker fires
// once a minute; each tick re-reads the stored crawl configuration, so admin
// changes take effect without a restart, and launches any category whose next
// due time has passed. A category never runs concurrently with itself.
package scheduler

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jonesrussell/catalogwatch/internal/logger"
	"github.com/jonesrussell/catalogwatch/internal/models"
)

// CategoryRunner executes one crawl of a category.
type CategoryRunner interface {
	Run(ctx context.Context, category models.Category) (*models.CrawlRun, error)
}

// ConfigSource supplies the current crawl configuration.
type ConfigSource interface {
	Get(ctx context.Context) (*models.CrawlConfig, error)
}

// RunHistory restores last-run times across restarts.
type RunHistory interface {
	LastCompleted(ctx context.Context) (map[models.Category]time.Time, error)
}

// Scheduler decides when each category is due and launches crawls. One jitter
// value is drawn per pending run, so a pending category's due time stays fixed
// until it actually runs.
type Scheduler struct {
	runner  CategoryRunner
	configs ConfigSource
	history RunHistory
	logger  logger.Logger

	cron *cron.Cron
	// jitterFn draws a random duration in [0, max). Tests replace it.
	jitterFn func(max time.Duration) time.Duration

	mu       sync.Mutex
	lastRun  map[models.Category]time.Time
	jitter   map[models.Category]time.Duration
	inFlight map[models.Category]bool

	wg sync.WaitGroup
}

func New(
	runner CategoryRunner,
	configs ConfigSource,
	history RunHistory,
	log logger.Logger,
) *Scheduler {
	return &Scheduler{
		runner:   runner,
		configs:  configs,
		history:  history,
		logger:   log,
		jitterFn: randomJitter,
		lastRun:  make(map[models.Category]time.Time),
		jitter:   make(map[models.Category]time.Duration),
		inFlight: make(map[models.Category]bool),
	}
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max)))
}

// Start seeds last-run times from the run history and begins ticking.
// tickInterval is how often due categories are checked.
func (s *Scheduler) Start(ctx context.Context, tickInterval time.Duration) error {
	last, err := s.history.LastCompleted(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	for cat, at := range last {
		s.lastRun[cat] = at
	}
	s.mu.Unlock()

	s.cron = cron.New()
	_, err = s.cron.AddFunc("@every "+tickInterval.String(), func() {
		s.Tick(ctx, time.Now().UTC())
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("Scheduler started",
		logger.Duration("tick_interval", tickInterval),
	)
	return nil
}

// Stop halts ticking and waits for in-flight crawls to finish.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

// Tick launches every category due at now. It is the whole scheduling policy
// and is called directly by tests with a synthetic clock.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	cfg, err := s.configs.Get(ctx)
	if err != nil {
		// Absent or unreadable config means stay idle until it appears.
		return
	}
	if !cfg.Enabled {
		return
	}

	for _, cat := range models.Categories() {
		if s.shouldRun(cat, cfg, now) {
			s.launch(ctx, cat)
		}
	}
}

// shouldRun checks one category's due time, drawing its jitter on first
// evaluation of the pending run.
func (s *Scheduler) shouldRun(cat models.Category, cfg *models.CrawlConfig, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inFlight[cat] {
		return false
	}

	last, ran := s.lastRun[cat]
	if !ran {
		return true
	}

	jit, drawn := s.jitter[cat]
	if !drawn {
		jit = s.jitterFn(time.Duration(cfg.JitterMinutes) * time.Minute)
		s.jitter[cat] = jit
	}

	due := last.Add(cfg.Interval(cat)).Add(cfg.Delay()).Add(jit)
	return !now.Before(due)
}

func (s *Scheduler) launch(ctx context.Context, cat models.Category) {
	s.mu.Lock()
	s.inFlight[cat] = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		run, err := s.runner.Run(ctx, cat)
		if err != nil {
			s.logger.Error("Scheduled crawl failed",
				logger.String("category", string(cat)),
				logger.Error(err),
			)
		}

		finished := time.Now().UTC()
		if run != nil && run.CompletedAt != nil {
			finished = *run.CompletedAt
		}

		s.mu.Lock()
		s.lastRun[cat] = finished
		delete(s.jitter, cat)
		s.inFlight[cat] = false
		s.mu.Unlock()
	}()
}
