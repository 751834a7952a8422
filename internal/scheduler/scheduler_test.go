package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/catalogwatch/internal/logger"
	"github.com/jonesrussell/catalogwatch/internal/models"
)

type fakeRunner struct {
	mu      sync.Mutex
	runs    []models.Category
	block   chan struct{}
	failAll bool
}

func (f *fakeRunner) Run(_ context.Context, cat models.Category) (*models.CrawlRun, error) {
	f.mu.Lock()
	f.runs = append(f.runs, cat)
	f.mu.Unlock()

	if f.block != nil {
		<-f.block
	}
	if f.failAll {
		return nil, errors.New("crawl failed")
	}
	now := time.Now().UTC()
	return &models.CrawlRun{Category: cat, Status: models.RunSucceeded, CompletedAt: &now}, nil
}

func (f *fakeRunner) ranCategories() []models.Category {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Category, len(f.runs))
	copy(out, f.runs)
	return out
}

type fakeConfig struct {
	cfg *models.CrawlConfig
	err error
}

func (f *fakeConfig) Get(context.Context) (*models.CrawlConfig, error) {
	return f.cfg, f.err
}

type fakeHistory struct {
	last map[models.Category]time.Time
}

func (f *fakeHistory) LastCompleted(context.Context) (map[models.Category]time.Time, error) {
	return f.last, nil
}

func enabledConfig() *models.CrawlConfig {
	cfg := models.DefaultCrawlConfig()
	cfg.Enabled = true
	return &cfg
}

func newScheduler(runner *fakeRunner, cfg *fakeConfig, hist *fakeHistory) *Scheduler {
	s := New(runner, cfg, hist, logger.NewNop())
	s.jitterFn = func(time.Duration) time.Duration { return 0 }
	return s
}

func TestScheduler_Tick_NeverRanCategoriesAreDueImmediately(t *testing.T) {
	runner := &fakeRunner{}
	s := newScheduler(runner, &fakeConfig{cfg: enabledConfig()}, &fakeHistory{})

	s.Tick(context.Background(), time.Now().UTC())
	s.wg.Wait()

	assert.ElementsMatch(t, models.Categories(), runner.ranCategories())
}

func TestScheduler_Tick_DisabledConfigStaysIdle(t *testing.T) {
	runner := &fakeRunner{}
	cfg := enabledConfig()
	cfg.Enabled = false
	s := newScheduler(runner, &fakeConfig{cfg: cfg}, &fakeHistory{})

	s.Tick(context.Background(), time.Now().UTC())
	s.wg.Wait()

	assert.Empty(t, runner.ranCategories())
}

func TestScheduler_Tick_ConfigErrorStaysIdle(t *testing.T) {
	runner := &fakeRunner{}
	s := newScheduler(runner, &fakeConfig{err: errors.New("not configured")}, &fakeHistory{})

	s.Tick(context.Background(), time.Now().UTC())
	s.wg.Wait()

	assert.Empty(t, runner.ranCategories())
}

func TestScheduler_Tick_RespectsIntervalDelayAndJitter(t *testing.T) {
	runner := &fakeRunner{}
	cfg := enabledConfig()
	cfg.DelayMinutes = 5
	cfg.JitterMinutes = 10

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	hist := &fakeHistory{last: map[models.Category]time.Time{}}
	for _, cat := range models.Categories() {
		hist.last[cat] = base
	}

	s := newScheduler(runner, &fakeConfig{cfg: cfg}, hist)
	s.jitterFn = func(max time.Duration) time.Duration {
		require.Equal(t, 10*time.Minute, max)
		return 3 * time.Minute
	}
	require.NoError(t, seedFromHistory(s, hist))

	// Core interval is 1h; due at base + 1h + 5m delay + 3m jitter.
	s.Tick(context.Background(), base.Add(time.Hour+7*time.Minute))
	s.wg.Wait()
	assert.NotContains(t, runner.ranCategories(), models.CategoryCore)

	s.Tick(context.Background(), base.Add(time.Hour+8*time.Minute))
	s.wg.Wait()
	assert.Contains(t, runner.ranCategories(), models.CategoryCore)
	assert.NotContains(t, runner.ranCategories(), models.CategoryAuthors)
}

func TestScheduler_Tick_JitterDrawnOncePerPendingRun(t *testing.T) {
	runner := &fakeRunner{}
	cfg := enabledConfig()
	cfg.JitterMinutes = 30

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	hist := &fakeHistory{last: map[models.Category]time.Time{
		models.CategoryCore: base,
	}}

	draws := 0
	s := newScheduler(runner, &fakeConfig{cfg: cfg}, hist)
	s.jitterFn = func(time.Duration) time.Duration {
		draws++
		return 20 * time.Minute
	}
	require.NoError(t, seedFromHistory(s, hist))

	// Several not-yet-due ticks must reuse the single drawn jitter.
	for i := range 5 {
		s.Tick(context.Background(), base.Add(time.Hour+time.Duration(i)*time.Minute))
	}
	s.wg.Wait()

	assert.Equal(t, 1, draws)
	assert.NotContains(t, runner.ranCategories(), models.CategoryCore)
}

func TestScheduler_Tick_NoOverlappingRunsPerCategory(t *testing.T) {
	runner := &fakeRunner{block: make(chan struct{})}
	s := newScheduler(runner, &fakeConfig{cfg: enabledConfig()}, &fakeHistory{})

	now := time.Now().UTC()
	s.Tick(context.Background(), now)
	s.Tick(context.Background(), now.Add(time.Minute))

	close(runner.block)
	s.wg.Wait()

	counts := make(map[models.Category]int)
	for _, cat := range runner.ranCategories() {
		counts[cat]++
	}
	for cat, n := range counts {
		assert.Equal(t, 1, n, "category %s ran %d times", cat, n)
	}
}

func TestScheduler_Tick_FailedRunStillAdvancesLastRun(t *testing.T) {
	runner := &fakeRunner{failAll: true}
	s := newScheduler(runner, &fakeConfig{cfg: enabledConfig()}, &fakeHistory{})

	s.Tick(context.Background(), time.Now().UTC())
	s.wg.Wait()
	require.Len(t, runner.ranCategories(), len(models.Categories()))

	// Immediately after a failure nothing is due again.
	s.Tick(context.Background(), time.Now().UTC())
	s.wg.Wait()
	assert.Len(t, runner.ranCategories(), len(models.Categories()))
}

// seedFromHistory mirrors Start's seeding without starting the cron ticker.
func seedFromHistory(s *Scheduler, hist *fakeHistory) error {
	last, err := hist.LastCompleted(context.Background())
	if err != nil {
		return err
	}
	s.mu.Lock()
	for cat, at := range last {
		s.lastRun[cat] = at
	}
	s.mu.Unlock()
	return nil
}
