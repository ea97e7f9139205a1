package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"eventdash/internal/cache"
	"eventdash/internal/models"
	"eventdash/internal/observability"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is one periodically fetched data type: its pipeline entry point, its
// interval, and its retention cap.
type Job struct {
	Type       models.DataType
	Interval   time.Duration
	MaxEntries int
	Fetch      func(ctx context.Context) (*models.FetchResult, error)

	mu sync.Mutex
}

// Scheduler drives each job on its own fixed interval and trims the cache
// after every run. Overlapping triggers for the same type are skipped rather
// than queued, so at most one fetch per type is ever in flight.
type Scheduler struct {
	cron         *cron.Cron
	jobs         []*Job
	store        *cache.Cache
	metrics      *observability.Metrics
	logger       *zap.Logger
	fetchTimeout time.Duration
	running      bool
	mu           sync.Mutex
	initial      sync.WaitGroup
}

func New(jobs []*Job, store *cache.Cache, fetchTimeout time.Duration, metrics *observability.Metrics, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:         cron.New(),
		jobs:         jobs,
		store:        store,
		metrics:      metrics,
		logger:       logger,
		fetchTimeout: fetchTimeout,
	}
}

// Start registers the cron entries and fires an immediate initial run for
// every job.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	for _, job := range s.jobs {
		job := job
		spec := fmt.Sprintf("@every %s", job.Interval)
		if _, err := s.cron.AddFunc(spec, func() { s.RunJob(job) }); err != nil {
			return fmt.Errorf("scheduling %s: %w", job.Type, err)
		}
		s.logger.Info("Scheduled fetch job",
			zap.String("type", string(job.Type)),
			zap.Duration("interval", job.Interval),
			zap.Int("max_entries", job.MaxEntries))
	}

	s.cron.Start()
	s.running = true

	// Populate the cache right away instead of waiting out the first interval.
	for _, job := range s.jobs {
		job := job
		s.initial.Add(1)
		go func() {
			defer s.initial.Done()
			s.RunJob(job)
		}()
	}

	return nil
}

// RunJob executes one fetch-then-trim cycle for a job, skipping when a
// previous cycle for the same type is still in flight.
func (s *Scheduler) RunJob(job *Job) {
	if !job.mu.TryLock() {
		s.metrics.SchedulerSkips.WithLabelValues(string(job.Type)).Inc()
		s.logger.Info("Skipping fetch, previous run still in flight",
			zap.String("type", string(job.Type)))
		return
	}
	defer job.mu.Unlock()

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), s.fetchTimeout)
	defer cancel()

	res, err := job.Fetch(ctx)
	if err != nil {
		s.logger.Error("Scheduled fetch failed",
			zap.String("type", string(job.Type)),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
	} else {
		s.logger.Info("Scheduled fetch completed",
			zap.String("type", string(job.Type)),
			zap.String("source", res.Source),
			zap.Duration("duration", time.Since(start)))
	}

	if removed := s.store.Trim(job.Type, job.MaxEntries); removed > 0 {
		s.metrics.CacheTrimmed.WithLabelValues(string(job.Type)).Add(float64(removed))
	}
}

// Stop halts the cron timers and waits for every in-flight run, both
// cron-triggered and the immediate ones launched by Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}

	s.logger.Info("Stopping scheduler")
	<-s.cron.Stop().Done()
	s.initial.Wait()
	s.running = false
}
