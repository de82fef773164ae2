package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"relayconf/internal/logging"
	"relayconf/internal/repository"
	"relayconf/internal/storage"
)

// DefaultInterval is used when the scheduler is given no interval.
const DefaultInterval = 5 * time.Minute

// Scheduler runs Check periodically
type Scheduler struct {
	scheduler gocron.Scheduler
	store     storage.Storage
	d         *repository.Dispatcher
	interval  time.Duration
	log       *logging.Logger

	mu       sync.Mutex
	running  bool
	last     *Report
	onReport func(*Report)
}

// NewScheduler creates an audit scheduler. When d is set each run is queued
// behind pending writes so it never observes half of a single job.
func NewScheduler(store storage.Storage, d *repository.Dispatcher, interval time.Duration, logger *logging.Logger) (*Scheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = logging.Discard()
	}

	return &Scheduler{
		scheduler: scheduler,
		store:     store,
		d:         d,
		interval:  interval,
		log:       logger,
	}, nil
}

// OnReport registers a callback invoked after every run.
func (s *Scheduler) OnReport(fn func(*Report)) {
	s.mu.Lock()
	s.onReport = fn
	s.mu.Unlock()
}

// Start starts the scheduler
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			s.RunOnce(ctx)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to create audit job: %w", err)
	}

	s.scheduler.Start()
	s.running = true

	go s.RunOnce(ctx)
	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return fmt.Errorf("scheduler is not running")
	}
	if err := s.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}
	s.running = false
	return nil
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Last returns the most recent report, or nil before the first run.
func (s *Scheduler) Last() *Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// RunOnce audits the store now and logs what it found.
func (s *Scheduler) RunOnce(ctx context.Context) (*Report, error) {
	report, err := s.check(ctx)
	if err != nil {
		s.log.Errorf("audit failed: %v", err)
		return nil, err
	}

	for _, v := range report.Violations {
		s.log.Errorf("audit: %v", v)
	}
	if report.OK() {
		s.log.Debugf("audit ok: %d groups, %d configurations", report.Groups, report.Configurations)
	}

	s.mu.Lock()
	s.last = report
	fn := s.onReport
	s.mu.Unlock()
	if fn != nil {
		fn(report)
	}
	return report, nil
}

func (s *Scheduler) check(ctx context.Context) (*Report, error) {
	if s.d == nil {
		return Check(ctx, s.store)
	}

	var report *Report
	t, err := s.d.Read("audit", func(ctx context.Context) error {
		r, err := Check(ctx, s.store)
		report = r
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := t.Wait(ctx); err != nil {
		return nil, err
	}
	return report, nil
}
