package community

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/OFFIS-RIT/kgraph/pkg/leaselock"
	"github.com/OFFIS-RIT/kgraph/pkg/logger"
)

const (
	LeaseKey            = "community-detection"
	DefaultStartupDelay = 5 * time.Second
)

// Runner is implemented by Detector.
type Runner interface {
	Run(ctx context.Context) bool
}

type NewSchedulerParams struct {
	// Locker serializes runs across processes. Nil restricts serialization
	// to this process.
	Locker leaselock.Locker

	// StartupDelay before the first run. Negative disables the startup run.
	StartupDelay time.Duration
	// Interval between periodic runs. Zero disables them.
	Interval time.Duration
	LeaseTTL time.Duration
}

// Scheduler triggers detector runs after startup, periodically and on
// demand. At most one run is in flight; triggers arriving meanwhile
// collapse into a single follow-up run.
type Scheduler struct {
	runner Runner
	locker leaselock.Locker

	delay    time.Duration
	interval time.Duration
	ttl      time.Duration

	mu      sync.Mutex
	trigger chan struct{}
}

func NewScheduler(runner Runner, params NewSchedulerParams) *Scheduler {
	delay := params.StartupDelay
	if delay == 0 {
		delay = DefaultStartupDelay
	}
	ttl := params.LeaseTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Scheduler{
		runner:   runner,
		locker:   params.Locker,
		delay:    delay,
		interval: params.Interval,
		ttl:      ttl,
		trigger:  make(chan struct{}, 1),
	}
}

// Trigger requests a run without blocking.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// RunNow runs the detector synchronously. It reports false when the run
// failed or another process holds the lease.
func (s *Scheduler) RunNow(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locker == nil {
		return s.runner.Run(ctx)
	}

	ok := false
	err := s.locker.WithLease(ctx, LeaseKey, leaselock.Options{TTL: s.ttl}, func(ctx context.Context) error {
		ok = s.runner.Run(ctx)
		return nil
	})
	if errors.Is(err, leaselock.ErrBusy) {
		logger.Info("[Community] Detection already running elsewhere, skipping")
		return false
	}
	if err != nil {
		logger.Warn("[Community] Failed to acquire lease", "err", err)
		return false
	}
	return ok
}

// Start blocks until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	var startup <-chan time.Time
	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		startup = timer.C
	}

	var tick <-chan time.Time
	if s.interval > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-startup:
			startup = nil
			s.RunNow(ctx)
		case <-tick:
			s.RunNow(ctx)
		case <-s.trigger:
			s.RunNow(ctx)
		}
	}
}
