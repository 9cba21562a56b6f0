package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fastboard/internal/log"
)

// Scheduler runs refresh cycles on a fixed interval. One cycle runs
// immediately at start so the dashboard has data without waiting a
// full interval.
type Scheduler struct {
	service  *Service
	interval time.Duration
	logger   *log.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewScheduler creates a scheduler for the given service.
func NewScheduler(service *Service, interval time.Duration, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Scheduler{
		service:  service,
		interval: interval,
		logger:   logger.WithComponent("scheduler"),
	}
}

// Start begins the refresh loop. Returns an error if already running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("refresh scheduler is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.runLoop(ctx)

	s.logger.InfoContext(ctx, "Refresh scheduler started", "interval", s.interval)
	return nil
}

// Stop gracefully stops the scheduler and waits for the loop to exit.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	close(s.stopCh)

	select {
	case <-s.doneCh:
		s.logger.InfoContext(ctx, "Refresh scheduler stopped gracefully")
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "Refresh scheduler stop timed out")
		return ctx.Err()
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	return nil
}

// IsRunning returns whether the scheduler loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) runLoop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOnce(ctx)

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if _, err := s.service.Run(ctx); err != nil {
		// The dashboard keeps serving the last snapshot on failed cycles.
		s.logger.ErrorContext(ctx, "Refresh cycle failed", log.FieldError, err)
	}
}
