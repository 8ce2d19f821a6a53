package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ledger/internal/log"
)

const DefaultSchedulerInterval = time.Hour

// Scheduler runs the generator on a fixed interval until stopped.
type Scheduler struct {
	gen      *Generator
	interval time.Duration
	logger   *log.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewScheduler(gen *Generator, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultSchedulerInterval
	}
	return &Scheduler{
		gen:      gen,
		interval: interval,
		logger:   log.WithComponent(log.ComponentRecurring),
	}
}

// Start sweeps once immediately and then on every tick. It returns an error
// if the scheduler is already running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("recurring scheduler is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.loop(ctx)

	s.logger.InfoContext(ctx, "Recurring scheduler started", "interval", s.interval)
	return nil
}

// Stop signals the loop and waits for an in-flight sweep to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.running = false
	s.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		s.logger.InfoContext(ctx, "Recurring scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "Recurring scheduler stop timed out")
		return ctx.Err()
	}
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	report, err := s.gen.Run(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Scheduled recurring generation failed",
			log.FieldTrigger, "schedule",
			log.FieldError, err)
		return
	}
	if report.Failed > 0 {
		s.logger.WarnContext(ctx, "Scheduled recurring generation had failures",
			log.FieldTrigger, "schedule",
			log.FieldFailed, report.Failed,
			log.FieldError, report.Err())
	}
}
