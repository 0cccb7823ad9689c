package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type statusRecomputer interface {
	Recompute(ctx context.Context) (RecomputeResult, error)
}

// StatusScheduler runs the status engine once on start and then on a fixed interval.
type StatusScheduler struct {
	engine   statusRecomputer
	interval time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewStatusScheduler constructs a scheduler. Intervals <= 0 default to one minute.
func NewStatusScheduler(engine statusRecomputer, interval time.Duration, logger *zap.Logger) *StatusScheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusScheduler{engine: engine, interval: interval, logger: logger}
}

// Start launches the loop. Calling Start on a running scheduler is a no-op.
func (s *StatusScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
	s.logger.Info("status scheduler started", zap.Duration("interval", s.interval))
}

// Stop cancels the loop and waits for an in-flight run to finish.
func (s *StatusScheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("status scheduler stopped")
}

func (s *StatusScheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.run(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.run(ctx)
		}
	}
}

func (s *StatusScheduler) run(ctx context.Context) {
	result, err := s.engine.Recompute(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("laptop status recompute failed", zap.Error(err))
		return
	}
	if result.Updated > 0 {
		s.logger.Info("laptop statuses recomputed",
			zap.Int("checked", result.Checked),
			zap.Int("updated", result.Updated),
			zap.Int("held", result.Held))
	}
}
