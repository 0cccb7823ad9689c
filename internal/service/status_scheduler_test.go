package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

type countingRecomputer struct {
	calls atomic.Int32
	fail  bool
}

func (c *countingRecomputer) Recompute(context.Context) (RecomputeResult, error) {
	c.calls.Add(1)
	if c.fail {
		return RecomputeResult{}, errors.New("store unavailable")
	}
	return RecomputeResult{Checked: 1, Updated: 1}, nil
}

func TestStatusSchedulerRunsImmediatelyAndOnInterval(t *testing.T) {
	defer goleak.VerifyNone(t)

	engine := &countingRecomputer{}
	scheduler := NewStatusScheduler(engine, 10*time.Millisecond, zap.NewNop())
	scheduler.Start(context.Background())
	scheduler.Start(context.Background())

	require.Eventually(t, func() bool { return engine.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	scheduler.Stop()
	scheduler.Stop()

	stopped := engine.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, engine.calls.Load())
}

func TestStatusSchedulerKeepsRunningAfterErrors(t *testing.T) {
	defer goleak.VerifyNone(t)

	engine := &countingRecomputer{fail: true}
	scheduler := NewStatusScheduler(engine, 5*time.Millisecond, nil)
	scheduler.Start(context.Background())
	defer scheduler.Stop()

	require.Eventually(t, func() bool { return engine.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
}

func TestStatusSchedulerStopsWithParentContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	engine := &countingRecomputer{}
	scheduler := NewStatusScheduler(engine, time.Hour, nil)
	scheduler.Start(ctx)

	require.Eventually(t, func() bool { return engine.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	scheduler.Stop()
}
