package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/noah-isme/laptop-lending-api/internal/dto"
	"github.com/noah-isme/laptop-lending-api/internal/models"
	"github.com/noah-isme/laptop-lending-api/internal/repository"
	appErrors "github.com/noah-isme/laptop-lending-api/pkg/errors"
	"github.com/noah-isme/laptop-lending-api/pkg/jobs"
)

type countingInvalidator struct {
	calls atomic.Int32
}

func (c *countingInvalidator) Invalidate(context.Context) error {
	c.calls.Add(1)
	return nil
}

// stallingLaptops blocks its first List call, after reading, until release closes.
type stallingLaptops struct {
	memLaptops
	calls   atomic.Int32
	read    chan struct{}
	release chan struct{}
}

func (s *stallingLaptops) List(ctx context.Context) ([]models.Laptop, error) {
	laptops, err := s.memLaptops.List(ctx)
	if s.calls.Add(1) == 1 {
		close(s.read)
		<-s.release
	}
	return laptops, err
}

func newTestWorkspace(db *memDB, opts ...WorkspaceOption) *Workspace {
	return NewWorkspace(memLaptops{db}, memReservations{db}, memAdvice{db}, zap.NewNop(), opts...)
}

func TestWorkspaceRefreshesFromChangeFeed(t *testing.T) {
	defer goleak.VerifyNone(t)

	db := newMemDB()
	db.addLaptop("A", models.LaptopStatusAvailable)
	feed := repository.NewChangeListener("", repository.ChangeListenerConfig{}, zap.NewNop())
	cache := &countingInvalidator{}
	ws := newTestWorkspace(db,
		WithWorkspaceFeed(feed),
		WithWorkspaceCache(cache),
		WithWorkspaceMetrics(NewMetricsService()),
		WithWorkspaceQueue(jobs.QueueConfig{Workers: 1, MaxRetries: 1, RetryDelay: time.Millisecond}),
	)
	require.NoError(t, ws.Start(context.Background()))
	defer ws.Stop()

	events, cancel := ws.Subscribe()
	defer cancel()

	laptops, err := ws.Laptops(context.Background())
	require.NoError(t, err)
	require.Len(t, laptops, 1)

	db.addLaptop("B", models.LaptopStatusAvailable)
	feed.Publish(models.ChangeEvent{Table: models.TableLaptopProblems, Operation: "INSERT", RecordID: "p1"})

	select {
	case event := <-events:
		assert.Equal(t, models.TableLaptopProblems, event.Table)
		assert.Equal(t, "INSERT", event.Operation)
	case <-time.After(time.Second):
		t.Fatal("no change event delivered")
	}

	laptops, err = ws.Laptops(context.Background())
	require.NoError(t, err)
	assert.Len(t, laptops, 2)
	assert.GreaterOrEqual(t, cache.calls.Load(), int32(4))
}

func TestWorkspaceStopClosesObserversAndUnsubscribes(t *testing.T) {
	defer goleak.VerifyNone(t)

	db := newMemDB()
	feed := repository.NewChangeListener("", repository.ChangeListenerConfig{}, nil)
	ws := newTestWorkspace(db, WithWorkspaceFeed(feed))
	require.NoError(t, ws.Start(context.Background()))

	events, cancel := ws.Subscribe()
	ws.Stop()
	cancel()

	_, open := <-events
	assert.False(t, open)

	feed.Publish(models.ChangeEvent{Table: models.TableLaptops, Operation: "UPDATE"})
}

func TestWorkspaceRefreshNotifiesAndRejectsUnknownTables(t *testing.T) {
	db := newMemDB()
	db.addReservation(models.Reservation{ID: "r1", Status: models.ReservationStatusPending, Quantity: 1})
	ws := newTestWorkspace(db)

	events, cancel := ws.Subscribe()
	defer cancel()

	require.NoError(t, ws.Refresh(context.Background(), models.TableLaptopAssignments))
	event := <-events
	assert.Equal(t, models.TableLaptopAssignments, event.Table)
	assert.Equal(t, operationRefresh, event.Operation)

	reservations, err := ws.Reservations(context.Background())
	require.NoError(t, err)
	require.Len(t, reservations, 1)

	reservations[0].ID = "mutated"
	again, err := ws.Reservations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "r1", again[0].ID)

	err = ws.Refresh(context.Background(), "users")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestServicesReadThroughWorkspace(t *testing.T) {
	db := newMemDB()
	ws := newTestWorkspace(db)
	svc := NewAdviceService(memAdvice{db}, nil, nil, WithAdviceWorkspace(ws))
	ctx := context.Background()

	empty, err := svc.List(ctx, dto.AdviceQuery{})
	require.NoError(t, err)
	assert.Empty(t, empty)

	created, err := svc.Create(ctx, validAdviceRequest(), "")
	require.NoError(t, err)

	list, err := svc.List(ctx, dto.AdviceQuery{View: models.AdviceViewPending})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)
}

func TestWorkspaceSlowObserverDropsEvents(t *testing.T) {
	ws := newTestWorkspace(newMemDB())
	events, cancel := ws.Subscribe()
	defer cancel()

	for i := 0; i < observerBufferSize+5; i++ {
		require.NoError(t, ws.Refresh(context.Background(), models.TableAdviceRequests))
	}
	assert.Len(t, events, observerBufferSize)
}

func TestWorkspaceOlderReloadDoesNotOverwriteNewer(t *testing.T) {
	db := newMemDB()
	db.addLaptop("A", models.LaptopStatusAvailable)
	laptops := &stallingLaptops{memLaptops: memLaptops{db}, read: make(chan struct{}), release: make(chan struct{})}
	ws := NewWorkspace(laptops, memReservations{db}, memAdvice{db}, zap.NewNop())
	ctx := context.Background()

	first := make(chan error, 1)
	go func() { first <- ws.Refresh(ctx, models.TableLaptops) }()
	<-laptops.read

	db.addLaptop("B", models.LaptopStatusAvailable)
	require.NoError(t, ws.Refresh(ctx, models.TableLaptops))
	close(laptops.release)
	require.NoError(t, <-first)

	snapshot, err := ws.Laptops(ctx)
	require.NoError(t, err)
	assert.Len(t, snapshot, 2)
}
