package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/laptop-lending-api/internal/models"
	"github.com/noah-isme/laptop-lending-api/internal/repository"
	appErrors "github.com/noah-isme/laptop-lending-api/pkg/errors"
	"github.com/noah-isme/laptop-lending-api/pkg/jobs"
)

const (
	collectionLaptops      = "laptops"
	collectionReservations = "reservations"
	collectionAdvice       = "advice"

	refreshJobType     = "snapshot.refresh"
	observerBufferSize = 16
	operationRefresh   = "REFRESH"
)

type snapshotRefresher interface {
	Refresh(ctx context.Context, table string) error
}

// snapshotReader serves list queries from the shared snapshot.
type snapshotReader interface {
	snapshotRefresher
	Laptops(ctx context.Context) ([]models.Laptop, error)
	Reservations(ctx context.Context) ([]models.Reservation, error)
	Advice(ctx context.Context) ([]models.Advice, error)
}

type laptopLister interface {
	List(ctx context.Context) ([]models.Laptop, error)
}

type reservationLister interface {
	List(ctx context.Context) ([]models.Reservation, error)
}

type adviceLister interface {
	List(ctx context.Context) ([]models.Advice, error)
}

type changeFeed interface {
	Subscribe(table string, fn repository.ChangeHandler) *repository.Subscription
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// refreshAfterWrite reloads the snapshot collections behind tables. The write
// already succeeded, so refresh failures are only logged.
func refreshAfterWrite(ctx context.Context, r snapshotRefresher, logger *zap.Logger, tables ...string) {
	if r == nil {
		return
	}
	for _, table := range tables {
		if err := r.Refresh(ctx, table); err != nil {
			logger.Warn("snapshot refresh failed", zap.String("table", table), zap.Error(err))
		}
	}
}

func collectionFor(table string) (string, error) {
	switch table {
	case models.TableLaptops, models.TableLaptopProblems, models.TableLaptopRemarks:
		return collectionLaptops, nil
	case models.TableReservations, models.TableLaptopAssignments:
		return collectionReservations, nil
	case models.TableAdviceRequests:
		return collectionAdvice, nil
	}
	return "", fmt.Errorf("unknown table %q", table)
}

// Workspace holds the in-memory collections shown to clients and keeps them
// current from the change feed. Observers receive an event after every reload.
type Workspace struct {
	laptops      laptopLister
	reservations reservationLister
	advice       adviceLister
	feed         changeFeed
	cache        cacheInvalidator
	metrics      *MetricsService
	logger       *zap.Logger
	queueCfg     jobs.QueueConfig

	mu               sync.RWMutex
	snapLaptops      []models.Laptop
	snapReservations []models.Reservation
	snapAdvice       []models.Advice
	loaded           map[string]bool
	started          map[string]uint64
	stored           map[string]uint64

	obsMu     sync.Mutex
	observers map[uint64]chan models.ChangeEvent
	nextObs   uint64

	lifecycle sync.Mutex
	queue     *jobs.Queue
	subs      []*repository.Subscription
}

// WorkspaceOption configures the workspace.
type WorkspaceOption func(*Workspace)

// WithWorkspaceFeed subscribes the workspace to database change notifications on Start.
func WithWorkspaceFeed(feed changeFeed) WorkspaceOption {
	return func(w *Workspace) {
		w.feed = feed
	}
}

// WithWorkspaceQueue tunes the refresh worker pool.
func WithWorkspaceQueue(cfg jobs.QueueConfig) WorkspaceOption {
	return func(w *Workspace) {
		w.queueCfg = cfg
	}
}

// WithWorkspaceCache invalidates a derived cache whenever data changes.
func WithWorkspaceCache(c cacheInvalidator) WorkspaceOption {
	return func(w *Workspace) {
		w.cache = c
	}
}

// WithWorkspaceMetrics attaches Prometheus collectors.
func WithWorkspaceMetrics(m *MetricsService) WorkspaceOption {
	return func(w *Workspace) {
		w.metrics = m
	}
}

// NewWorkspace constructs an empty workspace. Collections load lazily or on Start.
func NewWorkspace(laptops laptopLister, reservations reservationLister, advice adviceLister, logger *zap.Logger, opts ...WorkspaceOption) *Workspace {
	if logger == nil {
		logger = zap.NewNop()
	}
	ws := &Workspace{
		laptops:      laptops,
		reservations: reservations,
		advice:       advice,
		logger:       logger,
		loaded:       make(map[string]bool),
		started:      make(map[string]uint64),
		stored:       make(map[string]uint64),
		observers:    make(map[uint64]chan models.ChangeEvent),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ws)
		}
	}
	return ws
}

// Start loads every collection, starts the refresh workers and subscribes to
// the change feed for all watched tables.
func (w *Workspace) Start(ctx context.Context) error {
	for _, table := range []string{models.TableLaptops, models.TableReservations, models.TableAdviceRequests} {
		if err := w.reload(ctx, table); err != nil {
			return err
		}
	}

	w.lifecycle.Lock()
	defer w.lifecycle.Unlock()
	if w.queue != nil {
		return nil
	}
	cfg := w.queueCfg
	if cfg.Logger == nil {
		cfg.Logger = w.logger
	}
	w.queue = jobs.NewQueue("workspace-refresh", w.handleRefreshJob, cfg)
	w.queue.Start(ctx)

	if w.feed != nil {
		for _, table := range models.WatchedTables() {
			w.subs = append(w.subs, w.feed.Subscribe(table, w.enqueueChange))
		}
	}
	w.logger.Info("workspace started", zap.Int("subscriptions", len(w.subs)))
	return nil
}

// Stop unsubscribes from the feed, drains the refresh workers and closes all observers.
func (w *Workspace) Stop() {
	w.lifecycle.Lock()
	for _, sub := range w.subs {
		sub.Unsubscribe()
	}
	w.subs = nil
	queue := w.queue
	w.queue = nil
	w.lifecycle.Unlock()

	if queue != nil {
		queue.Stop()
	}

	w.obsMu.Lock()
	for id, ch := range w.observers {
		close(ch)
		delete(w.observers, id)
	}
	w.obsMu.Unlock()
}

// Subscribe registers an observer. Events are dropped for observers that fall behind.
func (w *Workspace) Subscribe() (<-chan models.ChangeEvent, func()) {
	ch := make(chan models.ChangeEvent, observerBufferSize)
	w.obsMu.Lock()
	w.nextObs++
	id := w.nextObs
	w.observers[id] = ch
	w.obsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			w.obsMu.Lock()
			defer w.obsMu.Unlock()
			if existing, ok := w.observers[id]; ok {
				close(existing)
				delete(w.observers, id)
			}
		})
	}
}

// Refresh re-fetches the collection that owns table and notifies observers.
func (w *Workspace) Refresh(ctx context.Context, table string) error {
	if err := w.reload(ctx, table); err != nil {
		return err
	}
	w.notify(models.ChangeEvent{Table: table, Operation: operationRefresh})
	return nil
}

// Laptops returns the laptop snapshot, loading it on first use.
func (w *Workspace) Laptops(ctx context.Context) ([]models.Laptop, error) {
	if err := w.ensure(ctx, collectionLaptops, models.TableLaptops); err != nil {
		return nil, err
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]models.Laptop(nil), w.snapLaptops...), nil
}

// Reservations returns the reservation snapshot, loading it on first use.
func (w *Workspace) Reservations(ctx context.Context) ([]models.Reservation, error) {
	if err := w.ensure(ctx, collectionReservations, models.TableReservations); err != nil {
		return nil, err
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]models.Reservation(nil), w.snapReservations...), nil
}

// Advice returns the advice snapshot, loading it on first use.
func (w *Workspace) Advice(ctx context.Context) ([]models.Advice, error) {
	if err := w.ensure(ctx, collectionAdvice, models.TableAdviceRequests); err != nil {
		return nil, err
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]models.Advice(nil), w.snapAdvice...), nil
}

func (w *Workspace) ensure(ctx context.Context, collection, table string) error {
	w.mu.RLock()
	loaded := w.loaded[collection]
	w.mu.RUnlock()
	if loaded {
		return nil
	}
	return w.reload(ctx, table)
}

func (w *Workspace) reload(ctx context.Context, table string) (err error) {
	defer func() { w.metrics.ObserveRefresh(table, err) }()

	collection, err := collectionFor(table)
	if err != nil {
		return appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	w.mu.Lock()
	w.started[collection]++
	gen := w.started[collection]
	w.mu.Unlock()

	switch collection {
	case collectionLaptops:
		laptops, err := w.laptops.List(ctx)
		if err != nil {
			return appErrors.Backend(err, "failed to refresh laptops")
		}
		w.store(collection, gen, func() { w.snapLaptops = laptops })
	case collectionReservations:
		reservations, err := w.reservations.List(ctx)
		if err != nil {
			return appErrors.Backend(err, "failed to refresh reservations")
		}
		w.store(collection, gen, func() { w.snapReservations = reservations })
	case collectionAdvice:
		advice, err := w.advice.List(ctx)
		if err != nil {
			return appErrors.Backend(err, "failed to refresh advice")
		}
		w.store(collection, gen, func() { w.snapAdvice = advice })
	}

	if w.cache != nil {
		if err := w.cache.Invalidate(ctx); err != nil {
			w.logger.Warn("cache invalidation failed", zap.String("table", table), zap.Error(err))
		}
	}
	return nil
}

// store applies a reload result unless a reload that started later has
// already stored its own, fresher, result.
func (w *Workspace) store(collection string, gen uint64, apply func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if gen <= w.stored[collection] {
		return
	}
	apply()
	w.stored[collection] = gen
	w.loaded[collection] = true
}

func (w *Workspace) enqueueChange(event models.ChangeEvent) {
	w.lifecycle.Lock()
	queue := w.queue
	w.lifecycle.Unlock()
	if queue == nil {
		return
	}
	job := jobs.Job{ID: uuid.NewString(), Type: refreshJobType, Payload: event}
	if err := queue.TryEnqueue(job); err != nil {
		w.logger.Warn("dropping change notification", zap.String("table", event.Table), zap.Error(err))
	}
}

func (w *Workspace) handleRefreshJob(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(models.ChangeEvent)
	if !ok {
		w.logger.Error("unexpected refresh job payload", zap.String("job_id", job.ID))
		return nil
	}
	if err := w.reload(ctx, event.Table); err != nil {
		return err
	}
	w.notify(event)
	return nil
}

func (w *Workspace) notify(event models.ChangeEvent) {
	w.obsMu.Lock()
	defer w.obsMu.Unlock()
	for _, ch := range w.observers {
		select {
		case ch <- event:
		default:
		}
	}
}
