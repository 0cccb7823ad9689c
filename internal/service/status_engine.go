package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/noah-isme/laptop-lending-api/internal/models"
	appErrors "github.com/noah-isme/laptop-lending-api/pkg/errors"
)

type laptopStatusStore interface {
	List(ctx context.Context) ([]models.Laptop, error)
	UpdateStatus(ctx context.Context, id string, status models.LaptopStatus) error
}

type approvedWindowStore interface {
	ApprovedWindows(ctx context.Context) ([]models.ApprovedWindow, error)
}

// RecomputeResult summarises a status engine run.
type RecomputeResult struct {
	Checked  int
	Updated  int
	Held     int
	ByStatus map[models.LaptopStatus]int
}

// statusRank orders derived statuses so that the outcome does not depend on window order.
var statusRank = map[models.LaptopStatus]int{
	models.LaptopStatusAvailable: 0,
	models.LaptopStatusReserved:  1,
	models.LaptopStatusToCheck:   2,
	models.LaptopStatusInUse:     3,
}

// DeriveLaptopStatus computes the status implied by the approved windows a
// laptop is assigned to. Window bounds are inclusive. When windows disagree the
// strongest signal wins: in-use, then to-check, then reserved. No windows means available.
func DeriveLaptopStatus(now time.Time, windows []models.AssignmentWindow) models.LaptopStatus {
	status := models.LaptopStatusAvailable
	for _, w := range windows {
		var candidate models.LaptopStatus
		switch {
		case now.Before(w.Start):
			candidate = models.LaptopStatusReserved
		case now.After(w.End):
			candidate = models.LaptopStatusToCheck
		default:
			return models.LaptopStatusInUse
		}
		if statusRank[candidate] > statusRank[status] {
			status = candidate
		}
	}
	return status
}

// StatusEngine keeps stored laptop statuses in line with approved reservation windows.
type StatusEngine struct {
	laptops  laptopStatusStore
	windows  approvedWindowStore
	location *time.Location
	clock    func() time.Time
	logger   *zap.Logger
	metrics  *MetricsService
	tracer   trace.Tracer
	ws       snapshotRefresher
}

// StatusEngineOption configures the engine.
type StatusEngineOption func(*StatusEngine)

// WithStatusEngineLocation sets the zone used to read reservation dates and times.
func WithStatusEngineLocation(loc *time.Location) StatusEngineOption {
	return func(e *StatusEngine) {
		if loc != nil {
			e.location = loc
		}
	}
}

// WithStatusEngineClock overrides the time source.
func WithStatusEngineClock(clock func() time.Time) StatusEngineOption {
	return func(e *StatusEngine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithStatusEngineMetrics attaches Prometheus collectors.
func WithStatusEngineMetrics(m *MetricsService) StatusEngineOption {
	return func(e *StatusEngine) {
		e.metrics = m
	}
}

// WithStatusEngineRefresher refreshes the laptop snapshot after writes.
func WithStatusEngineRefresher(r snapshotRefresher) StatusEngineOption {
	return func(e *StatusEngine) {
		e.ws = r
	}
}

// NewStatusEngine constructs the engine.
func NewStatusEngine(laptops laptopStatusStore, windows approvedWindowStore, logger *zap.Logger, opts ...StatusEngineOption) *StatusEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	engine := &StatusEngine{
		laptops:  laptops,
		windows:  windows,
		location: time.Local,
		clock:    time.Now,
		logger:   logger,
		tracer:   otel.Tracer("laptop-lending-api/status-engine"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(engine)
		}
	}
	return engine
}

// Recompute derives the status of every laptop that is not in an operator hold
// (faulty, in-review) and writes the ones that changed. A failed write does not
// stop the run; all write failures are returned together.
func (e *StatusEngine) Recompute(ctx context.Context) (RecomputeResult, error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "status_engine.recompute")
	defer span.End()

	result, err := e.recompute(ctx)

	span.SetAttributes(
		attribute.Int("laptops.checked", result.Checked),
		attribute.Int("laptops.updated", result.Updated),
		attribute.Int("laptops.held", result.Held),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "recompute failed")
	}
	e.metrics.ObserveRecompute(result, err, time.Since(start))
	if result.Updated > 0 {
		refreshAfterWrite(ctx, e.ws, e.logger, models.TableLaptops)
	}
	return result, err
}

func (e *StatusEngine) recompute(ctx context.Context) (RecomputeResult, error) {
	result := RecomputeResult{ByStatus: map[models.LaptopStatus]int{}}

	laptops, err := e.laptops.List(ctx)
	if err != nil {
		return result, appErrors.Backend(err, "failed to load laptops")
	}
	if len(laptops) == 0 {
		return result, nil
	}
	rows, err := e.windows.ApprovedWindows(ctx)
	if err != nil {
		return result, appErrors.Backend(err, "failed to load approved assignments")
	}

	byLaptop := make(map[string][]models.AssignmentWindow, len(rows))
	for _, row := range rows {
		window, err := row.Window(e.location)
		if err != nil {
			e.logger.Warn("skipping unreadable reservation window",
				zap.String("reservation_id", row.ReservationID),
				zap.String("laptop_id", row.LaptopID),
				zap.Error(err))
			continue
		}
		byLaptop[row.LaptopID] = append(byLaptop[row.LaptopID], window)
	}

	now := e.clock()
	var failures []error
	for _, laptop := range laptops {
		if laptop.Status.Held() {
			result.Held++
			continue
		}
		result.Checked++
		derived := DeriveLaptopStatus(now, byLaptop[laptop.ID])
		if derived == laptop.Status {
			continue
		}
		if err := e.laptops.UpdateStatus(ctx, laptop.ID, derived); err != nil {
			failures = append(failures, fmt.Errorf("laptop %s: %w", laptop.ID, err))
			continue
		}
		result.Updated++
		result.ByStatus[derived]++
		e.logger.Debug("laptop status updated",
			zap.String("laptop_id", laptop.ID),
			zap.String("from", string(laptop.Status)),
			zap.String("to", string(derived)))
	}

	if len(failures) > 0 {
		return result, appErrors.Backend(errors.Join(failures...), fmt.Sprintf("failed to update %d laptop statuses", len(failures)))
	}
	return result, nil
}
