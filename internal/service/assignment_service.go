package service

import (
	"context"
	"database/sql"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/noah-isme/laptop-lending-api/internal/models"
	"github.com/noah-isme/laptop-lending-api/internal/repository"
	appErrors "github.com/noah-isme/laptop-lending-api/pkg/errors"
)

type assignmentStore interface {
	GetByID(ctx context.Context, id string) (*models.Reservation, error)
	List(ctx context.Context) ([]models.Reservation, error)
	InsertAssignment(ctx context.Context, assignment *models.Assignment) error
	DeleteAssignment(ctx context.Context, reservationID, laptopID string) error
}

type assignmentLaptopStore interface {
	GetByID(ctx context.Context, id string) (*models.Laptop, error)
	List(ctx context.Context) ([]models.Laptop, error)
	UpdateStatus(ctx context.Context, id string, status models.LaptopStatus) error
}

// AssignmentService attaches laptops to approved reservations.
type AssignmentService struct {
	reservations assignmentStore
	laptops      assignmentLaptopStore
	engine       statusRecomputer
	logger       *zap.Logger
	tracer       trace.Tracer
	ws           snapshotRefresher
}

// AssignmentServiceOption configures the service.
type AssignmentServiceOption func(*AssignmentService)

// WithAssignmentRefresher refreshes the workspace after writes.
func WithAssignmentRefresher(r snapshotRefresher) AssignmentServiceOption {
	return func(s *AssignmentService) {
		s.ws = r
	}
}

// NewAssignmentService constructs the service. engine may be nil, in which
// case Overview skips the status refresh.
func NewAssignmentService(reservations assignmentStore, laptops assignmentLaptopStore, engine statusRecomputer, logger *zap.Logger, opts ...AssignmentServiceOption) *AssignmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AssignmentService{
		reservations: reservations,
		laptops:      laptops,
		engine:       engine,
		logger:       logger,
		tracer:       otel.Tracer("laptop-lending-api/coordinator"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Assign attaches a laptop to an approved reservation and marks it reserved.
// Assigning an already assigned pair is a no-op. The join row and the status
// write are separate steps; if the status write fails the join row stays and a
// backend error is returned.
func (s *AssignmentService) Assign(ctx context.Context, reservationID, laptopID string) (res *models.Reservation, err error) {
	ctx, span := s.tracer.Start(ctx, "coordinator.assign", trace.WithAttributes(
		attribute.String("reservation.id", reservationID),
		attribute.String("laptop.id", laptopID),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "assign failed")
		}
		span.End()
	}()

	reservation, err := s.loadReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if reservation.Status != models.ReservationStatusApproved {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "laptops can only be assigned to approved reservations")
	}
	if reservation.HasLaptop(laptopID) {
		span.SetAttributes(attribute.Bool("assign.noop", true))
		return reservation, nil
	}

	if _, err := s.laptops.GetByID(ctx, laptopID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "laptop not found")
		}
		return nil, appErrors.Backend(err, "failed to load laptop")
	}

	// The insert re-checks quantity and holders under row locks; the reservation
	// loaded above may already be stale.
	err = s.reservations.InsertAssignment(ctx, &models.Assignment{ReservationID: reservationID, LaptopID: laptopID})
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrAlreadyAssigned):
		span.SetAttributes(attribute.Bool("assign.noop", true))
		return s.loadReservation(ctx, reservationID)
	case errors.Is(err, repository.ErrReservationFull):
		return nil, appErrors.Clone(appErrors.ErrCapacity, err.Error())
	case errors.Is(err, repository.ErrLaptopHeld):
		return nil, appErrors.Clone(appErrors.ErrInvalidState, err.Error())
	case errors.Is(err, repository.ErrReservationNotApproved):
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "laptops can only be assigned to approved reservations")
	case errors.Is(err, sql.ErrNoRows):
		return nil, appErrors.Clone(appErrors.ErrNotFound, "reservation or laptop no longer exists")
	default:
		return nil, appErrors.Backend(err, "failed to assign laptop")
	}
	defer refreshAfterWrite(ctx, s.ws, s.logger, models.TableLaptopAssignments, models.TableLaptops)

	if err := s.laptops.UpdateStatus(ctx, laptopID, models.LaptopStatusReserved); err != nil {
		s.logger.Error("laptop assigned but status not updated",
			zap.String("reservation_id", reservationID), zap.String("laptop_id", laptopID), zap.Error(err))
		return nil, appErrors.Backend(err, "laptop assigned but its status could not be set to reserved")
	}
	s.logger.Info("laptop assigned", zap.String("reservation_id", reservationID), zap.String("laptop_id", laptopID))
	return s.loadReservation(ctx, reservationID)
}

// Unassign detaches a laptop from a reservation and marks it available.
func (s *AssignmentService) Unassign(ctx context.Context, reservationID, laptopID string) (res *models.Reservation, err error) {
	ctx, span := s.tracer.Start(ctx, "coordinator.unassign", trace.WithAttributes(
		attribute.String("reservation.id", reservationID),
		attribute.String("laptop.id", laptopID),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "unassign failed")
		}
		span.End()
	}()

	reservation, err := s.loadReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if !reservation.HasLaptop(laptopID) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "laptop is not assigned to this reservation")
	}
	if err := s.reservations.DeleteAssignment(ctx, reservationID, laptopID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "laptop is not assigned to this reservation")
		}
		return nil, appErrors.Backend(err, "failed to unassign laptop")
	}
	reservation.AssignedLaptops = without(reservation.AssignedLaptops, laptopID)
	defer refreshAfterWrite(ctx, s.ws, s.logger, models.TableLaptopAssignments, models.TableLaptops)

	if err := s.laptops.UpdateStatus(ctx, laptopID, models.LaptopStatusAvailable); err != nil {
		s.logger.Error("laptop unassigned but status not updated",
			zap.String("reservation_id", reservationID), zap.String("laptop_id", laptopID), zap.Error(err))
		return nil, appErrors.Backend(err, "laptop unassigned but its status could not be set to available")
	}
	s.logger.Info("laptop unassigned", zap.String("reservation_id", reservationID), zap.String("laptop_id", laptopID))
	return reservation, nil
}

// Overview brings statuses up to date and lists approved reservations with
// their laptops next to the laptops no approved reservation holds.
func (s *AssignmentService) Overview(ctx context.Context) (*models.AssignmentOverview, error) {
	if s.engine != nil {
		if _, err := s.engine.Recompute(ctx); err != nil {
			s.logger.Warn("status recompute before overview failed", zap.Error(err))
		}
	}

	reservations, err := s.reservations.List(ctx)
	if err != nil {
		return nil, appErrors.Backend(err, "failed to load reservations")
	}
	laptops, err := s.laptops.List(ctx)
	if err != nil {
		return nil, appErrors.Backend(err, "failed to load laptops")
	}

	byID := make(map[string]models.Laptop, len(laptops))
	for _, l := range laptops {
		byID[l.ID] = l
	}

	held := make(map[string]bool)
	overview := &models.AssignmentOverview{
		Reservations: []models.ReservationAssignments{},
		Unassigned:   []models.Laptop{},
	}
	for _, r := range reservations {
		if r.Status != models.ReservationStatusApproved {
			continue
		}
		entry := models.ReservationAssignments{Reservation: r, Laptops: []models.Laptop{}}
		for _, id := range r.AssignedLaptops {
			held[id] = true
			if l, ok := byID[id]; ok {
				entry.Laptops = append(entry.Laptops, l)
			}
		}
		overview.Reservations = append(overview.Reservations, entry)
	}
	for _, l := range laptops {
		if !held[l.ID] {
			overview.Unassigned = append(overview.Unassigned, l)
		}
	}
	return overview, nil
}

func (s *AssignmentService) loadReservation(ctx context.Context, id string) (*models.Reservation, error) {
	reservation, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "reservation not found")
		}
		return nil, appErrors.Backend(err, "failed to load reservation")
	}
	return reservation, nil
}

func without(ids []string, target string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}
