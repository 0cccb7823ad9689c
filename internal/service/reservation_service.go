package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/laptop-lending-api/internal/dto"
	"github.com/noah-isme/laptop-lending-api/internal/models"
	"github.com/noah-isme/laptop-lending-api/internal/repository"
	appErrors "github.com/noah-isme/laptop-lending-api/pkg/errors"
)

type reservationStore interface {
	Create(ctx context.Context, reservation *models.Reservation) error
	List(ctx context.Context) ([]models.Reservation, error)
	GetByID(ctx context.Context, id string) (*models.Reservation, error)
	UpdateStatus(ctx context.Context, params repository.UpdateReservationStatusParams) error
	UpdateDescription(ctx context.Context, id, description string) error
}

// ReservationService runs the reservation request and review workflow.
type ReservationService struct {
	repo      reservationStore
	validator *validator.Validate
	logger    *zap.Logger
	location  *time.Location
	clock     func() time.Time
	ws        snapshotReader
}

// ReservationServiceOption configures the service.
type ReservationServiceOption func(*ReservationService)

// WithReservationLocation sets the zone used to read reservation dates and times.
func WithReservationLocation(loc *time.Location) ReservationServiceOption {
	return func(s *ReservationService) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithReservationClock overrides the time source.
func WithReservationClock(clock func() time.Time) ReservationServiceOption {
	return func(s *ReservationService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithReservationWorkspace serves listings from the workspace and refreshes it after writes.
func WithReservationWorkspace(ws snapshotReader) ReservationServiceOption {
	return func(s *ReservationService) {
		s.ws = ws
	}
}

// NewReservationService constructs the service.
func NewReservationService(repo reservationStore, validate *validator.Validate, logger *zap.Logger, opts ...ReservationServiceOption) *ReservationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	svc := &ReservationService{
		repo:      repo,
		validator: validate,
		logger:    logger,
		location:  time.Local,
		clock:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Create validates and stores a pending reservation without assignments.
func (s *ReservationService) Create(ctx context.Context, req dto.CreateReservationRequest) (*models.Reservation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reservation payload")
	}
	window, err := models.NewAssignmentWindow(req.StartDate, req.StartTime, req.EndDate, req.EndTime, s.location)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "dates must be YYYY-MM-DD and times HH:MM")
	}
	if !window.End.After(window.Start) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "reservation must end after it starts")
	}

	reservation := &models.Reservation{
		StartDate:       strings.TrimSpace(req.StartDate),
		StartTime:       strings.TrimSpace(req.StartTime),
		EndDate:         strings.TrimSpace(req.EndDate),
		EndTime:         strings.TrimSpace(req.EndTime),
		Quantity:        req.Quantity,
		AssignedLaptops: []string{},
		Description:     strings.TrimSpace(req.Description),
		Status:          models.ReservationStatusPending,
		ContactName:     strings.TrimSpace(req.ContactName),
		ContactEmail:    strings.TrimSpace(req.ContactEmail),
		ContactPhone:    strings.TrimSpace(req.ContactPhone),
	}
	if err := s.repo.Create(ctx, reservation); err != nil {
		return nil, appErrors.Backend(err, "failed to create reservation")
	}
	refreshAfterWrite(ctx, s.ws, s.logger, models.TableReservations)
	return reservation, nil
}

// List returns reservations matching the query. Defaults to newest start date first.
func (s *ReservationService) List(ctx context.Context, query dto.ReservationQuery) ([]models.Reservation, error) {
	if query.Sort != "" && !query.Sort.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown sort order")
	}
	for _, status := range query.Status {
		if !status.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown reservation status "+string(status))
		}
	}

	var (
		all []models.Reservation
		err error
	)
	if s.ws != nil {
		all, err = s.ws.Reservations(ctx)
	} else {
		all, err = s.repo.List(ctx)
	}
	if err != nil {
		return nil, appErrors.Backend(err, "failed to load reservations")
	}
	return filterReservations(all, models.ReservationFilter{Statuses: query.Status, Search: query.Search, Sort: query.Sort}, s.location), nil
}

// Get fetches a reservation by id.
func (s *ReservationService) Get(ctx context.Context, id string) (*models.Reservation, error) {
	reservation, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "reservation not found")
		}
		return nil, appErrors.Backend(err, "failed to load reservation")
	}
	return reservation, nil
}

// Approve moves a pending reservation to approved.
func (s *ReservationService) Approve(ctx context.Context, id string) (*models.Reservation, error) {
	return s.review(ctx, id, models.ReservationStatusApproved, nil)
}

// Reject moves a pending reservation to rejected. A reason is mandatory.
func (s *ReservationService) Reject(ctx context.Context, id, reason string) (*models.Reservation, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a rejection reason is required")
	}
	return s.review(ctx, id, models.ReservationStatusRejected, &reason)
}

func (s *ReservationService) review(ctx context.Context, id string, status models.ReservationStatus, reason *string) (*models.Reservation, error) {
	reservation, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if reservation.Status != models.ReservationStatusPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "reservation has already been processed")
	}

	processed := s.clock().UTC()
	err = s.repo.UpdateStatus(ctx, repository.UpdateReservationStatusParams{
		ID:            id,
		Status:        status,
		ProcessedDate: processed,
		Reason:        reason,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "reservation has already been processed")
		}
		return nil, appErrors.Backend(err, "failed to update reservation status")
	}

	reservation.Status = status
	reservation.ProcessedDate = &processed
	reservation.Reason = reason
	s.logger.Info("reservation reviewed", zap.String("reservation_id", id), zap.String("status", string(status)))
	refreshAfterWrite(ctx, s.ws, s.logger, models.TableReservations)
	return reservation, nil
}

// UpdateDescription edits the description of a reservation in any state.
func (s *ReservationService) UpdateDescription(ctx context.Context, id, description string) (*models.Reservation, error) {
	description = strings.TrimSpace(description)
	if err := s.repo.UpdateDescription(ctx, id, description); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "reservation not found")
		}
		return nil, appErrors.Backend(err, "failed to update reservation description")
	}
	refreshAfterWrite(ctx, s.ws, s.logger, models.TableReservations)
	return s.Get(ctx, id)
}

func filterReservations(all []models.Reservation, filter models.ReservationFilter, loc *time.Location) []models.Reservation {
	statuses := make(map[models.ReservationStatus]bool, len(filter.Statuses))
	for _, st := range filter.Statuses {
		statuses[st] = true
	}
	search := strings.ToLower(strings.TrimSpace(filter.Search))

	out := make([]models.Reservation, 0, len(all))
	for _, r := range all {
		if len(statuses) > 0 && !statuses[r.Status] {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(r.Description), search) &&
			!strings.Contains(strings.ToLower(r.ContactName), search) &&
			!strings.Contains(strings.ToLower(r.ContactEmail), search) {
			continue
		}
		out = append(out, r)
	}

	startOf := func(r models.Reservation) time.Time {
		t, err := models.ParseInstant(r.StartDate, r.StartTime, loc)
		if err != nil {
			return time.Time{}
		}
		return t
	}

	sortKey := filter.Sort
	if sortKey == "" {
		sortKey = models.ReservationSortDateDesc
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch sortKey {
		case models.ReservationSortDateAsc:
			return startOf(a).Before(startOf(b))
		case models.ReservationSortNameAsc:
			return strings.ToLower(a.ContactName) < strings.ToLower(b.ContactName)
		case models.ReservationSortNameDesc:
			return strings.ToLower(a.ContactName) > strings.ToLower(b.ContactName)
		case models.ReservationSortLaptopsAsc:
			return a.Quantity < b.Quantity
		case models.ReservationSortLaptopsDesc:
			return a.Quantity > b.Quantity
		default:
			return startOf(a).After(startOf(b))
		}
	})
	return out
}
