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

type adviceStore interface {
	Create(ctx context.Context, advice *models.Advice) error
	List(ctx context.Context) ([]models.Advice, error)
	GetByID(ctx context.Context, id string) (*models.Advice, error)
	UpdateStatus(ctx context.Context, params repository.UpdateAdviceStatusParams) error
}

// AdviceService runs the advice submission and review workflow.
type AdviceService struct {
	repo      adviceStore
	validator *validator.Validate
	logger    *zap.Logger
	clock     func() time.Time
	ws        snapshotReader
}

// AdviceServiceOption configures the service.
type AdviceServiceOption func(*AdviceService)

// WithAdviceWorkspace serves listings from the workspace and refreshes it after writes.
func WithAdviceWorkspace(ws snapshotReader) AdviceServiceOption {
	return func(s *AdviceService) {
		s.ws = ws
	}
}

// WithAdviceClock overrides the time source.
func WithAdviceClock(clock func() time.Time) AdviceServiceOption {
	return func(s *AdviceService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewAdviceService constructs the service.
func NewAdviceService(repo adviceStore, validate *validator.Validate, logger *zap.Logger, opts ...AdviceServiceOption) *AdviceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	svc := &AdviceService{repo: repo, validator: validate, logger: logger, clock: time.Now}
	svc.validator.RegisterValidation("advice_type", func(fl validator.FieldLevel) bool {
		_, ok := models.RequirementOptions(models.AdviceType(fl.Field().String()))
		return ok
	})
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Options lists every advice type with its selectable requirements.
func (s *AdviceService) Options() []dto.AdviceTypeOptions {
	types := models.AdviceTypes()
	out := make([]dto.AdviceTypeOptions, 0, len(types))
	for _, t := range types {
		options, _ := models.RequirementOptions(t)
		out = append(out, dto.AdviceTypeOptions{Type: t, Requirements: options})
	}
	return out
}

// Create validates and stores a pending advice request.
func (s *AdviceService) Create(ctx context.Context, req dto.CreateAdviceRequest, notedBy string) (*models.Advice, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid advice payload")
	}
	if err := s.validator.Var(string(req.Type), "advice_type"); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown advice type "+string(req.Type))
	}
	options, _ := models.RequirementOptions(req.Type)
	allowed := make(map[string]bool, len(options))
	for _, o := range options {
		allowed[o] = true
	}
	seen := make(map[string]bool, len(req.Requirements))
	for _, r := range req.Requirements {
		if !allowed[r] {
			return nil, appErrors.Clone(appErrors.ErrValidation, "requirement "+r+" is not available for "+string(req.Type))
		}
		if seen[r] {
			return nil, appErrors.Clone(appErrors.ErrValidation, "requirement "+r+" is listed twice")
		}
		seen[r] = true
	}

	if noted := strings.TrimSpace(req.NotedBy); noted != "" {
		notedBy = noted
	}
	advice := &models.Advice{
		Type:            req.Type,
		Description:     strings.TrimSpace(req.Description),
		Requirements:    append([]string{}, req.Requirements...),
		AdditionalNotes: strings.TrimSpace(req.AdditionalNotes),
		Status:          models.AdviceStatusPending,
		CreatedAt:       s.clock().UTC(),
		ReporterName:    strings.TrimSpace(req.ReporterName),
		ReporterEmail:   strings.TrimSpace(req.ReporterEmail),
		ReporterPhone:   strings.TrimSpace(req.ReporterPhone),
		NotedBy:         notedBy,
	}
	if err := s.repo.Create(ctx, advice); err != nil {
		return nil, appErrors.Backend(err, "failed to create advice")
	}
	refreshAfterWrite(ctx, s.ws, s.logger, models.TableAdviceRequests)
	return advice, nil
}

// List returns advice requests for a view, newest first.
func (s *AdviceService) List(ctx context.Context, query dto.AdviceQuery) ([]models.Advice, error) {
	switch query.View {
	case models.AdviceViewAll, models.AdviceViewPending, models.AdviceViewProcessed:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "view must be pending or processed")
	}

	var (
		all []models.Advice
		err error
	)
	if s.ws != nil {
		all, err = s.ws.Advice(ctx)
	} else {
		all, err = s.repo.List(ctx)
	}
	if err != nil {
		return nil, appErrors.Backend(err, "failed to load advice")
	}

	out := make([]models.Advice, 0, len(all))
	for _, a := range all {
		switch {
		case query.View == models.AdviceViewPending && a.Status != models.AdviceStatusPending:
			continue
		case query.View == models.AdviceViewProcessed && a.Status == models.AdviceStatusPending:
			continue
		case query.Type != "" && a.Type != query.Type:
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Get fetches an advice request by id.
func (s *AdviceService) Get(ctx context.Context, id string) (*models.Advice, error) {
	advice, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "advice not found")
		}
		return nil, appErrors.Backend(err, "failed to load advice")
	}
	return advice, nil
}

// Approve moves pending advice to approved.
func (s *AdviceService) Approve(ctx context.Context, id string) (*models.Advice, error) {
	return s.review(ctx, id, models.AdviceStatusApproved, nil)
}

// Reject moves pending advice to rejected. A reason is mandatory.
func (s *AdviceService) Reject(ctx context.Context, id, reason string) (*models.Advice, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a rejection reason is required")
	}
	return s.review(ctx, id, models.AdviceStatusRejected, &reason)
}

func (s *AdviceService) review(ctx context.Context, id string, status models.AdviceStatus, reason *string) (*models.Advice, error) {
	advice, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if advice.Status != models.AdviceStatusPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "advice has already been processed")
	}

	processed := s.clock().UTC()
	err = s.repo.UpdateStatus(ctx, repository.UpdateAdviceStatusParams{
		ID:              id,
		Status:          status,
		ProcessedAt:     processed,
		RejectionReason: reason,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "advice has already been processed")
		}
		return nil, appErrors.Backend(err, "failed to update advice status")
	}

	advice.Status = status
	advice.ProcessedAt = &processed
	advice.RejectionReason = reason
	s.logger.Info("advice reviewed", zap.String("advice_id", id), zap.String("status", string(status)))
	refreshAfterWrite(ctx, s.ws, s.logger, models.TableAdviceRequests)
	return advice, nil
}
