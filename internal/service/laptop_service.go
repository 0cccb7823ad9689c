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
	appErrors "github.com/noah-isme/laptop-lending-api/pkg/errors"
)

type laptopStore interface {
	Create(ctx context.Context, laptop *models.Laptop) error
	List(ctx context.Context) ([]models.Laptop, error)
	GetByID(ctx context.Context, id string) (*models.Laptop, error)
	Update(ctx context.Context, laptop *models.Laptop) error
	UpdateStatus(ctx context.Context, id string, status models.LaptopStatus) error
	Delete(ctx context.Context, id string) error
	AddRemark(ctx context.Context, remark *models.Remark) error
	UpsertProblem(ctx context.Context, problem *models.Problem) error
	GetProblem(ctx context.Context, laptopID, problemID string) (*models.Problem, error)
	ResolveProblem(ctx context.Context, problem *models.Problem) error
	ListOpenProblems(ctx context.Context) ([]models.OpenProblem, error)
}

// LaptopService manages the laptop inventory, remarks and repairs.
type LaptopService struct {
	repo      laptopStore
	validator *validator.Validate
	logger    *zap.Logger
	clock     func() time.Time
	ws        snapshotReader
}

// LaptopServiceOption configures the service.
type LaptopServiceOption func(*LaptopService)

// WithLaptopWorkspace serves listings from the workspace and refreshes it after writes.
func WithLaptopWorkspace(ws snapshotReader) LaptopServiceOption {
	return func(s *LaptopService) {
		s.ws = ws
	}
}

// WithLaptopClock overrides the time source.
func WithLaptopClock(clock func() time.Time) LaptopServiceOption {
	return func(s *LaptopService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewLaptopService constructs the service.
func NewLaptopService(repo laptopStore, validate *validator.Validate, logger *zap.Logger, opts ...LaptopServiceOption) *LaptopService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	svc := &LaptopService{repo: repo, validator: validate, logger: logger, clock: time.Now}
	svc.validator.RegisterValidation("laptop_status", func(fl validator.FieldLevel) bool {
		return models.LaptopStatus(fl.Field().String()).Valid()
	})
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Create registers a laptop. New laptops start in use unless a status is given.
func (s *LaptopService) Create(ctx context.Context, req dto.CreateLaptopRequest) (*models.Laptop, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid laptop payload")
	}
	laptop := &models.Laptop{
		ComputerName:    strings.TrimSpace(req.ComputerName),
		CPU:             strings.TrimSpace(req.CPU),
		RAM:             strings.TrimSpace(req.RAM),
		GPU:             strings.TrimSpace(req.GPU),
		SoftwareVersion: strings.TrimSpace(req.SoftwareVersion),
		Status:          models.LaptopStatusInUse,
		Remarks:         []models.Remark{},
		Problems:        []models.Problem{},
	}
	if err := s.repo.Create(ctx, laptop); err != nil {
		return nil, appErrors.Backend(err, "failed to create laptop")
	}
	refreshAfterWrite(ctx, s.ws, s.logger, models.TableLaptops)
	return laptop, nil
}

// List returns laptops matching the query. Without a sort, available laptops
// come first and the stored order is kept otherwise.
func (s *LaptopService) List(ctx context.Context, query dto.LaptopQuery) ([]models.Laptop, error) {
	if !query.Sort.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown sort order")
	}
	for _, status := range query.Status {
		if !status.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown laptop status "+string(status))
		}
	}

	var (
		all []models.Laptop
		err error
	)
	if s.ws != nil {
		all, err = s.ws.Laptops(ctx)
	} else {
		all, err = s.repo.List(ctx)
	}
	if err != nil {
		return nil, appErrors.Backend(err, "failed to load laptops")
	}
	return filterLaptops(all, models.LaptopFilter{Search: query.Search, Statuses: query.Status, Sort: query.Sort}), nil
}

// Get fetches a laptop with its remarks and problems.
func (s *LaptopService) Get(ctx context.Context, id string) (*models.Laptop, error) {
	laptop, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "laptop not found")
		}
		return nil, appErrors.Backend(err, "failed to load laptop")
	}
	return laptop, nil
}

// UpdateProperties replaces the hardware and software description of a laptop.
func (s *LaptopService) UpdateProperties(ctx context.Context, id string, req dto.UpdateLaptopRequest) (*models.Laptop, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid laptop payload")
	}
	laptop := &models.Laptop{
		ID:              id,
		ComputerName:    strings.TrimSpace(req.ComputerName),
		CPU:             strings.TrimSpace(req.CPU),
		RAM:             strings.TrimSpace(req.RAM),
		GPU:             strings.TrimSpace(req.GPU),
		SoftwareVersion: strings.TrimSpace(req.SoftwareVersion),
	}
	if err := s.repo.Update(ctx, laptop); err != nil {
		return nil, s.mapWriteError(err, "failed to update laptop")
	}
	refreshAfterWrite(ctx, s.ws, s.logger, models.TableLaptops)
	return s.Get(ctx, id)
}

// SetStatus changes the status by hand, e.g. to place or lift an operator hold.
func (s *LaptopService) SetStatus(ctx context.Context, id string, status models.LaptopStatus) (*models.Laptop, error) {
	if err := s.validator.Var(string(status), "required,laptop_status"); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown laptop status "+string(status))
	}
	laptop, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if laptop.Status == status {
		return nil, appErrors.Clone(appErrors.ErrValidation, "laptop already has status "+string(status))
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, s.mapWriteError(err, "failed to update laptop status")
	}
	s.logger.Info("laptop status set", zap.String("laptop_id", id), zap.String("from", string(laptop.Status)), zap.String("to", string(status)))
	laptop.Status = status
	refreshAfterWrite(ctx, s.ws, s.logger, models.TableLaptops)
	return laptop, nil
}

// AddRemark appends a remark to a laptop.
func (s *LaptopService) AddRemark(ctx context.Context, id string, req dto.AddRemarkRequest) (*models.Remark, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid remark payload")
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	remark := &models.Remark{LaptopID: id, Content: strings.TrimSpace(req.Content), CreatedAt: s.clock().UTC()}
	if err := s.repo.AddRemark(ctx, remark); err != nil {
		return nil, appErrors.Backend(err, "failed to add remark")
	}
	refreshAfterWrite(ctx, s.ws, s.logger, models.TableLaptopRemarks)
	return remark, nil
}

// ReportProblem opens a new problem on a laptop.
func (s *LaptopService) ReportProblem(ctx context.Context, id string, req dto.ReportProblemRequest) (*models.Problem, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid problem payload")
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	problem := &models.Problem{
		LaptopID:      id,
		Description:   strings.TrimSpace(req.Description),
		ReporterName:  strings.TrimSpace(req.ReporterName),
		ReporterEmail: strings.TrimSpace(req.ReporterEmail),
		Status:        models.ProblemStatusOpen,
		DateReported:  s.clock().UTC(),
	}
	if err := s.repo.UpsertProblem(ctx, problem); err != nil {
		return nil, appErrors.Backend(err, "failed to report problem")
	}
	refreshAfterWrite(ctx, s.ws, s.logger, models.TableLaptopProblems)
	return problem, nil
}

// ResolveProblem records the repair of an open problem. A problem resolves once.
func (s *LaptopService) ResolveProblem(ctx context.Context, laptopID, problemID string, req dto.ResolveProblemRequest) (*models.Problem, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid repair payload")
	}
	problem, err := s.repo.GetProblem(ctx, laptopID, problemID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "problem not found")
		}
		return nil, appErrors.Backend(err, "failed to load problem")
	}
	if problem.Status != models.ProblemStatusOpen {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "problem has already been resolved")
	}

	details := strings.TrimSpace(req.RepairDetails)
	resolver := strings.TrimSpace(req.ResolverName)
	resolved := s.clock().UTC()
	problem.Status = models.ProblemStatusResolved
	problem.RepairDetails = &details
	problem.ResolverName = &resolver
	problem.DateResolved = &resolved
	if err := s.repo.ResolveProblem(ctx, problem); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "problem has already been resolved")
		}
		return nil, appErrors.Backend(err, "failed to resolve problem")
	}
	refreshAfterWrite(ctx, s.ws, s.logger, models.TableLaptopProblems)
	return problem, nil
}

// Delete removes a laptop with its remarks, problems and assignments.
func (s *LaptopService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return s.mapWriteError(err, "failed to delete laptop")
	}
	s.logger.Info("laptop deleted", zap.String("laptop_id", id))
	refreshAfterWrite(ctx, s.ws, s.logger, models.TableLaptops, models.TableLaptopAssignments)
	return nil
}

// OpenProblems returns the repair queue, newest report first.
func (s *LaptopService) OpenProblems(ctx context.Context) ([]models.OpenProblem, error) {
	problems, err := s.repo.ListOpenProblems(ctx)
	if err != nil {
		return nil, appErrors.Backend(err, "failed to load open problems")
	}
	if problems == nil {
		problems = []models.OpenProblem{}
	}
	return problems, nil
}

func (s *LaptopService) mapWriteError(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "laptop not found")
	}
	return appErrors.Backend(err, message)
}

func filterLaptops(all []models.Laptop, filter models.LaptopFilter) []models.Laptop {
	statuses := make(map[models.LaptopStatus]bool, len(filter.Statuses))
	for _, st := range filter.Statuses {
		statuses[st] = true
	}
	search := strings.ToLower(strings.TrimSpace(filter.Search))

	out := make([]models.Laptop, 0, len(all))
	for _, l := range all {
		if len(statuses) > 0 && !statuses[l.Status] {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(l.ComputerName), search) &&
			!strings.Contains(strings.ToLower(l.CPU), search) &&
			!strings.Contains(strings.ToLower(l.RAM), search) &&
			!strings.Contains(strings.ToLower(l.GPU), search) {
			continue
		}
		out = append(out, l)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch filter.Sort {
		case models.LaptopSortNameAsc:
			return strings.ToLower(a.ComputerName) < strings.ToLower(b.ComputerName)
		case models.LaptopSortNameDesc:
			return strings.ToLower(a.ComputerName) > strings.ToLower(b.ComputerName)
		case models.LaptopSortStatusAsc:
			return a.Status < b.Status
		case models.LaptopSortStatusDesc:
			return a.Status > b.Status
		default:
			return a.Status == models.LaptopStatusAvailable && b.Status != models.LaptopStatusAvailable
		}
	})
	return out
}
