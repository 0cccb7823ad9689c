package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/laptop-lending-api/internal/dto"
	"github.com/noah-isme/laptop-lending-api/internal/models"
	"github.com/noah-isme/laptop-lending-api/internal/repository"
	appErrors "github.com/noah-isme/laptop-lending-api/pkg/errors"
)

const dashboardSummaryKey = "dashboard:summary"

type dashboardCounter interface {
	Counts(ctx context.Context) (*repository.DashboardCounts, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL time.Duration
}

// DashboardService composes the inventory and workflow summary.
type DashboardService struct {
	counts dashboardCounter
	cache  *CacheService
	logger *zap.Logger
	now    func() time.Time
	cfg    DashboardServiceConfig
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Counts dashboardCounter
	Cache  *CacheService
	Logger *zap.Logger
	Config DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		counts: params.Counts,
		cache:  params.Cache,
		logger: logger,
		now:    time.Now,
		cfg:    cfg,
	}
}

// Summary returns the dashboard summary and indicates cache utilisation.
func (s *DashboardService) Summary(ctx context.Context) (*dto.DashboardSummary, bool, error) {
	if s.cache != nil {
		var cached dto.DashboardSummary
		hit, err := s.cache.Get(ctx, dashboardSummaryKey, &cached)
		if err == nil && hit {
			return &cached, true, nil
		}
	}

	counts, err := s.counts.Counts(ctx)
	if err != nil {
		return nil, false, appErrors.Backend(err, "failed to load dashboard counters")
	}
	summary := composeDashboardSummary(counts, s.now().UTC())

	if s.cache != nil {
		if err := s.cache.Set(ctx, dashboardSummaryKey, summary, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.String("key", dashboardSummaryKey), zap.Error(err))
		}
	}
	return summary, false, nil
}

// Invalidate drops the cached summary. The workspace calls it on every reload.
func (s *DashboardService) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx, dashboardSummaryKey)
}

func composeDashboardSummary(counts *repository.DashboardCounts, now time.Time) *dto.DashboardSummary {
	summary := &dto.DashboardSummary{
		LaptopsByStatus: make(map[models.LaptopStatus]int, len(models.LaptopStatuses())),
		OpenProblems:    counts.OpenProblems,
		GeneratedAt:     now,
	}
	for _, status := range models.LaptopStatuses() {
		summary.LaptopsByStatus[status] = 0
	}
	for _, row := range counts.Laptops {
		summary.LaptopsByStatus[models.LaptopStatus(row.Status)] += row.Total
		summary.TotalLaptops += row.Total
	}
	for _, row := range counts.Reservations {
		switch models.ReservationStatus(row.Status) {
		case models.ReservationStatusPending:
			summary.PendingReservations += row.Total
		case models.ReservationStatusApproved:
			summary.ApprovedReservations += row.Total
		}
	}
	for _, row := range counts.Advice {
		if models.AdviceStatus(row.Status) == models.AdviceStatusPending {
			summary.PendingAdvice += row.Total
		}
	}
	return summary
}
