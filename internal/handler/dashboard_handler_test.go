package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/laptop-lending-api/internal/dto"
	"github.com/noah-isme/laptop-lending-api/internal/middleware"
	"github.com/noah-isme/laptop-lending-api/internal/models"
	appErrors "github.com/noah-isme/laptop-lending-api/pkg/errors"
)

type fakeDashboardSrv struct {
	summary *dto.DashboardSummary
	hit     bool
	err     error
}

func (f *fakeDashboardSrv) Summary(context.Context) (*dto.DashboardSummary, bool, error) {
	return f.summary, f.hit, f.err
}

func TestDashboardHandlerSummary(t *testing.T) {
	h := NewDashboardHandler(&fakeDashboardSrv{
		summary: &dto.DashboardSummary{
			TotalLaptops:    3,
			LaptopsByStatus: map[models.LaptopStatus]int{models.LaptopStatusAvailable: 3},
		},
		hit: true,
	})

	c, rec := newTestContext(t, http.MethodGet, "/dashboard", nil)
	h.Summary(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var summary dto.DashboardSummary
	env := decodeEnvelope(t, rec, &summary)
	assert.Equal(t, 3, summary.TotalLaptops)
	assert.Equal(t, 3, summary.LaptopsByStatus[models.LaptopStatusAvailable])
	assert.Equal(t, true, env.Meta["cache_hit"])
	assert.Contains(t, env.Meta, "processing_time_ms")
}

func TestDashboardHandlerSummaryError(t *testing.T) {
	h := NewDashboardHandler(&fakeDashboardSrv{err: appErrors.Clone(appErrors.ErrBackend, "count failed")})

	c, rec := newTestContext(t, http.MethodGet, "/dashboard", nil)
	h.Summary(c)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestDashboardHandlerMetaWithoutMiddleware(t *testing.T) {
	h := NewDashboardHandler(&fakeDashboardSrv{summary: &dto.DashboardSummary{}})

	c, rec := newTestContext(t, http.MethodGet, "/dashboard", nil)
	h.Summary(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, middleware.ExtractMeta(c)["cache_hit"])
}
