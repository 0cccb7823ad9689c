package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/laptop-lending-api/internal/dto"
	"github.com/noah-isme/laptop-lending-api/internal/models"
	appErrors "github.com/noah-isme/laptop-lending-api/pkg/errors"
)

func newTestAdviceService(db *memDB) *AdviceService {
	return NewAdviceService(memAdvice{db}, validator.New(), zap.NewNop(), WithAdviceClock(fixedClock(engineNow)))
}

func validAdviceRequest() dto.CreateAdviceRequest {
	return dto.CreateAdviceRequest{
		Type:          models.AdviceTypeHardwareQuality,
		Description:   "Screens are too dim for presentations",
		Requirements:  []string{"Screen resolution", "Video card performance"},
		ReporterName:  "Kim",
		ReporterEmail: "kim@example.com",
		ReporterPhone: "0600000000",
	}
}

func TestAdviceServiceCreate(t *testing.T) {
	db := newMemDB()
	svc := newTestAdviceService(db)

	advice, err := svc.Create(context.Background(), validAdviceRequest(), "helpdesk@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, advice.ID)
	assert.Equal(t, models.AdviceStatusPending, advice.Status)
	assert.Equal(t, engineNow, advice.CreatedAt)
	assert.Equal(t, "helpdesk@example.com", advice.NotedBy)
	assert.Equal(t, []string{"Screen resolution", "Video card performance"}, []string(advice.Requirements))

	req := validAdviceRequest()
	req.NotedBy = "Front desk"
	advice, err = svc.Create(context.Background(), req, "helpdesk@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Front desk", advice.NotedBy)
}

func TestAdviceServiceCreateValidation(t *testing.T) {
	svc := newTestAdviceService(newMemDB())
	cases := map[string]func(*dto.CreateAdviceRequest){
		"unknown type":          func(r *dto.CreateAdviceRequest) { r.Type = "coffee-machine" },
		"foreign requirement":   func(r *dto.CreateAdviceRequest) { r.Requirements = []string{"Remote desktop"} },
		"duplicate requirement": func(r *dto.CreateAdviceRequest) { r.Requirements = []string{"Processor speed", "Processor speed"} },
		"bad email":             func(r *dto.CreateAdviceRequest) { r.ReporterEmail = "kim" },
		"missing description":   func(r *dto.CreateAdviceRequest) { r.Description = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := validAdviceRequest()
			mutate(&req)
			_, err := svc.Create(context.Background(), req, "")
			assert.ErrorIs(t, err, appErrors.ErrValidation)
		})
	}
}

func TestAdviceRejectedForBudget(t *testing.T) {
	db := newMemDB()
	svc := newTestAdviceService(db)
	advice, err := svc.Create(context.Background(), validAdviceRequest(), "")
	require.NoError(t, err)

	_, err = svc.Reject(context.Background(), advice.ID, "")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	stored, err := svc.Get(context.Background(), advice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AdviceStatusPending, stored.Status)

	rejected, err := svc.Reject(context.Background(), advice.ID, "budget")
	require.NoError(t, err)
	assert.Equal(t, models.AdviceStatusRejected, rejected.Status)
	require.NotNil(t, rejected.RejectionReason)
	assert.Equal(t, "budget", *rejected.RejectionReason)
	require.NotNil(t, rejected.ProcessedAt)

	_, err = svc.Reject(context.Background(), advice.ID, "budget")
	assert.ErrorIs(t, err, appErrors.ErrInvalidState)
	_, err = svc.Approve(context.Background(), advice.ID)
	assert.ErrorIs(t, err, appErrors.ErrInvalidState)
}

func TestAdviceServiceListViews(t *testing.T) {
	db := newMemDB()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	db.advice = []models.Advice{
		{ID: "old-pending", Type: models.AdviceTypeNewFunctionality, Status: models.AdviceStatusPending, CreatedAt: base},
		{ID: "approved", Type: models.AdviceTypeHardwareQuality, Status: models.AdviceStatusApproved, CreatedAt: base.Add(time.Hour)},
		{ID: "new-pending", Type: models.AdviceTypeHardwareQuality, Status: models.AdviceStatusPending, CreatedAt: base.Add(2 * time.Hour)},
		{ID: "rejected", Type: models.AdviceTypeNewSoftwarePackage, Status: models.AdviceStatusRejected, CreatedAt: base.Add(3 * time.Hour)},
	}
	svc := newTestAdviceService(db)
	ctx := context.Background()

	pending, err := svc.List(ctx, dto.AdviceQuery{View: models.AdviceViewPending})
	require.NoError(t, err)
	assert.Equal(t, []string{"new-pending", "old-pending"}, adviceIDs(pending))

	processed, err := svc.List(ctx, dto.AdviceQuery{View: models.AdviceViewProcessed})
	require.NoError(t, err)
	assert.Equal(t, []string{"rejected", "approved"}, adviceIDs(processed))

	hardware, err := svc.List(ctx, dto.AdviceQuery{Type: models.AdviceTypeHardwareQuality})
	require.NoError(t, err)
	assert.Equal(t, []string{"new-pending", "approved"}, adviceIDs(hardware))

	_, err = svc.List(ctx, dto.AdviceQuery{View: "archived"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestAdviceServiceOptions(t *testing.T) {
	svc := newTestAdviceService(newMemDB())
	options := svc.Options()
	require.Len(t, options, 3)
	assert.Equal(t, models.AdviceTypeNewSoftwarePackage, options[0].Type)
	assert.Contains(t, options[2].Requirements, "Memory capacity")

	options[2].Requirements[0] = "mutated"
	again := svc.Options()
	assert.NotEqual(t, "mutated", again[2].Requirements[0])
}

func adviceIDs(list []models.Advice) []string {
	ids := make([]string, 0, len(list))
	for _, a := range list {
		ids = append(ids, a.ID)
	}
	return ids
}
