package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/laptop-lending-api/internal/dto"
	"github.com/noah-isme/laptop-lending-api/internal/models"
	appErrors "github.com/noah-isme/laptop-lending-api/pkg/errors"
	"github.com/noah-isme/laptop-lending-api/pkg/response"
)

type adviceService interface {
	Options() []dto.AdviceTypeOptions
	Create(ctx context.Context, req dto.CreateAdviceRequest, notedBy string) (*models.Advice, error)
	List(ctx context.Context, query dto.AdviceQuery) ([]models.Advice, error)
	Get(ctx context.Context, id string) (*models.Advice, error)
	Approve(ctx context.Context, id string) (*models.Advice, error)
	Reject(ctx context.Context, id, reason string) (*models.Advice, error)
}

// AdviceHandler exposes the advice workflow.
type AdviceHandler struct {
	service adviceService
}

// NewAdviceHandler constructs the handler.
func NewAdviceHandler(service adviceService) *AdviceHandler {
	return &AdviceHandler{service: service}
}

// Options godoc
// @Summary Advice types and their requirement options
// @Tags Advice
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /advice/options [get]
func (h *AdviceHandler) Options(c *gin.Context) {
	response.OK(c, h.service.Options())
}

// List godoc
// @Summary List advice
// @Tags Advice
// @Produce json
// @Param view query string false "pending or processed"
// @Param type query string false "Advice type"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /advice [get]
func (h *AdviceHandler) List(c *gin.Context) {
	query := dto.AdviceQuery{
		View: models.AdviceView(strings.TrimSpace(c.Query("view"))),
		Type: models.AdviceType(strings.TrimSpace(c.Query("type"))),
	}
	items, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil, map[string]interface{}{"count": len(items)})
}

// Create godoc
// @Summary Submit advice
// @Description notedBy defaults to the signed-in user's email
// @Tags Advice
// @Accept json
// @Produce json
// @Param payload body dto.CreateAdviceRequest true "Advice payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /advice [post]
func (h *AdviceHandler) Create(c *gin.Context) {
	var req dto.CreateAdviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid advice payload"))
		return
	}
	var notedBy string
	if claims := claimsFromContext(c); claims != nil {
		notedBy = claims.Email
	}
	advice, err := h.service.Create(c.Request.Context(), req, notedBy)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, advice)
}

// Get godoc
// @Summary Get advice
// @Tags Advice
// @Produce json
// @Param id path string true "Advice ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /advice/{id} [get]
func (h *AdviceHandler) Get(c *gin.Context) {
	advice, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, advice)
}

// Approve godoc
// @Summary Approve advice
// @Tags Advice
// @Produce json
// @Param id path string true "Advice ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /advice/{id}/approve [post]
func (h *AdviceHandler) Approve(c *gin.Context) {
	advice, err := h.service.Approve(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, advice)
}

// Reject godoc
// @Summary Reject advice
// @Tags Advice
// @Accept json
// @Produce json
// @Param id path string true "Advice ID"
// @Param payload body dto.RejectRequest true "Rejection reason"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /advice/{id}/reject [post]
func (h *AdviceHandler) Reject(c *gin.Context) {
	var req dto.RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rejection payload"))
		return
	}
	advice, err := h.service.Reject(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, advice)
}
