package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/laptop-lending-api/internal/dto"
	"github.com/noah-isme/laptop-lending-api/internal/models"
	"github.com/noah-isme/laptop-lending-api/internal/service"
	appErrors "github.com/noah-isme/laptop-lending-api/pkg/errors"
	"github.com/noah-isme/laptop-lending-api/pkg/response"
)

type laptopService interface {
	Create(ctx context.Context, req dto.CreateLaptopRequest) (*models.Laptop, error)
	List(ctx context.Context, query dto.LaptopQuery) ([]models.Laptop, error)
	Get(ctx context.Context, id string) (*models.Laptop, error)
	UpdateProperties(ctx context.Context, id string, req dto.UpdateLaptopRequest) (*models.Laptop, error)
	SetStatus(ctx context.Context, id string, status models.LaptopStatus) (*models.Laptop, error)
	AddRemark(ctx context.Context, id string, req dto.AddRemarkRequest) (*models.Remark, error)
	ReportProblem(ctx context.Context, id string, req dto.ReportProblemRequest) (*models.Problem, error)
	ResolveProblem(ctx context.Context, laptopID, problemID string, req dto.ResolveProblemRequest) (*models.Problem, error)
	Delete(ctx context.Context, id string) error
	OpenProblems(ctx context.Context) ([]models.OpenProblem, error)
}

type laptopExporter interface {
	Laptops(ctx context.Context, format string, query dto.LaptopQuery) (*service.ExportFile, error)
}

type statusRecomputer interface {
	Recompute(ctx context.Context) (service.RecomputeResult, error)
}

// LaptopHandler exposes the laptop inventory.
type LaptopHandler struct {
	laptops  laptopService
	exporter laptopExporter
	engine   statusRecomputer
}

// NewLaptopHandler constructs the handler. exporter and engine may be nil.
func NewLaptopHandler(laptops laptopService, exporter laptopExporter, engine statusRecomputer) *LaptopHandler {
	return &LaptopHandler{laptops: laptops, exporter: exporter, engine: engine}
}

// List godoc
// @Summary List laptops
// @Tags Laptops
// @Produce json
// @Param search query string false "Matches computer name, CPU, RAM or GPU"
// @Param status query string false "Comma separated statuses"
// @Param sort query string false "name-asc, name-desc, status-asc or status-desc"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /laptops [get]
func (h *LaptopHandler) List(c *gin.Context) {
	items, err := h.laptops.List(c.Request.Context(), laptopQueryFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil, map[string]interface{}{"count": len(items)})
}

// Create godoc
// @Summary Register laptop
// @Tags Laptops
// @Accept json
// @Produce json
// @Param payload body dto.CreateLaptopRequest true "Laptop payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /laptops [post]
func (h *LaptopHandler) Create(c *gin.Context) {
	var req dto.CreateLaptopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid laptop payload"))
		return
	}
	laptop, err := h.laptops.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, laptop)
}

// Get godoc
// @Summary Get laptop
// @Tags Laptops
// @Produce json
// @Param id path string true "Laptop ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /laptops/{id} [get]
func (h *LaptopHandler) Get(c *gin.Context) {
	laptop, err := h.laptops.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, laptop)
}

// Update godoc
// @Summary Update laptop properties
// @Tags Laptops
// @Accept json
// @Produce json
// @Param id path string true "Laptop ID"
// @Param payload body dto.UpdateLaptopRequest true "Laptop properties"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /laptops/{id} [put]
func (h *LaptopHandler) Update(c *gin.Context) {
	var req dto.UpdateLaptopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid laptop payload"))
		return
	}
	laptop, err := h.laptops.UpdateProperties(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, laptop)
}

// SetStatus godoc
// @Summary Change laptop status manually
// @Tags Laptops
// @Accept json
// @Produce json
// @Param id path string true "Laptop ID"
// @Param payload body dto.SetLaptopStatusRequest true "New status"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /laptops/{id}/status [put]
func (h *LaptopHandler) SetStatus(c *gin.Context) {
	var req dto.SetLaptopStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}
	laptop, err := h.laptops.SetStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, laptop)
}

// Delete godoc
// @Summary Delete laptop
// @Tags Laptops
// @Param id path string true "Laptop ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /laptops/{id} [delete]
func (h *LaptopHandler) Delete(c *gin.Context) {
	if err := h.laptops.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AddRemark godoc
// @Summary Add remark
// @Tags Laptops
// @Accept json
// @Produce json
// @Param id path string true "Laptop ID"
// @Param payload body dto.AddRemarkRequest true "Remark"
// @Success 201 {object} response.Envelope
// @Router /laptops/{id}/remarks [post]
func (h *LaptopHandler) AddRemark(c *gin.Context) {
	var req dto.AddRemarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid remark payload"))
		return
	}
	remark, err := h.laptops.AddRemark(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, remark)
}

// ReportProblem godoc
// @Summary Report problem
// @Tags Laptops
// @Accept json
// @Produce json
// @Param id path string true "Laptop ID"
// @Param payload body dto.ReportProblemRequest true "Problem"
// @Success 201 {object} response.Envelope
// @Router /laptops/{id}/problems [post]
func (h *LaptopHandler) ReportProblem(c *gin.Context) {
	var req dto.ReportProblemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid problem payload"))
		return
	}
	problem, err := h.laptops.ReportProblem(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, problem)
}

// ResolveProblem godoc
// @Summary Resolve problem
// @Tags Laptops
// @Accept json
// @Produce json
// @Param id path string true "Laptop ID"
// @Param problemId path string true "Problem ID"
// @Param payload body dto.ResolveProblemRequest true "Repair"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /laptops/{id}/problems/{problemId}/resolve [post]
func (h *LaptopHandler) ResolveProblem(c *gin.Context) {
	var req dto.ResolveProblemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid repair payload"))
		return
	}
	problem, err := h.laptops.ResolveProblem(c.Request.Context(), c.Param("id"), c.Param("problemId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, problem)
}

// OpenProblems godoc
// @Summary Repair queue
// @Tags Laptops
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /laptops/problems/open [get]
func (h *LaptopHandler) OpenProblems(c *gin.Context) {
	items, err := h.laptops.OpenProblems(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil, map[string]interface{}{"count": len(items)})
}

// Export godoc
// @Summary Export inventory
// @Tags Laptops
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv (default) or pdf"
// @Param search query string false "Matches computer name, CPU, RAM or GPU"
// @Param status query string false "Comma separated statuses"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /laptops/export [get]
func (h *LaptopHandler) Export(c *gin.Context) {
	if h.exporter == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	format := strings.ToLower(strings.TrimSpace(c.Query("format")))
	file, err := h.exporter.Laptops(c.Request.Context(), format, laptopQueryFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

// Recompute godoc
// @Summary Re-derive laptop statuses now
// @Tags Laptops
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /laptops/status/recompute [post]
func (h *LaptopHandler) Recompute(c *gin.Context) {
	if h.engine == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	result, err := h.engine.Recompute(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.RecomputeResponse{Checked: result.Checked, Updated: result.Updated, Held: result.Held})
}

func laptopQueryFrom(c *gin.Context) dto.LaptopQuery {
	query := dto.LaptopQuery{
		Search: strings.TrimSpace(c.Query("search")),
		Sort:   models.LaptopSort(strings.TrimSpace(c.Query("sort"))),
	}
	for _, status := range queryList(c, "status") {
		query.Status = append(query.Status, models.LaptopStatus(status))
	}
	return query
}
