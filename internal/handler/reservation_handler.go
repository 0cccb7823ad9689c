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

type reservationService interface {
	Create(ctx context.Context, req dto.CreateReservationRequest) (*models.Reservation, error)
	List(ctx context.Context, query dto.ReservationQuery) ([]models.Reservation, error)
	Get(ctx context.Context, id string) (*models.Reservation, error)
	Approve(ctx context.Context, id string) (*models.Reservation, error)
	Reject(ctx context.Context, id, reason string) (*models.Reservation, error)
	UpdateDescription(ctx context.Context, id, description string) (*models.Reservation, error)
}

type assignmentService interface {
	Assign(ctx context.Context, reservationID, laptopID string) (*models.Reservation, error)
	Unassign(ctx context.Context, reservationID, laptopID string) (*models.Reservation, error)
	Overview(ctx context.Context) (*models.AssignmentOverview, error)
}

// ReservationHandler exposes the reservation workflow and laptop assignment.
type ReservationHandler struct {
	reservations reservationService
	assignments  assignmentService
}

// NewReservationHandler constructs the handler.
func NewReservationHandler(reservations reservationService, assignments assignmentService) *ReservationHandler {
	return &ReservationHandler{reservations: reservations, assignments: assignments}
}

// List godoc
// @Summary List reservations
// @Tags Reservations
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param search query string false "Matches contact name, email or description"
// @Param sort query string false "date-asc, date-desc, name-asc, name-desc, laptops-asc or laptops-desc"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /reservations [get]
func (h *ReservationHandler) List(c *gin.Context) {
	query := dto.ReservationQuery{
		Search: strings.TrimSpace(c.Query("search")),
		Sort:   models.ReservationSort(strings.TrimSpace(c.Query("sort"))),
	}
	for _, status := range queryList(c, "status") {
		query.Status = append(query.Status, models.ReservationStatus(status))
	}
	items, err := h.reservations.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil, map[string]interface{}{"count": len(items)})
}

// Create godoc
// @Summary Submit reservation
// @Tags Reservations
// @Accept json
// @Produce json
// @Param payload body dto.CreateReservationRequest true "Reservation payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /reservations [post]
func (h *ReservationHandler) Create(c *gin.Context) {
	var req dto.CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reservation payload"))
		return
	}
	reservation, err := h.reservations.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, reservation)
}

// Get godoc
// @Summary Get reservation
// @Tags Reservations
// @Produce json
// @Param id path string true "Reservation ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reservations/{id} [get]
func (h *ReservationHandler) Get(c *gin.Context) {
	reservation, err := h.reservations.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, reservation)
}

// Approve godoc
// @Summary Approve reservation
// @Tags Reservations
// @Produce json
// @Param id path string true "Reservation ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /reservations/{id}/approve [post]
func (h *ReservationHandler) Approve(c *gin.Context) {
	reservation, err := h.reservations.Approve(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, reservation)
}

// Reject godoc
// @Summary Reject reservation
// @Tags Reservations
// @Accept json
// @Produce json
// @Param id path string true "Reservation ID"
// @Param payload body dto.RejectRequest true "Rejection reason"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /reservations/{id}/reject [post]
func (h *ReservationHandler) Reject(c *gin.Context) {
	var req dto.RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rejection payload"))
		return
	}
	reservation, err := h.reservations.Reject(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, reservation)
}

// UpdateDescription godoc
// @Summary Edit reservation description
// @Tags Reservations
// @Accept json
// @Produce json
// @Param id path string true "Reservation ID"
// @Param payload body dto.UpdateDescriptionRequest true "Description"
// @Success 200 {object} response.Envelope
// @Router /reservations/{id}/description [put]
func (h *ReservationHandler) UpdateDescription(c *gin.Context) {
	var req dto.UpdateDescriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid description payload"))
		return
	}
	reservation, err := h.reservations.UpdateDescription(c.Request.Context(), c.Param("id"), req.Description)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, reservation)
}

// Assign godoc
// @Summary Assign laptop to approved reservation
// @Tags Assignments
// @Produce json
// @Param id path string true "Reservation ID"
// @Param laptopId path string true "Laptop ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /reservations/{id}/laptops/{laptopId} [post]
func (h *ReservationHandler) Assign(c *gin.Context) {
	reservation, err := h.assignments.Assign(c.Request.Context(), c.Param("id"), c.Param("laptopId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, reservation)
}

// Unassign godoc
// @Summary Release laptop from reservation
// @Tags Assignments
// @Produce json
// @Param id path string true "Reservation ID"
// @Param laptopId path string true "Laptop ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reservations/{id}/laptops/{laptopId} [delete]
func (h *ReservationHandler) Unassign(c *gin.Context) {
	reservation, err := h.assignments.Unassign(c.Request.Context(), c.Param("id"), c.Param("laptopId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, reservation)
}

// Assignments godoc
// @Summary Assignment overview
// @Tags Assignments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /assignments [get]
func (h *ReservationHandler) Assignments(c *gin.Context) {
	overview, err := h.assignments.Overview(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, overview)
}
