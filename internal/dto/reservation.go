package dto

import "github.com/noah-isme/laptop-lending-api/internal/models"

// CreateReservationRequest submits a reservation for review.
type CreateReservationRequest struct {
	StartDate    string `json:"startDate" validate:"required"`
	StartTime    string `json:"startTime" validate:"required"`
	EndDate      string `json:"endDate" validate:"required"`
	EndTime      string `json:"endTime" validate:"required"`
	Quantity     int    `json:"quantity" validate:"required,min=1"`
	Description  string `json:"description"`
	ContactName  string `json:"contactName" validate:"required"`
	ContactEmail string `json:"contactEmail" validate:"required,email"`
	ContactPhone string `json:"contactPhone" validate:"required"`
}

// RejectRequest carries the mandatory rejection reason.
type RejectRequest struct {
	Reason string `json:"reason"`
}

// UpdateDescriptionRequest edits a reservation description.
type UpdateDescriptionRequest struct {
	Description string `json:"description"`
}

// ReservationQuery mirrors supported listing filters.
type ReservationQuery struct {
	Status []models.ReservationStatus
	Search string
	Sort   models.ReservationSort
}
