package dto

import "github.com/noah-isme/laptop-lending-api/internal/models"

// CreateAdviceRequest submits an improvement suggestion.
type CreateAdviceRequest struct {
	Type            models.AdviceType `json:"type" validate:"required"`
	Description     string            `json:"description" validate:"required"`
	Requirements    []string          `json:"requirements"`
	AdditionalNotes string            `json:"additionalNotes"`
	ReporterName    string            `json:"reporterName" validate:"required"`
	ReporterEmail   string            `json:"reporterEmail" validate:"required,email"`
	ReporterPhone   string            `json:"reporterPhone" validate:"required"`
	NotedBy         string            `json:"notedBy"`
}

// AdviceQuery mirrors supported listing filters.
type AdviceQuery struct {
	View models.AdviceView
	Type models.AdviceType
}

// AdviceTypeOptions lists the selectable requirements of one type.
type AdviceTypeOptions struct {
	Type         models.AdviceType `json:"type"`
	Requirements []string          `json:"requirements"`
}
