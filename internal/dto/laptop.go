package dto

import "github.com/noah-isme/laptop-lending-api/internal/models"

// CreateLaptopRequest registers a laptop. New laptops always start in-use.
type CreateLaptopRequest struct {
	ComputerName    string `json:"computerName" validate:"required"`
	CPU             string `json:"cpu" validate:"required"`
	RAM             string `json:"ram" validate:"required"`
	GPU             string `json:"gpu" validate:"required"`
	SoftwareVersion string `json:"softwareVersion" validate:"required"`
}

// UpdateLaptopRequest replaces the editable properties of a laptop.
type UpdateLaptopRequest struct {
	ComputerName    string `json:"computerName" validate:"required"`
	CPU             string `json:"cpu" validate:"required"`
	RAM             string `json:"ram" validate:"required"`
	GPU             string `json:"gpu" validate:"required"`
	SoftwareVersion string `json:"softwareVersion" validate:"required"`
}

// SetLaptopStatusRequest changes the status manually.
type SetLaptopStatusRequest struct {
	Status models.LaptopStatus `json:"status" validate:"required"`
}

// AddRemarkRequest appends a remark.
type AddRemarkRequest struct {
	Content string `json:"content" validate:"required"`
}

// ReportProblemRequest opens a problem on a laptop.
type ReportProblemRequest struct {
	Description   string `json:"description" validate:"required"`
	ReporterName  string `json:"reporterName" validate:"required"`
	ReporterEmail string `json:"reporterEmail" validate:"required,email"`
}

// ResolveProblemRequest records the repair of an open problem.
type ResolveProblemRequest struct {
	RepairDetails string `json:"repairDetails" validate:"required"`
	ResolverName  string `json:"resolverName" validate:"required"`
}

// LaptopQuery mirrors supported listing filters.
type LaptopQuery struct {
	Search string
	Status []models.LaptopStatus
	Sort   models.LaptopSort
}

// RecomputeResponse reports a status engine run.
type RecomputeResponse struct {
	Checked int `json:"checked"`
	Updated int `json:"updated"`
	Held    int `json:"held"`
}
