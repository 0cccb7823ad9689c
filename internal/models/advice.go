package models

import (
	"time"

	"github.com/lib/pq"
)

// AdviceType categorises an improvement suggestion.
type AdviceType string

const (
	AdviceTypeNewSoftwarePackage AdviceType = "new-software-package"
	AdviceTypeNewFunctionality   AdviceType = "new-functionality"
	AdviceTypeHardwareQuality    AdviceType = "hardware-quality"
)

var adviceRequirementOptions = map[AdviceType][]string{
	AdviceTypeNewSoftwarePackage: {
		"Compatibility with existing systems",
		"User-friendly interface",
		"Offline availability",
		"Data import/export",
		"Multi-user support",
		"Printer driver for print jobs",
		"Performance status monitoring",
	},
	AdviceTypeNewFunctionality: {
		"Mobile simulation",
		"Presentation tools",
		"Remote desktop",
		"Cloud synchronisation",
		"Virtualisation options",
	},
	AdviceTypeHardwareQuality: {
		"Sound card quality",
		"Video card performance",
		"Processor speed",
		"Memory capacity",
		"Screen resolution",
	},
}

// AdviceTypes lists the supported advice types.
func AdviceTypes() []AdviceType {
	return []AdviceType{AdviceTypeNewSoftwarePackage, AdviceTypeNewFunctionality, AdviceTypeHardwareQuality}
}

// RequirementOptions returns a copy of the selectable requirements for t.
func RequirementOptions(t AdviceType) ([]string, bool) {
	options, ok := adviceRequirementOptions[t]
	if !ok {
		return nil, false
	}
	out := make([]string, len(options))
	copy(out, options)
	return out, true
}

// AdviceStatus captures the review workflow state.
type AdviceStatus string

const (
	AdviceStatusPending  AdviceStatus = "pending"
	AdviceStatusApproved AdviceStatus = "approved"
	AdviceStatusRejected AdviceStatus = "rejected"
)

// Advice is an improvement suggestion awaiting or past review.
type Advice struct {
	ID              string         `db:"id" json:"id"`
	Type            AdviceType     `db:"type" json:"type"`
	Description     string         `db:"description" json:"description"`
	Requirements    pq.StringArray `db:"requirements" json:"requirements"`
	AdditionalNotes string         `db:"additional_notes" json:"additionalNotes"`
	Status          AdviceStatus   `db:"status" json:"status"`
	CreatedAt       time.Time      `db:"created_at" json:"createdAt"`
	ProcessedAt     *time.Time     `db:"processed_at" json:"processedAt,omitempty"`
	RejectionReason *string        `db:"rejection_reason" json:"rejectionReason,omitempty"`
	ReporterName    string         `db:"reporter_name" json:"reporterName"`
	ReporterEmail   string         `db:"reporter_email" json:"reporterEmail"`
	ReporterPhone   string         `db:"reporter_phone" json:"reporterPhone"`
	NotedBy         string         `db:"noted_by" json:"notedBy"`
}

// AdviceView selects the overview or the processed archive.
type AdviceView string

const (
	AdviceViewAll       AdviceView = ""
	AdviceViewPending   AdviceView = "pending"
	AdviceViewProcessed AdviceView = "processed"
)

// AdviceFilter narrows advice listings.
type AdviceFilter struct {
	View AdviceView
	Type AdviceType
}
