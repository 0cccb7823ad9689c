package models

import "time"

// LaptopStatus captures the lifecycle state of a laptop.
type LaptopStatus string

const (
	LaptopStatusAvailable LaptopStatus = "available"
	LaptopStatusInReview  LaptopStatus = "in-review"
	LaptopStatusReserved  LaptopStatus = "reserved"
	LaptopStatusInUse     LaptopStatus = "in-use"
	LaptopStatusToCheck   LaptopStatus = "to-check"
	LaptopStatusFaulty    LaptopStatus = "faulty"
)

// LaptopStatuses lists every status in display order.
func LaptopStatuses() []LaptopStatus {
	return []LaptopStatus{
		LaptopStatusAvailable,
		LaptopStatusInReview,
		LaptopStatusReserved,
		LaptopStatusInUse,
		LaptopStatusToCheck,
		LaptopStatusFaulty,
	}
}

// Valid reports whether s is a known status.
func (s LaptopStatus) Valid() bool {
	switch s {
	case LaptopStatusAvailable, LaptopStatusInReview, LaptopStatusReserved,
		LaptopStatusInUse, LaptopStatusToCheck, LaptopStatusFaulty:
		return true
	}
	return false
}

// Held reports whether s is an operator hold that the status engine never overrides.
func (s LaptopStatus) Held() bool {
	return s == LaptopStatusFaulty || s == LaptopStatusInReview
}

// Laptop is a lendable device with its remarks and problem history.
type Laptop struct {
	ID              string       `db:"id" json:"id"`
	ComputerName    string       `db:"computer_name" json:"computerName"`
	CPU             string       `db:"cpu" json:"cpu"`
	RAM             string       `db:"ram" json:"ram"`
	GPU             string       `db:"gpu" json:"gpu"`
	SoftwareVersion string       `db:"software_version" json:"softwareVersion"`
	Status          LaptopStatus `db:"status" json:"status"`
	Remarks         []Remark     `db:"-" json:"remarks"`
	Problems        []Problem    `db:"-" json:"problems"`
	CreatedAt       time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time    `db:"updated_at" json:"updatedAt"`
}

// OpenProblemCount returns the number of unresolved problems.
func (l Laptop) OpenProblemCount() int {
	count := 0
	for _, p := range l.Problems {
		if p.Status == ProblemStatusOpen {
			count++
		}
	}
	return count
}

// Remark is a free-text note attached to a laptop.
type Remark struct {
	ID        string    `db:"id" json:"id"`
	LaptopID  string    `db:"laptop_id" json:"laptopId"`
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// ProblemStatus tracks whether a reported problem has been repaired.
type ProblemStatus string

const (
	ProblemStatusOpen     ProblemStatus = "open"
	ProblemStatusResolved ProblemStatus = "resolved"
)

// Problem is a reported defect and, once resolved, its repair.
type Problem struct {
	ID            string        `db:"id" json:"id"`
	LaptopID      string        `db:"laptop_id" json:"laptopId"`
	Description   string        `db:"description" json:"description"`
	ReporterName  string        `db:"reporter_name" json:"reporterName"`
	ReporterEmail string        `db:"reporter_email" json:"reporterEmail"`
	ResolverName  *string       `db:"resolver_name" json:"resolverName,omitempty"`
	Status        ProblemStatus `db:"status" json:"status"`
	RepairDetails *string       `db:"repair_details" json:"repairDetails,omitempty"`
	DateReported  time.Time     `db:"date_reported" json:"dateReported"`
	DateResolved  *time.Time    `db:"date_resolved" json:"dateResolved,omitempty"`
}

// OpenProblem is a repair queue entry.
type OpenProblem struct {
	Problem
	ComputerName string `db:"computer_name" json:"computerName"`
}

// LaptopSort enumerates the list orderings.
type LaptopSort string

const (
	LaptopSortDefault    LaptopSort = ""
	LaptopSortNameAsc    LaptopSort = "name-asc"
	LaptopSortNameDesc   LaptopSort = "name-desc"
	LaptopSortStatusAsc  LaptopSort = "status-asc"
	LaptopSortStatusDesc LaptopSort = "status-desc"
)

// Valid reports whether s is a known sort key.
func (s LaptopSort) Valid() bool {
	switch s {
	case LaptopSortDefault, LaptopSortNameAsc, LaptopSortNameDesc, LaptopSortStatusAsc, LaptopSortStatusDesc:
		return true
	}
	return false
}

// LaptopFilter narrows laptop listings.
type LaptopFilter struct {
	Search   string
	Statuses []LaptopStatus
	Sort     LaptopSort
}
