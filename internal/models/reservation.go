package models

import (
	"fmt"
	"strings"
	"time"
)

// ReservationStatus captures the approval workflow state.
type ReservationStatus string

const (
	ReservationStatusPending  ReservationStatus = "pending"
	ReservationStatusApproved ReservationStatus = "approved"
	ReservationStatusRejected ReservationStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s ReservationStatus) Valid() bool {
	switch s {
	case ReservationStatusPending, ReservationStatusApproved, ReservationStatusRejected:
		return true
	}
	return false
}

// Reservation is a request to borrow a number of laptops for a time window.
// Dates are YYYY-MM-DD and times HH:MM or HH:MM:SS, interpreted in the
// configured location.
type Reservation struct {
	ID              string            `db:"id" json:"id"`
	StartDate       string            `db:"start_date" json:"startDate"`
	StartTime       string            `db:"start_time" json:"startTime"`
	EndDate         string            `db:"end_date" json:"endDate"`
	EndTime         string            `db:"end_time" json:"endTime"`
	Quantity        int               `db:"quantity" json:"quantity"`
	AssignedLaptops []string          `db:"-" json:"assignedLaptops"`
	Description     string            `db:"description" json:"description"`
	Status          ReservationStatus `db:"status" json:"status"`
	ProcessedDate   *time.Time        `db:"processed_date" json:"processedDate,omitempty"`
	Reason          *string           `db:"reason" json:"reason,omitempty"`
	ContactName     string            `db:"contact_name" json:"contactName"`
	ContactEmail    string            `db:"contact_email" json:"contactEmail"`
	ContactPhone    string            `db:"contact_phone" json:"contactPhone"`
	CreatedAt       time.Time         `db:"created_at" json:"createdAt"`
}

// HasLaptop reports whether laptopID is assigned to the reservation.
func (r Reservation) HasLaptop(laptopID string) bool {
	for _, id := range r.AssignedLaptops {
		if id == laptopID {
			return true
		}
	}
	return false
}

// Window resolves the reservation's start and end instants in loc.
func (r Reservation) Window(loc *time.Location) (AssignmentWindow, error) {
	return NewAssignmentWindow(r.StartDate, r.StartTime, r.EndDate, r.EndTime, loc)
}

// Assignment links a laptop to a reservation.
type Assignment struct {
	ID            string    `db:"id" json:"id"`
	ReservationID string    `db:"reservation_id" json:"reservationId"`
	LaptopID      string    `db:"laptop_id" json:"laptopId"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

// AssignmentWindow is the closed interval [Start, End] of an approved reservation.
type AssignmentWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewAssignmentWindow combines date and time strings into a window.
func NewAssignmentWindow(startDate, startTime, endDate, endTime string, loc *time.Location) (AssignmentWindow, error) {
	start, err := ParseInstant(startDate, startTime, loc)
	if err != nil {
		return AssignmentWindow{}, fmt.Errorf("parse start: %w", err)
	}
	end, err := ParseInstant(endDate, endTime, loc)
	if err != nil {
		return AssignmentWindow{}, fmt.Errorf("parse end: %w", err)
	}
	return AssignmentWindow{Start: start, End: end}, nil
}

// ApprovedWindow is an assignment row joined with its approved reservation.
type ApprovedWindow struct {
	LaptopID      string `db:"laptop_id"`
	ReservationID string `db:"reservation_id"`
	StartDate     string `db:"start_date"`
	StartTime     string `db:"start_time"`
	EndDate       string `db:"end_date"`
	EndTime       string `db:"end_time"`
}

// Window resolves the row's instants in loc.
func (w ApprovedWindow) Window(loc *time.Location) (AssignmentWindow, error) {
	return NewAssignmentWindow(w.StartDate, w.StartTime, w.EndDate, w.EndTime, loc)
}

var instantLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseInstant combines a YYYY-MM-DD date and an HH:MM[:SS] time in loc.
func ParseInstant(date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	raw := strings.TrimSpace(date) + " " + strings.TrimSpace(clock)
	var lastErr error
	for _, layout := range instantLayouts {
		t, err := time.ParseInLocation(layout, raw, loc)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// ReservationSort enumerates the list orderings.
type ReservationSort string

const (
	ReservationSortDateAsc     ReservationSort = "date-asc"
	ReservationSortDateDesc    ReservationSort = "date-desc"
	ReservationSortNameAsc     ReservationSort = "name-asc"
	ReservationSortNameDesc    ReservationSort = "name-desc"
	ReservationSortLaptopsAsc  ReservationSort = "laptops-asc"
	ReservationSortLaptopsDesc ReservationSort = "laptops-desc"
)

// Valid reports whether s is a known sort key.
func (s ReservationSort) Valid() bool {
	switch s {
	case ReservationSortDateAsc, ReservationSortDateDesc, ReservationSortNameAsc,
		ReservationSortNameDesc, ReservationSortLaptopsAsc, ReservationSortLaptopsDesc:
		return true
	}
	return false
}

// ReservationFilter narrows reservation listings.
type ReservationFilter struct {
	Statuses []ReservationStatus
	Search   string
	Sort     ReservationSort
}

// AssignmentOverview is the assignment screen: approved reservations with
// their laptops and the laptops not held by any approved reservation.
type AssignmentOverview struct {
	Reservations []ReservationAssignments `json:"reservations"`
	Unassigned   []Laptop                 `json:"unassigned"`
}

// ReservationAssignments pairs an approved reservation with its assigned laptops.
type ReservationAssignments struct {
	Reservation Reservation `json:"reservation"`
	Laptops     []Laptop    `json:"laptops"`
}
