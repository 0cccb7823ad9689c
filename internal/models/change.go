package models

import "time"

// Table names that publish change notifications.
const (
	TableLaptops           = "laptops"
	TableLaptopProblems    = "laptop_problems"
	TableLaptopRemarks     = "laptop_remarks"
	TableReservations      = "reservations"
	TableLaptopAssignments = "laptop_assignments"
	TableAdviceRequests    = "advice_requests"
)

// WatchedTables lists every table the workspace follows.
func WatchedTables() []string {
	return []string{
		TableLaptops,
		TableLaptopProblems,
		TableLaptopRemarks,
		TableReservations,
		TableLaptopAssignments,
		TableAdviceRequests,
	}
}

// ChangeEvent is a row-level change pushed by the database.
type ChangeEvent struct {
	Table      string    `json:"table"`
	Operation  string    `json:"op"`
	RecordID   string    `json:"id,omitempty"`
	ReceivedAt time.Time `json:"receivedAt"`
}
