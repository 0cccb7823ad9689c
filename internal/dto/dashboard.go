package dto

import (
	"time"

	"github.com/noah-isme/laptop-lending-api/internal/models"
)

// DashboardSummary aggregates inventory and workflow counters.
type DashboardSummary struct {
	TotalLaptops         int                         `json:"totalLaptops"`
	LaptopsByStatus      map[models.LaptopStatus]int `json:"laptopsByStatus"`
	OpenProblems         int                         `json:"openProblems"`
	PendingReservations  int                         `json:"pendingReservations"`
	ApprovedReservations int                         `json:"approvedReservations"`
	PendingAdvice        int                         `json:"pendingAdvice"`
	GeneratedAt          time.Time                   `json:"generatedAt"`
}
