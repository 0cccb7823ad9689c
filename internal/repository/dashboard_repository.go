package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/laptop-lending-api/internal/models"
)

// StatusCount is one row of a GROUP BY status aggregate.
type StatusCount struct {
	Status string `db:"status"`
	Total  int    `db:"total"`
}

// DashboardCounts aggregates the raw counters behind the dashboard.
type DashboardCounts struct {
	Laptops      []StatusCount
	Reservations []StatusCount
	Advice       []StatusCount
	OpenProblems int
}

// DashboardRepository runs aggregate queries for the dashboard.
type DashboardRepository struct {
	db *sqlx.DB
}

// NewDashboardRepository constructs the repository.
func NewDashboardRepository(db *sqlx.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// Counts loads status breakdowns for laptops, reservations and advice plus the open problem total.
func (r *DashboardRepository) Counts(ctx context.Context) (*DashboardCounts, error) {
	counts := &DashboardCounts{}
	groups := []struct {
		table string
		dest  *[]StatusCount
	}{
		{models.TableLaptops, &counts.Laptops},
		{models.TableReservations, &counts.Reservations},
		{models.TableAdviceRequests, &counts.Advice},
	}
	for _, g := range groups {
		query := fmt.Sprintf(`SELECT status, COUNT(*) AS total FROM %s GROUP BY status`, g.table)
		if err := r.db.SelectContext(ctx, g.dest, query); err != nil {
			return nil, fmt.Errorf("count %s by status: %w", g.table, err)
		}
	}
	const openQuery = `SELECT COUNT(*) FROM laptop_problems WHERE status = 'open'`
	if err := r.db.GetContext(ctx, &counts.OpenProblems, openQuery); err != nil {
		return nil, fmt.Errorf("count open problems: %w", err)
	}
	return counts, nil
}
