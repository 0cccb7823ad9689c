package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/laptop-lending-api/internal/models"
)

const laptopColumns = `id, computer_name, cpu, ram, gpu, software_version, status, created_at, updated_at`

const problemColumns = `id, laptop_id, description, reporter_name, reporter_email, resolver_name, status,
       repair_details, date_reported, date_resolved`

// LaptopRepository persists laptops together with their remarks and problems.
type LaptopRepository struct {
	db *sqlx.DB
}

// NewLaptopRepository constructs the repository.
func NewLaptopRepository(db *sqlx.DB) *LaptopRepository {
	return &LaptopRepository{db: db}
}

// Create inserts a new laptop row.
func (r *LaptopRepository) Create(ctx context.Context, laptop *models.Laptop) error {
	if laptop.ID == "" {
		laptop.ID = uuid.NewString()
	}
	if laptop.Status == "" {
		laptop.Status = models.LaptopStatusInUse
	}
	now := time.Now().UTC()
	if laptop.CreatedAt.IsZero() {
		laptop.CreatedAt = now
	}
	laptop.UpdatedAt = now
	const query = `INSERT INTO laptops (` + laptopColumns + `)
	VALUES (:id, :computer_name, :cpu, :ram, :gpu, :software_version, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, laptop); err != nil {
		return fmt.Errorf("create laptop: %w", err)
	}
	return nil
}

// List returns every laptop in insertion order with remarks and problems attached.
func (r *LaptopRepository) List(ctx context.Context) ([]models.Laptop, error) {
	var laptops []models.Laptop
	if err := r.db.SelectContext(ctx, &laptops, `SELECT `+laptopColumns+` FROM laptops ORDER BY created_at ASC, id ASC`); err != nil {
		return nil, fmt.Errorf("list laptops: %w", err)
	}

	var problems []models.Problem
	if err := r.db.SelectContext(ctx, &problems, `SELECT `+problemColumns+` FROM laptop_problems ORDER BY date_reported DESC`); err != nil {
		return nil, fmt.Errorf("list laptop problems: %w", err)
	}
	var remarks []models.Remark
	if err := r.db.SelectContext(ctx, &remarks, `SELECT id, laptop_id, content, created_at FROM laptop_remarks ORDER BY created_at ASC`); err != nil {
		return nil, fmt.Errorf("list laptop remarks: %w", err)
	}

	problemsByLaptop := make(map[string][]models.Problem, len(laptops))
	for _, p := range problems {
		problemsByLaptop[p.LaptopID] = append(problemsByLaptop[p.LaptopID], p)
	}
	remarksByLaptop := make(map[string][]models.Remark, len(laptops))
	for _, rm := range remarks {
		remarksByLaptop[rm.LaptopID] = append(remarksByLaptop[rm.LaptopID], rm)
	}
	for i := range laptops {
		laptops[i].Problems = nonNilProblems(problemsByLaptop[laptops[i].ID])
		laptops[i].Remarks = nonNilRemarks(remarksByLaptop[laptops[i].ID])
	}
	return laptops, nil
}

// GetByID fetches a laptop with its remarks and problems.
func (r *LaptopRepository) GetByID(ctx context.Context, id string) (*models.Laptop, error) {
	var laptop models.Laptop
	if err := r.db.GetContext(ctx, &laptop, `SELECT `+laptopColumns+` FROM laptops WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get laptop: %w", err)
	}

	var problems []models.Problem
	if err := r.db.SelectContext(ctx, &problems, `SELECT `+problemColumns+` FROM laptop_problems WHERE laptop_id = $1 ORDER BY date_reported DESC`, id); err != nil {
		return nil, fmt.Errorf("get laptop problems: %w", err)
	}
	var remarks []models.Remark
	if err := r.db.SelectContext(ctx, &remarks, `SELECT id, laptop_id, content, created_at FROM laptop_remarks WHERE laptop_id = $1 ORDER BY created_at ASC`, id); err != nil {
		return nil, fmt.Errorf("get laptop remarks: %w", err)
	}
	laptop.Problems = nonNilProblems(problems)
	laptop.Remarks = nonNilRemarks(remarks)
	return &laptop, nil
}

// Update overwrites the editable properties of a laptop.
func (r *LaptopRepository) Update(ctx context.Context, laptop *models.Laptop) error {
	laptop.UpdatedAt = time.Now().UTC()
	const query = `UPDATE laptops SET computer_name = :computer_name, cpu = :cpu, ram = :ram, gpu = :gpu,
	software_version = :software_version, updated_at = :updated_at WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, laptop)
	if err != nil {
		return fmt.Errorf("update laptop: %w", err)
	}
	return expectAffected(result, "update laptop")
}

// UpdateStatus sets the status of a single laptop.
func (r *LaptopRepository) UpdateStatus(ctx context.Context, id string, status models.LaptopStatus) error {
	const query = `UPDATE laptops SET status = $2, updated_at = $3 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update laptop status: %w", err)
	}
	return expectAffected(result, "update laptop status")
}

// Delete removes a laptop. Remarks, problems and assignments cascade.
func (r *LaptopRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM laptops WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete laptop: %w", err)
	}
	return expectAffected(result, "delete laptop")
}

// AddRemark appends a remark to a laptop.
func (r *LaptopRepository) AddRemark(ctx context.Context, remark *models.Remark) error {
	if remark.ID == "" {
		remark.ID = uuid.NewString()
	}
	if remark.CreatedAt.IsZero() {
		remark.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO laptop_remarks (id, laptop_id, content, created_at)
	VALUES (:id, :laptop_id, :content, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, remark); err != nil {
		return fmt.Errorf("add laptop remark: %w", err)
	}
	return nil
}

// UpsertProblem inserts a problem or overwrites the stored row with the same id.
func (r *LaptopRepository) UpsertProblem(ctx context.Context, problem *models.Problem) error {
	if problem.ID == "" {
		problem.ID = uuid.NewString()
	}
	if problem.Status == "" {
		problem.Status = models.ProblemStatusOpen
	}
	if problem.DateReported.IsZero() {
		problem.DateReported = time.Now().UTC()
	}
	const query = `INSERT INTO laptop_problems
	(id, laptop_id, description, reporter_name, reporter_email, resolver_name, status, repair_details, date_reported, date_resolved)
	VALUES (:id, :laptop_id, :description, :reporter_name, :reporter_email, :resolver_name, :status, :repair_details, :date_reported, :date_resolved)
	ON CONFLICT (id) DO UPDATE SET description = EXCLUDED.description, resolver_name = EXCLUDED.resolver_name,
	status = EXCLUDED.status, repair_details = EXCLUDED.repair_details, date_resolved = EXCLUDED.date_resolved`
	if _, err := r.db.NamedExecContext(ctx, query, problem); err != nil {
		return fmt.Errorf("upsert laptop problem: %w", err)
	}
	return nil
}

// GetProblem fetches one problem of a laptop.
func (r *LaptopRepository) GetProblem(ctx context.Context, laptopID, problemID string) (*models.Problem, error) {
	var problem models.Problem
	query := `SELECT ` + problemColumns + ` FROM laptop_problems WHERE id = $1 AND laptop_id = $2`
	if err := r.db.GetContext(ctx, &problem, query, problemID, laptopID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get laptop problem: %w", err)
	}
	return &problem, nil
}

// ResolveProblem marks an open problem as repaired. Returns sql.ErrNoRows when
// the problem is missing or no longer open.
func (r *LaptopRepository) ResolveProblem(ctx context.Context, problem *models.Problem) error {
	const query = `UPDATE laptop_problems SET status = :status, repair_details = :repair_details,
	resolver_name = :resolver_name, date_resolved = :date_resolved
	WHERE id = :id AND laptop_id = :laptop_id AND status = 'open'`
	result, err := r.db.NamedExecContext(ctx, query, problem)
	if err != nil {
		return fmt.Errorf("resolve laptop problem: %w", err)
	}
	return expectAffected(result, "resolve laptop problem")
}

// ListOpenProblems returns the repair queue across all laptops, newest report first.
func (r *LaptopRepository) ListOpenProblems(ctx context.Context) ([]models.OpenProblem, error) {
	const query = `SELECT p.id, p.laptop_id, p.description, p.reporter_name, p.reporter_email, p.resolver_name,
       p.status, p.repair_details, p.date_reported, p.date_resolved, l.computer_name
	FROM laptop_problems p JOIN laptops l ON l.id = p.laptop_id
	WHERE p.status = 'open' ORDER BY p.date_reported DESC`
	var problems []models.OpenProblem
	if err := r.db.SelectContext(ctx, &problems, query); err != nil {
		return nil, fmt.Errorf("list open problems: %w", err)
	}
	return problems, nil
}

func expectAffected(result sql.Result, action string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check %s rows: %w", action, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func nonNilProblems(p []models.Problem) []models.Problem {
	if p == nil {
		return []models.Problem{}
	}
	return p
}

func nonNilRemarks(r []models.Remark) []models.Remark {
	if r == nil {
		return []models.Remark{}
	}
	return r
}
