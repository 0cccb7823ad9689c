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

const adviceColumns = `id, type, description, requirements, additional_notes, status, created_at, processed_at,
       rejection_reason, reporter_name, reporter_email, reporter_phone, noted_by`

// AdviceRepository persists advice requests.
type AdviceRepository struct {
	db *sqlx.DB
}

// NewAdviceRepository constructs the repository.
func NewAdviceRepository(db *sqlx.DB) *AdviceRepository {
	return &AdviceRepository{db: db}
}

// Create inserts a new advice row.
func (r *AdviceRepository) Create(ctx context.Context, advice *models.Advice) error {
	if advice.ID == "" {
		advice.ID = uuid.NewString()
	}
	if advice.Status == "" {
		advice.Status = models.AdviceStatusPending
	}
	if advice.CreatedAt.IsZero() {
		advice.CreatedAt = time.Now().UTC()
	}
	if advice.Requirements == nil {
		advice.Requirements = []string{}
	}
	const query = `INSERT INTO advice_requests (` + adviceColumns + `)
	VALUES (:id, :type, :description, :requirements, :additional_notes, :status, :created_at, :processed_at,
	 :rejection_reason, :reporter_name, :reporter_email, :reporter_phone, :noted_by)`
	if _, err := r.db.NamedExecContext(ctx, query, advice); err != nil {
		return fmt.Errorf("create advice: %w", err)
	}
	return nil
}

// List returns every advice request, newest first.
func (r *AdviceRepository) List(ctx context.Context) ([]models.Advice, error) {
	var advice []models.Advice
	if err := r.db.SelectContext(ctx, &advice, `SELECT `+adviceColumns+` FROM advice_requests ORDER BY created_at DESC`); err != nil {
		return nil, fmt.Errorf("list advice: %w", err)
	}
	return advice, nil
}

// GetByID fetches an advice request by identifier.
func (r *AdviceRepository) GetByID(ctx context.Context, id string) (*models.Advice, error) {
	var advice models.Advice
	if err := r.db.GetContext(ctx, &advice, `SELECT `+adviceColumns+` FROM advice_requests WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get advice: %w", err)
	}
	return &advice, nil
}

// UpdateAdviceStatusParams groups the columns written by a review decision.
type UpdateAdviceStatusParams struct {
	ID              string
	Status          models.AdviceStatus
	ProcessedAt     time.Time
	RejectionReason *string
}

// UpdateStatus persists a review decision on a pending advice request.
// sql.ErrNoRows signals a missing or already processed row.
func (r *AdviceRepository) UpdateStatus(ctx context.Context, params UpdateAdviceStatusParams) error {
	query := fmt.Sprintf(`UPDATE advice_requests SET status = :status, processed_at = :processed_at,
	rejection_reason = :rejection_reason WHERE id = :id AND status = '%s'`, models.AdviceStatusPending)
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":               params.ID,
		"status":           params.Status,
		"processed_at":     params.ProcessedAt,
		"rejection_reason": params.RejectionReason,
	})
	if err != nil {
		return fmt.Errorf("update advice status: %w", err)
	}
	return expectAffected(result, "update advice status")
}
