package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/laptop-lending-api/internal/models"
)

// Dates and times are selected as text so they keep their wall-clock form.
const reservationColumns = `id, start_date::text AS start_date, start_time::text AS start_time,
       end_date::text AS end_date, end_time::text AS end_time, quantity, description, status,
       processed_date, reason, contact_name, contact_email, contact_phone, created_at`

// Guard failures reported by InsertAssignment.
var (
	ErrReservationNotApproved = errors.New("reservation is not approved")
	ErrAlreadyAssigned        = errors.New("laptop already assigned to reservation")
	ErrReservationFull        = errors.New("reservation quantity reached")
	ErrLaptopHeld             = errors.New("laptop held by another approved reservation")
)

// ReservationRepository persists reservations and their laptop assignments.
type ReservationRepository struct {
	db *sqlx.DB
}

// NewReservationRepository constructs the repository.
func NewReservationRepository(db *sqlx.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

// Create inserts a new reservation row.
func (r *ReservationRepository) Create(ctx context.Context, reservation *models.Reservation) error {
	if reservation.ID == "" {
		reservation.ID = uuid.NewString()
	}
	if reservation.Status == "" {
		reservation.Status = models.ReservationStatusPending
	}
	if reservation.CreatedAt.IsZero() {
		reservation.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO reservations
	(id, start_date, start_time, end_date, end_time, quantity, description, status, processed_date, reason,
	 contact_name, contact_email, contact_phone, created_at)
	VALUES (:id, :start_date, :start_time, :end_date, :end_time, :quantity, :description, :status, :processed_date, :reason,
	 :contact_name, :contact_email, :contact_phone, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, reservation); err != nil {
		return fmt.Errorf("create reservation: %w", err)
	}
	if reservation.AssignedLaptops == nil {
		reservation.AssignedLaptops = []string{}
	}
	return nil
}

// List returns every reservation, newest first, with assigned laptop ids.
func (r *ReservationRepository) List(ctx context.Context) ([]models.Reservation, error) {
	var reservations []models.Reservation
	if err := r.db.SelectContext(ctx, &reservations, `SELECT `+reservationColumns+` FROM reservations ORDER BY created_at DESC`); err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}

	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, `SELECT id, reservation_id, laptop_id, created_at FROM laptop_assignments ORDER BY created_at ASC`); err != nil {
		return nil, fmt.Errorf("list laptop assignments: %w", err)
	}
	byReservation := make(map[string][]string, len(reservations))
	for _, a := range assignments {
		byReservation[a.ReservationID] = append(byReservation[a.ReservationID], a.LaptopID)
	}
	for i := range reservations {
		reservations[i].AssignedLaptops = nonNilIDs(byReservation[reservations[i].ID])
	}
	return reservations, nil
}

// GetByID fetches a reservation with its assigned laptop ids.
func (r *ReservationRepository) GetByID(ctx context.Context, id string) (*models.Reservation, error) {
	var reservation models.Reservation
	if err := r.db.GetContext(ctx, &reservation, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	assigned, err := r.AssignedLaptops(ctx, id)
	if err != nil {
		return nil, err
	}
	reservation.AssignedLaptops = assigned
	return &reservation, nil
}

// AssignedLaptops returns the laptop ids attached to a reservation in assignment order.
func (r *ReservationRepository) AssignedLaptops(ctx context.Context, reservationID string) ([]string, error) {
	var ids []string
	const query = `SELECT laptop_id FROM laptop_assignments WHERE reservation_id = $1 ORDER BY created_at ASC`
	if err := r.db.SelectContext(ctx, &ids, query, reservationID); err != nil {
		return nil, fmt.Errorf("list assigned laptops: %w", err)
	}
	return nonNilIDs(ids), nil
}

// UpdateReservationStatusParams groups the columns written by a review decision.
type UpdateReservationStatusParams struct {
	ID            string
	Status        models.ReservationStatus
	ProcessedDate time.Time
	Reason        *string
}

// UpdateStatus persists a review decision. Only pending reservations are
// updated; sql.ErrNoRows signals a missing or already processed row.
func (r *ReservationRepository) UpdateStatus(ctx context.Context, params UpdateReservationStatusParams) error {
	query := fmt.Sprintf(`UPDATE reservations SET status = :status, processed_date = :processed_date, reason = :reason
	WHERE id = :id AND status = '%s'`, models.ReservationStatusPending)
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":             params.ID,
		"status":         params.Status,
		"processed_date": params.ProcessedDate,
		"reason":         params.Reason,
	})
	if err != nil {
		return fmt.Errorf("update reservation status: %w", err)
	}
	return expectAffected(result, "update reservation status")
}

// UpdateDescription edits the free-text description.
func (r *ReservationRepository) UpdateDescription(ctx context.Context, id, description string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE reservations SET description = $2 WHERE id = $1`, id, description)
	if err != nil {
		return fmt.Errorf("update reservation description: %w", err)
	}
	return expectAffected(result, "update reservation description")
}

// InsertAssignment links a laptop to an approved reservation. The reservation
// and laptop rows stay locked while the quantity and holder guards are checked,
// so concurrent inserts cannot overfill a reservation or give one laptop to two
// approved reservations. Returns sql.ErrNoRows when either row is missing.
func (r *ReservationRepository) InsertAssignment(ctx context.Context, assignment *models.Assignment) (err error) {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin laptop assignment: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var reservation struct {
		Quantity int                      `db:"quantity"`
		Status   models.ReservationStatus `db:"status"`
	}
	const lockReservation = `SELECT quantity, status FROM reservations WHERE id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &reservation, lockReservation, assignment.ReservationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("lock reservation: %w", err)
	}
	var laptopID string
	if err = tx.GetContext(ctx, &laptopID, `SELECT id FROM laptops WHERE id = $1 FOR UPDATE`, assignment.LaptopID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("lock laptop: %w", err)
	}
	if reservation.Status != models.ReservationStatusApproved {
		return ErrReservationNotApproved
	}

	var state struct {
		Assigned int            `db:"assigned"`
		Present  bool           `db:"present"`
		Holder   sql.NullString `db:"holder"`
	}
	stateQuery := fmt.Sprintf(`SELECT
	(SELECT count(*) FROM laptop_assignments WHERE reservation_id = $1) AS assigned,
	EXISTS (SELECT 1 FROM laptop_assignments WHERE reservation_id = $1 AND laptop_id = $2) AS present,
	(SELECT a.reservation_id FROM laptop_assignments a JOIN reservations r ON r.id = a.reservation_id
	 WHERE a.laptop_id = $2 AND a.reservation_id <> $1 AND r.status = '%s' LIMIT 1) AS holder`, models.ReservationStatusApproved)
	if err = tx.GetContext(ctx, &state, stateQuery, assignment.ReservationID, assignment.LaptopID); err != nil {
		return fmt.Errorf("check laptop assignment: %w", err)
	}
	switch {
	case state.Present:
		return ErrAlreadyAssigned
	case state.Assigned >= reservation.Quantity:
		return fmt.Errorf("%w: %d of %d assigned", ErrReservationFull, state.Assigned, reservation.Quantity)
	case state.Holder.Valid:
		return fmt.Errorf("%w: %s", ErrLaptopHeld, state.Holder.String)
	}

	const insertQuery = `INSERT INTO laptop_assignments (id, reservation_id, laptop_id, created_at)
	VALUES (:id, :reservation_id, :laptop_id, :created_at)`
	if _, err = tx.NamedExecContext(ctx, insertQuery, assignment); err != nil {
		return fmt.Errorf("insert laptop assignment: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit laptop assignment: %w", err)
	}
	return nil
}

// DeleteAssignment removes the link between a reservation and a laptop.
// Returns sql.ErrNoRows when the pair was not assigned.
func (r *ReservationRepository) DeleteAssignment(ctx context.Context, reservationID, laptopID string) error {
	const query = `DELETE FROM laptop_assignments WHERE reservation_id = $1 AND laptop_id = $2`
	result, err := r.db.ExecContext(ctx, query, reservationID, laptopID)
	if err != nil {
		return fmt.Errorf("delete laptop assignment: %w", err)
	}
	return expectAffected(result, "delete laptop assignment")
}

// ApprovedWindows lists every assignment that belongs to an approved reservation.
func (r *ReservationRepository) ApprovedWindows(ctx context.Context) ([]models.ApprovedWindow, error) {
	query := fmt.Sprintf(`SELECT a.laptop_id, a.reservation_id, r.start_date::text AS start_date, r.start_time::text AS start_time,
       r.end_date::text AS end_date, r.end_time::text AS end_time
	FROM laptop_assignments a JOIN reservations r ON r.id = a.reservation_id
	WHERE r.status = '%s'`, models.ReservationStatusApproved)
	var windows []models.ApprovedWindow
	if err := r.db.SelectContext(ctx, &windows, query); err != nil {
		return nil, fmt.Errorf("list approved windows: %w", err)
	}
	return windows, nil
}

func nonNilIDs(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
