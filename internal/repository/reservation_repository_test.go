package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/laptop-lending-api/internal/models"
)

var reservationCols = []string{"id", "start_date", "start_time", "end_date", "end_time", "quantity", "description", "status",
	"processed_date", "reason", "contact_name", "contact_email", "contact_phone", "created_at"}

func TestReservationRepositoryGetByIDWithAssignments(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewReservationRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, start_date::text AS start_date")).
		WithArgs("res-1").
		WillReturnRows(sqlmock.NewRows(reservationCols).
			AddRow("res-1", "2024-05-01", "09:00:00", "2024-05-01", "17:00:00", 2, "workshop", "approved",
				time.Now(), nil, "Ann", "ann@example.com", "0612345678", time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT laptop_id FROM laptop_assignments")).
		WithArgs("res-1").
		WillReturnRows(sqlmock.NewRows([]string{"laptop_id"}).AddRow("l1").AddRow("l2"))

	res, err := repo.GetByID(context.Background(), "res-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"l1", "l2"}, res.AssignedLaptops)
	assert.Equal(t, "09:00:00", res.StartTime)
	assert.True(t, res.HasLaptop("l2"))

	window, err := res.Window(time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), window.Start)
	assert.Equal(t, time.Date(2024, 5, 1, 17, 0, 0, 0, time.UTC), window.End)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepositoryListGroupsAssignments(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewReservationRepository(db)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM reservations ORDER BY created_at DESC")).
		WillReturnRows(sqlmock.NewRows(reservationCols).
			AddRow("res-1", "2024-05-01", "09:00:00", "2024-05-01", "17:00:00", 2, "", "approved", nil, nil, "Ann", "a@x.io", "1", now).
			AddRow("res-2", "2024-05-02", "09:00:00", "2024-05-02", "17:00:00", 1, "", "pending", nil, nil, "Bob", "b@x.io", "2", now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, reservation_id, laptop_id, created_at FROM laptop_assignments")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "reservation_id", "laptop_id", "created_at"}).
			AddRow("a1", "res-1", "l1", now))

	list, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, []string{"l1"}, list[0].AssignedLaptops)
	assert.Equal(t, []string{}, list[1].AssignedLaptops)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepositoryUpdateStatusOnlyPending(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewReservationRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE reservations SET status")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), UpdateReservationStatusParams{
		ID:            "res-1",
		Status:        models.ReservationStatusApproved,
		ProcessedDate: time.Now(),
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func expectAssignmentLocks(mock sqlmock.Sqlmock, status models.ReservationStatus, quantity int) {
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT quantity, status FROM reservations WHERE id = $1 FOR UPDATE")).
		WithArgs("res-1").
		WillReturnRows(sqlmock.NewRows([]string{"quantity", "status"}).AddRow(quantity, string(status)))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM laptops WHERE id = $1 FOR UPDATE")).
		WithArgs("l1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("l1"))
}

func TestReservationRepositoryAssignmentLifecycle(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewReservationRepository(db)
	expectAssignmentLocks(mock, models.ReservationStatusApproved, 2)
	mock.ExpectQuery(regexp.QuoteMeta("(SELECT count(*) FROM laptop_assignments WHERE reservation_id = $1) AS assigned")).
		WithArgs("res-1", "l1").
		WillReturnRows(sqlmock.NewRows([]string{"assigned", "present", "holder"}).AddRow(1, false, nil))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO laptop_assignments")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM laptop_assignments")).
		WithArgs("res-1", "l1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM laptop_assignments")).
		WithArgs("res-1", "l1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assignment := &models.Assignment{ReservationID: "res-1", LaptopID: "l1"}
	require.NoError(t, repo.InsertAssignment(context.Background(), assignment))
	assert.NotEmpty(t, assignment.ID)

	require.NoError(t, repo.DeleteAssignment(context.Background(), "res-1", "l1"))
	require.ErrorIs(t, repo.DeleteAssignment(context.Background(), "res-1", "l1"), sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepositoryInsertAssignmentGuards(t *testing.T) {
	tests := []struct {
		name     string
		assigned int
		present  bool
		holder   interface{}
		want     error
	}{
		{name: "already assigned", assigned: 1, present: true, want: ErrAlreadyAssigned},
		{name: "quantity reached", assigned: 2, want: ErrReservationFull},
		{name: "held by another approved reservation", assigned: 0, holder: "res-2", want: ErrLaptopHeld},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			db, mock, cleanup := newRepoMock(t)
			defer cleanup()

			expectAssignmentLocks(mock, models.ReservationStatusApproved, 2)
			mock.ExpectQuery(regexp.QuoteMeta("AS assigned")).
				WithArgs("res-1", "l1").
				WillReturnRows(sqlmock.NewRows([]string{"assigned", "present", "holder"}).AddRow(tc.assigned, tc.present, tc.holder))
			mock.ExpectRollback()

			err := NewReservationRepository(db).InsertAssignment(context.Background(), &models.Assignment{ReservationID: "res-1", LaptopID: "l1"})
			require.ErrorIs(t, err, tc.want)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestReservationRepositoryInsertAssignmentRequiresApproval(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	expectAssignmentLocks(mock, models.ReservationStatusPending, 1)
	mock.ExpectRollback()

	err := NewReservationRepository(db).InsertAssignment(context.Background(), &models.Assignment{ReservationID: "res-1", LaptopID: "l1"})
	require.ErrorIs(t, err, ErrReservationNotApproved)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepositoryInsertAssignmentMissingReservation(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT quantity, status FROM reservations")).
		WithArgs("res-9").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := NewReservationRepository(db).InsertAssignment(context.Background(), &models.Assignment{ReservationID: "res-9", LaptopID: "l1"})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepositoryApprovedWindows(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewReservationRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM laptop_assignments a JOIN reservations r")).
		WillReturnRows(sqlmock.NewRows([]string{"laptop_id", "reservation_id", "start_date", "start_time", "end_date", "end_time"}).
			AddRow("l1", "res-1", "2024-05-01", "09:00", "2024-05-03", "17:30:00"))

	windows, err := repo.ApprovedWindows(context.Background())
	require.NoError(t, err)
	require.Len(t, windows, 1)

	w, err := windows[0].Window(time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 3, 17, 30, 0, 0, time.UTC), w.End)
	require.NoError(t, mock.ExpectationsWereMet())
}
