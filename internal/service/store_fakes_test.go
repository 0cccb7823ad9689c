package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/noah-isme/laptop-lending-api/internal/models"
	"github.com/noah-isme/laptop-lending-api/internal/repository"
)

// memDB backs the in-memory stores used by service tests. Reads return copies.
type memDB struct {
	mu           sync.Mutex
	seq          int
	laptops      []models.Laptop
	reservations []models.Reservation
	assignments  []models.Assignment
	advice       []models.Advice

	listErr         error
	statusErr       error
	statusErrFor    map[string]error
	statusWrites    int
	assignmentReads int

	// afterReservationRead runs after GetByID releases the lock.
	afterReservationRead func()
}

func newMemDB() *memDB {
	return &memDB{statusErrFor: map[string]error{}}
}

func (db *memDB) nextID(prefix string) string {
	db.seq++
	return fmt.Sprintf("%s-%d", prefix, db.seq)
}

func (db *memDB) addLaptop(id string, status models.LaptopStatus) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.laptops = append(db.laptops, models.Laptop{
		ID:           id,
		ComputerName: "PC " + id,
		Status:       status,
		Remarks:      []models.Remark{},
		Problems:     []models.Problem{},
	})
}

func (db *memDB) addReservation(r models.Reservation) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, laptopID := range r.AssignedLaptops {
		db.assignments = append(db.assignments, models.Assignment{ID: db.nextID("asg"), ReservationID: r.ID, LaptopID: laptopID})
	}
	r.AssignedLaptops = nil
	db.reservations = append(db.reservations, r)
}

func (db *memDB) laptopStatus(id string) models.LaptopStatus {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, l := range db.laptops {
		if l.ID == id {
			return l.Status
		}
	}
	return ""
}

func (db *memDB) assignedTo(reservationID string) []string {
	ids := []string{}
	for _, a := range db.assignments {
		if a.ReservationID == reservationID {
			ids = append(ids, a.LaptopID)
		}
	}
	return ids
}

func (db *memDB) withAssignments(r models.Reservation) models.Reservation {
	r.AssignedLaptops = db.assignedTo(r.ID)
	return r
}

func (db *memDB) laptopIndex(id string) int {
	for i, l := range db.laptops {
		if l.ID == id {
			return i
		}
	}
	return -1
}

func copyLaptop(l models.Laptop) models.Laptop {
	l.Remarks = append([]models.Remark{}, l.Remarks...)
	l.Problems = append([]models.Problem{}, l.Problems...)
	return l
}

type memLaptops struct{ db *memDB }

func (m memLaptops) Create(_ context.Context, laptop *models.Laptop) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if laptop.ID == "" {
		laptop.ID = m.db.nextID("laptop")
	}
	m.db.laptops = append(m.db.laptops, copyLaptop(*laptop))
	return nil
}

func (m memLaptops) List(context.Context) ([]models.Laptop, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if m.db.listErr != nil {
		return nil, m.db.listErr
	}
	out := make([]models.Laptop, 0, len(m.db.laptops))
	for _, l := range m.db.laptops {
		out = append(out, copyLaptop(l))
	}
	return out, nil
}

func (m memLaptops) GetByID(_ context.Context, id string) (*models.Laptop, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, l := range m.db.laptops {
		if l.ID == id {
			c := copyLaptop(l)
			return &c, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m memLaptops) find(id string) *models.Laptop {
	for i := range m.db.laptops {
		if m.db.laptops[i].ID == id {
			return &m.db.laptops[i]
		}
	}
	return nil
}

func (m memLaptops) Update(_ context.Context, laptop *models.Laptop) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	l := m.find(laptop.ID)
	if l == nil {
		return sql.ErrNoRows
	}
	l.ComputerName, l.CPU, l.RAM, l.GPU, l.SoftwareVersion = laptop.ComputerName, laptop.CPU, laptop.RAM, laptop.GPU, laptop.SoftwareVersion
	return nil
}

func (m memLaptops) UpdateStatus(_ context.Context, id string, status models.LaptopStatus) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if m.db.statusErr != nil {
		return m.db.statusErr
	}
	if err := m.db.statusErrFor[id]; err != nil {
		return err
	}
	l := m.find(id)
	if l == nil {
		return sql.ErrNoRows
	}
	l.Status = status
	m.db.statusWrites++
	return nil
}

func (m memLaptops) Delete(_ context.Context, id string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for i, l := range m.db.laptops {
		if l.ID == id {
			m.db.laptops = append(m.db.laptops[:i], m.db.laptops[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m memLaptops) AddRemark(_ context.Context, remark *models.Remark) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	l := m.find(remark.LaptopID)
	if l == nil {
		return sql.ErrNoRows
	}
	remark.ID = m.db.nextID("remark")
	l.Remarks = append(l.Remarks, *remark)
	return nil
}

func (m memLaptops) UpsertProblem(_ context.Context, problem *models.Problem) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	l := m.find(problem.LaptopID)
	if l == nil {
		return sql.ErrNoRows
	}
	if problem.ID == "" {
		problem.ID = m.db.nextID("problem")
	}
	for i := range l.Problems {
		if l.Problems[i].ID == problem.ID {
			l.Problems[i] = *problem
			return nil
		}
	}
	l.Problems = append([]models.Problem{*problem}, l.Problems...)
	return nil
}

func (m memLaptops) GetProblem(_ context.Context, laptopID, problemID string) (*models.Problem, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if l := m.find(laptopID); l != nil {
		for _, p := range l.Problems {
			if p.ID == problemID {
				c := p
				return &c, nil
			}
		}
	}
	return nil, sql.ErrNoRows
}

func (m memLaptops) ResolveProblem(_ context.Context, problem *models.Problem) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if l := m.find(problem.LaptopID); l != nil {
		for i := range l.Problems {
			if l.Problems[i].ID == problem.ID && l.Problems[i].Status == models.ProblemStatusOpen {
				l.Problems[i] = *problem
				return nil
			}
		}
	}
	return sql.ErrNoRows
}

func (m memLaptops) ListOpenProblems(context.Context) ([]models.OpenProblem, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []models.OpenProblem
	for _, l := range m.db.laptops {
		for _, p := range l.Problems {
			if p.Status == models.ProblemStatusOpen {
				out = append(out, models.OpenProblem{Problem: p, ComputerName: l.ComputerName})
			}
		}
	}
	return out, nil
}

type memReservations struct{ db *memDB }

func (m memReservations) Create(_ context.Context, r *models.Reservation) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if r.ID == "" {
		r.ID = m.db.nextID("reservation")
	}
	r.CreatedAt = time.Now().UTC()
	c := *r
	c.AssignedLaptops = nil
	m.db.reservations = append(m.db.reservations, c)
	return nil
}

func (m memReservations) List(context.Context) ([]models.Reservation, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if m.db.listErr != nil {
		return nil, m.db.listErr
	}
	out := make([]models.Reservation, 0, len(m.db.reservations))
	for _, r := range m.db.reservations {
		out = append(out, m.db.withAssignments(r))
	}
	return out, nil
}

func (m memReservations) GetByID(_ context.Context, id string) (*models.Reservation, error) {
	r, err := m.getByID(id)
	if err == nil && m.db.afterReservationRead != nil {
		m.db.afterReservationRead()
	}
	return r, err
}

func (m memReservations) getByID(id string) (*models.Reservation, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, r := range m.db.reservations {
		if r.ID == id {
			c := m.db.withAssignments(r)
			return &c, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m memReservations) UpdateStatus(_ context.Context, params repository.UpdateReservationStatusParams) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for i := range m.db.reservations {
		r := &m.db.reservations[i]
		if r.ID == params.ID && r.Status == models.ReservationStatusPending {
			processed := params.ProcessedDate
			r.Status = params.Status
			r.ProcessedDate = &processed
			r.Reason = params.Reason
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m memReservations) UpdateDescription(_ context.Context, id, description string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for i := range m.db.reservations {
		if m.db.reservations[i].ID == id {
			m.db.reservations[i].Description = description
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m memReservations) InsertAssignment(_ context.Context, a *models.Assignment) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var reservation *models.Reservation
	for i := range m.db.reservations {
		if m.db.reservations[i].ID == a.ReservationID {
			reservation = &m.db.reservations[i]
		}
	}
	if reservation == nil || m.db.laptopIndex(a.LaptopID) < 0 {
		return sql.ErrNoRows
	}
	if reservation.Status != models.ReservationStatusApproved {
		return repository.ErrReservationNotApproved
	}
	assigned := m.db.assignedTo(a.ReservationID)
	for _, id := range assigned {
		if id == a.LaptopID {
			return repository.ErrAlreadyAssigned
		}
	}
	if len(assigned) >= reservation.Quantity {
		return repository.ErrReservationFull
	}
	for _, existing := range m.db.assignments {
		if existing.LaptopID != a.LaptopID || existing.ReservationID == a.ReservationID {
			continue
		}
		for _, r := range m.db.reservations {
			if r.ID == existing.ReservationID && r.Status == models.ReservationStatusApproved {
				return fmt.Errorf("%w: %s", repository.ErrLaptopHeld, r.ID)
			}
		}
	}
	a.ID = m.db.nextID("asg")
	m.db.assignments = append(m.db.assignments, *a)
	return nil
}

func (m memReservations) DeleteAssignment(_ context.Context, reservationID, laptopID string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for i, a := range m.db.assignments {
		if a.ReservationID == reservationID && a.LaptopID == laptopID {
			m.db.assignments = append(m.db.assignments[:i], m.db.assignments[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m memReservations) ApprovedWindows(context.Context) ([]models.ApprovedWindow, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	m.db.assignmentReads++
	var out []models.ApprovedWindow
	for _, a := range m.db.assignments {
		for _, r := range m.db.reservations {
			if r.ID == a.ReservationID && r.Status == models.ReservationStatusApproved {
				out = append(out, models.ApprovedWindow{
					LaptopID:      a.LaptopID,
					ReservationID: r.ID,
					StartDate:     r.StartDate,
					StartTime:     r.StartTime,
					EndDate:       r.EndDate,
					EndTime:       r.EndTime,
				})
			}
		}
	}
	return out, nil
}

type memAdvice struct{ db *memDB }

func (m memAdvice) Create(_ context.Context, a *models.Advice) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if a.ID == "" {
		a.ID = m.db.nextID("advice")
	}
	m.db.advice = append(m.db.advice, *a)
	return nil
}

func (m memAdvice) List(context.Context) ([]models.Advice, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if m.db.listErr != nil {
		return nil, m.db.listErr
	}
	return append([]models.Advice{}, m.db.advice...), nil
}

func (m memAdvice) GetByID(_ context.Context, id string) (*models.Advice, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, a := range m.db.advice {
		if a.ID == id {
			c := a
			return &c, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m memAdvice) UpdateStatus(_ context.Context, params repository.UpdateAdviceStatusParams) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for i := range m.db.advice {
		a := &m.db.advice[i]
		if a.ID == params.ID && a.Status == models.AdviceStatusPending {
			processed := params.ProcessedAt
			a.Status = params.Status
			a.ProcessedAt = &processed
			a.RejectionReason = params.RejectionReason
			return nil
		}
	}
	return sql.ErrNoRows
}

// recordingRefresher counts snapshot refresh requests per table.
type recordingRefresher struct {
	mu     sync.Mutex
	tables []string
}

func (r *recordingRefresher) Refresh(_ context.Context, table string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tables = append(r.tables, table)
	return nil
}

func (r *recordingRefresher) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.tables...)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
