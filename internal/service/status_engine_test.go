package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/noah-isme/laptop-lending-api/internal/models"
	appErrors "github.com/noah-isme/laptop-lending-api/pkg/errors"
)

var engineNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func window(start, end time.Time) models.AssignmentWindow {
	return models.AssignmentWindow{Start: start, End: end}
}

func TestDeriveLaptopStatus(t *testing.T) {
	hour := time.Hour
	cases := []struct {
		name    string
		windows []models.AssignmentWindow
		want    models.LaptopStatus
	}{
		{"no windows", nil, models.LaptopStatusAvailable},
		{"future window", []models.AssignmentWindow{window(engineNow.Add(hour), engineNow.Add(2*hour))}, models.LaptopStatusReserved},
		{"past window", []models.AssignmentWindow{window(engineNow.Add(-2*hour), engineNow.Add(-hour))}, models.LaptopStatusToCheck},
		{"current window", []models.AssignmentWindow{window(engineNow.Add(-hour), engineNow.Add(hour))}, models.LaptopStatusInUse},
		{"start bound inclusive", []models.AssignmentWindow{window(engineNow, engineNow.Add(hour))}, models.LaptopStatusInUse},
		{"end bound inclusive", []models.AssignmentWindow{window(engineNow.Add(-hour), engineNow)}, models.LaptopStatusInUse},
		{"past beats future", []models.AssignmentWindow{
			window(engineNow.Add(hour), engineNow.Add(2*hour)),
			window(engineNow.Add(-2*hour), engineNow.Add(-hour)),
		}, models.LaptopStatusToCheck},
		{"current beats everything", []models.AssignmentWindow{
			window(engineNow.Add(-2*hour), engineNow.Add(-hour)),
			window(engineNow.Add(-hour), engineNow.Add(hour)),
			window(engineNow.Add(hour), engineNow.Add(2*hour)),
		}, models.LaptopStatusInUse},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DeriveLaptopStatus(engineNow, tc.windows))
		})
	}
}

func TestDeriveLaptopStatusIgnoresWindowOrder(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 6).Draw(t, "windows")
		windows := make([]models.AssignmentWindow, n)
		for i := range windows {
			startOffset := rapid.IntRange(-72, 72).Draw(t, "start")
			length := rapid.IntRange(0, 48).Draw(t, "length")
			start := engineNow.Add(time.Duration(startOffset) * time.Hour)
			windows[i] = window(start, start.Add(time.Duration(length)*time.Hour))
		}
		shuffled := rapid.Permutation(windows).Draw(t, "shuffled")
		require.Equal(t, DeriveLaptopStatus(engineNow, windows), DeriveLaptopStatus(engineNow, shuffled))
	})
}

func seedEngineDB() *memDB {
	db := newMemDB()
	db.addLaptop("l-current", models.LaptopStatusAvailable)
	db.addLaptop("l-future", models.LaptopStatusAvailable)
	db.addLaptop("l-past", models.LaptopStatusReserved)
	db.addLaptop("l-idle", models.LaptopStatusInUse)
	db.addLaptop("l-faulty", models.LaptopStatusFaulty)
	db.addLaptop("l-review", models.LaptopStatusInReview)

	db.addReservation(models.Reservation{ID: "r-current", Status: models.ReservationStatusApproved, Quantity: 1,
		StartDate: "2024-05-10", StartTime: "09:00", EndDate: "2024-05-10", EndTime: "17:00",
		AssignedLaptops: []string{"l-current"}})
	db.addReservation(models.Reservation{ID: "r-future", Status: models.ReservationStatusApproved, Quantity: 2,
		StartDate: "2024-05-11", StartTime: "09:00", EndDate: "2024-05-12", EndTime: "17:00",
		AssignedLaptops: []string{"l-future", "l-faulty"}})
	db.addReservation(models.Reservation{ID: "r-past", Status: models.ReservationStatusApproved, Quantity: 1,
		StartDate: "2024-05-01", StartTime: "09:00", EndDate: "2024-05-02", EndTime: "17:00",
		AssignedLaptops: []string{"l-past"}})
	db.addReservation(models.Reservation{ID: "r-pending", Status: models.ReservationStatusPending, Quantity: 1,
		StartDate: "2024-05-10", StartTime: "09:00", EndDate: "2024-05-10", EndTime: "17:00",
		AssignedLaptops: []string{"l-idle"}})
	return db
}

func newTestEngine(db *memDB, opts ...StatusEngineOption) *StatusEngine {
	base := []StatusEngineOption{
		WithStatusEngineLocation(time.UTC),
		WithStatusEngineClock(fixedClock(engineNow)),
	}
	return NewStatusEngine(memLaptops{db}, memReservations{db}, zap.NewNop(), append(base, opts...)...)
}

func TestStatusEngineRecompute(t *testing.T) {
	db := seedEngineDB()
	refresher := &recordingRefresher{}
	engine := newTestEngine(db, WithStatusEngineRefresher(refresher), WithStatusEngineMetrics(NewMetricsService()))

	result, err := engine.Recompute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, result.Checked)
	assert.Equal(t, 2, result.Held)
	assert.Equal(t, 4, result.Updated)
	assert.Equal(t, models.LaptopStatusInUse, db.laptopStatus("l-current"))
	assert.Equal(t, models.LaptopStatusReserved, db.laptopStatus("l-future"))
	assert.Equal(t, models.LaptopStatusToCheck, db.laptopStatus("l-past"))
	assert.Equal(t, models.LaptopStatusAvailable, db.laptopStatus("l-idle"), "pending reservations do not hold laptops")
	assert.Equal(t, models.LaptopStatusFaulty, db.laptopStatus("l-faulty"))
	assert.Equal(t, models.LaptopStatusInReview, db.laptopStatus("l-review"))
	assert.Equal(t, []string{models.TableLaptops}, refresher.seen())

	again, err := engine.Recompute(context.Background())
	require.NoError(t, err)
	assert.Zero(t, again.Updated)
	assert.Len(t, refresher.seen(), 1, "no refresh without updates")
}

func TestStatusEngineRecomputeIsIdempotent(t *testing.T) {
	statuses := []models.LaptopStatus{
		models.LaptopStatusAvailable, models.LaptopStatusReserved, models.LaptopStatusInUse,
		models.LaptopStatusToCheck, models.LaptopStatusFaulty, models.LaptopStatusInReview,
	}
	rapid.Check(t, func(t *rapid.T) {
		db := newMemDB()
		laptopCount := rapid.IntRange(1, 5).Draw(t, "laptops")
		ids := make([]string, laptopCount)
		for i := range ids {
			ids[i] = string(rune('a' + i))
			db.addLaptop(ids[i], rapid.SampledFrom(statuses).Draw(t, "status"))
		}
		resCount := rapid.IntRange(0, 4).Draw(t, "reservations")
		for i := 0; i < resCount; i++ {
			startDay := rapid.IntRange(1, 20).Draw(t, "startDay")
			length := rapid.IntRange(0, 3).Draw(t, "days")
			start := time.Date(2024, 5, startDay, 9, 0, 0, 0, time.UTC)
			end := start.AddDate(0, 0, length).Add(8 * time.Hour)
			laptop := rapid.SampledFrom(ids).Draw(t, "laptop")
			db.addReservation(models.Reservation{
				ID:              string(rune('A' + i)),
				Status:          rapid.SampledFrom([]models.ReservationStatus{models.ReservationStatusApproved, models.ReservationStatusPending}).Draw(t, "resStatus"),
				Quantity:        1,
				StartDate:       start.Format("2006-01-02"),
				StartTime:       "09:00",
				EndDate:         end.Format("2006-01-02"),
				EndTime:         "17:00",
				AssignedLaptops: []string{laptop},
			})
		}

		held := map[string]models.LaptopStatus{}
		for _, id := range ids {
			if s := db.laptopStatus(id); s.Held() {
				held[id] = s
			}
		}

		engine := newTestEngine(db)
		_, err := engine.Recompute(context.Background())
		require.NoError(t, err)
		second, err := engine.Recompute(context.Background())
		require.NoError(t, err)
		require.Zero(t, second.Updated)

		for id, status := range held {
			require.Equal(t, status, db.laptopStatus(id))
		}
	})
}

func TestStatusEngineSkipsUnreadableWindows(t *testing.T) {
	db := newMemDB()
	db.addLaptop("l1", models.LaptopStatusInUse)
	db.addReservation(models.Reservation{ID: "r1", Status: models.ReservationStatusApproved, Quantity: 1,
		StartDate: "10/05/2024", StartTime: "9am", EndDate: "2024-05-10", EndTime: "17:00",
		AssignedLaptops: []string{"l1"}})

	result, err := newTestEngine(db).Recompute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, models.LaptopStatusAvailable, db.laptopStatus("l1"))
}

func TestStatusEngineCollectsWriteFailures(t *testing.T) {
	db := seedEngineDB()
	db.statusErrFor["l-future"] = errors.New("connection reset")

	result, err := newTestEngine(db).Recompute(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrBackend)
	assert.Equal(t, 3, result.Updated)
	assert.Equal(t, models.LaptopStatusToCheck, db.laptopStatus("l-past"), "other laptops are still written")
}

func TestStatusEngineLoadFailure(t *testing.T) {
	db := seedEngineDB()
	db.listErr = errors.New("timeout")

	_, err := newTestEngine(db).Recompute(context.Background())
	assert.ErrorIs(t, err, appErrors.ErrBackend)
	assert.Zero(t, db.statusWrites)
}
