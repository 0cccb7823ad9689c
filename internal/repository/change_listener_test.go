package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/laptop-lending-api/internal/models"
)

func TestChangeListenerDispatchesToTableSubscribers(t *testing.T) {
	l := NewChangeListener("", ChangeListenerConfig{}, nil)
	fixed := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return fixed }

	var laptops, advice []models.ChangeEvent
	l.Subscribe(models.TableLaptops, func(e models.ChangeEvent) { laptops = append(laptops, e) })
	l.Subscribe(models.TableAdviceRequests, func(e models.ChangeEvent) { advice = append(advice, e) })

	require.NoError(t, l.dispatch(`{"table":"laptops","op":"update","id":"l1"}`))

	require.Len(t, laptops, 1)
	assert.Empty(t, advice)
	assert.Equal(t, models.ChangeEvent{Table: "laptops", Operation: "UPDATE", RecordID: "l1", ReceivedAt: fixed}, laptops[0])
}

func TestChangeListenerUnsubscribe(t *testing.T) {
	l := NewChangeListener("", ChangeListenerConfig{}, nil)

	calls := 0
	sub := l.Subscribe(models.TableReservations, func(models.ChangeEvent) { calls++ })
	require.NoError(t, l.dispatch(`{"table":"reservations","op":"INSERT"}`))

	sub.Unsubscribe()
	sub.Unsubscribe()
	require.NoError(t, l.dispatch(`{"table":"reservations","op":"INSERT"}`))

	assert.Equal(t, 1, calls)
	assert.Empty(t, l.handlers)
}

func TestChangeListenerRejectsBadPayloads(t *testing.T) {
	l := NewChangeListener("", ChangeListenerConfig{}, nil)

	require.Error(t, l.dispatch("not json"))
	require.Error(t, l.dispatch(`{"op":"INSERT"}`))
}

func TestChangeListenerBroadcastReachesEveryTable(t *testing.T) {
	l := NewChangeListener("", ChangeListenerConfig{}, nil)

	seen := map[string]string{}
	for _, table := range models.WatchedTables() {
		table := table
		l.Subscribe(table, func(e models.ChangeEvent) { seen[table] = e.Operation })
	}
	l.broadcast(OperationReconnect)

	assert.Len(t, seen, len(models.WatchedTables()))
	for _, op := range seen {
		assert.Equal(t, OperationReconnect, op)
	}
}

func TestNewChangeListenerDefaults(t *testing.T) {
	l := NewChangeListener("dsn", ChangeListenerConfig{MinReconnect: time.Minute, MaxReconnect: time.Second}, nil)

	assert.Equal(t, "table_changes", l.cfg.Channel)
	assert.Equal(t, time.Minute, l.cfg.MaxReconnect)
}
