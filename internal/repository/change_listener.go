package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/laptop-lending-api/internal/models"
)

// OperationReconnect is delivered to every subscriber after the listener
// reconnects, since notifications sent while disconnected are lost.
const OperationReconnect = "RECONNECT"

const listenerPingInterval = 90 * time.Second

// ChangeHandler receives change events for a subscribed table.
type ChangeHandler func(models.ChangeEvent)

// ChangeListenerConfig configures the notification connection.
type ChangeListenerConfig struct {
	Channel      string
	MinReconnect time.Duration
	MaxReconnect time.Duration
}

type changePayload struct {
	Table string `json:"table"`
	Op    string `json:"op"`
	ID    string `json:"id"`
}

// ChangeListener turns PostgreSQL NOTIFY payloads into per-table change events.
type ChangeListener struct {
	dsn    string
	cfg    ChangeListenerConfig
	logger *zap.Logger
	now    func() time.Time

	mu       sync.RWMutex
	handlers map[string]map[uint64]ChangeHandler
	nextID   uint64
}

// NewChangeListener constructs a listener for the given connection string.
func NewChangeListener(dsn string, cfg ChangeListenerConfig, logger *zap.Logger) *ChangeListener {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Channel == "" {
		cfg.Channel = "table_changes"
	}
	if cfg.MinReconnect <= 0 {
		cfg.MinReconnect = 10 * time.Second
	}
	if cfg.MaxReconnect < cfg.MinReconnect {
		cfg.MaxReconnect = cfg.MinReconnect
	}
	return &ChangeListener{
		dsn:      dsn,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		handlers: make(map[string]map[uint64]ChangeHandler),
	}
}

// Subscription is a registered change handler.
type Subscription struct {
	listener *ChangeListener
	table    string
	id       uint64
	once     sync.Once
}

// Unsubscribe removes the handler. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.listener.mu.Lock()
		defer s.listener.mu.Unlock()
		if handlers, ok := s.listener.handlers[s.table]; ok {
			delete(handlers, s.id)
			if len(handlers) == 0 {
				delete(s.listener.handlers, s.table)
			}
		}
	})
}

// Subscribe registers fn for changes on table.
func (l *ChangeListener) Subscribe(table string, fn ChangeHandler) *Subscription {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	if l.handlers[table] == nil {
		l.handlers[table] = make(map[uint64]ChangeHandler)
	}
	l.handlers[table][l.nextID] = fn
	return &Subscription{listener: l, table: table, id: l.nextID}
}

// Run listens on the configured channel until ctx is cancelled.
func (l *ChangeListener) Run(ctx context.Context) error {
	listener := pq.NewListener(l.dsn, l.cfg.MinReconnect, l.cfg.MaxReconnect, l.onListenerEvent)
	defer listener.Close()

	if err := listener.Listen(l.cfg.Channel); err != nil {
		return fmt.Errorf("listen %s: %w", l.cfg.Channel, err)
	}
	l.logger.Info("change listener started", zap.String("channel", l.cfg.Channel))

	ticker := time.NewTicker(listenerPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("change listener stopped", zap.String("channel", l.cfg.Channel))
			return nil
		case n := <-listener.Notify:
			if n == nil {
				l.broadcast(OperationReconnect)
				continue
			}
			if err := l.dispatch(n.Extra); err != nil {
				l.logger.Warn("discarding change notification", zap.String("payload", n.Extra), zap.Error(err))
			}
		case <-ticker.C:
			if err := listener.Ping(); err != nil {
				l.logger.Warn("change listener ping failed", zap.Error(err))
			}
		}
	}
}

func (l *ChangeListener) onListenerEvent(event pq.ListenerEventType, err error) {
	switch event {
	case pq.ListenerEventDisconnected:
		l.logger.Warn("change listener disconnected", zap.Error(err))
	case pq.ListenerEventReconnected:
		l.logger.Info("change listener reconnected")
	case pq.ListenerEventConnectionAttemptFailed:
		l.logger.Warn("change listener connection attempt failed", zap.Error(err))
	}
}

func (l *ChangeListener) dispatch(raw string) error {
	var payload changePayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return fmt.Errorf("decode change payload: %w", err)
	}
	if payload.Table == "" {
		return fmt.Errorf("change payload without table")
	}
	l.Publish(models.ChangeEvent{
		Table:      payload.Table,
		Operation:  strings.ToUpper(payload.Op),
		RecordID:   payload.ID,
		ReceivedAt: l.now().UTC(),
	})
	return nil
}

func (l *ChangeListener) broadcast(op string) {
	l.mu.RLock()
	tables := make([]string, 0, len(l.handlers))
	for table := range l.handlers {
		tables = append(tables, table)
	}
	l.mu.RUnlock()

	now := l.now().UTC()
	for _, table := range tables {
		l.Publish(models.ChangeEvent{Table: table, Operation: op, ReceivedAt: now})
	}
}

// Publish delivers an event to local subscribers without a database round trip.
func (l *ChangeListener) Publish(event models.ChangeEvent) {
	l.mu.RLock()
	handlers := make([]ChangeHandler, 0, len(l.handlers[event.Table]))
	for _, fn := range l.handlers[event.Table] {
		handlers = append(handlers, fn)
	}
	l.mu.RUnlock()

	for _, fn := range handlers {
		fn(event)
	}
}
