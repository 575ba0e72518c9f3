package consumer

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/TeioDM/Site-de-Registro-de-Atividades/internal/events"
)

// EventLogHandler writes consumed events into Postgres for auditing.
type EventLogHandler struct {
	pool *pgxpool.Pool
}

// NewEventLogHandler constructs a handler backed by the provided pool.
func NewEventLogHandler(pool *pgxpool.Pool) *EventLogHandler {
	return &EventLogHandler{pool: pool}
}

// Handle stores the event in activity_event_log. Redelivered records are ignored.
func (h *EventLogHandler) Handle(ctx context.Context, msg Message) error {
	_, err := h.pool.Exec(ctx,
		`INSERT INTO activity_event_log (event_type, user_id, schema_id, schema_subject, topic, partition, record_offset, payload, received_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
         ON CONFLICT (topic, partition, record_offset) DO NOTHING`,
		msg.EventType,
		msg.UserID,
		msg.SchemaID,
		msg.SchemaSubject,
		msg.Topic,
		msg.Partition,
		msg.Offset,
		[]byte(msg.Payload),
		msg.Timestamp,
	)
	return err
}

// Invalidator drops a cached snapshot.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// RefreshHandler invalidates the shared leaderboard snapshot whenever an event
// changes points or display names, so every API replica sees the write.
type RefreshHandler struct {
	cache  Invalidator
	logger *zap.Logger
}

// NewRefreshHandler constructs a RefreshHandler.
func NewRefreshHandler(cache Invalidator, logger *zap.Logger) *RefreshHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RefreshHandler{cache: cache, logger: logger}
}

// Handle implements Handler.
func (h *RefreshHandler) Handle(ctx context.Context, msg Message) error {
	switch msg.EventType {
	case events.TypeActivityLogRecorded, events.TypeProfileCreated, events.TypeProfileUpdated:
	default:
		return nil
	}
	if err := h.cache.Invalidate(ctx); err != nil {
		return err
	}
	recordRefresh(msg)
	h.logger.Debug("leaderboard_refreshed", zap.String("event_type", msg.EventType), zap.String("user_id", msg.UserID))
	return nil
}

// Chain runs every handler in order and joins their errors.
type Chain []Handler

// Handle implements Handler.
func (c Chain) Handle(ctx context.Context, msg Message) error {
	var errs error
	for _, h := range c {
		if h == nil {
			continue
		}
		errs = errors.Join(errs, h.Handle(ctx, msg))
	}
	return errs
}
