//go:build integration

package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/TeioDM/Site-de-Registro-de-Atividades/internal/events"
	"github.com/TeioDM/Site-de-Registro-de-Atividades/internal/testsupport"
)

func TestDispatcherPublishesMessages(t *testing.T) {
	ctx := context.Background()
	pool := testsupport.StartPostgres(t, ctx)

	require.NotZero(t, seedOutbox(t, ctx, pool, uuid.NewString(), events.TypeActivityLogRecorded))

	producer := &stubProducer{}
	dispatcher := NewDispatcher(pool, producer, &stubRegistry{id: 42}, zap.NewNop(), 10*time.Millisecond, 5)

	beforeDelivered := testutil.ToFloat64(deliveredCounter)
	beforeHistogram := histogramSampleCount(t)

	require.NoError(t, dispatcher.processBatch(ctx))

	require.Len(t, producer.writes, 1)
	require.Equal(t, "activity_log_events", producer.writes[0].topic)
	require.InDelta(t, beforeDelivered+1, testutil.ToFloat64(deliveredCounter), 0.0001)
	require.Greater(t, histogramSampleCount(t), beforeHistogram)

	var published int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NOT NULL`).Scan(&published))
	require.Equal(t, 1, published)

	require.NoError(t, dispatcher.processBatch(ctx))
	require.Len(t, producer.writes, 1, "published rows are not redelivered")
}

func TestDispatcherSkipsRowsClaimedByAnotherDispatcher(t *testing.T) {
	ctx := context.Background()
	pool := testsupport.StartPostgres(t, ctx)

	unclaimed := seedOutbox(t, ctx, pool, uuid.NewString(), events.TypeActivityLogRecorded)
	fresh := seedOutbox(t, ctx, pool, uuid.NewString(), events.TypeActivityLogRecorded)
	abandoned := seedOutbox(t, ctx, pool, uuid.NewString(), events.TypeActivityLogRecorded)

	_, err := pool.Exec(ctx, `UPDATE outbox SET claimed_at = NOW() WHERE event_id = $1`, fresh)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `UPDATE outbox SET claimed_at = NOW() - interval '1 hour' WHERE event_id = $1`, abandoned)
	require.NoError(t, err)

	producer := &stubProducer{}
	dispatcher := NewDispatcher(pool, producer, &stubRegistry{id: 42}, zap.NewNop(), 10*time.Millisecond, 10)
	require.NoError(t, dispatcher.processBatch(ctx))

	require.Len(t, producer.writes, 1)
	require.Len(t, producer.writes[0].messages, 2)

	rows, err := pool.Query(ctx, `SELECT event_id FROM outbox WHERE published_at IS NOT NULL ORDER BY event_id`)
	require.NoError(t, err)
	var published []int64
	for rows.Next() {
		var id int64
		require.NoError(t, rows.Scan(&id))
		published = append(published, id)
	}
	rows.Close()
	require.NoError(t, rows.Err())
	require.Equal(t, []int64{unclaimed, abandoned}, published)
}

func TestDispatcherRoutesFailuresToDLQAndManagerRequeues(t *testing.T) {
	ctx := context.Background()
	pool := testsupport.StartPostgres(t, ctx)

	userID := uuid.NewString()
	eventID := seedOutbox(t, ctx, pool, userID, events.TypeProfileCreated)

	producer := &stubProducer{err: errors.New("kafka write failed")}
	dispatcher := NewDispatcher(pool, producer, &stubRegistry{id: 7}, zap.NewNop(), 10*time.Millisecond, 5)

	beforeDLQ := testutil.ToFloat64(dlqCounter.WithLabelValues("profile_events"))
	require.NoError(t, dispatcher.processBatch(ctx))
	require.InDelta(t, beforeDLQ+1, testutil.ToFloat64(dlqCounter.WithLabelValues("profile_events")), 0.0001)

	var reason string
	require.NoError(t, pool.QueryRow(ctx, `SELECT reason FROM outbox_dlq WHERE event_id = $1`, eventID).Scan(&reason))
	require.Contains(t, reason, "kafka write failed (topic=profile_events)")

	manager := NewDLQManager(pool, zap.NewNop(), 3, time.Minute)
	processed, err := manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, processed)

	var requeued int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE user_id = $1 AND published_at IS NULL`, userID).Scan(&requeued))
	require.Equal(t, 1, requeued)

	var remaining int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq`).Scan(&remaining))
	require.Zero(t, remaining)
}

func TestDLQManagerQuarantinesExhaustedEntries(t *testing.T) {
	ctx := context.Background()
	pool := testsupport.StartPostgres(t, ctx)

	_, err := pool.Exec(ctx,
		`INSERT INTO outbox_dlq (user_id, event_id, event_type, topic, payload, reason, aggregate_type, aggregate_id, schema_subject, partition_key, retry_count, next_retry_at)
         VALUES ('u1', 1, 'activity_log.recorded', 'activity_log_events', '{}', 'boom', 'activity_log', 'a1', 'activity_log_events-value', 'u1', 3, NOW())`)
	require.NoError(t, err)

	manager := NewDLQManager(pool, zap.NewNop(), 3, time.Minute)
	processed, err := manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, processed)

	var quarantined int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq WHERE quarantined_at IS NOT NULL`).Scan(&quarantined))
	require.Equal(t, 1, quarantined)
}

func histogramSampleCount(t *testing.T) uint64 {
	t.Helper()
	metric := &dto.Metric{}
	require.NoError(t, batchDuration.Write(metric))
	return metric.GetHistogram().GetSampleCount()
}

func seedOutbox(t *testing.T, ctx context.Context, pool *pgxpool.Pool, userID, eventType string) int64 {
	t.Helper()
	route := events.Routes[eventType]

	var eventID int64
	err := pool.QueryRow(ctx,
		`INSERT INTO outbox (user_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
         RETURNING event_id`,
		userID, "profile", userID, eventType, route.Topic, route.SchemaSubject, userID, []byte(`{"user_id":"`+userID+`"}`),
	).Scan(&eventID)
	require.NoError(t, err)
	return eventID
}
