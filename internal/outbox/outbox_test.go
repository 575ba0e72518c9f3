package outbox

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/TeioDM/Site-de-Registro-de-Atividades/internal/events"
)

func TestEncodeWireFormat(t *testing.T) {
	frame := encodeWireFormat(258, []byte(`{"a":1}`))
	require.Equal(t, byte(0), frame[0])
	require.Equal(t, uint32(258), binary.BigEndian.Uint32(frame[1:5]))
	require.Equal(t, `{"a":1}`, string(frame[5:]))
}

func TestBackoffDelayDoublesAndCaps(t *testing.T) {
	m := NewDLQManager(nil, zap.NewNop(), 5, time.Minute)
	require.Equal(t, time.Minute, m.backoffDelay(1))
	require.Equal(t, 2*time.Minute, m.backoffDelay(2))
	require.Equal(t, 16*time.Minute, m.backoffDelay(5))
	require.Equal(t, time.Hour, m.backoffDelay(7))
	require.Equal(t, time.Hour, m.backoffDelay(64))
}

func TestDeliverGroupsByTopicAndSetsHeaders(t *testing.T) {
	producer := &stubProducer{}
	registry := &stubRegistry{id: 42}
	d := newTestDispatcher(producer, registry)

	messages := []Message{
		testMessage(1, events.TypeActivityLogRecorded, "user-1"),
		testMessage(2, events.TypeProfileUpdated, "user-2"),
		testMessage(3, events.TypeActivityLogRecorded, "user-2"),
	}
	require.NoError(t, d.deliver(context.Background(), messages))

	require.Len(t, producer.writes, 2)
	require.Equal(t, "activity_log_events", producer.writes[0].topic)
	require.Len(t, producer.writes[0].messages, 2)
	require.Equal(t, "profile_events", producer.writes[1].topic)

	record := producer.writes[0].messages[1]
	require.Equal(t, "user-2", string(record.Key))
	require.Equal(t, uint32(42), binary.BigEndian.Uint32(record.Value[1:5]))
	require.Equal(t, map[string]string{
		"event_type":     events.TypeActivityLogRecorded,
		"user_id":        "user-2",
		"schema_subject": "activity_log_events-value",
	}, headerMap(record.Headers))

	require.Len(t, registry.calls, 2, "one registry call per distinct subject/schema pair")
}

func TestDeliverFailsOnUnknownEventType(t *testing.T) {
	producer := &stubProducer{}
	registry := &stubRegistry{id: 1}
	d := newTestDispatcher(producer, registry)

	err := d.deliver(context.Background(), []Message{testMessage(1, "activity.unknown", "user-1")})
	require.ErrorContains(t, err, "no schema metadata for event_type=activity.unknown")
	require.Empty(t, producer.writes)
	require.Empty(t, registry.calls)
}

func TestDeliverPropagatesProducerErrors(t *testing.T) {
	d := newTestDispatcher(&stubProducer{err: errors.New("kafka write failed")}, &stubRegistry{id: 3})
	err := d.deliver(context.Background(), []Message{testMessage(1, events.TypeProfileCreated, "user-1")})
	require.ErrorContains(t, err, "kafka write failed")
}

func TestSchemaRegistryLooksUpThenRegisters(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		switch r.URL.Path {
		case "/subjects/activity_log_events-value":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error_code":40403,"message":"Schema not found"}`))
		case "/subjects/activity_log_events-value/versions":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "JSON", body["schemaType"])
			_, _ = w.Write([]byte(`{"id":17}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	client := NewSchemaRegistryClient(srv.URL + "/")
	id, err := client.EnsureSchema(context.Background(), "activity_log_events-value", activityLogRecordedSchema)
	require.NoError(t, err)
	require.Equal(t, 17, id)
	require.Equal(t, []string{"/subjects/activity_log_events-value", "/subjects/activity_log_events-value/versions"}, paths)
}

func TestSchemaRegistrySurfacesServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	_, err := NewSchemaRegistryClient(srv.URL).EnsureSchema(context.Background(), "profile_events-value", profileChangedSchema)
	require.ErrorContains(t, err, "schema registry error (500): boom")
}

func newTestDispatcher(producer messageWriter, registry schemaRegistrar) *Dispatcher {
	return &Dispatcher{
		producer: producer,
		registry: registry,
		logger:   zap.NewNop(),
		now:      func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) },
	}
}

func testMessage(id int64, eventType, userID string) Message {
	route := events.Routes[eventType]
	if route.Topic == "" {
		route = events.Route{Topic: "activity_log_events", SchemaSubject: "activity_log_events-value"}
	}
	return Message{
		EventID:       id,
		UserID:        userID,
		AggregateType: "activity_log",
		AggregateID:   "agg",
		EventType:     eventType,
		Topic:         route.Topic,
		SchemaSubject: route.SchemaSubject,
		PartitionKey:  userID,
		Payload:       json.RawMessage(`{"user_id":"` + userID + `"}`),
	}
}

func headerMap(headers []kafka.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for _, h := range headers {
		out[h.Key] = string(h.Value)
	}
	return out
}

type stubProducer struct {
	mu     sync.Mutex
	err    error
	writes []writtenBatch
}

type writtenBatch struct {
	topic    string
	messages []kafka.Message
}

func (s *stubProducer) WriteMessages(_ context.Context, topic string, msgs ...kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	copied := make([]kafka.Message, len(msgs))
	copy(copied, msgs)
	s.writes = append(s.writes, writtenBatch{topic: topic, messages: copied})
	return nil
}

type stubRegistry struct {
	mu    sync.Mutex
	id    int
	err   error
	calls []schemaCall
}

type schemaCall struct {
	subject string
	schema  string
}

func (s *stubRegistry) EnsureSchema(_ context.Context, subject string, schema string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, schemaCall{subject: subject, schema: schema})
	if s.err != nil {
		return 0, s.err
	}
	return s.id, nil
}
