// Package events defines the payloads published to the event stream.
package events

import "time"

// Event types carried in the event_type header.
const (
	TypeActivityLogRecorded = "activity_log.recorded"
	TypeProfileCreated      = "profile.created"
	TypeProfileUpdated      = "profile.updated"
)

// ActivityLogRecorded is emitted after a log entry is committed.
type ActivityLogRecorded struct {
	LogID        string    `json:"log_id"`
	UserID       string    `json:"user_id"`
	ActivityID   string    `json:"activity_id"`
	Amount       float64   `json:"amount"`
	PointsEarned int       `json:"points_earned"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// ProfileChanged is emitted when a profile is created or edited.
type ProfileChanged struct {
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	FullName   *string   `json:"full_name,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Route describes where an event type is published.
type Route struct {
	Topic         string
	SchemaSubject string
}

// Routes maps every event type to its topic and schema subject.
var Routes = map[string]Route{
	TypeActivityLogRecorded: {Topic: "activity_log_events", SchemaSubject: "activity_log_events-value"},
	TypeProfileCreated:      {Topic: "profile_events", SchemaSubject: "profile_events-value"},
	TypeProfileUpdated:      {Topic: "profile_events", SchemaSubject: "profile_events-value"},
}

// Topics lists the distinct topics in Routes.
func Topics() []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(Routes))
	for _, eventType := range []string{TypeActivityLogRecorded, TypeProfileCreated, TypeProfileUpdated} {
		topic := Routes[eventType].Topic
		if _, ok := seen[topic]; ok {
			continue
		}
		seen[topic] = struct{}{}
		out = append(out, topic)
	}
	return out
}
