package outbox

import "github.com/TeioDM/Site-de-Registro-de-Atividades/internal/events"

// SchemaCatalogEntry maps an event type to its JSON schema.
type SchemaCatalogEntry struct {
	Schema string
}

var schemaCatalog = map[string]SchemaCatalogEntry{
	events.TypeActivityLogRecorded: {Schema: activityLogRecordedSchema},
	events.TypeProfileCreated:      {Schema: profileChangedSchema},
	events.TypeProfileUpdated:      {Schema: profileChangedSchema},
}

const activityLogRecordedSchema = `{
  "type": "object",
  "title": "ActivityLogRecorded",
  "properties": {
    "log_id": {"type": "string"},
    "user_id": {"type": "string"},
    "activity_id": {"type": "string"},
    "amount": {"type": "number", "exclusiveMinimum": 0},
    "points_earned": {"type": "integer"},
    "recorded_at": {"type": "string", "format": "date-time"}
  },
  "required": ["log_id", "user_id", "activity_id", "amount", "points_earned", "recorded_at"],
  "additionalProperties": false
}`

const profileChangedSchema = `{
  "type": "object",
  "title": "ProfileChanged",
  "properties": {
    "user_id": {"type": "string"},
    "username": {"type": "string"},
    "full_name": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["user_id", "username", "occurred_at"],
  "additionalProperties": false
}`
