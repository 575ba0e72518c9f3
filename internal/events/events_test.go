package events

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTopicsAreDistinct(t *testing.T) {
	require.Equal(t, []string{"activity_log_events", "profile_events"}, Topics())
}

func TestRoutesCoverEveryEventType(t *testing.T) {
	for _, eventType := range []string{TypeActivityLogRecorded, TypeProfileCreated, TypeProfileUpdated} {
		route, ok := Routes[eventType]
		require.True(t, ok, eventType)
		require.Equal(t, route.Topic+"-value", route.SchemaSubject)
	}
}
