package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "relay/pkg/platform/audit"
)

func TestRecordEncoding(t *testing.T) {
	s, err := New([]string{"localhost:1"}, "relay.audit")
	require.NoError(t, err)
	defer s.client.Close()

	id := uuid.New()
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("ticket events are keyed by ticket", func(t *testing.T) {
		rec, err := s.record(audit.Event{
			ID: id, Category: audit.CategoryModeration, Timestamp: at,
			Action: string(audit.EventTicketApproved), TicketID: 42, ActorID: "mod-1",
		})
		require.NoError(t, err)
		assert.Equal(t, "relay.audit", rec.Topic)
		assert.Equal(t, "42", string(rec.Key))

		var p payload
		require.NoError(t, json.Unmarshal(rec.Value, &p))
		assert.Equal(t, id.String(), p.ID)
		assert.Equal(t, "ticket_approved", p.Action)
		assert.Equal(t, "2024-03-01T10:00:00Z", p.Timestamp)
		assert.Equal(t, "mod-1", p.ActorID)
	})

	t.Run("other events are keyed by action", func(t *testing.T) {
		rec, err := s.record(audit.Event{ID: id, Timestamp: at, Action: string(audit.EventSettingChanged)})
		require.NoError(t, err)
		assert.Equal(t, "setting_changed", string(rec.Key))
	})
}
