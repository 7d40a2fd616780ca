package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docdesk/pkg/domain"
	audit "docdesk/pkg/platform/audit"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	seeker := domain.UserID(uuid.New())
	reviewer := domain.UserID(uuid.New())
	appID := domain.NewApplicationID().String()
	base := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	store := NewInMemoryStore()
	for i, e := range []audit.Event{
		{UserID: seeker, Subject: appID, Action: string(audit.EventApplicationCreated)},
		{UserID: seeker, Subject: appID, Action: string(audit.EventApplicationUpdated)},
		{UserID: reviewer, Subject: appID, Action: string(audit.EventApplicationDecision), Decision: "accepted"},
		{UserID: seeker, Action: string(audit.EventAccessDenied), Reason: "role_mismatch"},
	} {
		e.Timestamp = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.Append(ctx, e))
	}

	t.Run("by subject spans actors in append order", func(t *testing.T) {
		events, err := store.ListBySubject(ctx, appID)
		require.NoError(t, err)
		require.Len(t, events, 3)
		assert.Equal(t, string(audit.EventApplicationCreated), events[0].Action)
		assert.Equal(t, seeker, events[1].UserID)
		assert.Equal(t, reviewer, events[2].UserID)
		assert.Equal(t, "accepted", events[2].Decision)
	})

	t.Run("events without a subject are not indexed", func(t *testing.T) {
		events, err := store.ListBySubject(ctx, "")
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("reads are copies", func(t *testing.T) {
		events, err := store.ListBySubject(ctx, appID)
		require.NoError(t, err)
		events[2].Decision = "tampered"

		again, err := store.ListBySubject(ctx, appID)
		require.NoError(t, err)
		assert.Equal(t, "accepted", again[2].Decision)
	})

	t.Run("unknown keys are empty", func(t *testing.T) {
		events, err := store.ListBySubject(ctx, "missing")
		require.NoError(t, err)
		assert.Empty(t, events)
	})
}
