package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"docdesk/pkg/domain"
)

func TestRequestValues(t *testing.T) {
	t.Run("empty context", func(t *testing.T) {
		ctx := context.Background()
		_, ok := Principal(ctx)
		assert.False(t, ok)
		assert.Empty(t, RequestID(ctx))
		assert.Empty(t, ClientIP(ctx))
		assert.WithinDuration(t, time.Now(), Now(ctx), time.Second)
	})

	t.Run("values set by middleware are read back", func(t *testing.T) {
		reviewer := domain.Principal{ID: domain.UserID(uuid.New()), Role: domain.RoleReviewer}
		decidedAt := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

		ctx := WithPrincipal(context.Background(), reviewer)
		ctx = WithRequestID(ctx, "req-1")
		ctx = WithClientMetadata(ctx, "203.0.113.9", "curl/8.5.0")
		ctx = WithTime(ctx, decidedAt)

		got, ok := Principal(ctx)
		assert.True(t, ok)
		assert.Equal(t, reviewer, got)
		assert.Equal(t, "req-1", RequestID(ctx))
		assert.Equal(t, "203.0.113.9", ClientIP(ctx))
		assert.Equal(t, "curl/8.5.0", UserAgent(ctx))
		assert.Equal(t, decidedAt, Now(ctx))
	})
}
