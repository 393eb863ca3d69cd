package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resights/internal/audit"
	"resights/internal/audit/store/memory"
	"resights/pkg/requestcontext"
)

func TestPublisher(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("nil store", func(t *testing.T) {
		_, err := audit.NewPublisher(nil)
		assert.Error(t, err)
	})

	t.Run("emit stamps id and timestamp", func(t *testing.T) {
		store := memory.NewInMemoryStore(10)
		p, err := audit.NewPublisher(store, audit.WithPublisherClock(func() time.Time { return now }))
		require.NoError(t, err)

		require.NoError(t, p.Emit(context.Background(), audit.Event{Operation: audit.OperationHealth, Outcome: audit.OutcomeSuccess}))

		events, err := p.Recent(context.Background(), 10)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, now, events[0].Timestamp)
		_, err = uuid.Parse(events[0].ID)
		assert.NoError(t, err)
	})

	t.Run("request time is used without a clock", func(t *testing.T) {
		store := memory.NewInMemoryStore(10)
		p, err := audit.NewPublisher(store)
		require.NoError(t, err)

		ctx := requestcontext.WithTime(context.Background(), now)
		require.NoError(t, p.Emit(ctx, audit.Event{Operation: audit.OperationCall}))
		events, _ := p.Recent(ctx, 1)
		assert.Equal(t, now, events[0].Timestamp)
	})

	t.Run("caller supplied id and timestamp are kept", func(t *testing.T) {
		store := memory.NewInMemoryStore(10)
		p, err := audit.NewPublisher(store)
		require.NoError(t, err)

		ts := now.Add(-time.Hour)
		require.NoError(t, p.Emit(context.Background(), audit.Event{ID: "fixed", Timestamp: ts}))
		events, _ := p.Recent(context.Background(), 1)
		assert.Equal(t, "fixed", events[0].ID)
		assert.Equal(t, ts, events[0].Timestamp)
	})
}
