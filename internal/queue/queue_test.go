package queue

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmesh/kernel/internal/testutil"
)

func TestQueue_SendAndReceive(t *testing.T) {
	ctx := context.Background()
	q := New(testutil.NewStore(), nil)

	sender, recipient, thread := uuid.New(), uuid.New(), uuid.New()
	_, err := q.Send(ctx, sender, recipient, thread, 1, "hello", nil)
	require.NoError(t, err)

	received, err := q.Receive(ctx, recipient, 10)
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, "hello", received[0].Body)
}

func TestQueue_Receive_OrdersByPriorityThenAge(t *testing.T) {
	var tick time.Time
	clock := func() time.Time {
		tick = tick.Add(time.Millisecond)
		return tick
	}
	q := New(testutil.NewStore(), clock)
	ctx := context.Background()
	recipient := uuid.New()

	_, err := q.Send(ctx, uuid.New(), recipient, uuid.New(), 0, "low-first", nil)
	require.NoError(t, err)
	_, err = q.Send(ctx, uuid.New(), recipient, uuid.New(), 5, "high-second", nil)
	require.NoError(t, err)
	_, err = q.Send(ctx, uuid.New(), recipient, uuid.New(), 5, "high-third", nil)
	require.NoError(t, err)

	received, err := q.Receive(ctx, recipient, 10)

	require.NoError(t, err)
	require.Len(t, received, 3)
	assert.Equal(t, "high-second", received[0].Body)
	assert.Equal(t, "high-third", received[1].Body)
	assert.Equal(t, "low-first", received[2].Body)
}

func TestQueue_SendBroadcast_HasNoRecipient(t *testing.T) {
	ctx := context.Background()
	q := New(testutil.NewStore(), nil)

	msg, err := q.SendBroadcast(ctx, uuid.New(), uuid.New(), 1, "status", nil)

	require.NoError(t, err)
	assert.True(t, msg.IsBroadcast())
}

func TestQueue_MarkDeliveredThenProcessed(t *testing.T) {
	ctx := context.Background()
	q := New(testutil.NewStore(), nil)
	msg, err := q.Send(ctx, uuid.New(), uuid.New(), uuid.New(), 1, "hi", nil)
	require.NoError(t, err)

	require.NoError(t, q.MarkDelivered(ctx, msg.ID))
	require.NoError(t, q.MarkProcessed(ctx, msg.ID))

	stats, err := q.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Processed)
	assert.Equal(t, int64(0), stats.Pending)
}

func TestQueue_MarkProcessed_BeforeDelivered(t *testing.T) {
	ctx := context.Background()
	q := New(testutil.NewStore(), nil)
	msg, err := q.Send(ctx, uuid.New(), uuid.New(), uuid.New(), 1, "hi", nil)
	require.NoError(t, err)

	err = q.MarkProcessed(ctx, msg.ID)

	require.NoError(t, err)
	stats, err := q.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Processed)
}

func TestQueue_Conversation(t *testing.T) {
	ctx := context.Background()
	q := New(testutil.NewStore(), nil)
	thread := uuid.New()

	_, err := q.Send(ctx, uuid.New(), uuid.New(), thread, 0, "first", nil)
	require.NoError(t, err)
	_, err = q.Send(ctx, uuid.New(), uuid.New(), thread, 0, "second", nil)
	require.NoError(t, err)
	_, err = q.Send(ctx, uuid.New(), uuid.New(), uuid.New(), 0, "other thread", nil)
	require.NoError(t, err)

	msgs, err := q.Conversation(ctx, thread)

	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestQueue_Statistics(t *testing.T) {
	ctx := context.Background()
	q := New(testutil.NewStore(), nil)

	m1, err := q.Send(ctx, uuid.New(), uuid.New(), uuid.New(), 0, "a", nil)
	require.NoError(t, err)
	_, err = q.Send(ctx, uuid.New(), uuid.New(), uuid.New(), 0, "b", nil)
	require.NoError(t, err)
	require.NoError(t, q.MarkDelivered(ctx, m1.ID))

	stats, err := q.Statistics(ctx)

	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Pending)
	assert.Equal(t, int64(1), stats.Delivered)
	assert.Equal(t, int64(0), stats.Processed)
}

func TestQueue_PurgeProcessedBefore(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	callCount := 0
	clock := func() time.Time {
		callCount++
		return now.Add(time.Duration(callCount) * time.Hour)
	}
	q := New(testutil.NewStore(), clock)

	msg, err := q.Send(ctx, uuid.New(), uuid.New(), uuid.New(), 0, "old", nil)
	require.NoError(t, err)
	require.NoError(t, q.MarkDelivered(ctx, msg.ID))
	require.NoError(t, q.MarkProcessed(ctx, msg.ID))

	cutoff := now.Add(365 * 24 * time.Hour)
	purged, err := q.PurgeProcessedBefore(ctx, cutoff)

	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	stats, err := q.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Processed)
}
