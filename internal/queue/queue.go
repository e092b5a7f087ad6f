// Package queue implements the persistent priority-FIFO inter-agent message
// queue: messages are ordered by (priority descending, created_at ascending)
// and move forward-only through pending, delivered, and processed.
package queue

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/agentmesh/kernel/internal/domain"
)

// Clock abstracts the current time so tests can control it deterministically.
type Clock func() time.Time

// Queue is the inter-agent message bus. All ordering and status-transition
// logic lives here; the MessageRepository only persists rows and answers the
// priority-FIFO retrieval query.
type Queue struct {
	messages domain.MessageRepository
	now      Clock
}

// New constructs a Queue backed by store.
func New(store domain.MessageRepository, now Clock) *Queue {
	if now == nil {
		now = time.Now
	}
	return &Queue{messages: store, now: now}
}

// Send enqueues a point-to-point message from sender to recipient.
func (q *Queue) Send(ctx context.Context, sender, recipient, threadID uuid.UUID, priority int, body string, payload map[string]any) (*domain.Message, error) {
	msg := domain.NewMessage(uuid.New(), sender, recipient, threadID, priority, body, payload, q.now())
	if err := q.messages.SaveMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// SendBroadcast enqueues a single message with no recipient. Receive returns
// it to every recipient, sender included, while it is pending; it is not
// fanned out into per-recipient copies, so its status is shared by all of
// them, and it is not limited to sender's hierarchy tree.
func (q *Queue) SendBroadcast(ctx context.Context, sender, threadID uuid.UUID, priority int, body string, payload map[string]any) (*domain.Message, error) {
	msg := domain.NewBroadcastMessage(uuid.New(), sender, threadID, priority, body, payload, q.now())
	if err := q.messages.SaveMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Receive returns up to limit pending messages addressed to recipient, plus
// any pending broadcasts, ordered by (priority DESC, created_at ASC), without
// mutating their status.
func (q *Queue) Receive(ctx context.Context, recipient uuid.UUID, limit int) ([]*domain.Message, error) {
	return q.messages.FindPendingForRecipient(ctx, recipient, limit)
}

// MarkDelivered transitions messageID from pending to delivered.
func (q *Queue) MarkDelivered(ctx context.Context, messageID uuid.UUID) error {
	msg, err := q.messages.FindMessageByID(ctx, messageID)
	if err != nil {
		return err
	}
	if err := msg.MarkDelivered(q.now()); err != nil {
		return err
	}
	return q.messages.SaveMessage(ctx, msg)
}

// MarkProcessed transitions messageID to processed, from either pending or
// delivered.
func (q *Queue) MarkProcessed(ctx context.Context, messageID uuid.UUID) error {
	msg, err := q.messages.FindMessageByID(ctx, messageID)
	if err != nil {
		return err
	}
	if err := msg.MarkProcessed(q.now()); err != nil {
		return err
	}
	return q.messages.SaveMessage(ctx, msg)
}

// Conversation returns every message sharing threadID, in send order.
func (q *Queue) Conversation(ctx context.Context, threadID uuid.UUID) ([]*domain.Message, error) {
	return q.messages.FindByThread(ctx, threadID)
}

// Statistics reports the number of messages in each MessageStatus.
type Statistics struct {
	Pending   int64
	Delivered int64
	Processed int64
}

// Statistics computes queue-wide counts by status.
func (q *Queue) Statistics(ctx context.Context) (Statistics, error) {
	pending, err := q.messages.CountByStatus(ctx, domain.MessageStatusPending)
	if err != nil {
		return Statistics{}, err
	}
	delivered, err := q.messages.CountByStatus(ctx, domain.MessageStatusDelivered)
	if err != nil {
		return Statistics{}, err
	}
	processed, err := q.messages.CountByStatus(ctx, domain.MessageStatusProcessed)
	if err != nil {
		return Statistics{}, err
	}
	return Statistics{Pending: pending, Delivered: delivered, Processed: processed}, nil
}

// PurgeProcessedBefore deletes processed messages older than cutoff,
// returning the number removed. Called periodically by the kernel's
// retention janitor, not by the queue itself.
func (q *Queue) PurgeProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return q.messages.DeleteProcessedBefore(ctx, cutoff)
}
