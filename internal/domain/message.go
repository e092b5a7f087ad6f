package domain

import (
	"time"

	"github.com/google/uuid"

	kerrors "github.com/agentmesh/kernel/internal/domain/errors"
)

// Message is a single entry in the persistent inter-agent queue. A nil
// RecipientID marks a broadcast message: one stored row that every
// recipient's pending lookup returns, the sender's included. It is not
// copied per recipient and is not limited to the sender's hierarchy tree.
type Message struct {
	ID          uuid.UUID
	SenderID    uuid.UUID
	RecipientID *uuid.UUID
	ThreadID    uuid.UUID
	Priority    int
	Body        string
	Payload     map[string]any
	Status      MessageStatus
	CreatedAt   time.Time
	DeliveredAt *time.Time
	ProcessedAt *time.Time
}

// NewMessage constructs a pending point-to-point message. threadID groups
// related messages into a single conversation; callers pass the sender's own
// ID to start a new thread.
func NewMessage(id, sender, recipient, threadID uuid.UUID, priority int, body string, payload map[string]any, now time.Time) *Message {
	r := recipient
	return &Message{
		ID:          id,
		SenderID:    sender,
		RecipientID: &r,
		ThreadID:    threadID,
		Priority:    priority,
		Body:        body,
		Payload:     payload,
		Status:      MessageStatusPending,
		CreatedAt:   now,
	}
}

// NewBroadcastMessage constructs a pending message with no single recipient.
func NewBroadcastMessage(id, sender, threadID uuid.UUID, priority int, body string, payload map[string]any, now time.Time) *Message {
	return &Message{
		ID:        id,
		SenderID:  sender,
		ThreadID:  threadID,
		Priority:  priority,
		Body:      body,
		Payload:   payload,
		Status:    MessageStatusPending,
		CreatedAt: now,
	}
}

// IsBroadcast reports whether m has no single recipient.
func (m *Message) IsBroadcast() bool {
	return m.RecipientID == nil
}

// MarkDelivered transitions m from pending to delivered.
func (m *Message) MarkDelivered(now time.Time) error {
	if err := m.transition(MessageStatusDelivered); err != nil {
		return err
	}
	m.DeliveredAt = &now
	return nil
}

// MarkProcessed transitions m to processed, from either pending or delivered.
func (m *Message) MarkProcessed(now time.Time) error {
	if err := m.transition(MessageStatusProcessed); err != nil {
		return err
	}
	m.ProcessedAt = &now
	return nil
}

func (m *Message) transition(next MessageStatus) error {
	if !m.Status.CanTransitionTo(next) {
		return kerrors.NewInvalidTransitionError("message", string(m.Status), string(next))
	}
	m.Status = next
	return nil
}
