package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/agentmesh/kernel/internal/domain"
)

type messageModel struct {
	bun.BaseModel `bun:"table:messages,alias:msg"`

	ID          uuid.UUID      `bun:"id,pk"`
	SenderID    uuid.UUID      `bun:"sender_id"`
	RecipientID *uuid.UUID     `bun:"recipient_id"`
	ThreadID    uuid.UUID      `bun:"thread_id"`
	Priority    int            `bun:"priority"`
	Body        string         `bun:"body"`
	Payload     map[string]any `bun:"payload,type:jsonb"`
	Status      string         `bun:"status"`
	CreatedAt   time.Time      `bun:"created_at"`
	DeliveredAt *time.Time     `bun:"delivered_at"`
	ProcessedAt *time.Time     `bun:"processed_at"`
}

func newMessageModel(m *domain.Message) *messageModel {
	return &messageModel{
		ID:          m.ID,
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		ThreadID:    m.ThreadID,
		Priority:    m.Priority,
		Body:        m.Body,
		Payload:     m.Payload,
		Status:      string(m.Status),
		CreatedAt:   m.CreatedAt,
		DeliveredAt: m.DeliveredAt,
		ProcessedAt: m.ProcessedAt,
	}
}

func (m *messageModel) toDomain() *domain.Message {
	return &domain.Message{
		ID:          m.ID,
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		ThreadID:    m.ThreadID,
		Priority:    m.Priority,
		Body:        m.Body,
		Payload:     m.Payload,
		Status:      domain.MessageStatus(m.Status),
		CreatedAt:   m.CreatedAt,
		DeliveredAt: m.DeliveredAt,
		ProcessedAt: m.ProcessedAt,
	}
}

// SaveMessage upserts message.
func (s *BunStore) SaveMessage(ctx context.Context, message *domain.Message) error {
	model := newMessageModel(message)
	_, err := s.conn(ctx).NewInsert().Model(model).On("CONFLICT (id) DO UPDATE").Exec(ctx)
	return err
}

// FindMessageByID loads the message with id.
func (s *BunStore) FindMessageByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	model := new(messageModel)
	if err := s.conn(ctx).NewSelect().Model(model).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, err
	}
	return model.toDomain(), nil
}

// FindPendingForRecipient returns recipient's pending messages ordered by
// priority descending, then age ascending, so higher-priority messages and
// older same-priority messages are delivered first.
func (s *BunStore) FindPendingForRecipient(ctx context.Context, recipient uuid.UUID, limit int) ([]*domain.Message, error) {
	var models []messageModel
	q := s.conn(ctx).NewSelect().
		Model(&models).
		Where("status = ?", string(domain.MessageStatusPending)).
		Where("recipient_id = ? OR recipient_id IS NULL", recipient).
		Order("priority DESC", "created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return toMessageSlice(models), nil
}

// FindByThread returns every message in threadID, oldest first.
func (s *BunStore) FindByThread(ctx context.Context, threadID uuid.UUID) ([]*domain.Message, error) {
	var models []messageModel
	if err := s.conn(ctx).NewSelect().Model(&models).Where("thread_id = ?", threadID).Order("created_at ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return toMessageSlice(models), nil
}

// CountByStatus counts messages currently in status.
func (s *BunStore) CountByStatus(ctx context.Context, status domain.MessageStatus) (int64, error) {
	count, err := s.conn(ctx).NewSelect().Model((*messageModel)(nil)).Where("status = ?", string(status)).Count(ctx)
	return int64(count), err
}

// DeleteProcessedBefore removes every processed message older than cutoff,
// returning how many rows were deleted.
func (s *BunStore) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.conn(ctx).NewDelete().
		Model((*messageModel)(nil)).
		Where("status = ?", string(domain.MessageStatusProcessed)).
		Where("processed_at < ?", cutoff).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func toMessageSlice(models []messageModel) []*domain.Message {
	out := make([]*domain.Message, len(models))
	for i := range models {
		out[i] = models[i].toDomain()
	}
	return out
}
