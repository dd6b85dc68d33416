package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/d60-Lab/gin-board/internal/model"
	"github.com/d60-Lab/gin-board/internal/repository"
)

// PostEvent post.* 事件载荷
type PostEvent struct {
	PostID   string    `json:"post_id"`
	AuthorID string    `json:"author_id"`
	Title    string    `json:"title,omitempty"`
	At       time.Time `json:"at"`
}

// CommentEvent comment.* 事件载荷
type CommentEvent struct {
	CommentID string    `json:"comment_id"`
	PostID    string    `json:"post_id"`
	AuthorID  string    `json:"author_id"`
	At        time.Time `json:"at"`
}

// enqueueEvent 在调用方事务内落地 outbox 记录，由 OutboxRelay 异步外发
func enqueueEvent(ctx context.Context, tx *gorm.DB, topic, aggregateID string, payload any, at time.Time) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return repository.NewOutboxRepository(tx).Enqueue(ctx, &model.Outbox{
		ID:          uuid.NewString(),
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     string(body),
		Status:      model.OutboxPending,
		CreatedAt:   at,
	})
}
