package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/gin-board/internal/model"
	"github.com/d60-Lab/gin-board/pkg/database"
)

type OutboxRepository interface {
	Enqueue(ctx context.Context, ev *model.Outbox) error
	// Claim 领取一批 pending 事件，以及租约（claimed_at + lease）已过期的 processing 事件，
	// 置为 processing 并记录 claimed_at。重新领取过期事件计一次尝试。
	Claim(ctx context.Context, limit int, now time.Time, lease time.Duration) ([]*model.Outbox, error)
	MarkDone(ctx context.Context, id string, at time.Time) error
	// MarkRetry 失败后退回 pending；超过 maxAttempts 置为 failed
	MarkRetry(ctx context.Context, id string, maxAttempts int) error
	CountByStatus(ctx context.Context, status string) (int64, error)
}

type outboxRepository struct{ db *gorm.DB }

func NewOutboxRepository(db *gorm.DB) OutboxRepository { return &outboxRepository{db: db} }

func (r *outboxRepository) Enqueue(ctx context.Context, ev *model.Outbox) error {
	if ev.Status == "" {
		ev.Status = model.OutboxPending
	}
	return r.db.WithContext(ctx).Create(ev).Error
}

func (r *outboxRepository) Claim(ctx context.Context, limit int, now time.Time, lease time.Duration) ([]*model.Outbox, error) {
	var batch []*model.Outbox
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Where("status = ? OR (status = ? AND claimed_at < ?)",
			model.OutboxPending, model.OutboxProcessing, now.Add(-lease)).
			Order("created_at").
			Limit(limit)
		if database.IsPostgres(tx) {
			// 多实例并发领取：SELECT ... FOR UPDATE SKIP LOCKED
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		if err := q.Find(&batch).Error; err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		ids := make([]string, len(batch))
		for i, b := range batch {
			ids[i] = b.ID
			if b.Status == model.OutboxProcessing {
				b.Attempts++
			}
			b.Status = model.OutboxProcessing
			b.ClaimedAt = &now
		}
		return tx.Model(&model.Outbox{}).Where("id IN ?", ids).Updates(map[string]any{
			"attempts":   gorm.Expr("CASE WHEN status = ? THEN attempts + 1 ELSE attempts END", model.OutboxProcessing),
			"status":     model.OutboxProcessing,
			"claimed_at": now,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

func (r *outboxRepository) MarkDone(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.Outbox{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": model.OutboxDone, "processed_at": at}).Error
}

func (r *outboxRepository) MarkRetry(ctx context.Context, id string, maxAttempts int) error {
	return r.db.WithContext(ctx).Model(&model.Outbox{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"attempts": gorm.Expr("attempts + 1"),
			"status": gorm.Expr("CASE WHEN attempts + 1 >= ? THEN ? ELSE ? END",
				maxAttempts, model.OutboxFailed, model.OutboxPending),
		}).Error
}

func (r *outboxRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&model.Outbox{}).Where("status = ?", status).Count(&cnt).Error
	return cnt, err
}
