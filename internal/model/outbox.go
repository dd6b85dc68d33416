package model

import "time"

// Outbox 状态
const (
	OutboxPending    = "pending"
	OutboxProcessing = "processing"
	OutboxDone       = "done"
	OutboxFailed     = "failed"
)

// Outbox 领域事件外发盒，与业务写入同一事务落地
type Outbox struct {
	ID          string     `gorm:"primaryKey;type:varchar(36)"`
	Topic       string     `gorm:"type:varchar(64);not null"`
	AggregateID string     `gorm:"type:varchar(36);index:idx_board_outbox_aggregate"`
	Payload     string     `gorm:"type:text"`
	Status      string     `gorm:"type:varchar(16);index;not null"` // pending, processing, done, failed
	Attempts    int        `gorm:"not null;default:0"`
	CreatedAt   time.Time  `gorm:"index"`
	ClaimedAt   *time.Time `gorm:"index"` // processing 租约起点
	ProcessedAt *time.Time
}

func (Outbox) TableName() string { return "board_outbox" }

// All 所有需要迁移的表
func All() []any {
	return []any{&Account{}, &Profile{}, &Post{}, &Comment{}, &Like{}, &Outbox{}}
}
