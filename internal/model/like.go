package model

import "time"

// Like 点赞关系（用户 A 赞了帖子 P）
type Like struct {
	// 复合主键 (post_id, user_id)，同一用户对同一帖子至多一次
	PostID    string    `json:"post_id" gorm:"primaryKey;type:varchar(36)"`
	UserID    string    `json:"user_id" gorm:"primaryKey;type:varchar(36);index:idx_board_post_likes_user"`
	CreatedAt time.Time `json:"created_at"`
}

func (Like) TableName() string { return "board_post_likes" }
