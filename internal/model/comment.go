package model

import "time"

// Comment 评论，必须引用已存在的帖子
type Comment struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	PostID    string    `json:"post_id" gorm:"type:varchar(36);index:idx_board_comments_post;not null"`
	UserID    string    `json:"user_id" gorm:"type:varchar(36);index:idx_board_comments_user;not null"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`
}

func (Comment) TableName() string { return "board_comments" }
