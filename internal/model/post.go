package model

import "time"

// Post 帖子。views 为建议性计数，只增不减
type Post struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID    string    `json:"user_id" gorm:"type:varchar(36);index:idx_board_posts_user;not null"`
	Title     string    `json:"title" gorm:"type:varchar(200);not null"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	Views     int64     `json:"views" gorm:"not null;default:0"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_board_posts_created;not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`
}

func (Post) TableName() string { return "board_posts" }

// TitleMaxLen 标题最大长度（按字符计）
const TitleMaxLen = 200
