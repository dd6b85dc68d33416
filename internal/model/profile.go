package model

import "time"

// Profile 用户资料，id 与账号 id 相同，创建后不可变
type Profile struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Username  *string   `json:"username" gorm:"type:varchar(64)"`
	AvatarURL *string   `json:"avatar_url" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Profile) TableName() string { return "profiles" }
