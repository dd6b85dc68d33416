package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/d60-Lab/gin-board/internal/model"
)

// PostRepository 帖子表访问，每个方法一次往返
type PostRepository interface {
	// List 按创建时间倒序，创建时间相同时按 id 升序
	List(ctx context.Context) ([]*model.Post, error)
	// ListIDs 静态导出用，最多 limit 个
	ListIDs(ctx context.Context, limit int) ([]string, error)
	GetByID(ctx context.Context, id string) (*model.Post, error)
	Create(ctx context.Context, post *model.Post) error
	// Update 仅当 user_id 匹配时生效，返回受影响行数
	Update(ctx context.Context, id, userID, title, content string, updatedAt time.Time) (int64, error)
	// Delete 仅当 user_id 匹配时生效，返回受影响行数
	Delete(ctx context.Context, id, userID string) (int64, error)
	// SetViews 读-改-写的写步骤；只在新值更大时生效，计数不会回退
	SetViews(ctx context.Context, id string, views int64) error
	// IncrementViews 单条语句原子自增
	IncrementViews(ctx context.Context, id string) error
}

type postRepository struct{ db *gorm.DB }

func NewPostRepository(db *gorm.DB) PostRepository { return &postRepository{db: db} }

func (r *postRepository) List(ctx context.Context) ([]*model.Post, error) {
	var posts []*model.Post
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id ASC").
		Find(&posts).Error
	return posts, err
}

func (r *postRepository) ListIDs(ctx context.Context, limit int) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.Post{}).
		Order("created_at DESC").
		Order("id ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*model.Post, error) {
	var post model.Post
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&post).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) Create(ctx context.Context, post *model.Post) error {
	return r.db.WithContext(ctx).Create(post).Error
}

func (r *postRepository) Update(ctx context.Context, id, userID, title, content string, updatedAt time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Post{}).
		Where("id = ? AND user_id = ?", id, userID).
		UpdateColumns(map[string]any{"title": title, "content": content, "updated_at": updatedAt})
	return res.RowsAffected, res.Error
}

func (r *postRepository) Delete(ctx context.Context, id, userID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&model.Post{})
	return res.RowsAffected, res.Error
}

func (r *postRepository) SetViews(ctx context.Context, id string, views int64) error {
	// UpdateColumn 不触碰 updated_at
	return r.db.WithContext(ctx).
		Model(&model.Post{}).
		Where("id = ? AND views < ?", id, views).
		UpdateColumn("views", views).Error
}

func (r *postRepository) IncrementViews(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&model.Post{}).
		Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + ?", 1)).Error
}
