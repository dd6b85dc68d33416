package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/d60-Lab/gin-board/internal/model"
)

type CommentRepository interface {
	// ListByPost 按创建时间正序，相同时按 id 升序
	ListByPost(ctx context.Context, postID string) ([]*model.Comment, error)
	GetByID(ctx context.Context, id string) (*model.Comment, error)
	Create(ctx context.Context, c *model.Comment) error
	// Delete 仅当 user_id 匹配时生效
	Delete(ctx context.Context, id, userID string) (int64, error)
	DeleteByPost(ctx context.Context, postID string) error
}

type commentRepository struct{ db *gorm.DB }

func NewCommentRepository(db *gorm.DB) CommentRepository { return &commentRepository{db: db} }

func (r *commentRepository) ListByPost(ctx context.Context, postID string) ([]*model.Comment, error) {
	var res []*model.Comment
	err := r.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&res).Error
	return res, err
}

func (r *commentRepository) GetByID(ctx context.Context, id string) (*model.Comment, error) {
	var c model.Comment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *commentRepository) Create(ctx context.Context, c *model.Comment) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *commentRepository) Delete(ctx context.Context, id, userID string) (int64, error) {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&model.Comment{})
	return res.RowsAffected, res.Error
}

func (r *commentRepository) DeleteByPost(ctx context.Context, postID string) error {
	return r.db.WithContext(ctx).Where("post_id = ?", postID).Delete(&model.Comment{}).Error
}
