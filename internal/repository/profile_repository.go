package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/d60-Lab/gin-board/internal/model"
)

type ProfileRepository interface {
	GetByID(ctx context.Context, id string) (*model.Profile, error)
	// ListByIDs 一次 IN 查询取回一组资料，缺失的 id 不报错
	ListByIDs(ctx context.Context, ids []string) ([]*model.Profile, error)
	Create(ctx context.Context, p *model.Profile) error
}

type profileRepository struct{ db *gorm.DB }

func NewProfileRepository(db *gorm.DB) ProfileRepository { return &profileRepository{db: db} }

func (r *profileRepository) GetByID(ctx context.Context, id string) (*model.Profile, error) {
	var p model.Profile
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *profileRepository) ListByIDs(ctx context.Context, ids []string) ([]*model.Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var res []*model.Profile
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&res).Error
	return res, err
}

func (r *profileRepository) Create(ctx context.Context, p *model.Profile) error {
	return r.db.WithContext(ctx).Create(p).Error
}
