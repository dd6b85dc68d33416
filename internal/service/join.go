package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/gin-board/internal/model"
	"github.com/d60-Lab/gin-board/internal/repository"
	"github.com/d60-Lab/gin-board/pkg/logger"
)

// AnonymousName 资料缺失或无用户名时的展示名
const AnonymousName = "anonymous"

// Author 附加在帖子/评论上的作者信息
type Author struct {
	ID        string  `json:"id"`
	Username  string  `json:"username"`
	AvatarURL *string `json:"avatar_url,omitempty"`
	Anonymous bool    `json:"anonymous"`
}

// AuthorOf p 为 nil 时渲染为匿名
func AuthorOf(userID string, p *model.Profile) Author {
	a := Author{ID: userID, Username: AnonymousName, Anonymous: true}
	if p == nil {
		return a
	}
	a.AvatarURL = p.AvatarURL
	if p.Username != nil && *p.Username != "" {
		a.Username = *p.Username
		a.Anonymous = false
	}
	return a
}

// distinctIDs 保序去重
func distinctIDs[T any](items []T, key func(T) string) []string {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, it := range items {
		id := key(it)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// indexProfiles 以 id 建立查找表，之后每行 O(1) 匹配，整体 O(n+m)
func indexProfiles(profiles []*model.Profile) map[string]*model.Profile {
	idx := make(map[string]*model.Profile, len(profiles))
	for _, p := range profiles {
		idx[p.ID] = p
	}
	return idx
}

// fetchProfiles 第二次往返。失败只记录日志并返回空表，作者按匿名渲染
func fetchProfiles(ctx context.Context, profiles repository.ProfileRepository, ids []string) map[string]*model.Profile {
	if len(ids) == 0 {
		return map[string]*model.Profile{}
	}
	rows, err := profiles.ListByIDs(ctx, ids)
	if err != nil {
		logger.Warn("profile join failed, rendering authors as anonymous", zap.Int("ids", len(ids)), zap.Error(err))
		return map[string]*model.Profile{}
	}
	return indexProfiles(rows)
}

// fetchAuthor 单个作者；资料缺失是正常情况，不记录
func fetchAuthor(ctx context.Context, profiles repository.ProfileRepository, userID string) Author {
	p, err := profiles.GetByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("profile lookup failed, rendering author as anonymous", zap.String("user_id", userID), zap.Error(err))
		}
		return AuthorOf(userID, nil)
	}
	return AuthorOf(userID, p)
}
