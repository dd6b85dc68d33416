package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/d60-Lab/gin-board/internal/backend"
	"github.com/d60-Lab/gin-board/pkg/logger"
)

// PlaceholderPostID 构建期无可用帖子时的占位 id，详情页对其渲染 not found
const PlaceholderPostID = "00000000-0000-0000-0000-000000000000"

// DefaultExportLimit 构建期最多预渲染的详情页数量，同时也是上限
const DefaultExportLimit = 1000

// StaticPostIDs 构建期枚举需要预渲染的帖子 id，结果永不为空。
// 占位客户端、请求失败或没有帖子时都返回 [PlaceholderPostID]。
func StaticPostIDs(ctx context.Context, posts PostService, limit int) []string {
	if limit <= 0 {
		limit = DefaultExportLimit
	}
	limit = min(limit, DefaultExportLimit)
	if posts == nil {
		logger.Warn("export: no post service, using placeholder post id")
		return []string{PlaceholderPostID}
	}
	ids, err := posts.ListPostIDs(ctx, limit)
	switch {
	case errors.Is(err, backend.ErrPlaceholderClient):
		logger.Warn("export: backend not configured, using placeholder post id")
		return []string{PlaceholderPostID}
	case err != nil:
		logger.Warn("export: list post ids failed, using placeholder post id", zap.Error(err))
		return []string{PlaceholderPostID}
	case len(ids) == 0:
		return []string{PlaceholderPostID}
	}
	return ids
}
