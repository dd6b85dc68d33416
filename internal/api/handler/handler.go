package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/gin-board/internal/api/middleware"
	"github.com/d60-Lab/gin-board/internal/auth"
	"github.com/d60-Lab/gin-board/internal/backend"
	"github.com/d60-Lab/gin-board/internal/service"
	"github.com/d60-Lab/gin-board/internal/session"
	"github.com/d60-Lab/gin-board/pkg/response"
)

// ListPath 页面内错误提示的返回链接
const ListPath = "/posts"

// Handler 所有 HTTP 处理器共享的依赖
type Handler struct {
	client       *backend.Client
	sessions     *session.Manager
	posts        service.PostService
	comments     service.CommentService
	likes        service.LikeService
	accounts     service.AccountService
	exportLimit  int
	secureCookie bool
}

// Deps 构造 Handler 所需的依赖
type Deps struct {
	Client       *backend.Client
	Sessions     *session.Manager
	Posts        service.PostService
	Comments     service.CommentService
	Likes        service.LikeService
	Accounts     service.AccountService
	ExportLimit  int
	SecureCookie bool
}

func New(d Deps) *Handler {
	return &Handler{
		client:       d.Client,
		sessions:     d.Sessions,
		posts:        d.Posts,
		comments:     d.Comments,
		likes:        d.Likes,
		accounts:     d.Accounts,
		exportLimit:  d.ExportLimit,
		secureCookie: d.SecureCookie,
	}
}

// fail 把领域错误映射为 HTTP 响应
func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, context.Canceled):
		// 客户端已离开，不再写响应
		c.Abort()
	case errors.Is(err, service.ErrUnauthenticated):
		response.Unauthorized(c, "login required", middleware.LoginPath)
	case errors.Is(err, auth.ErrInvalidCredentials):
		response.Unauthorized(c, "invalid email or password", "")
	case errors.Is(err, service.ErrForbidden):
		response.Forbidden(c, err.Error())
	case errors.Is(err, service.ErrNotFound):
		response.NotFound(c, "not found", ListPath)
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, auth.ErrInvalidInput):
		response.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrConfirmationRequired):
		response.Fail(c, http.StatusPreconditionRequired, "pass confirm=true to delete", "")
	case errors.Is(err, auth.ErrEmailTaken):
		response.Conflict(c, err.Error())
	case errors.Is(err, backend.ErrPlaceholderClient):
		_ = c.Error(err)
		response.Fail(c, http.StatusServiceUnavailable, "backend is not configured", "")
	case errors.Is(err, backend.ErrRequestFailed):
		_ = c.Error(err)
		response.Fail(c, http.StatusBadGateway, "backend request failed", ListPath)
	default:
		response.InternalError(c, err)
	}
}

// gone 请求已被取消时返回 true，调用方不应再写入结果
func gone(c *gin.Context) bool {
	if c.Request.Context().Err() != nil {
		c.Abort()
		return true
	}
	return false
}
