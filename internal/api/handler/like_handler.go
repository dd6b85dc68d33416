package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/gin-board/internal/api/middleware"
	"github.com/d60-Lab/gin-board/pkg/response"
)

// LikePost 点赞（幂等）
// @Summary 点赞
// @Tags 点赞
// @Produce json
// @Param apikey header string true "anon key"
// @Param id path string true "帖子 ID"
// @Success 200 {object} response.Response{data=service.LikeSummary}
// @Router /api/v1/posts/{id}/likes [post]
func (h *Handler) LikePost(c *gin.Context) {
	sum, err := h.likes.Like(c.Request.Context(), middleware.SessionFrom(c).UserID(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, sum)
}

// UnlikePost 取消点赞（幂等）
// @Summary 取消点赞
// @Tags 点赞
// @Produce json
// @Param apikey header string true "anon key"
// @Param id path string true "帖子 ID"
// @Success 200 {object} response.Response{data=service.LikeSummary}
// @Router /api/v1/posts/{id}/likes [delete]
func (h *Handler) UnlikePost(c *gin.Context) {
	sum, err := h.likes.Unlike(c.Request.Context(), middleware.SessionFrom(c).UserID(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, sum)
}
