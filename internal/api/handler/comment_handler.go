package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/gin-board/internal/api/middleware"
	"github.com/d60-Lab/gin-board/internal/service"
	"github.com/d60-Lab/gin-board/pkg/response"
)

type commentRequest struct {
	Content string `json:"content"`
}

// ListComments 评论列表
// @Summary 评论列表
// @Tags 评论
// @Produce json
// @Param apikey header string true "anon key"
// @Param id path string true "帖子 ID"
// @Success 200 {object} response.Response{data=[]CommentItem}
// @Router /api/v1/posts/{id}/comments [get]
func (h *Handler) ListComments(c *gin.Context) {
	rows, err := h.comments.ListComments(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if gone(c) {
		return
	}
	s := middleware.SessionFrom(c)
	items := make([]CommentItem, 0, len(rows))
	for _, cm := range rows {
		items = append(items, CommentItem{CommentView: cm, CanDelete: s.Authenticated() && cm.UserID == s.UserID()})
	}
	response.Success(c, items)
}

// CreateComment 发表评论
// @Summary 发表评论
// @Tags 评论
// @Accept json
// @Produce json
// @Param apikey header string true "anon key"
// @Param id path string true "帖子 ID"
// @Param request body commentRequest true "评论内容"
// @Success 201 {object} response.Response{data=service.CommentView}
// @Failure 400 {object} response.Response
// @Router /api/v1/posts/{id}/comments [post]
func (h *Handler) CreateComment(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	view, err := h.comments.CreateComment(c.Request.Context(), service.CreateCommentInput{
		PostID:   c.Param("id"),
		AuthorID: middleware.SessionFrom(c).UserID(),
		Content:  req.Content,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.SuccessRedirect(c, http.StatusCreated, view, "")
}

// DeleteComment 删除评论（仅作者，需 confirm=true）
// @Summary 删除评论
// @Tags 评论
// @Produce json
// @Param apikey header string true "anon key"
// @Param id path string true "评论 ID"
// @Param confirm query bool true "确认删除"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /api/v1/comments/{id} [delete]
func (h *Handler) DeleteComment(c *gin.Context) {
	if err := h.comments.DeleteComment(c.Request.Context(), middleware.SessionFrom(c).UserID(), c.Param("id"), confirmed(c)); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, nil)
}
