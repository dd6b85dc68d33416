package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/gin-board/internal/api/middleware"
	"github.com/d60-Lab/gin-board/internal/service"
	"github.com/d60-Lab/gin-board/pkg/response"
)

type postRequest struct {
	Title   string `json:"title" binding:"required,max=200"`
	Content string `json:"content" binding:"required"`
}

// EditForm 编辑页预填内容
type EditForm struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// CreatePost 发布帖子
// @Summary 发布帖子
// @Tags 帖子
// @Accept json
// @Produce json
// @Param apikey header string true "anon key"
// @Param request body postRequest true "帖子内容"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /api/v1/posts [post]
func (h *Handler) CreatePost(c *gin.Context) {
	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	id, err := h.posts.CreatePost(c.Request.Context(), service.CreatePostInput{
		AuthorID: middleware.SessionFrom(c).UserID(),
		Title:    req.Title,
		Content:  req.Content,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.SuccessRedirect(c, http.StatusCreated, gin.H{"id": id}, ListPath+"/"+id)
}

// EditPost 编辑页预填；非作者跳回详情页
// @Summary 编辑预填
// @Tags 帖子
// @Produce json
// @Param apikey header string true "anon key"
// @Param id path string true "帖子 ID"
// @Success 200 {object} response.Response{data=EditForm}
// @Failure 401 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /api/v1/posts/{id}/edit [get]
func (h *Handler) EditPost(c *gin.Context) {
	id := c.Param("id")
	post, err := h.posts.GetForEdit(c.Request.Context(), middleware.SessionFrom(c).UserID(), id)
	if err != nil {
		if errors.Is(err, service.ErrForbidden) {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Response{
				Code: http.StatusForbidden, Message: err.Error(), Redirect: ListPath + "/" + id,
			})
			return
		}
		h.fail(c, err)
		return
	}
	if gone(c) {
		return
	}
	response.Success(c, EditForm{ID: post.ID, Title: post.Title, Content: post.Content})
}

// UpdatePost 更新帖子（仅作者）
// @Summary 更新帖子
// @Tags 帖子
// @Accept json
// @Produce json
// @Param apikey header string true "anon key"
// @Param id path string true "帖子 ID"
// @Param request body postRequest true "帖子内容"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /api/v1/posts/{id} [put]
func (h *Handler) UpdatePost(c *gin.Context) {
	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	id := c.Param("id")
	err := h.posts.UpdatePost(c.Request.Context(), middleware.SessionFrom(c).UserID(), service.UpdatePostInput{
		ID:      id,
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.SuccessRedirect(c, http.StatusOK, gin.H{"id": id}, ListPath+"/"+id)
}

// DeletePost 删除帖子（仅作者，需 confirm=true）
// @Summary 删除帖子
// @Tags 帖子
// @Produce json
// @Param apikey header string true "anon key"
// @Param id path string true "帖子 ID"
// @Param confirm query bool true "确认删除"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 428 {object} response.Response
// @Router /api/v1/posts/{id} [delete]
func (h *Handler) DeletePost(c *gin.Context) {
	err := h.posts.DeletePost(c.Request.Context(), middleware.SessionFrom(c).UserID(), c.Param("id"), confirmed(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.SuccessRedirect(c, http.StatusOK, nil, ListPath)
}

func confirmed(c *gin.Context) bool {
	ok, _ := strconv.ParseBool(c.Query("confirm"))
	return ok
}
