package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/gin-board/internal/service"
	"github.com/d60-Lab/gin-board/pkg/response"
)

// ExportIDs 静态导出需要预渲染的详情页 id
type ExportIDs struct {
	IDs []string `json:"ids"`
}

// ExportPostIDs 构建期枚举帖子 id，失败时返回占位 id
// @Summary 静态导出 id
// @Tags 导出
// @Produce json
// @Param apikey header string true "anon key"
// @Success 200 {object} response.Response{data=ExportIDs}
// @Router /api/v1/export/post-ids [get]
func (h *Handler) ExportPostIDs(c *gin.Context) {
	response.Success(c, ExportIDs{IDs: service.StaticPostIDs(c.Request.Context(), h.posts, h.exportLimit)})
}

// Health 存活与后端连通性
func (h *Handler) Health(c *gin.Context) {
	if err := h.client.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
