package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/gin-board/pkg/logger"
	"go.uber.org/zap"
)

// Response 统一响应结构
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	// Redirect 认证失败时指向登录页
	Redirect string `json:"redirect,omitempty"`
	// Back 页面内错误提示附带的返回链接
	Back string `json:"back,omitempty"`
}

func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Code: 0, Message: "ok", Data: data})
}

func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Response{Code: 0, Message: "created", Data: data})
}

func BadRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, Response{Code: http.StatusBadRequest, Message: msg})
}

// Unauthorized 返回 401，并附带登录页地址
func Unauthorized(c *gin.Context, msg, redirect string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, Response{Code: http.StatusUnauthorized, Message: msg, Redirect: redirect})
}

func Forbidden(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusForbidden, Response{Code: http.StatusForbidden, Message: msg})
}

// NotFound 页面内提示，附带返回列表的链接
func NotFound(c *gin.Context, msg, back string) {
	c.AbortWithStatusJSON(http.StatusNotFound, Response{Code: http.StatusNotFound, Message: msg, Back: back})
}

func Conflict(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusConflict, Response{Code: http.StatusConflict, Message: msg})
}

// Fail 通用错误响应
func Fail(c *gin.Context, status int, msg, back string) {
	c.AbortWithStatusJSON(status, Response{Code: status, Message: msg, Back: back})
}

func InternalError(c *gin.Context, err error) {
	logger.Error("internal error", zap.Error(err), zap.String("path", c.FullPath()))
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, Response{Code: http.StatusInternalServerError, Message: "internal server error"})
}

// SuccessRedirect 成功并提示客户端跳转
func SuccessRedirect(c *gin.Context, status int, data any, redirect string) {
	c.JSON(status, Response{Code: 0, Message: "ok", Data: data, Redirect: redirect})
}
