package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/gin-board/internal/api/middleware"
	"github.com/d60-Lab/gin-board/internal/auth"
	"github.com/d60-Lab/gin-board/internal/service"
	"github.com/d60-Lab/gin-board/internal/session"
	"github.com/d60-Lab/gin-board/pkg/logger"
	"github.com/d60-Lab/gin-board/pkg/response"
)

type signUpRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Username string `json:"username"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResult 登录/注册结果
type AuthResult struct {
	Session session.Session `json:"session"`
	Token   *auth.Token     `json:"token"`
}

// SignUp 注册账号并创建资料
// @Summary 注册
// @Tags 认证
// @Accept json
// @Produce json
// @Param apikey header string true "anon key"
// @Param request body signUpRequest true "注册信息"
// @Success 201 {object} response.Response{data=service.SignUpResult}
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/auth/signup [post]
func (h *Handler) SignUp(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	res, err := h.accounts.SignUp(c.Request.Context(), service.SignUpInput{
		Email:    req.Email,
		Password: req.Password,
		Username: req.Username,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	h.setTokenCookie(c, res.Token)
	response.SuccessRedirect(c, http.StatusCreated, res, ListPath)
}

// Login 登录
// @Summary 登录
// @Tags 认证
// @Accept json
// @Produce json
// @Param apikey header string true "anon key"
// @Param request body loginRequest true "登录信息"
// @Success 200 {object} response.Response{data=AuthResult}
// @Failure 401 {object} response.Response
// @Router /api/v1/auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	s, tok, err := h.sessions.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.setTokenCookie(c, tok)
	response.SuccessRedirect(c, http.StatusOK, AuthResult{Session: s, Token: tok}, ListPath)
}

// Logout 注销并吊销当前令牌
// @Summary 注销
// @Tags 认证
// @Produce json
// @Param apikey header string true "anon key"
// @Success 200 {object} response.Response
// @Router /api/v1/auth/logout [post]
func (h *Handler) Logout(c *gin.Context) {
	if err := h.sessions.SignOut(c.Request.Context(), middleware.TokenFrom(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.SetCookie(middleware.SessionCookie, "", -1, "/", "", h.secureCookie, true)
	response.SuccessRedirect(c, http.StatusOK, nil, "/")
}

// Session 当前会话状态
// @Summary 会话状态
// @Tags 认证
// @Produce json
// @Param apikey header string true "anon key"
// @Success 200 {object} response.Response{data=session.Session}
// @Router /api/v1/auth/session [get]
func (h *Handler) Session(c *gin.Context) {
	response.Success(c, middleware.SessionFrom(c))
}

// Events 会话变更推送（SSE），连接期间保持订阅
// @Summary 会话变更流
// @Tags 认证
// @Produce text/event-stream
// @Param apikey header string true "anon key"
// @Success 200 {string} string "event stream"
// @Router /api/v1/auth/events [get]
func (h *Handler) Events(c *gin.Context) {
	s := middleware.SessionFrom(c)
	ch := make(chan session.Event, 8)
	unsubscribe := h.sessions.Subscribe(s.UserID(), func(ev session.Event) {
		select {
		case ch <- ev:
		default:
			logger.Warn("session stream slow, drop event", zap.String("user_id", ev.UserID))
		}
	})
	defer unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.SSEvent("state", s)
	c.Writer.Flush()

	ctx := c.Request.Context()
	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepalive.C:
			c.SSEvent("ping", time.Now().UTC().Format(time.RFC3339))
			c.Writer.Flush()
		case ev := <-ch:
			c.SSEvent("session", ev)
			c.Writer.Flush()
			if ev.Type == session.EventSignedOut {
				return
			}
		}
	}
}

func (h *Handler) setTokenCookie(c *gin.Context, tok *auth.Token) {
	if tok == nil {
		return
	}
	maxAge := int(time.Until(tok.ExpiresAt).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, tok.AccessToken, maxAge, "/", "", h.secureCookie, true)
}
