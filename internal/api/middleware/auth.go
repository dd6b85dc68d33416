package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/gin-board/internal/session"
	"github.com/d60-Lab/gin-board/pkg/logger"
	"github.com/d60-Lab/gin-board/pkg/response"
)

const (
	// SessionCookie 浏览器客户端携带令牌的 cookie
	SessionCookie = "board_token"
	// LoginPath 未认证时的跳转目标
	LoginPath = "/login"

	sessionKey = "board.session"
	tokenKey   = "board.token"
)

// Token 依次从 Authorization: Bearer 与 cookie 读取用户令牌
func Token(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(tok)
		}
	}
	if v, err := c.Cookie(SessionCookie); err == nil {
		return v
	}
	return ""
}

// OptionalSession 解析会话放入上下文；吊销表不可达时状态为 unknown，请求继续
func OptionalSession(sessions *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := Token(c)
		s, err := sessions.Current(c.Request.Context(), tok)
		if err != nil {
			logger.Warn("session lookup failed", zap.Error(err))
		}
		c.Set(sessionKey, s)
		c.Set(tokenKey, tok)
		c.Next()
	}
}

// RequireAuth 每次写操作重新校验会话，不复用之前请求得到的身份。
// JSON 客户端得到 401 + redirect，浏览器得到 302 到登录页。
func RequireAuth(sessions *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := Token(c)
		s, err := sessions.Current(c.Request.Context(), tok)
		if err != nil {
			logger.Warn("session lookup failed", zap.Error(err))
			response.Fail(c, http.StatusServiceUnavailable, "session lookup failed", "")
			return
		}
		if !s.Authenticated() {
			if wantsHTML(c) {
				c.Redirect(http.StatusFound, LoginPath)
				c.Abort()
				return
			}
			response.Unauthorized(c, "login required", LoginPath)
			return
		}
		c.Set(sessionKey, s)
		c.Set(tokenKey, tok)
		c.Next()
	}
}

// SessionFrom 取出当前请求的会话；未经过会话中间件时为匿名
func SessionFrom(c *gin.Context) session.Session {
	if v, ok := c.Get(sessionKey); ok {
		if s, ok := v.(session.Session); ok {
			return s
		}
	}
	return session.Session{State: session.StateAnonymous}
}

// TokenFrom 当前请求携带的令牌
func TokenFrom(c *gin.Context) string {
	return c.GetString(tokenKey)
}

func wantsHTML(c *gin.Context) bool {
	if c.GetHeader("X-Requested-With") == "XMLHttpRequest" {
		return false
	}
	accept := c.GetHeader("Accept")
	return strings.Contains(accept, "text/html") && !strings.Contains(accept, "application/json")
}
