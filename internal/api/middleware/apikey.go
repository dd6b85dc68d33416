package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/gin-board/pkg/response"
)

// APIKeyHeader 公开 anon key 所在的请求头
const APIKeyHeader = "apikey"

// APIKey 要求请求携带后端的公开 anon key
func APIKey(key string) gin.HandlerFunc {
	want := []byte(key)
	return func(c *gin.Context) {
		got := []byte(c.GetHeader(APIKeyHeader))
		if len(want) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
			response.Unauthorized(c, "invalid api key", "")
			return
		}
		c.Next()
	}
}
