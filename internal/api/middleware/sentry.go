package middleware

import (
	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
)

// Sentry 捕获 panic（重新抛出交给 gin.Recovery）并上报 5xx 错误
func Sentry() gin.HandlerFunc {
	capture := sentrygin.New(sentrygin.Options{Repanic: true})
	return func(c *gin.Context) {
		capture(c)
		if c.Writer.Status() < 500 || len(c.Errors) == 0 {
			return
		}
		if hub := sentrygin.GetHubFromContext(c); hub != nil {
			hub.WithScope(func(scope *sentry.Scope) {
				scope.SetTag("route", c.FullPath())
				hub.CaptureException(c.Errors.Last().Err)
			})
		}
	}
}
