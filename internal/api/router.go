package api

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	_ "github.com/d60-Lab/gin-board/docs"
	"github.com/d60-Lab/gin-board/internal/api/handler"
	"github.com/d60-Lab/gin-board/internal/api/middleware"
	"github.com/d60-Lab/gin-board/internal/session"
	"github.com/d60-Lab/gin-board/pkg/metrics"
)

// RouterOptions 路由装配参数
type RouterOptions struct {
	AnonKey     string
	ServiceName string
	Limiter     *middleware.IPRateLimiter
	// Swagger 是否挂载 /swagger
	Swagger bool
}

// NewRouter 构建 gin 引擎
func NewRouter(h *handler.Handler, sessions *session.Manager, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.Logger(),
		middleware.Sentry(),
		middleware.Metrics(),
		middleware.SecureHeaders(),
		gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/v1/auth/events"})),
	)
	if opts.ServiceName != "" {
		r.Use(otelgin.Middleware(opts.ServiceName))
	}

	r.GET("/healthz", h.Health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	if opts.Swagger {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	v1 := r.Group("/api/v1", middleware.RateLimit(opts.Limiter), middleware.APIKey(opts.AnonKey))
	authed := middleware.RequireAuth(sessions)

	// 读页面：会话可选
	pages := v1.Group("", middleware.OptionalSession(sessions))
	{
		pages.GET("/home", h.Home)
		pages.GET("/header", h.Header)
		pages.GET("/posts", h.ListPosts)
		pages.GET("/posts/:id", h.GetPost)
		pages.GET("/posts/:id/comments", h.ListComments)
		pages.GET("/auth/session", h.Session)
		pages.GET("/export/post-ids", h.ExportPostIDs)
	}

	v1.POST("/auth/signup", h.SignUp)
	v1.POST("/auth/login", h.Login)

	// 写操作：每次请求重新校验会话
	w := v1.Group("", authed)
	{
		w.GET("/posts/:id/edit", h.EditPost)
		w.POST("/posts", h.CreatePost)
		w.PUT("/posts/:id", h.UpdatePost)
		w.DELETE("/posts/:id", h.DeletePost)
		w.POST("/posts/:id/comments", h.CreateComment)
		w.DELETE("/comments/:id", h.DeleteComment)
		w.POST("/posts/:id/likes", h.LikePost)
		w.DELETE("/posts/:id/likes", h.UnlikePost)
		w.POST("/auth/logout", h.Logout)
		w.GET("/auth/events", h.Events)
	}
	return r
}
