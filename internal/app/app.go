// Package app assembles the board from configuration: backend client, session
// manager, services, background workers and the HTTP router.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/gin-board/config"
	"github.com/d60-Lab/gin-board/internal/api"
	"github.com/d60-Lab/gin-board/internal/api/handler"
	"github.com/d60-Lab/gin-board/internal/api/middleware"
	"github.com/d60-Lab/gin-board/internal/auth"
	"github.com/d60-Lab/gin-board/internal/backend"
	"github.com/d60-Lab/gin-board/internal/events"
	"github.com/d60-Lab/gin-board/internal/repository"
	"github.com/d60-Lab/gin-board/internal/service"
	"github.com/d60-Lab/gin-board/internal/session"
	"github.com/d60-Lab/gin-board/pkg/database"
	"github.com/d60-Lab/gin-board/pkg/logger"
)

// Deps 可选的外部依赖；为 nil 时按配置创建
type Deps struct {
	Client    *backend.Client
	Redis     *redis.Client
	Publisher events.Publisher
}

// App 进程级对象图，会话管理器只在这里创建一次
type App struct {
	Config    *config.Config
	Client    *backend.Client
	Redis     *redis.Client
	Sessions  *session.Manager
	Publisher events.Publisher
	Recorder  *service.ViewRecorder
	Relay     *service.OutboxRelay
	Limiter   *middleware.IPRateLimiter
	Router    *gin.Engine

	stops   []func(context.Context) error
	closers []func() error
}

// New 按配置创建所有依赖
func New(cfg *config.Config, deps Deps) (*App, error) {
	a := &App{Config: cfg}

	client := deps.Client
	if client == nil {
		var err error
		client, err = backend.New(cfg.Backend, backend.Options{Database: database.DefaultOptions()})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
	}
	if err := client.Ready(); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	a.Client = client

	a.Redis = deps.Redis
	if a.Redis == nil && cfg.Redis.Addr != "" {
		a.Redis = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		a.closers = append(a.closers, a.Redis.Close)
	}

	a.Publisher = deps.Publisher
	if a.Publisher == nil {
		pub, err := events.Connect(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			_ = a.close()
			return nil, err
		}
		a.Publisher = pub
		a.closers = append(a.closers, func() error { pub.Close(); return nil })
	}

	db := client.DB()
	provider, err := auth.NewProvider(repository.NewAccountRepository(db), cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		_ = a.close()
		return nil, err
	}
	a.Sessions = session.NewManager(provider, a.Redis)

	counter := service.NewViewCounter(repository.NewPostRepository(db), cfg.Board.AtomicViews)
	if cfg.Board.ViewWorkers > 0 {
		a.Recorder = service.NewViewRecorder(counter, cfg.Board.ViewQueue)
	}
	a.Relay = service.NewOutboxRelay(repository.NewOutboxRepository(db), a.Publisher,
		cfg.Board.OutboxWorker, cfg.Board.OutboxClaim, cfg.Board.OutboxPoll)
	a.Limiter = middleware.NewIPRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)

	h := handler.New(handler.Deps{
		Client:       client,
		Sessions:     a.Sessions,
		Posts:        service.NewPostService(client, service.PostServiceOptions{Counter: counter, Recorder: a.Recorder}),
		Comments:     service.NewCommentService(client),
		Likes:        service.NewLikeService(client),
		Accounts:     service.NewAccountService(client, provider, a.Sessions),
		ExportLimit:  cfg.Board.ExportLimit,
		SecureCookie: cfg.Server.Mode == gin.ReleaseMode,
	})
	serviceName := ""
	if cfg.Tracing.Enabled {
		serviceName = cfg.Tracing.ServiceName
	}
	a.Router = api.NewRouter(h, a.Sessions, api.RouterOptions{
		AnonKey:     client.AnonKey(),
		ServiceName: serviceName,
		Limiter:     a.Limiter,
		Swagger:     cfg.Server.Mode != gin.ReleaseMode,
	})
	return a, nil
}

// Start 启动会话订阅与后台 worker
func (a *App) Start(ctx context.Context) error {
	stopSessions, err := a.Sessions.Start(ctx)
	if err != nil {
		return err
	}
	a.stops = append(a.stops, func(context.Context) error { stopSessions(); return nil })

	if a.Recorder != nil {
		a.stops = append(a.stops, a.Recorder.Start(a.Config.Board.ViewWorkers))
	}
	a.stops = append(a.stops, a.Relay.Start())

	done := make(chan struct{})
	go a.Limiter.Run(done)
	a.stops = append(a.stops, func(context.Context) error { close(done); return nil })

	logger.Info("app started",
		zap.Bool("redis", a.Redis != nil),
		zap.Bool("async_views", a.Recorder != nil),
		zap.Bool("atomic_views", a.Config.Board.AtomicViews))
	return nil
}

// Shutdown 逆序停止 worker 并关闭连接
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	for i := len(a.stops) - 1; i >= 0; i-- {
		if err := a.stops[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.stops = nil
	if err := a.close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
