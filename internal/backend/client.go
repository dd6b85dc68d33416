// Package backend builds the single configured handle to the hosted data store.
//
// Configuration failures follow one policy: interactive processes (the API
// server, migrations) fail fast with a *ConfigError; only an explicit build mode
// (the static export command) substitutes a placeholder client, whose data calls
// all fail with ErrPlaceholderClient. There are no fallback credentials.
package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/gin-board/config"
	"github.com/d60-Lab/gin-board/internal/model"
	"github.com/d60-Lab/gin-board/pkg/database"
	"github.com/d60-Lab/gin-board/pkg/logger"
)

const (
	PlaceholderURL = "placeholder://backend.invalid"
	PlaceholderKey = "placeholder-key"

	EnvURL     = "BOARD_BACKEND_URL"
	EnvAnonKey = "BOARD_BACKEND_ANON_KEY"
)

var (
	ErrConfig            = errors.New("backend: missing configuration")
	ErrPlaceholderClient = errors.New("backend: placeholder client cannot serve requests")
)

// ConfigError lists the required settings that were absent.
type ConfigError struct {
	Missing []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("backend: missing configuration %s (set %s and %s)",
		strings.Join(e.Missing, ", "), EnvURL, EnvAnonKey)
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

// Options 控制客户端构建
type Options struct {
	// BuildMode selects the placeholder path when configuration is absent.
	BuildMode bool
	Database  database.Options
}

// Client 托管后端句柄
type Client struct {
	url         string
	anonKey     string
	db          *gorm.DB
	placeholder bool
}

// New 唯一的凭据装配点
func New(cfg config.BackendConfig, opts Options) (*Client, error) {
	var missing []string
	if strings.TrimSpace(cfg.URL) == "" {
		missing = append(missing, "backend.url")
	}
	if strings.TrimSpace(cfg.AnonKey) == "" {
		missing = append(missing, "backend.anon_key")
	}
	if len(missing) > 0 {
		if opts.BuildMode || cfg.BuildMode {
			logger.Warn("backend configuration missing, using placeholder client", zap.Strings("missing", missing))
			return &Client{url: PlaceholderURL, anonKey: PlaceholderKey, placeholder: true}, nil
		}
		return nil, &ConfigError{Missing: missing}
	}

	db, err := database.Open(cfg.URL, opts.Database)
	if err != nil {
		return nil, fmt.Errorf("backend: %w", err)
	}
	return &Client{url: cfg.URL, anonKey: cfg.AnonKey, db: db}, nil
}

// NewWithDB 使用已打开的连接构建客户端（测试、基准）
func NewWithDB(db *gorm.DB, anonKey string) *Client {
	return &Client{url: db.Dialector.Name(), anonKey: anonKey, db: db}
}

// DB 返回底层连接；占位客户端返回 nil，调用方应先检查 Ready
func (c *Client) DB() *gorm.DB { return c.db }

func (c *Client) AnonKey() string { return c.anonKey }

func (c *Client) URL() string { return c.url }

func (c *Client) Placeholder() bool { return c.placeholder }

// Ready 占位客户端返回 ErrPlaceholderClient
func (c *Client) Ready() error {
	if c.placeholder || c.db == nil {
		return ErrPlaceholderClient
	}
	return nil
}

// Ping 检查连通性
func (c *Client) Ping(ctx context.Context) error {
	if err := c.Ready(); err != nil {
		return err
	}
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Migrate 创建/更新所有表
func (c *Client) Migrate(ctx context.Context) error {
	if err := c.Ready(); err != nil {
		return err
	}
	if err := c.db.WithContext(ctx).AutoMigrate(model.All()...); err != nil {
		return fmt.Errorf("backend: migrate: %w", err)
	}
	return nil
}

// Close 关闭连接
func (c *Client) Close() error {
	if c.db == nil {
		return nil
	}
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
