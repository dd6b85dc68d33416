package database

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ErrUnsupportedURL = errors.New("unsupported backend url scheme")

// Options 连接池与日志参数
type Options struct {
	LogLevel        logger.LogLevel
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultOptions 与基准测试中的连接池设置保持一致
func DefaultOptions() Options {
	return Options{LogLevel: logger.Warn, MaxOpenConns: 50, MaxIdleConns: 10, ConnMaxLifetime: 30 * time.Minute}
}

// Dialector 根据 url scheme 选择驱动：
//
//	postgres://... / postgresql://...   -> postgres
//	sqlite://path  / file:...            -> sqlite
func Dialector(rawURL string) (gorm.Dialector, error) {
	switch {
	case strings.HasPrefix(rawURL, "postgres://"), strings.HasPrefix(rawURL, "postgresql://"):
		return postgres.Open(rawURL), nil
	case strings.HasPrefix(rawURL, "sqlite://"):
		return sqlite.Open(strings.TrimPrefix(rawURL, "sqlite://")), nil
	case strings.HasPrefix(rawURL, "file:"):
		return sqlite.Open(rawURL), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedURL, rawURL)
	}
}

// Open 打开数据库连接并设置连接池
func Open(rawURL string, opts Options) (*gorm.DB, error) {
	dialector, err := Dialector(rawURL)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(opts.LogLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if db.Dialector.Name() == "sqlite" {
		// sqlite 单写者，避免 database is locked / 内存库按连接隔离
		sqlDB.SetMaxOpenConns(1)
	} else {
		if opts.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
		}
		if opts.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
		}
		if opts.ConnMaxLifetime > 0 {
			sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
		}
	}
	return db, nil
}

// IsPostgres 判断是否可以使用 FOR UPDATE SKIP LOCKED 等 postgres 特性
func IsPostgres(db *gorm.DB) bool {
	return db.Dialector.Name() == "postgres"
}
