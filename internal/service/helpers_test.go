package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"

	"github.com/d60-Lab/gin-board/config"
	"github.com/d60-Lab/gin-board/internal/backend"
	"github.com/d60-Lab/gin-board/internal/model"
	"github.com/d60-Lab/gin-board/pkg/database"
)

func newClient(t *testing.T) *backend.Client {
	t.Helper()
	opts := database.DefaultOptions()
	opts.LogLevel = gormlogger.Silent
	db, err := database.Open("sqlite://:memory:", opts)
	require.NoError(t, err)
	c := backend.NewWithDB(db, "anon")
	require.NoError(t, c.Migrate(context.Background()))
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func placeholderClient(t *testing.T) *backend.Client {
	t.Helper()
	c, err := backend.New(config.BackendConfig{}, backend.Options{BuildMode: true})
	require.NoError(t, err)
	require.True(t, c.Placeholder())
	return c
}

func seedProfile(t *testing.T, c *backend.Client, id, username string) {
	t.Helper()
	p := &model.Profile{ID: id}
	if username != "" {
		p.Username = &username
	}
	require.NoError(t, c.DB().Create(p).Error)
}

func seedPost(t *testing.T, c *backend.Client, id, author string, at time.Time) *model.Post {
	t.Helper()
	p := &model.Post{ID: id, UserID: author, Title: "title " + id, Content: "body", CreatedAt: at, UpdatedAt: at}
	require.NoError(t, c.DB().Create(p).Error)
	return p
}

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func countRows(t *testing.T, c *backend.Client, m any, where string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, c.DB().Model(m).Where(where, args...).Count(&n).Error)
	return n
}
