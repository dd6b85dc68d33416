package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/d60-Lab/gin-board/internal/model"
)

func setupDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func newPost(author string, at time.Time) *model.Post {
	return &model.Post{ID: uuid.NewString(), UserID: author, Title: "t", Content: "c", CreatedAt: at, UpdatedAt: at}
}

func TestPostRepository_ListOrdering(t *testing.T) {
	db := setupDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	older := newPost("a", base)
	newer := newPost("a", base.Add(time.Minute))
	// 相同创建时间，按 id 升序
	tieA := &model.Post{ID: "00000000-0000-0000-0000-00000000000a", UserID: "b", Title: "x", Content: "y", CreatedAt: base.Add(time.Hour), UpdatedAt: base}
	tieB := &model.Post{ID: "00000000-0000-0000-0000-00000000000b", UserID: "b", Title: "x", Content: "y", CreatedAt: base.Add(time.Hour), UpdatedAt: base}
	for _, p := range []*model.Post{older, tieB, newer, tieA} {
		require.NoError(t, repo.Create(ctx, p))
	}

	list, err := repo.List(ctx)
	require.NoError(t, err)
	got := make([]string, len(list))
	for i, p := range list {
		got[i] = p.ID
	}
	assert.Equal(t, []string{tieA.ID, tieB.ID, newer.ID, older.ID}, got)

	again, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, list, again)

	ids, err := repo.ListIDs(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{tieA.ID, tieB.ID}, ids)
}

func TestPostRepository_OwnershipPredicate(t *testing.T) {
	db := setupDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	p := newPost("owner", time.Now().UTC())
	require.NoError(t, repo.Create(ctx, p))

	n, err := repo.Update(ctx, p.ID, "intruder", "hacked", "hacked", time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = repo.Delete(ctx, p.ID, "intruder")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = repo.Update(ctx, p.ID, "owner", "new", "body", time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", got.Title)

	n, err = repo.Delete(ctx, p.ID, "owner")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = repo.GetByID(ctx, p.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestPostRepository_Views(t *testing.T) {
	db := setupDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	p := newPost("a", time.Now().UTC())
	require.NoError(t, repo.Create(ctx, p))

	require.NoError(t, repo.SetViews(ctx, p.ID, 5))
	require.NoError(t, repo.IncrementViews(ctx, p.ID))
	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 6, got.Views)
	assert.True(t, got.UpdatedAt.Equal(p.UpdatedAt), "view writes must not touch updated_at")

	// 过期的写入不会让计数回退
	require.NoError(t, repo.SetViews(ctx, p.ID, 4))
	got, err = repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 6, got.Views)
}

func TestCommentRepository(t *testing.T) {
	db := setupDB(t)
	repo := NewCommentRepository(db)
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	first := &model.Comment{ID: uuid.NewString(), PostID: "p", UserID: "u1", Content: "first", CreatedAt: base, UpdatedAt: base}
	second := &model.Comment{ID: uuid.NewString(), PostID: "p", UserID: "u2", Content: "second", CreatedAt: base.Add(time.Second), UpdatedAt: base}
	other := &model.Comment{ID: uuid.NewString(), PostID: "q", UserID: "u1", Content: "other", CreatedAt: base, UpdatedAt: base}
	for _, c := range []*model.Comment{second, other, first} {
		require.NoError(t, repo.Create(ctx, c))
	}

	list, err := repo.ListByPost(ctx, "p")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "first", list[0].Content)
	assert.Equal(t, "second", list[1].Content)

	n, err := repo.Delete(ctx, first.ID, "u2")
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, repo.DeleteByPost(ctx, "p"))
	list, err = repo.ListByPost(ctx, "p")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestProfileRepository_ListByIDs(t *testing.T) {
	db := setupDB(t)
	repo := NewProfileRepository(db)
	ctx := context.Background()

	name := "alice"
	require.NoError(t, repo.Create(ctx, &model.Profile{ID: "a", Username: &name}))
	require.NoError(t, repo.Create(ctx, &model.Profile{ID: "b"}))

	res, err := repo.ListByIDs(ctx, []string{"a", "b", "missing"})
	require.NoError(t, err)
	assert.Len(t, res, 2)

	res, err = repo.ListByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, res)

	// id 为主键，不可重复创建
	assert.Error(t, repo.Create(ctx, &model.Profile{ID: "a"}))
}

func TestLikeRepository_Idempotent(t *testing.T) {
	db := setupDB(t)
	repo := NewLikeRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, "p", "u"))
	require.NoError(t, repo.Create(ctx, "p", "u"))
	require.NoError(t, repo.Create(ctx, "p", "v"))

	cnt, err := repo.CountByPost(ctx, "p")
	require.NoError(t, err)
	assert.EqualValues(t, 2, cnt)

	ok, err := repo.Exists(ctx, "p", "u")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, repo.Delete(ctx, "p", "u"))
	ok, err = repo.Exists(ctx, "p", "u")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOutboxRepository_ClaimAndRetry(t *testing.T) {
	db := setupDB(t)
	repo := NewOutboxRepository(db)
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Enqueue(ctx, &model.Outbox{ID: uuid.NewString(), Topic: "post.created", CreatedAt: base.Add(time.Duration(i) * time.Second)}))
	}

	batch, err := repo.Claim(ctx, 2, base, time.Minute)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, model.OutboxProcessing, batch[0].Status)

	pending, err := repo.CountByStatus(ctx, model.OutboxPending)
	require.NoError(t, err)
	assert.EqualValues(t, 1, pending)

	require.NoError(t, repo.MarkDone(ctx, batch[0].ID, time.Now()))
	require.NoError(t, repo.MarkRetry(ctx, batch[1].ID, 1))

	done, err := repo.CountByStatus(ctx, model.OutboxDone)
	require.NoError(t, err)
	assert.EqualValues(t, 1, done)
	failed, err := repo.CountByStatus(ctx, model.OutboxFailed)
	require.NoError(t, err)
	assert.EqualValues(t, 1, failed)
}

func TestOutboxRepository_ClaimLeaseExpiry(t *testing.T) {
	db := setupDB(t)
	repo := NewOutboxRepository(db)
	ctx := context.Background()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Enqueue(ctx, &model.Outbox{ID: uuid.NewString(), Topic: "post.created", CreatedAt: now}))

	batch, err := repo.Claim(ctx, 10, now, time.Minute)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	require.NotNil(t, batch[0].ClaimedAt)

	// 租约内不会被再次领取
	again, err := repo.Claim(ctx, 10, now.Add(30*time.Second), time.Minute)
	require.NoError(t, err)
	assert.Empty(t, again)

	// 租约过期后重新领取，并计一次尝试
	again, err = repo.Claim(ctx, 10, now.Add(2*time.Minute), time.Minute)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, batch[0].ID, again[0].ID)
	assert.Equal(t, 1, again[0].Attempts)

	var stored model.Outbox
	require.NoError(t, db.First(&stored, "id = ?", batch[0].ID).Error)
	assert.Equal(t, model.OutboxProcessing, stored.Status)
	assert.Equal(t, 1, stored.Attempts)
	require.NotNil(t, stored.ClaimedAt)
	assert.True(t, stored.ClaimedAt.Equal(now.Add(2*time.Minute)))
}
