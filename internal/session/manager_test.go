package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/d60-Lab/gin-board/internal/auth"
	"github.com/d60-Lab/gin-board/internal/model"
	"github.com/d60-Lab/gin-board/internal/repository"
)

func newProvider(t *testing.T) *auth.Provider {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&model.Account{}))
	p, err := auth.NewProvider(repository.NewAccountRepository(db), "session-secret", time.Hour)
	require.NoError(t, err)
	return p
}

func newRedisManager(t *testing.T) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	m := NewManager(newProvider(t), rdb)
	stop, err := m.Start(context.Background())
	require.NoError(t, err)
	t.Cleanup(stop)
	return m, mr
}

func TestCurrentAnonymous(t *testing.T) {
	m := NewManager(newProvider(t), nil)
	ctx := context.Background()

	s, err := m.Current(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, StateAnonymous, s.State)
	assert.False(t, s.Authenticated())
	assert.Empty(t, s.UserID())

	s, err = m.Current(ctx, "not-a-jwt")
	require.NoError(t, err)
	assert.Equal(t, StateAnonymous, s.State)
}

func TestSignInSignOutLocal(t *testing.T) {
	p := newProvider(t)
	m := NewManager(p, nil)
	ctx := context.Background()

	u, err := p.SignUp(ctx, "a@example.com", "secret123")
	require.NoError(t, err)

	var events []Event
	unsubscribe := m.Subscribe(u.ID, func(ev Event) { events = append(events, ev) })
	defer unsubscribe()

	s, tok, err := m.SignIn(ctx, "a@example.com", "secret123")
	require.NoError(t, err)
	assert.True(t, s.Authenticated())

	cur, err := m.Current(ctx, tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, cur.State)
	assert.Equal(t, u.ID, cur.UserID())

	require.NoError(t, m.SignOut(ctx, tok.AccessToken))
	cur, err = m.Current(ctx, tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, StateAnonymous, cur.State, "revoked token must not authenticate")

	require.Len(t, events, 2)
	assert.Equal(t, EventSignedIn, events[0].Type)
	assert.Equal(t, EventSignedOut, events[1].Type)
}

func TestSubscribeUnsubscribe(t *testing.T) {
	m := NewManager(newProvider(t), nil)

	calls := 0
	unsubscribe := m.Subscribe("u1", func(Event) { calls++ })
	assert.Equal(t, 1, m.Subscribers("u1"))

	m.dispatch(Event{Type: EventSignedOut, UserID: "u1"})
	m.dispatch(Event{Type: EventSignedOut, UserID: "u2"})
	assert.Equal(t, 1, calls)

	unsubscribe()
	unsubscribe()
	assert.Zero(t, m.Subscribers("u1"))

	m.dispatch(Event{Type: EventSignedOut, UserID: "u1"})
	assert.Equal(t, 1, calls)
}

func TestSignOutAcrossRedis(t *testing.T) {
	m, mr := newRedisManager(t)
	ctx := context.Background()

	u, err := m.provider.SignUp(ctx, "b@example.com", "secret123")
	require.NoError(t, err)
	_, tok, err := m.Establish(ctx, u)
	require.NoError(t, err)

	got := make(chan Event, 4)
	defer m.Subscribe(u.ID, func(ev Event) { got <- ev })()

	require.NoError(t, m.SignOut(ctx, tok.AccessToken))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-got:
			if ev.Type == EventSignedOut {
				assert.Equal(t, u.ID, ev.UserID)
				cur, err := m.Current(ctx, tok.AccessToken)
				require.NoError(t, err)
				assert.Equal(t, StateAnonymous, cur.State)

				keys := mr.Keys()
				require.Len(t, keys, 1)
				assert.Contains(t, keys[0], revokedPrefix)
				return
			}
		case <-deadline:
			t.Fatal("signed-out event not delivered through redis")
		}
	}
}

func TestCurrentUnknownWhenRedisDown(t *testing.T) {
	m, mr := newRedisManager(t)
	ctx := context.Background()

	tok, err := m.provider.Issue(&auth.User{ID: "u1", Email: "u1@example.com"})
	require.NoError(t, err)

	mr.Close()
	s, err := m.Current(ctx, tok.AccessToken)
	assert.Error(t, err)
	assert.Equal(t, StateUnknown, s.State)
}

func TestStateText(t *testing.T) {
	b, err := StateAuthenticated.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "authenticated", string(b))
	assert.Equal(t, "unknown", StateUnknown.String())
}
