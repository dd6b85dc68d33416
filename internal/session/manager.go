// Package session owns the process-wide view of who is signed in.
//
// One Manager is built at the application root and passed explicitly to every
// consumer. Consumers that care about session changes call Subscribe when they
// start and the returned function when they stop; notifications fan out across
// instances through a redis channel when redis is configured.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/gin-board/internal/auth"
	"github.com/d60-Lab/gin-board/pkg/logger"
	"github.com/d60-Lab/gin-board/pkg/metrics"
)

// State 会话状态
type State int

const (
	// StateUnknown 查询未能完成（例如吊销表不可达）
	StateUnknown State = iota
	StateAnonymous
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Session 一次查询得到的会话快照，不应跨请求复用
type Session struct {
	State     State      `json:"state"`
	User      *auth.User `json:"user,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (s Session) Authenticated() bool { return s.State == StateAuthenticated && s.User != nil }

// UserID 匿名时返回空串
func (s Session) UserID() string {
	if s.User == nil {
		return ""
	}
	return s.User.ID
}

// EventType 会话变更类型
type EventType string

const (
	EventSignedIn  EventType = "SIGNED_IN"
	EventSignedOut EventType = "SIGNED_OUT"
)

type Event struct {
	Type   EventType `json:"type"`
	UserID string    `json:"user_id"`
	At     time.Time `json:"at"`
}

const (
	DefaultChannel = "board:session:events"
	revokedPrefix  = "board:session:revoked:"
)

// Manager 会话查询、登录/注销与变更通知
type Manager struct {
	provider *auth.Provider
	rdb      *redis.Client
	channel  string
	now      func() time.Time

	mu      sync.RWMutex
	subs    map[string]map[uint64]func(Event)
	nextID  uint64
	revoked map[string]time.Time // redis 未配置时的本地吊销表
}

// NewManager rdb 可为 nil，此时吊销与通知只在进程内生效
func NewManager(provider *auth.Provider, rdb *redis.Client) *Manager {
	return &Manager{
		provider: provider,
		rdb:      rdb,
		channel:  DefaultChannel,
		now:      time.Now,
		subs:     make(map[string]map[uint64]func(Event)),
		revoked:  make(map[string]time.Time),
	}
}

// Start 订阅 redis 通知频道；返回停止函数
func (m *Manager) Start(ctx context.Context) (func(), error) {
	if m.rdb == nil {
		return func() {}, nil
	}
	ps := m.rdb.Subscribe(ctx, m.channel)
	// 等待订阅确认，确保之后发布的事件不会丢
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("session: subscribe %s: %w", m.channel, err)
	}
	ch := ps.Channel()
	go func() {
		for msg := range ch {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				logger.Warn("session: drop malformed event", zap.Error(err))
				continue
			}
			m.dispatch(ev)
		}
	}()
	return func() { _ = ps.Close() }, nil
}

// Current 解析令牌并检查吊销；空令牌或无效令牌视为匿名
func (m *Manager) Current(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{State: StateAnonymous}, nil
	}
	claims, err := m.provider.Parse(token)
	if err != nil {
		return Session{State: StateAnonymous}, nil
	}
	revoked, err := m.isRevoked(ctx, claims.ID)
	if err != nil {
		return Session{State: StateUnknown}, err
	}
	if revoked {
		return Session{State: StateAnonymous}, nil
	}
	exp := claims.ExpiresAt.Time
	return Session{
		State:     StateAuthenticated,
		User:      &auth.User{ID: claims.Subject, Email: claims.Email},
		ExpiresAt: &exp,
	}, nil
}

// SignIn 登录并通知订阅者
func (m *Manager) SignIn(ctx context.Context, email, password string) (Session, *auth.Token, error) {
	user, tok, err := m.provider.SignIn(ctx, email, password)
	if err != nil {
		return Session{State: StateAnonymous}, nil, err
	}
	m.publish(ctx, Event{Type: EventSignedIn, UserID: user.ID, At: m.now().UTC()})
	exp := tok.ExpiresAt
	return Session{State: StateAuthenticated, User: user, ExpiresAt: &exp}, tok, nil
}

// Establish 为刚注册的账号签发令牌
func (m *Manager) Establish(ctx context.Context, user *auth.User) (Session, *auth.Token, error) {
	tok, err := m.provider.Issue(user)
	if err != nil {
		return Session{State: StateAnonymous}, nil, err
	}
	m.publish(ctx, Event{Type: EventSignedIn, UserID: user.ID, At: m.now().UTC()})
	exp := tok.ExpiresAt
	return Session{State: StateAuthenticated, User: user, ExpiresAt: &exp}, tok, nil
}

// SignOut 吊销令牌直到其自然过期，并通知订阅者
func (m *Manager) SignOut(ctx context.Context, token string) error {
	claims, err := m.provider.Parse(token)
	if err != nil {
		return err
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		ttl = time.Second
	}
	if err := m.revoke(ctx, claims.ID, ttl); err != nil {
		return err
	}
	m.publish(ctx, Event{Type: EventSignedOut, UserID: claims.Subject, At: m.now().UTC()})
	return nil
}

// Subscribe 注册某账号的会话变更回调，返回取消订阅函数（可重复调用）
func (m *Manager) Subscribe(userID string, fn func(Event)) func() {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	if m.subs[userID] == nil {
		m.subs[userID] = make(map[uint64]func(Event))
	}
	m.subs[userID][id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subs[userID], id)
			if len(m.subs[userID]) == 0 {
				delete(m.subs, userID)
			}
		})
	}
}

// Subscribers 当前订阅数（采样值）
func (m *Manager) Subscribers(userID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs[userID])
}

func (m *Manager) publish(ctx context.Context, ev Event) {
	metrics.SessionEvents.WithLabelValues(string(ev.Type)).Inc()
	if m.rdb == nil {
		m.dispatch(ev)
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := m.rdb.Publish(ctx, m.channel, payload).Err(); err != nil {
		logger.Warn("session: publish event failed, delivering locally", zap.Error(err))
		m.dispatch(ev)
	}
}

func (m *Manager) dispatch(ev Event) {
	m.mu.RLock()
	fns := make([]func(Event), 0, len(m.subs[ev.UserID]))
	for _, fn := range m.subs[ev.UserID] {
		fns = append(fns, fn)
	}
	m.mu.RUnlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (m *Manager) revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if m.rdb == nil {
		m.mu.Lock()
		m.revoked[jti] = m.now().Add(ttl)
		m.mu.Unlock()
		return nil
	}
	return m.rdb.Set(ctx, revokedPrefix+jti, 1, ttl).Err()
}

func (m *Manager) isRevoked(ctx context.Context, jti string) (bool, error) {
	if m.rdb == nil {
		m.mu.Lock()
		defer m.mu.Unlock()
		until, ok := m.revoked[jti]
		if ok && m.now().After(until) {
			delete(m.revoked, jti)
			return false, nil
		}
		return ok, nil
	}
	err := m.rdb.Get(ctx, revokedPrefix+jti).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("session: check revocation: %w", err)
	}
	return true, nil
}
