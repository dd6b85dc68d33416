package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/gin-board/internal/auth"
	"github.com/d60-Lab/gin-board/internal/backend"
	"github.com/d60-Lab/gin-board/internal/model"
	"github.com/d60-Lab/gin-board/internal/repository"
	"github.com/d60-Lab/gin-board/internal/session"
	"github.com/d60-Lab/gin-board/pkg/logger"
)

// UsernameMaxLen 与 profiles.username 列宽一致
const UsernameMaxLen = 64

type SignUpInput struct {
	Email    string
	Password string
	Username string
}

// SignUpResult 注册成功后的会话与资料
type SignUpResult struct {
	Session session.Session `json:"session"`
	Token   *auth.Token     `json:"token"`
	Profile *model.Profile  `json:"profile"`
}

// AccountService 注册与资料
type AccountService interface {
	// SignUp 先建账号再写资料。两步之间没有事务：资料写入失败时账号保留，
	// 返回 ErrProfileNotCreated 且不签发会话
	SignUp(ctx context.Context, in SignUpInput) (*SignUpResult, error)
	GetProfile(ctx context.Context, id string) (*model.Profile, error)
	CreateProfile(ctx context.Context, id string, username *string) (*model.Profile, error)
}

type accountService struct {
	client   *backend.Client
	provider *auth.Provider
	sessions *session.Manager
	profiles repository.ProfileRepository
	now      func() time.Time
}

func NewAccountService(client *backend.Client, provider *auth.Provider, sessions *session.Manager) AccountService {
	return &accountService{
		client:   client,
		provider: provider,
		sessions: sessions,
		profiles: repository.NewProfileRepository(client.DB()),
		now:      time.Now,
	}
}

func (s *accountService) SignUp(ctx context.Context, in SignUpInput) (*SignUpResult, error) {
	username := strings.TrimSpace(in.Username)
	if utf8.RuneCountInString(username) > UsernameMaxLen {
		return nil, fmt.Errorf("%w: username longer than %d", ErrInvalidInput, UsernameMaxLen)
	}
	if err := s.client.Ready(); err != nil {
		return nil, err
	}
	user, err := s.provider.SignUp(ctx, in.Email, in.Password)
	if err != nil {
		return nil, err
	}

	var name *string
	if username != "" {
		name = &username
	}
	profile, err := s.CreateProfile(ctx, user.ID, name)
	if err != nil {
		logger.Error("profile insert failed after account creation", zap.String("user_id", user.ID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrProfileNotCreated, err)
	}

	sess, tok, err := s.sessions.Establish(ctx, user)
	if err != nil {
		return nil, err
	}
	return &SignUpResult{Session: sess, Token: tok, Profile: profile}, nil
}

func (s *accountService) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	if err := s.client.Ready(); err != nil {
		return nil, err
	}
	p, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		return nil, requestErr("select profile", err)
	}
	return p, nil
}

func (s *accountService) CreateProfile(ctx context.Context, id string, username *string) (*model.Profile, error) {
	if id == "" {
		return nil, ErrUnauthenticated
	}
	if err := s.client.Ready(); err != nil {
		return nil, err
	}
	if _, err := s.profiles.GetByID(ctx, id); err == nil {
		return nil, fmt.Errorf("%w: profile already exists", ErrInvalidInput)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, backend.Wrap("select profile", err)
	}
	now := s.now().UTC()
	p := &model.Profile{ID: id, Username: username, CreatedAt: now, UpdatedAt: now}
	if err := s.profiles.Create(ctx, p); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: profile already exists", ErrInvalidInput)
		}
		return nil, backend.Wrap("insert profile", err)
	}
	return p, nil
}
