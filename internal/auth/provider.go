package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/d60-Lab/gin-board/internal/model"
	"github.com/d60-Lab/gin-board/internal/repository"
)

var (
	ErrInvalidInput       = errors.New("auth: invalid input")
	ErrEmailTaken         = errors.New("auth: email already registered")
	ErrInvalidCredentials = errors.New("auth: invalid email or password")
	ErrInvalidToken       = errors.New("auth: invalid or expired token")
	ErrMissingSecret      = errors.New("auth: jwt secret is not configured")
)

// User 认证后的身份
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Token 访问令牌
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Claims JWT 载荷，Subject 为账号 id，ID (jti) 用于注销
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type credentials struct {
	Email    string `validate:"required,email,max=255"`
	Password string `validate:"required,min=6,max=72"`
}

// Provider 账号注册、登录与令牌签发
type Provider struct {
	accounts repository.AccountRepository
	secret   []byte
	ttl      time.Duration
	validate *validator.Validate
	now      func() time.Time
}

func NewProvider(accounts repository.AccountRepository, secret string, ttl time.Duration) (*Provider, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Provider{accounts: accounts, secret: []byte(secret), ttl: ttl, validate: validator.New(), now: time.Now}, nil
}

// SignUp 创建账号，返回账号 id
func (p *Provider) SignUp(ctx context.Context, email, password string) (*User, error) {
	email = normalizeEmail(email)
	if err := p.validate.Struct(credentials{Email: email, Password: password}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if _, err := p.accounts.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("auth: lookup account: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}

	now := p.now().UTC()
	acc := &model.Account{ID: uuid.NewString(), Email: email, PasswordHash: string(hash), CreatedAt: now, UpdatedAt: now}
	if err := p.accounts.Create(ctx, acc); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("auth: create account: %w", err)
	}
	return &User{ID: acc.ID, Email: acc.Email}, nil
}

// SignIn 校验口令并签发令牌
func (p *Provider) SignIn(ctx context.Context, email, password string) (*User, *Token, error) {
	acc, err := p.accounts.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("auth: lookup account: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	user := &User{ID: acc.ID, Email: acc.Email}
	tok, err := p.Issue(user)
	if err != nil {
		return nil, nil, err
	}
	return user, tok, nil
}

// Issue 为用户签发 HS256 令牌
func (p *Provider) Issue(user *User) (*Token, error) {
	now := p.now()
	exp := now.Add(p.ttl)
	claims := Claims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return nil, fmt.Errorf("auth: sign token: %w", err)
	}
	return &Token{AccessToken: signed, TokenType: "bearer", ExpiresAt: exp}, nil
}

// Parse 校验签名与有效期
func (p *Provider) Parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
