package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/d60-Lab/gin-board/internal/model"
	"github.com/d60-Lab/gin-board/internal/repository"
)

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&model.Account{}))

	p, err := NewProvider(repository.NewAccountRepository(db), "test-secret", time.Hour)
	require.NoError(t, err)
	return p
}

func TestNewProviderRequiresSecret(t *testing.T) {
	_, err := NewProvider(nil, "", time.Hour)
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestSignUpValidation(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	cases := []struct {
		email    string
		password string
		ok       bool
	}{
		{"user@example.com", "secret123", true},
		{"bad", "secret123", false},
		{"other@example.com", "123", false},
		{"", "secret123", false},
	}
	for i, c := range cases {
		_, err := p.SignUp(ctx, c.email, c.password)
		if c.ok {
			assert.NoError(t, err, "case %d", i)
		} else {
			assert.ErrorIs(t, err, ErrInvalidInput, "case %d", i)
		}
	}
}

func TestSignUpDuplicateEmail(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	u, err := p.SignUp(ctx, "User@Example.com", "secret123")
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "user@example.com", u.Email)

	_, err = p.SignUp(ctx, "user@example.com ", "another1")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestSignInAndParse(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	created, err := p.SignUp(ctx, "a@example.com", "secret123")
	require.NoError(t, err)

	_, _, err = p.SignIn(ctx, "a@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = p.SignIn(ctx, "nobody@example.com", "secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	user, tok, err := p.SignIn(ctx, "a@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)
	assert.Equal(t, "bearer", tok.TokenType)

	claims, err := p.Parse(tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, created.ID, claims.Subject)
	assert.NotEmpty(t, claims.ID)

	_, err = p.Parse(tok.AccessToken + "x")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseExpired(t *testing.T) {
	p := newTestProvider(t)
	issued := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return issued }

	tok, err := p.Issue(&User{ID: "u1", Email: "u1@example.com"})
	require.NoError(t, err)

	p.now = func() time.Time { return issued.Add(2 * time.Hour) }
	_, err = p.Parse(tok.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
