package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatportal-backend/internal/auth"
	"chatportal-backend/internal/config"
	"chatportal-backend/internal/store/memory"
)

func TestSignupAndLogin(t *testing.T) {
	cfg := &config.Config{JWTSecret: "test-secret", TokenExpiration: time.Hour}
	svc := NewAuthService(memory.New(), cfg)
	ctx := context.Background()

	user, err := svc.Signup(ctx, "  Ada@Example.com ", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)

	_, err = svc.Signup(ctx, "ada@example.com", "another password")
	assert.ErrorIs(t, err, ErrUserAlreadyExists)

	token, got, err := svc.Login(ctx, "ADA@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	claims, err := auth.ParseAccessToken(token, cfg.JWTSecret)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)

	_, _, err = svc.Login(ctx, "ada@example.com", "wrong password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, "nobody@example.com", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSignupValidation(t *testing.T) {
	svc := NewAuthService(memory.New(), &config.Config{JWTSecret: "s", TokenExpiration: time.Hour})
	ctx := context.Background()

	for _, tc := range []struct{ email, password string }{
		{"", "long enough"},
		{"not-an-email", "long enough"},
		{"a@example.com", "short"},
	} {
		_, err := svc.Signup(ctx, tc.email, tc.password)
		assert.ErrorIs(t, err, ErrValidation, "email=%q", tc.email)
	}
}
