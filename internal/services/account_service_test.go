package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"

	"github.com/honeynil/ShopBotLedger/internal/infrastructure/auth"
	redismocks "github.com/honeynil/ShopBotLedger/internal/infrastructure/redis/mocks"
	pkgerrors "github.com/honeynil/ShopBotLedger/pkg/errors"
)

func newAccountService(t *testing.T, env *testEnv, adminPassword string) (*AccountService, *redismocks.MockRedisClient) {
	t.Helper()
	ctrl := gomock.NewController(t)
	redisClient := redismocks.NewMockRedisClient(ctrl)
	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.MinCost)
	require.NoError(t, err)
	tokens := auth.NewTokenService("secret", time.Hour)
	return NewAccountService(env.store.Users(), env.coins, redisClient, tokens, testAdminID, string(hash), env.economy), redisClient
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("alice@example.com"))
	assert.NoError(t, ValidateEmail("  Alice@Example.com "))
	for _, bad := range []string{"", "alice", "alice@", "alice@example", "Alice <alice@example.com>"} {
		assert.ErrorIs(t, ValidateEmail(bad), pkgerrors.ErrInvalidEmail, bad)
	}
}

func TestAccountService_Register(t *testing.T) {
	env := newTestEnv()
	svc, _ := newAccountService(t, env, "admin-pass")
	ctx := context.Background()
	require.NoError(t, svc.Touch(ctx, 1, "Alice"))
	require.NoError(t, svc.Touch(ctx, 2, "Bob"))

	t.Run("validation", func(t *testing.T) {
		assert.ErrorIs(t, svc.Register(ctx, 1, "not-an-email", "secret1"), pkgerrors.ErrInvalidEmail)
		assert.ErrorIs(t, svc.Register(ctx, 1, "alice@example.com", "123"), pkgerrors.ErrWeakPassword)

		registered, err := svc.IsRegistered(ctx, 1)
		require.NoError(t, err)
		assert.False(t, registered)
	})

	t.Run("success pays the signup bonus", func(t *testing.T) {
		require.NoError(t, svc.Register(ctx, 1, "Alice@Example.com", "secret1"))

		registered, err := svc.IsRegistered(ctx, 1)
		require.NoError(t, err)
		assert.True(t, registered)

		coins, err := env.coins.GetCoins(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, env.economy.SignupBonus, coins)

		taken, err := svc.EmailTaken(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.True(t, taken)
	})

	t.Run("email already used", func(t *testing.T) {
		err := svc.Register(ctx, 2, "alice@example.com", "secret2")
		assert.ErrorIs(t, err, pkgerrors.ErrEmailExists)

		coins, err := env.coins.GetCoins(ctx, 2)
		require.NoError(t, err)
		assert.Zero(t, coins)
	})
}

func TestAccountService_Login(t *testing.T) {
	env := newTestEnv()
	svc, _ := newAccountService(t, env, "admin-pass")
	ctx := context.Background()
	require.NoError(t, svc.Touch(ctx, 1, "Alice"))
	require.NoError(t, svc.Register(ctx, 1, "alice@example.com", "secret1"))

	ok, err := svc.Login(ctx, 1, "alice@example.com", "secret1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Login(ctx, 1, "alice@example.com", "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.Login(ctx, 2, "alice@example.com", "secret1")
	require.NoError(t, err)
	assert.False(t, ok, "credentials of another account")

	ok, err = svc.Login(ctx, 1, "nobody@example.com", "secret1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAccountService_AdminLogin(t *testing.T) {
	env := newTestEnv()
	svc, redisClient := newAccountService(t, env, "admin-pass")
	ctx := context.Background()

	t.Run("stores the issued token", func(t *testing.T) {
		redisClient.EXPECT().Set(gomock.Any(), auth.AdminTokenKey(testAdminID), gomock.Any(), time.Hour).Return(nil)

		token, err := svc.AdminLogin(ctx, "admin-pass")
		require.NoError(t, err)
		assert.NotEmpty(t, token)
	})

	t.Run("wrong password", func(t *testing.T) {
		token, err := svc.AdminLogin(ctx, "guess")
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidCredentials)
		assert.Empty(t, token)
	})

	t.Run("redis failure", func(t *testing.T) {
		redisClient.EXPECT().Set(gomock.Any(), auth.AdminTokenKey(testAdminID), gomock.Any(), time.Hour).Return(assert.AnError)

		_, err := svc.AdminLogin(ctx, "admin-pass")
		assert.ErrorIs(t, err, assert.AnError)
	})

	assert.True(t, svc.IsAdmin(testAdminID))
	assert.False(t, svc.IsAdmin(1))
}
