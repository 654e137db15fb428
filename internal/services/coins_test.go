package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/honeynil/ShopBotLedger/internal/models"
	pkgerrors "github.com/honeynil/ShopBotLedger/pkg/errors"
)

func TestCoinService_AddCoins(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	t.Run("credits and audits", func(t *testing.T) {
		balance, err := env.coins.AddCoins(ctx, 1, 50, models.ReasonAdminGrant)
		require.NoError(t, err)
		assert.Equal(t, int64(50), balance)

		txs := env.store.TransactionsOf(1)
		require.Len(t, txs, 1)
		assert.Equal(t, models.KindCoins, txs[0].Kind)
		assert.Equal(t, string(models.ReasonAdminGrant), txs[0].Reason)
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		_, err := env.coins.AddCoins(ctx, 1, 0, models.ReasonAdminGrant)
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidAmount)
		_, err = env.coins.AddCoins(ctx, 1, -5, models.ReasonAdminGrant)
		assert.ErrorIs(t, err, pkgerrors.ErrValidation)

		coins, err := env.coins.GetCoins(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(50), coins)
	})

	t.Run("unknown user has zero coins", func(t *testing.T) {
		coins, err := env.coins.GetCoins(ctx, 999)
		require.NoError(t, err)
		assert.Zero(t, coins)
	})
}

func TestCoinService_Debit(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	_, err := env.coins.AddCoins(ctx, 1, 100, models.ReasonAdminGrant)
	require.NoError(t, err)

	ok, err := env.coins.debit(ctx, 1, 150, models.ReasonConversion)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = env.coins.debit(ctx, 1, 100, models.ReasonConversion)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = env.coins.debit(ctx, 1, 1, models.ReasonConversion)
	require.NoError(t, err)
	assert.False(t, ok)

	coins, err := env.coins.GetCoins(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, coins)
}

func TestCoinService_ClaimDaily(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	env.coins.now = func() time.Time { return now }

	can, err := env.coins.CanClaimDaily(ctx, 1)
	require.NoError(t, err)
	assert.True(t, can)

	ok, err := env.coins.ClaimDaily(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = env.coins.ClaimDaily(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok, "second claim inside the window")

	can, err = env.coins.CanClaimDaily(ctx, 1)
	require.NoError(t, err)
	assert.False(t, can)

	coins, err := env.coins.GetCoins(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, env.economy.DailyReward, coins)

	now = now.Add(env.economy.DailyWindow + time.Second)
	ok, err = env.coins.ClaimDaily(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	coins, err = env.coins.GetCoins(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2*env.economy.DailyReward, coins)
}

func TestCoinService_ClaimDailyStoreFailure(t *testing.T) {
	env := newTestEnv()
	env.store.FailOn("coins.ClaimDaily", assert.AnError)

	ok, err := env.coins.ClaimDaily(context.Background(), 1)
	assert.False(t, ok)
	assert.ErrorIs(t, err, pkgerrors.ErrPersistence)
}
