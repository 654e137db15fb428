package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpinService_OncePerWindow(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	svc := NewSpinService(env.store.Coins(), env.coins, env.discounts, env.economy, newRand())
	svc.now = func() time.Time { return now }
	svc.prizes = []Prize{{Kind: PrizeCoins, Coins: 25, Weight: 1}}

	res, err := svc.Spin(ctx, 1)
	require.NoError(t, err)
	assert.True(t, res.Spun)
	assert.Equal(t, int64(25), res.Prize.Coins)

	res, err = svc.Spin(ctx, 1)
	require.NoError(t, err)
	assert.False(t, res.Spun)

	coins, err := env.coins.GetCoins(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(25), coins)

	now = now.Add(env.economy.SpinWindow + time.Minute)
	res, err = svc.Spin(ctx, 1)
	require.NoError(t, err)
	assert.True(t, res.Spun)
}

func TestSpinService_DiscountPrize(t *testing.T) {
	env := newTestEnv()
	svc := NewSpinService(env.store.Coins(), env.coins, env.discounts, env.economy, newRand())
	svc.prizes = []Prize{{Kind: PrizeDiscount, Weight: 1}}

	res, err := svc.Spin(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, res.Discount)
	assert.True(t, strings.HasPrefix(res.Discount.Code, DiscountPrefix))
	assert.Equal(t, int64(1), res.Discount.UserID)
}

func TestSpinService_DrawRespectsWeights(t *testing.T) {
	env := newTestEnv()
	svc := NewSpinService(env.store.Coins(), env.coins, env.discounts, env.economy, newRand())
	svc.prizes = []Prize{
		{Kind: PrizeNothing, Weight: 0},
		{Kind: PrizeCoins, Coins: 5, Weight: 1},
	}
	for i := 0; i < 50; i++ {
		assert.Equal(t, PrizeCoins, svc.draw().Kind)
	}
	for _, p := range DefaultPrizes {
		assert.Positive(t, p.Weight)
	}
}
