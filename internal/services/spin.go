package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/honeynil/ShopBotLedger/internal/config"
	"github.com/honeynil/ShopBotLedger/internal/models"
	"github.com/honeynil/ShopBotLedger/internal/repository"
)

type PrizeKind string

const (
	PrizeCoins    PrizeKind = "coins"
	PrizeDiscount PrizeKind = "discount"
	PrizeNothing  PrizeKind = "nothing"
)

type Prize struct {
	Kind   PrizeKind
	Coins  int64
	Weight int
}

// DefaultPrizes is the wheel layout; weights are relative.
var DefaultPrizes = []Prize{
	{Kind: PrizeCoins, Coins: 5, Weight: 30},
	{Kind: PrizeCoins, Coins: 10, Weight: 25},
	{Kind: PrizeCoins, Coins: 25, Weight: 12},
	{Kind: PrizeCoins, Coins: 50, Weight: 5},
	{Kind: PrizeDiscount, Weight: 8},
	{Kind: PrizeNothing, Weight: 20},
}

type SpinResult struct {
	Spun     bool
	Prize    Prize
	Discount *models.DiscountCode
}

type SpinService struct {
	coinRepo  repository.CoinRepository
	coins     *CoinService
	discounts *DiscountService
	economy   config.Economy
	prizes    []Prize
	now       func() time.Time
	rng       Intner
}

func NewSpinService(coinRepo repository.CoinRepository, coins *CoinService, discounts *DiscountService, economy config.Economy, rng Intner) *SpinService {
	return &SpinService{
		coinRepo:  coinRepo,
		coins:     coins,
		discounts: discounts,
		economy:   economy,
		prizes:    DefaultPrizes,
		now:       time.Now,
		rng:       rng,
	}
}

// Spin draws one prize per window. Spun is false when the user already spun
// within the window; the last_spin stamp is the claim token.
func (s *SpinService) Spin(ctx context.Context, userID int64) (SpinResult, error) {
	now := s.now()
	ok, err := s.coinRepo.ClaimSpin(ctx, userID, now, now.Add(-s.economy.SpinWindow))
	if err != nil || !ok {
		return SpinResult{}, err
	}

	res := SpinResult{Spun: true, Prize: s.draw()}
	switch res.Prize.Kind {
	case PrizeCoins:
		if _, err := s.coins.AddCoins(ctx, userID, res.Prize.Coins, models.ReasonSpinPrize); err != nil {
			return res, err
		}
	case PrizeDiscount:
		code, err := s.discounts.GenerateCode(ctx, userID, s.economy.DiscountPercent)
		if err != nil {
			return res, err
		}
		res.Discount = code
	}
	slog.Info("wheel spun", "user_id", userID, "prize", res.Prize.Kind, "coins", res.Prize.Coins)
	return res, nil
}

func (s *SpinService) draw() Prize {
	total := 0
	for _, p := range s.prizes {
		total += p.Weight
	}
	if total <= 0 {
		return Prize{Kind: PrizeNothing}
	}

	n := s.rng.Intn(total)

	for _, p := range s.prizes {
		if n < p.Weight {
			return p
		}
		n -= p.Weight
	}
	return Prize{Kind: PrizeNothing}
}
