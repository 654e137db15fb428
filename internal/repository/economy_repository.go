package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/honeynil/ShopBotLedger/internal/models"
)

// CoinRepository mutates coin balances only through single conditional
// statements; none of its methods read before writing.
type CoinRepository interface {
	Credit(ctx context.Context, userID, amount int64) (int64, error)
	// Debit succeeds only if the balance covers amount.
	Debit(ctx context.Context, userID, amount int64) (newBalance int64, ok bool, err error)
	Get(ctx context.Context, userID int64) (*models.CoinBalance, error)
	// ClaimDaily credits reward and stamps the claim time when the previous
	// claim is older than cutoff.
	ClaimDaily(ctx context.Context, userID, reward int64, now, cutoff time.Time) (bool, error)
	ClaimSpin(ctx context.Context, userID int64, now, cutoff time.Time) (bool, error)
}

type WalletRepository interface {
	Get(ctx context.Context, userID int64) (*models.Wallet, error)
	Credit(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error)
	// Withdraw debits the wallet and records a pending withdraw transaction in
	// one database transaction. ok is false when the balance is insufficient.
	Withdraw(ctx context.Context, userID int64, amount decimal.Decimal, address string) (tx *models.Transaction, ok bool, err error)
}

type ReferralRepository interface {
	// Insert reports false when the referred user already has a referrer.
	Insert(ctx context.Context, referrerID, referredID int64) (bool, error)
	Count(ctx context.Context, referrerID int64) (int, error)
	// ClaimThresholdBonus reports true exactly once per referrer.
	ClaimThresholdBonus(ctx context.Context, referrerID int64) (bool, error)
}

type DiscountRepository interface {
	Create(ctx context.Context, code *models.DiscountCode) error
	Get(ctx context.Context, code string) (*models.DiscountCode, error)
	Use(ctx context.Context, userID int64, code string, now time.Time) (bool, error)
	// Release undoes Use for a code whose order was never created.
	Release(ctx context.Context, userID int64, code string) error
}

type LeaderboardRepository interface {
	Fakes(ctx context.Context) ([]models.LeaderboardEntry, error)
	BumpFake(ctx context.Context, name string, delta int64) error
	Top(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
	CountRicherThan(ctx context.Context, userID int64) (int64, error)
}

type ConfirmationRepository interface {
	Create(ctx context.Context, c *models.Confirmation) error
	ListScheduled(ctx context.Context) ([]models.Confirmation, error)
	ListDue(ctx context.Context, now time.Time) ([]models.Confirmation, error)
	// Claim flips a scheduled entry to fired; only one caller gets true.
	Claim(ctx context.Context, id int64) (bool, error)
	// Release returns a fired entry to scheduled.
	Release(ctx context.Context, id int64) error
}
