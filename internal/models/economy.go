package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CoinReason names why a coin balance moved.
type CoinReason string

const (
	ReasonPurchaseReward   CoinReason = "purchase_reward"
	ReasonSignupBonus      CoinReason = "signup_bonus"
	ReasonDailyLogin       CoinReason = "daily_login"
	ReasonReferralBonus    CoinReason = "referral_bonus"
	ReasonWithdrawalRebate CoinReason = "withdrawal_rebate"
	ReasonSpinPrize        CoinReason = "spin_prize"
	ReasonAdminGrant       CoinReason = "admin_grant"
	ReasonConversion       CoinReason = "conversion"
	ReasonConversionRefund CoinReason = "conversion_refund"
)

type CoinBalance struct {
	UserID         int64
	Balance        int64
	LastDailyClaim *time.Time
	LastSpin       *time.Time
}

type Wallet struct {
	UserID  int64           `json:"user_id"`
	Balance decimal.Decimal `json:"balance"`
}

type Referral struct {
	ReferrerID int64
	ReferredID int64
	CreatedAt  time.Time
}

type DiscountCode struct {
	Code      string
	UserID    int64
	Percent   int
	ExpiresAt time.Time
	Used      bool
	UsedAt    *time.Time
}

type LeaderboardEntry struct {
	Name   string `json:"name"`
	UserID int64  `json:"user_id,omitempty"`
	Coins  int64  `json:"coins"`
	Fake   bool   `json:"-"`
}

type ConversionResult struct {
	CoinsDebited   int64
	CryptoCredited decimal.Decimal
}

// Confirmation is a durable deferred auto-confirmation entry.
type Confirmation struct {
	ID         int64
	OrderID    int64
	PaymentRef string
	DueAt      time.Time
	Status     ConfirmationStatus
	CreatedAt  time.Time
}

type ConfirmationStatus string

const (
	ConfirmationScheduled ConfirmationStatus = "scheduled"
	ConfirmationFired     ConfirmationStatus = "fired"
)
