package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is an audit row for any coin or wallet movement. Withdrawals
// stay pending until settled outside the service.
type Transaction struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	Kind      LedgerKind      `json:"kind"`
	Type      TransactionType `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason,omitempty"`
	Address   string          `json:"address,omitempty"`
	Status    StatusType      `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

type LedgerKind string

const (
	KindCoins  LedgerKind = "coins"
	KindWallet LedgerKind = "wallet"
)

type TransactionType string

const (
	TypeCredit   TransactionType = "credit"
	TypeDebit    TransactionType = "debit"
	TypeDeposit  TransactionType = "deposit"
	TypeWithdraw TransactionType = "withdraw"
	TypeConvert  TransactionType = "convert"
	TypeBonus    TransactionType = "bonus"
)

type StatusType string

const (
	StatusPending   StatusType = "pending"
	StatusCompleted StatusType = "completed"
	StatusFailed    StatusType = "failed"
)
