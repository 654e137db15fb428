// Package memory is an in-process implementation of the repository
// interfaces. Every conditional update is performed under one lock, giving
// the same claim-once guarantees as the SQL statements.
package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/honeynil/ShopBotLedger/internal/models"
	"github.com/honeynil/ShopBotLedger/internal/repository"
	pkgerrors "github.com/honeynil/ShopBotLedger/pkg/errors"
)

type Store struct {
	mu  sync.Mutex
	now func() time.Time

	users         map[int64]*models.User
	products      map[string]*models.Product
	orders        map[int64]*models.Order
	coins         map[int64]*models.CoinBalance
	wallets       map[int64]decimal.Decimal
	transactions  []models.Transaction
	referrals     map[[2]int64]time.Time
	referred      map[int64]int64
	bonuses       map[int64]bool
	discounts     map[string]*models.DiscountCode
	fakes         map[string]int64
	confirmations map[int64]*models.Confirmation

	nextOrderID int64
	nextTxID    int64
	nextConfID  int64

	failures map[string]error
}

func NewStore() *Store {
	return &Store{
		now:           time.Now,
		users:         make(map[int64]*models.User),
		products:      make(map[string]*models.Product),
		orders:        make(map[int64]*models.Order),
		coins:         make(map[int64]*models.CoinBalance),
		wallets:       make(map[int64]decimal.Decimal),
		referrals:     make(map[[2]int64]time.Time),
		referred:      make(map[int64]int64),
		bonuses:       make(map[int64]bool),
		discounts:     make(map[string]*models.DiscountCode),
		fakes:         make(map[string]int64),
		confirmations: make(map[int64]*models.Confirmation),
		failures:      make(map[string]error),
	}
}

// FailOn makes the named operation (for example "wallets.Credit") return a
// persistence error wrapping err until cleared with a nil err.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// fail must be called with mu held.
func (s *Store) fail(op string) error {
	if err, ok := s.failures[op]; ok {
		return pkgerrors.Persistence(op, err)
	}
	return nil
}

func (s *Store) Users() repository.UserRepository                 { return userRepo{s} }
func (s *Store) Products() repository.ProductRepository           { return productRepo{s} }
func (s *Store) Orders() repository.OrderRepository               { return orderRepo{s} }
func (s *Store) Coins() repository.CoinRepository                 { return coinRepo{s} }
func (s *Store) Wallets() repository.WalletRepository             { return walletRepo{s} }
func (s *Store) Transactions() repository.TransactionRepository   { return txRepo{s} }
func (s *Store) Referrals() repository.ReferralRepository         { return referralRepo{s} }
func (s *Store) Discounts() repository.DiscountRepository         { return discountRepo{s} }
func (s *Store) Leaderboard() repository.LeaderboardRepository    { return boardRepo{s} }
func (s *Store) Confirmations() repository.ConfirmationRepository { return confirmationRepo{s} }

// SeedFake adds a synthetic leaderboard entry.
func (s *Store) SeedFake(name string, coins int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fakes[name] = coins
}

// Transactions of userID, oldest first.
func (s *Store) TransactionsOf(userID int64) []models.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Transaction
	for _, tx := range s.transactions {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	return out
}

func (s *Store) ReferralEdges() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.referrals)
}

func sortOrders(orders []models.Order, newestFirst bool) {
	sort.Slice(orders, func(i, j int) bool {
		if newestFirst {
			return orders[i].ID > orders[j].ID
		}
		return orders[i].ID < orders[j].ID
	})
}
