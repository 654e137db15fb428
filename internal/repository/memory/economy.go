package memory

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/honeynil/ShopBotLedger/internal/models"
	pkgerrors "github.com/honeynil/ShopBotLedger/pkg/errors"
)

type coinRepo struct{ s *Store }

// balance must be called with mu held.
func (r coinRepo) balance(userID int64) *models.CoinBalance {
	cb, ok := r.s.coins[userID]
	if !ok {
		cb = &models.CoinBalance{UserID: userID}
		r.s.coins[userID] = cb
	}
	return cb
}

func (r coinRepo) Credit(_ context.Context, userID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, pkgerrors.ErrInvalidAmount
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("coins.Credit"); err != nil {
		return 0, err
	}
	cb := r.balance(userID)
	cb.Balance += amount
	return cb.Balance, nil
}

func (r coinRepo) Debit(_ context.Context, userID, amount int64) (int64, bool, error) {
	if amount <= 0 {
		return 0, false, pkgerrors.ErrInvalidAmount
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("coins.Debit"); err != nil {
		return 0, false, err
	}
	cb, ok := r.s.coins[userID]
	if !ok || cb.Balance < amount {
		return 0, false, nil
	}
	cb.Balance -= amount
	return cb.Balance, true, nil
}

func (r coinRepo) Get(_ context.Context, userID int64) (*models.CoinBalance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("coins.Get"); err != nil {
		return nil, err
	}
	cb, ok := r.s.coins[userID]
	if !ok {
		return &models.CoinBalance{UserID: userID}, nil
	}
	cp := *cb
	return &cp, nil
}

func (r coinRepo) ClaimDaily(_ context.Context, userID, reward int64, now, cutoff time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("coins.ClaimDaily"); err != nil {
		return false, err
	}
	cb := r.balance(userID)
	if cb.LastDailyClaim != nil && cb.LastDailyClaim.After(cutoff) {
		return false, nil
	}
	cb.Balance += reward
	cb.LastDailyClaim = &now
	return true, nil
}

func (r coinRepo) ClaimSpin(_ context.Context, userID int64, now, cutoff time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("coins.ClaimSpin"); err != nil {
		return false, err
	}
	cb := r.balance(userID)
	if cb.LastSpin != nil && cb.LastSpin.After(cutoff) {
		return false, nil
	}
	cb.LastSpin = &now
	return true, nil
}

type walletRepo struct{ s *Store }

func (r walletRepo) Get(_ context.Context, userID int64) (*models.Wallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	balance, ok := r.s.wallets[userID]
	if !ok {
		balance = decimal.Zero
	}
	return &models.Wallet{UserID: userID, Balance: balance}, nil
}

func (r walletRepo) Credit(_ context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, pkgerrors.ErrInvalidAmount
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("wallets.Credit"); err != nil {
		return decimal.Zero, err
	}
	balance := r.s.wallets[userID].Add(amount)
	r.s.wallets[userID] = balance
	return balance, nil
}

func (r walletRepo) Withdraw(_ context.Context, userID int64, amount decimal.Decimal, address string) (*models.Transaction, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("wallets.Withdraw"); err != nil {
		return nil, false, err
	}
	balance := r.s.wallets[userID]
	if balance.LessThan(amount) {
		return nil, false, nil
	}
	r.s.wallets[userID] = balance.Sub(amount)
	r.s.nextTxID++
	tx := models.Transaction{
		ID:        r.s.nextTxID,
		UserID:    userID,
		Kind:      models.KindWallet,
		Type:      models.TypeWithdraw,
		Amount:    amount,
		Address:   address,
		Status:    models.StatusPending,
		CreatedAt: r.s.now(),
	}
	r.s.transactions = append(r.s.transactions, tx)
	return &tx, true, nil
}

type txRepo struct{ s *Store }

func (r txRepo) Create(_ context.Context, tx *models.Transaction) (int64, error) {
	if tx == nil || !tx.Amount.IsPositive() {
		return 0, pkgerrors.ErrInvalidInput
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("transactions.Create"); err != nil {
		return 0, err
	}
	r.s.nextTxID++
	tx.ID = r.s.nextTxID
	tx.CreatedAt = r.s.now()
	r.s.transactions = append(r.s.transactions, *tx)
	return tx.ID, nil
}

func (r txRepo) GetByID(_ context.Context, id int64) (*models.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, tx := range r.s.transactions {
		if tx.ID == id {
			cp := tx
			return &cp, nil
		}
	}
	return nil, pkgerrors.ErrNotFound
}

func (r txRepo) ListByUser(_ context.Context, userID int64, limit int) ([]models.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Transaction
	for i := len(r.s.transactions) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if r.s.transactions[i].UserID == userID {
			out = append(out, r.s.transactions[i])
		}
	}
	return out, nil
}

type referralRepo struct{ s *Store }

func (r referralRepo) Insert(_ context.Context, referrerID, referredID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("referrals.Insert"); err != nil {
		return false, err
	}
	if referrerID == referredID {
		return false, nil
	}
	if _, taken := r.s.referred[referredID]; taken {
		return false, nil
	}
	r.s.referrals[[2]int64{referrerID, referredID}] = r.s.now()
	r.s.referred[referredID] = referrerID
	return true, nil
}

func (r referralRepo) Count(_ context.Context, referrerID int64) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for edge := range r.s.referrals {
		if edge[0] == referrerID {
			n++
		}
	}
	return n, nil
}

func (r referralRepo) ClaimThresholdBonus(_ context.Context, referrerID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.bonuses[referrerID] {
		return false, nil
	}
	r.s.bonuses[referrerID] = true
	return true, nil
}

type discountRepo struct{ s *Store }

func (r discountRepo) Create(_ context.Context, code *models.DiscountCode) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.discounts[code.Code]; exists {
		return pkgerrors.ErrAlreadyProcessed
	}
	cp := *code
	r.s.discounts[code.Code] = &cp
	return nil
}

func (r discountRepo) Get(_ context.Context, code string) (*models.DiscountCode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	dc, ok := r.s.discounts[code]
	if !ok {
		return nil, pkgerrors.ErrCodeNotFound
	}
	cp := *dc
	return &cp, nil
}

func (r discountRepo) Use(_ context.Context, userID int64, code string, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("discounts.Use"); err != nil {
		return false, err
	}
	dc, ok := r.s.discounts[code]
	if !ok || dc.UserID != userID || dc.Used || !now.Before(dc.ExpiresAt) {
		return false, nil
	}
	dc.Used = true
	dc.UsedAt = &now
	return true, nil
}

func (r discountRepo) Release(_ context.Context, userID int64, code string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("discounts.Release"); err != nil {
		return err
	}
	if dc, ok := r.s.discounts[code]; ok && dc.UserID == userID {
		dc.Used = false
		dc.UsedAt = nil
	}
	return nil
}

type boardRepo struct{ s *Store }

func (r boardRepo) Fakes(_ context.Context) ([]models.LeaderboardEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.LeaderboardEntry
	for name, coins := range r.s.fakes {
		out = append(out, models.LeaderboardEntry{Name: name, Coins: coins, Fake: true})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r boardRepo) BumpFake(_ context.Context, name string, delta int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.fakes[name]; ok {
		r.s.fakes[name] += delta
	}
	return nil
}

func (r boardRepo) Top(_ context.Context, limit int) ([]models.LeaderboardEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("leaderboard.Top"); err != nil {
		return nil, err
	}
	var out []models.LeaderboardEntry
	for name, coins := range r.s.fakes {
		out = append(out, models.LeaderboardEntry{Name: name, Coins: coins, Fake: true})
	}
	for id, cb := range r.s.coins {
		name := "user"
		if u, ok := r.s.users[id]; ok && u.DisplayName != "" {
			name = u.DisplayName
		}
		out = append(out, models.LeaderboardEntry{Name: name, UserID: id, Coins: cb.Balance})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Coins != out[j].Coins {
			return out[i].Coins > out[j].Coins
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r boardRepo) CountRicherThan(_ context.Context, userID int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var mine int64
	if cb, ok := r.s.coins[userID]; ok {
		mine = cb.Balance
	}
	var n int64
	for _, cb := range r.s.coins {
		if cb.Balance > mine {
			n++
		}
	}
	return n, nil
}

type confirmationRepo struct{ s *Store }

func (r confirmationRepo) Create(_ context.Context, c *models.Confirmation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("confirmations.Create"); err != nil {
		return err
	}
	for _, existing := range r.s.confirmations {
		if existing.OrderID == c.OrderID {
			*c = *existing
			return nil
		}
	}
	r.s.nextConfID++
	c.ID = r.s.nextConfID
	c.Status = models.ConfirmationScheduled
	c.CreatedAt = r.s.now()
	cp := *c
	r.s.confirmations[c.ID] = &cp
	return nil
}

func (r confirmationRepo) ListScheduled(ctx context.Context) ([]models.Confirmation, error) {
	return r.list(func(c *models.Confirmation) bool { return c.Status == models.ConfirmationScheduled }), nil
}

func (r confirmationRepo) ListDue(_ context.Context, now time.Time) ([]models.Confirmation, error) {
	return r.list(func(c *models.Confirmation) bool {
		return c.Status == models.ConfirmationScheduled && !c.DueAt.After(now)
	}), nil
}

func (r confirmationRepo) list(keep func(*models.Confirmation) bool) []models.Confirmation {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Confirmation
	for _, c := range r.s.confirmations {
		if keep(c) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueAt.Before(out[j].DueAt) })
	return out
}

func (r confirmationRepo) Claim(_ context.Context, id int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("confirmations.Claim"); err != nil {
		return false, err
	}
	c, ok := r.s.confirmations[id]
	if !ok || c.Status != models.ConfirmationScheduled {
		return false, nil
	}
	c.Status = models.ConfirmationFired
	return true, nil
}

func (r confirmationRepo) Release(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("confirmations.Release"); err != nil {
		return err
	}
	if c, ok := r.s.confirmations[id]; ok && c.Status == models.ConfirmationFired {
		c.Status = models.ConfirmationScheduled
	}
	return nil
}
