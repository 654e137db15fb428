package conversation

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/honeynil/ShopBotLedger/internal/notify"
	service "github.com/honeynil/ShopBotLedger/internal/services"
)

func (m *Machine) showWallet(ctx context.Context, sess *Session, ev Event, match []string) (Outcome, error) {
	coins, err := m.svc.Coins.GetCoins(ctx, ev.UserID)
	if err != nil {
		return Outcome{}, err
	}
	w, err := m.svc.Wallets.GetWallet(ctx, ev.UserID)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{
		Text: fmt.Sprintf("Coins: %d\nWallet: %s\n\nSend \"withdraw <amount> <address>\" to withdraw or \"convert <coins>\" to exchange coins.",
			coins, w.Balance.String()),
		Keyboard: [][]notify.Button{notify.Row(btn("History", BtnHistory), btn("Back", BtnCancel))},
		Next:     StateWalletActions,
	}, nil
}

func (m *Machine) withdraw(ctx context.Context, sess *Session, ev Event, match []string) (Outcome, error) {
	amount, err := decimal.NewFromString(match[1])
	if err != nil {
		return Outcome{Text: "The amount must be a number."}, nil
	}
	tx, ok, err := m.svc.Wallets.Withdraw(ctx, ev.UserID, amount, match[2])
	if err != nil {
		return reject(err)
	}
	if !ok {
		return Outcome{Text: "Your wallet balance is too low for this withdrawal."}, nil
	}
	return Outcome{Text: fmt.Sprintf("Withdrawal #%d of %s to %s is pending.", tx.ID, tx.Amount.String(), tx.Address)}, nil
}

func (m *Machine) convert(ctx context.Context, sess *Session, ev Event, match []string) (Outcome, error) {
	coins, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return Outcome{Text: "The amount must be a whole number."}, nil
	}
	res, ok, err := m.svc.Wallets.Convert(ctx, ev.UserID, coins)
	if err != nil {
		return reject(err)
	}
	if !ok {
		return Outcome{Text: "You do not have enough coins."}, nil
	}
	return Outcome{Text: fmt.Sprintf("Converted %d coins into %s.", res.CoinsDebited, res.CryptoCredited.String())}, nil
}

func (m *Machine) showHistory(ctx context.Context, sess *Session, ev Event, match []string) (Outcome, error) {
	txs, err := m.svc.Wallets.ListTransactions(ctx, ev.UserID, 0)
	if err != nil {
		return Outcome{}, err
	}
	if len(txs) == 0 {
		return Outcome{Text: "No transactions yet."}, nil
	}
	var b strings.Builder
	for _, tx := range txs {
		fmt.Fprintf(&b, "%s %s %s %s %s\n", tx.CreatedAt.Format("2006-01-02"), tx.Kind, tx.Type, tx.Amount.String(), tx.Status)
	}
	return Outcome{Text: b.String()}, nil
}

func (m *Machine) showReferral(ctx context.Context, sess *Session, ev Event, match []string) (Outcome, error) {
	count, err := m.svc.Referrals.ReferralCount(ctx, ev.UserID)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{
		Text:     fmt.Sprintf("Invite friends with: /start ref_%d\nFriends joined: %d", ev.UserID, count),
		Keyboard: [][]notify.Button{notify.Row(btn("Refresh", BtnReferralRefresh), btn("Back", BtnCancel))},
		Next:     StateViewingReferral,
	}, nil
}

func (m *Machine) channelJoined(ctx context.Context, sess *Session, ev Event, match []string) (Outcome, error) {
	added, err := m.svc.Referrals.AddReferral(ctx, sess.Transient.PendingReferrer, ev.UserID)
	if err != nil {
		return Outcome{}, err
	}
	text := "Thanks for joining!"
	if added {
		text += " Your friend received a referral reward."
	}
	return Outcome{Text: text + "\nChoose an action:", Keyboard: mainMenu(), Next: StateEnd}, nil
}

func (m *Machine) channelSkip(ctx context.Context, sess *Session, ev Event, match []string) (Outcome, error) {
	return Outcome{Text: "Choose an action:", Keyboard: mainMenu(), Next: StateEnd}, nil
}

func (m *Machine) claimDaily(ctx context.Context, sess *Session, ev Event, match []string) (Outcome, error) {
	ok, err := m.svc.Coins.ClaimDaily(ctx, ev.UserID)
	if err != nil {
		return Outcome{}, err
	}
	if !ok {
		return Outcome{Text: "You already claimed today's coins. Come back tomorrow.", Keyboard: mainMenu()}, nil
	}
	coins, err := m.svc.Coins.GetCoins(ctx, ev.UserID)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Text: fmt.Sprintf("Daily coins claimed! Balance: %d", coins), Keyboard: mainMenu()}, nil
}

func (m *Machine) promptSpin(ctx context.Context, sess *Session, ev Event, match []string) (Outcome, error) {
	return Outcome{
		Text:     "Spin the wheel once a day for coins or a discount code.",
		Keyboard: [][]notify.Button{notify.Row(btn("Spin!", BtnSpinGo), btn("Back", BtnCancel))},
		Next:     StateSpinningWheel,
	}, nil
}

func (m *Machine) spin(ctx context.Context, sess *Session, ev Event, match []string) (Outcome, error) {
	res, err := m.svc.Spin.Spin(ctx, ev.UserID)
	if err != nil {
		return Outcome{}, err
	}
	var text string
	switch {
	case !res.Spun:
		text = "You already spun the wheel today."
	case res.Prize.Kind == service.PrizeCoins:
		text = fmt.Sprintf("You won %d coins!", res.Prize.Coins)
	case res.Prize.Kind == service.PrizeDiscount && res.Discount != nil:
		text = fmt.Sprintf("You won a %d%% discount code: %s (valid until %s)",
			res.Discount.Percent, res.Discount.Code, res.Discount.ExpiresAt.Format("2006-01-02 15:04"))
	default:
		text = "No luck this time. Try again tomorrow!"
	}
	return Outcome{Text: text, Keyboard: mainMenu(), Next: StateEnd}, nil
}

func (m *Machine) promptAvatar(ctx context.Context, sess *Session, ev Event, match []string) (Outcome, error) {
	var row []notify.Button
	for _, a := range avatars {
		row = append(row, btn(a, avatarPrefix+a))
	}
	return Outcome{Text: "Pick your avatar:", Keyboard: [][]notify.Button{row}, Next: StateSelectingAvatar}, nil
}

func (m *Machine) selectAvatar(ctx context.Context, sess *Session, ev Event, match []string) (Outcome, error) {
	if !slices.Contains(avatars, match[1]) {
		return m.fallback(sess), nil
	}
	if err := m.svc.Accounts.SetAvatar(ctx, ev.UserID, match[1]); err != nil {
		return reject(err)
	}
	return Outcome{Text: "Avatar updated.", Keyboard: mainMenu(), Next: StateEnd}, nil
}

func (m *Machine) showLeaderboard(ctx context.Context, sess *Session, ev Event, match []string) (Outcome, error) {
	top, err := m.svc.Leaderboard.GetLeaderboard(ctx, 10)
	if err != nil {
		return Outcome{}, err
	}
	rank, err := m.svc.Leaderboard.GetRank(ctx, ev.UserID)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Text: service.FormatLeaderboard(top) + fmt.Sprintf("\nYour rank: %d", rank), Keyboard: mainMenu()}, nil
}
