package conversation

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/honeynil/ShopBotLedger/internal/config"
	"github.com/honeynil/ShopBotLedger/internal/models"
	"github.com/honeynil/ShopBotLedger/internal/notify"
	notifymocks "github.com/honeynil/ShopBotLedger/internal/notify/mocks"
	"github.com/honeynil/ShopBotLedger/internal/repository/memory"
	service "github.com/honeynil/ShopBotLedger/internal/services"
	pkgerrors "github.com/honeynil/ShopBotLedger/pkg/errors"
)

const (
	adminID = int64(7)
	userID  = int64(1)
)

type memSessions struct {
	mu       sync.Mutex
	sessions map[int64]Session
	seen     map[string]bool
	saveErr  error
}

func newMemSessions() *memSessions {
	return &memSessions{sessions: make(map[int64]Session), seen: make(map[string]bool)}
}

func (s *memSessions) Load(_ context.Context, id int64) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return newSession(id), nil
	}
	return &sess, nil
}

func (s *memSessions) Save(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return pkgerrors.Persistence("save session", s.saveErr)
	}
	s.sessions[sess.UserID] = *sess
	return nil
}

func (s *memSessions) MarkEvent(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "" {
		return true, nil
	}
	if s.seen[id] {
		return false, nil
	}
	s.seen[id] = true
	return true, nil
}

func (s *memSessions) get(id int64) Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[id]
}

func (s *memSessions) put(sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.UserID] = sess
}

type recordingScheduler struct {
	mu     sync.Mutex
	orders []*models.Order
}

func (r *recordingScheduler) Schedule(_ context.Context, o *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = append(r.orders, o)
	return nil
}

type machineEnv struct {
	store     *memory.Store
	sessions  *memSessions
	scheduler *recordingScheduler
	svc       Services
	machine   *Machine
	sent      *[]notify.Notification
}

func newMachineEnv(t *testing.T, opts Options) *machineEnv {
	t.Helper()
	ctrl := gomock.NewController(t)
	notifier := notifymocks.NewMockNotifier(ctrl)
	var (
		mu   sync.Mutex
		sent []notify.Notification
	)
	notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, n notify.Notification) error {
		mu.Lock()
		defer mu.Unlock()
		sent = append(sent, n)
		return nil
	}).AnyTimes()

	store := memory.NewStore()
	economy := config.DefaultEconomy()
	coins := service.NewCoinService(store.Coins(), store.Transactions(), economy)
	wallets := service.NewWalletService(store.Wallets(), store.Transactions(), coins, economy)
	discounts := service.NewDiscountService(store.Discounts(), economy)
	catalog := service.NewCatalogService(store.Products())
	require.NoError(t, catalog.Seed(context.Background(), config.DefaultProducts()))

	svc := Services{
		Accounts:    service.NewAccountService(store.Users(), coins, nil, nil, adminID, "", economy),
		Catalog:     catalog,
		Orders:      service.NewOrderService(store.Orders(), store.Products(), coins, notifier, adminID, "@support", economy),
		Coins:       coins,
		Wallets:     wallets,
		Referrals:   service.NewReferralService(store.Referrals(), store.Users(), coins, wallets, economy),
		Discounts:   discounts,
		Leaderboard: service.NewLeaderboardService(store.Leaderboard(), economy, service.NewLockedRand(1)),
		Spin:        service.NewSpinService(store.Coins(), coins, discounts, economy, service.NewLockedRand(1)),
	}
	if opts.SupportID == "" {
		opts.SupportID = "@support"
	}
	sessions := newMemSessions()
	scheduler := &recordingScheduler{}
	return &machineEnv{
		store:     store,
		sessions:  sessions,
		scheduler: scheduler,
		svc:       svc,
		machine:   NewMachine(svc, scheduler, sessions, opts),
		sent:      &sent,
	}
}

// login marks id as a registered, authenticated user.
func (e *machineEnv) login(t *testing.T, id int64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.store.Users().Touch(ctx, id, "user"))
	require.NoError(t, e.store.Users().CompleteRegistration(ctx, id, strings.Repeat("u", int(id))+"@example.com", "hash"))
	e.sessions.put(Session{UserID: id, State: StateSelectingAction, Authenticated: true})
}

func (e *machineEnv) send(t *testing.T, id int64, kind Kind, payload string) Outcome {
	t.Helper()
	out, err := e.machine.Handle(context.Background(), Event{UserID: id, DisplayName: "Alice", Kind: kind, Payload: payload})
	require.NoError(t, err)
	return out
}

func TestMachine_Registration(t *testing.T) {
	env := newMachineEnv(t, Options{})
	ctx := context.Background()

	out := env.send(t, userID, KindCommand, "/start")
	assert.Equal(t, StateRegisteringEmail, out.Next)

	out = env.send(t, userID, KindText, "not-an-email")
	assert.Equal(t, StateRegisteringEmail, out.Next)
	assert.Contains(t, out.Text, "valid email")

	out = env.send(t, userID, KindText, "alice@example.com")
	assert.Equal(t, StateRegisteringPassword, out.Next)
	assert.Equal(t, "alice@example.com", env.sessions.get(userID).Transient.PendingEmail)

	out = env.send(t, userID, KindText, "123")
	assert.Equal(t, StateRegisteringPassword, out.Next)
	assert.Contains(t, out.Text, "too short")

	out = env.send(t, userID, KindText, "secret1")
	assert.Equal(t, StateEnd, out.Next)
	assert.NotEmpty(t, out.Keyboard)

	sess := env.sessions.get(userID)
	assert.True(t, sess.Authenticated)
	assert.Equal(t, StateSelectingAction, sess.State)
	assert.Equal(t, Transient{}, sess.Transient)

	coins, err := env.svc.Coins.GetCoins(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultEconomy().SignupBonus, coins)
}

func TestMachine_Login(t *testing.T) {
	env := newMachineEnv(t, Options{})
	ctx := context.Background()
	require.NoError(t, env.svc.Accounts.Touch(ctx, userID, "Alice"))
	require.NoError(t, env.svc.Accounts.Register(ctx, userID, "alice@example.com", "secret1"))

	env.send(t, userID, KindCommand, "/start")
	out := env.send(t, userID, KindButton, BtnLogin)
	assert.Equal(t, StateLoggingInEmail, out.Next)

	out = env.send(t, userID, KindText, "alice@example.com")
	assert.Equal(t, StateLoggingInPassword, out.Next)

	out = env.send(t, userID, KindText, "wrong-password")
	assert.Equal(t, StateLoggingInPassword, out.Next)
	assert.False(t, env.sessions.get(userID).Authenticated)

	out = env.send(t, userID, KindText, "secret1")
	assert.Equal(t, StateEnd, out.Next)
	assert.True(t, env.sessions.get(userID).Authenticated)
}

func TestMachine_RegisteringWithTakenEmailSwitchesToLogin(t *testing.T) {
	env := newMachineEnv(t, Options{})
	ctx := context.Background()
	require.NoError(t, env.svc.Accounts.Touch(ctx, 2, "Bob"))
	require.NoError(t, env.svc.Accounts.Register(ctx, 2, "bob@example.com", "secret2"))

	env.send(t, userID, KindCommand, "/start")
	out := env.send(t, userID, KindText, "bob@example.com")
	assert.Equal(t, StateLoggingInPassword, out.Next)

	out = env.send(t, userID, KindText, "secret2")
	assert.Equal(t, StateLoggingInPassword, out.Next, "credentials of another account are rejected")
}

func TestMachine_UnauthenticatedIsRoutedToRegistration(t *testing.T) {
	env := newMachineEnv(t, Options{})

	out := env.send(t, userID, KindButton, BtnWallet)
	assert.Equal(t, StateRegisteringEmail, out.Next)
}

func TestMachine_Purchase(t *testing.T) {
	env := newMachineEnv(t, Options{})
	env.login(t, userID)
	ctx := context.Background()

	out := env.send(t, userID, KindButton, BtnShop)
	require.Len(t, out.Keyboard, 2)
	assert.Equal(t, productPrefix+"mafia", out.Keyboard[0][0].Data)

	out = env.send(t, userID, KindButton, productPrefix+"mafia")
	assert.Equal(t, StateAwaitingPaymentProof, out.Next)
	assert.Contains(t, out.Text, "450,000")
	assert.Contains(t, out.Text, "6037-9972-1234-5678")
	assert.Equal(t, "mafia", env.sessions.get(userID).Transient.SelectedProduct)

	out = env.send(t, userID, KindPhoto, "file-123")
	assert.Equal(t, StateEnd, out.Next)
	assert.Contains(t, out.Text, service.TrackingPrefix)

	sess := env.sessions.get(userID)
	assert.Equal(t, StateSelectingAction, sess.State)
	assert.Equal(t, Transient{}, sess.Transient)

	require.Len(t, env.scheduler.orders, 1)
	order := env.scheduler.orders[0]
	assert.Equal(t, "file-123", order.PaymentRef)
	assert.Equal(t, models.OrderPending, order.Status)

	coins, err := env.svc.Coins.GetCoins(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultEconomy().PurchaseReward, coins)

	var admin int
	for _, n := range *env.sent {
		if n.ChatID == adminID {
			admin++
			assert.Equal(t, "file-123", n.PhotoRef)
		}
	}
	assert.Equal(t, 1, admin)
}

func TestMachine_PurchaseWithDiscount(t *testing.T) {
	env := newMachineEnv(t, Options{})
	env.login(t, userID)
	ctx := context.Background()
	code, err := env.svc.Discounts.GenerateCode(ctx, userID, 10)
	require.NoError(t, err)

	env.send(t, userID, KindButton, productPrefix+"mafia")
	out := env.send(t, userID, KindText, strings.ToLower(code.Code))
	assert.Equal(t, StateAwaitingPaymentProof, out.Next)
	assert.Contains(t, out.Text, "405,000")

	hash := "0x" + strings.Repeat("ab", 32)
	out = env.send(t, userID, KindText, hash)
	assert.Equal(t, StateEnd, out.Next)

	order, err := env.svc.Orders.GetByPaymentRef(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, int64(405000), order.Price)

	_, ok, err := env.svc.Discounts.ValidateCode(ctx, userID, code.Code)
	require.NoError(t, err)
	assert.False(t, ok, "code is consumed by the order")
}

func TestMachine_DiscountCodeDiscountsOneOrder(t *testing.T) {
	env := newMachineEnv(t, Options{})
	env.login(t, userID)
	ctx := context.Background()
	code, err := env.svc.Discounts.GenerateCode(ctx, userID, 10)
	require.NoError(t, err)

	env.send(t, userID, KindButton, productPrefix+"mafia")
	env.send(t, userID, KindText, code.Code)

	env.store.FailOn("discounts.Use", assert.AnError)
	out := env.send(t, userID, KindPhoto, "file-1")
	assert.Equal(t, apologyText, out.Text)
	_, err = env.svc.Orders.GetByPaymentRef(ctx, "file-1")
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound, "no order without a claimed code")

	env.store.FailOn("discounts.Use", nil)
	out = env.send(t, userID, KindPhoto, "file-1")
	assert.Equal(t, StateEnd, out.Next)
	first, err := env.svc.Orders.GetByPaymentRef(ctx, "file-1")
	require.NoError(t, err)
	assert.Equal(t, int64(405000), first.Price)

	// A stale session still carrying the code gets the full price.
	env.sessions.put(Session{
		UserID:        userID,
		State:         StateAwaitingPaymentProof,
		Authenticated: true,
		Transient:     Transient{SelectedProduct: "mafia", DiscountCode: code.Code, DiscountPercent: 10},
	})
	out = env.send(t, userID, KindPhoto, "file-2")
	assert.Equal(t, StateEnd, out.Next)
	second, err := env.svc.Orders.GetByPaymentRef(ctx, "file-2")
	require.NoError(t, err)
	assert.Equal(t, int64(450000), second.Price)
	assert.Zero(t, second.DiscountPercent)
}

func TestMachine_FailedOrderReleasesDiscountCode(t *testing.T) {
	env := newMachineEnv(t, Options{})
	env.login(t, userID)
	ctx := context.Background()
	code, err := env.svc.Discounts.GenerateCode(ctx, userID, 10)
	require.NoError(t, err)

	env.send(t, userID, KindButton, productPrefix+"mafia")
	env.send(t, userID, KindText, code.Code)

	env.store.FailOn("orders.Create", assert.AnError)
	out := env.send(t, userID, KindPhoto, "file-1")
	assert.Equal(t, apologyText, out.Text)

	_, ok, err := env.svc.Discounts.ValidateCode(ctx, userID, code.Code)
	require.NoError(t, err)
	assert.True(t, ok, "the claim is released when the order is not created")

	env.store.FailOn("orders.Create", nil)
	env.send(t, userID, KindPhoto, "file-1")
	order, err := env.svc.Orders.GetByPaymentRef(ctx, "file-1")
	require.NoError(t, err)
	assert.Equal(t, int64(405000), order.Price)
}

func TestMachine_ForeignDiscountCode(t *testing.T) {
	env := newMachineEnv(t, Options{})
	env.login(t, userID)
	code, err := env.svc.Discounts.GenerateCode(context.Background(), 2, 10)
	require.NoError(t, err)

	env.send(t, userID, KindButton, productPrefix+"mafia")
	out := env.send(t, userID, KindText, code.Code)
	assert.Contains(t, out.Text, "not valid")
	assert.Empty(t, env.sessions.get(userID).Transient.DiscountCode)
}

func TestMachine_FallbackClearsTransient(t *testing.T) {
	env := newMachineEnv(t, Options{})
	env.login(t, userID)

	env.send(t, userID, KindButton, productPrefix+"zodiac")
	out := env.send(t, userID, KindText, "hello?")
	assert.Equal(t, StateEnd, out.Next)
	assert.Contains(t, out.Text, "Cancelled")

	sess := env.sessions.get(userID)
	assert.Equal(t, StateSelectingAction, sess.State)
	assert.Empty(t, sess.Transient.SelectedProduct)
}

func TestMachine_PersistenceFailureKeepsSession(t *testing.T) {
	env := newMachineEnv(t, Options{})
	env.login(t, userID)

	env.send(t, userID, KindButton, productPrefix+"mafia")
	env.store.FailOn("orders.Create", assert.AnError)

	out := env.send(t, userID, KindPhoto, "file-1")
	assert.Equal(t, apologyText, out.Text)

	sess := env.sessions.get(userID)
	assert.Equal(t, StateAwaitingPaymentProof, sess.State)
	assert.Equal(t, "mafia", sess.Transient.SelectedProduct)
	assert.Empty(t, env.scheduler.orders)

	env.store.FailOn("orders.Create", nil)
	out = env.send(t, userID, KindPhoto, "file-1")
	assert.Equal(t, StateEnd, out.Next, "the same step can be retried")
	assert.Len(t, env.scheduler.orders, 1)
}

func TestMachine_SessionSaveFailure(t *testing.T) {
	env := newMachineEnv(t, Options{})
	env.login(t, userID)
	env.sessions.saveErr = assert.AnError

	out := env.send(t, userID, KindButton, BtnWallet)
	assert.Equal(t, apologyText, out.Text)
	assert.Equal(t, StateSelectingAction, env.sessions.get(userID).State)
}

func TestMachine_DuplicateEvent(t *testing.T) {
	env := newMachineEnv(t, Options{})
	env.login(t, userID)
	ev := Event{EventID: "evt-1", UserID: userID, Kind: KindButton, Payload: BtnDaily}

	_, err := env.machine.Handle(context.Background(), ev)
	require.NoError(t, err)
	_, err = env.machine.Handle(context.Background(), ev)
	assert.ErrorIs(t, err, ErrDuplicateEvent)

	coins, err := env.svc.Coins.GetCoins(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultEconomy().DailyReward, coins)
}

func TestMachine_InvalidEvent(t *testing.T) {
	env := newMachineEnv(t, Options{})

	_, err := env.machine.Handle(context.Background(), Event{UserID: userID, Kind: "sticker"})
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)
	_, err = env.machine.Handle(context.Background(), Event{Kind: KindText})
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)
}

func TestMachine_RateLimit(t *testing.T) {
	env := newMachineEnv(t, Options{RateEvery: time.Hour, RateBurst: 2})
	env.login(t, userID)

	env.send(t, userID, KindButton, BtnOrders)
	env.send(t, userID, KindButton, BtnOrders)
	out := env.send(t, userID, KindButton, BtnOrders)
	assert.Contains(t, out.Text, "too fast")

	out = env.send(t, 2, KindCommand, "/start")
	assert.NotContains(t, out.Text, "too fast", "limits are per user")
}

func TestMachine_Wallet(t *testing.T) {
	env := newMachineEnv(t, Options{})
	env.login(t, userID)
	ctx := context.Background()
	_, err := env.svc.Coins.AddCoins(ctx, userID, 650, models.ReasonAdminGrant)
	require.NoError(t, err)

	out := env.send(t, userID, KindButton, BtnWallet)
	assert.Equal(t, StateWalletActions, out.Next)
	assert.Contains(t, out.Text, "Coins: 650")

	out = env.send(t, userID, KindText, "withdraw 1 TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t")
	assert.Contains(t, out.Text, "below the minimum")
	assert.Equal(t, StateWalletActions, out.Next)

	out = env.send(t, userID, KindText, "withdraw 10 nowhere")
	assert.Contains(t, out.Text, "not valid")

	out = env.send(t, userID, KindText, "convert 650")
	assert.Contains(t, out.Text, "Converted 600 coins into 0.2")
	assert.Equal(t, StateWalletActions, out.Next)

	out = env.send(t, userID, KindText, "convert 300")
	assert.Contains(t, out.Text, "enough coins")

	out = env.send(t, userID, KindButton, BtnHistory)
	assert.Contains(t, out.Text, "convert")
}

func TestMachine_ReferralThroughChannelCheck(t *testing.T) {
	env := newMachineEnv(t, Options{})
	env.login(t, 2)
	ctx := context.Background()

	env.send(t, userID, KindCommand, "/start ref_2")
	assert.Equal(t, int64(2), env.sessions.get(userID).Transient.PendingReferrer)

	env.send(t, userID, KindText, "alice@example.com")
	out := env.send(t, userID, KindText, "secret1")
	assert.Equal(t, StateAwaitingChannelCheck, out.Next)

	out = env.send(t, userID, KindButton, BtnChannelJoined)
	assert.Equal(t, StateEnd, out.Next)
	assert.Contains(t, out.Text, "referral reward")

	count, err := env.svc.Referrals.ReferralCount(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Zero(t, env.sessions.get(userID).Transient.PendingReferrer)
}

func TestMachine_SelfReferralLinkIgnored(t *testing.T) {
	env := newMachineEnv(t, Options{})

	env.send(t, userID, KindCommand, "/start ref_1")
	assert.Zero(t, env.sessions.get(userID).Transient.PendingReferrer)
}

func TestMachine_DailyAndSpin(t *testing.T) {
	env := newMachineEnv(t, Options{})
	env.login(t, userID)

	out := env.send(t, userID, KindButton, BtnDaily)
	assert.Contains(t, out.Text, "claimed")
	out = env.send(t, userID, KindButton, BtnDaily)
	assert.Contains(t, out.Text, "already claimed")

	out = env.send(t, userID, KindButton, BtnSpin)
	assert.Equal(t, StateSpinningWheel, out.Next)
	out = env.send(t, userID, KindButton, BtnSpinGo)
	assert.Equal(t, StateEnd, out.Next)
	assert.NotContains(t, out.Text, "already")

	env.send(t, userID, KindButton, BtnSpin)
	out = env.send(t, userID, KindButton, BtnSpinGo)
	assert.Contains(t, out.Text, "already spun")
}

func TestMachine_ConcurrentEventsFromOneUser(t *testing.T) {
	env := newMachineEnv(t, Options{})
	env.login(t, userID)

	const n = 12
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		already int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := env.machine.Handle(context.Background(), Event{UserID: userID, DisplayName: "Alice", Kind: KindButton, Payload: BtnDaily})
			assert.NoError(t, err)
			if strings.Contains(out.Text, "already claimed") {
				mu.Lock()
				already++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, n-1, already)
	coins, err := env.svc.Coins.GetCoins(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultEconomy().DailyReward, coins)
}

func TestMachine_Avatar(t *testing.T) {
	env := newMachineEnv(t, Options{})
	env.login(t, userID)

	out := env.send(t, userID, KindButton, BtnAvatar)
	assert.Equal(t, StateSelectingAvatar, out.Next)

	out = env.send(t, userID, KindButton, avatarPrefix+"owl")
	assert.Equal(t, StateEnd, out.Next)

	u, err := env.store.Users().GetByID(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, "owl", u.Avatar)
}

func TestMachine_Leaderboard(t *testing.T) {
	env := newMachineEnv(t, Options{})
	env.login(t, userID)
	env.store.SeedFake("Alpha", 1000)

	out := env.send(t, userID, KindButton, BtnLeaderboard)
	assert.Contains(t, out.Text, "1. Alpha")
	assert.Contains(t, out.Text, "Your rank: 1")
}

func TestMachine_AdminConfirmsOnce(t *testing.T) {
	env := newMachineEnv(t, Options{})
	env.login(t, userID)
	env.send(t, userID, KindButton, productPrefix+"mafia")
	env.send(t, userID, KindPhoto, "file-1")
	require.Len(t, env.scheduler.orders, 1)
	order := env.scheduler.orders[0]

	out := env.send(t, userID, KindButton, service.ConfirmOrderPrefix+"1")
	assert.Contains(t, out.Text, "Cancelled", "only the admin can confirm")

	out = env.send(t, adminID, KindButton, service.ConfirmOrderPrefix+"1")
	assert.Contains(t, out.Text, "confirmed")
	out = env.send(t, adminID, KindButton, service.CancelOrderPrefix+"1")
	assert.Contains(t, out.Text, "already settled")

	got, err := env.svc.Orders.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderConfirmed, got.Status)

	var licenses int
	for _, n := range *env.sent {
		if n.ChatID == userID && strings.Contains(n.Text, service.LicensePrefix) {
			licenses++
		}
	}
	assert.Equal(t, 1, licenses)
}

func TestMachine_AdminPanel(t *testing.T) {
	env := newMachineEnv(t, Options{})
	ctx := context.Background()

	out := env.send(t, userID, KindCommand, "/admin")
	assert.NotEqual(t, StateAdminActions, out.Next)

	out = env.send(t, adminID, KindCommand, "/admin")
	assert.Equal(t, StateAdminActions, out.Next)

	out = env.send(t, adminID, KindButton, BtnAdminCoins)
	assert.Equal(t, StateAdminAddingCoins, out.Next)
	out = env.send(t, adminID, KindText, "1 250")
	assert.Equal(t, StateAdminActions, out.Next)
	coins, err := env.svc.Coins.GetCoins(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(250), coins)

	out = env.send(t, adminID, KindButton, BtnAdminProducts)
	assert.Equal(t, StateAdminManagingProducts, out.Next)

	out = env.send(t, adminID, KindText, "Broken\nfree\n123")
	assert.Equal(t, StateAdminManagingProducts, out.Next)
	assert.Contains(t, out.Text, "Please fix")
	assert.Contains(t, out.Text, "price")
	assert.Contains(t, out.Text, "card number")

	out = env.send(t, adminID, KindButton, adminEditPrefix+"zodiac")
	assert.Equal(t, "zodiac", env.sessions.get(adminID).Transient.EditingProduct)
	out = env.send(t, adminID, KindText, "Zodiac v2\n600,000\n6219-8612-3456-7890\n10")
	assert.Equal(t, StateAdminActions, out.Next)

	p, err := env.svc.Catalog.GetProduct(ctx, "zodiac")
	require.NoError(t, err)
	assert.Equal(t, "Zodiac v2", p.Name)
	assert.Equal(t, int64(600000), p.Price)
	assert.Equal(t, 10, p.Stock)

	env.send(t, adminID, KindButton, BtnAdminProducts)
	env.send(t, adminID, KindButton, adminTogglePrefix+"zodiac")
	p, err = env.svc.Catalog.GetProduct(ctx, "zodiac")
	require.NoError(t, err)
	assert.False(t, p.Active)
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "450,000", formatPrice(450000))
	assert.Equal(t, "1,000,000", formatPrice(1000000))
	assert.Equal(t, "999", formatPrice(999))
	assert.Equal(t, "-1,500", formatPrice(-1500))
}
