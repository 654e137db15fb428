package scheduler

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/honeynil/ShopBotLedger/internal/config"
	"github.com/honeynil/ShopBotLedger/internal/models"
	"github.com/honeynil/ShopBotLedger/internal/notify"
	notifymocks "github.com/honeynil/ShopBotLedger/internal/notify/mocks"
	"github.com/honeynil/ShopBotLedger/internal/repository/memory"
	service "github.com/honeynil/ShopBotLedger/internal/services"
)

const testAdminID = int64(7)

type outbox struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (o *outbox) licenses(chatID int64) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, msg := range o.sent {
		if msg.ChatID == chatID && strings.Contains(msg.Text, service.LicensePrefix) {
			n++
		}
	}
	return n
}

type schedEnv struct {
	store  *memory.Store
	orders *service.OrderService
	cron   gocron.Scheduler
	sched  *ConfirmationScheduler
	out    *outbox
	now    time.Time
}

func newSchedEnv(t *testing.T, delay time.Duration) *schedEnv {
	t.Helper()
	ctrl := gomock.NewController(t)
	notifier := notifymocks.NewMockNotifier(ctrl)
	out := &outbox{}
	notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, n notify.Notification) error {
		out.mu.Lock()
		defer out.mu.Unlock()
		out.sent = append(out.sent, n)
		return nil
	}).AnyTimes()

	store := memory.NewStore()
	economy := config.DefaultEconomy()
	coins := service.NewCoinService(store.Coins(), store.Transactions(), economy)
	require.NoError(t, service.NewCatalogService(store.Products()).Seed(context.Background(), config.DefaultProducts()))
	orders := service.NewOrderService(store.Orders(), store.Products(), coins, notifier, testAdminID, "@support", economy)

	cron, err := gocron.NewScheduler()
	require.NoError(t, err)
	t.Cleanup(func() { _ = cron.Shutdown() })

	env := &schedEnv{
		store:  store,
		orders: orders,
		cron:   cron,
		sched:  NewConfirmationScheduler(cron, store.Confirmations(), orders, delay, time.Minute),
		out:    out,
		now:    time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	env.sched.now = func() time.Time { return env.now }
	return env
}

func (e *schedEnv) order(t *testing.T, userID int64, ref string) *models.Order {
	t.Helper()
	o, err := e.orders.CreateOrder(context.Background(), service.OrderRequest{
		UserID:      userID,
		DisplayName: "Alice",
		ProductKey:  "mafia",
		ProofRef:    ref,
	})
	require.NoError(t, err)
	return o
}

func (e *schedEnv) scheduled(t *testing.T) []models.Confirmation {
	t.Helper()
	list, err := e.store.Confirmations().ListScheduled(context.Background())
	require.NoError(t, err)
	return list
}

func TestSchedule_PersistsAndRegisters(t *testing.T) {
	env := newSchedEnv(t, time.Hour)
	o := env.order(t, 1, "photo-1")

	require.NoError(t, env.sched.Schedule(context.Background(), o))

	list := env.scheduled(t)
	require.Len(t, list, 1)
	assert.Equal(t, o.ID, list[0].OrderID)
	assert.Equal(t, "photo-1", list[0].PaymentRef)
	assert.Equal(t, env.now.Add(time.Hour), list[0].DueAt)
	assert.Len(t, env.cron.Jobs(), 1)
}

func TestSchedule_PersistenceFailure(t *testing.T) {
	env := newSchedEnv(t, time.Hour)
	o := env.order(t, 1, "photo-1")
	env.store.FailOn("confirmations.Create", assert.AnError)

	assert.Error(t, env.sched.Schedule(context.Background(), o))
	assert.Empty(t, env.cron.Jobs())
}

func TestFire_ConfirmsPendingOrderOnce(t *testing.T) {
	ctx := context.Background()
	env := newSchedEnv(t, time.Hour)
	o := env.order(t, 1, "photo-1")
	require.NoError(t, env.sched.Schedule(ctx, o))
	c := env.scheduled(t)[0]

	assert.Equal(t, ResultConfirmed, env.sched.Fire(ctx, c))
	assert.Equal(t, ResultSkipped, env.sched.Fire(ctx, c))

	got, err := env.orders.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderConfirmed, got.Status)
	assert.Equal(t, string(models.SourceScheduler), got.ConfirmedBy)
	assert.Equal(t, 1, env.out.licenses(1))
}

func TestFire_AfterAdminCancelDoesNothing(t *testing.T) {
	ctx := context.Background()
	env := newSchedEnv(t, time.Hour)
	o := env.order(t, 1, "photo-1")
	require.NoError(t, env.sched.Schedule(ctx, o))

	changed, err := env.orders.SetStatus(ctx, o.ID, models.OrderCanceled, models.SourceAdmin)
	require.NoError(t, err)
	require.True(t, changed)

	assert.Equal(t, ResultSettled, env.sched.Fire(ctx, env.scheduled(t)[0]))

	got, err := env.orders.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCanceled, got.Status)
	assert.Zero(t, env.out.licenses(1))
}

func TestFire_DeletedOrder(t *testing.T) {
	ctx := context.Background()
	env := newSchedEnv(t, time.Hour)
	o := env.order(t, 1, "photo-1")
	require.NoError(t, env.sched.Schedule(ctx, o))
	require.NoError(t, env.orders.DeleteOrder(ctx, o.ID))

	assert.Equal(t, ResultMissing, env.sched.Fire(ctx, env.scheduled(t)[0]))
}

func TestFire_ClaimFailureLeavesEntry(t *testing.T) {
	ctx := context.Background()
	env := newSchedEnv(t, time.Hour)
	o := env.order(t, 1, "photo-1")
	require.NoError(t, env.sched.Schedule(ctx, o))
	env.store.FailOn("confirmations.Claim", assert.AnError)

	assert.Equal(t, ResultError, env.sched.Fire(ctx, env.scheduled(t)[0]))
	assert.Len(t, env.scheduled(t), 1, "entry stays for the next sweep")

	env.store.FailOn("confirmations.Claim", nil)
	assert.Equal(t, ResultConfirmed, env.sched.Fire(ctx, env.scheduled(t)[0]))
}

func TestFire_FailedConfirmationIsRetriedBySweep(t *testing.T) {
	ctx := context.Background()
	env := newSchedEnv(t, time.Hour)
	o := env.order(t, 1, "photo-1")
	require.NoError(t, env.sched.Schedule(ctx, o))
	env.store.FailOn("orders.Transition", assert.AnError)

	assert.Equal(t, ResultError, env.sched.Fire(ctx, env.scheduled(t)[0]))
	require.Len(t, env.scheduled(t), 1, "claim is released after a failed confirmation")
	got, err := env.orders.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, got.Status)

	env.store.FailOn("orders.Transition", nil)
	env.now = env.now.Add(2 * time.Hour)
	n, err := env.sched.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, env.scheduled(t))
	assert.Equal(t, 1, env.out.licenses(1))
}

func TestFire_ReleaseFailureKeepsEntryFired(t *testing.T) {
	ctx := context.Background()
	env := newSchedEnv(t, time.Hour)
	o := env.order(t, 1, "photo-1")
	require.NoError(t, env.sched.Schedule(ctx, o))
	env.store.FailOn("orders.Transition", assert.AnError)
	env.store.FailOn("confirmations.Release", assert.AnError)

	assert.Equal(t, ResultError, env.sched.Fire(ctx, env.scheduled(t)[0]))
	assert.Empty(t, env.scheduled(t))

	got, err := env.orders.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, got.Status, "the admin can still settle the order")
}

func TestFire_RacesAdminConfirmation(t *testing.T) {
	ctx := context.Background()
	env := newSchedEnv(t, time.Hour)
	o := env.order(t, 1, "photo-1")
	require.NoError(t, env.sched.Schedule(ctx, o))
	entry := env.scheduled(t)[0]

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		changes int
	)
	for i := 0; i < workers; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if env.sched.Fire(ctx, entry) == ResultConfirmed {
				mu.Lock()
				changes++
				mu.Unlock()
			}
		}()
		go func() {
			defer wg.Done()
			changed, err := env.orders.SetStatus(ctx, o.ID, models.OrderConfirmed, models.SourceAdmin)
			assert.NoError(t, err)
			if changed {
				mu.Lock()
				changes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, changes)
	assert.Equal(t, 1, env.out.licenses(1))
	got, err := env.orders.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderConfirmed, got.Status)
	assert.NotEmpty(t, got.LicenseCode)
}

func TestSweep_FiresOnlyDueEntries(t *testing.T) {
	ctx := context.Background()
	env := newSchedEnv(t, time.Hour)
	early := env.order(t, 1, "photo-1")
	require.NoError(t, env.sched.Schedule(ctx, early))
	env.now = env.now.Add(30 * time.Minute)
	late := env.order(t, 2, "photo-2")
	require.NoError(t, env.sched.Schedule(ctx, late))

	env.now = env.now.Add(45 * time.Minute)
	confirmed, err := env.sched.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, confirmed)

	got, err := env.orders.GetOrder(ctx, late.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, got.Status)
	assert.Len(t, env.scheduled(t), 1)
}

func TestRecover_RegistersPendingAndSweep(t *testing.T) {
	ctx := context.Background()
	env := newSchedEnv(t, time.Hour)
	for i, ref := range []string{"photo-1", "photo-2"} {
		o := env.order(t, int64(i+1), ref)
		require.NoError(t, env.store.Confirmations().Create(ctx, &models.Confirmation{
			OrderID: o.ID, PaymentRef: ref, DueAt: env.now.Add(-time.Minute),
		}))
	}

	require.NoError(t, env.sched.Recover(ctx))
	assert.Len(t, env.cron.Jobs(), 3)
}

func TestRecover_OverdueEntriesFireOnStart(t *testing.T) {
	ctx := context.Background()
	env := newSchedEnv(t, time.Hour)
	o := env.order(t, 1, "photo-1")
	require.NoError(t, env.store.Confirmations().Create(ctx, &models.Confirmation{
		OrderID: o.ID, PaymentRef: "photo-1", DueAt: env.now.Add(-time.Hour),
	}))

	require.NoError(t, env.sched.Recover(ctx))
	env.cron.Start()

	require.Eventually(t, func() bool {
		got, err := env.orders.GetOrder(ctx, o.ID)
		return err == nil && got.Status == models.OrderConfirmed
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, 1, env.out.licenses(1))
}

func TestNewConfirmationScheduler_Defaults(t *testing.T) {
	cron, err := gocron.NewScheduler()
	require.NoError(t, err)
	defer func() { _ = cron.Shutdown() }()

	s := NewConfirmationScheduler(cron, memory.NewStore().Confirmations(), nil, time.Hour, 0)
	require.NoError(t, s.Recover(context.Background()))
	assert.Empty(t, cron.Jobs(), "no sweep job without an interval")
}
