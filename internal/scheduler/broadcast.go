package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/honeynil/ShopBotLedger/internal/notify"
	service "github.com/honeynil/ShopBotLedger/internal/services"
)

const broadcastSize = 10

// Broadcaster periodically posts the leaderboard to the announcement chat.
type Broadcaster struct {
	cron        gocron.Scheduler
	leaderboard *service.LeaderboardService
	notifier    notify.Notifier
	chatID      int64
	interval    time.Duration
	backoff     time.Duration
}

func NewBroadcaster(
	cron gocron.Scheduler,
	leaderboard *service.LeaderboardService,
	notifier notify.Notifier,
	chatID int64,
	interval, backoff time.Duration,
) *Broadcaster {
	return &Broadcaster{
		cron:        cron,
		leaderboard: leaderboard,
		notifier:    notifier,
		chatID:      chatID,
		interval:    interval,
		backoff:     backoff,
	}
}

// Start registers the broadcast job. Retries of a failed run stop when ctx
// is done.
func (b *Broadcaster) Start(ctx context.Context) error {
	if b.chatID == 0 || b.interval <= 0 {
		slog.Info("leaderboard broadcast disabled")
		return nil
	}
	_, err := b.cron.NewJob(
		gocron.DurationJob(b.interval),
		gocron.NewTask(func() {
			if err := b.Broadcast(ctx); err != nil {
				slog.Warn("leaderboard broadcast abandoned", "error", err)
			}
		}),
		gocron.WithName("leaderboard-broadcast"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("register leaderboard broadcast: %w", err)
	}
	return nil
}

// Broadcast publishes the leaderboard, retrying every backoff until it
// succeeds or ctx is done.
func (b *Broadcaster) Broadcast(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		err := b.publish(ctx)
		if err == nil {
			return nil
		}
		slog.Error("leaderboard broadcast failed", "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.backoff):
		}
	}
}

func (b *Broadcaster) publish(ctx context.Context) error {
	top, err := b.leaderboard.GetLeaderboard(ctx, broadcastSize)
	if err != nil {
		return err
	}
	return b.notifier.Notify(ctx, notify.Notification{ChatID: b.chatID, Text: service.FormatLeaderboard(top)})
}
