// Package scheduler runs the deferred order confirmations and the periodic
// leaderboard broadcast on a shared gocron scheduler.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/honeynil/ShopBotLedger/internal/infrastructure/observability"
	"github.com/honeynil/ShopBotLedger/internal/models"
	"github.com/honeynil/ShopBotLedger/internal/repository"
	service "github.com/honeynil/ShopBotLedger/internal/services"
	pkgerrors "github.com/honeynil/ShopBotLedger/pkg/errors"
)

const fireTimeout = 30 * time.Second

// Firing results, also used as metric labels.
const (
	ResultConfirmed = "confirmed"
	ResultSettled   = "settled"
	ResultSkipped   = "skipped"
	ResultMissing   = "missing"
	ResultError     = "error"
)

// ConfirmationScheduler auto-confirms orders the admin has not reviewed in
// time. Entries live in the confirmations table, so a restart loses nothing:
// Recover re-registers them and the sweep job picks up anything overdue.
type ConfirmationScheduler struct {
	cron          gocron.Scheduler
	confirmations repository.ConfirmationRepository
	orders        *service.OrderService
	delay         time.Duration
	sweep         time.Duration
	now           func() time.Time
}

func NewConfirmationScheduler(
	cron gocron.Scheduler,
	confirmations repository.ConfirmationRepository,
	orders *service.OrderService,
	delay, sweep time.Duration,
) *ConfirmationScheduler {
	return &ConfirmationScheduler{
		cron:          cron,
		confirmations: confirmations,
		orders:        orders,
		delay:         delay,
		sweep:         sweep,
		now:           time.Now,
	}
}

// Schedule persists the confirmation of order and registers its one-time job.
func (s *ConfirmationScheduler) Schedule(ctx context.Context, order *models.Order) error {
	c := &models.Confirmation{
		OrderID:    order.ID,
		PaymentRef: order.PaymentRef,
		DueAt:      s.now().Add(s.delay),
	}
	if err := s.confirmations.Create(ctx, c); err != nil {
		return fmt.Errorf("schedule confirmation of order %d: %w", order.ID, err)
	}
	if err := s.register(*c); err != nil {
		// The sweep still fires the persisted row.
		slog.Warn("failed to register confirmation job", "order_id", order.ID, "error", err)
	}
	slog.Info("order confirmation scheduled", "order_id", order.ID, "due_at", c.DueAt)
	return nil
}

// Recover re-registers every pending entry and installs the sweep job. Call
// it once before starting the cron scheduler.
func (s *ConfirmationScheduler) Recover(ctx context.Context) error {
	pending, err := s.confirmations.ListScheduled(ctx)
	if err != nil {
		return fmt.Errorf("list scheduled confirmations: %w", err)
	}
	for _, c := range pending {
		if err := s.register(c); err != nil {
			slog.Warn("failed to register recovered confirmation", "order_id", c.OrderID, "error", err)
		}
	}

	if s.sweep > 0 {
		_, err = s.cron.NewJob(
			gocron.DurationJob(s.sweep),
			gocron.NewTask(s.runSweep),
			gocron.WithName("confirmation-sweep"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return fmt.Errorf("register confirmation sweep: %w", err)
		}
	}
	slog.Info("confirmations recovered", "count", len(pending))
	return nil
}

func (s *ConfirmationScheduler) register(c models.Confirmation) error {
	start := gocron.OneTimeJobStartImmediately()
	if c.DueAt.After(s.now()) {
		start = gocron.OneTimeJobStartDateTime(c.DueAt)
	}
	_, err := s.cron.NewJob(
		gocron.OneTimeJob(start),
		gocron.NewTask(s.runOne, c),
		gocron.WithName(fmt.Sprintf("confirm-order-%d", c.OrderID)),
	)
	return err
}

func (s *ConfirmationScheduler) runOne(c models.Confirmation) {
	ctx, cancel := context.WithTimeout(context.Background(), fireTimeout)
	defer cancel()
	s.Fire(ctx, c)
}

func (s *ConfirmationScheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), fireTimeout)
	defer cancel()
	if _, err := s.Sweep(ctx); err != nil {
		slog.Error("confirmation sweep failed", "error", err)
	}
}

// Sweep fires every overdue entry and returns how many orders it confirmed.
func (s *ConfirmationScheduler) Sweep(ctx context.Context) (int, error) {
	due, err := s.confirmations.ListDue(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("list due confirmations: %w", err)
	}
	confirmed := 0
	for _, c := range due {
		if s.Fire(ctx, c) == ResultConfirmed {
			confirmed++
		}
	}
	return confirmed, nil
}

// Fire claims the entry and confirms its order if it is still pending. Only
// the caller that wins the claim acts, so a job and the sweep racing on the
// same entry confirm at most once.
func (s *ConfirmationScheduler) Fire(ctx context.Context, c models.Confirmation) string {
	ctx, span := otel.Tracer("confirmation-scheduler").Start(ctx, "FireConfirmation", trace.WithAttributes(
		attribute.Int64("confirmation_id", c.ID),
		attribute.Int64("order_id", c.OrderID),
	))
	defer span.End()

	result := s.fire(ctx, c)
	span.SetAttributes(attribute.String("result", result))
	observability.ConfirmationsFired.WithLabelValues(result).Inc()
	return result
}

func (s *ConfirmationScheduler) fire(ctx context.Context, c models.Confirmation) string {
	log := observability.WithContext(ctx, "confirmation_id", c.ID, "order_id", c.OrderID)

	claimed, err := s.confirmations.Claim(ctx, c.ID)
	if err != nil {
		log.Error("failed to claim confirmation", "error", err)
		return ResultError
	}
	if !claimed {
		return ResultSkipped
	}

	order, err := s.orders.GetByPaymentRef(ctx, c.PaymentRef)
	if errors.Is(err, pkgerrors.ErrNotFound) {
		log.Info("confirmation target gone", "payment_ref", c.PaymentRef)
		return ResultMissing
	}
	if err != nil {
		log.Error("failed to load order for confirmation", "error", err)
		s.release(ctx, log, c)
		return ResultError
	}
	if order.Status != models.OrderPending {
		return ResultSettled
	}

	changed, err := s.orders.SetStatus(ctx, order.ID, models.OrderConfirmed, models.SourceScheduler)
	if errors.Is(err, pkgerrors.ErrNotFound) {
		return ResultMissing
	}
	if err != nil {
		log.Error("auto-confirmation failed", "error", err)
		s.release(ctx, log, c)
		return ResultError
	}
	if !changed {
		return ResultSettled
	}
	log.Info("order auto-confirmed")
	return ResultConfirmed
}

// release hands a claimed entry back to the sweep after a failed attempt.
func (s *ConfirmationScheduler) release(ctx context.Context, log *slog.Logger, c models.Confirmation) {
	if err := s.confirmations.Release(ctx, c.ID); err != nil {
		log.Error("failed to release confirmation", "error", err)
		return
	}
	log.Info("confirmation released for retry")
}
