package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/honeynil/ShopBotLedger/internal/infrastructure/observability"
	"github.com/honeynil/ShopBotLedger/internal/models"
	service "github.com/honeynil/ShopBotLedger/internal/services"
	pkgerrors "github.com/honeynil/ShopBotLedger/pkg/errors"
)

var ErrDuplicateEvent = fmt.Errorf("%w: duplicate event", pkgerrors.ErrConflict)

const apologyText = "Sorry, something went wrong on our side. Please try again in a moment."

// Scheduler arranges the deferred confirmation of a freshly created order.
type Scheduler interface {
	Schedule(ctx context.Context, order *models.Order) error
}

type Services struct {
	Accounts    *service.AccountService
	Catalog     *service.CatalogService
	Orders      *service.OrderService
	Coins       *service.CoinService
	Wallets     *service.WalletService
	Referrals   *service.ReferralService
	Discounts   *service.DiscountService
	Leaderboard *service.LeaderboardService
	Spin        *service.SpinService
}

type Options struct {
	SupportID string
	// RateEvery and RateBurst shape the per-user token bucket; a zero
	// RateEvery disables limiting.
	RateEvery time.Duration
	RateBurst int
}

type handlerFunc func(ctx context.Context, sess *Session, ev Event, match []string) (Outcome, error)

type route struct {
	kind    Kind
	pattern *regexp.Regexp
	handle  handlerFunc
}

type Machine struct {
	svc       Services
	scheduler Scheduler
	sessions  SessionStore
	opts      Options

	locks    *userLocks
	limiters *limiters

	global []route
	admin  []route
	routes map[State][]route
}

func NewMachine(svc Services, scheduler Scheduler, sessions SessionStore, opts Options) *Machine {
	m := &Machine{
		svc:       svc,
		scheduler: scheduler,
		sessions:  sessions,
		opts:      opts,
		locks:     newUserLocks(),
		limiters:  newLimiters(opts.RateEvery, opts.RateBurst),
	}
	m.buildRoutes()
	return m
}

// Handle runs one event through the user's current state. Failures of the
// store never surface as errors: the user gets an apology and the session is
// left as it was. The only errors returned are ErrDuplicateEvent and
// ErrInvalidInput for malformed events.
func (m *Machine) Handle(ctx context.Context, ev Event) (Outcome, error) {
	ctx, span := otel.Tracer("conversation").Start(ctx, "HandleEvent", trace.WithAttributes(
		attribute.Int64("user_id", ev.UserID),
		attribute.String("kind", string(ev.Kind)),
	))
	defer span.End()

	if ev.UserID == 0 || !validKind(ev.Kind) {
		span.SetStatus(codes.Error, "invalid event")
		return Outcome{}, pkgerrors.ErrInvalidInput
	}

	fresh, err := m.sessions.MarkEvent(ctx, ev.EventID)
	if err != nil {
		return m.apologize(ctx, span, "", ev, err), nil
	}
	if !fresh {
		observability.ConversationEvents.WithLabelValues("", "duplicate").Inc()
		slog.Info("duplicate event dropped", "event_id", ev.EventID, "user_id", ev.UserID)
		return Outcome{}, ErrDuplicateEvent
	}

	if !m.limiters.allow(ev.UserID) {
		observability.ConversationEvents.WithLabelValues("", "rate_limited").Inc()
		slog.Warn("event rate limited", "user_id", ev.UserID)
		return Outcome{Text: "You are sending messages too fast. Please wait a moment."}, nil
	}

	unlock := m.locks.lock(ev.UserID)
	defer unlock()

	sess, err := m.sessions.Load(ctx, ev.UserID)
	if err != nil {
		return m.apologize(ctx, span, "", ev, err), nil
	}
	if err := m.svc.Accounts.Touch(ctx, ev.UserID, ev.DisplayName); err != nil {
		return m.apologize(ctx, span, sess.State, ev, err), nil
	}

	work := *sess
	out, result, err := m.dispatch(ctx, &work, ev)
	if err != nil {
		return m.apologize(ctx, span, sess.State, ev, err), nil
	}

	switch {
	case out.Next == StateEnd:
		work.finish()
	case out.Next.Valid():
		work.State = out.Next
	default:
		out.Next = work.State
	}

	if err := m.sessions.Save(ctx, &work); err != nil {
		return m.apologize(ctx, span, sess.State, ev, err), nil
	}

	observability.ConversationEvents.WithLabelValues(string(sess.State), result).Inc()
	slog.Debug("event handled", "user_id", ev.UserID, "from", sess.State, "to", out.Next, "result", result)
	return out, nil
}

func (m *Machine) dispatch(ctx context.Context, sess *Session, ev Event) (Outcome, string, error) {
	if out, ok, err := m.match(ctx, m.global, sess, ev); ok {
		return out, "handled", err
	}

	isAdmin := m.svc.Accounts.IsAdmin(ev.UserID)
	if isAdmin {
		if out, ok, err := m.match(ctx, m.admin, sess, ev); ok {
			return out, "handled", err
		}
	}

	if !sess.Authenticated && !isAdmin && !sess.State.authState() {
		return m.promptAuth(), "auth_required", nil
	}

	if out, ok, err := m.match(ctx, m.routes[sess.State], sess, ev); ok {
		return out, "handled", err
	}
	return m.fallback(sess), "fallback", nil
}

func (m *Machine) match(ctx context.Context, routes []route, sess *Session, ev Event) (Outcome, bool, error) {
	for _, r := range routes {
		if r.kind != ev.Kind {
			continue
		}
		match := r.pattern.FindStringSubmatch(ev.Payload)
		if match == nil {
			continue
		}
		out, err := r.handle(ctx, sess, ev, match)
		return out, true, err
	}
	return Outcome{}, false, nil
}

// fallback cancels whatever flow was in progress.
func (m *Machine) fallback(sess *Session) Outcome {
	if !sess.Authenticated && sess.State.authState() {
		return m.promptAuth()
	}
	return Outcome{Text: "Cancelled. Choose an action:", Keyboard: mainMenu(), Next: StateEnd}
}

func (m *Machine) apologize(ctx context.Context, span trace.Span, state State, ev Event, err error) Outcome {
	span.RecordError(err)
	span.SetStatus(codes.Error, "event failed")
	observability.ConversationEvents.WithLabelValues(string(state), "error").Inc()
	observability.WithContext(ctx, "user_id", ev.UserID).
		Error("failed to handle event", "state", state, "kind", ev.Kind, "error", err)
	return Outcome{Text: apologyText, Next: state}
}

// reject turns expected business errors into a corrective reply. Anything
// else is returned for the caller to apologise for.
func reject(err error) (Outcome, error) {
	var formErr *service.FormError
	switch {
	case errors.As(err, &formErr):
		return Outcome{Text: "Please fix the following:\n- " + strings.Join(formErr.Problems, "\n- ")}, nil
	case errors.Is(err, pkgerrors.ErrValidation):
		return Outcome{Text: validationMessage(err)}, nil
	case errors.Is(err, pkgerrors.ErrNotFound):
		return Outcome{Text: "Not found."}, nil
	case errors.Is(err, pkgerrors.ErrConflict):
		return Outcome{Text: "That was already done."}, nil
	}
	return Outcome{}, err
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, pkgerrors.ErrBelowMinimum):
		return "The amount is below the minimum."
	case errors.Is(err, pkgerrors.ErrInvalidAddress):
		return "That wallet address is not valid."
	case errors.Is(err, pkgerrors.ErrInvalidEmail):
		return "Please send a valid email address."
	case errors.Is(err, pkgerrors.ErrWeakPassword):
		return "The password is too short. Use at least 6 characters."
	case errors.Is(err, pkgerrors.ErrOutOfStock):
		return "This product is out of stock."
	case errors.Is(err, pkgerrors.ErrInvalidAmount):
		return "The amount must be positive."
	}
	return "Invalid input, please try again."
}

func validKind(k Kind) bool {
	switch k {
	case KindCommand, KindButton, KindText, KindPhoto:
		return true
	}
	return false
}
