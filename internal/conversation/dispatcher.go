package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/honeynil/ShopBotLedger/internal/notify"
)

// Dispatcher feeds transport events from the updates topic into the machine
// and publishes each outcome back to the user.
type Dispatcher struct {
	machine  *Machine
	notifier notify.Notifier
}

func NewDispatcher(machine *Machine, notifier notify.Notifier) *Dispatcher {
	return &Dispatcher{machine: machine, notifier: notifier}
}

// HandleMessage has the kafka.MessageHandler signature.
func (d *Dispatcher) HandleMessage(ctx context.Context, key, value []byte) error {
	var ev Event
	if err := json.Unmarshal(value, &ev); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}

	out, err := d.machine.Handle(ctx, ev)
	if errors.Is(err, ErrDuplicateEvent) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("handle event %s: %w", ev.EventID, err)
	}
	if out.Text == "" && out.PhotoRef == "" {
		return nil
	}

	if err := d.notifier.Notify(ctx, OutcomeNotification(ev.UserID, out)); err != nil {
		slog.Error("failed to publish outcome", "user_id", ev.UserID, "event_id", ev.EventID, "error", err)
		return err
	}
	return nil
}

func OutcomeNotification(chatID int64, out Outcome) notify.Notification {
	return notify.Notification{
		ChatID:   chatID,
		Text:     out.Text,
		PhotoRef: out.PhotoRef,
		Keyboard: out.Keyboard,
	}
}
