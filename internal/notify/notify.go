// Package notify defines outbound messages sent to users and the admin.
package notify

import "context"

//go:generate mockgen -source=notify.go -destination=mocks/mock_notify.go -package=mocks

// Button is one inline keyboard option; Data is the token sent back when pressed.
type Button struct {
	Text string `json:"text"`
	Data string `json:"data"`
}

type Notification struct {
	ChatID   int64      `json:"chat_id"`
	Text     string     `json:"text"`
	PhotoRef string     `json:"photo_ref,omitempty"`
	Keyboard [][]Button `json:"keyboard,omitempty"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Row builds a single keyboard row.
func Row(buttons ...Button) []Button {
	return buttons
}
