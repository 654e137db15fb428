// Package conversation drives the per-user dialogue of the storefront: it
// resolves the user's current step, runs the handler matching the inbound
// event and stores the resulting session.
package conversation

import "github.com/honeynil/ShopBotLedger/internal/notify"

type State string

const (
	StateSelectingAction       State = "selecting_action"
	StateAwaitingPaymentProof  State = "awaiting_payment_proof"
	StateAdminActions          State = "admin_actions"
	StateRegisteringEmail      State = "registering_email"
	StateRegisteringPassword   State = "registering_password"
	StateLoggingInEmail        State = "logging_in_email"
	StateLoggingInPassword     State = "logging_in_password"
	StateWalletActions         State = "wallet_actions"
	StateViewingReferral       State = "viewing_referral"
	StateAwaitingChannelCheck  State = "awaiting_channel_check"
	StateSelectingAvatar       State = "selecting_avatar"
	StateSpinningWheel         State = "spinning_wheel"
	StateAdminAddingCoins      State = "admin_adding_coins"
	StateAdminManagingProducts State = "admin_managing_products"

	// StateEnd finishes a flow. It is never stored: the session returns to
	// StateSelectingAction with its transient fields cleared.
	StateEnd State = "end"
)

var states = map[State]bool{
	StateSelectingAction:       true,
	StateAwaitingPaymentProof:  true,
	StateAdminActions:          true,
	StateRegisteringEmail:      true,
	StateRegisteringPassword:   true,
	StateLoggingInEmail:        true,
	StateLoggingInPassword:     true,
	StateWalletActions:         true,
	StateViewingReferral:       true,
	StateAwaitingChannelCheck:  true,
	StateSelectingAvatar:       true,
	StateSpinningWheel:         true,
	StateAdminAddingCoins:      true,
	StateAdminManagingProducts: true,
}

func (s State) Valid() bool {
	return states[s]
}

// authState reports whether s is reachable without a completed login.
func (s State) authState() bool {
	switch s {
	case StateRegisteringEmail, StateRegisteringPassword, StateLoggingInEmail, StateLoggingInPassword:
		return true
	}
	return false
}

type Kind string

const (
	KindCommand Kind = "command"
	KindButton  Kind = "button"
	KindText    Kind = "text"
	KindPhoto   Kind = "photo"
)

// Event is one inbound user action. For photos Payload is the transport's
// file reference.
type Event struct {
	EventID     string `json:"event_id"`
	UserID      int64  `json:"user_id"`
	DisplayName string `json:"display_name"`
	Kind        Kind   `json:"kind"`
	Payload     string `json:"payload"`
}

type Outcome struct {
	Text     string            `json:"text"`
	PhotoRef string            `json:"photo_ref,omitempty"`
	Keyboard [][]notify.Button `json:"keyboard,omitempty"`
	Next     State             `json:"next_state"`
}

// Transient holds the values collected inside one flow.
type Transient struct {
	SelectedProduct string `json:"selected_product,omitempty"`
	DiscountCode    string `json:"discount_code,omitempty"`
	DiscountPercent int    `json:"discount_percent,omitempty"`
	PendingEmail    string `json:"pending_email,omitempty"`
	EditingProduct  string `json:"editing_product,omitempty"`
	PendingReferrer int64  `json:"pending_referrer,omitempty"`
}

type Session struct {
	UserID        int64     `json:"user_id"`
	State         State     `json:"state"`
	Authenticated bool      `json:"authenticated"`
	Transient     Transient `json:"transient"`
}

func newSession(userID int64) *Session {
	return &Session{UserID: userID, State: StateSelectingAction}
}

// finish applies a terminal transition.
func (s *Session) finish() {
	s.Transient = Transient{}
	s.State = StateSelectingAction
}
