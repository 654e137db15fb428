package conversation

import (
	"context"
	"errors"

	"github.com/honeynil/ShopBotLedger/internal/notify"
	service "github.com/honeynil/ShopBotLedger/internal/services"
	pkgerrors "github.com/honeynil/ShopBotLedger/pkg/errors"
)

func (m *Machine) promptAuth() Outcome {
	return Outcome{
		Text:     "Welcome! Send your email address to create an account, or log in if you already have one.",
		Keyboard: [][]notify.Button{notify.Row(btn("Log in", BtnLogin))},
		Next:     StateRegisteringEmail,
	}
}

func (m *Machine) promptLogin(ctx context.Context, sess *Session, ev Event, match []string) (Outcome, error) {
	return Outcome{
		Text:     "Send the email address of your account.",
		Keyboard: [][]notify.Button{notify.Row(btn("Create an account", BtnRegister))},
		Next:     StateLoggingInEmail,
	}, nil
}

func (m *Machine) promptRegister(ctx context.Context, sess *Session, ev Event, match []string) (Outcome, error) {
	return m.promptAuth(), nil
}

func (m *Machine) registerEmail(ctx context.Context, sess *Session, ev Event, match []string) (Outcome, error) {
	email := match[1]
	if err := service.ValidateEmail(email); err != nil {
		return reject(err)
	}
	taken, err := m.svc.Accounts.EmailTaken(ctx, email)
	if err != nil {
		return Outcome{}, err
	}

	sess.Transient.PendingEmail = email
	if taken {
		return Outcome{Text: "This email already has an account. Enter your password to log in.", Next: StateLoggingInPassword}, nil
	}
	return Outcome{Text: "Choose a password (at least 6 characters).", Next: StateRegisteringPassword}, nil
}

func (m *Machine) loginEmail(ctx context.Context, sess *Session, ev Event, match []string) (Outcome, error) {
	email := match[1]
	if err := service.ValidateEmail(email); err != nil {
		return reject(err)
	}
	taken, err := m.svc.Accounts.EmailTaken(ctx, email)
	if err != nil {
		return Outcome{}, err
	}

	sess.Transient.PendingEmail = email
	if !taken {
		return Outcome{Text: "No account uses this email. Choose a password to create one.", Next: StateRegisteringPassword}, nil
	}
	return Outcome{Text: "Enter your password.", Next: StateLoggingInPassword}, nil
}

func (m *Machine) registerPassword(ctx context.Context, sess *Session, ev Event, match []string) (Outcome, error) {
	err := m.svc.Accounts.Register(ctx, ev.UserID, sess.Transient.PendingEmail, match[1])
	if errors.Is(err, pkgerrors.ErrEmailExists) {
		return Outcome{Text: "This email already has an account. Enter your password to log in.", Next: StateLoggingInPassword}, nil
	}
	if errors.Is(err, pkgerrors.ErrInvalidEmail) {
		return Outcome{Text: "Please send a valid email address.", Next: StateRegisteringEmail}, nil
	}
	if err != nil {
		return reject(err)
	}
	sess.Authenticated = true
	return m.welcome(sess, "Your account is ready!"), nil
}

func (m *Machine) loginPassword(ctx context.Context, sess *Session, ev Event, match []string) (Outcome, error) {
	ok, err := m.svc.Accounts.Login(ctx, ev.UserID, sess.Transient.PendingEmail, match[1])
	if err != nil {
		return Outcome{}, err
	}
	if !ok {
		return Outcome{Text: "Wrong email or password. Try the password again or /start over."}, nil
	}
	sess.Authenticated = true
	return m.welcome(sess, "Welcome back!"), nil
}

// welcome finishes authentication, detouring through the channel check when
// the user arrived with a referral link.
func (m *Machine) welcome(sess *Session, greeting string) Outcome {
	if sess.Transient.PendingReferrer != 0 {
		sess.Transient.PendingEmail = ""
		return Outcome{
			Text: greeting + "\nJoin our channel, then press the button below so your friend gets the referral reward.",
			Keyboard: [][]notify.Button{notify.Row(
				btn("I joined", BtnChannelJoined),
				btn("Skip", BtnChannelSkip),
			)},
			Next: StateAwaitingChannelCheck,
		}
	}
	return Outcome{Text: greeting + "\nChoose an action:", Keyboard: mainMenu(), Next: StateEnd}
}
