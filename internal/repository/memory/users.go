package memory

import (
	"context"
	"fmt"

	"github.com/honeynil/ShopBotLedger/internal/models"
	pkgerrors "github.com/honeynil/ShopBotLedger/pkg/errors"
)

type userRepo struct{ s *Store }

func (r userRepo) Touch(_ context.Context, id int64, displayName string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("users.Touch"); err != nil {
		return err
	}
	if u, ok := r.s.users[id]; ok {
		u.DisplayName = displayName
		return nil
	}
	r.s.users[id] = &models.User{ID: id, DisplayName: displayName, CreatedAt: r.s.now()}
	return nil
}

func (r userRepo) GetByID(_ context.Context, id int64) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, pkgerrors.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	if email == "" {
		return nil, fmt.Errorf("%w: email cannot be empty", pkgerrors.ErrInvalidEmail)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("users.GetByEmail"); err != nil {
		return nil, err
	}
	for _, u := range r.s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pkgerrors.ErrUserNotFound
}

func (r userRepo) CompleteRegistration(_ context.Context, id int64, email, passwordHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("users.CompleteRegistration"); err != nil {
		return err
	}
	for _, u := range r.s.users {
		if u.Email == email && u.ID != id {
			return pkgerrors.ErrEmailExists
		}
	}
	u, ok := r.s.users[id]
	if !ok || u.Registered {
		return pkgerrors.ErrUserNotFound
	}
	u.Email, u.PasswordHash, u.Registered = email, passwordHash, true
	return nil
}

func (r userRepo) SetAvatar(_ context.Context, id int64, avatar string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return pkgerrors.ErrUserNotFound
	}
	u.Avatar = avatar
	return nil
}

func (r userRepo) IsRegistered(_ context.Context, id int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("users.IsRegistered"); err != nil {
		return false, err
	}
	u, ok := r.s.users[id]
	return ok && u.Registered, nil
}
