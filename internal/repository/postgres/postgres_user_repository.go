package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/honeynil/ShopBotLedger/internal/models"
	pkgerrors "github.com/honeynil/ShopBotLedger/pkg/errors"
)

const userTracer = "user-repository"

type PostgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) Touch(ctx context.Context, id int64, displayName string) (err error) {
	ctx, done := instrument(ctx, userTracer, "TouchUser", attribute.Int64("user_id", id))
	defer done(&err)

	query := `
		INSERT INTO users (id, display_name)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET display_name = EXCLUDED.display_name
		WHERE users.display_name IS DISTINCT FROM EXCLUDED.display_name
	`
	if _, err = r.db.ExecContext(ctx, query, id, displayName); err != nil {
		slog.Error("failed to touch user", "method", "Touch", "user_id", id, "error", err)
		return pkgerrors.Persistence("touch user", err)
	}
	return nil
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id int64) (_ *models.User, err error) {
	ctx, done := instrument(ctx, userTracer, "GetUserByID", attribute.Int64("user_id", id))
	defer done(&err)

	query := `SELECT id, display_name, COALESCE(email, ''), password_hash, registered, avatar, created_at FROM users WHERE id = $1`
	var user models.User
	err = r.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.DisplayName,
		&user.Email,
		&user.PasswordHash,
		&user.Registered,
		&user.Avatar,
		&user.CreatedAt,
	)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, pkgerrors.ErrUserNotFound
	case err != nil:
		slog.Error("failed to get user by id", "method", "GetByID", "user_id", id, "error", err)
		return nil, pkgerrors.Persistence("get user by id", err)
	}
	return &user, nil
}

func (r *PostgresUserRepository) GetByEmail(ctx context.Context, email string) (_ *models.User, err error) {
	if email == "" {
		return nil, fmt.Errorf("%w: email cannot be empty", pkgerrors.ErrInvalidEmail)
	}
	ctx, done := instrument(ctx, userTracer, "GetUserByEmail")
	defer done(&err)

	query := `SELECT id, display_name, email, password_hash, registered, avatar, created_at FROM users WHERE email = $1`
	var user models.User
	err = r.db.QueryRowContext(ctx, query, email).Scan(
		&user.ID,
		&user.DisplayName,
		&user.Email,
		&user.PasswordHash,
		&user.Registered,
		&user.Avatar,
		&user.CreatedAt,
	)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, pkgerrors.ErrUserNotFound
	case err != nil:
		slog.Error("failed to get user by email", "method", "GetByEmail", "error", err)
		return nil, pkgerrors.Persistence("get user by email", err)
	}
	return &user, nil
}

func (r *PostgresUserRepository) CompleteRegistration(ctx context.Context, id int64, email, passwordHash string) (err error) {
	ctx, done := instrument(ctx, userTracer, "CompleteRegistration", attribute.Int64("user_id", id))
	defer done(&err)

	if email == "" || passwordHash == "" {
		return fmt.Errorf("%w: email and password_hash are required", pkgerrors.ErrInvalidInput)
	}

	query := `
		UPDATE users
		SET email = $2, password_hash = $3, registered = TRUE
		WHERE id = $1 AND registered = FALSE
	`
	res, err := r.db.ExecContext(ctx, query, id, email, passwordHash)
	if err != nil {
		if uniqueConstraint(err) != "" {
			return pkgerrors.ErrEmailExists
		}
		slog.Error("failed to complete registration", "method", "CompleteRegistration", "user_id", id, "error", err)
		return pkgerrors.Persistence("complete registration", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return pkgerrors.Persistence("complete registration", err)
	}
	if n == 0 {
		return pkgerrors.ErrUserNotFound
	}

	slog.Info("user registered", "method", "CompleteRegistration", "user_id", id)
	return nil
}

func (r *PostgresUserRepository) SetAvatar(ctx context.Context, id int64, avatar string) (err error) {
	ctx, done := instrument(ctx, userTracer, "SetAvatar", attribute.Int64("user_id", id))
	defer done(&err)

	res, err := r.db.ExecContext(ctx, `UPDATE users SET avatar = $2 WHERE id = $1`, id, avatar)
	if err != nil {
		return pkgerrors.Persistence("set avatar", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return pkgerrors.Persistence("set avatar", err)
	}
	if n == 0 {
		return pkgerrors.ErrUserNotFound
	}
	return nil
}

func (r *PostgresUserRepository) IsRegistered(ctx context.Context, id int64) (_ bool, err error) {
	ctx, done := instrument(ctx, userTracer, "IsRegistered", attribute.Int64("user_id", id))
	defer done(&err)

	var registered bool
	err = r.db.QueryRowContext(ctx, `SELECT registered FROM users WHERE id = $1`, id).Scan(&registered)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, pkgerrors.Persistence("is registered", err)
	}
	return registered, nil
}
