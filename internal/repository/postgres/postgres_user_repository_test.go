package repository_test

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	repository "github.com/honeynil/ShopBotLedger/internal/repository/postgres"
	pkgerrors "github.com/honeynil/ShopBotLedger/pkg/errors"
)

func TestPostgresUserRepository_Touch(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO users (id, display_name)`)).
		WithArgs(int64(42), "Ali").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.Touch(context.Background(), 42, "Ali"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUserRepository_GetByEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresUserRepository(db)
	ctx := context.Background()

	t.Run("EmptyEmail", func(t *testing.T) {
		user, err := repo.GetByEmail(ctx, "")
		assert.Nil(t, user)
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidEmail)
	})

	t.Run("Success", func(t *testing.T) {
		createdAt := time.Now().UTC()
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, display_name, email, password_hash, registered, avatar, created_at FROM users WHERE email = $1`)).
			WithArgs("ali@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"id", "display_name", "email", "password_hash", "registered", "avatar", "created_at"}).
				AddRow(int64(42), "Ali", "ali@example.com", "hash", true, "", createdAt))

		user, err := repo.GetByEmail(ctx, "ali@example.com")
		assert.NoError(t, err)
		assert.Equal(t, int64(42), user.ID)
		assert.True(t, user.Registered)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE email = $1`)).
			WithArgs("nobody@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"id", "display_name", "email", "password_hash", "registered", "avatar", "created_at"}))

		user, err := repo.GetByEmail(ctx, "nobody@example.com")
		assert.Nil(t, user)
		assert.ErrorIs(t, err, pkgerrors.ErrUserNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresUserRepository_CompleteRegistration(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresUserRepository(db)
	ctx := context.Background()

	t.Run("MissingFields", func(t *testing.T) {
		err := repo.CompleteRegistration(ctx, 42, "", "")
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)
	})

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(`WHERE id = $1 AND registered = FALSE`)).
			WithArgs(int64(42), "ali@example.com", "hash").
			WillReturnResult(sqlmock.NewResult(0, 1))
		assert.NoError(t, repo.CompleteRegistration(ctx, 42, "ali@example.com", "hash"))
	})

	t.Run("EmailTaken", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE users`)).
			WillReturnError(&pq.Error{Code: "23505", Constraint: "users_email_key"})
		err := repo.CompleteRegistration(ctx, 43, "ali@example.com", "hash")
		assert.ErrorIs(t, err, pkgerrors.ErrEmailExists)
	})

	t.Run("AlreadyRegistered", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE users`)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		err := repo.CompleteRegistration(ctx, 42, "ali@example.com", "hash")
		assert.ErrorIs(t, err, pkgerrors.ErrUserNotFound)
	})

	t.Run("DatabaseError", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE users`)).
			WillReturnError(fmt.Errorf("database error"))
		err := repo.CompleteRegistration(ctx, 42, "ali@example.com", "hash")
		assert.ErrorIs(t, err, pkgerrors.ErrPersistence)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUserRepository_SetAvatar(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresUserRepository(db)
	ctx := context.Background()
	query := regexp.QuoteMeta(`UPDATE users SET avatar = $2 WHERE id = $1`)

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec(query).WithArgs(int64(42), "photo-1").WillReturnResult(sqlmock.NewResult(0, 1))
		assert.NoError(t, repo.SetAvatar(ctx, 42, "photo-1"))
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectExec(query).WithArgs(int64(43), "photo-1").WillReturnResult(sqlmock.NewResult(0, 0))
		assert.ErrorIs(t, repo.SetAvatar(ctx, 43, "photo-1"), pkgerrors.ErrUserNotFound)
	})

	t.Run("RowsAffectedError", func(t *testing.T) {
		mock.ExpectExec(query).WithArgs(int64(42), "photo-1").
			WillReturnResult(sqlmock.NewErrorResult(fmt.Errorf("driver gone")))
		err := repo.SetAvatar(ctx, 42, "photo-1")
		assert.ErrorIs(t, err, pkgerrors.ErrPersistence)
		assert.NotErrorIs(t, err, pkgerrors.ErrUserNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUserRepository_IsRegistered(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresUserRepository(db)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT registered FROM users WHERE id = $1`)).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"registered"}))
	ok, err := repo.IsRegistered(ctx, 1)
	assert.NoError(t, err)
	assert.False(t, ok)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT registered FROM users WHERE id = $1`)).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"registered"}).AddRow(true))
	ok, err = repo.IsRegistered(ctx, 2)
	assert.NoError(t, err)
	assert.True(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}
