package repository_test

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	repository "github.com/honeynil/ShopBotLedger/internal/repository/postgres"
	pkgerrors "github.com/honeynil/ShopBotLedger/pkg/errors"
)

func TestPostgresProductRepository_Reserve(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresProductRepository(db)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta(`WHERE key = $1 AND active AND (stock = -1 OR stock > 0)`)).
		WithArgs("mafia").
		WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err := repo.Reserve(ctx, "mafia")
	assert.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectExec(regexp.QuoteMeta(`WHERE key = $1 AND active AND (stock = -1 OR stock > 0)`)).
		WithArgs("zodiac").
		WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err = repo.Reserve(ctx, "zodiac")
	assert.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresProductRepository_Release(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresProductRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE products SET stock = stock + 1 WHERE key = $1 AND stock <> -1`)).
		WithArgs("mafia").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.Release(context.Background(), "mafia"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresProductRepository_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresProductRepository(db)
	ctx := context.Background()
	cols := []string{"key", "name", "price", "card_number", "stock", "active"}

	mock.ExpectQuery(regexp.QuoteMeta(`FROM products WHERE key = $1`)).
		WithArgs("mafia").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("mafia", "Mafia Nights cheat", int64(450000), "6037-9972-1234-5678", -1, true))
	p, err := repo.Get(ctx, "mafia")
	assert.NoError(t, err)
	assert.Equal(t, int64(450000), p.Price)
	assert.True(t, p.InStock())

	mock.ExpectQuery(regexp.QuoteMeta(`FROM products WHERE key = $1`)).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(cols))
	_, err = repo.Get(ctx, "nope")
	assert.ErrorIs(t, err, pkgerrors.ErrProductNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}
