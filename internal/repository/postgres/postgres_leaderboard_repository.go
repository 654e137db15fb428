package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/honeynil/ShopBotLedger/internal/models"
	pkgerrors "github.com/honeynil/ShopBotLedger/pkg/errors"
)

const leaderboardTracer = "leaderboard-repository"

type PostgresLeaderboardRepository struct {
	db *sql.DB
}

func NewPostgresLeaderboardRepository(db *sql.DB) *PostgresLeaderboardRepository {
	return &PostgresLeaderboardRepository{db: db}
}

func (r *PostgresLeaderboardRepository) Fakes(ctx context.Context) (_ []models.LeaderboardEntry, err error) {
	ctx, done := instrument(ctx, leaderboardTracer, "ListFakeEntries")
	defer done(&err)

	rows, err := r.db.QueryContext(ctx, `SELECT name, coins FROM leaderboard_fakes ORDER BY name`)
	if err != nil {
		return nil, pkgerrors.Persistence("list fake entries", err)
	}
	defer rows.Close()

	var entries []models.LeaderboardEntry
	for rows.Next() {
		e := models.LeaderboardEntry{Fake: true}
		if err = rows.Scan(&e.Name, &e.Coins); err != nil {
			return nil, pkgerrors.Persistence("scan fake entry", err)
		}
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, pkgerrors.Persistence("list fake entries", err)
	}
	return entries, nil
}

func (r *PostgresLeaderboardRepository) BumpFake(ctx context.Context, name string, delta int64) (err error) {
	ctx, done := instrument(ctx, leaderboardTracer, "BumpFakeEntry", attribute.String("name", name))
	defer done(&err)

	if _, err = r.db.ExecContext(ctx, `UPDATE leaderboard_fakes SET coins = coins + $2 WHERE name = $1`, name, delta); err != nil {
		slog.Error("failed to bump fake entry", "method", "BumpFake", "name", name, "error", err)
		return pkgerrors.Persistence("bump fake entry", err)
	}
	return nil
}

func (r *PostgresLeaderboardRepository) Top(ctx context.Context, limit int) (_ []models.LeaderboardEntry, err error) {
	ctx, done := instrument(ctx, leaderboardTracer, "TopEntries")
	defer done(&err)

	query := `
		SELECT name, user_id, coins, fake FROM (
			SELECT COALESCE(NULLIF(u.display_name, ''), 'user ' || c.user_id::text) AS name,
				c.user_id AS user_id, c.balance AS coins, FALSE AS fake
			FROM user_coins c
			LEFT JOIN users u ON u.id = c.user_id
			UNION ALL
			SELECT name, 0, coins, TRUE FROM leaderboard_fakes
		) board
		ORDER BY coins DESC, name
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, pkgerrors.Persistence("top entries", err)
	}
	defer rows.Close()

	var entries []models.LeaderboardEntry
	for rows.Next() {
		var e models.LeaderboardEntry
		if err = rows.Scan(&e.Name, &e.UserID, &e.Coins, &e.Fake); err != nil {
			return nil, pkgerrors.Persistence("scan entry", err)
		}
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, pkgerrors.Persistence("top entries", err)
	}
	return entries, nil
}

func (r *PostgresLeaderboardRepository) CountRicherThan(ctx context.Context, userID int64) (_ int64, err error) {
	ctx, done := instrument(ctx, leaderboardTracer, "CountRicherThan", attribute.Int64("user_id", userID))
	defer done(&err)

	query := `
		SELECT COUNT(*) FROM user_coins
		WHERE balance > COALESCE((SELECT balance FROM user_coins WHERE user_id = $1), 0)
	`
	var count int64
	if err = r.db.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, pkgerrors.Persistence("count richer users", err)
	}
	return count, nil
}
