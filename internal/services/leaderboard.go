package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/honeynil/ShopBotLedger/internal/config"
	"github.com/honeynil/ShopBotLedger/internal/models"
	"github.com/honeynil/ShopBotLedger/internal/repository"
)

const defaultLeaderboardSize = 10

type LeaderboardService struct {
	board   repository.LeaderboardRepository
	economy config.Economy
	rng     Intner
}

func NewLeaderboardService(board repository.LeaderboardRepository, economy config.Economy, rng Intner) *LeaderboardService {
	return &LeaderboardService{board: board, economy: economy, rng: rng}
}

// GetLeaderboard nudges every synthetic entry by 1..FakeBump before reading
// the top entries. A failed nudge only costs realism and is not returned.
func (s *LeaderboardService) GetLeaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = defaultLeaderboardSize
	}

	fakes, err := s.board.Fakes(ctx)
	if err != nil {
		slog.Warn("failed to load fake leaderboard entries", "error", err)
	}
	for _, f := range fakes {
		if err := s.board.BumpFake(ctx, f.Name, s.bump()); err != nil {
			slog.Warn("failed to bump fake leaderboard entry", "name", f.Name, "error", err)
		}
	}

	return s.board.Top(ctx, limit)
}

// GetRank is 1 + the number of users holding strictly more coins.
func (s *LeaderboardService) GetRank(ctx context.Context, userID int64) (int64, error) {
	richer, err := s.board.CountRicherThan(ctx, userID)
	if err != nil {
		return 0, err
	}
	return richer + 1, nil
}

func (s *LeaderboardService) bump() int64 {
	if s.economy.FakeBump <= 0 {
		return 0
	}
	return int64(s.rng.Intn(s.economy.FakeBump) + 1)
}

// FormatLeaderboard renders entries as a numbered list.
func FormatLeaderboard(entries []models.LeaderboardEntry) string {
	var b strings.Builder
	b.WriteString("Leaderboard\n")
	for i, e := range entries {
		fmt.Fprintf(&b, "%d. %s: %d\n", i+1, e.Name, e.Coins)
	}
	return b.String()
}
