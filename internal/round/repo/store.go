package repo

import (
	"context"
	"time"

	"github.com/radieske/updown-rounds/internal/round"
)

// OwnerWager é uma aposta acompanhada dos dados da rodada, usada no histórico do usuário
type OwnerWager struct {
	round.Wager
	Symbol     string
	WinnerSide round.Winner
	StartTime  time.Time
	EndTime    time.Time
}

// Store reúne todas as operações de persistência; Postgres e Memory implementam.
// Em todas as listagens, limit <= 0 significa sem limite.
type Store interface {
	Ping(ctx context.Context) error

	CreateRound(ctx context.Context, r *round.Round) error
	GetRound(ctx context.Context, id string) (round.Round, error)
	LockDue(ctx context.Context, now time.Time) ([]round.Round, error)
	ListSettleable(ctx context.Context, now time.Time) ([]round.Round, error)
	ListWagers(ctx context.Context, roundID string) ([]round.Wager, error)

	ApplyContribution(ctx context.Context, w *round.Wager) (round.Round, error)
	CommitSettlement(ctx context.Context, s round.Settlement) error

	ListPendingPayouts(ctx context.Context, roundID string, limit int) ([]round.Wager, error)
	ClaimPayout(ctx context.Context, wagerID string, now, until time.Time) (bool, error)
	ReleasePayout(ctx context.Context, wagerID string) error
	ConfirmPayout(ctx context.Context, wagerID, confirmation string, paidAt time.Time) (bool, error)

	CurrentRound(ctx context.Context, symbol string, now time.Time) (round.Round, error)
	RoundHistory(ctx context.Context, symbol string, limit int) ([]round.Round, error)
	WagersByOwner(ctx context.Context, owner string, limit int) ([]OwnerWager, error)
	GetAccount(ctx context.Context, owner string) (round.Account, error)
	RecentWagers(ctx context.Context, roundID string, limit int) ([]round.Wager, error)
	Rankings(ctx context.Context, by RankBy, limit int) ([]round.Account, error)
	GlobalStats(ctx context.Context) (Stats, error)
}

var (
	_ Store = (*Postgres)(nil)
	_ Store = (*Memory)(nil)
)
