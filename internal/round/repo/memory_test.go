package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/updown-rounds/internal/round"
	"github.com/radieske/updown-rounds/internal/round/repo"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func openRound(t *testing.T, m *repo.Memory, id, symbol string, start time.Time) round.Round {
	t.Helper()
	r := round.Round{
		ID:        id,
		Symbol:    symbol,
		Timeframe: "5m",
		StartTime: start,
		EndTime:   start.Add(5 * time.Minute),
		Status:    round.StatusOpen,
		FeeRate:   d("0.05"),
	}
	require.NoError(t, m.CreateRound(context.Background(), &r))
	return r
}

func addWager(t *testing.T, m *repo.Memory, id, roundID, owner string, side round.Side, net string) {
	t.Helper()
	_, err := m.ApplyContribution(context.Background(), &round.Wager{
		ID: id, RoundID: roundID, OwnerKey: owner, Side: side, NetAmount: d(net), CreatedAt: time.Now(),
	})
	require.NoError(t, err)
}

func TestMemory_DuplicateWindow(t *testing.T) {
	m := repo.NewMemory()
	openRound(t, m, "r1", "BTCUSDT", t0)

	dup := round.Round{ID: "r2", Symbol: "BTCUSDT", StartTime: t0, Status: round.StatusOpen}
	assert.ErrorIs(t, m.CreateRound(context.Background(), &dup), round.ErrDuplicateRoundWindow)

	other := round.Round{ID: "r3", Symbol: "ETHUSDT", StartTime: t0, Status: round.StatusOpen}
	assert.NoError(t, m.CreateRound(context.Background(), &other))
}

func TestMemory_LockDueAndContributions(t *testing.T) {
	ctx := context.Background()
	m := repo.NewMemory()
	openRound(t, m, "due", "BTCUSDT", t0)
	openRound(t, m, "later", "BTCUSDT", t0.Add(5*time.Minute))
	addWager(t, m, "w1", "due", "alice", round.SideGreen, "10")

	locked, err := m.LockDue(ctx, t0)
	require.NoError(t, err)
	require.Len(t, locked, 1)
	assert.Equal(t, "due", locked[0].ID)

	again, err := m.LockDue(ctx, t0)
	require.NoError(t, err)
	assert.Empty(t, again)

	_, err = m.ApplyContribution(ctx, &round.Wager{ID: "w2", RoundID: "due", OwnerKey: "bob", Side: round.SideRed, NetAmount: d("1")})
	assert.ErrorIs(t, err, round.ErrRoundNotOpen)
	_, err = m.ApplyContribution(ctx, &round.Wager{ID: "w3", RoundID: "missing", Side: round.SideRed, NetAmount: d("1")})
	assert.ErrorIs(t, err, round.ErrRoundNotFound)

	r, err := m.GetRound(ctx, "due")
	require.NoError(t, err)
	assert.True(t, r.PoolGreen.Equal(d("10")))
	assert.True(t, r.PoolRed.IsZero())

	settleable, err := m.ListSettleable(ctx, t0.Add(4*time.Minute))
	require.NoError(t, err)
	assert.Empty(t, settleable)
	settleable, err = m.ListSettleable(ctx, t0.Add(5*time.Minute))
	require.NoError(t, err)
	require.Len(t, settleable, 1)

	tr := m.Transitions("due")
	require.Len(t, tr, 1)
	assert.Equal(t, round.StatusLocked, tr[0].To)
	assert.Equal(t, "betting_closed", tr[0].Reason)
}

func TestMemory_CommitSettlementIsAtomicAndOnce(t *testing.T) {
	ctx := context.Background()
	m := repo.NewMemory()
	openRound(t, m, "r1", "BTCUSDT", t0)
	addWager(t, m, "w1", "r1", "alice", round.SideGreen, "10")
	addWager(t, m, "w2", "r1", "bob", round.SideRed, "20")
	_, err := m.LockDue(ctx, t0)
	require.NoError(t, err)

	partial := round.Settlement{
		RoundID:    "r1",
		WinnerSide: round.WinnerGreen,
		Reason:     "price_GREEN",
		Results:    []round.WagerResult{{WagerID: "w1", OwnerKey: "alice", Status: round.WagerWon, Payout: d("28.5"), Net: d("10")}},
		SettledAt:  t0.Add(5 * time.Minute),
	}
	require.Error(t, m.CommitSettlement(ctx, partial))
	r, _ := m.GetRound(ctx, "r1")
	assert.Equal(t, round.StatusLocked, r.Status)

	full := partial
	full.Results = append(full.Results, round.WagerResult{WagerID: "w2", OwnerKey: "bob", Status: round.WagerLost, Payout: decimal.Zero, Net: d("20")})
	require.NoError(t, m.CommitSettlement(ctx, full))
	assert.ErrorIs(t, m.CommitSettlement(ctx, full), round.ErrRoundAlreadySettled)

	r, _ = m.GetRound(ctx, "r1")
	assert.Equal(t, round.StatusSettled, r.Status)
	assert.Equal(t, round.WinnerGreen, r.WinnerSide)

	bob, _ := m.GetAccount(ctx, "bob")
	assert.EqualValues(t, 1, bob.TotalLosses)
	assert.True(t, bob.TotalProfit.Equal(d("-20")))

	// vitória só entra na conta depois da confirmação do pagamento
	alice, _ := m.GetAccount(ctx, "alice")
	assert.EqualValues(t, 0, alice.TotalWins)

	hist, err := m.RoundHistory(ctx, "BTCUSDT", 10)
	require.NoError(t, err)
	require.Len(t, hist, 1)
}

func TestMemory_PayoutLease(t *testing.T) {
	ctx := context.Background()
	m := repo.NewMemory()
	openRound(t, m, "r1", "BTCUSDT", t0)
	addWager(t, m, "w1", "r1", "alice", round.SideGreen, "10")
	_, _ = m.LockDue(ctx, t0)
	require.NoError(t, m.CommitSettlement(ctx, round.Settlement{
		RoundID:    "r1",
		WinnerSide: round.WinnerDraw,
		Reason:     "unilateral_refund",
		Results:    []round.WagerResult{{WagerID: "w1", OwnerKey: "alice", Status: round.WagerRefunded, Payout: d("9.8"), Net: d("10")}},
		SettledAt:  t0.Add(5 * time.Minute),
	}))

	pending, err := m.ListPendingPayouts(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	now := t0.Add(6 * time.Minute)
	ok, err := m.ClaimPayout(ctx, "w1", now, now.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = m.ClaimPayout(ctx, "w1", now.Add(30*time.Second), now.Add(2*time.Minute))
	assert.False(t, ok, "lease still active")

	require.NoError(t, m.ReleasePayout(ctx, "w1"))
	ok, _ = m.ClaimPayout(ctx, "w1", now.Add(30*time.Second), now.Add(2*time.Minute))
	assert.True(t, ok)

	ok, err = m.ConfirmPayout(ctx, "w1", "conf-1", now.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = m.ConfirmPayout(ctx, "w1", "conf-2", now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)

	w, _ := m.Wager("w1")
	assert.Equal(t, "conf-1", w.PayoutConfirmation)
	assert.Equal(t, 2, w.PayoutAttempts)

	pending, _ = m.ListPendingPayouts(ctx, "", 0)
	assert.Empty(t, pending)

	alice, _ := m.GetAccount(ctx, "alice")
	assert.EqualValues(t, 0, alice.TotalWins, "refund is not a win")
}

func TestMemory_CurrentRoundAndOwnerHistory(t *testing.T) {
	ctx := context.Background()
	m := repo.NewMemory()
	openRound(t, m, "past", "BTCUSDT", t0)
	openRound(t, m, "next", "BTCUSDT", t0.Add(5*time.Minute))
	openRound(t, m, "after", "BTCUSDT", t0.Add(10*time.Minute))

	cur, err := m.CurrentRound(ctx, "BTCUSDT", t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "next", cur.ID)

	_, err = m.CurrentRound(ctx, "ETHUSDT", t0)
	assert.ErrorIs(t, err, round.ErrRoundNotFound)

	addWager(t, m, "w1", "next", "alice", round.SideGreen, "1")
	addWager(t, m, "w2", "after", "alice", round.SideRed, "2")
	addWager(t, m, "w3", "after", "bob", round.SideRed, "3")

	mine, err := m.WagersByOwner(ctx, "alice", 1)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "BTCUSDT", mine[0].Symbol)

	acc, _ := m.GetAccount(ctx, "alice")
	assert.EqualValues(t, 2, acc.TotalWagers)
	assert.True(t, acc.TotalVolume.Equal(d("3")))

	nobody, err := m.GetAccount(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, "nobody", nobody.OwnerKey)
}

func TestMemory_PendingPayoutsFewestAttemptsFirst(t *testing.T) {
	ctx := context.Background()
	m := repo.NewMemory()
	openRound(t, m, "r1", "BTCUSDT", t0)
	addWager(t, m, "w1", "r1", "alice", round.SideGreen, "10")
	addWager(t, m, "w2", "r1", "bob", round.SideGreen, "20")
	_, _ = m.LockDue(ctx, t0)
	require.NoError(t, m.CommitSettlement(ctx, round.Settlement{
		RoundID:    "r1",
		WinnerSide: round.WinnerDraw,
		Reason:     "unilateral_refund",
		Results: []round.WagerResult{
			{WagerID: "w1", OwnerKey: "alice", Status: round.WagerRefunded, Payout: d("9.8"), Net: d("10")},
			{WagerID: "w2", OwnerKey: "bob", Status: round.WagerRefunded, Payout: d("19.6"), Net: d("20")},
		},
		SettledAt: t0.Add(5 * time.Minute),
	}))

	first, err := m.ListPendingPayouts(ctx, "", 1)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, "w1", first[0].ID)

	now := t0.Add(6 * time.Minute)
	ok, err := m.ClaimPayout(ctx, "w1", now, now.Add(time.Minute))
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, m.ReleasePayout(ctx, "w1"))

	next, err := m.ListPendingPayouts(ctx, "", 1)
	require.NoError(t, err)
	require.Len(t, next, 1)
	assert.Equal(t, "w2", next[0].ID)

	// limit <= 0 devolve tudo
	all, err := m.ListPendingPayouts(ctx, "r1", 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

// leaderboardFixture: alice ganha 19 sobre 10, bob perde 10, carol aposta numa rodada aberta
func leaderboardFixture(t *testing.T) *repo.Memory {
	t.Helper()
	ctx := context.Background()
	m := repo.NewMemory()
	openRound(t, m, "r1", "BTCUSDT", t0)
	openRound(t, m, "r2", "ETHUSDT", t0.Add(5*time.Minute))
	addWager(t, m, "w1", "r1", "alice", round.SideGreen, "10")
	addWager(t, m, "w2", "r1", "bob", round.SideRed, "10")
	addWager(t, m, "w3", "r2", "carol", round.SideGreen, "5")
	_, err := m.LockDue(ctx, t0)
	require.NoError(t, err)
	require.NoError(t, m.CommitSettlement(ctx, round.Settlement{
		RoundID:    "r1",
		WinnerSide: round.WinnerGreen,
		Reason:     "price_GREEN",
		Results: []round.WagerResult{
			{WagerID: "w1", OwnerKey: "alice", Status: round.WagerWon, Payout: d("19"), Net: d("10")},
			{WagerID: "w2", OwnerKey: "bob", Status: round.WagerLost, Payout: decimal.Zero, Net: d("10")},
		},
		SettledAt: t0.Add(5 * time.Minute),
	}))
	ok, err := m.ConfirmPayout(ctx, "w1", "conf-1", t0.Add(6*time.Minute))
	require.NoError(t, err)
	require.True(t, ok)
	return m
}

func owners(accts []round.Account) []string {
	out := make([]string, 0, len(accts))
	for _, a := range accts {
		out = append(out, a.OwnerKey)
	}
	return out
}

func TestMemory_Rankings(t *testing.T) {
	ctx := context.Background()
	m := leaderboardFixture(t)

	byProfit, err := m.Rankings(ctx, repo.RankByProfit, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "carol", "bob"}, owners(byProfit))

	byWins, err := m.Rankings(ctx, repo.RankByWins, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "carol"}, owners(byWins))

	byRate, err := m.Rankings(ctx, repo.RankByWinRate, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, owners(byRate))
	assert.Equal(t, "100", repo.WinRate(byRate[0]).String())
	assert.True(t, repo.WinRate(byRate[1]).IsZero())

	none, err := repo.NewMemory().Rankings(ctx, repo.RankByProfit, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestParseRankBy(t *testing.T) {
	assert.Equal(t, repo.RankByWins, repo.ParseRankBy("wins"))
	assert.Equal(t, repo.RankByWinRate, repo.ParseRankBy("winRate"))
	assert.Equal(t, repo.RankByProfit, repo.ParseRankBy("volume"))
	assert.Equal(t, repo.RankByProfit, repo.ParseRankBy(""))
}

func TestMemory_GlobalStats(t *testing.T) {
	st, err := leaderboardFixture(t).GlobalStats(context.Background())
	require.NoError(t, err)

	assert.EqualValues(t, 3, st.TotalWagers)
	assert.EqualValues(t, 3, st.TotalAccounts)
	assert.True(t, st.TotalVolume.Equal(d("25")), st.TotalVolume.String())
	assert.True(t, st.TotalPaidOut.Equal(d("19")), st.TotalPaidOut.String())
	// 5% sobre a liquidez de 20 da rodada liquidada por preço
	assert.True(t, st.PlatformFees.Equal(d("1")), st.PlatformFees.String())
	assert.Equal(t, "BTCUSDT", st.MostActiveSymbol)

	empty, err := repo.NewMemory().GlobalStats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, empty.TotalWagers)
	assert.Empty(t, empty.MostActiveSymbol)
}

func TestMemory_RecentWagersNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := repo.NewMemory()
	openRound(t, m, "r1", "BTCUSDT", t0)
	for i, id := range []string{"w1", "w2", "w3"} {
		_, err := m.ApplyContribution(ctx, &round.Wager{
			ID: id, RoundID: "r1", OwnerKey: "alice", Side: round.SideGreen, NetAmount: d("1"),
			CreatedAt: t0.Add(-time.Duration(3-i) * time.Minute),
		})
		require.NoError(t, err)
	}

	got, err := m.RecentWagers(ctx, "r1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "w3", got[0].ID)
	assert.Equal(t, "w2", got[1].ID)

	none, err := m.RecentWagers(ctx, "missing", 50)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemory_WagersByOwnerKeepsProvenanceAndPaidAt(t *testing.T) {
	ctx := context.Background()
	m := repo.NewMemory()
	openRound(t, m, "r1", "BTCUSDT", t0)
	_, err := m.ApplyContribution(ctx, &round.Wager{
		ID: "w1", RoundID: "r1", OwnerKey: "alice", Side: round.SideGreen, NetAmount: d("9.4"),
		GrossPaid: d("10"), PaidAsset: "SOL", PaidAmount: d("0.05"), PlatformFee: d("0.6"), SwapRef: "swap-1",
		CreatedAt: t0.Add(-time.Minute),
	})
	require.NoError(t, err)
	_, err = m.LockDue(ctx, t0)
	require.NoError(t, err)
	require.NoError(t, m.CommitSettlement(ctx, round.Settlement{
		RoundID:    "r1",
		WinnerSide: round.WinnerDraw,
		Reason:     "draw_refund",
		Results:    []round.WagerResult{{WagerID: "w1", OwnerKey: "alice", Status: round.WagerRefunded, Payout: d("9.4"), Net: d("9.4")}},
		SettledAt:  t0.Add(5 * time.Minute),
	}))
	paidAt := t0.Add(6 * time.Minute)
	ok, err := m.ConfirmPayout(ctx, "w1", "conf-1", paidAt)
	require.NoError(t, err)
	require.True(t, ok)

	mine, err := m.WagersByOwner(ctx, "alice", 0)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	w := mine[0]
	assert.Equal(t, "SOL", w.PaidAsset)
	assert.Equal(t, "0.05", w.PaidAmount.String())
	assert.Equal(t, "0.6", w.PlatformFee.String())
	assert.Equal(t, "10", w.GrossPaid.String())
	assert.Equal(t, "conf-1", w.PayoutConfirmation)
	require.NotNil(t, w.PaidAt)
	assert.True(t, paidAt.Equal(*w.PaidAt))
	assert.Equal(t, round.WinnerDraw, w.WinnerSide)
}
