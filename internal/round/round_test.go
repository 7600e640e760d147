package round_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/updown-rounds/internal/round"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestResolve(t *testing.T) {
	assert.Equal(t, round.WinnerGreen, round.Resolve(d("100"), d("100.01")))
	assert.Equal(t, round.WinnerRed, round.Resolve(d("100"), d("99.99")))
	assert.Equal(t, round.WinnerDraw, round.Resolve(d("100"), d("100.000")))
}

func TestIsUnilateral(t *testing.T) {
	cases := []struct {
		green, red string
		want       bool
	}{
		{"100", "0", true},
		{"0", "50", true},
		{"100", "50", false},
		{"0", "0", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, round.IsUnilateral(d(c.green), d(c.red)), "%s/%s", c.green, c.red)
	}
}

func TestDistribute_Scenario(t *testing.T) {
	dist := round.Distribute(d("100"), d("50"), decimal.Zero, d("0.05"))

	assert.True(t, d("150").Equal(dist.Liquidity))
	assert.True(t, d("7.5").Equal(dist.Fee))
	assert.True(t, d("142.5").Equal(dist.Pool))

	require.True(t, dist.MultiplierGreen.Valid)
	require.True(t, dist.MultiplierRed.Valid)
	assert.True(t, d("1.425").Equal(dist.MultiplierGreen.Decimal))
	assert.True(t, d("2.85").Equal(dist.MultiplierRed.Decimal))

	assert.True(t, d("14.25").Equal(dist.Payout(d("10"), d("100"))))
}

func TestDistribute_BonusAndEmptySide(t *testing.T) {
	dist := round.Distribute(d("0"), d("40"), d("10"), d("0.05"))

	// 40 + 10 - 2
	assert.True(t, d("48").Equal(dist.Pool))
	assert.False(t, dist.MultiplierGreen.Valid)
	require.True(t, dist.MultiplierRed.Valid)
	assert.True(t, d("1.2").Equal(dist.MultiplierRed.Decimal))
	assert.True(t, dist.Payout(d("5"), decimal.Zero).IsZero())
}

func TestLiveMultipliers(t *testing.T) {
	g, r := round.LiveMultipliers(round.Round{
		PoolGreen: d("100"), PoolRed: d("50"), BonusBoost: decimal.Zero, FeeRate: d("0.05"),
	})
	assert.Equal(t, "1.425", g.Decimal.String())
	assert.Equal(t, "2.85", r.Decimal.String())
}

func TestNextWindowStart(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 3, 45, 0, time.UTC)
	start := round.NextWindowStart(now, 5*time.Minute)

	assert.Equal(t, time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 10, 0, 0, time.UTC), start.Add(5*time.Minute))

	// exatamente no limite: a janela corrente já começou
	onBoundary := time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 10, 0, 0, time.UTC), round.NextWindowStart(onBoundary, 5*time.Minute))
}

func TestTimeframeLabel(t *testing.T) {
	assert.Equal(t, "5m", round.TimeframeLabel(5*time.Minute))
	assert.Equal(t, "15m", round.TimeframeLabel(15*time.Minute))
	assert.Equal(t, "1h", round.TimeframeLabel(time.Hour))
	assert.Equal(t, "1d", round.TimeframeLabel(24*time.Hour))
}

func TestSideValid(t *testing.T) {
	assert.True(t, round.SideGreen.Valid())
	assert.True(t, round.SideRed.Valid())
	assert.False(t, round.Side("DRAW").Valid())
	assert.False(t, round.Side("").Valid())
}

func TestValidateFeeRate(t *testing.T) {
	require.NoError(t, round.ValidateFeeRate(d("0")))
	require.NoError(t, round.ValidateFeeRate(d("0.05")))
	assert.ErrorIs(t, round.ValidateFeeRate(d("1")), round.ErrInvalidConfig)
	assert.ErrorIs(t, round.ValidateFeeRate(d("1.5")), round.ErrInvalidConfig)
	assert.ErrorIs(t, round.ValidateFeeRate(d("-0.01")), round.ErrInvalidConfig)
}

func TestValidateFraction(t *testing.T) {
	require.NoError(t, round.ValidateFraction("refund retention", d("0")))
	require.NoError(t, round.ValidateFraction("refund retention", d("1")))
	err := round.ValidateFraction("refund retention", d("1.5"))
	assert.ErrorIs(t, err, round.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "refund retention")
}

func TestValidateWindow(t *testing.T) {
	require.NoError(t, round.ValidateWindow(time.Minute))
	require.NoError(t, round.ValidateWindow(5*time.Minute))
	require.NoError(t, round.ValidateWindow(24*time.Hour))

	for _, w := range []time.Duration{0, 500 * time.Microsecond, 30 * time.Second, 90 * time.Second, -time.Minute} {
		assert.ErrorIs(t, round.ValidateWindow(w), round.ErrInvalidConfig, w.String())
	}
}

func TestNextWindowStart_SubMillisecondWindowDoesNotPanic(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 3, 45, 0, time.UTC)
	assert.NotPanics(t, func() { round.NextWindowStart(now, 500*time.Microsecond) })
}

func TestDistribute_FeeAboveOneNeverGoesNegative(t *testing.T) {
	dist := round.Distribute(d("100"), d("50"), decimal.Zero, d("1.5"))

	assert.True(t, dist.Pool.IsZero())
	assert.False(t, dist.Payout(d("100"), d("100")).IsNegative())
	require.True(t, dist.MultiplierGreen.Valid)
	assert.False(t, dist.MultiplierGreen.Decimal.IsNegative())
}
