package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/radieske/updown-rounds/internal/round"
	"github.com/radieske/updown-rounds/internal/shared/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SERVICE_NAME", "round-scheduler")

	cfg := config.Load()
	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "ZECUSDT"}, cfg.ActiveSymbols)
	assert.Equal(t, 5*time.Minute, cfg.RoundWindow)
	assert.Equal(t, "0.05", cfg.FeeRate.String())
	assert.Equal(t, "0.02", cfg.RefundRetention.String())
	assert.Equal(t, "8085", cfg.HTTPPort)
	assert.Equal(t, "9097", cfg.MetricsPort)
	assert.Equal(t, "round_settled", cfg.TopicRoundSettled)
	assert.Equal(t, 200, cfg.PayoutBatch)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SERVICE_NAME", "bet-service")
	t.Setenv("ACTIVE_SYMBOLS", " btcusdt, ethusdt ,,")
	t.Setenv("ROUND_WINDOW", "1h")
	t.Setenv("ROUND_FEE_RATE", "0.1")
	t.Setenv("ROUND_BONUS_BOOST", "not-a-number")
	t.Setenv("PAYOUT_LEASE", "-5s")

	cfg := config.Load()
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.ActiveSymbols)
	assert.Equal(t, time.Hour, cfg.RoundWindow)
	assert.Equal(t, "0.1", cfg.FeeRate.String())
	assert.True(t, cfg.BonusBoost.IsZero())
	assert.Equal(t, time.Minute, cfg.PayoutLease)
	assert.Equal(t, "8083", cfg.HTTPPort)
}

func TestValidate_Defaults(t *testing.T) {
	t.Setenv("SERVICE_NAME", "round-scheduler")
	assert.NoError(t, config.Load().Validate())
}

func TestValidate_RejectsOutOfRange(t *testing.T) {
	t.Setenv("SERVICE_NAME", "round-scheduler")
	t.Setenv("ROUND_FEE_RATE", "1.5")
	t.Setenv("REFUND_RETENTION", "1.5")
	t.Setenv("SWAP_FEE_RATE", "1")
	t.Setenv("ROUND_WINDOW", "90s")

	err := config.Load().Validate()
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "ROUND_FEE_RATE=1.5")
		assert.Contains(t, err.Error(), "REFUND_RETENTION=1.5")
		assert.Contains(t, err.Error(), "SWAP_FEE_RATE=1")
		assert.Contains(t, err.Error(), "ROUND_WINDOW=1m30s")
		assert.ErrorIs(t, err, round.ErrInvalidConfig)
	}
}

func TestValidate_SubMillisecondWindow(t *testing.T) {
	t.Setenv("SERVICE_NAME", "round-scheduler")
	t.Setenv("ROUND_WINDOW", "500us")

	err := config.Load().Validate()
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "ROUND_WINDOW")
	}
}
