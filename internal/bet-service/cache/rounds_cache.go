package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/updown-rounds/internal/bet-service/dto"
)

// RoundsCache guarda a visão da rodada corrente por símbolo.
// Não é fonte de verdade: motor e agendador nunca leem daqui.
type RoundsCache struct {
	R   *redis.Client
	TTL time.Duration
}

func New(r *redis.Client, ttl time.Duration) *RoundsCache {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &RoundsCache{R: r, TTL: ttl}
}

func keyCurrent(symbol string) string { return "rounds:current:" + symbol }

func (c *RoundsCache) GetCurrent(ctx context.Context, symbol string, dst *dto.RoundView) (bool, error) {
	b, err := c.R.Get(ctx, keyCurrent(symbol)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(b, dst)
}

// SetCurrent nunca guarda além do início da rodada, quando as apostas fecham
func (c *RoundsCache) SetCurrent(ctx context.Context, symbol string, v dto.RoundView) error {
	ttl := c.TTL
	if left := time.Until(v.StartTime); left < ttl {
		ttl = left
	}
	if ttl <= 0 {
		return nil
	}
	b, _ := json.Marshal(v)
	return c.R.Set(ctx, keyCurrent(symbol), b, ttl).Err()
}

func (c *RoundsCache) Invalidate(ctx context.Context, symbol string) error {
	return c.R.Del(ctx, keyCurrent(symbol)).Err()
}
