package consumer

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/updown-rounds/internal/shared/kafka"
	"github.com/radieske/updown-rounds/pkg/contracts/events"
)

// Invalidator remove a visão cacheada da rodada corrente de um símbolo
type Invalidator interface {
	Invalidate(ctx context.Context, symbol string) error
}

// SettledListener consome round_settled e derruba o cache da rodada corrente do
// símbolo: o mesmo tick do agendador que liquida também abre a próxima janela
type SettledListener struct {
	Log    *zap.Logger
	Reader kafka.MessageReader
	Cache  Invalidator

	OnConsumed func()       // métricas (counter++)
	OnError    func(string) // métricas por fase
}

// Run consome até o contexto ser cancelado
func (l *SettledListener) Run(ctx context.Context) error {
	for {
		_, value, err := kafka.ReadNext(ctx, l.Reader)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.Log.Warn("kafka read failed", zap.Error(err))
			l.fail("read")
			time.Sleep(500 * time.Millisecond)
			continue
		}

		if l.OnConsumed != nil {
			l.OnConsumed()
		}

		var ev events.RoundSettled
		if err := json.Unmarshal(value, &ev); err != nil || ev.Symbol == "" {
			l.Log.Warn("invalid round_settled message", zap.Error(err))
			l.fail("decode")
			continue
		}

		if err := l.Cache.Invalidate(ctx, ev.Symbol); err != nil {
			l.Log.Warn("cache invalidate failed", zap.String("symbol", ev.Symbol), zap.Error(err))
			l.fail("cache")
			continue
		}
		l.Log.Debug("round settled, cache invalidated",
			zap.String("round_id", ev.RoundID),
			zap.String("symbol", ev.Symbol),
			zap.String("reason", ev.Reason),
		)
	}
}

func (l *SettledListener) fail(stage string) {
	if l.OnError != nil {
		l.OnError(stage)
	}
}
