package consumer

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/updown-rounds/internal/shared/kafka"
	"github.com/radieske/updown-rounds/pkg/contracts/events"
)

// Broadcaster repassa uma aposta aos clientes do feed ao vivo; devolve quantos receberam
type Broadcaster interface {
	Broadcast(e events.BetPlaced) int
}

// BetFeedListener consome bet_placed e alimenta o feed websocket.
// Cada réplica usa um grupo próprio para receber todas as apostas.
type BetFeedListener struct {
	Log    *zap.Logger
	Reader kafka.MessageReader
	Hub    Broadcaster

	OnConsumed func()
	OnError    func(string)
}

// Run consome até o contexto ser cancelado
func (l *BetFeedListener) Run(ctx context.Context) error {
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

		var ev events.BetPlaced
		if err := json.Unmarshal(value, &ev); err != nil || ev.RoundID == "" {
			l.Log.Warn("invalid bet_placed message", zap.Error(err))
			l.fail("decode")
			continue
		}
		n := l.Hub.Broadcast(ev)
		l.Log.Debug("bet broadcast",
			zap.String("wager_id", ev.WagerID),
			zap.String("round_id", ev.RoundID),
			zap.Int("clients", n),
		)
	}
}

func (l *BetFeedListener) fail(stage string) {
	if l.OnError != nil {
		l.OnError(stage)
	}
}
