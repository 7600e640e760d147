package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/radieske/updown-rounds/pkg/contracts/events"
)

// Publisher publica os eventos de domínio, um writer por tópico
// Writers nil descartam o evento (serviço que não produz aquele tópico)
type Publisher struct {
	BetPlaced       MessageWriter
	RoundSettled    MessageWriter
	PayoutConfirmed MessageWriter

	now func() time.Time
}

func NewPublisher(betPlaced, roundSettled, payoutConfirmed MessageWriter) *Publisher {
	return &Publisher{
		BetPlaced:       betPlaced,
		RoundSettled:    roundSettled,
		PayoutConfirmed: payoutConfirmed,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// chave = rodada, mantendo a ordem dos eventos da mesma rodada na partição
func (p *Publisher) PublishBetPlaced(ctx context.Context, e events.BetPlaced) error {
	if e.Ts.IsZero() {
		e.Ts = p.now()
	}
	return p.publish(ctx, p.BetPlaced, e.RoundID, e)
}

func (p *Publisher) PublishRoundSettled(ctx context.Context, e events.RoundSettled) error {
	if e.Ts.IsZero() {
		e.Ts = p.now()
	}
	return p.publish(ctx, p.RoundSettled, e.RoundID, e)
}

func (p *Publisher) PublishPayoutConfirmed(ctx context.Context, e events.PayoutConfirmed) error {
	if e.Ts.IsZero() {
		e.Ts = p.now()
	}
	return p.publish(ctx, p.PayoutConfirmed, e.RoundID, e)
}

func (p *Publisher) publish(ctx context.Context, w MessageWriter, key string, v any) error {
	if w == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := WriteJSON(ctx, w, key, b); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}
