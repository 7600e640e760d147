package pool

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/updown-rounds/internal/round"
)

// Store é a parte do repositório que o contador de pools usa
type Store interface {
	ApplyContribution(ctx context.Context, w *round.Wager) (round.Round, error)
}

// Contribution é a entrada validada de uma aposta, já normalizada para a moeda de cotação
type Contribution struct {
	RoundID   string
	Side      round.Side
	OwnerKey  string
	NetAmount decimal.Decimal

	GrossPaid   decimal.Decimal
	PaidAsset   string
	PaidAmount  decimal.Decimal
	PlatformFee decimal.Decimal
	SwapRef     string
}

// Validate confere os campos obrigatórios e as pré-condições de valor
func (c Contribution) Validate() error {
	if _, err := uuid.Parse(c.RoundID); err != nil {
		return fmt.Errorf("%w: roundId", round.ErrInvalidWager)
	}
	if !c.Side.Valid() {
		return fmt.Errorf("%w: side must be GREEN or RED", round.ErrInvalidWager)
	}
	if strings.TrimSpace(c.OwnerKey) == "" {
		return fmt.Errorf("%w: owner key required", round.ErrInvalidWager)
	}
	// o valor gravado é o arredondado; abaixo de 1e-8 vira zero
	if !c.NetAmount.Round(round.AmountPlaces).IsPositive() {
		return fmt.Errorf("%w: net amount must be positive", round.ErrInvalidWager)
	}
	return nil
}

// Accountant é o único caminho de escrita dos pools durante a fase OPEN
type Accountant struct {
	log   *zap.Logger
	store Store
	now   func() time.Time
}

func NewAccountant(log *zap.Logger, store Store) *Accountant {
	return &Accountant{log: log, store: store, now: time.Now}
}

// ApplyContribution grava a aposta e incrementa o pool do lado numa única transação.
// Rodada já travada ou liquidada resulta em round.ErrRoundNotOpen, sem alterar pools.
func (a *Accountant) ApplyContribution(ctx context.Context, c Contribution) (round.Wager, round.Round, error) {
	if err := c.Validate(); err != nil {
		return round.Wager{}, round.Round{}, err
	}

	w := round.Wager{
		ID:          uuid.NewString(),
		RoundID:     c.RoundID,
		Side:        c.Side,
		OwnerKey:    strings.TrimSpace(c.OwnerKey),
		NetAmount:   c.NetAmount.Round(round.AmountPlaces),
		GrossPaid:   c.GrossPaid,
		PaidAsset:   c.PaidAsset,
		PaidAmount:  c.PaidAmount,
		PlatformFee: c.PlatformFee,
		SwapRef:     c.SwapRef,
		Status:      round.WagerPending,
		Payout:      decimal.Zero,
		CreatedAt:   a.now().UTC(),
	}

	updated, err := a.store.ApplyContribution(ctx, &w)
	if err != nil {
		a.log.Warn("contribution rejected",
			zap.String("round_id", c.RoundID),
			zap.String("side", string(c.Side)),
			zap.Error(err),
		)
		return round.Wager{}, round.Round{}, err
	}

	a.log.Info("contribution applied",
		zap.String("round_id", updated.ID),
		zap.String("wager_id", w.ID),
		zap.String("side", string(w.Side)),
		zap.String("net", w.NetAmount.String()),
		zap.String("pool_green", updated.PoolGreen.String()),
		zap.String("pool_red", updated.PoolRed.String()),
	)
	return w, updated, nil
}
