package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/updown-rounds/internal/payout"
	"github.com/radieske/updown-rounds/internal/round"
	"github.com/radieske/updown-rounds/pkg/contracts/events"
)

// Store é a parte do repositório que o motor de liquidação usa
type Store interface {
	ListWagers(ctx context.Context, roundID string) ([]round.Wager, error)
	CommitSettlement(ctx context.Context, s round.Settlement) error
}

// Oracle devolve abertura e fechamento do intervalo [start, end) de um símbolo
type Oracle interface {
	WindowObservation(ctx context.Context, symbol string, start, end time.Time) (round.Observation, error)
}

type Publisher interface {
	PublishRoundSettled(ctx context.Context, e events.RoundSettled) error
}

// Issuer recebe as apostas com pagamento pendente depois do commit
type Issuer interface {
	IssueRound(ctx context.Context, roundID string) (payout.Report, error)
}

// Engine leva uma rodada LOCKED para SETTLED exatamente uma vez
type Engine struct {
	log    *zap.Logger
	store  Store
	oracle Oracle
	cfg    Config
	pub    Publisher // opcional
	issuer Issuer    // opcional
}

func NewEngine(log *zap.Logger, store Store, oracle Oracle, cfg Config, pub Publisher, issuer Issuer) *Engine {
	return &Engine{log: log, store: store, oracle: oracle, cfg: cfg, pub: pub, issuer: issuer}
}

// Settle liquida uma rodada travada cuja janela já terminou.
// Falha do oráculo mantém a rodada LOCKED (round.ErrObservationUnavailable) para nova tentativa.
// Se outro processo venceu o claim, retorna round.ErrRoundAlreadySettled e nada é gravado.
func (e *Engine) Settle(ctx context.Context, r round.Round, now time.Time) (round.Settlement, error) {
	switch r.Status {
	case round.StatusLocked:
	case round.StatusSettled:
		return round.Settlement{}, round.ErrRoundAlreadySettled
	default:
		return round.Settlement{}, fmt.Errorf("settle round %s: status %s, want LOCKED", r.ID, r.Status)
	}
	if r.EndTime.After(now) {
		return round.Settlement{}, fmt.Errorf("settle round %s: window ends at %s", r.ID, r.EndTime.Format(time.RFC3339))
	}
	// parâmetro inválido mantém a rodada LOCKED até a correção
	if err := e.cfg.Validate(); err != nil {
		return round.Settlement{}, fmt.Errorf("settle round %s: %w", r.ID, err)
	}
	if err := round.ValidateFeeRate(r.FeeRate); err != nil {
		return round.Settlement{}, fmt.Errorf("settle round %s: %w", r.ID, err)
	}

	obs, err := e.oracle.WindowObservation(ctx, r.Symbol, r.StartTime, r.EndTime)
	if err != nil {
		if !errors.Is(err, round.ErrObservationUnavailable) {
			err = fmt.Errorf("%w: %v", round.ErrObservationUnavailable, err)
		}
		e.log.Warn("observation unavailable, round stays locked",
			zap.String("round_id", r.ID),
			zap.String("symbol", r.Symbol),
			zap.Error(err),
		)
		return round.Settlement{}, err
	}

	wagers, err := e.store.ListWagers(ctx, r.ID)
	if err != nil {
		return round.Settlement{}, fmt.Errorf("list wagers for round %s: %w", r.ID, err)
	}

	s := Plan(r, wagers, obs, e.cfg, now)
	for _, res := range s.Results {
		if res.Payout.IsNegative() {
			return round.Settlement{}, fmt.Errorf("settle round %s: wager %s: %w: negative payout %s",
				r.ID, res.WagerID, round.ErrInvalidConfig, res.Payout)
		}
	}
	if err := e.store.CommitSettlement(ctx, s); err != nil {
		if errors.Is(err, round.ErrRoundAlreadySettled) {
			e.log.Info("round already settled, skipping", zap.String("round_id", r.ID))
			return round.Settlement{}, err
		}
		return round.Settlement{}, fmt.Errorf("commit settlement for round %s: %w", r.ID, err)
	}

	e.log.Info("round settled",
		zap.String("round_id", r.ID),
		zap.String("symbol", r.Symbol),
		zap.String("winner", string(s.WinnerSide)),
		zap.String("reason", s.Reason),
		zap.String("open", obs.Open.String()),
		zap.String("close", obs.Close.String()),
		zap.Int("wagers", len(s.Results)),
	)

	// a partir daqui nada desfaz a liquidação
	if e.pub != nil {
		if err := e.pub.PublishRoundSettled(ctx, settledEvent(r, obs, s)); err != nil {
			e.log.Warn("publish round_settled failed", zap.String("round_id", r.ID), zap.Error(err))
		}
	}
	if e.issuer != nil {
		rep, err := e.issuer.IssueRound(ctx, r.ID)
		if err != nil {
			e.log.Warn("payout hand-off failed", zap.String("round_id", r.ID), zap.Error(err))
		} else {
			e.log.Info("payout hand-off done",
				zap.String("round_id", r.ID),
				zap.Int("paid", rep.Paid),
				zap.Int("failed", rep.Failed),
			)
		}
	}
	return s, nil
}

func settledEvent(r round.Round, obs round.Observation, s round.Settlement) events.RoundSettled {
	return events.RoundSettled{
		RoundID:         r.ID,
		Symbol:          r.Symbol,
		StartTime:       r.StartTime,
		EndTime:         r.EndTime,
		WinnerSide:      string(s.WinnerSide),
		Reason:          s.Reason,
		OpenPrice:       obs.Open.String(),
		ClosePrice:      obs.Close.String(),
		PoolGreen:       r.PoolGreen.String(),
		PoolRed:         r.PoolRed.String(),
		MultiplierGreen: nullString(s.MultiplierGreen),
		MultiplierRed:   nullString(s.MultiplierRed),
		Wagers:          len(s.Results),
		Ts:              s.SettledAt,
	}
}

func nullString(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	v := d.Decimal.String()
	return &v
}
