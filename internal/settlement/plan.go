package settlement

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/updown-rounds/internal/round"
)

// Motivos gravados no log de transições
const (
	ReasonUnilateral = "unilateral_refund"
	ReasonDraw       = "draw_refund"
	ReasonPrice      = "price_" // + GREEN | RED
)

// Config carrega os parâmetros de liquidação, passados explicitamente na construção
type Config struct {
	// fração retida no reembolso de rodada unilateral (0.02 = devolve 98%)
	RefundRetention decimal.Decimal
}

// DefaultConfig retorna os parâmetros padrão da plataforma
func DefaultConfig() Config {
	return Config{RefundRetention: decimal.RequireFromString("0.02")}
}

// Validate exige retenção em [0, 1]
func (c Config) Validate() error {
	return round.ValidateFraction("refund retention", c.RefundRetention)
}

// Plan calcula o resultado de liquidação de uma rodada travada. Função pura:
// a regra unilateral prevalece sobre o veredito de preço.
func Plan(r round.Round, wagers []round.Wager, obs round.Observation, cfg Config, at time.Time) round.Settlement {
	s := round.Settlement{
		RoundID:    r.ID,
		WinnerSide: round.WinnerDraw,
		SettledAt:  at.UTC(),
		Results:    make([]round.WagerResult, 0, len(wagers)),
	}

	if round.IsUnilateral(r.PoolGreen, r.PoolRed) {
		rate := decimal.Min(decimal.Max(decimal.NewFromInt(1).Sub(cfg.RefundRetention), decimal.Zero), decimal.NewFromInt(1))
		s.Reason = ReasonUnilateral
		for _, w := range wagers {
			s.Results = append(s.Results, result(w, round.WagerRefunded, w.NetAmount.Mul(rate).Round(round.AmountPlaces)))
		}
		return s
	}

	winner := round.Resolve(obs.Open, obs.Close)
	if winner == round.WinnerDraw {
		s.Reason = ReasonDraw
		for _, w := range wagers {
			s.Results = append(s.Results, result(w, round.WagerRefunded, w.NetAmount))
		}
		return s
	}

	dist := round.Distribute(r.PoolGreen, r.PoolRed, r.BonusBoost, r.FeeRate)
	s.WinnerSide = winner
	s.Reason = ReasonPrice + string(winner)
	s.MultiplierGreen = dist.MultiplierGreen
	s.MultiplierRed = dist.MultiplierRed

	winningPool := r.PoolGreen
	if winner == round.WinnerRed {
		winningPool = r.PoolRed
	}
	for _, w := range wagers {
		if string(w.Side) == string(winner) {
			s.Results = append(s.Results, result(w, round.WagerWon, dist.Payout(w.NetAmount, winningPool)))
		} else {
			s.Results = append(s.Results, result(w, round.WagerLost, decimal.Zero))
		}
	}
	return s
}

func result(w round.Wager, status round.WagerStatus, payout decimal.Decimal) round.WagerResult {
	return round.WagerResult{
		WagerID:  w.ID,
		OwnerKey: w.OwnerKey,
		Status:   status,
		Payout:   payout,
		Net:      w.NetAmount,
	}
}
