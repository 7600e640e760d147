package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/updown-rounds/internal/payout"
	"github.com/radieske/updown-rounds/internal/round"
)

// Store é a parte do repositório que o agendador usa
type Store interface {
	CreateRound(ctx context.Context, r *round.Round) error
	LockDue(ctx context.Context, now time.Time) ([]round.Round, error)
	ListSettleable(ctx context.Context, now time.Time) ([]round.Round, error)
}

type Settler interface {
	Settle(ctx context.Context, r round.Round, now time.Time) (round.Settlement, error)
}

// Sweeper reenvia pagamentos que ficaram sem confirmação
type Sweeper interface {
	IssuePending(ctx context.Context) (payout.Report, error)
}

// Config é copiada na construção; mudanças de ambiente não afetam rodadas já criadas
type Config struct {
	Symbols    []string
	Window     time.Duration
	FeeRate    decimal.Decimal
	BonusBoost decimal.Decimal

	// limite por rodada na liquidação (oráculo + commit + repasse)
	SettleTimeout time.Duration
}

// Validate exige janela em minutos inteiros, taxa em [0, 1) e bônus não negativo
func (c Config) Validate() error {
	if err := round.ValidateWindow(c.Window); err != nil {
		return err
	}
	if err := round.ValidateFeeRate(c.FeeRate); err != nil {
		return err
	}
	if c.BonusBoost.IsNegative() {
		return fmt.Errorf("%w: bonus boost %s is negative", round.ErrInvalidConfig, c.BonusBoost)
	}
	return nil
}

// Summary conta o que cada etapa fez numa execução
type Summary struct {
	Created  int           `json:"created"`
	Existing int           `json:"existing"`
	Locked   int           `json:"locked"`
	Settled  int           `json:"settled"`
	Skipped  int           `json:"skipped"`
	Failed   int           `json:"failed"`
	Payouts  payout.Report `json:"payouts"`
}

type Result struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	Summary Summary `json:"summary"`
}

// Scheduler executa ensure -> lock -> settle -> varredura de pagamentos.
// Seguro para execuções concorrentes: o store decide quem vence cada transição.
type Scheduler struct {
	Log      *zap.Logger
	Store    Store
	Settler  Settler
	Payouts  Sweeper // opcional
	Config   Config
	Now      func() time.Time
	OnCreate func()
	OnLock   func()
	OnSettle func(reason string)
	OnError  func(stage string)
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Scheduler) fail(stage string) {
	if s.OnError != nil {
		s.OnError(stage)
	}
}

// Run faz uma passada completa. Success=false só quando uma etapa não conseguiu nem listar o trabalho;
// falhas de rodadas individuais aparecem em Summary.Failed e na mensagem.
func (s *Scheduler) Run(ctx context.Context) Result {
	var (
		sum  Summary
		errs []error
	)

	if err := s.ensure(ctx, &sum); err != nil {
		errs = append(errs, err)
	}
	if err := s.lock(ctx, &sum); err != nil {
		errs = append(errs, err)
	}
	if err := s.settle(ctx, &sum); err != nil {
		errs = append(errs, err)
	}
	if err := s.sweep(ctx, &sum); err != nil {
		errs = append(errs, err)
	}

	res := Result{Success: len(errs) == 0, Summary: sum}
	switch {
	case len(errs) > 0:
		res.Message = errors.Join(errs...).Error()
		s.Log.Error("scheduler run failed", zap.Error(errors.Join(errs...)))
	case sum.Failed > 0:
		res.Message = fmt.Sprintf("scheduler completed with %d failures", sum.Failed)
		s.Log.Warn("scheduler run partial", zap.Int("failed", sum.Failed))
	default:
		res.Message = "scheduler completed successfully"
	}
	s.Log.Info("scheduler run",
		zap.Int("created", sum.Created),
		zap.Int("locked", sum.Locked),
		zap.Int("settled", sum.Settled),
		zap.Int("skipped", sum.Skipped),
		zap.Int("failed", sum.Failed),
		zap.Int("payouts_paid", sum.Payouts.Paid),
	)
	return res
}

// ensure cria a rodada da próxima janela de cada símbolo ativo.
// Config inválida não cria nada; lock e settle seguem para as rodadas existentes.
func (s *Scheduler) ensure(ctx context.Context, sum *Summary) error {
	if err := s.Config.Validate(); err != nil {
		s.fail("config")
		return fmt.Errorf("ensure rounds: %w", err)
	}
	now := s.now()
	start := round.NextWindowStart(now, s.Config.Window)
	label := round.TimeframeLabel(s.Config.Window)

	for _, sym := range s.Config.Symbols {
		r := round.Round{
			ID:         uuid.NewString(),
			Symbol:     sym,
			Timeframe:  label,
			StartTime:  start,
			EndTime:    start.Add(s.Config.Window),
			Status:     round.StatusOpen,
			PoolGreen:  decimal.Zero,
			PoolRed:    decimal.Zero,
			BonusBoost: s.Config.BonusBoost,
			FeeRate:    s.Config.FeeRate,
		}
		err := s.Store.CreateRound(ctx, &r)
		switch {
		case err == nil:
			sum.Created++
			if s.OnCreate != nil {
				s.OnCreate()
			}
			s.Log.Info("round created",
				zap.String("round_id", r.ID),
				zap.String("symbol", sym),
				zap.Time("start", r.StartTime),
				zap.Time("end", r.EndTime),
			)
		case errors.Is(err, round.ErrDuplicateRoundWindow):
			sum.Existing++
		default:
			sum.Failed++
			s.fail("ensure")
			s.Log.Error("round create failed", zap.String("symbol", sym), zap.Error(err))
		}
	}
	return nil
}

func (s *Scheduler) lock(ctx context.Context, sum *Summary) error {
	locked, err := s.Store.LockDue(ctx, s.now())
	if err != nil {
		s.fail("lock")
		return fmt.Errorf("lock due rounds: %w", err)
	}
	for _, r := range locked {
		sum.Locked++
		if s.OnLock != nil {
			s.OnLock()
		}
		s.Log.Info("round locked",
			zap.String("round_id", r.ID),
			zap.String("symbol", r.Symbol),
			zap.String("pool_green", r.PoolGreen.String()),
			zap.String("pool_red", r.PoolRed.String()),
		)
	}
	return nil
}

// settle liquida uma rodada por vez; falha de uma não impede as outras
func (s *Scheduler) settle(ctx context.Context, sum *Summary) error {
	now := s.now()
	due, err := s.Store.ListSettleable(ctx, now)
	if err != nil {
		s.fail("settle_list")
		return fmt.Errorf("list settleable rounds: %w", err)
	}

	for _, r := range due {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		st, err := s.settleOne(ctx, r, now)
		switch {
		case err == nil:
			sum.Settled++
			if s.OnSettle != nil {
				s.OnSettle(st.Reason)
			}
		case errors.Is(err, round.ErrRoundAlreadySettled):
			sum.Skipped++
		default:
			sum.Failed++
			stage := "settle"
			if errors.Is(err, round.ErrObservationUnavailable) {
				stage = "oracle"
			}
			s.fail(stage)
			s.Log.Warn("round settle failed",
				zap.String("round_id", r.ID),
				zap.String("symbol", r.Symbol),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (s *Scheduler) settleOne(ctx context.Context, r round.Round, now time.Time) (round.Settlement, error) {
	if s.Config.SettleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Config.SettleTimeout)
		defer cancel()
	}
	return s.Settler.Settle(ctx, r, now)
}

// sweep é o caminho de recuperação dos pagamentos que falharam no repasse
func (s *Scheduler) sweep(ctx context.Context, sum *Summary) error {
	if s.Payouts == nil {
		return nil
	}
	rep, err := s.Payouts.IssuePending(ctx)
	if err != nil {
		s.fail("payout")
		return fmt.Errorf("payout sweep: %w", err)
	}
	sum.Payouts.Paid += rep.Paid
	sum.Payouts.Failed += rep.Failed
	sum.Payouts.Skipped += rep.Skipped
	return nil
}
