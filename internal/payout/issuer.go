package payout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/updown-rounds/internal/round"
	"github.com/radieske/updown-rounds/pkg/contracts/events"
)

// Store é a parte do repositório que o emissor de pagamentos usa
type Store interface {
	ListPendingPayouts(ctx context.Context, roundID string, limit int) ([]round.Wager, error)
	ClaimPayout(ctx context.Context, wagerID string, now, until time.Time) (bool, error)
	ReleasePayout(ctx context.Context, wagerID string) error
	ConfirmPayout(ctx context.Context, wagerID, confirmation string, paidAt time.Time) (bool, error)
}

// Rail é o trilho de pagamento externo. A chave de idempotência é o ID da aposta.
type Rail interface {
	Transfer(ctx context.Context, recipient string, amount string, idempotencyKey string) (string, error)
}

type Publisher interface {
	PublishPayoutConfirmed(ctx context.Context, e events.PayoutConfirmed) error
}

// Report resume uma passada do emissor
type Report struct {
	Paid    int `json:"paid"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"` // lease de outro emissor ou já confirmada
}

func (r *Report) add(o Report) {
	r.Paid += o.Paid
	r.Failed += o.Failed
	r.Skipped += o.Skipped
}

const DefaultBatchSize = 200

// Issuer envia os pagamentos pendentes e grava a confirmação uma única vez por aposta
type Issuer struct {
	log   *zap.Logger
	store Store
	rail  Rail
	pub   Publisher // opcional
	lease time.Duration
	batch int
	now   func() time.Time

	// callbacks opcionais para métricas
	OnPaid   func()
	OnFailed func()
}

func NewIssuer(log *zap.Logger, store Store, rail Rail, pub Publisher, lease time.Duration) *Issuer {
	if lease <= 0 {
		lease = time.Minute
	}
	return &Issuer{
		log:   log,
		store: store,
		rail:  rail,
		pub:   pub,
		lease: lease,
		batch: DefaultBatchSize,
		now:   time.Now,
	}
}

// SetClock troca o relógio usado na lease (testes)
func (i *Issuer) SetClock(fn func() time.Time) { i.now = fn }

// SetBatchSize limita quantas apostas cada varredura tenta; n <= 0 mantém o padrão
func (i *Issuer) SetBatchSize(n int) {
	if n > 0 {
		i.batch = n
	}
}

// IssueRound envia os pagamentos pendentes de uma rodada recém liquidada
func (i *Issuer) IssueRound(ctx context.Context, roundID string) (Report, error) {
	wagers, err := i.store.ListPendingPayouts(ctx, roundID, 0)
	if err != nil {
		return Report{}, fmt.Errorf("list pending payouts for round %s: %w", roundID, err)
	}
	return i.issue(ctx, wagers), nil
}

// IssuePending é a varredura de recuperação: reenvia tudo que ficou sem confirmação.
// O store devolve primeiro as apostas com menos tentativas.
func (i *Issuer) IssuePending(ctx context.Context) (Report, error) {
	wagers, err := i.store.ListPendingPayouts(ctx, "", i.batch)
	if err != nil {
		return Report{}, fmt.Errorf("list pending payouts: %w", err)
	}
	return i.issue(ctx, wagers), nil
}

func (i *Issuer) issue(ctx context.Context, wagers []round.Wager) Report {
	var rep Report
	for _, w := range wagers {
		if ctx.Err() != nil {
			break
		}
		rep.add(i.issueOne(ctx, w))
	}
	return rep
}

func (i *Issuer) issueOne(ctx context.Context, w round.Wager) Report {
	now := i.now()
	claimed, err := i.store.ClaimPayout(ctx, w.ID, now, now.Add(i.lease))
	if err != nil {
		i.log.Error("payout claim failed", zap.String("wager_id", w.ID), zap.Error(err))
		i.failed()
		return Report{Failed: 1}
	}
	if !claimed {
		return Report{Skipped: 1}
	}

	// nenhuma transação aberta durante a chamada ao trilho
	amount := w.Payout.StringFixed(round.AmountPlaces)
	conf, err := i.rail.Transfer(ctx, w.OwnerKey, amount, w.ID)
	if err != nil {
		if !errors.Is(err, round.ErrTransferFailed) {
			err = fmt.Errorf("%w: %v", round.ErrTransferFailed, err)
		}
		i.log.Warn("payout transfer failed",
			zap.String("wager_id", w.ID),
			zap.String("round_id", w.RoundID),
			zap.Error(err),
		)
		if rerr := i.store.ReleasePayout(ctx, w.ID); rerr != nil {
			i.log.Error("payout release failed", zap.String("wager_id", w.ID), zap.Error(rerr))
		}
		i.failed()
		return Report{Failed: 1}
	}

	paidAt := i.now().UTC()
	ok, err := i.store.ConfirmPayout(ctx, w.ID, conf, paidAt)
	if err != nil {
		// o trilho já recebeu a chave de idempotência; a próxima tentativa não duplica
		i.log.Error("payout confirm failed",
			zap.String("wager_id", w.ID),
			zap.String("confirmation", conf),
			zap.Error(err),
		)
		i.failed()
		return Report{Failed: 1}
	}
	if !ok {
		return Report{Skipped: 1}
	}

	i.log.Info("payout confirmed",
		zap.String("wager_id", w.ID),
		zap.String("round_id", w.RoundID),
		zap.String("status", string(w.Status)),
		zap.String("amount", amount),
		zap.String("confirmation", conf),
	)
	if i.OnPaid != nil {
		i.OnPaid()
	}
	if i.pub != nil {
		if err := i.pub.PublishPayoutConfirmed(ctx, events.PayoutConfirmed{
			WagerID:      w.ID,
			RoundID:      w.RoundID,
			Wallet:       w.OwnerKey,
			Status:       string(w.Status),
			Amount:       amount,
			Confirmation: conf,
			Ts:           paidAt,
		}); err != nil {
			i.log.Warn("publish payout_confirmed failed", zap.String("wager_id", w.ID), zap.Error(err))
		}
	}
	return Report{Paid: 1}
}

func (i *Issuer) failed() {
	if i.OnFailed != nil {
		i.OnFailed()
	}
}
