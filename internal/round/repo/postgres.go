package repo

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/radieske/updown-rounds/internal/round"
)

//go:embed schema.sql
var schema string

const roundColumns = `id, symbol, timeframe, start_time, end_time, status,
	pool_green, pool_red, bonus_boost, fee_rate,
	winner_side, multiplier_green, multiplier_red, settled_at, created_at, updated_at`

const wagerColumns = `id, round_id, side, owner_key, net_amount,
	gross_paid, paid_asset, paid_amount, platform_fee, swap_ref,
	status, payout, payout_confirmation, payout_claimed_until, payout_attempts,
	created_at, settled_at, paid_at`

// Postgres implementa a persistência de rodadas, apostas e contas em banco Postgres
type Postgres struct{ db *sql.DB }

// NewPostgres retorna uma instância do repositório de rodadas
func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// EnsureSchema cria as tabelas caso ainda não existam
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// CreateRound insere uma rodada OPEN; a unicidade (symbol, start_time) barra duplicatas
func (p *Postgres) CreateRound(ctx context.Context, r *round.Round) error {
	res, err := p.db.ExecContext(ctx, `
		INSERT INTO rounds (id, symbol, timeframe, start_time, end_time, status, pool_green, pool_red, bonus_boost, fee_rate)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (symbol, start_time) DO NOTHING`,
		r.ID, r.Symbol, r.Timeframe, r.StartTime.UTC(), r.EndTime.UTC(), string(r.Status),
		r.PoolGreen, r.PoolRed, r.BonusBoost, r.FeeRate,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return round.ErrDuplicateRoundWindow
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return round.ErrDuplicateRoundWindow
	}
	return nil
}

// GetRound busca uma rodada pelo id
func (p *Postgres) GetRound(ctx context.Context, id string) (round.Round, error) {
	r, err := scanRound(p.db.QueryRowContext(ctx, `SELECT `+roundColumns+` FROM rounds WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return round.Round{}, round.ErrRoundNotFound
	}
	return r, err
}

// LockDue move para LOCKED toda rodada OPEN cujo start_time já passou.
// O filtro por status='OPEN' torna a operação idempotente.
func (p *Postgres) LockDue(ctx context.Context, now time.Time) ([]round.Round, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		UPDATE rounds SET status='LOCKED', updated_at=NOW()
		WHERE status='OPEN' AND start_time <= $1
		RETURNING `+roundColumns, now.UTC())
	if err != nil {
		return nil, err
	}
	locked, err := collectRounds(rows)
	if err != nil {
		return nil, err
	}

	for _, r := range locked {
		if err := insertTransition(ctx, tx, r.ID, round.StatusOpen, round.StatusLocked, "betting_closed"); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return locked, nil
}

// ListSettleable lista rodadas LOCKED cuja janela de observação terminou
func (p *Postgres) ListSettleable(ctx context.Context, now time.Time) ([]round.Round, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+roundColumns+` FROM rounds
		WHERE status='LOCKED' AND end_time <= $1
		ORDER BY end_time`, now.UTC())
	if err != nil {
		return nil, err
	}
	return collectRounds(rows)
}

// ListWagers retorna as apostas de uma rodada
func (p *Postgres) ListWagers(ctx context.Context, roundID string) ([]round.Wager, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+wagerColumns+` FROM wagers WHERE round_id=$1 ORDER BY created_at, id`, roundID)
	if err != nil {
		return nil, err
	}
	return collectWagers(rows)
}

// ApplyContribution incrementa o pool do lado e grava a aposta na mesma transação.
// Lock pessimista na linha da rodada serializa contribuições concorrentes e o LOCK.
func (p *Postgres) ApplyContribution(ctx context.Context, w *round.Wager) (round.Round, error) {
	if !w.NetAmount.IsPositive() {
		return round.Round{}, round.ErrInvalidWager
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return round.Round{}, err
	}
	defer tx.Rollback()

	var status string
	err = tx.QueryRowContext(ctx, `SELECT status FROM rounds WHERE id=$1 FOR UPDATE`, w.RoundID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return round.Round{}, round.ErrRoundNotFound
	}
	if err != nil {
		return round.Round{}, err
	}
	if round.Status(status) != round.StatusOpen {
		return round.Round{}, round.ErrRoundNotOpen
	}

	q := `UPDATE rounds SET pool_green = pool_green + $1, updated_at=NOW() WHERE id=$2 RETURNING ` + roundColumns
	if w.Side == round.SideRed {
		q = `UPDATE rounds SET pool_red = pool_red + $1, updated_at=NOW() WHERE id=$2 RETURNING ` + roundColumns
	}
	updated, err := scanRound(tx.QueryRowContext(ctx, q, w.NetAmount, w.RoundID))
	if err != nil {
		return round.Round{}, err
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO wagers (id, round_id, side, owner_key, net_amount, gross_paid, paid_asset, paid_amount, platform_fee, swap_ref, status, payout, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,'PENDING',0,$11)`,
		w.ID, w.RoundID, string(w.Side), w.OwnerKey, w.NetAmount,
		w.GrossPaid, w.PaidAsset, w.PaidAmount, w.PlatformFee, w.SwapRef, w.CreatedAt.UTC(),
	); err != nil {
		return round.Round{}, err
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO accounts (owner_key, total_wagers, total_volume) VALUES ($1, 1, $2)
		ON CONFLICT (owner_key) DO UPDATE SET
		  total_wagers = accounts.total_wagers + 1,
		  total_volume = accounts.total_volume + EXCLUDED.total_volume,
		  updated_at   = NOW()`,
		w.OwnerKey, w.NetAmount,
	); err != nil {
		return round.Round{}, err
	}

	if err = tx.Commit(); err != nil {
		return round.Round{}, err
	}
	return updated, nil
}

// CommitSettlement grava veredito, multiplicadores e pagamentos e troca LOCKED -> SETTLED.
// A troca é condicional (CAS no status): quem perder a corrida recebe ErrRoundAlreadySettled
// e nada é gravado.
func (p *Postgres) CommitSettlement(ctx context.Context, s round.Settlement) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE rounds SET status='SETTLED', winner_side=$2, multiplier_green=$3, multiplier_red=$4,
		  settled_at=$5, updated_at=NOW()
		WHERE id=$1 AND status='LOCKED'`,
		s.RoundID, string(s.WinnerSide), s.MultiplierGreen, s.MultiplierRed, s.SettledAt.UTC(),
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return round.ErrRoundAlreadySettled
	}

	if err := insertTransition(ctx, tx, s.RoundID, round.StatusLocked, round.StatusSettled, s.Reason); err != nil {
		return err
	}

	for _, wr := range s.Results {
		res, err := tx.ExecContext(ctx, `
			UPDATE wagers SET status=$2, payout=$3, settled_at=$4
			WHERE id=$1 AND round_id=$5 AND status='PENDING'`,
			wr.WagerID, string(wr.Status), wr.Payout, s.SettledAt.UTC(), s.RoundID,
		)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return fmt.Errorf("wager %s not pending", wr.WagerID)
		}

		// aposta perdida nunca passa pelo pagador, então o rollup acontece aqui
		if wr.Status == round.WagerLost {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO accounts (owner_key, total_losses, total_profit) VALUES ($1, 1, $2)
				ON CONFLICT (owner_key) DO UPDATE SET
				  total_losses = accounts.total_losses + 1,
				  total_profit = accounts.total_profit + EXCLUDED.total_profit,
				  updated_at   = NOW()`,
				wr.OwnerKey, wr.Net.Neg(),
			); err != nil {
				return err
			}
		}
		// vitória com pagamento arredondado a zero também não passa pelo pagador
		if wr.Status == round.WagerWon && !wr.Payout.IsPositive() {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO accounts (owner_key, total_wins, total_profit) VALUES ($1, 1, $2)
				ON CONFLICT (owner_key) DO UPDATE SET
				  total_wins   = accounts.total_wins + 1,
				  total_profit = accounts.total_profit + EXCLUDED.total_profit,
				  updated_at   = NOW()`,
				wr.OwnerKey, wr.Payout.Sub(wr.Net),
			); err != nil {
				return err
			}
		}
	}

	var pending int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM wagers WHERE round_id=$1 AND status='PENDING'`, s.RoundID).Scan(&pending); err != nil {
		return err
	}
	if pending > 0 {
		return fmt.Errorf("round %s: %d wagers left pending", s.RoundID, pending)
	}

	return tx.Commit()
}

// ListPendingPayouts lista apostas com pagamento > 0 ainda sem confirmação.
// roundID vazio varre todas as rodadas. Menos tentativas primeiro, para que
// falhas persistentes não ocupem o lote inteiro da varredura.
func (p *Postgres) ListPendingPayouts(ctx context.Context, roundID string, limit int) ([]round.Wager, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if roundID == "" {
		rows, err = p.db.QueryContext(ctx, `
			SELECT `+wagerColumns+` FROM wagers
			WHERE payout > 0 AND payout_confirmation IS NULL AND status IN ('WON','REFUNDED')
			ORDER BY payout_attempts, settled_at, id LIMIT $1`, limitArg(limit))
	} else {
		rows, err = p.db.QueryContext(ctx, `
			SELECT `+wagerColumns+` FROM wagers
			WHERE round_id=$1 AND payout > 0 AND payout_confirmation IS NULL AND status IN ('WON','REFUNDED')
			ORDER BY payout_attempts, settled_at, id LIMIT $2`, roundID, limitArg(limit))
	}
	if err != nil {
		return nil, err
	}
	return collectWagers(rows)
}

// ClaimPayout reserva o pagamento de uma aposta até `until`.
// Só um emissor concorrente consegue o claim enquanto a reserva estiver válida.
func (p *Postgres) ClaimPayout(ctx context.Context, wagerID string, now, until time.Time) (bool, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE wagers SET payout_claimed_until=$3, payout_attempts = payout_attempts + 1
		WHERE id=$1 AND payout > 0 AND payout_confirmation IS NULL
		  AND (payout_claimed_until IS NULL OR payout_claimed_until < $2)`,
		wagerID, now.UTC(), until.UTC(),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// ReleasePayout libera a reserva para a próxima tentativa
func (p *Postgres) ReleasePayout(ctx context.Context, wagerID string) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE wagers SET payout_claimed_until=NULL
		WHERE id=$1 AND payout_confirmation IS NULL`, wagerID)
	return err
}

// ConfirmPayout grava o token de confirmação (uma única vez) e atualiza o rollup da conta.
// Retorna false se a aposta já estava confirmada.
func (p *Postgres) ConfirmPayout(ctx context.Context, wagerID, confirmation string, paidAt time.Time) (bool, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var (
		status, owner string
		net, payout   decimal.Decimal
		existing      sql.NullString
	)
	err = tx.QueryRowContext(ctx, `
		SELECT status, owner_key, net_amount, payout, payout_confirmation
		FROM wagers WHERE id=$1 FOR UPDATE`, wagerID).Scan(&status, &owner, &net, &payout, &existing)
	if err != nil {
		return false, err
	}
	if existing.Valid {
		return false, nil
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE wagers SET payout_confirmation=$2, paid_at=$3, payout_claimed_until=NULL
		WHERE id=$1`, wagerID, confirmation, paidAt.UTC()); err != nil {
		return false, err
	}

	if round.WagerStatus(status) == round.WagerWon {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO accounts (owner_key, total_wins, total_profit) VALUES ($1, 1, $2)
			ON CONFLICT (owner_key) DO UPDATE SET
			  total_wins   = accounts.total_wins + 1,
			  total_profit = accounts.total_profit + EXCLUDED.total_profit,
			  updated_at   = NOW()`,
			owner, payout.Sub(net),
		); err != nil {
			return false, err
		}
	}

	if err = tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// CurrentRound retorna a próxima rodada OPEN do símbolo que ainda aceita apostas
func (p *Postgres) CurrentRound(ctx context.Context, symbol string, now time.Time) (round.Round, error) {
	r, err := scanRound(p.db.QueryRowContext(ctx, `
		SELECT `+roundColumns+` FROM rounds
		WHERE symbol=$1 AND status='OPEN' AND start_time > $2
		ORDER BY start_time LIMIT 1`, symbol, now.UTC()))
	if errors.Is(err, sql.ErrNoRows) {
		return round.Round{}, round.ErrRoundNotFound
	}
	return r, err
}

// RoundHistory retorna as rodadas liquidadas mais recentes do símbolo
func (p *Postgres) RoundHistory(ctx context.Context, symbol string, limit int) ([]round.Round, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+roundColumns+` FROM rounds
		WHERE symbol=$1 AND status='SETTLED'
		ORDER BY end_time DESC LIMIT $2`, symbol, limitArg(limit))
	if err != nil {
		return nil, err
	}
	return collectRounds(rows)
}

// WagersByOwner retorna o histórico de apostas de uma carteira com dados da rodada
func (p *Postgres) WagersByOwner(ctx context.Context, owner string, limit int) ([]OwnerWager, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+qualify("w", wagerColumns)+`,
		       r.symbol, r.winner_side, r.start_time, r.end_time
		FROM wagers w JOIN rounds r ON r.id = w.round_id
		WHERE w.owner_key=$1
		ORDER BY w.created_at DESC LIMIT $2`, owner, limitArg(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OwnerWager
	for rows.Next() {
		var (
			ow     OwnerWager
			winner sql.NullString
		)
		ow.Wager, err = scanWager(rows, &ow.Symbol, &winner, &ow.StartTime, &ow.EndTime)
		if err != nil {
			return nil, err
		}
		ow.WinnerSide = round.Winner(winner.String)
		out = append(out, ow)
	}
	return out, rows.Err()
}

// GetAccount retorna o agregado da carteira; carteira sem apostas devolve zeros
func (p *Postgres) GetAccount(ctx context.Context, owner string) (round.Account, error) {
	a := round.Account{OwnerKey: owner}
	err := p.db.QueryRowContext(ctx, `
		SELECT total_wagers, total_volume, total_wins, total_losses, total_profit, updated_at
		FROM accounts WHERE owner_key=$1`, owner).
		Scan(&a.TotalWagers, &a.TotalVolume, &a.TotalWins, &a.TotalLosses, &a.TotalProfit, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return a, nil
	}
	return a, err
}

// RecentWagers devolve as apostas da rodada, mais recentes primeiro
func (p *Postgres) RecentWagers(ctx context.Context, roundID string, limit int) ([]round.Wager, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+wagerColumns+` FROM wagers WHERE round_id=$1
		ORDER BY created_at DESC, id DESC LIMIT $2`, roundID, limitArg(limit))
	if err != nil {
		return nil, err
	}
	return collectWagers(rows)
}

var rankOrder = map[RankBy]string{
	RankByProfit:  "total_profit DESC, total_wins DESC, owner_key",
	RankByWins:    "total_wins DESC, total_wagers, owner_key",
	RankByWinRate: "total_wins::numeric / total_wagers DESC, total_wins DESC, owner_key",
}

// Rankings ordena as carteiras com pelo menos uma aposta
func (p *Postgres) Rankings(ctx context.Context, by RankBy, limit int) ([]round.Account, error) {
	order, ok := rankOrder[by]
	if !ok {
		order = rankOrder[RankByProfit]
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT owner_key, total_wagers, total_volume, total_wins, total_losses, total_profit, updated_at
		FROM accounts WHERE total_wagers > 0
		ORDER BY `+order+` LIMIT $1`, limitArg(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []round.Account
	for rows.Next() {
		var a round.Account
		if err := rows.Scan(&a.OwnerKey, &a.TotalWagers, &a.TotalVolume, &a.TotalWins, &a.TotalLosses, &a.TotalProfit, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (p *Postgres) GlobalStats(ctx context.Context) (Stats, error) {
	var (
		st        Stats
		roundFees decimal.Decimal
	)
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(net_amount), 0), COALESCE(SUM(platform_fee), 0),
		       COALESCE(SUM(payout) FILTER (WHERE payout_confirmation IS NOT NULL), 0)
		FROM wagers`).Scan(&st.TotalWagers, &st.TotalVolume, &st.PlatformFees, &st.TotalPaidOut)
	if err != nil {
		return Stats{}, err
	}
	if err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts WHERE total_wagers > 0`).Scan(&st.TotalAccounts); err != nil {
		return Stats{}, err
	}
	err = p.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM((pool_green + pool_red) * fee_rate), 0)
		FROM rounds WHERE status='SETTLED' AND winner_side IN ('GREEN','RED')`).Scan(&roundFees)
	if err != nil {
		return Stats{}, err
	}
	st.PlatformFees = st.PlatformFees.Add(roundFees).Round(round.AmountPlaces)

	err = p.db.QueryRowContext(ctx, `
		SELECT r.symbol FROM wagers w JOIN rounds r ON r.id = w.round_id
		GROUP BY r.symbol ORDER BY COUNT(*) DESC, r.symbol LIMIT 1`).Scan(&st.MostActiveSymbol)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Stats{}, err
	}
	return st, nil
}

func insertTransition(ctx context.Context, tx *sql.Tx, roundID string, from, to round.Status, reason string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO round_transitions (round_id, old_status, new_status, reason, created_at)
		VALUES ($1,$2,$3,$4,NOW())`, roundID, string(from), string(to), reason)
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRound(s rowScanner) (round.Round, error) {
	var (
		r         round.Round
		status    string
		winner    sql.NullString
		settledAt sql.NullTime
	)
	err := s.Scan(&r.ID, &r.Symbol, &r.Timeframe, &r.StartTime, &r.EndTime, &status,
		&r.PoolGreen, &r.PoolRed, &r.BonusBoost, &r.FeeRate,
		&winner, &r.MultiplierGreen, &r.MultiplierRed, &settledAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return round.Round{}, err
	}
	r.Status = round.Status(status)
	r.WinnerSide = round.Winner(winner.String)
	r.SettledAt = nullTime(settledAt)
	r.StartTime = r.StartTime.UTC()
	r.EndTime = r.EndTime.UTC()
	return r, nil
}

func collectRounds(rows *sql.Rows) ([]round.Round, error) {
	defer rows.Close()
	var out []round.Round
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func collectWagers(rows *sql.Rows) ([]round.Wager, error) {
	defer rows.Close()
	var out []round.Wager
	for rows.Next() {
		w, err := scanWager(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// scanWager lê as colunas de wagerColumns, na ordem; extra recebe colunas seguintes da mesma linha
func scanWager(sc rowScanner, extra ...any) (round.Wager, error) {
	var (
		w                          round.Wager
		side, status               string
		conf                       sql.NullString
		claimed, settledAt, paidAt sql.NullTime
	)
	dest := []any{&w.ID, &w.RoundID, &side, &w.OwnerKey, &w.NetAmount,
		&w.GrossPaid, &w.PaidAsset, &w.PaidAmount, &w.PlatformFee, &w.SwapRef,
		&status, &w.Payout, &conf, &claimed, &w.PayoutAttempts,
		&w.CreatedAt, &settledAt, &paidAt}
	if err := sc.Scan(append(dest, extra...)...); err != nil {
		return round.Wager{}, err
	}
	w.Side = round.Side(side)
	w.Status = round.WagerStatus(status)
	w.PayoutConfirmation = conf.String
	w.PayoutClaimedUntil = nullTime(claimed)
	w.SettledAt = nullTime(settledAt)
	w.PaidAt = nullTime(paidAt)
	return w, nil
}

// qualify prefixa cada coluna da lista com o alias da tabela
func qualify(alias, cols string) string {
	parts := strings.Split(cols, ",")
	for i, c := range parts {
		parts[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(parts, ", ")
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

// limitArg traduz limit <= 0 para NULL: LIMIT NULL no Postgres é LIMIT ALL
func limitArg(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}
