package repo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/updown-rounds/internal/round"
)

// Transition é um registro do log de transições de uma rodada
type Transition struct {
	RoundID string
	From    round.Status
	To      round.Status
	Reason  string
	At      time.Time
}

// Memory é um store em memória com a mesma semântica condicional do Postgres.
// Todas as operações são serializadas por um único mutex (usado em ambiente local e testes).
type Memory struct {
	mu          sync.Mutex
	rounds      map[string]*round.Round
	windows     map[string]string // symbol|start -> round id
	wagers      map[string]*round.Wager
	byRound     map[string][]string
	accounts    map[string]*round.Account
	transitions []Transition
}

func NewMemory() *Memory {
	return &Memory{
		rounds:   make(map[string]*round.Round),
		windows:  make(map[string]string),
		wagers:   make(map[string]*round.Wager),
		byRound:  make(map[string][]string),
		accounts: make(map[string]*round.Account),
	}
}

func windowKey(symbol string, start time.Time) string {
	return symbol + "|" + start.UTC().Format(time.RFC3339Nano)
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) CreateRound(_ context.Context, r *round.Round) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := windowKey(r.Symbol, r.StartTime)
	if _, ok := m.windows[key]; ok {
		return round.ErrDuplicateRoundWindow
	}
	cp := *r
	now := time.Now().UTC()
	cp.CreatedAt, cp.UpdatedAt = now, now
	m.rounds[cp.ID] = &cp
	m.windows[key] = cp.ID
	return nil
}

func (m *Memory) GetRound(_ context.Context, id string) (round.Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rounds[id]
	if !ok {
		return round.Round{}, round.ErrRoundNotFound
	}
	return *r, nil
}

func (m *Memory) LockDue(_ context.Context, now time.Time) ([]round.Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var locked []round.Round
	for _, r := range m.sortedRounds() {
		if r.Status != round.StatusOpen || r.StartTime.After(now) {
			continue
		}
		r.Status = round.StatusLocked
		r.UpdatedAt = time.Now().UTC()
		m.transition(r.ID, round.StatusOpen, round.StatusLocked, "betting_closed")
		locked = append(locked, *r)
	}
	return locked, nil
}

func (m *Memory) ListSettleable(_ context.Context, now time.Time) ([]round.Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []round.Round
	for _, r := range m.sortedRounds() {
		if r.Status == round.StatusLocked && !r.EndTime.After(now) {
			out = append(out, *r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EndTime.Before(out[j].EndTime) })
	return out, nil
}

func (m *Memory) ListWagers(_ context.Context, roundID string) ([]round.Wager, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := m.byRound[roundID]
	out := make([]round.Wager, 0, len(ids))
	for _, id := range ids {
		out = append(out, *m.wagers[id])
	}
	return out, nil
}

func (m *Memory) ApplyContribution(_ context.Context, w *round.Wager) (round.Round, error) {
	if !w.NetAmount.IsPositive() {
		return round.Round{}, round.ErrInvalidWager
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rounds[w.RoundID]
	if !ok {
		return round.Round{}, round.ErrRoundNotFound
	}
	if r.Status != round.StatusOpen {
		return round.Round{}, round.ErrRoundNotOpen
	}

	if w.Side == round.SideRed {
		r.PoolRed = r.PoolRed.Add(w.NetAmount)
	} else {
		r.PoolGreen = r.PoolGreen.Add(w.NetAmount)
	}
	r.UpdatedAt = time.Now().UTC()

	cp := *w
	cp.Status = round.WagerPending
	cp.Payout = decimal.Zero
	m.wagers[cp.ID] = &cp
	m.byRound[cp.RoundID] = append(m.byRound[cp.RoundID], cp.ID)

	a := m.account(cp.OwnerKey)
	a.TotalWagers++
	a.TotalVolume = a.TotalVolume.Add(cp.NetAmount)

	return *r, nil
}

func (m *Memory) CommitSettlement(_ context.Context, s round.Settlement) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rounds[s.RoundID]
	if !ok {
		return round.ErrRoundNotFound
	}
	if r.Status != round.StatusLocked {
		return round.ErrRoundAlreadySettled
	}

	// valida tudo antes de aplicar para manter a gravação atômica
	covered := make(map[string]bool, len(s.Results))
	for _, wr := range s.Results {
		w, ok := m.wagers[wr.WagerID]
		if !ok || w.RoundID != s.RoundID || w.Status != round.WagerPending {
			return fmt.Errorf("wager %s not pending", wr.WagerID)
		}
		covered[wr.WagerID] = true
	}
	for _, id := range m.byRound[s.RoundID] {
		if !covered[id] {
			return fmt.Errorf("round %s: wager %s left pending", s.RoundID, id)
		}
	}

	settledAt := s.SettledAt.UTC()
	r.Status = round.StatusSettled
	r.WinnerSide = s.WinnerSide
	r.MultiplierGreen = s.MultiplierGreen
	r.MultiplierRed = s.MultiplierRed
	r.SettledAt = &settledAt
	r.UpdatedAt = time.Now().UTC()
	m.transition(r.ID, round.StatusLocked, round.StatusSettled, s.Reason)

	for _, wr := range s.Results {
		w := m.wagers[wr.WagerID]
		w.Status = wr.Status
		w.Payout = wr.Payout
		at := settledAt
		w.SettledAt = &at
		switch {
		case wr.Status == round.WagerLost:
			a := m.account(w.OwnerKey)
			a.TotalLosses++
			a.TotalProfit = a.TotalProfit.Sub(wr.Net)
		case wr.Status == round.WagerWon && !wr.Payout.IsPositive():
			// sem pagamento não há confirmação; o rollup da vitória fica no commit
			a := m.account(w.OwnerKey)
			a.TotalWins++
			a.TotalProfit = a.TotalProfit.Add(wr.Payout.Sub(wr.Net))
		}
	}
	return nil
}

func (m *Memory) ListPendingPayouts(_ context.Context, roundID string, limit int) ([]round.Wager, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []round.Wager
	for _, r := range m.sortedRounds() {
		if roundID != "" && r.ID != roundID {
			continue
		}
		for _, id := range m.byRound[r.ID] {
			if w := m.wagers[id]; pendingPayout(w) {
				out = append(out, *w)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PayoutAttempts < out[j].PayoutAttempts })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) ClaimPayout(_ context.Context, wagerID string, now, until time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.wagers[wagerID]
	if !ok || !w.Payout.IsPositive() || w.PayoutConfirmation != "" {
		return false, nil
	}
	if w.PayoutClaimedUntil != nil && !w.PayoutClaimedUntil.Before(now) {
		return false, nil
	}
	u := until.UTC()
	w.PayoutClaimedUntil = &u
	w.PayoutAttempts++
	return true, nil
}

func (m *Memory) ReleasePayout(_ context.Context, wagerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.wagers[wagerID]; ok && w.PayoutConfirmation == "" {
		w.PayoutClaimedUntil = nil
	}
	return nil
}

func (m *Memory) ConfirmPayout(_ context.Context, wagerID, confirmation string, paidAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.wagers[wagerID]
	if !ok {
		return false, fmt.Errorf("wager %s: %w", wagerID, round.ErrInvalidWager)
	}
	if w.PayoutConfirmation != "" {
		return false, nil
	}
	at := paidAt.UTC()
	w.PayoutConfirmation = confirmation
	w.PaidAt = &at
	w.PayoutClaimedUntil = nil

	if w.Status == round.WagerWon {
		a := m.account(w.OwnerKey)
		a.TotalWins++
		a.TotalProfit = a.TotalProfit.Add(w.Payout.Sub(w.NetAmount))
	}
	return true, nil
}

func (m *Memory) CurrentRound(_ context.Context, symbol string, now time.Time) (round.Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.sortedRounds() {
		if r.Symbol == symbol && r.Status == round.StatusOpen && r.StartTime.After(now) {
			return *r, nil
		}
	}
	return round.Round{}, round.ErrRoundNotFound
}

func (m *Memory) RoundHistory(_ context.Context, symbol string, limit int) ([]round.Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []round.Round
	for _, r := range m.sortedRounds() {
		if r.Symbol == symbol && r.Status == round.StatusSettled {
			out = append(out, *r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EndTime.After(out[j].EndTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) WagersByOwner(_ context.Context, owner string, limit int) ([]OwnerWager, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []OwnerWager
	for _, w := range m.wagers {
		if w.OwnerKey != owner {
			continue
		}
		r := m.rounds[w.RoundID]
		out = append(out, OwnerWager{
			Wager:      *w,
			Symbol:     r.Symbol,
			WinnerSide: r.WinnerSide,
			StartTime:  r.StartTime,
			EndTime:    r.EndTime,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) GetAccount(_ context.Context, owner string) (round.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.accounts[owner]; ok {
		return *a, nil
	}
	return round.Account{OwnerKey: owner}, nil
}

// RecentWagers devolve as apostas da rodada, mais recentes primeiro
func (m *Memory) RecentWagers(_ context.Context, roundID string, limit int) ([]round.Wager, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := m.byRound[roundID]
	out := make([]round.Wager, 0, len(ids))
	for _, id := range ids {
		out = append(out, *m.wagers[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) Rankings(_ context.Context, by RankBy, limit int) ([]round.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []round.Account
	for _, a := range m.accounts {
		if a.TotalWagers > 0 {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch by {
		case RankByWins:
			if a.TotalWins != b.TotalWins {
				return a.TotalWins > b.TotalWins
			}
			if a.TotalWagers != b.TotalWagers {
				return a.TotalWagers < b.TotalWagers
			}
		case RankByWinRate:
			if c := WinRate(a).Cmp(WinRate(b)); c != 0 {
				return c > 0
			}
			if a.TotalWins != b.TotalWins {
				return a.TotalWins > b.TotalWins
			}
		default:
			if c := a.TotalProfit.Cmp(b.TotalProfit); c != 0 {
				return c > 0
			}
			if a.TotalWins != b.TotalWins {
				return a.TotalWins > b.TotalWins
			}
		}
		return a.OwnerKey < b.OwnerKey
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) GlobalStats(_ context.Context) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Stats{TotalVolume: decimal.Zero, TotalPaidOut: decimal.Zero, PlatformFees: decimal.Zero}
	bySymbol := map[string]int{}
	for _, w := range m.wagers {
		st.TotalWagers++
		st.TotalVolume = st.TotalVolume.Add(w.NetAmount)
		st.PlatformFees = st.PlatformFees.Add(w.PlatformFee)
		if w.PayoutConfirmation != "" {
			st.TotalPaidOut = st.TotalPaidOut.Add(w.Payout)
		}
		bySymbol[m.rounds[w.RoundID].Symbol]++
	}
	for _, r := range m.rounds {
		if r.Status == round.StatusSettled && (r.WinnerSide == round.WinnerGreen || r.WinnerSide == round.WinnerRed) {
			st.PlatformFees = st.PlatformFees.Add(r.PoolGreen.Add(r.PoolRed).Mul(r.FeeRate))
		}
	}
	st.PlatformFees = st.PlatformFees.Round(round.AmountPlaces)
	for _, a := range m.accounts {
		if a.TotalWagers > 0 {
			st.TotalAccounts++
		}
	}
	best := 0
	for sym, n := range bySymbol {
		if n > best || (n == best && sym < st.MostActiveSymbol) {
			st.MostActiveSymbol, best = sym, n
		}
	}
	return st, nil
}

// Transitions devolve o log de transições de uma rodada, em ordem
func (m *Memory) Transitions(roundID string) []Transition {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Transition
	for _, t := range m.transitions {
		if t.RoundID == roundID {
			out = append(out, t)
		}
	}
	return out
}

// Wager devolve uma cópia da aposta (inspeção em testes e ferramentas locais)
func (m *Memory) Wager(id string) (round.Wager, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wagers[id]
	if !ok {
		return round.Wager{}, false
	}
	return *w, true
}

func (m *Memory) transition(id string, from, to round.Status, reason string) {
	m.transitions = append(m.transitions, Transition{RoundID: id, From: from, To: to, Reason: reason, At: time.Now().UTC()})
}

func (m *Memory) account(owner string) *round.Account {
	a, ok := m.accounts[owner]
	if !ok {
		a = &round.Account{OwnerKey: owner}
		m.accounts[owner] = a
	}
	a.UpdatedAt = time.Now().UTC()
	return a
}

// sortedRounds ordena por início e símbolo para respostas determinísticas
func (m *Memory) sortedRounds() []*round.Round {
	out := make([]*round.Round, 0, len(m.rounds))
	for _, r := range m.rounds {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

func pendingPayout(w *round.Wager) bool {
	return w.Payout.IsPositive() && w.PayoutConfirmation == "" &&
		(w.Status == round.WagerWon || w.Status == round.WagerRefunded)
}
