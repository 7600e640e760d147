package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/updown-rounds/internal/bet-service/dto"
	"github.com/radieske/updown-rounds/internal/normalize"
	"github.com/radieske/updown-rounds/internal/pool"
	"github.com/radieske/updown-rounds/internal/round"
	"github.com/radieske/updown-rounds/internal/round/repo"
	"github.com/radieske/updown-rounds/pkg/contracts/events"
)

const (
	defaultLimit = 20
	maxLimit     = 100
	liveLimit    = 50
	rankLimit    = 50
)

// Store é a parte de leitura do repositório usada pela API
type Store interface {
	GetRound(ctx context.Context, id string) (round.Round, error)
	CurrentRound(ctx context.Context, symbol string, now time.Time) (round.Round, error)
	RoundHistory(ctx context.Context, symbol string, limit int) ([]round.Round, error)
	WagersByOwner(ctx context.Context, owner string, limit int) ([]repo.OwnerWager, error)
	GetAccount(ctx context.Context, owner string) (round.Account, error)
	RecentWagers(ctx context.Context, roundID string, limit int) ([]round.Wager, error)
	Rankings(ctx context.Context, by repo.RankBy, limit int) ([]round.Account, error)
	GlobalStats(ctx context.Context) (repo.Stats, error)
}

type Contributor interface {
	ApplyContribution(ctx context.Context, c pool.Contribution) (round.Wager, round.Round, error)
}

type Normalizer interface {
	Normalize(ctx context.Context, asset string, amount decimal.Decimal) (normalize.Result, error)
}

type Publisher interface {
	PublishBetPlaced(ctx context.Context, e events.BetPlaced) error
}

// Cache da rodada corrente; opcional
type Cache interface {
	GetCurrent(ctx context.Context, symbol string, dst *dto.RoundView) (bool, error)
	SetCurrent(ctx context.Context, symbol string, v dto.RoundView) error
	Invalidate(ctx context.Context, symbol string) error
}

type Server struct {
	log     *zap.Logger
	store   Store
	acc     Contributor
	norm    Normalizer
	publ    Publisher
	cache   Cache
	symbols map[string]bool
	live    http.Handler // feed websocket de apostas; opcional
	now     func() time.Time

	// callbacks opcionais para métricas
	OnPlaced   func(side string)
	OnRejected func(reason string)
}

func NewServer(log *zap.Logger, s Store, acc Contributor, n Normalizer, p Publisher, c Cache, symbols []string) *Server {
	set := make(map[string]bool, len(symbols))
	for _, sym := range symbols {
		set[strings.ToUpper(sym)] = true
	}
	return &Server{log: log, store: s, acc: acc, norm: n, publ: p, cache: c, symbols: set, now: time.Now}
}

// SetLiveFeed monta o feed websocket em /ws/bets. Chamar antes de Router.
func (s *Server) SetLiveFeed(h http.Handler) { s.live = h }

// SetClock troca o relógio usado no fechamento das apostas e no timeRemaining
func (s *Server) SetClock(fn func() time.Time) { s.now = fn }

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Post("/bets", s.placeBet)
	r.Get("/bets", s.listBets)
	r.Get("/bets/live", s.liveBets)
	r.Get("/rounds/current", s.currentRound)
	r.Get("/rounds/history", s.roundHistory)
	r.Get("/accounts/{wallet}", s.getAccount)
	r.Get("/rankings", s.rankings)
	r.Get("/stats", s.globalStats)
	if s.live != nil {
		r.Get("/ws/bets", s.live.ServeHTTP)
	}
	return r
}

func (s *Server) placeBet(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaceBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.reject(w, http.StatusBadRequest, "bad_json", "bad json")
		return
	}

	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	side := round.Side(strings.ToUpper(strings.TrimSpace(req.Side)))
	wallet := strings.TrimSpace(req.Wallet)
	amount, amountErr := decimal.NewFromString(strings.TrimSpace(req.PaidAmount))
	switch {
	case !s.symbols[symbol]:
		s.reject(w, http.StatusBadRequest, "symbol", "unsupported symbol")
		return
	case req.RoundID == "":
		s.reject(w, http.StatusBadRequest, "payload", "roundId required")
		return
	case !side.Valid():
		s.reject(w, http.StatusBadRequest, "payload", "side must be GREEN or RED")
		return
	case wallet == "":
		s.reject(w, http.StatusBadRequest, "payload", "walletAddress required")
		return
	case strings.TrimSpace(req.PaidAsset) == "":
		s.reject(w, http.StatusBadRequest, "payload", "paidToken required")
		return
	case amountErr != nil || !amount.IsPositive():
		s.reject(w, http.StatusBadRequest, "payload", "paidAmount must be a positive decimal")
		return
	}

	// 1) Confere a rodada antes de qualquer troca de ativo
	rd, err := s.store.GetRound(r.Context(), req.RoundID)
	if err != nil || rd.Symbol != symbol {
		if err != nil && !errors.Is(err, round.ErrRoundNotFound) {
			s.writeError(w, err)
			return
		}
		s.reject(w, http.StatusNotFound, "round", "round not found")
		return
	}
	if rd.Status != round.StatusOpen || !rd.StartTime.After(s.now()) {
		s.reject(w, http.StatusConflict, "closed", "betting closed for this round")
		return
	}

	// 2) Normaliza para a moeda de cotação e aplica a taxa da plataforma
	norm, err := s.norm.Normalize(r.Context(), req.PaidAsset, amount)
	if err != nil {
		s.writeError(w, err)
		return
	}

	// 3) Contribuição atômica no pool
	wager, updated, err := s.acc.ApplyContribution(r.Context(), pool.Contribution{
		RoundID:     rd.ID,
		Side:        side,
		OwnerKey:    wallet,
		NetAmount:   norm.Net,
		GrossPaid:   norm.Gross,
		PaidAsset:   norm.PaidAsset,
		PaidAmount:  norm.PaidAmount,
		PlatformFee: norm.Fee,
		SwapRef:     firstNonEmpty(norm.SwapRef, req.TxSignature),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(r.Context(), symbol); err != nil {
			s.log.Warn("current round cache invalidate failed", zap.String("symbol", symbol), zap.Error(err))
		}
	}

	// 4) Publica evento bet_placed (melhor esforço)
	if s.publ != nil {
		if err := s.publ.PublishBetPlaced(r.Context(), events.BetPlaced{
			WagerID:     wager.ID,
			RoundID:     updated.ID,
			Symbol:      updated.Symbol,
			Side:        string(side),
			Wallet:      wallet,
			NetAmount:   wager.NetAmount.String(),
			PaidAsset:   norm.PaidAsset,
			PaidAmount:  norm.PaidAmount.String(),
			PlatformFee: norm.Fee.String(),
			PoolGreen:   updated.PoolGreen.String(),
			PoolRed:     updated.PoolRed.String(),
			Ts:          wager.CreatedAt,
		}); err != nil {
			s.log.Warn("publish bet_placed failed", zap.String("wager_id", wager.ID), zap.Error(err))
		}
	}
	if s.OnPlaced != nil {
		s.OnPlaced(string(side))
	}

	writeJSON(w, http.StatusOK, dto.PlaceBetResponse{
		WagerID:     wager.ID,
		RoundID:     updated.ID,
		Status:      string(wager.Status),
		NetAmount:   wager.NetAmount.String(),
		PlatformFee: norm.Fee.String(),
		PoolGreen:   updated.PoolGreen.String(),
		PoolRed:     updated.PoolRed.String(),
	})
}

func (s *Server) currentRound(w http.ResponseWriter, r *http.Request) {
	symbol, ok := s.symbolParam(w, r)
	if !ok {
		return
	}
	now := s.now()

	var view dto.RoundView
	if s.cache != nil {
		if hit, err := s.cache.GetCurrent(r.Context(), symbol, &view); err == nil && hit {
			view.TimeRemainingMs = remaining(view.StartTime, now)
			writeJSON(w, http.StatusOK, view)
			return
		}
	}

	rd, err := s.store.CurrentRound(r.Context(), symbol, now)
	if err != nil {
		s.writeError(w, err)
		return
	}
	view = roundView(rd, now)
	if s.cache != nil {
		if err := s.cache.SetCurrent(r.Context(), symbol, view); err != nil {
			s.log.Warn("current round cache set failed", zap.String("symbol", symbol), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) roundHistory(w http.ResponseWriter, r *http.Request) {
	symbol, ok := s.symbolParam(w, r)
	if !ok {
		return
	}
	rounds, err := s.store.RoundHistory(r.Context(), symbol, limitParam(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	now := s.now()
	out := make([]dto.RoundView, 0, len(rounds))
	for _, rd := range rounds {
		out = append(out, roundView(rd, now))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listBets(w http.ResponseWriter, r *http.Request) {
	wallet := strings.TrimSpace(r.URL.Query().Get("wallet"))
	if wallet == "" {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "wallet required"})
		return
	}
	wagers, err := s.store.WagersByOwner(r.Context(), wallet, limitParam(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]dto.WagerView, 0, len(wagers))
	for _, ow := range wagers {
		out = append(out, wagerView(ow))
	}
	writeJSON(w, http.StatusOK, out)
}

// liveBets lista as últimas apostas de uma rodada, por roundId ou pela rodada corrente do símbolo
func (s *Server) liveBets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	roundID := strings.TrimSpace(q.Get("roundId"))
	if roundID == "" {
		if q.Get("symbol") == "" {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "roundId or symbol required"})
			return
		}
		symbol, ok := s.symbolParam(w, r)
		if !ok {
			return
		}
		rd, err := s.store.CurrentRound(r.Context(), symbol, s.now())
		if errors.Is(err, round.ErrRoundNotFound) {
			writeJSON(w, http.StatusOK, []dto.LiveBetView{})
			return
		}
		if err != nil {
			s.writeError(w, err)
			return
		}
		roundID = rd.ID
	}

	wagers, err := s.store.RecentWagers(r.Context(), roundID, liveLimit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]dto.LiveBetView, 0, len(wagers))
	for _, wg := range wagers {
		v := dto.LiveBetView{
			ID:          wg.ID,
			RoundID:     wg.RoundID,
			Wallet:      wg.OwnerKey,
			Side:        string(wg.Side),
			NetAmount:   wg.NetAmount.String(),
			PaidAsset:   wg.PaidAsset,
			TxSignature: wg.SwapRef,
			CreatedAt:   wg.CreatedAt,
		}
		if !wg.PaidAmount.IsZero() {
			v.PaidAmount = wg.PaidAmount.String()
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) rankings(w http.ResponseWriter, r *http.Request) {
	limit := rankLimit
	if r.URL.Query().Get("limit") != "" {
		limit = limitParam(r)
	}
	accts, err := s.store.Rankings(r.Context(), repo.ParseRankBy(r.URL.Query().Get("sortBy")), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]dto.RankingView, 0, len(accts))
	for i, a := range accts {
		out = append(out, dto.RankingView{
			Rank:        i + 1,
			Wallet:      a.OwnerKey,
			TotalWagers: a.TotalWagers,
			TotalWins:   a.TotalWins,
			WinRate:     repo.WinRate(a).StringFixed(2),
			TotalProfit: a.TotalProfit.String(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) globalStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.GlobalStats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.StatsView{
		TotalWagers:      st.TotalWagers,
		TotalAccounts:    st.TotalAccounts,
		TotalVolume:      st.TotalVolume.StringFixed(round.AmountPlaces),
		TotalPaidOut:     st.TotalPaidOut.StringFixed(round.AmountPlaces),
		PlatformFees:     st.PlatformFees.StringFixed(round.AmountPlaces),
		MostActiveSymbol: st.MostActiveSymbol,
	})
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	wallet := strings.TrimSpace(chi.URLParam(r, "wallet"))
	a, err := s.store.GetAccount(r.Context(), wallet)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.AccountView{
		Wallet:      wallet,
		TotalWagers: a.TotalWagers,
		TotalVolume: a.TotalVolume.String(),
		TotalWins:   a.TotalWins,
		TotalLosses: a.TotalLosses,
		TotalProfit: a.TotalProfit.String(),
	})
}

func (s *Server) symbolParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	symbol := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("symbol")))
	if !s.symbols[symbol] {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "unsupported symbol"})
		return "", false
	}
	return symbol, true
}

func (s *Server) reject(w http.ResponseWriter, status int, reason, msg string) {
	if s.OnRejected != nil {
		s.OnRejected(reason)
	}
	writeJSON(w, status, dto.ErrorResponse{Error: msg})
}

// writeError traduz os erros de domínio em status HTTP
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, round.ErrInvalidWager):
		s.reject(w, http.StatusBadRequest, "invalid", err.Error())
	case errors.Is(err, round.ErrRoundNotFound):
		s.reject(w, http.StatusNotFound, "round", "round not found")
	case errors.Is(err, round.ErrRoundNotOpen):
		s.reject(w, http.StatusConflict, "closed", "betting closed for this round")
	case errors.Is(err, normalize.ErrUnsupportedAsset):
		s.reject(w, http.StatusBadRequest, "asset", err.Error())
	case errors.Is(err, normalize.ErrSwapFailed):
		s.reject(w, http.StatusBadGateway, "swap", "failed to swap tokens, try again")
	default:
		s.log.Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func limitParam(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return defaultLimit
	}
	if n > maxLimit {
		return maxLimit
	}
	return n
}

func remaining(start, now time.Time) int64 {
	if ms := start.Sub(now).Milliseconds(); ms > 0 {
		return ms
	}
	return 0
}

func roundView(rd round.Round, now time.Time) dto.RoundView {
	v := dto.RoundView{
		ID:         rd.ID,
		Symbol:     rd.Symbol,
		Timeframe:  rd.Timeframe,
		StartTime:  rd.StartTime,
		EndTime:    rd.EndTime,
		Status:     string(rd.Status),
		PoolGreen:  rd.PoolGreen.String(),
		PoolRed:    rd.PoolRed.String(),
		BonusBoost: rd.BonusBoost.String(),
		SettledAt:  rd.SettledAt,
	}
	green, red := rd.MultiplierGreen, rd.MultiplierRed
	if rd.Status != round.StatusSettled {
		// multiplicadores ao vivo a partir dos pools atuais
		green, red = round.LiveMultipliers(rd)
		v.TimeRemainingMs = remaining(rd.StartTime, now)
	} else {
		v.WinnerSide = string(rd.WinnerSide)
	}
	v.MultiplierGreen = nullString(green)
	v.MultiplierRed = nullString(red)
	return v
}

func wagerView(ow repo.OwnerWager) dto.WagerView {
	v := dto.WagerView{
		ID:                 ow.ID,
		RoundID:            ow.RoundID,
		Symbol:             ow.Symbol,
		Side:               string(ow.Side),
		NetAmount:          ow.NetAmount.String(),
		PaidAsset:          ow.PaidAsset,
		PlatformFee:        ow.PlatformFee.String(),
		Status:             string(ow.Status),
		Payout:             ow.Payout.String(),
		PayoutConfirmation: ow.PayoutConfirmation,
		WinnerSide:         string(ow.WinnerSide),
		StartTime:          ow.StartTime,
		EndTime:            ow.EndTime,
		CreatedAt:          ow.CreatedAt,
		PaidAt:             ow.PaidAt,
	}
	if !ow.PaidAmount.IsZero() {
		v.PaidAmount = ow.PaidAmount.String()
	}
	return v
}

func nullString(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.String()
	return &s
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
