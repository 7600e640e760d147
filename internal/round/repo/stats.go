package repo

import (
	"github.com/shopspring/decimal"

	"github.com/radieske/updown-rounds/internal/round"
)

// RankBy é o critério de ordenação do ranking de carteiras
type RankBy string

const (
	RankByProfit  RankBy = "profit"
	RankByWins    RankBy = "wins"
	RankByWinRate RankBy = "winRate"
)

// ParseRankBy devolve o critério pedido; desconhecido cai em profit
func ParseRankBy(s string) RankBy {
	switch RankBy(s) {
	case RankByWins, RankByWinRate:
		return RankBy(s)
	default:
		return RankByProfit
	}
}

// WinRate é vitórias / apostas em percentual, com duas casas
func WinRate(a round.Account) decimal.Decimal {
	if a.TotalWagers <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(a.TotalWins * 100).DivRound(decimal.NewFromInt(a.TotalWagers), 2)
}

// Stats agrega a plataforma inteira.
// PlatformFees soma a taxa de normalização das apostas e a taxa sobre a liquidez
// das rodadas liquidadas por preço. TotalPaidOut conta só pagamentos confirmados.
type Stats struct {
	TotalWagers      int64
	TotalAccounts    int64
	TotalVolume      decimal.Decimal
	TotalPaidOut     decimal.Decimal
	PlatformFees     decimal.Decimal
	MostActiveSymbol string // símbolo com mais apostas; vazio sem apostas
}
