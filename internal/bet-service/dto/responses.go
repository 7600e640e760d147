package dto

import "time"

type PlaceBetResponse struct {
	WagerID     string `json:"wagerId"`
	RoundID     string `json:"roundId"`
	Status      string `json:"status"` // PENDING
	NetAmount   string `json:"netAmount"`
	PlatformFee string `json:"platformFee"`
	PoolGreen   string `json:"poolGreen"`
	PoolRed     string `json:"poolRed"`
}

// RoundView é a visão pública de uma rodada; multiplicador nulo = indefinido
type RoundView struct {
	ID              string     `json:"id"`
	Symbol          string     `json:"symbol"`
	Timeframe       string     `json:"timeframe"`
	StartTime       time.Time  `json:"startTime"`
	EndTime         time.Time  `json:"endTime"`
	Status          string     `json:"status"`
	PoolGreen       string     `json:"poolGreen"`
	PoolRed         string     `json:"poolRed"`
	BonusBoost      string     `json:"bonusBoost"`
	MultiplierGreen *string    `json:"multiplierGreen"`
	MultiplierRed   *string    `json:"multiplierRed"`
	WinnerSide      string     `json:"winnerSide,omitempty"`
	SettledAt       *time.Time `json:"settledAt,omitempty"`
	TimeRemainingMs int64      `json:"timeRemaining"` // ms até fechar as apostas
}

type WagerView struct {
	ID                 string     `json:"id"`
	RoundID            string     `json:"roundId"`
	Symbol             string     `json:"symbol"`
	Side               string     `json:"side"`
	NetAmount          string     `json:"amount"`
	PaidAsset          string     `json:"paidToken,omitempty"`
	PaidAmount         string     `json:"paidAmount,omitempty"`
	PlatformFee        string     `json:"platformFee"`
	Status             string     `json:"status"`
	Payout             string     `json:"payout"`
	PayoutConfirmation string     `json:"payoutConfirmation,omitempty"`
	WinnerSide         string     `json:"winnerSide,omitempty"`
	StartTime          time.Time  `json:"startTime"`
	EndTime            time.Time  `json:"endTime"`
	CreatedAt          time.Time  `json:"createdAt"`
	PaidAt             *time.Time `json:"paidAt,omitempty"`
}

type AccountView struct {
	Wallet      string `json:"walletAddress"`
	TotalWagers int64  `json:"totalBets"`
	TotalVolume string `json:"totalVolume"`
	TotalWins   int64  `json:"totalWins"`
	TotalLosses int64  `json:"totalLosses"`
	TotalProfit string `json:"totalProfit"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// LiveBetView é uma aposta no feed ao vivo de uma rodada
type LiveBetView struct {
	ID          string    `json:"id"`
	RoundID     string    `json:"roundId"`
	Wallet      string    `json:"walletAddress"`
	Side        string    `json:"side"`
	NetAmount   string    `json:"amount"`
	PaidAsset   string    `json:"paidToken,omitempty"`
	PaidAmount  string    `json:"paidAmount,omitempty"`
	TxSignature string    `json:"transactionSignature,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type RankingView struct {
	Rank        int    `json:"rank"`
	Wallet      string `json:"walletAddress"`
	TotalWagers int64  `json:"totalBets"`
	TotalWins   int64  `json:"totalWins"`
	WinRate     string `json:"winRate"` // percentual
	TotalProfit string `json:"totalProfit"`
}

type StatsView struct {
	TotalWagers      int64  `json:"totalBets"`
	TotalAccounts    int64  `json:"totalUsers"`
	TotalVolume      string `json:"totalVolume"`
	TotalPaidOut     string `json:"totalPaidOut"`
	PlatformFees     string `json:"platformFees"`
	MostActiveSymbol string `json:"mostPopularAsset,omitempty"`
}
