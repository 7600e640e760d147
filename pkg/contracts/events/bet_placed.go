package events

import "time"

// Evento emitido pelo bet-service depois que a aposta entra no pool da rodada.
// Valores monetários trafegam como string decimal para não perder precisão.
type BetPlaced struct {
	WagerID     string    `json:"wagerId"`
	RoundID     string    `json:"roundId"`
	Symbol      string    `json:"symbol"`
	Side        string    `json:"side"` // "GREEN" | "RED"
	Wallet      string    `json:"wallet"`
	NetAmount   string    `json:"netAmount"`
	PaidAsset   string    `json:"paidAsset,omitempty"`
	PaidAmount  string    `json:"paidAmount,omitempty"`
	PlatformFee string    `json:"platformFee,omitempty"`
	PoolGreen   string    `json:"poolGreen"`
	PoolRed     string    `json:"poolRed"`
	Ts          time.Time `json:"ts"`
}
