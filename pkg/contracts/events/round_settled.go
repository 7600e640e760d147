package events

import "time"

// Evento emitido pelo round-scheduler quando uma rodada chega em SETTLED.
// Multiplicadores ausentes significam rodada sem veredito de preço (reembolso).
type RoundSettled struct {
	RoundID         string    `json:"roundId"`
	Symbol          string    `json:"symbol"`
	StartTime       time.Time `json:"startTime"`
	EndTime         time.Time `json:"endTime"`
	WinnerSide      string    `json:"winnerSide"` // "GREEN" | "RED" | "DRAW"
	Reason          string    `json:"reason"`
	OpenPrice       string    `json:"openPrice,omitempty"`
	ClosePrice      string    `json:"closePrice,omitempty"`
	PoolGreen       string    `json:"poolGreen"`
	PoolRed         string    `json:"poolRed"`
	MultiplierGreen *string   `json:"multiplierGreen"`
	MultiplierRed   *string   `json:"multiplierRed"`
	Wagers          int       `json:"wagers"`
	Ts              time.Time `json:"ts"`
}
