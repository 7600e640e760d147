package events

import "time"

type PayoutConfirmed struct {
	WagerID      string    `json:"wagerId"`
	RoundID      string    `json:"roundId"`
	Wallet       string    `json:"wallet"`
	Status       string    `json:"status"` // "WON" | "REFUNDED"
	Amount       string    `json:"amount"`
	Confirmation string    `json:"confirmation"`
	Ts           time.Time `json:"ts"`
}
