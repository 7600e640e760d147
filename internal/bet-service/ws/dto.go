package ws

import "github.com/radieske/updown-rounds/pkg/contracts/events"

// ClientMsg é uma mensagem recebida do cliente WebSocket.
// subscribe/unsubscribe exigem roundId ou symbol; roundId tem precedência.
type ClientMsg struct {
	Type    string `json:"type"` // subscribe | unsubscribe | ping
	RoundID string `json:"roundId,omitempty"`
	Symbol  string `json:"symbol,omitempty"`
}

// ServerMsg é o envelope enviado aos clientes
type ServerMsg struct {
	Type    string            `json:"type"` // bet | subscribed | unsubscribed | pong | error
	Channel string            `json:"channel,omitempty"`
	Bet     *events.BetPlaced `json:"bet,omitempty"`
	Error   string            `json:"error,omitempty"`
}
