package round

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side é o lado escolhido pelo usuário numa rodada
type Side string

const (
	SideGreen Side = "GREEN" // fechamento acima da abertura
	SideRed   Side = "RED"   // fechamento abaixo da abertura
)

// Valid indica se o lado é um dos dois lados apostáveis
func (s Side) Valid() bool { return s == SideGreen || s == SideRed }

// Winner é o veredito de uma rodada liquidada
type Winner string

const (
	WinnerGreen Winner = "GREEN"
	WinnerRed   Winner = "RED"
	WinnerDraw  Winner = "DRAW" // empate de preço ou rodada unilateral
)

// Status do ciclo de vida: OPEN -> LOCKED -> SETTLED, sempre para frente
type Status string

const (
	StatusOpen    Status = "OPEN"
	StatusLocked  Status = "LOCKED"
	StatusSettled Status = "SETTLED"
)

// WagerStatus é o estado de uma aposta; só sai de PENDING na liquidação
type WagerStatus string

const (
	WagerPending  WagerStatus = "PENDING"
	WagerWon      WagerStatus = "WON"
	WagerLost     WagerStatus = "LOST"
	WagerRefunded WagerStatus = "REFUNDED"
)

// Round é um ciclo de apostas/observação de um símbolo.
// A janela é semiaberta: [StartTime, EndTime).
type Round struct {
	ID        string
	Symbol    string
	Timeframe string // ex: "5m"
	StartTime time.Time
	EndTime   time.Time
	Status    Status

	PoolGreen  decimal.Decimal
	PoolRed    decimal.Decimal
	BonusBoost decimal.Decimal
	FeeRate    decimal.Decimal

	// preenchidos uma única vez, na liquidação
	WinnerSide      Winner
	MultiplierGreen decimal.NullDecimal
	MultiplierRed   decimal.NullDecimal
	SettledAt       *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Wager é a contribuição de um usuário para um lado de uma rodada
type Wager struct {
	ID       string
	RoundID  string
	Side     Side
	OwnerKey string

	NetAmount decimal.Decimal // valor em moeda de cotação creditado no pool

	// proveniência (auditoria), imutáveis
	GrossPaid   decimal.Decimal
	PaidAsset   string
	PaidAmount  decimal.Decimal
	PlatformFee decimal.Decimal
	SwapRef     string

	Status             WagerStatus
	Payout             decimal.Decimal
	PayoutConfirmation string
	PayoutClaimedUntil *time.Time
	PayoutAttempts     int

	CreatedAt time.Time
	SettledAt *time.Time
	PaidAt    *time.Time
}

// Account é o agregado denormalizado por carteira
type Account struct {
	OwnerKey    string
	TotalWagers int64
	TotalVolume decimal.Decimal
	TotalWins   int64
	TotalLosses int64
	TotalProfit decimal.Decimal
	UpdatedAt   time.Time
}

// WagerResult é o resultado calculado para uma aposta na liquidação
type WagerResult struct {
	WagerID  string
	OwnerKey string
	Status   WagerStatus
	Payout   decimal.Decimal
	Net      decimal.Decimal
}

// Settlement agrupa todas as saídas de liquidação de uma rodada.
// É gravado de forma atômica junto com a troca LOCKED -> SETTLED.
type Settlement struct {
	RoundID         string
	WinnerSide      Winner
	MultiplierGreen decimal.NullDecimal
	MultiplierRed   decimal.NullDecimal
	Reason          string // regra que decidiu, vai para round_transitions
	Results         []WagerResult
	SettledAt       time.Time
}

// Observation é o par abertura/fechamento de uma janela
type Observation struct {
	Open  decimal.Decimal
	Close decimal.Decimal
}
