package topics

const (
	// Apostas
	BetPlaced = "bet_placed"

	// Rodadas
	RoundSettled = "round_settled"

	// Pagamentos
	PayoutConfirmed = "payout_confirmed"
)
