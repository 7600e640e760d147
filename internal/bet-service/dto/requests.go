package dto

// PlaceBetRequest é o corpo validado de POST /bets.
// Valores monetários chegam como string decimal para não perder precisão.
type PlaceBetRequest struct {
	Symbol      string `json:"symbol"`
	RoundID     string `json:"roundId"`
	Side        string `json:"side"` // "GREEN" | "RED"
	Wallet      string `json:"walletAddress"`
	PaidAsset   string `json:"paidToken"`  // ex: "USDC", "SOL"
	PaidAmount  string `json:"paidAmount"` // quantidade no ativo pago
	TxSignature string `json:"transactionSignature,omitempty"`
}
