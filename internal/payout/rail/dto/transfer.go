package dto

// TransferRequest é o payload de uma transferência para a carteira do usuário.
// IdempotencyKey é o ID da aposta: o trilho não executa a mesma chave duas vezes.
type TransferRequest struct {
	Recipient      string `json:"recipient"`
	Amount         string `json:"amount"`
	Asset          string `json:"asset"`
	IdempotencyKey string `json:"idempotencyKey"`
}

type TransferResponse struct {
	Status       string `json:"status"` // COMPLETED | REJECTED
	Confirmation string `json:"confirmation"`
	Reason       string `json:"reason,omitempty"`
}

const (
	StatusCompleted = "COMPLETED"
	StatusRejected  = "REJECTED"
)
