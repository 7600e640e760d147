package rail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	raildto "github.com/radieske/updown-rounds/internal/payout/rail/dto"
	"github.com/radieske/updown-rounds/internal/round"
)

// Client fala com o trilho de pagamento externo
type Client struct {
	BaseURL string
	Asset   string
	HTTP    *http.Client
}

func New(base, asset string) *Client {
	return &Client{
		BaseURL: base,
		Asset:   asset,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Transfer envia o valor e devolve a confirmação do trilho.
// Qualquer resposta que não seja COMPLETED resulta em round.ErrTransferFailed.
func (c *Client) Transfer(ctx context.Context, recipient, amount, idempotencyKey string) (string, error) {
	body, _ := json.Marshal(raildto.TransferRequest{
		Recipient:      recipient,
		Amount:         amount,
		Asset:          c.Asset,
		IdempotencyKey: idempotencyKey,
	})
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/transfers", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey)
	res, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", round.ErrTransferFailed, err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return "", fmt.Errorf("%w: rail http %d", round.ErrTransferFailed, res.StatusCode)
	}

	var out raildto.TransferResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode rail response: %v", round.ErrTransferFailed, err)
	}
	if out.Status != raildto.StatusCompleted || out.Confirmation == "" {
		return "", fmt.Errorf("%w: rail status %s %s", round.ErrTransferFailed, out.Status, out.Reason)
	}
	return out.Confirmation, nil
}
