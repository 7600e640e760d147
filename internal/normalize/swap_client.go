package normalize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

type swapRequest struct {
	InputAsset  string `json:"inputAsset"`
	OutputAsset string `json:"outputAsset"`
	Amount      string `json:"amount"`
	SlippageBps int    `json:"slippageBps"`
}

type swapResponse struct {
	OutputAmount string `json:"outputAmount"`
	Ref          string `json:"ref"`
}

// SwapClient chama o serviço externo de troca (POST {base}/swap)
type SwapClient struct {
	BaseURL     string
	QuoteAsset  string
	SlippageBps int
	HTTP        *http.Client
}

func NewSwapClient(base, quoteAsset string) *SwapClient {
	return &SwapClient{
		BaseURL:     base,
		QuoteAsset:  quoteAsset,
		SlippageBps: 100, // 1%
		HTTP:        &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *SwapClient) Convert(ctx context.Context, asset string, amount decimal.Decimal) (Conversion, error) {
	body, _ := json.Marshal(swapRequest{
		InputAsset:  asset,
		OutputAsset: c.QuoteAsset,
		Amount:      amount.String(),
		SlippageBps: c.SlippageBps,
	})
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/swap", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res, err := c.HTTP.Do(req)
	if err != nil {
		return Conversion{}, fmt.Errorf("%w: %v", ErrSwapFailed, err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return Conversion{}, fmt.Errorf("%w: swap http %d", ErrSwapFailed, res.StatusCode)
	}

	var out swapResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return Conversion{}, fmt.Errorf("%w: decode swap response: %v", ErrSwapFailed, err)
	}
	q, err := decimal.NewFromString(out.OutputAmount)
	if err != nil {
		return Conversion{}, fmt.Errorf("%w: output amount %q", ErrSwapFailed, out.OutputAmount)
	}
	return Conversion{QuoteAmount: q, Ref: out.Ref}, nil
}
