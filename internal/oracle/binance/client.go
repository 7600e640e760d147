package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/updown-rounds/internal/round"
)

const DefaultBaseURL = "https://api.binance.com"

// intervalos de kline aceitos pela API
var intervals = map[time.Duration]string{
	time.Minute:      "1m",
	3 * time.Minute:  "3m",
	5 * time.Minute:  "5m",
	15 * time.Minute: "15m",
	30 * time.Minute: "30m",
	time.Hour:        "1h",
	2 * time.Hour:    "2h",
	4 * time.Hour:    "4h",
	6 * time.Hour:    "6h",
	8 * time.Hour:    "8h",
	12 * time.Hour:   "12h",
	24 * time.Hour:   "1d",
}

// SupportsWindow informa se a janela tem intervalo de kline correspondente
func SupportsWindow(w time.Duration) bool {
	_, ok := intervals[w]
	return ok
}

// Client busca o candle exato da janela na API pública de klines.
// Qualquer falha vira round.ErrObservationUnavailable; não há fallback para o candle mais recente.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	now     func() time.Time
}

func New(base string, timeout time.Duration) *Client {
	if base == "" {
		base = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL: base,
		HTTP:    &http.Client{Timeout: timeout},
		now:     time.Now,
	}
}

// SetClock troca o relógio usado para decidir se o candle já fechou
func (c *Client) SetClock(fn func() time.Time) { c.now = fn }

// WindowObservation devolve abertura e fechamento do candle [start, end)
func (c *Client) WindowObservation(ctx context.Context, symbol string, start, end time.Time) (round.Observation, error) {
	interval, ok := intervals[end.Sub(start)]
	if !ok {
		return round.Observation{}, fmt.Errorf("%w: unsupported window %s", round.ErrObservationUnavailable, end.Sub(start))
	}

	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("startTime", strconv.FormatInt(start.UnixMilli(), 10))
	q.Set("endTime", strconv.FormatInt(end.UnixMilli()-1, 10))
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/v3/klines?"+q.Encode(), nil)
	if err != nil {
		return round.Observation{}, fmt.Errorf("%w: %v", round.ErrObservationUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.HTTP.Do(req)
	if err != nil {
		return round.Observation{}, fmt.Errorf("%w: klines %s: %v", round.ErrObservationUnavailable, symbol, err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return round.Observation{}, fmt.Errorf("%w: klines http %d: %s", round.ErrObservationUnavailable, res.StatusCode, body)
	}

	var rows [][]json.RawMessage
	if err := json.NewDecoder(res.Body).Decode(&rows); err != nil {
		return round.Observation{}, fmt.Errorf("%w: decode klines: %v", round.ErrObservationUnavailable, err)
	}
	if len(rows) == 0 {
		return round.Observation{}, fmt.Errorf("%w: no candle for %s at %s", round.ErrObservationUnavailable, symbol, start.UTC().Format(time.RFC3339))
	}
	return c.parse(rows[0], start)
}

// formato: [openTime, open, high, low, close, volume, closeTime, ...]
func (c *Client) parse(row []json.RawMessage, start time.Time) (round.Observation, error) {
	if len(row) < 7 {
		return round.Observation{}, fmt.Errorf("%w: short kline row (%d fields)", round.ErrObservationUnavailable, len(row))
	}

	var openTime, closeTime int64
	if err := json.Unmarshal(row[0], &openTime); err != nil {
		return round.Observation{}, fmt.Errorf("%w: open time: %v", round.ErrObservationUnavailable, err)
	}
	if err := json.Unmarshal(row[6], &closeTime); err != nil {
		return round.Observation{}, fmt.Errorf("%w: close time: %v", round.ErrObservationUnavailable, err)
	}
	if openTime != start.UnixMilli() {
		return round.Observation{}, fmt.Errorf("%w: candle opens at %d, want %d", round.ErrObservationUnavailable, openTime, start.UnixMilli())
	}
	if closeTime >= c.now().UnixMilli() {
		return round.Observation{}, fmt.Errorf("%w: candle still open", round.ErrObservationUnavailable)
	}

	open, err := price(row[1])
	if err != nil {
		return round.Observation{}, err
	}
	closePrice, err := price(row[4])
	if err != nil {
		return round.Observation{}, err
	}
	return round.Observation{Open: open, Close: closePrice}, nil
}

func price(raw json.RawMessage) (decimal.Decimal, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: price field: %v", round.ErrObservationUnavailable, err)
	}
	p, err := decimal.NewFromString(s)
	if err != nil || !p.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("%w: invalid price %q", round.ErrObservationUnavailable, s)
	}
	return p, nil
}
