package binance_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/updown-rounds/internal/oracle/binance"
	"github.com/radieske/updown-rounds/internal/round"
)

var (
	start = time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC)
	end   = start.Add(5 * time.Minute)
)

func kline(open int64, o, c string) string {
	return fmt.Sprintf(`[[%d,"%s","70100.0","69800.0","%s","12.5",%d,"1","10","1","1","0"]]`, open, o, c, open+5*60*1000-1)
}

func newClient(t *testing.T, h http.HandlerFunc) *binance.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := binance.New(srv.URL, time.Second)
	c.SetClock(func() time.Time { return end.Add(2 * time.Second) })
	return c
}

func TestWindowObservation_ParsesExactCandle(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "BTCUSDT", q.Get("symbol"))
		assert.Equal(t, "5m", q.Get("interval"))
		assert.Equal(t, fmt.Sprint(start.UnixMilli()), q.Get("startTime"))
		assert.Equal(t, "1", q.Get("limit"))
		_, _ = w.Write([]byte(kline(start.UnixMilli(), "70000.01", "70012.50")))
	})

	obs, err := c.WindowObservation(context.Background(), "BTCUSDT", start, end)
	require.NoError(t, err)
	assert.Equal(t, "70000.01", obs.Open.String())
	assert.Equal(t, "70012.5", obs.Close.String())
	assert.Equal(t, round.WinnerGreen, round.Resolve(obs.Open, obs.Close))
}

func TestWindowObservation_Failures(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"http error": func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"code":-1121,"msg":"Invalid symbol."}`, http.StatusBadRequest)
		},
		"empty": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`[]`))
		},
		"wrong window": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(kline(start.Add(-5*time.Minute).UnixMilli(), "1", "2")))
		},
		"bad price": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(kline(start.UnixMilli(), "abc", "2")))
		},
		"garbage": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"oops":true}`))
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := newClient(t, h).WindowObservation(context.Background(), "BTCUSDT", start, end)
			assert.ErrorIs(t, err, round.ErrObservationUnavailable)
		})
	}
}

func TestWindowObservation_CandleStillOpen(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(kline(start.UnixMilli(), "1", "2")))
	})
	c.SetClock(func() time.Time { return end.Add(-time.Minute) })

	_, err := c.WindowObservation(context.Background(), "BTCUSDT", start, end)
	assert.ErrorIs(t, err, round.ErrObservationUnavailable)
}

func TestWindowObservation_UnsupportedWindow(t *testing.T) {
	c := binance.New("http://127.0.0.1:1", time.Second)
	_, err := c.WindowObservation(context.Background(), "BTCUSDT", start, start.Add(7*time.Minute))
	assert.ErrorIs(t, err, round.ErrObservationUnavailable)
}

func TestSupportsWindow(t *testing.T) {
	assert.True(t, binance.SupportsWindow(5*time.Minute))
	assert.True(t, binance.SupportsWindow(24*time.Hour))
	assert.False(t, binance.SupportsWindow(7*time.Minute))
	assert.False(t, binance.SupportsWindow(90*time.Second))
}

func TestWindowObservation_Timeout(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.WindowObservation(ctx, "BTCUSDT", start, end)
	assert.ErrorIs(t, err, round.ErrObservationUnavailable)
}
