package gateway_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/radieske/updown-rounds/internal/gateway"
)

// upstream responde com o nome do serviço e o caminho recebido
func upstream(name string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, name+" "+r.Method+" "+r.URL.RequestURI())
	}))
}

func TestGateway_Routes(t *testing.T) {
	bets := upstream("bets")
	defer bets.Close()
	sched := upstream("scheduler")
	defer sched.Close()

	h, err := gateway.New(zaptest.NewLogger(t), gateway.Targets{Bets: bets.URL, Scheduler: sched.URL})
	require.NoError(t, err)
	gw := httptest.NewServer(h)
	defer gw.Close()

	cases := map[string]string{
		"/api/rounds/current?symbol=BTCUSDT": "bets GET /rounds/current?symbol=BTCUSDT",
		"/api/bets?wallet=w1":                "bets GET /bets?wallet=w1",
		"/api/accounts/w1":                   "bets GET /accounts/w1",
		"/api/rankings?sortBy=wins":          "bets GET /rankings?sortBy=wins",
		"/api/stats":                         "bets GET /stats",
		"/api/bets/live?symbol=BTCUSDT":      "bets GET /bets/live?symbol=BTCUSDT",
		"/api/admin/run-scheduler":           "scheduler GET /admin/run-scheduler",
	}
	for path, want := range cases {
		res, err := http.Get(gw.URL + path)
		require.NoError(t, err)
		body, _ := io.ReadAll(res.Body)
		res.Body.Close()
		assert.Equal(t, want, string(body), path)
		assert.Equal(t, "*", res.Header.Get("Access-Control-Allow-Origin"))
	}

	res, err := http.Get(gw.URL + "/api/unknown")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestGateway_Preflight(t *testing.T) {
	h, err := gateway.New(zaptest.NewLogger(t), gateway.Targets{Bets: "http://bets:8083", Scheduler: "http://sched:8085"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/bets", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestGateway_UpstreamDown(t *testing.T) {
	down := upstream("bets")
	down.Close()

	h, err := gateway.New(zaptest.NewLogger(t), gateway.Targets{Bets: down.URL, Scheduler: down.URL})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/rounds/history?symbol=BTCUSDT", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestGateway_InvalidTarget(t *testing.T) {
	_, err := gateway.New(zaptest.NewLogger(t), gateway.Targets{Bets: "::not a url", Scheduler: "http://sched"})
	assert.Error(t, err)
}
