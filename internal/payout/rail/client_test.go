package rail_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/updown-rounds/internal/payout/rail"
	raildto "github.com/radieske/updown-rounds/internal/payout/rail/dto"
	"github.com/radieske/updown-rounds/internal/round"
)

func TestTransfer_Completed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/transfers", r.URL.Path)
		assert.Equal(t, "wager-1", r.Header.Get("Idempotency-Key"))

		var req raildto.TransferRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "wallet-abc", req.Recipient)
		assert.Equal(t, "14.25000000", req.Amount)
		assert.Equal(t, "USDC", req.Asset)

		_ = json.NewEncoder(w).Encode(raildto.TransferResponse{Status: raildto.StatusCompleted, Confirmation: "sig-1"})
	}))
	defer srv.Close()

	conf, err := rail.New(srv.URL, "USDC").Transfer(context.Background(), "wallet-abc", "14.25000000", "wager-1")
	require.NoError(t, err)
	assert.Equal(t, "sig-1", conf)
}

func TestTransfer_Failures(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"http 500": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
		"rejected": func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(raildto.TransferResponse{Status: raildto.StatusRejected, Reason: "insufficient_funds"})
		},
		"bad json": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("{"))
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(h)
			defer srv.Close()
			_, err := rail.New(srv.URL, "USDC").Transfer(context.Background(), "w", "1", "k")
			assert.ErrorIs(t, err, round.ErrTransferFailed)
		})
	}
}

func TestTransfer_Unreachable(t *testing.T) {
	_, err := rail.New("http://127.0.0.1:1", "USDC").Transfer(context.Background(), "w", "1", "k")
	assert.ErrorIs(t, err, round.ErrTransferFailed)
}
