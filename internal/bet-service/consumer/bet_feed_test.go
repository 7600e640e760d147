package consumer_test

import (
	"context"
	"encoding/json"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/radieske/updown-rounds/internal/bet-service/consumer"
	"github.com/radieske/updown-rounds/pkg/contracts/events"
)

type recordingHub struct {
	bets []events.BetPlaced
}

func (h *recordingHub) Broadcast(e events.BetPlaced) int {
	h.bets = append(h.bets, e)
	return 1
}

func betMsg(t *testing.T, wagerID, roundID string) kafkago.Message {
	t.Helper()
	b, err := json.Marshal(events.BetPlaced{WagerID: wagerID, RoundID: roundID, Symbol: "BTCUSDT", Side: "RED"})
	require.NoError(t, err)
	return kafkago.Message{Key: []byte(roundID), Value: b}
}

func TestBetFeedListener_BroadcastsValidBets(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := &recordingHub{}
	var stages []string
	l := &consumer.BetFeedListener{
		Log: zaptest.NewLogger(t),
		Reader: &scriptedReader{cancel: cancel, msgs: []kafkago.Message{
			betMsg(t, "w-1", "r-1"),
			{Value: []byte(`{"wagerId":"w-2"}`)},
			{Value: []byte("garbage")},
			betMsg(t, "w-3", "r-1"),
		}},
		Hub:     hub,
		OnError: func(s string) { stages = append(stages, s) },
	}

	assert.ErrorIs(t, l.Run(ctx), context.Canceled)
	require.Len(t, hub.bets, 2)
	assert.Equal(t, "w-1", hub.bets[0].WagerID)
	assert.Equal(t, "w-3", hub.bets[1].WagerID)
	assert.Equal(t, []string{"decode", "decode"}, stages)
}
