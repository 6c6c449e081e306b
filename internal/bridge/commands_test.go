package bridge

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"burstbot/internal/blackjack"
	"burstbot/internal/chat"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gamblingMatch seats ann (owns 100, bet 20) and bob in a betting round at
// a highest bet of 30, with ann to act.
func gamblingMatch(t *testing.T, env *testEnv) *blackjack.Outbound {
	t.Helper()
	env.seat(t, "m1", 1, "ann", 0)
	env.seat(t, "m1", 2, "bob", 1)

	state, _ := env.bridge.Registry().Get("m1")
	state.Lock()
	defer state.Unlock()
	require.NoError(t, state.Advance(blackjack.Gambling))
	state.HighestBet = 30
	state.CurrentPlayerOrder = 0
	ann, _ := state.Players.Get(1)
	ann.BetTips = 20

	queue := state.EnsureOutbound()
	for {
		if _, ok := queue.TryPop(); !ok {
			break
		}
	}
	return queue
}

func incoming(channelID, authorID, content string) chat.Incoming {
	return chat.Incoming{ChannelID: channelID, Author: chat.User{ID: authorID}, Content: content}
}

func TestHandleMessageRaiseLimits(t *testing.T) {
	assert := assert.New(t)
	env := setupTestBridge(t, Options{})
	queue := gamblingMatch(t, env)
	ctx := context.Background()

	err := env.bridge.HandleMessage(ctx, incoming("10", "1", "raise 81"))
	assert.ErrorIs(err, blackjack.ErrRaiseExceedsBalance)
	assert.Equal(0, queue.Len())
	require.Len(t, env.platform.Sent(), 1)
	assert.Equal("blackjack.raise_excess", env.platform.Sent()[0].Msg.Content)

	err = env.bridge.HandleMessage(ctx, incoming("10", "1", "raise lots"))
	assert.ErrorIs(err, blackjack.ErrRaiseInvalid)
	assert.Equal(0, queue.Len())

	require.NoError(t, env.bridge.HandleMessage(ctx, incoming("10", "1", "raise 80")))
	item, ok := queue.TryPop()
	require.True(t, ok)
	var req blackjack.Request
	require.NoError(t, json.Unmarshal(item.Payload, &req))
	assert.Equal(blackjack.ActionRaise, req.RequestType)
	assert.Equal(80, req.Bets)
	assert.Equal(uint64(1), item.PlayerID)

	require.NoError(t, env.bridge.HandleMessage(ctx, incoming("10", "1", "allin")))
	item, _ = queue.TryPop()
	require.NoError(t, json.Unmarshal(item.Payload, &req))
	assert.Equal(50, req.Bets)
}

func TestHandleMessageRouting(t *testing.T) {
	env := setupTestBridge(t, Options{})
	queue := gamblingMatch(t, env)
	ctx := context.Background()

	var tests = []struct {
		name string
		in   chat.Incoming
		err  error
	}{
		{"unknown channel", incoming("999", "1", "call"), ErrMatchNotFound},
		{"not the owner", incoming("10", "2", "call"), ErrNotChannelOwner},
		{"not your turn", incoming("20", "2", "call"), ErrNotYourTurn},
		{"not a command", incoming("10", "1", "hello there"), nil},
		{"wrong stage command", incoming("10", "1", "draw"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.bridge.HandleMessage(ctx, tt.in)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, 0, queue.Len())
		})
	}

	require.NoError(t, env.bridge.HandleMessage(ctx, incoming("10", "1", "  CALL ")))
	assert.Equal(t, 1, queue.Len())
}

func TestHandleMessageThrottled(t *testing.T) {
	env := setupTestBridge(t, Options{})
	env.bridge.throttle = NewThrottle(2, time.Minute)
	gamblingMatch(t, env)
	ctx := context.Background()

	assert.NoError(t, env.bridge.HandleMessage(ctx, incoming("10", "1", "hello")))
	assert.NoError(t, env.bridge.HandleMessage(ctx, incoming("10", "1", "hello")))
	assert.ErrorIs(t, env.bridge.HandleMessage(ctx, incoming("10", "1", "call")), ErrThrottled)
	assert.NoError(t, env.bridge.HandleMessage(ctx, incoming("20", "2", "hello")))
}

func TestHandleMessageOutsideTurns(t *testing.T) {
	env := setupTestBridge(t, Options{})
	env.seat(t, "m1", 1, "ann", 0)

	state, _ := env.bridge.Registry().Get("m1")
	state.Lock()
	queue := state.EnsureOutbound()
	state.Unlock()
	queue.TryPop()

	assert.NoError(t, env.bridge.HandleMessage(context.Background(), incoming("10", "1", "draw")))
	assert.Equal(t, 0, queue.Len())
}
