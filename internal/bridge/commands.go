package bridge

import (
	"context"
	"errors"
	"strconv"

	"burstbot/internal/blackjack"
	"burstbot/internal/chat"

	"go.uber.org/zap"
)

var (
	ErrMatchNotFound   = errors.New("MATCH_NOT_FOUND: channel does not belong to a live match")
	ErrNotChannelOwner = errors.New("NOT_CHANNEL_OWNER: only the seated player can act in this channel")
	ErrNotYourTurn     = errors.New("NOT_YOUR_TURN: wait for your turn")
	ErrThrottled       = errors.New("THROTTLED: too many commands")
)

// HandleMessage routes player input from a private channel. A valid action
// is queued for the match's session; nothing else reaches the backend.
// Input that is not a command for the current stage is ignored and returns
// nil. Raise validation failures are reported to the player.
func (b *Bridge) HandleMessage(ctx context.Context, in chat.Incoming) error {
	entry, ok := b.channels.Lookup(in.ChannelID)
	if !ok {
		return ErrMatchNotFound
	}
	if b.throttle != nil && !b.throttle.Allow(in.ChannelID) {
		return ErrThrottled
	}
	if in.Author.ID != strconv.FormatUint(entry.PlayerID, 10) {
		return ErrNotChannelOwner
	}
	state, ok := b.registry.Get(entry.MatchID)
	if !ok {
		return ErrMatchNotFound
	}

	state.Lock()
	stage := state.Progress()
	current := state.CurrentPlayerOrder
	highestBet := state.HighestBet
	queue := state.EnsureOutbound()
	var player blackjack.PlayerState
	seated, ok := state.Players.Get(entry.PlayerID)
	if ok {
		player = *seated
	}
	state.Unlock()

	if !ok || !stage.HasTurns() {
		return nil
	}

	cmd, ok, err := blackjack.ParseCommand(stage, in.Content, player, highestBet)
	if err != nil {
		if _, sendErr := b.platform.Send(ctx, in.ChannelID, b.notifier.Rejection(err)); sendErr != nil {
			b.logger.Error("failed to send rejection", zap.String("channel_id", in.ChannelID), zap.Error(sendErr))
		}
		return err
	}
	if !ok {
		return nil
	}
	if player.Order != current {
		return ErrNotYourTurn
	}

	payload, err := cmd.Request(entry.MatchID, entry.PlayerID).Encode()
	if err != nil {
		return err
	}
	queue.Push(entry.PlayerID, payload)
	b.logger.Debug("queued action",
		zap.String("match_id", entry.MatchID),
		zap.Uint64("player_id", entry.PlayerID),
		zap.Stringer("action", cmd.Kind),
	)
	return nil
}
