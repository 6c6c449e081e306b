package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"burstbot/internal/blackjack"
	"burstbot/internal/chat"

	"go.uber.org/zap"
)

// StartingBet is what every player has on the table when dealt in.
const StartingBet = 1

var ErrInvalidPlayer = errors.New("INVALID_PLAYER: player id must be numeric")

// TipSource reports how many tips a player owns.
type TipSource interface {
	Tips(ctx context.Context, playerID uint64) (int, error)
}

// HTTPTips reads tips from the backend's HTTP API.
type HTTPTips struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPTips(baseURL string) *HTTPTips {
	return &HTTPTips{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type rawTip struct {
	Amount int `json:"amount"`
}

func (h *HTTPTips) Tips(ctx context.Context, playerID uint64) (int, error) {
	url := fmt.Sprintf("%s/tip/%d", h.BaseURL, playerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("build tip request: %w", err)
	}
	resp, err := h.Client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("get tips for %d: %w", playerID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("get tips for %d: unexpected status %d", playerID, resp.StatusCode)
	}
	var tip rawTip
	if err := json.NewDecoder(resp.Body).Decode(&tip); err != nil {
		return 0, fmt.Errorf("decode tips for %d: %w", playerID, err)
	}
	return tip.Amount, nil
}

// WaitForMatch announces the player as waiting and blocks until the backend
// reports the match they were placed in.
func (b *Bridge) WaitForMatch(ctx context.Context, playerID uint64) (string, error) {
	dialCtx, cancel := context.WithTimeout(ctx, b.opts.OpenTimeout)
	conn, err := b.dialer.Dial(dialCtx, b.opts.URL)
	cancel()
	if err != nil {
		return "", fmt.Errorf("open join handshake: %w", err)
	}
	defer conn.Close()

	waiting, err := json.Marshal(blackjack.JoinStatus{
		StatusType: blackjack.JoinWaiting,
		PlayerIDs:  []uint64{playerID},
	})
	if err != nil {
		return "", err
	}
	if err := conn.Write(ctx, waiting); err != nil {
		return "", fmt.Errorf("send join status: %w", err)
	}

	for {
		data, err := conn.Read(ctx)
		if err != nil {
			return "", fmt.Errorf("wait for match: %w", err)
		}
		status, err := blackjack.DecodeJoinStatus(data)
		if err != nil {
			b.logger.Debug("ignoring join handshake message", zap.Error(err))
			continue
		}
		if status.StatusType == blackjack.JoinMatched && status.GameID != "" {
			return status.GameID, nil
		}
	}
}

// Join places a chat user in a match: it waits for the backend to match
// them, opens their private channel, seats them and starts the session.
func (b *Bridge) Join(ctx context.Context, guildID string, user chat.User) (string, error) {
	playerID, err := strconv.ParseUint(user.ID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidPlayer, user.ID)
	}

	matchID, err := b.WaitForMatch(ctx, playerID)
	if err != nil {
		return "", err
	}
	logger := b.logger.With(zap.String("match_id", matchID), zap.Uint64("player_id", playerID))
	logger.Info("player matched")

	channel, err := b.platform.CreatePrivateChannel(ctx, guildID, user)
	if err != nil {
		return "", fmt.Errorf("create private channel: %w", err)
	}

	tips := 0
	if b.tips != nil {
		if tips, err = b.tips.Tips(ctx, playerID); err != nil {
			logger.Warn("failed to look up tips", zap.Error(err))
			tips = 0
		}
	}

	err = b.AddPlayer(ctx, matchID, blackjack.PlayerState{
		PlayerID:   playerID,
		PlayerName: user.DisplayName,
		AvatarURL:  user.AvatarURL,
		Channel:    channel,
		OwnTips:    tips,
		BetTips:    StartingBet,
	})
	if err != nil {
		return "", err
	}

	if _, err := b.platform.Send(ctx, channel.ID, b.notifier.MatchFound(matchID)); err != nil {
		logger.Warn("failed to announce match", zap.Error(err))
	}
	if err := b.Start(matchID); err != nil {
		return "", err
	}
	return matchID, nil
}

// SweepOrphans deletes private channels recorded by an earlier run that no
// live match owns, pausing between deletions.
func (b *Bridge) SweepOrphans(ctx context.Context) (int, error) {
	orphans, err := b.channels.Orphans(ctx)
	if err != nil {
		return 0, fmt.Errorf("list orphaned channels: %w", err)
	}

	for i, rec := range orphans {
		if i > 0 && b.opts.DeleteInterval > 0 {
			select {
			case <-time.After(b.opts.DeleteInterval):
			case <-ctx.Done():
				return i, ctx.Err()
			}
		}
		if err := b.platform.DeleteChannel(ctx, rec.ChannelID); err != nil {
			b.logger.Warn("failed to delete orphaned channel", zap.String("channel_id", rec.ChannelID), zap.Error(err))
		}
		b.channels.Remove(ctx, rec.ChannelID)
	}
	return len(orphans), nil
}
