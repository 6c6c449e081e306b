package blackjack

import (
	"maps"
	"slices"
	"time"

	"burstbot/internal/chat"
)

// ChannelResolver maps a backend channel id to a channel this bot knows.
// It must not block; it is called with the match lock held.
type ChannelResolver func(channelID uint64) *chat.Channel

// Apply merges a snapshot into the match. Scalars are copied verbatim,
// known players are updated in place, unknown players are added, and
// nobody is ever removed. Progress is not touched. The caller holds the lock.
func (s *MatchState) Apply(snap *RawGameState, resolve ChannelResolver) {
	if snap == nil {
		return
	}

	s.LastActiveTime = parseActiveTime(snap.LastActiveTime)
	s.CurrentPlayerOrder = snap.CurrentPlayerOrder
	s.CurrentTurn = snap.CurrentTurn
	s.HighestBet = snap.HighestBet
	s.PreviousPlayerID = snap.PreviousPlayerID
	s.PreviousAction = snap.PreviousRequestType

	for _, playerID := range slices.Sorted(maps.Keys(snap.Players)) {
		raw := snap.Players[playerID]
		player, ok := s.Players.Get(playerID)
		if !ok {
			player = s.Players.Add(&PlayerState{
				MatchID:  raw.GameID,
				PlayerID: playerID,
			})
		}

		player.PlayerName = raw.PlayerName
		player.AvatarURL = raw.AvatarURL
		player.OwnTips = raw.OwnTips
		player.BetTips = raw.BetTips
		player.Order = raw.Order
		player.Cards = raw.Cards

		if raw.ChannelID == 0 || player.Channel != nil || resolve == nil {
			continue
		}
		player.Channel = resolve(raw.ChannelID)
	}
}

func parseActiveTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", time.DateTime} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Now()
}
