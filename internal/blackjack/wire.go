package blackjack

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"burstbot/internal/cards"
)

// SystemPlayerID marks outbound entries produced by the bridge itself.
const SystemPlayerID uint64 = 0

// ShutdownPayload is the sentinel that closes a session without telling
// the backend anything.
var ShutdownPayload = []byte("Shutdown")

const ClientTypeDiscord = "Discord"

var ErrMalformedPayload = errors.New("MALFORMED_PAYLOAD: payload does not match the expected shape")

// RawPlayerState is a player entry of a backend snapshot.
type RawPlayerState struct {
	GameID     string       `json:"game_id"`
	PlayerID   uint64       `json:"player_id"`
	PlayerName string       `json:"player_name"`
	ChannelID  uint64       `json:"channel_id"`
	OwnTips    int          `json:"own_tips"`
	BetTips    int          `json:"bet_tips"`
	Order      int          `json:"order"`
	Cards      []cards.Card `json:"cards"`
	AvatarURL  string       `json:"avatar_url"`
}

// RawGameState is a full snapshot broadcast by the backend.
type RawGameState struct {
	GameID              string                    `json:"game_id"`
	LastActiveTime      string                    `json:"last_active_time"`
	Players             map[uint64]RawPlayerState `json:"players"`
	Progress            Progress                  `json:"progress"`
	CurrentPlayerOrder  int                       `json:"current_player_order"`
	HighestBet          int                       `json:"highest_bet"`
	CurrentTurn         int                       `json:"current_turn"`
	PreviousPlayerID    uint64                    `json:"previous_player_id"`
	PreviousRequestType string                    `json:"previous_request_type"`
}

// EndingPlayer is a player's final hand in the ending result.
type EndingPlayer struct {
	Cards      []cards.Card `json:"cards"`
	PlayerName string       `json:"player_name"`
}

// EndingResult is the one-off broadcast that concludes a match.
type EndingResult struct {
	Progress     Progress                `json:"progress"`
	Winner       *RawPlayerState         `json:"winner"`
	Players      map[uint64]EndingPlayer `json:"players"`
	TotalRewards int                     `json:"total_rewards"`
}

// Request is an action sent to the backend.
type Request struct {
	RequestType ActionKind `json:"request_type"`
	GameID      string     `json:"game_id"`
	PlayerID    uint64     `json:"player_id"`
	Bets        int        `json:"bets,omitempty"`
	ChannelID   uint64     `json:"channel_id,omitempty"`
	PlayerName  string     `json:"player_name,omitempty"`
	OwnTips     int        `json:"own_tips,omitempty"`
	AvatarURL   string     `json:"avatar_url,omitempty"`
	ClientType  string     `json:"client_type,omitempty"`
}

func (r Request) Encode() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", r.RequestType, err)
	}
	return data, nil
}

type JoinStatusType string

const (
	JoinWaiting JoinStatusType = "Waiting"
	JoinMatched JoinStatusType = "Matched"
)

// JoinStatus is exchanged on the join handshake connection.
type JoinStatus struct {
	StatusType JoinStatusType `json:"status_type"`
	PlayerIDs  []uint64       `json:"player_ids"`
	GameID     string         `json:"game_id,omitempty"`
}

// DecodeSnapshot parses a full state snapshot. Unknown fields are rejected,
// which is what tells a snapshot apart from an ending result.
func DecodeSnapshot(data []byte) (*RawGameState, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var raw RawGameState
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if raw.GameID == "" || raw.Progress == NotAvailable {
		return nil, fmt.Errorf("%w: snapshot without game id or progress", ErrMalformedPayload)
	}
	return &raw, nil
}

// DecodeEnding parses an ending result.
func DecodeEnding(data []byte) (*EndingResult, error) {
	var raw EndingResult
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if raw.Progress != Ending || raw.Winner == nil {
		return nil, fmt.Errorf("%w: ending result without winner", ErrMalformedPayload)
	}
	return &raw, nil
}

func DecodeJoinStatus(data []byte) (*JoinStatus, error) {
	var raw JoinStatus
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return &raw, nil
}

// PeekAction reads only the request type of an outbound payload.
func PeekAction(payload []byte) (ActionKind, bool) {
	var head struct {
		RequestType string `json:"request_type"`
	}
	if err := json.Unmarshal(payload, &head); err != nil {
		return ActionUnknown, false
	}
	return ParseActionKind(head.RequestType)
}
