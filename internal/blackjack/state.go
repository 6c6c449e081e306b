package blackjack

import (
	"slices"
	"sync"
	"time"

	"burstbot/internal/cards"
	"burstbot/internal/chat"

	"github.com/emirpasic/gods/maps/linkedhashmap"
)

// PlayerState is one seat of a match. Channel is owned by the chat platform
// and only referenced here; it is never overwritten once set.
type PlayerState struct {
	MatchID    string
	PlayerID   uint64
	PlayerName string
	AvatarURL  string
	Channel    *chat.Channel
	OwnTips    int
	BetTips    int
	Order      int
	Cards      []cards.Card
}

func (p *PlayerState) clone() PlayerState {
	out := *p
	out.Cards = slices.Clone(p.Cards)
	return out
}

func (p PlayerState) Points() int {
	return cards.RealizedValue(p.Cards, cards.Ceiling)
}

// Players keeps seats in the order they were first seen so every fan-out
// reaches players in the same order.
type Players struct {
	m *linkedhashmap.Map
}

func NewPlayers() *Players {
	return &Players{m: linkedhashmap.New()}
}

func (p *Players) Get(playerID uint64) (*PlayerState, bool) {
	v, ok := p.m.Get(playerID)
	if !ok {
		return nil, false
	}
	return v.(*PlayerState), true
}

// Add inserts the player unless the id is already seated, and returns the
// seated entry.
func (p *Players) Add(player *PlayerState) *PlayerState {
	if existing, ok := p.Get(player.PlayerID); ok {
		return existing
	}
	p.m.Put(player.PlayerID, player)
	return player
}

func (p *Players) Len() int {
	return p.m.Size()
}

func (p *Players) Each(fn func(*PlayerState)) {
	p.m.Each(func(_ interface{}, v interface{}) {
		fn(v.(*PlayerState))
	})
}

// MatchState is the shared record of one match. Every multi-field read or
// write happens between Lock and Unlock; the lock is not reentrant.
type MatchState struct {
	mu sync.Mutex

	MatchID            string
	Players            *Players
	CurrentPlayerOrder int
	HighestBet         int
	CurrentTurn        int
	PreviousPlayerID   uint64
	PreviousAction     string
	LastActiveTime     time.Time

	progress *ProgressMachine
	outbound *Outbound
}

func NewMatchState(matchID string) *MatchState {
	return &MatchState{
		MatchID:        matchID,
		Players:        NewPlayers(),
		LastActiveTime: time.Now(),
		progress:       NewProgressMachine(),
	}
}

func (s *MatchState) Lock()   { s.mu.Lock() }
func (s *MatchState) Unlock() { s.mu.Unlock() }

func (s *MatchState) Progress() Progress {
	return s.progress.Current()
}

func (s *MatchState) Advance(to Progress) error {
	return s.progress.Advance(to)
}

// Close moves the match to Closed, which every stage may do.
func (s *MatchState) Close() {
	_ = s.progress.Advance(Closed)
}

// EnsureOutbound returns the match's queue, creating it on first use.
func (s *MatchState) EnsureOutbound() *Outbound {
	if s.outbound == nil {
		s.outbound = NewOutbound()
	}
	return s.outbound
}

// DetachChannels clears every player's channel reference and returns the
// channels that were set. A second call returns nothing.
func (s *MatchState) DetachChannels() []*chat.Channel {
	var out []*chat.Channel
	s.Players.Each(func(ps *PlayerState) {
		if ps.Channel != nil {
			out = append(out, ps.Channel)
			ps.Channel = nil
		}
	})
	return out
}

// View copies everything needed to render notifications so rendering can
// happen without the lock.
func (s *MatchState) View() MatchView {
	view := MatchView{
		MatchID:            s.MatchID,
		Progress:           s.Progress(),
		CurrentPlayerOrder: s.CurrentPlayerOrder,
		HighestBet:         s.HighestBet,
		CurrentTurn:        s.CurrentTurn,
		PreviousPlayerID:   s.PreviousPlayerID,
		PreviousAction:     s.PreviousAction,
		Players:            make([]PlayerState, 0, s.Players.Len()),
	}
	s.Players.Each(func(ps *PlayerState) {
		view.Players = append(view.Players, ps.clone())
	})
	return view
}

// MatchView is an immutable copy of a MatchState.
type MatchView struct {
	MatchID            string
	Progress           Progress
	CurrentPlayerOrder int
	HighestBet         int
	CurrentTurn        int
	PreviousPlayerID   uint64
	PreviousAction     string
	Players            []PlayerState
}

func (v MatchView) Player(playerID uint64) (PlayerState, bool) {
	for _, p := range v.Players {
		if p.PlayerID == playerID {
			return p, true
		}
	}
	return PlayerState{}, false
}

func (v MatchView) PlayerAt(order int) (PlayerState, bool) {
	for _, p := range v.Players {
		if p.Order == order {
			return p, true
		}
	}
	return PlayerState{}, false
}

// Seated returns the players sorted by seat.
func (v MatchView) Seated() []PlayerState {
	out := slices.Clone(v.Players)
	slices.SortStableFunc(out, func(a, b PlayerState) int {
		return a.Order - b.Order
	})
	return out
}
