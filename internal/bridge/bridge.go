// Package bridge runs one backend session per match and relays between the
// backend and the players' private chat channels.
package bridge

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"burstbot/internal/blackjack"
	"burstbot/internal/chat"

	"go.uber.org/zap"
)

type Options struct {
	// URL is the backend socket, shared by join handshakes and sessions.
	URL string
	// Timeout closes a session after this long without any activity.
	Timeout time.Duration
	// OpenTimeout bounds opening the backend connection.
	OpenTimeout time.Duration
	// TeardownGrace lets in-flight chat sends finish before channels go.
	TeardownGrace time.Duration
	// DeleteInterval spaces out channel deletions.
	DeleteInterval time.Duration
}

// ResultArchive stores finished matches.
type ResultArchive interface {
	SaveResult(ctx context.Context, matchID string, result *blackjack.EndingResult) error
}

// Deps are the collaborators a Bridge drives. Results, Tips and Throttle
// are optional.
type Deps struct {
	Dialer   Dialer
	Platform chat.Platform
	Notifier *blackjack.Notifier
	Channels *ChannelIndex
	Results  ResultArchive
	Tips     TipSource
	Throttle *Throttle
	Logger   *zap.Logger
}

type Bridge struct {
	opts     Options
	dialer   Dialer
	platform chat.Platform
	notifier *blackjack.Notifier
	registry *Registry
	channels *ChannelIndex
	results  ResultArchive
	tips     TipSource
	throttle *Throttle
	logger   *zap.Logger

	mu           sync.Mutex
	shuttingDown bool
	wg           sync.WaitGroup
}

// ErrShuttingDown is returned by Start once Shutdown has begun.
var ErrShuttingDown = errors.New("SHUTTING_DOWN: bot is shutting down")

const (
	defaultTimeout     = 60 * time.Second
	defaultOpenTimeout = 10 * time.Second
)

func New(opts Options, deps Deps) *Bridge {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = defaultOpenTimeout
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	channels := deps.Channels
	if channels == nil {
		channels = NewChannelIndex(nil, logger)
	}
	return &Bridge{
		opts:     opts,
		dialer:   deps.Dialer,
		platform: deps.Platform,
		notifier: deps.Notifier,
		registry: NewRegistry(),
		channels: channels,
		results:  deps.Results,
		tips:     deps.Tips,
		throttle: deps.Throttle,
		logger:   logger,
	}
}

func (b *Bridge) Registry() *Registry { return b.registry }

func (b *Bridge) Channels() *ChannelIndex { return b.channels }

// Start runs the match's session in the background. Once Shutdown has begun
// it returns ErrShuttingDown, tearing the match down if no session owns it.
func (b *Bridge) Start(matchID string) error {
	b.mu.Lock()
	if b.shuttingDown {
		b.mu.Unlock()
		// a running session tears its own match down
		if state, ok := b.registry.Get(matchID); ok {
			state.Lock()
			idle := state.Progress() == blackjack.NotAvailable
			state.Unlock()
			if idle {
				b.teardown(state, b.logger.With(zap.String("match_id", matchID)))
			}
		}
		return ErrShuttingDown
	}
	b.wg.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.wg.Done()
		b.Run(matchID)
	}()
	return nil
}

// AddPlayer seats a player in a match and asks the backend to deal them in.
// Adding a player who is already seated does nothing.
func (b *Bridge) AddPlayer(ctx context.Context, matchID string, player blackjack.PlayerState) error {
	state := b.registry.GetOrCreate(matchID)

	player.MatchID = matchID
	state.Lock()
	seated := state.Players.Add(&player)
	queue := state.EnsureOutbound()
	state.Unlock()
	if seated != &player {
		return nil
	}
	channel := player.Channel

	req := blackjack.Request{
		RequestType: blackjack.ActionDeal,
		GameID:      matchID,
		PlayerID:    player.PlayerID,
		PlayerName:  player.PlayerName,
		OwnTips:     player.OwnTips,
		AvatarURL:   player.AvatarURL,
		ClientType:  blackjack.ClientTypeDiscord,
	}
	if channel != nil {
		b.channels.Add(ctx, ChannelEntry{
			ChannelID: channel.ID,
			Name:      channel.Name,
			MatchID:   matchID,
			PlayerID:  player.PlayerID,
		})
		req.ChannelID, _ = strconv.ParseUint(channel.ID, 10, 64)
	}

	payload, err := req.Encode()
	if err != nil {
		return err
	}
	queue.Push(player.PlayerID, payload)
	return nil
}

// Shutdown asks every live session to close and waits for their teardown,
// or for ctx to end.
func (b *Bridge) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	b.shuttingDown = true
	b.mu.Unlock()

	for _, state := range b.registry.All() {
		state.Lock()
		queue := state.EnsureOutbound()
		state.Unlock()
		queue.Push(blackjack.SystemPlayerID, blackjack.ShutdownPayload)
	}

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// resolveChannel finds a channel this process created from the numeric id
// the backend echoes back.
func (b *Bridge) resolveChannel(channelID uint64) *chat.Channel {
	id := strconv.FormatUint(channelID, 10)
	entry, ok := b.channels.Lookup(id)
	if !ok {
		return nil
	}
	return &chat.Channel{ID: entry.ChannelID, Name: entry.Name}
}
