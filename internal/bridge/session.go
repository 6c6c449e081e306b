package bridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"burstbot/internal/blackjack"
	"burstbot/internal/chat"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// session is one run of a match's loop. Only the loop goroutine touches its
// fields, except closedByBackend which the reader sets.
type session struct {
	bridge *Bridge
	state  *blackjack.MatchState
	queue  *blackjack.Outbound
	conn   Conn
	logger *zap.Logger

	// ctx lives as long as the backend connection. Chat calls do not use
	// it so teardown can still reach the platform.
	ctx    context.Context
	cancel context.CancelFunc

	closedByBackend atomic.Bool
	// live holds the last message per channel whose controls still work.
	live map[string]chat.MessageRef
}

// Run owns the match's backend connection until the match closes, then
// tears the match down. At most one Run per match gets past startup; every
// other call returns immediately.
func (b *Bridge) Run(matchID string) {
	if matchID == "" {
		return
	}

	state := b.registry.GetOrCreate(matchID)
	state.Lock()
	if state.Progress() != blackjack.NotAvailable {
		state.Unlock()
		return
	}
	if err := state.Advance(blackjack.Starting); err != nil {
		state.Unlock()
		b.logger.Warn("cannot start session", zap.String("match_id", matchID), zap.Error(err))
		return
	}
	queue := state.EnsureOutbound()
	state.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		bridge: b,
		state:  state,
		queue:  queue,
		logger: b.logger.With(
			zap.String("match_id", matchID),
			zap.String("session_id", uuid.NewString()),
		),
		ctx:    ctx,
		cancel: cancel,
		live:   make(map[string]chat.MessageRef),
	}
	s.run()
}

func (s *session) run() {
	defer s.cancel()
	s.logger.Info("session starting")

	dialCtx, cancel := context.WithTimeout(s.ctx, s.bridge.opts.OpenTimeout)
	conn, err := s.bridge.dialer.Dial(dialCtx, s.bridge.opts.URL)
	cancel()
	if err != nil {
		s.logger.Error("failed to open backend connection", zap.Error(err))
		s.close()
		s.teardown()
		return
	}
	s.conn = conn

	incoming := make(chan []byte)
	go s.readLoop(incoming)

	timer := time.NewTimer(s.bridge.opts.Timeout)
	defer timer.Stop()

	for !s.closed() {
		select {
		case <-s.queue.Ready():
			if item, ok := s.queue.TryPop(); ok {
				s.forward(item)
			}
		case data, ok := <-incoming:
			if !ok {
				incoming = nil
				if s.closedByBackend.Load() {
					s.logger.Info("backend closed the connection")
					s.close()
				}
				break
			}
			s.handleBroadcast(data)
		case <-timer.C:
			s.logger.Info("session timed out", zap.Duration("timeout", s.bridge.opts.Timeout))
			s.close()
		}
		timer.Reset(s.bridge.opts.Timeout)
	}

	s.teardown()
}

// readLoop turns connection reads into channel sends so the loop can
// select on them. It stops on the first read error.
func (s *session) readLoop(out chan<- []byte) {
	defer close(out)
	for {
		data, err := s.conn.Read(s.ctx)
		if err != nil {
			if errors.Is(err, ErrClosedByBackend) {
				s.closedByBackend.Store(true)
			} else if s.ctx.Err() == nil {
				s.logger.Warn("backend read failed", zap.Error(err))
			}
			return
		}
		select {
		case out <- data:
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *session) closed() bool {
	s.state.Lock()
	defer s.state.Unlock()
	return s.state.Progress() == blackjack.Closed
}

func (s *session) close() {
	s.state.Lock()
	s.state.Close()
	s.state.Unlock()
}

// forward sends one queued action to the backend. The shutdown sentinel and
// close requests end the session.
func (s *session) forward(item blackjack.OutboundItem) {
	if item.PlayerID == blackjack.SystemPlayerID && bytes.Equal(item.Payload, blackjack.ShutdownPayload) {
		s.logger.Info("shutdown requested")
		s.close()
		return
	}

	kind, ok := blackjack.PeekAction(item.Payload)
	if !ok {
		s.logger.Warn("dropping unrecognized outbound payload", zap.Uint64("player_id", item.PlayerID))
		return
	}

	if err := s.conn.Write(s.ctx, item.Payload); err != nil {
		s.logger.Error("failed to forward action", zap.Stringer("action", kind), zap.Error(err))
	} else {
		s.logger.Debug("forwarded action", zap.Stringer("action", kind), zap.Uint64("player_id", item.PlayerID))
	}

	if kind == blackjack.ActionClose {
		s.logger.Info("close request forwarded")
		s.close()
	}
}

// handleBroadcast processes one backend message. Anything that is not a
// usable snapshot gets a chance as an ending result.
func (s *session) handleBroadcast(data []byte) {
	if err := s.applySnapshot(data); err != nil {
		s.logger.Debug("broadcast is not a snapshot", zap.Error(err))
		s.handleEnding(data)
	}
}

func (s *session) applySnapshot(data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("snapshot handling panicked: %v", r)
		}
	}()

	snap, err := blackjack.DecodeSnapshot(data)
	if err != nil {
		return err
	}
	if snap.GameID != s.state.MatchID {
		return fmt.Errorf("%w: snapshot for match %s", blackjack.ErrMalformedPayload, snap.GameID)
	}

	s.state.Lock()
	old := s.state.Progress()
	previousHighestBet := s.state.HighestBet

	if snap.Progress == old {
		s.state.Apply(snap, s.bridge.resolveChannel)
		view := s.state.View()
		s.state.Unlock()

		s.renderSameStage(view, previousHighestBet)
		return nil
	}

	if snap.Progress < old {
		s.state.Unlock()
		s.logger.Warn("ignoring snapshot with earlier progress",
			zap.Stringer("local", old), zap.Stringer("incoming", snap.Progress))
		return nil
	}

	// An ending snapshot only reports the last action; the ending result
	// that follows is what moves the match to Ending.
	if snap.Progress == blackjack.Ending {
		merged := s.state.View()
		s.state.Unlock()
		s.renderPreviousAction(old, previewPlayers(merged, snap), snap, previousHighestBet)
		return nil
	}

	s.state.Apply(snap, s.bridge.resolveChannel)
	if err := s.state.Advance(snap.Progress); err != nil {
		s.state.Unlock()
		return err
	}
	view := s.state.View()
	s.state.Unlock()

	s.logger.Info("progress changed", zap.Stringer("from", old), zap.Stringer("to", snap.Progress))
	s.renderPreviousAction(old, view, snap, previousHighestBet)

	if view.Progress.HasTurns() {
		s.broadcastTurn(view, view.Progress == blackjack.Gambling)
	}
	return nil
}

// renderSameStage reports the action the backend just applied and, in
// stages with turns, whose turn it is now.
func (s *session) renderSameStage(view blackjack.MatchView, previousHighestBet int) {
	kind, known := blackjack.ParseActionKind(view.PreviousAction)
	actor, seated := view.Player(view.PreviousPlayerID)

	switch view.Progress {
	case blackjack.Starting:
		if known && kind == blackjack.ActionDeal && seated && actor.Channel != nil {
			s.send(actor.Channel, s.bridge.notifier.InitialNotice(actor))
		}
	case blackjack.Progressing, blackjack.Gambling:
		if seated && reportable(view.PreviousAction) {
			s.broadcastAction(view.Progress, kind, actor, view, previousHighestBet)
		}
		s.broadcastTurn(view, false)
	}
}

// broadcastTurn sends every seated player the turn message, preceded by the
// betting intro when intro is set. Turn messages are skipped when no seat
// holds the current turn.
func (s *session) broadcastTurn(view blackjack.MatchView, intro bool) {
	if _, ok := view.PlayerAt(view.CurrentPlayerOrder); !ok {
		s.logger.Warn("no seat holds the current turn, skipping turn messages",
			zap.Int("current_player_order", view.CurrentPlayerOrder))
	}
	for _, p := range view.Seated() {
		if p.Channel == nil {
			continue
		}
		if intro {
			s.send(p.Channel, s.bridge.notifier.GamblingIntro())
		}
		if msg, ok := s.bridge.notifier.TurnNotice(view, p); ok {
			s.sendTurn(p.Channel, msg)
		}
	}
}

// renderPreviousAction reports the action that ended the old stage. The
// old stage picks the wording when it had turns.
func (s *session) renderPreviousAction(old blackjack.Progress, view blackjack.MatchView, snap *blackjack.RawGameState, previousHighestBet int) {
	if !reportable(snap.PreviousRequestType) {
		return
	}
	actor, ok := view.Player(snap.PreviousPlayerID)
	if !ok {
		return
	}
	stage := old
	if !stage.HasTurns() {
		stage = snap.Progress
	}
	kind, _ := blackjack.ParseActionKind(snap.PreviousRequestType)
	view.HighestBet = snap.HighestBet
	s.broadcastAction(stage, kind, actor, view, previousHighestBet)
}

func (s *session) broadcastAction(stage blackjack.Progress, kind blackjack.ActionKind, actor blackjack.PlayerState, view blackjack.MatchView, previousHighestBet int) {
	for _, viewer := range view.Seated() {
		if viewer.Channel == nil {
			continue
		}
		msg, ok := s.bridge.notifier.ActionNotice(stage, kind, actor, viewer, view.HighestBet, previousHighestBet)
		if !ok {
			return
		}
		s.send(viewer.Channel, msg)
	}
}

// reportable reports whether a previous request type is a player action
// worth announcing. Unknown names are announced with the fallback text.
func reportable(requestType string) bool {
	if requestType == "" {
		return false
	}
	kind, _ := blackjack.ParseActionKind(requestType)
	return kind != blackjack.ActionDeal && kind != blackjack.ActionClose
}

// previewPlayers overlays the snapshot's players on a view without touching
// the match, so the last action of an ending snapshot can be shown.
func previewPlayers(view blackjack.MatchView, snap *blackjack.RawGameState) blackjack.MatchView {
	for i, p := range view.Players {
		raw, ok := snap.Players[p.PlayerID]
		if !ok {
			continue
		}
		p.Cards = raw.Cards
		p.BetTips = raw.BetTips
		p.OwnTips = raw.OwnTips
		view.Players[i] = p
	}
	return view
}

// handleEnding takes the ending-result path for a message that was not a
// snapshot.
func (s *session) handleEnding(data []byte) {
	s.state.Lock()
	if s.state.Progress() == blackjack.Ending {
		s.state.Unlock()
		return
	}
	result, err := blackjack.DecodeEnding(data)
	if err != nil {
		s.state.Unlock()
		s.logger.Warn("ignoring unrecognized broadcast", zap.Error(err), zap.ByteString("payload", truncate(data)))
		return
	}
	if err := s.state.Advance(blackjack.Ending); err != nil {
		s.state.Unlock()
		s.logger.Warn("ignoring ending result", zap.Error(err))
		return
	}
	view := s.state.View()
	s.state.Unlock()

	winnerName, winnerAvatar := result.Winner.PlayerName, result.Winner.AvatarURL
	if w, ok := view.Player(result.Winner.PlayerID); ok {
		winnerName, winnerAvatar = w.PlayerName, w.AvatarURL
	}
	s.logger.Info("match ended", zap.String("winner", winnerName), zap.Int("total_rewards", result.TotalRewards))

	summary := s.bridge.notifier.WinSummary(result, winnerName, winnerAvatar)
	for _, p := range view.Seated() {
		if p.Channel != nil {
			s.send(p.Channel, summary)
		}
	}

	if s.bridge.results != nil {
		if err := s.bridge.results.SaveResult(s.ctx, view.MatchID, result); err != nil {
			s.logger.Error("failed to archive result", zap.Error(err))
		}
	}

	payload, err := blackjack.Request{
		RequestType: blackjack.ActionClose,
		GameID:      view.MatchID,
		PlayerID:    blackjack.SystemPlayerID,
	}.Encode()
	if err != nil {
		s.logger.Error("failed to encode close request", zap.Error(err))
		s.close()
		return
	}
	s.queue.Push(blackjack.SystemPlayerID, payload)
}

func (s *session) send(ch *chat.Channel, msg chat.Message) {
	ref, err := s.bridge.platform.Send(context.Background(), ch.ID, msg)
	if err != nil {
		s.logger.Error("failed to send message", zap.String("channel_id", ch.ID), zap.Error(err))
		return
	}
	if len(msg.Controls) > 0 {
		s.live[ch.ID] = ref
	}
}

// sendTurn retires the controls of the channel's previous turn message
// before sending the new one.
func (s *session) sendTurn(ch *chat.Channel, msg chat.Message) {
	s.retire(ch.ID)
	s.send(ch, msg)
}

func (s *session) retire(channelID string) {
	ref, ok := s.live[channelID]
	if !ok {
		return
	}
	delete(s.live, channelID)
	if err := s.bridge.platform.DisableControls(context.Background(), ref); err != nil {
		s.logger.Warn("failed to disable controls", zap.String("channel_id", channelID), zap.Error(err))
	}
}

// teardown releases everything the session holds. Each step tolerates
// having run before.
func (s *session) teardown() {
	s.cancel()
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			s.logger.Debug("closing backend connection", zap.Error(err))
		}
	}

	if grace := s.bridge.opts.TeardownGrace; grace > 0 {
		s.logger.Info("waiting before teardown", zap.Duration("grace", grace))
		time.Sleep(grace)
	}

	for channelID := range s.live {
		s.retire(channelID)
	}
	s.bridge.teardown(s.state, s.logger)
	s.logger.Info("session closed")
}

// teardown deletes the match's private channels and forgets the match.
// A second call finds no channels left and deletes nothing.
func (b *Bridge) teardown(state *blackjack.MatchState, logger *zap.Logger) {
	state.Lock()
	channels := state.DetachChannels()
	state.Unlock()

	ctx := context.Background()
	for i, ch := range channels {
		if i > 0 && b.opts.DeleteInterval > 0 {
			time.Sleep(b.opts.DeleteInterval)
		}
		if err := b.platform.DeleteChannel(ctx, ch.ID); err != nil {
			logger.Error("failed to delete channel", zap.String("channel_id", ch.ID), zap.Error(err))
		}
		b.channels.Remove(ctx, ch.ID)
		if b.throttle != nil {
			b.throttle.Forget(ch.ID)
		}
	}

	b.registry.Remove(state.MatchID)
}

func truncate(data []byte) []byte {
	const max = 256
	if len(data) <= max {
		return data
	}
	return data[:max]
}
