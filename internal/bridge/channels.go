package bridge

import (
	"context"
	"sync"

	"burstbot/internal/store"

	"go.uber.org/zap"
)

// ChannelEntry ties a private channel to the match and player it serves.
type ChannelEntry struct {
	ChannelID string
	Name      string
	MatchID   string
	PlayerID  uint64
}

// ChannelArchive persists the index so channels outlive a crash.
type ChannelArchive interface {
	SaveChannel(ctx context.Context, rec store.ChannelRecord) error
	DeleteChannel(ctx context.Context, channelID string) error
	ListChannels(ctx context.Context) ([]store.ChannelRecord, error)
}

// ChannelIndex answers "does this channel belong to a live match". Writes go
// through to the archive when one is set; archive failures are logged only.
type ChannelIndex struct {
	mu      sync.RWMutex
	entries map[string]ChannelEntry
	archive ChannelArchive
	logger  *zap.Logger
}

func NewChannelIndex(archive ChannelArchive, logger *zap.Logger) *ChannelIndex {
	return &ChannelIndex{
		entries: make(map[string]ChannelEntry),
		archive: archive,
		logger:  logger,
	}
}

func (ci *ChannelIndex) Add(ctx context.Context, entry ChannelEntry) {
	ci.mu.Lock()
	ci.entries[entry.ChannelID] = entry
	ci.mu.Unlock()

	if ci.archive == nil {
		return
	}
	err := ci.archive.SaveChannel(ctx, store.ChannelRecord{
		ChannelID: entry.ChannelID,
		MatchID:   entry.MatchID,
		PlayerID:  entry.PlayerID,
	})
	if err != nil {
		ci.logger.Error("failed to persist channel", zap.String("channel_id", entry.ChannelID), zap.Error(err))
	}
}

// Remove forgets a channel. Removing an unknown channel does nothing.
func (ci *ChannelIndex) Remove(ctx context.Context, channelID string) {
	ci.mu.Lock()
	delete(ci.entries, channelID)
	ci.mu.Unlock()

	if ci.archive == nil {
		return
	}
	if err := ci.archive.DeleteChannel(ctx, channelID); err != nil {
		ci.logger.Error("failed to forget channel", zap.String("channel_id", channelID), zap.Error(err))
	}
}

func (ci *ChannelIndex) Lookup(channelID string) (ChannelEntry, bool) {
	ci.mu.RLock()
	defer ci.mu.RUnlock()
	e, ok := ci.entries[channelID]
	return e, ok
}

func (ci *ChannelIndex) Len() int {
	ci.mu.RLock()
	defer ci.mu.RUnlock()
	return len(ci.entries)
}

// Orphans lists archived channels this process does not know about, which
// are left over from an earlier run.
func (ci *ChannelIndex) Orphans(ctx context.Context) ([]store.ChannelRecord, error) {
	if ci.archive == nil {
		return nil, nil
	}
	recs, err := ci.archive.ListChannels(ctx)
	if err != nil {
		return nil, err
	}

	ci.mu.RLock()
	defer ci.mu.RUnlock()
	var out []store.ChannelRecord
	for _, rec := range recs {
		if _, live := ci.entries[rec.ChannelID]; !live {
			out = append(out, rec)
		}
	}
	return out, nil
}
