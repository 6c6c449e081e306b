package bridge

import (
	"context"
	"sync"
	"testing"
	"time"

	"burstbot/internal/blackjack"
	"burstbot/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRegistryGetOrCreateIsAtomic(t *testing.T) {
	r := NewRegistry()

	const n = 100
	got := make([]*blackjack.MatchState, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got[i] = r.GetOrCreate("m1")
		}()
	}
	wg.Wait()

	for _, s := range got {
		assert.Same(t, got[0], s)
	}
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, blackjack.NotAvailable, got[0].Progress())
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry()
	first := r.GetOrCreate("m1")
	r.GetOrCreate("m2")

	r.Remove("m1")
	r.Remove("m1")
	r.Remove("never")

	_, ok := r.Get("m1")
	assert.False(t, ok)
	assert.Len(t, r.All(), 1)
	assert.NotSame(t, first, r.GetOrCreate("m1"))
}

func TestThrottleSlidingWindow(t *testing.T) {
	now := time.Unix(1000, 0)
	th := NewThrottle(2, time.Second)
	th.now = func() time.Time { return now }

	assert.True(t, th.Allow("c1"))
	assert.True(t, th.Allow("c1"))
	assert.False(t, th.Allow("c1"))
	assert.True(t, th.Allow("c2"))

	now = now.Add(1500 * time.Millisecond)
	assert.True(t, th.Allow("c1"))

	th.Forget("c1")
	assert.True(t, th.Allow("c1"))
	assert.True(t, th.Allow("c1"))
	assert.False(t, th.Allow("c1"))
}

func TestChannelIndexWritesThrough(t *testing.T) {
	ctx := context.Background()
	db, err := store.Open(ctx, store.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ci := NewChannelIndex(db, zap.NewNop())
	ci.Add(ctx, ChannelEntry{ChannelID: "10", Name: "ann-All-Burst", MatchID: "m1", PlayerID: 1})
	ci.Add(ctx, ChannelEntry{ChannelID: "20", MatchID: "m1", PlayerID: 2})

	recs, err := db.ListChannels(ctx)
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	ci.Remove(ctx, "10")
	ci.Remove(ctx, "10")
	_, ok := ci.Lookup("10")
	assert.False(t, ok)

	recs, err = db.ListChannels(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "20", recs[0].ChannelID)
}

func TestSweepOrphans(t *testing.T) {
	ctx := context.Background()
	db, err := store.Open(ctx, store.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.SaveChannel(ctx, store.ChannelRecord{ChannelID: "old1", MatchID: "gone", PlayerID: 1}))
	require.NoError(t, db.SaveChannel(ctx, store.ChannelRecord{ChannelID: "old2", MatchID: "gone", PlayerID: 2}))

	env := setupTestBridge(t, Options{})
	env.bridge.channels = NewChannelIndex(db, zap.NewNop())
	env.seat(t, "m1", 3, "cat", 0)

	n, err := env.bridge.SweepOrphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.ElementsMatch(t, []string{"old1", "old2"}, env.platform.Deleted())

	recs, err := db.ListChannels(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "30", recs[0].ChannelID)
}
