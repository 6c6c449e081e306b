package store

import (
	"context"
	"testing"

	"burstbot/internal/blackjack"
	"burstbot/internal/cards"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(context.Background(), DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testResult() *blackjack.EndingResult {
	return &blackjack.EndingResult{
		Progress: blackjack.Ending,
		Winner:   &blackjack.RawPlayerState{GameID: "m1", PlayerID: 11, PlayerName: "ann"},
		Players: map[uint64]blackjack.EndingPlayer{
			11: {PlayerName: "ann", Cards: []cards.Card{{Suit: cards.Spade, Number: 1, IsFront: true}}},
			22: {PlayerName: "bob", Cards: []cards.Card{{Suit: cards.Club, Number: 10}}},
		},
		TotalRewards: 140,
	}
}

func TestChannelIndexRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	require.NoError(t, s.SaveChannel(ctx, ChannelRecord{ChannelID: "c1", MatchID: "m1", PlayerID: 11}))
	require.NoError(t, s.SaveChannel(ctx, ChannelRecord{ChannelID: "c2", MatchID: "m1", PlayerID: 1 << 60}))
	require.NoError(t, s.SaveChannel(ctx, ChannelRecord{ChannelID: "c1", MatchID: "m2", PlayerID: 11}))

	recs, err := s.ListChannels(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	byID := map[string]ChannelRecord{}
	for _, r := range recs {
		byID[r.ChannelID] = r
	}
	assert.Equal(t, "m2", byID["c1"].MatchID)
	assert.Equal(t, uint64(1<<60), byID["c2"].PlayerID)
	assert.False(t, byID["c2"].CreatedAt.IsZero())

	require.NoError(t, s.DeleteChannel(ctx, "c1"))
	require.NoError(t, s.DeleteChannel(ctx, "c1"))

	recs, err = s.ListChannels(ctx)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestResultArchive(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	require.NoError(t, s.SaveResult(ctx, "m1", testResult()))
	require.NoError(t, s.SaveResult(ctx, "m1", testResult()))

	got, err := s.LoadResult(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, uint64(11), got.WinnerID)
	assert.Equal(t, "ann", got.WinnerName)
	assert.Equal(t, 140, got.TotalRewards)
	assert.Equal(t, blackjack.Ending, got.Result.Progress)
	assert.Equal(t, "bob", got.Result.Players[22].PlayerName)

	_, err = s.LoadResult(ctx, "missing")
	assert.ErrorIs(t, err, ErrResultNotFound)

	assert.Error(t, s.SaveResult(ctx, "m2", &blackjack.EndingResult{}))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "x")
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	pg := &Store{driver: DriverPostgres}
	lite := &Store{driver: DriverSQLite}

	q := `SELECT a FROM t WHERE b = ? AND c = ?`
	assert.Equal(t, `SELECT a FROM t WHERE b = $1 AND c = $2`, pg.rebind(q))
	assert.Equal(t, q, lite.rebind(q))
}
