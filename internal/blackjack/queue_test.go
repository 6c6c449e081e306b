package blackjack

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboundFIFO(t *testing.T) {
	q := NewOutbound()
	q.Push(1, []byte("A1"))
	q.Push(2, []byte("A2"))
	q.Push(1, []byte("A3"))

	assert.Equal(t, 3, q.Len())
	for _, want := range []OutboundItem{{1, []byte("A1")}, {2, []byte("A2")}, {1, []byte("A3")}} {
		select {
		case <-q.Ready():
		case <-time.After(time.Second):
			t.Fatal("queue not ready")
		}
		got, ok := q.TryPop()
		require.True(t, ok)
		assert.Equal(t, want, got)
	}

	_, ok := q.TryPop()
	assert.False(t, ok)
}

func TestOutboundConcurrentProducers(t *testing.T) {
	q := NewOutbound()

	const producers, perProducer = 8, 50
	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perProducer {
				q.Push(uint64(p+1), []byte(fmt.Sprintf("%d", i)))
			}
		}()
	}

	next := make(map[uint64]int)
	for range producers * perProducer {
		item, ok := q.TryPop()
		for !ok {
			select {
			case <-q.Ready():
			case <-time.After(5 * time.Second):
				t.Fatal("queue not ready")
			}
			item, ok = q.TryPop()
		}
		assert.Equal(t, fmt.Sprintf("%d", next[item.PlayerID]), string(item.Payload))
		next[item.PlayerID]++
	}
	wg.Wait()
	assert.Equal(t, 0, q.Len())
}

func TestEnsureOutboundIsLazy(t *testing.T) {
	s := NewMatchState("m1")
	q := s.EnsureOutbound()
	assert.Same(t, q, s.EnsureOutbound())
}
