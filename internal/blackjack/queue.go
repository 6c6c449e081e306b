package blackjack

import (
	"sync"

	"github.com/emirpasic/gods/queues/linkedlistqueue"
)

// OutboundItem is a player action waiting to be sent to the backend.
type OutboundItem struct {
	PlayerID uint64
	Payload  []byte
}

// Outbound is an unbounded FIFO with many producers and one consumer.
// Ready fires whenever at least one item may be waiting.
type Outbound struct {
	mu    sync.Mutex
	items *linkedlistqueue.Queue
	ready chan struct{}
}

func NewOutbound() *Outbound {
	return &Outbound{
		items: linkedlistqueue.New(),
		ready: make(chan struct{}, 1),
	}
}

func (q *Outbound) Push(playerID uint64, payload []byte) {
	q.mu.Lock()
	q.items.Enqueue(OutboundItem{PlayerID: playerID, Payload: payload})
	q.mu.Unlock()
	q.signal()
}

func (q *Outbound) Ready() <-chan struct{} {
	return q.ready
}

// TryPop removes the oldest item without blocking.
func (q *Outbound) TryPop() (OutboundItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	v, ok := q.items.Dequeue()
	if !q.items.Empty() {
		q.signal()
	}
	if !ok {
		return OutboundItem{}, false
	}
	return v.(OutboundItem), true
}

func (q *Outbound) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Size()
}

func (q *Outbound) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
