package bridge

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"burstbot/internal/blackjack"
	"burstbot/internal/chat"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// keyText renders a catalog key followed by its arguments.
type keyText struct{}

func (keyText) Text(key string, args ...any) string {
	parts := []string{key}
	for _, a := range args {
		parts = append(parts, fmt.Sprint(a))
	}
	return strings.Join(parts, "|")
}

type sentMessage struct {
	ChannelID string
	Msg       chat.Message
}

// errPlatform is what fakePlatform returns for injected failures.
var errPlatform = errors.New("platform unavailable")

type fakePlatform struct {
	mu       sync.Mutex
	sent     []sentMessage
	deleted  []string
	disabled []chat.MessageRef
	created  []chat.User
	nextID   int

	// failSends and failDeletes make that many next calls fail.
	failSends   int
	failDeletes int
}

func (p *fakePlatform) CreatePrivateChannel(_ context.Context, _ string, user chat.User) (*chat.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, user)
	p.nextID++
	return &chat.Channel{ID: strconv.Itoa(5000 + p.nextID), Name: user.DisplayName + "-All-Burst"}, nil
}

func (p *fakePlatform) Send(_ context.Context, channelID string, msg chat.Message) (chat.MessageRef, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failSends > 0 {
		p.failSends--
		return chat.MessageRef{}, errPlatform
	}
	p.sent = append(p.sent, sentMessage{ChannelID: channelID, Msg: msg})
	return chat.MessageRef{ChannelID: channelID, MessageID: strconv.Itoa(len(p.sent)), Controls: msg.Controls}, nil
}

func (p *fakePlatform) DeleteChannel(_ context.Context, channelID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failDeletes > 0 {
		p.failDeletes--
		return errPlatform
	}
	p.deleted = append(p.deleted, channelID)
	return nil
}

func (p *fakePlatform) DisableControls(_ context.Context, ref chat.MessageRef) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disabled = append(p.disabled, ref)
	return nil
}

func (p *fakePlatform) Sent() []sentMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]sentMessage(nil), p.sent...)
}

func (p *fakePlatform) Deleted() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.deleted...)
}

func (p *fakePlatform) Disabled() []chat.MessageRef {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]chat.MessageRef(nil), p.disabled...)
}

// fakeConn is a backend connection driven by the test. Closing in makes
// the backend look like it sent a close frame.
type fakeConn struct {
	in     chan []byte
	out    chan []byte
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan []byte, 16),
		out:    make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case data, ok := <-c.in:
		if !ok {
			return nil, ErrClosedByBackend
		}
		return data, nil
	case <-c.closed:
		return nil, errors.New("use of closed connection")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) Write(ctx context.Context, payload []byte) error {
	select {
	case c.out <- payload:
		return nil
	case <-c.closed:
		return errors.New("use of closed connection")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// nextWrite returns the next payload the session sent, skipping deal
// requests.
func (c *fakeConn) nextWrite(t *testing.T) []byte {
	t.Helper()
	for {
		select {
		case data := <-c.out:
			if kind, _ := blackjack.PeekAction(data); kind == blackjack.ActionDeal {
				continue
			}
			return data
		case <-time.After(2 * time.Second):
			t.Fatal("no payload written to backend")
			return nil
		}
	}
}

type fakeDialer struct {
	conn  *fakeConn
	err   error
	dials atomic.Int32
}

func (d *fakeDialer) Dial(context.Context, string) (Conn, error) {
	d.dials.Add(1)
	if d.err != nil {
		return nil, d.err
	}
	return d.conn, nil
}

type fakeResults struct {
	mu      sync.Mutex
	results map[string]*blackjack.EndingResult
}

func (r *fakeResults) SaveResult(_ context.Context, matchID string, result *blackjack.EndingResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.results == nil {
		r.results = map[string]*blackjack.EndingResult{}
	}
	r.results[matchID] = result
	return nil
}

func (r *fakeResults) Get(matchID string) *blackjack.EndingResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.results[matchID]
}

type testEnv struct {
	bridge   *Bridge
	platform *fakePlatform
	dialer   *fakeDialer
	conn     *fakeConn
	results  *fakeResults
}

func setupTestBridge(t *testing.T, opts Options) *testEnv {
	t.Helper()

	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}
	env := &testEnv{
		platform: &fakePlatform{},
		conn:     newFakeConn(),
		results:  &fakeResults{},
	}
	env.dialer = &fakeDialer{conn: env.conn}
	env.bridge = New(opts, Deps{
		Dialer:   env.dialer,
		Platform: env.platform,
		Notifier: blackjack.NewNotifier(keyText{}),
		Results:  env.results,
		Logger:   zap.NewNop(),
	})
	return env
}

// seat adds a player with a private channel named after their id.
func (env *testEnv) seat(t *testing.T, matchID string, playerID uint64, name string, order int) *chat.Channel {
	t.Helper()
	ch := &chat.Channel{ID: strconv.FormatUint(playerID*10, 10), Name: name + "-All-Burst"}
	err := env.bridge.AddPlayer(context.Background(), matchID, blackjack.PlayerState{
		PlayerID:   playerID,
		PlayerName: name,
		Channel:    ch,
		Order:      order,
		OwnTips:    100,
	})
	require.NoError(t, err)
	return ch
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 3*time.Second, 5*time.Millisecond, msg)
}
