package playback

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sonroyaalmerol/kumaqueue/internal/model"
	"github.com/sonroyaalmerol/kumaqueue/internal/player"
)

type fakeSettings struct {
	lang  string
	err   error
	calls atomic.Int32
}

func (f *fakeSettings) GetLanguage(ctx context.Context, guildID string) (string, error) {
	f.calls.Add(1)
	return f.lang, f.err
}

type fakeQueue struct {
	mu         sync.Mutex
	entries    []model.QueueEntry
	peekErr    error
	advanceErr error
	peeks      int
	advances   int
	// onPeek runs after each peek has been answered, with the peek count.
	onPeek func(n int)
}

func newFakeQueue(titles ...string) *fakeQueue {
	q := &fakeQueue{}
	for i, title := range titles {
		q.entries = append(q.entries, model.QueueEntry{
			ID:    "e-" + title,
			Order: i,
			Request: model.PlayRequest{
				ID:     "r-" + title,
				UserID: "u1",
				Video:  model.Video{ID: title, URL: "https://www.youtube.com/watch?v=" + title, Title: title},
			},
		})
	}
	return q
}

func (q *fakeQueue) PeekFront(ctx context.Context, guildID string, limit int) ([]model.QueueEntry, error) {
	q.mu.Lock()
	q.peeks++
	n, hook, err := q.peeks, q.onPeek, q.peekErr
	var out []model.QueueEntry
	if err == nil {
		out = append(out, q.entries[:min(limit, len(q.entries))]...)
	}
	q.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	return out, err
}

func (q *fakeQueue) push(title string) {
	more := newFakeQueue(title).entries[0]
	q.mu.Lock()
	defer q.mu.Unlock()
	more.Order = len(q.entries)
	q.entries = append(q.entries, more)
}

func (q *fakeQueue) Advance(ctx context.Context, guildID string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.advances++
	if q.advanceErr != nil {
		return 0, q.advanceErr
	}
	if len(q.entries) == 0 {
		return 0, nil
	}
	q.entries = q.entries[1:]
	for i := range q.entries {
		q.entries[i].Order = i
	}
	return len(q.entries), nil
}

func (q *fakeQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

type fakeRequests struct {
	mu     sync.Mutex
	err    error
	played []string
}

func (r *fakeRequests) MarkPlayed(ctx context.Context, requestID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.played = append(r.played, requestID)
	return nil
}

func (r *fakeRequests) Played() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.played...)
}

// fakeResource yields n packets then EOF; with hold set it blocks after the
// packets until the player cancels it.
type fakeResource struct {
	n    int
	hold bool
}

func (r *fakeResource) ReadPacket(ctx context.Context) ([]byte, error) {
	if r.n > 0 {
		r.n--
		return []byte{0xf8, 0xff, 0xfe}, nil
	}
	if r.hold {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return nil, io.EOF
}

func (r *fakeResource) Close() error { return nil }

type fakeMedia struct {
	mu      sync.Mutex
	fail    map[string]error
	hold    bool
	opened  []string
	packets int
}

func (m *fakeMedia) Open(ctx context.Context, url string) (player.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opened = append(m.opened, url)
	if err := m.fail[url]; err != nil {
		return nil, err
	}
	n := m.packets
	if n == 0 {
		n = 3
	}
	return &fakeResource{n: n, hold: m.hold}, nil
}

func (m *fakeMedia) Opened() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.opened)
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (n *fakeNotifier) Notify(ctx context.Context, channelID, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
}

func (n *fakeNotifier) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.msgs...)
}

// fakeTransport is both the controller's transport and the player's output.
type fakeTransport struct {
	ready        atomic.Bool
	subscribes   atomic.Int32
	awaits       atomic.Int32
	disconnects  atomic.Int32
	sent         atomic.Int32
	disconnected chan struct{}
	once         sync.Once
}

func newFakeTransport(ready bool) *fakeTransport {
	t := &fakeTransport{disconnected: make(chan struct{})}
	t.ready.Store(ready)
	return t
}

func (t *fakeTransport) Subscribe(p *player.Player) {
	t.subscribes.Add(1)
	p.Attach(t)
}

func (t *fakeTransport) AwaitReady(ctx context.Context) error {
	t.awaits.Add(1)
	if t.ready.Load() {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (t *fakeTransport) Disconnect() error {
	t.disconnects.Add(1)
	t.once.Do(func() { close(t.disconnected) })
	return nil
}

func (t *fakeTransport) Ready() bool         { return t.ready.Load() }
func (t *fakeTransport) Speaking(bool) error { return nil }
func (t *fakeTransport) SendOpus(ctx context.Context, pkt []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.sent.Add(1)
	return nil
}

// gatedTransport blocks AwaitReady until gate closes, signalling entered
// first, to hold a cycle inside its drain.
type gatedTransport struct {
	*fakeTransport
	entered chan struct{}
	gate    chan struct{}
}

func newGatedTransport() *gatedTransport {
	return &gatedTransport{
		fakeTransport: newFakeTransport(true),
		entered:       make(chan struct{}, 1),
		gate:          make(chan struct{}),
	}
}

func (t *gatedTransport) AwaitReady(ctx context.Context) error {
	t.entered <- struct{}{}
	<-t.gate
	return t.fakeTransport.AwaitReady(ctx)
}

var errBoom = errors.New("boom")
