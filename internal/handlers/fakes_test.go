package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/sonroyaalmerol/kumaqueue/internal/apiclient"
	"github.com/sonroyaalmerol/kumaqueue/internal/locale"
	"github.com/sonroyaalmerol/kumaqueue/internal/model"
	"github.com/sonroyaalmerol/kumaqueue/internal/playback"
	"github.com/sonroyaalmerol/kumaqueue/internal/resolve"
)

// fakeStore keeps one guild's queue in memory with the API's ordering rules.
type fakeStore struct {
	mu       sync.Mutex
	lang     string
	queue    []model.QueueEntry
	requests map[string]model.PlayRequest
	videos   map[string]model.Video
	pushes   []string
	history  []model.PlayRequest
	failPush error
	cleared  []bool
	guilds   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		lang:     locale.Default,
		requests: make(map[string]model.PlayRequest),
		videos:   make(map[string]model.Video),
	}
}

func (f *fakeStore) renumber() {
	for i := range f.queue {
		f.queue[i].Order = i
	}
}

// seed appends videos to the queue as already-pushed requests.
func (f *fakeStore) seed(titles ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range titles {
		id := fmt.Sprintf("r%d", len(f.requests)+1)
		req := model.PlayRequest{ID: id, GuildID: "g1", UserID: "u1", Video: model.Video{ID: "v-" + t, Title: t}}
		f.requests[id] = req
		f.queue = append(f.queue, model.QueueEntry{ID: "q-" + id, GuildID: "g1", Request: req})
	}
	f.renumber()
}

func (f *fakeStore) titles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.queue))
	for i, e := range f.queue {
		out[i] = e.Request.Video.Title
	}
	return out
}

func (f *fakeStore) UpsertGuild(_ context.Context, id, name string) (*model.Guild, error) {
	f.mu.Lock()
	f.guilds++
	f.mu.Unlock()
	return &model.Guild{ID: id, Name: name}, nil
}

func (f *fakeStore) UpsertChannel(_ context.Context, id, guildID, name string) (*model.Channel, error) {
	return &model.Channel{ID: id, GuildID: guildID, Name: name}, nil
}

func (f *fakeStore) UpsertUser(_ context.Context, id, name string) (*model.User, error) {
	return &model.User{ID: id, Name: name}, nil
}

func (f *fakeStore) UpsertVideo(_ context.Context, v model.Video) (*model.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.videos[v.ID] = v
	return &v, nil
}

func (f *fakeStore) CreateRequest(_ context.Context, body model.CreateRequestBody) (*model.PlayRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.videos[body.VideoID]
	if !ok {
		return nil, apiclient.ErrNotFound
	}
	req := model.PlayRequest{
		ID:        fmt.Sprintf("r%d", len(f.requests)+1),
		GuildID:   body.GuildID,
		UserID:    body.UserID,
		ChannelID: body.ChannelID,
		Video:     v,
	}
	f.requests[req.ID] = req
	return &req, nil
}

func (f *fakeStore) PushBack(_ context.Context, guildID, requestID string, interrupt bool) (*model.QueueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPush != nil {
		return nil, f.failPush
	}
	req, ok := f.requests[requestID]
	if !ok {
		return nil, apiclient.ErrNotFound
	}
	f.pushes = append(f.pushes, requestID)
	e := model.QueueEntry{ID: "q-" + requestID, GuildID: guildID, Request: req}
	at := len(f.queue)
	if interrupt {
		at = min(1, len(f.queue))
	}
	f.queue = append(f.queue[:at], append([]model.QueueEntry{e}, f.queue[at:]...)...)
	f.renumber()
	return &f.queue[at], nil
}

func (f *fakeStore) PeekFront(_ context.Context, _ string, limit int) ([]model.QueueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.QueueEntry(nil), f.queue[:min(limit, len(f.queue))]...), nil
}

func (f *fakeStore) Clear(_ context.Context, _ string, keepFront bool) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, keepFront)
	keep := 0
	if keepFront && len(f.queue) > 0 {
		keep = 1
	}
	n := len(f.queue) - keep
	f.queue = f.queue[:keep]
	return n, nil
}

func (f *fakeStore) RemoveAt(_ context.Context, _ string, order int) (*model.QueueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if order < 1 {
		return nil, &apiclient.StatusError{Status: http.StatusBadRequest, Message: "order must be at least 1"}
	}
	if order >= len(f.queue) {
		return nil, apiclient.ErrNotFound
	}
	e := f.queue[order]
	f.queue = append(f.queue[:order], f.queue[order+1:]...)
	f.renumber()
	return &e, nil
}

func (f *fakeStore) History(_ context.Context, _ string, limit int) ([]model.PlayRequest, error) {
	return f.history[:min(limit, len(f.history))], nil
}

func (f *fakeStore) GetLanguage(context.Context, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lang, nil
}

func (f *fakeStore) UpdateLanguage(_ context.Context, guildID, language string) (*model.Setting, error) {
	code, ok := locale.Supported(language)
	if !ok {
		return nil, &apiclient.StatusError{Status: http.StatusBadRequest, Message: "unsupported language"}
	}
	f.mu.Lock()
	f.lang = code
	f.mu.Unlock()
	return &model.Setting{GuildID: guildID, Language: code}, nil
}

type startCall struct {
	guildID   string
	channelID string
	transport playback.Transport
}

type fakeCycles struct {
	mu      sync.Mutex
	starts  []startCall
	stopped bool
	// running makes Wake hand enqueues to an existing cycle.
	running bool
	wakes   int
	idled   int
}

func (f *fakeCycles) Start(guildID string, t playback.Transport, channelID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, startCall{guildID: guildID, channelID: channelID, transport: t})
}

func (f *fakeCycles) Stop(string) bool { return f.stopped }

func (f *fakeCycles) Wake(string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wakes++
	return f.running
}

func (f *fakeCycles) AwaitIdle(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.idled++
	return nil
}

// fakeTransport only needs to be identifiable; the controller is faked.
type fakeTransport struct {
	playback.Transport
	channelID string
}

type fakeJoiner struct {
	joined []string
	err    error
}

func (f *fakeJoiner) Join(_, channelID string) (playback.Transport, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.joined = append(f.joined, channelID)
	return &fakeTransport{channelID: channelID}, nil
}

type fakeResolver struct {
	res *resolve.Result
	err error
}

func (f *fakeResolver) Resolve(context.Context, string) (*resolve.Result, error) {
	return f.res, f.err
}

var errBoom = errors.New("boom")
