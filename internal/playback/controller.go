// Package playback drives a guild's persisted queue through its player, one
// entry at a time, until the queue is empty or something fails.
package playback

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sonroyaalmerol/kumaqueue/internal/locale"
	"github.com/sonroyaalmerol/kumaqueue/internal/model"
	"github.com/sonroyaalmerol/kumaqueue/internal/player"
)

type Settings interface {
	GetLanguage(ctx context.Context, guildID string) (string, error)
}

type Queue interface {
	PeekFront(ctx context.Context, guildID string, limit int) ([]model.QueueEntry, error)
	Advance(ctx context.Context, guildID string) (int, error)
}

type Requests interface {
	MarkPlayed(ctx context.Context, requestID string, at time.Time) error
}

type Media interface {
	Open(ctx context.Context, url string) (player.Resource, error)
}

type Notifier interface {
	Notify(ctx context.Context, channelID, msg string)
}

// Transport is a live voice connection the controller plays into and
// releases when the cycle ends.
type Transport interface {
	Subscribe(p *player.Player)
	AwaitReady(ctx context.Context) error
	Disconnect() error
}

type Config struct {
	StartTimeout time.Duration
	IdleTimeout  time.Duration
	ReadyTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		StartTimeout: 10 * time.Second,
		IdleTimeout:  24 * time.Hour,
		ReadyTimeout: 10 * time.Second,
	}
}

type Deps struct {
	Registry *player.Registry
	Settings Settings
	Queue    Queue
	Requests Requests
	Media    Media
	Notifier Notifier
}

type Controller struct {
	Deps
	cfg Config
	now func() time.Time

	base context.Context
	wg   sync.WaitGroup

	mu     sync.Mutex
	guilds map[string]*guildCycle
}

// guildCycle is the control state of one running cycle, guarded by
// Controller.mu. It exists exactly while the registry marks the guild active.
type guildCycle struct {
	stop    bool
	pending bool
	// closing is set once the cycle has decided to drain; later enqueues
	// must start a new cycle.
	closing bool
	done    chan struct{}
}

// New returns a controller whose background cycles live as long as base.
func New(base context.Context, deps Deps, cfg Config) *Controller {
	return &Controller{
		Deps:   deps,
		cfg:    cfg,
		now:    time.Now,
		base:   base,
		guilds: make(map[string]*guildCycle),
	}
}

// Outcome summarizes a finished cycle. Busy means another cycle already held
// the guild and nothing was done.
type Outcome struct {
	Played int
	Busy   bool
	Err    error
}

// Start runs a cycle for the guild in the background.
func (c *Controller) Start(guildID string, t Transport, channelID string) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		out := c.Run(c.base, guildID, t, channelID)
		if out.Busy {
			return
		}
		slog.Info("playback cycle finished", "guildID", guildID, "played", out.Played, "err", out.Err)
	}()
}

// Wait blocks until every cycle started with Start has returned.
func (c *Controller) Wait() { c.wg.Wait() }

// Wake tells the guild's running cycle that entries were enqueued. It reports
// false when no cycle will look at the queue again, in which case the caller
// has to start one.
func (c *Controller) Wake(guildID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	gc, ok := c.guilds[guildID]
	if !ok || gc.closing || gc.stop {
		return false
	}
	gc.pending = true
	return true
}

// AwaitIdle blocks until the guild has no running cycle, so a new one can
// take over the voice connection.
func (c *Controller) AwaitIdle(ctx context.Context, guildID string) error {
	c.mu.Lock()
	gc, ok := c.guilds[guildID]
	c.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-gc.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop asks the guild's running cycle to finish after the current entry: the
// player is stopped, the entry is advanced past, and the transport released.
// It reports whether a cycle was running.
func (c *Controller) Stop(guildID string) bool {
	c.mu.Lock()
	gc, ok := c.guilds[guildID]
	if ok {
		gc.stop = true
	}
	c.mu.Unlock()
	if !ok {
		return false
	}

	if p := c.Registry.Peek(guildID); p != nil {
		p.Stop(player.EndStopped)
	}
	return true
}

func (c *Controller) stopRequested(guildID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	gc, ok := c.guilds[guildID]
	return ok && gc.stop
}

// acquire claims the guild in the registry and registers its control state
// under one lock, so Stop and Wake never see an active guild without it.
func (c *Controller) acquire(guildID string) (*player.Player, func(), bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, release, ok := c.Registry.TryAcquire(guildID)
	if !ok {
		return p, nil, false
	}
	gc := &guildCycle{done: make(chan struct{})}
	c.guilds[guildID] = gc

	return p, func() {
		c.mu.Lock()
		delete(c.guilds, guildID)
		release()
		c.mu.Unlock()
		close(gc.done)
	}, true
}

// rearm is called when the queue looked empty. It reports whether an enqueue
// arrived since, and otherwise commits the cycle to closing.
func (c *Controller) rearm(guildID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	gc := c.guilds[guildID]
	if gc.pending && !gc.stop {
		gc.pending = false
		return true
	}
	gc.closing = true
	return false
}

func (c *Controller) markClosing(guildID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.guilds[guildID].closing = true
}

type step int

const (
	stepFetchSettings step = iota
	stepPeekQueue
	stepBindTransport
	stepStartPlayback
	stepAwaitCompletion
	stepAdvance
	stepDrain
	stepDone
)

// cycle is the per-run state threaded through the steps.
type cycle struct {
	guildID   string
	channelID string
	transport Transport
	player    *player.Player

	lang    string
	entry   model.QueueEntry
	session *player.Session
	stopped bool
	out     Outcome
}

// Run drives the guild's queue until it is empty or a step fails. Every exit
// path after the guard releases the transport exactly once. Run never
// panics on collaborator failure; the failure is reported in Outcome.Err.
func (c *Controller) Run(ctx context.Context, guildID string, t Transport, channelID string) Outcome {
	p, release, ok := c.acquire(guildID)
	if !ok {
		slog.Debug("playback cycle already active", "guildID", guildID)
		return Outcome{Busy: true}
	}
	defer release()

	cy := &cycle{
		guildID:   guildID,
		channelID: channelID,
		transport: t,
		player:    p,
		lang:      locale.Default,
	}

	next := stepFetchSettings
	for next != stepDone {
		switch next {
		case stepFetchSettings:
			next = c.fetchSettings(ctx, cy)
		case stepPeekQueue:
			next = c.peekQueue(ctx, cy)
		case stepBindTransport:
			t.Subscribe(p)
			next = stepStartPlayback
		case stepStartPlayback:
			next = c.startPlayback(ctx, cy)
		case stepAwaitCompletion:
			next = c.awaitCompletion(ctx, cy)
		case stepAdvance:
			next = c.advance(ctx, cy)
		case stepDrain:
			c.markClosing(guildID)
			c.drain(cy)
			next = stepDone
		}
	}
	return cy.out
}

func (c *Controller) fetchSettings(ctx context.Context, cy *cycle) step {
	if ctx.Err() != nil || c.stopRequested(cy.guildID) {
		return stepDrain
	}
	lang, err := c.Settings.GetLanguage(ctx, cy.guildID)
	if err != nil {
		return c.fail(ctx, cy, KindSettingFetchFailed, err)
	}
	if lang != "" {
		cy.lang = lang
	}
	return stepPeekQueue
}

func (c *Controller) peekQueue(ctx context.Context, cy *cycle) step {
	entries, err := c.Queue.PeekFront(ctx, cy.guildID, model.MaxPeek)
	if err != nil {
		return c.fail(ctx, cy, KindQueueFetchFailed, err)
	}
	if len(entries) == 0 {
		if c.rearm(cy.guildID) {
			slog.Debug("entries enqueued while checking, looking again", "guildID", cy.guildID)
			return stepFetchSettings
		}
		slog.Debug("queue empty", "guildID", cy.guildID)
		return stepDrain
	}
	cy.entry = entries[0]
	return stepBindTransport
}

func (c *Controller) startPlayback(ctx context.Context, cy *cycle) step {
	req := cy.entry.Request

	res, err := c.Media.Open(ctx, req.Video.URL)
	if err != nil {
		return c.fail(ctx, cy, KindStreamOpenFailed, err)
	}

	c.notify(ctx, cy, locale.Text(cy.lang, locale.NowPlaying, req.Video.Title, req.UserID))

	sess, err := cy.player.Play(res, player.Track{
		RequestID:   req.ID,
		Title:       req.Video.Title,
		URL:         req.Video.URL,
		RequestedBy: req.UserID,
		Duration:    time.Duration(req.Video.DurationSec) * time.Second,
		Thumbnail:   req.Video.Thumbnail,
	})
	if err != nil {
		_ = res.Close()
		return c.fail(ctx, cy, KindStreamOpenFailed, err)
	}
	cy.session = sess
	cy.out.Played++

	// Audio is already going out; a failure here leaves it unrecorded.
	if err := c.Requests.MarkPlayed(ctx, req.ID, c.now()); err != nil {
		return c.fail(ctx, cy, KindPlayedAtUpdateFailed, err)
	}

	// A stop that arrived while the stream was opening.
	if c.stopRequested(cy.guildID) {
		cy.player.Stop(player.EndStopped)
	}
	return stepAwaitCompletion
}

func (c *Controller) awaitCompletion(ctx context.Context, cy *cycle) step {
	sess := cy.session

	start := time.NewTimer(c.cfg.StartTimeout)
	defer start.Stop()
	select {
	case <-sess.Started():
	case <-sess.Done():
	case <-start.C:
		return c.fail(ctx, cy, KindPlayStartTimeout, errors.New("player did not start"))
	case <-ctx.Done():
		return stepDrain
	}

	idle := time.NewTimer(c.cfg.IdleTimeout)
	defer idle.Stop()
	select {
	case <-sess.Done():
	case <-idle.C:
		return c.fail(ctx, cy, KindIdleTimeout, errors.New("player did not return to idle"))
	case <-ctx.Done():
		return stepDrain
	}

	cause := sess.Cause()
	if err := sess.Err(); err != nil {
		slog.Warn("entry ended with error", "guildID", cy.guildID, "requestID", cy.entry.Request.ID, "err", err)
	}
	cy.stopped = cause == player.EndStopped
	return stepAdvance
}

func (c *Controller) advance(ctx context.Context, cy *cycle) step {
	if _, err := c.Queue.Advance(ctx, cy.guildID); err != nil {
		return c.fail(ctx, cy, KindQueueAdvanceFailed, err)
	}
	if cy.stopped {
		return stepDrain
	}
	return stepFetchSettings
}

// fail records the first error, tells the channel, and routes to drain.
func (c *Controller) fail(ctx context.Context, cy *cycle, kind Kind, err error) step {
	cerr := &CycleError{Kind: kind, Err: err}
	slog.Error("playback cycle failed", "guildID", cy.guildID, "kind", kind, "err", err)
	if cy.out.Err == nil {
		cy.out.Err = cerr
	}

	msg := locale.Text(cy.lang, locale.InternalError)
	if kind == KindStreamOpenFailed {
		msg = locale.Text(cy.lang, locale.StreamError, cy.entry.Request.Video.Title)
	}
	c.notify(ctx, cy, msg)
	return stepDrain
}

func (c *Controller) notify(ctx context.Context, cy *cycle, msg string) {
	if c.Notifier == nil || cy.channelID == "" {
		return
	}
	c.Notifier.Notify(context.WithoutCancel(ctx), cy.channelID, msg)
}

// drain silences the player and releases the transport. It runs on its own
// deadline so it still completes while the process is shutting down.
func (c *Controller) drain(cy *cycle) {
	if cy.player.Stop(player.EndStopped) {
		slog.Debug("stopped player on drain", "guildID", cy.guildID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ReadyTimeout)
	defer cancel()
	if err := cy.transport.AwaitReady(ctx); err != nil {
		slog.Warn("transport not ready before disconnect", "guildID", cy.guildID, "err", err)
	}
	if err := cy.transport.Disconnect(); err != nil {
		slog.Warn("transport disconnect failed", "guildID", cy.guildID, "err", err)
	}
}
