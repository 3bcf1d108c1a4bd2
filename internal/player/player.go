package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Player plays one resource at a time into whatever output is attached.
type Player struct {
	guildID string
	opts    Options

	mu      sync.Mutex
	status  Status
	out     Output
	cur     *Session
	lastEnd EndCause
	lastErr error
	changed chan struct{}
}

// Session is a single Play call. Started closes when the first packet reaches
// the output; Done closes when the player is back to Idle.
type Session struct {
	track  Track
	ctx    context.Context
	cancel context.CancelFunc
	res    Resource
	buf    *packetQueue

	started   chan struct{}
	startOnce sync.Once
	produced  chan struct{}
	done      chan struct{}

	// guarded by Player.mu
	resume    chan struct{}
	stopCause EndCause

	readErr error // written by the producer before MarkEOS
	cause   EndCause
	err     error
	sent    atomic.Int64
}

func (s *Session) Track() Track             { return s.track }
func (s *Session) Started() <-chan struct{} { return s.started }
func (s *Session) Done() <-chan struct{}    { return s.done }
func (s *Session) Position() time.Duration  { return time.Duration(s.sent.Load()) * FrameDuration }
func (s *Session) Cause() EndCause          { <-s.done; return s.cause }
func (s *Session) Err() error               { <-s.done; return s.err }

func NewPlayer(guildID string, opts Options) *Player {
	return &Player{
		guildID: guildID,
		opts:    opts.withDefaults(),
		status:  StatusIdle,
		changed: make(chan struct{}),
	}
}

func (p *Player) GuildID() string { return p.guildID }

func (p *Player) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// LastEnd reports how the most recent session ended.
func (p *Player) LastEnd() (EndCause, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastEnd, p.lastErr
}

// Current returns the active session, or nil when idle.
func (p *Player) Current() *Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cur
}

// Attach binds the player to out. Attaching the same output again is a no-op.
func (p *Player) Attach(out Output) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.out = out
}

func (p *Player) setStatusLocked(s Status) {
	if p.status == s {
		return
	}
	slog.Debug("player transition", "guildID", p.guildID, "from", p.status, "to", s)
	p.status = s
	close(p.changed)
	p.changed = make(chan struct{})
}

// WaitFor blocks until the player is in state want or ctx ends.
func (p *Player) WaitFor(ctx context.Context, want Status) error {
	for {
		p.mu.Lock()
		if p.status == want {
			p.mu.Unlock()
			return nil
		}
		ch := p.changed
		p.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Play starts res. The player must be Idle. The player owns res from here
// on and closes it when the session ends.
func (p *Player) Play(res Resource, t Track) (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cur != nil || p.status != StatusIdle {
		return nil, ErrBusy
	}

	ctx, cancel := context.WithCancel(context.Background())
	sess := &Session{
		track:    t,
		ctx:      ctx,
		cancel:   cancel,
		res:      res,
		buf:      newPacketQueue(p.opts.BufferPackets),
		started:  make(chan struct{}),
		produced: make(chan struct{}),
		done:     make(chan struct{}),
	}
	p.cur = sess
	p.lastEnd, p.lastErr = EndNone, nil
	p.setStatusLocked(StatusBuffering)

	go p.produce(sess)
	go p.run(sess)
	return sess, nil
}

func (p *Player) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cur == nil || (p.status != StatusPlaying && p.status != StatusAutoPaused) {
		return ErrNotPlaying
	}
	p.cur.resume = make(chan struct{})
	p.setStatusLocked(StatusPaused)
	return nil
}

func (p *Player) Unpause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cur == nil || p.status != StatusPaused {
		return ErrNotPaused
	}
	close(p.cur.resume)
	p.cur.resume = nil
	p.setStatusLocked(StatusPlaying)
	return nil
}

// Stop ends the active session with the given cause and waits until the
// player is Idle. It reports whether there was anything to stop.
func (p *Player) Stop(cause EndCause) bool {
	p.mu.Lock()
	sess := p.cur
	if sess == nil {
		p.mu.Unlock()
		return false
	}
	sess.stopCause = cause
	p.mu.Unlock()

	sess.cancel()
	<-sess.done
	return true
}

func (p *Player) produce(sess *Session) {
	defer close(sess.produced)
	defer sess.res.Close()
	defer sess.buf.MarkEOS()

	for {
		pkt, err := sess.res.ReadPacket(sess.ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) && sess.ctx.Err() == nil {
				sess.readErr = err
			}
			return
		}
		if !sess.buf.Push(sess.ctx, pkt) {
			return
		}
	}
}

func (p *Player) run(sess *Session) {
	cause, err := p.consume(sess)

	sess.cancel()
	<-sess.produced
	sess.buf.Close()

	p.mu.Lock()
	sess.cause, sess.err = cause, err
	if p.cur == sess {
		p.cur = nil
		p.lastEnd, p.lastErr = cause, err
		p.setStatusLocked(StatusIdle)
	}
	p.mu.Unlock()

	if err != nil {
		slog.Warn("playback ended", "guildID", p.guildID, "title", sess.track.Title, "cause", cause, "err", err)
	} else {
		slog.Info("playback ended", "guildID", p.guildID, "title", sess.track.Title, "cause", cause)
	}
	close(sess.done)
}

func (p *Player) stopCause(sess *Session) EndCause {
	p.mu.Lock()
	defer p.mu.Unlock()
	if sess.stopCause == EndNone {
		return EndStopped
	}
	return sess.stopCause
}

// gate blocks while the session is paused or the output is not ready, and
// returns the output to write to.
func (p *Player) gate(sess *Session, quiet func()) (Output, error) {
	for {
		p.mu.Lock()
		if ch := sess.resume; ch != nil {
			p.mu.Unlock()
			quiet()
			select {
			case <-ch:
				continue
			case <-sess.ctx.Done():
				return nil, sess.ctx.Err()
			}
		}

		out := p.out
		if out != nil && out.Ready() {
			if p.status == StatusAutoPaused && p.cur == sess {
				p.setStatusLocked(StatusPlaying)
			}
			p.mu.Unlock()
			return out, nil
		}
		if p.status == StatusPlaying && p.cur == sess {
			slog.Warn("output not ready, auto-pausing", "guildID", p.guildID)
			p.setStatusLocked(StatusAutoPaused)
		}
		p.mu.Unlock()

		quiet()
		select {
		case <-time.After(p.opts.ReadyPoll):
		case <-sess.ctx.Done():
			return nil, sess.ctx.Err()
		}
	}
}

func (p *Player) markStarted(sess *Session) {
	sess.startOnce.Do(func() {
		p.mu.Lock()
		if p.cur == sess && p.status == StatusBuffering {
			p.setStatusLocked(StatusPlaying)
		}
		p.mu.Unlock()
		slog.Info("playback started", "guildID", p.guildID, "title", sess.track.Title)
		close(sess.started)
	})
}

func (p *Player) consume(sess *Session) (EndCause, error) {
	var speaking Output
	quiet := func() {
		if speaking != nil {
			_ = speaking.Speaking(false)
			speaking = nil
		}
	}
	defer quiet()

	frame := p.opts.FrameInterval
	var next time.Time

	for {
		pkt, ok := sess.buf.Pop(sess.ctx)
		if !ok {
			if sess.ctx.Err() != nil {
				return p.stopCause(sess), nil
			}
			if sess.readErr != nil {
				return EndFailed, fmt.Errorf("read packet: %w", sess.readErr)
			}
			return EndFinished, nil
		}

		out, err := p.gate(sess, quiet)
		if err != nil {
			return p.stopCause(sess), nil
		}
		if speaking != out {
			quiet()
			_ = out.Speaking(true)
			speaking = out
		}

		if frame > 0 {
			now := time.Now()
			// Resync after a pause or stall instead of bursting to catch up.
			if next.IsZero() || now.Sub(next) > 5*frame {
				next = now
			} else if d := next.Sub(now); d > 0 {
				select {
				case <-sess.ctx.Done():
					return p.stopCause(sess), nil
				case <-time.After(d):
				}
			}
			next = next.Add(frame)
		}

		if err := out.SendOpus(sess.ctx, pkt); err != nil {
			if sess.ctx.Err() != nil {
				return p.stopCause(sess), nil
			}
			return EndFailed, fmt.Errorf("send opus: %w", err)
		}
		sess.sent.Add(1)
		p.markStarted(sess)
	}
}
