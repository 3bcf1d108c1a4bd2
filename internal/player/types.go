package player

import (
	"context"
	"errors"
	"time"
)

type Status int

const (
	StatusIdle Status = iota
	StatusBuffering
	StatusPlaying
	StatusPaused
	StatusAutoPaused
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusBuffering:
		return "buffering"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	case StatusAutoPaused:
		return "autopaused"
	}
	return "unknown"
}

// EndCause records why the last play session returned the player to Idle.
type EndCause int

const (
	EndNone EndCause = iota
	EndFinished
	EndSkipped
	EndStopped
	EndFailed
)

func (c EndCause) String() string {
	switch c {
	case EndFinished:
		return "finished"
	case EndSkipped:
		return "skipped"
	case EndStopped:
		return "stopped"
	case EndFailed:
		return "failed"
	}
	return "none"
}

var (
	ErrBusy       = errors.New("player is not idle")
	ErrNotPlaying = errors.New("not playing")
	ErrNotPaused  = errors.New("not paused")
)

// Resource yields encoded opus packets, one 20 ms frame each, until io.EOF.
type Resource interface {
	ReadPacket(ctx context.Context) ([]byte, error)
	Close() error
}

// Output is the voice side a player writes to.
type Output interface {
	Ready() bool
	Speaking(bool) error
	SendOpus(ctx context.Context, pkt []byte) error
}

// Track describes what is being played, for display.
type Track struct {
	RequestID   string
	Title       string
	URL         string
	RequestedBy string
	Duration    time.Duration
	Thumbnail   string
}

type Options struct {
	// FrameInterval paces packet delivery. Zero sends as fast as the
	// output accepts, leaving pacing to the output.
	FrameInterval time.Duration
	// ReadyPoll is how often a player waiting on its output re-checks
	// readiness.
	ReadyPoll time.Duration
	// BufferPackets sizes the read-ahead buffer between resource and output.
	BufferPackets int
}

const FrameDuration = 20 * time.Millisecond

func DefaultOptions() Options {
	return Options{
		FrameInterval: FrameDuration,
		ReadyPoll:     100 * time.Millisecond,
		BufferPackets: 100,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ReadyPoll <= 0 {
		o.ReadyPoll = d.ReadyPoll
	}
	if o.BufferPackets <= 1 {
		o.BufferPackets = d.BufferPackets
	}
	return o
}
