// Package voice adapts a discordgo voice connection to the player and the
// playback controller.
package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sonroyaalmerol/kumaqueue/internal/player"
)

var ErrDisconnected = errors.New("voice connection closed")

const readyPoll = 100 * time.Millisecond

type Connection struct {
	guildID   string
	channelID string

	mu sync.RWMutex
	vc *discordgo.VoiceConnection

	closeOnce sync.Once
	closed    chan struct{}
}

// Join connects to a voice channel. The bot joins deafened.
func Join(s *discordgo.Session, guildID, channelID string) (*Connection, error) {
	vc, err := s.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, fmt.Errorf("join voice channel %s: %w", channelID, err)
	}
	return Wrap(vc, guildID, channelID), nil
}

func Wrap(vc *discordgo.VoiceConnection, guildID, channelID string) *Connection {
	// Kill() closes these; make sure they exist.
	if vc.OpusSend == nil {
		vc.OpusSend = make(chan []byte, 2)
	}
	if vc.OpusRecv == nil {
		vc.OpusRecv = make(chan *discordgo.Packet, 2)
	}
	return &Connection{
		guildID:   guildID,
		channelID: channelID,
		vc:        vc,
		closed:    make(chan struct{}),
	}
}

func (c *Connection) ChannelID() string { return c.channelID }

func (c *Connection) Closed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// Subscribe routes the player's audio into this connection.
func (c *Connection) Subscribe(p *player.Player) {
	p.Attach(c)
}

func (c *Connection) Ready() bool {
	c.mu.RLock()
	vc := c.vc
	c.mu.RUnlock()
	if vc == nil {
		return false
	}
	vc.RLock()
	defer vc.RUnlock()
	return vc.Ready
}

func (c *Connection) Speaking(b bool) error {
	c.mu.RLock()
	vc := c.vc
	c.mu.RUnlock()
	if vc == nil {
		return ErrDisconnected
	}
	return vc.Speaking(b)
}

func (c *Connection) SendOpus(ctx context.Context, pkt []byte) error {
	c.mu.RLock()
	vc := c.vc
	c.mu.RUnlock()
	if vc == nil {
		return ErrDisconnected
	}
	select {
	case vc.OpusSend <- pkt:
		return nil
	case <-c.closed:
		return ErrDisconnected
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AwaitReady polls until the connection reports ready or ctx ends.
func (c *Connection) AwaitReady(ctx context.Context) error {
	t := time.NewTicker(readyPoll)
	defer t.Stop()
	for !c.Ready() {
		select {
		case <-ctx.Done():
			return fmt.Errorf("voice not ready: %w", ctx.Err())
		case <-c.closed:
			return ErrDisconnected
		case <-t.C:
		}
	}
	return nil
}

// Disconnect leaves the channel. Later calls are no-ops.
func (c *Connection) Disconnect() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		vc := c.vc
		c.vc = nil
		c.mu.Unlock()
		close(c.closed)

		if vc == nil {
			return
		}
		defer func() {
			if r := recover(); r != nil {
				slog.Error("voice disconnect panic recovered", "panic", r, "guildID", c.guildID)
			}
		}()
		_ = vc.Speaking(false)
		err = vc.Disconnect()
		slog.Info("left voice channel", "guildID", c.guildID, "channelID", c.channelID)
	})
	return err
}
