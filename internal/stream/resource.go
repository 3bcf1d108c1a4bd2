package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/sonroyaalmerol/kumaqueue/internal/player"
)

// Provider opens video page URLs as playable opus resources.
type Provider struct {
	resolver *Resolver
}

func NewProvider(r *Resolver) *Provider { return &Provider{resolver: r} }

// Open resolves url with yt-dlp and starts decoding it. The returned resource
// is owned by the caller until handed to a player.
func (p *Provider) Open(ctx context.Context, url string) (player.Resource, error) {
	mediaURL, err := p.resolver.StreamURL(ctx, url)
	if err != nil {
		return nil, err
	}
	slog.Debug("opening media", "url", url)

	dec, err := openPCM(context.Background(), mediaURL)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", url, err)
	}
	enc, err := NewEncoder()
	if err != nil {
		_ = dec.Close()
		return nil, err
	}
	return &opusResource{pcm: dec, enc: enc, frame: make([]byte, frameBytes)}, nil
}

type opusResource struct {
	pcm     io.ReadCloser
	enc     *Encoder
	frame   []byte
	pending [][]byte
	eof     bool
}

func (r *opusResource) ReadPacket(ctx context.Context) ([]byte, error) {
	stop := context.AfterFunc(ctx, func() { _ = r.pcm.Close() })
	defer stop()

	for len(r.pending) == 0 {
		if r.eof {
			return nil, io.EOF
		}
		if err := r.fill(); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, err
		}
	}
	pkt := r.pending[0]
	r.pending = r.pending[1:]
	return pkt, nil
}

func (r *opusResource) fill() error {
	n, err := io.ReadFull(r.pcm, r.frame)
	switch {
	case err == nil:
		pkts, err := r.enc.Encode(r.frame)
		r.pending = append(r.pending, pkts...)
		return err
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		r.eof = true
		if n > 0 {
			// Pad the short tail with silence.
			clear(r.frame[n:])
			pkts, err := r.enc.Encode(r.frame)
			r.pending = append(r.pending, pkts...)
			if err != nil {
				return err
			}
		}
		pkts, err := r.enc.Flush()
		r.pending = append(r.pending, pkts...)
		return err
	default:
		return fmt.Errorf("read pcm: %w", err)
	}
}

func (r *opusResource) Close() error {
	err := r.pcm.Close()
	r.enc.Close()
	return err
}
