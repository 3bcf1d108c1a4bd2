package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/asticode/go-astiav"
)

const (
	sampleRate = 48000
	channels   = 2
	frameSize  = 960 // samples per channel in 20 ms
	frameBytes = frameSize * channels * 2
)

// pcmDecoder demuxes and decodes the best audio stream of a remote input and
// writes interleaved s16le 48 kHz stereo PCM to a pipe. The decode goroutine
// owns every ffmpeg object and frees them when it exits.
type pcmDecoder struct {
	fc       *astiav.FormatContext
	stream   *astiav.Stream
	decCtx   *astiav.CodecContext
	swr      *astiav.SoftwareResampleContext
	srcFrame *astiav.Frame
	dstFrame *astiav.Frame

	pr     *io.PipeReader
	pw     *io.PipeWriter
	cancel context.CancelFunc
}

func openPCM(ctx context.Context, inputURL string) (*pcmDecoder, error) {
	fc := astiav.AllocFormatContext()
	if fc == nil {
		return nil, errors.New("alloc format context")
	}

	dict := astiav.NewDictionary()
	defer dict.Free()
	_ = dict.Set("reconnect", "1", 0)
	_ = dict.Set("reconnect_streamed", "1", 0)
	_ = dict.Set("reconnect_delay_max", "5", 0)
	_ = dict.Set("rw_timeout", "15000000", 0)

	if err := fc.OpenInput(inputURL, nil, dict); err != nil {
		fc.Free()
		return nil, fmt.Errorf("open input: %w", err)
	}

	d := &pcmDecoder{fc: fc}
	if err := d.init(); err != nil {
		d.free()
		return nil, err
	}

	d.pr, d.pw = io.Pipe()
	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	go d.run(runCtx)
	return d, nil
}

func (d *pcmDecoder) init() error {
	if err := d.fc.FindStreamInfo(nil); err != nil {
		return fmt.Errorf("find stream info: %w", err)
	}

	st, codec, err := d.fc.FindBestStream(astiav.MediaTypeAudio, -1, -1)
	if err != nil {
		return fmt.Errorf("find best audio stream: %w", err)
	}
	if st == nil || codec == nil {
		return errors.New("no audio stream found")
	}
	d.stream = st

	d.decCtx = astiav.AllocCodecContext(codec)
	if d.decCtx == nil {
		return errors.New("alloc codec context")
	}
	if err := d.decCtx.FromCodecParameters(st.CodecParameters()); err != nil {
		return fmt.Errorf("codec from params: %w", err)
	}
	d.decCtx.SetTimeBase(st.TimeBase())
	if err := d.decCtx.Open(codec, nil); err != nil {
		return fmt.Errorf("open decoder: %w", err)
	}

	d.swr = astiav.AllocSoftwareResampleContext()
	if d.swr == nil {
		return errors.New("alloc swr")
	}
	d.srcFrame = astiav.AllocFrame()
	d.dstFrame = astiav.AllocFrame()
	if d.srcFrame == nil || d.dstFrame == nil {
		return errors.New("alloc frames")
	}
	return nil
}

func (d *pcmDecoder) free() {
	if d.srcFrame != nil {
		d.srcFrame.Free()
	}
	if d.dstFrame != nil {
		d.dstFrame.Free()
	}
	if d.swr != nil {
		d.swr.Free()
	}
	if d.decCtx != nil {
		d.decCtx.Free()
	}
	if d.fc != nil {
		d.fc.CloseInput()
		d.fc.Free()
	}
}

// Read returns decoded PCM bytes.
func (d *pcmDecoder) Read(p []byte) (int, error) { return d.pr.Read(p) }

func (d *pcmDecoder) Close() error {
	d.cancel()
	return d.pr.Close()
}

func (d *pcmDecoder) run(ctx context.Context) {
	err := d.decode(ctx)
	d.free()
	if err != nil && ctx.Err() == nil {
		slog.Debug("pcm decode stopped", "err", err)
		_ = d.pw.CloseWithError(err)
		return
	}
	_ = d.pw.Close()
}

func (d *pcmDecoder) decode(ctx context.Context) error {
	packet := astiav.AllocPacket()
	defer packet.Free()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		packet.Unref()
		if err := d.fc.ReadFrame(packet); err != nil {
			if errors.Is(err, astiav.ErrEof) {
				_ = d.decCtx.SendPacket(nil)
				return d.drainFrames()
			}
			if errors.Is(err, astiav.ErrEagain) {
				continue
			}
			return fmt.Errorf("read frame: %w", err)
		}

		if packet.StreamIndex() != d.stream.Index() {
			continue
		}

		if err := d.decCtx.SendPacket(packet); err != nil && !errors.Is(err, astiav.ErrEagain) {
			return fmt.Errorf("send packet: %w", err)
		}
		if err := d.drainFrames(); err != nil {
			return err
		}
	}
}

func (d *pcmDecoder) drainFrames() error {
	for {
		d.srcFrame.Unref()
		if err := d.decCtx.ReceiveFrame(d.srcFrame); err != nil {
			if errors.Is(err, astiav.ErrEagain) || errors.Is(err, astiav.ErrEof) {
				return nil
			}
			return fmt.Errorf("receive frame: %w", err)
		}
		if err := d.writePCM(d.srcFrame); err != nil {
			return err
		}
	}
}

func (d *pcmDecoder) writePCM(src *astiav.Frame) error {
	// Room for the resampled count plus whatever swr is still holding.
	nb := src.NbSamples()
	if rate := d.decCtx.SampleRate(); rate > 0 && rate != sampleRate {
		nb = nb*sampleRate/rate + 256
	}

	d.dstFrame.Unref()
	d.dstFrame.SetNbSamples(nb)
	d.dstFrame.SetChannelLayout(astiav.ChannelLayoutStereo)
	d.dstFrame.SetSampleRate(sampleRate)
	d.dstFrame.SetSampleFormat(astiav.SampleFormatS16)
	if err := d.dstFrame.AllocBuffer(0); err != nil {
		return fmt.Errorf("dst alloc buffer: %w", err)
	}
	if err := d.swr.ConvertFrame(src, d.dstFrame); err != nil {
		return fmt.Errorf("swr convert: %w", err)
	}

	b, err := d.dstFrame.Data().Bytes(0)
	if err != nil {
		return fmt.Errorf("dst bytes: %w", err)
	}
	_, err = d.pw.Write(b)
	return err
}
