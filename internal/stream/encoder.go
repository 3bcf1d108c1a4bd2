package stream

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/asticode/go-astiav"
)

// Encoder turns 20 ms s16le stereo PCM frames into opus packets with libopus.
type Encoder struct {
	cc     *astiav.CodecContext
	frame  *astiav.Frame
	packet *astiav.Packet
}

func NewEncoder() (*Encoder, error) {
	codec := astiav.FindEncoderByName("libopus")
	if codec == nil {
		return nil, errors.New("libopus encoder not found (check ffmpeg installation)")
	}

	cc := astiav.AllocCodecContext(codec)
	if cc == nil {
		return nil, errors.New("alloc codec context for libopus")
	}
	cc.SetSampleRate(sampleRate)
	cc.SetChannelLayout(astiav.ChannelLayoutStereo)
	cc.SetSampleFormat(astiav.SampleFormatS16)
	cc.SetBitRate(160_000)

	opts := astiav.NewDictionary()
	defer opts.Free()
	_ = opts.Set("frame_duration", "20", 0)
	_ = opts.Set("application", "audio", 0)

	if err := cc.Open(codec, opts); err != nil {
		cc.Free()
		return nil, fmt.Errorf("open opus encoder: %w", err)
	}

	frame := astiav.AllocFrame()
	if frame == nil {
		cc.Free()
		return nil, errors.New("alloc encoder frame")
	}
	frame.SetSampleRate(sampleRate)
	frame.SetChannelLayout(astiav.ChannelLayoutStereo)
	frame.SetSampleFormat(astiav.SampleFormatS16)
	frame.SetNbSamples(frameSize)
	if err := frame.AllocBuffer(0); err != nil {
		frame.Free()
		cc.Free()
		return nil, fmt.Errorf("alloc frame buffer: %w", err)
	}

	pkt := astiav.AllocPacket()
	if pkt == nil {
		frame.Free()
		cc.Free()
		return nil, errors.New("alloc encoder packet")
	}
	slog.Debug("opus encoder ready", "bitrate", cc.BitRate())

	return &Encoder{cc: cc, frame: frame, packet: pkt}, nil
}

func (e *Encoder) Close() {
	e.packet.Free()
	e.frame.Free()
	e.cc.Free()
}

// Encode consumes exactly one frame of PCM and returns the packets the
// encoder emitted for it, usually one.
func (e *Encoder) Encode(pcm []byte) ([][]byte, error) {
	if len(pcm) != frameBytes {
		return nil, fmt.Errorf("invalid PCM frame size: want %d bytes, got %d", frameBytes, len(pcm))
	}
	if err := e.frame.Data().SetBytes(pcm, 0); err != nil {
		return nil, fmt.Errorf("set frame bytes: %w", err)
	}
	if err := e.cc.SendFrame(e.frame); err != nil {
		return nil, fmt.Errorf("send frame to encoder: %w", err)
	}
	return e.receive()
}

// Flush drains packets still buffered inside the encoder.
func (e *Encoder) Flush() ([][]byte, error) {
	if err := e.cc.SendFrame(nil); err != nil && !errors.Is(err, astiav.ErrEof) {
		return nil, fmt.Errorf("send flush frame: %w", err)
	}
	return e.receive()
}

func (e *Encoder) receive() ([][]byte, error) {
	var out [][]byte
	for {
		e.packet.Unref()
		if err := e.cc.ReceivePacket(e.packet); err != nil {
			if errors.Is(err, astiav.ErrEagain) || errors.Is(err, astiav.ErrEof) {
				return out, nil
			}
			return out, fmt.Errorf("receive opus packet: %w", err)
		}
		out = append(out, append([]byte(nil), e.packet.Data()...))
	}
}
