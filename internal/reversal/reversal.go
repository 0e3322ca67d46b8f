// Package reversal turns an encoded recording into a time-reversed PCM16 WAV.
package reversal

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/yok-tottii/voicememo/internal/logger"
	"github.com/yok-tottii/voicememo/internal/wav"
)

// ErrDecode is returned when the input is not a recognized audio stream
var ErrDecode = wav.ErrDecode

// Decoder turns encoded bytes into per-channel samples
type Decoder interface {
	Decode(ctx context.Context, data []byte) (*wav.Buffer, error)
}

// DecoderFunc adapts a function to Decoder
type DecoderFunc func(ctx context.Context, data []byte) (*wav.Buffer, error)

// Decode calls f
func (f DecoderFunc) Decode(ctx context.Context, data []byte) (*wav.Buffer, error) {
	return f(ctx, data)
}

// WAVDecoder decodes RIFF/WAVE input
type WAVDecoder struct{}

// Decode implements Decoder
func (WAVDecoder) Decode(ctx context.Context, data []byte) (*wav.Buffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return wav.Decode(data)
}

// Codec reverses recordings. It keeps no state between calls.
type Codec struct {
	decoder Decoder
	log     *logger.Logger
}

// New creates a codec; a nil decoder means WAVDecoder
func New(decoder Decoder, log *logger.Logger) *Codec {
	if decoder == nil {
		decoder = WAVDecoder{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Codec{decoder: decoder, log: log}
}

// Reverse decodes data, reverses every channel and encodes the result as
// PCM16 WAV with the same sample rate, channel count and frame count.
// Nothing is returned on failure.
func (c *Codec) Reverse(ctx context.Context, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buf, err := c.decoder.Decode(ctx, data)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if !errors.Is(err, ErrDecode) {
			err = fmt.Errorf("%w: %w", ErrDecode, err)
		}
		c.log.Warn("reverse: decode failed for %d bytes: %v", len(data), err)
		return nil, err
	}

	if err := buf.Validate(); err != nil {
		c.log.Warn("reverse: decoder returned unusable buffer: %v", err)
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ReverseChannels(buf)

	out, err := wav.Encode(buf)
	if err != nil {
		return nil, fmt.Errorf("failed to encode reversed audio: %w", err)
	}

	c.log.Debug("reverse: %d channels, %d frames at %d Hz (%v)",
		buf.NumChannels(), buf.FrameCount(), buf.SampleRate, buf.Duration())
	return out, nil
}

// ReverseChannels reverses each channel's sample order in place
func ReverseChannels(buf *wav.Buffer) {
	for _, ch := range buf.Channels {
		slices.Reverse(ch)
	}
}
