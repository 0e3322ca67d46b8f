package wav

import (
	"fmt"
	"time"
)

// Buffer is decoded audio: one float sample slice per channel, all of equal
// length. Samples are nominally in [-1, 1].
type Buffer struct {
	SampleRate int
	Channels   [][]float32
}

// NumChannels returns the channel count
func (b *Buffer) NumChannels() int {
	return len(b.Channels)
}

// FrameCount returns the per-channel sample count
func (b *Buffer) FrameCount() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration returns FrameCount / SampleRate
func (b *Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.FrameCount()) * time.Second / time.Duration(b.SampleRate)
}

// Validate checks the buffer is encodable
func (b *Buffer) Validate() error {
	if b == nil {
		return fmt.Errorf("%w: nil buffer", ErrDecode)
	}
	if b.SampleRate <= 0 {
		return fmt.Errorf("%w: invalid sample rate %d", ErrDecode, b.SampleRate)
	}
	if len(b.Channels) == 0 {
		return fmt.Errorf("%w: no channels", ErrDecode)
	}

	frames := len(b.Channels[0])
	for i, ch := range b.Channels[1:] {
		if len(ch) != frames {
			return fmt.Errorf("%w: channel %d has %d frames, channel 0 has %d", ErrDecode, i+1, len(ch), frames)
		}
	}
	return nil
}

// Interleave flattens the channels frame-major:
// out[i*channels+c] = Channels[c][i].
func (b *Buffer) Interleave() []float32 {
	channels := b.NumChannels()
	frames := b.FrameCount()
	out := make([]float32, frames*channels)

	for c, data := range b.Channels {
		for i := 0; i < frames; i++ {
			out[i*channels+c] = data[i]
		}
	}
	return out
}
