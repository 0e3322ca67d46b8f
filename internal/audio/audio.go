package audio

import (
	"errors"
)

// ErrCaptureUnavailable is returned when the input device cannot be acquired
// (permission denied, no device, device already held by another session).
var ErrCaptureUnavailable = errors.New("capture device unavailable")

// Device represents an audio input device
type Device struct {
	ID                int     `json:"id"`
	Name              string  `json:"name"`
	IsDefault         bool    `json:"is_default"`
	MaxInputChannels  int     `json:"max_input_channels"`
	DefaultSampleRate float64 `json:"default_sample_rate"`
}

// LatencyMode defines the latency priority
type LatencyMode int

const (
	// LowLatency prioritizes low latency (real-time)
	LowLatency LatencyMode = iota
	// HighStability prioritizes stability (larger buffer)
	HighStability
)

// String returns the config-file spelling of the latency mode
func (m LatencyMode) String() string {
	switch m {
	case LowLatency:
		return "low"
	case HighStability:
		return "high"
	default:
		return "unknown"
	}
}

// Config holds audio configuration
type Config struct {
	DeviceID        int
	SampleRate      int
	Channels        int
	FramesPerBuffer int
	Latency         LatencyMode
}

// DefaultConfig returns the default audio configuration
// Sample rate: 44.1kHz
// Channels: 1 (mono)
// Latency: HighStability
func DefaultConfig() Config {
	return Config{
		DeviceID:        -1, // -1 means use default device
		SampleRate:      44100,
		Channels:        1,
		FramesPerBuffer: 1024,
		Latency:         HighStability,
	}
}

// Format describes an interleaved signed 16-bit PCM stream.
type Format struct {
	SampleRate int
	Channels   int
}

// BlockAlign returns the size in bytes of one frame.
func (f Format) BlockAlign() int {
	return f.Channels * 2
}

// Sink receives data from an acquired stream while it is running.
//
// OnChunk gets an owned copy of each captured buffer as little-endian PCM16.
// OnFrames gets the raw interleaved samples of the same buffer; the slice is
// only valid for the duration of the call.
type Sink struct {
	OnChunk  func(chunk []byte)
	OnFrames func(frames []int16)
}

// Stream is an exclusive lease on an input device.
type Stream interface {
	// Format returns the PCM format of delivered chunks
	Format() Format

	// Start begins delivering data to the sink
	Start() error

	// Pause suspends delivery without releasing the device
	Pause() error

	// Resume continues delivery after Pause
	Resume() error

	// Close stops delivery and physically releases the device
	Close() error
}

// CaptureDevice hands out capture streams.
// Acquire failures wrap ErrCaptureUnavailable.
type CaptureDevice interface {
	Acquire(sink Sink) (Stream, error)
}

// Lister enumerates input devices
type Lister interface {
	ListDevices() ([]Device, error)
}

// PCM16Bytes converts samples to little-endian bytes
func PCM16Bytes(samples []int16) []byte {
	data := make([]byte, len(samples)*2)
	for i, sample := range samples {
		data[i*2] = byte(sample)
		data[i*2+1] = byte(sample >> 8)
	}
	return data
}
