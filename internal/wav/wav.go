// Package wav reads RIFF/WAVE audio and writes the canonical 44-byte-header
// PCM16 container.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/yok-tottii/voicememo/internal/audio"
)

// ErrDecode is returned for input that is not a recognized audio stream.
var ErrDecode = errors.New("decode error")

const (
	// HeaderSize is the size of the canonical header
	HeaderSize = 44

	// FormatPCM is WAVE_FORMAT_PCM
	FormatPCM uint16 = 1
	// FormatFloat is WAVE_FORMAT_IEEE_FLOAT
	FormatFloat uint16 = 3
	// FormatExtensible is WAVE_FORMAT_EXTENSIBLE
	FormatExtensible uint16 = 0xFFFE

	// maxDataSize keeps ChunkSize (36 + dataSize) within uint32
	maxDataSize = math.MaxUint32 - 36
)

// Header describes a WAVE stream.
type Header struct {
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	BitsPerSample uint16
	DataSize      uint32
}

// ChunkSize is the RIFF chunk size for the canonical layout
func (h Header) ChunkSize() uint32 {
	return 36 + h.DataSize
}

// BlockAlign is the size in bytes of one frame
func (h Header) BlockAlign() uint16 {
	return h.NumChannels * (h.BitsPerSample / 8)
}

// ByteRate is the number of bytes per second of audio
func (h Header) ByteRate() uint32 {
	return h.SampleRate * uint32(h.BlockAlign())
}

// FrameCount is the number of whole frames in the data chunk
func (h Header) FrameCount() int {
	if h.BlockAlign() == 0 {
		return 0
	}
	return int(h.DataSize) / int(h.BlockAlign())
}

// Duration of the data chunk
func (h Header) Duration() time.Duration {
	if h.SampleRate == 0 {
		return 0
	}
	return time.Duration(h.FrameCount()) * time.Second / time.Duration(h.SampleRate)
}

// MarshalBinary returns the 44-byte canonical header
func (h Header) MarshalBinary() ([]byte, error) {
	b := make([]byte, HeaderSize)
	format := h.AudioFormat
	if format == 0 {
		format = FormatPCM
	}

	copy(b[0:4], "RIFF")
	binary.LittleEndian.PutUint32(b[4:8], h.ChunkSize())
	copy(b[8:12], "WAVE")

	copy(b[12:16], "fmt ")
	binary.LittleEndian.PutUint32(b[16:20], 16)
	binary.LittleEndian.PutUint16(b[20:22], format)
	binary.LittleEndian.PutUint16(b[22:24], h.NumChannels)
	binary.LittleEndian.PutUint32(b[24:28], h.SampleRate)
	binary.LittleEndian.PutUint32(b[28:32], h.ByteRate())
	binary.LittleEndian.PutUint16(b[32:34], h.BlockAlign())
	binary.LittleEndian.PutUint16(b[34:36], h.BitsPerSample)

	copy(b[36:40], "data")
	binary.LittleEndian.PutUint32(b[40:44], h.DataSize)
	return b, nil
}

// pcm16Header builds the header for channels×PCM16 data of dataSize bytes
func pcm16Header(channels, sampleRate, dataSize int) (Header, error) {
	if channels <= 0 || channels > math.MaxUint16/2 {
		return Header{}, fmt.Errorf("invalid channel count: %d", channels)
	}
	if sampleRate <= 0 || uint64(sampleRate)*uint64(channels)*2 > math.MaxUint32 {
		return Header{}, fmt.Errorf("invalid sample rate: %d", sampleRate)
	}
	if dataSize < 0 || uint64(dataSize) > maxDataSize {
		return Header{}, fmt.Errorf("data size %d exceeds container limit", dataSize)
	}

	return Header{
		AudioFormat:   FormatPCM,
		NumChannels:   uint16(channels),
		SampleRate:    uint32(sampleRate),
		BitsPerSample: 16,
		DataSize:      uint32(dataSize),
	}, nil
}

// WriteHeader writes the canonical PCM16 header for dataSize bytes of samples
func WriteHeader(w io.Writer, channels, sampleRate, dataSize int) error {
	h, err := pcm16Header(channels, sampleRate, dataSize)
	if err != nil {
		return err
	}

	b, _ := h.MarshalBinary()
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	return nil
}

// FloatToPCM16 converts one sample. The value is clamped to [-1, 1], then
// negative values scale by 0x8000 and the rest by 0x7FFF, truncating toward
// zero. NaN maps to 0.
func FloatToPCM16(v float32) int16 {
	s := float64(v)
	if math.IsNaN(s) {
		return 0
	}
	s = math.Max(-1, math.Min(1, s))
	if s < 0 {
		return int16(s * 0x8000)
	}
	return int16(s * 0x7FFF)
}

// EncodeInterleaved writes interleaved float samples as a complete container.
// A trailing partial frame is dropped.
func EncodeInterleaved(samples []float32, channels, sampleRate int) ([]byte, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("invalid channel count: %d", channels)
	}
	n := len(samples) - len(samples)%channels

	h, err := pcm16Header(channels, sampleRate, n*2)
	if err != nil {
		return nil, err
	}

	out := make([]byte, HeaderSize+n*2)
	b, _ := h.MarshalBinary()
	copy(out, b)

	offset := HeaderSize
	for _, v := range samples[:n] {
		binary.LittleEndian.PutUint16(out[offset:], uint16(FloatToPCM16(v)))
		offset += 2
	}
	return out, nil
}

// Encode writes buf as a PCM16 container
func Encode(buf *Buffer) ([]byte, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}
	return EncodeInterleaved(buf.Interleave(), buf.NumChannels(), buf.SampleRate)
}

// FramePCM16 wraps raw little-endian PCM16 bytes in the canonical header.
// Its signature matches recording.Finalizer.
func FramePCM16(format audio.Format, pcm []byte) ([]byte, error) {
	align := format.BlockAlign()
	if align <= 0 {
		return nil, fmt.Errorf("invalid channel count: %d", format.Channels)
	}
	n := len(pcm) - len(pcm)%align

	h, err := pcm16Header(format.Channels, format.SampleRate, n)
	if err != nil {
		return nil, err
	}

	out := make([]byte, HeaderSize+n)
	b, _ := h.MarshalBinary()
	copy(out, b)
	copy(out[HeaderSize:], pcm[:n])
	return out, nil
}
