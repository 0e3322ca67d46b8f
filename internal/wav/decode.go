package wav

import (
	"encoding/binary"
	"fmt"
	"math"
)

// stream is the result of walking the RIFF chunk list
type stream struct {
	header Header
	data   []byte
}

func decodeErrorf(format string, v ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrDecode, fmt.Sprintf(format, v...))
}

// parse walks the chunks of a RIFF/WAVE stream. fmt and data may appear in
// any order; unknown chunks are skipped. A data chunk whose declared size
// runs past the input (streaming writers leave it at 0 or 0xFFFFFFFF) is
// clipped to what is present.
func parse(data []byte) (*stream, error) {
	if len(data) < 12 {
		return nil, decodeErrorf("input too short (%d bytes)", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, decodeErrorf("not a RIFF/WAVE stream")
	}

	var (
		s       stream
		haveFmt bool
		pcm     []byte
		haveDat bool
	)

	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int64(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		end := int64(body) + size

		if end > int64(len(data)) {
			if id != "data" {
				return nil, decodeErrorf("chunk %q overruns input", id)
			}
			end = int64(len(data))
		}

		switch id {
		case "fmt ":
			if err := parseFormat(data[body:end], &s.header); err != nil {
				return nil, err
			}
			haveFmt = true
		case "data":
			if !haveDat {
				pcm = data[body:end]
				haveDat = true
			}
		}

		off = int(end)
		if size%2 == 1 {
			off++
		}
	}

	if !haveFmt {
		return nil, decodeErrorf("missing fmt chunk")
	}
	if !haveDat {
		return nil, decodeErrorf("missing data chunk")
	}

	if align := int(s.header.BlockAlign()); align > 0 {
		pcm = pcm[:len(pcm)-len(pcm)%align]
	}
	s.data = pcm
	s.header.DataSize = uint32(len(pcm))
	return &s, nil
}

func parseFormat(b []byte, h *Header) error {
	if len(b) < 16 {
		return decodeErrorf("fmt chunk too short (%d bytes)", len(b))
	}

	h.AudioFormat = binary.LittleEndian.Uint16(b[0:2])
	h.NumChannels = binary.LittleEndian.Uint16(b[2:4])
	h.SampleRate = binary.LittleEndian.Uint32(b[4:8])
	blockAlign := binary.LittleEndian.Uint16(b[12:14])
	h.BitsPerSample = binary.LittleEndian.Uint16(b[14:16])

	if h.AudioFormat == FormatExtensible {
		// cbSize(2) validBits(2) channelMask(4) subFormat GUID(16)
		if len(b) < 40 {
			return decodeErrorf("extensible fmt chunk too short (%d bytes)", len(b))
		}
		h.AudioFormat = binary.LittleEndian.Uint16(b[24:26])
	}

	if h.NumChannels == 0 {
		return decodeErrorf("zero channels")
	}
	if h.SampleRate == 0 {
		return decodeErrorf("zero sample rate")
	}

	switch {
	case h.AudioFormat == FormatPCM && (h.BitsPerSample == 8 || h.BitsPerSample == 16 ||
		h.BitsPerSample == 24 || h.BitsPerSample == 32):
	case h.AudioFormat == FormatFloat && (h.BitsPerSample == 32 || h.BitsPerSample == 64):
	default:
		return decodeErrorf("unsupported encoding (format %d, %d bits)", h.AudioFormat, h.BitsPerSample)
	}

	// computed in int: a uint16 product wraps for large channel counts
	if size := int(h.NumChannels) * int(h.BitsPerSample/8); size > math.MaxUint16 || size != int(blockAlign) {
		return decodeErrorf("block align %d does not match %d channels of %d bits",
			blockAlign, h.NumChannels, h.BitsPerSample)
	}
	return nil
}

// Info returns the header of a WAVE stream without decoding samples.
// DataSize counts whole frames actually present.
func Info(data []byte) (Header, error) {
	s, err := parse(data)
	if err != nil {
		return Header{}, err
	}
	return s.header, nil
}

// Decode reads a WAVE stream into per-channel float samples.
// Integer PCM of 8/16/24/32 bits and IEEE float of 32/64 bits are accepted.
func Decode(data []byte) (*Buffer, error) {
	s, err := parse(data)
	if err != nil {
		return nil, err
	}

	h := s.header
	channels := int(h.NumChannels)
	frames := h.FrameCount()
	width := int(h.BitsPerSample / 8)
	read := sampleReader(h)

	buf := &Buffer{
		SampleRate: int(h.SampleRate),
		Channels:   make([][]float32, channels),
	}
	for c := range buf.Channels {
		buf.Channels[c] = make([]float32, frames)
	}

	off := 0
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			buf.Channels[c][i] = read(s.data[off : off+width])
			off += width
		}
	}
	return buf, nil
}

// sampleReader returns the per-sample conversion for h's encoding
func sampleReader(h Header) func([]byte) float32 {
	if h.AudioFormat == FormatFloat {
		if h.BitsPerSample == 64 {
			return func(b []byte) float32 {
				return float32(math.Float64frombits(binary.LittleEndian.Uint64(b)))
			}
		}
		return func(b []byte) float32 {
			return math.Float32frombits(binary.LittleEndian.Uint32(b))
		}
	}

	switch h.BitsPerSample {
	case 8:
		// 8-bit PCM is unsigned with a 128 midpoint
		return func(b []byte) float32 {
			return float32(int(b[0])-128) / 128
		}
	case 24:
		return func(b []byte) float32 {
			v := int32(uint32(b[0])<<8|uint32(b[1])<<16|uint32(b[2])<<24) >> 8
			return float32(v) / (1 << 23)
		}
	case 32:
		return func(b []byte) float32 {
			return float32(float64(int32(binary.LittleEndian.Uint32(b))) / (1 << 31))
		}
	default:
		return func(b []byte) float32 {
			return float32(int16(binary.LittleEndian.Uint16(b))) / 32768
		}
	}
}
