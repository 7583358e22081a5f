package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// The pipeline only ever parses PCM WAV that ffmpeg or this package produced,
// so the codec below sticks to canonical little-endian RIFF: integer PCM
// (16/24/32 bit) and IEEE float (32/64 bit) in, 16-bit PCM out.

const (
	waveFormatPCM        = 1
	waveFormatIEEEFloat  = 3
	waveFormatExtensible = 0xFFFE
)

type wavFormat struct {
	audioFormat   uint16
	numChannels   uint16
	sampleRate    uint32
	bitsPerSample uint16
}

// DecodeWAV parses a RIFF/WAVE stream into a multi-channel buffer.
func DecodeWAV(r io.Reader) (*Buffer, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, fmt.Errorf("read riff header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a RIFF/WAVE stream")
	}

	var format *wavFormat
	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil, fmt.Errorf("wav stream has no data chunk")
			}
			return nil, fmt.Errorf("read chunk header: %w", err)
		}

		id := string(chunk[0:4])
		size := binary.LittleEndian.Uint32(chunk[4:8])

		switch id {
		case "fmt ":
			fmtBody := make([]byte, size)
			if _, err := io.ReadFull(r, fmtBody); err != nil {
				return nil, fmt.Errorf("read fmt chunk: %w", err)
			}
			if size%2 == 1 {
				if err := skipBytes(r, 1); err != nil {
					return nil, err
				}
			}
			parsed, err := parseFormatChunk(fmtBody)
			if err != nil {
				return nil, err
			}
			format = parsed
		case "data":
			if format == nil {
				return nil, fmt.Errorf("wav data chunk precedes fmt chunk")
			}
			return decodeDataChunk(r, format, int(size))
		default:
			skip := int64(size)
			if size%2 == 1 {
				skip++
			}
			if err := skipBytes(r, skip); err != nil {
				return nil, err
			}
		}
	}
}

// parseFormatChunk extracts the fields the decoder needs from fmt bytes.
func parseFormatChunk(body []byte) (*wavFormat, error) {
	if len(body) < 16 {
		return nil, fmt.Errorf("fmt chunk too short: %d bytes", len(body))
	}

	f := &wavFormat{
		audioFormat:   binary.LittleEndian.Uint16(body[0:2]),
		numChannels:   binary.LittleEndian.Uint16(body[2:4]),
		sampleRate:    binary.LittleEndian.Uint32(body[4:8]),
		bitsPerSample: binary.LittleEndian.Uint16(body[14:16]),
	}

	// WAVE_FORMAT_EXTENSIBLE carries the real format tag in the extension.
	if f.audioFormat == waveFormatExtensible {
		if len(body) < 26 {
			return nil, fmt.Errorf("extensible fmt chunk too short: %d bytes", len(body))
		}
		f.audioFormat = binary.LittleEndian.Uint16(body[24:26])
	}

	if f.numChannels == 0 {
		return nil, fmt.Errorf("wav declares zero channels")
	}
	if f.sampleRate == 0 {
		return nil, fmt.Errorf("wav declares zero sample rate")
	}

	switch f.audioFormat {
	case waveFormatPCM:
		if f.bitsPerSample != 16 && f.bitsPerSample != 24 && f.bitsPerSample != 32 {
			return nil, fmt.Errorf("unsupported pcm bit depth: %d", f.bitsPerSample)
		}
	case waveFormatIEEEFloat:
		if f.bitsPerSample != 32 && f.bitsPerSample != 64 {
			return nil, fmt.Errorf("unsupported float bit depth: %d", f.bitsPerSample)
		}
	default:
		return nil, fmt.Errorf("unsupported wav encoding: format tag %d", f.audioFormat)
	}

	return f, nil
}

// decodeDataChunk converts interleaved frames to per-channel float samples.
func decodeDataChunk(r io.Reader, f *wavFormat, size int) (*Buffer, error) {
	bytesPerSample := int(f.bitsPerSample) / 8
	frameSize := bytesPerSample * int(f.numChannels)
	if frameSize == 0 {
		return nil, fmt.Errorf("wav frame size is zero")
	}
	frames := size / frameSize

	raw := make([]byte, frames*frameSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("read sample data: %w", err)
	}

	buf := NewBuffer(int(f.numChannels), frames, int(f.sampleRate))
	pos := 0
	for frame := 0; frame < frames; frame++ {
		for ch := 0; ch < int(f.numChannels); ch++ {
			buf.Channels[ch][frame] = decodeSample(raw[pos:pos+bytesPerSample], f.audioFormat)
			pos += bytesPerSample
		}
	}
	return buf, nil
}

// decodeSample converts one little-endian sample to a float in [-1, 1].
func decodeSample(b []byte, format uint16) float64 {
	if format == waveFormatIEEEFloat {
		if len(b) == 4 {
			return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	}

	switch len(b) {
	case 2:
		return float64(int16(binary.LittleEndian.Uint16(b))) / 32768.0
	case 3:
		v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
		if v&0x800000 != 0 {
			v -= 1 << 24
		}
		return float64(v) / 8388608.0
	default:
		return float64(int32(binary.LittleEndian.Uint32(b))) / 2147483648.0
	}
}

// EncodeWAV writes the buffer as canonical 16-bit PCM WAV.
func EncodeWAV(w io.Writer, b *Buffer) error {
	if err := b.Validate(); err != nil {
		return err
	}

	channels := b.NumChannels()
	frames := b.Frames()
	dataSize := frames * channels * 2
	blockAlign := channels * 2

	header := make([]byte, 44)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+dataSize))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], waveFormatPCM)
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(b.SampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(b.SampleRate*blockAlign))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], 16)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataSize))

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("write wav header: %w", err)
	}

	data := make([]byte, dataSize)
	pos := 0
	for frame := 0; frame < frames; frame++ {
		for ch := 0; ch < channels; ch++ {
			binary.LittleEndian.PutUint16(data[pos:pos+2], uint16(clampToInt16(b.Channels[ch][frame])))
			pos += 2
		}
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write wav data: %w", err)
	}
	return nil
}

// clampToInt16 scales and clips a float sample to signed 16-bit range.
func clampToInt16(v float64) int16 {
	scaled := v * 32767.0
	if scaled > 32767 {
		return 32767
	}
	if scaled < -32768 {
		return -32768
	}
	return int16(math.Round(scaled))
}

// skipBytes discards n bytes from r.
func skipBytes(r io.Reader, n int64) error {
	if _, err := io.CopyN(io.Discard, r, n); err != nil {
		return fmt.Errorf("skip chunk: %w", err)
	}
	return nil
}
