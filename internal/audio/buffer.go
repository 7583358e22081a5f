package audio

import (
	"fmt"
	"time"
)

// Buffer holds multi-channel float samples at a single sample rate.
// Every channel has equal length; samples are nominally in [-1, 1].
type Buffer struct {
	Channels   [][]float64
	SampleRate int
}

// NewBuffer allocates a zeroed buffer with the given shape.
func NewBuffer(channels, frames, sampleRate int) *Buffer {
	chans := make([][]float64, channels)
	for i := range chans {
		chans[i] = make([]float64, frames)
	}
	return &Buffer{Channels: chans, SampleRate: sampleRate}
}

// NumChannels returns the channel count.
func (b *Buffer) NumChannels() int {
	return len(b.Channels)
}

// Frames returns the per-channel sample count.
func (b *Buffer) Frames() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration returns the playback length at the declared sample rate.
func (b *Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(b.Frames()) / float64(b.SampleRate) * float64(time.Second))
}

// Validate enforces the buffer invariants shared by all pipeline stages.
func (b *Buffer) Validate() error {
	if len(b.Channels) == 0 {
		return fmt.Errorf("buffer has no channels")
	}
	if b.SampleRate <= 0 {
		return fmt.Errorf("buffer sample rate must be positive: %d", b.SampleRate)
	}
	frames := len(b.Channels[0])
	for i, ch := range b.Channels {
		if len(ch) != frames {
			return fmt.Errorf("channel %d has %d samples, channel 0 has %d", i, len(ch), frames)
		}
	}
	return nil
}

// Clone returns a deep copy sharing no sample storage.
func (b *Buffer) Clone() *Buffer {
	out := &Buffer{
		Channels:   make([][]float64, len(b.Channels)),
		SampleRate: b.SampleRate,
	}
	for i, ch := range b.Channels {
		out.Channels[i] = append([]float64(nil), ch...)
	}
	return out
}
