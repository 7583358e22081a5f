package shift

import (
	"fmt"
	"math"
	"sync"

	"github.com/cwbudde/algo-dsp/dsp/effects/pitch"

	"pitch-shifter/internal/audio"
)

// minAnalysisMs is the shortest input the shifting routine is fed, covering
// its analysis sequence and seek windows. Shorter channels are padded with
// trailing silence and the output is truncated back to the original length.
const minAnalysisMs = 120.0

// ChannelError reports a failure while shifting one channel.
type ChannelError struct {
	Channel int
	Err     error
}

// Error formats the channel index with the underlying cause.
func (e *ChannelError) Error() string {
	return fmt.Sprintf("channel %d: %v", e.Channel, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *ChannelError) Unwrap() error {
	return e.Err
}

// MinWindow returns the minimum sample count fed to the routine at a rate.
func MinWindow(sampleRate int) int {
	return int(math.Ceil(minAnalysisMs / 1000.0 * float64(sampleRate)))
}

// Apply pitch-shifts every channel of buf in place by the given number of
// semitones. A shift of exactly 0 still passes through the routine so the
// behavior stays uniform. Channels are independent and processed in
// parallel; each one is replaced by an equal-length shifted signal.
func Apply(buf *audio.Buffer, semitones float64) error {
	if err := buf.Validate(); err != nil {
		return err
	}

	// Validate rate and shift amount once before fanning out.
	probe, err := pitch.NewPitchShifter(float64(buf.SampleRate))
	if err != nil {
		return err
	}
	if err := probe.SetPitchSemitones(semitones); err != nil {
		return err
	}

	errs := make([]error, buf.NumChannels())
	var wg sync.WaitGroup
	for i := range buf.Channels {
		wg.Add(1)
		go func(ch int) {
			defer wg.Done()
			errs[ch] = shiftChannel(buf, ch, semitones)
		}(i)
	}
	wg.Wait()

	for ch, err := range errs {
		if err != nil {
			return &ChannelError{Channel: ch, Err: err}
		}
	}
	return nil
}

// shiftChannel shifts one channel, padding short inputs to the minimum
// analysis window and truncating the output to the original sample count.
func shiftChannel(buf *audio.Buffer, ch int, semitones float64) error {
	samples := buf.Channels[ch]
	origLen := len(samples)
	if origLen == 0 {
		return nil
	}
	if err := checkFinite(samples); err != nil {
		return err
	}

	input := samples
	if minLen := MinWindow(buf.SampleRate); origLen < minLen {
		input = make([]float64, minLen)
		copy(input, samples)
	}

	// The routine is mono and stateful, so every channel gets its own instance.
	shifter, err := pitch.NewPitchShifter(float64(buf.SampleRate))
	if err != nil {
		return err
	}
	if err := shifter.SetPitchSemitones(semitones); err != nil {
		return err
	}

	out := shifter.Process(input)
	if len(out) < origLen {
		return fmt.Errorf("routine returned %d samples, need %d", len(out), origLen)
	}

	buf.Channels[ch] = out[:origLen]
	return nil
}

// checkFinite rejects NaN/Inf samples before they reach the routine.
func checkFinite(samples []float64) error {
	for i, v := range samples {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite sample at index %d", i)
		}
	}
	return nil
}
