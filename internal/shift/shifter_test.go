package shift

import (
	"errors"
	"math"
	"testing"

	"pitch-shifter/internal/audio"
)

// toneBuffer builds a sine test buffer.
func toneBuffer(t *testing.T, channels, frames, rate int, freq float64) *audio.Buffer {
	t.Helper()
	buf := audio.NewBuffer(channels, frames, rate)
	for ch := range buf.Channels {
		for i := range buf.Channels[ch] {
			buf.Channels[ch][i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
		}
	}
	return buf
}

// TestApplyPreservesShape checks length, channel count, and rate survive.
func TestApplyPreservesShape(t *testing.T) {
	buf := toneBuffer(t, 2, 44100, 44100, 440)

	if err := Apply(buf, 4); err != nil {
		t.Fatalf("Apply error = %v", err)
	}
	if buf.NumChannels() != 2 {
		t.Fatalf("channels = %d, want 2", buf.NumChannels())
	}
	if buf.Frames() != 44100 {
		t.Fatalf("frames = %d, want 44100", buf.Frames())
	}
	if buf.SampleRate != 44100 {
		t.Fatalf("rate = %d, want 44100", buf.SampleRate)
	}
	if err := buf.Validate(); err != nil {
		t.Fatalf("invariant after shift: %v", err)
	}
}

// TestApplyZeroShiftIsNearIdentity checks 0 semitones still runs the routine
// and reproduces the input within tolerance.
func TestApplyZeroShiftIsNearIdentity(t *testing.T) {
	buf := toneBuffer(t, 1, 22050, 44100, 440)
	want := buf.Clone()

	if err := Apply(buf, 0); err != nil {
		t.Fatalf("Apply error = %v", err)
	}

	for i := range want.Channels[0] {
		if diff := math.Abs(buf.Channels[0][i] - want.Channels[0][i]); diff > 1e-9 {
			t.Fatalf("sample %d drifted by %g", i, diff)
		}
	}
}

// TestApplyChannelIndependence checks a stereo shift equals two mono shifts.
func TestApplyChannelIndependence(t *testing.T) {
	stereo := audio.NewBuffer(2, 44100, 44100)
	for i := range stereo.Channels[0] {
		stereo.Channels[0][i] = 0.5 * math.Sin(2*math.Pi*330*float64(i)/44100.0)
		stereo.Channels[1][i] = 0.4 * math.Sin(2*math.Pi*550*float64(i)/44100.0)
	}

	left := &audio.Buffer{Channels: [][]float64{append([]float64(nil), stereo.Channels[0]...)}, SampleRate: 44100}
	right := &audio.Buffer{Channels: [][]float64{append([]float64(nil), stereo.Channels[1]...)}, SampleRate: 44100}

	if err := Apply(stereo, -3); err != nil {
		t.Fatalf("stereo Apply error = %v", err)
	}
	if err := Apply(left, -3); err != nil {
		t.Fatalf("left Apply error = %v", err)
	}
	if err := Apply(right, -3); err != nil {
		t.Fatalf("right Apply error = %v", err)
	}

	assertSameSamples(t, stereo.Channels[0], left.Channels[0])
	assertSameSamples(t, stereo.Channels[1], right.Channels[0])
}

// TestApplyShortInputKeepsLength pins the pad-then-truncate boundary for
// inputs below one analysis window.
func TestApplyShortInputKeepsLength(t *testing.T) {
	for _, frames := range []int{1, 64, 1000, MinWindow(44100) - 1, MinWindow(44100)} {
		buf := toneBuffer(t, 1, frames, 44100, 440)
		if err := Apply(buf, 7); err != nil {
			t.Fatalf("Apply(%d frames) error = %v", frames, err)
		}
		if buf.Frames() != frames {
			t.Fatalf("frames = %d, want %d", buf.Frames(), frames)
		}
	}
}

// TestApplyRejectsNaNChannel checks pathological input reports its channel.
func TestApplyRejectsNaNChannel(t *testing.T) {
	buf := toneBuffer(t, 2, 4096, 44100, 440)
	buf.Channels[1][17] = math.NaN()

	err := Apply(buf, 2)
	var chErr *ChannelError
	if !errors.As(err, &chErr) {
		t.Fatalf("error = %v, want ChannelError", err)
	}
	if chErr.Channel != 1 {
		t.Fatalf("channel = %d, want 1", chErr.Channel)
	}
}

// TestApplyRejectsOutOfRangeShift checks the routine's ratio bounds propagate.
func TestApplyRejectsOutOfRangeShift(t *testing.T) {
	buf := toneBuffer(t, 1, 4096, 44100, 440)
	if err := Apply(buf, 60); err == nil {
		t.Fatal("expected out-of-range shift error")
	}
}

// TestMinWindowScalesWithRate checks the padding threshold tracks the rate.
func TestMinWindowScalesWithRate(t *testing.T) {
	if MinWindow(44100) >= MinWindow(96000) {
		t.Fatalf("window at 44100 = %d, at 96000 = %d", MinWindow(44100), MinWindow(96000))
	}
	if MinWindow(44100) <= 0 {
		t.Fatal("window must be positive")
	}
}

// assertSameSamples compares two sample slices exactly.
func assertSameSamples(t *testing.T, got, want []float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d = %g, want %g", i, got[i], want[i])
		}
	}
}
