package audio

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

// TestLoadWAVKeepOriginalRate checks that rate 0 never changes the buffer rate.
func TestLoadWAVKeepOriginalRate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	in := sineBuffer(t, 1, 44100, 44100, 220)
	if err := WriteWAVFile(path, in); err != nil {
		t.Fatalf("WriteWAVFile error = %v", err)
	}

	out, err := LoadWAV(path, 0)
	if err != nil {
		t.Fatalf("LoadWAV error = %v", err)
	}
	if out.SampleRate != 44100 {
		t.Fatalf("sample rate = %d, want 44100", out.SampleRate)
	}
	if out.Frames() != 44100 {
		t.Fatalf("frames = %d, want 44100", out.Frames())
	}
}

// TestLoadWAVResamplesToFixedTargets checks each fixed target yields its rate.
func TestLoadWAVResamplesToFixedTargets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	in := sineBuffer(t, 2, 44100, 44100, 220)
	if err := WriteWAVFile(path, in); err != nil {
		t.Fatalf("WriteWAVFile error = %v", err)
	}

	for _, target := range []int{44100, 48000, 96000} {
		out, err := LoadWAV(path, target)
		if err != nil {
			t.Fatalf("LoadWAV(%d) error = %v", target, err)
		}
		if out.SampleRate != target {
			t.Fatalf("sample rate = %d, want %d", out.SampleRate, target)
		}
		if err := out.Validate(); err != nil {
			t.Fatalf("buffer invariant after resample to %d: %v", target, err)
		}

		wantFrames := float64(in.Frames()) * float64(target) / 44100.0
		if math.Abs(float64(out.Frames())-wantFrames) > wantFrames*0.01+2 {
			t.Fatalf("frames = %d, want about %.0f", out.Frames(), wantFrames)
		}
	}
}

// TestLoadWAVMissingFile checks unreadable files surface an error.
func TestLoadWAVMissingFile(t *testing.T) {
	if _, err := LoadWAV(filepath.Join(t.TempDir(), "nope.wav"), 0); err == nil {
		t.Fatal("expected error for missing file")
	}
}

// TestLoadWAVCorruptFile checks malformed audio fails decoding.
func TestLoadWAVCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.wav")
	if err := os.WriteFile(path, []byte("RIFF????WAVEgarbage"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadWAV(path, 0); err == nil {
		t.Fatal("expected decode error")
	}
}

// TestResampleSameRateIsIdentity checks an explicit matching target is a no-op.
func TestResampleSameRateIsIdentity(t *testing.T) {
	in := sineBuffer(t, 1, 1000, 48000, 440)
	out, err := Resample(in, 48000)
	if err != nil {
		t.Fatalf("Resample error = %v", err)
	}
	if out != in {
		t.Fatal("expected the same buffer back for a matching rate")
	}
}
