package config

import (
	"os"
	"path/filepath"
	"testing"

	"pitch-shifter/internal/domain"
)

// TestDefaultSettings verifies baseline defaults are present.
func TestDefaultSettings(t *testing.T) {
	cfg := DefaultSettings()
	if cfg.FFmpegPath != "ffmpeg" {
		t.Fatalf("ffmpeg path = %q, want ffmpeg", cfg.FFmpegPath)
	}
	if cfg.FFprobePath != "ffprobe" {
		t.Fatalf("ffprobe path = %q, want ffprobe", cfg.FFprobePath)
	}
	if cfg.OutputDir == "" {
		t.Fatal("expected non-empty output dir")
	}
	if cfg.DefaultUnit != domain.ShiftUnitSemitones {
		t.Fatalf("default unit = %q, want semitones", cfg.DefaultUnit)
	}
	if cfg.SampleRate != 0 {
		t.Fatalf("default sample rate = %d, want keep-original", cfg.SampleRate)
	}
}

// TestJSONStoreLoadMissingReturnsDefaults checks first-run behavior.
func TestJSONStoreLoadMissingReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "settings.json")
	store := NewJSONStore(path)

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.FFmpegPath != "ffmpeg" {
		t.Fatalf("ffmpeg path = %q, want ffmpeg", got.FFmpegPath)
	}
}

// TestJSONStoreSaveAndLoadRoundTrip checks persisted settings fidelity.
func TestJSONStoreSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "settings.json")
	store := NewJSONStore(path)
	want := domain.Settings{
		FFmpegPath:   "/opt/ffmpeg/bin/ffmpeg",
		FFprobePath:  "/opt/ffmpeg/bin/ffprobe",
		OutputDir:    "/out",
		DefaultUnit:  domain.ShiftUnitTones,
		SampleRate:   48000,
		HistoryLimit: 20,
	}

	if err := store.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != want {
		t.Fatalf("settings = %+v, want %+v", got, want)
	}
}

// TestJSONStoreLoadFillsOmittedFields checks fallbacks for sparse files.
func TestJSONStoreLoadFillsOmittedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "settings.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(`{"outputDir":"/exports","sampleRate":22050}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := NewJSONStore(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.OutputDir != "/exports" {
		t.Fatalf("output dir = %q, want /exports", got.OutputDir)
	}
	if got.FFmpegPath != "ffmpeg" || got.FFprobePath != "ffprobe" {
		t.Fatalf("tool paths not defaulted: %+v", got)
	}
	if got.SampleRate != 0 {
		t.Fatalf("unsupported rate should reset to keep-original, got %d", got.SampleRate)
	}
	if got.DefaultUnit != domain.ShiftUnitSemitones {
		t.Fatalf("default unit = %q, want semitones", got.DefaultUnit)
	}
}

// TestJSONStoreLoadInvalidJSON checks parse error handling.
func TestJSONStoreLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "settings.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("{not-json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	store := NewJSONStore(path)
	if _, err := store.Load(); err == nil {
		t.Fatal("expected json parse error")
	}
}
