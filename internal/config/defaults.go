package config

import (
	"os"
	"path/filepath"

	"pitch-shifter/internal/domain"
)

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return domain.Settings{
		FFmpegPath:   "ffmpeg",
		FFprobePath:  "ffprobe",
		OutputDir:    filepath.Join(homeDir, "Music", "PitchShifter"),
		DefaultUnit:  domain.ShiftUnitSemitones,
		SampleRate:   0,
		HistoryLimit: 50,
	}
}
