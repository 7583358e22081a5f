package domain

import (
	"fmt"
	"path/filepath"
	"strings"
)

// MediaKind is the tagged variant selecting the audio or video pipeline path.
type MediaKind string

const (
	MediaKindAudio MediaKind = "audio"
	MediaKindVideo MediaKind = "video"
)

// audioExtensions and videoExtensions are fixed, disjoint sets. Anything
// outside both is rejected before processing begins.
var audioExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".ogg":  true,
	".flac": true,
	".m4a":  true,
	".aac":  true,
}

var videoExtensions = map[string]bool{
	".mp4": true,
	".mov": true,
	".mkv": true,
}

// ErrUnsupportedFormat reports a path whose extension is in neither set.
type ErrUnsupportedFormat struct {
	Extension string
}

// Error formats the unsupported extension for UI display.
func (e *ErrUnsupportedFormat) Error() string {
	return fmt.Sprintf("unsupported file extension: %s", e.Extension)
}

// Classify decides the pipeline path for a source file by extension.
func Classify(path string) (MediaKind, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case audioExtensions[ext]:
		return MediaKindAudio, nil
	case videoExtensions[ext]:
		return MediaKindVideo, nil
	default:
		return "", &ErrUnsupportedFormat{Extension: ext}
	}
}

// AudioExtensions returns the supported audio extensions in stable order.
func AudioExtensions() []string {
	return []string{".wav", ".mp3", ".ogg", ".flac", ".m4a", ".aac"}
}

// VideoExtensions returns the supported video extensions in stable order.
func VideoExtensions() []string {
	return []string{".mp4", ".mov", ".mkv"}
}

// SupportedSampleRates lists the fixed resample targets offered by the UI.
// 0 (keep original) is always valid and performs no resampling.
var SupportedSampleRates = []int{44100, 48000, 96000}

// IsSupportedSampleRate reports whether rate is keep-original or a fixed target.
func IsSupportedSampleRate(rate int) bool {
	if rate == 0 {
		return true
	}
	for _, r := range SupportedSampleRates {
		if r == rate {
			return true
		}
	}
	return false
}

// OutputFormat describes one exportable container/codec choice.
type OutputFormat struct {
	Extension string `json:"extension"`
	Name      string `json:"name"`
	Lossless  bool   `json:"lossless"`
}

// AudioOutputFormats lists export choices for audio-path jobs.
// WAV is written in-process; FLAC and MP3 go through the transcoder.
func AudioOutputFormats() []OutputFormat {
	return []OutputFormat{
		{Extension: ".wav", Name: "WAV (lossless)", Lossless: true},
		{Extension: ".flac", Name: "FLAC (lossless)", Lossless: true},
		{Extension: ".mp3", Name: "MP3 (lossy)", Lossless: false},
	}
}

// VideoOutputFormats lists export choices for video-path jobs.
func VideoOutputFormats() []OutputFormat {
	return []OutputFormat{
		{Extension: ".mp4", Name: "MP4 (video stream copy)", Lossless: false},
	}
}
