package diagnostics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"pitch-shifter/internal/domain"
)

// TestCheckerRunAllPass validates happy-path diagnostics report.
func TestCheckerRunAllPass(t *testing.T) {
	root := t.TempDir()
	checker := NewCheckerForTests(
		func(name string) (string, error) { return "/usr/local/bin/" + name, nil },
		os.MkdirAll,
		os.CreateTemp,
		os.Remove,
	)

	report := checker.Run(domain.Settings{
		FFmpegPath:  "ffmpeg",
		FFprobePath: "ffprobe",
		OutputDir:   filepath.Join(root, "output"),
	})

	if report.HasFailures {
		t.Fatalf("expected no failures, got %+v", report.Items)
	}
}

// TestCheckerRunMissingToolsAndPaths validates failure reporting.
func TestCheckerRunMissingToolsAndPaths(t *testing.T) {
	checker := NewCheckerForTests(
		func(string) (string, error) { return "", errors.New("not found") },
		os.MkdirAll,
		os.CreateTemp,
		os.Remove,
	)

	report := checker.Run(domain.Settings{OutputDir: ""})
	if !report.HasFailures {
		t.Fatal("expected failures")
	}

	assertStatusByID(t, report, "tool_ffmpeg", domain.DiagnosticStatusFail)
	assertStatusByID(t, report, "tool_ffprobe", domain.DiagnosticStatusFail)
	assertStatusByID(t, report, "output_dir", domain.DiagnosticStatusFail)
}

// TestCheckerUsesConfiguredToolPaths validates explicit binary path lookups.
func TestCheckerUsesConfiguredToolPaths(t *testing.T) {
	var looked []string
	checker := NewCheckerForTests(
		func(name string) (string, error) {
			looked = append(looked, name)
			return name, nil
		},
		os.MkdirAll,
		os.CreateTemp,
		os.Remove,
	)

	checker.Run(domain.Settings{
		FFmpegPath:  "/opt/ffmpeg/bin/ffmpeg",
		FFprobePath: "/opt/ffmpeg/bin/ffprobe",
		OutputDir:   t.TempDir(),
	})

	if len(looked) != 2 || looked[0] != "/opt/ffmpeg/bin/ffmpeg" || looked[1] != "/opt/ffmpeg/bin/ffprobe" {
		t.Fatalf("looked up %v, want configured paths", looked)
	}
}

// assertStatusByID checks status for one diagnostic item by ID.
func assertStatusByID(t *testing.T, report domain.DiagnosticReport, id string, want domain.DiagnosticStatus) {
	t.Helper()
	for _, item := range report.Items {
		if item.ID == id {
			if item.Status != want {
				t.Fatalf("item %s: got %s, want %s", id, item.Status, want)
			}
			return
		}
	}
	t.Fatalf("diagnostic item not found: %s", id)
}
