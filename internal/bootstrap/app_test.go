package bootstrap

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"pitch-shifter/internal/domain"
	"pitch-shifter/internal/history"
	"pitch-shifter/internal/jobs"
	"pitch-shifter/internal/pipeline"
	"pitch-shifter/internal/transcode"
)

// fakeStore returns deterministic settings for App tests.
type fakeStore struct {
	settings domain.Settings
}

// Load returns preconfigured settings.
func (s *fakeStore) Load() (domain.Settings, error) {
	return s.settings, nil
}

// Save is a no-op for tests.
func (s *fakeStore) Save(domain.Settings) error {
	return nil
}

// fakePipeline allows injecting custom run behavior per test.
type fakePipeline struct {
	run func(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
}

// Run delegates to injected function.
func (p *fakePipeline) Run(ctx context.Context, req pipeline.Request) (pipeline.Result, error) {
	if p.run == nil {
		return pipeline.Result{}, nil
	}
	return p.run(ctx, req)
}

// fakeHistory records entries in memory.
type fakeHistory struct {
	entries []history.Entry
	pruned  int
}

func (h *fakeHistory) Record(entry history.Entry) error {
	h.entries = append(h.entries, entry)
	return nil
}

func (h *fakeHistory) Recent(limit int) ([]history.Entry, error) {
	return h.entries, nil
}

func (h *fakeHistory) Prune(keep int) error {
	h.pruned = keep
	return nil
}

// newTestApp wires an App with fakes and the given pipeline behavior.
func newTestApp(t *testing.T, run func(ctx context.Context, req pipeline.Request) (pipeline.Result, error)) (*App, *fakeHistory) {
	t.Helper()
	hist := &fakeHistory{}
	app := &App{
		Store: &fakeStore{
			settings: domain.Settings{
				OutputDir:    t.TempDir(),
				DefaultUnit:  domain.ShiftUnitSemitones,
				HistoryLimit: 10,
			},
		},
		Jobs:     jobs.NewManager(),
		Pipeline: &fakePipeline{run: run},
		History:  hist,
		events:   jobs.NewEventBus(100),
	}
	return app, hist
}

// TestStartShiftEnforcesSingleRunningJob checks single-job guard.
func TestStartShiftEnforcesSingleRunningJob(t *testing.T) {
	app, _ := newTestApp(t, func(ctx context.Context, req pipeline.Request) (pipeline.Result, error) {
		<-ctx.Done()
		return pipeline.Result{}, &pipeline.Error{
			Kind:    domain.ErrorKindCancelled,
			Stage:   domain.JobStatusLoading,
			Message: "job cancelled",
			Err:     ctx.Err(),
		}
	})

	if _, err := app.StartShift(ShiftRequest{InputPath: "/tmp/tone.wav", Amount: 3}); err != nil {
		t.Fatalf("start first job: %v", err)
	}
	if _, err := app.StartShift(ShiftRequest{InputPath: "/tmp/other.wav", Amount: 1}); !errors.Is(err, jobs.ErrJobAlreadyRunning) {
		t.Fatalf("second start error = %v, want %v", err, jobs.ErrJobAlreadyRunning)
	}

	if err := app.CancelShift(); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	waitForStatus(t, app, domain.JobStatusCancelled)
}

// TestStartShiftConvertsTonesAndValidatesRange checks unit conversion.
func TestStartShiftConvertsTonesAndValidatesRange(t *testing.T) {
	var gotSemitones float64
	app, _ := newTestApp(t, func(ctx context.Context, req pipeline.Request) (pipeline.Result, error) {
		gotSemitones = req.Semitones
		return pipeline.Result{OutputPath: req.OutputPath, Kind: domain.MediaKindAudio}, nil
	})

	job, err := app.StartShift(ShiftRequest{
		InputPath: "/tmp/tone.wav",
		Amount:    3,
		Unit:      domain.ShiftUnitTones,
	})
	if err != nil {
		t.Fatalf("start job: %v", err)
	}
	if job.Semitones != 6 {
		t.Fatalf("job semitones = %v, want 6", job.Semitones)
	}
	waitForStatus(t, app, domain.JobStatusDone)
	if gotSemitones != 6 {
		t.Fatalf("pipeline semitones = %v, want 6", gotSemitones)
	}

	if _, err := app.StartShift(ShiftRequest{
		InputPath: "/tmp/tone.wav",
		Amount:    13,
		Unit:      domain.ShiftUnitTones,
	}); err == nil {
		t.Fatal("expected out-of-range error for 26 semitones")
	}
}

// TestStartShiftRejectsUnsupportedSampleRate checks the rate guard.
func TestStartShiftRejectsUnsupportedSampleRate(t *testing.T) {
	app, _ := newTestApp(t, nil)

	if _, err := app.StartShift(ShiftRequest{
		InputPath:  "/tmp/tone.wav",
		Amount:     2,
		SampleRate: 22050,
	}); err == nil {
		t.Fatal("expected unsupported sample rate error")
	}
}

// TestStartShiftDefaultsOutputPath checks suggested name placement.
func TestStartShiftDefaultsOutputPath(t *testing.T) {
	var gotOutput string
	app, _ := newTestApp(t, func(ctx context.Context, req pipeline.Request) (pipeline.Result, error) {
		gotOutput = req.OutputPath
		return pipeline.Result{OutputPath: req.OutputPath, Kind: domain.MediaKindAudio}, nil
	})

	if _, err := app.StartShift(ShiftRequest{InputPath: "/media/song.wav", Amount: 4}); err != nil {
		t.Fatalf("start job: %v", err)
	}
	waitForStatus(t, app, domain.JobStatusDone)

	if filepath.Base(gotOutput) != "song_pitch+4semi.wav" {
		t.Fatalf("output name = %q, want song_pitch+4semi.wav", filepath.Base(gotOutput))
	}
}

// TestStartShiftPublishesProgressAndResultEvents checks event flow and history.
func TestStartShiftPublishesProgressAndResultEvents(t *testing.T) {
	app, hist := newTestApp(t, func(ctx context.Context, req pipeline.Request) (pipeline.Result, error) {
		if req.OnStage != nil {
			req.OnStage(domain.JobStatusClassifying, 0.05)
			req.OnStage(domain.JobStatusLoading, 0.35)
			req.OnStage(domain.JobStatusShifting, 0.6)
			req.OnStage(domain.JobStatusWriting, 0.8)
		}
		if req.OnLog != nil {
			req.OnLog(transcode.CommandLog{Command: "ffmpeg", ExitCode: 0})
		}
		return pipeline.Result{OutputPath: req.OutputPath, Kind: domain.MediaKindAudio}, nil
	})

	if _, err := app.StartShift(ShiftRequest{InputPath: "/media/song.mp3", Amount: -2}); err != nil {
		t.Fatalf("start job: %v", err)
	}

	waitForStatus(t, app, domain.JobStatusDone)
	events := app.JobEvents(0)
	if len(events) == 0 {
		t.Fatal("expected events")
	}

	assertEventTypeExists(t, events, jobs.EventTypeStatus)
	assertEventTypeExists(t, events, jobs.EventTypeLog)
	assertEventTypeExists(t, events, jobs.EventTypeResult)

	if len(hist.entries) != 1 {
		t.Fatalf("history entries = %d, want 1", len(hist.entries))
	}
	if hist.entries[0].Status != domain.JobStatusDone || hist.entries[0].Semitones != -2 {
		t.Fatalf("unexpected history entry: %+v", hist.entries[0])
	}
}

// TestStartShiftPublishesFailureEvents checks error path emissions.
func TestStartShiftPublishesFailureEvents(t *testing.T) {
	app, hist := newTestApp(t, func(ctx context.Context, req pipeline.Request) (pipeline.Result, error) {
		if req.OnStage != nil {
			req.OnStage(domain.JobStatusLoading, 0.35)
			req.OnStage(domain.JobStatusShifting, 0.6)
		}
		return pipeline.Result{}, &pipeline.Error{
			Kind:    domain.ErrorKindShiftFailed,
			Stage:   domain.JobStatusShifting,
			Message: "pitch shift failed: channel 0: non-finite sample",
			CommandLog: transcode.CommandLog{
				Command:  "ffmpeg",
				ExitCode: 1,
				Stderr:   "broken",
			},
			Err: errors.New("non-finite sample"),
		}
	})

	if _, err := app.StartShift(ShiftRequest{InputPath: "/media/song.wav", Amount: 2}); err != nil {
		t.Fatalf("start job: %v", err)
	}

	waitForStatus(t, app, domain.JobStatusFailed)
	events := app.JobEvents(0)

	assertEventTypeExists(t, events, jobs.EventTypeStatus)
	assertEventTypeExists(t, events, jobs.EventTypeError)
	assertEventTypeExists(t, events, jobs.EventTypeLog)

	var errorEvent *jobs.Event
	for i := range events {
		if events[i].Type == jobs.EventTypeError {
			errorEvent = &events[i]
			break
		}
	}
	if errorEvent == nil || errorEvent.ErrorKind != domain.ErrorKindShiftFailed {
		t.Fatalf("expected shift_failed error event, got %+v", errorEvent)
	}

	if len(hist.entries) != 1 || hist.entries[0].Status != domain.JobStatusFailed {
		t.Fatalf("unexpected history: %+v", hist.entries)
	}
	if hist.entries[0].ErrorKind != domain.ErrorKindShiftFailed {
		t.Fatalf("history error kind = %s", hist.entries[0].ErrorKind)
	}
}

// TestSuggestOutputName pins the suggested filename format.
func TestSuggestOutputName(t *testing.T) {
	cases := []struct {
		input     string
		semitones float64
		want      string
	}{
		{"/media/song.wav", 4, "song_pitch+4semi.wav"},
		{"/media/song.mp3", -2.5, "song_pitch-2.5semi.mp3"},
		{"/media/song.flac", 0, "song_pitch+0semi.flac"},
		{"/media/song.ogg", 1, "song_pitch+1semi.wav"},
		{"/media/clip.mp4", 12, "clip_pitch+12semi.mp4"},
		{"/media/clip.mkv", -1, "clip_pitch-1semi.mp4"},
	}

	for _, tc := range cases {
		if got := SuggestOutputName(tc.input, tc.semitones); got != tc.want {
			t.Fatalf("SuggestOutputName(%q, %g) = %q, want %q", tc.input, tc.semitones, got, tc.want)
		}
	}
}

// waitForStatus polls until job reaches desired status or times out.
func waitForStatus(t *testing.T, app *App, want domain.JobStatus) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if app.CurrentJob().Status == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("status = %s, want %s", app.CurrentJob().Status, want)
}

// assertEventTypeExists verifies at least one event of given type exists.
func assertEventTypeExists(t *testing.T, events []jobs.Event, want jobs.EventType) {
	t.Helper()
	for _, event := range events {
		if event.Type == want {
			return
		}
	}
	t.Fatalf("event type %s not found", want)
}
