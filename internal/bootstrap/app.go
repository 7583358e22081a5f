package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"pitch-shifter/internal/config"
	"pitch-shifter/internal/diagnostics"
	"pitch-shifter/internal/domain"
	"pitch-shifter/internal/history"
	"pitch-shifter/internal/jobs"
	"pitch-shifter/internal/pipeline"
	"pitch-shifter/internal/transcode"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

var mediaDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Media files",
		Pattern:     "*.wav;*.mp3;*.ogg;*.flac;*.m4a;*.aac;*.mp4;*.mov;*.mkv",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

// ShiftRequest is the UI-facing job request. Amount is expressed in the given
// unit; conversion to semitones happens here, at job construction.
type ShiftRequest struct {
	InputPath  string           `json:"inputPath"`
	OutputPath string           `json:"outputPath"`
	Amount     float64          `json:"amount"`
	Unit       domain.ShiftUnit `json:"unit"`
	SampleRate int              `json:"sampleRate"`
}

// App wires configuration, jobs, pipeline, history, and UI runtime callbacks.
type App struct {
	Settings    domain.Settings
	Store       config.Store
	Jobs        *jobs.Manager
	Pipeline    pipelineRunner
	Diagnostics domain.DiagnosticReport
	History     historyStore
	assets      fs.FS
	checker     *diagnostics.Checker

	mu          sync.Mutex
	activeJobID string
	cancel      context.CancelFunc
	events      *jobs.EventBus
	runtimeCtx  context.Context
}

// pipelineRunner isolates the shift pipeline behind an interface.
type pipelineRunner interface {
	Run(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
}

// historyStore isolates export history persistence behind an interface.
type historyStore interface {
	Record(entry history.Entry) error
	Recent(limit int) ([]history.Entry, error)
	Prune(keep int) error
}

// New builds the application with persisted settings and startup diagnostics.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures embedded frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve user home: %w", err)
	}

	configDir := filepath.Join(homeDir, ".pitch-shifter")
	store := config.NewJSONStore(filepath.Join(configDir, "settings.json"))
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	exports, err := history.Open(filepath.Join(configDir, "history.db"))
	if err != nil {
		return nil, fmt.Errorf("open export history: %w", err)
	}

	checker := diagnostics.NewChecker()
	report := checker.Run(settings)

	return &App{
		Settings:    settings,
		Store:       store,
		Jobs:        jobs.NewManager(),
		Pipeline:    pipeline.New(transcode.New(settings.FFmpegPath, settings.FFprobePath)),
		Diagnostics: report,
		History:     exports,
		assets:      assets,
		checker:     checker,
		events:      jobs.NewEventBus(1000),
	}, nil
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "Pitch Shifter",
		Width:       1024,
		Height:      720,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown: func(ctx context.Context) {
			a.mu.Lock()
			defer a.mu.Unlock()
			a.runtimeCtx = nil
		},
		Bind: []interface{}{a},
	})
}

// Startup stores Wails runtime context for push events.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = ctx
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	return a.Diagnostics
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	return settings, nil
}

// SaveSettings normalizes and persists settings, then refreshes diagnostics.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := normalizeSettings(settings)
	if !domain.IsSupportedSampleRate(normalized.SampleRate) {
		return domain.Settings{}, fmt.Errorf("unsupported sample rate: %d", normalized.SampleRate)
	}
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = normalized
	if a.checker != nil {
		a.Diagnostics = a.checker.Run(normalized)
	}
	a.mu.Unlock()

	return normalized, nil
}

// SupportedSampleRates returns the fixed resample targets for the UI.
func (a *App) SupportedSampleRates() []int {
	return domain.SupportedSampleRates
}

// AudioOutputFormats returns export choices for audio-path jobs.
func (a *App) AudioOutputFormats() []domain.OutputFormat {
	return domain.AudioOutputFormats()
}

// PickInputFile opens a native file dialog for media selection.
func (a *App) PickInputFile() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select media file",
		Filters: mediaDialogFilter,
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// PickOutputFile opens a native save dialog seeded with a suggested name.
func (a *App) PickOutputFile(inputPath string, amount float64, unit domain.ShiftUnit) (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.SaveFileDialog(ctx, wailsruntime.SaveDialogOptions{
		Title:           "Save shifted file as",
		DefaultFilename: SuggestOutputName(inputPath, domain.SemitonesFromUnit(amount, unit)),
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// PickOutputDirectory opens a native directory picker for exports.
func (a *App) PickOutputDirectory() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenDirectoryDialog(ctx, wailsruntime.OpenDialogOptions{
		Title: "Select output directory",
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// OpenOutputFolder opens the given path (or configured output dir) in file manager.
func (a *App) OpenOutputFolder(path string) error {
	target := strings.TrimSpace(path)
	if target == "" {
		a.mu.Lock()
		target = a.Settings.OutputDir
		a.mu.Unlock()
	}
	if target == "" {
		return fmt.Errorf("output path is empty")
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	openPath := target
	if !info.IsDir() {
		openPath = filepath.Dir(target)
	}

	return openInFileManager(openPath)
}

// RefreshDiagnostics reloads settings and reruns dependency checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}

	a.Settings = settings
	a.Diagnostics = a.checker.Run(settings)
	return a.Diagnostics, nil
}

// SuggestOutputName derives an output filename from the source and shift,
// like "song_pitch+4semi.wav". Video sources always suggest an MP4.
func SuggestOutputName(inputPath string, semitones float64) string {
	base := filepath.Base(inputPath)
	ext := strings.ToLower(filepath.Ext(base))
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = "output"
	}

	kind, err := domain.Classify(inputPath)
	switch {
	case err != nil:
		ext = ".wav"
	case kind == domain.MediaKindVideo:
		ext = ".mp4"
	case ext != ".wav" && ext != ".flac" && ext != ".mp3":
		ext = ".wav"
	}

	return fmt.Sprintf("%s_pitch%+gsemi%s", stem, semitones, ext)
}

// StartShift validates the request, creates a job, and runs it asynchronously.
func (a *App) StartShift(req ShiftRequest) (domain.Job, error) {
	inputPath := strings.TrimSpace(req.InputPath)
	if inputPath == "" {
		return domain.Job{}, fmt.Errorf("input media path is required")
	}

	settings, err := a.Store.Load()
	if err != nil {
		return domain.Job{}, fmt.Errorf("load settings: %w", err)
	}

	unit := req.Unit
	if unit == "" {
		unit = settings.DefaultUnit
	}
	semitones := domain.SemitonesFromUnit(req.Amount, unit)
	if math.IsNaN(semitones) || math.Abs(semitones) > domain.MaxShiftSemitones {
		return domain.Job{}, fmt.Errorf("shift out of range: %g semitones (max ±%g)", semitones, domain.MaxShiftSemitones)
	}

	sampleRate := req.SampleRate
	if sampleRate == 0 {
		sampleRate = settings.SampleRate
	}
	if !domain.IsSupportedSampleRate(sampleRate) {
		return domain.Job{}, fmt.Errorf("unsupported sample rate: %d", sampleRate)
	}

	outputPath := strings.TrimSpace(req.OutputPath)
	if outputPath == "" {
		outputPath = filepath.Join(settings.OutputDir, SuggestOutputName(inputPath, semitones))
	}

	job := domain.Job{
		ID:         uuid.NewString(),
		InputPath:  inputPath,
		OutputPath: outputPath,
		Semitones:  semitones,
		SampleRate: sampleRate,
	}
	if err := a.Jobs.Start(job); err != nil {
		return domain.Job{}, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.mu.Lock()
	a.activeJobID = job.ID
	a.cancel = cancel
	a.Settings = settings
	a.mu.Unlock()

	a.publishStatus(job.ID, domain.JobStatusClassifying, 0.0, "Job started")

	go a.runShiftJob(ctx, job, settings)
	return a.Jobs.Current(), nil
}

// CancelShift cancels the currently running job, if any.
func (a *App) CancelShift() error {
	a.mu.Lock()
	cancel := a.cancel
	activeJobID := a.activeJobID
	a.mu.Unlock()

	if cancel == nil {
		return jobs.ErrNoRunningJob
	}

	cancel()
	if err := a.Jobs.Cancel(); err != nil && !errors.Is(err, jobs.ErrNoRunningJob) {
		return err
	}

	if activeJobID != "" {
		a.publishStatus(activeJobID, domain.JobStatusCancelled, 0.0, "Cancellation requested")
	}
	return nil
}

// CurrentJob returns current job metadata and status.
func (a *App) CurrentJob() domain.Job {
	return a.Jobs.Current()
}

// JobEvents returns all events with sequence greater than sinceSeq.
func (a *App) JobEvents(sinceSeq int64) []jobs.Event {
	return a.events.Since(sinceSeq)
}

// RecentExports returns the persisted export history, newest first.
func (a *App) RecentExports() ([]history.Entry, error) {
	a.mu.Lock()
	limit := a.Settings.HistoryLimit
	a.mu.Unlock()
	return a.History.Recent(limit)
}

// runShiftJob executes the pipeline and maps outcomes to job events.
func (a *App) runShiftJob(ctx context.Context, job domain.Job, settings domain.Settings) {
	req := pipeline.Request{
		InputPath:  job.InputPath,
		OutputPath: job.OutputPath,
		Semitones:  job.Semitones,
		SampleRate: job.SampleRate,
		OnStage: func(stage domain.JobStatus, fraction float64) {
			if err := a.Jobs.Transition(stage); err == nil {
				a.publishStatus(job.ID, stage, fraction, "Running "+string(stage)+" stage")
			}
		},
		OnLog: func(log transcode.CommandLog) {
			a.publishEvent(jobs.Event{
				JobID:    job.ID,
				Type:     jobs.EventTypeLog,
				Message:  "Command completed",
				Command:  log.Command,
				Args:     log.Args,
				ExitCode: log.ExitCode,
				Stdout:   log.Stdout,
				Stderr:   log.Stderr,
			})
		},
	}

	result, err := a.Pipeline.Run(ctx, req)
	if err != nil {
		a.finishFailedJob(job, err)
		return
	}

	a.Jobs.SetKind(result.Kind)
	if err := a.Jobs.Transition(domain.JobStatusDone); err == nil {
		a.publishStatus(job.ID, domain.JobStatusDone, 1.0, "Job completed")
	}
	a.publishEvent(jobs.Event{
		JobID:      job.ID,
		Type:       jobs.EventTypeResult,
		Status:     domain.JobStatusDone,
		Message:    "Export finished",
		OutputPath: result.OutputPath,
	})

	a.recordHistory(history.Entry{
		JobID:      job.ID,
		InputPath:  job.InputPath,
		OutputPath: result.OutputPath,
		Kind:       result.Kind,
		Semitones:  job.Semitones,
		SampleRate: job.SampleRate,
		Status:     domain.JobStatusDone,
	}, settings.HistoryLimit)

	a.clearActiveJob(job.ID)
}

// finishFailedJob maps a pipeline error to terminal state, events, and history.
func (a *App) finishFailedJob(job domain.Job, err error) {
	kind := domain.ErrorKindDecodeFailed
	var commandLog transcode.CommandLog
	var pErr *pipeline.Error
	if errors.As(err, &pErr) {
		kind = pErr.Kind
		commandLog = pErr.CommandLog
	}
	if errors.Is(err, context.Canceled) {
		kind = domain.ErrorKindCancelled
	}

	terminal := domain.JobStatusFailed
	if kind == domain.ErrorKindCancelled {
		terminal = domain.JobStatusCancelled
	}

	_ = a.Jobs.Transition(terminal)
	a.publishStatus(job.ID, terminal, 0.0, "Job "+string(terminal))
	a.publishEvent(jobs.Event{
		JobID:     job.ID,
		Type:      jobs.EventTypeError,
		Status:    terminal,
		ErrorKind: kind,
		Message:   err.Error(),
	})

	if commandLog.Command != "" {
		a.publishEvent(jobs.Event{
			JobID:    job.ID,
			Type:     jobs.EventTypeLog,
			Message:  "Failed command",
			Command:  commandLog.Command,
			Args:     commandLog.Args,
			ExitCode: commandLog.ExitCode,
			Stdout:   commandLog.Stdout,
			Stderr:   commandLog.Stderr,
		})
	}

	a.mu.Lock()
	limit := a.Settings.HistoryLimit
	a.mu.Unlock()
	a.recordHistory(history.Entry{
		JobID:      job.ID,
		InputPath:  job.InputPath,
		OutputPath: job.OutputPath,
		Semitones:  job.Semitones,
		SampleRate: job.SampleRate,
		Status:     terminal,
		ErrorKind:  kind,
	}, limit)

	a.clearActiveJob(job.ID)
}

// recordHistory persists a terminal job and trims the history to limit.
func (a *App) recordHistory(entry history.Entry, limit int) {
	if a.History == nil {
		return
	}
	if err := a.History.Record(entry); err != nil {
		a.publishEvent(jobs.Event{
			JobID:   entry.JobID,
			Type:    jobs.EventTypeError,
			Message: fmt.Sprintf("record export history: %v", err),
		})
		return
	}
	if limit > 0 {
		_ = a.History.Prune(limit)
	}
}

// publishStatus sends a normalized status event.
func (a *App) publishStatus(jobID string, status domain.JobStatus, fraction float64, message string) {
	a.publishEvent(jobs.Event{
		JobID:    jobID,
		Type:     jobs.EventTypeStatus,
		Status:   status,
		Fraction: fraction,
		Message:  message,
	})
}

// publishEvent stores event history and emits runtime push notifications.
func (a *App) publishEvent(event jobs.Event) {
	published := a.events.Publish(event)

	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, "job:event", published)
	}
}

// clearActiveJob clears cancellation handles for completed job IDs.
func (a *App) clearActiveJob(jobID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.activeJobID == jobID {
		a.activeJobID = ""
		a.cancel = nil
	}
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}

// normalizeSettings trims user inputs and applies defaults for empty fields.
func normalizeSettings(settings domain.Settings) domain.Settings {
	settings.FFmpegPath = strings.TrimSpace(settings.FFmpegPath)
	settings.FFprobePath = strings.TrimSpace(settings.FFprobePath)
	settings.OutputDir = strings.TrimSpace(settings.OutputDir)
	if settings.DefaultUnit == "" {
		settings.DefaultUnit = domain.ShiftUnitSemitones
	}
	if settings.HistoryLimit <= 0 {
		settings.HistoryLimit = 50
	}
	return settings
}

// openInFileManager launches the platform file explorer for the provided path.
func openInFileManager(path string) error {
	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("explorer", filepath.Clean(path))
	default:
		cmd = exec.Command("xdg-open", path)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch file manager: %w", err)
	}
	return nil
}
