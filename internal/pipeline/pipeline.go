package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"pitch-shifter/internal/audio"
	"pitch-shifter/internal/domain"
	"pitch-shifter/internal/shift"
	"pitch-shifter/internal/transcode"
)

// Request contains one pitch-shift job's inputs and execution callbacks.
// Semitones is the final shift amount; tone-unit conversion already happened
// at job construction.
type Request struct {
	InputPath  string
	OutputPath string
	Semitones  float64
	SampleRate int // 0 keeps the source rate
	OnStage    func(stage domain.JobStatus, fraction float64)
	OnLog      func(log transcode.CommandLog)
}

// Result describes a completed job: the final output path and command logs.
type Result struct {
	OutputPath string
	Kind       domain.MediaKind
	Logs       []transcode.CommandLog
}

// Error is a stage-aware pipeline failure with optional command context.
type Error struct {
	Kind       domain.ErrorKind     `json:"kind"`
	Stage      domain.JobStatus     `json:"stage"`
	Message    string               `json:"message"`
	CommandLog transcode.CommandLog `json:"commandLog"`
	Err        error                `json:"-"`
}

// Error formats pipeline failures for logs and UI.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.CommandLog.Command == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}

	return fmt.Sprintf(
		"%s: %s (cmd=%s exit=%d)",
		e.Kind,
		e.Message,
		e.CommandLog.Command,
		e.CommandLog.ExitCode,
	)
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Transcoder is the external transcoder surface the pipeline invokes.
type Transcoder interface {
	CountAudioStreams(ctx context.Context, src string) (int, transcode.CommandLog, error)
	ExtractAudio(ctx context.Context, src, dstWav string) (transcode.CommandLog, error)
	EncodeAudio(ctx context.Context, srcWav, dst string) (transcode.CommandLog, error)
	Remux(ctx context.Context, videoSrc, audioSrc, dst string) (transcode.CommandLog, error)
}

// Pipeline orchestrates classify, extract, load, shift, write, and remux
// for one job at a time. Stages run strictly sequentially; every temporary
// artifact lives in a per-job directory released on all exit paths.
type Pipeline struct {
	transcoder Transcoder
	mkdirTemp  func(dir, pattern string) (string, error)
	removeAll  func(path string) error
	stat       func(name string) (os.FileInfo, error)
	mkdirAll   func(path string, perm os.FileMode) error
	loadWAV    func(path string, targetRate int) (*audio.Buffer, error)
	writeWAV   func(path string, buf *audio.Buffer) error
	applyShift func(buf *audio.Buffer, semitones float64) error
}

// New constructs the production pipeline around a transcoder.
func New(transcoder Transcoder) *Pipeline {
	return &Pipeline{
		transcoder: transcoder,
		mkdirTemp:  os.MkdirTemp,
		removeAll:  os.RemoveAll,
		stat:       os.Stat,
		mkdirAll:   os.MkdirAll,
		loadWAV:    audio.LoadWAV,
		writeWAV:   audio.WriteWAVFile,
		applyShift: shift.Apply,
	}
}

// Run executes one job and returns the final output path. On any failure the
// requested output path is left untouched: results are staged inside the job's
// temporary directory and moved into place only after every stage succeeded.
func (p *Pipeline) Run(ctx context.Context, req Request) (Result, error) {
	logs := make([]transcode.CommandLog, 0, 3)
	record := func(log transcode.CommandLog) {
		logs = append(logs, log)
		emitLog(req.OnLog, log)
	}

	if strings.TrimSpace(req.InputPath) == "" {
		return Result{}, &Error{
			Kind:    domain.ErrorKindDecodeFailed,
			Stage:   domain.JobStatusClassifying,
			Message: "input media path is required",
		}
	}
	if strings.TrimSpace(req.OutputPath) == "" {
		return Result{}, &Error{
			Kind:    domain.ErrorKindEncodeFailed,
			Stage:   domain.JobStatusClassifying,
			Message: "output path is required",
		}
	}

	emitStage(req.OnStage, domain.JobStatusClassifying, 0.05)
	kind, err := domain.Classify(req.InputPath)
	if err != nil {
		return Result{}, &Error{
			Kind:    domain.ErrorKindUnsupportedFormat,
			Stage:   domain.JobStatusClassifying,
			Message: err.Error(),
			Err:     err,
		}
	}

	if _, err := p.stat(req.InputPath); err != nil {
		return Result{}, &Error{
			Kind:    domain.ErrorKindDecodeFailed,
			Stage:   domain.JobStatusClassifying,
			Message: fmt.Sprintf("cannot access input media: %s", req.InputPath),
			Err:     err,
		}
	}

	outputPath := normalizeOutputPath(req.OutputPath, kind)
	if err := p.mkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return Result{}, &Error{
			Kind:    domain.ErrorKindEncodeFailed,
			Stage:   domain.JobStatusClassifying,
			Message: fmt.Sprintf("cannot create output directory: %s", filepath.Dir(outputPath)),
			Err:     err,
		}
	}

	tempDir, err := p.mkdirTemp("", "pitch-shifter-*")
	if err != nil {
		return Result{}, &Error{
			Kind:    domain.ErrorKindDecodeFailed,
			Stage:   domain.JobStatusClassifying,
			Message: "failed to create temporary workspace",
			Err:     err,
		}
	}
	defer func() {
		_ = p.removeAll(tempDir)
	}()

	switch kind {
	case domain.MediaKindVideo:
		err = p.runVideo(ctx, req, outputPath, tempDir, record)
	default:
		err = p.runAudio(ctx, req, outputPath, tempDir, record)
	}
	if err != nil {
		return Result{}, err
	}

	return Result{
		OutputPath: outputPath,
		Kind:       kind,
		Logs:       logs,
	}, nil
}

// runAudio executes the audio path: decode, shift, write, move into place.
func (p *Pipeline) runAudio(ctx context.Context, req Request, outputPath, tempDir string, record func(transcode.CommandLog)) error {
	sourceWAV := req.InputPath
	if strings.ToLower(filepath.Ext(req.InputPath)) != ".wav" {
		// Compressed audio is decoded to PCM WAV through the transcoder first.
		sourceWAV = filepath.Join(tempDir, "decoded.wav")
		log, err := p.transcoder.ExtractAudio(ctx, req.InputPath, sourceWAV)
		record(log)
		if err != nil {
			return p.commandError(ctx, err, domain.ErrorKindDecodeFailed, domain.JobStatusLoading,
				"decoding input audio failed", log)
		}
	}

	buf, err := p.loadAndShift(ctx, req, sourceWAV)
	if err != nil {
		return err
	}

	if cancelErr := cancelledAt(ctx, domain.JobStatusWriting); cancelErr != nil {
		return cancelErr
	}
	emitStage(req.OnStage, domain.JobStatusWriting, 0.8)

	if strings.ToLower(filepath.Ext(outputPath)) == ".wav" {
		stagedOut := filepath.Join(tempDir, "out.wav")
		if err := p.writeWAV(stagedOut, buf); err != nil {
			return &Error{
				Kind:    domain.ErrorKindEncodeFailed,
				Stage:   domain.JobStatusWriting,
				Message: "writing output audio failed",
				Err:     err,
			}
		}
		return p.moveIntoPlace(stagedOut, outputPath, domain.ErrorKindEncodeFailed, domain.JobStatusWriting)
	}

	// Lossy and non-WAV lossless targets go through a staged lossless file.
	stagedWAV := filepath.Join(tempDir, "processed.wav")
	if err := p.writeWAV(stagedWAV, buf); err != nil {
		return &Error{
			Kind:    domain.ErrorKindEncodeFailed,
			Stage:   domain.JobStatusWriting,
			Message: "writing intermediate audio failed",
			Err:     err,
		}
	}

	stagedOut := filepath.Join(tempDir, "out"+filepath.Ext(outputPath))
	log, err := p.transcoder.EncodeAudio(ctx, stagedWAV, stagedOut)
	record(log)
	if err != nil {
		return p.commandError(ctx, err, domain.ErrorKindEncodeFailed, domain.JobStatusWriting,
			"audio conversion failed", log)
	}
	return p.moveIntoPlace(stagedOut, outputPath, domain.ErrorKindEncodeFailed, domain.JobStatusWriting)
}

// runVideo executes the video path: extract, shift, write, remux, move.
func (p *Pipeline) runVideo(ctx context.Context, req Request, outputPath, tempDir string, record func(transcode.CommandLog)) error {
	if cancelErr := cancelledAt(ctx, domain.JobStatusExtracting); cancelErr != nil {
		return cancelErr
	}
	emitStage(req.OnStage, domain.JobStatusExtracting, 0.15)

	streams, probeLog, err := p.transcoder.CountAudioStreams(ctx, req.InputPath)
	record(probeLog)
	if err != nil {
		return p.commandError(ctx, err, domain.ErrorKindExtractionFailed, domain.JobStatusExtracting,
			"probing audio streams failed", probeLog)
	}
	if streams == 0 {
		return &Error{
			Kind:       domain.ErrorKindNoAudioStream,
			Stage:      domain.JobStatusExtracting,
			Message:    fmt.Sprintf("source has no audio track: %s", req.InputPath),
			CommandLog: probeLog,
		}
	}

	extractedWAV := filepath.Join(tempDir, "orig_audio.wav")
	extractLog, err := p.transcoder.ExtractAudio(ctx, req.InputPath, extractedWAV)
	record(extractLog)
	if err != nil {
		return p.commandError(ctx, err, domain.ErrorKindExtractionFailed, domain.JobStatusExtracting,
			"extracting audio track failed", extractLog)
	}

	buf, err := p.loadAndShift(ctx, req, extractedWAV)
	if err != nil {
		return err
	}

	if cancelErr := cancelledAt(ctx, domain.JobStatusWriting); cancelErr != nil {
		return cancelErr
	}
	emitStage(req.OnStage, domain.JobStatusWriting, 0.75)

	shiftedWAV := filepath.Join(tempDir, "shifted.wav")
	if err := p.writeWAV(shiftedWAV, buf); err != nil {
		return &Error{
			Kind:    domain.ErrorKindEncodeFailed,
			Stage:   domain.JobStatusWriting,
			Message: "writing processed audio failed",
			Err:     err,
		}
	}

	if cancelErr := cancelledAt(ctx, domain.JobStatusRemuxing); cancelErr != nil {
		return cancelErr
	}
	emitStage(req.OnStage, domain.JobStatusRemuxing, 0.92)

	stagedOut := filepath.Join(tempDir, "out"+filepath.Ext(outputPath))
	muxLog, err := p.transcoder.Remux(ctx, req.InputPath, shiftedWAV, stagedOut)
	record(muxLog)
	if err != nil {
		return p.commandError(ctx, err, domain.ErrorKindMuxFailed, domain.JobStatusRemuxing,
			"remuxing video with processed audio failed", muxLog)
	}
	return p.moveIntoPlace(stagedOut, outputPath, domain.ErrorKindMuxFailed, domain.JobStatusRemuxing)
}

// loadAndShift runs the in-memory stages shared by both paths.
func (p *Pipeline) loadAndShift(ctx context.Context, req Request, wavPath string) (*audio.Buffer, error) {
	if cancelErr := cancelledAt(ctx, domain.JobStatusLoading); cancelErr != nil {
		return nil, cancelErr
	}
	emitStage(req.OnStage, domain.JobStatusLoading, 0.35)

	buf, err := p.loadWAV(wavPath, req.SampleRate)
	if err != nil {
		return nil, &Error{
			Kind:    domain.ErrorKindDecodeFailed,
			Stage:   domain.JobStatusLoading,
			Message: fmt.Sprintf("loading audio samples failed: %s", wavPath),
			Err:     err,
		}
	}

	if cancelErr := cancelledAt(ctx, domain.JobStatusShifting); cancelErr != nil {
		return nil, cancelErr
	}
	emitStage(req.OnStage, domain.JobStatusShifting, 0.6)

	if err := p.applyShift(buf, req.Semitones); err != nil {
		return nil, &Error{
			Kind:    domain.ErrorKindShiftFailed,
			Stage:   domain.JobStatusShifting,
			Message: fmt.Sprintf("pitch shift failed: %v", err),
			Err:     err,
		}
	}
	return buf, nil
}

// commandError wraps a transcoder failure, preferring the cancellation kind
// when the job's context was cancelled mid-command.
func (p *Pipeline) commandError(ctx context.Context, err error, kind domain.ErrorKind, stage domain.JobStatus, message string, log transcode.CommandLog) error {
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return &Error{
			Kind:       domain.ErrorKindCancelled,
			Stage:      stage,
			Message:    "job cancelled",
			CommandLog: log,
			Err:        context.Canceled,
		}
	}
	return &Error{
		Kind:       kind,
		Stage:      stage,
		Message:    message,
		CommandLog: log,
		Err:        err,
	}
}

// moveIntoPlace publishes a staged result to the requested output path.
func (p *Pipeline) moveIntoPlace(staged, outputPath string, kind domain.ErrorKind, stage domain.JobStatus) error {
	if err := moveFile(staged, outputPath); err != nil {
		return &Error{
			Kind:    kind,
			Stage:   stage,
			Message: fmt.Sprintf("placing output file failed: %s", outputPath),
			Err:     err,
		}
	}
	return nil
}

// cancelledAt turns a cancelled context into the pipeline's terminal error.
func cancelledAt(ctx context.Context, stage domain.JobStatus) *Error {
	if err := ctx.Err(); err != nil {
		return &Error{
			Kind:    domain.ErrorKindCancelled,
			Stage:   stage,
			Message: "job cancelled",
			Err:     err,
		}
	}
	return nil
}

// normalizeOutputPath forces a usable extension for the pipeline path taken.
// Audio falls back to WAV for unknown extensions; video is always MP4.
func normalizeOutputPath(outputPath string, kind domain.MediaKind) string {
	ext := strings.ToLower(filepath.Ext(outputPath))
	if kind == domain.MediaKindVideo {
		if ext != ".mp4" {
			return outputPath + ".mp4"
		}
		return outputPath
	}

	switch ext {
	case ".wav", ".flac", ".mp3":
		return outputPath
	default:
		return outputPath + ".wav"
	}
}

// moveFile renames staged output into place, copying across filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return os.Remove(src)
}

// emitStage forwards stage updates when callback is configured.
func emitStage(cb func(stage domain.JobStatus, fraction float64), stage domain.JobStatus, fraction float64) {
	if cb != nil {
		cb(stage, fraction)
	}
}

// emitLog forwards command logs when callback is configured.
func emitLog(cb func(log transcode.CommandLog), log transcode.CommandLog) {
	if cb != nil {
		cb(log)
	}
}

// NewPipelineForTests constructs a pipeline with injectable dependencies.
func NewPipelineForTests(
	transcoder Transcoder,
	mkdirTemp func(dir, pattern string) (string, error),
	removeAll func(path string) error,
	stat func(name string) (os.FileInfo, error),
	loadWAV func(path string, targetRate int) (*audio.Buffer, error),
	writeWAV func(path string, buf *audio.Buffer) error,
	applyShift func(buf *audio.Buffer, semitones float64) error,
) *Pipeline {
	return &Pipeline{
		transcoder: transcoder,
		mkdirTemp:  mkdirTemp,
		removeAll:  removeAll,
		stat:       stat,
		mkdirAll:   os.MkdirAll,
		loadWAV:    loadWAV,
		writeWAV:   writeWAV,
		applyShift: applyShift,
	}
}
