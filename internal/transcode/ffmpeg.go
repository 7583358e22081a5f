package transcode

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// defaultCommandTimeout bounds every external process invocation.
const defaultCommandTimeout = 15 * time.Minute

// FFmpeg invokes the external transcoder for extraction, encoding, and
// remuxing, and ffprobe for stream inspection.
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
	runner      commandRunner
	timeout     time.Duration
}

// New constructs the production transcoder facade.
func New(ffmpegPath, ffprobePath string) *FFmpeg {
	if strings.TrimSpace(ffmpegPath) == "" {
		ffmpegPath = "ffmpeg"
	}
	if strings.TrimSpace(ffprobePath) == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpeg{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		runner:      &execRunner{},
		timeout:     defaultCommandTimeout,
	}
}

// NewForTests constructs a transcoder with injectable dependencies.
func NewForTests(ffmpegPath, ffprobePath string, runner commandRunner, timeout time.Duration) *FFmpeg {
	return &FFmpeg{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		runner:      runner,
		timeout:     timeout,
	}
}

// CountAudioStreams probes how many audio streams the source contains.
func (f *FFmpeg) CountAudioStreams(ctx context.Context, src string) (int, CommandLog, error) {
	args := []string{
		"-v", "error",
		"-select_streams", "a",
		"-show_entries", "stream=index",
		"-of", "csv=p=0",
		src,
	}

	log, err := f.run(ctx, f.ffprobePath, args)
	if err != nil {
		return 0, log, err
	}

	count := 0
	for _, line := range strings.Split(log.Stdout, "\n") {
		if strings.TrimSpace(line) != "" {
			count++
		}
	}
	return count, log, nil
}

// ExtractAudio demuxes and decodes the source's audio track into a PCM WAV,
// keeping the original rate and channel layout and dropping all other streams.
func (f *FFmpeg) ExtractAudio(ctx context.Context, src, dstWav string) (CommandLog, error) {
	args := []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", src,
		"-vn",
		"-acodec", "pcm_s16le",
		dstWav,
	}
	return f.run(ctx, f.ffmpegPath, args)
}

// EncodeAudio converts a staged lossless WAV into the target format, which
// ffmpeg infers from the destination extension.
func (f *FFmpeg) EncodeAudio(ctx context.Context, srcWav, dst string) (CommandLog, error) {
	args := []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", srcWav,
		dst,
	}
	return f.run(ctx, f.ffmpegPath, args)
}

// Remux combines the original video stream (stream-copied, never re-encoded)
// with the processed audio into the output container.
func (f *FFmpeg) Remux(ctx context.Context, videoSrc, audioSrc, dst string) (CommandLog, error) {
	args := []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", videoSrc,
		"-i", audioSrc,
		"-c:v", "copy",
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-shortest",
		"-c:a", "aac",
		dst,
	}
	return f.run(ctx, f.ffmpegPath, args)
}

// run executes one bounded external command and captures its log.
func (f *FFmpeg) run(ctx context.Context, name string, args []string) (CommandLog, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	result, err := f.runner.Run(ctx, name, args...)
	log := CommandLog{
		Command:  name,
		Args:     args,
		ExitCode: result.ExitCode,
		Stdout:   result.Stdout,
		Stderr:   result.Stderr,
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return log, fmt.Errorf("%s: %w", name, ctxErr)
		}
		return log, err
	}
	return log, nil
}
