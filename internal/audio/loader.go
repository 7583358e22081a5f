package audio

import (
	"fmt"
	"os"

	"github.com/cwbudde/algo-dsp/dsp/resample"
)

// LoadWAV reads a WAV file into a buffer, resampling when targetRate differs
// from the file's native rate. targetRate 0 keeps the original rate.
func LoadWAV(path string, targetRate int) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	buf, err := DecodeWAV(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := buf.Validate(); err != nil {
		return nil, err
	}

	return Resample(buf, targetRate)
}

// Resample converts the buffer to targetRate using a polyphase rational
// resampler. The returned buffer's declared rate always equals the rate
// downstream stages assume; targetRate 0 returns the input unchanged.
func Resample(buf *Buffer, targetRate int) (*Buffer, error) {
	if targetRate == 0 || targetRate == buf.SampleRate {
		return buf, nil
	}
	if targetRate < 0 {
		return nil, fmt.Errorf("invalid target sample rate: %d", targetRate)
	}

	ratio, err := resample.NewForRates(float64(buf.SampleRate), float64(targetRate), resample.WithQuality(resample.QualityBest))
	if err != nil {
		return nil, fmt.Errorf("design resampler %d -> %d Hz: %w", buf.SampleRate, targetRate, err)
	}
	up, down := ratio.Ratio()

	out := &Buffer{
		Channels:   make([][]float64, buf.NumChannels()),
		SampleRate: targetRate,
	}
	for i, ch := range buf.Channels {
		converted, err := resample.Resample(ch, up, down, resample.WithQuality(resample.QualityBest))
		if err != nil {
			return nil, fmt.Errorf("resample channel %d: %w", i, err)
		}
		out.Channels[i] = converted
	}

	// Identical input lengths and one shared ratio give identical output lengths.
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// WriteWAVFile writes the buffer to path as 16-bit PCM WAV.
func WriteWAVFile(path string, buf *Buffer) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create audio file: %w", err)
	}

	if err := EncodeWAV(f, buf); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
