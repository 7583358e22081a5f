package domain

// JobStatus tracks each pipeline stage for a single pitch-shift job.
type JobStatus string

const (
	JobStatusIdle        JobStatus = "idle"
	JobStatusClassifying JobStatus = "classifying"
	JobStatusExtracting  JobStatus = "extracting"
	JobStatusLoading     JobStatus = "loading"
	JobStatusShifting    JobStatus = "shifting"
	JobStatusWriting     JobStatus = "writing"
	JobStatusRemuxing    JobStatus = "remuxing"
	JobStatusDone        JobStatus = "done"
	JobStatusFailed      JobStatus = "failed"
	JobStatusCancelled   JobStatus = "cancelled"
)

// ErrorKind classifies terminal pipeline failures for the UI.
type ErrorKind string

const (
	ErrorKindUnsupportedFormat ErrorKind = "unsupported_format"
	ErrorKindNoAudioStream     ErrorKind = "no_audio_stream"
	ErrorKindExtractionFailed  ErrorKind = "extraction_failed"
	ErrorKindDecodeFailed      ErrorKind = "decode_failed"
	ErrorKindShiftFailed       ErrorKind = "shift_failed"
	ErrorKindEncodeFailed      ErrorKind = "encode_failed"
	ErrorKindMuxFailed         ErrorKind = "mux_failed"
	ErrorKindCancelled         ErrorKind = "cancelled"
)

// ShiftUnit selects how the UI expresses the shift amount.
// One tone equals two semitones; conversion happens at job construction.
type ShiftUnit string

const (
	ShiftUnitSemitones ShiftUnit = "semitones"
	ShiftUnitTones     ShiftUnit = "tones"
)

// MaxShiftSemitones bounds the accepted shift range to ±24 semitones.
const MaxShiftSemitones = 24.0

// Settings contains user-selectable runtime configuration.
type Settings struct {
	FFmpegPath   string    `json:"ffmpegPath"`
	FFprobePath  string    `json:"ffprobePath"`
	OutputDir    string    `json:"outputDir"`
	DefaultUnit  ShiftUnit `json:"defaultUnit"`
	SampleRate   int       `json:"sampleRate"` // 0 keeps the source rate
	HistoryLimit int       `json:"historyLimit"`
}

// Job stores one pitch-shift request's identity and lifecycle status.
// Immutable once processing starts; a new job always gets a fresh instance.
type Job struct {
	ID         string    `json:"id"`
	InputPath  string    `json:"inputPath"`
	OutputPath string    `json:"outputPath"`
	Kind       MediaKind `json:"kind,omitempty"`
	Semitones  float64   `json:"semitones"`
	SampleRate int       `json:"sampleRate"`
	Status     JobStatus `json:"status"`
}

// SemitonesFromUnit converts a UI shift amount to semitones.
func SemitonesFromUnit(amount float64, unit ShiftUnit) float64 {
	if unit == ShiftUnitTones {
		return amount * 2.0
	}
	return amount
}
