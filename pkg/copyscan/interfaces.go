// Package copyscan is the detection pipeline core: frame-level music
// detection, coarse merging, boundary refinement, probe-based confirmation,
// and the chunked fallback path.
package copyscan

import (
	"context"

	"copyscan/pkg/models"
)

// Service is the top-level detection API. Detect runs the classifier
// pipeline; DetectTimeline runs the fixed-window fallback that needs no
// model. Both always return a result; run-level failures are carried in
// DetectionResult.Error with a nil Copyrighted, never as a panic.
type Service interface {
	Detect(ctx context.Context, audioPath string) models.DetectionResult
	DetectTimeline(ctx context.Context, audioPath string) models.DetectionResult
	Close() error
}

// Oracle identifies a short audio clip against a fingerprint catalog.
type Oracle interface {
	Identify(ctx context.Context, clipPath string) (*models.Verdict, error)
}

// Audio abstracts waveform decoding and clip extraction.
type Audio interface {
	LoadWaveform(ctx context.Context, path string, sampleRate int, offset, duration float64) ([]float64, error)
	ExtractClip(ctx context.Context, path string, start, duration float64) (string, error)
	Duration(ctx context.Context, path string) (float64, error)
}

// ClassifierSession is one run's inference handle. Never share a session
// between goroutines.
type ClassifierSession interface {
	Classify(window []float32) ([]float32, error)
	ClassName(i int) string
	MusicClassIDs() []int
	InputLength() int
	Close()
}

// ClassifierSource hands out independent sessions from a shared model.
type ClassifierSource interface {
	NewSession() (ClassifierSession, error)
}

// Store persists finished detection runs.
type Store interface {
	SaveResult(fileName string, result models.DetectionResult) (string, error)
}

// Logger is the minimal leveled-logging surface the service needs.
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
