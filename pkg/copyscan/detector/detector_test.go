package detector

import (
	"math"
	"testing"

	"copyscan/pkg/models"
)

// scriptedClassifier returns per-window scores based on the window's start
// sample, so tests can paint music over chosen time ranges.
type scriptedClassifier struct {
	inputLength int
	sampleRate  int
	scoreAt     func(startSec float64) (scores []float32, topName string)
	names       map[int]string
	calls       int
}

func (c *scriptedClassifier) Classify(window []float32) ([]float32, error) {
	start := float64(c.calls) * DefaultFrameHop
	c.calls++
	scores, _ := c.scoreAt(start)
	return scores, nil
}

func (c *scriptedClassifier) ClassName(i int) string {
	if name, ok := c.names[i]; ok {
		return name
	}
	return "unknown"
}

func (c *scriptedClassifier) MusicClassIDs() []int { return []int{1} }
func (c *scriptedClassifier) InputLength() int     { return c.inputLength }

func newScripted(sampleRate int, scoreAt func(float64) ([]float32, string)) *scriptedClassifier {
	return &scriptedClassifier{
		inputLength: int(DefaultFrameDuration * float64(sampleRate)),
		sampleRate:  sampleRate,
		scoreAt:     scoreAt,
		names:       map[int]string{0: "Speech", 1: "Music", 2: "Silence"},
	}
}

func TestDetectFramesOrderingAndActivation(t *testing.T) {
	const sampleRate = 16000
	// Music in [0,5) and [7,12), silence elsewhere, over 14 seconds.
	clf := newScripted(sampleRate, func(start float64) ([]float32, string) {
		if start < 5 || (start >= 7 && start < 12) {
			return []float32{0.1, 0.8, 0.0}, "Music"
		}
		return []float32{0.0, 0.0, 0.9}, "Silence"
	})

	waveform := make([]float64, 14*sampleRate)
	frames, err := DetectFrames(clf, waveform, Params{
		SampleRate:               sampleRate,
		ConfidenceThreshold:      0.1,
		BackgroundMusicThreshold: 0.05,
	})
	if err != nil {
		t.Fatalf("DetectFrames failed: %v", err)
	}
	if len(frames) == 0 {
		t.Fatal("Expected active frames, got none")
	}

	for i := 1; i < len(frames); i++ {
		if frames[i].Start <= frames[i-1].Start {
			t.Errorf("Frames out of order at %d: %f after %f", i, frames[i].Start, frames[i-1].Start)
		}
	}
	for _, f := range frames {
		inMusic := f.Start < 5 || (f.Start >= 7 && f.Start < 12)
		if !inMusic {
			t.Errorf("Frame at %.4f is active outside the music ranges", f.Start)
		}
		if f.Score < 0.1 {
			t.Errorf("Frame at %.4f has score %.3f below threshold", f.Start, f.Score)
		}
		if math.Abs(f.End-f.Start-DefaultFrameDuration) > 1e-9 {
			t.Errorf("Frame at %.4f has wrong duration %.4f", f.Start, f.End-f.Start)
		}
	}
}

func TestDetectFramesBackgroundMusicUnderSpeech(t *testing.T) {
	const sampleRate = 16000
	// Music score below the clear bar but above the background bar, with
	// speech as top class.
	clf := newScripted(sampleRate, func(start float64) ([]float32, string) {
		return []float32{0.7, 0.07, 0.0}, "Speech"
	})

	waveform := make([]float64, 3*sampleRate)
	frames, err := DetectFrames(clf, waveform, Params{
		SampleRate:               sampleRate,
		ConfidenceThreshold:      0.1,
		BackgroundMusicThreshold: 0.05,
	})
	if err != nil {
		t.Fatalf("DetectFrames failed: %v", err)
	}
	if len(frames) == 0 {
		t.Fatal("Expected speech-with-background-music frames to be active")
	}
	for _, f := range frames {
		if f.TopClass != "Speech" {
			t.Errorf("Expected top class Speech, got %q", f.TopClass)
		}
	}
}

func TestDetectFramesQuietSpeechStaysInactive(t *testing.T) {
	const sampleRate = 16000
	clf := newScripted(sampleRate, func(start float64) ([]float32, string) {
		return []float32{0.7, 0.01, 0.0}, "Speech"
	})

	waveform := make([]float64, 3*sampleRate)
	frames, err := DetectFrames(clf, waveform, Params{
		SampleRate:               sampleRate,
		ConfidenceThreshold:      0.1,
		BackgroundMusicThreshold: 0.05,
	})
	if err != nil {
		t.Fatalf("DetectFrames failed: %v", err)
	}
	if len(frames) != 0 {
		t.Errorf("Expected no active frames, got %d", len(frames))
	}
}

func TestDetectFramesShortWaveform(t *testing.T) {
	const sampleRate = 16000
	clf := newScripted(sampleRate, func(start float64) ([]float32, string) {
		return []float32{0.0, 1.0, 0.0}, "Music"
	})

	// Shorter than one analysis window: nothing to classify.
	waveform := make([]float64, clf.InputLength()-1)
	frames, err := DetectFrames(clf, waveform, Params{
		SampleRate:          sampleRate,
		ConfidenceThreshold: 0.1,
	})
	if err != nil {
		t.Fatalf("DetectFrames failed: %v", err)
	}
	if len(frames) != 0 {
		t.Errorf("Expected no frames from a sub-window waveform, got %d", len(frames))
	}
	if clf.calls != 0 {
		t.Errorf("Classifier should not run on a partial window, ran %d times", clf.calls)
	}
}

// framesOver builds 1s frames at a 0.5s hop covering each range exactly, so
// gap arithmetic in the merge tests stays clean.
func framesOver(ranges [][2]float64) []models.Frame {
	var frames []models.Frame
	for _, r := range ranges {
		for start := r[0]; start+1.0 <= r[1]; start += 0.5 {
			frames = append(frames, models.Frame{Start: start, End: start + 1.0})
		}
	}
	return frames
}

func TestMergeFramesBridgesSmallGaps(t *testing.T) {
	// Active in [0,5) and [7,12): the 2s gap is within mergeGap, so one
	// segment spans the lot.
	frames := framesOver([][2]float64{{0, 5}, {7, 12}})

	segments := MergeFrames(frames, 2.0, 2.0)
	if len(segments) != 1 {
		t.Fatalf("Expected 1 merged segment, got %d: %+v", len(segments), segments)
	}
	if segments[0].Start != 0 {
		t.Errorf("Merged segment starts at %f, want 0", segments[0].Start)
	}
	if segments[0].End < 11 {
		t.Errorf("Merged segment ends at %f, want close to 12", segments[0].End)
	}
}

func TestMergeFramesSplitsLargeGaps(t *testing.T) {
	frames := framesOver([][2]float64{{0, 5}, {10, 15}})

	segments := MergeFrames(frames, 2.0, 2.0)
	if len(segments) != 2 {
		t.Fatalf("Expected 2 segments across a 5s gap, got %d: %+v", len(segments), segments)
	}
	if segments[0].End >= segments[1].Start {
		t.Errorf("Segments overlap: %+v", segments)
	}
}

func TestMergeFramesDropsShortSegments(t *testing.T) {
	// One lone frame (~1s) far from everything else.
	frames := framesOver([][2]float64{{0, 8}})
	frames = append(frames, models.Frame{Start: 20, End: 20 + DefaultFrameDuration})

	segments := MergeFrames(frames, 2.0, 2.0)
	if len(segments) != 1 {
		t.Fatalf("Expected the short segment to be dropped, got %d segments", len(segments))
	}
}

func TestMergeFramesIdempotentOnSegments(t *testing.T) {
	frames := framesOver([][2]float64{{0, 5}, {7, 12}, {20, 30}})
	once := MergeFrames(frames, 2.0, 2.0)

	// Feeding the merged segments back in as frames must not change them.
	var again []models.Frame
	for _, s := range once {
		again = append(again, models.Frame{Start: s.Start, End: s.End})
	}
	twice := MergeFrames(again, 2.0, 2.0)

	if len(once) != len(twice) {
		t.Fatalf("Merge not idempotent: %d vs %d segments", len(once), len(twice))
	}
	for i := range once {
		if once[i] != twice[i] {
			t.Errorf("Segment %d changed on re-merge: %+v vs %+v", i, once[i], twice[i])
		}
	}
}

func TestMergeFramesEmptyInput(t *testing.T) {
	segments := MergeFrames(nil, 2.0, 2.0)
	if segments == nil {
		t.Fatal("Expected empty slice, got nil")
	}
	if len(segments) != 0 {
		t.Errorf("Expected no segments, got %d", len(segments))
	}
}
