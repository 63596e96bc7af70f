// Package classifier wraps the pre-trained YAMNet TFLite audio event model.
// A Template holds the loaded model and taxonomy (immutable, shared); each
// detection job derives its own Session, which owns the mutable interpreter
// state. One Session must never be used from two goroutines at once.
package classifier

import (
	"errors"
	"fmt"
	"os"

	"github.com/mattn/go-tflite"
)

// InputLength is the fixed number of 16kHz samples the model consumes per
// inference (0.975s window).
const InputLength = 15600

// ErrModelLoad marks a missing or unreadable model artifact or class-name
// table. It is fatal to the classifier path; callers fall back to the
// timeline segmenter.
var ErrModelLoad = errors.New("classifier model load failed")

// Template is the immutable, process-wide part of the classifier: model
// weights plus taxonomy. Safe for concurrent use; inference happens only in
// Sessions derived from it.
type Template struct {
	model         *tflite.Model
	classNames    []string
	musicClassIDs []int
}

// LoadTemplate loads the TFLite model and class map from disk.
func LoadTemplate(modelPath, classMapPath string) (*Template, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("%w: model not found at %s", ErrModelLoad, modelPath)
	}
	if _, err := os.Stat(classMapPath); err != nil {
		return nil, fmt.Errorf("%w: class map not found at %s", ErrModelLoad, classMapPath)
	}

	model := tflite.NewModelFromFile(modelPath)
	if model == nil {
		return nil, fmt.Errorf("%w: cannot parse model %s", ErrModelLoad, modelPath)
	}

	classNames, err := LoadClassMap(classMapPath)
	if err != nil {
		model.Delete()
		return nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
	}

	return &Template{
		model:         model,
		classNames:    classNames,
		musicClassIDs: BuildMusicIndex(classNames),
	}, nil
}

// ClassNames returns the taxonomy in index order.
func (t *Template) ClassNames() []string { return t.classNames }

// MusicClassIDs returns the precomputed music-related index set.
func (t *Template) MusicClassIDs() []int { return t.musicClassIDs }

// Close releases the model.
func (t *Template) Close() {
	if t.model != nil {
		t.model.Delete()
		t.model = nil
	}
}

// Session is one job's inference handle. It shares the template's immutable
// data and owns its own interpreter and tensors.
type Session struct {
	template    *Template
	options     *tflite.InterpreterOptions
	interpreter *tflite.Interpreter
}

// NewSession builds an independent inference session from the template.
func (t *Template) NewSession() (*Session, error) {
	options := tflite.NewInterpreterOptions()
	options.SetNumThread(1)

	interpreter := tflite.NewInterpreter(t.model, options)
	if interpreter == nil {
		options.Delete()
		return nil, fmt.Errorf("%w: cannot create interpreter", ErrModelLoad)
	}
	if status := interpreter.AllocateTensors(); status != tflite.OK {
		interpreter.Delete()
		options.Delete()
		return nil, fmt.Errorf("%w: tensor allocation failed", ErrModelLoad)
	}

	return &Session{template: t, options: options, interpreter: interpreter}, nil
}

// Classify runs one inference over a fixed-length PCM window and returns the
// per-class score vector. Short windows are zero-padded at the end; long
// ones are truncated.
func (s *Session) Classify(window []float32) ([]float32, error) {
	input := s.interpreter.GetInputTensor(0)
	copy(input.Float32s(), FitWindow(window, InputLength))

	if status := s.interpreter.Invoke(); status != tflite.OK {
		return nil, errors.New("classifier inference failed")
	}

	out := s.interpreter.GetOutputTensor(0).Float32s()
	scores := make([]float32, len(out))
	copy(scores, out)
	return scores, nil
}

// ClassName returns the display name for a class index, or "unknown" when
// the index falls outside the taxonomy.
func (s *Session) ClassName(i int) string {
	if i < 0 || i >= len(s.template.classNames) {
		return "unknown"
	}
	return s.template.classNames[i]
}

// MusicClassIDs returns the shared music-related index set.
func (s *Session) MusicClassIDs() []int { return s.template.musicClassIDs }

// InputLength returns the model's fixed input window length in samples.
func (s *Session) InputLength() int { return InputLength }

// Close releases the session's interpreter.
func (s *Session) Close() {
	if s.interpreter != nil {
		s.interpreter.Delete()
		s.interpreter = nil
	}
	if s.options != nil {
		s.options.Delete()
		s.options = nil
	}
}

// FitWindow pads a window with trailing zeros or truncates it to exactly n
// samples. No centering; the model expects left-aligned audio.
func FitWindow(window []float32, n int) []float32 {
	if len(window) == n {
		return window
	}
	fitted := make([]float32, n)
	copy(fitted, window)
	return fitted
}
