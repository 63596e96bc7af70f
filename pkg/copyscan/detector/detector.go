// Package detector turns a waveform into music-active frames and merges
// them into coarse candidate segments.
package detector

import (
	"fmt"
	"strings"

	"copyscan/pkg/models"
)

// Frame timing of the underlying audio event model: each analysis window
// covers 0.975s and advances by half of that.
const (
	DefaultFrameDuration = 0.975
	DefaultFrameHop      = 0.4875
)

// Classifier is the inference handle the detector drives. One Classifier
// serves one detection run; concurrent runs need independent instances.
type Classifier interface {
	Classify(window []float32) ([]float32, error)
	ClassName(i int) string
	MusicClassIDs() []int
	InputLength() int
}

// Params are the frame-detection tunables.
type Params struct {
	SampleRate               int     // waveform rate, matches the model input rate
	FrameDuration            float64 // seconds covered by one analysis window
	FrameHop                 float64 // seconds between window starts
	ConfidenceThreshold      float64 // clear-music bar
	BackgroundMusicThreshold float64 // lower bar when the top class is speech
}

// DetectFrames slides the model window over the waveform and returns the
// music-active frames in order. Inactive frames are not materialized. The
// last partial window (one that no longer fully fits) is not analyzed.
func DetectFrames(clf Classifier, waveform []float64, p Params) ([]models.Frame, error) {
	if p.FrameDuration == 0 {
		p.FrameDuration = DefaultFrameDuration
	}
	if p.FrameHop == 0 {
		p.FrameHop = DefaultFrameHop
	}

	hopSamples := int(p.FrameHop * float64(p.SampleRate))
	if hopSamples <= 0 {
		return nil, fmt.Errorf("invalid frame hop %f at rate %d", p.FrameHop, p.SampleRate)
	}
	windowSamples := clf.InputLength()
	musicIDs := clf.MusicClassIDs()

	var frames []models.Frame
	window := make([]float32, windowSamples)

	for frameIdx, pos := 0, 0; pos+windowSamples <= len(waveform); frameIdx, pos = frameIdx+1, pos+hopSamples {
		for i, s := range waveform[pos : pos+windowSamples] {
			window[i] = float32(s)
		}

		scores, err := clf.Classify(window)
		if err != nil {
			return nil, fmt.Errorf("classifying frame %d: %w", frameIdx, err)
		}

		topID := argmax(scores)
		topName := clf.ClassName(topID)

		musicScore := 0.0
		for _, cid := range musicIDs {
			if cid < len(scores) && float64(scores[cid]) > musicScore {
				musicScore = float64(scores[cid])
			}
		}

		isClearMusic := musicScore >= p.ConfidenceThreshold
		isBGMUnderSpeech := strings.Contains(strings.ToLower(topName), "speech") &&
			musicScore >= p.BackgroundMusicThreshold

		if isClearMusic || isBGMUnderSpeech {
			start := float64(frameIdx) * p.FrameHop
			frames = append(frames, models.Frame{
				Start:    start,
				End:      start + p.FrameDuration,
				Score:    musicScore,
				TopClass: topName,
			})
		}
	}
	return frames, nil
}

func argmax(scores []float32) int {
	best := 0
	for i, s := range scores {
		if s > scores[best] {
			best = i
		}
	}
	return best
}
