package copyscan

import "copyscan/pkg/copyscan/classifier"

// Config carries the pipeline tunables plus pluggable collaborators. Zero
// values are filled in by defaultConfig; collaborators left nil get concrete
// defaults in NewService where one exists.
type Config struct {
	TempDir string

	// Frame detector.
	DetectSampleRate         int
	ConfidenceThreshold      float64
	BackgroundMusicThreshold float64

	// Coarse merger.
	MergeGap           float64
	MinSegmentDuration float64

	// Boundary refiner.
	BoundarySampleRate int
	ChromaThreshold    float64
	MinBoundaryGap     float64

	// Probe stitcher.
	ProbeInterval  float64
	ProbeWindow    float64
	ProbeTailFloor float64

	// Fallback timeline segmenter.
	ChunkSeconds     float64
	OverlapSeconds   float64
	FallbackMergeGap float64

	Logger     Logger
	Oracle     Oracle
	Audio      Audio
	Classifier ClassifierSource
	Store      Store
}

type Option func(*Config)

func WithTempDir(dir string) Option {
	return func(c *Config) {
		c.TempDir = dir
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithOracle(oracle Oracle) Option {
	return func(c *Config) {
		c.Oracle = oracle
	}
}

func WithAudio(audio Audio) Option {
	return func(c *Config) {
		c.Audio = audio
	}
}

func WithClassifier(source ClassifierSource) Option {
	return func(c *Config) {
		c.Classifier = source
	}
}

// WithTemplate wires a loaded model template as the classifier source.
func WithTemplate(t *classifier.Template) Option {
	return func(c *Config) {
		c.Classifier = templateSource{t}
	}
}

func WithStore(store Store) Option {
	return func(c *Config) {
		c.Store = store
	}
}

func WithFrameThresholds(confidence, background float64) Option {
	return func(c *Config) {
		c.ConfidenceThreshold = confidence
		c.BackgroundMusicThreshold = background
	}
}

func WithMergeParams(gap, minDuration float64) Option {
	return func(c *Config) {
		c.MergeGap = gap
		c.MinSegmentDuration = minDuration
	}
}

func WithBoundaryParams(sampleRate int, chromaThreshold, minGap float64) Option {
	return func(c *Config) {
		c.BoundarySampleRate = sampleRate
		c.ChromaThreshold = chromaThreshold
		c.MinBoundaryGap = minGap
	}
}

func WithProbeParams(interval, window, tailFloor float64) Option {
	return func(c *Config) {
		c.ProbeInterval = interval
		c.ProbeWindow = window
		c.ProbeTailFloor = tailFloor
	}
}

func WithFallbackParams(chunk, overlap, mergeGap float64) Option {
	return func(c *Config) {
		c.ChunkSeconds = chunk
		c.OverlapSeconds = overlap
		c.FallbackMergeGap = mergeGap
	}
}

func defaultConfig() *Config {
	return &Config{
		TempDir:                  "/tmp",
		DetectSampleRate:         16000,
		ConfidenceThreshold:      0.1,
		BackgroundMusicThreshold: 0.05,
		MergeGap:                 2.0,
		MinSegmentDuration:       2.0,
		BoundarySampleRate:       22050,
		ChromaThreshold:          0.3,
		MinBoundaryGap:           5.0,
		ProbeInterval:            8.0,
		ProbeWindow:              12.0,
		ProbeTailFloor:           2.0,
		ChunkSeconds:             10.0,
		OverlapSeconds:           2.0,
		FallbackMergeGap:         2.0,
	}
}

// templateSource adapts a classifier.Template to the ClassifierSource
// interface.
type templateSource struct {
	template *classifier.Template
}

func (t templateSource) NewSession() (ClassifierSession, error) {
	session, err := t.template.NewSession()
	if err != nil {
		return nil, err
	}
	return session, nil
}
