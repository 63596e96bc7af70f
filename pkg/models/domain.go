package models

// Frame is one music-active analysis window produced by the frame detector.
// Frames are emitted in strictly increasing Start order at a fixed hop;
// inactive frames are never materialized.
type Frame struct {
	Start    float64 // seconds from the beginning of the recording
	End      float64 // Start + analysis window duration
	Score    float64 // aggregate music confidence for this window
	TopClass string  // display name of the single highest-scoring class
}

// Segment is a plain time interval in seconds. Coarse segments come out of
// the frame merger; fine segments come out of boundary splitting.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns the segment length in seconds.
func (s Segment) Duration() float64 { return s.End - s.Start }

// Track is the identification oracle's answer for one probe. It is opaque
// to the pipeline: TrackID is the only field the stitcher inspects, as the
// equality key for "same song" decisions.
type Track struct {
	Title           string `json:"title"`
	Artist          string `json:"artist"`
	Album           string `json:"album"`
	DurationSeconds int    `json:"duration"`
	TrackID         string `json:"track_id"`
}

// Verdict is the parsed result of a single oracle query.
type Verdict struct {
	Matched bool
	Track   *Track // nil unless Matched
}

// ConfirmedSegment is a stretch of the recording confirmed by at least one
// oracle probe. The stitcher extends the latest confirmed segment in place
// when a probe continues the same track; otherwise it appends a new one.
type ConfirmedSegment struct {
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Duration float64 `json:"duration"`
	Track    Track   `json:"track"`
}

// DetectionResult is the final payload of one detection run. Copyrighted is
// nil when the run failed before a verdict could be reached (Error carries
// the reason); the pipeline never signals failure any other way.
type DetectionResult struct {
	Copyrighted *bool              `json:"copyrighted"`
	Segments    []ConfirmedSegment `json:"segments"`
	Method      string             `json:"detection_method,omitempty"`
	Error       string             `json:"error,omitempty"`
}

// Bool is a small helper for building DetectionResult values.
func Bool(v bool) *bool { return &v }
