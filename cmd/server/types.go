package main

import (
	"fmt"
	"strings"

	"copyscan/pkg/models"
	"copyscan/pkg/utils"
)

// Detection modes accepted by the detect endpoints.
const (
	ModeAuto     = "auto"
	ModeYAMNet   = "yamnet"
	ModeTimeline = "timeline"
)

func validMode(mode string) bool {
	switch mode {
	case "", ModeAuto, ModeYAMNet, ModeTimeline:
		return true
	}
	return false
}

// allowedUploadExtensions are the audio container formats accepted for
// detection uploads. Anything ffmpeg can decode would work; the allow-list
// keeps arbitrary files out of the upload directory.
var allowedUploadExtensions = map[string]struct{}{
	".mp3":  {},
	".wav":  {},
	".m4a":  {},
	".aac":  {},
	".flac": {},
	".ogg":  {},
	".opus": {},
	".webm": {},
	".mp4":  {},
}

// DetectYouTubeRequest is the request body for POST /api/detect/youtube
type DetectYouTubeRequest struct {
	// YouTubeURL is the full video URL (required)
	YouTubeURL string `json:"youtube_url"`

	// Mode forces a detection mode; empty or "auto" picks the classifier
	// pipeline when the model is available.
	Mode string `json:"mode,omitempty"`
}

// Validate checks if the request is valid. Mode is normalized to lower case
// so validation and dispatch agree on the same value.
func (r *DetectYouTubeRequest) Validate() error {
	if r.YouTubeURL == "" {
		return fmt.Errorf("youtube_url is required")
	}
	if !utils.IsYouTubeURL(r.YouTubeURL) {
		return fmt.Errorf("youtube_url does not look like a YouTube URL")
	}
	r.Mode = strings.ToLower(r.Mode)
	if !validMode(r.Mode) {
		return fmt.Errorf("mode must be auto, yamnet or timeline")
	}
	return nil
}

// JobAcceptedResponse is returned when a detection job is queued.
type JobAcceptedResponse struct {
	Message  string `json:"message"`
	JobID    string `json:"job_id"`
	FileName string `json:"file_name"`
	Status   string `json:"status"`
}

// JobStatusResponse is the response for GET /api/detect/status/{id}
type JobStatusResponse struct {
	JobID    string                  `json:"job_id"`
	FileName string                  `json:"file_name"`
	Status   string                  `json:"status"`
	Result   *models.DetectionResult `json:"result,omitempty"`
}

// SegmentDTO is one confirmed segment in API responses.
type SegmentDTO struct {
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Duration float64 `json:"duration"`
	Title    string  `json:"title"`
	Artist   string  `json:"artist"`
	Album    string  `json:"album"`
	TrackID  string  `json:"track_id"`
}

// ResultDTO is one persisted detection run.
type ResultDTO struct {
	ID          string       `json:"id"`
	FileName    string       `json:"file_name"`
	Method      string       `json:"detection_method"`
	Copyrighted *bool        `json:"copyrighted"`
	Error       string       `json:"error,omitempty"`
	Segments    []SegmentDTO `json:"segments"`
	CreatedAt   string       `json:"created_at"`
}

// ListResultsResponse is the response for GET /api/results
type ListResultsResponse struct {
	Results []ResultDTO `json:"results"`
	Count   int         `json:"count"`
}

// StatsResponse is the response for GET /api/stats
type StatsResponse struct {
	Status          string `json:"status"`
	DatabasePath    string `json:"database_path"`
	TotalRuns       int64  `json:"total_runs"`
	CopyrightedRuns int64  `json:"copyrighted_runs"`
	FailedRuns      int64  `json:"failed_runs"`
	TotalSegments   int64  `json:"total_segments"`
	DistinctTracks  int64  `json:"distinct_tracks"`
	ModelReady      bool   `json:"model_ready"`
}

// DeleteFileResponse is the response for DELETE /api/files/{name}
type DeleteFileResponse struct {
	Message  string `json:"message"`
	FileName string `json:"file_name"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
