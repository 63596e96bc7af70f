package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"copyscan/internal/config"
	"copyscan/pkg/copyscan"
	"copyscan/pkg/copyscan/audio"
	"copyscan/pkg/copyscan/classifier"
	"copyscan/pkg/copyscan/storage"
	"copyscan/pkg/logger"
	"copyscan/pkg/utils"
)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	config *config.Config
	log    copyscan.Logger
	jobs   *JobManager
	db     *storage.DBClient
	oracle copyscan.Oracle
	loader *classifier.Loader
	audio  *audio.Processor
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, db *storage.DBClient, oracle copyscan.Oracle, loader *classifier.Loader) *Server {
	return &Server{
		config: cfg,
		log:    logger.GetLogger(),
		jobs:   NewJobManager(),
		db:     db,
		oracle: oracle,
		loader: loader,
		audio:  audio.NewProcessor(cfg.TempDir),
	}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"service": "CopyScan API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":        "GET /health",
			"stats":         "GET /api/stats",
			"detectFile":    "POST /api/detect",
			"detectYouTube": "POST /api/detect/youtube",
			"jobStatus":     "GET /api/detect/status/{id}",
			"listResults":   "GET /api/results",
			"getResult":     "GET /api/results/{id}",
			"deleteResult":  "DELETE /api/results/{id}",
			"deleteFile":    "DELETE /api/files/{name}",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "healthy",
		"model_ready": s.loader.Ready(),
		"time":        time.Now().Format(time.RFC3339),
	})
}

// handleStats handles GET /api/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.GetStats()
	if err != nil {
		s.log.Errorf("Failed to get stats: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve stats")
		return
	}

	s.respondJSON(w, http.StatusOK, StatsResponse{
		Status:          "healthy",
		DatabasePath:    s.config.DBPath,
		TotalRuns:       stats.TotalRuns,
		CopyrightedRuns: stats.CopyrightedRuns,
		FailedRuns:      stats.FailedRuns,
		TotalSegments:   stats.TotalSegments,
		DistinctTracks:  stats.DistinctTracks,
		ModelReady:      s.loader.Ready(),
	})
}

// handleDetectFile handles POST /api/detect (multipart file upload)
func (s *Server) handleDetectFile(w http.ResponseWriter, r *http.Request) {
	// Parse multipart form (max 100MB)
	if err := r.ParseMultipartForm(100 << 20); err != nil {
		s.log.Errorf("Failed to parse form: %v", err)
		s.respondError(w, http.StatusBadRequest, "Failed to parse form data")
		return
	}

	mode := strings.ToLower(r.FormValue("mode"))
	if !validMode(mode) {
		s.respondError(w, http.StatusBadRequest, "mode must be auto, yamnet or timeline")
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		s.log.Errorf("Failed to get audio file: %v", err)
		s.respondError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if _, ok := allowedUploadExtensions[ext]; !ok {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("unsupported file extension %q", ext))
		return
	}

	savedPath, err := s.saveUpload(file, header.Filename)
	if err != nil {
		s.log.Errorf("Failed to save upload: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to save uploaded file")
		return
	}

	job := s.jobs.Create(filepath.Base(savedPath))
	go s.runDetection(job.ID, savedPath, mode)

	s.log.Infof("Queued detection job %s for %s (mode=%s)", job.ID, job.FileName, modeOrAuto(mode))
	s.respondJSON(w, http.StatusAccepted, JobAcceptedResponse{
		Message:  "Detection started",
		JobID:    job.ID,
		FileName: job.FileName,
		Status:   job.Status,
	})
}

// handleDetectYouTube handles POST /api/detect/youtube
func (s *Server) handleDetectYouTube(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	var req DetectYouTubeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.log.Errorf("Failed to decode request: %v", err)
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.log.Infof("Downloading audio from %s", req.YouTubeURL)
	downloadedPath, _, err := audio.DownloadYouTubeAudio(ctx, req.YouTubeURL, s.config.UploadDir)
	if err != nil {
		s.log.Errorf("Failed to download YouTube audio: %v", err)
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to download YouTube audio: %v", err))
		return
	}

	job := s.jobs.Create(filepath.Base(downloadedPath))
	go s.runDetection(job.ID, downloadedPath, req.Mode)

	s.respondJSON(w, http.StatusAccepted, JobAcceptedResponse{
		Message:  "Detection started",
		JobID:    job.ID,
		FileName: job.FileName,
		Status:   job.Status,
	})
}

// handleJobStatus handles GET /api/detect/status/{id}
func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]
	job, ok := s.jobs.snapshot(jobID)
	if !ok {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("Job %s not found", jobID))
		return
	}

	s.respondJSON(w, http.StatusOK, JobStatusResponse{
		JobID:    job.ID,
		FileName: job.FileName,
		Status:   job.Status,
		Result:   job.Result,
	})
}

// handleListResults handles GET /api/results
func (s *Server) handleListResults(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	records, err := s.db.ListResults(limit)
	if err != nil {
		s.log.Errorf("Failed to list results: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve results")
		return
	}

	dtos := make([]ResultDTO, len(records))
	for i, rec := range records {
		dtos[i] = toResultDTO(rec)
	}
	s.respondJSON(w, http.StatusOK, ListResultsResponse{Results: dtos, Count: len(dtos)})
}

// handleGetResult handles GET /api/results/{id}
func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	record, err := s.db.GetResult(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.respondError(w, http.StatusNotFound, fmt.Sprintf("Result %s not found", id))
			return
		}
		s.log.Errorf("Failed to get result %s: %v", id, err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve result")
		return
	}
	s.respondJSON(w, http.StatusOK, toResultDTO(*record))
}

// handleDeleteResult handles DELETE /api/results/{id}
func (s *Server) handleDeleteResult(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := s.db.GetResult(id); err != nil {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("Result %s not found", id))
		return
	}
	if err := s.db.DeleteResult(id); err != nil {
		s.log.Errorf("Failed to delete result %s: %v", id, err)
		s.respondError(w, http.StatusInternalServerError, "Failed to delete result")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"message": "Result deleted", "id": id})
}

// handleDeleteFile handles DELETE /api/files/{name}
func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	// Base() strips any path components, keeping deletes inside UploadDir.
	name := filepath.Base(mux.Vars(r)["name"])
	if name == "." || name == ".." || name == "/" {
		s.respondError(w, http.StatusBadRequest, "Invalid file name")
		return
	}

	path := filepath.Join(s.config.UploadDir, name)
	if _, err := os.Stat(path); err != nil {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("File %s not found", name))
		return
	}
	if err := utils.DeleteFile(path); err != nil {
		s.log.Errorf("Failed to delete %s: %v", path, err)
		s.respondError(w, http.StatusInternalServerError, "Failed to delete file")
		return
	}

	s.log.Infof("Deleted uploaded file %s", name)
	s.respondJSON(w, http.StatusOK, DeleteFileResponse{Message: "File deleted", FileName: name})
}

// saveUpload stores an uploaded stream under UploadDir with a unique name.
func (s *Server) saveUpload(file io.Reader, originalName string) (string, error) {
	if err := os.MkdirAll(s.config.UploadDir, 0o755); err != nil {
		return "", err
	}

	name := fmt.Sprintf("upload_%d_%s", time.Now().UnixNano(), filepath.Base(originalName))
	path := filepath.Join(s.config.UploadDir, name)

	out, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, file); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

func toResultDTO(rec storage.DetectionRecord) ResultDTO {
	segments := make([]SegmentDTO, len(rec.Segments))
	for i, seg := range rec.Segments {
		segments[i] = SegmentDTO{
			Start:    seg.Start,
			End:      seg.End,
			Duration: seg.Duration,
			Title:    seg.Title,
			Artist:   seg.Artist,
			Album:    seg.Album,
			TrackID:  seg.TrackID,
		}
	}
	return ResultDTO{
		ID:          rec.ID,
		FileName:    rec.FileName,
		Method:      rec.Method,
		Copyrighted: rec.Copyrighted,
		Error:       rec.Error,
		Segments:    segments,
		CreatedAt:   rec.CreatedAt.Format(time.RFC3339),
	}
}

func modeOrAuto(mode string) string {
	if mode == "" {
		return ModeAuto
	}
	return mode
}
