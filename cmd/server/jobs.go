package main

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"copyscan/pkg/copyscan"
	"copyscan/pkg/models"
	"copyscan/pkg/utils"
)

// Job lifecycle states.
const (
	JobQueued     = "queued"
	JobProcessing = "processing"
	JobDone       = "done"
)

// Job tracks one in-flight or finished detection run.
type Job struct {
	ID        string
	FileName  string
	Status    string
	Result    *models.DetectionResult
	CreatedAt time.Time
}

// JobManager keeps job state in memory. Results survive restarts via the
// database; job handles do not.
type JobManager struct {
	mu   sync.Mutex
	jobs map[string]*Job
}

func NewJobManager() *JobManager {
	return &JobManager{jobs: map[string]*Job{}}
}

func (m *JobManager) Create(fileName string) *Job {
	job := &Job{
		ID:        utils.GenerateUUID(),
		FileName:  fileName,
		Status:    JobQueued,
		CreatedAt: time.Now(),
	}
	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()
	return job
}

func (m *JobManager) Get(id string) (*Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	return job, ok
}

func (m *JobManager) setStatus(id, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok {
		job.Status = status
	}
}

func (m *JobManager) finish(id string, result models.DetectionResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok {
		job.Result = &result
		job.Status = JobDone
	}
}

// snapshot returns a copy of the job safe to serialize without the lock.
func (m *JobManager) snapshot(id string) (Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// runDetection executes one job end to end. It waits for the classifier
// template with a bounded timeout; an unavailable or failing classifier
// degrades to the timeline fallback instead of failing the job.
func (s *Server) runDetection(jobID, audioPath, mode string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	s.jobs.setStatus(jobID, JobProcessing)

	result := s.detect(ctx, audioPath, mode)
	s.jobs.finish(jobID, result)

	if _, err := s.db.SaveResult(filepath.Base(audioPath), result); err != nil {
		s.log.Warnf("Persisting job %s failed: %v", jobID, err)
	}
}

func (s *Server) detect(ctx context.Context, audioPath, mode string) models.DetectionResult {
	if mode == ModeTimeline {
		return s.timelineService().DetectTimeline(ctx, audioPath)
	}

	wait := time.Duration(s.config.ModelWaitSeconds) * time.Second
	template, err := s.loader.Await(wait)
	if err != nil {
		if mode == ModeYAMNet {
			return models.DetectionResult{
				Method:   copyscan.MethodYAMNet,
				Segments: []models.ConfirmedSegment{},
				Error:    err.Error(),
			}
		}
		s.log.Warnf("Classifier unavailable (%v); using timeline fallback", err)
		return s.timelineService().DetectTimeline(ctx, audioPath)
	}

	svc, err := copyscan.NewService(append(s.serviceOptions(), copyscan.WithTemplate(template))...)
	if err != nil {
		s.log.Errorf("Building detection service: %v", err)
		return s.timelineService().DetectTimeline(ctx, audioPath)
	}
	defer svc.Close()

	result := svc.Detect(ctx, audioPath)
	if result.Error != "" && mode != ModeYAMNet {
		s.log.Warnf("Classifier run failed (%s); retrying with timeline fallback", result.Error)
		return s.timelineService().DetectTimeline(ctx, audioPath)
	}
	return result
}

// timelineService builds a classifier-free service for the fallback path.
func (s *Server) timelineService() copyscan.Service {
	svc, err := copyscan.NewService(s.serviceOptions()...)
	if err != nil {
		// Only reachable with a nil oracle, which main rules out.
		panic(err)
	}
	return svc
}

// serviceOptions is the shared option set for per-job services.
func (s *Server) serviceOptions() []copyscan.Option {
	cfg := s.config
	return []copyscan.Option{
		copyscan.WithLogger(s.log),
		copyscan.WithOracle(s.oracle),
		copyscan.WithAudio(s.audio),
		copyscan.WithTempDir(cfg.TempDir),
		copyscan.WithFrameThresholds(cfg.ConfidenceThreshold, cfg.BackgroundMusicThreshold),
		copyscan.WithMergeParams(cfg.MergeGap, cfg.MinSegmentDuration),
		copyscan.WithBoundaryParams(cfg.BoundarySampleRate, cfg.ChromaThreshold, cfg.MinBoundaryGap),
		copyscan.WithProbeParams(cfg.ProbeInterval, cfg.ProbeWindow, cfg.ProbeTailFloor),
		copyscan.WithFallbackParams(cfg.ChunkSeconds, cfg.OverlapSeconds, cfg.FallbackMergeGap),
	}
}
