package copyscan

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"copyscan/pkg/copyscan/audio"
	"copyscan/pkg/copyscan/boundary"
	"copyscan/pkg/copyscan/detector"
	"copyscan/pkg/copyscan/oracle"
	"copyscan/pkg/logger"
	"copyscan/pkg/models"
)

// Detection method tags carried in results and persisted records.
const (
	MethodYAMNet   = "yamnet"
	MethodTimeline = "timeline"
)

// scanService is the default implementation of the Service interface.
type scanService struct {
	config *Config
	log    Logger
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}
	if cfg.Audio == nil {
		cfg.Audio = audio.NewProcessor(cfg.TempDir)
	}
	if cfg.Oracle == nil {
		return nil, fmt.Errorf("an identification oracle is required")
	}

	return &scanService{config: cfg, log: cfg.Logger}, nil
}

// Detect runs the full classifier pipeline: frame detection, coarse merging,
// boundary refinement, then probe confirmation of each fine segment.
func (s *scanService) Detect(ctx context.Context, audioPath string) models.DetectionResult {
	s.log.Infof("Detecting music regions in %s", audioPath)

	if s.config.Classifier == nil {
		return s.finish(audioPath, s.failResult(MethodYAMNet, fmt.Errorf("no classifier configured")))
	}
	session, err := s.config.Classifier.NewSession()
	if err != nil {
		return s.finish(audioPath, s.failResult(MethodYAMNet, err))
	}
	defer session.Close()

	waveform, err := s.config.Audio.LoadWaveform(ctx, audioPath, s.config.DetectSampleRate, 0, 0)
	if err != nil {
		return s.finish(audioPath, s.failResult(MethodYAMNet, err))
	}

	frames, err := detector.DetectFrames(session, waveform, detector.Params{
		SampleRate:               s.config.DetectSampleRate,
		ConfidenceThreshold:      s.config.ConfidenceThreshold,
		BackgroundMusicThreshold: s.config.BackgroundMusicThreshold,
	})
	if err != nil {
		return s.finish(audioPath, s.failResult(MethodYAMNet, err))
	}
	s.log.Infof("Found %d music-active frames", len(frames))

	coarse := detector.MergeFrames(frames, s.config.MergeGap, s.config.MinSegmentDuration)
	if len(coarse) == 0 {
		return s.finish(audioPath, cleanResult(MethodYAMNet))
	}
	s.log.Infof("Merged into %d coarse segments", len(coarse))

	fine := s.refine(ctx, audioPath, coarse)
	s.log.Infof("Refined into %d fine segments", len(fine))

	confirmed, err := s.probeSegments(ctx, audioPath, fine)
	if err != nil {
		return s.finish(audioPath, s.failResult(MethodYAMNet, err))
	}

	result := models.DetectionResult{
		Copyrighted: models.Bool(len(confirmed) > 0),
		Segments:    confirmed,
		Method:      MethodYAMNet,
	}
	return s.finish(audioPath, result)
}

// refine splits each coarse segment at song-change boundaries. A failed
// sub-range decode keeps the coarse segment whole rather than aborting the
// run.
func (s *scanService) refine(ctx context.Context, audioPath string, coarse []models.Segment) []models.Segment {
	var fine []models.Segment
	for _, seg := range coarse {
		sub, err := s.config.Audio.LoadWaveform(ctx, audioPath, s.config.BoundarySampleRate, seg.Start, seg.Duration())
		if err != nil {
			s.log.Warnf("Boundary analysis skipped for [%.2f, %.2f]: %v", seg.Start, seg.End, err)
			fine = append(fine, seg)
			continue
		}
		bounds := boundary.FindBoundaries(sub, seg.Start, boundary.Params{
			SampleRate:      s.config.BoundarySampleRate,
			ChromaThreshold: s.config.ChromaThreshold,
			MinBoundaryGap:  s.config.MinBoundaryGap,
		})
		fine = append(fine, boundary.SplitAtBoundaries(seg, bounds)...)
	}
	return fine
}

// probeSegments walks each fine segment at ProbeInterval steps, queries the
// oracle with a clip of up to ProbeWindow seconds, and stitches hits into
// confirmed segments. Network failures count as per-probe misses; a protocol
// error aborts the whole run, since every further probe would fail the same
// way. A tail at or under ProbeTailFloor is not probed.
func (s *scanService) probeSegments(ctx context.Context, audioPath string, segments []models.Segment) ([]models.ConfirmedSegment, error) {
	confirmed := []models.ConfirmedSegment{}
	for _, seg := range segments {
		for probeStart := seg.Start; probeStart < seg.End; probeStart += s.config.ProbeInterval {
			remaining := seg.End - probeStart
			if remaining <= s.config.ProbeTailFloor {
				break
			}
			window := math.Min(s.config.ProbeWindow, remaining)

			verdict, err := s.identifyRange(ctx, audioPath, probeStart, window)
			if err != nil {
				if errors.Is(err, oracle.ErrProtocol) {
					return nil, err
				}
				s.log.Warnf("Probe at %.2fs failed: %v", probeStart, err)
				continue
			}
			if !verdict.Matched || verdict.Track == nil {
				continue
			}
			s.log.Debugf("Probe at %.2fs matched %q (%s)", probeStart, verdict.Track.Title, verdict.Track.TrackID)
			confirmed = stitch(confirmed, probeStart, probeStart+window, *verdict.Track)
		}
	}
	return confirmed, nil
}

// DetectTimeline is the classifier-free fallback: it partitions the whole
// recording into fixed overlapping chunks, identifies each, and merges
// adjacent hits of the same track.
func (s *scanService) DetectTimeline(ctx context.Context, audioPath string) models.DetectionResult {
	s.log.Infof("Running timeline fallback over %s", audioPath)

	total, err := s.config.Audio.Duration(ctx, audioPath)
	if err != nil {
		return s.finish(audioPath, s.failResult(MethodTimeline, err))
	}

	step := s.config.ChunkSeconds - s.config.OverlapSeconds
	if step <= 0 {
		step = s.config.ChunkSeconds
	}

	hits := []models.ConfirmedSegment{}
	for start := 0.0; start < total; start += step {
		window := math.Min(s.config.ChunkSeconds, total-start)
		if window <= 0 {
			break
		}

		verdict, err := s.identifyRange(ctx, audioPath, start, window)
		if err != nil {
			if errors.Is(err, oracle.ErrProtocol) {
				return s.finish(audioPath, s.failResult(MethodTimeline, err))
			}
			s.log.Warnf("Chunk at %.2fs failed: %v", start, err)
			continue
		}
		if !verdict.Matched || verdict.Track == nil {
			continue
		}
		hits = append(hits, models.ConfirmedSegment{
			Start:    round2(start),
			End:      round2(start + window),
			Duration: round2(window),
			Track:    *verdict.Track,
		})
	}

	result := models.DetectionResult{
		Copyrighted: models.Bool(len(hits) > 0),
		Segments:    mergeTimelineHits(hits, s.config.FallbackMergeGap),
		Method:      MethodTimeline,
	}
	return s.finish(audioPath, result)
}

// identifyRange extracts [start, start+window) as a clip, queries the oracle,
// and removes the clip.
func (s *scanService) identifyRange(ctx context.Context, audioPath string, start, window float64) (*models.Verdict, error) {
	clip, err := s.config.Audio.ExtractClip(ctx, audioPath, start, window)
	if err != nil {
		return nil, err
	}
	defer os.Remove(clip)
	return s.config.Oracle.Identify(ctx, clip)
}

func (s *scanService) Close() error {
	return nil
}

// finish persists the result when a store is configured and returns it.
func (s *scanService) finish(audioPath string, result models.DetectionResult) models.DetectionResult {
	if result.Error != "" {
		s.log.Errorf("Detection of %s failed: %s", audioPath, result.Error)
	} else {
		s.log.Infof("Detection of %s done: %d confirmed segments", audioPath, len(result.Segments))
	}
	if s.config.Store != nil {
		if _, err := s.config.Store.SaveResult(filepath.Base(audioPath), result); err != nil {
			s.log.Warnf("Persisting result for %s failed: %v", audioPath, err)
		}
	}
	return result
}

func (s *scanService) failResult(method string, err error) models.DetectionResult {
	return models.DetectionResult{
		Copyrighted: nil,
		Segments:    []models.ConfirmedSegment{},
		Method:      method,
		Error:       err.Error(),
	}
}

func cleanResult(method string) models.DetectionResult {
	return models.DetectionResult{
		Copyrighted: models.Bool(false),
		Segments:    []models.ConfirmedSegment{},
		Method:      method,
	}
}

// stitch folds one confirmed probe hit into the running segment list. Only
// the latest segment can be extended: the hit must carry the same track id
// and start at or before that segment's current end. Anything else appends a
// new segment, so a transient miss between two probes of the same track does
// not get bridged.
func stitch(confirmed []models.ConfirmedSegment, start, end float64, track models.Track) []models.ConfirmedSegment {
	if n := len(confirmed); n > 0 {
		last := &confirmed[n-1]
		if last.Track.TrackID == track.TrackID && start <= last.End {
			if end > last.End {
				last.End = round2(end)
				last.Duration = round2(last.End - last.Start)
			}
			return confirmed
		}
	}
	return append(confirmed, models.ConfirmedSegment{
		Start:    round2(start),
		End:      round2(end),
		Duration: round2(end - start),
		Track:    track,
	})
}

// mergeTimelineHits collapses time-ordered chunk hits: a hit merges into the
// previous one only when it names the same track and starts within gap
// seconds of its end.
func mergeTimelineHits(hits []models.ConfirmedSegment, gap float64) []models.ConfirmedSegment {
	merged := []models.ConfirmedSegment{}
	for _, h := range hits {
		if n := len(merged); n > 0 {
			last := &merged[n-1]
			if last.Track.TrackID == h.Track.TrackID && h.Start-last.End <= gap {
				if h.End > last.End {
					last.End = h.End
					last.Duration = round2(last.End - last.Start)
				}
				continue
			}
		}
		merged = append(merged, h)
	}
	return merged
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
