package boundary

import (
	"math"
	"sort"

	"copyscan/pkg/models"
)

// Params are the boundary-detection tunables.
type Params struct {
	SampleRate      int     // analysis rate of the samples handed to FindBoundaries
	ChromaThreshold float64 // change-signal level marking a boundary candidate
	MinBoundaryGap  float64 // min seconds between two accepted boundaries
}

// Segments shorter than this are too short to feature-analyze; they yield no
// boundaries.
const minAnalysisSeconds = 2.0

const mfccCoeffs = 13
const melFilters = 26

// FindBoundaries returns song-change instants (absolute seconds) inside a
// coarse segment whose audio sub-range is given as samples at p.SampleRate.
// Any two returned boundaries are at least MinBoundaryGap apart.
func FindBoundaries(samples []float64, segStart float64, p Params) []float64 {
	if len(samples) < int(minAnalysisSeconds*float64(p.SampleRate)) {
		return nil
	}

	spec, err := STFT(samples, WindowSize, HopSize)
	if err != nil || len(spec) < 2 {
		return nil
	}

	chroma := Chroma(spec, p.SampleRate, WindowSize)
	mfcc := MFCC(spec, p.SampleRate, WindowSize, melFilters, mfccCoeffs)

	chromaDiff := normalizeToUnit(meanAbsDiff(chroma))
	mfccDiff := normalizeToUnit(meanAbsDiff(mfcc))

	combined := make([]float64, len(chromaDiff))
	for i := range combined {
		combined[i] = (chromaDiff[i] + mfccDiff[i]) / 2
	}

	hopDuration := float64(HopSize) / float64(p.SampleRate)
	var boundaries []float64
	lastAccepted := -p.MinBoundaryGap

	for i, change := range combined {
		if change < p.ChromaThreshold {
			continue
		}
		absTime := segStart + float64(i)*hopDuration
		if absTime-lastAccepted >= p.MinBoundaryGap {
			boundaries = append(boundaries, math.Round(absTime*100)/100)
			lastAccepted = absTime
		}
	}
	return boundaries
}

// SplitAtBoundaries cuts a coarse segment at every boundary strictly inside
// it. The result partitions the segment exactly; with no surviving boundary
// the whole segment comes back as a single fine segment.
func SplitAtBoundaries(seg models.Segment, boundaries []float64) []models.Segment {
	var valid []float64
	for _, b := range boundaries {
		if b > seg.Start && b < seg.End {
			valid = append(valid, b)
		}
	}
	if len(valid) == 0 {
		return []models.Segment{seg}
	}
	sort.Float64s(valid)

	points := append([]float64{seg.Start}, valid...)
	points = append(points, seg.End)

	segments := make([]models.Segment, 0, len(points)-1)
	for i := 0; i+1 < len(points); i++ {
		segments = append(segments, models.Segment{Start: points[i], End: points[i+1]})
	}
	return segments
}

// meanAbsDiff returns, for each pair of consecutive frames, the mean
// absolute difference across feature bins. Length is len(feat)-1.
func meanAbsDiff(feat [][]float64) []float64 {
	if len(feat) < 2 {
		return nil
	}
	diffs := make([]float64, len(feat)-1)
	for t := 1; t < len(feat); t++ {
		sum := 0.0
		for b := range feat[t] {
			sum += math.Abs(feat[t][b] - feat[t-1][b])
		}
		diffs[t-1] = sum / float64(len(feat[t]))
	}
	return diffs
}

// normalizeToUnit scales a non-negative series by its maximum so it lands in
// [0,1]. A series whose maximum is 0 is returned unscaled to avoid dividing
// by zero.
func normalizeToUnit(series []float64) []float64 {
	max := 0.0
	for _, v := range series {
		if v > max {
			max = v
		}
	}
	if max == 0 {
		return series
	}
	out := make([]float64, len(series))
	for i, v := range series {
		out[i] = v / max
	}
	return out
}
