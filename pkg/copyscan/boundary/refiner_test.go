package boundary

import (
	"math"
	"testing"

	"copyscan/pkg/models"
)

func sine(freq float64, seconds float64, sampleRate int) []float64 {
	n := int(seconds * float64(sampleRate))
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freq * float64(i) / float64(sampleRate))
	}
	return out
}

func TestSTFTFrameGeometry(t *testing.T) {
	const sampleRate = 22050
	samples := sine(440, 2.0, sampleRate)

	spec, err := STFT(samples, WindowSize, HopSize)
	if err != nil {
		t.Fatalf("STFT failed: %v", err)
	}

	wantFrames := (len(samples)-WindowSize)/HopSize + 1
	if len(spec) != wantFrames {
		t.Errorf("Got %d frames, want %d", len(spec), wantFrames)
	}
	for i, frame := range spec {
		if len(frame) != WindowSize/2 {
			t.Fatalf("Frame %d has %d bins, want %d", i, len(frame), WindowSize/2)
		}
	}

	// A 440Hz tone should peak near bin 440*1024/22050 ≈ 20.
	wantBin := int(math.Round(440.0 * WindowSize / sampleRate))
	peakBin := 0
	for k, v := range spec[0] {
		if v > spec[0][peakBin] {
			peakBin = k
		}
	}
	if peakBin < wantBin-1 || peakBin > wantBin+1 {
		t.Errorf("Tone peaked at bin %d, want near %d", peakBin, wantBin)
	}
}

func TestSTFTTooShort(t *testing.T) {
	if _, err := STFT(make([]float64, WindowSize-1), WindowSize, HopSize); err == nil {
		t.Error("Expected error for input shorter than the window")
	}
}

func TestChromaPitchClass(t *testing.T) {
	const sampleRate = 22050
	samples := sine(440, 1.0, sampleRate)

	spec, err := STFT(samples, WindowSize, HopSize)
	if err != nil {
		t.Fatalf("STFT failed: %v", err)
	}
	chroma := Chroma(spec, sampleRate, WindowSize)

	// 440Hz is A: pitch class 9 counting from C.
	for t0, frame := range chroma {
		best := 0
		for pc, v := range frame {
			if v > frame[best] {
				best = pc
			}
		}
		if best != 9 {
			t.Fatalf("Frame %d: 440Hz tone landed on pitch class %d, want 9", t0, best)
		}
		if math.Abs(frame[best]-1.0) > 1e-9 {
			t.Fatalf("Frame %d: peak pitch class not normalized to 1, got %f", t0, frame[best])
		}
	}
}

func TestMFCCShape(t *testing.T) {
	const sampleRate = 22050
	samples := sine(880, 1.0, sampleRate)

	spec, err := STFT(samples, WindowSize, HopSize)
	if err != nil {
		t.Fatalf("STFT failed: %v", err)
	}
	mfcc := MFCC(spec, sampleRate, WindowSize, melFilters, mfccCoeffs)

	if len(mfcc) != len(spec) {
		t.Fatalf("Got %d MFCC frames, want %d", len(mfcc), len(spec))
	}
	for i, frame := range mfcc {
		if len(frame) != mfccCoeffs {
			t.Fatalf("Frame %d has %d coefficients, want %d", i, len(frame), mfccCoeffs)
		}
		for _, c := range frame {
			if math.IsNaN(c) || math.IsInf(c, 0) {
				t.Fatalf("Frame %d has non-finite coefficient", i)
			}
		}
	}
}

func TestFindBoundariesMinGapInvariant(t *testing.T) {
	const sampleRate = 22050
	// Alternate between two tones every 3 seconds: plenty of spectral change.
	var samples []float64
	freqs := []float64{220, 523.25, 220, 523.25, 220, 523.25}
	for _, f := range freqs {
		samples = append(samples, sine(f, 3.0, sampleRate)...)
	}

	p := Params{SampleRate: sampleRate, ChromaThreshold: 0.3, MinBoundaryGap: 5.0}
	boundaries := FindBoundaries(samples, 10.0, p)

	for i := 1; i < len(boundaries); i++ {
		if boundaries[i]-boundaries[i-1] < p.MinBoundaryGap {
			t.Errorf("Boundaries %f and %f violate the %.1fs min gap",
				boundaries[i-1], boundaries[i], p.MinBoundaryGap)
		}
	}
	for _, b := range boundaries {
		if b < 10.0 || b > 10.0+float64(len(samples))/float64(sampleRate) {
			t.Errorf("Boundary %f falls outside the analyzed range", b)
		}
	}
}

func TestFindBoundariesTooShort(t *testing.T) {
	const sampleRate = 22050
	samples := sine(440, 1.0, sampleRate) // below the 2s analysis floor

	boundaries := FindBoundaries(samples, 0, Params{SampleRate: sampleRate, ChromaThreshold: 0.3, MinBoundaryGap: 5.0})
	if len(boundaries) != 0 {
		t.Errorf("Expected no boundaries for a sub-floor segment, got %v", boundaries)
	}
}

func TestSplitAtBoundariesPartitions(t *testing.T) {
	seg := models.Segment{Start: 10, End: 40}
	boundaries := []float64{25, 18, 10, 40, 5, 50} // unsorted, with out-of-range values

	parts := SplitAtBoundaries(seg, boundaries)
	if len(parts) != 3 {
		t.Fatalf("Expected 3 parts, got %d: %+v", len(parts), parts)
	}
	if parts[0].Start != seg.Start {
		t.Errorf("First part starts at %f, want %f", parts[0].Start, seg.Start)
	}
	if parts[len(parts)-1].End != seg.End {
		t.Errorf("Last part ends at %f, want %f", parts[len(parts)-1].End, seg.End)
	}
	for i := 1; i < len(parts); i++ {
		if parts[i].Start != parts[i-1].End {
			t.Errorf("Parts %d and %d do not abut: %+v", i-1, i, parts)
		}
	}
}

func TestSplitAtBoundariesNoSurvivors(t *testing.T) {
	seg := models.Segment{Start: 10, End: 20}
	parts := SplitAtBoundaries(seg, []float64{10, 20, 3})
	if len(parts) != 1 || parts[0] != seg {
		t.Errorf("Expected the whole segment back, got %+v", parts)
	}
}

func TestNormalizeToUnit(t *testing.T) {
	out := normalizeToUnit([]float64{1, 2, 4})
	if out[2] != 1.0 || out[0] != 0.25 {
		t.Errorf("Unexpected normalization: %v", out)
	}

	zeros := normalizeToUnit([]float64{0, 0, 0})
	for _, v := range zeros {
		if v != 0 {
			t.Errorf("Zero series should stay zero, got %v", zeros)
		}
	}
}

func TestMeanAbsDiff(t *testing.T) {
	feat := [][]float64{{0, 0}, {1, 3}, {1, 3}}
	diffs := meanAbsDiff(feat)
	if len(diffs) != 2 {
		t.Fatalf("Expected 2 diffs, got %d", len(diffs))
	}
	if diffs[0] != 2.0 {
		t.Errorf("diffs[0] = %f, want 2.0", diffs[0])
	}
	if diffs[1] != 0.0 {
		t.Errorf("diffs[1] = %f, want 0.0", diffs[1])
	}

	if meanAbsDiff([][]float64{{1}}) != nil {
		t.Error("Single-frame input should yield nil")
	}
}
