package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.DetectSampleRate != 16000 {
		t.Errorf("DetectSampleRate = %d, want 16000", cfg.DetectSampleRate)
	}
	if cfg.BoundarySampleRate != 22050 {
		t.Errorf("BoundarySampleRate = %d, want 22050", cfg.BoundarySampleRate)
	}
	if cfg.MergeGap != 2.0 || cfg.MinSegmentDuration != 2.0 {
		t.Errorf("Merge params = (%.2f, %.2f), want (2.00, 2.00)", cfg.MergeGap, cfg.MinSegmentDuration)
	}
	if cfg.ProbeInterval != 8.0 || cfg.ProbeWindow != 12.0 || cfg.ProbeTailFloor != 2.0 {
		t.Errorf("Probe params = (%.1f, %.1f, %.1f), want (8.0, 12.0, 2.0)",
			cfg.ProbeInterval, cfg.ProbeWindow, cfg.ProbeTailFloor)
	}
	if cfg.ChunkSeconds != 10.0 || cfg.OverlapSeconds != 2.0 {
		t.Errorf("Fallback chunking = (%.1f, %.1f), want (10.0, 2.0)", cfg.ChunkSeconds, cfg.OverlapSeconds)
	}
	if cfg.ModelWaitSeconds != 60 {
		t.Errorf("ModelWaitSeconds = %d, want 60", cfg.ModelWaitSeconds)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("CHROMA_THRESHOLD", "0.45")
	t.Setenv("DETECT_SAMPLE_RATE", "8000")

	cfg := Load()
	if cfg.Port != 9999 {
		t.Errorf("Port = %d, want 9999", cfg.Port)
	}
	if cfg.ChromaThreshold != 0.45 {
		t.Errorf("ChromaThreshold = %f, want 0.45", cfg.ChromaThreshold)
	}
	if cfg.DetectSampleRate != 8000 {
		t.Errorf("DetectSampleRate = %d, want 8000", cfg.DetectSampleRate)
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("PORT", "not-a-number")
	t.Setenv("MERGE_GAP", "wat")

	cfg := Load()
	if cfg.Port != 8080 {
		t.Errorf("Malformed PORT should fall back to 8080, got %d", cfg.Port)
	}
	if cfg.MergeGap != 2.0 {
		t.Errorf("Malformed MERGE_GAP should fall back to 2.0, got %f", cfg.MergeGap)
	}
}
