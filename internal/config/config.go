// Package config loads the application configuration from the environment,
// optionally seeded from a .env file. Every pipeline tunable lives here so
// nothing in the core carries magic numbers.
package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
type Config struct {
	// Server
	Port      int
	UploadDir string
	TempDir   string
	DBPath    string

	// Identification oracle (ACRCloud-compatible)
	ACRHost      string
	ACRAccessKey string
	ACRSecret    string

	// Classifier artifacts
	ModelPath    string
	ClassMapPath string
	// Seconds a job waits for the classifier template to finish loading
	// before falling back to the timeline segmenter.
	ModelWaitSeconds int

	// Frame detection
	DetectSampleRate         int     // classifier input rate
	ConfidenceThreshold      float64 // clear-music bar on the music score
	BackgroundMusicThreshold float64 // lower bar when speech dominates
	MergeGap                 float64 // max silence between frames merged into one segment
	MinSegmentDuration       float64 // coarse segments shorter than this are dropped

	// Boundary refinement
	BoundarySampleRate int     // analysis rate for change-point features
	ChromaThreshold    float64 // change-signal level that marks a boundary candidate
	MinBoundaryGap     float64 // min seconds between accepted boundaries

	// Probe confirmation
	ProbeInterval  float64 // seconds between probe starts within a fine segment
	ProbeWindow    float64 // seconds of audio submitted per probe
	ProbeTailFloor float64 // min residual tail; no probe starts inside it

	// Fallback timeline segmenter
	ChunkSeconds     float64
	OverlapSeconds   float64
	FallbackMergeGap float64
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvFloat gets an environment variable as float64 or returns a default value.
func getEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load never overrides variables already in the environment.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables and defaults.")
	}

	uploadBase := getEnv("UPLOAD_DIR", "uploads")

	return &Config{
		Port:      getEnvInt("PORT", 8080),
		UploadDir: uploadBase,
		TempDir:   getEnv("COPYSCAN_TEMP_DIR", os.TempDir()),
		DBPath:    getEnv("COPYSCAN_DB_PATH", filepath.Join("data", "copyscan.sqlite3")),

		ACRHost:      getEnv("ACR_HOST", "identify-us.acrcloud.com"),
		ACRAccessKey: os.Getenv("ACR_ACCESS_KEY"),
		ACRSecret:    os.Getenv("ACR_ACCESS_SECRET"),

		ModelPath:        getEnv("YAMNET_MODEL_PATH", "yamnet.tflite"),
		ClassMapPath:     getEnv("YAMNET_CLASS_MAP_PATH", "yamnet_class_map.csv"),
		ModelWaitSeconds: getEnvInt("MODEL_WAIT_SECONDS", 60),

		DetectSampleRate:         getEnvInt("DETECT_SAMPLE_RATE", 16000),
		ConfidenceThreshold:      getEnvFloat("CONFIDENCE_THRESHOLD", 0.1),
		BackgroundMusicThreshold: getEnvFloat("BACKGROUND_MUSIC_THRESHOLD", 0.05),
		MergeGap:                 getEnvFloat("MERGE_GAP", 2.0),
		MinSegmentDuration:       getEnvFloat("MIN_SEGMENT_DURATION", 2.0),

		BoundarySampleRate: getEnvInt("BOUNDARY_SAMPLE_RATE", 22050),
		ChromaThreshold:    getEnvFloat("CHROMA_THRESHOLD", 0.3),
		MinBoundaryGap:     getEnvFloat("MIN_BOUNDARY_GAP", 5.0),

		ProbeInterval:  getEnvFloat("PROBE_INTERVAL", 8.0),
		ProbeWindow:    getEnvFloat("PROBE_WINDOW", 12.0),
		ProbeTailFloor: getEnvFloat("PROBE_TAIL_FLOOR", 2.0),

		ChunkSeconds:     getEnvFloat("CHUNK_SECONDS", 10.0),
		OverlapSeconds:   getEnvFloat("OVERLAP_SECONDS", 2.0),
		FallbackMergeGap: getEnvFloat("FALLBACK_MERGE_GAP", 2.0),
	}
}
