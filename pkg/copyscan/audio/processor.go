// Package audio shells out to ffmpeg/ffprobe for decoding and clip
// extraction. The pipeline itself never runs subprocesses directly; it goes
// through the Processor.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"copyscan/pkg/utils"
)

// ErrDecode marks a source file that ffmpeg could not read. It is fatal to
// the detection run.
var ErrDecode = errors.New("audio decode failed")

// Processor loads waveforms and extracts short clips via ffmpeg.
type Processor struct {
	TempDir string
}

// NewProcessor returns a Processor writing intermediate files under tempDir.
func NewProcessor(tempDir string) *Processor {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Processor{TempDir: tempDir}
}

// LoadWaveform decodes a sub-range of an audio file to mono float64 samples
// at the requested rate. offset/duration in seconds; duration <= 0 means
// "to the end of the file".
func (p *Processor) LoadWaveform(ctx context.Context, inputPath string, sampleRate int, offset, duration float64) ([]float64, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
	}

	if err := utils.MakeDir(p.TempDir); err != nil {
		return nil, err
	}

	tmpPath := filepath.Join(p.TempDir, fmt.Sprintf("wave_%s.wav", utils.GenerateUUID()))
	defer os.Remove(tmpPath)

	args := []string{"-y", "-v", "quiet", "-i", inputPath}
	if offset > 0 {
		args = append(args, "-ss", formatSeconds(offset))
	}
	if duration > 0 {
		args = append(args, "-t", formatSeconds(duration))
	}
	args = append(args,
		"-ac", "1", // mono
		"-ar", strconv.Itoa(sampleRate),
		"-c:a", "pcm_s16le",
		tmpPath,
	)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: ffmpeg: %v (%s)", ErrDecode, err, out)
	}

	samples, _, err := ReadWavAsFloat64(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return samples, nil
}

// ExtractClip cuts [start, start+duration) out of an audio file into a small
// MP3 suitable for an oracle probe. The caller removes the returned file.
func (p *Processor) ExtractClip(ctx context.Context, inputPath string, start, duration float64) (string, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}

	if err := utils.MakeDir(p.TempDir); err != nil {
		return "", err
	}

	clipPath := filepath.Join(p.TempDir, fmt.Sprintf("probe_%s.mp3", utils.GenerateUUID()))
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y",
		"-v", "quiet",
		"-i", inputPath,
		"-ss", formatSeconds(start),
		"-t", formatSeconds(duration),
		"-acodec", "libmp3lame",
		"-q:a", "9",
		clipPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: ffmpeg clip: %v (%s)", ErrDecode, err, out)
	}
	return clipPath, nil
}

// Duration returns the total duration of an audio file in seconds, via ffprobe.
func (p *Processor) Duration(ctx context.Context, inputPath string) (float64, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		inputPath,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fmt.Errorf("%w: ffprobe: %v (%s)", ErrDecode, err, stderr.String())
	}

	d, err := strconv.ParseFloat(strings.TrimSpace(stdout.String()), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: parsing ffprobe duration: %v", ErrDecode, err)
	}
	return d, nil
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
