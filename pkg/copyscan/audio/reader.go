package audio

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-audio/wav"
)

// ReadWavAsFloat64 reads a 16-bit PCM WAV file and returns mono samples
// normalized to [-1,1] and the sample rate. Stereo input is down-mixed by
// averaging channels.
func ReadWavAsFloat64(path string) ([]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decoding WAV: %w", err)
	}
	if buf == nil || buf.Format == nil {
		return nil, 0, errors.New("decoding WAV: empty PCM buffer")
	}
	if dec.BitDepth != 16 {
		return nil, 0, fmt.Errorf("unsupported bit depth %d: only 16-bit PCM supported", dec.BitDepth)
	}

	const scale = 1.0 / 32768.0
	data := buf.Data
	sampleRate := buf.Format.SampleRate

	switch buf.Format.NumChannels {
	case 1:
		out := make([]float64, len(data))
		for i, s := range data {
			out[i] = float64(s) * scale
		}
		return out, sampleRate, nil
	case 2:
		frames := len(data) / 2
		out := make([]float64, frames)
		for i := 0; i < frames; i++ {
			l := float64(data[2*i]) * scale
			r := float64(data[2*i+1]) * scale
			out[i] = (l + r) * 0.5
		}
		return out, sampleRate, nil
	default:
		return nil, 0, errors.New("unsupported channel count: only mono/stereo supported")
	}
}
