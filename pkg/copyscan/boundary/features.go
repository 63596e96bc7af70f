// Package boundary finds song-change instants inside a coarse music segment
// by change-point analysis over harmonic (chroma) and timbral (MFCC)
// features.
package boundary

import (
	"errors"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// STFT frame geometry for the boundary analysis.
const (
	WindowSize = 1024
	HopSize    = 512
)

// Hamming returns a Hamming window of length n.
func Hamming(n int) []float64 {
	w := make([]float64, n)
	for i := 0; i < n; i++ {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// STFT computes a time-major magnitude spectrogram:
// spectrogram[frameIdx][freqBin], positive frequencies only.
func STFT(samples []float64, windowSize, hopSize int) ([][]float64, error) {
	if len(samples) < windowSize {
		return nil, errors.New("input shorter than window size")
	}

	window := Hamming(windowSize)
	var spectrogram [][]float64
	frame := make([]float64, windowSize)

	for start := 0; start+windowSize <= len(samples); start += hopSize {
		copy(frame, samples[start:start+windowSize])
		for i := 0; i < windowSize; i++ {
			frame[i] *= window[i]
		}

		spectrum := fft.FFTReal(frame)
		half := len(spectrum) / 2
		mag := make([]float64, half)
		for i := 0; i < half; i++ {
			mag[i] = cmplx.Abs(spectrum[i])
		}
		spectrogram = append(spectrogram, mag)
	}
	return spectrogram, nil
}

// Chroma folds each magnitude frame onto the 12 pitch classes. Bins outside
// the musically useful band are ignored. Each frame is scaled by its peak so
// loudness does not dominate the change signal.
func Chroma(spec [][]float64, sampleRate, fftSize int) [][]float64 {
	const (
		minFreq = 55.0   // A1
		maxFreq = 4186.0 // C8
	)
	// frequency of MIDI note 0 (C-1); pitch class = round(12*log2(f/c0)) mod 12
	c0 := 440.0 * math.Pow(2, -69.0/12.0)

	chroma := make([][]float64, len(spec))
	for t, mag := range spec {
		frame := make([]float64, 12)
		for k := 1; k < len(mag); k++ {
			freq := float64(k) * float64(sampleRate) / float64(fftSize)
			if freq < minFreq || freq > maxFreq {
				continue
			}
			pc := ((int(math.Round(12*math.Log2(freq/c0))) % 12) + 12) % 12
			frame[pc] += mag[k]
		}
		peak := 0.0
		for _, v := range frame {
			if v > peak {
				peak = v
			}
		}
		if peak > 0 {
			for i := range frame {
				frame[i] /= peak
			}
		}
		chroma[t] = frame
	}
	return chroma
}

// MFCC computes numCoeffs mel-frequency cepstral coefficients per frame from
// a magnitude spectrogram, using a triangular mel filterbank and a DCT-II.
func MFCC(spec [][]float64, sampleRate, fftSize, numFilters, numCoeffs int) [][]float64 {
	filters := melFilterbank(sampleRate, fftSize, numFilters)

	mfcc := make([][]float64, len(spec))
	for t, mag := range spec {
		logEnergies := make([]float64, numFilters)
		for m, filter := range filters {
			energy := 0.0
			for k, w := range filter {
				if k < len(mag) {
					energy += mag[k] * mag[k] * w
				}
			}
			logEnergies[m] = math.Log(energy + 1e-10)
		}

		coeffs := make([]float64, numCoeffs)
		for n := 0; n < numCoeffs; n++ {
			sum := 0.0
			for m := 0; m < numFilters; m++ {
				sum += logEnergies[m] * math.Cos(math.Pi*float64(n)*(float64(m)+0.5)/float64(numFilters))
			}
			coeffs[n] = sum
		}
		mfcc[t] = coeffs
	}
	return mfcc
}

func hzToMel(hz float64) float64  { return 2595 * math.Log10(1+hz/700) }
func melToHz(mel float64) float64 { return 700 * (math.Pow(10, mel/2595) - 1) }

// melFilterbank builds numFilters triangular filters over the positive FFT
// bins, equally spaced on the mel scale between 0 and Nyquist.
func melFilterbank(sampleRate, fftSize, numFilters int) [][]float64 {
	nyquist := float64(sampleRate) / 2
	melPoints := make([]float64, numFilters+2)
	maxMel := hzToMel(nyquist)
	for i := range melPoints {
		melPoints[i] = float64(i) * maxMel / float64(numFilters+1)
	}

	binOf := func(mel float64) int {
		return int(math.Floor(melToHz(mel) / nyquist * float64(fftSize/2)))
	}

	filters := make([][]float64, numFilters)
	for m := 1; m <= numFilters; m++ {
		lo, center, hi := binOf(melPoints[m-1]), binOf(melPoints[m]), binOf(melPoints[m+1])
		filter := make([]float64, fftSize/2)
		for k := lo; k < center && k < len(filter); k++ {
			if center > lo && k >= 0 {
				filter[k] = float64(k-lo) / float64(center-lo)
			}
		}
		for k := center; k <= hi && k < len(filter); k++ {
			if hi > center && k >= 0 {
				filter[k] = float64(hi-k) / float64(hi-center)
			}
		}
		filters[m-1] = filter
	}
	return filters
}
