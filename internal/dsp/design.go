// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package dsp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Defaults for the built-in filter.
const (
	DefaultNumTaps  = 58
	DefaultCutoffHz = 2.5
)

// DesignLowPass returns a Hamming-windowed sinc low-pass filter of numTaps
// taps with cutoff given as a fraction of the sample rate (0 < cutoff < 0.5).
// The taps are scaled to unity gain at DC.
func DesignLowPass(numTaps int, cutoff float64) ([]float32, error) {
	if numTaps < 2 {
		return nil, fmt.Errorf("dsp: need at least 2 taps, got %d", numTaps)
	}
	if cutoff <= 0 || cutoff >= 0.5 {
		return nil, fmt.Errorf("dsp: cutoff %g outside (0, 0.5)", cutoff)
	}

	m := float64(numTaps - 1)
	h := make([]float64, numTaps)
	for n := range h {
		t := float64(n) - m/2
		var sinc float64
		if t == 0 {
			sinc = 2 * cutoff
		} else {
			sinc = math.Sin(2*math.Pi*cutoff*t) / (math.Pi * t)
		}
		// Hamming window written around the centre so the taps stay exactly symmetric.
		w := 0.54 + 0.46*math.Cos(2*math.Pi*t/m)
		h[n] = sinc * w
	}

	sum := floats.Sum(h)
	if sum == 0 {
		return nil, fmt.Errorf("dsp: degenerate filter (zero DC gain)")
	}
	floats.Scale(1/sum, h)

	out := make([]float32, numTaps)
	for i, v := range h {
		out[i] = float32(v)
	}
	return out, nil
}

// DefaultCoefficients designs the built-in filter for sampleRate.
func DefaultCoefficients(sampleRate float64) ([]float32, error) {
	return DesignLowPass(DefaultNumTaps, DefaultCutoffHz/sampleRate)
}

// DCGain returns the sum of the coefficients.
func DCGain(coeffs []float32) float64 {
	f := make([]float64, len(coeffs))
	for i, c := range coeffs {
		f[i] = float64(c)
	}
	return floats.Sum(f)
}
