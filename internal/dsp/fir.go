// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package dsp implements the block FIR filter applied to accelerometer windows.
package dsp

import (
	"errors"
	"fmt"
)

var (
	// ErrBlockSize is returned when Process is given a block of the wrong length.
	ErrBlockSize = errors.New("dsp: wrong block size")
	// ErrState is returned when restoring a snapshot from a different filter.
	ErrState = errors.New("dsp: state does not match filter")
)

// FIR is a direct form FIR filter processing fixed-size blocks. The delay
// line carries the last len(coeffs)-1 inputs across calls, so a signal split
// into blocks filters to the same output as the signal in one piece.
type FIR struct {
	coeffs    []float32
	blockSize int
	// buf is [history | current block]; history is the last taps-1 inputs.
	buf []float32
}

// State is a copy of a filter's delay line.
type State struct {
	Delay []float32
}

// NewFIR returns a filter over coeffs taking blocks of blockSize samples.
// The coefficient slice is copied.
func NewFIR(coeffs []float32, blockSize int) (*FIR, error) {
	if len(coeffs) == 0 {
		return nil, errors.New("dsp: no coefficients")
	}
	if blockSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrBlockSize, blockSize)
	}
	c := make([]float32, len(coeffs))
	copy(c, coeffs)
	return &FIR{
		coeffs:    c,
		blockSize: blockSize,
		buf:       make([]float32, len(coeffs)-1+blockSize),
	}, nil
}

// NumTaps returns the filter length.
func (f *FIR) NumTaps() int { return len(f.coeffs) }

// BlockSize returns the number of samples Process takes.
func (f *FIR) BlockSize() int { return f.blockSize }

// Process filters one block from in into out. in and out may alias.
func (f *FIR) Process(in, out []float32) error {
	if len(in) != f.blockSize || len(out) != f.blockSize {
		return fmt.Errorf("%w: in=%d out=%d want %d", ErrBlockSize, len(in), len(out), f.blockSize)
	}
	hist := len(f.coeffs) - 1
	copy(f.buf[hist:], in)

	for n := 0; n < f.blockSize; n++ {
		var acc float32
		x := f.buf[n : n+hist+1]
		for k, b := range f.coeffs {
			acc += b * x[hist-k]
		}
		out[n] = acc
	}

	copy(f.buf, f.buf[f.blockSize:])
	return nil
}

// Snapshot returns a copy of the delay line.
func (f *FIR) Snapshot() State {
	d := make([]float32, len(f.coeffs)-1)
	copy(d, f.buf)
	return State{Delay: d}
}

// Restore replaces the delay line with s.
func (f *FIR) Restore(s State) error {
	if len(s.Delay) != len(f.coeffs)-1 {
		return fmt.Errorf("%w: delay %d, want %d", ErrState, len(s.Delay), len(f.coeffs)-1)
	}
	copy(f.buf, s.Delay)
	return nil
}

// Reset zeroes the delay line.
func (f *FIR) Reset() {
	clear(f.buf)
}
