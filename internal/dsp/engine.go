// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package dsp

import (
	"fmt"

	"github.com/relabs-tech/accel_fir/internal/imu"
)

// Engine filters windows of blocks on three axes, one FIR per axis sharing
// a coefficient table.
type Engine struct {
	blocks int
	x, y, z *FIR
}

// EngineState is the delay line of each axis.
type EngineState struct {
	X, Y, Z State
}

// NewEngine returns an engine for windows of blocks blocks of blockSize samples.
func NewEngine(coeffs []float32, blockSize, blocks int) (*Engine, error) {
	if blocks <= 0 {
		return nil, fmt.Errorf("dsp: invalid blocks per window %d", blocks)
	}
	e := &Engine{blocks: blocks}
	var err error
	for _, p := range []**FIR{&e.x, &e.y, &e.z} {
		if *p, err = NewFIR(coeffs, blockSize); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// WindowLen returns the per-axis sample count of a window.
func (e *Engine) WindowLen() int {
	return e.blocks * e.x.BlockSize()
}

// FilterWindow filters every block of in, in order, into out. Each axis of
// in and out must hold exactly WindowLen samples.
func (e *Engine) FilterWindow(in, out imu.Axes) error {
	n := e.WindowLen()
	axes := []struct {
		name    string
		f       *FIR
		in, out []float32
	}{
		{"x", e.x, in.X, out.X},
		{"y", e.y, in.Y, out.Y},
		{"z", e.z, in.Z, out.Z},
	}
	for _, a := range axes {
		if len(a.in) != n || len(a.out) != n {
			return fmt.Errorf("%w: axis %s in=%d out=%d want %d", ErrBlockSize, a.name, len(a.in), len(a.out), n)
		}
	}
	bs := e.x.BlockSize()
	for _, a := range axes {
		for b := 0; b < e.blocks; b++ {
			lo, hi := b*bs, (b+1)*bs
			if err := a.f.Process(a.in[lo:hi], a.out[lo:hi]); err != nil {
				return fmt.Errorf("dsp: axis %s block %d: %w", a.name, b, err)
			}
		}
	}
	return nil
}

// Snapshot copies the per-axis filter state.
func (e *Engine) Snapshot() EngineState {
	return EngineState{X: e.x.Snapshot(), Y: e.y.Snapshot(), Z: e.z.Snapshot()}
}

// Restore replaces the per-axis filter state.
func (e *Engine) Restore(s EngineState) error {
	if err := e.x.Restore(s.X); err != nil {
		return err
	}
	if err := e.y.Restore(s.Y); err != nil {
		return err
	}
	return e.z.Restore(s.Z)
}

// Reset zeroes every delay line.
func (e *Engine) Reset() {
	e.x.Reset()
	e.y.Reset()
	e.z.Reset()
}
