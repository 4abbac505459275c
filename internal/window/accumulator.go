// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package window accumulates FIFO blocks into fixed-size per-axis windows.
package window

import (
	"errors"
	"fmt"

	"github.com/relabs-tech/accel_fir/internal/imu"
)

var (
	// ErrBlockOverflow is returned when a block holds more frames than fit.
	ErrBlockOverflow = errors.New("window: block larger than samples per block")
	// ErrWindowFull is returned when appending to a complete window.
	ErrWindowFull = errors.New("window: all blocks filled")
)

// Accumulator holds blocks×spb samples per axis plus the block counter.
// It is not safe for concurrent use; ownership is handed between goroutines.
type Accumulator struct {
	spb    int
	blocks int

	x, y, z []float32
	fill    []int
	count   int
}

// New returns an empty accumulator for blocks blocks of spb samples.
func New(spb, blocks int) (*Accumulator, error) {
	if spb <= 0 || blocks <= 0 {
		return nil, fmt.Errorf("window: invalid geometry %d×%d", blocks, spb)
	}
	n := spb * blocks
	return &Accumulator{
		spb:    spb,
		blocks: blocks,
		x:      make([]float32, n),
		y:      make([]float32, n),
		z:      make([]float32, n),
		fill:   make([]int, blocks),
	}, nil
}

// AppendBlock stores frames as the next block and advances the counter.
// Frame i lands at count×spb+i. A short block is padded by repeating the
// last delivered sample. On error nothing is modified.
func (a *Accumulator) AppendBlock(frames []imu.Frame) error {
	if a.count >= a.blocks {
		return ErrWindowFull
	}
	if len(frames) > a.spb {
		return fmt.Errorf("%w: %d > %d", ErrBlockOverflow, len(frames), a.spb)
	}

	base := a.count * a.spb
	for i, f := range frames {
		a.x[base+i] = float32(f.X)
		a.y[base+i] = float32(f.Y)
		a.z[base+i] = float32(f.Z)
	}

	var hx, hy, hz float32
	switch {
	case len(frames) > 0:
		last := base + len(frames) - 1
		hx, hy, hz = a.x[last], a.y[last], a.z[last]
	case base > 0:
		hx, hy, hz = a.x[base-1], a.y[base-1], a.z[base-1]
	}
	for i := base + len(frames); i < base+a.spb; i++ {
		a.x[i], a.y[i], a.z[i] = hx, hy, hz
	}

	a.fill[a.count] = len(frames)
	a.count++
	return nil
}

// Count returns the number of blocks appended since the last reset.
func (a *Accumulator) Count() int { return a.count }

// Full reports whether every block of the window has been appended.
func (a *Accumulator) Full() bool { return a.count == a.blocks }

// SamplesPerBlock returns the block size.
func (a *Accumulator) SamplesPerBlock() int { return a.spb }

// Blocks returns the number of blocks per window.
func (a *Accumulator) Blocks() int { return a.blocks }

// Len returns the per-axis capacity.
func (a *Accumulator) Len() int { return len(a.x) }

// Axes returns the per-axis buffers. The slices alias the accumulator.
func (a *Accumulator) Axes() imu.Axes {
	return imu.Axes{X: a.x, Y: a.y, Z: a.z}
}

// Fill returns a copy of the per-block frame counts.
func (a *Accumulator) Fill() []int {
	out := make([]int, len(a.fill))
	copy(out, a.fill[:a.count])
	return out
}

// Reset restarts the block counter. Sample data is overwritten by later blocks.
func (a *Accumulator) Reset() {
	a.count = 0
	clear(a.fill)
}
