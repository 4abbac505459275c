// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import "time"

// Frame is one accelerometer sample pulled out of the sensor FIFO, in raw counts.
type Frame struct {
	X int16 `json:"x"`
	Y int16 `json:"y"`
	Z int16 `json:"z"`
}

// Axes holds one float32 sequence per accelerometer axis.
type Axes struct {
	X []float32 `json:"x"`
	Y []float32 `json:"y"`
	Z []float32 `json:"z"`
}

// Len returns the per-axis length (all three axes are always the same length).
func (a Axes) Len() int {
	return len(a.X)
}

// Window is one completed, filtered acquisition window.
type Window struct {
	Seq       uint64    `json:"seq"`
	BlockSize int       `json:"block_size"`
	Blocks    int       `json:"blocks"`
	Fill      []int     `json:"fill"` // frames delivered per block; short blocks are padded
	Raw       Axes      `json:"raw"`
	Filtered  Axes      `json:"filtered"`
	Time      time.Time `json:"time"`
}

// Status is the periodic diagnostic snapshot published by the filter node.
type Status struct {
	Drains         uint64 `json:"drains"`
	Frames         uint64 `json:"frames"`
	Windows        uint64 `json:"windows"`
	DroppedWindows uint64 `json:"dropped_windows"`
	BusFaults      uint64 `json:"bus_faults"`
	Overruns       uint64 `json:"overruns"`
	CorruptFIFO    uint64 `json:"corrupt_fifo"`
	LastError      string `json:"last_error,omitempty"`
	Time           string `json:"time"`
}
