// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/relabs-tech/accel_fir/internal/imu"
)

func TestPlotWindowWritesPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "window.png")
	if err := PlotWindow(testWindow(4), path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Errorf("output is not a PNG (%d bytes)", len(data))
	}
}

func TestPlotWindowRejectsEmpty(t *testing.T) {
	if err := PlotWindow(imu.Window{}, filepath.Join(t.TempDir(), "x.png")); err == nil {
		t.Error("empty window plotted")
	}
}
