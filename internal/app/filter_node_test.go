// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"testing"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"github.com/relabs-tech/accel_fir/internal/bmi160"
	"github.com/relabs-tech/accel_fir/internal/bus"
	"github.com/relabs-tech/accel_fir/internal/config"
	"github.com/relabs-tech/accel_fir/internal/dsp"
	"github.com/relabs-tech/accel_fir/internal/imu"
	"github.com/relabs-tech/accel_fir/internal/pipeline"
)

// stuckFIFO fails the first failures reads, then serves one block and drops
// the watermark line.
type stuckFIFO struct {
	pin      *gpiotest.Pin
	failures int
	reads    int
	flushes  int
}

func (s *stuckFIFO) ReadFIFO(buf []byte) (int, error) {
	s.reads++
	if s.reads <= s.failures {
		return 0, bus.ErrTimeout
	}
	var raw []byte
	for i := 0; i < 28; i++ {
		raw = bmi160.EncodeAccel(raw, imu.Frame{X: 1, Y: 1, Z: 1})
	}
	s.setLevel(gpio.Low)
	return copy(buf, raw), nil
}

func (s *stuckFIFO) ExtractAccel(raw []byte, frames []imu.Frame) (int, error) {
	return bmi160.ParseHeaderMode(raw, frames)
}

func (s *stuckFIFO) FlushFIFO() error {
	s.flushes++
	s.setLevel(gpio.Low)
	return nil
}

func (s *stuckFIFO) setLevel(l gpio.Level) {
	s.pin.Lock()
	s.pin.L = l
	s.pin.Unlock()
}

func newTestDrainer(t *testing.T, src *stuckFIFO) *drainer {
	t.Helper()
	cfg := config.Default()
	taps, err := LoadCoefficients(cfg)
	if err != nil {
		t.Fatal(err)
	}
	eng, err := dsp.NewEngine(taps, cfg.BlockSize, cfg.BlocksPerWindow)
	if err != nil {
		t.Fatal(err)
	}
	p, err := pipeline.New(src, PipelineConfig(cfg), eng, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	return &drainer{p: p, level: src.pin, flush: src}
}

func TestDrainerRetriesWhileLineHigh(t *testing.T) {
	pin := &gpiotest.Pin{N: "GPIO27", Num: 27, L: gpio.High}
	src := &stuckFIFO{pin: pin, failures: 1}
	d := newTestDrainer(t, src)

	d.handle(pin.Name(), gpio.High)

	if src.reads != 2 {
		t.Errorf("reads = %d, want 2", src.reads)
	}
	if src.flushes != 0 {
		t.Errorf("flushed %d times after a recovered drain", src.flushes)
	}
	st := d.p.Stats()
	if st.BusFaults != 1 || st.Drains != 1 || d.p.BlockCount() != 1 {
		t.Errorf("stats = %+v, blocks = %d", st, d.p.BlockCount())
	}
}

func TestDrainerFlushesWhenLineStaysHigh(t *testing.T) {
	pin := &gpiotest.Pin{N: "GPIO27", Num: 27, L: gpio.High}
	src := &stuckFIFO{pin: pin, failures: 100}
	d := newTestDrainer(t, src)

	d.handle(pin.Name(), gpio.High)

	if src.reads != maxRedrains+1 {
		t.Errorf("reads = %d, want %d", src.reads, maxRedrains+1)
	}
	if src.flushes != 1 {
		t.Errorf("flushes = %d, want 1", src.flushes)
	}
	if pin.Read() != gpio.Low {
		t.Error("line still high after flush")
	}

	// The next edge drains normally.
	src.failures = 0
	src.reads = 0
	pin.L = gpio.High
	d.handle(pin.Name(), gpio.High)
	if src.reads != 1 || d.p.BlockCount() != 1 {
		t.Errorf("after flush: reads = %d, blocks = %d", src.reads, d.p.BlockCount())
	}
}

func TestDrainerWithoutLevelDrainsOnce(t *testing.T) {
	pin := &gpiotest.Pin{N: "mock"}
	src := &stuckFIFO{pin: pin, failures: 100}
	d := newTestDrainer(t, src)
	d.level, d.flush = nil, nil

	d.handle("mock", gpio.High)
	if src.reads != 1 || src.flushes != 0 {
		t.Errorf("reads = %d, flushes = %d", src.reads, src.flushes)
	}
}
