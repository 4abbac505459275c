// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package pipeline

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/relabs-tech/accel_fir/internal/bmi160"
	"github.com/relabs-tech/accel_fir/internal/bus"
	"github.com/relabs-tech/accel_fir/internal/dsp"
	"github.com/relabs-tech/accel_fir/internal/imu"
)

// fakeSource serves one header-mode batch per ReadFIFO.
type fakeSource struct {
	mu      sync.Mutex
	next    []imu.Frame
	readErr error
}

func (s *fakeSource) set(frames []imu.Frame) {
	s.mu.Lock()
	s.next = frames
	s.mu.Unlock()
}

func (s *fakeSource) ReadFIFO(buf []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return 0, s.readErr
	}
	var enc []byte
	for _, f := range s.next {
		enc = bmi160.EncodeAccel(enc, f)
	}
	return copy(buf, enc), nil
}

func (s *fakeSource) ExtractAccel(raw []byte, frames []imu.Frame) (int, error) {
	return bmi160.ParseHeaderMode(raw, frames)
}

type countingObserver struct {
	mu       sync.Mutex
	drains   int
	failures []error
	dropped  int
	filtered int
}

func (o *countingObserver) DrainCompleted(int, int) { o.mu.Lock(); o.drains++; o.mu.Unlock() }
func (o *countingObserver) DrainFailed(err error) {
	o.mu.Lock()
	o.failures = append(o.failures, err)
	o.mu.Unlock()
}
func (o *countingObserver) WindowFiltered(*imu.Window, time.Duration) {
	o.mu.Lock()
	o.filtered++
	o.mu.Unlock()
}
func (o *countingObserver) WindowDropped() { o.mu.Lock(); o.dropped++; o.mu.Unlock() }

func constant(n int, v int16) []imu.Frame {
	out := make([]imu.Frame, n)
	for i := range out {
		out[i] = imu.Frame{X: v, Y: v, Z: v}
	}
	return out
}

func newTestPipeline(t *testing.T, src FIFOSource, cfg Config, sink Sink, obs Observer) *Pipeline {
	t.Helper()
	coeffs, err := dsp.DefaultCoefficients(25)
	if err != nil {
		t.Fatal(err)
	}
	eng, err := dsp.NewEngine(coeffs, cfg.SamplesPerBlock, cfg.BlocksPerWindow)
	if err != nil {
		t.Fatal(err)
	}
	p, err := New(src, cfg, eng, sink, obs)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func runPipeline(t *testing.T, p *Pipeline) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func recvWindow(t *testing.T, ch <-chan imu.Window) imu.Window {
	t.Helper()
	select {
	case w := <-ch:
		return w
	case <-time.After(2 * time.Second):
		t.Fatal("no window delivered")
	}
	return imu.Window{}
}

func TestConstantInputConvergesToUnity(t *testing.T) {
	src := &fakeSource{next: constant(28, 1)}
	out := make(chan imu.Window, 1)
	p := newTestPipeline(t, src, DefaultConfig, func(w imu.Window) { out <- w }, nil)
	runPipeline(t, p)

	for i := 0; i < 5; i++ {
		if err := p.Drain(); err != nil {
			t.Fatalf("drain %d: %v", i, err)
		}
	}
	w := recvWindow(t, out)

	if w.Raw.Len() != 140 || w.Filtered.Len() != 140 {
		t.Fatalf("window lengths raw=%d filtered=%d, want 140", w.Raw.Len(), w.Filtered.Len())
	}
	for i, f := range w.Fill {
		if f != 28 {
			t.Errorf("fill[%d] = %d, want 28", i, f)
		}
	}
	for i := 0; i < 140; i++ {
		if w.Raw.X[i] != 1 {
			t.Fatalf("raw x[%d] = %g", i, w.Raw.X[i])
		}
	}
	for i := dsp.DefaultNumTaps - 1; i < 140; i++ {
		for _, ax := range [][]float32{w.Filtered.X, w.Filtered.Y, w.Filtered.Z} {
			if math.Abs(float64(ax[i])-1) > 1e-5 {
				t.Fatalf("filtered[%d] = %v, want 1.0", i, ax[i])
			}
		}
	}
	if c := p.BlockCount(); c != 0 {
		t.Errorf("block count after window = %d, want 0", c)
	}
	if s := p.Stats(); s.Drains != 5 || s.Frames != 140 || s.Bytes != 5*28*7 {
		t.Errorf("stats = %+v", s)
	}
}

func TestBlockCounterAdvancesOncePerDrain(t *testing.T) {
	src := &fakeSource{}
	p := newTestPipeline(t, src, DefaultConfig, nil, nil)

	for i := 0; i < 4; i++ {
		src.set(constant(i*7, int16(i)))
		if err := p.Drain(); err != nil {
			t.Fatalf("drain %d: %v", i, err)
		}
		if c := p.BlockCount(); c != i+1 {
			t.Fatalf("block count = %d after %d drains", c, i+1)
		}
	}
	// Frame i of the latest block sits at count*spb+i.
	x := p.cur.acc.Axes().X
	for i := 0; i < 21; i++ {
		if x[3*28+i] != 3 {
			t.Fatalf("x[%d] = %g, want 3", 3*28+i, x[3*28+i])
		}
	}
	if err := p.Drain(); err != nil {
		t.Fatal(err)
	}
	if c := p.BlockCount(); c != 0 {
		t.Errorf("block count = %d after full window, want 0", c)
	}
}

func TestFrameOverrunRejected(t *testing.T) {
	cfg := DefaultConfig
	cfg.FIFOBufferSize = 224
	src := &fakeSource{next: constant(28, 5)}
	obs := &countingObserver{}
	p := newTestPipeline(t, src, cfg, nil, obs)

	if err := p.Drain(); err != nil {
		t.Fatal(err)
	}
	before := append([]float32(nil), p.cur.acc.Axes().X...)

	src.set(constant(30, 9))
	err := p.Drain()
	if !errors.Is(err, ErrFrameOverrun) {
		t.Fatalf("err = %v, want ErrFrameOverrun", err)
	}
	if c := p.BlockCount(); c != 1 {
		t.Errorf("block count = %d, want 1", c)
	}
	for i, v := range p.cur.acc.Axes().X {
		if v != before[i] {
			t.Fatalf("x[%d] changed to %g", i, v)
		}
	}
	if s := p.Stats(); s.Overruns != 1 || s.LastError == "" {
		t.Errorf("stats = %+v", s)
	}
	if len(obs.failures) != 1 {
		t.Errorf("observer saw %d failures", len(obs.failures))
	}
}

// headerlessSource serves n headerless frames per ReadFIFO.
type headerlessSource struct{ n int }

func (s headerlessSource) ReadFIFO(buf []byte) (int, error) {
	raw := make([]byte, 0, s.n*bmi160.HeaderlessFrameSize)
	for i := 0; i < s.n; i++ {
		raw = append(raw, byte(i), 0, 0, 0, 0, 0)
	}
	return copy(buf, raw), nil
}

func (headerlessSource) ExtractAccel(raw []byte, frames []imu.Frame) (int, error) {
	return bmi160.ParseHeaderless(raw, frames)
}

func TestHeaderlessOverrunRejected(t *testing.T) {
	// 200 bytes hold 33 headerless frames, more than a 28-sample block.
	p := newTestPipeline(t, headerlessSource{n: 33}, DefaultConfig, nil, nil)
	if err := p.Drain(); !errors.Is(err, ErrFrameOverrun) {
		t.Fatalf("err = %v, want ErrFrameOverrun", err)
	}
	if p.BlockCount() != 0 {
		t.Error("block appended after overrun")
	}
	if s := p.Stats(); s.Overruns != 1 || s.Frames != 0 {
		t.Errorf("stats = %+v", s)
	}
}

// hungSubmitter accepts transfers and never completes them.
type hungSubmitter struct{}

func (hungSubmitter) Submit(w, r []byte, done func(error)) error { return nil }

func TestBusTimeoutLeavesBuffersUnchanged(t *testing.T) {
	tr := bus.New(hungSubmitter{}, bus.WithTimeout(2*time.Millisecond), bus.WithSpin(0))
	dev, err := bmi160.New(tr, bmi160.DefaultConfig)
	if err != nil {
		t.Fatal(err)
	}
	p := newTestPipeline(t, dev, DefaultConfig, nil, nil)
	for i := range p.raw {
		p.raw[i] = 0xA5
	}
	p.cur.acc.Axes().X[0] = 42

	err = p.Drain()
	if !errors.Is(err, bus.ErrTimeout) {
		t.Fatalf("err = %v, want bus.ErrTimeout", err)
	}
	for i, b := range p.raw {
		if b != 0xA5 {
			t.Fatalf("raw[%d] = 0x%02X, modified on timeout", i, b)
		}
	}
	if p.BlockCount() != 0 || p.cur.acc.Axes().X[0] != 42 {
		t.Error("accumulator modified on timeout")
	}
	if s := p.Stats(); s.BusFaults != 1 || s.Drains != 0 {
		t.Errorf("stats = %+v", s)
	}
}

func TestCorruptFIFOCounted(t *testing.T) {
	src := &badSource{}
	p := newTestPipeline(t, src, DefaultConfig, nil, nil)
	if err := p.Drain(); !errors.Is(err, bmi160.ErrCorruptFIFO) {
		t.Fatalf("err = %v, want ErrCorruptFIFO", err)
	}
	if s := p.Stats(); s.CorruptFIFO != 1 || p.BlockCount() != 0 {
		t.Errorf("stats = %+v, count = %d", s, p.BlockCount())
	}
}

type badSource struct{}

func (badSource) ReadFIFO(buf []byte) (int, error) {
	buf[0] = 0x20
	return 1, nil
}

func (badSource) ExtractAccel(raw []byte, frames []imu.Frame) (int, error) {
	return bmi160.ParseHeaderMode(raw, frames)
}

func TestBusyConsumerDropsWindow(t *testing.T) {
	src := &fakeSource{next: constant(28, 1)}
	out := make(chan imu.Window, 4)
	obs := &countingObserver{}
	p := newTestPipeline(t, src, DefaultConfig, func(w imu.Window) { out <- w }, obs)

	// No consumer yet: the first window waits in the handoff slot, the
	// second finds no free accumulator.
	for i := 0; i < 10; i++ {
		if err := p.Drain(); err != nil {
			t.Fatal(err)
		}
	}
	if s := p.Stats(); s.DroppedWindows != 1 {
		t.Fatalf("dropped = %d, want 1", s.DroppedWindows)
	}

	runPipeline(t, p)
	if w := recvWindow(t, out); w.Seq != 0 {
		t.Errorf("first window seq = %d, want 0", w.Seq)
	}
	for i := 0; i < 5; i++ {
		if err := p.Drain(); err != nil {
			t.Fatal(err)
		}
	}
	if w := recvWindow(t, out); w.Seq != 2 {
		t.Errorf("next window seq = %d, want 2", w.Seq)
	}
	obs.mu.Lock()
	defer obs.mu.Unlock()
	if obs.dropped != 1 || obs.filtered != 2 || obs.drains != 15 {
		t.Errorf("observer = dropped %d filtered %d drains %d", obs.dropped, obs.filtered, obs.drains)
	}
}

func TestNewRejectsMismatchedEngine(t *testing.T) {
	eng, _ := dsp.NewEngine([]float32{1}, 28, 4)
	if _, err := New(&fakeSource{}, DefaultConfig, eng, nil, nil); err == nil {
		t.Error("engine with 4 blocks accepted for 5-block pipeline")
	}
}
