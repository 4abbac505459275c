// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package pipeline drains the accelerometer FIFO on each watermark interrupt,
// accumulates blocks into windows and filters complete windows on a consumer
// goroutine.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/accel_fir/internal/bmi160"
	"github.com/relabs-tech/accel_fir/internal/dsp"
	"github.com/relabs-tech/accel_fir/internal/imu"
	"github.com/relabs-tech/accel_fir/internal/window"
)

// ErrFrameOverrun is returned when a drain yields more frames than a block holds.
var ErrFrameOverrun = errors.New("pipeline: FIFO delivered more frames than fit in a block")

// FIFOSource is the sensor side of a drain. *bmi160.Dev implements it.
type FIFOSource interface {
	ReadFIFO(buf []byte) (int, error)
	ExtractAccel(raw []byte, frames []imu.Frame) (int, error)
}

// Sink receives every filtered window on the consumer goroutine.
type Sink func(w imu.Window)

// Observer is told about drains and windows. Methods are called from the
// drain and consumer goroutines and must not block.
type Observer interface {
	DrainCompleted(frames, bytes int)
	DrainFailed(err error)
	WindowFiltered(w *imu.Window, took time.Duration)
	WindowDropped()
}

// Config sizes the pipeline buffers.
type Config struct {
	SamplesPerBlock int
	BlocksPerWindow int
	FIFOBufferSize  int
}

// DefaultConfig is 5 blocks of 28 samples read through a 200 byte buffer.
var DefaultConfig = Config{
	SamplesPerBlock: 28,
	BlocksPerWindow: 5,
	FIFOBufferSize:  200,
}

// Stats are the running pipeline counters.
type Stats struct {
	Drains         uint64
	Frames         uint64
	Bytes          uint64
	Windows        uint64
	DroppedWindows uint64
	BusFaults      uint64
	Overruns       uint64
	CorruptFIFO    uint64
	LastError      string
}

// slot is one accumulator travelling between the drain and the consumer.
type slot struct {
	acc  *window.Accumulator
	seq  uint64
	done time.Time
}

// Pipeline owns two accumulators. The drain fills one while the consumer
// filters the other; a single-slot channel hands full windows over.
type Pipeline struct {
	src    FIFOSource
	cfg    Config
	engine *dsp.Engine
	sink   Sink
	obs    Observer

	mu      sync.Mutex // serializes Drain
	raw     []byte
	frames  []imu.Frame
	cur     *slot
	nextSeq uint64

	ready chan *slot
	free  chan *slot

	drains, nframes, nbytes atomic.Uint64
	windows, dropped        atomic.Uint64
	busFaults, overruns     atomic.Uint64
	corrupt                 atomic.Uint64
	lastErr                 atomic.Value // string
}

// New returns a pipeline reading from src and filtering with engine. obs may be nil.
func New(src FIFOSource, cfg Config, engine *dsp.Engine, sink Sink, obs Observer) (*Pipeline, error) {
	if cfg.FIFOBufferSize < bmi160.HeaderlessFrameSize {
		return nil, fmt.Errorf("pipeline: FIFO buffer of %d bytes holds no frame", cfg.FIFOBufferSize)
	}
	if engine == nil {
		return nil, errors.New("pipeline: nil filter engine")
	}
	if want := cfg.SamplesPerBlock * cfg.BlocksPerWindow; engine.WindowLen() != want {
		return nil, fmt.Errorf("pipeline: engine window %d samples, pipeline %d", engine.WindowLen(), want)
	}
	if sink == nil {
		sink = func(imu.Window) {}
	}
	if obs == nil {
		obs = nopObserver{}
	}

	p := &Pipeline{
		src:    src,
		cfg:    cfg,
		engine: engine,
		sink:   sink,
		obs:    obs,
		raw:    make([]byte, cfg.FIFOBufferSize),
		// Sized for the smallest frame so a full buffer always fits and the
		// overrun check sees the true count.
		frames: make([]imu.Frame, cfg.FIFOBufferSize/bmi160.HeaderlessFrameSize),
		ready:  make(chan *slot, 1),
		free:   make(chan *slot, 2),
	}
	for i := 0; i < 2; i++ {
		acc, err := window.New(cfg.SamplesPerBlock, cfg.BlocksPerWindow)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			p.cur = &slot{acc: acc}
		} else {
			p.free <- &slot{acc: acc}
		}
	}
	return p, nil
}

// Drain reads the FIFO once and appends the frames as the next block. On
// error the accumulator and block counter are unchanged.
func (p *Pipeline) Drain() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	n, err := p.src.ReadFIFO(p.raw)
	if err != nil {
		return p.fail(err)
	}
	count, err := p.src.ExtractAccel(p.raw[:n], p.frames)
	if errors.Is(err, bmi160.ErrFramesFull) {
		return p.fail(fmt.Errorf("%w: %v", ErrFrameOverrun, err))
	}
	if err != nil {
		return p.fail(err)
	}
	if count > p.cfg.SamplesPerBlock {
		return p.fail(fmt.Errorf("%w: %d frames, block holds %d", ErrFrameOverrun, count, p.cfg.SamplesPerBlock))
	}
	if err := p.cur.acc.AppendBlock(p.frames[:count]); err != nil {
		return p.fail(err)
	}

	p.drains.Add(1)
	p.nframes.Add(uint64(count))
	p.nbytes.Add(uint64(n))
	p.obs.DrainCompleted(count, n)

	if p.cur.acc.Full() {
		p.handoff()
	}
	return nil
}

func (p *Pipeline) handoff() {
	full := p.cur
	full.seq = p.nextSeq
	full.done = time.Now()
	p.nextSeq++

	select {
	case next := <-p.free:
		// With two accumulators a free one means the consumer is idle and
		// ready is empty.
		p.ready <- full
		p.cur = next
	default:
		p.dropped.Add(1)
		p.obs.WindowDropped()
		log.Warnf("pipeline: consumer busy, dropped window %d", full.seq)
		full.acc.Reset()
	}
}

func (p *Pipeline) fail(err error) error {
	switch {
	case errors.Is(err, ErrFrameOverrun), errors.Is(err, window.ErrBlockOverflow):
		p.overruns.Add(1)
	case errors.Is(err, bmi160.ErrCorruptFIFO):
		p.corrupt.Add(1)
	default:
		// bus.ErrTimeout and every other transfer error
		p.busFaults.Add(1)
	}
	p.lastErr.Store(err.Error())
	p.obs.DrainFailed(err)
	return err
}

// Run filters handed-off windows until ctx is done.
func (p *Pipeline) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s := <-p.ready:
			p.filter(s)
		}
	}
}

func (p *Pipeline) filter(s *slot) {
	start := time.Now()
	raw := s.acc.Axes()
	w := imu.Window{
		Seq:       s.seq,
		BlockSize: p.cfg.SamplesPerBlock,
		Blocks:    p.cfg.BlocksPerWindow,
		Fill:      s.acc.Fill(),
		Raw:       cloneAxes(raw),
		Filtered:  makeAxes(raw.Len()),
		Time:      s.done,
	}
	err := p.engine.FilterWindow(raw, w.Filtered)

	s.acc.Reset()
	p.free <- s

	if err != nil {
		p.lastErr.Store(err.Error())
		log.Errorf("pipeline: filter window %d: %v", w.Seq, err)
		return
	}
	p.windows.Add(1)
	p.obs.WindowFiltered(&w, time.Since(start))
	p.sink(w)
}

// BlockCount returns the number of blocks in the window being filled.
func (p *Pipeline) BlockCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cur.acc.Count()
}

// Stats returns a snapshot of the counters.
func (p *Pipeline) Stats() Stats {
	s := Stats{
		Drains:         p.drains.Load(),
		Frames:         p.nframes.Load(),
		Bytes:          p.nbytes.Load(),
		Windows:        p.windows.Load(),
		DroppedWindows: p.dropped.Load(),
		BusFaults:      p.busFaults.Load(),
		Overruns:       p.overruns.Load(),
		CorruptFIFO:    p.corrupt.Load(),
	}
	if v, ok := p.lastErr.Load().(string); ok {
		s.LastError = v
	}
	return s
}

// Status converts the counters to the published status record.
func (p *Pipeline) Status() imu.Status {
	s := p.Stats()
	return imu.Status{
		Drains:         s.Drains,
		Frames:         s.Frames,
		Windows:        s.Windows,
		DroppedWindows: s.DroppedWindows,
		BusFaults:      s.BusFaults,
		Overruns:       s.Overruns,
		CorruptFIFO:    s.CorruptFIFO,
		LastError:      s.LastError,
		Time:           time.Now().Format(time.RFC3339),
	}
}

func cloneAxes(a imu.Axes) imu.Axes {
	return imu.Axes{
		X: append([]float32(nil), a.X...),
		Y: append([]float32(nil), a.Y...),
		Z: append([]float32(nil), a.Z...),
	}
}

func makeAxes(n int) imu.Axes {
	return imu.Axes{X: make([]float32, n), Y: make([]float32, n), Z: make([]float32, n)}
}

type nopObserver struct{}

func (nopObserver) DrainCompleted(int, int)                   {}
func (nopObserver) DrainFailed(error)                         {}
func (nopObserver) WindowFiltered(*imu.Window, time.Duration) {}
func (nopObserver) WindowDropped()                            {}
