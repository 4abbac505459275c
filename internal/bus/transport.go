// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package bus implements the synchronous register transport used to talk to
// the accelerometer. Transfers are submitted asynchronously and completion
// is reported by a callback; Transport turns that into blocking Read/Write
// calls with a bounded wait.
package bus

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

const (
	readBit  = 0x80
	addrMask = 0x7F

	// DefaultTimeout bounds the wait for a transfer-complete callback.
	DefaultTimeout = 20 * time.Millisecond

	defaultSpin = 64
)

var (
	// ErrTimeout is returned when a transfer's completion is not signaled in time.
	ErrTimeout = errors.New("bus: transfer completion timed out")
	// ErrEmptyRead is returned for zero-length reads.
	ErrEmptyRead = errors.New("bus: read length must be positive")
)

// Submitter starts one full-duplex transfer and returns immediately. done
// must be called exactly once, from any goroutine, when the transfer has
// finished. r may be nil for write-only transfers.
type Submitter interface {
	Submit(w, r []byte, done func(error)) error
}

// Transport serializes register transactions over a Submitter. At most one
// transfer is in flight at any time.
type Transport struct {
	mu      sync.Mutex
	sub     Submitter
	timeout time.Duration
	spin    int

	// completion handshake
	seq     atomic.Uint64
	done    atomic.Bool
	xferErr error
	wake    chan struct{}

	// pending is set when a transfer timed out and its completion has not
	// been observed yet. Guarded by mu.
	pending bool

	tx []byte
	rx []byte

	transfers atomic.Uint64
	timeouts  atomic.Uint64
}

// Option configures a Transport.
type Option func(t *Transport)

// WithTimeout sets the completion wait bound. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(t *Transport) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// WithSpin sets how many times the completion flag is polled before the
// transport falls back to blocking on the wake channel.
func WithSpin(n int) Option {
	return func(t *Transport) {
		if n >= 0 {
			t.spin = n
		}
	}
}

// New returns a Transport driving sub.
func New(sub Submitter, opts ...Option) *Transport {
	t := &Transport{
		sub:     sub,
		timeout: DefaultTimeout,
		spin:    defaultSpin,
		wake:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Write writes data starting at register reg. The frame on the wire is the
// address with the read bit cleared followed by the payload.
func (t *Transport) Write(reg byte, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.tx = grow(t.tx, len(data)+1)
	t.tx[0] = reg & addrMask
	copy(t.tx[1:], data)

	if err := t.transfer(t.tx, nil); err != nil {
		return fmt.Errorf("bus: write 0x%02X (%d bytes): %w", reg, len(data), err)
	}
	return nil
}

// Read reads n bytes starting at register reg.
func (t *Transport) Read(reg byte, n int) ([]byte, error) {
	if n <= 0 {
		return nil, ErrEmptyRead
	}
	out := make([]byte, n)
	if err := t.ReadInto(reg, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadInto reads len(dst) bytes starting at register reg into dst. dst is
// only written once the transfer has completed successfully.
func (t *Transport) ReadInto(reg byte, dst []byte) error {
	n := len(dst)
	if n == 0 {
		return ErrEmptyRead
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Address phase plus n placeholder bytes; n+1 bytes come back.
	t.tx = grow(t.tx, n+1)
	t.tx[0] = reg | readBit
	clear(t.tx[1:])
	t.rx = grow(t.rx, n+1)

	if err := t.transfer(t.tx, t.rx); err != nil {
		return fmt.Errorf("bus: read 0x%02X (%d bytes): %w", reg, n, err)
	}
	// First byte was clocked in during the address phase.
	copy(dst, t.rx[1:])
	return nil
}

// Stats returns the number of submitted transfers and of completion timeouts.
func (t *Transport) Stats() (transfers, timeouts uint64) {
	return t.transfers.Load(), t.timeouts.Load()
}

// transfer submits one transfer and waits for its completion. t.mu must be held.
func (t *Transport) transfer(w, r []byte) error {
	if t.pending {
		// The previous transfer never reported completion. Give it one more
		// bounded wait before touching the bus again.
		if err := t.wait(); err != nil {
			t.timeouts.Add(1)
			return fmt.Errorf("previous transfer still in flight: %w", err)
		}
		t.pending = false
	}

	// Clear the flag before submitting so a completion left over from the
	// previous transfer can never be observed as this one's.
	t.done.Store(false)
	select {
	case <-t.wake:
	default:
	}
	seq := t.seq.Add(1)

	t.transfers.Add(1)
	if err := t.sub.Submit(w, r, func(err error) { t.complete(seq, err) }); err != nil {
		return fmt.Errorf("submit: %w", err)
	}

	if err := t.wait(); err != nil {
		t.pending = true
		t.timeouts.Add(1)
		return err
	}
	return t.xferErr
}

// complete is the transfer-complete callback. Completions for anything but
// the current transfer are ignored.
func (t *Transport) complete(seq uint64, err error) {
	if t.seq.Load() != seq {
		return
	}
	t.xferErr = err
	t.done.Store(true)
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// wait polls the completion flag, then blocks until it is set or the
// timeout expires.
func (t *Transport) wait() error {
	for i := 0; i < t.spin; i++ {
		if t.done.Load() {
			return nil
		}
		runtime.Gosched()
	}

	timer := time.NewTimer(t.timeout)
	defer timer.Stop()
	for {
		if t.done.Load() {
			return nil
		}
		select {
		case <-t.wake:
		case <-timer.C:
			if t.done.Load() {
				return nil
			}
			return ErrTimeout
		}
	}
}

func grow(b []byte, n int) []byte {
	if cap(b) < n {
		return make([]byte, n)
	}
	return b[:n]
}
