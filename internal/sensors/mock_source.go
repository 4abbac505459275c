// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"math"
	"time"

	"github.com/relabs-tech/accel_fir/internal/bmi160"
	"github.com/relabs-tech/accel_fir/internal/imu"
)

// MockFIFO produces header-mode FIFO content at a fixed sample rate: a slow
// motion component, an 8Hz vibration the low-pass filter should remove, and
// 1g on Z at ±8g.
type MockFIFO struct {
	rate  float64
	start time.Time
	now   func() time.Time
	n     int64 // samples emitted so far
}

// NewMockFIFO creates a mock FIFO sampling at rateHz.
func NewMockFIFO(rateHz float64) *MockFIFO {
	return &MockFIFO{rate: rateHz, start: time.Now(), now: time.Now}
}

// sample returns the synthetic frame at index i.
func (m *MockFIFO) sample(i int64) imu.Frame {
	t := float64(i) / m.rate
	motion := 800 * math.Sin(2*math.Pi*0.4*t)
	vibration := 300 * math.Sin(2*math.Pi*8*t)
	return imu.Frame{
		X: int16(motion + vibration),
		Y: int16(800*math.Cos(2*math.Pi*0.25*t) + vibration),
		Z: int16(4096 + vibration/2),
	}
}

// ReadFIFO implements pipeline.FIFOSource. It returns every sample due since
// the previous call, up to what fits in buf.
func (m *MockFIFO) ReadFIFO(buf []byte) (int, error) {
	due := int64(m.now().Sub(m.start).Seconds() * m.rate)
	count := min(due-m.n, int64(len(buf)/bmi160.AccelFrameSize))

	out := buf[:0]
	for k := int64(0); k < count; k++ {
		out = bmi160.EncodeAccel(out, m.sample(m.n))
		m.n++
	}
	return len(out), nil
}

// ExtractAccel implements pipeline.FIFOSource.
func (m *MockFIFO) ExtractAccel(raw []byte, frames []imu.Frame) (int, error) {
	return bmi160.ParseHeaderMode(raw, frames)
}

// WatermarkPeriod is how often a real sensor would raise the watermark
// interrupt for a watermark of wm bytes.
func (m *MockFIFO) WatermarkPeriod(wm int) time.Duration {
	frames := float64(wm) / bmi160.AccelFrameSize
	return time.Duration(frames / m.rate * float64(time.Second))
}
