// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package metrics exports pipeline and bus counters to Prometheus.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relabs-tech/accel_fir/internal/bmi160"
	"github.com/relabs-tech/accel_fir/internal/bus"
	"github.com/relabs-tech/accel_fir/internal/imu"
	"github.com/relabs-tech/accel_fir/internal/pipeline"
)

// BusStats is satisfied by *bus.Transport.
type BusStats interface {
	Stats() (transfers, timeouts uint64)
}

// Recorder implements pipeline.Observer on a private registry.
type Recorder struct {
	reg *prometheus.Registry

	drains       prometheus.Counter
	frames       prometheus.Counter
	fifoBytes    prometheus.Counter
	drainErrors  *prometheus.CounterVec
	windows      prometheus.Counter
	dropped      prometheus.Counter
	filterTime   prometheus.Histogram
	lastFill     prometheus.Gauge
	lastFiltered *prometheus.GaugeVec
}

var _ pipeline.Observer = (*Recorder)(nil)

// NewRecorder registers the pipeline metrics. bs may be nil.
func NewRecorder(bs BusStats) *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		drains: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "accel_fifo_drains_total",
			Help: "Successful FIFO drains.",
		}),
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "accel_fifo_frames_total",
			Help: "Accelerometer frames extracted from the FIFO.",
		}),
		fifoBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "accel_fifo_bytes_total",
			Help: "Bytes read from FIFO_DATA.",
		}),
		drainErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "accel_fifo_drain_errors_total",
			Help: "Abandoned FIFO drains by cause.",
		}, []string{"cause"}),
		windows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "accel_windows_filtered_total",
			Help: "Windows filtered and delivered.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "accel_windows_dropped_total",
			Help: "Windows dropped because the filter was still busy.",
		}),
		filterTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "accel_window_filter_seconds",
			Help:    "Time spent filtering one window.",
			Buckets: prometheus.ExponentialBuckets(10e-6, 2, 12),
		}),
		lastFill: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "accel_window_fill_ratio",
			Help: "Fraction of samples delivered by the sensor in the last window.",
		}),
		lastFiltered: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "accel_filtered_last",
			Help: "Last filtered sample per axis, raw counts.",
		}, []string{"axis"}),
	}
	r.reg.MustRegister(r.drains, r.frames, r.fifoBytes, r.drainErrors,
		r.windows, r.dropped, r.filterTime, r.lastFill, r.lastFiltered)

	if bs != nil {
		r.reg.MustRegister(
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Name: "accel_bus_transfers_total",
				Help: "Bus transfers submitted.",
			}, func() float64 {
				t, _ := bs.Stats()
				return float64(t)
			}),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Name: "accel_bus_timeouts_total",
				Help: "Bus transfers that did not complete in time.",
			}, func() float64 {
				_, to := bs.Stats()
				return float64(to)
			}),
		)
	}
	return r
}

// DrainCompleted implements pipeline.Observer.
func (r *Recorder) DrainCompleted(frames, bytes int) {
	r.drains.Inc()
	r.frames.Add(float64(frames))
	r.fifoBytes.Add(float64(bytes))
}

// DrainFailed implements pipeline.Observer.
func (r *Recorder) DrainFailed(err error) {
	r.drainErrors.WithLabelValues(cause(err)).Inc()
}

// WindowFiltered implements pipeline.Observer.
func (r *Recorder) WindowFiltered(w *imu.Window, took time.Duration) {
	r.windows.Inc()
	r.filterTime.Observe(took.Seconds())

	delivered := 0
	for _, f := range w.Fill {
		delivered += f
	}
	if total := w.BlockSize * w.Blocks; total > 0 {
		r.lastFill.Set(float64(delivered) / float64(total))
	}
	if n := w.Filtered.Len(); n > 0 {
		r.lastFiltered.WithLabelValues("x").Set(float64(w.Filtered.X[n-1]))
		r.lastFiltered.WithLabelValues("y").Set(float64(w.Filtered.Y[n-1]))
		r.lastFiltered.WithLabelValues("z").Set(float64(w.Filtered.Z[n-1]))
	}
}

// WindowDropped implements pipeline.Observer.
func (r *Recorder) WindowDropped() {
	r.dropped.Inc()
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

func cause(err error) string {
	switch {
	case errors.Is(err, bus.ErrTimeout):
		return "bus_timeout"
	case errors.Is(err, pipeline.ErrFrameOverrun):
		return "frame_overrun"
	case errors.Is(err, bmi160.ErrCorruptFIFO):
		return "corrupt_fifo"
	}
	return "bus_error"
}
