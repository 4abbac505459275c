// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	humanize "github.com/dustin/go-humanize"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"

	"github.com/relabs-tech/accel_fir/internal/config"
	"github.com/relabs-tech/accel_fir/internal/dsp"
	"github.com/relabs-tech/accel_fir/internal/imu"
	"github.com/relabs-tech/accel_fir/internal/irq"
	"github.com/relabs-tech/accel_fir/internal/metrics"
	"github.com/relabs-tech/accel_fir/internal/pipeline"
	"github.com/relabs-tech/accel_fir/internal/sensors"
)

// FilterNodeOptions selects the data source of the filter node.
type FilterNodeOptions struct {
	// Mock replaces the sensor and interrupt pin with a synthetic FIFO
	// drained on a timer.
	Mock bool
}

// LoadCoefficients returns the FIR taps from FIR_COEFFS_FILE or, when unset,
// designs the default low-pass filter for the configured ODR.
func LoadCoefficients(cfg *config.Config) ([]float32, error) {
	if cfg.FIRCoeffsFile != "" {
		cf, err := dsp.LoadCoefficients(cfg.FIRCoeffsFile)
		if err != nil {
			return nil, err
		}
		if cf.SampleRateHz != 0 && cf.SampleRateHz != cfg.AccelODRHz {
			log.Warnf("filter: %s designed for %gHz, sensor runs at %gHz",
				cfg.FIRCoeffsFile, cf.SampleRateHz, cfg.AccelODRHz)
		}
		log.Printf("filter: loaded %d taps from %s", len(cf.Taps), cfg.FIRCoeffsFile)
		return cf.Taps, nil
	}

	taps, err := dsp.DesignLowPass(cfg.FIRNumTaps, cfg.FIRCutoffHz/cfg.AccelODRHz)
	if err != nil {
		return nil, err
	}
	log.Printf("filter: designed %d-tap low-pass at %gHz (ODR %gHz)", len(taps), cfg.FIRCutoffHz, cfg.AccelODRHz)
	return taps, nil
}

// PipelineConfig maps the application config onto the pipeline geometry.
func PipelineConfig(cfg *config.Config) pipeline.Config {
	return pipeline.Config{
		SamplesPerBlock: cfg.BlockSize,
		BlocksPerWindow: cfg.BlocksPerWindow,
		FIFOBufferSize:  cfg.FIFOBufferSize,
	}
}

// windowPublisher returns a sink that publishes every window to topic.
func windowPublisher(client mqtt.Client, topic string) pipeline.Sink {
	return func(w imu.Window) {
		if err := publishJSON(client, topic, w); err != nil {
			log.Printf("filter: %v", err)
			return
		}
		log.Debugf("filter: published window %d (%d samples/axis)", w.Seq, w.Filtered.Len())
	}
}

// maxRedrains bounds the extra drains run while the watermark line stays high.
const maxRedrains = 3

// fifoFlusher discards the sensor FIFO. *bmi160.Dev implements it.
type fifoFlusher interface {
	FlushFIFO() error
}

// drainer handles watermark interrupts. The interrupt is non-latched and
// edge-detected, so a drain that leaves the FIFO above the watermark gets no
// new edge: the drain is repeated while the line is high and, if it stays
// high, the FIFO is flushed to re-arm it. level and flush are nil for the
// mock source.
type drainer struct {
	p     *pipeline.Pipeline
	level gpio.PinIn
	flush fifoFlusher
}

// handle is the irq.Handler. Every edge drains, whatever the level read back.
func (d *drainer) handle(pin string, _ gpio.Level) {
	for attempt := 0; ; attempt++ {
		if err := d.p.Drain(); err != nil {
			switch {
			case errors.Is(err, pipeline.ErrFrameOverrun):
				log.Errorf("filter: configuration error on %s interrupt: %v", pin, err)
			default:
				log.Warnf("filter: drain on %s abandoned: %v", pin, err)
			}
		}
		if d.level == nil || d.level.Read() == gpio.Low {
			return
		}
		if attempt == maxRedrains {
			break
		}
		log.Debugf("filter: %s still high, draining again", pin)
	}

	if d.flush == nil {
		return
	}
	if err := d.flush.FlushFIFO(); err != nil {
		log.Errorf("filter: %s stuck high and FIFO flush failed: %v", pin, err)
		return
	}
	log.Warnf("filter: %s stuck high after %d drains, FIFO flushed", pin, maxRedrains+1)
}

// RunFilterNode brings up the sensor, the pipeline and the publishers, and
// drains the FIFO on every watermark interrupt until ctx is done.
func RunFilterNode(ctx context.Context, opts FilterNodeOptions) error {
	cfg := config.Get()
	log.Println("starting accelerometer FIR filter node")

	var (
		src     pipeline.FIFOSource
		busStat metrics.BusStats
		mock    *sensors.MockFIFO
		pin     gpio.PinIO
		flusher fifoFlusher
	)
	if opts.Mock {
		log.Println("filter: using mock FIFO source")
		mock = sensors.NewMockFIFO(cfg.AccelODRHz)
		src = mock
	} else {
		accel, err := sensors.OpenAccel(cfg, true)
		if err != nil {
			return err
		}
		defer accel.Close()
		src = accel.Dev
		flusher = accel.Dev
		busStat = accel.Transport

		// Resolved after host.Init, which OpenAccel ran.
		if pin, err = irq.Lookup(cfg.IntPin); err != nil {
			return err
		}
	}

	taps, err := LoadCoefficients(cfg)
	if err != nil {
		return fmt.Errorf("filter: %w", err)
	}
	engine, err := dsp.NewEngine(taps, cfg.BlockSize, cfg.BlocksPerWindow)
	if err != nil {
		return fmt.Errorf("filter: %w", err)
	}

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDProducer)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	rec := metrics.NewRecorder(busStat)
	p, err := pipeline.New(src, PipelineConfig(cfg), engine, windowPublisher(client, cfg.TopicWindow), rec)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", rec.Handler())
		srv := &http.Server{Addr: ":" + strconv.Itoa(cfg.MetricsPort), Handler: mux}
		go func() {
			log.Printf("filter: metrics on http://localhost%s/metrics", srv.Addr)
			if err := serveHTTP(ctx, srv); err != nil {
				log.Errorf("filter: metrics server: %v", err)
			}
		}()
	}

	go p.Run(ctx)
	go reportStatus(ctx, client, cfg, p)

	d := &drainer{p: p, level: pin, flush: flusher}
	handler := d.handle
	if mock != nil {
		period := mock.WatermarkPeriod(cfg.FIFOWatermark)
		log.Printf("filter: draining mock FIFO every %s", period)
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				handler("mock", gpio.High)
			}
		}
	}

	log.Printf("filter: waiting for FIFO watermark interrupts on %s", pin)
	if err := irq.Watch(ctx, pin, handler); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// reportStatus publishes and logs the pipeline counters every STATUS_INTERVAL.
func reportStatus(ctx context.Context, client mqtt.Client, cfg *config.Config, p *pipeline.Pipeline) {
	ticker := time.NewTicker(time.Duration(cfg.StatusInterval) * time.Millisecond)
	defer ticker.Stop()
	started := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		st := p.Stats()
		log.Print(statusLine(st, started))
		if cfg.TopicStatus == "" {
			continue
		}
		if err := publishJSON(client, cfg.TopicStatus, p.Status()); err != nil {
			log.Printf("filter: %v", err)
		}
	}
}

// statusLine formats the counters for the periodic log.
func statusLine(st pipeline.Stats, started time.Time) string {
	line := fmt.Sprintf("filter: up since %s, %s drains, %s frames (%s), %s windows, %d dropped, %d bus faults, %d overruns",
		humanize.Time(started),
		humanize.Comma(int64(st.Drains)),
		humanize.Comma(int64(st.Frames)),
		humanize.Bytes(st.Bytes),
		humanize.Comma(int64(st.Windows)),
		st.DroppedWindows, st.BusFaults, st.Overruns)
	if st.LastError != "" {
		line += ", last error: " + st.LastError
	}
	return line
}
