// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/relabs-tech/accel_fir/internal/config"
	"github.com/relabs-tech/accel_fir/internal/imu"
)

// axisSummary describes one axis of a window.
type axisSummary struct {
	Mean, Std, Min, Max float64
}

// windowSummary compares raw and filtered samples of a window.
type windowSummary struct {
	Seq       uint64
	Delivered int
	Capacity  int
	Raw       [3]axisSummary
	Filtered  [3]axisSummary
}

func summarizeAxis(v []float32) axisSummary {
	if len(v) == 0 {
		return axisSummary{}
	}
	f := make([]float64, len(v))
	for i, x := range v {
		f[i] = float64(x)
	}
	mean, std := stat.MeanStdDev(f, nil)
	return axisSummary{Mean: mean, Std: std, Min: floats.Min(f), Max: floats.Max(f)}
}

func summarizeWindow(w imu.Window) windowSummary {
	s := windowSummary{Seq: w.Seq, Capacity: w.BlockSize * w.Blocks}
	for _, f := range w.Fill {
		s.Delivered += f
	}
	for i, ax := range [][]float32{w.Raw.X, w.Raw.Y, w.Raw.Z} {
		s.Raw[i] = summarizeAxis(ax)
	}
	for i, ax := range [][]float32{w.Filtered.X, w.Filtered.Y, w.Filtered.Z} {
		s.Filtered[i] = summarizeAxis(ax)
	}
	return s
}

func (s windowSummary) String() string {
	out := fmt.Sprintf("[WIN %5d] %d/%d samples\n", s.Seq, s.Delivered, s.Capacity)
	for i, name := range []string{"x", "y", "z"} {
		r, f := s.Raw[i], s.Filtered[i]
		out += fmt.Sprintf("  %s raw mean=%8.1f std=%7.1f [%6.0f..%6.0f]  fir mean=%8.1f std=%7.1f\n",
			name, r.Mean, r.Std, r.Min, r.Max, f.Mean, f.Std)
	}
	return out
}

// RunConsoleMQTT prints a summary of every window and status message.
func RunConsoleMQTT(ctx context.Context) error {
	cfg := config.Get()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	if err := subscribeJSON(client, cfg.TopicWindow, "console", func(w imu.Window) {
		fmt.Print(summarizeWindow(w))
	}); err != nil {
		return err
	}

	if cfg.TopicStatus != "" {
		if err := subscribeJSON(client, cfg.TopicStatus, "console", func(s imu.Status) {
			fmt.Printf("[STAT] drains=%d frames=%d windows=%d dropped=%d bus=%d overrun=%d corrupt=%d %s\n",
				s.Drains, s.Frames, s.Windows, s.DroppedWindows, s.BusFaults, s.Overruns, s.CorruptFIFO, s.LastError)
		}); err != nil {
			return err
		}
	}

	<-ctx.Done()
	log.Println("console: shutting down")
	return nil
}
