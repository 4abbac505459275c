// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"image/color"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/relabs-tech/accel_fir/internal/config"
	"github.com/relabs-tech/accel_fir/internal/imu"
)

var axisColors = [3]color.RGBA{
	{R: 0xd6, G: 0x27, B: 0x28, A: 0xff},
	{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff},
	{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
}

func axisXYs(v []float32) plotter.XYs {
	pts := make(plotter.XYs, len(v))
	for i, s := range v {
		pts[i].X = float64(i)
		pts[i].Y = float64(s)
	}
	return pts
}

// PlotWindow renders the raw and filtered axes of w to path. The image
// format follows the file extension.
func PlotWindow(w imu.Window, path string) error {
	if w.Raw.Len() == 0 {
		return errors.New("plot: empty window")
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Window %d", w.Seq)
	p.X.Label.Text = "sample"
	p.Y.Label.Text = "counts"
	p.Legend.Top = true

	names := [3]string{"x", "y", "z"}
	raw := [3][]float32{w.Raw.X, w.Raw.Y, w.Raw.Z}
	filtered := [3][]float32{w.Filtered.X, w.Filtered.Y, w.Filtered.Z}
	for i := range names {
		r, err := plotter.NewLine(axisXYs(raw[i]))
		if err != nil {
			return fmt.Errorf("plot %s raw: %w", names[i], err)
		}
		r.Color = axisColors[i]
		r.Dashes = []vg.Length{vg.Points(2), vg.Points(2)}
		r.Width = vg.Points(0.5)

		f, err := plotter.NewLine(axisXYs(filtered[i]))
		if err != nil {
			return fmt.Errorf("plot %s filtered: %w", names[i], err)
		}
		f.Color = axisColors[i]
		f.Width = vg.Points(1.5)

		p.Add(r, f)
		p.Legend.Add(names[i]+" raw", r)
		p.Legend.Add(names[i]+" fir", f)
	}
	p.Add(plotter.NewGrid())

	if err := p.Save(10*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("save plot %s: %w", path, err)
	}
	return nil
}

// RunPlotWindow waits for the next window on MQTT and plots it to out.
func RunPlotWindow(ctx context.Context, out string) error {
	cfg := config.Get()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDPlot)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	windows := make(chan imu.Window, 1)
	err = subscribeJSON(client, cfg.TopicWindow, "plot", func(w imu.Window) {
		select {
		case windows <- w:
		default:
		}
	})
	if err != nil {
		return err
	}

	log.Printf("plot: waiting for a window on %s", cfg.TopicWindow)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case w := <-windows:
		if err := PlotWindow(w, out); err != nil {
			return err
		}
		log.Printf("plot: window %d written to %s", w.Seq, out)
		return nil
	}
}
