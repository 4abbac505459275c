// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"gonum.org/v1/gonum/floats"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/accel_fir/internal/config"
	"github.com/relabs-tech/accel_fir/internal/imu"
)

const (
	oledW = 128
	oledH = 64
	// The sparkline occupies the rows below the three text lines.
	sparkTop = 42
)

// displayData holds the latest messages for the OLED.
type displayData struct {
	mu         sync.RWMutex
	window     imu.Window
	haveWindow bool
	status     imu.Status
	haveStatus bool
}

func (d *displayData) setWindow(w imu.Window) {
	d.mu.Lock()
	d.window, d.haveWindow = w, true
	d.mu.Unlock()
}

func (d *displayData) setStatus(s imu.Status) {
	d.mu.Lock()
	d.status, d.haveStatus = s, true
	d.mu.Unlock()
}

func newFrame() (*image1bit.VerticalLSB, *font.Drawer) {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, oledW, oledH))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	return img, drawer
}

// renderSplash draws the start-up screen.
func renderSplash() *image1bit.VerticalLSB {
	img, drawer := newFrame()
	drawer.Dot = fixed.P(10, 26)
	drawer.DrawString("Accel FIR")
	drawer.Dot = fixed.P(5, 43)
	drawer.DrawString("Waiting for")
	drawer.Dot = fixed.P(25, 56)
	drawer.DrawString("windows")
	return img
}

// renderWindow draws the filtered per-axis means, the fault counters and a
// sparkline of the filtered X axis.
func renderWindow(w imu.Window, haveWindow bool, st imu.Status, haveStatus bool) *image1bit.VerticalLSB {
	img, drawer := newFrame()
	if !haveWindow {
		drawer.Dot = fixed.P(0, 26)
		drawer.DrawString("FIR window")
		drawer.Dot = fixed.P(0, 39)
		drawer.DrawString("Waiting...")
		return img
	}

	s := summarizeWindow(w)
	drawer.Dot = fixed.P(0, 13)
	drawer.DrawString(fmt.Sprintf("#%d %d/%d", s.Seq, s.Delivered, s.Capacity))
	drawer.Dot = fixed.P(0, 26)
	drawer.DrawString(fmt.Sprintf("%5.0f%6.0f%6.0f", s.Filtered[0].Mean, s.Filtered[1].Mean, s.Filtered[2].Mean))
	drawer.Dot = fixed.P(0, 39)
	if haveStatus {
		drawer.DrawString(fmt.Sprintf("bus%d ovr%d drp%d", st.BusFaults, st.Overruns, st.DroppedWindows))
	}

	drawSparkline(img, w.Filtered.X, sparkTop, oledH-1)
	return img
}

// drawSparkline plots v scaled into rows top..bottom, one column per
// horizontal pixel.
func drawSparkline(img *image1bit.VerticalLSB, v []float32, top, bottom int) {
	if len(v) == 0 {
		return
	}
	f := make([]float64, len(v))
	for i, x := range v {
		f[i] = float64(x)
	}
	lo, hi := floats.Min(f), floats.Max(f)
	span := hi - lo
	for col := 0; col < oledW; col++ {
		val := f[col*len(f)/oledW]
		row := (top + bottom) / 2
		if span > 0 {
			row = bottom - int((val-lo)/span*float64(bottom-top)+0.5)
		}
		img.SetBit(col, row, image1bit.On)
	}
}

// RunDisplay shows the latest window on an SSD1306 OLED.
func RunDisplay(ctx context.Context) error {
	cfg := config.Get()

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	bus, err := i2creg.Open(cfg.DisplayI2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	defer dev.Halt()
	log.Printf("display: initialized on %s", bus)

	if err := dev.Draw(dev.Bounds(), renderSplash(), image.Point{}); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	data := &displayData{}
	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDDisplay)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	if err := subscribeJSON(client, cfg.TopicWindow, "display", data.setWindow); err != nil {
		return err
	}
	if cfg.TopicStatus != "" {
		if err := subscribeJSON(client, cfg.TopicStatus, "display", data.setStatus); err != nil {
			return err
		}
	}

	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()
	log.Println("display: starting update loop")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		data.mu.RLock()
		img := renderWindow(data.window, data.haveWindow, data.status, data.haveStatus)
		data.mu.RUnlock()

		if err := dev.Draw(dev.Bounds(), img, image.Point{}); err != nil {
			log.Printf("display: error updating display: %v", err)
		}
	}
}
