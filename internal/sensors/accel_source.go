// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sensors brings up the accelerometer from the application config.
package sensors

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/accel_fir/internal/bmi160"
	"github.com/relabs-tech/accel_fir/internal/bus"
	"github.com/relabs-tech/accel_fir/internal/config"
)

// Accel is an initialized BMI160 on its SPI port.
type Accel struct {
	Dev       *bmi160.Dev
	Transport *bus.Transport
	port      spi.PortCloser
}

// Close releases the SPI port.
func (a *Accel) Close() error {
	if a.port == nil {
		return nil
	}
	return a.port.Close()
}

// SensorConfig maps the application config onto the driver configuration.
func SensorConfig(cfg *config.Config) (bmi160.Config, error) {
	sc := bmi160.DefaultConfig

	odr, err := bmi160.ODRFromHz(cfg.AccelODRHz)
	if err != nil {
		return sc, err
	}
	rng, err := bmi160.RangeFromG(cfg.AccelRangeG)
	if err != nil {
		return sc, err
	}
	sc.ODR = odr
	sc.Range = rng
	sc.Bandwidth = bmi160.Bandwidth(cfg.AccelBW)

	switch cfg.AccelPower {
	case "normal":
		sc.Power = bmi160.PowerNormal
	case "low":
		sc.Power = bmi160.PowerLow
	case "suspend":
		sc.Power = bmi160.PowerSuspend
	default:
		return sc, fmt.Errorf("unknown accelerometer power mode %q", cfg.AccelPower)
	}

	sc.Watermark = cfg.FIFOWatermark
	sc.Channel = bmi160.IntChannel(cfg.IntChannel)
	sc.Pin.Latch = cfg.IntLatch

	return sc, sc.Validate()
}

// OpenAccel opens the SPI port, then resets and configures the sensor.
// When configure is false the device is only identified (SPI latch and chip ID),
// leaving the register file as the device has it.
func OpenAccel(cfg *config.Config, configure bool) (*Accel, error) {
	sc, err := SensorConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("accel: %w", err)
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("accel: periph host init: %w", err)
	}

	sub, port, err := bus.OpenSPI(cfg.SPIDevice, physic.Frequency(cfg.SPISpeedHz)*physic.Hertz)
	if err != nil {
		return nil, fmt.Errorf("accel: %w", err)
	}
	tr := bus.New(sub, bus.WithTimeout(cfg.BusTimeout()))

	dev, err := bmi160.New(tr, sc)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("accel: device creation: %w", err)
	}
	// Identify only: a node already running on the sensor keeps its setup.
	initFn, step := dev.Identify, "identify"
	if configure {
		initFn, step = dev.Init, "initialization"
	}
	if err := initFn(); err != nil {
		port.Close()
		return nil, fmt.Errorf("accel: %s: %w", step, err)
	}
	log.Printf("accel: BMI160 found on %s", cfg.SPIDevice)

	if configure {
		if err := dev.Configure(); err != nil {
			port.Close()
			return nil, fmt.Errorf("accel: configuration: %w", err)
		}
		log.Printf("accel: ODR %gHz, range ±%dg, bandwidth %d, power %s",
			sc.ODR.Hz(), cfg.AccelRangeG, sc.Bandwidth, cfg.AccelPower)
		log.Printf("accel: FIFO watermark %d bytes (register %d) on INT%d",
			sc.Watermark, sc.Watermark/4, sc.Channel)
	}

	return &Accel{Dev: dev, Transport: tr, port: port}, nil
}
