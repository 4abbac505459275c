// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package irq turns GPIO edges into handler calls.
package irq

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// Handler is called once per detected edge with the pin name and the level
// read after the edge. It runs on the watch goroutine.
type Handler func(pin string, level gpio.Level)

// pollInterval bounds how long WaitForEdge blocks so ctx is noticed.
const pollInterval = 100 * time.Millisecond

// Lookup returns the named pin from the periph registry.
func Lookup(name string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("irq: unknown pin %q", name)
	}
	return p, nil
}

// Watch configures pin as a pulled-up input with rising edge detection and
// calls h for each edge until ctx is done. Only one handler may be bound to
// a pin at a time.
func Watch(ctx context.Context, pin gpio.PinIO, h Handler) error {
	if h == nil {
		return fmt.Errorf("irq: nil handler for %s", pin)
	}
	if err := pin.In(gpio.PullUp, gpio.RisingEdge); err != nil {
		return fmt.Errorf("irq: configure %s: %w", pin, err)
	}
	defer func() {
		if err := pin.In(gpio.PullUp, gpio.NoEdge); err != nil {
			log.Warnf("irq: disable edge detection on %s: %v", pin, err)
		}
	}()

	log.Debugf("irq: watching %s for rising edges", pin)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !pin.WaitForEdge(pollInterval) {
			continue
		}
		h(pin.Name(), pin.Read())
	}
}
