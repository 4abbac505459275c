// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bus

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
)

// SPI mode and word size used for the accelerometer. The BMI160 accepts
// modes 0 and 3; mode 3 matches the other Bosch parts on the board.
const (
	SPIMode = spi.Mode3
	SPIBits = 8
)

// SPISubmitter runs each transfer on its own goroutine and reports
// completion through the done callback, like a DMA completion interrupt.
type SPISubmitter struct {
	conn spi.Conn
}

// NewSPI connects to p at freq.
func NewSPI(p spi.Port, freq physic.Frequency) (*SPISubmitter, error) {
	c, err := p.Connect(freq, SPIMode, SPIBits)
	if err != nil {
		return nil, fmt.Errorf("bus: SPI connect at %s: %w", freq, err)
	}
	return &SPISubmitter{conn: c}, nil
}

// OpenSPI opens the named SPI port (e.g. "/dev/spidev0.0") and connects to it.
// The returned closer releases the port.
func OpenSPI(name string, freq physic.Frequency) (*SPISubmitter, spi.PortCloser, error) {
	p, err := spireg.Open(name)
	if err != nil {
		return nil, nil, fmt.Errorf("bus: SPI open %q: %w", name, err)
	}
	s, err := NewSPI(p, freq)
	if err != nil {
		p.Close()
		return nil, nil, err
	}
	return s, p, nil
}

// Submit implements Submitter.
func (s *SPISubmitter) Submit(w, r []byte, done func(error)) error {
	if done == nil {
		return fmt.Errorf("bus: nil completion callback")
	}
	go func() {
		done(s.conn.Tx(w, r))
	}()
	return nil
}

func (s *SPISubmitter) String() string {
	return fmt.Sprintf("SPISubmitter{%s}", s.conn)
}
