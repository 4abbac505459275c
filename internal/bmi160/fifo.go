// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bmi160

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/relabs-tech/accel_fir/internal/imu"
)

// Frame is one accelerometer sample as stored in the FIFO.
type Frame = imu.Frame

const (
	// AccelFrameSize is the size of a header-mode accelerometer frame.
	AccelFrameSize = 7
	// HeaderlessFrameSize is the size of an accelerometer frame without header.
	HeaderlessFrameSize = 6
)

var (
	// ErrCorruptFIFO is returned when the FIFO stream holds an unknown header.
	ErrCorruptFIFO = errors.New("bmi160: corrupt FIFO stream")
	// ErrFramesFull is returned when raw holds more complete accelerometer
	// frames than the destination slice. The frames that fit are still written.
	ErrFramesFull = errors.New("bmi160: more FIFO frames than destination holds")
)

const (
	headerOverRead = 0x80

	headerModeMask = 0xC0
	headerRegular  = 0x80
	headerControl  = 0x40

	regularMag   = 0x04
	regularGyro  = 0x02
	regularAccel = 0x01

	controlSkip        = 0x00
	controlSensorTime  = 0x01
	controlInputConfig = 0x02
)

// ParseHeaderMode extracts accelerometer frames from a header-mode FIFO
// stream. Gyroscope and magnetometer payloads and control frames are
// skipped. Parsing stops at the over-read marker or at a truncated frame;
// the number of frames written is returned. A complete accelerometer frame
// beyond the capacity of frames yields ErrFramesFull.
func ParseHeaderMode(raw []byte, frames []Frame) (int, error) {
	n := 0
	i := 0
	for i < len(raw) {
		h := raw[i]
		if h == headerOverRead {
			break
		}
		i++

		switch h & headerModeMask {
		case headerRegular:
			parm := (h >> 2) & 0x07
			size := 0
			if parm&regularMag != 0 {
				size += 8
			}
			if parm&regularGyro != 0 {
				size += 6
			}
			if parm&regularAccel != 0 {
				size += 6
			}
			if i+size > len(raw) {
				return n, nil
			}
			if parm&regularAccel != 0 {
				if n == len(frames) {
					return n, fmt.Errorf("%w: %d frames", ErrFramesFull, n)
				}
				off := i + size - 6
				frames[n] = decodeAccel(raw[off : off+6])
				n++
			}
			i += size

		case headerControl:
			var size int
			switch (h >> 2) & 0x07 {
			case controlSkip, controlInputConfig:
				size = 1
			case controlSensorTime:
				size = 3
			default:
				return n, fmt.Errorf("%w: control header 0x%02X at offset %d", ErrCorruptFIFO, h, i-1)
			}
			if i+size > len(raw) {
				return n, nil
			}
			i += size

		default:
			return n, fmt.Errorf("%w: header 0x%02X at offset %d", ErrCorruptFIFO, h, i-1)
		}
	}
	return n, nil
}

// ParseHeaderless extracts frames from an accelerometer-only FIFO stream
// without headers. A trailing partial frame is ignored; more complete
// frames than frames holds yields ErrFramesFull.
func ParseHeaderless(raw []byte, frames []Frame) (int, error) {
	n := 0
	for i := 0; i+HeaderlessFrameSize <= len(raw); i += HeaderlessFrameSize {
		if n == len(frames) {
			return n, fmt.Errorf("%w: %d of %d frames", ErrFramesFull, n, len(raw)/HeaderlessFrameSize)
		}
		frames[n] = decodeAccel(raw[i : i+HeaderlessFrameSize])
		n++
	}
	return n, nil
}

func decodeAccel(b []byte) Frame {
	return Frame{
		X: int16(binary.LittleEndian.Uint16(b[0:])),
		Y: int16(binary.LittleEndian.Uint16(b[2:])),
		Z: int16(binary.LittleEndian.Uint16(b[4:])),
	}
}

// EncodeAccel appends a header-mode accelerometer frame for f to dst.
func EncodeAccel(dst []byte, f Frame) []byte {
	dst = append(dst, headerRegular|regularAccel<<2)
	dst = binary.LittleEndian.AppendUint16(dst, uint16(f.X))
	dst = binary.LittleEndian.AppendUint16(dst, uint16(f.Y))
	return binary.LittleEndian.AppendUint16(dst, uint16(f.Z))
}
