// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package bmi160 configures a Bosch BMI160 accelerometer for FIFO watermark
// operation and extracts accelerometer frames from its FIFO.
package bmi160

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrChipID is returned when CHIP_ID does not read 0xD1.
	ErrChipID = errors.New("bmi160: chip ID does not match (0xD1)")
	// ErrSensorConfig is returned when ERR_REG reports an invalid configuration.
	ErrSensorConfig = errors.New("bmi160: sensor rejected configuration")
	// ErrPowerMode is returned when PMU_STATUS does not reach the requested mode.
	ErrPowerMode = errors.New("bmi160: accelerometer power mode not reached")
	// ErrInvalidConfig is returned by Validate.
	ErrInvalidConfig = errors.New("bmi160: invalid configuration")
)

// RegisterIO is the register transport the driver runs on.
type RegisterIO interface {
	Write(reg byte, data []byte) error
	ReadInto(reg byte, dst []byte) error
}

// ODR is an ACC_CONF output data rate code.
type ODR byte

const (
	ODR12_5Hz ODR = 0x05
	ODR25Hz   ODR = 0x06
	ODR50Hz   ODR = 0x07
	ODR100Hz  ODR = 0x08
	ODR200Hz  ODR = 0x09
	ODR400Hz  ODR = 0x0A
	ODR800Hz  ODR = 0x0B
	ODR1600Hz ODR = 0x0C
)

var odrHz = map[ODR]float64{
	ODR12_5Hz: 12.5,
	ODR25Hz:   25,
	ODR50Hz:   50,
	ODR100Hz:  100,
	ODR200Hz:  200,
	ODR400Hz:  400,
	ODR800Hz:  800,
	ODR1600Hz: 1600,
}

// Hz returns the sample rate in hertz, or 0 for an unknown code.
func (o ODR) Hz() float64 {
	return odrHz[o]
}

// ODRFromHz maps a rate in hertz to its ODR code.
func ODRFromHz(hz float64) (ODR, error) {
	for code, rate := range odrHz {
		if rate == hz {
			return code, nil
		}
	}
	return 0, fmt.Errorf("%w: unsupported output data rate %gHz", ErrInvalidConfig, hz)
}

// Range is an ACC_RANGE code.
type Range byte

const (
	Range2G  Range = 0x03
	Range4G  Range = 0x05
	Range8G  Range = 0x08
	Range16G Range = 0x0C
)

// RangeFromG maps a full scale in g to its ACC_RANGE code.
func RangeFromG(g int) (Range, error) {
	switch g {
	case 2:
		return Range2G, nil
	case 4:
		return Range4G, nil
	case 8:
		return Range8G, nil
	case 16:
		return Range16G, nil
	}
	return 0, fmt.Errorf("%w: unsupported range ±%dg", ErrInvalidConfig, g)
}

// Bandwidth is the acc_bwp field. In normal mode it selects the filter
// oversampling; in low power mode it selects averaging.
type Bandwidth byte

const (
	BWOSR4       Bandwidth = 0x00
	BWOSR2       Bandwidth = 0x01
	BWNormalAvg4 Bandwidth = 0x02
)

// PowerMode is the CMD value that selects the accelerometer power mode.
type PowerMode byte

const (
	PowerSuspend PowerMode = CmdAccSuspend
	PowerNormal  PowerMode = CmdAccNormal
	PowerLow     PowerMode = CmdAccLowPow
)

// pmuStatus is the acc_pmu_status value the mode reports once active.
func (p PowerMode) pmuStatus() byte {
	switch p {
	case PowerNormal:
		return 0x01
	case PowerLow:
		return 0x02
	}
	return 0x00
}

// IntChannel selects the INT1 or INT2 pin.
type IntChannel byte

const (
	IntChannel1 IntChannel = 1
	IntChannel2 IntChannel = 2
)

// PinSettings is the electrical configuration of the interrupt pin.
type PinSettings struct {
	OutputEnable  bool
	OpenDrain     bool // false = push-pull
	ActiveHigh    bool
	EdgeTriggered bool
	InputEnable   bool
	Latch         byte // INT_LATCH code, 0 = non-latched
}

// Config is everything the driver writes during Configure.
type Config struct {
	ODR       ODR
	Range     Range
	Bandwidth Bandwidth
	Power     PowerMode

	FIFOAccel  bool // store accelerometer frames
	FIFOHeader bool // header mode
	Watermark  int  // bytes, written in 4-byte units

	Channel      IntChannel
	Pin          PinSettings
	WatermarkInt bool
}

// DefaultConfig is 25Hz, ±8g, normal averaging, accelerometer FIFO in header
// mode with a 180 byte watermark routed to INT1 as a push-pull, active high,
// edge triggered, non-latched output.
var DefaultConfig = Config{
	ODR:        ODR25Hz,
	Range:      Range8G,
	Bandwidth:  BWNormalAvg4,
	Power:      PowerNormal,
	FIFOAccel:  true,
	FIFOHeader: true,
	Watermark:  180,
	Channel:    IntChannel1,
	Pin: PinSettings{
		OutputEnable:  true,
		OpenDrain:     false,
		ActiveHigh:    true,
		EdgeTriggered: true,
		InputEnable:   false,
		Latch:         0,
	},
	WatermarkInt: true,
}

// Validate checks the configuration against the register ranges.
func (c Config) Validate() error {
	if c.ODR.Hz() == 0 {
		return fmt.Errorf("%w: ODR code 0x%02X", ErrInvalidConfig, byte(c.ODR))
	}
	switch c.Range {
	case Range2G, Range4G, Range8G, Range16G:
	default:
		return fmt.Errorf("%w: range code 0x%02X", ErrInvalidConfig, byte(c.Range))
	}
	if c.Bandwidth > BWNormalAvg4 && c.Power != PowerLow {
		return fmt.Errorf("%w: bandwidth %d needs low power mode", ErrInvalidConfig, c.Bandwidth)
	}
	if c.Bandwidth > 0x07 {
		return fmt.Errorf("%w: bandwidth %d", ErrInvalidConfig, c.Bandwidth)
	}
	switch c.Power {
	case PowerNormal, PowerLow, PowerSuspend:
	default:
		return fmt.Errorf("%w: power mode 0x%02X", ErrInvalidConfig, byte(c.Power))
	}
	if c.Watermark < 4 || c.Watermark > fifoCapacity-4 {
		return fmt.Errorf("%w: watermark %d bytes outside 4-%d", ErrInvalidConfig, c.Watermark, fifoCapacity-4)
	}
	if c.Channel != IntChannel1 && c.Channel != IntChannel2 {
		return fmt.Errorf("%w: interrupt channel %d", ErrInvalidConfig, c.Channel)
	}
	if c.Pin.Latch > intLatchMask {
		return fmt.Errorf("%w: latch code %d", ErrInvalidConfig, c.Pin.Latch)
	}
	return nil
}

// Dev is a BMI160 on a RegisterIO.
type Dev struct {
	io    RegisterIO
	cfg   Config
	delay func(time.Duration)

	lenBuf [2]byte
}

// New returns a driver for the device on io. Nothing is written until Init
// and Configure are called.
func New(io RegisterIO, cfg Config) (*Dev, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Dev{io: io, cfg: cfg, delay: time.Sleep}, nil
}

// SetDelay replaces the sleep used while waiting for the sensor.
func (d *Dev) SetDelay(f func(time.Duration)) {
	d.delay = f
}

// Config returns the configuration the device was created with.
func (d *Dev) Config() Config {
	return d.cfg
}

// Identify latches the SPI interface and checks the chip ID. It writes nothing,
// so the register file is left as the device has it.
func (d *Dev) Identify() error {
	if err := d.latchSPI(); err != nil {
		return err
	}
	id, err := d.ReadRegister(RegChipID)
	if err != nil {
		return fmt.Errorf("bmi160: read chip ID: %w", err)
	}
	if id != ChipID {
		return fmt.Errorf("%w: got 0x%02X", ErrChipID, id)
	}
	return nil
}

// Init soft-resets the device and identifies it.
func (d *Dev) Init() error {
	if err := d.latchSPI(); err != nil {
		return err
	}
	if err := d.command(CmdSoftReset); err != nil {
		return fmt.Errorf("bmi160: soft reset: %w", err)
	}
	d.delay(time.Millisecond)
	// Reset puts the interface back in I2C mode.
	return d.Identify()
}

// Configure applies the sensor, FIFO and interrupt configuration and flushes
// the FIFO. It must succeed before the watermark interrupt is enabled on the
// host side.
func (d *Dev) Configure() error {
	c := d.cfg

	accConf := byte(c.ODR) | byte(c.Bandwidth)<<4
	if c.Power == PowerLow {
		accConf |= accConfUndersampling
	}
	if err := d.WriteRegister(RegAccConf, accConf); err != nil {
		return fmt.Errorf("bmi160: set accel conf: %w", err)
	}
	if err := d.WriteRegister(RegAccRange, byte(c.Range)); err != nil {
		return fmt.Errorf("bmi160: set accel range: %w", err)
	}
	if err := d.checkErrReg(); err != nil {
		return err
	}

	if err := d.setPower(c.Power); err != nil {
		return err
	}

	var fifo1 byte
	if c.FIFOAccel {
		fifo1 |= fifoConfig1AccEn
	}
	if c.FIFOHeader {
		fifo1 |= fifoConfig1HeaderEn
	}
	if err := d.WriteRegister(RegFIFOConfig1, fifo1); err != nil {
		return fmt.Errorf("bmi160: set FIFO config: %w", err)
	}
	if err := d.WriteRegister(RegFIFOConfig0, byte(c.Watermark/4)); err != nil {
		return fmt.Errorf("bmi160: set FIFO watermark: %w", err)
	}

	if err := d.configureInterrupt(); err != nil {
		return err
	}

	if err := d.command(CmdFIFOFlush); err != nil {
		return fmt.Errorf("bmi160: flush FIFO: %w", err)
	}
	return nil
}

func (d *Dev) configureInterrupt() error {
	c := d.cfg

	var out byte
	if c.Pin.EdgeTriggered {
		out |= intOutEdge
	}
	if c.Pin.ActiveHigh {
		out |= intOutLevel
	}
	if c.Pin.OpenDrain {
		out |= intOutOpenDrn
	}
	if c.Pin.OutputEnable {
		out |= intOutOutputEn
	}
	outMask := byte(0x0F)
	inEn, mapBit := byte(intLatchInt1InEn), byte(intMap1Int1FWM)
	if c.Channel == IntChannel2 {
		out <<= 4
		outMask <<= 4
		inEn, mapBit = intLatchInt2InEn, intMap1Int2FWM
	}
	if err := d.update(RegIntOutCtrl, outMask, out); err != nil {
		return fmt.Errorf("bmi160: set interrupt pin: %w", err)
	}

	latch := c.Pin.Latch & intLatchMask
	if c.Pin.InputEnable {
		latch |= inEn
	}
	if err := d.update(RegIntLatch, intLatchMask|inEn, latch); err != nil {
		return fmt.Errorf("bmi160: set interrupt latch: %w", err)
	}

	if err := d.update(RegIntMap1, mapBit, mapBit); err != nil {
		return fmt.Errorf("bmi160: map watermark interrupt: %w", err)
	}

	var en byte
	if c.WatermarkInt {
		en = intEn1FWM
	}
	if err := d.update(RegIntEn1, intEn1FWM, en); err != nil {
		return fmt.Errorf("bmi160: enable watermark interrupt: %w", err)
	}
	return nil
}

func (d *Dev) setPower(p PowerMode) error {
	if err := d.command(byte(p)); err != nil {
		return fmt.Errorf("bmi160: set power mode: %w", err)
	}
	// Accelerometer start-up time is 3.8ms.
	d.delay(4 * time.Millisecond)

	st, err := d.ReadRegister(RegPMUStatus)
	if err != nil {
		return fmt.Errorf("bmi160: read PMU status: %w", err)
	}
	if got := (st & pmuAccMask) >> pmuAccShift; got != p.pmuStatus() {
		return fmt.Errorf("%w: PMU_STATUS=0x%02X", ErrPowerMode, st)
	}
	return nil
}

func (d *Dev) checkErrReg() error {
	e, err := d.ReadRegister(RegErr)
	if err != nil {
		return fmt.Errorf("bmi160: read ERR_REG: %w", err)
	}
	if e&errRegCode != 0 {
		return fmt.Errorf("%w: ERR_REG=0x%02X", ErrSensorConfig, e)
	}
	return nil
}

// FIFOLength returns the number of bytes currently held in the FIFO.
func (d *Dev) FIFOLength() (int, error) {
	if err := d.io.ReadInto(RegFIFOLength, d.lenBuf[:]); err != nil {
		return 0, fmt.Errorf("bmi160: read FIFO length: %w", err)
	}
	return (int(d.lenBuf[0]) | int(d.lenBuf[1])<<8) & fifoLenMask, nil
}

// ReadFIFO reads the FIFO content into buf, up to len(buf) bytes, and returns
// the number of bytes read. buf is left untouched when the read fails.
func (d *Dev) ReadFIFO(buf []byte) (int, error) {
	n, err := d.FIFOLength()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	n = min(n, len(buf))
	if err := d.io.ReadInto(RegFIFOData, buf[:n]); err != nil {
		return 0, fmt.Errorf("bmi160: read FIFO data (%d bytes): %w", n, err)
	}
	return n, nil
}

// ExtractAccel parses accelerometer frames from raw FIFO bytes into frames.
// It returns ErrFramesFull when raw holds more frames than fit.
func (d *Dev) ExtractAccel(raw []byte, frames []Frame) (int, error) {
	if d.cfg.FIFOHeader {
		return ParseHeaderMode(raw, frames)
	}
	return ParseHeaderless(raw, frames)
}

// FlushFIFO discards the FIFO content, which also releases a non-latched
// watermark interrupt.
func (d *Dev) FlushFIFO() error {
	return d.command(CmdFIFOFlush)
}

// ReadRegister reads a single register.
func (d *Dev) ReadRegister(reg byte) (byte, error) {
	var b [1]byte
	if err := d.io.ReadInto(reg, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// WriteRegister writes a single register.
func (d *Dev) WriteRegister(reg, value byte) error {
	return d.io.Write(reg, []byte{value})
}

func (d *Dev) command(cmd byte) error {
	return d.WriteRegister(RegCmd, cmd)
}

func (d *Dev) latchSPI() error {
	if _, err := d.ReadRegister(RegSPIMode); err != nil {
		return fmt.Errorf("bmi160: SPI mode dummy read: %w", err)
	}
	return nil
}

// update does a read-modify-write of the bits in mask.
func (d *Dev) update(reg, mask, value byte) error {
	cur, err := d.ReadRegister(reg)
	if err != nil {
		return err
	}
	return d.WriteRegister(reg, cur&^mask|value&mask)
}
