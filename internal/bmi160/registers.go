// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bmi160

// Register addresses.
const (
	RegChipID      = 0x00
	RegErr         = 0x02
	RegPMUStatus   = 0x03
	RegAccData     = 0x12 // ACC_X_LSB, 6 bytes
	RegStatus      = 0x1B
	RegIntStatus1  = 0x1D
	RegFIFOLength  = 0x22 // 2 bytes, 11 bits
	RegFIFOData    = 0x24
	RegAccConf     = 0x40
	RegAccRange    = 0x41
	RegFIFOConfig0 = 0x46 // watermark, 4-byte units
	RegFIFOConfig1 = 0x47
	RegIntEn1      = 0x51
	RegIntOutCtrl  = 0x53
	RegIntLatch    = 0x54
	RegIntMap1     = 0x56
	RegNVConf      = 0x70
	RegCmd         = 0x7E
	RegSPIMode     = 0x7F // any read latches the SPI interface
)

// Command register values.
const (
	CmdAccSuspend = 0x10
	CmdAccNormal  = 0x11
	CmdAccLowPow  = 0x12
	CmdFIFOFlush  = 0xB0
	CmdSoftReset  = 0xB6
)

const (
	ChipID = 0xD1

	fifoConfig1AccEn    = 0x40
	fifoConfig1HeaderEn = 0x10

	intEn1FWM = 0x40

	intMap1Int1FWM = 0x40
	intMap1Int2FWM = 0x04

	intOutEdge     = 0x01
	intOutLevel    = 0x02
	intOutOpenDrn  = 0x04
	intOutOutputEn = 0x08

	intLatchMask     = 0x0F
	intLatchInt1InEn = 0x10
	intLatchInt2InEn = 0x20

	accConfUndersampling = 0x80

	errRegCode = 0x1E

	pmuAccMask   = 0x30
	pmuAccShift  = 4
	fifoLenMask  = 0x07FF
	fifoCapacity = 1024
)

// BitField describes one field inside a register.
type BitField struct {
	Bits        string `json:"bits"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Values      string `json:"values,omitempty"`
}

// RegisterInfo is register metadata for the register debugger.
type RegisterInfo struct {
	Address     byte       `json:"address"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Access      string     `json:"access"` // "R", "W", "RW"
	Default     string     `json:"default,omitempty"`
	BitFields   []BitField `json:"bit_fields,omitempty"`
}

// Writable reports whether the register accepts writes.
func (r RegisterInfo) Writable() bool {
	return r.Access == "W" || r.Access == "RW"
}

// RegisterMap returns metadata for the registers the filter pipeline touches.
func RegisterMap() []RegisterInfo {
	return []RegisterInfo{
		{Address: RegChipID, Name: "CHIP_ID", Description: "Chip identification", Access: "R", Default: "0xD1"},
		{Address: RegErr, Name: "ERR_REG", Description: "Error flags", Access: "R",
			BitFields: []BitField{
				{Bits: "6", Name: "drop_cmd_err", Description: "Command dropped"},
				{Bits: "4:1", Name: "err_code", Description: "Error code", Values: "0=no error"},
				{Bits: "0", Name: "fatal_err", Description: "Chip not operable"},
			}},
		{Address: RegPMUStatus, Name: "PMU_STATUS", Description: "Power mode status", Access: "R",
			BitFields: []BitField{
				{Bits: "5:4", Name: "acc_pmu_status", Description: "Accelerometer power mode", Values: "0=Suspend, 1=Normal, 2=Low power"},
			}},
		{Address: RegStatus, Name: "STATUS", Description: "Data ready and NVM status", Access: "R"},
		{Address: RegIntStatus1, Name: "INT_STATUS_1", Description: "Interrupt status", Access: "R",
			BitFields: []BitField{
				{Bits: "6", Name: "fwm_int", Description: "FIFO watermark interrupt"},
				{Bits: "5", Name: "ffull_int", Description: "FIFO full interrupt"},
			}},
		{Address: RegFIFOLength, Name: "FIFO_LENGTH_0", Description: "FIFO fill level LSB", Access: "R"},
		{Address: RegFIFOLength + 1, Name: "FIFO_LENGTH_1", Description: "FIFO fill level MSB (bits 2:0)", Access: "R"},
		{Address: RegAccConf, Name: "ACC_CONF", Description: "Accelerometer configuration", Access: "RW", Default: "0x28",
			BitFields: []BitField{
				{Bits: "7", Name: "acc_us", Description: "Undersampling", Values: "0=Off, 1=On"},
				{Bits: "6:4", Name: "acc_bwp", Description: "Bandwidth / averaging", Values: "0=OSR4, 1=OSR2, 2=Normal"},
				{Bits: "3:0", Name: "acc_odr", Description: "Output data rate", Values: "5=12.5Hz, 6=25Hz, 7=50Hz, 8=100Hz ... 12=1600Hz"},
			}},
		{Address: RegAccRange, Name: "ACC_RANGE", Description: "Accelerometer range", Access: "RW", Default: "0x03",
			BitFields: []BitField{
				{Bits: "3:0", Name: "acc_range", Description: "Full scale", Values: "3=±2g, 5=±4g, 8=±8g, 12=±16g"},
			}},
		{Address: RegFIFOConfig0, Name: "FIFO_CONFIG_0", Description: "FIFO watermark (4-byte units)", Access: "RW", Default: "0x80"},
		{Address: RegFIFOConfig1, Name: "FIFO_CONFIG_1", Description: "FIFO sources and mode", Access: "RW", Default: "0x10",
			BitFields: []BitField{
				{Bits: "7", Name: "fifo_gyr_en", Description: "Store gyroscope data"},
				{Bits: "6", Name: "fifo_acc_en", Description: "Store accelerometer data"},
				{Bits: "5", Name: "fifo_mag_en", Description: "Store magnetometer data"},
				{Bits: "4", Name: "fifo_header_en", Description: "Header mode"},
			}},
		{Address: RegIntEn1, Name: "INT_EN_1", Description: "Interrupt enable 1", Access: "RW",
			BitFields: []BitField{
				{Bits: "6", Name: "int_fwm_en", Description: "FIFO watermark interrupt"},
				{Bits: "5", Name: "int_ffull_en", Description: "FIFO full interrupt"},
				{Bits: "4", Name: "int_drdy_en", Description: "Data ready interrupt"},
			}},
		{Address: RegIntOutCtrl, Name: "INT_OUT_CTRL", Description: "Interrupt pin electrical behaviour", Access: "RW",
			BitFields: []BitField{
				{Bits: "3", Name: "int1_output_en", Description: "INT1 output enable"},
				{Bits: "2", Name: "int1_od", Description: "INT1 open drain", Values: "0=Push-pull, 1=Open drain"},
				{Bits: "1", Name: "int1_lvl", Description: "INT1 active level", Values: "0=Active low, 1=Active high"},
				{Bits: "0", Name: "int1_edge_ctrl", Description: "INT1 trigger", Values: "0=Level, 1=Edge"},
				{Bits: "7:4", Name: "int2_*", Description: "Same layout for INT2"},
			}},
		{Address: RegIntLatch, Name: "INT_LATCH", Description: "Interrupt latch and input enable", Access: "RW",
			BitFields: []BitField{
				{Bits: "5", Name: "int2_input_en", Description: "INT2 as input"},
				{Bits: "4", Name: "int1_input_en", Description: "INT1 as input"},
				{Bits: "3:0", Name: "int_latch", Description: "Latch duration", Values: "0=Non-latched, 15=Latched"},
			}},
		{Address: RegIntMap1, Name: "INT_MAP_1", Description: "Interrupt mapping 1", Access: "RW",
			BitFields: []BitField{
				{Bits: "6", Name: "int1_fwm", Description: "FIFO watermark to INT1"},
				{Bits: "2", Name: "int2_fwm", Description: "FIFO watermark to INT2"},
			}},
		{Address: RegNVConf, Name: "NV_CONF", Description: "Interface configuration", Access: "RW"},
		{Address: RegCmd, Name: "CMD", Description: "Command register", Access: "W",
			BitFields: []BitField{
				{Bits: "7:0", Name: "cmd", Description: "Command", Values: "0x11=Acc normal, 0x12=Acc low power, 0xB0=FIFO flush, 0xB6=Soft reset"},
			}},
	}
}
