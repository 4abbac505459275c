// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestShippedConfigMatchesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", DefaultPath))
	if err != nil {
		t.Fatal(err)
	}
	if *cfg != *Default() {
		t.Errorf("shipped config differs from defaults:\n got %+v\nwant %+v", *cfg, *Default())
	}
}

func TestParseOverridesDefaults(t *testing.T) {
	in := `
# sensor node
MQTT_BROKER = tcp://pi.local:1883
SPI_DEVICE=/dev/spidev1.0
ACCEL_ODR=100
ACCEL_RANGE=4
FIFO_WATERMARK=112
FIFO_BUFFER_SIZE=140
BLOCK_SIZE=20
FIR_CUTOFF_HZ=10
BUS_TIMEOUT_MS=5
LOG_LEVEL=debug
`
	cfg, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.MQTTBroker != "tcp://pi.local:1883" || cfg.SPIDevice != "/dev/spidev1.0" {
		t.Errorf("strings not applied: %+v", cfg)
	}
	if cfg.AccelODRHz != 100 || cfg.AccelRangeG != 4 || cfg.BlockSize != 20 {
		t.Errorf("numbers not applied: odr=%g range=%d block=%d", cfg.AccelODRHz, cfg.AccelRangeG, cfg.BlockSize)
	}
	if cfg.BusTimeout() != 5*time.Millisecond {
		t.Errorf("BusTimeout = %s", cfg.BusTimeout())
	}
	// Untouched keys keep their defaults.
	if cfg.BlocksPerWindow != 5 || cfg.FIRNumTaps != 58 || cfg.IntPin != "GPIO27" {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"missing equals", "SPI_DEVICE", "invalid config line 1"},
		{"unknown key", "FOO=1", "unknown config key"},
		{"range out of bounds", "INT_CHANNEL=3", "INT_CHANNEL must be 1-2"},
		{"not a number", "BLOCK_SIZE=many", "invalid BLOCK_SIZE"},
		{"bad power", "ACCEL_POWER=turbo", "ACCEL_POWER"},
		{"watermark alignment", "FIFO_WATERMARK=182", "multiple of 4"},
		{"buffer below watermark", "FIFO_BUFFER_SIZE=100", "must hold the watermark"},
		{"cutoff above nyquist", "FIR_CUTOFF_HZ=13", "FIR_CUTOFF_HZ"},
		{"empty broker", "MQTT_BROKER=", "MQTT_BROKER is required"},
		{"bad log level", "LOG_LEVEL=loud", "LOG_LEVEL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.in))
			if err == nil {
				t.Fatal("Parse succeeded")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().validate(); err != nil {
		t.Fatalf("Default() invalid: %v", err)
	}
}

func TestLoadAndGlobal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.txt")
	if err := os.WriteFile(path, []byte("TOPIC_WINDOW=lab/window\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("Load of missing file succeeded")
	}
	if err := InitGlobal(path); err != nil {
		t.Fatalf("InitGlobal: %v", err)
	}
	if got := Get().TopicWindow; got != "lab/window" {
		t.Errorf("TopicWindow = %q", got)
	}
}
