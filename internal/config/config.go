// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultPath is the config file the binaries look for when --config is not given.
const DefaultPath = "accel_fir_config.txt"

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker           string
	MQTTClientIDProducer string
	MQTTClientIDConsole  string
	MQTTClientIDWeb      string
	MQTTClientIDDisplay  string
	MQTTClientIDPlot     string

	// Topics
	TopicWindow string
	TopicStatus string

	// Sensor bus
	SPIDevice    string
	SPISpeedHz   int64
	IntPin       string
	BusTimeoutMS int

	// Accelerometer
	AccelODRHz  float64 // 12.5, 25, 50 ... 1600
	AccelRangeG int     // 2, 4, 8, 16
	AccelBW     byte    // acc_bwp field (0-7)
	AccelPower  string  // "normal", "low", "suspend"

	// FIFO and interrupt
	FIFOWatermark  int // bytes
	FIFOBufferSize int // bytes read per drain
	IntChannel     int // 1 or 2
	IntLatch       byte

	// Windowing and filter
	BlockSize       int
	BlocksPerWindow int
	FIRNumTaps      int
	FIRCutoffHz     float64
	FIRCoeffsFile   string // empty: designed at start-up

	// Servers
	WebServerPort     int
	MetricsPort       int
	RegisterDebugPort int

	// Display
	DisplayI2CBus         string
	DisplayUpdateInterval int // milliseconds

	// Diagnostics
	StatusInterval int // milliseconds
	LogLevel       string
}

// Default returns the configuration used for keys the file does not set.
// Sensor and filter values match the reference firmware.
func Default() *Config {
	return &Config{
		MQTTBroker:           "tcp://localhost:1883",
		MQTTClientIDProducer: "accel-fir-node",
		MQTTClientIDConsole:  "accel-fir-console",
		MQTTClientIDWeb:      "accel-fir-web",
		MQTTClientIDDisplay:  "accel-fir-display",
		MQTTClientIDPlot:     "accel-fir-plot",

		TopicWindow: "accel/window",
		TopicStatus: "accel/status",

		SPIDevice:    "/dev/spidev0.0",
		SPISpeedHz:   8_000_000,
		IntPin:       "GPIO27",
		BusTimeoutMS: 20,

		AccelODRHz:  25,
		AccelRangeG: 8,
		AccelBW:     2,
		AccelPower:  "normal",

		FIFOWatermark:  180,
		FIFOBufferSize: 200,
		IntChannel:     1,
		IntLatch:       0,

		BlockSize:       28,
		BlocksPerWindow: 5,
		FIRNumTaps:      58,
		FIRCutoffHz:     2.5,

		WebServerPort:     8080,
		MetricsPort:       9102,
		RegisterDebugPort: 8081,

		DisplayI2CBus:         "",
		DisplayUpdateInterval: 500,

		StatusInterval: 10000,
		LogLevel:       "info",
	}
}

// Package-level singleton. InitGlobal sets it once; Get reads it under a read lock.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads KEY=VALUE lines on top of Default and validates the result.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// intIn parses value as an int in [lo, hi].
func intIn(key, value string, lo, hi int) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("%s must be %d-%d, got %d", key, lo, hi, v)
	}
	return v, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value
	case "MQTT_CLIENT_ID_PLOT":
		c.MQTTClientIDPlot = value

	// Topics
	case "TOPIC_WINDOW":
		c.TopicWindow = value
	case "TOPIC_STATUS":
		c.TopicStatus = value

	// Sensor bus
	case "SPI_DEVICE":
		c.SPIDevice = value
	case "SPI_SPEED_HZ":
		hz, perr := strconv.ParseInt(value, 10, 64)
		if perr != nil {
			return fmt.Errorf("invalid SPI_SPEED_HZ %q: %w", value, perr)
		}
		if hz <= 0 || hz > 10_000_000 {
			return fmt.Errorf("SPI_SPEED_HZ must be 1-10000000 (BMI160 max 10MHz), got %d", hz)
		}
		c.SPISpeedHz = hz
	case "INT_PIN":
		c.IntPin = value
	case "BUS_TIMEOUT_MS":
		c.BusTimeoutMS, err = intIn(key, value, 1, 10000)

	// Accelerometer
	case "ACCEL_ODR":
		hz, perr := strconv.ParseFloat(value, 64)
		if perr != nil {
			return fmt.Errorf("invalid ACCEL_ODR %q: %w", value, perr)
		}
		c.AccelODRHz = hz
	case "ACCEL_RANGE":
		c.AccelRangeG, err = intIn(key, value, 2, 16)
	case "ACCEL_BW":
		var bw int
		bw, err = intIn(key, value, 0, 7)
		c.AccelBW = byte(bw)
	case "ACCEL_POWER":
		switch value {
		case "normal", "low", "suspend":
			c.AccelPower = value
		default:
			return fmt.Errorf("ACCEL_POWER must be normal, low or suspend, got %q", value)
		}

	// FIFO and interrupt
	case "FIFO_WATERMARK":
		c.FIFOWatermark, err = intIn(key, value, 4, 1020)
	case "FIFO_BUFFER_SIZE":
		c.FIFOBufferSize, err = intIn(key, value, 7, 1024)
	case "INT_CHANNEL":
		c.IntChannel, err = intIn(key, value, 1, 2)
	case "INT_LATCH":
		var l int
		l, err = intIn(key, value, 0, 15)
		c.IntLatch = byte(l)

	// Windowing and filter
	case "BLOCK_SIZE":
		c.BlockSize, err = intIn(key, value, 1, 146)
	case "BLOCKS_PER_WINDOW":
		c.BlocksPerWindow, err = intIn(key, value, 1, 1000)
	case "FIR_NUM_TAPS":
		c.FIRNumTaps, err = intIn(key, value, 2, 1024)
	case "FIR_CUTOFF_HZ":
		hz, perr := strconv.ParseFloat(value, 64)
		if perr != nil {
			return fmt.Errorf("invalid FIR_CUTOFF_HZ %q: %w", value, perr)
		}
		c.FIRCutoffHz = hz
	case "FIR_COEFFS_FILE":
		c.FIRCoeffsFile = value

	// Servers
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = intIn(key, value, 1, 65535)
	case "METRICS_PORT":
		c.MetricsPort, err = intIn(key, value, 0, 65535)
	case "REGISTER_DEBUG_PORT":
		c.RegisterDebugPort, err = intIn(key, value, 1, 65535)

	// Display
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value
	case "DISPLAY_UPDATE_INTERVAL":
		c.DisplayUpdateInterval, err = intIn(key, value, 50, 60000)

	// Diagnostics
	case "STATUS_INTERVAL":
		c.StatusInterval, err = intIn(key, value, 100, 3600000)
	case "LOG_LEVEL":
		if _, perr := log.ParseLevel(value); perr != nil {
			return fmt.Errorf("invalid LOG_LEVEL %q: %w", value, perr)
		}
		c.LogLevel = value

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

// validate checks required fields and cross-field constraints.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.TopicWindow == "" {
		return fmt.Errorf("TOPIC_WINDOW is required")
	}
	if c.SPIDevice == "" {
		return fmt.Errorf("SPI_DEVICE is required")
	}
	if c.IntPin == "" {
		return fmt.Errorf("INT_PIN is required")
	}
	if c.FIFOWatermark%4 != 0 {
		return fmt.Errorf("FIFO_WATERMARK must be a multiple of 4 bytes, got %d", c.FIFOWatermark)
	}
	if c.FIFOBufferSize < c.FIFOWatermark {
		return fmt.Errorf("FIFO_BUFFER_SIZE (%d) must hold the watermark (%d)", c.FIFOBufferSize, c.FIFOWatermark)
	}
	if c.FIRCutoffHz <= 0 || c.FIRCutoffHz >= c.AccelODRHz/2 {
		return fmt.Errorf("FIR_CUTOFF_HZ must be in (0, %g), got %g", c.AccelODRHz/2, c.FIRCutoffHz)
	}
	return nil
}

// BusTimeout returns BUS_TIMEOUT_MS as a duration.
func (c *Config) BusTimeout() time.Duration {
	return time.Duration(c.BusTimeoutMS) * time.Millisecond
}

// InitGlobal initializes the global configuration from file.
// Only the first call loads the file.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
