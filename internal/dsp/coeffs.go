// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package dsp

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CoefficientFile is the on-disk form of a fixed coefficient set.
type CoefficientFile struct {
	Name         string    `yaml:"name"`
	SampleRateHz float64   `yaml:"sample_rate_hz"`
	CutoffHz     float64   `yaml:"cutoff_hz"`
	Window       string    `yaml:"window"`
	Taps         []float32 `yaml:"taps,flow"`
}

// LoadCoefficients reads a coefficient file.
func LoadCoefficients(path string) (*CoefficientFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dsp: read coefficients: %w", err)
	}
	var cf CoefficientFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cf); err != nil {
		return nil, fmt.Errorf("dsp: parse coefficients %s: %w", path, err)
	}
	if len(cf.Taps) == 0 {
		return nil, fmt.Errorf("dsp: %s has no taps", path)
	}
	return &cf, nil
}

// SaveCoefficients writes cf to path.
func SaveCoefficients(path string, cf *CoefficientFile) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cf); err != nil {
		return fmt.Errorf("dsp: encode coefficients: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("dsp: encode coefficients: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("dsp: write coefficients: %w", err)
	}
	return nil
}
