// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/accel_fir/internal/config"
	"github.com/relabs-tech/accel_fir/internal/dsp"
)

// DesignCoefficients designs the low-pass filter described by cfg.
func DesignCoefficients(cfg *config.Config) (*dsp.CoefficientFile, error) {
	taps, err := dsp.DesignLowPass(cfg.FIRNumTaps, cfg.FIRCutoffHz/cfg.AccelODRHz)
	if err != nil {
		return nil, err
	}
	return &dsp.CoefficientFile{
		Name:         fmt.Sprintf("lowpass_%gHz_at_%gHz", cfg.FIRCutoffHz, cfg.AccelODRHz),
		SampleRateHz: cfg.AccelODRHz,
		CutoffHz:     cfg.FIRCutoffHz,
		Window:       "hamming",
		Taps:         taps,
	}, nil
}

// RunFIRDesign writes the configured filter to out for later use via
// FIR_COEFFS_FILE.
func RunFIRDesign(out string) error {
	cfg := config.Get()
	cf, err := DesignCoefficients(cfg)
	if err != nil {
		return err
	}
	if err := dsp.SaveCoefficients(out, cf); err != nil {
		return err
	}
	log.Printf("fir_design: wrote %d taps (%s, DC gain %.6f) to %s",
		len(cf.Taps), cf.Name, dsp.DCGain(cf.Taps), out)
	return nil
}
