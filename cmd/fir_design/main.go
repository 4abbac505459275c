// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/relabs-tech/accel_fir/internal/app"
)

func main() {
	cmd := app.NewCommand("fir_design", "design the configured low-pass filter and write its taps as YAML",
		func(_ context.Context, cmd *cobra.Command) error {
			out, _ := cmd.Flags().GetString("output")
			return app.RunFIRDesign(out)
		})
	cmd.Flags().StringP("output", "o", "fir_coeffs.yaml", "coefficient file to write")
	app.Execute(cmd)
}
