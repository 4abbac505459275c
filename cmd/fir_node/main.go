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
	cmd := app.NewCommand("fir_node", "drain the BMI160 FIFO on interrupt and publish filtered windows",
		func(ctx context.Context, cmd *cobra.Command) error {
			mock, _ := cmd.Flags().GetBool("mock")
			return app.RunFilterNode(ctx, app.FilterNodeOptions{Mock: mock})
		})
	cmd.Flags().Bool("mock", false, "use a synthetic FIFO instead of the sensor (no hardware needed)")
	app.Execute(cmd)
}
