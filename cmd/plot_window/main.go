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
	cmd := app.NewCommand("plot_window", "plot the next published window to an image",
		func(ctx context.Context, cmd *cobra.Command) error {
			out, _ := cmd.Flags().GetString("output")
			return app.RunPlotWindow(ctx, out)
		})
	cmd.Flags().StringP("output", "o", "window.png", "output image (.png, .svg, .pdf)")
	app.Execute(cmd)
}
