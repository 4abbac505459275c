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
	app.Execute(app.NewCommand("display", "show the latest window on an SSD1306 OLED",
		func(ctx context.Context, _ *cobra.Command) error {
			return app.RunDisplay(ctx)
		}))
}
