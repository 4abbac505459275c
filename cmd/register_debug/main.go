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
	app.Execute(app.NewCommand("register_debug", "read and write BMI160 registers from the browser",
		func(ctx context.Context, _ *cobra.Command) error {
			return app.RunRegisterDebug(ctx)
		}))
}
