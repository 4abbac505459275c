// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/relabs-tech/accel_fir/internal/config"
)

// NewCommand builds a binary's root command. It adds the --config and
// --debug flags, loads the configuration, applies LOG_LEVEL and runs fn with
// a context cancelled on SIGINT or SIGTERM.
func NewCommand(use, short string, fn func(ctx context.Context, cmd *cobra.Command) error) *cobra.Command {
	cmd := &cobra.Command{
		Use:          use,
		Short:        short,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			if err := config.InitGlobal(path); err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			level, err := log.ParseLevel(config.Get().LogLevel)
			if err != nil {
				return err
			}
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				level = log.DebugLevel
			}
			log.SetLevel(level)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return fn(ctx, cmd)
		},
	}
	cmd.Flags().String("config", config.DefaultPath, "configuration file (KEY=VALUE)")
	cmd.Flags().Bool("debug", false, "toggle debug logging")
	return cmd
}

// Execute runs cmd and exits non-zero on error.
func Execute(cmd *cobra.Command) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if err := cmd.Execute(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
