// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/relabs-tech/heysalad_node/internal/app"
	"github.com/relabs-tech/heysalad_node/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:          "console",
	Short:        "Print the simulated shake pattern through the gesture classifier",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Default()
		if cmd.Flags().Changed("config") {
			var err error
			if cfg, err = config.Load(configPath); err != nil {
				return err
			}
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return app.RunMockConsole(ctx, cfg, nil, os.Stdout)
	},
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "node_config.txt", "config file with gesture thresholds")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
