// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Command node runs the HeySalad sensor node: IMU gestures, serial command
// routing, audio capture and telemetry.
//
// Usage:
//
//	node run [--config node_config.txt] [--mock] [--verbose]
//	node config [--config node_config.txt]
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/relabs-tech/heysalad_node/internal/app"
	"github.com/relabs-tech/heysalad_node/internal/config"
)

var (
	configPath string
	mock       bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:          "node",
	Short:        "HeySalad sensor node",
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the control loop until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(verbose)
		if err != nil {
			return err
		}
		defer logger.Sync()

		cfg, err := loadConfig(cmd, logger)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return app.RunNode(ctx, cfg, app.RunOptions{Mock: mock, Logger: logger})
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Validate the config file and print the effective values",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, zap.NewNop())
		if err != nil {
			return err
		}
		fmt.Printf("%+v\n", *cfg)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "node_config.txt", "path to KEY=VALUE config file")
	runCmd.Flags().BoolVar(&mock, "mock", false, "simulate IMU, audio and device link")
	runCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "development logging at debug level")
	rootCmd.AddCommand(runCmd, configCmd)
}

// loadConfig falls back to defaults when the default config file is absent.
// A missing file named explicitly with --config is an error.
func loadConfig(cmd *cobra.Command, logger *zap.Logger) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, fs.ErrNotExist) || cmd.Flags().Changed("config") {
		return nil, err
	}
	logger.Warn("config file not found, using defaults", zap.String("path", configPath))
	return config.Default(), nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
