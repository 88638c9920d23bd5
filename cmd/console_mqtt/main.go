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
	"go.uber.org/zap"

	"github.com/relabs-tech/heysalad_node/internal/app"
	"github.com/relabs-tech/heysalad_node/internal/config"
)

var (
	configPath string
	broker     string
)

var rootCmd = &cobra.Command{
	Use:          "console_mqtt",
	Short:        "Subscribe to a node's MQTT events and telemetry",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer logger.Sync()

		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if broker != "" {
			cfg.MQTTBroker = broker
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return app.RunConsoleMQTT(ctx, cfg, os.Stdout, logger)
	},
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "node_config.txt", "path to KEY=VALUE config file")
	rootCmd.Flags().StringVar(&broker, "broker", "", "override MQTT_BROKER, e.g. tcp://localhost:1883")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
