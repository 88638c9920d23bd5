// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/relabs-tech/heysalad_node/internal/config"
	"github.com/relabs-tech/heysalad_node/internal/notify"
)

// RunConsoleMQTT subscribes to the node's event and telemetry topics and
// prints every message to out until ctx is cancelled.
func RunConsoleMQTT(ctx context.Context, cfg *config.Config, out io.Writer, logger *zap.Logger) error {
	if cfg.MQTTBroker == "" {
		return fmt.Errorf("console: MQTT_BROKER is not set")
	}
	client, err := notify.ConnectMQTT(cfg.MQTTBroker, cfg.MQTTClientID+"-console", logger)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	subs := []struct {
		topic  string
		format func([]byte) (string, error)
	}{
		{cfg.TopicEvents, FormatEventMessage},
		{cfg.TopicTelemetry, FormatTelemetryMessage},
	}
	for _, s := range subs {
		if s.topic == "" {
			continue
		}
		format := s.format
		topic := s.topic
		token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			line, err := format(msg.Payload())
			if err != nil {
				logger.Warn("console: unmarshal error", zap.String("topic", topic), zap.Error(err))
				return
			}
			fmt.Fprintln(out, line)
		})
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
		logger.Info("console: subscribed", zap.String("topic", topic))
	}

	<-ctx.Done()
	logger.Info("console: shutting down")
	return nil
}

// FormatEventMessage renders an event payload as one console line.
func FormatEventMessage(payload []byte) (string, error) {
	var ev notify.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[EVENT] %-16s %s", ev.Name, ev.Time)

	keys := make([]string, 0, len(ev.Fields))
	for k := range ev.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%s", k, ev.Fields[k])
	}
	return b.String(), nil
}

// FormatTelemetryMessage renders a telemetry payload as one console line.
func FormatTelemetryMessage(payload []byte) (string, error) {
	var t notify.TelemetryPayload
	if err := json.Unmarshal(payload, &t); err != nil {
		return "", err
	}
	return fmt.Sprintf("[ACCEL] x=%6.3f y=%6.3f z=%6.3f |a|=%6.3f", t.X, t.Y, t.Z, t.Magnitude), nil
}
