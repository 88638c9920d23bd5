// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/relabs-tech/heysalad_node/internal/motion"
)

// Publisher is the subset of mqtt.Client used here.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// TelemetryPayload is the JSON published on the telemetry topic.
type TelemetryPayload struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
	Magnitude float64 `json:"magnitude"`
	Time      string  `json:"time"` // RFC3339
}

// MQTT publishes events and telemetry as JSON. Publishing never blocks the
// caller; failures are logged when the token completes.
type MQTT struct {
	client         Publisher
	topicEvents    string
	topicTelemetry string
	logger         *zap.Logger
}

func NewMQTT(client Publisher, topicEvents, topicTelemetry string, logger *zap.Logger) *MQTT {
	return &MQTT{client: client, topicEvents: topicEvents, topicTelemetry: topicTelemetry, logger: logger}
}

// ConnectMQTT connects to broker and returns the client.
func ConnectMQTT(broker, clientID string, logger *zap.Logger) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect %s: %w", broker, token.Error())
	}
	logger.Info("connected to MQTT broker", zap.String("broker", broker), zap.String("client_id", clientID))
	return client, nil
}

func (m *MQTT) Notify(_ context.Context, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		m.logger.Error("event marshal error", zap.String("event", ev.Name), zap.Error(err))
		return
	}
	m.publish(m.topicEvents, payload)
}

func (m *MQTT) Telemetry(_ context.Context, t time.Time, s motion.Sample) {
	if m.topicTelemetry == "" {
		return
	}
	payload, err := json.Marshal(TelemetryPayload{
		X: s.X, Y: s.Y, Z: s.Z,
		Magnitude: s.Magnitude,
		Time:      t.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		m.logger.Error("telemetry marshal error", zap.Error(err))
		return
	}
	m.publish(m.topicTelemetry, payload)
}

func (m *MQTT) publish(topic string, payload []byte) {
	token := m.client.Publish(topic, 0, false, payload)
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			m.logger.Warn("MQTT publish error", zap.String("topic", topic), zap.Error(err))
		}
	}()
}
