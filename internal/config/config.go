// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// ErrInvalid is wrapped by every validation error returned from Load.
var ErrInvalid = errors.New("invalid config")

// Sample failure policies.
const (
	FailureRetain = "retain"
	FailureZero   = "zero"
)

// Gesture trigger modes.
const (
	TriggerEdge  = "edge"
	TriggerLevel = "level"
)

// Command matching modes.
const (
	MatchExact      = "exact"
	MatchNormalized = "normalized"
)

// Debug channel kinds.
const (
	DebugStdio     = "stdio"
	DebugSerial    = "serial"
	DebugWebSocket = "websocket"
)

// Init failure policies.
const (
	InitHalt  = "halt"
	InitRetry = "retry"
)

// Config holds all node configuration values.
// Everything is fixed once loaded; there is no runtime reconfiguration.
type Config struct {
	// IMU Hardware
	IMUSPIDevice string
	IMUCSPin     string
	// Accelerometer: 0=±2g, 1=±4g, 2=±8g, 3=±16g
	IMUAccelRange byte

	SampleFailurePolicy string

	// Gesture thresholds (g)
	CaptureThreshold float64
	RecipeThreshold  float64
	ResetThreshold   float64
	GestureTrigger   string

	// Audio
	AudioSource     string // path to a raw s16le PCM stream; empty disables capture
	AudioSampleRate int
	AudioDurationMS int

	// Channels
	DebugChannel         string
	DebugSerialPort      string
	DebugWSURL           string
	DeviceSerialPort     string
	ChannelBaudRate      int
	ChannelReadTimeoutMS int
	CommandMatch         string
	ForwardFlushBudgetMS int

	// Timing
	TelemetryIntervalMS int
	CycleIntervalMS     int // 0 = free-running

	// MQTT (optional; empty broker disables)
	MQTTBroker     string
	MQTTClientID   string
	TopicEvents    string
	TopicTelemetry string

	// Startup
	InitPolicy       string
	InitRetries      int
	InitRetryDelayMS int
}

// Default returns the build-time defaults. Load starts from these.
func Default() *Config {
	return &Config{
		IMUSPIDevice:        "/dev/spidev0.0",
		IMUCSPin:            "8",
		IMUAccelRange:       1,
		SampleFailurePolicy: FailureRetain,

		CaptureThreshold: 2.0,
		RecipeThreshold:  2.5,
		ResetThreshold:   1.2,
		GestureTrigger:   TriggerEdge,

		AudioSampleRate: 16000,
		AudioDurationMS: 1000,

		DebugChannel:         DebugStdio,
		DeviceSerialPort:     "/dev/serial0",
		ChannelBaudRate:      115200,
		ChannelReadTimeoutMS: 100,
		CommandMatch:         MatchExact,
		ForwardFlushBudgetMS: 10,

		TelemetryIntervalMS: 200,
		CycleIntervalMS:     5,

		MQTTClientID:   "heysalad-node",
		TopicEvents:    "heysalad/events",
		TopicTelemetry: "heysalad/telemetry",

		InitPolicy:       InitHalt,
		InitRetries:      3,
		InitRetryDelayMS: 1000,
	}
}

// Load reads the configuration file and returns a Config struct.
// Keys missing from the file keep their Default value.
func Load(configPath string) (*Config, error) {
	values, err := godotenv.Read(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return FromMap(values)
}

// FromMap applies KEY=VALUE pairs on top of Default and validates the result.
func FromMap(values map[string]string) (*Config, error) {
	cfg := Default()

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if err := cfg.setValue(key, values[key]); err != nil {
			return nil, fmt.Errorf("config key %s: %w", key, err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// IMU
	case "IMU_SPI_DEVICE":
		c.IMUSPIDevice = value
	case "IMU_CS_PIN":
		c.IMUCSPin = value
	case "IMU_ACCEL_RANGE":
		// 0=±2g, 1=±4g, 2=±8g, 3=±16g
		var rangeVal int
		rangeVal, err = atoiRange(value, 0, 3)
		c.IMUAccelRange = byte(rangeVal)
	case "SAMPLE_FAILURE_POLICY":
		c.SampleFailurePolicy, err = oneOf(value, FailureRetain, FailureZero)

	// Gestures
	case "CAPTURE_THRESHOLD":
		c.CaptureThreshold, err = parseFloat(value)
	case "RECIPE_THRESHOLD":
		c.RecipeThreshold, err = parseFloat(value)
	case "RESET_THRESHOLD":
		c.ResetThreshold, err = parseFloat(value)
	case "GESTURE_TRIGGER":
		c.GestureTrigger, err = oneOf(value, TriggerEdge, TriggerLevel)

	// Audio
	case "AUDIO_SOURCE":
		c.AudioSource = value
	case "AUDIO_SAMPLE_RATE":
		c.AudioSampleRate, err = atoiRange(value, 1, 192000)
	case "AUDIO_DURATION_MS":
		c.AudioDurationMS, err = atoiRange(value, 1, 60000)

	// Channels
	case "DEBUG_CHANNEL":
		c.DebugChannel, err = oneOf(value, DebugStdio, DebugSerial, DebugWebSocket)
	case "DEBUG_SERIAL_PORT":
		c.DebugSerialPort = value
	case "DEBUG_WS_URL":
		c.DebugWSURL = value
	case "DEVICE_SERIAL_PORT":
		c.DeviceSerialPort = value
	case "CHANNEL_BAUD_RATE":
		c.ChannelBaudRate, err = atoiRange(value, 1, 4000000)
	case "CHANNEL_READ_TIMEOUT_MS":
		c.ChannelReadTimeoutMS, err = atoiRange(value, 1, 60000)
	case "COMMAND_MATCH":
		c.CommandMatch, err = oneOf(value, MatchExact, MatchNormalized)
	case "FORWARD_FLUSH_BUDGET_MS":
		c.ForwardFlushBudgetMS, err = atoiRange(value, 1, 1000)

	// Timing
	case "TELEMETRY_INTERVAL_MS":
		c.TelemetryIntervalMS, err = atoiRange(value, 1, 3600000)
	case "CYCLE_INTERVAL_MS":
		c.CycleIntervalMS, err = atoiRange(value, 0, 60000)

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID":
		c.MQTTClientID = value
	case "TOPIC_EVENTS":
		c.TopicEvents = value
	case "TOPIC_TELEMETRY":
		c.TopicTelemetry = value

	// Startup
	case "INIT_POLICY":
		c.InitPolicy, err = oneOf(value, InitHalt, InitRetry)
	case "INIT_RETRIES":
		c.InitRetries, err = atoiRange(value, 1, 100)
	case "INIT_RETRY_DELAY_MS":
		c.InitRetryDelayMS, err = atoiRange(value, 0, 600000)

	default:
		return fmt.Errorf("%w: unknown config key %q", ErrInvalid, key)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// validate checks cross-field constraints.
func (c *Config) validate() error {
	if !(c.ResetThreshold < c.CaptureThreshold && c.CaptureThreshold < c.RecipeThreshold) {
		return fmt.Errorf("%w: thresholds must satisfy RESET < CAPTURE < RECIPE (got %.3f, %.3f, %.3f)",
			ErrInvalid, c.ResetThreshold, c.CaptureThreshold, c.RecipeThreshold)
	}
	if c.ResetThreshold < 0 {
		return fmt.Errorf("%w: RESET_THRESHOLD must not be negative", ErrInvalid)
	}
	if c.DeviceSerialPort == "" {
		return fmt.Errorf("%w: DEVICE_SERIAL_PORT is required", ErrInvalid)
	}
	if c.DebugChannel == DebugSerial && c.DebugSerialPort == "" {
		return fmt.Errorf("%w: DEBUG_SERIAL_PORT is required when DEBUG_CHANNEL=serial", ErrInvalid)
	}
	if c.DebugChannel == DebugWebSocket && c.DebugWSURL == "" {
		return fmt.Errorf("%w: DEBUG_WS_URL is required when DEBUG_CHANNEL=websocket", ErrInvalid)
	}
	if c.MQTTBroker != "" && c.MQTTClientID == "" {
		return fmt.Errorf("%w: MQTT_CLIENT_ID is required when MQTT_BROKER is set", ErrInvalid)
	}
	return nil
}

// AudioCapacity is the fixed number of samples one recording holds.
func (c *Config) AudioCapacity() int {
	return c.AudioSampleRate * c.AudioDurationMS / 1000
}

func (c *Config) TelemetryInterval() time.Duration {
	return time.Duration(c.TelemetryIntervalMS) * time.Millisecond
}

func (c *Config) CycleInterval() time.Duration {
	return time.Duration(c.CycleIntervalMS) * time.Millisecond
}

func (c *Config) ChannelReadTimeout() time.Duration {
	return time.Duration(c.ChannelReadTimeoutMS) * time.Millisecond
}

func (c *Config) ForwardFlushBudget() time.Duration {
	return time.Duration(c.ForwardFlushBudgetMS) * time.Millisecond
}

func (c *Config) InitRetryDelay() time.Duration {
	return time.Duration(c.InitRetryDelayMS) * time.Millisecond
}

func atoiRange(value string, lo, hi int) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", value)
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("value %d out of range %d-%d", v, lo, hi)
	}
	return v, nil
}

func parseFloat(value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", value)
	}
	return v, nil
}

func oneOf(value string, allowed ...string) (string, error) {
	for _, a := range allowed {
		if value == a {
			return value, nil
		}
	}
	return "", fmt.Errorf("%q is not one of %v", value, allowed)
}
