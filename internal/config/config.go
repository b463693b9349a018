// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker           string
	MQTTClientIDProducer string
	MQTTClientIDWeb      string
	MQTTClientIDConsole  string
	MQTTClientIDDisplay  string

	// Topics
	TopicState    string
	TopicPose     string
	TopicEvents   string
	TopicCommands string

	// Payload encoding on MQTT: "json" or "cbor"
	PayloadEncoding string

	// Simulated tracking device
	SimCapability    bool // false: the device exposes no tracking API
	SimSupported     bool
	SimHitTest       bool
	SimFrameInterval int // milliseconds
	SimScanFrames    int // frames without a surface before hits appear

	// Timing
	PosePublishInterval int // milliseconds

	// GPS (optional; empty port disables geo-tagging)
	GPSSerialPort string
	GPSBaudRate   int

	// Web Server
	WebServerPort int

	// Display
	DisplayI2CBus         string
	DisplayI2CAddr        uint16
	DisplayUpdateInterval int // milliseconds

	// Message catalog overrides (YAML)
	MessagesFile string
}

// Package-level unexported variables for the singleton:
//   - globalConfig: only reachable through InitGlobal and Get.
//   - configOnce: InitGlobal runs its load a single time.
//   - configMu: write lock during initialization, read lock in Get.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Defaults returns a Config with every optional key set.
func Defaults() *Config {
	return &Config{
		MQTTClientIDProducer:  "surface-anchor-producer",
		MQTTClientIDWeb:       "surface-anchor-web",
		MQTTClientIDConsole:   "surface-anchor-console",
		MQTTClientIDDisplay:   "surface-anchor-display",
		TopicState:            "anchor/state",
		TopicPose:             "anchor/pose",
		TopicEvents:           "anchor/events",
		TopicCommands:         "anchor/commands",
		PayloadEncoding:       "json",
		SimCapability:         true,
		SimSupported:          true,
		SimHitTest:            true,
		SimScanFrames:         90,
		GPSBaudRate:           9600,
		WebServerPort:         8080,
		DisplayI2CBus:         "",
		DisplayI2CAddr:        0x3C,
		DisplayUpdateInterval: 500,
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads KEY=VALUE lines from r on top of Defaults.
func Parse(r io.Reader) (*Config, error) {
	cfg := Defaults()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value

	// Topics
	case "TOPIC_STATE":
		c.TopicState = value
	case "TOPIC_POSE":
		c.TopicPose = value
	case "TOPIC_EVENTS":
		c.TopicEvents = value
	case "TOPIC_COMMANDS":
		c.TopicCommands = value

	case "PAYLOAD_ENCODING":
		v := strings.ToLower(value)
		if v != "json" && v != "cbor" {
			return fmt.Errorf("PAYLOAD_ENCODING must be json or cbor, got %q", value)
		}
		c.PayloadEncoding = v

	// Simulated device
	case "SIM_CAPABILITY":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid SIM_CAPABILITY %q: %w", value, err)
		}
		c.SimCapability = b
	case "SIM_SUPPORTED":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid SIM_SUPPORTED %q: %w", value, err)
		}
		c.SimSupported = b
	case "SIM_HIT_TEST":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid SIM_HIT_TEST %q: %w", value, err)
		}
		c.SimHitTest = b
	case "SIM_FRAME_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SIM_FRAME_INTERVAL %q: %w", value, err)
		}
		c.SimFrameInterval = interval
	case "SIM_SCAN_FRAMES":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SIM_SCAN_FRAMES %q: %w", value, err)
		}
		if n < 0 {
			return fmt.Errorf("SIM_SCAN_FRAMES must be >= 0, got %d", n)
		}
		c.SimScanFrames = n

	// Timing
	case "POSE_PUBLISH_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid POSE_PUBLISH_INTERVAL %q: %w", value, err)
		}
		c.PosePublishInterval = interval

	// GPS
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid GPS_BAUD_RATE %q: %w", value, err)
		}
		c.GPSBaudRate = rate

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port

	// Display
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value
	case "DISPLAY_I2C_ADDR":
		addr, err := strconv.ParseUint(value, 0, 16)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_I2C_ADDR %q: %w", value, err)
		}
		c.DisplayI2CAddr = uint16(addr)
	case "DISPLAY_UPDATE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_UPDATE_INTERVAL %q: %w", value, err)
		}
		c.DisplayUpdateInterval = interval

	case "MESSAGES_FILE":
		c.MessagesFile = value

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.SimFrameInterval <= 0 {
		return fmt.Errorf("SIM_FRAME_INTERVAL is required")
	}
	if c.PosePublishInterval <= 0 {
		return fmt.Errorf("POSE_PUBLISH_INTERVAL is required")
	}
	if c.GPSSerialPort != "" && c.GPSBaudRate <= 0 {
		return fmt.Errorf("GPS_BAUD_RATE must be positive when GPS_SERIAL_PORT is set")
	}
	if c.DisplayUpdateInterval <= 0 {
		return fmt.Errorf("DISPLAY_UPDATE_INTERVAL must be positive")
	}
	if c.WebServerPort <= 0 || c.WebServerPort > 65535 {
		return fmt.Errorf("WEB_SERVER_PORT out of range: %d", c.WebServerPort)
	}
	return nil
}

// FrameInterval returns SIM_FRAME_INTERVAL as a duration.
func (c *Config) FrameInterval() time.Duration {
	return time.Duration(c.SimFrameInterval) * time.Millisecond
}

// PoseInterval returns POSE_PUBLISH_INTERVAL as a duration.
func (c *Config) PoseInterval() time.Duration {
	return time.Duration(c.PosePublishInterval) * time.Millisecond
}

// DisplayInterval returns DISPLAY_UPDATE_INTERVAL as a duration.
func (c *Config) DisplayInterval() time.Duration {
	return time.Duration(c.DisplayUpdateInterval) * time.Millisecond
}

// InitGlobal initializes the global configuration from file.
// Only the first call loads; later calls return nil.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
