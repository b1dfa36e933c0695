// Package config loads the voxling runtime configuration from YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
)

// Config is the on-disk configuration of the device runtime.
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Transport TransportConfig `yaml:"transport"`
	Audio     AudioConfig     `yaml:"audio"`
	OTA       OTAConfig       `yaml:"ota"`
	Settings  SettingsConfig  `yaml:"settings"`
}

// DeviceConfig identifies the device.
type DeviceConfig struct {
	// ID is the device identity sent to the server, typically a MAC
	// address. Empty generates one per run.
	ID string `yaml:"id"`

	// WakeWord is the phrase the wake matcher reports.
	WakeWord string `yaml:"wake_word"`

	// SerialNumber enables activation protocol v2.
	SerialNumber string `yaml:"serial_number"`
}

// TransportConfig selects and configures the server connection.
type TransportConfig struct {
	// Kind is "websocket" or "mqtt".
	Kind string `yaml:"kind"`

	// URL is the websocket endpoint.
	URL string `yaml:"url"`

	// Token authenticates the websocket handshake.
	Token string `yaml:"token"`

	MQTT MQTTConfig `yaml:"mqtt"`
}

// MQTTConfig configures the MQTT transport.
type MQTTConfig struct {
	BrokerURL   string `yaml:"broker_url"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// AudioConfig tunes the audio pipelines.
type AudioConfig struct {
	// CaptureRate is the upstream encode rate. Defaults to 16000.
	CaptureRate int `yaml:"capture_rate"`

	// FrameMs is the codec frame length in milliseconds. Defaults to 60.
	FrameMs int `yaml:"frame_ms"`

	// Realtime keeps capture open during playback.
	Realtime bool `yaml:"realtime"`

	// BargeIn aborts playback when the user talks over it.
	BargeIn bool `yaml:"barge_in"`

	// AutoStopSilenceSec ends auto sessions after this much silence.
	AutoStopSilenceSec int `yaml:"auto_stop_silence_sec"`
}

// OTAConfig configures the update client. An empty URL disables updates.
type OTAConfig struct {
	URL string `yaml:"url"`
}

// SettingsConfig configures persistence. An empty dir keeps settings in
// memory.
type SettingsConfig struct {
	Dir string `yaml:"dir"`
}

// Load reads and parses the config file at path. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("config file %s not found", path)
			}
			return nil, err
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
		}
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Transport.Kind == "" {
		c.Transport.Kind = "websocket"
	}
	if c.Audio.CaptureRate == 0 {
		c.Audio.CaptureRate = 16000
	}
	if c.Audio.FrameMs == 0 {
		c.Audio.FrameMs = 60
	}
	if c.Device.WakeWord == "" {
		c.Device.WakeWord = "hey vox"
	}
}
