// ABOUTME: Client configuration file handling
// ABOUTME: Loads, validates and saves the YAML session configuration
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Resonate-Protocol/voicechat-go/pkg/protocol"
	"gopkg.in/yaml.v3"
)

// DefaultSystemPrompt is the instruction sent when none is configured
const DefaultSystemPrompt = "You are a friendly Gemini 2.0 model. Respond verbally in a casual, helpful tone."

// Session modes
const (
	ModeAudio = "audio"
	ModeVideo = "video"
)

// Config represents the complete client configuration
type Config struct {
	Server   string         `yaml:"server"` // empty = discover over mDNS
	Mode     string         `yaml:"mode"`
	Session  SessionConfig  `yaml:"session"`
	Video    VideoConfig    `yaml:"video"`
	Playback PlaybackConfig `yaml:"playback"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// SessionConfig is forwarded to the service when the session opens
type SessionConfig struct {
	SystemPrompt string `yaml:"system_prompt"`
	Voice        string `yaml:"voice"`
	GoogleSearch bool   `yaml:"google_search"`
}

// VideoConfig controls frame capture in video mode
type VideoConfig struct {
	CameraDir string        `yaml:"camera_dir"` // directory of image directories
	Camera    string        `yaml:"camera"`     // selected device; empty picks the first
	Interval  time.Duration `yaml:"interval"`
	Width     uint          `yaml:"width"`
	Height    uint          `yaml:"height"`
	Quality   int           `yaml:"quality"`
}

// PlaybackConfig controls response playback
type PlaybackConfig struct {
	Volume     int  `yaml:"volume"`
	MaxPending int  `yaml:"max_pending"` // 0 = unbounded
	NoAudio    bool `yaml:"no_audio"`    // discard responses instead of playing them
}

// LoggingConfig controls log output
type LoggingConfig struct {
	File string `yaml:"file"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Mode: ModeAudio,
		Session: SessionConfig{
			SystemPrompt: DefaultSystemPrompt,
			Voice:        "Puck",
			GoogleSearch: true,
		},
		Video: VideoConfig{
			Interval: time.Second,
			Width:    320,
			Height:   240,
			Quality:  80,
		},
		Playback: PlaybackConfig{
			Volume: 100,
		},
		Logging: LoggingConfig{
			File: "voicechat.log",
		},
	}
}

// Load reads a YAML file over the defaults and validates the result
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes the configuration as YAML
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}

// Protocol converts the session section to its wire form
func (c *Config) Protocol() protocol.SessionConfig {
	return protocol.SessionConfig{
		SystemPrompt: c.Session.SystemPrompt,
		Voice:        c.Session.Voice,
		GoogleSearch: c.Session.GoogleSearch,
	}
}
