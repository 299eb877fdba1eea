package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk YAML configuration for the terminal viewer.
type fileConfig struct {
	PageGap          float64 `yaml:"page_gap"`
	TextLayer        bool    `yaml:"text_layer"`
	DebounceMs       int     `yaml:"debounce_ms"`
	ScrollAnimMs     int     `yaml:"scroll_anim_ms"`
	DevicePixelRatio float64 `yaml:"device_pixel_ratio"`
	OnLoadScriptPath string  `yaml:"on_load_script"`

	LogLevel  string `yaml:"log_level"`
	LogPretty bool   `yaml:"log_pretty"`
	LogFile   string `yaml:"log_file"`
}

func defaultFileConfig() fileConfig {
	return fileConfig{
		PageGap:          10,
		TextLayer:        true,
		DebounceMs:       100,
		ScrollAnimMs:     300,
		DevicePixelRatio: 1,
		LogLevel:         "info",
	}
}

func loadConfig(path string) (fileConfig, error) {
	cfg := defaultFileConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func (c fileConfig) debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

func (c fileConfig) scrollAnim() time.Duration {
	return time.Duration(c.ScrollAnimMs) * time.Millisecond
}

// onLoadScript reads the configured script file, if any.
func (c fileConfig) onLoadScript() (string, error) {
	if c.OnLoadScriptPath == "" {
		return "", nil
	}
	data, err := os.ReadFile(c.OnLoadScriptPath)
	if err != nil {
		return "", fmt.Errorf("read on-load script: %w", err)
	}
	return string(data), nil
}
