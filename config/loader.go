// Package config provides configuration types and loading utilities for the
// pipeline core: LLM provider settings, analytical database connection
// settings, and pipeline-level retry/deadline/concurrency settings.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// LoadConfig reads a YAML configuration file, expands environment variables
// in every string value, decodes it into a Config, fills in defaults, and
// validates the result.
func LoadConfig(path string) (*Config, error) {
	if err := LoadEnvFiles(); err != nil {
		return nil, fmt.Errorf("load env files: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}

	return cfg, nil
}

// LoadConfigFromString decodes a YAML document directly, primarily for
// tests that want a config without touching the filesystem.
func LoadConfigFromString(yamlContent string) (*Config, error) {
	return decode([]byte(yamlContent))
}

func decode(data []byte) (*Config, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	expanded := ExpandEnvVarsInData(raw)

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return nil, fmt.Errorf("build decoder: %w", err)
	}
	if err := decoder.Decode(expanded); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Watcher hot-reloads a Config from disk whenever the backing file changes,
// swapping the active value under its lock. No callback is invoked; callers
// read the latest validated Config through Current.
type Watcher struct {
	mu      sync.RWMutex
	current *Config
	watcher *fsnotify.Watcher
	path    string
}

// WatchConfig starts watching path for changes. It returns the initial
// Config (already loaded and validated) and a Watcher the caller can poll
// via Current or close via Close.
func WatchConfig(path string) (*Config, *Watcher, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, nil, fmt.Errorf("watch %s: %w", path, err)
	}

	w := &Watcher{current: cfg, watcher: fsw, path: path}
	go w.loop()

	return cfg, w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := LoadConfig(w.path)
			if err != nil {
				slog.Warn("config reload failed, keeping previous config", "path", w.path, "error", err)
				continue
			}
			w.mu.Lock()
			w.current = cfg
			w.mu.Unlock()
			slog.Info("config reloaded", "path", w.path)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("config watcher error", "error", err)
		}
	}
}

// Current returns the most recently loaded, validated Config.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
