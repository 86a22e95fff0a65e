// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"log/slog"

	"github.com/fsnotify/fsnotify"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// LoaderOptions configures a Loader.
type LoaderOptions struct {
	// Path to the YAML configuration file.
	Path string

	// Watch reloads the configuration when Path changes on disk.
	Watch bool

	// OnChange is invoked with the freshly reloaded configuration.
	OnChange func(*Config)
}

// Loader loads Config from a YAML file, overlaying environment
// variable expansion (`${VAR}` / `${VAR:-default}`) on every string
// value before unmarshalling.
type Loader struct {
	koanf   *koanf.Koanf
	options LoaderOptions
	parser  *yaml.YAML
	watcher *fsnotify.Watcher
}

// NewLoader creates a loader for the given options.
func NewLoader(opts LoaderOptions) (*Loader, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("config path is required")
	}
	return &Loader{
		koanf:   koanf.New("."),
		options: opts,
		parser:  yaml.Parser(),
	}, nil
}

// Load reads, expands, and unmarshals the configuration, applying
// section defaults and validating the result.
func (l *Loader) Load() (*Config, error) {
	if err := l.koanf.Load(file.Provider(l.options.Path), l.parser); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", l.options.Path, err)
	}

	if err := l.expandEnvVars(); err != nil {
		return nil, fmt.Errorf("failed to expand environment variables: %w", err)
	}

	cfg, err := l.unmarshal()
	if err != nil {
		return nil, err
	}

	if l.options.Watch {
		if err := l.startWatch(); err != nil {
			slog.Warn("config watch disabled", "error", err)
		}
	}

	return cfg, nil
}

func (l *Loader) unmarshal() (*Config, error) {
	cfg := &Config{}
	if err := l.koanf.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (l *Loader) expandEnvVars() error {
	rawMap := l.koanf.Raw()

	expanded, ok := ExpandEnvVarsInData(rawMap).(map[string]interface{})
	if !ok {
		return fmt.Errorf("unexpected type after environment expansion")
	}

	next := koanf.New(".")
	if err := next.Load(confmap.Provider(expanded, "."), nil); err != nil {
		return fmt.Errorf("failed to load expanded config: %w", err)
	}
	l.koanf = next
	return nil
}

func (l *Loader) startWatch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(l.options.Path); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", l.options.Path, err)
	}
	l.watcher = watcher

	go func() {
		for event := range watcher.Events {
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			l.koanf = koanf.New(".")
			cfg, err := l.Load()
			if err != nil {
				slog.Warn("config reload failed", "error", err)
				continue
			}
			if l.options.OnChange != nil {
				l.options.OnChange(cfg)
			}
		}
	}()

	return nil
}

// Stop releases the file watcher, if one is active.
func (l *Loader) Stop() {
	if l.watcher != nil {
		l.watcher.Close()
	}
}

// LoadConfig is a convenience wrapper that loads a Config from a file
// path without setting up watching.
func LoadConfig(path string) (*Config, error) {
	loader, err := NewLoader(LoaderOptions{Path: path})
	if err != nil {
		return nil, err
	}
	return loader.Load()
}
