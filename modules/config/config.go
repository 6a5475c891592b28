// Copyright ©️ Ort Open Source. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config models the repository configuration file: <repo>/.ort/config,
// TOML encoded.
type Config struct {
	Core  Core  `toml:"core,omitempty"`
	Merge Merge `toml:"merge,omitempty"`
}

type Core struct {
	// ConflictStyle selects the conflict marker layout: merge, diff3 or
	// zdiff3.
	ConflictStyle string `toml:"conflict-style,omitempty"`
}

type Merge struct {
	// Renames toggles rename detection.
	Renames *bool `toml:"renames,omitempty"`
	// RenameLimit bounds how many candidate files the detector considers.
	RenameLimit int `toml:"rename-limit,omitempty"`
	// RenameScore is the minimum similarity score, in percent.
	RenameScore int `toml:"rename-score,omitempty"`
}

// DetectRenames reports whether rename detection is enabled; the default is
// on.
func (m *Merge) DetectRenames() bool {
	if m.Renames == nil {
		return true
	}
	return *m.Renames
}

const configName = "config"

// Dir is the repository metadata directory name.
const Dir = ".ort"

// Load reads the configuration of the repository rooted at root. A missing
// file yields the zero configuration.
func Load(root string) (*Config, error) {
	cfg := &Config{}
	p := filepath.Join(root, Dir, configName)
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration back to disc.
func Save(root string, cfg *Config) error {
	dir := filepath.Join(root, Dir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	fd, err := os.Create(filepath.Join(dir, configName))
	if err != nil {
		return err
	}
	err = toml.NewEncoder(fd).Encode(cfg)
	if cerr := fd.Close(); err == nil {
		err = cerr
	}
	return err
}
