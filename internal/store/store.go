// Package store persists output tuning as a JSON file.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/sweeney/propvalve/internal/output"
)

// Version is the config layout written by Save.
const Version = 1

// ErrVersion is returned for files written by a newer layout.
var ErrVersion = errors.New("store: unsupported config version")

// Config holds the tuning of every output the daemon drives.
type Config struct {
	Version  int                           `json:"version"`
	Dual     output.DualSolenoidOutputConf `json:"dual"`
	Solenoid output.SolenoidOutputConf     `json:"solenoid"`
	Prop     output.PropOutputConf         `json:"prop"`
	Ref      output.RefOutputConf          `json:"ref"`
}

// Reset restores every section to its defaults.
func (c *Config) Reset() {
	c.Version = Version
	c.Dual.Reset()
	c.Solenoid.Reset()
	c.Prop.Reset()
	c.Ref.Reset()
}

// Default returns a Config with all defaults applied.
func Default() *Config {
	c := &Config{}
	c.Reset()
	return c
}

// File is a Config stored at a path.
type File struct {
	path string
}

// NewFile returns a File for path. Nothing is read until Load.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the file location.
func (f *File) Path() string { return f.path }

// Load reads the config. Fields absent from the file keep their defaults,
// and the file is rewritten with them filled in. A missing file is created
// with defaults.
func (f *File) Load() (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Printf("store: %s not found, writing defaults", f.path)
		if err := f.Save(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", f.path, err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("store: parse %s: %w", f.path, err)
	}
	if cfg.Version > Version {
		return nil, fmt.Errorf("%w: %d", ErrVersion, cfg.Version)
	}
	cfg.Version = Version

	var onDisk Config
	if err := json.Unmarshal(data, &onDisk); err != nil {
		return nil, fmt.Errorf("store: parse %s: %w", f.path, err)
	}
	if !Equal(&onDisk, cfg) {
		log.Printf("store: %s incomplete, writing defaults for missing fields", f.path)
		if err := f.Save(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Save writes cfg atomically via a temporary file in the same directory.
func (f *File) Save(cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".propvalve-*.json")
	if err != nil {
		return fmt.Errorf("store: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("store: write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("store: rename to %s: %w", f.path, err)
	}
	return nil
}

// Equal reports whether two configs encode identically.
func Equal(a, b *Config) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(ja, jb)
}
