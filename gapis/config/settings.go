// Copyright (C) 2017 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"bytes"
	"os"

	"github.com/google/postvs/core/fault"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

const (
	// ErrInvalidSettings is returned when settings fail validation.
	ErrInvalidSettings = fault.Const("Invalid settings")

	mib = 1024 * 1024
)

// Settings holds the tunables of the capture engine.
type Settings struct {
	// InitialCapacity is the first stream-out capacity allocated, in bytes.
	InitialCapacity uint64 `toml:"initial_capacity"`
	// MaxCapacity is the capacity at or above which allocation is refused.
	MaxCapacity uint64 `toml:"max_capacity"`
	// CounterBytes is the size of the filled-size counter area ahead of the
	// stream-out data.
	CounterBytes uint64 `toml:"counter_bytes"`
	// InstanceSyncInterval is the number of per-instance draws recorded
	// before the command list is submitted and the device synced.
	InstanceSyncInterval int `toml:"instance_sync_interval"`
	// MaxResizeIterations bounds the probe/grow loop of size discovery.
	MaxResizeIterations int `toml:"max_resize_iterations"`
	// DefaultNear and DefaultFar are reported when the projection cannot be
	// recovered from the captured positions.
	DefaultNear float32 `toml:"default_near"`
	DefaultFar  float32 `toml:"default_far"`
}

// Default returns the default settings.
func Default() Settings {
	return Settings{
		InitialCapacity:      32 * mib,
		MaxCapacity:          0xFFFF0000,
		CounterBytes:         64,
		InstanceSyncInterval: 1000,
		MaxResizeIterations:  8,
		DefaultNear:          0.1,
		DefaultFar:           100,
	}
}

// Parse decodes TOML settings over the defaults. Keys missing from data keep
// their default value.
func Parse(data []byte) (Settings, error) {
	s := Default()
	d := toml.NewDecoder(bytes.NewReader(data))
	d.DisallowUnknownFields()
	if err := d.Decode(&s); err != nil {
		return Settings{}, errors.Wrap(err, "Decoding settings")
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Load reads and parses the settings file at path.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, errors.Wrapf(err, "Reading settings %v", path)
	}
	s, err := Parse(data)
	if err != nil {
		return Settings{}, errors.Wrapf(err, "Loading settings %v", path)
	}
	return s, nil
}

// Validate checks the settings are usable by the engine.
func (s Settings) Validate() error {
	switch {
	case s.InitialCapacity == 0:
		return errors.Wrap(ErrInvalidSettings, "initial_capacity must be non-zero")
	case s.InitialCapacity >= s.MaxCapacity:
		return errors.Wrap(ErrInvalidSettings, "initial_capacity must be below max_capacity")
	case s.CounterBytes < 8 || s.CounterBytes&(s.CounterBytes-1) != 0:
		return errors.Wrap(ErrInvalidSettings, "counter_bytes must be a power of two of at least 8")
	case s.InstanceSyncInterval <= 0:
		return errors.Wrap(ErrInvalidSettings, "instance_sync_interval must be positive")
	case s.MaxResizeIterations < 0:
		return errors.Wrap(ErrInvalidSettings, "max_resize_iterations must not be negative")
	}
	return nil
}

// Marshal encodes the settings as TOML.
func (s Settings) Marshal() ([]byte, error) {
	return toml.Marshal(s)
}
