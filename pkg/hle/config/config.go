// Copyright 2026 The nxemu Authors.
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

// Package config holds the guest kernel's tunables and their TOML loading.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"

	"nxemu.dev/nxemu/pkg/abi/horizon"
)

// Config is the flat set of kernel tunables.
type Config struct {
	// AddressSpaceType selects the guest address space layout for new
	// processes: "32bit", "32bit_no_map", "36bit" or "39bit".
	AddressSpaceType string `toml:"address_space_type"`

	// LogLevel is a logrus level name.
	LogLevel string `toml:"log_level"`

	// TickFrequency is the guest system counter frequency in Hz.
	TickFrequency uint64 `toml:"tick_frequency"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		AddressSpaceType: "39bit",
		LogLevel:         "warning",
		TickFrequency:    horizon.TicksPerSecond,
	}
}

// Load reads a TOML config file, applying defaults for absent keys.
func Load(path string) (Config, error) {
	c := Default()
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return Config{}, fmt.Errorf("loading config %q: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks every field, returning the first violation.
func (c *Config) Validate() error {
	if _, err := c.AddressSpace(); err != nil {
		return err
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.TickFrequency == 0 {
		return fmt.Errorf("tick_frequency must be nonzero")
	}
	return nil
}

// AddressSpace resolves the address space type name.
func (c *Config) AddressSpace() (horizon.AddressSpaceType, error) {
	switch c.AddressSpaceType {
	case "32bit":
		return horizon.AddressSpace32Bit, nil
	case "32bit_no_map":
		return horizon.AddressSpace32BitNoMap, nil
	case "36bit":
		return horizon.AddressSpace36Bit, nil
	case "39bit":
		return horizon.AddressSpace39Bit, nil
	default:
		return 0, fmt.Errorf("unknown address_space_type %q", c.AddressSpaceType)
	}
}

// Level resolves the log level name.
func (c *Config) Level() (logrus.Level, error) {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return 0, fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return lvl, nil
}
