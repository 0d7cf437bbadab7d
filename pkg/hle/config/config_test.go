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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"nxemu.dev/nxemu/pkg/abi/horizon"
)

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if aspace, _ := c.AddressSpace(); aspace != horizon.AddressSpace39Bit {
		t.Errorf("default address space %v, want 39bit", aspace)
	}
	if lvl, _ := c.Level(); lvl != logrus.WarnLevel {
		t.Errorf("default level %v, want warning", lvl)
	}
	if c.TickFrequency != horizon.TicksPerSecond {
		t.Errorf("default tick frequency %d", c.TickFrequency)
	}
}

func TestValidateRejections(t *testing.T) {
	for _, test := range []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad address space", func(c *Config) { c.AddressSpaceType = "48bit" }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
		{"zero tick frequency", func(c *Config) { c.TickFrequency = 0 }},
	} {
		t.Run(test.name, func(t *testing.T) {
			c := Default()
			test.mutate(&c)
			if err := c.Validate(); err == nil {
				t.Error("Validate accepted an invalid config")
			}
		})
	}
}

func TestAddressSpaceNames(t *testing.T) {
	for _, test := range []struct {
		name string
		want horizon.AddressSpaceType
	}{
		{"32bit", horizon.AddressSpace32Bit},
		{"32bit_no_map", horizon.AddressSpace32BitNoMap},
		{"36bit", horizon.AddressSpace36Bit},
		{"39bit", horizon.AddressSpace39Bit},
	} {
		c := Config{AddressSpaceType: test.name}
		got, err := c.AddressSpace()
		if err != nil || got != test.want {
			t.Errorf("AddressSpace(%q) = %v, %v", test.name, got, err)
		}
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nxemu.toml")
	body := `
address_space_type = "36bit"
log_level = "debug"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.AddressSpaceType != "36bit" || c.LogLevel != "debug" {
		t.Errorf("loaded config %+v", c)
	}
	// Absent keys keep their defaults.
	if c.TickFrequency != horizon.TicksPerSecond {
		t.Errorf("tick frequency %d, want default", c.TickFrequency)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("Load of a missing file succeeded")
	}

	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte(`log_level = "loud"`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load accepted an invalid log level")
	}
}
