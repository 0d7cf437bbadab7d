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

package cpu

import (
	"testing"

	"nxemu.dev/nxemu/pkg/guestarch"
)

// wordMemory is a sparse word-addressed Memory for monitor tests.
type wordMemory map[guestarch.Addr]uint32

func (m wordMemory) Read32(addr guestarch.Addr) (uint32, bool) {
	v, ok := m[addr]
	return v, ok
}

func (m wordMemory) Write32(addr guestarch.Addr, val uint32) bool {
	m[addr] = val
	return true
}

func TestMonitorBasicAcquire(t *testing.T) {
	mem := wordMemory{0x1000: 0}
	mon := NewSoftwareMonitor(mem)

	mon.SetExclusive(0, 0x1000)
	if !mon.ExclusiveWrite32(0, 0x1000, 42) {
		t.Fatal("exclusive write with held monitor failed")
	}
	if mem[0x1000] != 42 {
		t.Errorf("memory = %d, want 42", mem[0x1000])
	}
	// The monitor is consumed by the write.
	if mon.ExclusiveWrite32(0, 0x1000, 43) {
		t.Error("second exclusive write without SetExclusive succeeded")
	}
}

func TestMonitorWrongAddress(t *testing.T) {
	mon := NewSoftwareMonitor(wordMemory{})
	mon.SetExclusive(0, 0x1000)
	if mon.ExclusiveWrite32(0, 0x2000, 1) {
		t.Error("exclusive write to unmonitored address succeeded")
	}
}

func TestMonitorClearExclusive(t *testing.T) {
	mon := NewSoftwareMonitor(wordMemory{})
	mon.SetExclusive(0, 0x1000)
	mon.ClearExclusive(0)
	if mon.ExclusiveWrite32(0, 0x1000, 1) {
		t.Error("exclusive write after ClearExclusive succeeded")
	}
}

func TestMonitorCrossCoreInvalidation(t *testing.T) {
	mem := wordMemory{0x1000: 0}
	mon := NewSoftwareMonitor(mem)

	// Both cores monitor the same word; the first successful store knocks
	// out the other core's reservation.
	mon.SetExclusive(0, 0x1000)
	mon.SetExclusive(1, 0x1000)
	if !mon.ExclusiveWrite32(1, 0x1000, 7) {
		t.Fatal("core 1 exclusive write failed")
	}
	if mon.ExclusiveWrite32(0, 0x1000, 8) {
		t.Error("core 0 won a race it should have lost")
	}
	if mem[0x1000] != 7 {
		t.Errorf("memory = %d, want 7", mem[0x1000])
	}
}

func TestMonitorIndependentAddresses(t *testing.T) {
	mem := wordMemory{0x1000: 0, 0x2000: 0}
	mon := NewSoftwareMonitor(mem)

	mon.SetExclusive(0, 0x1000)
	mon.SetExclusive(1, 0x2000)
	if !mon.ExclusiveWrite32(0, 0x1000, 1) {
		t.Error("core 0 write failed")
	}
	if !mon.ExclusiveWrite32(1, 0x2000, 2) {
		t.Error("core 1 write failed despite disjoint address")
	}
}
