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
	"sync"

	"nxemu.dev/nxemu/pkg/abi/horizon"
	"nxemu.dev/nxemu/pkg/guestarch"
)

// SoftwareMonitor is an ExclusiveMonitor implemented entirely in software on
// top of a Memory. A single mutex serializes all monitored accesses, which is
// sufficient because guest cores only touch synchronization words through the
// monitor.
type SoftwareMonitor struct {
	mem Memory

	mu sync.Mutex

	// addrs[core] is the monitored address for that core; only meaningful
	// while held[core] is true.
	addrs [guestarch.CoreCount]guestarch.Addr
	held  [guestarch.CoreCount]bool
}

// NewSoftwareMonitor returns a monitor backed by mem.
func NewSoftwareMonitor(mem Memory) *SoftwareMonitor {
	return &SoftwareMonitor{mem: mem}
}

// SetExclusive implements ExclusiveMonitor.SetExclusive.
func (m *SoftwareMonitor) SetExclusive(core int, addr guestarch.Addr) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addrs[core] = addr
	m.held[core] = true
}

// ClearExclusive implements ExclusiveMonitor.ClearExclusive.
func (m *SoftwareMonitor) ClearExclusive(core int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.held[core] = false
}

// ExclusiveWrite32 implements ExclusiveMonitor.ExclusiveWrite32.
func (m *SoftwareMonitor) ExclusiveWrite32(core int, addr guestarch.Addr, val uint32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.held[core] || m.addrs[core] != addr {
		return false
	}
	// Losing the monitor to another core invalidates every other holder of
	// the same address.
	for c := range m.held {
		if c != core && m.held[c] && m.addrs[c] == addr {
			m.held[c] = false
		}
	}
	m.held[core] = false
	return m.mem.Write32(addr, val)
}

// NullBackend is a Backend that discards all notifications. It stands in for
// a real execution core when the kernel runs headless, and in tests.
type NullBackend struct{}

// MapBackingMemory implements Backend.MapBackingMemory.
func (NullBackend) MapBackingMemory(guestarch.Addr, []byte, horizon.MemoryPermission) {}

// UnmapMemory implements Backend.UnmapMemory.
func (NullBackend) UnmapMemory(guestarch.Addr, uint64) {}

// LogBacktrace implements Backend.LogBacktrace.
func (NullBackend) LogBacktrace() {}
