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

// Package cpu defines the interface the kernel core consumes from guest CPU
// execution backends, and a software exclusive monitor usable by backends
// that lack a native one.
//
// The kernel never executes guest code itself; it tells each backend which
// host memory backs which guest range, and the backend tells the kernel when
// a trap occurs. One Backend exists per emulated core.
package cpu

import (
	"nxemu.dev/nxemu/pkg/abi/horizon"
	"nxemu.dev/nxemu/pkg/guestarch"
)

// Backend is a single guest CPU core.
type Backend interface {
	// MapBackingMemory tells the backend that [va, va+len(mem)) is now
	// backed by mem with the given permissions.
	MapBackingMemory(va guestarch.Addr, mem []byte, perms horizon.MemoryPermission)

	// UnmapMemory tells the backend that [va, va+size) is no longer
	// mapped.
	UnmapMemory(va guestarch.Addr, size uint64)

	// LogBacktrace logs a guest backtrace for the current thread at a
	// diagnostic level.
	LogBacktrace()
}

// ExclusiveMonitor implements the load-linked/store-conditional discipline
// for guest synchronization words. Implementations must serialize
// ExclusiveWrite32 against all guest stores to the monitored word.
type ExclusiveMonitor interface {
	// SetExclusive marks addr as exclusively monitored by core.
	SetExclusive(core int, addr guestarch.Addr)

	// ClearExclusive drops any monitor held by core.
	ClearExclusive(core int)

	// ExclusiveWrite32 writes val to addr iff core still holds the
	// monitor on addr, returning true on success. The monitor is
	// released either way.
	ExclusiveWrite32(core int, addr guestarch.Addr, val uint32) bool
}

// Memory is the word-granularity guest memory access surface required by the
// software monitor. The kernel's VM manager implements it.
type Memory interface {
	Read32(addr guestarch.Addr) (uint32, bool)
	Write32(addr guestarch.Addr, val uint32) bool
}
