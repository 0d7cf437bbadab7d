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

package mm

import (
	"encoding/binary"

	"nxemu.dev/nxemu/pkg/guestarch"
)

// Guest memory accessors. These resolve through the shadow page table, so
// they observe exactly what the shadow claims is mapped; MMIO pages dispatch
// to their hook, debug pages fire their breakpoint hook first. All return
// false when any touched page is unmapped.

// pageFor resolves the descriptor for addr, unwrapping debug pages after
// firing the hook.
func (m *Manager) pageFor(addr guestarch.Addr, size uint64, write bool) (PageDescriptor, bool) {
	d, ok := m.pageTable.Get(addr)
	if !ok {
		return PageDescriptor{}, false
	}
	if d.Kind == PageDebug {
		d.Debug.OnAccess(addr, size, write)
		d.Kind = d.Wrapped
	}
	if d.Kind == PageUnmapped {
		return PageDescriptor{}, false
	}
	return d, true
}

// ReadBlock copies len(dst) bytes of guest memory starting at addr into dst.
func (m *Manager) ReadBlock(addr guestarch.Addr, dst []byte) bool {
	for len(dst) > 0 {
		d, ok := m.pageFor(addr, uint64(len(dst)), false)
		if !ok || d.Kind != PageMemory {
			return false
		}
		off := addr.PageOffset()
		n := copy(dst, d.Mem[off:])
		dst = dst[n:]
		addr += guestarch.Addr(n)
	}
	return true
}

// WriteBlock copies src into guest memory starting at addr.
func (m *Manager) WriteBlock(addr guestarch.Addr, src []byte) bool {
	for len(src) > 0 {
		d, ok := m.pageFor(addr, uint64(len(src)), true)
		if !ok || d.Kind != PageMemory {
			return false
		}
		off := addr.PageOffset()
		n := copy(d.Mem[off:], src)
		src = src[n:]
		addr += guestarch.Addr(n)
	}
	return true
}

// Read32 loads a 32-bit word. The word must not straddle a page.
func (m *Manager) Read32(addr guestarch.Addr) (uint32, bool) {
	d, ok := m.pageFor(addr, 4, false)
	if !ok {
		return 0, false
	}
	switch d.Kind {
	case PageMemory:
		off := addr.PageOffset()
		return binary.LittleEndian.Uint32(d.Mem[off : off+4]), true
	case PageIo:
		return d.Hook.Read32(addr), true
	}
	return 0, false
}

// Write32 stores a 32-bit word. The word must not straddle a page.
func (m *Manager) Write32(addr guestarch.Addr, val uint32) bool {
	d, ok := m.pageFor(addr, 4, true)
	if !ok {
		return false
	}
	switch d.Kind {
	case PageMemory:
		off := addr.PageOffset()
		binary.LittleEndian.PutUint32(d.Mem[off:off+4], val)
		return true
	case PageIo:
		d.Hook.Write32(addr, val)
		return true
	}
	return false
}

// Read64 loads a 64-bit word from plain memory.
func (m *Manager) Read64(addr guestarch.Addr) (uint64, bool) {
	var buf [8]byte
	if !m.ReadBlock(addr, buf[:]) {
		return 0, false
	}
	return binary.LittleEndian.Uint64(buf[:]), true
}

// Write64 stores a 64-bit word to plain memory.
func (m *Manager) Write64(addr guestarch.Addr, val uint64) bool {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], val)
	return m.WriteBlock(addr, buf[:])
}

// ReadCString reads a NUL-terminated string of at most maxLen bytes.
// The terminator is not included in the result. ok is false if any byte up
// to and including the terminator is unmapped or no terminator appears
// within maxLen+1 bytes.
func (m *Manager) ReadCString(addr guestarch.Addr, maxLen int) (string, bool) {
	var out []byte
	for i := 0; i <= maxLen; i++ {
		var b [1]byte
		if !m.ReadBlock(addr+guestarch.Addr(i), b[:]) {
			return "", false
		}
		if b[0] == 0 {
			return string(out), true
		}
		out = append(out, b[0])
	}
	return "", false
}

// IsValidRange returns true if every page of [addr, addr+size) is mapped.
func (m *Manager) IsValidRange(addr guestarch.Addr, size uint64) bool {
	end, ok := addr.AddLength(size)
	if !ok {
		return false
	}
	for a := addr.RoundDown(); a < end; a += guestarch.PageSize {
		d, ok := m.pageTable.Get(a)
		if !ok || d.Kind == PageUnmapped {
			return false
		}
	}
	return true
}
