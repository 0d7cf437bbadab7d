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
	"nxemu.dev/nxemu/pkg/abi/horizon"
	"nxemu.dev/nxemu/pkg/guestarch"
)

// AddressSpaceLayout describes the fixed region partitioning of one guest
// address space. Regions are packed in the order code, map, heap, new_map,
// tls_io, each placed immediately after its predecessor.
type AddressSpaceLayout struct {
	Type  horizon.AddressSpaceType
	Width uint

	// Base and End delimit the whole address space, [Base, End).
	Base guestarch.Addr
	End  guestarch.Addr

	CodeBase guestarch.Addr
	CodeEnd  guestarch.Addr

	ASLRBase guestarch.Addr
	ASLREnd  guestarch.Addr

	MapBase guestarch.Addr
	MapEnd  guestarch.Addr

	HeapBase guestarch.Addr
	HeapEnd  guestarch.Addr

	NewMapBase guestarch.Addr
	NewMapEnd  guestarch.Addr

	TLSIOBase guestarch.Addr
	TLSIOEnd  guestarch.Addr
}

// NewAddressSpaceLayout derives the region layout for the given address space
// type.
func NewAddressSpaceLayout(t horizon.AddressSpaceType) AddressSpaceLayout {
	l := AddressSpaceLayout{
		Type:  t,
		Width: t.Width(),
	}
	l.Base = 0
	l.End = guestarch.Addr(1) << l.Width

	var mapSize, heapSize, newMapSize, tlsIOSize uint64
	switch t {
	case horizon.AddressSpace32Bit:
		l.CodeBase = 0x200000
		l.CodeEnd = l.CodeBase + 0x3FE00000
		l.ASLRBase = 0x200000
		l.ASLREnd = l.ASLRBase + 0xFFE00000
		mapSize = 0
		heapSize = 0x10000000
		newMapSize = 0
		tlsIOSize = 0
	case horizon.AddressSpace32BitNoMap:
		l.CodeBase = 0x200000
		l.CodeEnd = l.CodeBase + 0x3FE00000
		l.ASLRBase = 0x200000
		l.ASLREnd = l.ASLRBase + 0xFFE00000
		mapSize = 0
		heapSize = 0x80000000
		newMapSize = 0
		tlsIOSize = 0
	case horizon.AddressSpace36Bit:
		l.CodeBase = 0x8000000
		l.CodeEnd = l.CodeBase + 0x78000000
		l.ASLRBase = 0x8000000
		l.ASLREnd = l.ASLRBase + 0xFF8000000
		mapSize = 0x180000000
		heapSize = 0x180000000
		newMapSize = 0
		tlsIOSize = 0
	default: // AddressSpace39Bit
		l.CodeBase = 0x8000000
		l.CodeEnd = l.CodeBase + 0x80000000
		l.ASLRBase = 0x8000000
		l.ASLREnd = l.ASLRBase + 0x7FF8000000
		mapSize = 0x1000000000
		heapSize = 0x180000000
		newMapSize = 0x80000000
		tlsIOSize = 0x1000000000
	}

	l.MapBase = l.CodeEnd
	l.MapEnd = l.MapBase + guestarch.Addr(mapSize)
	l.HeapBase = l.MapEnd
	l.HeapEnd = l.HeapBase + guestarch.Addr(heapSize)
	l.NewMapBase = l.HeapEnd
	l.NewMapEnd = l.NewMapBase + guestarch.Addr(newMapSize)
	l.TLSIOBase = l.NewMapEnd
	l.TLSIOEnd = l.TLSIOBase + guestarch.Addr(tlsIOSize)

	// A zero-size new_map region collapses to the full address space;
	// MapMemory destinations are then only bounded by the space itself.
	if newMapSize == 0 {
		l.NewMapBase = l.Base
		l.NewMapEnd = l.End
	}
	return l
}

// ContainsRange returns true if [addr, addr+size) lies inside [base, end)
// without overflowing.
func ContainsRange(base, end guestarch.Addr, addr guestarch.Addr, size uint64) bool {
	aend, ok := addr.AddLength(size)
	return ok && addr >= base && aend <= end
}

// IsInsideAddressSpace returns true if the range lies inside the address
// space.
func (l *AddressSpaceLayout) IsInsideAddressSpace(addr guestarch.Addr, size uint64) bool {
	return ContainsRange(l.Base, l.End, addr, size)
}

// IsInsideHeapRegion returns true if the range lies inside the heap region.
func (l *AddressSpaceLayout) IsInsideHeapRegion(addr guestarch.Addr, size uint64) bool {
	return ContainsRange(l.HeapBase, l.HeapEnd, addr, size)
}

// IsInsideMapRegion returns true if the range lies inside the map region.
func (l *AddressSpaceLayout) IsInsideMapRegion(addr guestarch.Addr, size uint64) bool {
	return ContainsRange(l.MapBase, l.MapEnd, addr, size)
}

// IsInsideNewMapRegion returns true if the range lies inside the new_map
// region.
func (l *AddressSpaceLayout) IsInsideNewMapRegion(addr guestarch.Addr, size uint64) bool {
	return ContainsRange(l.NewMapBase, l.NewMapEnd, addr, size)
}
