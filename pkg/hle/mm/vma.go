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
	"fmt"

	"github.com/google/btree"

	"nxemu.dev/nxemu/pkg/abi/horizon"
	"nxemu.dev/nxemu/pkg/guestarch"
)

// VMAKind describes what backs a VMArea.
type VMAKind uint8

const (
	// VMAFree marks an unmapped run of pages.
	VMAFree VMAKind = iota

	// VMAAllocatedBlock marks pages backed by a shared-owned Block.
	VMAAllocatedBlock

	// VMABackingMemory marks pages backed by host memory owned elsewhere.
	VMABackingMemory

	// VMAMMIO marks pages dispatched to an I/O hook.
	VMAMMIO
)

// Block is a reference-counted-by-GC byte buffer shared between every VMArea
// (possibly across processes) mapping it. Identity is pointer identity.
type Block struct {
	// Data is the buffer contents. Resizing is only performed by the heap
	// grower, which afterwards refreshes every mapping of the Block.
	Data []byte
}

// NewBlock returns a zero-filled Block of the given size.
func NewBlock(size uint64) *Block {
	return &Block{Data: make([]byte, size)}
}

// MMIOHook intercepts word accesses to an MMIO range.
type MMIOHook interface {
	// Read32 handles a guest load from the given guest address.
	Read32(addr guestarch.Addr) uint32

	// Write32 handles a guest store to the given guest address.
	Write32(addr guestarch.Addr, val uint32)
}

// VMArea is a maximal contiguous range of pages sharing kind, permissions,
// state and attributes. VMAreas tile the whole address space with no gaps;
// they are created and destroyed only by the Manager.
type VMArea struct {
	Base guestarch.Addr
	Size uint64

	Kind      VMAKind
	Perms     horizon.MemoryPermission
	State     horizon.MemoryState
	Attribute horizon.MemoryAttribute

	// Backing and Offset are meaningful for VMAAllocatedBlock: the area
	// maps Backing.Data[Offset : Offset+Size].
	Backing *Block
	Offset  uint64

	// HostMem is meaningful for VMABackingMemory.
	HostMem []byte

	// PhysAddr and Hook are meaningful for VMAMMIO.
	PhysAddr uint64
	Hook     MMIOHook
}

// End returns the first address past the area.
func (v *VMArea) End() guestarch.Addr {
	return v.Base + guestarch.Addr(v.Size)
}

// Contains returns true if addr lies inside the area.
func (v *VMArea) Contains(addr guestarch.Addr) bool {
	return addr >= v.Base && addr < v.End()
}

// ContainsRange returns true if [addr, addr+size) lies inside the area.
func (v *VMArea) ContainsRange(addr guestarch.Addr, size uint64) bool {
	end, ok := addr.AddLength(size)
	return ok && addr >= v.Base && end <= v.End()
}

// memory returns the backing bytes of the area for data access, or nil if the
// area has no directly addressable backing.
func (v *VMArea) memory() []byte {
	switch v.Kind {
	case VMAAllocatedBlock:
		return v.Backing.Data[v.Offset : v.Offset+v.Size]
	case VMABackingMemory:
		return v.HostMem[:v.Size]
	default:
		return nil
	}
}

// canMergeWith returns true if next can be folded into v. next must start
// exactly at v.End().
func (v *VMArea) canMergeWith(next *VMArea) bool {
	if v.Kind != next.Kind || v.Perms != next.Perms || v.State != next.State || v.Attribute != next.Attribute {
		return false
	}
	switch v.Kind {
	case VMAAllocatedBlock:
		return v.Backing == next.Backing && v.Offset+v.Size == next.Offset
	case VMABackingMemory:
		// Host buffers must be contiguous in host memory.
		return hostMemContiguous(v.HostMem[:v.Size], next.HostMem)
	case VMAMMIO:
		return v.PhysAddr+v.Size == next.PhysAddr
	default:
		return true
	}
}

// vmaSet is the ordered map of VMAreas keyed by base address.
type vmaSet struct {
	tree *btree.BTreeG[*VMArea]
}

const vmaTreeDegree = 16

func newVMASet() vmaSet {
	return vmaSet{
		tree: btree.NewG(vmaTreeDegree, func(a, b *VMArea) bool {
			return a.Base < b.Base
		}),
	}
}

// insert adds v to the set. No area with the same base may exist.
func (s *vmaSet) insert(v *VMArea) {
	if old, ok := s.tree.ReplaceOrInsert(v); ok {
		panic(fmt.Sprintf("overlapping VMArea insert at %#x", uint64(old.Base)))
	}
}

// remove deletes v from the set.
func (s *vmaSet) remove(v *VMArea) {
	if _, ok := s.tree.Delete(v); !ok {
		panic("removing VMArea not in set")
	}
}

// find returns the area containing addr, or nil if addr is past the last
// area.
func (s *vmaSet) find(addr guestarch.Addr) *VMArea {
	var found *VMArea
	s.tree.DescendLessOrEqual(&VMArea{Base: addr}, func(v *VMArea) bool {
		found = v
		return false
	})
	if found == nil || !found.Contains(addr) {
		return nil
	}
	return found
}

// next returns the area immediately after v, or nil at the end of the space.
// Coverage is gapless, so the successor starts exactly at v.End().
func (s *vmaSet) next(v *VMArea) *VMArea {
	n, _ := s.tree.Get(&VMArea{Base: v.End()})
	return n
}

// prev returns the area immediately before v, or nil at the start.
func (s *vmaSet) prev(v *VMArea) *VMArea {
	if v.Base == 0 {
		return nil
	}
	var found *VMArea
	s.tree.DescendLessOrEqual(&VMArea{Base: v.Base - 1}, func(p *VMArea) bool {
		found = p
		return false
	})
	return found
}

// forEach visits every area in ascending base order. The visitor must not
// mutate the set.
func (s *vmaSet) forEach(f func(*VMArea) bool) {
	s.tree.Ascend(f)
}

// count returns the number of areas.
func (s *vmaSet) count() int {
	return s.tree.Len()
}
