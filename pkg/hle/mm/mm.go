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

// Package mm implements one guest process's virtual address space: the
// ordered VMArea map, the shadow page table, and the mapping, heap and query
// operations the SVC layer is built on.
//
// All Manager methods run under the kernel lock; the package performs no
// locking of its own.
package mm

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"nxemu.dev/nxemu/pkg/abi/horizon"
	"nxemu.dev/nxemu/pkg/guestarch"
	"nxemu.dev/nxemu/pkg/hle/cpu"
	"nxemu.dev/nxemu/pkg/hle/result"
)

// Manager owns one process's address space.
type Manager struct {
	layout    AddressSpaceLayout
	vmas      vmaSet
	pageTable *PageTable
	backends  []cpu.Backend

	// heapBacking is nil until the first HeapAllocate. While a heap
	// exists, heapEnd-heapStart always equals len(heapBacking.Data).
	heapBacking *Block
	heapStart   guestarch.Addr
	heapEnd     guestarch.Addr
	heapUsed    uint64
}

// NewManager returns a Manager whose address space is one Free VMArea
// covering the entire range of the given address space type. backends are
// notified of every subsequent mapping change.
func NewManager(t horizon.AddressSpaceType, backends []cpu.Backend) *Manager {
	layout := NewAddressSpaceLayout(t)
	m := &Manager{
		layout:    layout,
		vmas:      newVMASet(),
		pageTable: NewPageTable(layout.Width),
		backends:  backends,
	}
	m.vmas.insert(&VMArea{
		Base:  layout.Base,
		Size:  uint64(layout.End - layout.Base),
		Kind:  VMAFree,
		State: horizon.StateUnmapped,
	})
	return m
}

// Layout returns the region layout of this address space.
func (m *Manager) Layout() AddressSpaceLayout {
	return m.layout
}

// PageTable returns the shadow page table.
func (m *Manager) PageTable() *PageTable {
	return m.pageTable
}

// HeapUsed returns the number of heap bytes currently allocated.
func (m *Manager) HeapUsed() uint64 {
	return m.heapUsed
}

// HeapRange returns the current heap bounds; both are zero when no heap
// exists.
func (m *Manager) HeapRange() (guestarch.Addr, guestarch.Addr) {
	return m.heapStart, m.heapEnd
}

// TotalMemoryUsage returns the number of bytes of mapped, host-backed
// memory.
func (m *Manager) TotalMemoryUsage() uint64 {
	var total uint64
	m.vmas.forEach(func(v *VMArea) bool {
		if v.Kind == VMAAllocatedBlock || v.Kind == VMABackingMemory {
			total += v.Size
		}
		return true
	})
	return total
}

// FindVMA returns the area containing addr, or nil if addr is at or past the
// end of the address space.
func (m *Manager) FindVMA(addr guestarch.Addr) *VMArea {
	if addr >= m.layout.End {
		return nil
	}
	return m.vmas.find(addr)
}

// MapMemoryBlock maps size bytes of block at offset into [base, base+size),
// which must currently be Free. Returns the containing (post-merge) area.
func (m *Manager) MapMemoryBlock(base guestarch.Addr, block *Block, offset, size uint64, state horizon.MemoryState) (*VMArea, result.Code) {
	v, code := m.carveVMA(base, size)
	if code.IsError() {
		return nil, code
	}
	v.Kind = VMAAllocatedBlock
	v.Perms = horizon.PermReadWrite
	v.State = state
	v.Backing = block
	v.Offset = offset
	return m.commit(v), result.Success
}

// MapBackingMemory maps host memory mem at base. mem's length must be
// page-aligned.
func (m *Manager) MapBackingMemory(base guestarch.Addr, mem []byte, state horizon.MemoryState) (*VMArea, result.Code) {
	v, code := m.carveVMA(base, uint64(len(mem)))
	if code.IsError() {
		return nil, code
	}
	v.Kind = VMABackingMemory
	v.Perms = horizon.PermReadWrite
	v.State = state
	v.HostMem = mem
	return m.commit(v), result.Success
}

// MapMMIO maps an MMIO range at base dispatching to hook.
func (m *Manager) MapMMIO(base guestarch.Addr, physAddr, size uint64, state horizon.MemoryState, hook MMIOHook) (*VMArea, result.Code) {
	v, code := m.carveVMA(base, size)
	if code.IsError() {
		return nil, code
	}
	v.Kind = VMAMMIO
	v.Perms = horizon.PermReadWrite
	v.State = state
	v.PhysAddr = physAddr
	v.Hook = hook
	return m.commit(v), result.Success
}

// UnmapRange returns [base, base+size), which must be fully mapped, to the
// Free state.
func (m *Manager) UnmapRange(base guestarch.Addr, size uint64) result.Code {
	if code := m.carveVMARange(base, size); code.IsError() {
		return code
	}
	end := base + guestarch.Addr(size)
	for addr := base; addr < end; {
		v := m.vmas.find(addr)
		next := v.End()
		v.Kind = VMAFree
		v.Perms = horizon.PermNone
		v.State = horizon.StateUnmapped
		v.Attribute = 0
		v.Backing = nil
		v.Offset = 0
		v.HostMem = nil
		v.PhysAddr = 0
		v.Hook = nil
		m.commit(v)
		addr = next
	}
	return result.Success
}

// ReprotectRange changes the permissions of [base, base+size), which must be
// fully mapped, leaving everything else about the mappings intact.
func (m *Manager) ReprotectRange(base guestarch.Addr, size uint64, perms horizon.MemoryPermission) result.Code {
	if code := m.carveVMARange(base, size); code.IsError() {
		return code
	}
	end := base + guestarch.Addr(size)
	for addr := base; addr < end; {
		v := m.vmas.find(addr)
		next := v.End()
		v.Perms = perms
		m.commit(v)
		addr = next
	}
	return result.Success
}

// MirrorMemory maps the block backing src again at dst, then strips the
// source range's permissions to None. The mirror carries the source
// mapping's state. The area containing src must be an AllocatedBlock
// covering the whole source range.
func (m *Manager) MirrorMemory(dst, src guestarch.Addr, size uint64) result.Code {
	v := m.FindVMA(src)
	if v == nil || v.Kind != VMAAllocatedBlock {
		return result.ErrInvalidAddressState
	}
	if !v.ContainsRange(src, size) {
		return result.ErrInvalidAddressState
	}
	offset := v.Offset + uint64(src-v.Base)
	if _, code := m.MapMemoryBlock(dst, v.Backing, offset, size, v.State); code.IsError() {
		return code
	}
	return m.ReprotectRange(src, size, horizon.PermNone)
}

// HeapAllocate grows or shrinks the heap so that its range becomes exactly
// [base, base+size) within the heap region. Retained bytes are preserved;
// new bytes are zero-filled. Every mapping of the heap block is refreshed
// afterwards, since resizing may move the backing buffer.
func (m *Manager) HeapAllocate(base guestarch.Addr, size uint64, perms horizon.MemoryPermission) (guestarch.Addr, result.Code) {
	if !m.layout.IsInsideHeapRegion(base, size) {
		return 0, result.ErrInvalidAddress
	}

	if m.heapBacking == nil {
		m.heapBacking = NewBlock(size)
		if _, code := m.MapMemoryBlock(base, m.heapBacking, 0, size, horizon.StateHeap); code.IsError() {
			m.heapBacking = nil
			return 0, code
		}
		if code := m.ReprotectRange(base, size, perms); code.IsError() {
			return 0, code
		}
		m.heapStart = base
		m.heapEnd = base + guestarch.Addr(size)
		m.heapUsed = size
		return base, result.Success
	}

	newStart := base
	newEnd := base + guestarch.Addr(size)

	// Grow first so that shrink bounds below stay inside the old range.
	if newStart < m.heapStart {
		delta := uint64(m.heapStart - newStart)
		m.heapBacking.Data = append(make([]byte, delta, delta+uint64(len(m.heapBacking.Data))), m.heapBacking.Data...)
		m.shiftBlockOffsets(m.heapBacking, int64(delta))
		m.heapStart = newStart
	}
	if newEnd > m.heapEnd {
		delta := uint64(newEnd - m.heapEnd)
		m.heapBacking.Data = append(m.heapBacking.Data, make([]byte, delta)...)
		m.heapEnd = newEnd
	}
	// Shrink at either end, unmapping whatever the dropped range still
	// maps.
	if newStart > m.heapStart {
		delta := uint64(newStart - m.heapStart)
		if code := m.unmapHeapSpan(m.heapStart, newStart); code.IsError() {
			return 0, code
		}
		m.heapBacking.Data = m.heapBacking.Data[delta:]
		m.shiftBlockOffsets(m.heapBacking, -int64(delta))
		m.heapStart = newStart
	}
	if newEnd < m.heapEnd {
		if code := m.unmapHeapSpan(newEnd, m.heapEnd); code.IsError() {
			return 0, code
		}
		m.heapBacking.Data = m.heapBacking.Data[:uint64(newEnd-newStart)]
		m.heapEnd = newEnd
	}

	// Map any still-free pieces of the target range, then refresh every
	// mapping of the block: the resizes above may have moved the buffer.
	for addr := newStart; addr < newEnd; {
		v := m.vmas.find(addr)
		next := v.End()
		if next > newEnd {
			next = newEnd
		}
		if v.Kind == VMAFree {
			span := uint64(next - addr)
			if _, code := m.MapMemoryBlock(addr, m.heapBacking, uint64(addr-newStart), span, horizon.StateHeap); code.IsError() {
				return 0, code
			}
			if code := m.ReprotectRange(addr, span, perms); code.IsError() {
				return 0, code
			}
		}
		addr = next
	}
	m.refreshBlockMappings(m.heapBacking)
	m.heapUsed = size
	return base, result.Success
}

// HeapFree unmaps a sub-range of the heap and releases its accounting.
func (m *Manager) HeapFree(base guestarch.Addr, size uint64) result.Code {
	if base < m.heapStart || base+guestarch.Addr(size) > m.heapEnd {
		return result.ErrInvalidAddress
	}
	if code := m.UnmapRange(base, size); code.IsError() {
		return code
	}
	if size > m.heapUsed {
		m.heapUsed = 0
	} else {
		m.heapUsed -= size
	}
	return result.Success
}

// SetMemoryAttribute rewrites the masked attribute bits of [base, base+size).
// The range must be fully mapped with uniform state, permissions and
// attributes.
func (m *Manager) SetMemoryAttribute(base guestarch.Addr, size uint64, mask, attr horizon.MemoryAttribute) result.Code {
	if code := m.checkRangeUniform(base, size); code.IsError() {
		return code
	}
	if code := m.carveVMARange(base, size); code.IsError() {
		return code
	}
	end := base + guestarch.Addr(size)
	for addr := base; addr < end; {
		v := m.vmas.find(addr)
		next := v.End()
		v.Attribute = v.Attribute&^mask | attr&mask
		m.commit(v)
		addr = next
	}
	return result.Success
}

// QueryMemory describes the mapping containing addr. Addresses at or past
// the end of the address space report a synthetic inaccessible record
// covering [end, 2^64).
func (m *Manager) QueryMemory(addr guestarch.Addr) horizon.MemoryInfo {
	v := m.FindVMA(addr)
	if v == nil {
		return horizon.MemoryInfo{
			BaseAddress: uint64(m.layout.End),
			Size:        -uint64(m.layout.End),
			State:       horizon.StateInaccessible,
		}
	}
	return horizon.MemoryInfo{
		BaseAddress: uint64(v.Base),
		Size:        v.Size,
		State:       v.State,
		Attribute:   v.Attribute,
		Permission:  v.Perms,
	}
}

// LogLayout dumps the address space at debug level, one line per VMArea.
func (m *Manager) LogLayout(log *logrus.Entry) {
	m.vmas.forEach(func(v *VMArea) bool {
		log.Debugf("vma [%#x, %#x) kind=%d state=%#x perms=%s attr=%#x",
			uint64(v.Base), uint64(v.End()), v.Kind, uint32(v.State), v.Perms, uint32(v.Attribute))
		return true
	})
}

// checkAligned panics on misaligned carve arguments; callers validate guest
// input long before this point, so misalignment is a kernel bug.
func checkAligned(base guestarch.Addr, size uint64) {
	if !base.PageAligned() || size == 0 || size&guestarch.PageMask != 0 {
		panic(fmt.Sprintf("misaligned carve: base=%#x size=%#x", uint64(base), size))
	}
}

// carveVMA isolates [base, base+size), which must lie within a single Free
// area, splitting tail first so the returned area is the one carved.
func (m *Manager) carveVMA(base guestarch.Addr, size uint64) (*VMArea, result.Code) {
	checkAligned(base, size)
	if !m.layout.IsInsideAddressSpace(base, size) {
		return nil, result.ErrInvalidAddress
	}
	v := m.vmas.find(base)
	if v.Kind != VMAFree {
		return nil, result.ErrInvalidAddressState
	}
	if !v.ContainsRange(base, size) {
		return nil, result.ErrInvalidAddressState
	}
	endOffset := uint64(base-v.Base) + size
	if endOffset != v.Size {
		m.splitVMA(v, endOffset)
	}
	if base != v.Base {
		v = m.splitVMA(v, uint64(base-v.Base))
	}
	return v, result.Success
}

// carveVMARange splits area boundaries so that both base and base+size fall
// on VMArea edges. Every area intersecting the range must be mapped.
func (m *Manager) carveVMARange(base guestarch.Addr, size uint64) result.Code {
	checkAligned(base, size)
	if !m.layout.IsInsideAddressSpace(base, size) {
		return result.ErrInvalidAddress
	}
	end := base + guestarch.Addr(size)
	for addr := base; addr < end; {
		v := m.vmas.find(addr)
		if v.Kind == VMAFree {
			return result.ErrInvalidAddressState
		}
		addr = v.End()
	}
	last := m.vmas.find(end - 1)
	if tail := uint64(end - last.Base); tail != last.Size {
		m.splitVMA(last, tail)
	}
	first := m.vmas.find(base)
	if head := uint64(base - first.Base); head != 0 {
		m.splitVMA(first, head)
	}
	return result.Success
}

// checkRangeUniform verifies that every area intersecting the range shares
// one state, permission and attribute set.
func (m *Manager) checkRangeUniform(base guestarch.Addr, size uint64) result.Code {
	if !m.layout.IsInsideAddressSpace(base, size) {
		return result.ErrInvalidAddress
	}
	first := m.vmas.find(base)
	end := base + guestarch.Addr(size)
	for addr := base; addr < end; {
		v := m.vmas.find(addr)
		if v.Kind == VMAFree || v.State != first.State || v.Perms != first.Perms || v.Attribute != first.Attribute {
			return result.ErrInvalidAddressState
		}
		addr = v.End()
	}
	return result.Success
}

// splitVMA cuts v at the given offset, returning the new right-hand area.
//
// Preconditions: 0 < offset < v.Size; offset is page-aligned.
func (m *Manager) splitVMA(v *VMArea, offset uint64) *VMArea {
	right := &VMArea{
		Base:      v.Base + guestarch.Addr(offset),
		Size:      v.Size - offset,
		Kind:      v.Kind,
		Perms:     v.Perms,
		State:     v.State,
		Attribute: v.Attribute,
	}
	switch v.Kind {
	case VMAAllocatedBlock:
		right.Backing = v.Backing
		right.Offset = v.Offset + offset
	case VMABackingMemory:
		right.HostMem = v.HostMem[offset:]
		v.HostMem = v.HostMem[:offset]
	case VMAMMIO:
		right.PhysAddr = v.PhysAddr + offset
		right.Hook = v.Hook
	}
	v.Size = offset
	m.vmas.insert(right)
	return right
}

// mergeAdjacent folds v into its neighbours wherever the mergeability rule
// allows, returning the surviving area.
func (m *Manager) mergeAdjacent(v *VMArea) *VMArea {
	if next := m.vmas.next(v); next != nil && v.canMergeWith(next) {
		m.vmas.remove(next)
		if v.Kind == VMABackingMemory {
			v.HostMem = hostMemJoin(v.HostMem[:v.Size], next.HostMem[:next.Size])
		}
		v.Size += next.Size
	}
	if prev := m.vmas.prev(v); prev != nil && prev.canMergeWith(v) {
		m.vmas.remove(v)
		if prev.Kind == VMABackingMemory {
			prev.HostMem = hostMemJoin(prev.HostMem[:prev.Size], v.HostMem[:v.Size])
		}
		prev.Size += v.Size
		v = prev
	}
	return v
}

// commit merges v eagerly, rewrites the covered page descriptors and
// notifies every CPU backend of the new mapping.
func (m *Manager) commit(v *VMArea) *VMArea {
	v = m.mergeAdjacent(v)
	m.pageTable.mapArea(v)
	m.notifyBackends(v)
	return v
}

func (m *Manager) notifyBackends(v *VMArea) {
	for _, b := range m.backends {
		switch {
		case v.Kind == VMAFree, v.Kind == VMAMMIO, v.Perms == horizon.PermNone:
			// MMIO and no-access ranges must trap into the kernel.
			b.UnmapMemory(v.Base, v.Size)
		default:
			b.MapBackingMemory(v.Base, v.memory(), v.Perms)
		}
	}
}

// shiftBlockOffsets adjusts the block offset of every area mapping block by
// delta, after the block was grown or shrunk at its front.
func (m *Manager) shiftBlockOffsets(block *Block, delta int64) {
	m.vmas.forEach(func(v *VMArea) bool {
		if v.Kind == VMAAllocatedBlock && v.Backing == block {
			v.Offset = uint64(int64(v.Offset) + delta)
		}
		return true
	})
}

// refreshBlockMappings rewrites page descriptors and backend mappings for
// every area mapping block.
func (m *Manager) refreshBlockMappings(block *Block) {
	var areas []*VMArea
	m.vmas.forEach(func(v *VMArea) bool {
		if v.Kind == VMAAllocatedBlock && v.Backing == block {
			areas = append(areas, v)
		}
		return true
	})
	for _, v := range areas {
		m.pageTable.mapArea(v)
		m.notifyBackends(v)
	}
}

// unmapHeapSpan unmaps whatever part of [start, end) is still mapped.
// Used by the heap shrinker, where parts may already have been freed by
// HeapFree.
func (m *Manager) unmapHeapSpan(start, end guestarch.Addr) result.Code {
	for addr := start; addr < end; {
		v := m.vmas.find(addr)
		next := v.End()
		if next > end {
			next = end
		}
		if v.Kind != VMAFree {
			if code := m.UnmapRange(addr, uint64(next-addr)); code.IsError() {
				return code
			}
		}
		addr = next
	}
	return result.Success
}
