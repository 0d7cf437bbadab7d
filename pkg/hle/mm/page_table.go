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
	"nxemu.dev/nxemu/pkg/guestarch"
)

// PageKind discriminates page descriptors.
type PageKind uint8

const (
	// PageUnmapped pages have no backing.
	PageUnmapped PageKind = iota

	// PageMemory pages resolve to host memory.
	PageMemory

	// PageIo pages dispatch to an MMIO hook.
	PageIo

	// PageDebug pages wrap one of the above with a breakpoint hook.
	PageDebug
)

// DebugHook observes accesses to pages wrapped by AttachDebugHook.
type DebugHook interface {
	// OnAccess is called before the wrapped access is performed. write is
	// true for stores.
	OnAccess(addr guestarch.Addr, size uint64, write bool)
}

// PageDescriptor describes one guest page.
type PageDescriptor struct {
	Kind PageKind

	// Mem is the page's host bytes when Kind is PageMemory, or when Kind
	// is PageDebug wrapping PageMemory.
	Mem []byte

	// Hook is set when Kind is PageIo, or PageDebug wrapping PageIo.
	Hook MMIOHook

	// Wrapped is the underlying kind when Kind is PageDebug.
	Wrapped PageKind

	// Debug is the breakpoint hook when Kind is PageDebug.
	Debug DebugHook
}

// PageTable is the flat shadow table of page descriptors for one address
// space. It is written only by the Manager; readers are the kernel's guest
// memory accessors. For a w-bit address space it holds 1<<(w-12) entries, so
// wide address spaces trade memory for O(1) page resolution, the same
// trade the execution backends make.
type PageTable struct {
	descriptors []PageDescriptor
}

// NewPageTable returns an all-unmapped table covering a width-bit address
// space.
func NewPageTable(width uint) *PageTable {
	return &PageTable{
		descriptors: make([]PageDescriptor, uint64(1)<<(width-guestarch.PageShift)),
	}
}

// Get returns the descriptor of the page containing addr. ok is false when
// addr is outside the table.
func (pt *PageTable) Get(addr guestarch.Addr) (PageDescriptor, bool) {
	i := addr.PageIndex()
	if i >= uint64(len(pt.descriptors)) {
		return PageDescriptor{}, false
	}
	return pt.descriptors[i], true
}

// setRange writes count descriptors starting at the page containing base,
// deriving each page's Mem slice from the area backing via page arithmetic.
//
// Preconditions: base is page-aligned; the range lies inside the table.
func (pt *PageTable) setRange(base guestarch.Addr, count uint64, template PageDescriptor, mem []byte) {
	start := base.PageIndex()
	for i := uint64(0); i < count; i++ {
		d := template
		if d.Kind == PageMemory {
			off := i * guestarch.PageSize
			d.Mem = mem[off : off+guestarch.PageSize : off+guestarch.PageSize]
		}
		pt.descriptors[start+i] = d
	}
}

// mapArea rewrites the descriptors covered by v from its kind and backing.
func (pt *PageTable) mapArea(v *VMArea) {
	pages := guestarch.PagesSpanned(v.Base, v.Size)
	switch v.Kind {
	case VMAFree:
		pt.setRange(v.Base, pages, PageDescriptor{Kind: PageUnmapped}, nil)
	case VMAAllocatedBlock, VMABackingMemory:
		pt.setRange(v.Base, pages, PageDescriptor{Kind: PageMemory}, v.memory())
	case VMAMMIO:
		pt.setRange(v.Base, pages, PageDescriptor{Kind: PageIo, Hook: v.Hook}, nil)
	}
}

// AttachDebugHook wraps every page in [base, base+size) with hook. Unmapped
// pages are left alone.
//
// Preconditions: base is page-aligned; size is a multiple of the page size.
func (pt *PageTable) AttachDebugHook(base guestarch.Addr, size uint64, hook DebugHook) {
	start := base.PageIndex()
	for i := uint64(0); i < size>>guestarch.PageShift; i++ {
		d := &pt.descriptors[start+i]
		if d.Kind == PageUnmapped || d.Kind == PageDebug {
			continue
		}
		d.Wrapped = d.Kind
		d.Kind = PageDebug
		d.Debug = hook
	}
}

// DetachDebugHook removes debug wrapping from every page in the range.
func (pt *PageTable) DetachDebugHook(base guestarch.Addr, size uint64) {
	start := base.PageIndex()
	for i := uint64(0); i < size>>guestarch.PageShift; i++ {
		d := &pt.descriptors[start+i]
		if d.Kind != PageDebug {
			continue
		}
		d.Kind = d.Wrapped
		d.Debug = nil
	}
}
