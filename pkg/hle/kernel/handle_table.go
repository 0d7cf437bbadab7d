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

package kernel

import (
	"nxemu.dev/nxemu/pkg/abi/horizon"
	"nxemu.dev/nxemu/pkg/hle/result"
)

const (
	// handleTableSize is the number of handle slots per process.
	handleTableSize = 1024

	// handleSlotShift positions the slot index above the generation
	// bits in a handle's value.
	handleSlotShift = 15

	// handleGenerationMask extracts the generation from a handle.
	handleGenerationMask = (1 << handleSlotShift) - 1
)

// HandleTable maps guest handles to kernel objects. Handle values carry a
// slot index and a generation; a closed slot's generation advances, so stale
// handles fail to resolve instead of aliasing a new object.
//
// Handle values are opaque to the guest; only equality and resolution are
// meaningful.
type HandleTable struct {
	objects [handleTableSize]Object

	// generations[i] is the generation of slot i while the slot is
	// occupied, or the next free slot index while it is free.
	generations [handleTableSize]uint16

	nextGeneration uint16
	nextFreeSlot   int
	used           int
}

// NewHandleTable returns an empty table.
func NewHandleTable() *HandleTable {
	ht := &HandleTable{nextGeneration: 1}
	for i := range ht.generations {
		ht.generations[i] = uint16(i + 1)
	}
	return ht
}

// Create allocates a handle for obj.
func (ht *HandleTable) Create(obj Object) (horizon.Handle, result.Code) {
	if ht.used == handleTableSize {
		return horizon.InvalidHandle, result.ErrHandleTableFull
	}
	slot := ht.nextFreeSlot
	ht.nextFreeSlot = int(ht.generations[slot])

	gen := ht.nextGeneration
	ht.nextGeneration++
	// Generation zero would collide with InvalidHandle for slot zero.
	if ht.nextGeneration > handleGenerationMask {
		ht.nextGeneration = 1
	}

	ht.objects[slot] = obj
	ht.generations[slot] = gen
	ht.used++
	return horizon.Handle(uint32(slot)<<handleSlotShift | uint32(gen)), result.Success
}

// Get resolves h, returning false for stale, closed, or pseudo handles.
func (ht *HandleTable) Get(h horizon.Handle) (Object, bool) {
	slot := int(uint32(h) >> handleSlotShift)
	gen := uint16(uint32(h) & handleGenerationMask)
	if slot >= handleTableSize || gen == 0 {
		return nil, false
	}
	obj := ht.objects[slot]
	if obj == nil || ht.generations[slot] != gen {
		return nil, false
	}
	return obj, true
}

// Close releases h's slot. Dropping the last handle to a Closable object
// tears the object down.
func (ht *HandleTable) Close(h horizon.Handle) result.Code {
	slot := int(uint32(h) >> handleSlotShift)
	gen := uint16(uint32(h) & handleGenerationMask)
	if slot >= handleTableSize || gen == 0 || ht.objects[slot] == nil || ht.generations[slot] != gen {
		return result.ErrInvalidHandle
	}
	obj := ht.objects[slot]
	ht.objects[slot] = nil
	ht.generations[slot] = uint16(ht.nextFreeSlot)
	ht.nextFreeSlot = slot
	ht.used--
	if c, ok := obj.(Closable); ok && !ht.references(obj) {
		c.Close()
	}
	return result.Success
}

// references returns true if any live slot still holds obj.
func (ht *HandleTable) references(obj Object) bool {
	for i := range ht.objects {
		if ht.objects[i] == obj {
			return true
		}
	}
	return false
}

// Used returns the number of live handles.
func (ht *HandleTable) Used() int {
	return ht.used
}

// GetAs resolves h to a concrete object type, returning false on a stale
// handle or a kind mismatch.
func GetAs[T Object](ht *HandleTable, h horizon.Handle) (T, bool) {
	var zero T
	obj, ok := ht.Get(h)
	if !ok {
		return zero, false
	}
	typed, ok := obj.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}
