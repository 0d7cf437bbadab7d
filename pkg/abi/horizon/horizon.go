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

// Package horizon contains constants and types of the guest kernel ABI.
//
// Everything in this package is a plain value type shared between the
// kernel HLE core and the SVC dispatch layer; nothing here holds state.
package horizon

const (
	// HeapGranularity is the allocation unit of the guest heap.
	HeapGranularity = 0x200000

	// HeapSizeMax is the exclusive upper bound on the guest heap size.
	HeapSizeMax = 0x200000000

	// MaxWaitObjects is the maximum number of handles accepted by
	// WaitSynchronization.
	MaxWaitObjects = 0x40

	// PortNameMaxLength is the maximum length in bytes of a named port
	// name, not counting the NUL terminator.
	PortNameMaxLength = 11

	// EntropySlots is the number of 64-bit random entropy slots exposed
	// through GetInfo.
	EntropySlots = 4

	// TicksPerSecond is the guest system counter frequency (CNTFRQ_EL0).
	TicksPerSecond = 19200000
)

// AddressSpaceType selects one of the supported guest address space layouts.
type AddressSpaceType uint32

const (
	// AddressSpace32Bit is a 32-bit address space with a map region.
	AddressSpace32Bit AddressSpaceType = iota

	// AddressSpace36Bit is a 36-bit address space.
	AddressSpace36Bit

	// AddressSpace32BitNoMap is a 32-bit address space without a map
	// region; the freed range enlarges the heap region.
	AddressSpace32BitNoMap

	// AddressSpace39Bit is the full 39-bit address space.
	AddressSpace39Bit
)

// Width returns the number of significant virtual address bits.
func (t AddressSpaceType) Width() uint {
	switch t {
	case AddressSpace32Bit, AddressSpace32BitNoMap:
		return 32
	case AddressSpace36Bit:
		return 36
	default:
		return 39
	}
}

// String implements fmt.Stringer.String.
func (t AddressSpaceType) String() string {
	switch t {
	case AddressSpace32Bit:
		return "32-bit"
	case AddressSpace36Bit:
		return "36-bit"
	case AddressSpace32BitNoMap:
		return "32-bit-no-map"
	case AddressSpace39Bit:
		return "39-bit"
	default:
		return "unknown"
	}
}
