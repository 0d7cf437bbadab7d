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

package horizon

// MemoryPermission is the guest-visible permission mask of a mapping.
type MemoryPermission uint32

const (
	// PermNone grants no access.
	PermNone MemoryPermission = 0

	// PermRead grants read access.
	PermRead MemoryPermission = 1 << 0

	// PermWrite grants write access.
	PermWrite MemoryPermission = 1 << 1

	// PermExecute grants instruction fetch access.
	PermExecute MemoryPermission = 1 << 2

	// PermReadWrite grants read and write access.
	PermReadWrite = PermRead | PermWrite

	// PermReadExecute grants read and execute access.
	PermReadExecute = PermRead | PermExecute

	// PermAll grants every access type.
	PermAll = PermRead | PermWrite | PermExecute
)

// IsUserAccepted returns true if p is one of the permission combinations the
// SVC ABI accepts from the guest for memory operations: None, R, or RW.
func (p MemoryPermission) IsUserAccepted() bool {
	return p == PermNone || p == PermRead || p == PermReadWrite
}

// String implements fmt.Stringer.String.
func (p MemoryPermission) String() string {
	if p == PermNone {
		return "---"
	}
	b := []byte("---")
	if p&PermRead != 0 {
		b[0] = 'r'
	}
	if p&PermWrite != 0 {
		b[1] = 'w'
	}
	if p&PermExecute != 0 {
		b[2] = 'x'
	}
	return string(b)
}

// MemoryState is the semantic kind of a mapped range, as reported by
// QueryMemory.
type MemoryState uint32

const (
	// StateUnmapped marks a free range.
	StateUnmapped MemoryState = 0x0

	// StateIo marks memory-mapped I/O.
	StateIo MemoryState = 0x1

	// StateNormal marks plain allocated memory.
	StateNormal MemoryState = 0x2

	// StateCodeStatic marks immutable code pages.
	StateCodeStatic MemoryState = 0x3

	// StateCodeMutable marks code pages whose data segment is writable.
	StateCodeMutable MemoryState = 0x4

	// StateHeap marks heap pages.
	StateHeap MemoryState = 0x5

	// StateShared marks pages mapped from a SharedMemory object.
	StateShared MemoryState = 0x6

	// StateModuleCodeStatic marks immutable pages of a loaded module.
	StateModuleCodeStatic MemoryState = 0x8

	// StateModuleCodeMutable marks mutable pages of a loaded module.
	StateModuleCodeMutable MemoryState = 0x9

	// StateIpcBuffer0 marks an IPC buffer of descriptor flavor 0.
	StateIpcBuffer0 MemoryState = 0xA

	// StateMapped marks pages mirrored by MapMemory.
	StateMapped MemoryState = 0xB

	// StateThreadLocal marks thread-local storage pages.
	StateThreadLocal MemoryState = 0xC

	// StateTransferMemoryIsolated marks transfer memory whose source was
	// made inaccessible.
	StateTransferMemoryIsolated MemoryState = 0xD

	// StateTransferMemory marks pages mapped from a TransferMemory object.
	StateTransferMemory MemoryState = 0xE

	// StateSharedCode marks shared code pages.
	StateSharedCode MemoryState = 0xF

	// StateIpcBuffer1 marks an IPC buffer of descriptor flavor 1.
	StateIpcBuffer1 MemoryState = 0x10

	// StateIpcBuffer3 marks an IPC buffer of descriptor flavor 3.
	StateIpcBuffer3 MemoryState = 0x11

	// StateKernelStack marks kernel-owned stack pages.
	StateKernelStack MemoryState = 0x12

	// StateStack marks user stack pages.
	StateStack MemoryState = 0x13

	// StateInaccessible is the synthetic state reported for addresses
	// beyond the end of the address space.
	StateInaccessible MemoryState = 0x10000000
)

// Reprotectable returns true if SetMemoryPermission may change the
// permissions of a range in this state.
func (s MemoryState) Reprotectable() bool {
	switch s {
	case StateHeap, StateCodeMutable, StateModuleCodeMutable, StateMapped,
		StateShared, StateStack, StateThreadLocal:
		return true
	}
	return false
}

// MemoryAttribute is the attribute bitmask of a mapped range.
type MemoryAttribute uint32

const (
	// AttrLocked marks a range locked by the kernel.
	AttrLocked MemoryAttribute = 1 << 0

	// AttrIpcLocked marks a range pinned by an in-flight IPC request.
	AttrIpcLocked MemoryAttribute = 1 << 1

	// AttrDeviceMapped marks a range shared with a device.
	AttrDeviceMapped MemoryAttribute = 1 << 2

	// AttrUncached marks a range as uncacheable. This is the only
	// attribute SetMemoryAttribute accepts from the guest.
	AttrUncached MemoryAttribute = 1 << 3
)

// MemoryInfo is the record written back by QueryMemory.
type MemoryInfo struct {
	BaseAddress    uint64
	Size           uint64
	State          MemoryState
	Attribute      MemoryAttribute
	Permission     MemoryPermission
	IpcRefCount    uint32
	DeviceRefCount uint32
}
