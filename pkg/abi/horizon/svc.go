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

// Supervisor call immediates, from the guest SVC instruction encoding.
const (
	SVCSetHeapSize                  = 0x01
	SVCSetMemoryPermission          = 0x02
	SVCSetMemoryAttribute           = 0x03
	SVCMapMemory                    = 0x04
	SVCUnmapMemory                  = 0x05
	SVCQueryMemory                  = 0x06
	SVCExitProcess                  = 0x07
	SVCCreateThread                 = 0x08
	SVCStartThread                  = 0x09
	SVCExitThread                   = 0x0A
	SVCSleepThread                  = 0x0B
	SVCGetThreadPriority            = 0x0C
	SVCSetThreadPriority            = 0x0D
	SVCGetThreadCoreMask            = 0x0E
	SVCSetThreadCoreMask            = 0x0F
	SVCGetCurrentProcessorNumber    = 0x10
	SVCSignalEvent                  = 0x11
	SVCClearEvent                   = 0x12
	SVCMapSharedMemory              = 0x13
	SVCUnmapSharedMemory            = 0x14
	SVCCreateTransferMemory         = 0x15
	SVCCloseHandle                  = 0x16
	SVCResetSignal                  = 0x17
	SVCWaitSynchronization          = 0x18
	SVCCancelSynchronization        = 0x19
	SVCArbitrateLock                = 0x1A
	SVCArbitrateUnlock              = 0x1B
	SVCWaitProcessWideKeyAtomic     = 0x1C
	SVCSignalProcessWideKey         = 0x1D
	SVCGetSystemTick                = 0x1E
	SVCConnectToNamedPort           = 0x1F
	SVCSendSyncRequest              = 0x21
	SVCGetProcessID                 = 0x24
	SVCGetThreadID                  = 0x25
	SVCBreak                        = 0x26
	SVCOutputDebugString            = 0x27
	SVCGetInfo                      = 0x29
	SVCGetResourceLimitLimitValue   = 0x30
	SVCGetResourceLimitCurrentValue = 0x31
	SVCSetThreadActivity            = 0x32
	SVCGetThreadContext             = 0x33
	SVCWaitForAddress               = 0x34
	SVCSignalToAddress              = 0x35
	SVCCreateEvent                  = 0x45
	SVCCreateSharedMemory           = 0x50
	SVCGetProcessInfo               = 0x7C
	SVCCreateResourceLimit          = 0x7D
	SVCSetResourceLimitLimitValue   = 0x7E
)

// Handle is an opaque guest-visible reference to a kernel object.
type Handle uint32

const (
	// InvalidHandle is never a valid handle value.
	InvalidHandle Handle = 0

	// CurrentThread is the pseudo-handle denoting the calling thread.
	CurrentThread Handle = 0xFFFF8000

	// CurrentProcess is the pseudo-handle denoting the calling process.
	CurrentProcess Handle = 0xFFFF8001
)

// InfoType selects the quantity returned by GetInfo.
type InfoType uint32

const (
	InfoAllowedCPUCoreMask            InfoType = 0
	InfoAllowedThreadPriorityMask     InfoType = 1
	InfoMapRegionBaseAddr             InfoType = 2
	InfoMapRegionSize                 InfoType = 3
	InfoHeapRegionBaseAddr            InfoType = 4
	InfoHeapRegionSize                InfoType = 5
	InfoTotalMemoryUsage              InfoType = 6
	InfoTotalHeapUsage                InfoType = 7
	InfoIsCurrentProcessBeingDebugged InfoType = 8
	InfoRandomEntropy                 InfoType = 11
	InfoASLRRegionBaseAddr            InfoType = 12
	InfoASLRRegionSize                InfoType = 13
	InfoNewMapRegionBaseAddr          InfoType = 14
	InfoNewMapRegionSize              InfoType = 15
	InfoTitleID                       InfoType = 18
)

// BreakType categorises a Break SVC.
type BreakType uint32

const (
	BreakPanic BreakType = iota
	BreakAssertionFailed
	BreakPreNROLoad
	BreakPostNROLoad
	BreakPreNROUnload
	BreakPostNROUnload
	BreakCppException
)

// BreakSignalDebuggerFlag, when set in the Break reason, asks the kernel to
// notify a debugger and continue instead of terminating the process.
const BreakSignalDebuggerFlag uint32 = 1 << 31

// String implements fmt.Stringer.String.
func (b BreakType) String() string {
	switch b {
	case BreakPanic:
		return "Panic"
	case BreakAssertionFailed:
		return "AssertionFailed"
	case BreakPreNROLoad:
		return "PreNROLoad"
	case BreakPostNROLoad:
		return "PostNROLoad"
	case BreakPreNROUnload:
		return "PreNROUnload"
	case BreakPostNROUnload:
		return "PostNROUnload"
	case BreakCppException:
		return "CppException"
	default:
		return "unknown"
	}
}

// Guest mutex word encoding: the low bits carry the owner thread's handle,
// the top usable bit flags the presence of waiters.
const (
	// MutexOwnerMask extracts the owner handle from a mutex word.
	MutexOwnerMask uint32 = 0x3FFFFFFF

	// MutexHasWaitersFlag is set in a mutex word while threads are queued
	// on the mutex in the kernel.
	MutexHasWaitersFlag uint32 = 0x40000000
)

// ArbitrationType selects the predicate of a WaitForAddress SVC.
type ArbitrationType uint32

const (
	// ArbitrationWaitIfLessThan blocks iff *addr < value.
	ArbitrationWaitIfLessThan ArbitrationType = 0

	// ArbitrationDecrementAndWaitIfLessThan additionally decrements *addr
	// when the predicate holds.
	ArbitrationDecrementAndWaitIfLessThan ArbitrationType = 1

	// ArbitrationWaitIfEqual blocks iff *addr == value.
	ArbitrationWaitIfEqual ArbitrationType = 2
)

// SignalType selects the update performed by a SignalToAddress SVC.
type SignalType uint32

const (
	// SignalPlain wakes waiters without touching the word.
	SignalPlain SignalType = 0

	// SignalAndIncrementIfEqual increments *addr iff it equals the given
	// value, then wakes waiters.
	SignalAndIncrementIfEqual SignalType = 1

	// SignalAndModifyByWaitingCountIfEqual adjusts *addr based on the
	// number of remaining waiters iff it equals the given value, then
	// wakes waiters.
	SignalAndModifyByWaitingCountIfEqual SignalType = 2
)

// EventResetType controls when a signaled event reverts to unsignaled.
type EventResetType uint32

const (
	// ResetOneShot auto-clears the event when a waiter is woken.
	ResetOneShot EventResetType = 0

	// ResetSticky keeps the event signaled until cleared explicitly.
	ResetSticky EventResetType = 1
)

// ThreadActivity is the argument of SetThreadActivity.
type ThreadActivity uint32

const (
	// ActivityRunnable allows the thread to be scheduled.
	ActivityRunnable ThreadActivity = 0

	// ActivityPaused suspends the thread.
	ActivityPaused ThreadActivity = 1
)

// Thread priority and processor constants.
const (
	// PriorityHighest is the numerically lowest (most urgent) priority.
	PriorityHighest = 0

	// PriorityLowest is the numerically highest (least urgent) priority.
	PriorityLowest = 63

	// ProcessorIDDontCare asks for the owning process's ideal core.
	ProcessorIDDontCare = -2

	// ProcessorIDNoUpdate keeps the current ideal core in
	// SetThreadCoreMask.
	ProcessorIDNoUpdate = -3
)

// ResourceLimitType names a per-process countable resource.
type ResourceLimitType uint32

const (
	ResourcePhysicalMemory ResourceLimitType = iota
	ResourceThreads
	ResourceEvents
	ResourceTransferMemory
	ResourceSessions

	// ResourceTypeCount is the number of resource kinds.
	ResourceTypeCount
)

// String implements fmt.Stringer.String.
func (t ResourceLimitType) String() string {
	switch t {
	case ResourcePhysicalMemory:
		return "PhysicalMemory"
	case ResourceThreads:
		return "Threads"
	case ResourceEvents:
		return "Events"
	case ResourceTransferMemory:
		return "TransferMemory"
	case ResourceSessions:
		return "Sessions"
	default:
		return "unknown"
	}
}
