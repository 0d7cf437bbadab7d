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

// Package result defines the guest kernel's 32-bit result codes. A code packs
// a module index in its low 9 bits and a description in the bits above; the
// zero value is success. Codes cross the SVC boundary bit-exactly, so they are
// plain values rather than Go errors.
package result

import "fmt"

// Code is a guest result code.
type Code uint32

// Module indices. Only the kernel module is produced by this tree.
const (
	moduleKernel = 1
)

// New builds a Code from a module index and a description.
func New(module, description uint32) Code {
	return Code(module&0x1FF | description<<9)
}

// Success is the zero result code.
const Success Code = 0

// IsSuccess returns true if c indicates success.
func (c Code) IsSuccess() bool {
	return c == Success
}

// IsError returns true if c indicates failure.
func (c Code) IsError() bool {
	return c != Success
}

// Module returns the module index of c.
func (c Code) Module() uint32 {
	return uint32(c) & 0x1FF
}

// Description returns the description field of c.
func (c Code) Description() uint32 {
	return uint32(c) >> 9
}

// String implements fmt.Stringer.String.
func (c Code) String() string {
	if c.IsSuccess() {
		return "Success"
	}
	return fmt.Sprintf("Result(module=%d, description=%d)", c.Module(), c.Description())
}

// Kernel result codes.
var (
	// ErrInvalidSize: a size argument is zero, misaligned, or overflows.
	ErrInvalidSize = New(moduleKernel, 101)

	// ErrInvalidAddress: an address argument is misaligned or outside the
	// address space.
	ErrInvalidAddress = New(moduleKernel, 102)

	// ErrHandleTableFull: no free slot in the handle table.
	ErrHandleTableFull = New(moduleKernel, 105)

	// ErrInvalidAddressState: the range is not in a state compatible with
	// the requested operation.
	ErrInvalidAddressState = New(moduleKernel, 106)

	// ErrInvalidMemoryPermissions: the permission mask is not one of the
	// accepted combinations.
	ErrInvalidMemoryPermissions = New(moduleKernel, 108)

	// ErrInvalidMemoryRange: the range does not lie inside the expected
	// region.
	ErrInvalidMemoryRange = New(moduleKernel, 110)

	// ErrInvalidThreadPriority: priority outside the permitted band.
	ErrInvalidThreadPriority = New(moduleKernel, 112)

	// ErrInvalidProcessorID: core number outside the permitted set.
	ErrInvalidProcessorID = New(moduleKernel, 113)

	// ErrInvalidHandle: the handle does not resolve, or resolves to an
	// object of the wrong kind.
	ErrInvalidHandle = New(moduleKernel, 114)

	// ErrInvalidPointer: a guest pointer argument is not mapped.
	ErrInvalidPointer = New(moduleKernel, 115)

	// ErrInvalidCombination: mutually inconsistent arguments.
	ErrInvalidCombination = New(moduleKernel, 116)

	// ErrTimeout: a wait completed by timing out.
	ErrTimeout = New(moduleKernel, 117)

	// ErrSynchronizationCanceled: a wait was cancelled by
	// CancelSynchronization.
	ErrSynchronizationCanceled = New(moduleKernel, 118)

	// ErrOutOfRange: a count or length exceeds its hard cap.
	ErrOutOfRange = New(moduleKernel, 119)

	// ErrInvalidEnumValue: an out-of-range discriminant.
	ErrInvalidEnumValue = New(moduleKernel, 120)

	// ErrNotFound: no object registered under the given name.
	ErrNotFound = New(moduleKernel, 121)

	// ErrBusy: the operation names the calling thread where that is
	// forbidden.
	ErrBusy = New(moduleKernel, 122)

	// ErrSessionClosed: the remote endpoint of a session is gone.
	ErrSessionClosed = New(moduleKernel, 123)

	// ErrInvalidState: the object is not in a state that permits the
	// operation.
	ErrInvalidState = New(moduleKernel, 125)

	// ErrResourceLimitExceeded: a resource limit counter is exhausted.
	ErrResourceLimitExceeded = New(moduleKernel, 132)
)
