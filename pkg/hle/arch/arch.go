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

// Package arch holds the guest register marshalling types shared by the SVC
// dispatcher and the thread context.
package arch

import (
	"nxemu.dev/nxemu/pkg/guestarch"
)

// SVCArgument represents one guest register used as an SVC argument or
// result.
type SVCArgument struct {
	Value uint64
}

// Pointer returns the argument as a guest address.
func (a SVCArgument) Pointer() guestarch.Addr {
	return guestarch.Addr(a.Value)
}

// Uint64 returns the argument as a 64-bit value.
func (a SVCArgument) Uint64() uint64 {
	return a.Value
}

// Uint32 returns the low 32 bits of the argument, the W-register view.
func (a SVCArgument) Uint32() uint32 {
	return uint32(a.Value)
}

// Int64 returns the argument as a signed 64-bit value.
func (a SVCArgument) Int64() int64 {
	return int64(a.Value)
}

// Int32 returns the low 32 bits of the argument as a signed value.
func (a SVCArgument) Int32() int32 {
	return int32(a.Value)
}

// Handle returns the argument as a kernel handle value.
func (a SVCArgument) Handle() uint32 {
	return uint32(a.Value)
}

// SVCArguments holds the eight registers X0..X7 carrying SVC arguments on
// entry and results on exit.
type SVCArguments [8]SVCArgument

// SetResult stores a result code in X0.
func (a *SVCArguments) SetResult(code uint32) {
	a[0].Value = uint64(code)
}

// Set stores a 64-bit output value in register i.
func (a *SVCArguments) Set(i int, v uint64) {
	a[i].Value = v
}

// ThreadContext is the saved register state of a guest thread. The CPU
// backend loads it when scheduling the thread and stores it back on traps.
type ThreadContext struct {
	// Regs holds X0..X30.
	Regs [31]uint64

	// SP is the stack pointer.
	SP uint64

	// PC is the program counter.
	PC uint64

	// PState is the saved processor state word.
	PState uint32

	// TPIDR is the thread-local storage pointer, TPIDR_EL0.
	TPIDR uint64
}

// Zero32BitUpperRegs clears the upper halves of all general-purpose
// registers, the view a 32-bit process must observe.
func (c *ThreadContext) Zero32BitUpperRegs() {
	for i := range c.Regs {
		c.Regs[i] = uint64(uint32(c.Regs[i]))
	}
	c.SP = uint64(uint32(c.SP))
	c.PC = uint64(uint32(c.PC))
	c.TPIDR = uint64(uint32(c.TPIDR))
}
