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

package svc

import (
	"encoding/binary"

	"nxemu.dev/nxemu/pkg/abi/horizon"
	"nxemu.dev/nxemu/pkg/guestarch"
	"nxemu.dev/nxemu/pkg/hle/arch"
	"nxemu.dev/nxemu/pkg/hle/kernel"
	"nxemu.dev/nxemu/pkg/hle/result"
)

// CreateThread creates a dormant thread in the calling process.
//
// In: X1 = entry, X2 = argument, X3 = stack top, X4 = priority,
// X5 = processor ID. Out: X1 = handle.
func CreateThread(ctx *kernel.Context, args *arch.SVCArguments) {
	entry := args[1].Pointer()
	arg := args[2].Uint64()
	stackTop := args[3].Pointer()
	priority := args[4].Uint32()
	processor := args[5].Int32()

	if priority > horizon.PriorityLowest {
		args.SetResult(uint32(result.ErrInvalidThreadPriority))
		return
	}
	p := ctx.CurrentProcess()
	if p.AllowedPriorityMask()&(1<<priority) == 0 {
		args.SetResult(uint32(result.ErrInvalidThreadPriority))
		return
	}
	switch {
	case processor == horizon.ProcessorIDDontCare:
	case processor >= 0 && processor < guestarch.CoreCount:
		if p.AllowedCoreMask()&(1<<uint(processor)) == 0 {
			args.SetResult(uint32(result.ErrInvalidProcessorID))
			return
		}
	default:
		args.SetResult(uint32(result.ErrInvalidProcessorID))
		return
	}

	t, code := p.CreateThread("", entry, arg, stackTop, priority, processor)
	if code.IsError() {
		args.SetResult(uint32(code))
		return
	}
	h, code := p.Handles().Create(t)
	args.SetResult(uint32(code))
	args.Set(1, uint64(h))
}

// StartThread makes a dormant thread runnable.
//
// In: X0 = thread handle.
func StartThread(ctx *kernel.Context, args *arch.SVCArguments) {
	t, ok := ctx.GetThread(horizon.Handle(args[0].Handle()))
	if !ok {
		args.SetResult(uint32(result.ErrInvalidHandle))
		return
	}
	args.SetResult(uint32(t.Start()))
}

// ExitThread terminates the calling thread. It does not return a result; the
// thread never resumes.
func ExitThread(ctx *kernel.Context, args *arch.SVCArguments) {
	ctx.CurrentThread().Exit()
}

// SleepThread suspends the caller for the given time. The non-positive
// values are yield hints and do not suspend.
//
// In: X0 = nanoseconds.
func SleepThread(ctx *kernel.Context, args *arch.SVCArguments) {
	ns := args[0].Int64()
	if ns <= 0 {
		// 0 = yield same core, -1 = yield with load balancing, -2 = yield
		// to any thread. All are reschedule hints here.
		ctx.Kernel.Scheduler().PrepareReschedule(ctx.CurrentCore())
		args.SetResult(uint32(result.Success))
		return
	}
	kernel.SleepThread(ctx, ns)
	args.SetResult(uint32(result.Success))
}

// GetThreadPriority returns a thread's effective priority.
//
// In: X1 = thread handle. Out: X1 = priority.
func GetThreadPriority(ctx *kernel.Context, args *arch.SVCArguments) {
	t, ok := ctx.GetThread(horizon.Handle(args[1].Handle()))
	if !ok {
		args.SetResult(uint32(result.ErrInvalidHandle))
		return
	}
	args.SetResult(uint32(result.Success))
	args.Set(1, uint64(t.Priority()))
}

// SetThreadPriority reassigns a thread's nominal priority.
//
// In: X0 = thread handle, X1 = priority.
func SetThreadPriority(ctx *kernel.Context, args *arch.SVCArguments) {
	priority := args[1].Uint32()
	if priority > horizon.PriorityLowest {
		args.SetResult(uint32(result.ErrInvalidThreadPriority))
		return
	}
	t, ok := ctx.GetThread(horizon.Handle(args[0].Handle()))
	if !ok {
		args.SetResult(uint32(result.ErrInvalidHandle))
		return
	}
	t.SetNominalPriority(priority)
	ctx.Kernel.Scheduler().PrepareReschedule(ctx.CurrentCore())
	args.SetResult(uint32(result.Success))
}

// GetThreadCoreMask returns a thread's ideal core and affinity mask.
//
// In: X2 = thread handle. Out: X1 = ideal core, X2 = affinity mask.
func GetThreadCoreMask(ctx *kernel.Context, args *arch.SVCArguments) {
	t, ok := ctx.GetThread(horizon.Handle(args[2].Handle()))
	if !ok {
		args.SetResult(uint32(result.ErrInvalidHandle))
		return
	}
	args.SetResult(uint32(result.Success))
	args.Set(1, uint64(t.IdealCore()))
	args.Set(2, t.AffinityMask())
}

// SetThreadCoreMask updates a thread's ideal core and affinity mask. Core -2
// selects the process ideal core; core -3 keeps the current ideal core.
//
// In: X0 = thread handle, X1 = core, X2 = affinity mask.
func SetThreadCoreMask(ctx *kernel.Context, args *arch.SVCArguments) {
	core := args[1].Int32()
	mask := args[2].Uint64()

	t, ok := ctx.GetThread(horizon.Handle(args[0].Handle()))
	if !ok {
		args.SetResult(uint32(result.ErrInvalidHandle))
		return
	}
	p := ctx.CurrentProcess()

	ideal := core
	switch {
	case core == horizon.ProcessorIDDontCare:
		ideal = p.IdealCore()
		mask = 1 << uint(ideal)
	case core == horizon.ProcessorIDNoUpdate:
		ideal = t.IdealCore()
	case core >= 0 && core < guestarch.CoreCount:
	default:
		args.SetResult(uint32(result.ErrInvalidProcessorID))
		return
	}
	if mask == 0 || mask&^p.AllowedCoreMask() != 0 {
		args.SetResult(uint32(result.ErrInvalidCombination))
		return
	}
	if ideal >= 0 && mask&(1<<uint(ideal)) == 0 {
		args.SetResult(uint32(result.ErrInvalidCombination))
		return
	}
	t.SetCoreMask(ideal, mask)
	ctx.Kernel.Scheduler().PrepareReschedule(ctx.CurrentCore())
	args.SetResult(uint32(result.Success))
}

// GetCurrentProcessorNumber returns the core the caller runs on. The value
// goes directly in X0; there is no result code.
func GetCurrentProcessorNumber(ctx *kernel.Context, args *arch.SVCArguments) {
	args.Set(0, uint64(ctx.CurrentCore()))
}

// GetThreadID returns a thread's kernel-wide ID.
//
// In: X1 = thread handle. Out: X1 = thread ID.
func GetThreadID(ctx *kernel.Context, args *arch.SVCArguments) {
	t, ok := ctx.GetThread(horizon.Handle(args[1].Handle()))
	if !ok {
		args.SetResult(uint32(result.ErrInvalidHandle))
		return
	}
	args.SetResult(uint32(result.Success))
	args.Set(1, uint64(t.ID()))
}

// SetThreadActivity pauses or resumes a thread. Targeting the caller fails
// with Busy.
//
// In: X0 = thread handle, X1 = activity.
func SetThreadActivity(ctx *kernel.Context, args *arch.SVCArguments) {
	activity := horizon.ThreadActivity(args[1].Uint32())
	if activity != horizon.ActivityRunnable && activity != horizon.ActivityPaused {
		args.SetResult(uint32(result.ErrInvalidEnumValue))
		return
	}
	t, ok := ctx.GetThread(horizon.Handle(args[0].Handle()))
	if !ok {
		args.SetResult(uint32(result.ErrInvalidHandle))
		return
	}
	if t == ctx.CurrentThread() {
		args.SetResult(uint32(result.ErrBusy))
		return
	}
	t.SetPaused(activity == horizon.ActivityPaused)
	args.SetResult(uint32(result.Success))
}

// threadContextSize is the guest-visible size of a GetThreadContext record:
// X0..X30, SP, PC, PState plus padding, and TPIDR.
const threadContextSize = 31*8 + 8 + 8 + 8 + 8

// GetThreadContext copies a paused thread's register context to guest
// memory. Reading the caller's own context fails with Busy.
//
// In: X0 = destination address, X1 = thread handle.
func GetThreadContext(ctx *kernel.Context, args *arch.SVCArguments) {
	dst := args[0].Pointer()
	t, ok := ctx.GetThread(horizon.Handle(args[1].Handle()))
	if !ok {
		args.SetResult(uint32(result.ErrInvalidHandle))
		return
	}
	if t == ctx.CurrentThread() {
		args.SetResult(uint32(result.ErrBusy))
		return
	}

	tc := t.Context
	if !t.Owner().Is64Bit() {
		tc.Zero32BitUpperRegs()
	}

	var buf [threadContextSize]byte
	for i, r := range tc.Regs {
		binary.LittleEndian.PutUint64(buf[i*8:], r)
	}
	binary.LittleEndian.PutUint64(buf[31*8:], tc.SP)
	binary.LittleEndian.PutUint64(buf[32*8:], tc.PC)
	binary.LittleEndian.PutUint32(buf[33*8:], tc.PState)
	binary.LittleEndian.PutUint64(buf[34*8:], tc.TPIDR)
	if !ctx.CurrentProcess().MM().WriteBlock(dst, buf[:]) {
		args.SetResult(uint32(result.ErrInvalidAddress))
		return
	}
	args.SetResult(uint32(result.Success))
}
