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
	"nxemu.dev/nxemu/pkg/guestarch"
	"nxemu.dev/nxemu/pkg/hle/result"
)

// The address arbiter blocks threads on arbitrary guest words, keyed by
// address. Like process-wide keys there is no kernel object; waiters are
// found by scanning the owning process's threads.

// ArbiterWait parks the caller on the word at addr if the arbitration
// predicate holds against value. A failed predicate returns InvalidState; a
// zero timeout returns Timeout without ever suspending.
func ArbiterWait(ctx *Context, addr guestarch.Addr, arbType horizon.ArbitrationType, value int32, timeout int64) result.Code {
	if !addr.WordAligned() {
		return result.ErrInvalidAddress
	}
	p := ctx.CurrentProcess()

	cur, ok := p.mm.Read32(addr)
	if !ok {
		return result.ErrInvalidAddress
	}

	switch arbType {
	case horizon.ArbitrationWaitIfLessThan:
		if int32(cur) >= value {
			return result.ErrInvalidState
		}
	case horizon.ArbitrationDecrementAndWaitIfLessThan:
		if int32(cur) >= value {
			return result.ErrInvalidState
		}
		if !p.mm.Write32(addr, uint32(int32(cur)-1)) {
			return result.ErrInvalidAddress
		}
	case horizon.ArbitrationWaitIfEqual:
		if int32(cur) != value {
			return result.ErrInvalidState
		}
	default:
		return result.ErrInvalidEnumValue
	}

	if timeout == 0 {
		return result.ErrTimeout
	}

	current := ctx.CurrentThread()
	current.arbiterWaitAddress = addr
	current.waitSeq = ctx.Kernel.nextWaitSeq()
	current.status = StatusWaitArb
	current.wakeupCallback = func(t *Thread, reason WakeupReason, _ WaitObject, _ int) {
		switch reason {
		case WakeupTimeout:
			t.Context.Regs[0] = uint64(result.ErrTimeout)
		case WakeupCancel:
			t.Context.Regs[0] = uint64(result.ErrSynchronizationCanceled)
		}
	}
	ctx.Kernel.scheduler.WakeAfterDelay(current, timeout)
	ctx.Kernel.scheduler.PrepareReschedule(ctx.CurrentCore())
	return result.Success
}

// ArbiterSignal wakes up to numToWake threads parked on the word at addr,
// best priority first; negative numToWake wakes all. The conditional signal
// types verify the word against value first and fail with InvalidState on
// mismatch.
func ArbiterSignal(ctx *Context, addr guestarch.Addr, sigType horizon.SignalType, value int32, numToWake int32) result.Code {
	if !addr.WordAligned() {
		return result.ErrInvalidAddress
	}
	p := ctx.CurrentProcess()

	switch sigType {
	case horizon.SignalPlain:

	case horizon.SignalAndIncrementIfEqual:
		cur, ok := p.mm.Read32(addr)
		if !ok {
			return result.ErrInvalidAddress
		}
		if int32(cur) != value {
			return result.ErrInvalidState
		}
		p.mm.Write32(addr, uint32(int32(cur)+1))

	case horizon.SignalAndModifyByWaitingCountIfEqual:
		cur, ok := p.mm.Read32(addr)
		if !ok {
			return result.ErrInvalidAddress
		}
		if int32(cur) != value {
			return result.ErrInvalidState
		}
		waiting := arbiterWaiters(ctx, addr)
		updated := int32(cur)
		if len(waiting) == 0 {
			updated++
		} else if numToWake > 0 && len(waiting) > int(numToWake) {
			updated--
		}
		p.mm.Write32(addr, uint32(updated))

	default:
		return result.ErrInvalidEnumValue
	}

	// Zero or negative wake counts mean "wake everyone".
	waiting := arbiterWaiters(ctx, addr)
	n := len(waiting)
	if numToWake > 0 && int(numToWake) < n {
		n = int(numToWake)
	}
	for _, t := range waiting[:n] {
		t.arbiterWaitAddress = 0
		t.resumeWithResult(result.Success)
	}
	return result.Success
}

// arbiterWaiters returns the current process's threads parked on addr, best
// priority first.
func arbiterWaiters(ctx *Context, addr guestarch.Addr) []*Thread {
	p := ctx.CurrentProcess()
	var out []*Thread
	for _, t := range ctx.Kernel.AllThreads() {
		if t.owner == p && t.arbiterWaitAddress == addr && t.status == StatusWaitArb {
			out = append(out, t)
		}
	}
	sortThreadsByPriority(out)
	return out
}
