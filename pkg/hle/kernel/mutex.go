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

// Guest mutexes live in guest memory as a single 32-bit word; the kernel is
// only involved on contention. A contended acquire parks the caller on the
// owner thread's mutex waiter list, which also drives priority inheritance.

// mutexTryGrab attempts to take the unowned mutex at addr for handle through
// the exclusive monitor, retrying until the store succeeds or an owner
// appears. Returns the observed word when not acquired.
func mutexTryGrab(p *Process, core int, addr guestarch.Addr, handle horizon.Handle) (acquired bool, val uint32, ok bool) {
	mon := p.monitor
	for {
		mon.SetExclusive(core, addr)
		cur, ok := p.mm.Read32(addr)
		if !ok {
			mon.ClearExclusive(core)
			return false, 0, false
		}
		if cur&horizon.MutexOwnerMask != 0 {
			mon.ClearExclusive(core)
			return false, cur, true
		}
		if mon.ExclusiveWrite32(core, addr, uint32(handle)) {
			return true, 0, true
		}
	}
}

// MutexTryAcquire handles the kernel side of a userland mutex acquire. An
// unowned word is taken directly; a word that no longer matches the handle
// the guest saw means the mutex was released in between, and the guest
// simply retries.
func MutexTryAcquire(ctx *Context, addr guestarch.Addr, holdingHandle, requestingHandle horizon.Handle) result.Code {
	if !addr.WordAligned() {
		return result.ErrInvalidAddress
	}
	current := ctx.CurrentThread()
	p := ctx.CurrentProcess()

	acquired, val, ok := mutexTryGrab(p, ctx.CurrentCore(), addr, requestingHandle)
	if !ok {
		return result.ErrInvalidAddress
	}
	if acquired {
		return result.Success
	}
	if val != uint32(holdingHandle)|horizon.MutexHasWaitersFlag {
		return result.Success
	}

	holder, ok := GetAs[*Thread](p.handles, holdingHandle)
	if !ok {
		return result.ErrInvalidHandle
	}
	if _, ok := GetAs[*Thread](p.handles, requestingHandle); !ok {
		return result.ErrInvalidHandle
	}

	current.mutexWaitAddress = addr
	current.waitHandle = requestingHandle
	current.waitSeq = ctx.Kernel.nextWaitSeq()
	current.status = StatusWaitMutex
	current.wakeupCallback = nil
	holder.AddMutexWaiter(current)
	ctx.Kernel.scheduler.PrepareReschedule(ctx.CurrentCore())
	return result.Success
}

// MutexRelease hands the mutex at addr to the best waiting thread, or clears
// the word when nobody waits.
func MutexRelease(ctx *Context, addr guestarch.Addr) result.Code {
	if !addr.WordAligned() {
		return result.ErrInvalidAddress
	}
	current := ctx.CurrentThread()
	p := ctx.CurrentProcess()

	waiters := current.mutexWaitersOn(addr)
	if len(waiters) == 0 {
		if !p.mm.Write32(addr, 0) {
			return result.ErrInvalidAddress
		}
		return result.Success
	}

	next := waiters[0]
	transferMutexOwnership(addr, current, next)

	val := uint32(next.waitHandle)
	if len(waiters) >= 2 {
		val |= horizon.MutexHasWaitersFlag
	}
	if !p.mm.Write32(addr, val) {
		return result.ErrInvalidAddress
	}

	next.lockOwner = 0
	next.condvarWaitAddress = 0
	next.mutexWaitAddress = 0
	next.waitHandle = horizon.InvalidHandle
	next.resumeWithResult(result.Success)
	return result.Success
}

// transferMutexOwnership moves every other waiter on addr from the old owner
// to the new one, so inheritance keeps flowing to whoever holds the mutex.
func transferMutexOwnership(addr guestarch.Addr, from, to *Thread) {
	from.RemoveMutexWaiter(to)
	for _, w := range from.mutexWaitersOn(addr) {
		from.RemoveMutexWaiter(w)
		to.AddMutexWaiter(w)
	}
}
