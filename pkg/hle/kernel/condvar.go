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

// Process-wide keys are guest condition variables addressed by the guest
// address of their key word. Waiting threads are found by scanning the
// owning process's threads for a matching condvar address; there is no
// kernel-side condvar object.

// CondvarWait atomically releases the mutex at mutexAddr and parks the
// caller on the key at condvarAddr. threadHandle is the caller's own handle,
// used as the mutex owner value when the mutex is handed back on wake.
// timeout is in nanoseconds, negative for no timeout.
func CondvarWait(ctx *Context, mutexAddr, condvarAddr guestarch.Addr, threadHandle horizon.Handle, timeout int64) result.Code {
	if !mutexAddr.WordAligned() {
		return result.ErrInvalidAddress
	}
	if code := MutexRelease(ctx, mutexAddr); code.IsError() {
		return code
	}

	current := ctx.CurrentThread()
	current.mutexWaitAddress = mutexAddr
	current.condvarWaitAddress = condvarAddr
	current.waitHandle = threadHandle
	current.waitSeq = ctx.Kernel.nextWaitSeq()
	current.status = StatusWaitMutex
	current.wakeupCallback = func(t *Thread, reason WakeupReason, _ WaitObject, _ int) {
		if reason == WakeupTimeout {
			t.Context.Regs[0] = uint64(result.ErrTimeout)
		}
	}
	ctx.Kernel.scheduler.WakeAfterDelay(current, timeout)
	ctx.Kernel.scheduler.PrepareReschedule(ctx.CurrentCore())
	return result.Success
}

// CondvarSignal wakes up to target threads waiting on the key at
// condvarAddr, best priority first; target -1 wakes all. Each woken thread
// reacquires its mutex: if the mutex word is free the thread resumes owning
// it, otherwise the thread is requeued on the current owner and keeps any
// pending timeout.
func CondvarSignal(ctx *Context, condvarAddr guestarch.Addr, target int32) result.Code {
	p := ctx.CurrentProcess()

	var waiting []*Thread
	for _, t := range ctx.Kernel.AllThreads() {
		if t.owner == p && t.condvarWaitAddress == condvarAddr && t.status == StatusWaitMutex {
			waiting = append(waiting, t)
		}
	}
	sortThreadsByPriority(waiting)

	n := len(waiting)
	if target >= 0 && int(target) < n {
		n = int(target)
	}
	for _, t := range waiting[:n] {
		condvarWakeThread(ctx, t)
	}
	return result.Success
}

// condvarWakeThread moves one signaled thread from the condvar to its mutex.
func condvarWakeThread(ctx *Context, t *Thread) {
	p := t.owner
	t.condvarWaitAddress = 0

	acquired, val, ok := mutexTryGrab(p, ctx.CurrentCore(), t.mutexWaitAddress, t.waitHandle)
	if acquired || !ok {
		// Mutex taken (or its word vanished); the woken thread resumes
		// owning it.
		t.mutexWaitAddress = 0
		t.waitHandle = horizon.InvalidHandle
		t.resumeWithResult(result.Success)
		return
	}

	owner, held := GetAs[*Thread](p.handles, horizon.Handle(val&horizon.MutexOwnerMask))
	if !held {
		// Stale owner handle in the word; treat the mutex as free rather
		// than strand the thread.
		p.mm.Write32(t.mutexWaitAddress, uint32(t.waitHandle))
		t.mutexWaitAddress = 0
		t.waitHandle = horizon.InvalidHandle
		t.resumeWithResult(result.Success)
		return
	}

	// Contended: mark the word and park on the owner. The wait timeout
	// installed by CondvarWait stays armed.
	p.mm.Write32(t.mutexWaitAddress, val|horizon.MutexHasWaitersFlag)
	owner.AddMutexWaiter(t)
	t.k.scheduler.PrepareReschedule(ctx.CurrentCore())
}
