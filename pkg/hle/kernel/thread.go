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
	"nxemu.dev/nxemu/pkg/hle/arch"
	"nxemu.dev/nxemu/pkg/hle/result"
)

// ThreadID is a kernel-wide unique thread identifier.
type ThreadID uint64

// ThreadStatus is a thread's scheduling state.
type ThreadStatus int32

const (
	// StatusDormant threads are created but not yet started.
	StatusDormant ThreadStatus = iota

	// StatusReady threads are runnable.
	StatusReady

	// StatusRunning threads are executing on a core.
	StatusRunning

	// StatusWaitSleep threads are in SleepThread.
	StatusWaitSleep

	// StatusWaitSynchAny threads are in WaitSynchronization.
	StatusWaitSynchAny

	// StatusWaitMutex threads wait on a guest mutex or process-wide key.
	StatusWaitMutex

	// StatusWaitArb threads wait on an address arbiter.
	StatusWaitArb

	// StatusWaitIPC threads wait for a session reply.
	StatusWaitIPC

	// StatusDead threads have exited.
	StatusDead
)

// WakeupReason tells a wakeup callback why the thread is being woken.
type WakeupReason int

const (
	// WakeupSignal: a wait object became ready.
	WakeupSignal WakeupReason = iota

	// WakeupTimeout: the wait timer fired.
	WakeupTimeout

	// WakeupCancel: CancelSynchronization targeted the thread.
	WakeupCancel
)

// WakeupCallback runs when a waiting thread wakes, with the kernel lock
// held. obj and index are only meaningful for WakeupSignal.
type WakeupCallback func(t *Thread, reason WakeupReason, obj WaitObject, index int)

// Thread is one guest thread of execution.
type Thread struct {
	baseObject

	k  *Kernel
	id ThreadID

	// owner is a back-reference for lookup only; the process owns the
	// thread, never the reverse.
	owner *Process

	// Context is the saved register state, live only while the thread is
	// not running on a core.
	Context arch.ThreadContext

	// nominalPriority is the priority set by CreateThread or
	// SetThreadPriority; currentPriority additionally reflects priority
	// inheritance and is the value all scheduling decisions use.
	nominalPriority uint32
	currentPriority uint32

	idealCore    int32
	affinityMask uint64

	status ThreadStatus
	paused bool

	// tlsAddr is the thread-local storage page.
	tlsAddr guestarch.Addr

	// waitObjects is non-empty only during WaitSynchronization; the
	// thread appears in every listed object's waiter set at once.
	waitObjects    []WaitObject
	wakeupCallback WakeupCallback

	// waitSeq breaks priority ties in wake order by attach time.
	waitSeq uint64

	// waiters are threads blocked on this thread's exit.
	waiters waiterSet

	// mutexWaiters are threads blocked on guest mutexes this thread
	// holds; they drive priority inheritance.
	mutexWaiters waiterSet

	// lockOwner is the holder of the mutex this thread waits on, zero if
	// none.
	lockOwner ThreadID

	mutexWaitAddress   guestarch.Addr
	condvarWaitAddress guestarch.Addr
	arbiterWaitAddress guestarch.Addr

	// waitHandle is the handle of this thread used as the new mutex
	// owner value when a contended mutex is handed over.
	waitHandle horizon.Handle
}

// TypeName implements Object.TypeName.
func (t *Thread) TypeName() string { return "Thread" }

// ID returns the thread's kernel-wide ID.
func (t *Thread) ID() ThreadID { return t.id }

// Owner returns the owning process.
func (t *Thread) Owner() *Process { return t.owner }

// Status returns the scheduling status.
func (t *Thread) Status() ThreadStatus { return t.status }

// Paused reports whether SetThreadActivity suspended the thread.
func (t *Thread) Paused() bool { return t.paused }

// SetPaused records the SetThreadActivity state.
func (t *Thread) SetPaused(p bool) {
	t.paused = p
	t.k.scheduler.PrepareReschedule(t.k.scheduler.CurrentCore())
}

// Priority returns the effective (inheritance-adjusted) priority.
func (t *Thread) Priority() uint32 { return t.currentPriority }

// NominalPriority returns the assigned priority.
func (t *Thread) NominalPriority() uint32 { return t.nominalPriority }

// SetNominalPriority changes the assigned priority and recomputes the
// effective one.
func (t *Thread) SetNominalPriority(p uint32) {
	t.nominalPriority = p
	t.updatePriority()
}

// IdealCore returns the preferred core.
func (t *Thread) IdealCore() int32 { return t.idealCore }

// AffinityMask returns the allowed-core bitmask.
func (t *Thread) AffinityMask() uint64 { return t.affinityMask }

// SetCoreMask updates the preferred core and the allowed-core mask.
func (t *Thread) SetCoreMask(ideal int32, mask uint64) {
	t.idealCore = ideal
	t.affinityMask = mask
}

// TLSAddr returns the thread-local storage page address.
func (t *Thread) TLSAddr() guestarch.Addr { return t.tlsAddr }

// Start makes a dormant thread runnable.
func (t *Thread) Start() result.Code {
	if t.status != StatusDormant {
		return result.ErrInvalidState
	}
	t.status = StatusReady
	t.k.scheduler.PrepareReschedule(t.k.scheduler.CurrentCore())
	return result.Success
}

// Exit terminates the thread: it leaves every wait list, wakes its joiners
// and disappears from the registry. Threads it left blocked on mutexes it
// still held stay blocked until their timeouts fire.
func (t *Thread) Exit() {
	t.clearSyncWaitState()
	t.detachAllWaitObjects()
	t.wakeupCallback = nil
	t.k.scheduler.CancelWakeup(t)
	t.status = StatusDead
	t.k.unregisterThread(t)
	t.waiters.wakeupAll(t)
	t.owner.onThreadExit(t)
	t.k.scheduler.PrepareReschedule(t.k.scheduler.CurrentCore())
}

// ShouldWait implements WaitObject.ShouldWait: waiting on a thread handle
// blocks until the thread exits.
func (t *Thread) ShouldWait(*Thread) bool {
	return t.status != StatusDead
}

// Acquire implements WaitObject.Acquire.
func (t *Thread) Acquire(*Thread) {}

// AddWaiter implements WaitObject.AddWaiter.
func (t *Thread) AddWaiter(w *Thread) { t.waiters.add(w) }

// RemoveWaiter implements WaitObject.RemoveWaiter.
func (t *Thread) RemoveWaiter(w *Thread) { t.waiters.remove(w) }

// WakeupAllWaiters implements WaitObject.WakeupAllWaiters.
func (t *Thread) WakeupAllWaiters() { t.waiters.wakeupAll(t) }

// AddMutexWaiter records w as blocked on a mutex t holds and propagates w's
// priority into t.
func (t *Thread) AddMutexWaiter(w *Thread) {
	t.mutexWaiters.add(w)
	w.lockOwner = t.id
	t.updatePriority()
}

// RemoveMutexWaiter removes w from t's mutex waiters and undoes its
// priority contribution.
func (t *Thread) RemoveMutexWaiter(w *Thread) {
	t.mutexWaiters.remove(w)
	if w.lockOwner == t.id {
		w.lockOwner = 0
	}
	t.updatePriority()
}

// mutexWaitersOn returns t's mutex waiters blocked on addr, best priority
// first.
func (t *Thread) mutexWaitersOn(addr guestarch.Addr) []*Thread {
	var out []*Thread
	for _, w := range t.mutexWaiters.threads() {
		if w.mutexWaitAddress == addr {
			out = append(out, w)
		}
	}
	sortThreadsByPriority(out)
	return out
}

// updatePriority recomputes the effective priority from the nominal
// priority and the best waiter priority, cascading through the lock this
// thread itself waits on.
func (t *Thread) updatePriority() {
	best := t.nominalPriority
	for _, w := range t.mutexWaiters.threads() {
		if w.currentPriority < best {
			best = w.currentPriority
		}
	}
	if best == t.currentPriority {
		return
	}
	t.currentPriority = best
	if owner := t.k.ThreadByID(t.lockOwner); owner != nil {
		owner.updatePriority()
	}
}

// detachAllWaitObjects removes the thread from every wait object's waiter
// set and clears the list.
func (t *Thread) detachAllWaitObjects() {
	for _, obj := range t.waitObjects {
		obj.RemoveWaiter(t)
	}
	t.waitObjects = nil
}

// clearSyncWaitState undoes mutex/condvar/arbiter wait bookkeeping.
func (t *Thread) clearSyncWaitState() {
	if owner := t.k.ThreadByID(t.lockOwner); owner != nil {
		owner.RemoveMutexWaiter(t)
	}
	t.lockOwner = 0
	t.mutexWaitAddress = 0
	t.condvarWaitAddress = 0
	t.arbiterWaitAddress = 0
	t.waitHandle = horizon.InvalidHandle
}

// wakeFromWaitObject wakes the thread because obj no longer requires
// waiting. Called with obj already known to be ready for t.
func (t *Thread) wakeFromWaitObject(obj WaitObject) {
	obj.Acquire(t)
	index := -1
	for i, o := range t.waitObjects {
		if o == obj {
			index = i
			break
		}
	}
	cb := t.wakeupCallback
	t.wakeupCallback = nil
	t.detachAllWaitObjects()
	t.k.scheduler.CancelWakeup(t)
	t.status = StatusReady
	if cb != nil {
		cb(t, WakeupSignal, obj, index)
	}
	t.k.scheduler.PrepareReschedule(t.k.scheduler.CurrentCore())
}

// OnWakeTimeout delivers a wait timeout. The scheduler's timer calls this
// under the kernel lock; a stale timer against a thread that already woke is
// a no-op.
func (t *Thread) OnWakeTimeout() {
	switch t.status {
	case StatusWaitSleep, StatusWaitSynchAny, StatusWaitMutex, StatusWaitArb:
	default:
		return
	}
	cb := t.wakeupCallback
	t.wakeupCallback = nil
	t.detachAllWaitObjects()
	t.clearSyncWaitState()
	t.status = StatusReady
	if cb != nil {
		cb(t, WakeupTimeout, nil, -1)
	}
	t.k.scheduler.PrepareReschedule(t.k.scheduler.CurrentCore())
}

// CancelWait wakes the thread out of a cancellable wait with
// ERR_SYNCHRONIZATION_CANCELED. Threads not in such a wait are unaffected.
func (t *Thread) CancelWait() {
	switch t.status {
	case StatusWaitSleep, StatusWaitSynchAny, StatusWaitArb:
	default:
		return
	}
	cb := t.wakeupCallback
	t.wakeupCallback = nil
	t.detachAllWaitObjects()
	t.clearSyncWaitState()
	t.k.scheduler.CancelWakeup(t)
	t.status = StatusReady
	if cb != nil {
		cb(t, WakeupCancel, nil, -1)
	} else {
		t.Context.Regs[0] = uint64(result.ErrSynchronizationCanceled)
	}
	t.k.scheduler.PrepareReschedule(t.k.scheduler.CurrentCore())
}

// resumeWithResult makes the thread runnable with code in its result
// register.
func (t *Thread) resumeWithResult(code result.Code) {
	t.Context.Regs[0] = uint64(code)
	t.wakeupCallback = nil
	t.k.scheduler.CancelWakeup(t)
	t.status = StatusReady
	t.k.scheduler.PrepareReschedule(t.k.scheduler.CurrentCore())
}

// sortThreadsByPriority orders best effective priority first, breaking ties
// by wait attach order.
func sortThreadsByPriority(ts []*Thread) {
	for i := 1; i < len(ts); i++ {
		for j := i; j > 0; j-- {
			a, b := ts[j-1], ts[j]
			if b.currentPriority < a.currentPriority ||
				(b.currentPriority == a.currentPriority && b.waitSeq < a.waitSeq) {
				ts[j-1], ts[j] = b, a
			} else {
				break
			}
		}
	}
}
