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
	"testing"

	"nxemu.dev/nxemu/pkg/abi/horizon"
	"nxemu.dev/nxemu/pkg/guestarch"
	"nxemu.dev/nxemu/pkg/hle/result"
)

const (
	cvMutexAddr = guestarch.Addr(0x40000000)
	cvKeyAddr   = guestarch.Addr(0x40000100)
)

// parkOnCondvar makes th hold the mutex and then wait on the key, the way a
// guest pthread_cond_wait would.
func parkOnCondvar(t *testing.T, k *Kernel, sched *testScheduler, p *Process, th *Thread, h horizon.Handle, timeout int64) {
	t.Helper()
	ctx := &Context{Kernel: k}
	sched.current = th
	write32(t, p, cvMutexAddr, uint32(h))
	if code := CondvarWait(ctx, cvMutexAddr, cvKeyAddr, h, timeout); code.IsError() {
		t.Fatalf("CondvarWait: %v", code)
	}
	if th.status != StatusWaitMutex {
		t.Fatalf("waiter status %d, want WaitMutex", th.status)
	}
	if got := read32(t, p, cvMutexAddr); got != 0 {
		t.Fatalf("mutex word %#x after CondvarWait, want released", got)
	}
}

func TestCondvarSignalWakesByPriority(t *testing.T) {
	k, sched := newTestKernel(t)
	p := newTestProcess(t, k)
	mapPage(t, p, cvMutexAddr)
	tA, hA := addThread(t, p, 30)
	tB, hB := addThread(t, p, 20)
	tC, hC := addThread(t, p, 10)
	signaler, _ := addThread(t, p, 40)

	parkOnCondvar(t, k, sched, p, tA, hA, -1)
	parkOnCondvar(t, k, sched, p, tB, hB, -1)
	parkOnCondvar(t, k, sched, p, tC, hC, -1)

	sched.current = signaler
	ctx := &Context{Kernel: k}
	if code := CondvarSignal(ctx, cvKeyAddr, 2); code.IsError() {
		t.Fatalf("CondvarSignal: %v", code)
	}

	// tC has the best priority, so it gets the free mutex outright.
	if tC.status != StatusReady {
		t.Errorf("tC status %d, want Ready", tC.status)
	}
	if got := result.Code(tC.Context.Regs[0]); got != result.Success {
		t.Errorf("tC result %v, want Success", got)
	}
	// tB found the mutex held by tC and was requeued on it.
	if tB.status != StatusWaitMutex {
		t.Errorf("tB status %d, want WaitMutex", tB.status)
	}
	if tB.condvarWaitAddress != 0 {
		t.Errorf("tB still attached to the key: %#x", uint64(tB.condvarWaitAddress))
	}
	if tB.lockOwner != tC.id {
		t.Errorf("tB.lockOwner = %d, want %d", tB.lockOwner, tC.id)
	}
	if got := read32(t, p, cvMutexAddr); got != uint32(hC)|horizon.MutexHasWaitersFlag {
		t.Errorf("mutex word %#x, want %#x", got, uint32(hC)|horizon.MutexHasWaitersFlag)
	}
	// tA never made the cut.
	if tA.status != StatusWaitMutex || tA.condvarWaitAddress != cvKeyAddr {
		t.Errorf("tA woken early: status %d, key %#x", tA.status, uint64(tA.condvarWaitAddress))
	}
}

func TestCondvarSignalAllWithNegativeTarget(t *testing.T) {
	k, sched := newTestKernel(t)
	p := newTestProcess(t, k)
	mapPage(t, p, cvMutexAddr)
	tA, hA := addThread(t, p, 30)
	tB, hB := addThread(t, p, 20)
	signaler, _ := addThread(t, p, 40)

	parkOnCondvar(t, k, sched, p, tA, hA, -1)
	parkOnCondvar(t, k, sched, p, tB, hB, -1)

	sched.current = signaler
	ctx := &Context{Kernel: k}
	if code := CondvarSignal(ctx, cvKeyAddr, -1); code.IsError() {
		t.Fatalf("CondvarSignal: %v", code)
	}
	if tA.condvarWaitAddress != 0 || tB.condvarWaitAddress != 0 {
		t.Error("waiters still attached to the key after wake-all")
	}
	// tB took the mutex; tA is its mutex waiter now.
	if tB.status != StatusReady {
		t.Errorf("tB status %d, want Ready", tB.status)
	}
	if tA.lockOwner != tB.id {
		t.Errorf("tA.lockOwner = %d, want %d", tA.lockOwner, tB.id)
	}
}

func TestCondvarSignalNoWaiters(t *testing.T) {
	k, sched := newTestKernel(t)
	p := newTestProcess(t, k)
	th, _ := addThread(t, p, 20)
	sched.current = th
	ctx := &Context{Kernel: k}
	if code := CondvarSignal(ctx, cvKeyAddr, -1); code.IsError() {
		t.Errorf("CondvarSignal with no waiters: %v", code)
	}
}

func TestCondvarWaitTimeout(t *testing.T) {
	k, sched := newTestKernel(t)
	p := newTestProcess(t, k)
	mapPage(t, p, cvMutexAddr)
	th, h := addThread(t, p, 20)

	parkOnCondvar(t, k, sched, p, th, h, 1000000)
	if !sched.hasTimer(th) {
		t.Fatal("timed wait did not arm a timer")
	}

	sched.fireTimer(t, th)
	if th.status != StatusReady {
		t.Errorf("status %d after timeout, want Ready", th.status)
	}
	if got := result.Code(th.Context.Regs[0]); got != result.ErrTimeout {
		t.Errorf("result %v, want Timeout", got)
	}
	if th.condvarWaitAddress != 0 || th.mutexWaitAddress != 0 {
		t.Error("sync wait state not cleared after timeout")
	}
}

func TestCondvarRequeuedWaiterKeepsTimeout(t *testing.T) {
	k, sched := newTestKernel(t)
	p := newTestProcess(t, k)
	mapPage(t, p, cvMutexAddr)
	tA, hA := addThread(t, p, 30)
	tB, hB := addThread(t, p, 20)
	signaler, _ := addThread(t, p, 40)

	parkOnCondvar(t, k, sched, p, tA, hA, 1000000)
	parkOnCondvar(t, k, sched, p, tB, hB, -1)

	sched.current = signaler
	ctx := &Context{Kernel: k}
	if code := CondvarSignal(ctx, cvKeyAddr, -1); code.IsError() {
		t.Fatalf("CondvarSignal: %v", code)
	}

	// tB took the mutex; tA is requeued on it with its timeout still armed.
	if tA.lockOwner != tB.id {
		t.Fatalf("tA.lockOwner = %d, want %d", tA.lockOwner, tB.id)
	}
	if !sched.hasTimer(tA) {
		t.Fatal("requeued waiter lost its timer")
	}
	sched.fireTimer(t, tA)
	if got := result.Code(tA.Context.Regs[0]); got != result.ErrTimeout {
		t.Errorf("result %v, want Timeout", got)
	}
	// Timing out off the mutex queue undoes the priority contribution.
	if len(tB.mutexWaiters.ids) != 0 {
		t.Errorf("tB still has mutex waiters: %v", tB.mutexWaiters.ids)
	}
	if got := tB.Priority(); got != 20 {
		t.Errorf("tB priority %d, want nominal 20", got)
	}
}

func TestCondvarWaitMisalignedMutex(t *testing.T) {
	k, sched := newTestKernel(t)
	p := newTestProcess(t, k)
	th, h := addThread(t, p, 20)
	sched.current = th
	ctx := &Context{Kernel: k}
	if code := CondvarWait(ctx, cvMutexAddr+2, cvKeyAddr, h, -1); code != result.ErrInvalidAddress {
		t.Errorf("CondvarWait: %v, want InvalidAddress", code)
	}
}
