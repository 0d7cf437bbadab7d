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

func TestThreadTLSAllocation(t *testing.T) {
	k, _ := newTestKernel(t)
	p := newTestProcess(t, k)

	// The 32-bit layout has no tls_io region; TLS pages go just past the
	// heap region.
	heapEnd := p.MM().Layout().HeapEnd
	t1, _ := addThread(t, p, 20)
	t2, _ := addThread(t, p, 20)

	if t1.TLSAddr() != heapEnd {
		t.Errorf("first TLS at %#x, want %#x", uint64(t1.TLSAddr()), uint64(heapEnd))
	}
	if t2.TLSAddr() != heapEnd+guestarch.PageSize {
		t.Errorf("second TLS at %#x, want %#x", uint64(t2.TLSAddr()), uint64(heapEnd+guestarch.PageSize))
	}

	info := p.MM().QueryMemory(t1.TLSAddr())
	if info.State != horizon.StateThreadLocal {
		t.Errorf("TLS page state %v, want ThreadLocal", info.State)
	}
	if t1.Context.TPIDR != uint64(t1.TLSAddr()) {
		t.Errorf("TPIDR %#x, want TLS address", t1.Context.TPIDR)
	}
}

func TestCreateThreadInitialContext(t *testing.T) {
	k, _ := newTestKernel(t)
	p := newTestProcess(t, k)

	th, code := p.CreateThread("main", 0x200000, 0xABCD, 0x40010000, 44, horizon.ProcessorIDDontCare)
	if code.IsError() {
		t.Fatalf("CreateThread: %v", code)
	}
	if th.status != StatusDormant {
		t.Errorf("status %d, want Dormant", th.status)
	}
	if th.Context.PC != 0x200000 || th.Context.SP != 0x40010000 || th.Context.Regs[0] != 0xABCD {
		t.Errorf("initial context PC=%#x SP=%#x X0=%#x", th.Context.PC, th.Context.SP, th.Context.Regs[0])
	}
	if th.IdealCore() != p.IdealCore() {
		t.Errorf("processor -2 gave core %d, want process ideal %d", th.IdealCore(), p.IdealCore())
	}
	if p.Status() != ProcessRunning {
		t.Errorf("process status %v, want Running", p.Status())
	}
}

func TestThreadCountsAgainstResourceLimit(t *testing.T) {
	k, _ := newTestKernel(t)
	p := newTestProcess(t, k)
	rl := k.NewEmptyResourceLimit("")
	rl.SetLimitValue(horizon.ResourceThreads, 1)
	p.SetResourceLimit(rl)

	th, code := p.CreateThread("", 0x200000, 0, 0x40000000, 20, 0)
	if code.IsError() {
		t.Fatalf("CreateThread: %v", code)
	}
	if _, code := p.CreateThread("", 0x200000, 0, 0x40000000, 20, 0); code != result.ErrResourceLimitExceeded {
		t.Errorf("CreateThread past limit: %v, want ResourceLimitExceeded", code)
	}

	th.status = StatusRunning
	th.Exit()
	if _, code := p.CreateThread("", 0x200000, 0, 0x40000000, 20, 0); code.IsError() {
		t.Errorf("CreateThread after exit: %v", code)
	}
}

func TestProcessExitsWithLastThread(t *testing.T) {
	k, sched := newTestKernel(t)
	p := newTestProcess(t, k)
	t1, _ := addThread(t, p, 20)
	t2, _ := addThread(t, p, 20)

	sched.current = t1
	t1.Exit()
	if p.Status() != ProcessRunning {
		t.Errorf("process status %v with a live thread, want Running", p.Status())
	}

	sched.current = t2
	t2.Exit()
	if p.Status() != ProcessExited {
		t.Errorf("process status %v after last exit, want Exited", p.Status())
	}
	if _, ok := k.processes[p.ID()]; ok {
		t.Error("exited process still registered")
	}
}

func TestTerminateExitsAllThreads(t *testing.T) {
	k, sched := newTestKernel(t)
	p := newTestProcess(t, k)
	t1, _ := addThread(t, p, 20)
	t2, _ := addThread(t, p, 20)
	sched.current = t1

	p.Terminate()
	if t1.status != StatusDead || t2.status != StatusDead {
		t.Errorf("thread statuses %d, %d after terminate, want Dead", t1.status, t2.status)
	}
	if p.Status() != ProcessExited {
		t.Errorf("process status %v, want Exited", p.Status())
	}
	if len(k.AllThreads()) != 0 {
		t.Errorf("%d threads still registered", len(k.AllThreads()))
	}
}

func TestProcessEntropyPopulated(t *testing.T) {
	k, _ := newTestKernel(t)
	p := newTestProcess(t, k)
	e := p.Entropy()
	allZero := true
	for _, v := range e {
		if v != 0 {
			allZero = false
		}
	}
	if allZero {
		t.Error("entropy slots all zero")
	}
}
