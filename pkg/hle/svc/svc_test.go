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
	"testing"

	"nxemu.dev/nxemu/pkg/abi/horizon"
	"nxemu.dev/nxemu/pkg/guestarch"
	"nxemu.dev/nxemu/pkg/hle/arch"
	"nxemu.dev/nxemu/pkg/hle/cpu"
	"nxemu.dev/nxemu/pkg/hle/kernel"
	"nxemu.dev/nxemu/pkg/hle/mm"
	"nxemu.dev/nxemu/pkg/hle/result"
)

// testScheduler satisfies kernel.Scheduler with hand-driven wakeups.
type testScheduler struct {
	current *kernel.Thread
	core    int
	timers  map[kernel.ThreadID]int64
}

func (s *testScheduler) CurrentThread() *kernel.Thread { return s.current }

func (s *testScheduler) CurrentCore() int { return s.core }

func (s *testScheduler) PrepareReschedule(int) {}

func (s *testScheduler) WakeAfterDelay(t *kernel.Thread, ns int64) {
	if ns < 0 {
		return
	}
	s.timers[t.ID()] = ns
}

func (s *testScheduler) CancelWakeup(t *kernel.Thread) { delete(s.timers, t.ID()) }

// testEnv is one guest process with a running main thread and a dispatcher.
type testEnv struct {
	t     *testing.T
	k     *kernel.Kernel
	sched *testScheduler
	d     *Dispatcher
	p     *kernel.Process
	main  *kernel.Thread
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	sched := &testScheduler{timers: make(map[kernel.ThreadID]int64)}
	backends := make([]cpu.Backend, guestarch.CoreCount)
	for i := range backends {
		backends[i] = cpu.NullBackend{}
	}
	k := kernel.New(sched, backends, nil)
	// The 32-bit layout keeps the shadow page table small.
	p := k.NewProcess("test", 0x0100000000010000, horizon.AddressSpace32Bit)
	main, code := p.CreateThread("main", 0x200000, 0, 0x40000000, 44, 0)
	if code.IsError() {
		t.Fatalf("CreateThread: %v", code)
	}
	if code := main.Start(); code.IsError() {
		t.Fatalf("Start: %v", code)
	}
	sched.current = main
	return &testEnv{t: t, k: k, sched: sched, d: NewDispatcher(k), p: p, main: main}
}

// call dispatches one SVC with X0.. seeded from in.
func (e *testEnv) call(imm uint32, in ...uint64) *arch.SVCArguments {
	var args arch.SVCArguments
	for i, v := range in {
		args[i].Value = v
	}
	e.d.Call(imm, &args)
	return &args
}

func resultOf(args *arch.SVCArguments) result.Code {
	return result.Code(uint32(args[0].Value))
}

func (e *testEnv) mapPage(base guestarch.Addr) {
	e.t.Helper()
	if _, code := e.p.MM().MapMemoryBlock(base, mm.NewBlock(guestarch.PageSize), 0, guestarch.PageSize, horizon.StateStack); code.IsError() {
		e.t.Fatalf("MapMemoryBlock(%#x): %v", uint64(base), code)
	}
}

func (e *testEnv) write32(addr guestarch.Addr, v uint32) {
	e.t.Helper()
	if !e.p.MM().Write32(addr, v) {
		e.t.Fatalf("Write32(%#x) failed", uint64(addr))
	}
}

func (e *testEnv) read32(addr guestarch.Addr) uint32 {
	e.t.Helper()
	v, ok := e.p.MM().Read32(addr)
	if !ok {
		e.t.Fatalf("Read32(%#x) failed", uint64(addr))
	}
	return v
}

func TestDispatcherUnknownSVC(t *testing.T) {
	e := newTestEnv(t)
	args := e.call(0x7F)
	if got := resultOf(args); got != result.ErrInvalidEnumValue {
		t.Errorf("unknown SVC = %v, want InvalidEnumValue", got)
	}
}

func TestSVCName(t *testing.T) {
	if got := Name(horizon.SVCSetHeapSize); got != "SetHeapSize" {
		t.Errorf("Name(SetHeapSize) = %q", got)
	}
	if got := Name(0x7F); got != "unknown" {
		t.Errorf("Name(0x7F) = %q", got)
	}
}

func TestSetHeapSize(t *testing.T) {
	e := newTestEnv(t)
	heapBase := uint64(e.p.MM().Layout().HeapBase)

	args := e.call(horizon.SVCSetHeapSize, 0, horizon.HeapGranularity)
	if got := resultOf(args); got != result.Success {
		t.Fatalf("SetHeapSize: %v", got)
	}
	if args[1].Value != heapBase {
		t.Errorf("heap base %#x, want %#x", args[1].Value, heapBase)
	}

	// Contents survive growing.
	e.write32(guestarch.Addr(heapBase), 0xFEEDFACE)
	args = e.call(horizon.SVCSetHeapSize, 0, 2*horizon.HeapGranularity)
	if got := resultOf(args); got != result.Success {
		t.Fatalf("grow: %v", got)
	}
	if got := e.read32(guestarch.Addr(heapBase)); got != 0xFEEDFACE {
		t.Errorf("heap word %#x after grow, want 0xFEEDFACE", got)
	}

	// And shrinking back.
	args = e.call(horizon.SVCSetHeapSize, 0, horizon.HeapGranularity)
	if got := resultOf(args); got != result.Success {
		t.Fatalf("shrink: %v", got)
	}
	if got := e.read32(guestarch.Addr(heapBase)); got != 0xFEEDFACE {
		t.Errorf("heap word %#x after shrink, want 0xFEEDFACE", got)
	}
}

func TestSetHeapSizeBadSizes(t *testing.T) {
	e := newTestEnv(t)
	for _, size := range []uint64{
		0x1000,               // not heap-granularity aligned
		horizon.HeapSizeMax,  // at the exclusive bound
		horizon.HeapSizeMax + horizon.HeapGranularity,
	} {
		args := e.call(horizon.SVCSetHeapSize, 0, size)
		if got := resultOf(args); got != result.ErrInvalidSize {
			t.Errorf("SetHeapSize(%#x) = %v, want InvalidSize", size, got)
		}
	}
}

func TestSetHeapSizeZeroWithoutHeap(t *testing.T) {
	e := newTestEnv(t)
	args := e.call(horizon.SVCSetHeapSize, 0, 0)
	if got := resultOf(args); got != result.Success {
		t.Fatalf("SetHeapSize(0): %v", got)
	}
	if args[1].Value != uint64(e.p.MM().Layout().HeapBase) {
		t.Errorf("heap base %#x", args[1].Value)
	}
}
