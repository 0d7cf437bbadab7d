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
	"time"

	"nxemu.dev/nxemu/pkg/abi/horizon"
	"nxemu.dev/nxemu/pkg/guestarch"
	"nxemu.dev/nxemu/pkg/hle/kernel"
	"nxemu.dev/nxemu/pkg/hle/result"
)

// getInfo runs GetInfo against the current process pseudo-handle.
func (e *testEnv) getInfo(infoType horizon.InfoType, sub uint64) uint64 {
	e.t.Helper()
	args := e.call(horizon.SVCGetInfo, 0, uint64(infoType), uint64(horizon.CurrentProcess), sub)
	if got := resultOf(args); got != result.Success {
		e.t.Fatalf("GetInfo(%d): %v", infoType, got)
	}
	return args[1].Value
}

func TestGetInfoRegions(t *testing.T) {
	e := newTestEnv(t)
	layout := e.p.MM().Layout()

	for _, test := range []struct {
		name     string
		infoType horizon.InfoType
		want     uint64
	}{
		{"heap base", horizon.InfoHeapRegionBaseAddr, uint64(layout.HeapBase)},
		{"heap size", horizon.InfoHeapRegionSize, uint64(layout.HeapEnd - layout.HeapBase)},
		{"map base", horizon.InfoMapRegionBaseAddr, uint64(layout.MapBase)},
		{"map size", horizon.InfoMapRegionSize, uint64(layout.MapEnd - layout.MapBase)},
		{"aslr base", horizon.InfoASLRRegionBaseAddr, uint64(layout.ASLRBase)},
		{"aslr size", horizon.InfoASLRRegionSize, uint64(layout.ASLREnd - layout.ASLRBase)},
		{"new map base", horizon.InfoNewMapRegionBaseAddr, uint64(layout.NewMapBase)},
		{"new map size", horizon.InfoNewMapRegionSize, uint64(layout.NewMapEnd - layout.NewMapBase)},
		{"core mask", horizon.InfoAllowedCPUCoreMask, (1 << guestarch.CoreCount) - 1},
		{"title ID", horizon.InfoTitleID, 0x0100000000010000},
	} {
		if got := e.getInfo(test.infoType, 0); got != test.want {
			t.Errorf("%s = %#x, want %#x", test.name, got, test.want)
		}
	}
}

func TestGetInfoEntropy(t *testing.T) {
	e := newTestEnv(t)
	for sub := uint64(0); sub < horizon.EntropySlots; sub++ {
		if got := e.getInfo(horizon.InfoRandomEntropy, sub); got != e.p.Entropy()[sub] {
			t.Errorf("entropy[%d] = %#x", sub, got)
		}
	}
	args := e.call(horizon.SVCGetInfo, 0, uint64(horizon.InfoRandomEntropy),
		uint64(horizon.CurrentProcess), horizon.EntropySlots)
	if got := resultOf(args); got != result.ErrInvalidCombination {
		t.Errorf("entropy slot out of range: %v, want InvalidCombination", got)
	}
}

func TestGetInfoErrors(t *testing.T) {
	e := newTestEnv(t)
	args := e.call(horizon.SVCGetInfo, 0, 0xFFFF, uint64(horizon.CurrentProcess), 0)
	if got := resultOf(args); got != result.ErrInvalidEnumValue {
		t.Errorf("unknown info type: %v, want InvalidEnumValue", got)
	}
	args = e.call(horizon.SVCGetInfo, 0, uint64(horizon.InfoHeapRegionBaseAddr), 0x1234, 0)
	if got := resultOf(args); got != result.ErrInvalidHandle {
		t.Errorf("bogus handle: %v, want InvalidHandle", got)
	}
}

func TestGetInfoHeapUsage(t *testing.T) {
	e := newTestEnv(t)
	e.call(horizon.SVCSetHeapSize, 0, horizon.HeapGranularity)
	if got := e.getInfo(horizon.InfoTotalHeapUsage, 0); got != horizon.HeapGranularity {
		t.Errorf("heap usage %#x, want %#x", got, uint64(horizon.HeapGranularity))
	}
	if got := e.getInfo(horizon.InfoTotalMemoryUsage, 0); got < horizon.HeapGranularity {
		t.Errorf("total usage %#x below heap usage", got)
	}
}

func TestGetSystemTickSVC(t *testing.T) {
	e := newTestEnv(t)
	base := time.Now()
	e.k.Timekeeper().SetNowFunc(func() time.Time { return base })
	v1 := e.call(horizon.SVCGetSystemTick)[0].Value
	e.k.Timekeeper().SetNowFunc(func() time.Time { return base.Add(time.Second) })
	v2 := e.call(horizon.SVCGetSystemTick)[0].Value
	if v2-v1 != horizon.TicksPerSecond {
		t.Errorf("tick delta %d over one second, want %d", v2-v1, uint64(horizon.TicksPerSecond))
	}
}

func TestGetProcessIDSVC(t *testing.T) {
	e := newTestEnv(t)
	args := e.call(horizon.SVCGetProcessID, 0, uint64(horizon.CurrentProcess))
	if got := resultOf(args); got != result.Success {
		t.Fatalf("GetProcessId: %v", got)
	}
	if args[1].Value != uint64(e.p.ID()) {
		t.Errorf("process ID %d, want %d", args[1].Value, e.p.ID())
	}
	args = e.call(horizon.SVCGetProcessID, 0, 0x1234)
	if got := resultOf(args); got != result.ErrInvalidHandle {
		t.Errorf("bogus handle: %v, want InvalidHandle", got)
	}
}

func TestGetProcessInfoSVC(t *testing.T) {
	e := newTestEnv(t)
	args := e.call(horizon.SVCGetProcessInfo, 0, uint64(horizon.CurrentProcess), 0)
	if got := resultOf(args); got != result.Success {
		t.Fatalf("GetProcessInfo: %v", got)
	}
	if args[1].Value != uint64(kernel.ProcessRunning) {
		t.Errorf("process state %d, want Running", args[1].Value)
	}
	args = e.call(horizon.SVCGetProcessInfo, 0, uint64(horizon.CurrentProcess), 1)
	if got := resultOf(args); got != result.ErrInvalidEnumValue {
		t.Errorf("unknown info type: %v, want InvalidEnumValue", got)
	}
}

func TestBreakSVC(t *testing.T) {
	// With the signal-debugger flag the caller survives.
	e := newTestEnv(t)
	args := e.call(horizon.SVCBreak, uint64(horizon.BreakSignalDebuggerFlag), 0, 0)
	if got := resultOf(args); got != result.Success {
		t.Fatalf("Break with debugger flag: %v", got)
	}
	if e.p.Status() != kernel.ProcessRunning {
		t.Errorf("process status %v, want still Running", e.p.Status())
	}

	// Without it the process is torn down.
	e2 := newTestEnv(t)
	e2.call(horizon.SVCBreak, 0, 0, 0)
	if e2.p.Status() != kernel.ProcessExited {
		t.Errorf("process status %v after fatal break, want Exited", e2.p.Status())
	}
}

func TestExitProcessSVC(t *testing.T) {
	e := newTestEnv(t)
	e.call(horizon.SVCExitProcess)
	if e.p.Status() != kernel.ProcessExited {
		t.Errorf("process status %v, want Exited", e.p.Status())
	}
	if e.main.Status() != kernel.StatusDead {
		t.Errorf("main thread status %d, want Dead", e.main.Status())
	}
}

func TestCloseHandleSVC(t *testing.T) {
	e := newTestEnv(t)
	_, rh := e.createEvent(horizon.ResetSticky)

	args := e.call(horizon.SVCCloseHandle, rh)
	if got := resultOf(args); got != result.Success {
		t.Fatalf("CloseHandle: %v", got)
	}
	args = e.call(horizon.SVCCloseHandle, rh)
	if got := resultOf(args); got != result.ErrInvalidHandle {
		t.Errorf("double close: %v, want InvalidHandle", got)
	}
}

func TestResourceLimitSVCs(t *testing.T) {
	e := newTestEnv(t)

	args := e.call(horizon.SVCCreateResourceLimit)
	if got := resultOf(args); got != result.Success {
		t.Fatalf("CreateResourceLimit: %v", got)
	}
	h := args[1].Value

	args = e.call(horizon.SVCSetResourceLimitLimitValue, h, uint64(horizon.ResourceEvents), 16)
	if got := resultOf(args); got != result.Success {
		t.Fatalf("SetResourceLimitLimitValue: %v", got)
	}
	args = e.call(horizon.SVCGetResourceLimitLimitValue, 0, h, uint64(horizon.ResourceEvents))
	if got := resultOf(args); got != result.Success {
		t.Fatalf("GetResourceLimitLimitValue: %v", got)
	}
	if args[1].Value != 16 {
		t.Errorf("limit %d, want 16", args[1].Value)
	}
	args = e.call(horizon.SVCGetResourceLimitCurrentValue, 0, h, uint64(horizon.ResourceEvents))
	if args[1].Value != 0 {
		t.Errorf("fresh limit usage %d, want 0", args[1].Value)
	}

	// The current process pseudo-handle denotes the caller's own limit.
	args = e.call(horizon.SVCGetResourceLimitCurrentValue, 0,
		uint64(horizon.CurrentProcess), uint64(horizon.ResourceThreads))
	if got := resultOf(args); got != result.Success {
		t.Fatalf("pseudo-handle: %v", got)
	}
	if args[1].Value == 0 {
		t.Error("thread usage 0 with a live thread")
	}
}

func TestConnectToNamedPortSVC(t *testing.T) {
	e := newTestEnv(t)
	port := e.k.NewClientPort("sm:", 8, nil)
	e.k.RegisterNamedPort("sm:", port)

	nameAddr := guestarch.Addr(0x30000000)
	e.mapPage(nameAddr)
	writeCString := func(s string) {
		buf := append([]byte(s), 0)
		if !e.p.MM().WriteBlock(nameAddr, buf) {
			t.Fatal("WriteBlock failed")
		}
	}

	writeCString("sm:")
	args := e.call(horizon.SVCConnectToNamedPort, 0, uint64(nameAddr))
	if got := resultOf(args); got != result.Success {
		t.Fatalf("ConnectToNamedPort: %v", got)
	}
	if _, ok := kernel.GetAs[*kernel.ClientSession](e.p.Handles(), horizon.Handle(args[1].Value)); !ok {
		t.Error("returned handle is not a client session")
	}

	writeCString("nosuchport")
	args = e.call(horizon.SVCConnectToNamedPort, 0, uint64(nameAddr))
	if got := resultOf(args); got != result.ErrNotFound {
		t.Errorf("unknown port: %v, want NotFound", got)
	}

	writeCString("twelve chars")
	args = e.call(horizon.SVCConnectToNamedPort, 0, uint64(nameAddr))
	if got := resultOf(args); got != result.ErrOutOfRange {
		t.Errorf("oversized name: %v, want OutOfRange", got)
	}

	args = e.call(horizon.SVCConnectToNamedPort, 0, 0x20000000)
	if got := resultOf(args); got != result.ErrInvalidPointer {
		t.Errorf("unmapped name: %v, want InvalidPointer", got)
	}
}

func TestCloseHandleReleasesPortSession(t *testing.T) {
	e := newTestEnv(t)
	port := e.k.NewClientPort("one:", 1, nil)
	e.k.RegisterNamedPort("one:", port)

	nameAddr := guestarch.Addr(0x30000000)
	e.mapPage(nameAddr)
	e.p.MM().WriteBlock(nameAddr, append([]byte("one:"), 0))

	args := e.call(horizon.SVCConnectToNamedPort, 0, uint64(nameAddr))
	if got := resultOf(args); got != result.Success {
		t.Fatalf("ConnectToNamedPort: %v", got)
	}
	h := args[1].Value

	// The port is single-session; a second connect fails while the first
	// handle is open and succeeds once it is closed.
	args = e.call(horizon.SVCConnectToNamedPort, 0, uint64(nameAddr))
	if got := resultOf(args); got != result.ErrOutOfRange {
		t.Fatalf("second connect: %v, want OutOfRange", got)
	}
	args = e.call(horizon.SVCCloseHandle, h)
	if got := resultOf(args); got != result.Success {
		t.Fatalf("CloseHandle: %v", got)
	}
	args = e.call(horizon.SVCConnectToNamedPort, 0, uint64(nameAddr))
	if got := resultOf(args); got != result.Success {
		t.Errorf("connect after close: %v", got)
	}
}

func TestSendSyncRequestSVC(t *testing.T) {
	e := newTestEnv(t)
	calls := 0
	port := e.k.NewClientPort("srv:", 8, func(ctx *kernel.Context, s *kernel.ServerSession) result.Code {
		calls++
		return result.Success
	})
	e.k.RegisterNamedPort("srv:", port)

	nameAddr := guestarch.Addr(0x30000000)
	e.mapPage(nameAddr)
	e.p.MM().WriteBlock(nameAddr, append([]byte("srv:"), 0))
	args := e.call(horizon.SVCConnectToNamedPort, 0, uint64(nameAddr))
	if got := resultOf(args); got != result.Success {
		t.Fatalf("ConnectToNamedPort: %v", got)
	}
	h := args[1].Value

	args = e.call(horizon.SVCSendSyncRequest, h)
	if got := resultOf(args); got != result.Success {
		t.Fatalf("SendSyncRequest: %v", got)
	}
	if calls != 1 {
		t.Errorf("handler called %d times, want 1", calls)
	}

	args = e.call(horizon.SVCSendSyncRequest, 0x1234)
	if got := resultOf(args); got != result.ErrInvalidHandle {
		t.Errorf("bogus handle: %v, want InvalidHandle", got)
	}
}

func TestOutputDebugStringSVC(t *testing.T) {
	e := newTestEnv(t)
	addr := guestarch.Addr(0x30000000)
	e.mapPage(addr)
	msg := []byte("hello from the guest")
	e.p.MM().WriteBlock(addr, msg)

	args := e.call(horizon.SVCOutputDebugString, uint64(addr), uint64(len(msg)))
	if got := resultOf(args); got != result.Success {
		t.Errorf("OutputDebugString: %v", got)
	}
	args = e.call(horizon.SVCOutputDebugString, 0x20000000, 16)
	if got := resultOf(args); got != result.ErrInvalidPointer {
		t.Errorf("unmapped string: %v, want InvalidPointer", got)
	}
	// An absurd guest-supplied length is rejected before anything is
	// allocated for the copy.
	args = e.call(horizon.SVCOutputDebugString, uint64(addr), 1<<62)
	if got := resultOf(args); got != result.ErrInvalidPointer {
		t.Errorf("oversized length: %v, want InvalidPointer", got)
	}
}
