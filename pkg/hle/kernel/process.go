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
	"math/rand"

	"nxemu.dev/nxemu/pkg/abi/horizon"
	"nxemu.dev/nxemu/pkg/guestarch"
	"nxemu.dev/nxemu/pkg/hle/cpu"
	"nxemu.dev/nxemu/pkg/hle/mm"
	"nxemu.dev/nxemu/pkg/hle/result"
)

// ProcessID is a kernel-wide unique process identifier.
type ProcessID uint64

// ProcessStatus is the lifecycle state of a process.
type ProcessStatus int32

const (
	// ProcessCreated processes have no started threads yet.
	ProcessCreated ProcessStatus = iota

	// ProcessRunning processes have at least one started thread.
	ProcessRunning

	// ProcessExited processes have terminated.
	ProcessExited
)

// Process owns an address space, a handle table and a set of threads.
type Process struct {
	baseObject

	k       *Kernel
	id      ProcessID
	titleID uint64
	status  ProcessStatus
	is64Bit bool

	mm      *mm.Manager
	handles *HandleTable
	monitor cpu.ExclusiveMonitor
	limit   *ResourceLimit

	entropy [horizon.EntropySlots]uint64

	allowedCoreMask     uint64
	allowedPriorityMask uint64
	idealCore           int32

	threads map[ThreadID]*Thread

	// tlsNext is the bump pointer for thread-local storage pages.
	tlsNext guestarch.Addr

	beingDebugged bool
}

// NewProcess creates a process with a fresh address space of the given
// type. The process uses the kernel's CPU backends and system resource
// limit.
func (k *Kernel) NewProcess(name string, titleID uint64, aspace horizon.AddressSpaceType) *Process {
	k.nextProcessID++
	p := &Process{
		baseObject:          baseObject{id: k.newObjectID(), name: name},
		k:                   k,
		id:                  k.nextProcessID,
		titleID:             titleID,
		is64Bit:             aspace == horizon.AddressSpace36Bit || aspace == horizon.AddressSpace39Bit,
		mm:                  mm.NewManager(aspace, k.backends),
		handles:             NewHandleTable(),
		limit:               k.systemResourceLimit,
		allowedCoreMask:     (1 << guestarch.CoreCount) - 1,
		allowedPriorityMask: ^uint64(0),
		threads:             make(map[ThreadID]*Thread),
	}
	p.monitor = cpu.NewSoftwareMonitor(p.mm)
	layout := p.mm.Layout()
	if layout.TLSIOEnd > layout.TLSIOBase {
		p.tlsNext = layout.TLSIOBase
	} else {
		// Narrow layouts have no tls_io region; place TLS pages just
		// past the heap region instead.
		p.tlsNext = layout.HeapEnd
	}
	for i := range p.entropy {
		p.entropy[i] = rand.Uint64()
	}
	k.processes[p.id] = p
	return p
}

// TypeName implements Object.TypeName.
func (p *Process) TypeName() string { return "Process" }

// ID returns the process ID.
func (p *Process) ID() ProcessID { return p.id }

// TitleID returns the title ID of the loaded program.
func (p *Process) TitleID() uint64 { return p.titleID }

// Status returns the lifecycle state.
func (p *Process) Status() ProcessStatus { return p.status }

// Is64Bit reports whether the process runs in AArch64 state.
func (p *Process) Is64Bit() bool { return p.is64Bit }

// MM returns the process's address space manager.
func (p *Process) MM() *mm.Manager { return p.mm }

// Handles returns the process's handle table.
func (p *Process) Handles() *HandleTable { return p.handles }

// Monitor returns the exclusive monitor covering this process's memory.
func (p *Process) Monitor() cpu.ExclusiveMonitor { return p.monitor }

// ResourceLimit returns the process's resource limit.
func (p *Process) ResourceLimit() *ResourceLimit { return p.limit }

// SetResourceLimit replaces the process's resource limit.
func (p *Process) SetResourceLimit(rl *ResourceLimit) { p.limit = rl }

// Entropy returns the process's random entropy slots.
func (p *Process) Entropy() [horizon.EntropySlots]uint64 { return p.entropy }

// AllowedCoreMask returns the cores this process's threads may run on.
func (p *Process) AllowedCoreMask() uint64 { return p.allowedCoreMask }

// AllowedPriorityMask returns the permitted priority bitmask.
func (p *Process) AllowedPriorityMask() uint64 { return p.allowedPriorityMask }

// IdealCore returns the default core for new threads.
func (p *Process) IdealCore() int32 { return p.idealCore }

// BeingDebugged reports the debugger attachment state exposed via GetInfo.
func (p *Process) BeingDebugged() bool { return p.beingDebugged }

// CreateThread creates a dormant thread. entry, arg and stackTop seed the
// thread's initial register context; processor -2 selects the process's
// ideal core.
func (p *Process) CreateThread(name string, entry guestarch.Addr, arg uint64, stackTop guestarch.Addr, priority uint32, processor int32) (*Thread, result.Code) {
	if code := p.limit.Reserve(horizon.ResourceThreads, 1); code.IsError() {
		return nil, code
	}
	if processor == horizon.ProcessorIDDontCare {
		processor = p.idealCore
	}

	tls, code := p.allocateTLS()
	if code.IsError() {
		p.limit.Release(horizon.ResourceThreads, 1)
		return nil, code
	}

	p.k.nextThreadID++
	t := &Thread{
		baseObject:      baseObject{id: p.k.newObjectID(), name: name},
		k:               p.k,
		id:              p.k.nextThreadID,
		owner:           p,
		nominalPriority: priority,
		currentPriority: priority,
		idealCore:       processor,
		affinityMask:    1 << uint(processor),
		status:          StatusDormant,
		tlsAddr:         tls,
	}
	t.waiters.k = p.k
	t.mutexWaiters.k = p.k
	t.Context.PC = uint64(entry)
	t.Context.SP = uint64(stackTop)
	t.Context.Regs[0] = arg
	t.Context.TPIDR = uint64(tls)

	p.k.threads[t.id] = t
	p.threads[t.id] = t
	if p.status == ProcessCreated {
		p.status = ProcessRunning
	}
	return t, result.Success
}

// allocateTLS maps one thread-local storage page.
func (p *Process) allocateTLS() (guestarch.Addr, result.Code) {
	addr := p.tlsNext
	block := mm.NewBlock(guestarch.PageSize)
	if _, code := p.mm.MapMemoryBlock(addr, block, 0, guestarch.PageSize, horizon.StateThreadLocal); code.IsError() {
		return 0, code
	}
	p.tlsNext += guestarch.PageSize
	return addr, result.Success
}

// onThreadExit drops an exited thread; the process dies with its last
// thread.
func (p *Process) onThreadExit(t *Thread) {
	p.limit.Release(horizon.ResourceThreads, 1)
	delete(p.threads, t.id)
	if len(p.threads) == 0 {
		p.status = ProcessExited
		delete(p.k.processes, p.id)
	}
}

// Terminate force-exits every thread of the process.
func (p *Process) Terminate() {
	p.status = ProcessExited
	for _, t := range p.threadsSnapshot() {
		t.Exit()
	}
}

func (p *Process) threadsSnapshot() []*Thread {
	out := make([]*Thread, 0, len(p.threads))
	for _, t := range p.threads {
		out = append(out, t)
	}
	return out
}
