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

// Package kernel implements the guest kernel's object model: processes,
// threads, handles, synchronization primitives, and the registries tying
// them together.
//
// All kernel state is guarded by a single lock (Kernel.Lock), acquired on
// SVC entry and released when guest code resumes. Methods in this package
// assume the lock is held unless stated otherwise.
package kernel

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"nxemu.dev/nxemu/pkg/hle/cpu"
)

// Kernel is the root of all guest kernel state.
type Kernel struct {
	// mu is the single kernel lock.
	mu sync.Mutex

	log       *logrus.Entry
	scheduler Scheduler
	backends  []cpu.Backend
	tk        *Timekeeper

	nextObjectID  ObjectID
	nextThreadID  ThreadID
	nextProcessID ProcessID

	// waitSeq stamps wait entries so that equal-priority wakeups happen
	// in attach order.
	waitSeq uint64

	threads    map[ThreadID]*Thread
	processes  map[ProcessID]*Process
	namedPorts map[string]*ClientPort

	// systemResourceLimit backs processes that were not given their own
	// limit.
	systemResourceLimit *ResourceLimit
}

// New returns an initialized kernel. backends holds one CPU backend per
// guest core; log may be nil for the default logger.
func New(scheduler Scheduler, backends []cpu.Backend, log *logrus.Entry) *Kernel {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	k := &Kernel{
		log:        log.WithField("subsystem", "kernel"),
		scheduler:  scheduler,
		backends:   backends,
		tk:         NewTimekeeper(),
		threads:    make(map[ThreadID]*Thread),
		processes:  make(map[ProcessID]*Process),
		namedPorts: make(map[string]*ClientPort),
	}
	k.systemResourceLimit = k.NewResourceLimit("system")
	return k
}

// Lock acquires the kernel lock. The CPU backend calls this on SVC entry.
func (k *Kernel) Lock() {
	k.mu.Lock()
}

// Unlock releases the kernel lock before resuming guest execution.
func (k *Kernel) Unlock() {
	k.mu.Unlock()
}

// Log returns the kernel's log entry.
func (k *Kernel) Log() *logrus.Entry {
	return k.log
}

// Scheduler returns the external scheduler.
func (k *Kernel) Scheduler() Scheduler {
	return k.scheduler
}

// Backends returns the per-core CPU backends.
func (k *Kernel) Backends() []cpu.Backend {
	return k.backends
}

// Timekeeper returns the kernel's time source.
func (k *Kernel) Timekeeper() *Timekeeper {
	return k.tk
}

// SystemResourceLimit returns the default resource limit.
func (k *Kernel) SystemResourceLimit() *ResourceLimit {
	return k.systemResourceLimit
}

func (k *Kernel) newObjectID() ObjectID {
	k.nextObjectID++
	return k.nextObjectID
}

func (k *Kernel) nextWaitSeq() uint64 {
	k.waitSeq++
	return k.waitSeq
}

// ThreadByID resolves a thread ID, returning nil for dead or unknown IDs.
func (k *Kernel) ThreadByID(id ThreadID) *Thread {
	return k.threads[id]
}

// AllThreads returns every live thread ordered by ID.
func (k *Kernel) AllThreads() []*Thread {
	out := make([]*Thread, 0, len(k.threads))
	for _, t := range k.threads {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// RegisterNamedPort makes port reachable through ConnectToNamedPort.
func (k *Kernel) RegisterNamedPort(name string, port *ClientPort) {
	k.namedPorts[name] = port
}

// FindNamedPort resolves a registered named port.
func (k *Kernel) FindNamedPort(name string) (*ClientPort, bool) {
	p, ok := k.namedPorts[name]
	return p, ok
}

// unregisterThread removes t from the registry once it is Dead. Waiter sets
// holding t's ID prune it lazily on their next resolution.
func (k *Kernel) unregisterThread(t *Thread) {
	delete(k.threads, t.id)
}
