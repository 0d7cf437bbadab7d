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
)

// Context carries the calling thread's identity into SVC handlers. Handlers
// receive an explicit Context rather than reading process-wide globals.
type Context struct {
	Kernel *Kernel
}

// CurrentThread returns the thread that trapped into the kernel.
func (c *Context) CurrentThread() *Thread {
	return c.Kernel.scheduler.CurrentThread()
}

// CurrentProcess returns the process owning the current thread.
func (c *Context) CurrentProcess() *Process {
	return c.CurrentThread().owner
}

// CurrentCore returns the trapping core number.
func (c *Context) CurrentCore() int {
	return c.Kernel.scheduler.CurrentCore()
}

// GetObject resolves a handle in the current process's handle table,
// honoring the pseudo-handles for the current thread and process.
func (c *Context) GetObject(h horizon.Handle) (Object, bool) {
	switch h {
	case horizon.CurrentThread:
		return c.CurrentThread(), true
	case horizon.CurrentProcess:
		return c.CurrentProcess(), true
	}
	return c.CurrentProcess().Handles().Get(h)
}

// GetThread resolves a handle to a thread.
func (c *Context) GetThread(h horizon.Handle) (*Thread, bool) {
	obj, ok := c.GetObject(h)
	if !ok {
		return nil, false
	}
	t, ok := obj.(*Thread)
	return t, ok
}

// GetProcess resolves a handle to a process.
func (c *Context) GetProcess(h horizon.Handle) (*Process, bool) {
	obj, ok := c.GetObject(h)
	if !ok {
		return nil, false
	}
	p, ok := obj.(*Process)
	return p, ok
}

// GetWaitObject resolves a handle to a waitable object.
func (c *Context) GetWaitObject(h horizon.Handle) (WaitObject, bool) {
	obj, ok := c.GetObject(h)
	if !ok {
		return nil, false
	}
	w, ok := obj.(WaitObject)
	return w, ok
}
