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
	"nxemu.dev/nxemu/pkg/hle/result"
)

// WaitSynchronization waits for any of objects to signal. If one is already
// ready it is acquired and its index returned without suspending. Otherwise
// the caller is parked on every object at once; the returned code is the
// provisional register value, rewritten by the wakeup callback when the
// thread actually resumes.
func WaitSynchronization(ctx *Context, objects []WaitObject, timeout int64) (int32, result.Code) {
	current := ctx.CurrentThread()

	for i, obj := range objects {
		if !obj.ShouldWait(current) {
			obj.Acquire(current)
			return int32(i), result.Success
		}
	}

	if timeout == 0 {
		return 0, result.ErrTimeout
	}

	for _, obj := range objects {
		obj.AddWaiter(current)
	}
	current.waitObjects = objects
	current.waitSeq = ctx.Kernel.nextWaitSeq()
	current.status = StatusWaitSynchAny
	current.wakeupCallback = func(t *Thread, reason WakeupReason, _ WaitObject, index int) {
		switch reason {
		case WakeupSignal:
			t.Context.Regs[0] = uint64(result.Success)
			t.Context.Regs[1] = uint64(index)
		case WakeupTimeout:
			t.Context.Regs[0] = uint64(result.ErrTimeout)
		case WakeupCancel:
			t.Context.Regs[0] = uint64(result.ErrSynchronizationCanceled)
		}
	}
	ctx.Kernel.scheduler.WakeAfterDelay(current, timeout)
	ctx.Kernel.scheduler.PrepareReschedule(ctx.CurrentCore())
	return 0, result.ErrTimeout
}

// SleepThread suspends the caller for ns nanoseconds.
func SleepThread(ctx *Context, ns int64) {
	current := ctx.CurrentThread()
	current.status = StatusWaitSleep
	current.wakeupCallback = func(t *Thread, reason WakeupReason, _ WaitObject, _ int) {
		t.Context.Regs[0] = uint64(result.Success)
	}
	ctx.Kernel.scheduler.WakeAfterDelay(current, ns)
	ctx.Kernel.scheduler.PrepareReschedule(ctx.CurrentCore())
}
