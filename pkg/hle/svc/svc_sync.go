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
	"nxemu.dev/nxemu/pkg/abi/horizon"
	"nxemu.dev/nxemu/pkg/guestarch"
	"nxemu.dev/nxemu/pkg/hle/arch"
	"nxemu.dev/nxemu/pkg/hle/kernel"
	"nxemu.dev/nxemu/pkg/hle/result"
)

// WaitSynchronization waits on up to 0x40 waitable handles at once.
//
// In: X1 = handle array address, X2 = handle count, X3 = timeout ns.
// Out: X1 = index of the signaled object.
func WaitSynchronization(ctx *kernel.Context, args *arch.SVCArguments) {
	handlesAddr := args[1].Pointer()
	count := args[2].Int32()
	timeout := args[3].Int64()

	if count < 0 || count > horizon.MaxWaitObjects {
		args.SetResult(uint32(result.ErrOutOfRange))
		return
	}

	m := ctx.CurrentProcess().MM()
	objects := make([]kernel.WaitObject, 0, count)
	for i := int32(0); i < count; i++ {
		raw, ok := m.Read32(handlesAddr + guestarch.Addr(i)*4)
		if !ok {
			args.SetResult(uint32(result.ErrInvalidPointer))
			return
		}
		obj, ok := ctx.GetWaitObject(horizon.Handle(raw))
		if !ok {
			args.SetResult(uint32(result.ErrInvalidHandle))
			return
		}
		objects = append(objects, obj)
	}

	index, code := kernel.WaitSynchronization(ctx, objects, timeout)
	args.SetResult(uint32(code))
	args.Set(1, uint64(index))
}

// CancelSynchronization wakes a thread out of a cancellable wait.
//
// In: X0 = thread handle.
func CancelSynchronization(ctx *kernel.Context, args *arch.SVCArguments) {
	t, ok := ctx.GetThread(horizon.Handle(args[0].Handle()))
	if !ok {
		args.SetResult(uint32(result.ErrInvalidHandle))
		return
	}
	t.CancelWait()
	args.SetResult(uint32(result.Success))
}

// ArbitrateLock performs the kernel side of a contended mutex acquire.
//
// In: X0 = holding thread handle, X1 = mutex address, X2 = requesting thread
// handle.
func ArbitrateLock(ctx *kernel.Context, args *arch.SVCArguments) {
	holding := horizon.Handle(args[0].Handle())
	addr := args[1].Pointer()
	requesting := horizon.Handle(args[2].Handle())
	args.SetResult(uint32(kernel.MutexTryAcquire(ctx, addr, holding, requesting)))
}

// ArbitrateUnlock releases a mutex held by the caller.
//
// In: X0 = mutex address.
func ArbitrateUnlock(ctx *kernel.Context, args *arch.SVCArguments) {
	args.SetResult(uint32(kernel.MutexRelease(ctx, args[0].Pointer())))
}

// WaitProcessWideKeyAtomic releases a mutex and waits on a process-wide key
// in one step.
//
// In: X0 = mutex address, X1 = key address, X2 = caller's thread handle,
// X3 = timeout ns.
func WaitProcessWideKeyAtomic(ctx *kernel.Context, args *arch.SVCArguments) {
	mutexAddr := args[0].Pointer()
	keyAddr := args[1].Pointer()
	threadHandle := horizon.Handle(args[2].Handle())
	timeout := args[3].Int64()
	args.SetResult(uint32(kernel.CondvarWait(ctx, mutexAddr, keyAddr, threadHandle, timeout)))
}

// SignalProcessWideKey wakes threads waiting on a process-wide key.
//
// In: X0 = key address, X1 = number of threads to wake, -1 for all.
func SignalProcessWideKey(ctx *kernel.Context, args *arch.SVCArguments) {
	args.SetResult(uint32(kernel.CondvarSignal(ctx, args[0].Pointer(), args[1].Int32())))
}

// WaitForAddress blocks the caller on an address arbiter word.
//
// In: X0 = address, X1 = arbitration type, X2 = value, X3 = timeout ns.
func WaitForAddress(ctx *kernel.Context, args *arch.SVCArguments) {
	addr := args[0].Pointer()
	arbType := horizon.ArbitrationType(args[1].Uint32())
	value := args[2].Int32()
	timeout := args[3].Int64()
	args.SetResult(uint32(kernel.ArbiterWait(ctx, addr, arbType, value, timeout)))
}

// SignalToAddress wakes threads blocked on an address arbiter word.
//
// In: X0 = address, X1 = signal type, X2 = value, X3 = number to wake.
func SignalToAddress(ctx *kernel.Context, args *arch.SVCArguments) {
	addr := args[0].Pointer()
	sigType := horizon.SignalType(args[1].Uint32())
	value := args[2].Int32()
	numToWake := args[3].Int32()
	args.SetResult(uint32(kernel.ArbiterSignal(ctx, addr, sigType, value, numToWake)))
}
