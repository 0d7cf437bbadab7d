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
	"nxemu.dev/nxemu/pkg/hle/arch"
	"nxemu.dev/nxemu/pkg/hle/kernel"
	"nxemu.dev/nxemu/pkg/hle/result"
)

// ExitProcess terminates the calling process and every thread in it.
func ExitProcess(ctx *kernel.Context, args *arch.SVCArguments) {
	ctx.CurrentProcess().Terminate()
}

// GetProcessID returns a process's kernel-wide ID.
//
// In: X1 = process handle. Out: X1 = process ID.
func GetProcessID(ctx *kernel.Context, args *arch.SVCArguments) {
	p, ok := ctx.GetProcess(horizon.Handle(args[1].Handle()))
	if !ok {
		args.SetResult(uint32(result.ErrInvalidHandle))
		return
	}
	args.SetResult(uint32(result.Success))
	args.Set(1, uint64(p.ID()))
}

// GetProcessInfo returns one process property. Only type 0, the process
// lifecycle state, is defined.
//
// In: X1 = process handle, X2 = info type. Out: X1 = value.
func GetProcessInfo(ctx *kernel.Context, args *arch.SVCArguments) {
	p, ok := ctx.GetProcess(horizon.Handle(args[1].Handle()))
	if !ok {
		args.SetResult(uint32(result.ErrInvalidHandle))
		return
	}
	if args[2].Uint32() != 0 {
		args.SetResult(uint32(result.ErrInvalidEnumValue))
		return
	}
	args.SetResult(uint32(result.Success))
	args.Set(1, uint64(p.Status()))
}

// CloseHandle releases one handle table slot.
//
// In: X0 = handle.
func CloseHandle(ctx *kernel.Context, args *arch.SVCArguments) {
	args.SetResult(uint32(ctx.CurrentProcess().Handles().Close(horizon.Handle(args[0].Handle()))))
}

// Break reports a guest break condition. With the signal-debugger flag the
// kernel logs and resumes the caller; without it the process is terminated.
//
// In: X0 = reason, X1 = info address, X2 = info size.
func Break(ctx *kernel.Context, args *arch.SVCArguments) {
	reason := args[0].Uint32()
	breakType := horizon.BreakType(reason &^ horizon.BreakSignalDebuggerFlag)
	signalDebugger := reason&horizon.BreakSignalDebuggerFlag != 0

	log := ctx.Kernel.Log().WithFields(map[string]interface{}{
		"type":  breakType.String(),
		"info1": args[1].Uint64(),
		"info2": args[2].Uint64(),
	})
	if signalDebugger {
		log.Warn("guest break, signalling debugger")
		args.SetResult(uint32(result.Success))
		return
	}

	log.Error("guest break, terminating process")
	core := ctx.CurrentCore()
	if backends := ctx.Kernel.Backends(); core < len(backends) {
		backends[core].LogBacktrace()
	}
	ctx.CurrentProcess().Terminate()
}

// resolveResourceLimit accepts either a resource limit handle or the current
// process pseudo-handle, which denotes the process's own limit.
func resolveResourceLimit(ctx *kernel.Context, h horizon.Handle) (*kernel.ResourceLimit, bool) {
	if h == horizon.CurrentProcess {
		return ctx.CurrentProcess().ResourceLimit(), true
	}
	return kernel.GetAs[*kernel.ResourceLimit](ctx.CurrentProcess().Handles(), h)
}

// GetResourceLimitLimitValue returns the cap for one resource kind.
//
// In: X1 = resource limit handle, X2 = resource type. Out: X1 = value.
func GetResourceLimitLimitValue(ctx *kernel.Context, args *arch.SVCArguments) {
	rl, ok := resolveResourceLimit(ctx, horizon.Handle(args[1].Handle()))
	if !ok {
		args.SetResult(uint32(result.ErrInvalidHandle))
		return
	}
	v, code := rl.LimitValue(horizon.ResourceLimitType(args[2].Uint32()))
	args.SetResult(uint32(code))
	args.Set(1, uint64(v))
}

// GetResourceLimitCurrentValue returns the current usage of one resource
// kind.
//
// In: X1 = resource limit handle, X2 = resource type. Out: X1 = value.
func GetResourceLimitCurrentValue(ctx *kernel.Context, args *arch.SVCArguments) {
	rl, ok := resolveResourceLimit(ctx, horizon.Handle(args[1].Handle()))
	if !ok {
		args.SetResult(uint32(result.ErrInvalidHandle))
		return
	}
	v, code := rl.CurrentValue(horizon.ResourceLimitType(args[2].Uint32()))
	args.SetResult(uint32(code))
	args.Set(1, uint64(v))
}

// CreateResourceLimit creates a resource limit object with all caps zeroed.
//
// Out: X1 = handle.
func CreateResourceLimit(ctx *kernel.Context, args *arch.SVCArguments) {
	rl := ctx.Kernel.NewEmptyResourceLimit("")
	h, code := ctx.CurrentProcess().Handles().Create(rl)
	args.SetResult(uint32(code))
	args.Set(1, uint64(h))
}

// SetResourceLimitLimitValue raises or lowers the cap for one resource
// kind. Lowering below current usage fails with InvalidCombination.
//
// In: X0 = resource limit handle, X1 = resource type, X2 = value.
func SetResourceLimitLimitValue(ctx *kernel.Context, args *arch.SVCArguments) {
	rl, ok := resolveResourceLimit(ctx, horizon.Handle(args[0].Handle()))
	if !ok {
		args.SetResult(uint32(result.ErrInvalidHandle))
		return
	}
	args.SetResult(uint32(rl.SetLimitValue(horizon.ResourceLimitType(args[1].Uint32()), args[2].Int64())))
}
