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

// SignalEvent signals the writable end of an event pair.
//
// In: X0 = writable event handle.
func SignalEvent(ctx *kernel.Context, args *arch.SVCArguments) {
	w, ok := kernel.GetAs[*kernel.WritableEvent](ctx.CurrentProcess().Handles(), horizon.Handle(args[0].Handle()))
	if !ok {
		args.SetResult(uint32(result.ErrInvalidHandle))
		return
	}
	w.Signal()
	args.SetResult(uint32(result.Success))
}

// ClearEvent unsignals an event through either end.
//
// In: X0 = event handle.
func ClearEvent(ctx *kernel.Context, args *arch.SVCArguments) {
	obj, ok := ctx.GetObject(horizon.Handle(args[0].Handle()))
	if !ok {
		args.SetResult(uint32(result.ErrInvalidHandle))
		return
	}
	switch e := obj.(type) {
	case *kernel.WritableEvent:
		e.Clear()
	case *kernel.ReadableEvent:
		e.Clear()
	default:
		args.SetResult(uint32(result.ErrInvalidHandle))
		return
	}
	args.SetResult(uint32(result.Success))
}

// ResetSignal clears a readable event's signaled state, failing with
// InvalidState if it was not signaled.
//
// In: X0 = readable event handle.
func ResetSignal(ctx *kernel.Context, args *arch.SVCArguments) {
	r, ok := kernel.GetAs[*kernel.ReadableEvent](ctx.CurrentProcess().Handles(), horizon.Handle(args[0].Handle()))
	if !ok {
		args.SetResult(uint32(result.ErrInvalidHandle))
		return
	}
	args.SetResult(uint32(r.ResetSignal()))
}

// CreateEvent creates an event pair.
//
// In: X2 = reset type. Out: X1 = writable handle, X2 = readable handle.
func CreateEvent(ctx *kernel.Context, args *arch.SVCArguments) {
	resetType := horizon.EventResetType(args[2].Uint32())
	if resetType != horizon.ResetOneShot && resetType != horizon.ResetSticky {
		args.SetResult(uint32(result.ErrInvalidEnumValue))
		return
	}
	p := ctx.CurrentProcess()
	if code := p.ResourceLimit().Reserve(horizon.ResourceEvents, 1); code.IsError() {
		args.SetResult(uint32(code))
		return
	}
	w, r := ctx.Kernel.NewEventPair("", resetType)
	wh, code := p.Handles().Create(w)
	if code.IsError() {
		p.ResourceLimit().Release(horizon.ResourceEvents, 1)
		args.SetResult(uint32(code))
		return
	}
	rh, code := p.Handles().Create(r)
	if code.IsError() {
		p.Handles().Close(wh)
		p.ResourceLimit().Release(horizon.ResourceEvents, 1)
		args.SetResult(uint32(code))
		return
	}
	args.SetResult(uint32(result.Success))
	args.Set(1, uint64(wh))
	args.Set(2, uint64(rh))
}
