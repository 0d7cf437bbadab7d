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

// ConnectToNamedPort opens a session to a registered named port.
//
// In: X1 = port name address (NUL-terminated, at most 11 characters).
// Out: X1 = client session handle.
func ConnectToNamedPort(ctx *kernel.Context, args *arch.SVCArguments) {
	nameAddr := args[1].Pointer()

	p := ctx.CurrentProcess()
	// Read one byte past the limit to tell "too long" from "exactly max".
	name, ok := p.MM().ReadCString(nameAddr, horizon.PortNameMaxLength+1)
	if !ok {
		args.SetResult(uint32(result.ErrInvalidPointer))
		return
	}
	if len(name) > horizon.PortNameMaxLength {
		args.SetResult(uint32(result.ErrOutOfRange))
		return
	}

	port, ok := ctx.Kernel.FindNamedPort(name)
	if !ok {
		args.SetResult(uint32(result.ErrNotFound))
		return
	}
	session, code := port.Connect(ctx.Kernel, p)
	if code.IsError() {
		args.SetResult(uint32(code))
		return
	}
	h, code := p.Handles().Create(session)
	args.SetResult(uint32(code))
	args.Set(1, uint64(h))
}

// SendSyncRequest delivers the IPC request in the caller's TLS block to the
// session's server side.
//
// In: X0 = client session handle.
func SendSyncRequest(ctx *kernel.Context, args *arch.SVCArguments) {
	s, ok := kernel.GetAs[*kernel.ClientSession](ctx.CurrentProcess().Handles(), horizon.Handle(args[0].Handle()))
	if !ok {
		args.SetResult(uint32(result.ErrInvalidHandle))
		return
	}
	args.SetResult(uint32(s.SendSyncRequest(ctx)))
}

// OutputDebugString logs a guest-supplied message.
//
// In: X0 = string address, X1 = length.
func OutputDebugString(ctx *kernel.Context, args *arch.SVCArguments) {
	addr := args[0].Pointer()
	length := args[1].Uint64()

	// The range is validated before sizing the copy; length is guest
	// controlled.
	m := ctx.CurrentProcess().MM()
	if !m.IsValidRange(addr, length) {
		args.SetResult(uint32(result.ErrInvalidPointer))
		return
	}
	buf := make([]byte, length)
	if !m.ReadBlock(addr, buf) {
		args.SetResult(uint32(result.ErrInvalidPointer))
		return
	}
	ctx.Kernel.Log().WithField("subsystem", "guest").Info(string(buf))
	args.SetResult(uint32(result.Success))
}
