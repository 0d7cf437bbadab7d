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
	"encoding/binary"

	"nxemu.dev/nxemu/pkg/abi/horizon"
	"nxemu.dev/nxemu/pkg/guestarch"
	"nxemu.dev/nxemu/pkg/hle/arch"
	"nxemu.dev/nxemu/pkg/hle/kernel"
	"nxemu.dev/nxemu/pkg/hle/result"
)

// SetHeapSize resizes the process heap to exactly size bytes.
//
// In:  X1 = size. Out: X0 = result, X1 = heap base address.
func SetHeapSize(ctx *kernel.Context, args *arch.SVCArguments) {
	size := args[1].Uint64()
	if size%horizon.HeapGranularity != 0 || size >= horizon.HeapSizeMax {
		args.SetResult(uint32(result.ErrInvalidSize))
		return
	}
	m := ctx.CurrentProcess().MM()
	heapBase := m.Layout().HeapBase
	if size == 0 {
		if start, end := m.HeapRange(); start == end {
			// No heap yet; nothing to resize.
			args.SetResult(uint32(result.Success))
			args.Set(1, uint64(heapBase))
			return
		}
	}
	addr, code := m.HeapAllocate(heapBase, size, horizon.PermReadWrite)
	args.SetResult(uint32(code))
	args.Set(1, uint64(addr))
}

// SetMemoryPermission changes the permissions of a mapped range whose state
// allows reprotection.
//
// In: X0 = addr, X1 = size, X2 = perms.
func SetMemoryPermission(ctx *kernel.Context, args *arch.SVCArguments) {
	addr := args[0].Pointer()
	size := args[1].Uint64()
	perms := horizon.MemoryPermission(args[2].Uint32())

	if !addr.PageAligned() {
		args.SetResult(uint32(result.ErrInvalidAddress))
		return
	}
	if size == 0 || size%guestarch.PageSize != 0 {
		args.SetResult(uint32(result.ErrInvalidSize))
		return
	}
	if !perms.IsUserAccepted() {
		args.SetResult(uint32(result.ErrInvalidMemoryPermissions))
		return
	}
	m := ctx.CurrentProcess().MM()
	layout := m.Layout()
	end, ok := addr.AddLength(size)
	if !ok || !layout.IsInsideAddressSpace(addr, size) {
		args.SetResult(uint32(result.ErrInvalidAddressState))
		return
	}
	for a := addr; a < end; {
		v := m.FindVMA(a)
		if v == nil || !v.State.Reprotectable() {
			args.SetResult(uint32(result.ErrInvalidAddressState))
			return
		}
		a = v.End()
	}
	args.SetResult(uint32(m.ReprotectRange(addr, size, perms)))
}

// SetMemoryAttribute rewrites masked attribute bits of a range. Only the
// Uncached bit may appear in either the mask or the value.
//
// In: X0 = addr, X1 = size, X2 = mask, X3 = attribute.
func SetMemoryAttribute(ctx *kernel.Context, args *arch.SVCArguments) {
	addr := args[0].Pointer()
	size := args[1].Uint64()
	mask := horizon.MemoryAttribute(args[2].Uint32())
	attr := horizon.MemoryAttribute(args[3].Uint32())

	if !addr.PageAligned() {
		args.SetResult(uint32(result.ErrInvalidAddress))
		return
	}
	if size == 0 || size%guestarch.PageSize != 0 {
		args.SetResult(uint32(result.ErrInvalidSize))
		return
	}
	if mask|attr != mask || (mask|attr)&^horizon.AttrUncached != 0 {
		args.SetResult(uint32(result.ErrInvalidCombination))
		return
	}
	m := ctx.CurrentProcess().MM()
	args.SetResult(uint32(m.SetMemoryAttribute(addr, size, mask, attr)))
}

// mapUnmapChecks validates the argument pattern shared by MapMemory and
// UnmapMemory.
func mapUnmapChecks(ctx *kernel.Context, dst, src guestarch.Addr, size uint64) result.Code {
	if !dst.PageAligned() || !src.PageAligned() {
		return result.ErrInvalidAddress
	}
	if size == 0 || size%guestarch.PageSize != 0 {
		return result.ErrInvalidSize
	}
	if _, ok := src.AddLength(size); !ok {
		return result.ErrInvalidAddressState
	}
	if _, ok := dst.AddLength(size); !ok {
		return result.ErrInvalidMemoryRange
	}
	layout := ctx.CurrentProcess().MM().Layout()
	if !layout.IsInsideAddressSpace(src, size) {
		return result.ErrInvalidAddressState
	}
	if !layout.IsInsideNewMapRegion(dst, size) {
		return result.ErrInvalidMemoryRange
	}
	return result.Success
}

// MapMemory mirrors [src, src+size) at dst inside the new-map region and
// strips the source range's permissions. The mirror keeps the source
// mapping's state.
//
// In: X0 = dst, X1 = src, X2 = size.
func MapMemory(ctx *kernel.Context, args *arch.SVCArguments) {
	dst := args[0].Pointer()
	src := args[1].Pointer()
	size := args[2].Uint64()

	if code := mapUnmapChecks(ctx, dst, src, size); code.IsError() {
		args.SetResult(uint32(code))
		return
	}
	m := ctx.CurrentProcess().MM()
	args.SetResult(uint32(m.MirrorMemory(dst, src, size)))
}

// UnmapMemory reverses a MapMemory: the dst mirror is removed and the source
// range becomes accessible again.
//
// In: X0 = dst, X1 = src, X2 = size.
func UnmapMemory(ctx *kernel.Context, args *arch.SVCArguments) {
	dst := args[0].Pointer()
	src := args[1].Pointer()
	size := args[2].Uint64()

	if code := mapUnmapChecks(ctx, dst, src, size); code.IsError() {
		args.SetResult(uint32(code))
		return
	}
	m := ctx.CurrentProcess().MM()
	if code := m.UnmapRange(dst, size); code.IsError() {
		args.SetResult(uint32(code))
		return
	}
	args.SetResult(uint32(m.ReprotectRange(src, size, horizon.PermReadWrite)))
}

// memoryInfoSize is the guest-visible size of a QueryMemory record.
const memoryInfoSize = 0x28

// QueryMemory describes the mapping containing an address.
//
// In: X0 = MemoryInfo destination, X2 = queried address.
// Out: X0 = result, X1 = page info (always 0).
func QueryMemory(ctx *kernel.Context, args *arch.SVCArguments) {
	infoAddr := args[0].Pointer()
	addr := args[2].Pointer()

	m := ctx.CurrentProcess().MM()
	info := m.QueryMemory(addr)

	var buf [memoryInfoSize]byte
	binary.LittleEndian.PutUint64(buf[0:], info.BaseAddress)
	binary.LittleEndian.PutUint64(buf[8:], info.Size)
	binary.LittleEndian.PutUint32(buf[16:], uint32(info.State))
	binary.LittleEndian.PutUint32(buf[20:], uint32(info.Attribute))
	binary.LittleEndian.PutUint32(buf[24:], uint32(info.Permission))
	binary.LittleEndian.PutUint32(buf[28:], info.IpcRefCount)
	binary.LittleEndian.PutUint32(buf[32:], info.DeviceRefCount)
	if !m.WriteBlock(infoAddr, buf[:]) {
		args.SetResult(uint32(result.ErrInvalidAddress))
		return
	}
	args.SetResult(uint32(result.Success))
	args.Set(1, 0)
}

// MapSharedMemory maps a shared memory object into the caller.
//
// In: X0 = handle, X1 = addr, X2 = size, X3 = perms.
func MapSharedMemory(ctx *kernel.Context, args *arch.SVCArguments) {
	h := horizon.Handle(args[0].Handle())
	addr := args[1].Pointer()
	size := args[2].Uint64()
	perms := horizon.MemoryPermission(args[3].Uint32())

	if !addr.PageAligned() {
		args.SetResult(uint32(result.ErrInvalidAddress))
		return
	}
	if size == 0 || size%guestarch.PageSize != 0 {
		args.SetResult(uint32(result.ErrInvalidSize))
		return
	}
	if perms != horizon.PermRead && perms != horizon.PermReadWrite {
		args.SetResult(uint32(result.ErrInvalidMemoryPermissions))
		return
	}
	p := ctx.CurrentProcess()
	shm, ok := kernel.GetAs[*kernel.SharedMemory](p.Handles(), h)
	if !ok {
		args.SetResult(uint32(result.ErrInvalidHandle))
		return
	}
	args.SetResult(uint32(shm.Map(p, addr, size, perms)))
}

// UnmapSharedMemory removes a shared memory mapping from the caller.
//
// In: X0 = handle, X1 = addr, X2 = size.
func UnmapSharedMemory(ctx *kernel.Context, args *arch.SVCArguments) {
	h := horizon.Handle(args[0].Handle())
	addr := args[1].Pointer()
	size := args[2].Uint64()

	p := ctx.CurrentProcess()
	shm, ok := kernel.GetAs[*kernel.SharedMemory](p.Handles(), h)
	if !ok {
		args.SetResult(uint32(result.ErrInvalidHandle))
		return
	}
	args.SetResult(uint32(shm.Unmap(p, addr, size)))
}

// CreateSharedMemory allocates a fresh shared memory block owned by the
// caller.
//
// In: X1 = size, X2 = owner perms, X3 = other perms. Out: X1 = handle.
func CreateSharedMemory(ctx *kernel.Context, args *arch.SVCArguments) {
	size := args[1].Uint64()
	ownerPerms := horizon.MemoryPermission(args[2].Uint32())
	otherPerms := horizon.MemoryPermission(args[3].Uint32())

	if size == 0 || size%guestarch.PageSize != 0 {
		args.SetResult(uint32(result.ErrInvalidSize))
		return
	}
	if ownerPerms != horizon.PermRead && ownerPerms != horizon.PermReadWrite {
		args.SetResult(uint32(result.ErrInvalidMemoryPermissions))
		return
	}
	if otherPerms != horizon.PermRead && otherPerms != horizon.PermReadWrite {
		args.SetResult(uint32(result.ErrInvalidMemoryPermissions))
		return
	}
	p := ctx.CurrentProcess()
	shm := ctx.Kernel.NewSharedMemory("", p, size, ownerPerms, otherPerms)
	h, code := p.Handles().Create(shm)
	args.SetResult(uint32(code))
	args.Set(1, uint64(h))
}

// CreateTransferMemory lends a range of the caller's memory out as a
// transfer memory object.
//
// In: X1 = addr, X2 = size, X3 = perms. Out: X1 = handle.
func CreateTransferMemory(ctx *kernel.Context, args *arch.SVCArguments) {
	addr := args[1].Pointer()
	size := args[2].Uint64()
	perms := horizon.MemoryPermission(args[3].Uint32())

	if !addr.PageAligned() {
		args.SetResult(uint32(result.ErrInvalidAddress))
		return
	}
	if size == 0 || size%guestarch.PageSize != 0 {
		args.SetResult(uint32(result.ErrInvalidSize))
		return
	}
	if !perms.IsUserAccepted() {
		args.SetResult(uint32(result.ErrInvalidMemoryPermissions))
		return
	}
	p := ctx.CurrentProcess()
	tm, code := ctx.Kernel.NewTransferMemory("", p, addr, size, perms)
	if code.IsError() {
		args.SetResult(uint32(code))
		return
	}
	h, code := p.Handles().Create(tm)
	args.SetResult(uint32(code))
	args.Set(1, uint64(h))
}
