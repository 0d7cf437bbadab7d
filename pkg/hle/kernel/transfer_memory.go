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
	"nxemu.dev/nxemu/pkg/guestarch"
	"nxemu.dev/nxemu/pkg/hle/mm"
	"nxemu.dev/nxemu/pkg/hle/result"
)

// TransferMemory lends a range of the creator's memory to another process.
// The source range stays mapped in the creator but is locked and reprotected
// until the transfer memory is torn down.
type TransferMemory struct {
	baseObject

	owner      *Process
	block      *mm.Block
	offset     uint64
	sourceAddr guestarch.Addr
	size       uint64
	perms      horizon.MemoryPermission
	released   bool
}

// NewTransferMemory carves a transfer memory out of owner's mapping at addr.
// The range must lie within a single allocated mapping with no attributes
// set. The source is reprotected to perms and marked locked.
func (k *Kernel) NewTransferMemory(name string, owner *Process, addr guestarch.Addr, size uint64, perms horizon.MemoryPermission) (*TransferMemory, result.Code) {
	if code := owner.limit.Reserve(horizon.ResourceTransferMemory, 1); code.IsError() {
		return nil, code
	}
	v := owner.mm.FindVMA(addr)
	if v == nil || v.Kind != mm.VMAAllocatedBlock || !v.ContainsRange(addr, size) {
		owner.limit.Release(horizon.ResourceTransferMemory, 1)
		return nil, result.ErrInvalidAddressState
	}
	if v.Attribute != 0 {
		owner.limit.Release(horizon.ResourceTransferMemory, 1)
		return nil, result.ErrInvalidAddressState
	}
	tm := &TransferMemory{
		baseObject: baseObject{id: k.newObjectID(), name: name},
		owner:      owner,
		block:      v.Backing,
		offset:     v.Offset + uint64(addr-v.Base),
		sourceAddr: addr,
		size:       size,
		perms:      perms,
	}
	if code := owner.mm.ReprotectRange(addr, size, perms); code.IsError() {
		owner.limit.Release(horizon.ResourceTransferMemory, 1)
		return nil, code
	}
	if code := owner.mm.SetMemoryAttribute(addr, size, horizon.AttrLocked, horizon.AttrLocked); code.IsError() {
		owner.limit.Release(horizon.ResourceTransferMemory, 1)
		return nil, code
	}
	return tm, result.Success
}

// TypeName implements Object.TypeName.
func (tm *TransferMemory) TypeName() string { return "TransferMemory" }

// Size returns the lent range's size in bytes.
func (tm *TransferMemory) Size() uint64 { return tm.size }

// Map maps the lent memory into p at addr.
func (tm *TransferMemory) Map(p *Process, addr guestarch.Addr, size uint64) result.Code {
	if size != tm.size {
		return result.ErrInvalidSize
	}
	_, code := p.mm.MapMemoryBlock(addr, tm.block, tm.offset, size, horizon.StateTransferMemory)
	return code
}

// Unmap removes a previous mapping of the lent memory from p.
func (tm *TransferMemory) Unmap(p *Process, addr guestarch.Addr, size uint64) result.Code {
	if size != tm.size {
		return result.ErrInvalidSize
	}
	v := p.mm.FindVMA(addr)
	if v == nil || v.State != horizon.StateTransferMemory || v.Backing != tm.block {
		return result.ErrInvalidAddressState
	}
	return p.mm.UnmapRange(addr, size)
}

// Release unlocks the source range in the owner, restoring read-write
// access. Called when the last handle to the transfer memory closes.
func (tm *TransferMemory) Release() result.Code {
	if tm.released {
		return result.Success
	}
	if code := tm.owner.mm.SetMemoryAttribute(tm.sourceAddr, tm.size, horizon.AttrLocked, 0); code.IsError() {
		return code
	}
	tm.released = true
	tm.owner.limit.Release(horizon.ResourceTransferMemory, 1)
	return tm.owner.mm.ReprotectRange(tm.sourceAddr, tm.size, horizon.PermReadWrite)
}

// Close implements Closable.
func (tm *TransferMemory) Close() { tm.Release() }
