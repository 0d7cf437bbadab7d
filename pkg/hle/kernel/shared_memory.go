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

// SharedMemory is a page-aligned block mappable into multiple address
// spaces with owner-controlled permissions.
type SharedMemory struct {
	baseObject

	owner      *Process
	block      *mm.Block
	size       uint64
	ownerPerms horizon.MemoryPermission
	otherPerms horizon.MemoryPermission
}

// NewSharedMemory allocates a zero-filled shared memory block. owner may be
// nil for kernel-owned blocks (HID shared memory and the like).
func (k *Kernel) NewSharedMemory(name string, owner *Process, size uint64, ownerPerms, otherPerms horizon.MemoryPermission) *SharedMemory {
	return &SharedMemory{
		baseObject: baseObject{id: k.newObjectID(), name: name},
		owner:      owner,
		block:      mm.NewBlock(size),
		size:       size,
		ownerPerms: ownerPerms,
		otherPerms: otherPerms,
	}
}

// TypeName implements Object.TypeName.
func (s *SharedMemory) TypeName() string { return "SharedMemory" }

// Size returns the block size in bytes.
func (s *SharedMemory) Size() uint64 { return s.size }

// Block exposes the backing block for service-side access.
func (s *SharedMemory) Block() *mm.Block { return s.block }

// Map maps the block into p at addr. perms must match the permission set
// granted to p at creation time exactly.
func (s *SharedMemory) Map(p *Process, addr guestarch.Addr, size uint64, perms horizon.MemoryPermission) result.Code {
	if size != s.size {
		return result.ErrInvalidSize
	}
	expected := s.otherPerms
	if p == s.owner {
		expected = s.ownerPerms
	}
	if perms != expected {
		return result.ErrInvalidMemoryPermissions
	}
	if _, code := p.mm.MapMemoryBlock(addr, s.block, 0, size, horizon.StateShared); code.IsError() {
		return code
	}
	return p.mm.ReprotectRange(addr, size, perms)
}

// Unmap removes a previous mapping of the block from p.
func (s *SharedMemory) Unmap(p *Process, addr guestarch.Addr, size uint64) result.Code {
	if size != s.size {
		return result.ErrInvalidSize
	}
	v := p.mm.FindVMA(addr)
	if v == nil || v.State != horizon.StateShared || v.Backing != s.block {
		return result.ErrInvalidAddressState
	}
	return p.mm.UnmapRange(addr, size)
}
