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

// Package guestarch defines types and constants for the guest (emulated)
// machine architecture, analogous to what a host kernel would get from its
// architecture headers: the guest virtual address type, page geometry, and
// alignment helpers.
package guestarch

const (
	// PageShift is the binary log of the guest page size.
	PageShift = 12

	// PageSize is the guest page size, 4 KiB on all supported address
	// space types.
	PageSize = 1 << PageShift

	// PageMask is PageSize - 1.
	PageMask = PageSize - 1

	// CoreCount is the number of guest CPU cores.
	CoreCount = 4
)

// Addr represents a guest virtual address.
type Addr uint64

// AddLength adds the given length to start and returns the result. ok is true
// iff adding the length did not overflow.
func (v Addr) AddLength(length uint64) (end Addr, ok bool) {
	end = v + Addr(length)
	ok = end >= v
	return
}

// RoundDown returns the address rounded down to the nearest page boundary.
func (v Addr) RoundDown() Addr {
	return v &^ Addr(PageMask)
}

// RoundUp returns the address rounded up to the nearest page boundary. ok is
// true iff rounding up did not wrap around.
func (v Addr) RoundUp() (addr Addr, ok bool) {
	addr = (v + PageMask).RoundDown()
	ok = addr >= v
	return
}

// PageAligned returns true if v is aligned to a page boundary.
func (v Addr) PageAligned() bool {
	return v&PageMask == 0
}

// PageOffset returns the offset of v into its containing page.
func (v Addr) PageOffset() uint64 {
	return uint64(v & PageMask)
}

// PageIndex returns the index of the page containing v, counted from address
// zero.
func (v Addr) PageIndex() uint64 {
	return uint64(v >> PageShift)
}

// WordAligned returns true if v is aligned to a 32-bit word, the required
// alignment for guest synchronization words.
func (v Addr) WordAligned() bool {
	return v&3 == 0
}

// PagesSpanned returns the number of pages in [addr, addr+size), where addr
// and size are page-aligned.
//
// Preconditions: addr.PageAligned(); size is a multiple of PageSize.
func PagesSpanned(addr Addr, size uint64) uint64 {
	return size >> PageShift
}
