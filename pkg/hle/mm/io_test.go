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

package mm

import (
	"bytes"
	"testing"

	"nxemu.dev/nxemu/pkg/abi/horizon"
	"nxemu.dev/nxemu/pkg/guestarch"
)

func TestBlockIOCrossesPages(t *testing.T) {
	m := newTestManager(t)
	base := addr(0x200000)
	if _, code := m.MapMemoryBlock(base, NewBlock(0x2000), 0, 0x2000, horizon.StateNormal); code.IsError() {
		t.Fatalf("MapMemoryBlock: %v", code)
	}

	src := make([]byte, 0x100)
	for i := range src {
		src[i] = byte(i)
	}
	// Straddle the page boundary.
	at := base + guestarch.PageSize - 0x80
	if !m.WriteBlock(at, src) {
		t.Fatal("WriteBlock failed")
	}
	dst := make([]byte, len(src))
	if !m.ReadBlock(at, dst) {
		t.Fatal("ReadBlock failed")
	}
	if !bytes.Equal(src, dst) {
		t.Error("cross-page round trip corrupted data")
	}
}

func TestBlockIOUnmapped(t *testing.T) {
	m := newTestManager(t)
	base := addr(0x200000)
	if _, code := m.MapMemoryBlock(base, NewBlock(0x1000), 0, 0x1000, horizon.StateNormal); code.IsError() {
		t.Fatalf("MapMemoryBlock: %v", code)
	}

	buf := make([]byte, 8)
	if m.ReadBlock(addr(0x300000), buf) {
		t.Error("ReadBlock of unmapped range succeeded")
	}
	// A block running off the mapping's end must fail too.
	if m.WriteBlock(base+0x1000-4, buf) {
		t.Error("WriteBlock past mapping end succeeded")
	}
}

func TestWord64RoundTrip(t *testing.T) {
	m := newTestManager(t)
	base := addr(0x200000)
	if _, code := m.MapMemoryBlock(base, NewBlock(0x1000), 0, 0x1000, horizon.StateNormal); code.IsError() {
		t.Fatalf("MapMemoryBlock: %v", code)
	}
	if !m.Write64(base+8, 0x1122334455667788) {
		t.Fatal("Write64 failed")
	}
	if got, ok := m.Read64(base + 8); !ok || got != 0x1122334455667788 {
		t.Errorf("Read64 = %#x, %v", got, ok)
	}
	// Word accessors observe the same bytes little-endian.
	if got, _ := m.Read32(base + 8); got != 0x55667788 {
		t.Errorf("Read32 of low half = %#x, want 0x55667788", got)
	}
}

// recordingHook records MMIO accesses and serves reads from a register.
type recordingHook struct {
	value  uint32
	reads  []guestarch.Addr
	writes []guestarch.Addr
}

func (h *recordingHook) Read32(a guestarch.Addr) uint32 {
	h.reads = append(h.reads, a)
	return h.value
}

func (h *recordingHook) Write32(a guestarch.Addr, v uint32) {
	h.writes = append(h.writes, a)
	h.value = v
}

func TestMMIODispatch(t *testing.T) {
	m := newTestManager(t)
	base := addr(0x200000)
	hook := &recordingHook{value: 0x11110000}
	if _, code := m.MapMMIO(base, 0x70000000, 0x1000, horizon.StateIo, hook); code.IsError() {
		t.Fatalf("MapMMIO: %v", code)
	}

	if got, ok := m.Read32(base + 0x10); !ok || got != 0x11110000 {
		t.Errorf("MMIO read = %#x, %v", got, ok)
	}
	if !m.Write32(base+0x10, 0x2222) {
		t.Fatal("MMIO write failed")
	}
	if hook.value != 0x2222 {
		t.Errorf("hook register %#x, want 0x2222", hook.value)
	}
	if len(hook.reads) != 1 || hook.reads[0] != base+0x10 {
		t.Errorf("hook reads = %v", hook.reads)
	}
	// Block accessors do not dispatch to MMIO.
	var buf [4]byte
	if m.ReadBlock(base, buf[:]) {
		t.Error("ReadBlock on MMIO range succeeded")
	}
}

func TestReadCString(t *testing.T) {
	m := newTestManager(t)
	base := addr(0x200000)
	if _, code := m.MapMemoryBlock(base, NewBlock(0x1000), 0, 0x1000, horizon.StateNormal); code.IsError() {
		t.Fatalf("MapMemoryBlock: %v", code)
	}

	for _, test := range []struct {
		name   string
		data   string
		maxLen int
		want   string
		ok     bool
	}{
		{"short", "sm:\x00", 11, "sm:", true},
		{"empty", "\x00", 11, "", true},
		{"exactly max", "elevenchars\x00", 11, "elevenchars", true},
		{"one past max", "twelve chars\x00", 11, "", false},
	} {
		t.Run(test.name, func(t *testing.T) {
			if !m.WriteBlock(base, []byte(test.data)) {
				t.Fatal("WriteBlock failed")
			}
			got, ok := m.ReadCString(base, test.maxLen)
			if got != test.want || ok != test.ok {
				t.Errorf("ReadCString = %q, %v; want %q, %v", got, ok, test.want, test.ok)
			}
		})
	}

	// Unterminated string running into unmapped memory.
	tail := base + 0x1000 - 4
	if !m.WriteBlock(tail, []byte("abcd")) {
		t.Fatal("WriteBlock failed")
	}
	if _, ok := m.ReadCString(tail, 11); ok {
		t.Error("ReadCString across unmapped page succeeded")
	}
}

func TestIsValidRange(t *testing.T) {
	m := newTestManager(t)
	base := addr(0x200000)
	if _, code := m.MapMemoryBlock(base, NewBlock(0x2000), 0, 0x2000, horizon.StateNormal); code.IsError() {
		t.Fatalf("MapMemoryBlock: %v", code)
	}
	if !m.IsValidRange(base+0x10, 0x1FF0) {
		t.Error("IsValidRange(valid) = false")
	}
	if m.IsValidRange(base, 0x3000) {
		t.Error("IsValidRange(partially unmapped) = true")
	}
	if m.IsValidRange(addr(0xFFFFFFFFFFFFFFF0), 0x20) {
		t.Error("IsValidRange(overflow) = true")
	}
}
