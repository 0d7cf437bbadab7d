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
	"unsafe"
)

// hostMemContiguous returns true if b starts exactly one byte past the end of
// a in host memory.
func hostMemContiguous(a, b []byte) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	return uintptr(unsafe.Pointer(&a[0]))+uintptr(len(a)) == uintptr(unsafe.Pointer(&b[0]))
}

// hostMemJoin returns the single slice spanning a then b.
//
// Preconditions: hostMemContiguous(a, b).
func hostMemJoin(a, b []byte) []byte {
	return unsafe.Slice(&a[0], len(a)+len(b))
}
