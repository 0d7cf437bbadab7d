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

// Scheduler is the external thread scheduler the kernel core drives. The
// kernel owns thread state and wait lists; the scheduler owns which thread
// runs on which core and when.
type Scheduler interface {
	// CurrentThread returns the thread running on the core that trapped
	// into the kernel.
	CurrentThread() *Thread

	// CurrentCore returns the core that trapped into the kernel.
	CurrentCore() int

	// PrepareReschedule marks core as needing a context switch at the
	// next safe point.
	PrepareReschedule(core int)

	// WakeAfterDelay arranges for t's timeout to fire after ns
	// nanoseconds. A negative ns means no timeout. The timer delivers by
	// calling t.OnWakeTimeout under the kernel lock.
	WakeAfterDelay(t *Thread, ns int64)

	// CancelWakeup cancels any pending WakeAfterDelay timer for t.
	CancelWakeup(t *Thread)
}
