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
	"nxemu.dev/nxemu/pkg/hle/result"
)

// ReadableEvent is the waitable end of an event pair.
type ReadableEvent struct {
	baseObject

	resetType horizon.EventResetType
	signaled  bool
	waiters   waiterSet
}

// WritableEvent is the signaling end of an event pair.
type WritableEvent struct {
	baseObject

	readable *ReadableEvent
}

// NewEventPair creates the two ends of an event.
func (k *Kernel) NewEventPair(name string, resetType horizon.EventResetType) (*WritableEvent, *ReadableEvent) {
	r := &ReadableEvent{
		baseObject: baseObject{id: k.newObjectID(), name: name + ":Readable"},
		resetType:  resetType,
		waiters:    waiterSet{k: k},
	}
	w := &WritableEvent{
		baseObject: baseObject{id: k.newObjectID(), name: name + ":Writable"},
		readable:   r,
	}
	return w, r
}

// TypeName implements Object.TypeName.
func (e *ReadableEvent) TypeName() string { return "ReadableEvent" }

// Signaled reports whether the event is currently signaled.
func (e *ReadableEvent) Signaled() bool { return e.signaled }

// ShouldWait implements WaitObject.ShouldWait.
func (e *ReadableEvent) ShouldWait(*Thread) bool { return !e.signaled }

// Acquire implements WaitObject.Acquire. One-shot events auto-clear on
// successful acquisition; sticky events stay signaled until reset.
func (e *ReadableEvent) Acquire(*Thread) {
	if e.resetType == horizon.ResetOneShot {
		e.signaled = false
	}
}

// AddWaiter implements WaitObject.AddWaiter.
func (e *ReadableEvent) AddWaiter(t *Thread) { e.waiters.add(t) }

// RemoveWaiter implements WaitObject.RemoveWaiter.
func (e *ReadableEvent) RemoveWaiter(t *Thread) { e.waiters.remove(t) }

// WakeupAllWaiters implements WaitObject.WakeupAllWaiters.
func (e *ReadableEvent) WakeupAllWaiters() { e.waiters.wakeupAll(e) }

// Signal marks the event signaled and wakes waiters.
func (e *ReadableEvent) Signal() {
	e.signaled = true
	e.WakeupAllWaiters()
}

// Clear unconditionally clears the signaled state.
func (e *ReadableEvent) Clear() {
	e.signaled = false
}

// ResetSignal clears the signaled state, failing if the event was not
// signaled.
func (e *ReadableEvent) ResetSignal() result.Code {
	if !e.signaled {
		return result.ErrInvalidState
	}
	e.signaled = false
	return result.Success
}

// TypeName implements Object.TypeName.
func (e *WritableEvent) TypeName() string { return "WritableEvent" }

// Readable returns the paired readable end.
func (e *WritableEvent) Readable() *ReadableEvent { return e.readable }

// Signal signals the paired readable end.
func (e *WritableEvent) Signal() { e.readable.Signal() }

// Clear clears the paired readable end.
func (e *WritableEvent) Clear() { e.readable.Clear() }
