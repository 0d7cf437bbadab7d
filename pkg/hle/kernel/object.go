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

// ObjectID is a kernel-wide unique object identifier, used for diagnostics
// and for the arena indirection of waiter lists.
type ObjectID uint64

// Object is anything a handle can refer to.
type Object interface {
	// ObjectID returns the object's kernel-wide ID.
	ObjectID() ObjectID

	// TypeName names the object's kind for diagnostics.
	TypeName() string

	// Name returns the object's debug name, possibly empty.
	Name() string
}

// baseObject supplies the Object plumbing for all kernel object kinds.
type baseObject struct {
	id   ObjectID
	name string
}

// ObjectID implements Object.ObjectID.
func (o *baseObject) ObjectID() ObjectID { return o.id }

// Name implements Object.Name.
func (o *baseObject) Name() string { return o.name }

// Closable is an Object holding kernel resources beyond its handle table
// slot, such as a port's session budget or a lent memory range. The handle
// table calls Close when the last handle referring to the object is dropped.
type Closable interface {
	Object

	// Close releases the object's resources. Close is idempotent.
	Close()
}

// WaitObject is an Object a thread can block on via WaitSynchronization.
type WaitObject interface {
	Object

	// ShouldWait returns true if t would block on the object right now.
	ShouldWait(t *Thread) bool

	// Acquire consumes the object's signaled state for t, where the kind
	// requires that (one-shot events, server sessions).
	Acquire(t *Thread)

	// AddWaiter registers t as waiting on the object.
	AddWaiter(t *Thread)

	// RemoveWaiter unregisters t.
	RemoveWaiter(t *Thread)

	// WakeupAllWaiters wakes every waiter that no longer needs to wait.
	WakeupAllWaiters()
}

// waiterSet is the waiter bookkeeping shared by all WaitObject kinds. It
// stores thread IDs, never thread pointers: entries are resolved through the
// kernel's thread registry at use time and silently dropped if the thread is
// gone.
type waiterSet struct {
	k   *Kernel
	ids []ThreadID
}

func (w *waiterSet) add(t *Thread) {
	for _, id := range w.ids {
		if id == t.id {
			return
		}
	}
	w.ids = append(w.ids, t.id)
}

func (w *waiterSet) remove(t *Thread) {
	for i, id := range w.ids {
		if id == t.id {
			w.ids = append(w.ids[:i], w.ids[i+1:]...)
			return
		}
	}
}

// threads resolves the live waiters in attach order, pruning dead IDs.
func (w *waiterSet) threads() []*Thread {
	out := make([]*Thread, 0, len(w.ids))
	live := w.ids[:0]
	for _, id := range w.ids {
		if t := w.k.ThreadByID(id); t != nil {
			out = append(out, t)
			live = append(live, id)
		}
	}
	w.ids = live
	return out
}

// wakeupAll wakes every waiter of obj that no longer needs to wait. This is
// the default WakeupAllWaiters implementation.
func (w *waiterSet) wakeupAll(obj WaitObject) {
	for _, t := range w.threads() {
		if !obj.ShouldWait(t) {
			t.wakeFromWaitObject(obj)
		}
	}
}
