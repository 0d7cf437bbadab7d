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
	"time"

	"nxemu.dev/nxemu/pkg/abi/horizon"
)

// Timekeeper converts between host time and the guest's system counter,
// which ticks at a fixed 19.2 MHz regardless of host clock resolution.
type Timekeeper struct {
	origin time.Time

	// now is replaceable so tests can drive time by hand.
	now func() time.Time
}

// NewTimekeeper returns a timekeeper anchored at the current host time.
func NewTimekeeper() *Timekeeper {
	return &Timekeeper{
		origin: time.Now(),
		now:    time.Now,
	}
}

// SetNowFunc overrides the time source.
func (tk *Timekeeper) SetNowFunc(now func() time.Time) {
	tk.now = now
}

// SystemTick returns the guest system counter value.
func (tk *Timekeeper) SystemTick() uint64 {
	elapsed := tk.now().Sub(tk.origin)
	return uint64(elapsed.Nanoseconds()) * horizon.TicksPerSecond / uint64(time.Second)
}

// TicksToNanoseconds converts a counter delta to nanoseconds.
func TicksToNanoseconds(ticks uint64) int64 {
	return int64(ticks * uint64(time.Second) / horizon.TicksPerSecond)
}
