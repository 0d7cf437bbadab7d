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

// Default limits handed to processes that do not carry their own.
var defaultResourceLimits = [horizon.ResourceTypeCount]int64{
	horizon.ResourcePhysicalMemory: 0x100000000,
	horizon.ResourceThreads:        0x300,
	horizon.ResourceEvents:         0x400,
	horizon.ResourceTransferMemory: 0x200,
	horizon.ResourceSessions:       0x400,
}

// ResourceLimit tracks current and maximum counts per resource kind.
type ResourceLimit struct {
	baseObject

	current [horizon.ResourceTypeCount]int64
	limits  [horizon.ResourceTypeCount]int64
}

// NewResourceLimit returns a limit object populated with the default caps.
func (k *Kernel) NewResourceLimit(name string) *ResourceLimit {
	return &ResourceLimit{
		baseObject: baseObject{id: k.newObjectID(), name: name},
		limits:     defaultResourceLimits,
	}
}

// NewEmptyResourceLimit returns a limit object with every cap at zero, the
// state a guest-created limit starts in before SetLimitValue calls.
func (k *Kernel) NewEmptyResourceLimit(name string) *ResourceLimit {
	return &ResourceLimit{
		baseObject: baseObject{id: k.newObjectID(), name: name},
	}
}

// TypeName implements Object.TypeName.
func (rl *ResourceLimit) TypeName() string { return "ResourceLimit" }

// LimitValue returns the cap for the given resource kind.
func (rl *ResourceLimit) LimitValue(t horizon.ResourceLimitType) (int64, result.Code) {
	if t >= horizon.ResourceTypeCount {
		return 0, result.ErrInvalidEnumValue
	}
	return rl.limits[t], result.Success
}

// CurrentValue returns the current usage of the given resource kind.
func (rl *ResourceLimit) CurrentValue(t horizon.ResourceLimitType) (int64, result.Code) {
	if t >= horizon.ResourceTypeCount {
		return 0, result.ErrInvalidEnumValue
	}
	return rl.current[t], result.Success
}

// SetLimitValue changes the cap for the given resource kind. Lowering the
// cap below current usage fails.
func (rl *ResourceLimit) SetLimitValue(t horizon.ResourceLimitType, v int64) result.Code {
	if t >= horizon.ResourceTypeCount {
		return result.ErrInvalidEnumValue
	}
	if v < rl.current[t] {
		return result.ErrInvalidCombination
	}
	rl.limits[t] = v
	return result.Success
}

// Reserve accounts n units of t, failing if the cap would be exceeded.
func (rl *ResourceLimit) Reserve(t horizon.ResourceLimitType, n int64) result.Code {
	if rl.current[t]+n > rl.limits[t] {
		return result.ErrResourceLimitExceeded
	}
	rl.current[t] += n
	return result.Success
}

// Release returns n units of t.
func (rl *ResourceLimit) Release(t horizon.ResourceLimitType, n int64) {
	rl.current[t] -= n
	if rl.current[t] < 0 {
		rl.current[t] = 0
	}
}
