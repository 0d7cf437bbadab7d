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

package svc

import (
	"nxemu.dev/nxemu/pkg/abi/horizon"
	"nxemu.dev/nxemu/pkg/hle/arch"
	"nxemu.dev/nxemu/pkg/hle/kernel"
	"nxemu.dev/nxemu/pkg/hle/result"
)

// GetInfo returns one kernel or process property.
//
// In: X1 = info type, X2 = handle, X3 = sub type. Out: X1 = value.
func GetInfo(ctx *kernel.Context, args *arch.SVCArguments) {
	infoType := horizon.InfoType(args[1].Uint32())
	h := horizon.Handle(args[2].Handle())
	sub := args[3].Uint64()

	p, ok := ctx.GetProcess(h)
	if !ok {
		args.SetResult(uint32(result.ErrInvalidHandle))
		return
	}
	layout := p.MM().Layout()

	var value uint64
	switch infoType {
	case horizon.InfoAllowedCPUCoreMask:
		value = p.AllowedCoreMask()
	case horizon.InfoAllowedThreadPriorityMask:
		value = p.AllowedPriorityMask()
	case horizon.InfoMapRegionBaseAddr:
		value = uint64(layout.MapBase)
	case horizon.InfoMapRegionSize:
		value = uint64(layout.MapEnd - layout.MapBase)
	case horizon.InfoHeapRegionBaseAddr:
		value = uint64(layout.HeapBase)
	case horizon.InfoHeapRegionSize:
		value = uint64(layout.HeapEnd - layout.HeapBase)
	case horizon.InfoTotalMemoryUsage:
		value = p.MM().TotalMemoryUsage()
	case horizon.InfoTotalHeapUsage:
		value = p.MM().HeapUsed()
	case horizon.InfoIsCurrentProcessBeingDebugged:
		if p.BeingDebugged() {
			value = 1
		}
	case horizon.InfoRandomEntropy:
		if sub >= horizon.EntropySlots {
			args.SetResult(uint32(result.ErrInvalidCombination))
			return
		}
		value = p.Entropy()[sub]
	case horizon.InfoASLRRegionBaseAddr:
		value = uint64(layout.ASLRBase)
	case horizon.InfoASLRRegionSize:
		value = uint64(layout.ASLREnd - layout.ASLRBase)
	case horizon.InfoNewMapRegionBaseAddr:
		value = uint64(layout.NewMapBase)
	case horizon.InfoNewMapRegionSize:
		value = uint64(layout.NewMapEnd - layout.NewMapBase)
	case horizon.InfoTitleID:
		value = p.TitleID()
	default:
		args.SetResult(uint32(result.ErrInvalidEnumValue))
		return
	}
	args.SetResult(uint32(result.Success))
	args.Set(1, value)
}

// GetSystemTick returns the guest system counter. The value goes directly in
// X0; there is no result code.
func GetSystemTick(ctx *kernel.Context, args *arch.SVCArguments) {
	args.Set(0, ctx.Kernel.Timekeeper().SystemTick())
}
