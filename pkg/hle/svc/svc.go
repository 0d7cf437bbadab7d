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

// Package svc implements the guest supervisor-call ABI. The CPU backend
// traps an SVC instruction, marshals registers X0..X7 into SVCArguments and
// calls Dispatcher.Call with the 8-bit immediate; handlers validate the
// arguments, invoke the kernel and write results back into the registers.
package svc

import (
	"github.com/sirupsen/logrus"

	"nxemu.dev/nxemu/pkg/abi/horizon"
	"nxemu.dev/nxemu/pkg/hle/arch"
	"nxemu.dev/nxemu/pkg/hle/kernel"
	"nxemu.dev/nxemu/pkg/hle/result"
)

// Fn is one SVC handler. It runs with the kernel lock held.
type Fn func(ctx *kernel.Context, args *arch.SVCArguments)

// SVC is one entry of the dispatch table.
type SVC struct {
	Name string
	Fn   Fn
}

// table maps SVC immediates to handlers.
var table = map[uint32]SVC{
	horizon.SVCSetHeapSize:                  {"SetHeapSize", SetHeapSize},
	horizon.SVCSetMemoryPermission:          {"SetMemoryPermission", SetMemoryPermission},
	horizon.SVCSetMemoryAttribute:           {"SetMemoryAttribute", SetMemoryAttribute},
	horizon.SVCMapMemory:                    {"MapMemory", MapMemory},
	horizon.SVCUnmapMemory:                  {"UnmapMemory", UnmapMemory},
	horizon.SVCQueryMemory:                  {"QueryMemory", QueryMemory},
	horizon.SVCExitProcess:                  {"ExitProcess", ExitProcess},
	horizon.SVCCreateThread:                 {"CreateThread", CreateThread},
	horizon.SVCStartThread:                  {"StartThread", StartThread},
	horizon.SVCExitThread:                   {"ExitThread", ExitThread},
	horizon.SVCSleepThread:                  {"SleepThread", SleepThread},
	horizon.SVCGetThreadPriority:            {"GetThreadPriority", GetThreadPriority},
	horizon.SVCSetThreadPriority:            {"SetThreadPriority", SetThreadPriority},
	horizon.SVCGetThreadCoreMask:            {"GetThreadCoreMask", GetThreadCoreMask},
	horizon.SVCSetThreadCoreMask:            {"SetThreadCoreMask", SetThreadCoreMask},
	horizon.SVCGetCurrentProcessorNumber:    {"GetCurrentProcessorNumber", GetCurrentProcessorNumber},
	horizon.SVCSignalEvent:                  {"SignalEvent", SignalEvent},
	horizon.SVCClearEvent:                   {"ClearEvent", ClearEvent},
	horizon.SVCMapSharedMemory:              {"MapSharedMemory", MapSharedMemory},
	horizon.SVCUnmapSharedMemory:            {"UnmapSharedMemory", UnmapSharedMemory},
	horizon.SVCCreateTransferMemory:         {"CreateTransferMemory", CreateTransferMemory},
	horizon.SVCCloseHandle:                  {"CloseHandle", CloseHandle},
	horizon.SVCResetSignal:                  {"ResetSignal", ResetSignal},
	horizon.SVCWaitSynchronization:          {"WaitSynchronization", WaitSynchronization},
	horizon.SVCCancelSynchronization:        {"CancelSynchronization", CancelSynchronization},
	horizon.SVCArbitrateLock:                {"ArbitrateLock", ArbitrateLock},
	horizon.SVCArbitrateUnlock:              {"ArbitrateUnlock", ArbitrateUnlock},
	horizon.SVCWaitProcessWideKeyAtomic:     {"WaitProcessWideKeyAtomic", WaitProcessWideKeyAtomic},
	horizon.SVCSignalProcessWideKey:         {"SignalProcessWideKey", SignalProcessWideKey},
	horizon.SVCGetSystemTick:                {"GetSystemTick", GetSystemTick},
	horizon.SVCConnectToNamedPort:           {"ConnectToNamedPort", ConnectToNamedPort},
	horizon.SVCSendSyncRequest:              {"SendSyncRequest", SendSyncRequest},
	horizon.SVCGetProcessID:                 {"GetProcessId", GetProcessID},
	horizon.SVCGetThreadID:                  {"GetThreadId", GetThreadID},
	horizon.SVCBreak:                        {"Break", Break},
	horizon.SVCOutputDebugString:            {"OutputDebugString", OutputDebugString},
	horizon.SVCGetInfo:                      {"GetInfo", GetInfo},
	horizon.SVCGetResourceLimitLimitValue:   {"GetResourceLimitLimitValue", GetResourceLimitLimitValue},
	horizon.SVCGetResourceLimitCurrentValue: {"GetResourceLimitCurrentValue", GetResourceLimitCurrentValue},
	horizon.SVCSetThreadActivity:            {"SetThreadActivity", SetThreadActivity},
	horizon.SVCGetThreadContext:             {"GetThreadContext", GetThreadContext},
	horizon.SVCWaitForAddress:               {"WaitForAddress", WaitForAddress},
	horizon.SVCSignalToAddress:              {"SignalToAddress", SignalToAddress},
	horizon.SVCCreateEvent:                  {"CreateEvent", CreateEvent},
	horizon.SVCCreateSharedMemory:           {"CreateSharedMemory", CreateSharedMemory},
	horizon.SVCGetProcessInfo:               {"GetProcessInfo", GetProcessInfo},
	horizon.SVCCreateResourceLimit:          {"CreateResourceLimit", CreateResourceLimit},
	horizon.SVCSetResourceLimitLimitValue:   {"SetResourceLimitLimitValue", SetResourceLimitLimitValue},
}

// Dispatcher routes trapped SVCs to their handlers.
type Dispatcher struct {
	ctx kernel.Context
	log *logrus.Entry
}

// NewDispatcher returns a dispatcher bound to k.
func NewDispatcher(k *kernel.Kernel) *Dispatcher {
	return &Dispatcher{
		ctx: kernel.Context{Kernel: k},
		log: k.Log().WithField("subsystem", "svc"),
	}
}

// Call dispatches one SVC trap. It acquires the kernel lock for the duration
// of the handler; the CPU backend must not hold it.
func (d *Dispatcher) Call(imm uint32, args *arch.SVCArguments) {
	d.ctx.Kernel.Lock()
	defer d.ctx.Kernel.Unlock()

	entry, ok := table[imm]
	if !ok {
		d.log.WithField("imm", imm).Warn("unimplemented SVC")
		args.SetResult(uint32(result.ErrInvalidEnumValue))
		return
	}
	entry.Fn(&d.ctx, args)
}

// Name returns the mnemonic for an SVC immediate.
func Name(imm uint32) string {
	if entry, ok := table[imm]; ok {
		return entry.Name
	}
	return "unknown"
}
