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

// SessionHandler services sync requests arriving on a server session. The
// request's message is in the calling thread's TLS block; the handler writes
// its reply there before returning.
type SessionHandler func(ctx *Context, s *ServerSession) result.Code

// ClientPort is the connect point of a service port, usually registered
// under a name like "sm:".
type ClientPort struct {
	baseObject

	maxSessions int32
	active      int32
	handler     SessionHandler
}

// NewClientPort creates a port accepting at most maxSessions concurrent
// sessions. handler, if non-nil, is attached to every session created
// through the port.
func (k *Kernel) NewClientPort(name string, maxSessions int32, handler SessionHandler) *ClientPort {
	return &ClientPort{
		baseObject:  baseObject{id: k.newObjectID(), name: name},
		maxSessions: maxSessions,
		handler:     handler,
	}
}

// TypeName implements Object.TypeName.
func (p *ClientPort) TypeName() string { return "ClientPort" }

// Connect creates a new session pair through the port.
func (p *ClientPort) Connect(k *Kernel, proc *Process) (*ClientSession, result.Code) {
	if p.active >= p.maxSessions {
		return nil, result.ErrOutOfRange
	}
	if code := proc.limit.Reserve(horizon.ResourceSessions, 1); code.IsError() {
		return nil, code
	}
	p.active++
	server := &ServerSession{
		baseObject: baseObject{id: k.newObjectID(), name: p.name + ":Server"},
		handler:    p.handler,
		waiters:    waiterSet{k: k},
	}
	client := &ClientSession{
		baseObject: baseObject{id: k.newObjectID(), name: p.name + ":Client"},
		owner:      proc,
		port:       p,
		server:     server,
	}
	server.client = client
	return client, result.Success
}

// ClientSession is the guest-facing end of a session.
type ClientSession struct {
	baseObject

	owner  *Process
	port   *ClientPort
	server *ServerSession
	closed bool
}

// TypeName implements Object.TypeName.
func (s *ClientSession) TypeName() string { return "ClientSession" }

// Server returns the paired server end.
func (s *ClientSession) Server() *ServerSession { return s.server }

// SendSyncRequest delivers the request message sitting in the calling
// thread's TLS block. Sessions with an attached handler are serviced
// inline; the calling thread passes through its IPC wait without ever
// becoming visible as suspended. Unhandled sessions complete vacuously.
func (s *ClientSession) SendSyncRequest(ctx *Context) result.Code {
	if s.closed || s.server == nil || s.server.closed {
		return result.ErrSessionClosed
	}
	t := ctx.CurrentThread()
	t.status = StatusWaitIPC
	code := result.Success
	if s.server.handler != nil {
		code = s.server.handler(ctx, s.server)
	}
	t.status = StatusRunning
	return code
}

// Close tears down the client end. The server end becomes signaled so a
// waiting server can observe the hangup.
func (s *ClientSession) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.port.active--
	s.owner.limit.Release(horizon.ResourceSessions, 1)
	if s.server != nil {
		s.server.WakeupAllWaiters()
	}
}

// ServerSession is the service-facing end of a session. It is waitable:
// the session signals when the client end hangs up.
type ServerSession struct {
	baseObject

	client  *ClientSession
	handler SessionHandler
	closed  bool
	waiters waiterSet
}

// TypeName implements Object.TypeName.
func (s *ServerSession) TypeName() string { return "ServerSession" }

// Client returns the paired client end.
func (s *ServerSession) Client() *ClientSession { return s.client }

// ShouldWait implements WaitObject.ShouldWait.
func (s *ServerSession) ShouldWait(*Thread) bool {
	return !s.closed && (s.client == nil || !s.client.closed)
}

// Acquire implements WaitObject.Acquire.
func (s *ServerSession) Acquire(*Thread) {}

// AddWaiter implements WaitObject.AddWaiter.
func (s *ServerSession) AddWaiter(t *Thread) { s.waiters.add(t) }

// RemoveWaiter implements WaitObject.RemoveWaiter.
func (s *ServerSession) RemoveWaiter(t *Thread) { s.waiters.remove(t) }

// WakeupAllWaiters implements WaitObject.WakeupAllWaiters.
func (s *ServerSession) WakeupAllWaiters() { s.waiters.wakeupAll(s) }

// Close tears down the server end.
func (s *ServerSession) Close() {
	s.closed = true
	s.WakeupAllWaiters()
}
