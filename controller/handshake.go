/*
 * Cherry - An OpenFlow Controller
 *
 * Copyright (C) 2015 Samjung Data Service, Inc. All rights reserved.
 * Kitae Kim <superkkt@sds.co.kr>
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation; either version 2 of the License, or
 * any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License along
 * with this program; if not, write to the Free Software Foundation, Inc.,
 * 51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
 */

package controller

import (
	"fmt"
	"time"

	"github.com/CPqD/nox13oflib/event"
	"github.com/CPqD/nox13oflib/loop"
	"github.com/CPqD/nox13oflib/openflow"
	"github.com/CPqD/nox13oflib/transport"

	"github.com/davecgh/go-spew/spew"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

type handshakeState int

const (
	stateSendFeaturesRequest handshakeState = iota
	stateSendConfig
	stateAwaitFeaturesReply
	stateCheckSwitchAuth
	stateRegisterSwitch
)

func (r handshakeState) String() string {
	switch r {
	case stateSendFeaturesRequest:
		return "sending features request"
	case stateSendConfig:
		return "sending switch config"
	case stateAwaitFeaturesReply:
		return "receiving features reply"
	case stateCheckSwitchAuth:
		return "checking switch auth"
	case stateRegisterSwitch:
		return "registering switch"
	default:
		return fmt.Sprintf("handshakeState(%d)", int(r))
	}
}

type blockedOn int

const (
	blockedOnNothing blockedOn = iota
	blockedOnWrite
	blockedOnRead
	blockedOnAuth
)

// session runs the handshake of one connection that has not been admitted
// yet. It owns its transport until the switch is registered or the session
// fails.
type session struct {
	ctrl      *Controller
	transport transport.Transport
	state     handshakeState
	timeout   time.Duration
	deadline  time.Time
	blocked   blockedOn
	finished  bool

	reply    *openflow.FeaturesReply
	approved bool

	// Receives the outcome exactly once. May be nil.
	waiter chan<- error
	// Handed to the admitted connection. May be nil.
	disconnected chan struct{}
}

// startHandshake begins the handshake on t. It must be called from the loop
// goroutine.
func (r *Controller) startHandshake(t transport.Transport, timeout time.Duration, waiter chan<- error, disconnected chan struct{}) *session {
	if t == nil {
		panic("nil transport")
	}

	s := &session{
		ctrl:         r,
		transport:    t,
		state:        stateSendFeaturesRequest,
		timeout:      timeout,
		deadline:     r.now().Add(timeout),
		waiter:       waiter,
		disconnected: disconnected,
	}
	r.sessions[s] = struct{}{}
	r.loop.Add(s)
	logger.Debugf("starting the handshake with %v (timeout=%v)", t.RemoteAddr(), timeout)

	return s
}

func (r *session) String() string {
	return fmt.Sprintf("session(remote=%v, state=%v)", r.transport.RemoteAddr(), r.state)
}

// Poll advances the state machine as far as it can go without blocking.
func (r *session) Poll() bool {
	if r.finished {
		return false
	}
	if !r.ctrl.now().Before(r.deadline) {
		logger.Warningf("%v: closing connection due to timeout after %v in %v state", r.transport.RemoteAddr(), r.timeout, r.state)
		r.fail(unix.ETIMEDOUT)
		return true
	}

	progress := false
	for !r.finished && r.step() {
		progress = true
	}

	return progress
}

func (r *session) Wait(l *loop.Loop) {
	switch r.blocked {
	case blockedOnWrite:
		r.transport.SendWait(l)
	case blockedOnRead:
		r.transport.RecvWait(l)
	}
	l.WakeAt(r.deadline)
}

// step runs the current state once and reports whether it advanced.
func (r *session) step() bool {
	switch r.state {
	case stateSendFeaturesRequest:
		return r.send(openflow.NewFeaturesRequest(0), stateSendConfig)
	case stateSendConfig:
		return r.send(openflow.NewSetConfig(0, openflow.OFPC_FRAG_NORMAL, openflow.OFPCML_NO_BUFFER), stateAwaitFeaturesReply)
	case stateAwaitFeaturesReply:
		return r.recv()
	case stateCheckSwitchAuth:
		return r.checkSwitchAuth()
	case stateRegisterSwitch:
		r.register()
		return true
	default:
		logger.Errorf("invalid handshake state: %v", r.state)
		r.fail(unix.EINVAL)
		return true
	}
}

func (r *session) send(msg openflow.Outgoing, next handshakeState) bool {
	packet, err := openflow.Encode(msg, r.ctrl.AllocateXID())
	if err != nil {
		logger.Errorf("failed to encode a message while %v: %v", r.state, err)
		r.fail(unix.EINVAL)
		return true
	}

	err = r.transport.Send(packet, false)
	switch {
	case err == nil:
		logger.Debugf("%v: success %v", r.transport.RemoteAddr(), r.state)
		r.blocked = blockedOnNothing
		r.state = next
		return true
	case errors.Is(err, unix.EAGAIN):
		r.blocked = blockedOnWrite
		return false
	default:
		logger.Warningf("%v: error %v: %v", r.transport.RemoteAddr(), r.state, err)
		r.fail(err)
		return true
	}
}

func (r *session) recv() bool {
	packet, err := r.transport.Recv()
	if err != nil {
		if errors.Is(err, unix.EAGAIN) {
			r.blocked = blockedOnRead
			return false
		}
		logger.Warningf("%v: error %v: %v", r.transport.RemoteAddr(), r.state, err)
		r.fail(err)
		return true
	}
	r.blocked = blockedOnNothing

	msg, xid, err := openflow.Decode(packet)
	if err != nil {
		logger.Warningf("%v: failed to decode a message during handshake: %v", r.transport.RemoteAddr(), err)
		r.fail(unix.EINVAL)
		return true
	}
	if logger.IsEnabledFor(logging.DEBUG) {
		logger.Debugf("%v: received %v during handshake: %v", r.transport.RemoteAddr(), msg.Type(), spew.Sdump(msg))
	}

	switch v := msg.(type) {
	case *openflow.FeaturesReply:
		r.reply = v
		r.state = stateCheckSwitchAuth
	case *openflow.EchoRequest:
		r.replyEcho(v, xid)
	case *openflow.Error:
		logger.Warningf("%v: received error during handshake: %v", r.transport.RemoteAddr(), v)
		r.fail(unix.EINVAL)
	case *openflow.PacketIn:
		logger.Debugf("%v: dropping packet in message during handshake", r.transport.RemoteAddr())
	default:
		logger.Warningf("%v: received unsupported message type during handshake: %v", r.transport.RemoteAddr(), msg.Type())
	}

	return true
}

func (r *session) replyEcho(req *openflow.EchoRequest, xid uint32) {
	packet, err := openflow.Encode(openflow.NewEchoReply(req), xid)
	if err != nil {
		logger.Errorf("failed to encode an echo reply: %v", err)
		return
	}
	if err := r.transport.Send(packet, false); err != nil {
		logger.Warningf("%v: failed to send an echo reply during handshake: %v", r.transport.RemoteAddr(), err)
	}
}

func (r *session) checkSwitchAuth() bool {
	if r.blocked == blockedOnAuth {
		return false
	}

	auth := r.ctrl.switchAuth
	if auth == nil {
		logger.Warningf("no switch auth is registered: auto-approving DPID=%v", r.reply.DPID)
		r.approved = true
		r.state = stateRegisterSwitch
		return true
	}

	r.blocked = blockedOnAuth
	delivered := false
	auth.CheckSwitchAuth(r.transport, r.reply, func(approved bool) {
		r.ctrl.loop.Submit(func() {
			if delivered {
				logger.Errorf("switch auth callback for DPID=%v is called more than once", r.reply.DPID)
				return
			}
			delivered = true
			if r.finished {
				return
			}
			r.approved = approved
			r.blocked = blockedOnNothing
			r.state = stateRegisterSwitch
		})
	})

	return false
}

func (r *session) register() {
	dpid := r.reply.DPID
	if !r.approved {
		logger.Errorf("disconnecting unapproved switch DPID=%v", dpid)
		r.fail(unix.EPERM)
		return
	}
	if !dpid.Valid() {
		logger.Errorf("0 is not a valid DPID: disconnecting the switch at %v", r.transport.RemoteAddr())
		r.fail(unix.EINVAL)
		return
	}

	r.finish()
	r.ctrl.registry.admit(r.transport, dpid, r.disconnected)
	r.ctrl.dispatcher.Post(event.NewDatapathJoin(dpid, r.reply))
	r.release(nil)
}

func (r *session) fail(err error) {
	r.finish()
	if err := r.transport.Close(); err != nil {
		logger.Debugf("failed to close the transport: %v", err)
	}
	r.release(err)
}

func (r *session) finish() {
	r.finished = true
	r.ctrl.loop.Remove(r)
	delete(r.ctrl.sessions, r)
}

func (r *session) release(err error) {
	if r.waiter == nil {
		return
	}
	r.waiter <- err
	r.waiter = nil
}
