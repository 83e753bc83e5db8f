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
	"io"
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

// conn is an admitted switch connection. It is owned by the registry.
type conn struct {
	ctrl      *Controller
	transport transport.Transport
	dpid      openflow.DatapathID
	slot      int

	closing   bool
	destroyed bool
	// Number of Poll calls of this connection on the stack.
	depth int
	// Closed when the connection is destroyed. May be nil.
	disconnected chan struct{}
	lastRecv     time.Time
}

func (r *conn) String() string {
	return fmt.Sprintf("conn(dpid=%v, remote=%v, closing=%v)", r.dpid, r.transport.RemoteAddr(), r.closing)
}

// Poll receives at most one frame and dispatches it synchronously.
func (r *conn) Poll() bool {
	r.depth++
	progress := r.pump()
	r.depth--

	// A handler may have closed this connection while we were on the stack.
	if r.depth == 0 && r.closing && !r.destroyed {
		r.ctrl.registry.destroy(r)
	}

	return progress
}

func (r *conn) pump() bool {
	if r.closing {
		return false
	}

	packet, err := r.transport.Recv()
	if err != nil {
		switch {
		case errors.Is(err, unix.EAGAIN):
			return false
		case err == io.EOF:
			logger.Warningf("DPID=%v: connection closed by peer", r.dpid)
		default:
			logger.Warningf("DPID=%v: disconnected (%v)", r.dpid, err)
		}
		r.ctrl.registry.closeConn(r)
		return true
	}
	r.lastRecv = r.ctrl.now()

	msg, xid, err := openflow.Decode(packet)
	if err != nil {
		// A discarded frame is not progress. RecvWait wakes the loop again
		// if more frames are queued.
		logger.Warningf("DPID=%v: discarding an undecodable message: %v", r.dpid, err)
		return false
	}
	if logger.IsEnabledFor(logging.DEBUG) {
		logger.Debugf("DPID=%v: received %v (xid=%v): %v", r.dpid, msg.Type(), xid, spew.Sdump(msg))
	}

	e, ok := event.NewMessage(r.dpid, msg, xid)
	if !ok {
		logger.Debugf("DPID=%v: no event channel for %v", r.dpid, msg.Type())
		return true
	}
	r.ctrl.dispatcher.Dispatch(e)

	return true
}

func (r *conn) Wait(l *loop.Loop) {
	r.transport.RecvWait(l)
}
