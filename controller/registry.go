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
	"sort"

	"github.com/CPqD/nox13oflib/event"
	"github.com/CPqD/nox13oflib/openflow"
	"github.com/CPqD/nox13oflib/transport"
)

// registry owns the admitted connections. Connections live in an arena of
// slots and the index maps a datapath ID to the slot of its live connection.
// A slot is reused only after its connection is destroyed.
type registry struct {
	ctrl  *Controller
	slots []*conn
	free  []int
	index map[openflow.DatapathID]int
}

func newRegistry(ctrl *Controller) *registry {
	return &registry{
		ctrl:  ctrl,
		index: make(map[openflow.DatapathID]int),
	}
}

// admit registers t under dpid. A connection already registered under dpid
// is closed first. The close removes its index entry before returning, so
// the insertion below never collides. disconnected, if not nil, is closed
// once the new connection is destroyed.
func (r *registry) admit(t transport.Transport, dpid openflow.DatapathID, disconnected chan struct{}) *conn {
	if t == nil {
		panic("nil transport")
	}

	if prev := r.lookup(dpid); prev != nil {
		logger.Warningf("DPID=%v is already connected: closing the previous connection from %v", dpid, prev.transport.RemoteAddr())
		r.closeConn(prev)
	}

	c := &conn{
		ctrl:         r.ctrl,
		transport:    t,
		dpid:         dpid,
		disconnected: disconnected,
		lastRecv:     r.ctrl.now(),
	}
	if n := len(r.free); n > 0 {
		c.slot = r.free[n-1]
		r.free = r.free[:n-1]
		r.slots[c.slot] = c
	} else {
		c.slot = len(r.slots)
		r.slots = append(r.slots, c)
	}
	r.index[dpid] = c.slot
	r.ctrl.loop.Add(c)
	logger.Infof("DPID=%v is registered (remote=%v, slot=%v)", dpid, t.RemoteAddr(), c.slot)

	return c
}

func (r *registry) lookup(dpid openflow.DatapathID) *conn {
	slot, ok := r.index[dpid]
	if !ok {
		return nil
	}

	return r.slots[slot]
}

// close closes the connection registered under dpid. It returns false if
// there is none, which includes a connection that is already closing.
func (r *registry) close(dpid openflow.DatapathID) bool {
	c := r.lookup(dpid)
	if c == nil {
		return false
	}
	r.closeConn(c)

	return true
}

// closeConn marks c closing, posts the leave event and drops the index entry.
// The connection is destroyed now if no Poll of it is on the stack, or else
// when the outermost one returns. Calling it again has no effect.
func (r *registry) closeConn(c *conn) {
	if c.closing {
		return
	}
	c.closing = true
	logger.Infof("closing the connection of DPID=%v", c.dpid)

	r.ctrl.dispatcher.Post(event.NewDatapathLeave(c.dpid))
	if slot, ok := r.index[c.dpid]; ok && slot == c.slot {
		delete(r.index, c.dpid)
	}
	r.ctrl.loop.Remove(c)

	if c.depth == 0 {
		r.destroy(c)
	}
}

func (r *registry) destroy(c *conn) {
	if c.destroyed {
		panic("connection is destroyed twice")
	}
	c.destroyed = true

	if err := c.transport.Close(); err != nil {
		logger.Debugf("failed to close the transport of DPID=%v: %v", c.dpid, err)
	}
	r.slots[c.slot] = nil
	r.free = append(r.free, c.slot)
	if c.disconnected != nil {
		close(c.disconnected)
	}
	logger.Debugf("connection of DPID=%v is destroyed (slot=%v)", c.dpid, c.slot)
}

func (r *registry) len() int {
	return len(r.index)
}

func (r *registry) datapaths() []openflow.DatapathID {
	result := make([]openflow.DatapathID, 0, len(r.index))
	for dpid := range r.index {
		result = append(result, dpid)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })

	return result
}

// closeAll tears down every connection without posting leave events. It is
// used once the loop has stopped.
func (r *registry) closeAll() {
	for _, c := range r.slots {
		if c == nil || c.destroyed {
			continue
		}
		c.closing = true
		r.ctrl.loop.Remove(c)
		r.destroy(c)
	}
	r.index = make(map[openflow.DatapathID]int)
}
