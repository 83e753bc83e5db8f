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
	"github.com/CPqD/nox13oflib/event"
	"github.com/CPqD/nox13oflib/openflow"
)

// Number of echo intervals without any message before a switch is
// considered dead.
const echoMissLimit = 3

func (r *Controller) onEchoRequest(e *event.Event) event.Disposition {
	req := e.EchoRequest()
	if req == nil {
		return event.Continue
	}

	if err := r.Send(e.DPID, openflow.NewEchoReply(req), e.XID, false); err != nil {
		logger.Warningf("failed to send an echo reply to DPID=%v: %v", e.DPID, err)
	}

	return event.Continue
}

func (r *Controller) scheduleEchoProbe() {
	r.loop.After(r.config.EchoInterval, func() {
		r.probe()
		r.scheduleEchoProbe()
	})
}

// probe sends an echo request to every switch and closes the ones that have
// been silent for too long.
func (r *Controller) probe() {
	limit := r.config.EchoInterval * echoMissLimit
	now := r.now()

	for _, dpid := range r.registry.datapaths() {
		c := r.registry.lookup(dpid)
		if now.Sub(c.lastRecv) > limit {
			logger.Warningf("DPID=%v: no message for %v, closing the connection", dpid, now.Sub(c.lastRecv))
			r.registry.closeConn(c)
			continue
		}

		xid := r.AllocateXID()
		if err := r.Send(dpid, openflow.NewEchoRequest(xid, nil), xid, false); err != nil {
			logger.Debugf("failed to send an echo request to DPID=%v: %v", dpid, err)
		}
	}
}
