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

package hub

import (
	"github.com/CPqD/nox13oflib/classifier"
	"github.com/CPqD/nox13oflib/event"
	"github.com/CPqD/nox13oflib/northbound/app"
	"github.com/CPqD/nox13oflib/openflow"

	"github.com/op/go-logging"
)

var (
	logger = logging.MustGetLogger("hub")
)

const (
	flowTimeout = 5
	lldpType    = 0x88cc
)

// Hub floods every packet and installs a wildcard flow that floods the
// rest for a few seconds.
type Hub struct {
	ctrl app.Controller
}

func New() *Hub {
	return &Hub{}
}

func (r *Hub) Name() string {
	return "Hub"
}

func (r *Hub) Dependencies() []string {
	return nil
}

func (r *Hub) Install(ctrl app.Controller) error {
	if ctrl == nil {
		panic("nil controller")
	}
	r.ctrl = ctrl

	return app.BindAll(ctrl, r.Name(), []app.Binding{
		{Channel: event.PacketIn, Handler: r.onPacketIn},
	})
}

func (r *Hub) onPacketIn(e *event.Event) event.Disposition {
	in := e.PacketIn()
	if in == nil {
		return event.Continue
	}
	if flow, err := classifier.NewFlowFromPacketIn(in); err == nil && flow.EthType == lldpType {
		return event.Continue
	}

	mod := openflow.NewFlowMod(0, openflow.OFPFC_ADD)
	mod.IdleTimeout = flowTimeout
	mod.HardTimeout = flowTimeout
	mod.BufferID = in.BufferID
	mod.Actions = []openflow.Action{openflow.NewActionOutput(openflow.OFPP_FLOOD)}
	if err := r.ctrl.Send(e.DPID, mod, 0, true); err != nil {
		logger.Errorf("failed to install the flood flow on DPID=%v: %v", e.DPID, err)
		return event.Continue
	}

	// The flow mod releases a buffered packet.
	if in.BufferID != openflow.OFP_NO_BUFFER {
		return event.Continue
	}
	ok, err := app.FloodPacket(r.ctrl, e.DPID, in)
	if err != nil {
		logger.Errorf("failed to flood a packet on DPID=%v: %v", e.DPID, err)
	} else if !ok {
		logger.Debugf("truncated unbuffered packet: total_len=%v, data_len=%v", in.TotalLen, len(in.Data))
	}

	return event.Continue
}
