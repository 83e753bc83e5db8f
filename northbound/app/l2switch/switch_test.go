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

package l2switch

import (
	"testing"
	"time"

	"github.com/CPqD/nox13oflib/event"
	"github.com/CPqD/nox13oflib/northbound/app/apptest"
	"github.com/CPqD/nox13oflib/openflow"

	"github.com/mdlayher/ethernet"
)

const (
	hostA = "00:00:00:00:00:0a"
	hostB = "00:00:00:00:00:0b"
	bcast = "ff:ff:ff:ff:ff:ff"
)

func newTestSwitch(t *testing.T, conf Config) (*L2Switch, *apptest.Controller) {
	sw := New(conf)
	ctrl := apptest.New()
	if err := sw.Install(ctrl); err != nil {
		t.Fatalf("unexpected install error: %v", err)
	}

	return sw, ctrl
}

func frame(dst, src string) []byte {
	return apptest.Frame(dst, src, ethernet.EtherTypeIPv4)
}

func portStatus(dpid openflow.DatapathID, reason uint8, port openflow.Port) *event.Event {
	msg := &openflow.PortStatus{
		Message: openflow.NewMessage(openflow.OFPT_PORT_STATUS, 0),
		Reason:  reason,
		Port:    port,
	}
	e, ok := event.NewMessage(dpid, msg, 0)
	if !ok {
		panic("PORT_STATUS has no channel")
	}

	return e
}

func TestTableMissFlow(t *testing.T) {
	_, ctrl := newTestSwitch(t, DefaultConfig())
	ctrl.Deliver(event.NewDatapathJoin(0x1, openflow.NewFeaturesReply(0, 0x1)))

	mods := ctrl.FlowMods()
	if len(mods) != 1 {
		t.Fatalf("unexpected number of flow mods: expected=1, actual=%v", len(mods))
	}
	m := mods[0]
	if m.Priority != 0 || m.IdleTimeout != 0 || m.HardTimeout != 0 || m.Match.Len() != 0 {
		t.Fatalf("unexpected table-miss flow: %v", m)
	}
	out, ok := m.Actions[0].(*openflow.ActionOutput)
	if !ok || out.Port != openflow.OFPP_CONTROLLER {
		t.Fatalf("table-miss flow does not output to the controller: %v", m.Actions)
	}
}

func TestLearning(t *testing.T) {
	_, ctrl := newTestSwitch(t, DefaultConfig())

	// Unknown destination: flooded.
	ctrl.Deliver(apptest.PacketIn(0x1, 10, 1, frame(hostB, hostA)))
	if len(ctrl.FlowMods()) != 0 {
		t.Fatalf("flow is installed toward an unknown destination")
	}
	packets := ctrl.Packets()
	if len(packets) != 1 || packets[0].OutPort != openflow.OFPP_FLOOD || packets[0].BufferID != 10 {
		t.Fatalf("unexpected packet outs: %+v", packets)
	}

	// hostA is known on port 1 now.
	ctrl.Sent = nil
	ctrl.Deliver(apptest.PacketIn(0x1, 11, 2, frame(hostA, hostB)))
	mods := ctrl.FlowMods()
	if len(mods) != 1 {
		t.Fatalf("unexpected number of flow mods: expected=1, actual=%v", len(mods))
	}
	m := mods[0]
	if m.BufferID != 11 || m.IdleTimeout != flowIdleTimeout || m.HardTimeout != 0 {
		t.Fatalf("unexpected flow mod: %v", m)
	}
	if port, ok := m.Match.InPort(); !ok || port != 2 {
		t.Fatalf("unexpected in_port match: expected=2, actual=%v", port)
	}
	out, ok := m.Actions[0].(*openflow.ActionOutput)
	if !ok || out.Port != 1 {
		t.Fatalf("unexpected output action: %v", m.Actions)
	}
	if len(ctrl.Packets()) != 0 {
		t.Fatalf("buffered packet is sent in addition to the flow mod")
	}

	// Learned addresses are per switch.
	ctrl.Sent = nil
	ctrl.Deliver(apptest.PacketIn(0x2, 12, 2, frame(hostA, hostB)))
	if len(ctrl.FlowMods()) != 0 {
		t.Fatalf("address learned on DPID=0x1 is used on DPID=0x2")
	}
}

func TestUnbufferedKnownDestination(t *testing.T) {
	_, ctrl := newTestSwitch(t, DefaultConfig())
	ctrl.Deliver(apptest.PacketIn(0x1, openflow.OFP_NO_BUFFER, 1, frame(bcast, hostA)))

	ctrl.Sent = nil
	ctrl.Deliver(apptest.PacketIn(0x1, openflow.OFP_NO_BUFFER, 2, frame(hostA, hostB)))
	if len(ctrl.FlowMods()) != 1 {
		t.Fatalf("unexpected number of flow mods: expected=1, actual=%v", len(ctrl.FlowMods()))
	}
	packets := ctrl.Packets()
	if len(packets) != 1 || packets[0].OutPort != 1 || len(packets[0].Data) == 0 {
		t.Fatalf("unexpected packet outs: %+v", packets)
	}

	// Same flow again within the cache window: no duplicated flow mod.
	ctrl.Sent = nil
	ctrl.Deliver(apptest.PacketIn(0x1, openflow.OFP_NO_BUFFER, 2, frame(hostA, hostB)))
	if len(ctrl.FlowMods()) != 0 {
		t.Fatalf("duplicated flow mod is sent")
	}
	if len(ctrl.Packets()) != 1 {
		t.Fatalf("unexpected number of packet outs: expected=1, actual=%v", len(ctrl.Packets()))
	}
}

func TestNoFlow(t *testing.T) {
	conf := DefaultConfig()
	conf.NoFlow = true
	_, ctrl := newTestSwitch(t, conf)

	ctrl.Deliver(apptest.PacketIn(0x1, 20, 1, frame(bcast, hostA)))
	ctrl.Sent = nil
	ctrl.Deliver(apptest.PacketIn(0x1, 21, 2, frame(hostA, hostB)))
	if len(ctrl.FlowMods()) != 0 {
		t.Fatalf("flow is installed with NoFlow")
	}
	packets := ctrl.Packets()
	if len(packets) != 1 || packets[0].OutPort != 1 || packets[0].BufferID != 21 {
		t.Fatalf("unexpected packet outs: %+v", packets)
	}
}

func TestIgnoresLLDP(t *testing.T) {
	sw, ctrl := newTestSwitch(t, DefaultConfig())
	ctrl.Deliver(apptest.PacketIn(0x1, 1, 1, apptest.Frame("01:80:c2:00:00:0e", hostA, lldpType)))
	if len(ctrl.Sent) != 0 {
		t.Fatalf("LLDP packet is handled: %+v", ctrl.Sent)
	}
	if sw.macs.Len() != 0 {
		t.Fatalf("address is learned from LLDP")
	}
}

func TestPortDown(t *testing.T) {
	sw, ctrl := newTestSwitch(t, DefaultConfig())
	ctrl.Deliver(apptest.PacketIn(0x1, 1, 1, frame(bcast, hostA)))
	ctrl.Deliver(apptest.PacketIn(0x1, 2, 2, frame(bcast, hostB)))
	if sw.macs.Len() != 2 {
		t.Fatalf("unexpected number of learned addresses: expected=2, actual=%v", sw.macs.Len())
	}

	// Modified but still up: nothing happens.
	ctrl.Sent = nil
	ctrl.Deliver(portStatus(0x1, openflow.OFPPR_MODIFY, openflow.Port{Number: 1}))
	if len(ctrl.Sent) != 0 || sw.macs.Len() != 2 {
		t.Fatalf("live port is flushed")
	}

	ctrl.Deliver(portStatus(0x1, openflow.OFPPR_MODIFY, openflow.Port{Number: 1, State: openflow.OFPPS_LINK_DOWN}))
	mods := ctrl.FlowMods()
	if len(mods) != 1 {
		t.Fatalf("unexpected number of flow mods: expected=1, actual=%v", len(mods))
	}
	if mods[0].Command != openflow.OFPFC_DELETE || mods[0].TableID != openflow.OFPTT_ALL || mods[0].OutPort != 1 {
		t.Fatalf("unexpected flow mod: %v", mods[0])
	}
	if sw.macs.Len() != 1 {
		t.Fatalf("unexpected number of learned addresses: expected=1, actual=%v", sw.macs.Len())
	}

	ctrl.Deliver(event.NewDatapathLeave(0x1))
	if sw.macs.Len() != 0 {
		t.Fatalf("addresses survive the switch leave")
	}
}

func TestFlowCacheTimeout(t *testing.T) {
	cache := newFlowCache(16)
	clock := &fakeClock{t: time.Unix(1000, 0)}
	cache.now = clock.now

	key := flowKey{dpid: 0x1, inPort: 1, outPort: 2}
	cache.add(key)
	if !cache.exist(key) {
		t.Fatalf("cached flow is missing")
	}
	clock.advance(flowCacheTimeout + time.Second)
	if cache.exist(key) {
		t.Fatalf("expired flow exists")
	}

	cache.add(key)
	cache.purge(0x1, 2)
	if cache.exist(key) {
		t.Fatalf("purged flow exists")
	}
}
