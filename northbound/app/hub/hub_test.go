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
	"testing"

	"github.com/CPqD/nox13oflib/event"
	"github.com/CPqD/nox13oflib/northbound/app/apptest"
	"github.com/CPqD/nox13oflib/openflow"

	"github.com/mdlayher/ethernet"
)

func TestHub(t *testing.T) {
	ctrl := apptest.New()
	if err := New().Install(ctrl); err != nil {
		t.Fatalf("unexpected install error: %v", err)
	}
	if len(ctrl.Handlers[event.PacketIn]) != 1 {
		t.Fatalf("unexpected number of packet-in handlers: expected=1, actual=%v", len(ctrl.Handlers[event.PacketIn]))
	}

	frame := apptest.Frame("ff:ff:ff:ff:ff:ff", "00:00:00:00:00:01", ethernet.EtherTypeARP)
	samples := []struct {
		BufferID uint32
		Packets  int
	}{
		{BufferID: 7, Packets: 0},
		{BufferID: openflow.OFP_NO_BUFFER, Packets: 1},
	}

	for _, v := range samples {
		ctrl.Sent = nil
		ctrl.Deliver(apptest.PacketIn(0x1, v.BufferID, 3, frame))

		mods := ctrl.FlowMods()
		if len(mods) != 1 {
			t.Fatalf("unexpected number of flow mods: expected=1, actual=%v", len(mods))
		}
		if mods[0].BufferID != v.BufferID || mods[0].IdleTimeout != flowTimeout || mods[0].HardTimeout != flowTimeout {
			t.Fatalf("unexpected flow mod: %v", mods[0])
		}
		if mods[0].Match.Len() != 0 {
			t.Fatalf("flood flow is not a wildcard: %v", mods[0].Match.OXMs())
		}
		packets := ctrl.Packets()
		if len(packets) != v.Packets {
			t.Fatalf("unexpected number of packet outs: expected=%v, actual=%v", v.Packets, len(packets))
		}
		if v.Packets > 0 && (packets[0].InPort != 3 || packets[0].OutPort != openflow.OFPP_FLOOD) {
			t.Fatalf("unexpected packet out: %+v", packets[0])
		}
	}
}

func TestHubIgnoresLLDP(t *testing.T) {
	ctrl := apptest.New()
	if err := New().Install(ctrl); err != nil {
		t.Fatalf("unexpected install error: %v", err)
	}

	frame := apptest.Frame("01:80:c2:00:00:0e", "00:00:00:00:00:01", ethernet.EtherType(lldpType))
	ctrl.Deliver(apptest.PacketIn(0x1, openflow.OFP_NO_BUFFER, 1, frame))
	if len(ctrl.Sent) != 0 {
		t.Fatalf("LLDP packet is handled: %+v", ctrl.Sent)
	}
}
