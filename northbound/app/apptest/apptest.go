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

// Package apptest provides a recording controller for application tests.
package apptest

import (
	"net"
	"time"

	"github.com/CPqD/nox13oflib/event"
	"github.com/CPqD/nox13oflib/loop"
	"github.com/CPqD/nox13oflib/openflow"

	"github.com/mdlayher/ethernet"
)

// Sent is one message or packet handed to the controller.
type Sent struct {
	DPID     openflow.DatapathID
	Message  openflow.Outgoing
	BufferID uint32
	InPort   uint32
	OutPort  uint32
	Data     []byte
}

// Controller records bindings and sends. Its zero value is not usable: call
// New.
type Controller struct {
	Handlers map[string][]event.Handler
	Sent     []Sent
	Loop     *loop.Loop
	// Returned by every send when not nil.
	Err error
}

func New() *Controller {
	return &Controller{
		Handlers: make(map[string][]event.Handler),
		Loop:     loop.New(),
	}
}

func (r *Controller) Bind(channel, component string, handler event.Handler) (event.HandlerID, error) {
	r.Handlers[channel] = append(r.Handlers[channel], handler)
	return event.HandlerID(len(r.Handlers[channel])), nil
}

func (r *Controller) Send(dpid openflow.DatapathID, msg openflow.Outgoing, xid uint32, block bool) error {
	if r.Err != nil {
		return r.Err
	}
	r.Sent = append(r.Sent, Sent{DPID: dpid, Message: msg})

	return nil
}

func (r *Controller) SendPacket(dpid openflow.DatapathID, bufferID, inPort, outPort uint32, block bool) error {
	if r.Err != nil {
		return r.Err
	}
	r.Sent = append(r.Sent, Sent{DPID: dpid, BufferID: bufferID, InPort: inPort, OutPort: outPort})

	return nil
}

func (r *Controller) SendPacketData(dpid openflow.DatapathID, data []byte, inPort, outPort uint32, block bool) error {
	if r.Err != nil {
		return r.Err
	}
	r.Sent = append(r.Sent, Sent{DPID: dpid, BufferID: openflow.OFP_NO_BUFFER, InPort: inPort, OutPort: outPort, Data: data})

	return nil
}

func (r *Controller) PostTimer(d time.Duration, f func()) *loop.Timer {
	return r.Loop.After(d, f)
}

// Deliver runs the handlers bound on e.Name in binding order.
func (r *Controller) Deliver(e *event.Event) {
	for _, h := range r.Handlers[e.Name] {
		if h(e) == event.Stop {
			return
		}
	}
}

// FlowMods returns the flow mods sent so far.
func (r *Controller) FlowMods() []*openflow.FlowMod {
	var result []*openflow.FlowMod
	for _, v := range r.Sent {
		if m, ok := v.Message.(*openflow.FlowMod); ok {
			result = append(result, m)
		}
	}

	return result
}

// Packets returns the packet outs sent so far.
func (r *Controller) Packets() []Sent {
	var result []Sent
	for _, v := range r.Sent {
		if v.Message == nil {
			result = append(result, v)
		}
	}

	return result
}

// PacketIn builds a packet-in event for frame received on inPort.
func PacketIn(dpid openflow.DatapathID, bufferID, inPort uint32, frame []byte) *event.Event {
	match := openflow.NewMatch()
	match.SetInPort(inPort)
	msg := &openflow.PacketIn{
		Message:  openflow.NewMessage(openflow.OFPT_PACKET_IN, 0),
		BufferID: bufferID,
		TotalLen: uint16(len(frame)),
		Match:    match,
		Data:     frame,
	}
	e, ok := event.NewMessage(dpid, msg, 0)
	if !ok {
		panic("PACKET_IN has no channel")
	}

	return e
}

// Frame returns an Ethernet frame with a zero payload.
func Frame(dst, src string, etherType ethernet.EtherType) []byte {
	f := &ethernet.Frame{
		Destination: mustMAC(dst),
		Source:      mustMAC(src),
		EtherType:   etherType,
		Payload:     make([]byte, 46),
	}
	b, err := f.MarshalBinary()
	if err != nil {
		panic(err)
	}

	return b
}

func mustMAC(s string) net.HardwareAddr {
	mac, err := net.ParseMAC(s)
	if err != nil {
		panic(err)
	}

	return mac
}
