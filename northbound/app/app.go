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

package app

import (
	"time"

	"github.com/CPqD/nox13oflib/event"
	"github.com/CPqD/nox13oflib/loop"
	"github.com/CPqD/nox13oflib/openflow"
)

// Controller is the part of the controller that applications use. Every
// method must be called from the loop goroutine, as event handlers are.
type Controller interface {
	Bind(channel, component string, handler event.Handler) (event.HandlerID, error)
	Send(dpid openflow.DatapathID, msg openflow.Outgoing, xid uint32, block bool) error
	SendPacket(dpid openflow.DatapathID, bufferID, inPort, outPort uint32, block bool) error
	SendPacketData(dpid openflow.DatapathID, data []byte, inPort, outPort uint32, block bool) error
	PostTimer(d time.Duration, f func()) *loop.Timer
}

// Application is a component that reacts to controller events.
type Application interface {
	// Name returns the application name that is globally unique. Handlers
	// are bound under this name, so filter chains refer to it.
	Name() string
	// Dependencies returns the names of the applications that must be
	// enabled first.
	Dependencies() []string
	// Install binds the handlers of the application.
	Install(ctrl Controller) error
}

// Binding is a (channel, handler) pair that BindAll installs.
type Binding struct {
	Channel string
	Handler event.Handler
}

// BindAll binds every handler under name and stops at the first failure.
func BindAll(ctrl Controller, name string, bindings []Binding) error {
	for _, v := range bindings {
		if _, err := ctrl.Bind(v.Channel, name, v.Handler); err != nil {
			return err
		}
	}

	return nil
}

// FloodPacket floods the packet of a packet-in out of every port except the
// ingress one. It reports false if the switch sent a truncated unbuffered
// packet, which cannot be flooded.
func FloodPacket(ctrl Controller, dpid openflow.DatapathID, in *openflow.PacketIn) (bool, error) {
	return OutputPacket(ctrl, dpid, in, openflow.OFPP_FLOOD)
}

// OutputPacket sends the packet of a packet-in out of port.
func OutputPacket(ctrl Controller, dpid openflow.DatapathID, in *openflow.PacketIn, port uint32) (bool, error) {
	if in.BufferID != openflow.OFP_NO_BUFFER {
		return true, ctrl.SendPacket(dpid, in.BufferID, in.InPort(), port, true)
	}
	// The switch did not buffer the packet and did not send all of it.
	if int(in.TotalLen) != len(in.Data) {
		return false, nil
	}

	return true, ctrl.SendPacketData(dpid, in.Data, in.InPort(), port, true)
}
