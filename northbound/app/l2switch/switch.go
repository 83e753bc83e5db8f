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
	"fmt"
	"net"

	"github.com/CPqD/nox13oflib/event"
	"github.com/CPqD/nox13oflib/northbound/app"
	"github.com/CPqD/nox13oflib/openflow"

	"github.com/hashicorp/golang-lru"
	"github.com/mdlayher/ethernet"
	"github.com/op/go-logging"
)

var (
	logger = logging.MustGetLogger("l2switch")
)

const (
	lldpType = ethernet.EtherType(0x88cc)
	// Idle timeout of the unicast flows. Hard timeout is permanent.
	flowIdleTimeout = 1
)

type Config struct {
	// NoFlow disables flow setup so that every packet goes through the
	// controller. It is only useful for debugging.
	NoFlow bool
	// Maximum number of learned addresses and cached flows.
	CacheSize int
	// Maximum number of floods per switch per second. Zero means unlimited.
	MaxBroadcasts uint
}

func DefaultConfig() Config {
	return Config{
		CacheSize:     8192,
		MaxBroadcasts: 100,
	}
}

type macKey struct {
	dpid openflow.DatapathID
	mac  string
}

// L2Switch is a MAC learning switch. It learns the port of every unicast
// source address per switch and installs exact flows toward known
// destinations. Unknown destinations are flooded.
type L2Switch struct {
	conf  Config
	ctrl  app.Controller
	macs  *lru.Cache
	flows *flowCache
	storm *stormController
}

func New(conf Config) *L2Switch {
	if conf.CacheSize <= 0 {
		panic("invalid cache size")
	}
	macs, err := lru.New(conf.CacheSize)
	if err != nil {
		panic(fmt.Sprintf("LRU MAC table: %v", err))
	}

	r := &L2Switch{
		conf:  conf,
		macs:  macs,
		flows: newFlowCache(conf.CacheSize),
	}
	if conf.MaxBroadcasts > 0 {
		r.storm = newStormController(conf.MaxBroadcasts, r)
	}

	return r
}

func (r *L2Switch) Name() string {
	return "L2Switch"
}

func (r *L2Switch) Dependencies() []string {
	return nil
}

func (r *L2Switch) String() string {
	return fmt.Sprintf("%v (noflow=%v, learned=%v)", r.Name(), r.conf.NoFlow, r.macs.Len())
}

func (r *L2Switch) Install(ctrl app.Controller) error {
	if ctrl == nil {
		panic("nil controller")
	}
	r.ctrl = ctrl

	return app.BindAll(ctrl, r.Name(), []app.Binding{
		{Channel: event.DatapathJoin, Handler: r.onDatapathJoin},
		{Channel: event.DatapathLeave, Handler: r.onDatapathLeave},
		{Channel: event.PortStatus, Handler: r.onPortStatus},
		{Channel: event.PacketIn, Handler: r.onPacketIn},
	})
}

// onDatapathJoin installs the table-miss flow that sends every unmatched
// packet to the controller. OpenFlow 1.3 switches drop them otherwise.
func (r *L2Switch) onDatapathJoin(e *event.Event) event.Disposition {
	logger.Debugf("installing the table-miss flow on DPID=%v", e.DPID)

	mod := openflow.NewFlowMod(0, openflow.OFPFC_ADD)
	mod.Priority = 0
	mod.Actions = []openflow.Action{openflow.NewActionOutput(openflow.OFPP_CONTROLLER)}
	if err := r.ctrl.Send(e.DPID, mod, 0, true); err != nil {
		logger.Errorf("failed to install the table-miss flow on DPID=%v: %v", e.DPID, err)
	}

	return event.Continue
}

func (r *L2Switch) onDatapathLeave(e *event.Event) event.Disposition {
	r.forget(e.DPID, openflow.OFPP_ANY)
	if r.storm != nil {
		r.storm.forget(e.DPID)
	}

	return event.Continue
}

func (r *L2Switch) onPortStatus(e *event.Event) event.Disposition {
	status := e.PortStatus()
	if status == nil {
		return event.Continue
	}
	port := status.Port
	if status.Reason != openflow.OFPPR_DELETE && !port.IsPortDown() && !port.IsLinkDown() {
		return event.Continue
	}
	logger.Infof("port is gone on DPID=%v: %v", e.DPID, port.String())

	r.forget(e.DPID, port.Number)
	// Remove the flows that output to the port from every table.
	mod := openflow.NewFlowMod(0, openflow.OFPFC_DELETE)
	mod.TableID = openflow.OFPTT_ALL
	mod.OutPort = port.Number
	if err := r.ctrl.Send(e.DPID, mod, 0, true); err != nil {
		logger.Errorf("failed to remove the flows of port %v on DPID=%v: %v", port.Number, e.DPID, err)
	}

	return event.Continue
}

// forget drops the addresses learned on port of dpid, or on every port if
// port is OFPP_ANY.
func (r *L2Switch) forget(dpid openflow.DatapathID, port uint32) {
	for _, v := range r.macs.Keys() {
		key := v.(macKey)
		if key.dpid != dpid {
			continue
		}
		if port != openflow.OFPP_ANY {
			if p, ok := r.macs.Peek(key); !ok || p.(uint32) != port {
				continue
			}
		}
		r.macs.Remove(key)
	}
	r.flows.purge(dpid, port)
}

func (r *L2Switch) lookup(dpid openflow.DatapathID, mac net.HardwareAddr) (port uint32, ok bool) {
	v, ok := r.macs.Get(macKey{dpid: dpid, mac: string(mac)})
	if !ok {
		return 0, false
	}

	return v.(uint32), true
}

func (r *L2Switch) learn(dpid openflow.DatapathID, mac net.HardwareAddr, port uint32) {
	key := macKey{dpid: dpid, mac: string(mac)}
	if v, ok := r.macs.Peek(key); ok && v.(uint32) == port {
		r.macs.Get(key)
		return
	}
	r.macs.Add(key, port)
	logger.Debugf("learned that %v is on DPID=%v port %v", mac, dpid, port)
}

func isMulticast(mac net.HardwareAddr) bool {
	return len(mac) > 0 && mac[0]&0x01 != 0
}

func (r *L2Switch) onPacketIn(e *event.Event) event.Disposition {
	in := e.PacketIn()
	if in == nil {
		return event.Continue
	}
	frame := new(ethernet.Frame)
	if err := frame.UnmarshalBinary(in.Data); err != nil {
		logger.Debugf("undecodable frame from DPID=%v: %v", e.DPID, err)
		return event.Continue
	}
	if frame.EtherType == lldpType {
		return event.Continue
	}

	inPort := in.InPort()
	if !isMulticast(frame.Source) {
		r.learn(e.DPID, frame.Source, inPort)
	} else {
		logger.Debugf("multicast packet source %v", frame.Source)
	}

	outPort, known := uint32(0), false
	if !isMulticast(frame.Destination) {
		outPort, known = r.lookup(e.DPID, frame.Destination)
	}
	if !known {
		if err := r.broadcast(e.DPID, in); err != nil {
			logger.Errorf("failed to flood a packet on DPID=%v: %v", e.DPID, err)
		}
		return event.Continue
	}
	if outPort == inPort {
		logger.Debugf("dropping a packet toward its ingress port %v on DPID=%v", inPort, e.DPID)
		return event.Continue
	}

	released := false
	if !r.conf.NoFlow {
		var err error
		released, err = r.installFlow(e.DPID, in, frame, outPort)
		if err != nil {
			logger.Errorf("failed to install a flow on DPID=%v: %v", e.DPID, err)
		}
	}
	if released {
		return event.Continue
	}
	if _, err := app.OutputPacket(r.ctrl, e.DPID, in, outPort); err != nil {
		logger.Errorf("failed to send a packet on DPID=%v: %v", e.DPID, err)
	}

	return event.Continue
}

// installFlow installs the flow from the source to the destination of frame
// and reports whether the flow mod released the buffered packet.
func (r *L2Switch) installFlow(dpid openflow.DatapathID, in *openflow.PacketIn, frame *ethernet.Frame, outPort uint32) (bool, error) {
	inPort := in.InPort()
	key := newFlowKey(dpid, inPort, frame.Source, frame.Destination, outPort)
	if r.flows.exist(key) {
		logger.Debugf("skipping a duplicated flow on DPID=%v: %v -> %v", dpid, frame.Source, frame.Destination)
		return false, nil
	}

	mod := openflow.NewFlowMod(0, openflow.OFPFC_ADD)
	mod.IdleTimeout = flowIdleTimeout
	mod.BufferID = in.BufferID
	mod.Match.SetInPort(inPort)
	if err := mod.Match.SetEthSrc(frame.Source); err != nil {
		return false, err
	}
	if err := mod.Match.SetEthDst(frame.Destination); err != nil {
		return false, err
	}
	mod.Actions = []openflow.Action{openflow.NewActionOutput(outPort)}
	if err := r.ctrl.Send(dpid, mod, 0, true); err != nil {
		return false, err
	}
	r.flows.add(key)

	return in.BufferID != openflow.OFP_NO_BUFFER, nil
}

func (r *L2Switch) broadcast(dpid openflow.DatapathID, in *openflow.PacketIn) error {
	if r.storm == nil {
		return r.flood(dpid, in)
	}

	return r.storm.broadcast(dpid, in)
}

func (r *L2Switch) flood(dpid openflow.DatapathID, in *openflow.PacketIn) error {
	ok, err := app.FloodPacket(r.ctrl, dpid, in)
	if err != nil {
		return err
	}
	if !ok {
		logger.Debugf("truncated unbuffered packet: total_len=%v, data_len=%v", in.TotalLen, len(in.Data))
	}

	return nil
}
