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

package classifier

import (
	"bytes"
	"fmt"
	"net"

	"github.com/CPqD/nox13oflib/openflow"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/pkg/errors"
)

// Flow holds the header fields of a packet that match expressions look at.
type Flow struct {
	InPort  uint32
	EthSrc  net.HardwareAddr
	EthDst  net.HardwareAddr
	EthType uint16
	// VlanID is 0 for untagged frames.
	VlanID  uint16
	IPProto uint8
	IPv4Src net.IP
	IPv4Dst net.IP
	TPSrc   uint16
	TPDst   uint16
}

func (r *Flow) String() string {
	return fmt.Sprintf("Flow(inPort=%v, ethSrc=%v, ethDst=%v, ethType=%#04x, vlan=%v, proto=%v, ipSrc=%v, ipDst=%v, tpSrc=%v, tpDst=%v)",
		r.InPort, r.EthSrc, r.EthDst, r.EthType, r.VlanID, r.IPProto, r.IPv4Src, r.IPv4Dst, r.TPSrc, r.TPDst)
}

// NewFlow extracts a flow from an Ethernet frame received on inPort.
func NewFlow(inPort uint32, frame []byte) (*Flow, error) {
	packet := gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
	eth, ok := packet.Layer(layers.LayerTypeEthernet).(*layers.Ethernet)
	if !ok {
		return nil, errors.New("not an ethernet frame")
	}

	flow := &Flow{
		InPort:  inPort,
		EthSrc:  eth.SrcMAC,
		EthDst:  eth.DstMAC,
		EthType: uint16(eth.EthernetType),
	}
	if v, ok := packet.Layer(layers.LayerTypeDot1Q).(*layers.Dot1Q); ok {
		flow.VlanID = v.VLANIdentifier
		flow.EthType = uint16(v.Type)
	}

	switch {
	case packet.Layer(layers.LayerTypeIPv4) != nil:
		ip := packet.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
		flow.IPProto = uint8(ip.Protocol)
		flow.IPv4Src = ip.SrcIP
		flow.IPv4Dst = ip.DstIP
	case packet.Layer(layers.LayerTypeARP) != nil:
		// ARP reuses the network fields: opcode and protocol addresses.
		arp := packet.Layer(layers.LayerTypeARP).(*layers.ARP)
		flow.IPProto = uint8(arp.Operation)
		flow.IPv4Src = net.IP(arp.SourceProtAddress)
		flow.IPv4Dst = net.IP(arp.DstProtAddress)
	}

	if v, ok := packet.Layer(layers.LayerTypeTCP).(*layers.TCP); ok {
		flow.TPSrc = uint16(v.SrcPort)
		flow.TPDst = uint16(v.DstPort)
	} else if v, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP); ok {
		flow.TPSrc = uint16(v.SrcPort)
		flow.TPDst = uint16(v.DstPort)
	}

	return flow, nil
}

// NewFlowFromPacketIn extracts the flow of a packet-in message.
func NewFlowFromPacketIn(msg *openflow.PacketIn) (*Flow, error) {
	if msg == nil {
		return nil, errors.New("nil packet-in message")
	}
	if len(msg.Data) == 0 {
		return nil, errors.New("empty packet-in payload")
	}

	return NewFlow(msg.InPort(), msg.Data)
}

// Field is a bit set of flow fields.
type Field uint16

const (
	FieldInPort Field = 1 << iota
	FieldEthSrc
	FieldEthDst
	FieldEthType
	FieldVlanID
	FieldIPProto
	FieldIPv4Src
	FieldIPv4Dst
	FieldTPSrc
	FieldTPDst
)

// Expr constrains a subset of flow fields. An empty expression matches every
// flow.
type Expr struct {
	fields Field
	value  Flow
}

func NewExpr() *Expr {
	return &Expr{}
}

func (r *Expr) Fields() Field {
	return r.fields
}

func (r *Expr) InPort(port uint32) *Expr {
	r.fields |= FieldInPort
	r.value.InPort = port
	return r
}

func (r *Expr) EthSrc(mac net.HardwareAddr) *Expr {
	r.fields |= FieldEthSrc
	r.value.EthSrc = mac
	return r
}

func (r *Expr) EthDst(mac net.HardwareAddr) *Expr {
	r.fields |= FieldEthDst
	r.value.EthDst = mac
	return r
}

func (r *Expr) EthType(t uint16) *Expr {
	r.fields |= FieldEthType
	r.value.EthType = t
	return r
}

func (r *Expr) VlanID(id uint16) *Expr {
	r.fields |= FieldVlanID
	r.value.VlanID = id
	return r
}

func (r *Expr) IPProto(proto uint8) *Expr {
	r.fields |= FieldIPProto
	r.value.IPProto = proto
	return r
}

func (r *Expr) IPv4Src(ip net.IP) *Expr {
	r.fields |= FieldIPv4Src
	r.value.IPv4Src = ip
	return r
}

func (r *Expr) IPv4Dst(ip net.IP) *Expr {
	r.fields |= FieldIPv4Dst
	r.value.IPv4Dst = ip
	return r
}

func (r *Expr) TPSrc(port uint16) *Expr {
	r.fields |= FieldTPSrc
	r.value.TPSrc = port
	return r
}

func (r *Expr) TPDst(port uint16) *Expr {
	r.fields |= FieldTPDst
	r.value.TPDst = port
	return r
}

// Matches reports whether every constrained field of r equals the field of f.
func (r *Expr) Matches(f *Flow) bool {
	if f == nil {
		return false
	}
	v := &r.value

	if r.fields&FieldInPort != 0 && v.InPort != f.InPort {
		return false
	}
	if r.fields&FieldEthSrc != 0 && !bytes.Equal(v.EthSrc, f.EthSrc) {
		return false
	}
	if r.fields&FieldEthDst != 0 && !bytes.Equal(v.EthDst, f.EthDst) {
		return false
	}
	if r.fields&FieldEthType != 0 && v.EthType != f.EthType {
		return false
	}
	if r.fields&FieldVlanID != 0 && v.VlanID != f.VlanID {
		return false
	}
	if r.fields&FieldIPProto != 0 && v.IPProto != f.IPProto {
		return false
	}
	if r.fields&FieldIPv4Src != 0 && !v.IPv4Src.Equal(f.IPv4Src) {
		return false
	}
	if r.fields&FieldIPv4Dst != 0 && !v.IPv4Dst.Equal(f.IPv4Dst) {
		return false
	}
	if r.fields&FieldTPSrc != 0 && v.TPSrc != f.TPSrc {
		return false
	}
	if r.fields&FieldTPDst != 0 && v.TPDst != f.TPDst {
		return false
	}

	return true
}
