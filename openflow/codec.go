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

package openflow

import (
	"encoding/binary"
)

// Decode parses one complete OpenFlow 1.3 message. Message types that the
// controller does not interpret are returned as *Raw.
func Decode(packet []byte) (msg Incoming, xid uint32, err error) {
	if len(packet) < 8 {
		return nil, 0, ErrInvalidPacketLength
	}
	if packet[0] != OF13_VERSION {
		return nil, 0, ErrUnsupportedVersion
	}
	length := binary.BigEndian.Uint16(packet[2:4])
	if length < 8 || int(length) != len(packet) {
		return nil, 0, ErrInvalidPacketLength
	}
	msgType := Type(packet[1])
	if !msgType.Valid() {
		return nil, 0, ErrUnsupportedMessage
	}
	xid = binary.BigEndian.Uint32(packet[4:8])

	switch msgType {
	case OFPT_HELLO:
		msg = new(Hello)
	case OFPT_ERROR:
		msg = new(Error)
	case OFPT_ECHO_REQUEST:
		msg = new(EchoRequest)
	case OFPT_ECHO_REPLY:
		msg = new(EchoReply)
	case OFPT_FEATURES_REPLY:
		msg = new(FeaturesReply)
	case OFPT_GET_CONFIG_REPLY:
		msg = new(GetConfigReply)
	case OFPT_PACKET_IN:
		msg = new(PacketIn)
	case OFPT_FLOW_REMOVED:
		msg = new(FlowRemoved)
	case OFPT_PORT_STATUS:
		msg = new(PortStatus)
	case OFPT_PACKET_OUT:
		msg = new(PacketOut)
	case OFPT_MULTIPART_REPLY:
		msg = new(MultipartReply)
	case OFPT_BARRIER_REPLY:
		msg = new(BarrierReply)
	default:
		msg = new(Raw)
	}

	if err := msg.UnmarshalBinary(packet); err != nil {
		return nil, 0, err
	}

	return msg, xid, nil
}

// Encode serializes msg with xid as its transaction ID.
func Encode(msg Outgoing, xid uint32) ([]byte, error) {
	if msg == nil {
		panic("nil message")
	}
	if !msg.Type().Valid() {
		return nil, ErrUnsupportedMessage
	}
	msg.SetTransactionID(xid)

	return msg.MarshalBinary()
}
