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
	"fmt"
)

const (
	OFPR_NO_MATCH    uint8 = 0 /* No matching flow (table-miss flow entry). */
	OFPR_ACTION      uint8 = 1 /* Action explicitly output to controller. */
	OFPR_INVALID_TTL uint8 = 2 /* Packet has invalid TTL */
)

type PacketIn struct {
	Message
	BufferID uint32
	TotalLen uint16
	Reason   uint8
	TableID  uint8
	Cookie   uint64
	Match    *Match
	Data     []byte
}

// InPort returns the ingress port carried in the match.
func (r *PacketIn) InPort() uint32 {
	if r.Match == nil {
		return 0
	}
	port, _ := r.Match.InPort()

	return port
}

func (r *PacketIn) String() string {
	return fmt.Sprintf("PACKET_IN (bufferID=%v, totalLen=%v, reason=%v, tableID=%v, inPort=%v, len(data)=%v)",
		r.BufferID, r.TotalLen, r.Reason, r.TableID, r.InPort(), len(r.Data))
}

func (r *PacketIn) MarshalBinary() ([]byte, error) {
	match := r.Match
	if match == nil {
		match = NewMatch()
	}
	m, err := match.MarshalBinary()
	if err != nil {
		return nil, err
	}

	v := make([]byte, 16+len(m)+2+len(r.Data))
	binary.BigEndian.PutUint32(v[0:4], r.BufferID)
	binary.BigEndian.PutUint16(v[4:6], r.TotalLen)
	v[6] = r.Reason
	v[7] = r.TableID
	binary.BigEndian.PutUint64(v[8:16], r.Cookie)
	copy(v[16:], m)
	// 2 bytes of padding after the match
	copy(v[16+len(m)+2:], r.Data)
	r.SetPayload(v)

	return r.Message.MarshalBinary()
}

func (r *PacketIn) UnmarshalBinary(data []byte) error {
	if err := r.Message.UnmarshalBinary(data); err != nil {
		return err
	}

	payload := r.Payload()
	if len(payload) < 16+8 {
		return ErrInvalidPacketLength
	}
	r.BufferID = binary.BigEndian.Uint32(payload[0:4])
	r.TotalLen = binary.BigEndian.Uint16(payload[4:6])
	r.Reason = payload[6]
	r.TableID = payload[7]
	r.Cookie = binary.BigEndian.Uint64(payload[8:16])

	r.Match = NewMatch()
	if err := r.Match.UnmarshalBinary(payload[16:]); err != nil {
		return err
	}
	offset := 16 + r.Match.EncodedLength() + 2
	if len(payload) < offset {
		return ErrInvalidPacketLength
	}
	if len(payload) > offset {
		r.Data = payload[offset:]
	}

	return nil
}

type PacketOut struct {
	Message
	BufferID uint32
	InPort   uint32
	Actions  []Action
	Data     []byte
}

func NewPacketOut(xid uint32) *PacketOut {
	return &PacketOut{
		Message:  NewMessage(OFPT_PACKET_OUT, xid),
		BufferID: OFP_NO_BUFFER,
		InPort:   OFPP_CONTROLLER,
	}
}

func (r *PacketOut) MarshalBinary() ([]byte, error) {
	actions, err := marshalActions(r.Actions)
	if err != nil {
		return nil, err
	}

	v := make([]byte, 16+len(actions)+len(r.Data))
	binary.BigEndian.PutUint32(v[0:4], r.BufferID)
	binary.BigEndian.PutUint32(v[4:8], r.InPort)
	binary.BigEndian.PutUint16(v[8:10], uint16(len(actions)))
	// v[10:16] is padding
	copy(v[16:], actions)
	// Data is only meaningful when the packet is not buffered in the switch.
	if r.BufferID == OFP_NO_BUFFER {
		copy(v[16+len(actions):], r.Data)
	} else {
		v = v[:16+len(actions)]
	}
	r.SetPayload(v)

	return r.Message.MarshalBinary()
}

func (r *PacketOut) UnmarshalBinary(data []byte) error {
	if err := r.Message.UnmarshalBinary(data); err != nil {
		return err
	}

	payload := r.Payload()
	if len(payload) < 16 {
		return ErrInvalidPacketLength
	}
	r.BufferID = binary.BigEndian.Uint32(payload[0:4])
	r.InPort = binary.BigEndian.Uint32(payload[4:8])
	n := int(binary.BigEndian.Uint16(payload[8:10]))
	if len(payload) < 16+n {
		return ErrInvalidPacketLength
	}
	actions, err := unmarshalActions(payload[16 : 16+n])
	if err != nil {
		return err
	}
	r.Actions = actions
	if len(payload) > 16+n {
		r.Data = payload[16+n:]
	}

	return nil
}
