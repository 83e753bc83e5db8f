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
	"encoding"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidPacketLength   = errors.New("invalid packet length")
	ErrUnsupportedVersion    = errors.New("unsupported protocol version")
	ErrUnsupportedMessage    = errors.New("unsupported message type")
	ErrUnsupportedMarshaling = errors.New("unsupported marshaling")
	ErrInvalidMACAddress     = errors.New("invalid MAC address")
	ErrInvalidDatapathID     = errors.New("invalid datapath ID")
)

// DatapathID is the 64-bit identity of a switch. Zero is reserved.
type DatapathID uint64

func (r DatapathID) Valid() bool {
	return r != 0
}

func (r DatapathID) String() string {
	return fmt.Sprintf("%016x", uint64(r))
}

// ParseDatapathID parses a hexadecimal datapath ID such as "0x2a",
// "000000000000002a" or "00:00:00:00:00:00:00:2a".
func ParseDatapathID(s string) (DatapathID, error) {
	v := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	v = strings.Replace(v, ":", "", -1)
	if len(v) == 0 || len(v) > 16 {
		return 0, ErrInvalidDatapathID
	}
	dpid, err := strconv.ParseUint(v, 16, 64)
	if err != nil || dpid == 0 {
		return 0, ErrInvalidDatapathID
	}

	return DatapathID(dpid), nil
}

type Header interface {
	Version() uint8
	Type() Type
	TransactionID() uint32
}

type Incoming interface {
	Header
	encoding.BinaryUnmarshaler
}

type Outgoing interface {
	Header
	SetTransactionID(xid uint32)
	encoding.BinaryMarshaler
}

// Message is the common ofp_header part of every OpenFlow message.
type Message struct {
	version uint8
	msgType Type
	xid     uint32
	length  uint16
	payload []byte
}

func NewMessage(msgType Type, xid uint32) Message {
	return Message{
		version: OF13_VERSION,
		msgType: msgType,
		xid:     xid,
		length:  8,
	}
}

func (r *Message) Version() uint8 {
	return r.version
}

func (r *Message) Type() Type {
	return r.msgType
}

func (r *Message) TransactionID() uint32 {
	return r.xid
}

func (r *Message) SetTransactionID(xid uint32) {
	r.xid = xid
}

func (r *Message) SetPayload(payload []byte) {
	r.payload = payload
	if payload == nil {
		r.length = 8
	} else {
		r.length = uint16(8 + len(payload))
	}
}

func (r *Message) Payload() []byte {
	if r.payload == nil {
		return nil
	}

	v := make([]byte, len(r.payload))
	copy(v, r.payload)

	return v
}

func (r *Message) MarshalBinary() ([]byte, error) {
	length := 8
	if r.payload != nil {
		length += len(r.payload)
	}
	if length > 0xFFFF {
		return nil, ErrInvalidPacketLength
	}

	v := make([]byte, length)
	v[0] = r.version
	v[1] = uint8(r.msgType)
	binary.BigEndian.PutUint16(v[2:4], uint16(length))
	binary.BigEndian.PutUint32(v[4:8], r.xid)
	if length > 8 {
		copy(v[8:], r.payload)
	}

	return v, nil
}

func (r *Message) UnmarshalBinary(data []byte) error {
	if data == nil || len(data) < 8 {
		return ErrInvalidPacketLength
	}

	r.version = data[0]
	r.msgType = Type(data[1])
	r.length = binary.BigEndian.Uint16(data[2:4])
	if r.length < 8 || len(data) < int(r.length) {
		return ErrInvalidPacketLength
	}
	r.xid = binary.BigEndian.Uint32(data[4:8])
	r.payload = make([]byte, r.length-8)
	copy(r.payload, data[8:r.length])

	return nil
}

// Raw is a message whose body the controller does not interpret. The body is
// kept as it was received so that re-encoding reproduces the original bytes.
type Raw struct {
	Message
}

func NewRaw(msgType Type, xid uint32, body []byte) *Raw {
	v := &Raw{Message: NewMessage(msgType, xid)}
	v.SetPayload(body)

	return v
}

func (r *Raw) Body() []byte {
	return r.Payload()
}

type Hello struct {
	Message
}

func NewHello(xid uint32) *Hello {
	return &Hello{Message: NewMessage(OFPT_HELLO, xid)}
}

type FeaturesRequest struct {
	Message
}

func NewFeaturesRequest(xid uint32) *FeaturesRequest {
	return &FeaturesRequest{Message: NewMessage(OFPT_FEATURES_REQUEST, xid)}
}

type BarrierRequest struct {
	Message
}

func NewBarrierRequest(xid uint32) *BarrierRequest {
	return &BarrierRequest{Message: NewMessage(OFPT_BARRIER_REQUEST, xid)}
}

type BarrierReply struct {
	Message
}
