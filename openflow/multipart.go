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
	"bytes"
	"encoding/binary"
)

const (
	OFPMPF_REQ_MORE   uint16 = 1 << 0
	OFPMPF_REPLY_MORE uint16 = 1 << 0
)

type MultipartRequest struct {
	Message
	Subtype MultipartType
	Flags   uint16
	Body    []byte
}

func NewMultipartRequest(xid uint32, subtype MultipartType, body []byte) *MultipartRequest {
	return &MultipartRequest{
		Message: NewMessage(OFPT_MULTIPART_REQUEST, xid),
		Subtype: subtype,
		Body:    body,
	}
}

func NewDescRequest(xid uint32) *MultipartRequest {
	return NewMultipartRequest(xid, OFPMP_DESC, nil)
}

func NewPortDescRequest(xid uint32) *MultipartRequest {
	return NewMultipartRequest(xid, OFPMP_PORT_DESC, nil)
}

func (r *MultipartRequest) MarshalBinary() ([]byte, error) {
	v := make([]byte, 8+len(r.Body))
	binary.BigEndian.PutUint16(v[0:2], uint16(r.Subtype))
	binary.BigEndian.PutUint16(v[2:4], r.Flags)
	// v[4:8] is padding
	copy(v[8:], r.Body)
	r.SetPayload(v)

	return r.Message.MarshalBinary()
}

type MultipartReply struct {
	Message
	Subtype MultipartType
	Flags   uint16
	Body    []byte
}

func (r *MultipartReply) HasMore() bool {
	return r.Flags&OFPMPF_REPLY_MORE != 0
}

func (r *MultipartReply) MarshalBinary() ([]byte, error) {
	v := make([]byte, 8+len(r.Body))
	binary.BigEndian.PutUint16(v[0:2], uint16(r.Subtype))
	binary.BigEndian.PutUint16(v[2:4], r.Flags)
	copy(v[8:], r.Body)
	r.SetPayload(v)

	return r.Message.MarshalBinary()
}

func (r *MultipartReply) UnmarshalBinary(data []byte) error {
	if err := r.Message.UnmarshalBinary(data); err != nil {
		return err
	}

	payload := r.Payload()
	if len(payload) < 8 {
		return ErrInvalidPacketLength
	}
	r.Subtype = MultipartType(binary.BigEndian.Uint16(payload[0:2]))
	r.Flags = binary.BigEndian.Uint16(payload[2:4])
	if len(payload) > 8 {
		r.Body = payload[8:]
	}

	return nil
}

// Description is the body of an OFPMP_DESC reply.
type Description struct {
	Manufacturer string
	Hardware     string
	Software     string
	Serial       string
	Datapath     string
}

func (r *Description) UnmarshalBinary(data []byte) error {
	if len(data) < 1056 {
		return ErrInvalidPacketLength
	}

	r.Manufacturer = cString(data[0:256])
	r.Hardware = cString(data[256:512])
	r.Software = cString(data[512:768])
	r.Serial = cString(data[768:800])
	r.Datapath = cString(data[800:1056])

	return nil
}

// Ports decodes the body of an OFPMP_PORT_DESC reply.
func (r *MultipartReply) Ports() ([]Port, error) {
	if r.Subtype != OFPMP_PORT_DESC {
		return nil, ErrUnsupportedMessage
	}
	if len(r.Body)%64 != 0 {
		return nil, ErrInvalidPacketLength
	}

	ports := make([]Port, 0, len(r.Body)/64)
	for i := 0; i < len(r.Body); i += 64 {
		var p Port
		if err := p.UnmarshalBinary(r.Body[i : i+64]); err != nil {
			return nil, err
		}
		ports = append(ports, p)
	}

	return ports, nil
}

// Description decodes the body of an OFPMP_DESC reply.
func (r *MultipartReply) Description() (*Description, error) {
	if r.Subtype != OFPMP_DESC {
		return nil, ErrUnsupportedMessage
	}
	v := new(Description)
	if err := v.UnmarshalBinary(r.Body); err != nil {
		return nil, err
	}

	return v, nil
}

func cString(data []byte) string {
	if i := bytes.IndexByte(data, 0); i >= 0 {
		return string(data[:i])
	}
	return string(data)
}
