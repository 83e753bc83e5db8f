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
	"fmt"
	"net"
)

const (
	OFPMT_OXM             uint16 = 1
	OFPXMC_OPENFLOW_BASIC uint16 = 0x8000
)

// OXMField is an OpenFlow basic class match field number.
type OXMField uint8

const (
	OXM_IN_PORT  OXMField = 0
	OXM_ETH_DST  OXMField = 3
	OXM_ETH_SRC  OXMField = 4
	OXM_ETH_TYPE OXMField = 5
	OXM_VLAN_VID OXMField = 6
	OXM_IP_PROTO OXMField = 10
	OXM_IPV4_SRC OXMField = 11
	OXM_IPV4_DST OXMField = 12
	OXM_TCP_SRC  OXMField = 13
	OXM_TCP_DST  OXMField = 14
	OXM_UDP_SRC  OXMField = 15
	OXM_UDP_DST  OXMField = 16
)

// OXM is a single type-length-value match entry. Value and Mask are kept in
// network byte order.
type OXM struct {
	Class uint16
	Field OXMField
	Value []byte
	Mask  []byte
}

func (r OXM) HasMask() bool {
	return len(r.Mask) > 0
}

func (r OXM) String() string {
	if r.HasMask() {
		return fmt.Sprintf("OXM(class=%#x, field=%v, value=%x, mask=%x)", r.Class, r.Field, r.Value, r.Mask)
	}
	return fmt.Sprintf("OXM(class=%#x, field=%v, value=%x)", r.Class, r.Field, r.Value)
}

// Match is an ofp_match of type OFPMT_OXM. The entries keep the order in
// which they were added or received.
type Match struct {
	oxms []OXM
}

func NewMatch() *Match {
	return &Match{}
}

func (r *Match) OXMs() []OXM {
	v := make([]OXM, len(r.oxms))
	copy(v, r.oxms)

	return v
}

func (r *Match) Len() int {
	return len(r.oxms)
}

func (r *Match) Add(oxm OXM) {
	for i, v := range r.oxms {
		if v.Class == oxm.Class && v.Field == oxm.Field {
			r.oxms[i] = oxm
			return
		}
	}
	r.oxms = append(r.oxms, oxm)
}

func (r *Match) Lookup(field OXMField) (OXM, bool) {
	for _, v := range r.oxms {
		if v.Class == OFPXMC_OPENFLOW_BASIC && v.Field == field {
			return v, true
		}
	}

	return OXM{}, false
}

func (r *Match) addBasic(field OXMField, value []byte) {
	r.Add(OXM{Class: OFPXMC_OPENFLOW_BASIC, Field: field, Value: value})
}

func (r *Match) SetInPort(port uint32) {
	v := make([]byte, 4)
	binary.BigEndian.PutUint32(v, port)
	r.addBasic(OXM_IN_PORT, v)
}

func (r *Match) InPort() (port uint32, ok bool) {
	v, ok := r.Lookup(OXM_IN_PORT)
	if !ok || len(v.Value) != 4 {
		return 0, false
	}

	return binary.BigEndian.Uint32(v.Value), true
}

func (r *Match) SetEthDst(mac net.HardwareAddr) error {
	if len(mac) != 6 {
		return ErrInvalidMACAddress
	}
	r.addBasic(OXM_ETH_DST, append([]byte(nil), mac...))

	return nil
}

func (r *Match) SetEthSrc(mac net.HardwareAddr) error {
	if len(mac) != 6 {
		return ErrInvalidMACAddress
	}
	r.addBasic(OXM_ETH_SRC, append([]byte(nil), mac...))

	return nil
}

func (r *Match) SetEthType(etherType uint16) {
	v := make([]byte, 2)
	binary.BigEndian.PutUint16(v, etherType)
	r.addBasic(OXM_ETH_TYPE, v)
}

func (r *Match) SetIPProtocol(proto uint8) {
	r.addBasic(OXM_IP_PROTO, []byte{proto})
}

func (r *Match) SetIPv4Src(ip net.IP) {
	r.addBasic(OXM_IPV4_SRC, append([]byte(nil), ip.To4()...))
}

func (r *Match) SetIPv4Dst(ip net.IP) {
	r.addBasic(OXM_IPV4_DST, append([]byte(nil), ip.To4()...))
}

func (r *Match) SetTCPDst(port uint16) {
	v := make([]byte, 2)
	binary.BigEndian.PutUint16(v, port)
	r.addBasic(OXM_TCP_DST, v)
}

func (r *Match) SetUDPDst(port uint16) {
	v := make([]byte, 2)
	binary.BigEndian.PutUint16(v, port)
	r.addBasic(OXM_UDP_DST, v)
}

func (r *Match) oxmLength() int {
	length := 0
	for _, v := range r.oxms {
		length += 4 + len(v.Value) + len(v.Mask)
	}

	return length
}

// MarshalBinary encodes the match including the trailing padding that aligns
// it to 8 bytes.
func (r *Match) MarshalBinary() ([]byte, error) {
	length := 4 + r.oxmLength()
	buf := new(bytes.Buffer)

	header := make([]byte, 4)
	binary.BigEndian.PutUint16(header[0:2], OFPMT_OXM)
	binary.BigEndian.PutUint16(header[2:4], uint16(length))
	buf.Write(header)

	for _, v := range r.oxms {
		if v.HasMask() && len(v.Mask) != len(v.Value) {
			return nil, fmt.Errorf("invalid OXM mask length: field=%v", v.Field)
		}
		if len(v.Value)+len(v.Mask) > 0xFF {
			return nil, fmt.Errorf("too long OXM payload: field=%v", v.Field)
		}
		tlv := make([]byte, 4)
		binary.BigEndian.PutUint16(tlv[0:2], v.Class)
		tlv[2] = uint8(v.Field) << 1
		if v.HasMask() {
			tlv[2] |= 1
		}
		tlv[3] = uint8(len(v.Value) + len(v.Mask))
		buf.Write(tlv)
		buf.Write(v.Value)
		buf.Write(v.Mask)
	}

	if pad := paddedLength(length) - length; pad > 0 {
		buf.Write(make([]byte, pad))
	}

	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a match. The data may be longer than the match.
func (r *Match) UnmarshalBinary(data []byte) error {
	if len(data) < 4 {
		return ErrInvalidPacketLength
	}
	if binary.BigEndian.Uint16(data[0:2]) != OFPMT_OXM {
		return fmt.Errorf("unsupported match type: %v", binary.BigEndian.Uint16(data[0:2]))
	}
	length := int(binary.BigEndian.Uint16(data[2:4]))
	if length < 4 || len(data) < length {
		return ErrInvalidPacketLength
	}

	r.oxms = nil
	for offset := 4; offset < length; {
		if length-offset < 4 {
			return ErrInvalidPacketLength
		}
		class := binary.BigEndian.Uint16(data[offset : offset+2])
		fieldAndMask := data[offset+2]
		n := int(data[offset+3])
		offset += 4
		if length-offset < n {
			return ErrInvalidPacketLength
		}
		oxm := OXM{Class: class, Field: OXMField(fieldAndMask >> 1)}
		body := data[offset : offset+n]
		if fieldAndMask&1 == 1 {
			if n%2 != 0 {
				return ErrInvalidPacketLength
			}
			oxm.Value = append([]byte(nil), body[:n/2]...)
			oxm.Mask = append([]byte(nil), body[n/2:]...)
		} else {
			oxm.Value = append([]byte(nil), body...)
		}
		r.oxms = append(r.oxms, oxm)
		offset += n
	}

	return nil
}

// EncodedLength is the number of bytes the match occupies on the wire,
// including padding.
func (r *Match) EncodedLength() int {
	return paddedLength(4 + r.oxmLength())
}

func paddedLength(length int) int {
	return (length + 7) / 8 * 8
}
