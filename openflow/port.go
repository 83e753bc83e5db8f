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
	OFPPR_ADD    uint8 = 0 /* The port was added. */
	OFPPR_DELETE uint8 = 1 /* The port was removed. */
	OFPPR_MODIFY uint8 = 2 /* Some attribute of the port has changed. */
)

const (
	OFPPC_PORT_DOWN uint32 = 1 << 0
	OFPPS_LINK_DOWN uint32 = 1 << 0
)

// Port is ofp_port.
type Port struct {
	Number     uint32
	MAC        net.HardwareAddr
	Name       string
	Config     uint32
	State      uint32
	Current    uint32
	Advertised uint32
	Supported  uint32
	Peer       uint32
	CurrSpeed  uint32
	MaxSpeed   uint32
}

func (r *Port) IsPortDown() bool {
	return r.Config&OFPPC_PORT_DOWN != 0
}

func (r *Port) IsLinkDown() bool {
	return r.State&OFPPS_LINK_DOWN != 0
}

func (r *Port) String() string {
	return fmt.Sprintf("Port(number=%v, mac=%v, name=%v, portDown=%v, linkDown=%v)",
		r.Number, r.MAC, r.Name, r.IsPortDown(), r.IsLinkDown())
}

func (r *Port) UnmarshalBinary(data []byte) error {
	if len(data) < 64 {
		return ErrInvalidPacketLength
	}

	r.Number = binary.BigEndian.Uint32(data[0:4])
	// data[4:8] is padding
	r.MAC = make(net.HardwareAddr, 6)
	copy(r.MAC, data[8:14])
	// data[14:16] is padding
	r.Name = string(bytes.TrimRight(data[16:32], "\x00"))
	r.Config = binary.BigEndian.Uint32(data[32:36])
	r.State = binary.BigEndian.Uint32(data[36:40])
	r.Current = binary.BigEndian.Uint32(data[40:44])
	r.Advertised = binary.BigEndian.Uint32(data[44:48])
	r.Supported = binary.BigEndian.Uint32(data[48:52])
	r.Peer = binary.BigEndian.Uint32(data[52:56])
	r.CurrSpeed = binary.BigEndian.Uint32(data[56:60])
	r.MaxSpeed = binary.BigEndian.Uint32(data[60:64])

	return nil
}

func (r *Port) MarshalBinary() ([]byte, error) {
	if len(r.MAC) != 6 {
		return nil, ErrInvalidMACAddress
	}

	v := make([]byte, 64)
	binary.BigEndian.PutUint32(v[0:4], r.Number)
	copy(v[8:14], r.MAC)
	copy(v[16:31], r.Name)
	binary.BigEndian.PutUint32(v[32:36], r.Config)
	binary.BigEndian.PutUint32(v[36:40], r.State)
	binary.BigEndian.PutUint32(v[40:44], r.Current)
	binary.BigEndian.PutUint32(v[44:48], r.Advertised)
	binary.BigEndian.PutUint32(v[48:52], r.Supported)
	binary.BigEndian.PutUint32(v[52:56], r.Peer)
	binary.BigEndian.PutUint32(v[56:60], r.CurrSpeed)
	binary.BigEndian.PutUint32(v[60:64], r.MaxSpeed)

	return v, nil
}

type PortStatus struct {
	Message
	Reason uint8
	Port   Port
}

func (r *PortStatus) MarshalBinary() ([]byte, error) {
	port, err := r.Port.MarshalBinary()
	if err != nil {
		return nil, err
	}

	v := make([]byte, 8+len(port))
	v[0] = r.Reason
	// v[1:8] is padding
	copy(v[8:], port)
	r.SetPayload(v)

	return r.Message.MarshalBinary()
}

func (r *PortStatus) UnmarshalBinary(data []byte) error {
	if err := r.Message.UnmarshalBinary(data); err != nil {
		return err
	}

	payload := r.Payload()
	if len(payload) < 8+64 {
		return ErrInvalidPacketLength
	}
	r.Reason = payload[0]

	return r.Port.UnmarshalBinary(payload[8:])
}
