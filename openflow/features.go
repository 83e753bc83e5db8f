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

const (
	OFPC_FLOW_STATS   = 1 << 0 /* Flow statistics. */
	OFPC_TABLE_STATS  = 1 << 1 /* Table statistics. */
	OFPC_PORT_STATS   = 1 << 2 /* Port statistics. */
	OFPC_GROUP_STATS  = 1 << 3 /* Group statistics. */
	OFPC_IP_REASM     = 1 << 5 /* Can reassemble IP fragments. */
	OFPC_QUEUE_STATS  = 1 << 6 /* Queue statistics. */
	OFPC_PORT_BLOCKED = 1 << 8 /* Switch will block looping ports. */
)

type FeaturesReply struct {
	Message
	DPID         DatapathID
	NumBuffers   uint32
	NumTables    uint8
	AuxID        uint8
	Capabilities uint32
	Reserved     uint32
}

func NewFeaturesReply(xid uint32, dpid DatapathID) *FeaturesReply {
	return &FeaturesReply{
		Message: NewMessage(OFPT_FEATURES_REPLY, xid),
		DPID:    dpid,
	}
}

func (r *FeaturesReply) MarshalBinary() ([]byte, error) {
	v := make([]byte, 24)
	binary.BigEndian.PutUint64(v[0:8], uint64(r.DPID))
	binary.BigEndian.PutUint32(v[8:12], r.NumBuffers)
	v[12] = r.NumTables
	v[13] = r.AuxID
	// v[14:16] is padding
	binary.BigEndian.PutUint32(v[16:20], r.Capabilities)
	binary.BigEndian.PutUint32(v[20:24], r.Reserved)
	r.SetPayload(v)

	return r.Message.MarshalBinary()
}

func (r *FeaturesReply) UnmarshalBinary(data []byte) error {
	if err := r.Message.UnmarshalBinary(data); err != nil {
		return err
	}

	payload := r.Payload()
	if len(payload) < 24 {
		return ErrInvalidPacketLength
	}
	r.DPID = DatapathID(binary.BigEndian.Uint64(payload[0:8]))
	r.NumBuffers = binary.BigEndian.Uint32(payload[8:12])
	r.NumTables = payload[12]
	r.AuxID = payload[13]
	r.Capabilities = binary.BigEndian.Uint32(payload[16:20])
	r.Reserved = binary.BigEndian.Uint32(payload[20:24])

	return nil
}

// SwitchConfig is the body shared by SET_CONFIG and GET_CONFIG_REPLY.
type SwitchConfig struct {
	Message
	Flags          uint16
	MissSendLength uint16
}

func (r *SwitchConfig) MarshalBinary() ([]byte, error) {
	v := make([]byte, 4)
	binary.BigEndian.PutUint16(v[0:2], r.Flags)
	binary.BigEndian.PutUint16(v[2:4], r.MissSendLength)
	r.SetPayload(v)

	return r.Message.MarshalBinary()
}

func (r *SwitchConfig) UnmarshalBinary(data []byte) error {
	if err := r.Message.UnmarshalBinary(data); err != nil {
		return err
	}

	payload := r.Payload()
	if len(payload) < 4 {
		return ErrInvalidPacketLength
	}
	r.Flags = binary.BigEndian.Uint16(payload[0:2])
	r.MissSendLength = binary.BigEndian.Uint16(payload[2:4])

	return nil
}

type SetConfig struct {
	SwitchConfig
}

func NewSetConfig(xid uint32, flags, missSendLength uint16) *SetConfig {
	return &SetConfig{
		SwitchConfig{
			Message:        NewMessage(OFPT_SET_CONFIG, xid),
			Flags:          flags,
			MissSendLength: missSendLength,
		},
	}
}

type GetConfigReply struct {
	SwitchConfig
}
