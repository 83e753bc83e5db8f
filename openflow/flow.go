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

type FlowMod struct {
	Message
	Cookie      uint64
	CookieMask  uint64
	TableID     uint8
	Command     uint8
	IdleTimeout uint16
	HardTimeout uint16
	Priority    uint16
	BufferID    uint32
	OutPort     uint32
	OutGroup    uint32
	Flags       uint16
	Match       *Match
	// Actions are wrapped in a single apply-actions instruction.
	Actions []Action
}

func NewFlowMod(xid uint32, command uint8) *FlowMod {
	return &FlowMod{
		Message:  NewMessage(OFPT_FLOW_MOD, xid),
		Command:  command,
		Priority: OFP_DEFAULT_PRIORITY,
		BufferID: OFP_NO_BUFFER,
		OutPort:  OFPP_ANY,
		OutGroup: OFPG_ANY,
		Match:    NewMatch(),
	}
}

func (r *FlowMod) String() string {
	return fmt.Sprintf("FLOW_MOD (command=%v, tableID=%v, priority=%v, idle=%v, hard=%v, match=%v, actions=%v)",
		r.Command, r.TableID, r.Priority, r.IdleTimeout, r.HardTimeout, r.Match.OXMs(), len(r.Actions))
}

func (r *FlowMod) MarshalBinary() ([]byte, error) {
	match := r.Match
	if match == nil {
		match = NewMatch()
	}
	m, err := match.MarshalBinary()
	if err != nil {
		return nil, err
	}

	var inst []byte
	if len(r.Actions) > 0 {
		apply := &InstructionApplyActions{Actions: r.Actions}
		if inst, err = apply.MarshalBinary(); err != nil {
			return nil, err
		}
	}

	v := make([]byte, 40, 40+len(m)+len(inst))
	binary.BigEndian.PutUint64(v[0:8], r.Cookie)
	binary.BigEndian.PutUint64(v[8:16], r.CookieMask)
	v[16] = r.TableID
	v[17] = r.Command
	binary.BigEndian.PutUint16(v[18:20], r.IdleTimeout)
	binary.BigEndian.PutUint16(v[20:22], r.HardTimeout)
	binary.BigEndian.PutUint16(v[22:24], r.Priority)
	binary.BigEndian.PutUint32(v[24:28], r.BufferID)
	binary.BigEndian.PutUint32(v[28:32], r.OutPort)
	binary.BigEndian.PutUint32(v[32:36], r.OutGroup)
	binary.BigEndian.PutUint16(v[36:38], r.Flags)
	// v[38:40] is padding
	v = append(v, m...)
	v = append(v, inst...)
	r.SetPayload(v)

	return r.Message.MarshalBinary()
}

const (
	OFPRR_IDLE_TIMEOUT uint8 = 0 /* Flow idle time exceeded idle_timeout. */
	OFPRR_HARD_TIMEOUT uint8 = 1 /* Time exceeded hard_timeout. */
	OFPRR_DELETE       uint8 = 2 /* Evicted by a DELETE flow mod. */
	OFPRR_GROUP_DELETE uint8 = 3 /* Group was removed. */
)

type FlowRemoved struct {
	Message
	Cookie       uint64
	Priority     uint16
	Reason       uint8
	TableID      uint8
	DurationSec  uint32
	DurationNSec uint32
	IdleTimeout  uint16
	HardTimeout  uint16
	PacketCount  uint64
	ByteCount    uint64
	Match        *Match
}

func (r *FlowRemoved) UnmarshalBinary(data []byte) error {
	if err := r.Message.UnmarshalBinary(data); err != nil {
		return err
	}

	payload := r.Payload()
	if len(payload) < 40+8 {
		return ErrInvalidPacketLength
	}
	r.Cookie = binary.BigEndian.Uint64(payload[0:8])
	r.Priority = binary.BigEndian.Uint16(payload[8:10])
	r.Reason = payload[10]
	r.TableID = payload[11]
	r.DurationSec = binary.BigEndian.Uint32(payload[12:16])
	r.DurationNSec = binary.BigEndian.Uint32(payload[16:20])
	r.IdleTimeout = binary.BigEndian.Uint16(payload[20:22])
	r.HardTimeout = binary.BigEndian.Uint16(payload[22:24])
	r.PacketCount = binary.BigEndian.Uint64(payload[24:32])
	r.ByteCount = binary.BigEndian.Uint64(payload[32:40])
	r.Match = NewMatch()

	return r.Match.UnmarshalBinary(payload[40:])
}
