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
	"encoding"
	"encoding/binary"
	"fmt"
)

type Action interface {
	encoding.BinaryMarshaler
	Type() uint16
}

// ActionOutput is ofp_action_output.
type ActionOutput struct {
	Port   uint32
	MaxLen uint16
}

func NewActionOutput(port uint32) *ActionOutput {
	maxLen := uint16(0)
	if port == OFPP_CONTROLLER {
		maxLen = OFPCML_NO_BUFFER
	}

	return &ActionOutput{Port: port, MaxLen: maxLen}
}

func (r *ActionOutput) Type() uint16 {
	return OFPAT_OUTPUT
}

func (r *ActionOutput) MarshalBinary() ([]byte, error) {
	v := make([]byte, 16)
	binary.BigEndian.PutUint16(v[0:2], OFPAT_OUTPUT)
	binary.BigEndian.PutUint16(v[2:4], 16)
	binary.BigEndian.PutUint32(v[4:8], r.Port)
	binary.BigEndian.PutUint16(v[8:10], r.MaxLen)
	// v[10:16] is padding

	return v, nil
}

// RawAction is any action the controller does not build itself.
type RawAction struct {
	ActionType uint16
	Body       []byte
}

func (r *RawAction) Type() uint16 {
	return r.ActionType
}

func (r *RawAction) MarshalBinary() ([]byte, error) {
	length := 4 + len(r.Body)
	if length%8 != 0 {
		return nil, fmt.Errorf("action length is not a multiple of 8: type=%v, length=%v", r.ActionType, length)
	}
	v := make([]byte, length)
	binary.BigEndian.PutUint16(v[0:2], r.ActionType)
	binary.BigEndian.PutUint16(v[2:4], uint16(length))
	copy(v[4:], r.Body)

	return v, nil
}

func marshalActions(actions []Action) ([]byte, error) {
	buf := new(bytes.Buffer)
	for _, act := range actions {
		v, err := act.MarshalBinary()
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}

	return buf.Bytes(), nil
}

func unmarshalActions(data []byte) ([]Action, error) {
	result := make([]Action, 0)
	for len(data) > 0 {
		if len(data) < 4 {
			return nil, ErrInvalidPacketLength
		}
		actType := binary.BigEndian.Uint16(data[0:2])
		length := int(binary.BigEndian.Uint16(data[2:4]))
		if length < 4 || len(data) < length {
			return nil, ErrInvalidPacketLength
		}

		switch actType {
		case OFPAT_OUTPUT:
			if length < 16 {
				return nil, ErrInvalidPacketLength
			}
			result = append(result, &ActionOutput{
				Port:   binary.BigEndian.Uint32(data[4:8]),
				MaxLen: binary.BigEndian.Uint16(data[8:10]),
			})
		default:
			result = append(result, &RawAction{
				ActionType: actType,
				Body:       append([]byte(nil), data[4:length]...),
			})
		}
		data = data[length:]
	}

	return result, nil
}

// InstructionApplyActions is ofp_instruction_actions of type
// OFPIT_APPLY_ACTIONS.
type InstructionApplyActions struct {
	Actions []Action
}

func (r *InstructionApplyActions) MarshalBinary() ([]byte, error) {
	actions, err := marshalActions(r.Actions)
	if err != nil {
		return nil, err
	}

	v := make([]byte, 8+len(actions))
	binary.BigEndian.PutUint16(v[0:2], OFPIT_APPLY_ACTIONS)
	binary.BigEndian.PutUint16(v[2:4], uint16(len(v)))
	// v[4:8] is padding
	copy(v[8:], actions)

	return v, nil
}
