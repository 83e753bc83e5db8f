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

type Echo struct {
	Message
	Data []byte
}

func (r *Echo) MarshalBinary() ([]byte, error) {
	r.SetPayload(r.Data)
	return r.Message.MarshalBinary()
}

func (r *Echo) UnmarshalBinary(data []byte) error {
	if err := r.Message.UnmarshalBinary(data); err != nil {
		return err
	}
	payload := r.Payload()
	if len(payload) > 0 {
		r.Data = payload
	}

	return nil
}

type EchoRequest struct {
	Echo
}

func NewEchoRequest(xid uint32, data []byte) *EchoRequest {
	return &EchoRequest{
		Echo{
			Message: NewMessage(OFPT_ECHO_REQUEST, xid),
			Data:    data,
		},
	}
}

type EchoReply struct {
	Echo
}

// NewEchoReply returns a reply that copies the transaction ID and the data of
// the request.
func NewEchoReply(req *EchoRequest) *EchoReply {
	var data []byte
	if len(req.Data) > 0 {
		data = make([]byte, len(req.Data))
		copy(data, req.Data)
	}

	return &EchoReply{
		Echo{
			Message: NewMessage(OFPT_ECHO_REPLY, req.TransactionID()),
			Data:    data,
		},
	}
}
