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
	"fmt"
)

const (
	OF13_VERSION uint8 = 0x04
)

// Type is the closed set of OpenFlow 1.3 message types.
type Type uint8

const (
	/* Immutable messages. */
	OFPT_HELLO        Type = iota /* Symmetric message */
	OFPT_ERROR                    /* Symmetric message */
	OFPT_ECHO_REQUEST             /* Symmetric message */
	OFPT_ECHO_REPLY               /* Symmetric message */
	OFPT_EXPERIMENTER             /* Symmetric message */
	/* Switch configuration messages. */
	OFPT_FEATURES_REQUEST   /* Controller/switch message */
	OFPT_FEATURES_REPLY     /* Controller/switch message */
	OFPT_GET_CONFIG_REQUEST /* Controller/switch message */
	OFPT_GET_CONFIG_REPLY   /* Controller/switch message */
	OFPT_SET_CONFIG         /* Controller/switch message */
	/* Asynchronous messages. */
	OFPT_PACKET_IN    /* Async message */
	OFPT_FLOW_REMOVED /* Async message */
	OFPT_PORT_STATUS  /* Async message */
	/* Controller command messages. */
	OFPT_PACKET_OUT /* Controller/switch message */
	OFPT_FLOW_MOD   /* Controller/switch message */
	OFPT_GROUP_MOD  /* Controller/switch message */
	OFPT_PORT_MOD   /* Controller/switch message */
	OFPT_TABLE_MOD  /* Controller/switch message */
	/* Multipart messages. */
	OFPT_MULTIPART_REQUEST /* Controller/switch message */
	OFPT_MULTIPART_REPLY   /* Controller/switch message */
	/* Barrier messages. */
	OFPT_BARRIER_REQUEST /* Controller/switch message */
	OFPT_BARRIER_REPLY   /* Controller/switch message */
	/* Queue Configuration messages. */
	OFPT_QUEUE_GET_CONFIG_REQUEST /* Controller/switch message */
	OFPT_QUEUE_GET_CONFIG_REPLY   /* Controller/switch message */
	/* Controller role change request messages. */
	OFPT_ROLE_REQUEST /* Controller/switch message */
	OFPT_ROLE_REPLY   /* Controller/switch message */
	/* Asynchronous message configuration. */
	OFPT_GET_ASYNC_REQUEST /* Controller/switch message */
	OFPT_GET_ASYNC_REPLY   /* Controller/switch message */
	OFPT_SET_ASYNC         /* Controller/switch message */
	/* Meters and rate limiters configuration messages. */
	OFPT_METER_MOD /* Controller/switch message */
)

var typeNames = [...]string{
	"HELLO", "ERROR", "ECHO_REQUEST", "ECHO_REPLY", "EXPERIMENTER",
	"FEATURES_REQUEST", "FEATURES_REPLY", "GET_CONFIG_REQUEST", "GET_CONFIG_REPLY", "SET_CONFIG",
	"PACKET_IN", "FLOW_REMOVED", "PORT_STATUS",
	"PACKET_OUT", "FLOW_MOD", "GROUP_MOD", "PORT_MOD", "TABLE_MOD",
	"MULTIPART_REQUEST", "MULTIPART_REPLY",
	"BARRIER_REQUEST", "BARRIER_REPLY",
	"QUEUE_GET_CONFIG_REQUEST", "QUEUE_GET_CONFIG_REPLY",
	"ROLE_REQUEST", "ROLE_REPLY",
	"GET_ASYNC_REQUEST", "GET_ASYNC_REPLY", "SET_ASYNC",
	"METER_MOD",
}

func (r Type) Valid() bool {
	return r <= OFPT_METER_MOD
}

func (r Type) String() string {
	if !r.Valid() {
		return fmt.Sprintf("UNKNOWN(%d)", uint8(r))
	}

	return typeNames[r]
}

// MultipartType is the subtype carried by MULTIPART_REQUEST and MULTIPART_REPLY.
type MultipartType uint16

const (
	OFPMP_DESC           MultipartType = 0
	OFPMP_FLOW           MultipartType = 1
	OFPMP_AGGREGATE      MultipartType = 2
	OFPMP_TABLE          MultipartType = 3
	OFPMP_PORT_STATS     MultipartType = 4
	OFPMP_QUEUE          MultipartType = 5
	OFPMP_GROUP          MultipartType = 6
	OFPMP_GROUP_DESC     MultipartType = 7
	OFPMP_GROUP_FEATURES MultipartType = 8
	OFPMP_METER          MultipartType = 9
	OFPMP_METER_CONFIG   MultipartType = 10
	OFPMP_METER_FEATURES MultipartType = 11
	OFPMP_TABLE_FEATURES MultipartType = 12
	OFPMP_PORT_DESC      MultipartType = 13
	OFPMP_EXPERIMENTER   MultipartType = 0xffff
)

const (
	OFPC_FRAG_NORMAL = 0 /* No special handling for fragments. */
	OFPC_FRAG_DROP   = 1 /* Drop fragments. */
	OFPC_FRAG_REASM  = 2 /* Reassemble (only if OFPC_IP_REASM set). */
)

const (
	OFPP_MAX        uint32 = 0xffffff00
	OFPP_IN_PORT    uint32 = 0xfffffff8
	OFPP_TABLE      uint32 = 0xfffffff9
	OFPP_NORMAL     uint32 = 0xfffffffa
	OFPP_FLOOD      uint32 = 0xfffffffb
	OFPP_ALL        uint32 = 0xfffffffc
	OFPP_CONTROLLER uint32 = 0xfffffffd
	OFPP_LOCAL      uint32 = 0xfffffffe
	OFPP_ANY        uint32 = 0xffffffff
)

const (
	OFPG_ANY  uint32 = 0xffffffff
	OFPTT_ALL uint8  = 0xff

	OFP_NO_BUFFER          uint32 = 0xffffffff
	OFP_DEFAULT_PRIORITY   uint16 = 0x8000
	OFP_FLOW_PERMANENT     uint16 = 0
	OFPCML_NO_BUFFER       uint16 = 0xffff
	OFP_DEFAULT_MISS_BYTES uint16 = 0xffff
)

// Flow mod commands.
const (
	OFPFC_ADD           uint8 = 0
	OFPFC_MODIFY        uint8 = 1
	OFPFC_MODIFY_STRICT uint8 = 2
	OFPFC_DELETE        uint8 = 3
	OFPFC_DELETE_STRICT uint8 = 4
)

const (
	OFPFF_SEND_FLOW_REM uint16 = 1 << 0
	OFPFF_CHECK_OVERLAP uint16 = 1 << 1
)

// Error types used by the controller itself.
const (
	OFPET_HELLO_FAILED    uint16 = 0
	OFPET_BAD_REQUEST     uint16 = 1
	OFPET_FLOW_MOD_FAILED uint16 = 5
	OFPHFC_INCOMPATIBLE   uint16 = 0
	OFPBRC_BAD_TYPE       uint16 = 1
)

const (
	OFPAT_OUTPUT        uint16 = 0
	OFPIT_APPLY_ACTIONS uint16 = 4
)
