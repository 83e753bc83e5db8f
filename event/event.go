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

package event

import (
	"fmt"

	"github.com/CPqD/nox13oflib/openflow"
)

// Kind is the closed set of event variants.
type Kind uint8

const (
	// KindMessage carries a decoded OpenFlow message from an admitted switch.
	KindMessage Kind = iota
	KindDatapathJoin
	KindDatapathLeave
	KindShutdown
	KindBootstrapComplete
)

func (r Kind) String() string {
	switch r {
	case KindMessage:
		return "Message"
	case KindDatapathJoin:
		return "DatapathJoin"
	case KindDatapathLeave:
		return "DatapathLeave"
	case KindShutdown:
		return "Shutdown"
	case KindBootstrapComplete:
		return "BootstrapComplete"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(r))
	}
}

const (
	DatapathJoin      = "Datapath_join_event"
	DatapathLeave     = "Datapath_leave_event"
	Shutdown          = "Shutdown_event"
	BootstrapComplete = "Bootstrap_complete_event"

	Hello               = "Hello_event"
	Error               = "Error_event"
	EchoRequest         = "Echo_request_event"
	EchoReply           = "Echo_reply_event"
	Experimenter        = "Experimenter_event"
	FeaturesReply       = "Features_reply_event"
	GetConfigReply      = "Get_config_reply_event"
	FlowRemoved         = "Flow_removed_event"
	PortStatus          = "Port_status_event"
	PacketIn            = "Packet_in_event"
	BarrierReply        = "Barrier_reply_event"
	QueueGetConfigReply = "Queue_get_config_reply_event"
	RoleReply           = "Role_reply_event"
	AsyncReply          = "Async_reply_event"

	DescStatsIn          = "Desc_stats_in_event"
	FlowStatsIn          = "Flow_stats_in_event"
	AggregateStatsIn     = "Aggregate_stats_in_event"
	TableStatsIn         = "Table_stats_in_event"
	PortStatsIn          = "Port_stats_in_event"
	QueueStatsIn         = "Queue_stats_in_event"
	GroupStatsIn         = "Group_stats_in_event"
	GroupDescStatsIn     = "Group_desc_stats_in_event"
	GroupFeaturesIn      = "Group_features_in_event"
	MeterStatsIn         = "Meter_stats_in_event"
	MeterConfigurationIn = "Meter_configuration_in_event"
	MeterFeaturesIn      = "Meter_features_in_event"
	TableFeaturesIn      = "Table_features_in_event"
	PortDescIn           = "Port_desc_in_event"
	ExperimenterStatsIn  = "Experimenter_stats_in_event"
)

var messageChannels = map[openflow.Type]string{
	openflow.OFPT_HELLO:                  Hello,
	openflow.OFPT_ERROR:                  Error,
	openflow.OFPT_ECHO_REQUEST:           EchoRequest,
	openflow.OFPT_ECHO_REPLY:             EchoReply,
	openflow.OFPT_EXPERIMENTER:           Experimenter,
	openflow.OFPT_FEATURES_REPLY:         FeaturesReply,
	openflow.OFPT_GET_CONFIG_REPLY:       GetConfigReply,
	openflow.OFPT_FLOW_REMOVED:           FlowRemoved,
	openflow.OFPT_PORT_STATUS:            PortStatus,
	openflow.OFPT_PACKET_IN:              PacketIn,
	openflow.OFPT_BARRIER_REPLY:          BarrierReply,
	openflow.OFPT_QUEUE_GET_CONFIG_REPLY: QueueGetConfigReply,
	openflow.OFPT_ROLE_REPLY:             RoleReply,
	openflow.OFPT_GET_ASYNC_REPLY:        AsyncReply,
}

var multipartChannels = map[openflow.MultipartType]string{
	openflow.OFPMP_DESC:           DescStatsIn,
	openflow.OFPMP_FLOW:           FlowStatsIn,
	openflow.OFPMP_AGGREGATE:      AggregateStatsIn,
	openflow.OFPMP_TABLE:          TableStatsIn,
	openflow.OFPMP_PORT_STATS:     PortStatsIn,
	openflow.OFPMP_QUEUE:          QueueStatsIn,
	openflow.OFPMP_GROUP:          GroupStatsIn,
	openflow.OFPMP_GROUP_DESC:     GroupDescStatsIn,
	openflow.OFPMP_GROUP_FEATURES: GroupFeaturesIn,
	openflow.OFPMP_METER:          MeterStatsIn,
	openflow.OFPMP_METER_CONFIG:   MeterConfigurationIn,
	openflow.OFPMP_METER_FEATURES: MeterFeaturesIn,
	openflow.OFPMP_TABLE_FEATURES: TableFeaturesIn,
	openflow.OFPMP_PORT_DESC:      PortDescIn,
	openflow.OFPMP_EXPERIMENTER:   ExperimenterStatsIn,
}

// Channels returns every well-known channel name.
func Channels() []string {
	names := []string{DatapathJoin, DatapathLeave, Shutdown, BootstrapComplete}
	for t := openflow.OFPT_HELLO; t <= openflow.OFPT_METER_MOD; t++ {
		if v, ok := messageChannels[t]; ok {
			names = append(names, v)
		}
	}
	for _, v := range []openflow.MultipartType{
		openflow.OFPMP_DESC, openflow.OFPMP_FLOW, openflow.OFPMP_AGGREGATE, openflow.OFPMP_TABLE,
		openflow.OFPMP_PORT_STATS, openflow.OFPMP_QUEUE, openflow.OFPMP_GROUP, openflow.OFPMP_GROUP_DESC,
		openflow.OFPMP_GROUP_FEATURES, openflow.OFPMP_METER, openflow.OFPMP_METER_CONFIG,
		openflow.OFPMP_METER_FEATURES, openflow.OFPMP_TABLE_FEATURES, openflow.OFPMP_PORT_DESC,
		openflow.OFPMP_EXPERIMENTER,
	} {
		names = append(names, multipartChannels[v])
	}

	return names
}

// ChannelOf returns the channel name of a decoded message. It returns false
// for message types that have no channel.
func ChannelOf(msg openflow.Incoming) (string, bool) {
	if msg == nil {
		return "", false
	}
	if msg.Type() == openflow.OFPT_MULTIPART_REPLY {
		reply, ok := msg.(*openflow.MultipartReply)
		if !ok {
			return "", false
		}
		name, ok := multipartChannels[reply.Subtype]
		return name, ok
	}
	name, ok := messageChannels[msg.Type()]

	return name, ok
}

// Event is a single-dispatch payload. Handlers must not modify it.
type Event struct {
	Name    string
	Kind    Kind
	DPID    openflow.DatapathID
	XID     uint32
	Message openflow.Incoming
}

func (r *Event) String() string {
	return fmt.Sprintf("Event(name=%v, kind=%v, dpid=%v, xid=%v)", r.Name, r.Kind, r.DPID, r.XID)
}

// NewMessage wraps a decoded message. It returns false if the message type
// has no channel.
func NewMessage(dpid openflow.DatapathID, msg openflow.Incoming, xid uint32) (*Event, bool) {
	name, ok := ChannelOf(msg)
	if !ok {
		return nil, false
	}

	return &Event{
		Name:    name,
		Kind:    KindMessage,
		DPID:    dpid,
		XID:     xid,
		Message: msg,
	}, true
}

// NewDatapathJoin carries the features reply received during the handshake.
func NewDatapathJoin(dpid openflow.DatapathID, reply *openflow.FeaturesReply) *Event {
	e := &Event{
		Name: DatapathJoin,
		Kind: KindDatapathJoin,
		DPID: dpid,
	}
	if reply != nil {
		e.XID = reply.TransactionID()
		e.Message = reply
	}

	return e
}

func NewDatapathLeave(dpid openflow.DatapathID) *Event {
	return &Event{Name: DatapathLeave, Kind: KindDatapathLeave, DPID: dpid}
}

func NewShutdown() *Event {
	return &Event{Name: Shutdown, Kind: KindShutdown}
}

func NewBootstrapComplete() *Event {
	return &Event{Name: BootstrapComplete, Kind: KindBootstrapComplete}
}

func (r *Event) PacketIn() *openflow.PacketIn {
	v, _ := r.Message.(*openflow.PacketIn)
	return v
}

func (r *Event) FeaturesReply() *openflow.FeaturesReply {
	v, _ := r.Message.(*openflow.FeaturesReply)
	return v
}

func (r *Event) EchoRequest() *openflow.EchoRequest {
	v, _ := r.Message.(*openflow.EchoRequest)
	return v
}

func (r *Event) PortStatus() *openflow.PortStatus {
	v, _ := r.Message.(*openflow.PortStatus)
	return v
}

func (r *Event) FlowRemoved() *openflow.FlowRemoved {
	v, _ := r.Message.(*openflow.FlowRemoved)
	return v
}

func (r *Event) MultipartReply() *openflow.MultipartReply {
	v, _ := r.Message.(*openflow.MultipartReply)
	return v
}

func (r *Event) ErrorMessage() *openflow.Error {
	v, _ := r.Message.(*openflow.Error)
	return v
}
