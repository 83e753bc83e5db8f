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

package controller

import (
	"context"
	"net"
	"time"

	"github.com/CPqD/nox13oflib/classifier"
	"github.com/CPqD/nox13oflib/event"
	"github.com/CPqD/nox13oflib/loop"
	"github.com/CPqD/nox13oflib/openflow"

	"github.com/op/go-logging"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

var (
	logger = logging.MustGetLogger("controller")
)

const (
	// Order of the built-in handlers on their channels.
	echoHandlerOrder       = 100
	classifierHandlerOrder = 100
)

type Config struct {
	// Handshake deadlines of accepted, one-shot dialed and reliably dialed
	// connections.
	PassiveTimeout  time.Duration
	ActiveTimeout   time.Duration
	ReliableTimeout time.Duration
	// Upper bound of the delay between reconnection attempts.
	MaxBackoff time.Duration
	// Interval of echo requests sent to every switch. Zero disables them.
	EchoInterval time.Duration
	// FilterChains maps a channel name to its ordered component names.
	FilterChains map[string][]string
}

func DefaultConfig() Config {
	return Config{
		PassiveTimeout:  5 * time.Second,
		ActiveTimeout:   60 * time.Second,
		ReliableTimeout: 4 * time.Second,
		MaxBackoff:      60 * time.Second,
	}
}

// Controller tracks the connected switches and dispatches their messages.
// Apart from Connect, ConnectWait and Submit, its methods must be called
// from the loop goroutine, which includes event handlers and timers.
type Controller struct {
	config     Config
	loop       *loop.Loop
	dispatcher *event.Dispatcher
	classifier *classifier.Classifier
	registry   *registry
	sessions   map[*session]struct{}
	switchAuth SwitchAuth
	xid        uint32
	now        func() time.Time
}

func New(config Config) *Controller {
	if config.MaxBackoff <= 0 {
		panic("invalid maximum backoff")
	}

	c := &Controller{
		config:     config,
		loop:       loop.New(),
		dispatcher: event.NewDispatcher(config.FilterChains),
		classifier: classifier.New(),
		sessions:   make(map[*session]struct{}),
		now:        time.Now,
	}
	c.registry = newRegistry(c)
	c.loop.Add(c.dispatcher)

	if _, err := c.dispatcher.BindOrder(event.EchoRequest, echoHandlerOrder, c.onEchoRequest); err != nil {
		panic(err)
	}
	if _, err := c.dispatcher.BindOrder(event.PacketIn, classifierHandlerOrder, c.classifier.HandlePacketIn); err != nil {
		panic(err)
	}

	return c
}

func (r *Controller) Dispatcher() *event.Dispatcher {
	return r.dispatcher
}

func (r *Controller) Loop() *loop.Loop {
	return r.loop
}

// Run drives the loop until ctx is done. Every connection and pending
// handshake is closed before it returns.
func (r *Controller) Run(ctx context.Context) error {
	if r.config.EchoInterval > 0 {
		r.loop.Submit(func() { r.scheduleEchoProbe() })
	}

	err := r.loop.Run(ctx)
	r.teardown()

	return err
}

func (r *Controller) teardown() {
	for s := range r.sessions {
		s.fail(context.Canceled)
	}
	r.registry.closeAll()
}

// Submit runs f on the loop goroutine. It may be called from any goroutine.
func (r *Controller) Submit(f func()) {
	r.loop.Submit(f)
}

// AllocateXID returns a nonzero transaction ID.
func (r *Controller) AllocateXID() uint32 {
	r.xid++
	if r.xid == 0 {
		r.xid++
	}

	return r.xid
}

// Send encodes msg with xid and queues it to the switch. It returns
// unix.ESRCH if dpid is not connected and unix.EAGAIN if block is false and
// the transport cannot take the message now.
func (r *Controller) Send(dpid openflow.DatapathID, msg openflow.Outgoing, xid uint32, block bool) error {
	c := r.registry.lookup(dpid)
	if c == nil {
		return unix.ESRCH
	}

	packet, err := openflow.Encode(msg, xid)
	if err != nil {
		return errors.Wrapf(err, "failed to encode %v for DPID=%v", msg.Type(), dpid)
	}

	return c.transport.Send(packet, block)
}

// SendPacket tells the switch to output a packet it buffered as bufferID.
func (r *Controller) SendPacket(dpid openflow.DatapathID, bufferID, inPort, outPort uint32, block bool) error {
	out := openflow.NewPacketOut(0)
	out.BufferID = bufferID
	out.InPort = inPort
	out.Actions = []openflow.Action{openflow.NewActionOutput(outPort)}

	return r.Send(dpid, out, 0, block)
}

// SendPacketData tells the switch to output data.
func (r *Controller) SendPacketData(dpid openflow.DatapathID, data []byte, inPort, outPort uint32, block bool) error {
	out := openflow.NewPacketOut(0)
	out.InPort = inPort
	out.Actions = []openflow.Action{openflow.NewActionOutput(outPort)}
	out.Data = data

	return r.Send(dpid, out, 0, block)
}

// Close disconnects a switch. It returns unix.ESRCH if dpid is not connected.
func (r *Controller) Close(dpid openflow.DatapathID) error {
	if !r.registry.close(dpid) {
		return unix.ESRCH
	}

	return nil
}

// RemoteAddr returns nil if dpid is not connected.
func (r *Controller) RemoteAddr(dpid openflow.DatapathID) net.Addr {
	c := r.registry.lookup(dpid)
	if c == nil {
		return nil
	}

	return c.transport.RemoteAddr()
}

// LocalAddr returns nil if dpid is not connected.
func (r *Controller) LocalAddr(dpid openflow.DatapathID) net.Addr {
	c := r.registry.lookup(dpid)
	if c == nil {
		return nil
	}

	return c.transport.LocalAddr()
}

func (r *Controller) Connected(dpid openflow.DatapathID) bool {
	return r.registry.lookup(dpid) != nil
}

// Datapaths returns the connected datapath IDs in ascending order.
func (r *Controller) Datapaths() []openflow.DatapathID {
	return r.registry.datapaths()
}

// Bind adds handler to channel with the order that the channel's filter
// chain gives component.
func (r *Controller) Bind(channel, component string, handler event.Handler) (event.HandlerID, error) {
	return r.dispatcher.Bind(channel, component, handler)
}

// RegisterHandlerOnMatch runs action for packet-ins matching expr. Among the
// matching rules, only those of the highest priority run.
func (r *Controller) RegisterHandlerOnMatch(priority uint32, expr *classifier.Expr, action classifier.Action) classifier.RuleID {
	return r.classifier.AddRule(priority, expr, action)
}

func (r *Controller) UnregisterHandler(id classifier.RuleID) bool {
	return r.classifier.DeleteRule(id)
}

// PostTimer runs f on the loop goroutine after d.
func (r *Controller) PostTimer(d time.Duration, f func()) *loop.Timer {
	return r.loop.After(d, f)
}

// Post queues e for delivery on the next loop pass.
func (r *Controller) Post(e *event.Event) {
	r.dispatcher.Post(e)
}

// Shutdown posts the shutdown event. Handlers on it decide when the loop
// stops.
func (r *Controller) Shutdown() {
	logger.Info("shutting down")
	r.dispatcher.Post(event.NewShutdown())
}

// Bootstrap tells components that every application is installed.
func (r *Controller) Bootstrap() {
	r.dispatcher.Post(event.NewBootstrapComplete())
}
