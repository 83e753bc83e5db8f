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
	"io"
	"net"
	"reflect"
	"testing"
	"time"

	"github.com/CPqD/nox13oflib/classifier"
	"github.com/CPqD/nox13oflib/event"
	"github.com/CPqD/nox13oflib/openflow"
	"github.com/CPqD/nox13oflib/transport"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

type fakeTransport struct {
	inbox [][]byte
	// Returned by Recv once the inbox is empty. nil means EAGAIN.
	recvErr error
	sent    [][]byte
	// Number of Send calls that fail with EAGAIN before one succeeds.
	sendBlocks int
	sendErr    error
	closed     int
	remote     net.Addr
}

func newFakeTransport(frames ...[]byte) *fakeTransport {
	return &fakeTransport{
		inbox:  frames,
		remote: &net.TCPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 40000},
	}
}

func (r *fakeTransport) Recv() ([]byte, error) {
	if len(r.inbox) == 0 {
		if r.recvErr != nil {
			return nil, r.recvErr
		}
		return nil, unix.EAGAIN
	}
	p := r.inbox[0]
	r.inbox = r.inbox[1:]

	return p, nil
}

func (r *fakeTransport) Send(packet []byte, block bool) error {
	if r.sendErr != nil {
		return r.sendErr
	}
	if r.sendBlocks > 0 {
		r.sendBlocks--
		return unix.EAGAIN
	}
	r.sent = append(r.sent, packet)

	return nil
}

func (r *fakeTransport) RecvWait(n transport.Notifier) {}
func (r *fakeTransport) SendWait(n transport.Notifier) {}

func (r *fakeTransport) RemoteAddr() net.Addr {
	return r.remote
}

func (r *fakeTransport) LocalAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(10, 0, 0, 254), Port: 6653}
}

func (r *fakeTransport) Close() error {
	r.closed++
	return nil
}

func (r *fakeTransport) sentTypes(t *testing.T) []openflow.Type {
	var result []openflow.Type
	for _, v := range r.sent {
		msg, _, err := openflow.Decode(v)
		if err != nil {
			t.Fatalf("failed to decode a sent frame: %v", err)
		}
		result = append(result, msg.Type())
	}

	return result
}

func encode(t *testing.T, msg openflow.Outgoing, xid uint32) []byte {
	packet, err := openflow.Encode(msg, xid)
	if err != nil {
		t.Fatalf("failed to encode %v: %v", msg.Type(), err)
	}

	return packet
}

func featuresReply(t *testing.T, dpid openflow.DatapathID) []byte {
	return encode(t, openflow.NewFeaturesReply(0, dpid), 7)
}

func newTestController() *Controller {
	return New(DefaultConfig())
}

// runPasses runs n loop passes.
func runPasses(c *Controller, n int) {
	for i := 0; i < n; i++ {
		c.loop.RunOnce()
	}
}

type recorder struct {
	joins  []openflow.DatapathID
	leaves []openflow.DatapathID
}

func record(t *testing.T, c *Controller) *recorder {
	r := &recorder{}
	if _, err := c.dispatcher.BindOrder(event.DatapathJoin, 0, func(e *event.Event) event.Disposition {
		r.joins = append(r.joins, e.DPID)
		return event.Continue
	}); err != nil {
		t.Fatalf("unexpected bind error: %v", err)
	}
	if _, err := c.dispatcher.BindOrder(event.DatapathLeave, 0, func(e *event.Event) event.Disposition {
		r.leaves = append(r.leaves, e.DPID)
		return event.Continue
	}); err != nil {
		t.Fatalf("unexpected bind error: %v", err)
	}

	return r
}

func TestHandshakeAfterWouldBlock(t *testing.T) {
	samples := []int{0, 1, 3, 10}

	for _, blocks := range samples {
		c := newTestController()
		rec := record(t, c)
		ft := newFakeTransport(featuresReply(t, 0x2a))
		ft.sendBlocks = blocks
		waiter := make(chan error, 1)
		c.startHandshake(ft, time.Minute, waiter, nil)

		runPasses(c, blocks+3)
		select {
		case err := <-waiter:
			if err != nil {
				t.Fatalf("unexpected handshake error: blocks=%v, err=%v", blocks, err)
			}
		default:
			t.Fatalf("handshake is not finished: blocks=%v", blocks)
		}

		expected := []openflow.Type{openflow.OFPT_FEATURES_REQUEST, openflow.OFPT_SET_CONFIG}
		if types := ft.sentTypes(t); !reflect.DeepEqual(types, expected) {
			t.Fatalf("unexpected sent messages: expected=%v, actual=%v", expected, types)
		}
		if !c.Connected(0x2a) {
			t.Fatalf("DPID=0x2a is not registered")
		}
		if !reflect.DeepEqual(rec.joins, []openflow.DatapathID{0x2a}) {
			t.Fatalf("unexpected join events: %v", rec.joins)
		}
		if len(c.sessions) != 0 {
			t.Fatalf("unexpected pending sessions: %v", len(c.sessions))
		}
	}
}

func TestHandshakeSwitchConfig(t *testing.T) {
	c := newTestController()
	ft := newFakeTransport(featuresReply(t, 1))
	c.startHandshake(ft, time.Minute, nil, nil)
	runPasses(c, 1)

	if len(ft.sent) < 2 {
		t.Fatalf("unexpected number of sent messages: %v", len(ft.sent))
	}
	config := ft.sent[1]
	// flags and miss_send_len follow the 8 byte header.
	expected := []byte{0x00, 0x00, 0xff, 0xff}
	if !reflect.DeepEqual(config[8:12], expected) {
		t.Fatalf("unexpected switch config: expected=%x, actual=%x", expected, config[8:12])
	}
}

func TestHandshakeFailure(t *testing.T) {
	samples := []struct {
		Name     string
		Frames   func(t *testing.T) [][]byte
		RecvErr  error
		Expected error
	}{
		{
			Name:     "zero DPID",
			Frames:   func(t *testing.T) [][]byte { return [][]byte{featuresReply(t, 0)} },
			Expected: unix.EINVAL,
		},
		{
			Name: "error message",
			Frames: func(t *testing.T) [][]byte {
				return [][]byte{encode(t, openflow.NewError(0, openflow.OFPET_BAD_REQUEST, openflow.OFPBRC_BAD_TYPE, nil), 3)}
			},
			Expected: unix.EINVAL,
		},
		{
			Name:     "undecodable message",
			Frames:   func(t *testing.T) [][]byte { return [][]byte{{0x04, 0x06, 0x00, 0x09, 0, 0, 0, 0}} },
			Expected: unix.EINVAL,
		},
		{
			Name:     "peer close",
			Frames:   func(t *testing.T) [][]byte { return nil },
			RecvErr:  unix.ECONNRESET,
			Expected: unix.ECONNRESET,
		},
	}

	for _, v := range samples {
		c := newTestController()
		rec := record(t, c)
		ft := newFakeTransport(v.Frames(t)...)
		ft.recvErr = v.RecvErr
		waiter := make(chan error, 1)
		c.startHandshake(ft, time.Minute, waiter, nil)
		runPasses(c, 3)

		select {
		case err := <-waiter:
			if !errors.Is(err, v.Expected) {
				t.Fatalf("unexpected error on %v: expected=%v, actual=%v", v.Name, v.Expected, err)
			}
		default:
			t.Fatalf("handshake is not finished on %v", v.Name)
		}
		if ft.closed != 1 {
			t.Fatalf("unexpected number of transport closes on %v: expected=1, actual=%v", v.Name, ft.closed)
		}
		if len(c.Datapaths()) != 0 || len(rec.joins) != 0 {
			t.Fatalf("failed handshake leaked into the registry on %v", v.Name)
		}
	}
}

func TestHandshakeIgnoresEarlyTraffic(t *testing.T) {
	c := newTestController()
	in := &openflow.PacketIn{
		Message:  openflow.NewMessage(openflow.OFPT_PACKET_IN, 0),
		BufferID: openflow.OFP_NO_BUFFER,
		Match:    openflow.NewMatch(),
	}
	ft := newFakeTransport(
		encode(t, openflow.NewEchoRequest(0, []byte("ping")), 0x55),
		encode(t, in, 0x56),
		encode(t, openflow.NewBarrierRequest(0), 0x57),
		featuresReply(t, 9),
	)
	waiter := make(chan error, 1)
	c.startHandshake(ft, time.Minute, waiter, nil)
	runPasses(c, 2)

	if err := <-waiter; err != nil {
		t.Fatalf("unexpected handshake error: %v", err)
	}
	expected := []openflow.Type{openflow.OFPT_FEATURES_REQUEST, openflow.OFPT_SET_CONFIG, openflow.OFPT_ECHO_REPLY}
	if types := ft.sentTypes(t); !reflect.DeepEqual(types, expected) {
		t.Fatalf("unexpected sent messages: expected=%v, actual=%v", expected, types)
	}
	_, xid, _ := openflow.Decode(ft.sent[2])
	if xid != 0x55 {
		t.Fatalf("unexpected echo reply xid: expected=0x55, actual=%#x", xid)
	}
}

func TestHandshakeTimeout(t *testing.T) {
	c := newTestController()
	now := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	ft := newFakeTransport()
	waiter := make(chan error, 1)
	c.startHandshake(ft, 5*time.Second, waiter, nil)
	runPasses(c, 3)
	if len(waiter) != 0 {
		t.Fatalf("handshake finished before the deadline")
	}

	now = now.Add(5 * time.Second)
	runPasses(c, 1)
	if err := <-waiter; !errors.Is(err, unix.ETIMEDOUT) {
		t.Fatalf("unexpected error: expected=%v, actual=%v", unix.ETIMEDOUT, err)
	}
	if ft.closed != 1 {
		t.Fatalf("transport is not closed after a timeout")
	}
}

func TestSwitchAuth(t *testing.T) {
	samples := []struct {
		Approved bool
		Expected error
	}{
		{Approved: true, Expected: nil},
		{Approved: false, Expected: unix.EPERM},
	}

	for _, v := range samples {
		c := newTestController()
		var pending func(bool)
		var dpid openflow.DatapathID
		err := c.RegisterSwitchAuth(SwitchAuthFunc(func(t transport.Transport, reply *openflow.FeaturesReply, callback func(bool)) {
			dpid = reply.DPID
			pending = callback
		}))
		if err != nil {
			t.Fatalf("unexpected registration error: %v", err)
		}

		ft := newFakeTransport(featuresReply(t, 0x10))
		waiter := make(chan error, 1)
		c.startHandshake(ft, time.Minute, waiter, nil)
		runPasses(c, 3)
		if pending == nil || dpid != 0x10 {
			t.Fatalf("switch auth is not consulted: dpid=%v", dpid)
		}
		if len(waiter) != 0 {
			t.Fatalf("handshake finished before the auth decision")
		}

		// Delivered through the loop, from another goroutine.
		done := make(chan struct{})
		go func() {
			pending(v.Approved)
			close(done)
		}()
		<-done
		runPasses(c, 2)

		if err := <-waiter; !errors.Is(err, v.Expected) {
			t.Fatalf("unexpected handshake result: approved=%v, expected=%v, actual=%v", v.Approved, v.Expected, err)
		}
		if c.Connected(0x10) != v.Approved {
			t.Fatalf("unexpected registration: approved=%v", v.Approved)
		}
	}
}

func TestRegisterSwitchAuthOnce(t *testing.T) {
	c := newTestController()
	first := SwitchAuthFunc(func(t transport.Transport, reply *openflow.FeaturesReply, callback func(bool)) { callback(true) })
	second := SwitchAuthFunc(func(t transport.Transport, reply *openflow.FeaturesReply, callback func(bool)) { callback(false) })

	if err := c.RegisterSwitchAuth(first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.RegisterSwitchAuth(second); errors.Cause(err) != ErrSwitchAuthRegistered {
		t.Fatalf("unexpected error: expected=%v, actual=%v", ErrSwitchAuthRegistered, err)
	}

	ft := newFakeTransport(featuresReply(t, 3))
	waiter := make(chan error, 1)
	c.startHandshake(ft, time.Minute, waiter, nil)
	runPasses(c, 3)
	if err := <-waiter; err != nil {
		t.Fatalf("the first switch auth is not in effect: %v", err)
	}
}

// admit registers a fake connection directly.
func admit(c *Controller, dpid openflow.DatapathID) (*fakeTransport, *conn) {
	ft := newFakeTransport()
	return ft, c.registry.admit(ft, dpid, nil)
}

func TestAdmitSupersedes(t *testing.T) {
	c := newTestController()
	rec := record(t, c)

	var transports []*fakeTransport
	for i := 0; i < 4; i++ {
		ft, _ := admit(c, 0x77)
		transports = append(transports, ft)
	}
	runPasses(c, 1)

	if !reflect.DeepEqual(c.Datapaths(), []openflow.DatapathID{0x77}) {
		t.Fatalf("unexpected datapaths: %v", c.Datapaths())
	}
	if c.registry.lookup(0x77).transport != transports[3] {
		t.Fatalf("the last admission does not win")
	}
	for i, v := range transports[:3] {
		if v.closed != 1 {
			t.Fatalf("superseded transport %v is not closed", i)
		}
	}
	if len(rec.leaves) != 3 {
		t.Fatalf("unexpected number of leave events: expected=3, actual=%v", len(rec.leaves))
	}
	// The slot of a destroyed connection is reused.
	if len(c.registry.slots) != 1 {
		t.Fatalf("unexpected arena size: expected=1, actual=%v", len(c.registry.slots))
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	c := newTestController()
	rec := record(t, c)
	ft, _ := admit(c, 5)

	c.registry.close(5)
	c.registry.close(5)
	runPasses(c, 2)

	if !reflect.DeepEqual(rec.leaves, []openflow.DatapathID{5}) {
		t.Fatalf("unexpected leave events: %v", rec.leaves)
	}
	if ft.closed != 1 {
		t.Fatalf("unexpected number of transport closes: expected=1, actual=%v", ft.closed)
	}
	if err := c.Close(5); !errors.Is(err, unix.ESRCH) {
		t.Fatalf("unexpected error on an unknown datapath: expected=%v, actual=%v", unix.ESRCH, err)
	}
}

func TestCloseFromHandlerIsDeferred(t *testing.T) {
	c := newTestController()
	ft, cn := admit(c, 8)
	ft.inbox = append(ft.inbox, encode(t, openflow.NewEchoRequest(0, nil), 1))

	closedInside := -1
	c.dispatcher.BindOrder(event.EchoRequest, 0, func(e *event.Event) event.Disposition {
		if err := c.Close(e.DPID); err != nil {
			t.Fatalf("unexpected close error: %v", err)
		}
		closedInside = ft.closed
		return event.Continue
	})
	runPasses(c, 1)

	if closedInside != 0 {
		t.Fatalf("connection is destroyed while its poll is on the stack")
	}
	if !cn.destroyed || ft.closed != 1 {
		t.Fatalf("connection is not destroyed after its poll returned")
	}
	// The echo responder runs after the close and finds no datapath.
	if len(ft.sent) != 0 {
		t.Fatalf("unexpected message sent to a closed datapath")
	}
}

func TestPumpDisconnect(t *testing.T) {
	samples := []error{unix.ECONNRESET, io.EOF}

	for _, v := range samples {
		c := newTestController()
		rec := record(t, c)
		ft, _ := admit(c, 0xbeef)
		ft.recvErr = v
		runPasses(c, 2)

		if c.Connected(0xbeef) {
			t.Fatalf("datapath is still registered after %v", v)
		}
		if !reflect.DeepEqual(rec.leaves, []openflow.DatapathID{0xbeef}) {
			t.Fatalf("unexpected leave events after %v: %v", v, rec.leaves)
		}
	}
}

func TestPumpDiscardsUndecodable(t *testing.T) {
	c := newTestController()
	ft, _ := admit(c, 1)
	ft.inbox = append(ft.inbox,
		[]byte{0x01, 0x00, 0x00, 0x08, 0, 0, 0, 0},
		encode(t, openflow.NewEchoRequest(0, nil), 0x99),
	)

	if c.loop.RunOnce() {
		t.Fatalf("unexpected progress on a discarded frame")
	}
	if !c.Connected(1) {
		t.Fatalf("undecodable frame closed the connection")
	}
	// The next frame is still delivered.
	runPasses(c, 1)
	if types := ft.sentTypes(t); !reflect.DeepEqual(types, []openflow.Type{openflow.OFPT_ECHO_REPLY}) {
		t.Fatalf("unexpected sent messages after a discarded frame: %v", types)
	}
}

func TestEchoResponder(t *testing.T) {
	c := newTestController()
	ft, _ := admit(c, 1)
	ft.inbox = append(ft.inbox, encode(t, openflow.NewEchoRequest(0, []byte("abc")), 0x1234))
	runPasses(c, 1)

	if len(ft.sent) != 1 {
		t.Fatalf("unexpected number of sent messages: expected=1, actual=%v", len(ft.sent))
	}
	msg, xid, err := openflow.Decode(ft.sent[0])
	if err != nil {
		t.Fatalf("failed to decode the reply: %v", err)
	}
	reply, ok := msg.(*openflow.EchoReply)
	if !ok || xid != 0x1234 || string(reply.Data) != "abc" {
		t.Fatalf("unexpected echo reply: xid=%#x, msg=%v", xid, msg)
	}
}

func TestEchoProbe(t *testing.T) {
	config := DefaultConfig()
	config.EchoInterval = time.Second
	c := New(config)
	now := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	alive, _ := admit(c, 1)
	dead, _ := admit(c, 2)

	c.probe()
	if len(alive.sent) != 1 || len(dead.sent) != 1 {
		t.Fatalf("echo requests are not sent to every datapath")
	}

	now = now.Add(4 * time.Second)
	alive.inbox = append(alive.inbox, encode(t, openflow.NewEchoRequest(0, nil), 9))
	runPasses(c, 1)
	c.probe()
	if !c.Connected(1) {
		t.Fatalf("active datapath is closed by the echo probe")
	}
	if c.Connected(2) {
		t.Fatalf("silent datapath is not closed by the echo probe")
	}
}

func TestSend(t *testing.T) {
	c := newTestController()
	if err := c.Send(1, openflow.NewBarrierRequest(0), 1, false); !errors.Is(err, unix.ESRCH) {
		t.Fatalf("unexpected error on an unknown datapath: expected=%v, actual=%v", unix.ESRCH, err)
	}
	if c.RemoteAddr(1) != nil || c.LocalAddr(1) != nil {
		t.Fatalf("unexpected address of an unknown datapath")
	}

	ft, _ := admit(c, 1)
	ft.sendBlocks = 1
	if err := c.SendPacket(1, 0x10, 2, openflow.OFPP_FLOOD, false); !errors.Is(err, unix.EAGAIN) {
		t.Fatalf("unexpected error on a full transport: expected=%v, actual=%v", unix.EAGAIN, err)
	}
	if err := c.SendPacketData(1, []byte{1, 2, 3}, 2, 3, false); err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}

	msg, xid, err := openflow.Decode(ft.sent[0])
	if err != nil {
		t.Fatalf("failed to decode the packet out: %v", err)
	}
	out, ok := msg.(*openflow.PacketOut)
	if !ok || xid != 0 {
		t.Fatalf("unexpected message: xid=%v, msg=%v", xid, msg)
	}
	if out.BufferID != openflow.OFP_NO_BUFFER || out.InPort != 2 || !reflect.DeepEqual(out.Data, []byte{1, 2, 3}) {
		t.Fatalf("unexpected packet out: %+v", out)
	}
	if c.RemoteAddr(1).String() != "10.0.0.1:40000" {
		t.Fatalf("unexpected remote address: %v", c.RemoteAddr(1))
	}
}

func TestAllocateXID(t *testing.T) {
	c := newTestController()
	c.xid = ^uint32(0) - 1

	first := c.AllocateXID()
	second := c.AllocateXID()
	if first != ^uint32(0) || second != 1 {
		t.Fatalf("unexpected transaction IDs: first=%#x, second=%#x", first, second)
	}
}

func TestRegisterHandlerOnMatch(t *testing.T) {
	c := newTestController()
	ft, _ := admit(c, 1)

	match := openflow.NewMatch()
	match.SetInPort(4)
	in := &openflow.PacketIn{
		Message:  openflow.NewMessage(openflow.OFPT_PACKET_IN, 0),
		BufferID: openflow.OFP_NO_BUFFER,
		Match:    match,
		Data:     []byte{0, 0, 0, 0, 0, 2, 0, 0, 0, 0, 0, 1, 0x88, 0xb5, 0xde, 0xad},
	}
	ft.inbox = append(ft.inbox, encode(t, in, 1), encode(t, in, 2))

	var ports []uint32
	id := c.RegisterHandlerOnMatch(10, classifier.NewExpr().InPort(4), func(e *event.Event, f *classifier.Flow) {
		ports = append(ports, f.InPort)
	})
	runPasses(c, 1)
	if !c.UnregisterHandler(id) {
		t.Fatalf("failed to unregister rule %v", id)
	}
	runPasses(c, 1)

	if !reflect.DeepEqual(ports, []uint32{4}) {
		t.Fatalf("unexpected classifier actions: %v", ports)
	}
}

func TestShutdownAndBootstrap(t *testing.T) {
	c := newTestController()
	var names []string
	for _, v := range []string{event.BootstrapComplete, event.Shutdown} {
		c.dispatcher.BindOrder(v, 0, func(e *event.Event) event.Disposition {
			names = append(names, e.Name)
			return event.Continue
		})
	}
	c.Bootstrap()
	c.Shutdown()
	runPasses(c, 1)

	expected := []string{event.BootstrapComplete, event.Shutdown}
	if !reflect.DeepEqual(names, expected) {
		t.Fatalf("unexpected events: expected=%v, actual=%v", expected, names)
	}
}
