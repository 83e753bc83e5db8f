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

package transport

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/CPqD/nox13oflib/openflow"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

type chanNotifier chan struct{}

func (r chanNotifier) Wake() {
	select {
	case r <- struct{}{}:
	default:
	}
}

func readFrame(t *testing.T, conn net.Conn) []byte {
	header := make([]byte, 8)
	if _, err := io.ReadFull(conn, header); err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}
	frame := make([]byte, binary.BigEndian.Uint16(header[2:4]))
	copy(frame, header)
	if _, err := io.ReadFull(conn, frame[8:]); err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}

	return frame
}

func recvFrame(t *testing.T, s *Stream, n chanNotifier) []byte {
	deadline := time.After(5 * time.Second)
	for {
		p, err := s.Recv()
		if err == nil {
			return p
		}
		if !errors.Is(err, unix.EAGAIN) {
			t.Fatalf("unexpected receive error: %v", err)
		}
		s.RecvWait(n)
		select {
		case <-n:
		case <-deadline:
			t.Fatalf("timeout while waiting for a frame")
		}
	}
}

func TestStreamHelloAndFraming(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()

	s := NewStream(local)
	defer s.Close()

	hello := readFrame(t, remote)
	if openflow.Type(hello[1]) != openflow.OFPT_HELLO || hello[0] != openflow.OF13_VERSION {
		t.Fatalf("unexpected first frame: expected=HELLO, actual=%x", hello)
	}

	n := make(chanNotifier, 1)
	if _, err := s.Recv(); !errors.Is(err, unix.EAGAIN) {
		t.Fatalf("unexpected receive result: expected=%v, actual=%v", unix.EAGAIN, err)
	}

	echo := []byte{0x04, 0x02, 0x00, 0x0c, 0x00, 0x00, 0x00, 0x07, 0xde, 0xad, 0xbe, 0xef}
	go func() {
		remote.Write([]byte{0x04, 0x00, 0x00, 0x08, 0x00, 0x00, 0x00, 0x01})
		// Split the frame to check the reassembly.
		remote.Write(echo[:5])
		remote.Write(echo[5:])
	}()

	p := recvFrame(t, s, n)
	if bytes.Equal(p, echo) == false {
		t.Fatalf("unexpected frame: expected=%x, actual=%x", echo, p)
	}

	reply := []byte{0x04, 0x03, 0x00, 0x08, 0x00, 0x00, 0x00, 0x07}
	if err := s.Send(reply, true); err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}
	if v := readFrame(t, remote); bytes.Equal(v, reply) == false {
		t.Fatalf("unexpected sent frame: expected=%x, actual=%x", reply, v)
	}
}

func TestStreamPeerClose(t *testing.T) {
	local, remote := net.Pipe()

	s := NewStream(local)
	defer s.Close()

	readFrame(t, remote)
	remote.Write([]byte{0x04, 0x00, 0x00, 0x08, 0x00, 0x00, 0x00, 0x01})
	remote.Close()

	n := make(chanNotifier, 1)
	deadline := time.After(5 * time.Second)
	for {
		_, err := s.Recv()
		if err == nil {
			t.Fatalf("unexpected frame after the peer closed the connection")
		}
		if !errors.Is(err, unix.EAGAIN) {
			if err != io.EOF {
				t.Fatalf("unexpected receive error: expected=%v, actual=%v", io.EOF, err)
			}
			break
		}
		s.RecvWait(n)
		select {
		case <-n:
		case <-deadline:
			t.Fatalf("timeout while waiting for the end of stream")
		}
	}

	s.Close()
	if err := s.Send([]byte{0x04, 0x02, 0x00, 0x08, 0, 0, 0, 0}, false); err != ErrClosed {
		t.Fatalf("unexpected send error: expected=%v, actual=%v", ErrClosed, err)
	}
}

func TestStreamIncompatibleVersion(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()

	s := NewStream(local)
	defer s.Close()

	readFrame(t, remote)
	go remote.Write([]byte{0x01, 0x00, 0x00, 0x08, 0x00, 0x00, 0x00, 0x01})

	msg := readFrame(t, remote)
	if openflow.Type(msg[1]) != openflow.OFPT_ERROR {
		t.Fatalf("unexpected reply to an OpenFlow 1.0 HELLO: expected=ERROR, actual=%x", msg)
	}

	n := make(chanNotifier, 1)
	deadline := time.After(5 * time.Second)
	for {
		_, err := s.Recv()
		if err != nil && !errors.Is(err, unix.EAGAIN) {
			if errors.Cause(err) != openflow.ErrUnsupportedVersion {
				t.Fatalf("unexpected receive error: expected=%v, actual=%v", openflow.ErrUnsupportedVersion, err)
			}
			return
		}
		s.RecvWait(n)
		select {
		case <-n:
		case <-deadline:
			t.Fatalf("timeout while waiting for the negotiation failure")
		}
	}
}

func TestStreamSendWouldBlock(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()

	s := NewStream(local)
	defer s.Close()

	// Nobody reads the remote end, so the writer is stuck on the HELLO and
	// the queue fills up.
	packet := []byte{0x04, 0x02, 0x00, 0x08, 0, 0, 0, 0}
	var err error
	for i := 0; i < queueSize+2; i++ {
		if err = s.Send(packet, false); err != nil {
			break
		}
	}
	if !errors.Is(err, unix.EAGAIN) {
		t.Fatalf("unexpected send error on a full queue: expected=%v, actual=%v", unix.EAGAIN, err)
	}
}

func TestParseFactory(t *testing.T) {
	samples := []struct {
		Method  string
		Passive bool
		String  string
		Error   bool
	}{
		{Method: "tcp:10.0.0.1", Passive: false, String: "tcp:10.0.0.1:6653"},
		{Method: "tcp:10.0.0.1:6633", Passive: false, String: "tcp:10.0.0.1:6633"},
		{Method: "ptcp:0:127.0.0.1", Passive: true},
		{Method: "tcp:", Error: true},
		{Method: "tcp:10.0.0.1:abc", Error: true},
		{Method: "ssl:10.0.0.1", Error: true},
	}

	for _, v := range samples {
		f, err := ParseFactory(v.Method)
		if v.Error {
			if err == nil {
				t.Fatalf("expected error for %v", v.Method)
			}
			continue
		}
		if err != nil {
			t.Fatalf("unexpected error for %v: %v", v.Method, err)
		}
		if f.Passive() != v.Passive {
			t.Fatalf("unexpected passive flag: method=%v, expected=%v, actual=%v", v.Method, v.Passive, f.Passive())
		}
		if v.String != "" && f.String() != v.String {
			t.Fatalf("unexpected factory string: expected=%v, actual=%v", v.String, f.String())
		}
		f.Close()
	}
}

func TestListenerAndDialer(t *testing.T) {
	l, err := NewListener("127.0.0.1:0")
	if err != nil {
		t.Fatalf("unexpected listen error: %v", err)
	}
	defer l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	accepted := make(chan Transport, 1)
	go func() {
		v, err := l.Open(ctx)
		if err != nil {
			t.Errorf("unexpected accept error: %v", err)
			close(accepted)
			return
		}
		accepted <- v
	}()

	active, err := NewDialer(l.Addr().String()).Open(ctx)
	if err != nil {
		t.Fatalf("unexpected dial error: %v", err)
	}
	defer active.Close()

	passive, ok := <-accepted
	if !ok {
		t.FailNow()
	}
	defer passive.Close()

	// Both ends send HELLO to each other, so the stream is established.
	p := []byte{0x04, 0x02, 0x00, 0x08, 0x00, 0x00, 0x00, 0x09}
	if err := active.Send(p, true); err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}
	v := recvFrame(t, passive.(*Stream), make(chanNotifier, 1))
	if bytes.Equal(v, p) == false {
		t.Fatalf("unexpected frame: expected=%x, actual=%x", p, v)
	}
}

func TestListenerCancel(t *testing.T) {
	l, err := NewListener("127.0.0.1:0")
	if err != nil {
		t.Fatalf("unexpected listen error: %v", err)
	}
	defer l.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	if _, err := l.Open(ctx); err != context.Canceled {
		t.Fatalf("unexpected accept error: expected=%v, actual=%v", context.Canceled, err)
	}
}

func TestBackoff(t *testing.T) {
	b := NewBackoff(10 * time.Second)
	expected := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second, 10 * time.Second}
	for i, v := range expected {
		if d := b.Next(); d != v {
			t.Fatalf("unexpected delay #%v: expected=%v, actual=%v", i, v, d)
		}
	}
	b.Reset()
	if d := b.Next(); d != time.Second {
		t.Fatalf("unexpected delay after reset: expected=%v, actual=%v", time.Second, d)
	}
}
