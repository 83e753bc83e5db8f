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
	"bufio"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"time"

	"github.com/CPqD/nox13oflib/openflow"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const (
	// Number of frames buffered in each direction.
	queueSize    = 256
	bufSize      = 65536
	writeTimeout = 2 * time.Second
	// Time allowed for the peer to send its HELLO.
	helloTimeout = 30 * time.Second
)

var (
	ErrClosed       = errors.New("transport is closed")
	ErrMissingHello = errors.New("missing HELLO message")
)

// Stream is a Transport over a stream socket. A reader goroutine frames the
// incoming bytes and a writer goroutine drains the send queue, so Recv and
// Send only touch the queues.
type Stream struct {
	conn net.Conn
	rd   *bufio.Reader

	inbox  chan []byte
	outbox chan []byte

	mutex      sync.Mutex
	err        error
	recvWaiter Notifier
	sendWaiter Notifier

	closeOnce sync.Once
	closed    chan struct{}
}

// NewStream starts the reader and writer goroutines on conn. The OpenFlow
// HELLO exchange happens inside the stream: our HELLO is queued first and the
// peer's HELLO is consumed before any frame is delivered.
func NewStream(conn net.Conn) *Stream {
	if conn == nil {
		panic("nil connection")
	}

	s := &Stream{
		conn:   conn,
		rd:     bufio.NewReaderSize(conn, bufSize),
		inbox:  make(chan []byte, queueSize),
		outbox: make(chan []byte, queueSize),
		closed: make(chan struct{}),
	}
	hello, err := openflow.NewHello(0).MarshalBinary()
	if err != nil {
		panic(err)
	}
	s.outbox <- hello

	go s.runReader()
	go s.runWriter()

	return s
}

func (r *Stream) RemoteAddr() net.Addr {
	return r.conn.RemoteAddr()
}

func (r *Stream) LocalAddr() net.Addr {
	return r.conn.LocalAddr()
}

func (r *Stream) Recv() ([]byte, error) {
	select {
	case p, ok := <-r.inbox:
		if !ok {
			return nil, r.getError()
		}
		return p, nil
	default:
		return nil, unix.EAGAIN
	}
}

func (r *Stream) Send(packet []byte, block bool) error {
	select {
	case <-r.closed:
		return ErrClosed
	default:
	}

	if !block {
		select {
		case r.outbox <- packet:
			return nil
		default:
			return unix.EAGAIN
		}
	}

	select {
	case r.outbox <- packet:
		return nil
	case <-r.closed:
		return ErrClosed
	}
}

func (r *Stream) RecvWait(n Notifier) {
	r.mutex.Lock()
	r.recvWaiter = n
	r.mutex.Unlock()

	// The reader may have queued a frame before the waiter was registered.
	if len(r.inbox) > 0 || r.isReaderDone() {
		n.Wake()
	}
}

func (r *Stream) SendWait(n Notifier) {
	r.mutex.Lock()
	r.sendWaiter = n
	r.mutex.Unlock()

	if len(r.outbox) < cap(r.outbox) || r.isClosed() {
		n.Wake()
	}
}

func (r *Stream) Close() error {
	r.closeOnce.Do(func() {
		close(r.closed)
		r.conn.Close()
		r.wakeRecv()
		r.wakeSend()
	})

	return nil
}

func (r *Stream) isClosed() bool {
	select {
	case <-r.closed:
		return true
	default:
		return false
	}
}

func (r *Stream) isReaderDone() bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.err != nil
}

func (r *Stream) getError() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.err == nil {
		return io.EOF
	}
	return r.err
}

func (r *Stream) setError(err error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.err == nil {
		r.err = err
	}
}

func (r *Stream) wakeRecv() {
	r.mutex.Lock()
	n := r.recvWaiter
	r.mutex.Unlock()

	if n != nil {
		n.Wake()
	}
}

func (r *Stream) wakeSend() {
	r.mutex.Lock()
	n := r.sendWaiter
	r.mutex.Unlock()

	if n != nil {
		n.Wake()
	}
}

func (r *Stream) readPacket() ([]byte, error) {
	header, err := r.rd.Peek(8) // peek ofp_header
	if err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint16(header[2:4])
	if length < 8 {
		return nil, openflow.ErrInvalidPacketLength
	}
	packet := make([]byte, length)
	if _, err := io.ReadFull(r.rd, packet); err != nil {
		return nil, err
	}

	return packet, nil
}

func (r *Stream) negotiate() error {
	r.conn.SetReadDeadline(time.Now().Add(helloTimeout))
	defer r.conn.SetReadDeadline(time.Time{})

	packet, err := r.readPacket()
	if err != nil {
		return errors.Wrap(err, "failed to read HELLO")
	}
	// The first message should be HELLO.
	if openflow.Type(packet[1]) != openflow.OFPT_HELLO {
		return ErrMissingHello
	}
	// We only speak 1.3, which is the negotiated version for any peer that
	// announces 1.3 or later.
	if packet[0] < openflow.OF13_VERSION {
		msg := openflow.NewError(0, openflow.OFPET_HELLO_FAILED, openflow.OFPHFC_INCOMPATIBLE, []byte("OpenFlow 1.3 is required"))
		if v, err := msg.MarshalBinary(); err == nil {
			r.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			r.conn.Write(v)
		}
		return errors.Wrapf(openflow.ErrUnsupportedVersion, "peer version=%v", packet[0])
	}
	logger.Debugf("negotiated to openflow version 1.3 with %v", r.conn.RemoteAddr())

	return nil
}

func (r *Stream) runReader() {
	// inbox is closed when this goroutine returns in order to notice that
	// the connection has been closed.
	defer func() {
		close(r.inbox)
		r.wakeRecv()
		logger.Debugf("stream reader for %v is closed", r.conn.RemoteAddr())
	}()

	if err := r.negotiate(); err != nil {
		logger.Errorf("failed to negotiate the protocol version with %v: %v", r.conn.RemoteAddr(), err)
		r.setError(err)
		r.Close()
		return
	}

	for {
		packet, err := r.readPacket()
		if err != nil {
			if r.isClosed() || errors.Cause(err) == io.EOF {
				r.setError(io.EOF)
			} else {
				logger.Errorf("failed to read the next packet from %v: %v", r.conn.RemoteAddr(), err)
				r.setError(err)
			}
			return
		}

		select {
		case r.inbox <- packet:
			r.wakeRecv()
		case <-r.closed:
			r.setError(io.EOF)
			return
		}
	}
}

func (r *Stream) runWriter() {
	defer logger.Debugf("stream writer for %v is closed", r.conn.RemoteAddr())

	for {
		select {
		case packet := <-r.outbox:
			r.wakeSend()
			r.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if _, err := r.conn.Write(packet); err != nil {
				if !r.isClosed() {
					logger.Errorf("failed to write a packet to %v: %v", r.conn.RemoteAddr(), err)
				}
				r.Close()
				return
			}
		case <-r.closed:
			return
		}
	}
}
