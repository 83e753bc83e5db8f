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
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

var (
	logger = logging.MustGetLogger("transport")
)

// Notifier is woken up by a transport when it becomes readable or writable.
type Notifier interface {
	Wake()
}

// Transport carries complete OpenFlow frames. Recv and Send never block the
// caller unless block is set: they return unix.EAGAIN instead, and the caller
// registers a Notifier with RecvWait or SendWait to learn when to retry.
type Transport interface {
	// Recv returns the next frame, unix.EAGAIN if none is ready, or io.EOF
	// (or the underlying error) once the connection is gone.
	Recv() ([]byte, error)
	Send(packet []byte, block bool) error
	RecvWait(n Notifier)
	SendWait(n Notifier)
	RemoteAddr() net.Addr
	LocalAddr() net.Addr
	Close() error
}

// Factory produces transports. A passive factory accepts connections from
// switches, an active one dials a switch.
type Factory interface {
	Passive() bool
	Open(ctx context.Context) (Transport, error)
	Close() error
	String() string
}

const (
	DefaultPort = 6653
	// Makes a broken connection will be disconnected within 45 seconds.
	keepAlivePeriod = 5 * time.Second
)

// ParseFactory builds a factory from a connection method string:
// "ptcp:[port][:ip]" listens, "tcp:host[:port]" dials.
func ParseFactory(method string) (Factory, error) {
	tokens := strings.Split(method, ":")
	switch tokens[0] {
	case "ptcp":
		port := DefaultPort
		ip := ""
		if len(tokens) > 1 && tokens[1] != "" {
			v, err := strconv.Atoi(tokens[1])
			if err != nil || v <= 0 || v > 0xFFFF {
				return nil, fmt.Errorf("invalid listen port: %v", tokens[1])
			}
			port = v
		}
		if len(tokens) > 2 {
			ip = tokens[2]
		}
		return NewListener(net.JoinHostPort(ip, strconv.Itoa(port)))
	case "tcp":
		if len(tokens) < 2 || tokens[1] == "" {
			return nil, fmt.Errorf("missing host: %v", method)
		}
		port := DefaultPort
		if len(tokens) > 2 {
			v, err := strconv.Atoi(tokens[2])
			if err != nil || v <= 0 || v > 0xFFFF {
				return nil, fmt.Errorf("invalid remote port: %v", tokens[2])
			}
			port = v
		}
		return NewDialer(net.JoinHostPort(tokens[1], strconv.Itoa(port))), nil
	default:
		return nil, fmt.Errorf("unknown connection method: %v", method)
	}
}

type keepAliver interface {
	SetKeepAlive(keepalive bool) error
	SetKeepAlivePeriod(d time.Duration) error
}

func enableKeepAlive(conn net.Conn) {
	v, ok := conn.(keepAliver)
	if !ok {
		return
	}
	logger.Debug("trying to enable socket keepalive..")
	if err := v.SetKeepAlive(true); err != nil {
		logger.Errorf("failed to enable socket keepalive: %v", err)
		return
	}
	v.SetKeepAlivePeriod(keepAlivePeriod)
}

// Listener is a passive factory on a TCP socket.
type Listener struct {
	listener net.Listener
}

func NewListener(addr string) (*Listener, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to listen on %v", addr)
	}
	logger.Infof("listening for switches on %v", l.Addr())

	return &Listener{listener: l}, nil
}

func (r *Listener) Passive() bool {
	return true
}

func (r *Listener) Addr() net.Addr {
	return r.listener.Addr()
}

// Open waits for the next switch connection. It returns ctx.Err() after the
// context is done.
func (r *Listener) Open(ctx context.Context) (Transport, error) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			// Unblock Accept.
			r.listener.Close()
		case <-done:
		}
	}()

	conn, err := r.listener.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	logger.Infof("new device is connected from %v", conn.RemoteAddr())
	enableKeepAlive(conn)

	return NewStream(conn), nil
}

func (r *Listener) Close() error {
	return r.listener.Close()
}

func (r *Listener) String() string {
	return fmt.Sprintf("ptcp:%v", r.listener.Addr())
}

// Dialer is an active factory that connects to a switch.
type Dialer struct {
	addr    string
	timeout time.Duration
}

func NewDialer(addr string) *Dialer {
	return &Dialer{addr: addr, timeout: 10 * time.Second}
}

func (r *Dialer) Passive() bool {
	return false
}

func (r *Dialer) Open(ctx context.Context) (Transport, error) {
	d := net.Dialer{Timeout: r.timeout}
	conn, err := d.DialContext(ctx, "tcp", r.addr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to %v", r.addr)
	}
	logger.Infof("connected to the device at %v", conn.RemoteAddr())
	enableKeepAlive(conn)

	return NewStream(conn), nil
}

func (r *Dialer) Close() error {
	return nil
}

func (r *Dialer) String() string {
	return fmt.Sprintf("tcp:%v", r.addr)
}
