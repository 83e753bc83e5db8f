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

package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/CPqD/nox13oflib/event"

	"github.com/gorilla/websocket"
)

const (
	subscriberQueueSize = 64
	writeTimeout        = 10 * time.Second
)

type streamEvent struct {
	Event string `json:"event"`
	DPID  string `json:"dpid"`
}

// stream sends the datapath join and leave events to websocket clients.
type stream struct {
	upgrader websocket.Upgrader

	mutex       sync.Mutex
	subscribers map[chan []byte]struct{}
	closed      bool
}

func newStream() *stream {
	return &stream{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		subscribers: make(map[chan []byte]struct{}),
	}
}

// onEvent runs on the loop goroutine and must not block.
func (r *stream) onEvent(e *event.Event) event.Disposition {
	v := streamEvent{DPID: e.DPID.String()}
	switch e.Kind {
	case event.KindDatapathJoin:
		v.Event = "join"
	case event.KindDatapathLeave:
		v.Event = "leave"
	default:
		return event.Continue
	}
	msg, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()
	for c := range r.subscribers {
		select {
		case c <- msg:
		default:
			logger.Warningf("dropping a %v event of DPID=%v for a slow event subscriber", v.Event, v.DPID)
		}
	}

	return event.Continue
}

func (r *stream) subscribe() (chan []byte, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.closed {
		return nil, false
	}
	c := make(chan []byte, subscriberQueueSize)
	r.subscribers[c] = struct{}{}

	return c, true
}

func (r *stream) unsubscribe(c chan []byte) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.subscribers[c]; !ok {
		return
	}
	delete(r.subscribers, c)
	close(c)
}

func (r *stream) len() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return len(r.subscribers)
}

// shutdown disconnects every subscriber.
func (r *stream) shutdown() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.closed = true
	for c := range r.subscribers {
		delete(r.subscribers, c)
		close(c)
	}
}

func (r *stream) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		logger.Errorf("failed to upgrade the event stream from %v: %v", req.RemoteAddr, err)
		return
	}
	defer conn.Close()

	c, ok := r.subscribe()
	if !ok {
		return
	}
	defer r.unsubscribe(c)
	logger.Debugf("new event subscriber: %v", req.RemoteAddr)

	// Clients never send anything, so reading only detects a disconnection.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case msg, ok := <-c:
			if !ok {
				conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeTimeout))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Debugf("event subscriber %v is gone: %v", req.RemoteAddr, err)
				return
			}
		case <-gone:
			logger.Debugf("event subscriber %v is disconnected", req.RemoteAddr)
			return
		}
	}
}
