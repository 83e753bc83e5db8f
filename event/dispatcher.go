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
	"sort"
	"strings"

	"github.com/CPqD/nox13oflib/loop"

	"github.com/eapache/queue"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

var (
	logger = logging.MustGetLogger("event")
)

// Disposition tells the dispatcher whether to deliver the event to the next
// handler.
type Disposition int

const (
	Continue Disposition = iota
	Stop
)

type Handler func(e *Event) Disposition

// HandlerID identifies a bound handler.
type HandlerID uint64

// FilterChain maps a component name to its order on one channel.
type FilterChain map[string]int

var (
	ErrDuplicateChannel = errors.New("duplicate event channel")
	ErrUnknownChannel   = errors.New("unknown event channel")
)

type registration struct {
	id      HandlerID
	order   int
	seq     uint64
	handler Handler
}

// Dispatcher delivers events to handlers bound on named channels. It must
// only be used from the loop goroutine.
type Dispatcher struct {
	channels map[string][]registration
	chains   map[string]FilterChain
	seq      uint64

	dispatching bool
	// Events raised while a dispatch is in progress.
	nested *queue.Queue
	// Events waiting for the next loop pass.
	posted *queue.Queue
}

// NewDispatcher creates a dispatcher with every well-known channel declared.
// chains maps a channel name to the ordered list of component names, and a
// component's order is its index in the list. Channel names in chains are
// matched case-insensitively since configuration loaders fold map keys.
func NewDispatcher(chains map[string][]string) *Dispatcher {
	d := &Dispatcher{
		channels: make(map[string][]registration),
		chains:   make(map[string]FilterChain),
		nested:   queue.New(),
		posted:   queue.New(),
	}
	for name, components := range chains {
		chain := make(FilterChain)
		for i, v := range components {
			chain[v] = i
		}
		d.chains[strings.ToLower(name)] = chain
	}
	for _, v := range Channels() {
		if err := d.RegisterChannel(v); err != nil {
			panic(err)
		}
	}

	return d
}

// RegisterChannel declares a channel. Declaring the same name twice fails.
func (r *Dispatcher) RegisterChannel(name string) error {
	if _, ok := r.channels[name]; ok {
		return errors.Wrap(ErrDuplicateChannel, name)
	}
	r.channels[name] = make([]registration, 0)

	return nil
}

func (r *Dispatcher) HasChannel(name string) bool {
	_, ok := r.channels[name]
	return ok
}

// Bind adds handler to channel with the order that the channel's filter chain
// assigns to component, or 0 if component is not listed.
func (r *Dispatcher) Bind(channel, component string, handler Handler) (HandlerID, error) {
	order := 0
	if chain, ok := r.chains[strings.ToLower(channel)]; ok {
		if v, ok := chain[component]; ok {
			order = v
		}
	}

	return r.BindOrder(channel, order, handler)
}

// BindOrder adds handler to channel with an explicit order. Lower orders run
// first and equal orders run in binding sequence.
func (r *Dispatcher) BindOrder(channel string, order int, handler Handler) (HandlerID, error) {
	if handler == nil {
		panic("nil handler")
	}
	handlers, ok := r.channels[channel]
	if !ok {
		return 0, errors.Wrap(ErrUnknownChannel, channel)
	}

	r.seq++
	reg := registration{
		id:      HandlerID(r.seq),
		order:   order,
		seq:     r.seq,
		handler: handler,
	}
	i := sort.Search(len(handlers), func(i int) bool {
		return handlers[i].order > order
	})
	// Copy so that an in-progress delivery keeps its own view.
	n := make([]registration, 0, len(handlers)+1)
	n = append(n, handlers[:i]...)
	n = append(n, reg)
	n = append(n, handlers[i:]...)
	r.channels[channel] = n
	logger.Debugf("handler %v is bound on %v with order %v", reg.id, channel, order)

	return reg.id, nil
}

// Unbind removes a handler. It returns false if the handler is not bound.
func (r *Dispatcher) Unbind(id HandlerID) bool {
	for name, handlers := range r.channels {
		for i, v := range handlers {
			if v.id != id {
				continue
			}
			n := make([]registration, 0, len(handlers)-1)
			n = append(n, handlers[:i]...)
			n = append(n, handlers[i+1:]...)
			r.channels[name] = n
			return true
		}
	}

	return false
}

// Dispatch delivers e synchronously. An event dispatched from inside a
// handler is queued and delivered after the current event, breadth-first.
func (r *Dispatcher) Dispatch(e *Event) {
	if e == nil {
		panic("nil event")
	}

	if r.dispatching {
		r.nested.Add(e)
		return
	}

	r.dispatching = true
	defer func() { r.dispatching = false }()

	r.deliver(e)
	for r.nested.Length() > 0 {
		r.deliver(r.nested.Remove().(*Event))
	}
}

// Post queues e for the next loop pass.
func (r *Dispatcher) Post(e *Event) {
	if e == nil {
		panic("nil event")
	}
	r.posted.Add(e)
}

func (r *Dispatcher) deliver(e *Event) {
	handlers := r.channels[e.Name]
	for _, v := range handlers {
		if r.invoke(v, e) == Stop {
			logger.Debugf("delivery of %v is stopped by handler %v", e.Name, v.id)
			return
		}
	}
}

func (r *Dispatcher) invoke(reg registration, e *Event) (result Disposition) {
	defer func() {
		if v := recover(); v != nil {
			logger.Errorf("handler %v panicked on %v: %v", reg.id, e, v)
			result = Continue
		}
	}()

	return reg.handler(e)
}

// Poll delivers the events posted before this pass. Events posted by those
// handlers wait for the next pass.
func (r *Dispatcher) Poll() bool {
	n := r.posted.Length()
	for i := 0; i < n; i++ {
		r.Dispatch(r.posted.Remove().(*Event))
	}

	return n > 0
}

func (r *Dispatcher) Wait(l *loop.Loop) {
	if r.posted.Length() > 0 {
		l.Wake()
	}
}

func (r *Dispatcher) String() string {
	return fmt.Sprintf("Dispatcher(channels=%v, posted=%v)", len(r.channels), r.posted.Length())
}
