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

package loop

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/op/go-logging"
)

var (
	logger = logging.MustGetLogger("loop")
)

// Pollable is an object driven by the loop. Poll performs as much work as is
// immediately possible and reports whether anything progressed. Wait is
// called when a whole pass made no progress: the object registers the loop
// with whatever will make it ready again (a transport, a deadline).
type Pollable interface {
	Poll() bool
	Wait(l *Loop)
}

// Loop is a single-threaded cooperative scheduler. All pollables, timers and
// submitted functions run on the goroutine that calls Run or RunOnce. Only
// Wake and Submit may be called from other goroutines.
type Loop struct {
	pollables []Pollable
	timers    timerHeap
	seq       uint64
	// Earliest time requested by WakeAt during the current wait phase.
	wakeAt time.Time

	wake chan struct{}

	mutex     sync.Mutex
	submitted []func()

	now func() time.Time
}

func New() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		now:  time.Now,
	}
}

// Add registers p. Adding a pollable twice has no effect.
func (r *Loop) Add(p Pollable) {
	if p == nil {
		panic("nil pollable")
	}
	for _, v := range r.pollables {
		if v == p {
			return
		}
	}
	r.pollables = append(r.pollables, p)
	r.Wake()
}

// Remove unregisters p. It is safe to call from inside p's Poll.
func (r *Loop) Remove(p Pollable) {
	for i, v := range r.pollables {
		if v == p {
			copy(r.pollables[i:], r.pollables[i+1:])
			r.pollables[len(r.pollables)-1] = nil
			r.pollables = r.pollables[:len(r.pollables)-1]
			return
		}
	}
}

func (r *Loop) Len() int {
	return len(r.pollables)
}

// Wake makes the loop run another pass. It never blocks.
func (r *Loop) Wake() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// WakeAt asks for another pass no later than t. It is meant to be called from
// Wait.
func (r *Loop) WakeAt(t time.Time) {
	if r.wakeAt.IsZero() || t.Before(r.wakeAt) {
		r.wakeAt = t
	}
}

// Submit queues f to run on the loop goroutine during the next pass.
func (r *Loop) Submit(f func()) {
	if f == nil {
		panic("nil function")
	}

	r.mutex.Lock()
	r.submitted = append(r.submitted, f)
	r.mutex.Unlock()
	r.Wake()
}

// Timer is a one-shot callback scheduled with After.
type Timer struct {
	when     time.Time
	seq      uint64
	f        func()
	index    int
	canceled bool
}

// Cancel prevents the timer from firing. It returns false if the timer has
// already fired or been canceled.
func (r *Timer) Cancel() bool {
	if r.canceled || r.index < 0 {
		return false
	}
	r.canceled = true

	return true
}

// After runs f on the loop goroutine once d has elapsed. It must be called
// from the loop goroutine; other goroutines go through Submit.
func (r *Loop) After(d time.Duration, f func()) *Timer {
	if f == nil {
		panic("nil function")
	}

	r.seq++
	t := &Timer{when: r.now().Add(d), seq: r.seq, f: f}
	heap.Push(&r.timers, t)

	return t
}

func (r *Loop) runSubmitted() bool {
	r.mutex.Lock()
	funcs := r.submitted
	r.submitted = nil
	r.mutex.Unlock()

	for _, f := range funcs {
		f()
	}

	return len(funcs) > 0
}

func (r *Loop) fireTimers() bool {
	fired := false
	now := r.now()
	for len(r.timers) > 0 {
		t := r.timers[0]
		if t.when.After(now) {
			break
		}
		heap.Pop(&r.timers)
		if t.canceled {
			continue
		}
		t.f()
		fired = true
	}

	return fired
}

func (r *Loop) pollAll() bool {
	progress := false
	// Pollables may add or remove pollables, so iterate over a snapshot and
	// skip the ones that were removed meanwhile.
	snapshot := make([]Pollable, len(r.pollables))
	copy(snapshot, r.pollables)
	for _, p := range snapshot {
		if !r.contains(p) {
			continue
		}
		if p.Poll() {
			progress = true
		}
	}

	return progress
}

func (r *Loop) contains(p Pollable) bool {
	for _, v := range r.pollables {
		if v == p {
			return true
		}
	}

	return false
}

// RunOnce runs a single pass without blocking and reports whether anything
// progressed.
func (r *Loop) RunOnce() bool {
	progress := r.runSubmitted()
	if r.fireTimers() {
		progress = true
	}
	if r.pollAll() {
		progress = true
	}

	return progress
}

func (r *Loop) block(ctx context.Context) {
	r.wakeAt = time.Time{}
	for _, p := range r.pollables {
		p.Wait(r)
	}

	deadline := r.wakeAt
	if len(r.timers) > 0 && (deadline.IsZero() || r.timers[0].when.Before(deadline)) {
		deadline = r.timers[0].when
	}

	var timeout <-chan time.Time
	if !deadline.IsZero() {
		d := deadline.Sub(r.now())
		if d <= 0 {
			return
		}
		t := time.NewTimer(d)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case <-r.wake:
	case <-timeout:
	case <-ctx.Done():
	}
}

// Run drives the loop until ctx is done.
func (r *Loop) Run(ctx context.Context) error {
	logger.Debug("event loop is started")
	defer logger.Debug("event loop is finished")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// Drain a pending wake-up before the pass so that it is not mistaken
		// for a new event after the pass.
		select {
		case <-r.wake:
		default:
		}

		if r.RunOnce() {
			continue
		}
		r.block(ctx)
	}
}

type timerHeap []*Timer

func (r timerHeap) Len() int {
	return len(r)
}

func (r timerHeap) Less(i, j int) bool {
	if r[i].when.Equal(r[j].when) {
		return r[i].seq < r[j].seq
	}
	return r[i].when.Before(r[j].when)
}

func (r timerHeap) Swap(i, j int) {
	r[i], r[j] = r[j], r[i]
	r[i].index = i
	r[j].index = j
}

func (r *timerHeap) Push(x interface{}) {
	t := x.(*Timer)
	t.index = len(*r)
	*r = append(*r, t)
}

func (r *timerHeap) Pop() interface{} {
	old := *r
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*r = old[:n-1]

	return t
}
