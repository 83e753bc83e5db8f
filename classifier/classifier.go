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

package classifier

import (
	"fmt"
	"sort"

	"github.com/CPqD/nox13oflib/event"

	"github.com/op/go-logging"
)

var (
	logger = logging.MustGetLogger("classifier")
)

// Action is invoked for a packet-in whose flow matches a rule.
type Action func(e *event.Event, f *Flow)

type RuleID uint64

type Rule struct {
	ID       RuleID
	Priority uint32
	Expr     *Expr
	Action   Action
}

func (r *Rule) String() string {
	return fmt.Sprintf("Rule(id=%v, priority=%v, fields=%#x)", r.ID, r.Priority, r.Expr.Fields())
}

// Classifier keeps rules ordered by descending priority. Rules of equal
// priority keep their insertion order. It must only be used from the loop
// goroutine.
type Classifier struct {
	rules  []*Rule
	nextID RuleID
}

func New() *Classifier {
	return &Classifier{}
}

func (r *Classifier) Len() int {
	return len(r.rules)
}

// AddRule inserts a rule and returns its unique ID.
func (r *Classifier) AddRule(priority uint32, expr *Expr, action Action) RuleID {
	if expr == nil {
		panic("nil expression")
	}
	if action == nil {
		panic("nil action")
	}

	r.nextID++
	rule := &Rule{
		ID:       r.nextID,
		Priority: priority,
		Expr:     expr,
		Action:   action,
	}
	i := sort.Search(len(r.rules), func(i int) bool {
		return r.rules[i].Priority < priority
	})
	// A new slice keeps results that are being iterated valid.
	rules := make([]*Rule, 0, len(r.rules)+1)
	rules = append(rules, r.rules[:i]...)
	rules = append(rules, rule)
	rules = append(rules, r.rules[i:]...)
	r.rules = rules

	return rule.ID
}

// DeleteRule removes a rule. It returns false if the rule does not exist.
func (r *Classifier) DeleteRule(id RuleID) bool {
	for i, v := range r.rules {
		if v.ID != id {
			continue
		}
		rules := make([]*Rule, 0, len(r.rules)-1)
		rules = append(rules, r.rules[:i]...)
		rules = append(rules, r.rules[i+1:]...)
		r.rules = rules
		return true
	}

	return false
}

// Result is a lazy sequence of the rules matching one flow.
type Result struct {
	rules []*Rule
	flow  *Flow
	next  int
}

// Classify returns the rules matching f in descending priority order.
func (r *Classifier) Classify(f *Flow) *Result {
	return &Result{rules: r.rules, flow: f}
}

// Next returns the next matching rule or nil at the end of the sequence.
func (r *Result) Next() *Rule {
	for r.next < len(r.rules) {
		rule := r.rules[r.next]
		r.next++
		if rule.Expr.Matches(r.flow) {
			return rule
		}
	}

	return nil
}

// HandlePacketIn runs the actions of every matching rule in the top priority
// band.
func (r *Classifier) HandlePacketIn(e *event.Event) event.Disposition {
	msg := e.PacketIn()
	if msg == nil {
		return event.Continue
	}
	if len(r.rules) == 0 {
		return event.Continue
	}

	flow, err := NewFlowFromPacketIn(msg)
	if err != nil {
		// Rules with an empty expression still match a bare flow.
		logger.Debugf("failed to extract a flow from PACKET_IN (DPID=%v): %v", e.DPID, err)
		flow = &Flow{InPort: msg.InPort()}
	}

	result := r.Classify(flow)
	first := result.Next()
	if first == nil {
		return event.Continue
	}
	top := first.Priority
	first.Action(e, flow)
	for rule := result.Next(); rule != nil && rule.Priority == top; rule = result.Next() {
		rule.Action(e, flow)
	}

	return event.Continue
}
