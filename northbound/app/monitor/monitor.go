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

package monitor

import (
	"fmt"
	"strings"

	"github.com/CPqD/nox13oflib/event"
	"github.com/CPqD/nox13oflib/northbound/app"
	"github.com/CPqD/nox13oflib/openflow"

	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

var (
	logger = logging.MustGetLogger("monitor")
)

const sender = "noreply@localhost"

// Monitor logs switch arrivals, departures and port changes. If an admin
// email address is set, it also mails an alarm when a switch comes or goes.
type Monitor struct {
	email string
	// Replaced in tests.
	send func(from string, to []string, msg []byte) error
}

// New returns an error if email is neither empty nor an address.
func New(email string) (*Monitor, error) {
	if len(email) > 0 && !strings.Contains(email, "@") {
		return nil, errors.New("invalid admin_email in the config file")
	}

	return &Monitor{
		email: email,
		send:  sendmail,
	}, nil
}

func (r *Monitor) Name() string {
	return "Monitor"
}

func (r *Monitor) Dependencies() []string {
	return nil
}

func (r *Monitor) String() string {
	return fmt.Sprintf("%v", r.Name())
}

func (r *Monitor) Install(ctrl app.Controller) error {
	if ctrl == nil {
		panic("nil controller")
	}

	return app.BindAll(ctrl, r.Name(), []app.Binding{
		{Channel: event.DatapathJoin, Handler: r.onDatapathJoin},
		{Channel: event.DatapathLeave, Handler: r.onDatapathLeave},
		{Channel: event.PortStatus, Handler: r.onPortStatus},
	})
}

func (r *Monitor) onDatapathJoin(e *event.Event) event.Disposition {
	if reply := e.FeaturesReply(); reply != nil {
		logger.Warningf("switch device up: DPID=%v, buffers=%v, tables=%v", e.DPID, reply.NumBuffers, reply.NumTables)
	} else {
		logger.Warningf("switch device up: DPID=%v", e.DPID)
	}
	r.alarm("switch device is up!", e.DPID)

	return event.Continue
}

func (r *Monitor) onDatapathLeave(e *event.Event) event.Disposition {
	logger.Warningf("switch device down: DPID=%v", e.DPID)
	r.alarm("switch device is down!", e.DPID)

	return event.Continue
}

func (r *Monitor) onPortStatus(e *event.Event) event.Disposition {
	status := e.PortStatus()
	if status == nil {
		return event.Continue
	}

	var reason string
	switch status.Reason {
	case openflow.OFPPR_ADD:
		reason = "added"
	case openflow.OFPPR_DELETE:
		reason = "removed"
	case openflow.OFPPR_MODIFY:
		reason = "modified"
	default:
		reason = fmt.Sprintf("reason %v", status.Reason)
	}
	logger.Infof("port %v on DPID=%v: %v", reason, e.DPID, status.Port.String())

	return event.Continue
}

// alarm mails subject off the loop goroutine.
func (r *Monitor) alarm(subject string, dpid openflow.DatapathID) {
	if len(r.email) == 0 {
		return
	}

	go func() {
		if err := r.sendAlarm(subject, fmt.Sprintf("DPID: %v", dpid)); err != nil {
			logger.Errorf("failed to send an alarm email: %v", err)
		}
	}()
}

func (r *Monitor) sendAlarm(subject, body string) error {
	to := []string{r.email}
	header := fmt.Sprintf("From: %v\r\nTo: %v\r\nSubject: %v", sender, r.email, subject)
	msg := []byte(fmt.Sprintf("%v\r\n\r\n%v", header, body))

	if err := r.send(sender, to, msg); err != nil {
		return err
	}
	logger.Debugf("sent an alarm email to %v: subject=%v", r.email, subject)

	return nil
}
