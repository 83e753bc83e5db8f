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
	"strings"
	"testing"
	"time"

	"github.com/CPqD/nox13oflib/event"
	"github.com/CPqD/nox13oflib/northbound/app/apptest"
	"github.com/CPqD/nox13oflib/openflow"
)

func TestNew(t *testing.T) {
	samples := []struct {
		Email string
		Valid bool
	}{
		{Email: "", Valid: true},
		{Email: "admin@example.com", Valid: true},
		{Email: "admin", Valid: false},
	}

	for _, v := range samples {
		if _, err := New(v.Email); (err == nil) != v.Valid {
			t.Fatalf("unexpected result for %q: valid=%v, err=%v", v.Email, v.Valid, err)
		}
	}
}

func TestAlarm(t *testing.T) {
	m, err := New("admin@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mails := make(chan string, 4)
	m.send = func(from string, to []string, msg []byte) error {
		mails <- string(msg)
		return nil
	}

	ctrl := apptest.New()
	if err := m.Install(ctrl); err != nil {
		t.Fatalf("unexpected install error: %v", err)
	}
	ctrl.Deliver(event.NewDatapathJoin(0x2a, openflow.NewFeaturesReply(0, 0x2a)))
	ctrl.Deliver(event.NewDatapathLeave(0x2a))

	// Both alarms are sent concurrently.
	for i := 0; i < 2; i++ {
		select {
		case msg := <-mails:
			if !strings.Contains(msg, "To: admin@example.com") {
				t.Fatalf("unexpected alarm header: %v", msg)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("alarm email is not sent")
		}
	}
	if len(ctrl.Sent) != 0 {
		t.Fatalf("monitor sends messages to switches: %+v", ctrl.Sent)
	}
}

func TestNoAlarmWithoutEmail(t *testing.T) {
	m, err := New("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m.send = func(from string, to []string, msg []byte) error {
		t.Errorf("alarm email is sent without an address")
		return nil
	}

	ctrl := apptest.New()
	if err := m.Install(ctrl); err != nil {
		t.Fatalf("unexpected install error: %v", err)
	}
	ctrl.Deliver(event.NewDatapathJoin(0x1, nil))
	ctrl.Deliver(event.NewDatapathLeave(0x1))
}
