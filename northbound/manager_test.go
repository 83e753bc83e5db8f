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

package northbound

import (
	"testing"

	"github.com/CPqD/nox13oflib/event"
	"github.com/CPqD/nox13oflib/northbound/app"
	"github.com/CPqD/nox13oflib/northbound/app/apptest"
	"github.com/CPqD/nox13oflib/northbound/app/l2switch"

	"github.com/google/go-cmp/cmp"
)

type dependent struct{}

func (r *dependent) Name() string {
	return "Dependent"
}

func (r *dependent) Dependencies() []string {
	return []string{"l2switch"}
}

func (r *dependent) Install(ctrl app.Controller) error {
	return nil
}

func newTestManager(t *testing.T) (*Manager, *apptest.Controller) {
	ctrl := apptest.New()
	m, err := NewManager(ctrl, Config{L2Switch: l2switch.DefaultConfig()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	return m, ctrl
}

func TestEnable(t *testing.T) {
	m, ctrl := newTestManager(t)

	for _, v := range []string{"monitor", "L2SWITCH"} {
		if err := m.Enable(v); err != nil {
			t.Fatalf("failed to enable %v: %v", v, err)
		}
	}
	if diff := cmp.Diff([]string{"Monitor", "L2Switch"}, m.Enabled()); diff != "" {
		t.Fatalf("unexpected enabled applications (-expected +actual):\n%v", diff)
	}
	if len(ctrl.Handlers[event.PacketIn]) != 1 || len(ctrl.Handlers[event.DatapathJoin]) != 2 {
		t.Fatalf("unexpected handlers: %v", ctrl.Handlers)
	}

	if err := m.Enable("L2Switch"); err == nil {
		t.Fatalf("expected an error on enabling twice")
	}
	if err := m.Enable("Bogus"); err == nil {
		t.Fatalf("expected an error on an unknown application")
	}
}

func TestDependencies(t *testing.T) {
	m, _ := newTestManager(t)
	m.register(&dependent{})

	if err := m.Enable("dependent"); err == nil {
		t.Fatalf("expected an error on a missing dependency")
	}
	if err := m.Enable("l2switch"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Enable("dependent"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestInvalidAdminEmail(t *testing.T) {
	if _, err := NewManager(apptest.New(), Config{L2Switch: l2switch.DefaultConfig(), AdminEmail: "nobody"}); err == nil {
		t.Fatalf("expected an error on an invalid admin email")
	}
}
