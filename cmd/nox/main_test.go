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

package main

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/CPqD/nox13oflib/controller"
	"github.com/CPqD/nox13oflib/event"

	"github.com/spf13/viper"
)

const sampleConfig = `
reliable:
  max_backoff: 10s
events:
  Packet_in_event: [first, second]
`

func TestControllerConfigFilterChains(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	viper.SetConfigType("yaml")
	if err := viper.ReadConfig(bytes.NewBufferString(sampleConfig)); err != nil {
		t.Fatalf("unexpected config error: %v", err)
	}

	ctrl := controller.New(controllerConfig())
	var called []string
	for _, v := range []string{"second", "first"} {
		component := v
		if _, err := ctrl.Bind(event.PacketIn, component, func(e *event.Event) event.Disposition {
			called = append(called, component)
			return event.Continue
		}); err != nil {
			t.Fatalf("unexpected bind error: %v", err)
		}
	}
	ctrl.Dispatcher().Dispatch(&event.Event{Name: event.PacketIn})

	expected := []string{"first", "second"}
	if !reflect.DeepEqual(called, expected) {
		t.Fatalf("unexpected handler sequence: expected=%v, actual=%v", expected, called)
	}
}
