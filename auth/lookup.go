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

package auth

import (
	"context"
	"time"

	"github.com/CPqD/nox13oflib/openflow"
	"github.com/CPqD/nox13oflib/transport"
)

// Registry tells whether a switch is registered. It may block.
type Registry interface {
	Registered(ctx context.Context, dpid openflow.DatapathID) (bool, error)
}

// Lookup approves the switches that a Registry knows. Each check runs on its
// own goroutine, and a failed lookup denies the switch.
type Lookup struct {
	registry Registry
	timeout  time.Duration
}

func NewLookup(registry Registry, timeout time.Duration) *Lookup {
	if registry == nil {
		panic("nil registry")
	}
	if timeout <= 0 {
		panic("invalid lookup timeout")
	}

	return &Lookup{registry: registry, timeout: timeout}
}

func (r *Lookup) CheckSwitchAuth(t transport.Transport, reply *openflow.FeaturesReply, callback func(approved bool)) {
	dpid := reply.DPID
	remote := t.RemoteAddr()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		ok, err := r.registry.Registered(ctx, dpid)
		if err != nil {
			logger.Errorf("failed to look up DPID=%v: %v", dpid, err)
			callback(false)
			return
		}
		if !ok {
			logger.Warningf("DPID=%v from %v is not registered", dpid, remote)
		}
		callback(ok)
	}()
}
