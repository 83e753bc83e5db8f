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

package l2switch

import (
	"time"

	"github.com/CPqD/nox13oflib/openflow"
)

// stormController limits the number of floods per switch to max per second.
// It runs on the loop goroutine only.
type stormController struct {
	max        uint
	broadcasts map[openflow.DatapathID][]time.Time
	flooder    flooder
	now        func() time.Time
}

type flooder interface {
	flood(dpid openflow.DatapathID, in *openflow.PacketIn) error
}

// max is the number of broadcasts that are allowed per second.
func newStormController(max uint, f flooder) *stormController {
	if max <= 0 {
		panic("max should be greater than zero")
	}
	if f == nil {
		panic("flooder is nil")
	}

	return &stormController{
		max:        max,
		broadcasts: make(map[openflow.DatapathID][]time.Time),
		flooder:    f,
		now:        time.Now,
	}
}

func (r *stormController) broadcast(dpid openflow.DatapathID, in *openflow.PacketIn) error {
	t := r.now()
	bcasts := append(r.broadcasts[dpid], t)
	l := uint(len(bcasts))
	if l <= r.max {
		r.broadcasts[dpid] = bcasts
		return r.flooder.flood(dpid, in)
	}
	// Only allows r.max broadcasts per 1 second
	if t.Sub(bcasts[0]) > 1*time.Second {
		// Shrink (l > r.max)
		r.broadcasts[dpid] = bcasts[l-r.max : l]
		return r.flooder.flood(dpid, in)
	}
	logger.Infof("too many broadcasts on DPID=%v: broadcast is denied to avoid the broadcast storm", dpid)

	return nil
}

func (r *stormController) forget(dpid openflow.DatapathID) {
	delete(r.broadcasts, dpid)
}
