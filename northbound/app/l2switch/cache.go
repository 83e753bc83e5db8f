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
	"fmt"
	"net"
	"time"

	"github.com/CPqD/nox13oflib/openflow"

	"github.com/hashicorp/golang-lru"
)

// Window in which a flow is considered installed and is not sent again.
const flowCacheTimeout = 5 * time.Second

type flowKey struct {
	dpid    openflow.DatapathID
	inPort  uint32
	src     string
	dst     string
	outPort uint32
}

// flowCache remembers the flows recently sent to switches so that a burst
// of packet-ins for the same flow does not flood the switch with duplicates.
type flowCache struct {
	cache *lru.Cache
	now   func() time.Time
}

func newFlowCache(size int) *flowCache {
	c, err := lru.New(size)
	if err != nil {
		panic(fmt.Sprintf("LRU flow cache: %v", err))
	}

	return &flowCache{
		cache: c,
		now:   time.Now,
	}
}

func newFlowKey(dpid openflow.DatapathID, inPort uint32, src, dst net.HardwareAddr, outPort uint32) flowKey {
	return flowKey{dpid: dpid, inPort: inPort, src: string(src), dst: string(dst), outPort: outPort}
}

func (r *flowCache) exist(key flowKey) bool {
	v, ok := r.cache.Get(key)
	if !ok {
		return false
	}
	// Timeout?
	if r.now().Sub(v.(time.Time)) > flowCacheTimeout {
		return false
	}

	return true
}

func (r *flowCache) add(key flowKey) {
	// Update if the key already exists
	r.cache.Add(key, r.now())
}

// purge removes the flows of dpid. If port is not OFPP_ANY, only the flows
// that enter or leave through port are removed.
func (r *flowCache) purge(dpid openflow.DatapathID, port uint32) {
	for _, v := range r.cache.Keys() {
		key := v.(flowKey)
		if key.dpid != dpid {
			continue
		}
		if port != openflow.OFPP_ANY && key.inPort != port && key.outPort != port {
			continue
		}
		r.cache.Remove(key)
	}
}
