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
	"github.com/CPqD/nox13oflib/openflow"
	"github.com/CPqD/nox13oflib/transport"

	"github.com/BurntSushi/toml"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

var (
	logger = logging.MustGetLogger("auth")
)

// Static approves the switches whose datapath IDs are on a fixed list.
type Static struct {
	allowed map[openflow.DatapathID]struct{}
}

func NewStatic(dpids []openflow.DatapathID) *Static {
	allowed := make(map[openflow.DatapathID]struct{}, len(dpids))
	for _, v := range dpids {
		allowed[v] = struct{}{}
	}

	return &Static{allowed: allowed}
}

// ParseStatic builds the list from hexadecimal datapath ID strings.
func ParseStatic(dpids []string) (*Static, error) {
	result := make([]openflow.DatapathID, 0, len(dpids))
	for _, v := range dpids {
		dpid, err := openflow.ParseDatapathID(v)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing %q", v)
		}
		result = append(result, dpid)
	}

	return NewStatic(result), nil
}

type staticFile struct {
	DPIDs []string `toml:"dpids"`
}

// LoadStatic reads the list from a TOML file that has a top-level dpids
// array.
func LoadStatic(path string) (*Static, error) {
	var f staticFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, errors.Wrapf(err, "reading the switch list %v", path)
	}

	return ParseStatic(f.DPIDs)
}

func (r *Static) Len() int {
	return len(r.allowed)
}

func (r *Static) CheckSwitchAuth(t transport.Transport, reply *openflow.FeaturesReply, callback func(approved bool)) {
	_, ok := r.allowed[reply.DPID]
	if !ok {
		logger.Warningf("DPID=%v from %v is not on the switch list", reply.DPID, t.RemoteAddr())
	}
	callback(ok)
}
