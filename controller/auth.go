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

package controller

import (
	"github.com/CPqD/nox13oflib/openflow"
	"github.com/CPqD/nox13oflib/transport"

	"github.com/pkg/errors"
)

var (
	ErrSwitchAuthRegistered = errors.New("switch auth is already registered")
)

// SwitchAuth decides whether a switch that completed the features exchange
// may join. CheckSwitchAuth must not block: it calls callback exactly once,
// from any goroutine, when the decision is known.
type SwitchAuth interface {
	CheckSwitchAuth(t transport.Transport, reply *openflow.FeaturesReply, callback func(approved bool))
}

// SwitchAuthFunc adapts an ordinary function to SwitchAuth.
type SwitchAuthFunc func(t transport.Transport, reply *openflow.FeaturesReply, callback func(approved bool))

func (r SwitchAuthFunc) CheckSwitchAuth(t transport.Transport, reply *openflow.FeaturesReply, callback func(approved bool)) {
	r(t, reply, callback)
}

// RegisterSwitchAuth installs the switch auth hook. Only the first
// registration takes effect.
func (r *Controller) RegisterSwitchAuth(auth SwitchAuth) error {
	if auth == nil {
		panic("nil switch auth")
	}
	if r.switchAuth != nil {
		logger.Errorf("switch auth is already set, ignoring the new one")
		return ErrSwitchAuthRegistered
	}
	r.switchAuth = auth

	return nil
}
