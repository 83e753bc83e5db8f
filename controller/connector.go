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
	"context"
	"time"

	"github.com/CPqD/nox13oflib/transport"

	"github.com/pkg/errors"
)

const (
	acceptRetryInterval = time.Second
)

// Connect starts establishing connections through factory in the background.
// A passive factory accepts switches until ctx is done. An active factory
// dials once, or keeps the connection up with exponential backoff when
// reliable is set. It may be called from any goroutine.
func (r *Controller) Connect(ctx context.Context, factory transport.Factory, reliable bool) {
	if factory == nil {
		panic("nil transport factory")
	}

	switch {
	case factory.Passive():
		go r.runPassive(ctx, factory)
	case reliable:
		go r.runReliable(ctx, factory)
	default:
		go func() {
			if err := r.dial(ctx, factory, r.config.ActiveTimeout, nil, nil); err != nil {
				logger.Errorf("failed to connect to %v: %v", factory, err)
			}
		}()
	}
}

// ConnectWait dials an active factory and blocks until the handshake
// completes. It must not be called from the loop goroutine.
func (r *Controller) ConnectWait(ctx context.Context, factory transport.Factory) error {
	if factory == nil {
		panic("nil transport factory")
	}
	if factory.Passive() {
		return errors.New("blocking connect needs an active transport factory")
	}

	result := make(chan error, 1)
	if err := r.dial(ctx, factory, r.config.ActiveTimeout, result, nil); err != nil {
		return err
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// dial opens one transport and hands it to the loop for the handshake.
func (r *Controller) dial(ctx context.Context, factory transport.Factory, timeout time.Duration, waiter chan<- error, disconnected chan struct{}) error {
	t, err := factory.Open(ctx)
	if err != nil {
		return err
	}
	r.loop.Submit(func() {
		r.startHandshake(t, timeout, waiter, disconnected)
	})

	return nil
}

func (r *Controller) runPassive(ctx context.Context, factory transport.Factory) {
	logger.Infof("listening for switches on %v", factory)
	defer factory.Close()

	for {
		t, err := factory.Open(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Debugf("stop listening on %v", factory)
				return
			}
			logger.Errorf("failed to accept a new connection on %v: %v", factory, err)
			if !sleep(ctx, acceptRetryInterval) {
				return
			}
			continue
		}

		r.loop.Submit(func() {
			r.startHandshake(t, r.config.PassiveTimeout, nil, nil)
		})
	}
}

// runReliable keeps one connection to the switch behind factory. It dials
// again after a failed handshake or once the admitted connection is gone.
func (r *Controller) runReliable(ctx context.Context, factory transport.Factory) {
	backoff := transport.NewBackoff(r.config.MaxBackoff)

	for {
		result := make(chan error, 1)
		disconnected := make(chan struct{})
		if err := r.dial(ctx, factory, r.config.ReliableTimeout, result, disconnected); err != nil {
			if ctx.Err() != nil {
				return
			}
			delay := backoff.Next()
			logger.Warningf("failed to connect to %v: %v (retrying in %v)", factory, err, delay)
			if !sleep(ctx, delay) {
				return
			}
			continue
		}

		var err error
		select {
		case err = <-result:
		case <-ctx.Done():
			return
		}
		if err != nil {
			delay := backoff.Next()
			logger.Warningf("handshake with %v failed: %v (retrying in %v)", factory, err, delay)
			if !sleep(ctx, delay) {
				return
			}
			continue
		}
		backoff.Reset()

		select {
		case <-disconnected:
			logger.Infof("connection to %v is lost: reconnecting", factory)
		case <-ctx.Done():
			return
		}
	}
}

// sleep waits for d and returns false if ctx is done first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
