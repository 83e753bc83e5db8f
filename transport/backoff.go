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

package transport

import (
	"math"
	"time"
)

// Backoff computes the exponential delay between reconnection attempts of a
// reliable active connection.
type Backoff struct {
	Max   time.Duration
	count uint64
}

func NewBackoff(max time.Duration) *Backoff {
	if max <= 0 {
		panic("invalid maximum backoff")
	}

	return &Backoff{Max: max}
}

// Next returns the delay before the next attempt and advances the counter.
func (r *Backoff) Next() time.Duration {
	delay := r.calculateDelay()
	r.count++

	return delay
}

// Reset is called after a connection has been established successfully.
func (r *Backoff) Reset() {
	r.count = 0
}

func (r *Backoff) calculateDelay() time.Duration {
	// Overflow?
	if float64(r.count) > math.Log2(r.Max.Seconds()) {
		return r.Max
	}

	// Exponential delay.
	return time.Duration(math.Pow(2, float64(r.count))) * time.Second
}
