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
	"fmt"
	"net"
	"net/smtp"
	"strings"
)

func sendmail(from string, to []string, msg []byte) error {
	if len(to) == 0 {
		return fmt.Errorf("empty recipient")
	}
	mx, err := lookupMX(to[0])
	if err != nil {
		return err
	}

	err = fmt.Errorf("no MX record for %v", to[0])
	for _, v := range mx {
		err = smtp.SendMail(fmt.Sprintf("%v:25", v.Host), nil, from, to, msg)
		if err != nil {
			continue
		}
		// Sent
		return nil
	}

	return err
}

func lookupMX(email string) ([]*net.MX, error) {
	tokens := strings.Split(email, "@")
	if len(tokens) != 2 {
		return nil, fmt.Errorf("invalid email address: %v", email)
	}

	return net.LookupMX(tokens[1])
}
