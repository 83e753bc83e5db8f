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
	"database/sql"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/CPqD/nox13oflib/openflow"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
)

const (
	clusterDialerNetwork = "cluster"
	dialTimeout          = 5 * time.Second
)

type MySQLConfig struct {
	// Comma separated host:port list. Nodes are tried in order.
	Addr     string
	Username string
	Password string
	Name     string
}

// MySQL is a Registry backed by the switch table.
type MySQL struct {
	db *sql.DB
}

func NewMySQL(conf MySQLConfig) (*MySQL, error) {
	if err := validateClusterAddr(conf.Addr); err != nil {
		return nil, err
	}
	mysql.RegisterDialContext(clusterDialerNetwork, clusterDialer)

	db, err := sql.Open("mysql", dsn(conf))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	// Keep the connections on one node instead of spreading them.
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "connecting to MySQL")
	}

	return &MySQL{db: db}, nil
}

func dsn(conf MySQLConfig) string {
	c := mysql.NewConfig()
	c.User = conf.Username
	c.Passwd = conf.Password
	c.Net = clusterDialerNetwork
	c.Addr = strings.Replace(conf.Addr, " ", "", -1)
	c.DBName = conf.Name
	c.Timeout = dialTimeout
	c.ReadTimeout = time.Minute
	c.WriteTimeout = time.Minute
	c.ParseTime = true

	return c.FormatDSN()
}

func validateClusterAddr(addr string) error {
	if len(addr) == 0 {
		return errors.New("empty cluster address")
	}

	for _, v := range strings.Split(strings.Replace(addr, " ", "", -1), ",") {
		if _, err := net.ResolveTCPAddr("tcp", v); err != nil {
			return fmt.Errorf("invalid cluster address: %v: %v", v, err)
		}
	}

	return nil
}

// clusterDialer connects to the nodes in addr in the order of their
// appearance and returns the first successful connection.
func clusterDialer(ctx context.Context, addr string) (net.Conn, error) {
	d := net.Dialer{Timeout: dialTimeout}
	for _, v := range strings.Split(addr, ",") {
		logger.Debugf("dialing to %v", v)
		conn, err := d.DialContext(ctx, "tcp", v)
		if err == nil {
			logger.Debugf("successfully connected to %v", v)
			return conn, nil
		}
		logger.Errorf("failed to dial: %v", err)
	}

	return nil, errors.New("failed to dial: no available cluster node")
}

func (r *MySQL) Registered(ctx context.Context, dpid openflow.DatapathID) (bool, error) {
	var count int
	row := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM `switch` WHERE `dpid` = ?", uint64(dpid))
	if err := row.Scan(&count); err != nil {
		return false, errors.Wrapf(err, "querying DPID=%v", dpid)
	}

	return count > 0, nil
}

func (r *MySQL) Close() error {
	return r.db.Close()
}
