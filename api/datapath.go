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

package api

import (
	"net/http"

	"github.com/CPqD/nox13oflib/openflow"

	"github.com/ant0ine/go-json-rest/rest"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

type datapath struct {
	DPID string `json:"dpid"`
	Addr string `json:"addr,omitempty"`
}

func (r *Server) listDatapath(w rest.ResponseWriter, req *rest.Request) {
	var result []datapath
	err := r.call(req.Context(), func() {
		for _, v := range r.Controller.Datapaths() {
			d := datapath{DPID: v.String()}
			if addr := r.Controller.RemoteAddr(v); addr != nil {
				d.Addr = addr.String()
			}
			result = append(result, d)
		}
	})
	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.WriteJson(Response{Status: StatusServiceUnavailable, Message: err.Error()})
		return
	}
	if result == nil {
		result = []datapath{}
	}

	w.WriteJson(Response{Status: StatusOkay, Data: result})
}

func (r *Server) closeDatapath(w rest.ResponseWriter, req *rest.Request) {
	dpid, err := openflow.ParseDatapathID(req.PathParam("dpid"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		w.WriteJson(Response{Status: StatusInvalidParameter, Message: err.Error()})
		return
	}
	logger.Infof("close request from %v: DPID=%v", req.RemoteAddr, dpid)

	var closeErr error
	if err := r.call(req.Context(), func() { closeErr = r.Controller.Close(dpid) }); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.WriteJson(Response{Status: StatusServiceUnavailable, Message: err.Error()})
		return
	}
	if closeErr != nil {
		if errors.Is(closeErr, unix.ESRCH) {
			w.WriteHeader(http.StatusNotFound)
			w.WriteJson(Response{Status: StatusNotFound, Message: "unknown datapath"})
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		w.WriteJson(Response{Status: StatusInternalServerError, Message: closeErr.Error()})
		return
	}

	w.WriteJson(Response{Status: StatusOkay})
}
