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
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/CPqD/nox13oflib/event"
	"github.com/CPqD/nox13oflib/openflow"

	"github.com/ant0ine/go-json-rest/rest"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

var (
	logger = logging.MustGetLogger("api")
)

const (
	// Component name of the event stream handlers.
	componentName = "API"
	// Upper bound of the wait for the loop to run a request.
	loopTimeout = 5 * time.Second
)

// Controller is the part of the controller the API uses. Apart from Submit,
// the methods are only called from functions passed to Submit.
type Controller interface {
	Submit(f func())
	Datapaths() []openflow.DatapathID
	RemoteAddr(dpid openflow.DatapathID) net.Addr
	Close(dpid openflow.DatapathID) error
	Bind(channel, component string, handler event.Handler) (event.HandlerID, error)
}

type Server struct {
	Port uint16
	TLS  struct {
		Cert string // Path for a TLS certification file.
		Key  string // Path for a TLS private key file.
	}
	Controller Controller

	stream *stream
}

// Install binds the event stream handlers. It must be called from the loop
// goroutine or before the loop runs, and before Serve.
func (r *Server) Install() error {
	if r.Controller == nil {
		return errors.New("nil controller")
	}
	r.stream = newStream()

	for _, channel := range []string{event.DatapathJoin, event.DatapathLeave} {
		if _, err := r.Controller.Bind(channel, componentName, r.stream.onEvent); err != nil {
			return err
		}
	}

	return nil
}

func (r *Server) handler() (http.Handler, error) {
	if r.stream == nil {
		return nil, errors.New("event stream is not installed")
	}

	api := rest.NewApi()
	// Middleware to set the CORS header.
	api.Use(rest.MiddlewareSimple(func(handler rest.HandlerFunc) rest.HandlerFunc {
		return func(writer rest.ResponseWriter, request *rest.Request) {
			writer.Header().Set("Access-Control-Allow-Origin", "*")
			handler(writer, request)
		}
	}))
	router, err := rest.MakeRouter(
		rest.Get("/api/v1/datapath", r.listDatapath),
		rest.Delete("/api/v1/datapath/:dpid", r.closeDatapath),
	)
	if err != nil {
		return nil, err
	}
	api.SetApp(router)

	mux := http.NewServeMux()
	// The websocket upgrade needs the raw response writer.
	mux.Handle("/api/v1/events", r.stream)
	mux.Handle("/", api.MakeHandler())

	return mux, nil
}

// Serve listens on all interfaces until ctx is done.
func (r *Server) Serve(ctx context.Context) error {
	h, err := r.handler()
	if err != nil {
		return err
	}

	s := &http.Server{
		Addr:    fmt.Sprintf(":%v", r.Port),
		Handler: h,
	}
	go func() {
		<-ctx.Done()
		r.stream.shutdown()
		s.Close()
	}()

	logger.Infof("serving the API on %v", s.Addr)
	if r.TLS.Cert != "" && r.TLS.Key != "" {
		err = s.ListenAndServeTLS(r.TLS.Cert, r.TLS.Key)
	} else {
		err = s.ListenAndServe()
	}
	if err == http.ErrServerClosed {
		return nil
	}

	return err
}

var errLoopTimeout = errors.New("controller is not responding")

// call runs f on the loop goroutine and waits until it finishes.
func (r *Server) call(ctx context.Context, f func()) error {
	ctx, cancel := context.WithTimeout(ctx, loopTimeout)
	defer cancel()

	done := make(chan struct{})
	r.Controller.Submit(func() {
		defer close(done)
		f()
	})

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errLoopTimeout
	}
}
