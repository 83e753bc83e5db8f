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

package northbound

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/CPqD/nox13oflib/northbound/app"
	"github.com/CPqD/nox13oflib/northbound/app/hub"
	"github.com/CPqD/nox13oflib/northbound/app/l2switch"
	"github.com/CPqD/nox13oflib/northbound/app/monitor"

	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

var (
	logger = logging.MustGetLogger("northbound")
)

type Config struct {
	L2Switch   l2switch.Config
	AdminEmail string
}

type application struct {
	instance app.Application
	enabled  bool
}

// Manager installs the north-bound applications on the controller.
type Manager struct {
	mutex   sync.Mutex
	ctrl    app.Controller
	apps    map[string]*application // Registered applications
	enabled []app.Application       // In the order of installation
}

func NewManager(ctrl app.Controller, conf Config) (*Manager, error) {
	if ctrl == nil {
		panic("nil controller")
	}

	v := &Manager{
		ctrl: ctrl,
		apps: make(map[string]*application),
	}
	mon, err := monitor.New(conf.AdminEmail)
	if err != nil {
		return nil, err
	}
	// Registering north-bound applications
	v.register(hub.New())
	v.register(l2switch.New(conf.L2Switch))
	v.register(mon)

	return v, nil
}

func (r *Manager) register(app app.Application) {
	r.apps[strings.ToUpper(app.Name())] = &application{
		instance: app,
		enabled:  false,
	}
}

// XXX: Caller should lock the mutex before they call this function
func (r *Manager) checkDependencies(appNames []string) error {
	if len(appNames) == 0 {
		// No dependency
		return nil
	}

	for _, name := range appNames {
		app, ok := r.apps[strings.ToUpper(name)]
		if !ok || !app.enabled {
			return fmt.Errorf("%v application is not loaded", name)
		}
	}

	return nil
}

// Enable installs the application named appName. Names are case
// insensitive. It must be called from the loop goroutine or before the loop
// runs.
func (r *Manager) Enable(appName string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	logger.Debugf("enabling %v application..", appName)
	v, ok := r.apps[strings.ToUpper(appName)]
	if !ok {
		return fmt.Errorf("unknown application: %v", appName)
	}
	if v.enabled {
		return fmt.Errorf("%v application is already enabled", appName)
	}
	app := v.instance

	if err := r.checkDependencies(app.Dependencies()); err != nil {
		return errors.Wrap(err, "checking dependencies")
	}
	if err := app.Install(r.ctrl); err != nil {
		return errors.Wrapf(err, "installing %v application", app.Name())
	}
	v.enabled = true
	r.enabled = append(r.enabled, app)
	logger.Infof("enabled %v application", app.Name())

	return nil
}

// Enabled returns the names of the enabled applications in the order of
// installation.
func (r *Manager) Enabled() []string {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	names := make([]string, len(r.enabled))
	for i, v := range r.enabled {
		names[i] = v.Name()
	}

	return names
}

func (r *Manager) String() string {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var buf bytes.Buffer
	for _, v := range r.enabled {
		buf.WriteString(fmt.Sprintf("%v\n", v))
	}

	return buf.String()
}
