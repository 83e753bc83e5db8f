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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/CPqD/nox13oflib/api"
	"github.com/CPqD/nox13oflib/auth"
	"github.com/CPqD/nox13oflib/controller"
	"github.com/CPqD/nox13oflib/event"
	"github.com/CPqD/nox13oflib/log"
	"github.com/CPqD/nox13oflib/northbound"
	"github.com/CPqD/nox13oflib/northbound/app/l2switch"
	"github.com/CPqD/nox13oflib/transport"

	"github.com/fsnotify/fsnotify"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	programName     = "nox"
	programVersion  = "0.1.0"
	defaultLogLevel = logging.INFO
	// Runs after every application on the shutdown channel.
	shutdownHandlerOrder = 9999
	authLookupTimeout    = 5 * time.Second
)

var (
	logger            = logging.MustGetLogger("main")
	loggerLeveled     logging.LeveledBackend
	showVersion       = flag.Bool("version", false, "Show program version and exit")
	defaultConfigFile = flag.String("config", fmt.Sprintf("/usr/local/etc/%v.yaml", programName), "absolute path of the configuration file")
)

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Printf("Version: %v\n", programVersion)
		os.Exit(0)
	}

	initConfig()
	if err := initLog(getLogLevel(viper.GetString("default.log_level"))); err != nil {
		logger.Fatalf("failed to init log: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctrl := controller.New(controllerConfig())
	if err := initSwitchAuth(ctrl); err != nil {
		logger.Fatalf("failed to init switch authentication: %v", err)
	}
	manager, err := createAppManager(ctrl)
	if err != nil {
		logger.Fatalf("failed to create application manager: %v", err)
	}
	if err := initAPIServer(ctx, ctrl); err != nil {
		logger.Fatalf("failed to init the API server: %v", err)
	}
	// The loop stops once every handler has seen the shutdown event.
	if _, err := ctrl.Dispatcher().BindOrder(event.Shutdown, shutdownHandlerOrder, func(e *event.Event) event.Disposition {
		cancel()
		return event.Continue
	}); err != nil {
		logger.Fatalf("failed to bind the shutdown handler: %v", err)
	}
	initSignalHandler(ctrl, manager)

	if err := connect(ctx, ctrl); err != nil {
		logger.Fatalf("failed to connect: %v", err)
	}
	ctrl.Bootstrap()

	if err := ctrl.Run(ctx); err != nil && errors.Cause(err) != context.Canceled {
		logger.Fatalf("controller loop failed: %v", err)
	}
	logger.Info("terminated")
}

func initConfig() {
	viper.SetDefault("default.port", transport.DefaultPort)
	viper.SetDefault("default.log_level", "info")
	viper.SetDefault("default.syslog", true)
	viper.SetDefault("default.applications", "L2Switch")
	viper.SetDefault("handshake.passive_timeout", "5s")
	viper.SetDefault("handshake.active_timeout", "60s")
	viper.SetDefault("handshake.reliable_timeout", "4s")
	viper.SetDefault("reliable.max_backoff", "60s")
	viper.SetDefault("auth.mode", "none")
	viper.SetDefault("l2switch.cache_size", l2switch.DefaultConfig().CacheSize)
	viper.SetDefault("l2switch.max_broadcasts", l2switch.DefaultConfig().MaxBroadcasts)

	viper.SetConfigFile(*defaultConfigFile)
	// Read the config file.
	if err := viper.ReadInConfig(); err != nil {
		logger.Fatalf("failed to read the config file: %v", err)
	}
	// Watching and re-reading config file whenever it changes.
	viper.OnConfigChange(func(e fsnotify.Event) {
		// Ignore the WRITE operation to avoid reading empty config.
		if e.Op != fsnotify.Write {
			return
		}

		if loggerLeveled != nil {
			// Set log level for all modules
			loggerLeveled.SetLevel(getLogLevel(viper.GetString("default.log_level")), "")
		}
	})
	viper.WatchConfig()
	if err := validateConfig(); err != nil {
		logger.Fatalf("failed to validate the configuration: %v", err)
	}
}

func validateConfig() error {
	if port := viper.GetInt("default.port"); port < 0 || port > 0xFFFF {
		return errors.New("invalid default.port")
	}
	if len(viper.GetString("default.applications")) == 0 {
		return errors.New("invalid default.applications")
	}
	if viper.GetDuration("reliable.max_backoff") <= 0 {
		return errors.New("invalid reliable.max_backoff")
	}
	for _, v := range []string{"handshake.passive_timeout", "handshake.active_timeout", "handshake.reliable_timeout"} {
		if viper.GetDuration(v) <= 0 {
			return fmt.Errorf("invalid %v", v)
		}
	}
	if viper.GetDuration("default.echo_interval") < 0 {
		return errors.New("invalid default.echo_interval")
	}
	if viper.GetInt("l2switch.cache_size") <= 0 {
		return errors.New("invalid l2switch.cache_size")
	}
	switch viper.GetString("auth.mode") {
	case "none", "static", "mysql":
	default:
		return fmt.Errorf("invalid auth.mode: %v", viper.GetString("auth.mode"))
	}
	if viper.GetInt("rest.port") < 0 || viper.GetInt("rest.port") > 0xFFFF {
		return errors.New("invalid rest.port")
	}

	return nil
}

func controllerConfig() controller.Config {
	return controller.Config{
		PassiveTimeout:  viper.GetDuration("handshake.passive_timeout"),
		ActiveTimeout:   viper.GetDuration("handshake.active_timeout"),
		ReliableTimeout: viper.GetDuration("handshake.reliable_timeout"),
		MaxBackoff:      viper.GetDuration("reliable.max_backoff"),
		EchoInterval:    viper.GetDuration("default.echo_interval"),
		FilterChains:    viper.GetStringMapStringSlice("events"),
	}
}

func initSwitchAuth(ctrl *controller.Controller) error {
	var a controller.SwitchAuth

	switch viper.GetString("auth.mode") {
	case "none":
		return nil
	case "static":
		var err error
		var s *auth.Static
		if path := viper.GetString("auth.file"); len(path) > 0 {
			s, err = auth.LoadStatic(path)
		} else {
			s, err = auth.ParseStatic(viper.GetStringSlice("auth.dpids"))
		}
		if err != nil {
			return err
		}
		logger.Infof("%v switches are allowed to connect", s.Len())
		a = s
	case "mysql":
		db, err := auth.NewMySQL(auth.MySQLConfig{
			Addr:     viper.GetString("mysql.addr"),
			Username: viper.GetString("mysql.username"),
			Password: viper.GetString("mysql.password"),
			Name:     viper.GetString("mysql.name"),
		})
		if err != nil {
			return err
		}
		a = auth.NewLookup(db, authLookupTimeout)
	}

	return ctrl.RegisterSwitchAuth(a)
}

func initAPIServer(ctx context.Context, ctrl *controller.Controller) error {
	port := viper.GetInt("rest.port")
	if port == 0 {
		logger.Info("API server is disabled")
		return nil
	}

	srv := &api.Server{Port: uint16(port), Controller: ctrl}
	if viper.GetBool("rest.tls") {
		srv.TLS.Cert = viper.GetString("rest.cert_file")
		srv.TLS.Key = viper.GetString("rest.key_file")
	}
	if err := srv.Install(); err != nil {
		return err
	}
	go func() {
		if err := srv.Serve(ctx); err != nil {
			logger.Fatalf("failed to run the API server: %v", err)
		}
	}()

	return nil
}

func initSignalHandler(ctrl *controller.Controller, manager *northbound.Manager) {
	go func() {
		c := make(chan os.Signal, 5)
		signal.Notify(c, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

		shutdown := false
		for s := range c {
			switch s {
			case syscall.SIGTERM, syscall.SIGINT:
				if shutdown {
					logger.Warning("forced exit")
					os.Exit(1)
				}
				shutdown = true
				// Graceful shutdown
				logger.Warning("Shutting down...")
				ctrl.Submit(ctrl.Shutdown)
			case syscall.SIGHUP:
				ctrl.Submit(func() {
					fmt.Println("* Connected datapaths:")
					for _, v := range ctrl.Datapaths() {
						fmt.Printf("%v (%v)\n", v, ctrl.RemoteAddr(v))
					}
					fmt.Printf("\n* Enabled applications:\n")
					fmt.Println(manager.String())
				})
			}
		}
	}()
}

func initLog(level logging.Level) error {
	var backend logging.Backend
	if viper.GetBool("default.syslog") {
		var err error
		backend, err = log.NewSyslog(programName)
		if err != nil {
			return err
		}
	} else {
		backend = logging.NewLogBackend(os.Stderr, "", 0)
	}

	loggerLeveled = log.Leveled(backend, level)
	logging.SetBackend(loggerLeveled)

	return nil
}

func getLogLevel(level string) logging.Level {
	v, ok := log.ParseLevel(level, defaultLogLevel)
	if !ok {
		logger.Infof("invalid log level=%v, defaulting to %v..", level, defaultLogLevel)
	}

	return v
}

// connect listens on default.port, unless it is zero, and dials every switch
// in the connect list reliably.
func connect(ctx context.Context, ctrl *controller.Controller) error {
	if port := viper.GetInt("default.port"); port > 0 {
		f, err := transport.ParseFactory(fmt.Sprintf("ptcp:%v", port))
		if err != nil {
			return err
		}
		logger.Infof("listening on %v", f)
		ctrl.Connect(ctx, f, false)
	}

	for _, v := range viper.GetStringSlice("connect") {
		f, err := transport.ParseFactory(v)
		if err != nil {
			return errors.Wrapf(err, "parsing %v", v)
		}
		if f.Passive() {
			ctrl.Connect(ctx, f, false)
			continue
		}
		ctrl.Connect(ctx, f, true)
	}

	return nil
}

func createAppManager(ctrl *controller.Controller) (*northbound.Manager, error) {
	conf := northbound.Config{
		L2Switch: l2switch.Config{
			NoFlow:        viper.GetBool("l2switch.noflow"),
			CacheSize:     viper.GetInt("l2switch.cache_size"),
			MaxBroadcasts: uint(viper.GetInt("l2switch.max_broadcasts")),
		},
		AdminEmail: viper.GetString("default.admin_email"),
	}
	manager, err := northbound.NewManager(ctrl, conf)
	if err != nil {
		return nil, err
	}

	apps, err := parseApplications()
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse applications")
	}
	for _, v := range apps {
		if err := manager.Enable(v); err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("enabling %v", v))
		}
	}

	return manager, nil
}

func parseApplications() ([]string, error) {
	// Remove spaces, and then split it using comma
	tokens := strings.Split(strings.Replace(viper.GetString("default.applications"), " ", "", -1), ",")
	var result []string
	for _, v := range tokens {
		if len(v) > 0 {
			result = append(result, v)
		}
	}
	if len(result) == 0 {
		return nil, errors.New("empty application")
	}

	return result, nil
}
