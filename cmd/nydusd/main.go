/*
 * Copyright (c) Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/containerd/log"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/dragonflyoss/image-service/internal/api"
	"github.com/dragonflyoss/image-service/internal/config"
	"github.com/dragonflyoss/image-service/internal/logging"
	"github.com/dragonflyoss/image-service/internal/version"
	"github.com/dragonflyoss/image-service/pkg/daemon"
	"github.com/dragonflyoss/image-service/pkg/lifecycle"
	"github.com/dragonflyoss/image-service/pkg/notify"
	"github.com/dragonflyoss/image-service/pkg/supervisor"
)

func buildFlags(args *cliArgs) []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:        "version",
			Value:       false,
			Usage:       "print version and build information",
			Destination: &args.printVersion,
		},
		&cli.StringFlag{
			Name:        "config",
			Usage:       "load daemon configuration from `PATH`",
			Destination: &args.configPath,
		},
		&cli.StringFlag{
			Name:        "id",
			Usage:       "daemon instance `ID`, overrides the config file",
			Destination: &args.id,
		},
		&cli.StringFlag{
			Name:        "apisock",
			Usage:       "bind the management API to `PATH`, overrides the config file",
			Destination: &args.apiSock,
		},
		&cli.StringFlag{
			Name:        "supervisor",
			Usage:       "upgrade manager supervisor socket `PATH`",
			Destination: &args.supervisorPath,
		},
		&cli.StringFlag{
			Name:        "upgrade-state",
			Usage:       "path to the persisted mount-opaque state `FILE`",
			Destination: &args.statePath,
		},
		&cli.BoolFlag{
			Name:        "upgrade",
			Usage:       "start in takeover mode, restoring state from a predecessor",
			Destination: &args.upgrade,
		},
	}
}

type cliArgs struct {
	printVersion   bool
	configPath     string
	id             string
	apiSock        string
	supervisorPath string
	statePath      string
	upgrade        bool
}

func main() {
	args := &cliArgs{}
	app := &cli.App{
		Name:        "nydusd",
		Usage:       "Nydus image service daemon",
		Version:     version.String(),
		Flags:       buildFlags(args),
		HideVersion: true,
		Action: func(c *cli.Context) error {
			if args.printVersion {
				fmt.Println("Version:     ", version.Version)
				fmt.Println("Revision:    ", version.Revision)
				fmt.Println("Go version:  ", version.GoVersion)
				fmt.Println("Build time:  ", version.BuildTimestamp)
				return nil
			}
			return run(args)
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.L.WithError(err).Fatal("nydusd exited with error")
	}
}

func run(args *cliArgs) error {
	cfg := config.Default()
	if args.configPath != "" {
		loaded, err := config.LoadFile(args.configPath)
		if err != nil {
			return errors.Wrap(err, "load config")
		}
		cfg = loaded
	}
	if args.id != "" {
		cfg.ID = args.id
	}
	if args.apiSock != "" {
		cfg.API.SocketPath = args.apiSock
	}
	if args.supervisorPath != "" {
		cfg.Upgrade.SupervisorPath = args.supervisorPath
	}
	if args.statePath != "" {
		cfg.Upgrade.StatePath = args.statePath
	}

	if err := logging.SetUp(cfg.Log.Level, cfg.Log.Stdout, cfg.Log.Dir); err != nil {
		return errors.Wrap(err, "configure logging")
	}

	log.L.Infof("starting nydusd. PID %d Version %s", os.Getpid(), version.String())

	var upgrade *supervisor.Manager
	if cfg.Upgrade.SupervisorPath != "" {
		if cfg.Upgrade.StatePath != "" {
			if restored, err := supervisor.Restore(cfg.Upgrade.StatePath); err == nil {
				upgrade = restored
			} else {
				log.L.WithError(err).Warn("no prior upgrade state to restore, starting fresh")
				upgrade = supervisor.NewManager()
			}
		} else {
			upgrade = supervisor.NewManager()
		}
	}

	sub, err := notify.New()
	if err != nil {
		return errors.Wrap(err, "create notification subscriber")
	}
	defer sub.Close()
	if err := sub.Register(); err != nil {
		return errors.Wrap(err, "register notification subscriber")
	}
	sub.Run()

	d := daemon.New(version.String(), cfg.ID, cfg.Upgrade.SupervisorPath, daemon.NewFactory(), upgrade, daemon.Hooks{})
	go d.Pump().Run()
	defer d.Pump().Close()

	event := lifecycle.EventMount
	if args.upgrade {
		event = lifecycle.EventTakeover
	}
	if err := d.Pump().Submit(event); err != nil {
		return errors.Wrap(err, "bring daemon to running state")
	}
	if args.upgrade {
		if err := d.Pump().Submit(lifecycle.EventSuccessful); err != nil {
			return errors.Wrap(err, "complete takeover")
		}
	}

	srv, err := api.New(d, cfg.API.SocketPath)
	if err != nil {
		return errors.Wrap(err, "build management API server")
	}
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Run() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.L.Info("received shutdown signal")
	case <-sub.ShutdownRequested():
		log.L.Info("received shutdown notification")
	case err := <-serveErr:
		if err != nil {
			log.L.WithError(err).Error("management API server stopped")
		}
	}

	if cfg.Upgrade.StatePath != "" && upgrade != nil {
		if err := upgrade.Persist(cfg.Upgrade.StatePath); err != nil {
			log.L.WithError(err).Error("failed to persist upgrade state")
		}
	}

	if err := d.TriggerExit(); err != nil {
		return errors.Wrap(err, "trigger daemon exit")
	}
	return nil
}

