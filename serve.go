package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hanwen/go-mtpd/config"
	"github.com/hanwen/go-mtpd/database"
	"github.com/hanwen/go-mtpd/log"
	"github.com/hanwen/go-mtpd/monitor"
	"github.com/hanwen/go-mtpd/mtp"
	"github.com/hanwen/go-mtpd/server"
	"github.com/hanwen/go-mtpd/transport"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the configured storages on the gadget device",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to mtpd.yaml",
				EnvVars: []string{"MTPD_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "device",
				Usage: "Bulk endpoint device, overrides transport.device",
			},
			&cli.StringFlag{
				Name:  "events",
				Usage: "Interrupt endpoint device, overrides transport.events",
			},
			&cli.StringFlag{
				Name:  "db",
				Usage: "Object database file, overrides database.path",
			},
			&cli.StringFlag{
				Name:  "monitor",
				Usage: "Listen address of the status server, overrides monitor.listen",
			},
			&cli.StringSliceFlag{
				Name:  "debug",
				Usage: "Debug output for a subsystem (mtp, data, transport, db, monitor, all)",
			},
		},
		Action: serveAction,
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	if c.IsSet("device") {
		cfg.Transport.Device = c.String("device")
	}
	if c.IsSet("events") {
		cfg.Transport.Events = c.String("events")
	}
	if c.IsSet("db") {
		cfg.Database.Path = c.String("db")
	}
	if c.IsSet("monitor") {
		cfg.Monitor.Listen = c.String("monitor")
	}
	if c.IsSet("debug") {
		cfg.Log.Debug = append(cfg.Log.Debug, c.StringSlice("debug")...)
	}
	return cfg, cfg.Validate()
}

func serveAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("config: %v", err), 2)
	}
	flags, err := cfg.DebugFlags()
	if err != nil {
		return cli.Exit(fmt.Sprintf("config: %v", err), 2)
	}
	logFile, err := log.Setup(cfg.Log.Level, cfg.LogFile())
	if err != nil {
		return cli.Exit(fmt.Sprintf("log: %v", err), 2)
	}
	defer logFile.Close()

	children := log.PrepareChildren(log.Root, flags)
	mtp.SetLoggers(children)

	for _, st := range cfg.Storages {
		if err := os.MkdirAll(st.Path, os.FileMode(cfg.Permissions.Dir)); err != nil {
			return fmt.Errorf("storage 0x%08x: %w", st.ID, err)
		}
	}

	db, err := database.Open(database.Options{
		Path:                cfg.Database.Path,
		FriendlyName:        cfg.Device.FriendlyName,
		SyncPartner:         cfg.Device.SyncPartner,
		PerceivedDeviceType: cfg.Device.PerceivedDeviceType,
		BatteryPath:         cfg.Device.BatteryPath,
		Log:                 children.DB,
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	t, err := transport.OpenFile(cfg.Transport.Device, cfg.Transport.Events, cfg.Transport.PacketSize, children.Transport)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	mon := monitor.New(ctx, monitor.Options{
		StatsInterval: cfg.Monitor.StatsInterval.Duration,
		Rescan: func() error {
			for _, st := range cfg.Storages {
				if err := db.Rescan(st.ID); err != nil {
					return err
				}
			}
			return nil
		},
		Log: children.Monitor,
	})

	srv := server.New(t, db, server.Options{
		PTP:           cfg.Device.PTP,
		Manufacturer:  cfg.Device.Manufacturer,
		Model:         cfg.Device.Model,
		DeviceVersion: cfg.Device.Version,
		SerialNumber:  cfg.Device.Serial,
		FilePerm:      os.FileMode(cfg.Permissions.File),
		DirPerm:       os.FileMode(cfg.Permissions.Dir),
		Observer:      mon,
		Log:           children,
	})
	for _, st := range cfg.Storages {
		if err := db.AddStorage(st.ID, st.Path); err != nil {
			return fmt.Errorf("scan storage 0x%08x: %w", st.ID, err)
		}
		srv.AddStorage(server.NewStorage(st.ID, st.Path, st.Description, st.Reserve, st.Removable, st.MaxFileSize))
		children.MTP.Infof("storage 0x%08x: %s", st.ID, st.Path)
	}
	db.SetNotifier(srv)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		err := srv.Run(egCtx)
		if egCtx.Err() != nil {
			// Closing the transport is how the loop is stopped.
			return nil
		}
		stop()
		return err
	})
	eg.Go(func() error {
		return mon.Run(cfg.Monitor.Listen)
	})
	eg.Go(func() error {
		<-egCtx.Done()
		return t.Close()
	})

	children.MTP.Infof("serving on %s", cfg.Transport.Device)
	if err := eg.Wait(); err != nil {
		return err
	}
	children.MTP.Info("stopped")
	return nil
}
