package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"ipfocuser/pkg/alpaca"
	"ipfocuser/pkg/broadcast"
	"ipfocuser/pkg/drivers/ipfocuser"
	"ipfocuser/pkg/indi"
	"ipfocuser/templates"

	log "github.com/sirupsen/logrus"
	cli "github.com/urfave/cli/v2"
	bolt "go.etcd.io/bbolt"
	"golang.org/x/sync/errgroup"
)

func serve(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	log.Info("IP Focuser Server")

	tmpl, err := templates.LoadTemplates()
	if err != nil {
		return fmt.Errorf("failed to load templates: %v", err)
	}

	db, err := bolt.Open(cfg.Database, 0600, nil)
	if err != nil {
		return fmt.Errorf("failed to open database: %v", err)
	}
	defer db.Close()

	store, err := alpaca.NewStore(db)
	if err != nil {
		return fmt.Errorf("failed to create store: %v", err)
	}
	if cfg.Location != "" {
		if err := store.SetConfig(alpaca.Config{Location: cfg.Location}); err != nil {
			return fmt.Errorf("failed to set location: %v", err)
		}
	}

	indiStore, err := indi.NewStore(db)
	if err != nil {
		return fmt.Errorf("failed to create config store: %v", err)
	}

	drv := ipfocuser.NewDriver(ipfocuser.Options{
		Name:          cfg.Focuser.Name,
		Host:          cfg.Focuser.Host,
		Port:          cfg.Focuser.Port,
		BacklashSteps: cfg.Focuser.BacklashSteps,
		Approach:      cfg.Focuser.Approach,
	}, log.StandardLogger())
	defer drv.Close()

	hub := broadcast.NewHub(drv.Props(), log.WithField("component", "events"))
	defer hub.Close()
	drv.Props().AddPublisher(hub)

	if cfg.MQTT.Broker != "" {
		client, err := broadcast.ConnectMQTT(cfg.MQTT)
		if err != nil {
			return err
		}
		defer client.Disconnect(250)
		log.Infof("Publishing properties to %s", cfg.MQTT.Broker)
		drv.Props().AddPublisher(broadcast.NewMQTTPublisher(client, cfg.MQTT.TopicRoot, log.WithField("component", "mqtt")))
	}

	host := indi.NewHost(drv, indiStore, log.WithField("device", drv.DeviceName()))
	if err := host.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %v", drv.DeviceName(), err)
	}
	defer host.Close()

	uniqueID, err := store.UniqueID(drv.DeviceName())
	if err != nil {
		return fmt.Errorf("failed to get unique ID: %v", err)
	}
	focuser := ipfocuser.NewAlpacaFocuser(0, uniqueID, host, drv, tmpl, log.WithField("device", drv.DeviceName()))
	defer focuser.Wait()

	serverDesc := alpaca.ServerDescription{
		Name:                "IP Focuser Server",
		Manufacturer:        "ipfocuser",
		ManufacturerVersion: "1.0",
	}
	server := alpaca.NewServer(serverDesc, []alpaca.Device{focuser}, store, tmpl)

	mux := server.AddRoutes()
	mux.Handle("/indi/", http.StripPrefix("/indi", indi.NewHandler(host).RegisterRoutes()))
	mux.Handle(broadcast.EventsPath, hub)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Infof("Server started on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("could not listen on %s: %v", srv.Addr, err)
		}
		return nil
	})

	if cfg.Discovery {
		dr := alpaca.NewDiscoveryResponder("0.0.0.0", cfg.Port, log.WithField("component", "discovery"))
		g.Go(func() error {
			defer log.Debug("Discovery responder stopped")
			return dr.Run(ctx)
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		log.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %v", err)
		}
		return nil
	})

	err = g.Wait()

	// Abort a move still waiting on the controller.
	drv.Close()
	log.Info("Server stopped")
	return err
}
