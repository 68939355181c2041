package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"ipfocuser/pkg/discovery"
	"ipfocuser/pkg/drivers/focuser_simulator"

	"github.com/grandcat/zeroconf"
	log "github.com/sirupsen/logrus"
	cli "github.com/urfave/cli/v2"
	bolt "go.etcd.io/bbolt"
	"golang.org/x/sync/errgroup"
)

const simulatorInstance = "IP Focuser Simulator"

func simulate(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	logger := log.WithField("device", "simulator")

	db, err := bolt.Open(cfg.Database, 0600, nil)
	if err != nil {
		return fmt.Errorf("failed to open database: %v", err)
	}
	defer db.Close()

	store, err := focuser_simulator.NewStore(db, cfg.Simulator.Device())
	if err != nil {
		return fmt.Errorf("failed to create simulator store: %v", err)
	}

	sim, err := focuser_simulator.NewSimulator(cfg.Simulator.Device(), store, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Simulator.Port),
		Handler: sim.RegisterRoutes(),
	}

	if c.Bool("advertise") {
		mdns, err := zeroconf.Register(simulatorInstance, discovery.ServiceType, discovery.ServiceDomain,
			cfg.Simulator.Port, []string{"path=/focuser"}, nil)
		if err != nil {
			return fmt.Errorf("failed to advertise simulator: %v", err)
		}
		defer mdns.Shutdown()
		logger.Infof("Advertising %q over mDNS", simulatorInstance)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Infof("Simulator listening on %s, position %d", srv.Addr, sim.Position())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("could not listen on %s: %v", srv.Addr, err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
