package main

import (
	"fmt"
	"os"
	"time"

	"ipfocuser/pkg/config"
	"ipfocuser/pkg/discovery"

	log "github.com/sirupsen/logrus"
	cli "github.com/urfave/cli/v2"
)

const shutdownTimeout = 5 * time.Second

// loadConfig reads the config file and applies the flags the user set.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cfg, err
	}

	if c.IsSet("port") {
		cfg.Port = c.Int("port")
	}
	if c.IsSet("db") {
		cfg.Database = c.String("db")
	}
	if c.IsSet("focuser-host") {
		cfg.Focuser.Host = c.String("focuser-host")
	}
	if c.IsSet("focuser-port") {
		cfg.Focuser.Port = c.Int("focuser-port")
	}
	if c.IsSet("mqtt-broker") {
		cfg.MQTT.Broker = c.String("mqtt-broker")
	}
	if c.IsSet("no-discovery") {
		cfg.Discovery = !c.Bool("no-discovery")
	}
	if c.IsSet("sim-port") {
		cfg.Simulator.Port = c.Int("sim-port")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %v", err)
	}
	return cfg, nil
}

func main() {
	app := cli.App{
		Name:  "ipfocuser",
		Usage: "Alpaca and INDI style server for HTTP focuser controllers",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "Enable debug logging",
				Value:   false,
				EnvVars: []string{"DEBUG"},
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration file",
				EnvVars: []string{"IPFOCUSER_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "db",
				Usage:   "Database file",
				Value:   "ipfocuser.db",
				EnvVars: []string{"IPFOCUSER_DB"},
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("debug") {
				log.SetLevel(log.DebugLevel)
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Serve the focuser over Alpaca and the property API",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "port",
						Aliases: []string{"p"},
						Usage:   "Port to listen on",
						Value:   8090,
						EnvVars: []string{"ALPACA_PORT"},
					},
					&cli.StringFlag{
						Name:    "focuser-host",
						Usage:   "Focuser controller address",
						EnvVars: []string{"FOCUSER_HOST"},
					},
					&cli.IntFlag{
						Name:    "focuser-port",
						Usage:   "Focuser controller port",
						EnvVars: []string{"FOCUSER_PORT"},
					},
					&cli.StringFlag{
						Name:    "mqtt-broker",
						Usage:   "MQTT broker to publish properties to, e.g. tcp://localhost:1883",
						EnvVars: []string{"MQTT_BROKER"},
					},
					&cli.BoolFlag{
						Name:  "no-discovery",
						Usage: "Do not answer Alpaca discovery requests",
					},
				},
				Action: serve,
			},
			{
				Name:  "simulate",
				Usage: "Run a simulated focuser controller",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "sim-port",
						Usage:   "Port to listen on",
						Value:   8081,
						EnvVars: []string{"SIMULATOR_PORT"},
					},
					&cli.BoolFlag{
						Name:  "advertise",
						Usage: "Advertise the simulator over mDNS",
						Value: true,
					},
				},
				Action: simulate,
			},
			{
				Name:  "discover",
				Usage: "Find focuser controllers on the local network",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to browse",
						Value: discovery.DefaultScanTimeout,
					},
					&cli.StringFlag{
						Name:  "pattern",
						Usage: "Regular expression the service or host name must match",
						Value: discovery.DefaultPattern,
					},
				},
				Action: discover,
			},
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Error: %v", err)
	}
}
