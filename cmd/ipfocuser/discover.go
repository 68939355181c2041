package main

import (
	"fmt"
	"sort"
	"strings"

	"ipfocuser/pkg/discovery"

	log "github.com/sirupsen/logrus"
	cli "github.com/urfave/cli/v2"
)

func discover(c *cli.Context) error {
	scanner, err := discovery.NewScanner(c.String("pattern"), log.WithField("component", "mdns"))
	if err != nil {
		return err
	}
	scanner.Timeout = c.Duration("timeout")

	log.Infof("Browsing for %s services for %v", discovery.ServiceType, scanner.Timeout)
	controllers, err := scanner.Scan(c.Context)
	if err != nil {
		return err
	}

	if len(controllers) == 0 {
		fmt.Println("No focuser controllers found")
		return nil
	}

	for _, ctrl := range controllers {
		fmt.Printf("%s\t%s\t%s\n", ctrl.Instance, ctrl.Address(), formatMetadata(ctrl.Metadata))
	}
	return nil
}

func formatMetadata(meta map[string]string) string {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+meta[k])
	}
	return strings.Join(parts, " ")
}
