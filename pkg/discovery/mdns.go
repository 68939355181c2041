package discovery

import (
	"context"
	"fmt"
	"net"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	log "github.com/sirupsen/logrus"
)

const (
	// ServiceType is the service the focuser controllers advertise.
	ServiceType   = "_http._tcp"
	ServiceDomain = "local."

	DefaultScanTimeout = 5 * time.Second
	DefaultPattern     = `(?i)focuser`
	DefaultPort        = 80
)

// Controller is a focuser controller found on the network.
type Controller struct {
	Instance string
	Hostname string
	IP       string
	Port     int
	Metadata map[string]string
}

// Address returns the host:port the driver should be pointed at.
func (c *Controller) Address() string {
	return net.JoinHostPort(c.IP, strconv.Itoa(c.Port))
}

// Scanner browses mDNS for HTTP services whose instance or host name matches
// Pattern.
type Scanner struct {
	Timeout time.Duration
	Pattern *regexp.Regexp
	logger  log.FieldLogger
}

func NewScanner(pattern string, logger log.FieldLogger) (*Scanner, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid name pattern %q: %v", pattern, err)
	}

	return &Scanner{
		Timeout: DefaultScanTimeout,
		Pattern: re,
		logger:  logger,
	}, nil
}

// Scan browses until the timeout expires or ctx is done and returns the
// controllers found, sorted by instance name.
func (s *Scanner) Scan(ctx context.Context) ([]*Controller, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	var (
		mu    sync.Mutex
		found = make(map[string]*Controller)
	)

	entries := make(chan *zeroconf.ServiceEntry)
	go func() {
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				c := s.parseServiceEntry(entry)
				if c == nil {
					continue
				}
				s.logger.Debugf("Found %s at %s", c.Instance, c.Address())
				mu.Lock()
				found[c.Instance] = c
				mu.Unlock()
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()

	mu.Lock()
	defer mu.Unlock()

	controllers := make([]*Controller, 0, len(found))
	for _, c := range found {
		controllers = append(controllers, c)
	}
	sort.Slice(controllers, func(i, j int) bool {
		return controllers[i].Instance < controllers[j].Instance
	})
	return controllers, nil
}

// parseServiceEntry returns nil for services that are not focuser
// controllers or have no address.
func (s *Scanner) parseServiceEntry(entry *zeroconf.ServiceEntry) *Controller {
	if !s.Pattern.MatchString(entry.Instance) && !s.Pattern.MatchString(entry.HostName) {
		return nil
	}

	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		key, value, _ := strings.Cut(txt, "=")
		metadata[key] = value
	}

	return &Controller{
		Instance: entry.Instance,
		Hostname: entry.HostName,
		IP:       ip,
		Port:     port,
		Metadata: metadata,
	}
}
