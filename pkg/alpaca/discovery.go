package alpaca

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const DiscoveryPort = 32227

// DiscoveryResponder responds to Alpaca discovery requests.
type DiscoveryResponder struct {
	addr           string
	alpacaResponse string
	logger         log.FieldLogger
}

// NewDiscoveryResponder creates a responder that announces the Alpaca API on
// port.
func NewDiscoveryResponder(addr string, port int, logger log.FieldLogger) *DiscoveryResponder {
	return &DiscoveryResponder{
		addr:           addr,
		alpacaResponse: fmt.Sprintf(`{"AlpacaPort": %d}`, port),
		logger:         logger,
	}
}

// Run listens on the discovery port until ctx is done.
func (d *DiscoveryResponder) Run(ctx context.Context) error {
	conn, err := net.ListenPacket("udp", net.JoinHostPort(d.addr, fmt.Sprint(DiscoveryPort)))
	if err != nil {
		return fmt.Errorf("cannot bind discovery socket: %v", err)
	}
	defer conn.Close()

	return d.Serve(ctx, conn)
}

// Serve answers discovery requests received on conn until ctx is done.
func (d *DiscoveryResponder) Serve(ctx context.Context, conn net.PacketConn) error {
	buf := make([]byte, 1024)

	d.logger.Debugf("Discovery responder started on %s", conn.LocalAddr())
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			// Set a read deadline to periodically check for context cancellation
			conn.SetReadDeadline(time.Now().Add(1 * time.Second))

			n, addr, err := conn.ReadFrom(buf)
			if err != nil {
				var netErr net.Error
				if errors.As(err, &netErr) && netErr.Timeout() {
					continue
				}
				if errors.Is(err, net.ErrClosed) {
					return nil
				}
				d.logger.Debugf("Error reading from socket: %v", err)
				continue
			}

			data := string(buf[:n])
			d.logger.Debugf("Received %s from %s", data, addr)

			if strings.Contains(data, "alpacadiscovery1") {
				if _, err := conn.WriteTo([]byte(d.alpacaResponse), addr); err != nil {
					d.logger.Errorf("Error writing to socket: %v", err)
				}
			}
		}
	}
}
