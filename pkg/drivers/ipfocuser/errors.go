package ipfocuser

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"syscall"

	"ipfocuser/pkg/indi"
)

var (
	ErrOutOfRange   = errors.New("target outside focuser range")
	ErrNotConnected = indi.ErrNotConnected
)

// TransportErrorKind is the category of a failed controller request.
type TransportErrorKind int

const (
	TransportOther TransportErrorKind = iota
	TransportTimeout
	TransportRefused
	TransportUnreachable
	TransportDNS
	TransportProtocol
)

func (k TransportErrorKind) String() string {
	switch k {
	case TransportTimeout:
		return "timeout"
	case TransportRefused:
		return "connection refused"
	case TransportUnreachable:
		return "unreachable"
	case TransportDNS:
		return "dns"
	case TransportProtocol:
		return "protocol"
	default:
		return "network"
	}
}

// TransportError is a failed GET to the controller.
type TransportError struct {
	Kind       TransportErrorKind
	URL        string
	StatusCode int // set for protocol errors
	Err        error
}

func (e *TransportError) Error() string {
	if e.Kind == TransportProtocol {
		return fmt.Sprintf("%s error: GET %s: unexpected status %d", e.Kind, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s error: GET %s: %v", e.Kind, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Hint returns a short troubleshooting advice for the error.
func (e *TransportError) Hint() string {
	switch e.Kind {
	case TransportTimeout:
		return "the controller did not answer in time, check that it is powered on"
	case TransportRefused:
		return "the controller refused the connection, check the port"
	case TransportUnreachable:
		return "the controller is not reachable, check the address and the network"
	case TransportDNS:
		return "the host name could not be resolved, use the IP address instead"
	case TransportProtocol:
		return "the controller answered with an error, check the firmware"
	default:
		return "check the network connection"
	}
}

func classifyError(rawURL string, err error) *TransportError {
	te := &TransportError{Kind: TransportOther, URL: rawURL, Err: err}

	if os.IsTimeout(err) {
		te.Kind = TransportTimeout
		return te
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		te.Kind = TransportDNS
		return te
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch {
		case errors.Is(opErr.Err, syscall.ECONNREFUSED):
			te.Kind = TransportRefused
		case errors.Is(opErr.Err, syscall.EHOSTUNREACH), errors.Is(opErr.Err, syscall.ENETUNREACH):
			te.Kind = TransportUnreachable
		}
		return te
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != err {
		inner := classifyError(rawURL, urlErr.Err)
		inner.Err = err
		return inner
	}

	return te
}

// ParseError is a controller reply that is not a valid status document.
// Offset is the byte offset in the body where decoding failed.
type ParseError struct {
	Offset int64
	Msg    string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid status at offset %d: %s", e.Offset, e.Msg)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
