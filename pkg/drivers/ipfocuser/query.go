package ipfocuser

import (
	"net"
	"net/url"
	"strconv"
	"strings"
)

const apiPath = "/focuser"

func endpointURL(host string, port int) string {
	u := url.URL{
		Scheme: "http",
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
		Path:   apiPath,
	}
	return u.String()
}

type queryParam struct {
	key, value string
}

// moveURL builds the move request. The controller expects the parameters in
// this order, so url.Values (which sorts keys) is not used.
func moveURL(endpoint string, target uint32, backlash int, approach string) string {
	params := []queryParam{
		{"absolutePosition", strconv.FormatUint(uint64(target), 10)},
		{"backlashSteps", strconv.Itoa(backlash)},
		{"alwaysApproach", approach},
	}

	pairs := make([]string, 0, len(params))
	for _, p := range params {
		pairs = append(pairs, url.QueryEscape(p.key)+"="+url.QueryEscape(p.value))
	}
	return endpoint + "?" + strings.Join(pairs, "&")
}
