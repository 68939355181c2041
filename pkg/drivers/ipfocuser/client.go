package ipfocuser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	HandshakeTimeout = 10 * time.Second
	MoveTimeout      = 45 * time.Second

	// Replies are small status documents.
	maxBodySize = 64 << 10
)

// Client performs one-shot GET requests against the controller. Every
// request uses a fresh connection.
type Client struct {
	HTTPClient *http.Client
}

func NewClient() *Client {
	return &Client{
		HTTPClient: &http.Client{
			Transport: &http.Transport{
				Proxy:             http.ProxyFromEnvironment,
				DisableKeepAlives: true,
			},
		},
	}
}

// Get requests rawURL and returns the complete body. The call fails with a
// *TransportError when the controller cannot be reached within timeout or
// does not answer 200 OK.
func (c *Client) Get(ctx context.Context, rawURL string, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &TransportError{Kind: TransportOther, URL: rawURL, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, classifyError(rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{Kind: TransportProtocol, URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, classifyError(rawURL, err)
	}
	return body, nil
}
