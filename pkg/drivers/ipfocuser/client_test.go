package ipfocuser

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// closedAddr returns a local address nothing listens on.
func closedAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestClientGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/focuser":
			assert.True(t, r.Close, "keep-alive must be off")
			w.Write([]byte(`{"absolutePosition":1}`))
		case "/slow":
			time.Sleep(200 * time.Millisecond)
			w.Write([]byte(`{}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient()

	t.Run("OK", func(t *testing.T) {
		body, err := c.Get(context.Background(), srv.URL+"/focuser", time.Second)
		require.NoError(t, err)
		assert.Equal(t, `{"absolutePosition":1}`, string(body))
	})

	t.Run("Status code", func(t *testing.T) {
		_, err := c.Get(context.Background(), srv.URL+"/missing", time.Second)
		var te *TransportError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, TransportProtocol, te.Kind)
		assert.Equal(t, http.StatusNotFound, te.StatusCode)
	})

	t.Run("Timeout", func(t *testing.T) {
		_, err := c.Get(context.Background(), srv.URL+"/slow", 20*time.Millisecond)
		var te *TransportError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, TransportTimeout, te.Kind)
		assert.NotEmpty(t, te.Hint())
	})

	t.Run("Refused", func(t *testing.T) {
		_, err := c.Get(context.Background(), "http://"+closedAddr(t)+"/focuser", time.Second)
		var te *TransportError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, TransportRefused, te.Kind)
	})

	t.Run("Cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := c.Get(ctx, srv.URL+"/focuser", time.Second)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
