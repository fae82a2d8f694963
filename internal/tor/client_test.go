package tor

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"
)

func TestNewClient(t *testing.T) {
	t.Parallel()

	t.Run("valid proxy address creates client", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient("127.0.0.1:9050", 30*time.Second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if client.ProxyAddress() != "127.0.0.1:9050" {
			t.Errorf("ProxyAddress() = %q", client.ProxyAddress())
		}
	})

	t.Run("invalid addresses return ErrInvalidProxyAddress", func(t *testing.T) {
		t.Parallel()

		for _, addr := range []string{"", "127.0.0.1", ":9050", "127.0.0.1:0", "127.0.0.1:65536", "127.0.0.1:abc"} {
			_, err := NewClient(addr, time.Second)
			if !errors.Is(err, ErrInvalidProxyAddress) {
				t.Errorf("NewClient(%q) error = %v, expected ErrInvalidProxyAddress", addr, err)
			}
		}
	})
}

func TestNewHTTPClient(t *testing.T) {
	t.Parallel()

	client, err := NewClient("127.0.0.1:9050", 45*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	httpClient := client.NewHTTPClient()
	if httpClient.Timeout != 45*time.Second {
		t.Errorf("Timeout = %v, expected 45s", httpClient.Timeout)
	}
	if httpClient.Jar == nil {
		t.Error("expected a cookie jar")
	}
	transport, ok := httpClient.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("unexpected transport type %T", httpClient.Transport)
	}
	if !transport.DisableCompression {
		t.Error("expected compression to be disabled")
	}

	via := make([]*http.Request, maxRedirects)
	if err := httpClient.CheckRedirect(nil, via); !errors.Is(err, http.ErrUseLastResponse) {
		t.Errorf("expected redirect cap, got %v", err)
	}
	if err := httpClient.CheckRedirect(nil, via[:1]); err != nil {
		t.Errorf("unexpected redirect error: %v", err)
	}
}

// serveOnce accepts one connection, reads the greeting and writes reply.
func serveOnce(t *testing.T, reply []byte) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
	if err != nil {
		t.Fatalf("failed to start mock server: %v", err)
	}
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 3)
		_, _ = conn.Read(buf)
		_, _ = conn.Write(reply)
	}()

	return listener.Addr().String()
}

func TestCheckConnection(t *testing.T) {
	t.Parallel()

	t.Run("returns CannotConnect for closed port", func(t *testing.T) {
		t.Parallel()

		listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
		if err != nil {
			t.Fatalf("listen: %v", err)
		}
		addr := listener.Addr().String()
		_ = listener.Close()

		client, err := NewClient(addr, time.Second)
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}
		if status := client.CheckConnection(context.Background()); status != ProxyStatusCannotConnect {
			t.Errorf("expected ProxyStatusCannotConnect, got %v", status)
		}
	})

	t.Run("returns WrongType for HTTP server", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient(serveOnce(t, []byte("HTTP/1.1 200 OK\r\n\r\n")), time.Second)
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}
		if status := client.CheckConnection(context.Background()); status != ProxyStatusWrongType {
			t.Errorf("expected ProxyStatusWrongType, got %v", status)
		}
	})

	t.Run("returns WrongType when auth is required", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient(serveOnce(t, []byte{0x05, 0xFF}), time.Second)
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}
		if status := client.CheckConnection(context.Background()); status != ProxyStatusWrongType {
			t.Errorf("expected ProxyStatusWrongType, got %v", status)
		}
	})

	t.Run("returns OK for SOCKS5 without auth", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient(serveOnce(t, []byte{0x05, 0x00}), time.Second)
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}
		if status := client.CheckConnection(context.Background()); status != ProxyStatusOK {
			t.Errorf("expected ProxyStatusOK, got %v", status)
		}
	})
}
