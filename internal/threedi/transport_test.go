package threedi

import (
	"errors"
	"net/http"
	"testing"
	"time"
)

// TestNewHTTPClient tests HTTP client creation.
func TestNewHTTPClient(t *testing.T) {
	t.Parallel()

	t.Run("without proxy uses the environment", func(t *testing.T) {
		t.Parallel()

		client, err := NewHTTPClient(30*time.Second, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if client.Timeout != 30*time.Second {
			t.Errorf("expected 30s timeout, got %v", client.Timeout)
		}
		transport, ok := client.Transport.(*http.Transport)
		if !ok {
			t.Fatalf("expected *http.Transport, got %T", client.Transport)
		}
		if transport.Proxy == nil {
			t.Error("expected environment proxy function")
		}
	})

	t.Run("with SOCKS5 proxy sets a dialer", func(t *testing.T) {
		t.Parallel()

		client, err := NewHTTPClient(time.Minute, "127.0.0.1:1080")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		transport, ok := client.Transport.(*http.Transport)
		if !ok {
			t.Fatalf("expected *http.Transport, got %T", client.Transport)
		}
		if transport.DialContext == nil {
			t.Error("expected DialContext to be set")
		}
		if transport.Proxy != nil {
			t.Error("expected HTTP proxy to be disabled")
		}
	})

	t.Run("invalid proxy address", func(t *testing.T) {
		t.Parallel()

		_, err := NewHTTPClient(time.Minute, "localhost")
		if !errors.Is(err, ErrInvalidProxyAddress) {
			t.Errorf("expected ErrInvalidProxyAddress, got %v", err)
		}
	})
}

// TestIsValidProxyAddress tests proxy address validation.
func TestIsValidProxyAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		address string
		want    bool
	}{
		{"127.0.0.1:1080", true},
		{"proxy.example.com:9050", true},
		{"[::1]:1080", true},
		{"", false},
		{"127.0.0.1", false},
		{":1080", false},
		{"127.0.0.1:", false},
		{"127.0.0.1:0", false},
		{"127.0.0.1:65536", false},
		{"127.0.0.1:abc", false},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			t.Parallel()
			if got := isValidProxyAddress(tt.address); got != tt.want {
				t.Errorf("isValidProxyAddress(%q) = %v, want %v", tt.address, got, tt.want)
			}
		})
	}
}
