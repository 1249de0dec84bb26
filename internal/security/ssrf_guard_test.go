package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewSafeClientTimeout(t *testing.T) {
	guard := NewOutboundGuard()
	timeout := 5 * time.Second
	client := guard.NewSafeClient(timeout)
	if client == nil {
		t.Fatal("NewSafeClient() returned nil")
	}
	if client.Timeout != timeout {
		t.Errorf("expected timeout %v, got %v", timeout, client.Timeout)
	}
}

// TestNewSafeClientHasTransport はsafeurlのTransportが設定されていることをテストする。
func TestNewSafeClientHasTransport(t *testing.T) {
	client := NewOutboundGuard().NewSafeClient(5 * time.Second)

	if client.Transport == nil {
		t.Fatal("expected custom Transport to be set, got nil")
	}
	if client.Transport == http.DefaultTransport {
		t.Fatal("expected custom Transport, got http.DefaultTransport")
	}
}

// httptestサーバーは127.0.0.1で起動されるため、safeurlがブロックする。
func TestNewSafeClientBlocksLoopback(t *testing.T) {
	ts := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewOutboundGuard().NewSafeClient(5 * time.Second)

	_, err := client.Get(ts.URL)
	if err == nil {
		t.Fatal("expected error for loopback address request, got nil")
	}
}

func TestValidateURL_PublicHTTPS(t *testing.T) {
	guard := NewOutboundGuard()

	publicURLs := []string{
		"https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com",
		"https://keys.example.com/jwks.json",
		"https://8.8.8.8/jwks",
	}

	for _, u := range publicURLs {
		t.Run(u, func(t *testing.T) {
			if err := guard.ValidateURL(u); err != nil {
				t.Errorf("ValidateURL(%q) returned error: %v", u, err)
			}
		})
	}
}

func TestValidateURL_Rejected(t *testing.T) {
	guard := NewOutboundGuard()

	tests := []struct {
		name string
		url  string
	}{
		{"empty", ""},
		{"no scheme", "not-a-url"},
		{"plain http", "http://keys.example.com/jwks"},
		{"ftp", "ftp://example.com/jwks"},
		{"file", "file:///etc/passwd"},
		{"private 10/8", "https://10.0.0.1/jwks"},
		{"private 172.16/12", "https://172.31.255.255/jwks"},
		{"private 192.168/16", "https://192.168.1.100/jwks"},
		{"loopback", "https://127.0.0.1/jwks"},
		{"localhost", "https://LOCALHOST/jwks"},
		{"metadata", "https://169.254.169.254/computeMetadata/v1/"},
		{"zero", "https://0.0.0.0/jwks"},
		{"ipv6 loopback", "https://[::1]/jwks"},
		{"ipv6 unique local", "https://[fd00::1]/jwks"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := guard.ValidateURL(tt.url); err == nil {
				t.Errorf("ValidateURL(%q) should have returned error", tt.url)
			}
		})
	}
}
