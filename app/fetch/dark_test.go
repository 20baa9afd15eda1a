package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestDarkClient(t *testing.T, retries int) *DarkClient {
	t.Helper()
	client, err := NewDarkClient("test-agent/1.0", retries, "127.0.0.1:19050")
	if err != nil {
		t.Fatalf("Failed to create dark client: %v", err)
	}
	return client
}

func TestIsOnionHost(t *testing.T) {
	cases := []struct {
		target string
		want   bool
	}{
		{"http://example3xyz.onion/page", true},
		{"http://EXAMPLE.ONION/", true},
		{"http://sub.example.onion:8080/page", true},
		{"https://example.com/page", false},
		{"https://onion.example.com/", false},
		{"not a url at all \x7f://", false},
	}

	for _, tc := range cases {
		if got := IsOnionHost(tc.target); got != tc.want {
			t.Errorf("IsOnionHost(%q) = %v, want %v", tc.target, got, tc.want)
		}
	}
}

func TestIsHTMLLike(t *testing.T) {
	cases := []struct {
		contentType string
		want        bool
	}{
		{"", true},
		{"text/html", true},
		{"text/html; charset=utf-8", true},
		{"application/xhtml+xml", true},
		{"application/json", false},
		{"text/plain", false},
		{"image/png", false},
	}

	for _, tc := range cases {
		if got := isHTMLLike(tc.contentType); got != tc.want {
			t.Errorf("isHTMLLike(%q) = %v, want %v", tc.contentType, got, tc.want)
		}
	}
}

func TestDarkClient_Fetch_DirectForClearHosts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><body>watched page</body></html>"))
	}))
	defer server.Close()

	// The SOCKS address points at nothing; a clear-web host must never
	// touch it.
	client := newTestDarkClient(t, 1)
	result, err := client.Fetch(context.Background(), server.URL, 5*time.Second, 10000)

	if err != nil {
		t.Fatalf("Expected direct fetch to succeed, got: %v", err)
	}
	if !strings.Contains(result.Markup, "watched page") {
		t.Errorf("Expected page markup, got: %q", result.Markup)
	}
	if result.BytesReceived == 0 {
		t.Error("Expected BytesReceived to be set")
	}
}

func TestDarkClient_Fetch_RejectsNonHTMLContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"not": "html"}`))
	}))
	defer server.Close()

	client := newTestDarkClient(t, 1)
	_, err := client.Fetch(context.Background(), server.URL, 5*time.Second, 10000)

	if err == nil {
		t.Fatal("Expected error for non-HTML content type")
	}
	if !strings.Contains(err.Error(), "unsupported content type") {
		t.Errorf("Expected content type error, got: %v", err)
	}
}

func TestDarkClient_Fetch_MissingContentTypeAccepted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Suppress automatic content type detection.
		w.Header()["Content-Type"] = nil
		w.Write([]byte("<html><body>untyped</body></html>"))
	}))
	defer server.Close()

	client := newTestDarkClient(t, 1)
	result, err := client.Fetch(context.Background(), server.URL, 5*time.Second, 10000)

	if err != nil {
		t.Fatalf("Expected missing content type to pass, got: %v", err)
	}
	if !strings.Contains(result.Markup, "untyped") {
		t.Errorf("Expected markup decoded, got: %q", result.Markup)
	}
}

func TestDecodeMarkup_DeclaredCharset(t *testing.T) {
	// "räksmörgås" in ISO-8859-1
	body := []byte{'r', 0xe4, 'k', 's', 'm', 0xf6, 'r', 'g', 0xe5, 's'}

	decoded := decodeMarkup(body, "text/html; charset=iso-8859-1")

	if decoded != "räksmörgås" {
		t.Errorf("Expected latin-1 decoding, got: %q", decoded)
	}
}

func TestDecodeMarkup_InvalidBytesFallBackLossy(t *testing.T) {
	body := []byte{'o', 'k', 0xff, 0xfe, 'o', 'k'}

	decoded := decodeMarkup(body, "text/html; charset=utf-8")

	if !strings.HasPrefix(decoded, "ok") || !strings.HasSuffix(decoded, "ok") {
		t.Errorf("Expected valid bytes preserved, got: %q", decoded)
	}
	if !strings.Contains(decoded, "�") {
		t.Errorf("Expected replacement character for invalid bytes, got: %q", decoded)
	}
}

func TestDecodeMarkup_UnknownCharsetFallsBack(t *testing.T) {
	decoded := decodeMarkup([]byte("plain ascii"), "text/html; charset=martian-5")

	if decoded != "plain ascii" {
		t.Errorf("Expected fallback decoding, got: %q", decoded)
	}
}
