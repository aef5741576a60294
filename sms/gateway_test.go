package sms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTTPGatewaySend(t *testing.T) {
	var got httpGatewayRequest
	var apiKey, contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		apiKey = r.Header.Get("X-Api-Key")
		contentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	g, err := NewHTTPGateway(srv.URL, "key-123", srv.Client())
	if err != nil {
		t.Fatalf("NewHTTPGateway error: %v", err)
	}
	if err := g.Send(context.Background(), "+41791234567", "Your sms token is: 123456."); err != nil {
		t.Fatalf("Send error: %v", err)
	}

	if apiKey != "key-123" {
		t.Fatalf("expected api key header, got %q", apiKey)
	}
	if contentType != "application/json" {
		t.Fatalf("expected json content type, got %q", contentType)
	}
	if got.MobileNumber != "41791234567" {
		t.Fatalf("expected leading + stripped, got %q", got.MobileNumber)
	}
	if got.Message != "Your sms token is: 123456." {
		t.Fatalf("unexpected message %q", got.Message)
	}
}

func TestHTTPGatewayNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	g, err := NewHTTPGateway(srv.URL, "key", srv.Client())
	if err != nil {
		t.Fatalf("NewHTTPGateway error: %v", err)
	}
	err = g.Send(context.Background(), "+41791234567", "hi")
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestNewHTTPGatewayRequiresSettings(t *testing.T) {
	if _, err := NewHTTPGateway("", "key", nil); err == nil {
		t.Fatal("expected empty endpoint to be rejected")
	}
	if _, err := NewHTTPGateway("http://example.invalid", "", nil); err == nil {
		t.Fatal("expected empty api key to be rejected")
	}
}

func TestMaskNumber(t *testing.T) {
	if got := MaskNumber("+41791234567"); got != "*********567" {
		t.Fatalf("unexpected mask %q", got)
	}
	if got := MaskNumber("12"); got != "***" {
		t.Fatalf("unexpected short mask %q", got)
	}
}
