package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Gateway sends a text message to a phone number.
type Gateway interface {
	Send(ctx context.Context, phoneNumber, message string) error
}

// GatewayFunc adapts a function to Gateway.
type GatewayFunc func(ctx context.Context, phoneNumber, message string) error

func (f GatewayFunc) Send(ctx context.Context, phoneNumber, message string) error {
	return f(ctx, phoneNumber, message)
}

// HTTPGateway posts messages to an HTTP SMS API authenticated by an API key.
type HTTPGateway struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

type httpGatewayRequest struct {
	MobileNumber string `json:"mobileNumber"`
	Message      string `json:"message"`
}

// NewHTTPGateway returns a gateway for endpoint. A nil client gets a 10s timeout.
func NewHTTPGateway(endpoint, apiKey string, client *http.Client) (*HTTPGateway, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, errors.New("sms endpoint is required")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("sms api key is required")
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPGateway{endpoint: endpoint, apiKey: apiKey, httpClient: client}, nil
}

// Send posts {mobileNumber, message}. The leading "+" of an E.164 number is
// stripped. Any non-2xx status is an error.
func (g *HTTPGateway) Send(ctx context.Context, phoneNumber, message string) error {
	body, err := json.Marshal(httpGatewayRequest{
		MobileNumber: strings.TrimPrefix(phoneNumber, "+"),
		Message:      message,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Api-Key", g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send sms request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sms gateway returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// LogGateway logs a masked notice instead of sending. For development.
type LogGateway struct {
	logger *zap.Logger
}

// NewLogGateway returns a LogGateway writing to logger.
func NewLogGateway(logger *zap.Logger) *LogGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogGateway{logger: logger}
}

func (g *LogGateway) Send(_ context.Context, phoneNumber, message string) error {
	g.logger.Info("sms suppressed",
		zap.String("to", MaskNumber(phoneNumber)),
		zap.Int("length", len(message)),
	)
	return nil
}

// MaskNumber keeps the last three digits of a phone number.
func MaskNumber(phoneNumber string) string {
	if len(phoneNumber) <= 3 {
		return "***"
	}
	return strings.Repeat("*", len(phoneNumber)-3) + phoneNumber[len(phoneNumber)-3:]
}
