package push

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/capture-api/internal/config"
	"github.com/phrazzld/capture-api/internal/domain"
	"github.com/phrazzld/capture-api/internal/redact"
)

// Provider endpoints.
const (
	SandboxEndpoint    = "https://api.sandbox.push.apple.com"
	ProductionEndpoint = "https://api.push.apple.com"
)

// MaxPayloadBytes is the provider's ceiling for an alert payload.
const MaxPayloadBytes = 4096

const deviceTokenLength = 64

// Outcome classifies the result of a send attempt.
type Outcome string

// Send outcomes. Every attempt yields exactly one.
const (
	OutcomeDelivered            Outcome = "delivered"
	OutcomeNotConfigured        Outcome = "not_configured"
	OutcomeInvalidToken         Outcome = "invalid_token"
	OutcomeUnregistered         Outcome = "unregistered"
	OutcomeExpiredProviderToken Outcome = "expired_provider_token"
	OutcomePayloadTooLarge      Outcome = "payload_too_large"
	OutcomeTooManyRequests      Outcome = "too_many_requests"
	OutcomeAuthError            Outcome = "auth_error"
	OutcomeNetworkError         Outcome = "network_error"
	OutcomeUnknown              Outcome = "unknown"
)

// Result describes a single send attempt. Sends never return errors; every
// failure is classified here and logged.
type Result struct {
	Outcome    Outcome
	Reason     string
	StatusCode int
	APNsID     string
}

// Delivered reports whether the provider accepted the notification.
func (r Result) Delivered() bool {
	return r.Outcome == OutcomeDelivered
}

// TokenRejected reports whether the device token should be forgotten.
func (r Result) TokenRejected() bool {
	return r.Outcome == OutcomeInvalidToken || r.Outcome == OutcomeUnregistered
}

// Notification is a single alert addressed to one device.
type Notification struct {
	DeviceToken string
	Environment domain.PushEnvironment
	Title       string
	Body        string
	Data        map[string]string
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithHTTPClient replaces the HTTP client used to reach the provider.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Dispatcher) {
		d.client = client
	}
}

// WithEndpoints overrides the provider base URLs.
func WithEndpoints(sandbox, production string) Option {
	return func(d *Dispatcher) {
		d.endpoints = map[domain.PushEnvironment]string{
			domain.PushSandbox:    sandbox,
			domain.PushProduction: production,
		}
	}
}

// WithClock replaces the clock used for provider token age.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.timeFunc = now
	}
}

// Dispatcher sends notifications to the provider.
type Dispatcher struct {
	creds     Credentials
	tokens    *TokenSource
	client    *http.Client
	endpoints map[domain.PushEnvironment]string
	timeFunc  func() time.Time
	logger    *slog.Logger
}

// NewDispatcher creates a Dispatcher. Unconfigured credentials are logged
// once here and make every send short-circuit.
func NewDispatcher(creds Credentials, cfg config.PushConfig, logger *slog.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{
		creds:  creds,
		client: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		endpoints: map[domain.PushEnvironment]string{
			domain.PushSandbox:    SandboxEndpoint,
			domain.PushProduction: ProductionEndpoint,
		},
		timeFunc: time.Now,
		logger:   logger.With("component", "push_dispatcher"),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.tokens = NewTokenSource(creds, time.Duration(cfg.TokenRefreshMinutes)*time.Minute, d.timeFunc)

	if creds.Configured() {
		d.logger.Info("push delivery configured",
			"topic", creds.Topic,
			"key_id", creds.KeyID)
	} else {
		d.logger.Warn("push delivery not configured", "reason", creds.Reason())
	}

	return d
}

// Configured reports whether sends can reach the provider.
func (d *Dispatcher) Configured() bool {
	return d.creds.Configured()
}

// Send delivers n and classifies the outcome.
func (d *Dispatcher) Send(ctx context.Context, n Notification) Result {
	log := d.logger.With("environment", n.Environment)

	if !validDeviceToken(n.DeviceToken) {
		log.Warn("malformed device token rejected", "token_length", len(n.DeviceToken))
		return Result{Outcome: OutcomeInvalidToken, Reason: "malformed device token"}
	}

	if !d.creds.Configured() {
		log.Warn("push skipped, delivery not configured", "reason", d.creds.Reason())
		return Result{Outcome: OutcomeNotConfigured, Reason: d.creds.Reason()}
	}

	endpoint, ok := d.endpoints[n.Environment]
	if !ok {
		log.Warn("push skipped, unknown environment")
		return Result{Outcome: OutcomeInvalidToken, Reason: "unknown environment"}
	}

	body, err := buildPayload(n)
	if err != nil {
		log.Error("failed to encode push payload", "error", err)
		return Result{Outcome: OutcomeUnknown, Reason: err.Error()}
	}
	if len(body) > MaxPayloadBytes {
		log.Warn("push payload too large", "bytes", len(body))
		return Result{Outcome: OutcomePayloadTooLarge, Reason: "PayloadTooLarge"}
	}

	token, err := d.tokens.Token(ctx)
	if err != nil {
		log.Error("provider token unavailable", "error", err)
		return Result{Outcome: OutcomeAuthError, Reason: err.Error()}
	}

	url := endpoint + "/3/device/" + n.DeviceToken
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		log.Error("failed to build push request", "error", err)
		return Result{Outcome: OutcomeUnknown, Reason: err.Error()}
	}
	req.Header.Set("authorization", "bearer "+token)
	req.Header.Set("apns-topic", d.creds.Topic)
	req.Header.Set("apns-push-type", "alert")
	req.Header.Set("apns-priority", "10")
	req.Header.Set("content-type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		log.Error("push request failed", "error", redact.Error(err))
		return Result{Outcome: OutcomeNetworkError, Reason: redact.Error(err)}
	}
	defer resp.Body.Close()

	result := Result{
		StatusCode: resp.StatusCode,
		APNsID:     resp.Header.Get("apns-id"),
	}

	if resp.StatusCode == http.StatusOK {
		result.Outcome = OutcomeDelivered
		log.Info("push delivered", "apns_id", result.APNsID, "title", n.Title)
		return result
	}

	result.Reason = readReason(resp.Body)
	result.Outcome = classify(resp.StatusCode, result.Reason)

	if result.Outcome == OutcomeExpiredProviderToken {
		d.tokens.Invalidate()
	}

	log.Warn("push rejected",
		"status_code", result.StatusCode,
		"reason", result.Reason,
		"outcome", result.Outcome,
		"apns_id", result.APNsID)
	return result
}

// classify maps a provider rejection to an Outcome.
func classify(status int, reason string) Outcome {
	switch reason {
	case "BadDeviceToken", "DeviceTokenNotForTopic":
		return OutcomeInvalidToken
	case "Unregistered", "ExpiredToken":
		return OutcomeUnregistered
	case "ExpiredProviderToken", "InvalidProviderToken":
		return OutcomeExpiredProviderToken
	case "PayloadTooLarge":
		return OutcomePayloadTooLarge
	case "TooManyRequests", "TooManyProviderTokenUpdates":
		return OutcomeTooManyRequests
	}

	switch status {
	case http.StatusGone:
		return OutcomeUnregistered
	case http.StatusRequestEntityTooLarge:
		return OutcomePayloadTooLarge
	case http.StatusTooManyRequests:
		return OutcomeTooManyRequests
	}
	return OutcomeUnknown
}

func readReason(body io.Reader) string {
	var decoded struct {
		Reason string `json:"reason"`
	}
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return ""
	}
	return decoded.Reason
}

type alert struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type aps struct {
	Alert            alert  `json:"alert"`
	Sound            string `json:"sound"`
	ContentAvailable int    `json:"content-available"`
	MutableContent   int    `json:"mutable-content"`
}

// buildPayload renders the aps dictionary with custom data as sibling keys.
func buildPayload(n Notification) ([]byte, error) {
	payload := make(map[string]interface{}, len(n.Data)+1)
	for k, v := range n.Data {
		if k == "aps" {
			continue
		}
		payload[k] = v
	}
	payload["aps"] = aps{
		Alert:            alert{Title: n.Title, Body: n.Body},
		Sound:            "default",
		ContentAvailable: 1,
		MutableContent:   1,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return data, nil
}

func validDeviceToken(token string) bool {
	if len(token) != deviceTokenLength {
		return false
	}
	_, err := hex.DecodeString(token)
	return err == nil
}
