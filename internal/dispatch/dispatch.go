// Package dispatch implements the HTTP Dispatcher: it performs one
// signed delivery attempt against a subscription's URL and classifies the
// outcome for the Delivery Queue's retry decision (spec §4.7).
package dispatch

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/relaydock/docrelay/model"
	"github.com/sirupsen/logrus"
)

// retryableStatus is the set of HTTP status codes the dispatcher reports
// as retryable (spec §4.7); the Queue still decides on attempt count
// alone, this classification is informational.
var retryableStatus = map[int]struct{}{
	408: {}, 429: {}, 500: {}, 502: {}, 503: {}, 504: {}, 507: {}, 509: {}, 510: {},
}

// Config bounds a Dispatcher's HTTP behavior.
type Config struct {
	UserAgent      string
	MaxRedirects   int
	MaxPayloadSize int64
	Timeout        time.Duration
	// WebhookSecretSalt signs a delivery whose subscription declares no
	// secret of its own (spec §6 "webhookSecretSalt"). Left empty, such
	// deliveries go out unsigned, matching spec §4.7's "if subscription
	// has a secret".
	WebhookSecretSalt string
}

// DefaultConfig mirrors spec §4.7's defaults.
func DefaultConfig() Config {
	return Config{
		UserAgent:      "docrelay-webhook/1.0",
		MaxRedirects:   5,
		MaxPayloadSize: 1 << 20,
		Timeout:        30 * time.Second,
	}
}

// Result is the outcome of one delivery attempt.
type Result struct {
	Success    bool
	StatusCode int
	Duration   time.Duration
	Headers    http.Header
	BodyPrefix string
	Error      string
	ErrorCategory model.ErrorCategory
	Retryable  bool
}

// Dispatcher performs signed HTTP POST delivery attempts.
type Dispatcher struct {
	config Config
	client *http.Client
	logger logrus.FieldLogger
}

// New constructs a Dispatcher. The underlying http.Client enforces
// config.MaxRedirects itself so a runaway redirect chain cannot hang an
// attempt past the per-item deadline.
func New(config Config, logger logrus.FieldLogger) *Dispatcher {
	client := &http.Client{
		Timeout: config.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= config.MaxRedirects {
				return errors.Errorf("stopped after %d redirects", config.MaxRedirects)
			}
			return nil
		},
	}
	return &Dispatcher{config: config, client: client, logger: logger.WithField("component", "dispatcher")}
}

// Attempt sends one delivery attempt for item, honoring ctx's deadline
// (the Queue supplies a per-attempt deliveryTimeout context).
func (d *Dispatcher) Attempt(ctx context.Context, item *model.DeliveryItem) Result {
	parsed, err := url.Parse(item.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return Result{Error: "invalid-url", ErrorCategory: model.ErrorCategoryInvalidURL}
	}

	body, err := json.Marshal(item.Payload)
	if err != nil {
		return Result{Error: errors.Wrap(err, "failed to marshal payload").Error(), ErrorCategory: model.ErrorCategoryOther}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, item.URL, bytes.NewReader(body))
	if err != nil {
		return Result{Error: errors.Wrap(err, "failed to build request").Error(), ErrorCategory: model.ErrorCategoryOther}
	}
	d.setHeaders(req, item, body)

	start := time.Now()
	resp, err := d.client.Do(req)
	duration := time.Since(start)
	if err != nil {
		category := model.ErrorCategoryConnection
		if ctx.Err() == context.DeadlineExceeded {
			category = model.ErrorCategoryTimeout
		}
		return Result{Duration: duration, Error: err.Error(), ErrorCategory: category, Retryable: category != model.ErrorCategoryInvalidURL}
	}
	defer drainAndClose(resp.Body)

	prefix, truncated, err := readCapped(resp.Body, d.config.MaxPayloadSize)
	if err != nil {
		return Result{
			Duration:      duration,
			StatusCode:    resp.StatusCode,
			Headers:       resp.Header,
			Error:         "failed to read response body",
			ErrorCategory: model.ErrorCategoryOther,
		}
	}
	if truncated {
		return Result{
			Duration:      duration,
			StatusCode:    resp.StatusCode,
			Headers:       resp.Header,
			Error:         "response-size-exceeded",
			ErrorCategory: model.ErrorCategoryResponseTooBig,
		}
	}

	result := Result{
		Duration:   duration,
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		BodyPrefix: model.TruncateResponseBody(prefix),
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		result.Success = true
		return result
	}

	result.Error = fmt.Sprintf("unexpected status %d", resp.StatusCode)
	result.ErrorCategory = model.ErrorCategoryHTTPStatus
	_, result.Retryable = retryableStatus[resp.StatusCode]
	return result
}

// setHeaders attaches the reserved headers (spec §4.7), then merges the
// subscription's custom headers last, without letting them override a
// reserved name (model.Headers.Validate already rejects that at
// subscription creation time, this is belt-and-braces at send time).
func (d *Dispatcher) setHeaders(req *http.Request, item *model.DeliveryItem, body []byte) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", d.config.UserAgent)
	req.Header.Set("X-Webhook-Id", item.Payload.Webhook.ID)
	req.Header.Set("X-Webhook-Timestamp", strconv.FormatInt(time.Now().Unix(), 10))
	req.Header.Set("X-Webhook-Event", item.Payload.Event)
	if secret := d.signingSecret(item); secret != "" {
		req.Header.Set("X-Webhook-Signature", "sha256="+Sign(body, secret))
	}
	for key, value := range item.Headers {
		if _, reserved := reservedResponseHeaders[normalizeHeaderKey(key)]; reserved {
			continue
		}
		req.Header.Set(key, value)
	}
}

// signingSecret resolves the key used for X-Webhook-Signature: the
// subscription's own secret if it declared one, else the server-wide
// webhookSecretSalt, else no signature at all.
func (d *Dispatcher) signingSecret(item *model.DeliveryItem) string {
	if item.Secret != nil {
		return *item.Secret
	}
	return d.config.WebhookSecretSalt
}

var reservedResponseHeaders = map[string]struct{}{
	"content-type":        {},
	"user-agent":          {},
	"x-webhook-id":        {},
	"x-webhook-timestamp": {},
	"x-webhook-event":     {},
	"x-webhook-signature": {},
}

func normalizeHeaderKey(key string) string {
	out := make([]byte, len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

// Sign computes the hex-encoded HMAC-SHA256 of body under secret.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature (the "sha256=<hex>" header
// value) matches body under secret, using constant-time comparison (spec
// §4.7 "for the management-side verifier").
func VerifySignature(body []byte, secret, signature string) bool {
	const prefix = "sha256="
	if len(signature) <= len(prefix) || signature[:len(prefix)] != prefix {
		return false
	}
	expected, err := hex.DecodeString(Sign(body, secret))
	if err != nil {
		return false
	}
	actual, err := hex.DecodeString(signature[len(prefix):])
	if err != nil {
		return false
	}
	return hmac.Equal(expected, actual)
}

// readCapped reads up to limit+1 bytes, reporting truncated=true if the
// body exceeded limit.
func readCapped(r io.Reader, limit int64) (prefix []byte, truncated bool, err error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(data)) > limit {
		return data[:limit], true, nil
	}
	return data, false, nil
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4<<10))
	_ = body.Close()
}
