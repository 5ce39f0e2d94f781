// Package webhook delivers JSON payloads to an HTTP endpoint with
// HMAC-SHA256 signing. Each Send is a single attempt.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Header names set on every delivery.
const (
	HeaderSignature      = "X-Webhook-Signature"
	HeaderDeliveryID     = "X-Webhook-ID"
	HeaderTimestamp      = "X-Webhook-Timestamp"
	HeaderIdempotencyKey = "Idempotency-Key"
)

// DefaultTimeout bounds a single delivery, connection and response
// included.
const DefaultTimeout = 2 * time.Second

// ErrDeliveryFailed is returned when the endpoint could not be reached or
// answered with a non-2xx status.
var ErrDeliveryFailed = errors.New("webhook delivery failed")

// ---------------------------------------------------------------------------
// Signature helpers
// ---------------------------------------------------------------------------

// SignPayload computes an HMAC-SHA256 signature of the payload using the given secret,
// returning the hex-encoded result.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}


// ValidateURL checks that the URL is non-empty and uses http or https.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("url host is required")
	}
	return nil
}

// ---------------------------------------------------------------------------
// Sender
// ---------------------------------------------------------------------------

// Attempt records the outcome of one POST.
type Attempt struct {
	ID           string
	StatusCode   int
	ResponseBody string
	Duration     time.Duration
	Err          error
}

// Option configures a Sender.
type Option func(*Sender)

// WithHTTPClient overrides the default HTTP client used for deliveries.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Sender) { s.httpClient = c }
}

// Sender POSTs signed payloads to a single URL.
type Sender struct {
	url        string
	secret     string
	httpClient *http.Client
}

// NewSender validates rawURL and returns a Sender for it. An empty secret
// disables signing.
func NewSender(rawURL, secret string, opts ...Option) (*Sender, error) {
	if err := ValidateURL(rawURL); err != nil {
		return nil, err
	}
	s := &Sender{
		url:    rawURL,
		secret: secret,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Send POSTs payload once. idempotencyKey, when set, travels in the
// Idempotency-Key header so the receiver can drop duplicates. The attempt is
// returned even when err is non-nil.
func (s *Sender) Send(ctx context.Context, payload []byte, idempotencyKey string) (*Attempt, error) {
	a := &Attempt{ID: uuid.New().String()}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		a.Err = err
		return a, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderDeliveryID, a.ID)
	req.Header.Set(HeaderTimestamp, time.Now().UTC().Format(time.RFC3339))
	if idempotencyKey != "" {
		req.Header.Set(HeaderIdempotencyKey, idempotencyKey)
	}
	if s.secret != "" {
		req.Header.Set(HeaderSignature, "sha256="+SignPayload(payload, s.secret))
	}

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	a.Duration = time.Since(start)
	if err != nil {
		a.Err = err
		if ctxErr := ctx.Err(); ctxErr != nil {
			return a, ctxErr
		}
		return a, fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	a.StatusCode = resp.StatusCode

	// Read at most 1KB of response body.
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	a.ResponseBody = string(body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return a, fmt.Errorf("%w: non-2xx response: %d", ErrDeliveryFailed, resp.StatusCode)
	}
	return a, nil
}
