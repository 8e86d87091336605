// Package webhooks posts HMAC-signed score events to configured URLs.
package webhooks

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
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SignatureHeader carries the HMAC-SHA256 of the request body.
const SignatureHeader = "X-Riskposture-Signature"

// DefaultRetryDelays are the waits before the second and third attempts.
var DefaultRetryDelays = []time.Duration{time.Second, 5 * time.Second}

// MetricsRecorder is an optional callback for recording delivery outcomes.
type MetricsRecorder func(success bool)

// Dispatcher delivers events to subscriptions.
type Dispatcher struct {
	subs       []Subscription
	httpClient *http.Client
	delays     []time.Duration
	onMetrics  MetricsRecorder
	logger     *zap.Logger
}

// NewDispatcher creates a Dispatcher for the given subscriptions.
func NewDispatcher(subs []Subscription, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		subs:       subs,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		delays:     DefaultRetryDelays,
		logger:     logger,
	}
}

// SetMetricsRecorder configures the metrics callback.
func (d *Dispatcher) SetMetricsRecorder(fn MetricsRecorder) {
	d.onMetrics = fn
}

// SetRetryDelays replaces the waits between attempts. The number of
// attempts is len(delays)+1.
func (d *Dispatcher) SetRetryDelays(delays []time.Duration) {
	d.delays = delays
}

// Enabled reports whether any subscription is configured.
func (d *Dispatcher) Enabled() bool {
	return d != nil && len(d.subs) > 0
}

// Dispatch delivers an event to every matching subscription concurrently
// and waits for all deliveries to finish.
func (d *Dispatcher) Dispatch(ctx context.Context, eventType string, payload map[string]string) []Delivery {
	if !d.Enabled() {
		return nil
	}

	event := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
	body, err := json.Marshal(event)
	if err != nil {
		d.logger.Error("webhook: marshal event", zap.Error(err))
		return nil
	}

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		deliveries []Delivery
	)
	for _, sub := range d.subs {
		if !sub.Wants(eventType) {
			continue
		}
		wg.Add(1)
		go func(sub Subscription) {
			defer wg.Done()
			res := d.deliver(ctx, sub, event.ID, body)
			mu.Lock()
			deliveries = append(deliveries, res)
			mu.Unlock()
		}(sub)
	}
	wg.Wait()
	return deliveries
}

// deliver sends the body to a single subscription with retries.
func (d *Dispatcher) deliver(ctx context.Context, sub Subscription, eventID string, body []byte) Delivery {
	signature := signPayload(body, sub.Secret)
	res := Delivery{URL: sub.URL, EventID: eventID}

	for attempt := 1; attempt <= len(d.delays)+1; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				res.Error = ctx.Err().Error()
				return res
			case <-time.After(d.delays[attempt-2]):
			}
		}

		res.Attempts = attempt
		res.Success, res.StatusCode, res.Error = d.doDelivery(ctx, sub.URL, body, signature)

		if d.onMetrics != nil {
			d.onMetrics(res.Success)
		}
		if res.Success {
			return res
		}

		d.logger.Warn("webhook: delivery failed",
			zap.String("url", sub.URL),
			zap.Int("attempt", attempt),
			zap.String("error", res.Error),
		)
	}
	return res
}

// doDelivery performs a single HTTP POST delivery.
func (d *Dispatcher) doDelivery(ctx context.Context, url string, body []byte, signature string) (bool, int, string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, 0, err.Error()
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, signature)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return false, 0, err.Error()
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1024)) //nolint:errcheck

	success := resp.StatusCode >= 200 && resp.StatusCode < 300
	errMsg := ""
	if !success {
		errMsg = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return success, resp.StatusCode, errMsg
}

// signPayload computes an HMAC-SHA256 signature.
func signPayload(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a signature header produced for body.
func VerifySignature(body []byte, secret, signature string) bool {
	return hmac.Equal([]byte(signPayload(body, secret)), []byte(signature))
}
