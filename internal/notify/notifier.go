// Package notify delivers the completion webhook after an automation run.
// Delivery is best-effort: failures are logged and retried, never surfaced to
// the job.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// queueSize is the buffer size for the notification queue.
	queueSize = 100

	// maxResponseBodySize limits how much of the response body is logged (1KB).
	maxResponseBodySize = 1024

	maxRetries = 3
)

// Notification is the payload posted to the webhook endpoint.
type Notification struct {
	Admins    []string `json:"admins"`
	TimeOfDay string   `json:"timeOfDay"`
}

// Notifier queues run-completion notifications and delivers them from a
// background worker so the orchestrator never blocks on the network.
type Notifier struct {
	url    string
	secret string
	client *http.Client
	log    zerolog.Logger
	queue  chan Notification
	done   chan struct{}
	closed int32 // atomic flag to prevent double-close
}

// NewNotifier creates a notifier posting to url. An empty url disables
// delivery; Notify becomes a no-op.
func NewNotifier(url, secret string, log zerolog.Logger) *Notifier {
	n := &Notifier{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log.With().Str("component", "notify").Logger(),
		queue:  make(chan Notification, queueSize),
		done:   make(chan struct{}),
	}
	go n.worker()
	return n
}

// Notify queues one notification. Non-blocking; when the queue is full the
// notification is dropped with a log line.
func (n *Notifier) Notify(admins []string, timeOfDay string) {
	if n.url == "" {
		return
	}
	note := Notification{Admins: admins, TimeOfDay: timeOfDay}
	select {
	case n.queue <- note:
		n.log.Info().Str("timeOfDay", timeOfDay).Int("admins", len(admins)).Msg("notification queued")
	default:
		n.log.Error().Str("timeOfDay", timeOfDay).Msg("notification queue full, dropping")
	}
}

// Close drains the queue and stops the worker. Safe to call multiple times.
func (n *Notifier) Close() error {
	if !atomic.CompareAndSwapInt32(&n.closed, 0, 1) {
		return nil
	}
	close(n.queue)
	<-n.done
	return nil
}

func (n *Notifier) worker() {
	defer close(n.done)
	for note := range n.queue {
		n.deliverWithRetry(context.Background(), note)
	}
}

// deliverWithRetry posts the notification, backing off exponentially between
// attempts. Permanent failure is logged and swallowed.
func (n *Notifier) deliverWithRetry(ctx context.Context, note Notification) {
	payload, err := json.Marshal(note)
	if err != nil {
		n.log.Error().Err(err).Msg("marshal notification payload")
		return
	}

	deliveryID := uuid.New().String()
	signature := ComputeHMAC(payload, n.secret)

	for attempt := 0; attempt <= maxRetries; attempt++ {
		start := time.Now()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
		if err != nil {
			n.log.Error().Err(err).Str("url", n.url).Msg("create webhook request")
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Assignd-Signature", signature)
		req.Header.Set("X-Assignd-Delivery", deliveryID)

		resp, err := n.client.Do(req)
		duration := time.Since(start)

		var statusCode int
		if err == nil {
			statusCode = resp.StatusCode
			// Drain so the connection can be reused.
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBodySize))
			resp.Body.Close()
		}

		if err == nil && statusCode >= 200 && statusCode < 300 {
			n.log.Info().
				Str("delivery", deliveryID).
				Int("status", statusCode).
				Dur("duration", duration).
				Int("attempt", attempt+1).
				Msg("webhook delivered")
			return
		}

		if attempt < maxRetries {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * time.Second
			n.log.Warn().
				Err(err).
				Str("delivery", deliveryID).
				Int("status", statusCode).
				Int("attempt", attempt+1).
				Dur("retryIn", backoff).
				Msg("webhook delivery failed, retrying")
			time.Sleep(backoff)
		} else {
			n.log.Error().
				Err(err).
				Str("delivery", deliveryID).
				Int("status", statusCode).
				Int("attempts", attempt+1).
				Msg("webhook delivery failed permanently")
		}
	}
}
