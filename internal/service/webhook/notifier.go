// Package webhook delivers grant lifecycle events to a downstream system
// with HMAC-signed payloads and bounded, capped-linear retry.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/smallbiznis/gnap-auth/internal/domain"
	"github.com/smallbiznis/gnap-auth/internal/repository"
)

// SignatureHeader carries the delivery signature: t=<ms>, v1=<hex-hmac>.
const SignatureHeader = "Webhook-Signature"

const maxBackoffSteps = 6

// Notifier drains the webhook_events queue. Multiple workers may run
// concurrently; the SKIP LOCKED dequeue guarantees each picks a distinct
// event.
type Notifier struct {
	db     repository.DB
	events repository.WebhookEventRepository
	client *http.Client

	url      string
	secret   string
	maxRetry int
	backoff  time.Duration
	poll     time.Duration
	workers  int
}

func NewNotifier(
	db repository.DB,
	events repository.WebhookEventRepository,
	url, secret string,
	timeout time.Duration,
	maxRetry int,
	backoff, poll time.Duration,
	workers int,
) *Notifier {
	return &Notifier{
		db:       db,
		events:   events,
		client:   &http.Client{Timeout: timeout},
		url:      url,
		secret:   secret,
		maxRetry: maxRetry,
		backoff:  backoff,
		poll:     poll,
		workers:  workers,
	}
}

type payload struct {
	ID   string         `json:"id"`
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// ProcessNext delivers at most one eligible event, holding its row lock
// across the HTTP attempt so the outcome write-back and the dequeue are one
// transaction. Returns false when no event was eligible.
func (n *Notifier) ProcessNext(ctx context.Context) (bool, error) {
	tx, err := n.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin webhook delivery: %w", err)
	}
	defer tx.Rollback(ctx)

	events := n.events.WithTx(tx)
	event, err := events.NextEligible(ctx, n.maxRetry, time.Now().UTC())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}

	attempts := event.Attempts + 1
	status, deliverErr := n.deliver(ctx, event)

	if deliverErr == nil && status == http.StatusOK {
		if err := events.MarkDelivered(ctx, event.ID, status, attempts); err != nil {
			return false, err
		}
	} else {
		steps := attempts
		if steps > maxBackoffSteps {
			steps = maxBackoffSteps
		}
		processAt := time.Now().UTC().Add(time.Duration(steps) * n.backoff)
		if err := events.Reschedule(ctx, event.ID, status, attempts, processAt); err != nil {
			return false, err
		}
		zap.L().Warn("webhook delivery failed",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)),
			zap.Int("attempts", attempts),
			zap.Int("status", status),
			zap.Error(deliverErr),
		)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit webhook delivery: %w", err)
	}
	return true, nil
}

func (n *Notifier) deliver(ctx context.Context, event domain.WebhookEvent) (int, error) {
	body, err := json.Marshal(payload{ID: event.ID, Type: string(event.Type), Data: event.Data})
	if err != nil {
		return 0, fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, Sign(n.secret, time.Now().UnixMilli(), body))

	resp, err := n.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

// Sign computes the delivery signature over "<timestamp>.<body>".
func Sign(secret string, timestampMs int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", timestampMs, body)
	return fmt.Sprintf("t=%d, v1=%s", timestampMs, hex.EncodeToString(mac.Sum(nil)))
}

// Run starts the worker loops and blocks until ctx is cancelled. Each
// worker drains all eligible events, then sleeps for the poll interval.
func (n *Notifier) Run(ctx context.Context) {
	if n.url == "" {
		zap.L().Info("webhook delivery disabled: no url configured")
		<-ctx.Done()
		return
	}

	done := make(chan struct{})
	for w := 0; w < n.workers; w++ {
		go func(worker int) {
			ticker := time.NewTicker(n.poll)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					done <- struct{}{}
					return
				case <-ticker.C:
					for {
						processed, err := n.ProcessNext(ctx)
						if err != nil {
							zap.L().Error("webhook worker error",
								zap.Int("worker", worker), zap.Error(err))
							break
						}
						if !processed {
							break
						}
					}
				}
			}
		}(w)
	}
	for w := 0; w < n.workers; w++ {
		<-done
	}
}
