package webhook_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/smallbiznis/gnap-auth/internal/domain"
	"github.com/smallbiznis/gnap-auth/internal/service/webhook"
	"github.com/smallbiznis/gnap-auth/internal/testutil"
)

const secret = "webhook-secret"

func newNotifier(events *testutil.MemoryWebhookEventRepo, url string) *webhook.Notifier {
	return webhook.NewNotifier(testutil.NopDB{}, events, url, secret,
		time.Second, 10, time.Minute, time.Second, 1)
}

func enqueue(t *testing.T, events *testutil.MemoryWebhookEventRepo, attempts int) domain.WebhookEvent {
	t.Helper()
	past := time.Now().UTC().Add(-time.Second)
	event, err := events.Create(context.Background(), domain.WebhookEvent{
		Type:      domain.WebhookEventGrantRevoked,
		Data:      map[string]any{"grantId": "grant-1"},
		Attempts:  attempts,
		ProcessAt: &past,
	})
	require.NoError(t, err)
	return event
}

func TestProcessNextDeliversAndSettles(t *testing.T) {
	events := testutil.NewMemoryWebhookEventRepo()

	var gotBody []byte
	var gotSig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get(webhook.SignatureHeader)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	event := enqueue(t, events, 0)
	n := newNotifier(events, srv.URL)

	processed, err := n.ProcessNext(context.Background())
	require.NoError(t, err)
	require.True(t, processed)

	settled := events.Events[event.ID]
	require.Nil(t, settled.ProcessAt)
	require.Equal(t, 1, settled.Attempts)
	require.Equal(t, http.StatusOK, settled.StatusCode)

	var payload struct {
		ID   string         `json:"id"`
		Type string         `json:"type"`
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	require.Equal(t, event.ID, payload.ID)
	require.Equal(t, string(domain.WebhookEventGrantRevoked), payload.Type)

	// The signature must verify against the raw body and its timestamp.
	parts := strings.SplitN(gotSig, ", ", 2)
	require.Len(t, parts, 2)
	ts := strings.TrimPrefix(parts[0], "t=")
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s.%s", ts, gotBody)
	require.Equal(t, "v1="+hex.EncodeToString(mac.Sum(nil)), parts[1])
}

func TestProcessNextReschedulesOnFailure(t *testing.T) {
	events := testutil.NewMemoryWebhookEventRepo()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	event := enqueue(t, events, 0)
	n := newNotifier(events, srv.URL)

	before := time.Now().UTC()
	processed, err := n.ProcessNext(context.Background())
	require.NoError(t, err)
	require.True(t, processed)

	failed := events.Events[event.ID]
	require.Equal(t, 1, failed.Attempts)
	require.Equal(t, http.StatusInternalServerError, failed.StatusCode)
	require.NotNil(t, failed.ProcessAt)
	require.True(t, failed.ProcessAt.After(before), "failure must push the event into the future")
}

func TestBackoffIsCappedLinear(t *testing.T) {
	events := testutil.NewMemoryWebhookEventRepo()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	// Attempt 8 of 10: the backoff multiplier caps at 6 units.
	event := enqueue(t, events, 8)
	n := newNotifier(events, srv.URL)

	before := time.Now().UTC()
	processed, err := n.ProcessNext(context.Background())
	require.NoError(t, err)
	require.True(t, processed)

	failed := events.Events[event.ID]
	require.Equal(t, 9, failed.Attempts)
	delay := failed.ProcessAt.Sub(before)
	require.LessOrEqual(t, delay, 6*time.Minute+time.Second)
	require.Greater(t, delay, 5*time.Minute)
}

func TestConcurrentProcessNextDequeuesDistinctEvents(t *testing.T) {
	events := testutil.NewMemoryWebhookEventRepo()

	delivered := make(chan string, 2)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload struct {
			ID string `json:"id"`
		}
		_ = json.Unmarshal(body, &payload)
		delivered <- payload.ID
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	first := enqueue(t, events, 0)
	second := enqueue(t, events, 0)
	n := newNotifier(events, srv.URL)

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := n.ProcessNext(context.Background())
			errs <- err
		}()
	}

	// Hold both deliveries in flight before either settles: the dequeue
	// lock must hand each worker a different row.
	ids := map[string]bool{}
	ids[<-delivered] = true
	ids[<-delivered] = true
	close(release)
	require.NoError(t, <-errs)
	require.NoError(t, <-errs)

	require.Len(t, ids, 2)
	require.True(t, ids[first.ID])
	require.True(t, ids[second.ID])
}

func TestExhaustedEventsAreNeverSelected(t *testing.T) {
	events := testutil.NewMemoryWebhookEventRepo()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("exhausted event must not be delivered")
	}))
	defer srv.Close()

	enqueue(t, events, 10)
	n := newNotifier(events, srv.URL)

	processed, err := n.ProcessNext(context.Background())
	require.NoError(t, err)
	require.False(t, processed)
}

func TestProcessNextWithEmptyQueue(t *testing.T) {
	n := newNotifier(testutil.NewMemoryWebhookEventRepo(), "http://unused.example")
	processed, err := n.ProcessNext(context.Background())
	require.NoError(t, err)
	require.False(t, processed)
}

func TestSign(t *testing.T) {
	body := []byte(`{"id":"e1"}`)
	sig := webhook.Sign(secret, 1700000000000, body)
	require.True(t, strings.HasPrefix(sig, "t=1700000000000, v1="))

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "1700000000000.%s", body)
	require.Equal(t, "t=1700000000000, v1="+hex.EncodeToString(mac.Sum(nil)), sig)
}
