package resultsfeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pickemlabs/pickem-engine/internal/platform/logging"
)

func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()

	client := NewClient(ClientConfig{
		HTTPClient: server.Client(),
		BaseURL:    server.URL,
		APIKey:     "secret-key",
		MaxRetries: 2,
		Logger:     logging.NewNop(),
	})
	client.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return client
}

func TestListContests_DecodesSchedule(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("week"); got != "7" {
			t.Errorf("expected week=7, got=%q", got)
		}
		if got := r.URL.Query().Get("api_key"); got != "secret-key" {
			t.Errorf("expected api_key to be sent, got=%q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[
			{"id":"c-1","week":7,"starts_at":"2025-10-12T17:00:00Z","home_score":21,"away_score":14,"is_final":true},
			{"id":"c-2","week":7,"starts_at":"2025-10-12T20:25:00Z","is_final":false},
			{"id":"","week":7}
		]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	contests, err := client.ListContests(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contests) != 2 {
		t.Fatalf("expected two contests (blank id dropped), got=%d", len(contests))
	}

	first := contests[0]
	if first.ContestID != "c-1" || !first.IsFinal {
		t.Fatalf("unexpected first contest: %+v", first)
	}
	if first.HomeScore == nil || *first.HomeScore != 21 {
		t.Fatalf("expected home score 21, got=%v", first.HomeScore)
	}
	if first.StartsAt.IsZero() {
		t.Fatalf("expected starts_at to be parsed")
	}
	if contests[1].HomeScore != nil {
		t.Fatalf("expected absent score to stay nil")
	}
}

func TestGetContestResult_RetriesOn429ThenSucceeds(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"data":{"home_score":10,"away_score":10,"is_final":true,"is_overtime":true}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)

	var slept []time.Duration
	client.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	result, err := client.GetContestResult(context.Background(), "c-9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsFinal || !result.IsOvertime {
		t.Fatalf("unexpected result: %+v", result)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected two attempts, got=%d", got)
	}
	if len(slept) != 1 || slept[0] != time.Second {
		t.Fatalf("expected one retry-after sleep of 1s, got=%v", slept)
	}
}

func TestGetContestResult_DoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"unknown contest"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	if _, err := client.GetContestResult(context.Background(), "missing"); err == nil {
		t.Fatalf("expected error for 404 response")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected a single attempt for a non-retryable status, got=%d", got)
	}
}

func TestGetContestResult_ExhaustsRetriesOnServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(t, server)
	if _, err := client.GetContestResult(context.Background(), "c-1"); err == nil {
		t.Fatalf("expected error after exhausted retries")
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected three attempts (initial + two retries), got=%d", got)
	}
}

func TestBackoffDelay_DoublesPerAttempt(t *testing.T) {
	t.Parallel()

	expected := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}
	for attempt, want := range expected {
		if got := backoffDelay(attempt); got != want {
			t.Fatalf("attempt=%d expected=%s got=%s", attempt, want, got)
		}
	}
}

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()

	if got := parseRetryAfter("30"); got != 30*time.Second {
		t.Fatalf("expected 30s, got=%s", got)
	}
	if got := parseRetryAfter("0"); got != 0 {
		t.Fatalf("expected zero for non-positive seconds, got=%s", got)
	}
	if got := parseRetryAfter("not-a-number-or-date"); got != 0 {
		t.Fatalf("expected zero for garbage, got=%s", got)
	}
	if got := parseRetryAfter("999999"); got != maxRetryAfterWait {
		t.Fatalf("expected cap at %s, got=%s", maxRetryAfterWait, got)
	}

	future := time.Now().Add(45 * time.Second).UTC().Format(http.TimeFormat)
	if got := parseRetryAfter(future); got <= 0 || got > 45*time.Second {
		t.Fatalf("expected bounded positive wait for http date, got=%s", got)
	}
}

func TestSanitizeSensitiveText_RedactsKey(t *testing.T) {
	t.Parallel()

	out := sanitizeSensitiveText(`Get "https://feed.example/contests?api_key=abc123&week=1": timeout`, "abc123")
	if out != `Get "https://feed.example/contests?api_key=REDACTED&week=1": timeout` {
		t.Fatalf("unexpected redaction output: %s", out)
	}
}
