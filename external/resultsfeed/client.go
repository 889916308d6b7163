// Package resultsfeed is the HTTP client for the external contest results
// provider. The provider is a black box: the client only understands the
// minimal schedule/result payloads and treats 429 and 5xx responses as
// transient, retrying with exponential backoff.
package resultsfeed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"

	"github.com/pickemlabs/pickem-engine/internal/platform/logging"
	"github.com/pickemlabs/pickem-engine/internal/platform/resilience"
	"github.com/pickemlabs/pickem-engine/internal/usecase"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultMaxRetries  = 3
	maxResponseBytes   = 2 << 20
	maxRetryAfterWait  = 2 * time.Minute
	baseBackoff        = time.Second
	abbreviatedBodyLen = 240
)

var apiKeyParamRegex = regexp.MustCompile(`api_key=[^&\s"']+`)

// errFeedTransient marks failures the caller may retry: timeouts, 429s and
// provider-side errors.
var errFeedTransient = crerr.New("results feed transient failure")

type ClientConfig struct {
	HTTPClient     *http.Client
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	MaxRetries     int
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	maxRetries     int
	logger         *logging.Logger
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
	flight         resilience.SingleFlight
	sleep          func(ctx context.Context, d time.Duration) error
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = defaultTimeout
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	breakerCfg := resilience.NormalizeCircuitBreakerConfig(cfg.CircuitBreaker)

	return &Client{
		httpClient:     httpClient,
		baseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:         strings.TrimSpace(cfg.APIKey),
		maxRetries:     maxRetries,
		logger:         logger,
		breaker:        resilience.NewCircuitBreaker(breakerCfg.FailureThreshold, breakerCfg.OpenTimeout, breakerCfg.HalfOpenMaxReq),
		circuitEnabled: breakerCfg.Enabled,
		sleep:          sleepContext,
	}
}

type contestSummary struct {
	ID        string `json:"id"`
	Week      int    `json:"week"`
	StartsAt  string `json:"starts_at"`
	HomeScore *int   `json:"home_score"`
	AwayScore *int   `json:"away_score"`
	IsFinal   bool   `json:"is_final"`
}

type listContestsEnvelope struct {
	Data []contestSummary `json:"data"`
}

type contestResultEnvelope struct {
	Data struct {
		HomeScore  *int `json:"home_score"`
		AwayScore  *int `json:"away_score"`
		IsFinal    bool `json:"is_final"`
		IsOvertime bool `json:"is_overtime"`
	} `json:"data"`
}

// ListContests returns the provider's schedule for one week.
func (c *Client) ListContests(ctx context.Context, week int) ([]usecase.FeedContest, error) {
	if week <= 0 {
		return nil, fmt.Errorf("week must be greater than zero")
	}

	var envelope listContestsEnvelope
	path := "/contests"
	query := map[string]string{"week": strconv.Itoa(week)}
	if err := c.doJSON(ctx, path, query, &envelope); err != nil {
		return nil, fmt.Errorf("list contests week=%d: %w", week, err)
	}

	out := make([]usecase.FeedContest, 0, len(envelope.Data))
	for _, item := range envelope.Data {
		if strings.TrimSpace(item.ID) == "" {
			continue
		}
		row := usecase.FeedContest{
			ContestID: item.ID,
			Week:      item.Week,
			HomeScore: item.HomeScore,
			AwayScore: item.AwayScore,
			IsFinal:   item.IsFinal,
		}
		if parsed := parseFeedTime(item.StartsAt); parsed != nil {
			row.StartsAt = *parsed
		}
		out = append(out, row)
	}
	return out, nil
}

// GetContestResult returns the provider's current state for one contest.
func (c *Client) GetContestResult(ctx context.Context, contestID string) (usecase.FeedResult, error) {
	if strings.TrimSpace(contestID) == "" {
		return usecase.FeedResult{}, fmt.Errorf("contest id is required")
	}

	var envelope contestResultEnvelope
	path := "/contests/" + url.PathEscape(contestID)
	if err := c.doJSON(ctx, path, nil, &envelope); err != nil {
		return usecase.FeedResult{}, fmt.Errorf("get contest result contest=%s: %w", contestID, err)
	}

	return usecase.FeedResult{
		HomeScore:  envelope.Data.HomeScore,
		AwayScore:  envelope.Data.AwayScore,
		IsFinal:    envelope.Data.IsFinal,
		IsOvertime: envelope.Data.IsOvertime,
	}, nil
}

func (c *Client) doJSON(ctx context.Context, path string, query map[string]string, target any) error {
	if c.circuitEnabled {
		if err := c.breaker.Allow(); err != nil {
			c.logger.WarnContext(ctx, "results feed circuit breaker rejected request", "state", c.breaker.State())
			return fmt.Errorf("%w: results feed is temporarily unavailable", usecase.ErrDependencyUnavailable)
		}
	}

	values := url.Values{}
	for key, value := range query {
		values.Set(key, value)
	}
	if c.apiKey != "" {
		values.Set("api_key", c.apiKey)
	}

	fullURL := c.baseURL + path
	if encoded := values.Encode(); encoded != "" {
		fullURL += "?" + encoded
	}

	// Identical in-flight reads collapse onto one provider request.
	key := path + "?" + values.Encode()
	out, err, _ := c.flight.Do(key, func() (any, error) {
		raw, reqErr := c.executeRequest(ctx, fullURL)
		if c.circuitEnabled {
			if reqErr != nil && crerr.Is(reqErr, errFeedTransient) {
				c.breaker.RecordFailure()
			} else {
				c.breaker.RecordSuccess()
			}
		}
		return raw, reqErr
	})
	if err != nil {
		return err
	}

	raw, ok := out.([]byte)
	if !ok {
		return fmt.Errorf("unexpected response payload type %T", out)
	}

	if err := sonic.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("decode feed payload: %w", err)
	}
	return nil
}

// executeRequest runs the retry loop: exponential backoff between
// attempts, with a server-declared Retry-After taking precedence over the
// computed delay.
func (c *Client) executeRequest(ctx context.Context, fullURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("accept", "application/json")

		wait := backoffDelay(attempt)
		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: send request: %s", errFeedTransient, sanitizeSensitiveText(err.Error(), c.apiKey))
		} else {
			raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
			retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
			_ = resp.Body.Close()
			switch {
			case readErr != nil:
				lastErr = fmt.Errorf("%w: read response body: %v", errFeedTransient, readErr)
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				return raw, nil
			case isRetryableStatus(resp.StatusCode):
				lastErr = fmt.Errorf("%w: feed status=%d body=%s", errFeedTransient, resp.StatusCode, abbreviateBody(raw))
				if retryAfter > 0 {
					wait = retryAfter
				}
			default:
				return nil, fmt.Errorf("feed status=%d body=%s", resp.StatusCode, abbreviateBody(raw))
			}
		}

		if attempt == c.maxRetries {
			break
		}
		if err := c.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("%w: feed request failed", errFeedTransient)
	}
	c.logger.WarnContext(ctx, "results feed request failed", "url", redactFeedURL(fullURL), "error", lastErr)
	return nil, lastErr
}

// backoffDelay doubles per attempt: 1s, 2s, 4s, ...
func backoffDelay(attempt int) time.Duration {
	return baseBackoff << uint(attempt)
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// parseRetryAfter handles both delta-seconds and HTTP-date forms, capped so
// a hostile header cannot stall a tick indefinitely.
func parseRetryAfter(raw string) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(raw); err == nil {
		if seconds <= 0 {
			return 0
		}
		return capRetryAfter(time.Duration(seconds) * time.Second)
	}
	if at, err := http.ParseTime(raw); err == nil {
		wait := time.Until(at)
		if wait <= 0 {
			return 0
		}
		return capRetryAfter(wait)
	}
	return 0
}

func capRetryAfter(wait time.Duration) time.Duration {
	if wait > maxRetryAfterWait {
		return maxRetryAfterWait
	}
	return wait
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func sanitizeSensitiveText(value, apiKey string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	if apiKey != "" {
		value = strings.ReplaceAll(value, apiKey, "REDACTED")
	}
	return apiKeyParamRegex.ReplaceAllString(value, "api_key=REDACTED")
}

func redactFeedURL(fullURL string) string {
	return apiKeyParamRegex.ReplaceAllString(fullURL, "api_key=REDACTED")
}

func abbreviateBody(raw []byte) string {
	body := strings.TrimSpace(string(raw))
	if len(body) <= abbreviatedBodyLen {
		return body
	}
	return body[:abbreviatedBodyLen] + "..."
}

func parseFeedTime(raw string) *time.Time {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil
	}
	layouts := []string{time.RFC3339, "2006-01-02 15:04:05"}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			v := parsed.UTC()
			return &v
		}
	}
	return nil
}
