// Package notifier delivers pool events to an external webhook, typically a
// chat integration or a push gateway. Delivery is best-effort: events are
// queued in memory and dropped when the consumer cannot keep up, never
// blocking the sync path that produced them.
package notifier

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/valyala/bytebufferpool"

	"github.com/pickemlabs/pickem-engine/internal/platform/logging"
	"github.com/pickemlabs/pickem-engine/internal/platform/resilience"
)

var errWebhookTransient = crerr.New("webhook transient failure")

const (
	defaultQueueSize      = 256
	defaultWebhookTimeout = 10 * time.Second
	maxErrorBodyBytes     = 4096
)

type WebhookConfig struct {
	TargetURL      string
	Token          string
	Timeout        time.Duration
	QueueSize      int
	CircuitBreaker resilience.CircuitBreakerConfig
}

// WebhookNotifier implements usecase.Broadcaster over an HTTP webhook.
type WebhookNotifier struct {
	client         *http.Client
	targetURL      string
	token          string
	logger         *logging.Logger
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool

	queue     chan queuedEvent
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	dropped   atomic.Int64
}

type queuedEvent struct {
	Topic   string
	Payload any
	At      time.Time
}

func NewWebhookNotifier(cfg WebhookConfig, logger *logging.Logger) (*WebhookNotifier, error) {
	if logger == nil {
		logger = logging.Default()
	}

	targetURL, err := validateWebhookURL(cfg.TargetURL)
	if err != nil {
		return nil, crerr.Wrap(err, "invalid webhook target url")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	breakerCfg := resilience.NormalizeCircuitBreakerConfig(cfg.CircuitBreaker)

	n := &WebhookNotifier{
		client:         &http.Client{Timeout: timeout},
		targetURL:      targetURL,
		token:          strings.TrimSpace(cfg.Token),
		logger:         logger,
		breaker:        resilience.NewCircuitBreaker(breakerCfg.FailureThreshold, breakerCfg.OpenTimeout, breakerCfg.HalfOpenMaxReq),
		circuitEnabled: breakerCfg.Enabled,
		queue:          make(chan queuedEvent, queueSize),
		done:           make(chan struct{}),
	}

	n.wg.Add(1)
	go n.deliverLoop()
	return n, nil
}

// Publish enqueues the event without blocking. Events published after Close,
// or while the queue is full, are counted and dropped.
func (n *WebhookNotifier) Publish(topic string, payload any) {
	event := queuedEvent{Topic: topic, Payload: payload, At: time.Now().UTC()}
	select {
	case <-n.done:
		n.dropped.Add(1)
	default:
		select {
		case n.queue <- event:
		default:
			n.dropped.Add(1)
		}
	}
}

// Dropped reports how many events were discarded because the queue was full
// or the notifier was closed.
func (n *WebhookNotifier) Dropped() int64 {
	return n.dropped.Load()
}

// Close stops the delivery loop after draining events already queued. The
// queue channel itself is never closed so a racing Publish cannot panic.
func (n *WebhookNotifier) Close() {
	n.closeOnce.Do(func() {
		close(n.done)
	})
	n.wg.Wait()
}

func (n *WebhookNotifier) deliverLoop() {
	defer n.wg.Done()

	for {
		select {
		case event := <-n.queue:
			n.deliverOne(event)
		case <-n.done:
			for {
				select {
				case event := <-n.queue:
					n.deliverOne(event)
				default:
					if dropped := n.dropped.Load(); dropped > 0 {
						n.logger.Debug("webhook notifier stopped", "dropped", dropped)
					}
					return
				}
			}
		}
	}
}

func (n *WebhookNotifier) deliverOne(event queuedEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), n.client.Timeout)
	defer cancel()
	if err := n.deliver(ctx, event); err != nil {
		n.logger.Warn("webhook delivery failed", "topic", event.Topic, "error", err)
	}
}

func (n *WebhookNotifier) deliver(ctx context.Context, event queuedEvent) error {
	if n.circuitEnabled {
		if err := n.breaker.Allow(); err != nil {
			return fmt.Errorf("webhook temporarily unavailable: %w", err)
		}
	}

	body, err := encodeEnvelope(event)
	if err != nil {
		return crerr.Wrap(err, "encode event payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.targetURL, strings.NewReader(body))
	if err != nil {
		return crerr.Wrap(err, "create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Pickem-Topic", event.Topic)
	if n.token != "" {
		req.Header.Set("Authorization", "Bearer "+n.token)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		callErr := fmt.Errorf("%w: post webhook topic=%s: %v", errWebhookTransient, event.Topic, err)
		n.recordCircuitResult(callErr)
		return callErr
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode/100 != 2 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		if isWebhookRetryableStatus(resp.StatusCode) {
			callErr := fmt.Errorf("%w: post webhook topic=%s status=%d body=%s",
				errWebhookTransient, event.Topic, resp.StatusCode, strings.TrimSpace(string(raw)))
			n.recordCircuitResult(callErr)
			return callErr
		}

		callErr := fmt.Errorf("post webhook topic=%s status=%d body=%s",
			event.Topic, resp.StatusCode, strings.TrimSpace(string(raw)))
		n.recordCircuitResult(callErr)
		return callErr
	}

	n.recordCircuitResult(nil)
	return nil
}

// encodeEnvelope writes {"topic":...,"sent_at":...,"payload":...} from a
// pooled buffer to keep the hot sync/broadcast path allocation-light.
func encodeEnvelope(event queuedEvent) (string, error) {
	payload, err := sonic.Marshal(event.Payload)
	if err != nil {
		return "", err
	}
	topic, err := sonic.Marshal(event.Topic)
	if err != nil {
		return "", err
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	_, _ = buf.WriteString(`{"topic":`)
	_, _ = buf.Write(topic)
	_, _ = buf.WriteString(`,"sent_at":`)
	_, _ = buf.WriteString(strconv.Quote(event.At.Format(time.RFC3339)))
	_, _ = buf.WriteString(`,"payload":`)
	_, _ = buf.Write(payload)
	_ = buf.WriteByte('}')

	return buf.String(), nil
}

func validateWebhookURL(raw string) (string, error) {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return "", crerr.New("value is empty")
	}

	parsed, err := url.Parse(candidate)
	if err != nil {
		return "", crerr.Wrapf(err, "parse %q", candidate)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", crerr.Newf("%q uses unsupported scheme=%q; expected http or https", candidate, parsed.Scheme)
	}
	if strings.TrimSpace(parsed.Host) == "" {
		return "", crerr.Newf("%q has empty host", candidate)
	}

	return strings.TrimRight(candidate, "/"), nil
}

func (n *WebhookNotifier) recordCircuitResult(err error) {
	if !n.circuitEnabled || n.breaker == nil {
		return
	}
	if err == nil {
		n.breaker.RecordSuccess()
		return
	}
	if stderrors.Is(err, errWebhookTransient) {
		n.breaker.RecordFailure()
		return
	}
	n.breaker.RecordSuccess()
}

func isWebhookRetryableStatus(statusCode int) bool {
	return statusCode == http.StatusRequestTimeout ||
		statusCode == http.StatusTooManyRequests ||
		statusCode >= http.StatusInternalServerError
}
