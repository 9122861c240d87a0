// Package forward implements the dashboard forwarder: the outbound client
// that relays accepted, normalized submissions to the external dashboard
// service.
//
// Forwarding is best-effort. The submission is already durable locally
// before Forward is called; delivery failures are classified, retried
// with exponential backoff and jitter, recorded as diagnostic attempt
// rows, and finally absorbed. The client-facing request never fails
// because the dashboard is unreachable.
package forward

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-ingest-gateway/internal/config"
	"github.com/tbourn/go-ingest-gateway/internal/domain"
	"github.com/tbourn/go-ingest-gateway/internal/repo"
)

// Attempt outcome labels, persisted on ForwardingAttempt rows.
const (
	outcomeSuccess   = "success"
	outcomeRetryable = "retryable"
	outcomePermanent = "permanent"
)

var (
	// fwdAttempts counts individual delivery attempts by outcome.
	fwdAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forwarding_attempts_total",
			Help: "Total number of dashboard delivery attempts.",
		},
		[]string{"outcome"},
	)

	// fwdDuration records per-attempt latency in seconds.
	fwdDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "forwarding_duration_seconds",
			Help:    "Duration of dashboard delivery attempts in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(fwdAttempts, fwdDuration)
}

// Result is the terminal outcome of the forwarding pipeline for one
// submission, surfaced to the caller inside the 200 response body.
type Result struct {
	// Status is the final forwarding status: forwarded, failed or
	// not_attempted.
	Status string
	// ExternalID is the dashboard-assigned identifier, set on success.
	ExternalID *string
	// StatusCode is the HTTP status of the last attempt, 0 when the
	// request never reached the dashboard.
	StatusCode int
	// Attempts is the number of delivery attempts made.
	Attempts int
	// Body is the decoded dashboard response on success, echoed back to
	// the caller as external_response.
	Body map[string]any
}

// Client relays submissions to the external dashboard. It is safe for
// concurrent use; configuration is immutable after construction.
type Client struct {
	cfg  config.DashboardConfig
	db   *gorm.DB
	http *http.Client
}

// NewClient builds a forwarder from the injected dashboard configuration.
// The underlying http.Client enforces the per-attempt timeout so a slow
// dashboard cannot hold a request-handling goroutine indefinitely.
func NewClient(cfg config.DashboardConfig, db *gorm.DB) *Client {
	return &Client{
		cfg: cfg,
		db:  db,
		http: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Configured reports whether a dashboard endpoint is configured.
func (c *Client) Configured() bool { return c.cfg.Configured() }

// outboundPayload is the wire shape sent to the dashboard.
type outboundPayload struct {
	ID         string         `json:"id"`
	FormType   string         `json:"form_type"`
	Payload    map[string]any `json:"payload"`
	ReceivedAt time.Time      `json:"received_at"`
}

// Forward delivers one already-persisted submission to the dashboard,
// records every attempt, and writes the submission's final forwarding
// status exactly once. It never returns an error: delivery failure is a
// Result with Status "failed", not a reason to fail the ingest request.
//
// The caller must pass a context detached from the client request (the
// submission is committed; a client disconnect must not cancel delivery).
func (c *Client) Forward(ctx context.Context, sub *domain.Submission, record map[string]any) Result {
	if !c.Configured() {
		return Result{Status: domain.ForwardingNotAttempted}
	}

	body, err := json.Marshal(outboundPayload{
		ID:         sub.ID,
		FormType:   sub.FormType,
		Payload:    record,
		ReceivedAt: sub.ReceivedAt,
	})
	if err != nil {
		// Normalized records are JSON-serializable by construction; treat
		// this as a permanent failure rather than panicking mid-pipeline.
		c.finish(ctx, sub, Result{Status: domain.ForwardingFailed})
		return Result{Status: domain.ForwardingFailed}
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = c.cfg.BackoffBase
	expo.MaxInterval = c.cfg.BackoffMax

	attemptNo := 0
	op := func() (Result, error) {
		attemptNo++
		res, outcome, attErr := c.attempt(ctx, sub, attemptNo, body)
		res.Attempts = attemptNo

		switch outcome {
		case outcomeSuccess:
			return res, nil
		case outcomePermanent:
			return res, backoff.Permanent(attErr)
		default:
			return res, attErr
		}
	}

	res, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(uint(c.cfg.MaxAttempts)),
	)
	if err != nil {
		res = Result{Status: domain.ForwardingFailed, Attempts: attemptNo}
	}

	c.finish(ctx, sub, res)
	return res
}

// attempt performs a single delivery try and records its diagnostic row.
func (c *Client) attempt(ctx context.Context, sub *domain.Submission, attemptNo int, body []byte) (Result, string, error) {
	url := fmt.Sprintf("%s/api/v1/leads/%s", c.cfg.BaseURL, sub.FormType)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		c.record(ctx, sub.ID, attemptNo, outcomePermanent, nil, err, 0)
		return Result{Status: domain.ForwardingFailed}, outcomePermanent, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	latency := time.Since(start)
	fwdDuration.Observe(latency.Seconds())

	if err != nil {
		// Transport error or timeout: retryable.
		c.record(ctx, sub.ID, attemptNo, outcomeRetryable, nil, err, latency)
		return Result{Status: domain.ForwardingFailed}, outcomeRetryable, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		res := Result{
			Status:     domain.ForwardingForwarded,
			StatusCode: resp.StatusCode,
		}
		if decoded := decodeBody(resp.Body); decoded != nil {
			res.Body = decoded
			res.ExternalID = externalID(decoded)
		}
		c.record(ctx, sub.ID, attemptNo, outcomeSuccess, &resp.StatusCode, nil, latency)
		return res, outcomeSuccess, nil

	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		err := fmt.Errorf("dashboard returned %d", resp.StatusCode)
		c.record(ctx, sub.ID, attemptNo, outcomeRetryable, &resp.StatusCode, err, latency)
		return Result{Status: domain.ForwardingFailed, StatusCode: resp.StatusCode}, outcomeRetryable, err

	default:
		// Remaining 4xx: the dashboard rejected this record; retrying the
		// same payload cannot succeed.
		err := fmt.Errorf("dashboard rejected with %d", resp.StatusCode)
		c.record(ctx, sub.ID, attemptNo, outcomePermanent, &resp.StatusCode, err, latency)
		return Result{Status: domain.ForwardingFailed, StatusCode: resp.StatusCode}, outcomePermanent, err
	}
}

// finish writes the terminal forwarding status for the submission. The
// repo-level guard keeps the transition monotonic; a zero-row update means
// the status was already terminal and is only worth a warning.
func (c *Client) finish(ctx context.Context, sub *domain.Submission, res Result) {
	if err := repo.UpdateForwardingStatus(ctx, c.db, sub.ID, res.Status, res.ExternalID); err != nil {
		log.Warn().
			Err(err).
			Str("submission_id", sub.ID).
			Str("status", res.Status).
			Msg("forwarding status not updated")
	}
}

// record persists one diagnostic attempt row; failures to do so are logged
// and otherwise ignored (diagnostics never block delivery).
func (c *Client) record(ctx context.Context, submissionID string, attemptNo int, outcome string, statusCode *int, attErr error, latency time.Duration) {
	fwdAttempts.WithLabelValues(outcome).Inc()

	att := &domain.ForwardingAttempt{
		SubmissionID:  submissionID,
		AttemptNumber: attemptNo,
		Outcome:       outcome,
		StatusCode:    statusCode,
		LatencyMS:     latency.Milliseconds(),
	}
	if attErr != nil {
		msg := attErr.Error()
		att.Error = &msg
	}
	if err := repo.CreateAttempt(ctx, c.db, att); err != nil {
		log.Warn().Err(err).Str("submission_id", submissionID).Msg("attempt row not recorded")
	}
}

// decodeBody parses a JSON object response, returning nil on anything else.
func decodeBody(r io.Reader) map[string]any {
	var out map[string]any
	dec := json.NewDecoder(io.LimitReader(r, 64<<10))
	if err := dec.Decode(&out); err != nil {
		return nil
	}
	return out
}

// externalID extracts the dashboard-assigned identifier from a response
// body, tolerating the id key spellings seen across dashboard versions.
func externalID(body map[string]any) *string {
	for _, key := range []string{"id", "external_id", "lead_id"} {
		v, ok := body[key]
		if !ok {
			continue
		}
		switch id := v.(type) {
		case string:
			if id != "" {
				return &id
			}
		case float64:
			s := strconv.FormatInt(int64(id), 10)
			return &s
		}
	}
	return nil
}
