package collect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"vigil/internal/health"
	"vigil/internal/logging"
)

const (
	// lokiConnectTimeout is the maximum time to wait for a connection.
	lokiConnectTimeout = 3 * time.Second
	// lokiMaxRetryTime is the maximum time to retry a request.
	lokiMaxRetryTime = 10 * time.Second
)

// Loki counts log pattern matches per severity from a Loki-compatible
// log store.
type Loki struct {
	baseURL    *url.URL
	httpClient *http.Client
	log        *slog.Logger
}

// NewLoki creates a log collector with exponential backoff on network
// errors.
func NewLoki(baseURL string) (*Loki, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse loki URL: %w", err)
	}
	return &Loki{
		baseURL: u,
		httpClient: &http.Client{
			Transport: &retryRoundTripper{
				base: &http.Transport{
					DialContext: (&net.Dialer{Timeout: lokiConnectTimeout}).DialContext,
				},
				newBackoff: func() backoff.BackOff {
					return backoff.NewExponentialBackOff(
						backoff.WithInitialInterval(100*time.Millisecond),
						backoff.WithMaxInterval(1*time.Second),
						backoff.WithMaxElapsedTime(lokiMaxRetryTime),
					)
				},
			},
		},
		log: logging.Component("loki-collector"),
	}, nil
}

func (l *Loki) Source() health.Source { return health.SourceLogs }

// Fetch counts warning, error, and critical pattern matches for the team
// over the window.
func (l *Loki) Fetch(ctx context.Context, teamID string, window time.Duration) (health.Sample, error) {
	warnings, err := l.count(ctx, teamID, "warning", window)
	if err != nil {
		return nil, fmt.Errorf("%w: warning count: %v", ErrSourceUnavailable, err)
	}
	errs, err := l.count(ctx, teamID, "error", window)
	if err != nil {
		return nil, fmt.Errorf("%w: error count: %v", ErrSourceUnavailable, err)
	}
	criticals, err := l.count(ctx, teamID, "critical", window)
	if err != nil {
		return nil, fmt.Errorf("%w: critical count: %v", ErrSourceUnavailable, err)
	}

	return health.LogsSample{Warnings: warnings, Errors: errs, Criticals: criticals}, nil
}

// lokiResponse is the subset of the query API response we consume.
type lokiResponse struct {
	Status string `json:"status"`
	Data   struct {
		Result []struct {
			Value [2]any `json:"value"` // [timestamp, "count"]
		} `json:"result"`
	} `json:"data"`
}

func (l *Loki) count(ctx context.Context, teamID, severity string, window time.Duration) (int, error) {
	query := fmt.Sprintf(`sum(count_over_time({team=%q,severity=%q}[%s]))`,
		teamID, severity, window.Truncate(time.Second))

	u := l.baseURL.JoinPath("/loki/api/v1/query")
	q := u.Query()
	q.Set("query", query)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("query logs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("query logs: unexpected status %s", resp.Status)
	}

	var parsed lokiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("decode log query response: %w", err)
	}
	if parsed.Status != "success" {
		return 0, fmt.Errorf("query logs: status %q", parsed.Status)
	}

	total := 0
	for _, r := range parsed.Data.Result {
		raw, ok := r.Value[1].(string)
		if !ok {
			return 0, fmt.Errorf("decode log count: non-string value %v", r.Value[1])
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, fmt.Errorf("decode log count %q: %w", raw, err)
		}
		total += int(f)
	}
	return total, nil
}

// retryRoundTripper retries requests on transient network errors using a
// fresh backoff per request. Non-network errors are permanent.
type retryRoundTripper struct {
	base       http.RoundTripper
	newBackoff func() backoff.BackOff
}

func (rt *retryRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	attempt := func() (*http.Response, error) {
		resp, err := rt.base.RoundTrip(req)
		if err != nil {
			var opErr *net.OpError
			if errors.As(err, &opErr) {
				slog.Debug("retrying telemetry request after network error", "url", req.URL.Path, "err", err)
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		return resp, nil
	}
	boff := backoff.WithContext(rt.newBackoff(), req.Context())
	return backoff.RetryWithData(attempt, boff)
}
