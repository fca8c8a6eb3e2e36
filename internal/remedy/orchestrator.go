// Package remedy implements the outbound remediation adapters: the
// orchestration system's HTTP API and a direct Docker Engine fallback.
package remedy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"vigil/internal/escalate"
)

// orchestratorTimeout bounds one remediation call. Remediation is not
// idempotent, so calls are never retried here; failures bubble up to the
// escalation controller instead.
const orchestratorTimeout = 30 * time.Second

var _ escalate.Remediator = (*Orchestrator)(nil)

// Orchestrator talks to the external deployment/orchestration API.
type Orchestrator struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// NewOrchestrator creates an adapter for the orchestrator at baseURL.
func NewOrchestrator(baseURL string) (*Orchestrator, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse orchestrator URL: %w", err)
	}
	return &Orchestrator{
		baseURL:    u,
		httpClient: &http.Client{Timeout: orchestratorTimeout},
	}, nil
}

func (o *Orchestrator) Restart(ctx context.Context, teamID, mode string) error {
	return o.post(ctx, teamID, "restart", map[string]any{"mode": mode})
}

func (o *Orchestrator) SwitchEnvironment(ctx context.Context, teamID, target string) error {
	return o.post(ctx, teamID, "switch", map[string]any{"target": target})
}

func (o *Orchestrator) Scale(ctx context.Context, teamID string, delta int) error {
	return o.post(ctx, teamID, "scale", map[string]any{"delta": delta})
}

func (o *Orchestrator) HealthyInstances(ctx context.Context, teamID string) (int, error) {
	u := o.baseURL.JoinPath("/api/v1/teams", teamID, "instances")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("create instances request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("query instances for %q: %w", teamID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("query instances for %q: unexpected status %s", teamID, resp.Status)
	}

	var parsed struct {
		Healthy int `json:"healthy"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("decode instances response: %w", err)
	}
	return parsed.Healthy, nil
}

func (o *Orchestrator) post(ctx context.Context, teamID, action string, body map[string]any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", action, err)
	}

	u := o.baseURL.JoinPath("/api/v1/teams", teamID, action)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s team %q: %w", action, teamID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s team %q: status %s: %s", action, teamID, resp.Status, bytes.TrimSpace(msg))
	}
	return nil
}
