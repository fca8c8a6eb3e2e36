package remedy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type recordedRequest struct {
	method string
	path   string
	body   map[string]any
}

func orchestratorServer(t *testing.T, status int, respond string) (*Orchestrator, *[]recordedRequest) {
	t.Helper()
	var reqs []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{method: r.Method, path: r.URL.Path}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&rec.body)
		}
		reqs = append(reqs, rec)
		w.WriteHeader(status)
		fmt.Fprint(w, respond)
	}))
	t.Cleanup(srv.Close)

	o, err := NewOrchestrator(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	return o, &reqs
}

func TestRestartPostsMode(t *testing.T) {
	o, reqs := orchestratorServer(t, http.StatusAccepted, "")
	if err := o.Restart(context.Background(), "payments", "graceful"); err != nil {
		t.Fatal(err)
	}

	req := (*reqs)[0]
	if req.method != http.MethodPost || req.path != "/api/v1/teams/payments/restart" {
		t.Fatalf("request = %s %s", req.method, req.path)
	}
	if req.body["mode"] != "graceful" {
		t.Fatalf("body = %v", req.body)
	}
}

func TestSwitchEnvironmentPostsTarget(t *testing.T) {
	o, reqs := orchestratorServer(t, http.StatusOK, "")
	if err := o.SwitchEnvironment(context.Background(), "payments", "green"); err != nil {
		t.Fatal(err)
	}

	req := (*reqs)[0]
	if req.path != "/api/v1/teams/payments/switch" || req.body["target"] != "green" {
		t.Fatalf("request = %+v", req)
	}
}

func TestHealthyInstances(t *testing.T) {
	o, reqs := orchestratorServer(t, http.StatusOK, `{"healthy": 4}`)
	n, err := o.HealthyInstances(context.Background(), "payments")
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Fatalf("healthy = %d, want 4", n)
	}
	if req := (*reqs)[0]; req.method != http.MethodGet || req.path != "/api/v1/teams/payments/instances" {
		t.Fatalf("request = %s %s", req.method, req.path)
	}
}

func TestErrorStatusCarriesBody(t *testing.T) {
	o, _ := orchestratorServer(t, http.StatusConflict, "deploy in progress")
	err := o.Restart(context.Background(), "payments", "container")
	if err == nil {
		t.Fatal("expected error for 409 response")
	}
	if !strings.Contains(err.Error(), "deploy in progress") {
		t.Fatalf("error %q does not carry the response body", err)
	}
}

func TestInvalidBaseURL(t *testing.T) {
	if _, err := NewOrchestrator("://not-a-url"); err == nil {
		t.Fatal("expected parse error")
	}
}
