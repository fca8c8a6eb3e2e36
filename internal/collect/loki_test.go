package collect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"vigil/internal/health"
)

func lokiHandler(t *testing.T, counts map[string]int) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/loki/api/v1/query" {
			t.Errorf("unexpected path %q", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		query := r.URL.Query().Get("query")

		count := 0
		for severity, c := range counts {
			if strings.Contains(query, fmt.Sprintf("severity=%q", severity)) {
				count = c
				break
			}
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "success",
			"data": map[string]any{
				"result": []map[string]any{
					{"value": []any{1700000000.0, fmt.Sprintf("%d", count)}},
				},
			},
		})
	}
}

func TestLokiFetchCountsPerSeverity(t *testing.T) {
	srv := httptest.NewServer(lokiHandler(t, map[string]int{
		"warning":  7,
		"error":    2,
		"critical": 1,
	}))
	defer srv.Close()

	l, err := NewLoki(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if l.Source() != health.SourceLogs {
		t.Fatalf("source = %v, want logs", l.Source())
	}

	sample, err := l.Fetch(context.Background(), "payments", 5*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	logs := sample.(health.LogsSample)
	if logs.Warnings != 7 || logs.Errors != 2 || logs.Criticals != 1 {
		t.Fatalf("sample = %+v, want 7/2/1", logs)
	}
}

func TestLokiFetchQueryCarriesTeamAndWindow(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "success",
			"data":   map[string]any{"result": []any{}},
		})
	}))
	defer srv.Close()

	l, err := NewLoki(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := l.Fetch(context.Background(), "payments", 5*time.Minute); err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(gotQuery, `team="payments"`) {
		t.Fatalf("query %q missing team selector", gotQuery)
	}
	if !strings.Contains(gotQuery, "[5m0s]") {
		t.Fatalf("query %q missing window", gotQuery)
	}
}

func TestLokiServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	l, err := NewLoki(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := l.Fetch(context.Background(), "payments", time.Minute); !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("err = %v, want ErrSourceUnavailable", err)
	}
}

func TestLokiFailedQueryStatusIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "error"})
	}))
	defer srv.Close()

	l, err := NewLoki(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := l.Fetch(context.Background(), "payments", time.Minute); !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("err = %v, want ErrSourceUnavailable", err)
	}
}
