package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"slackscribe/internal/api"
)

func TestDaemonBaseURL(t *testing.T) {
	cases := []struct {
		bind    string
		want    string
		wantErr bool
	}{
		{bind: "0.0.0.0:8000", want: "http://127.0.0.1:8000"},
		{bind: ":9000", want: "http://127.0.0.1:9000"},
		{bind: "[::]:8080", want: "http://127.0.0.1:8080"},
		{bind: "10.0.0.5:8000", want: "http://10.0.0.5:8000"},
		{bind: "127.0.0.1:0", wantErr: true},
		{bind: "nonsense", wantErr: true},
	}
	for _, tc := range cases {
		got, err := daemonBaseURL(tc.bind)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%s: expected error, got %q", tc.bind, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.bind, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got %q want %q", tc.bind, got, tc.want)
		}
	}
}

func TestStatusWithoutDaemonReadsLedgerDirectly(t *testing.T) {
	env := setupCLITestEnv(t)
	seedLedger(t, env.cfg, "Ev1", time.Time{})

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== System Status ==")
	requireContains(t, out, "Config:")
	requireContains(t, out, env.configPath)
	requireContains(t, out, "Daemon:")
	requireContains(t, out, "Work directory:")
	requireContains(t, out, "== Dependencies ==")
	requireContains(t, out, "sqlite (direct)")
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("expected no ANSI colour in buffered output: %q", out)
	}
}

func TestStatusUsesRunningDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	const token = "operator-secret"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/status" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(api.DaemonStatus{
			Running:      true,
			PID:          4242,
			LedgerDriver: "sqlite",
			Ledger:       api.LedgerStats{Total: 7, Completed: 7},
		})
	}))
	t.Cleanup(srv.Close)

	env.cfg.Server.Bind = strings.TrimPrefix(srv.URL, "http://")
	env.cfg.Server.APIToken = token
	writeTestConfig(t, env.configPath, env.cfg)

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Running (pid 4242)")
	requireContains(t, out, "sqlite (daemon)")
	requireContains(t, out, "7")
}

func TestStatusReportsRejectedToken(t *testing.T) {
	env := setupCLITestEnv(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	env.cfg.Server.Bind = strings.TrimPrefix(srv.URL, "http://")
	writeTestConfig(t, env.configPath, env.cfg)

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "operator API rejected server.api_token")
}
