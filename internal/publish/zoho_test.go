package publish_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"slackscribe/internal/publish"
	"slackscribe/internal/result"
	"slackscribe/internal/services"
)

type zohoFake struct {
	mu           sync.Mutex
	tokenCalls   int
	validToken   string
	searchResult map[string]string
	created      []map[string]any
	comments     map[string][]string
	rejectFirst  bool
}

func (f *zohoFake) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		if r.URL.Path == "/oauth/v2/token" {
			if err := r.ParseForm(); err != nil {
				t.Fatalf("parse token form: %v", err)
			}
			if r.PostForm.Get("grant_type") != "refresh_token" || r.PostForm.Get("refresh_token") != "refresh" {
				t.Fatalf("unexpected token form %v", r.PostForm)
			}
			f.tokenCalls++
			_ = json.NewEncoder(w).Encode(map[string]any{"access_token": f.validToken, "expires_in": 3600})
			return
		}

		if r.Header.Get("orgId") != "org-1" {
			t.Fatalf("missing orgId header")
		}
		if r.Header.Get("Authorization") != "Zoho-oauthtoken "+f.validToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		switch {
		case r.URL.Path == "/api/v1/tickets/search":
			q := r.URL.Query()
			key := "email:" + q.Get("email")
			if q.Get("phone") != "" {
				key = "phone:" + q.Get("phone")
			}
			id, ok := f.searchResult[key]
			if !ok {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{{"id": id, "subject": "prior"}}})
		case r.URL.Path == "/api/v1/tickets" && r.Method == http.MethodPost:
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			f.created = append(f.created, body)
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, `{"id": 900100, "ticketNumber": "101"}`)
		case strings.HasSuffix(r.URL.Path, "/comments"):
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/v1/tickets/"), "/comments")
			if f.comments == nil {
				f.comments = map[string][]string{}
			}
			f.comments[id] = append(f.comments[id], body["content"].(string))
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, `{"id": "c1"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func newZoho(t *testing.T, fake *zohoFake, cfg publish.ZohoConfig) *publish.Zoho {
	t.Helper()
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)
	cfg.OrgID = "org-1"
	cfg.AccountsURL = srv.URL
	z, err := publish.NewZoho(cfg, publish.WithZohoBaseURL(srv.URL), publish.WithZohoHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewZoho: %v", err)
	}
	return z
}

func TestZohoCreatesTicketWhenNoMatch(t *testing.T) {
	fake := &zohoFake{validToken: "fresh"}
	z := newZoho(t, fake, publish.ZohoConfig{RefreshToken: "refresh", ClientID: "id", ClientSecret: "secret", DepartmentID: "dep"})

	combined := result.Combined{
		SourceID:       "F1",
		CanvasID:       "F1",
		CanvasText:     strings.Repeat("x", 1200),
		Transcripts:    []result.Transcript{{Index: 0, Text: "call me at 555-123-4567"}},
		SucceededCount: 1,
	}
	receipt, err := z.Publish(context.Background(), publish.Request{
		SourceID: "F1", FileName: "Intake", ChannelID: "C1", UserID: "U1", Timestamp: "1.2", Result: combined,
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if receipt.TicketID != "900100" || !receipt.TicketCreated {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
	if fake.tokenCalls != 1 {
		t.Fatalf("expected one token refresh, got %d", fake.tokenCalls)
	}
	if len(fake.created) != 1 {
		t.Fatalf("expected one ticket, got %d", len(fake.created))
	}
	created := fake.created[0]
	if created["subject"] != "Canvas File with Audio - Intake" || created["departmentId"] != "dep" || created["phone"] != "555-123-4567" {
		t.Fatalf("unexpected ticket payload %v", created)
	}
	desc, _ := created["description"].(string)
	if !strings.Contains(desc, strings.Repeat("x", 1000)+"...") || strings.Contains(desc, strings.Repeat("x", 1001)) {
		t.Fatalf("canvas content not truncated to 1000: %d chars", len(desc))
	}
	if !strings.Contains(desc, "Audio Transcripts (1 audio files):\ncall me at 555-123-4567") {
		t.Fatalf("description missing transcripts: %s", desc)
	}
}

func TestZohoCommentsOnExistingTicket(t *testing.T) {
	fake := &zohoFake{validToken: "static", searchResult: map[string]string{"phone:555-123-4567": "555"}}
	z := newZoho(t, fake, publish.ZohoConfig{AccessToken: "static"})

	combined := result.Combined{Transcripts: []result.Transcript{{Text: "my number is 555-123-4567"}}, SucceededCount: 1}
	receipt, err := z.Publish(context.Background(), publish.Request{SourceID: "F2", Result: combined})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if receipt.TicketID != "555" || receipt.TicketCreated {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
	if got := fake.comments["555"]; len(got) != 1 || !strings.Contains(got[0], "my number is") {
		t.Fatalf("unexpected comments %v", fake.comments)
	}
	if fake.tokenCalls != 0 {
		t.Fatalf("static token should not refresh, got %d calls", fake.tokenCalls)
	}
}

func TestZohoRefreshesOnUnauthorized(t *testing.T) {
	fake := &zohoFake{validToken: "fresh"}
	z := newZoho(t, fake, publish.ZohoConfig{AccessToken: "expired", RefreshToken: "refresh"})

	combined := result.Combined{Transcripts: []result.Transcript{{Text: "hello"}}, SucceededCount: 1}
	receipt, err := z.Publish(context.Background(), publish.Request{SourceID: "F3", FileName: "memo.m4a", Result: combined})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if receipt.TicketID == "" || fake.tokenCalls != 1 {
		t.Fatalf("expected refresh then create, receipt=%+v tokenCalls=%d", receipt, fake.tokenCalls)
	}
	if fake.created[0]["subject"] != "Voice Message from Slack - memo.m4a" {
		t.Fatalf("unexpected subject %v", fake.created[0]["subject"])
	}
}

func TestZohoUnauthorizedWithoutRefreshIsAuthError(t *testing.T) {
	fake := &zohoFake{validToken: "other"}
	z := newZoho(t, fake, publish.ZohoConfig{AccessToken: "bad"})

	combined := result.Combined{Transcripts: []result.Transcript{{Text: "hello"}}, SucceededCount: 1}
	_, err := z.Publish(context.Background(), publish.Request{Result: combined})
	if !errors.Is(err, services.ErrAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
}

func TestZohoSkipsEmptyRuns(t *testing.T) {
	fake := &zohoFake{validToken: "static"}
	z := newZoho(t, fake, publish.ZohoConfig{AccessToken: "static"})

	receipt, err := z.Publish(context.Background(), publish.Request{Result: result.Failure("F4", "auth", "denied")})
	if err != nil || receipt.TicketID != "" || len(fake.created) != 0 {
		t.Fatalf("expected skip, receipt=%+v err=%v", receipt, err)
	}
}

func TestNewZohoRequiresCredentials(t *testing.T) {
	if _, err := publish.NewZoho(publish.ZohoConfig{OrgID: "org"}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if _, err := publish.NewZoho(publish.ZohoConfig{AccessToken: "x"}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
