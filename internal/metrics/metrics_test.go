package metrics_test

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"slackscribe/internal/metrics"
)

func TestRecorderCountsAndExposes(t *testing.T) {
	rec := metrics.New()
	rec.Event(metrics.OutcomeProcessed)
	rec.Event(metrics.OutcomeDuplicate)
	rec.Event(metrics.OutcomeDuplicate)
	rec.Asset("done", "")
	rec.Asset("failed", "auth")
	rec.Pipeline("canvas", 2*time.Second)
	rec.Publish("zoho", nil)
	rec.Publish("slack", errors.New("boom"))
	rec.LedgerExpired(3)
	rec.LedgerExpired(0)

	count, err := testutil.GatherAndCount(rec.Registry(), "slackscribe_events_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 event series, got %d", count)
	}

	srv := httptest.NewServer(rec.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	text := string(body)

	for _, want := range []string{
		`slackscribe_events_total{outcome="duplicate"} 2`,
		`slackscribe_events_total{outcome="processed"} 1`,
		`slackscribe_assets_total{error_kind="auth",status="failed"} 1`,
		`slackscribe_publish_total{outcome="error",publisher="slack"} 1`,
		`slackscribe_ledger_expired_total 3`,
		`slackscribe_pipeline_seconds_count{kind="canvas"} 1`,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("exposition missing %q\n%s", want, text)
		}
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	var rec *metrics.Recorder
	rec.Event(metrics.OutcomeFailed)
	rec.Asset("done", "")
	rec.AssetStarted()
	rec.AssetFinished()
	rec.Pipeline("audio", time.Second)
	rec.Publish("zoho", nil)
	rec.LedgerExpired(1)
	if rec.Registry() != nil {
		t.Fatal("expected nil registry")
	}
}
