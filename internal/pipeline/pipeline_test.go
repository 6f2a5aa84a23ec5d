package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"slackscribe/internal/canvas"
	"slackscribe/internal/ingest"
	"slackscribe/internal/ledger"
	"slackscribe/internal/orchestrator"
	"slackscribe/internal/pipeline"
	"slackscribe/internal/publish"
	"slackscribe/internal/services"
	"slackscribe/internal/services/slack"
)

const canvasBlocks = `{"ok": true, "canvas": {"blocks": [
  {"type": "header", "text": {"type": "plain_text", "text": "Intake call"}},
  {"type": "file", "file": {"url_private_download": "https://files.slack.com/files-pri/T1-F1/download/one.m4a"}},
  {"type": "rich_text", "elements": [{"type": "rich_text_section", "elements": [
    {"type": "link", "url": "https://files.slack.com/files-pri/T1-F2/download/two.mp3"},
    {"type": "link", "url": "https://files.slack.com/files-pri/T1-F3/download/three.wav"}
  ]}]}
]}}`

type stubCanvas struct {
	blocks    string
	blocksErr error
	file      slack.File
	fileErr   error
	body      string
	fileCalls atomic.Int32
}

func (s *stubCanvas) CanvasBlocks(context.Context, string, string) ([]byte, error) {
	if s.blocksErr != nil {
		return nil, s.blocksErr
	}
	return []byte(s.blocks), nil
}

func (s *stubCanvas) FileInfo(context.Context, string, string) (slack.File, error) {
	s.fileCalls.Add(1)
	return s.file, s.fileErr
}

func (s *stubCanvas) FetchBody(context.Context, string, string, int64) ([]byte, error) {
	if s.body == "" {
		return nil, services.Wrap(services.ErrNotFound, "slack", "fetch", "gone", nil)
	}
	return []byte(s.body), nil
}

// stubAssets transcribes every ref as its URL basename and fails refs whose
// URL contains "fail".
type stubAssets struct {
	mu    sync.Mutex
	calls int
	refs  [][]canvas.AssetRef
}

func (s *stubAssets) Process(_ context.Context, refs []canvas.AssetRef, _ string) []orchestrator.Asset {
	s.mu.Lock()
	s.calls++
	s.refs = append(s.refs, refs)
	s.mu.Unlock()

	assets := make([]orchestrator.Asset, len(refs))
	for i, ref := range refs {
		assets[i] = orchestrator.Asset{Index: i, SourceURL: ref.URL, FileID: ref.FileID, Status: orchestrator.StatusDone}
		if strings.Contains(ref.URL, "fail") {
			assets[i].Status = orchestrator.StatusFailed
			assets[i].ErrorKind = "transport"
			continue
		}
		name := ref.FileID
		if u, err := url.Parse(ref.URL); err == nil && ref.URL != "" {
			name = u.Path[strings.LastIndex(u.Path, "/")+1:]
		}
		assets[i].Transcript = "text of " + name
	}
	return assets
}

func (s *stubAssets) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubPublisher struct {
	mu       sync.Mutex
	requests []publish.Request
}

func (s *stubPublisher) Publish(_ context.Context, req publish.Request) (publish.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	return publish.Receipt{TicketID: "T-1"}, nil
}

type harness struct {
	pipeline  *pipeline.Pipeline
	ledger    *ledger.MemoryStore
	canvas    *stubCanvas
	assets    *stubAssets
	publisher *stubPublisher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		ledger:    ledger.NewMemory(),
		canvas:    &stubCanvas{blocks: canvasBlocks},
		assets:    &stubAssets{},
		publisher: &stubPublisher{},
	}
	p, err := pipeline.New(pipeline.Options{
		Ledger:    h.ledger,
		Canvas:    h.canvas,
		Assets:    h.assets,
		Publisher: h.publisher,
	})
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	h.pipeline = p
	return h
}

func directPayload(fileType string) []byte {
	return []byte(fmt.Sprintf(`{"file_type":%q,"file_id":"F100","auth_token":"xoxb-1","user_id":"U1","channel_id":"C1","timestamp":"1700000000.000100","file_url":"https://files.slack.com/files-pri/T1-F100/download/memo.%s"}`, fileType, fileType))
}

const canvasPayload = `{"file_type":"canvas","file_id":"FCANVAS","auth_token":"xoxb-1","user_id":"U1","channel_id":"C1","timestamp":"1700000000.000200"}`

func TestHandleDirectAudio(t *testing.T) {
	h := newHarness(t)
	out := h.pipeline.Handle(context.Background(), directPayload("m4a"), "application/json")
	if out.Kind != pipeline.OutcomeProcessed {
		t.Fatalf("expected processed, got %v (%v)", out.Kind, out.Err)
	}
	if out.Result.SucceededCount != 1 || out.Result.Transcripts[0].Text != "text of memo.m4a" {
		t.Fatalf("unexpected result %+v", out.Result)
	}
	if out.Receipt.TicketID != "T-1" || len(h.publisher.requests) != 1 {
		t.Fatalf("expected one publication, receipt=%+v", out.Receipt)
	}
	if out.CorrelationID == "" {
		t.Fatal("expected correlation id")
	}
	entry, err := h.ledger.Get(context.Background(), out.Fingerprint)
	if err != nil || entry.Status != ledger.StatusCompleted {
		t.Fatalf("expected completed ledger entry, got %+v err=%v", entry, err)
	}
	if ref := h.assets.refs[0][0]; ref.ExtensionHint != "m4a" || ref.FileID != "F100" {
		t.Fatalf("unexpected asset ref %+v", ref)
	}
}

func TestHandleIsIdempotentSequentially(t *testing.T) {
	h := newHarness(t)
	first := h.pipeline.Handle(context.Background(), directPayload("mp3"), "application/json")
	second := h.pipeline.Handle(context.Background(), directPayload("mp3"), "application/json")

	if first.Kind != pipeline.OutcomeProcessed || second.Kind != pipeline.OutcomeDuplicate {
		t.Fatalf("unexpected kinds %v then %v", first.Kind, second.Kind)
	}
	if second.Prior == nil || second.Prior.Status != ledger.StatusCompleted {
		t.Fatalf("expected prior completed entry, got %+v", second.Prior)
	}
	if second.PriorResult == nil || second.PriorResult.SucceededCount != 1 {
		t.Fatalf("expected prior result summary, got %+v", second.PriorResult)
	}
	if h.assets.callCount() != 1 || len(h.publisher.requests) != 1 {
		t.Fatalf("expected exactly one run and one publication, runs=%d pubs=%d", h.assets.callCount(), len(h.publisher.requests))
	}
}

func TestHandleIsIdempotentConcurrently(t *testing.T) {
	h := newHarness(t)
	const workers = 12
	var processed, duplicates atomic.Int32
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out := h.pipeline.Handle(context.Background(), []byte(canvasPayload), "application/json")
			switch out.Kind {
			case pipeline.OutcomeProcessed:
				processed.Add(1)
			case pipeline.OutcomeDuplicate:
				duplicates.Add(1)
			}
		}()
	}
	wg.Wait()
	if processed.Load() != 1 || duplicates.Load() != workers-1 {
		t.Fatalf("expected 1 processed and %d duplicates, got %d/%d", workers-1, processed.Load(), duplicates.Load())
	}
	if h.assets.callCount() != 1 {
		t.Fatalf("expected one orchestrator run, got %d", h.assets.callCount())
	}
}

func TestHandleCanvasPreservesOrderAndText(t *testing.T) {
	h := newHarness(t)
	out := h.pipeline.Handle(context.Background(), []byte(canvasPayload), "application/json")
	if out.Kind != pipeline.OutcomeProcessed {
		t.Fatalf("expected processed, got %v (%v)", out.Kind, out.Err)
	}
	want := []string{"text of one.m4a", "text of two.mp3", "text of three.wav"}
	if len(out.Result.Transcripts) != len(want) {
		t.Fatalf("expected %d transcripts, got %+v", len(want), out.Result.Transcripts)
	}
	for i, text := range want {
		if out.Result.Transcripts[i].Text != text || out.Result.Transcripts[i].Index != i {
			t.Fatalf("transcript %d = %+v, want %q", i, out.Result.Transcripts[i], text)
		}
	}
	if !strings.Contains(out.Result.CanvasText, "Intake call") || out.Result.CanvasID != "FCANVAS" {
		t.Fatalf("unexpected canvas text %q", out.Result.CanvasText)
	}
}

func TestHandleDegenerateCanvas(t *testing.T) {
	h := newHarness(t)
	h.canvas.blocks = `{"ok": true, "canvas": {"blocks": [{"type": "header", "text": {"type": "plain_text", "text": "Just notes"}}]}}`
	out := h.pipeline.Handle(context.Background(), []byte(canvasPayload), "application/json")
	if out.Kind != pipeline.OutcomeProcessed {
		t.Fatalf("expected processed, got %v", out.Kind)
	}
	if out.Result.Transcripts == nil || len(out.Result.Transcripts) != 0 || out.Result.CanvasText != "Just notes" {
		t.Fatalf("unexpected degenerate result %+v", out.Result)
	}
	entry, _ := h.ledger.Get(context.Background(), out.Fingerprint)
	if entry.Status != ledger.StatusCompleted {
		t.Fatalf("degenerate canvas should complete, got %s", entry.Status)
	}
}

func TestHandleCanvasFetchFallsBackToText(t *testing.T) {
	h := newHarness(t)
	h.canvas.blocksErr = services.Wrap(services.ErrAuth, "slack", "canvas.info", "missing_scope", nil)
	h.canvas.file = slack.File{ID: "FCANVAS", URLPrivate: "https://files.slack.com/files-pri/T1-FCANVAS/canvas"}
	h.canvas.body = "<html><body><h1>Recovered</h1><p>Call back tomorrow</p></body></html>"

	out := h.pipeline.Handle(context.Background(), []byte(canvasPayload), "application/json")
	if out.Kind != pipeline.OutcomeProcessed {
		t.Fatalf("expected processed, got %v", out.Kind)
	}
	if !out.Result.Degraded || out.Result.FailureKind != "canvas_fetch" {
		t.Fatalf("expected degraded canvas_fetch result, got %+v", out.Result)
	}
	if !strings.Contains(out.Result.CanvasText, "Call back tomorrow") {
		t.Fatalf("expected recovered text, got %q", out.Result.CanvasText)
	}
	if h.assets.callCount() != 0 {
		t.Fatal("degraded canvas should not process assets")
	}
	entry, _ := h.ledger.Get(context.Background(), out.Fingerprint)
	if entry.Status != ledger.StatusCompleted {
		t.Fatalf("degraded result should complete, got %s", entry.Status)
	}
}

func TestHandleCanvasFetchFailureWithoutText(t *testing.T) {
	h := newHarness(t)
	h.canvas.blocksErr = errors.New("boom")
	h.canvas.fileErr = services.Wrap(services.ErrNotFound, "slack", "files.info", "file_not_found", nil)

	out := h.pipeline.Handle(context.Background(), []byte(canvasPayload), "application/json")
	if out.Kind != pipeline.OutcomeProcessed {
		t.Fatalf("expected processed, got %v", out.Kind)
	}
	if !out.Result.Failed() || out.Result.FailureKind != "canvas_fetch" {
		t.Fatalf("expected failure summary, got %+v", out.Result)
	}
	entry, _ := h.ledger.Get(context.Background(), out.Fingerprint)
	if entry.Status != ledger.StatusFailed {
		t.Fatalf("expected failed ledger entry, got %s", entry.Status)
	}
}

func TestHandleUnsupportedCreatesNoLedgerEntry(t *testing.T) {
	h := newHarness(t)
	out := h.pipeline.Handle(context.Background(), directPayload("png"), "application/json")
	if out.Kind != pipeline.OutcomeUnsupported || !errors.Is(out.Err, services.ErrClassification) {
		t.Fatalf("expected unsupported classification error, got %v %v", out.Kind, out.Err)
	}
	stats, _ := h.ledger.Stats(context.Background())
	if stats.Total != 0 {
		t.Fatalf("expected empty ledger, got %+v", stats)
	}
}

func TestHandleFormatErrors(t *testing.T) {
	h := newHarness(t)
	out := h.pipeline.Handle(context.Background(), []byte("not a payload"), "application/json")
	if out.Kind != pipeline.OutcomeFormatError || !errors.Is(out.Err, services.ErrFormat) {
		t.Fatalf("expected format error, got %v %v", out.Kind, out.Err)
	}
}

func TestHandleFormBodyDeclaredAsJSON(t *testing.T) {
	h := newHarness(t)
	form := url.Values{}
	form.Set("file_type", "wav")
	form.Set("file_id", "F200")
	form.Set("auth_token", "xoxb-1")
	form.Set("file_url", "https://files.slack.com/files-pri/T1-F200/download/clip.wav")
	out := h.pipeline.Handle(context.Background(), []byte(form.Encode()), "application/json")
	if out.Kind != pipeline.OutcomeProcessed || out.Result.SucceededCount != 1 {
		t.Fatalf("expected processed form payload, got %v %+v", out.Kind, out.Result)
	}
}

func TestHandleURLVerification(t *testing.T) {
	h := newHarness(t)
	out := h.pipeline.Handle(context.Background(), []byte(`{"type":"url_verification","challenge":"abc"}`), "application/json")
	if out.Kind != pipeline.OutcomeChallenge || out.Challenge != "abc" {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestHandleEnrichesMissingFileType(t *testing.T) {
	h := newHarness(t)
	h.canvas.file = slack.File{ID: "F300", Filetype: "mp3", URLPrivateDownload: "https://files.slack.com/files-pri/T1-F300/download/voice.mp3"}
	body := `{"type":"event_callback","event_id":"Ev1","event":{"type":"file_shared","file_id":"F300","user_id":"U1","channel_id":"C1","event_ts":"1.1"},"auth_token":"xoxb-1"}`
	out := h.pipeline.Handle(context.Background(), []byte(body), "application/json")
	if out.Kind != pipeline.OutcomeProcessed {
		t.Fatalf("expected processed, got %v (%v)", out.Kind, out.Err)
	}
	if h.canvas.fileCalls.Load() != 1 || out.Event.Field(ingest.FieldFileType) != "mp3" {
		t.Fatalf("expected one enrichment lookup, got %d (%q)", h.canvas.fileCalls.Load(), out.Event.Field(ingest.FieldFileType))
	}
	if out.Result.Transcripts[0].Text != "text of voice.mp3" {
		t.Fatalf("unexpected transcript %+v", out.Result.Transcripts)
	}
}

func TestHandlePartialFailureIsCompleted(t *testing.T) {
	h := newHarness(t)
	h.canvas.blocks = strings.Replace(canvasBlocks, "two.mp3", "fail.mp3", 1)
	out := h.pipeline.Handle(context.Background(), []byte(canvasPayload), "application/json")
	if out.Result.SucceededCount != 2 || out.Result.FailedCount != 1 {
		t.Fatalf("expected 2/1, got %d/%d", out.Result.SucceededCount, out.Result.FailedCount)
	}
	if out.Result.Transcripts[1].ErrorKind != "transport" {
		t.Fatalf("expected failed asset at index 1, got %+v", out.Result.Transcripts[1])
	}
	entry, _ := h.ledger.Get(context.Background(), out.Fingerprint)
	if entry.Status != ledger.StatusCompleted {
		t.Fatalf("partial failure should complete, got %s", entry.Status)
	}
}

type failingLedger struct{ ledger.Ledger }

func (failingLedger) Claim(context.Context, string, string) (ledger.ClaimResult, error) {
	return ledger.ClaimResult{}, errors.New("database is locked")
}

func TestHandleLedgerUnavailable(t *testing.T) {
	p, err := pipeline.New(pipeline.Options{Ledger: failingLedger{}, Assets: &stubAssets{}})
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	out := p.Handle(context.Background(), directPayload("mp3"), "application/json")
	if out.Kind != pipeline.OutcomeInternalError || out.Err == nil {
		t.Fatalf("expected internal error, got %v", out.Kind)
	}
}

func TestNewRequiresLedgerAndAssets(t *testing.T) {
	if _, err := pipeline.New(pipeline.Options{Assets: &stubAssets{}}); err == nil {
		t.Fatal("expected error without ledger")
	}
	if _, err := pipeline.New(pipeline.Options{Ledger: ledger.NewMemory()}); err == nil {
		t.Fatal("expected error without asset processor")
	}
}
