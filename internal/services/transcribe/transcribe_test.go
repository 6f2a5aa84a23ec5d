package transcribe_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"slackscribe/internal/config"
	"slackscribe/internal/services"
	"slackscribe/internal/services/transcribe"
	"slackscribe/internal/testsupport"
)

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.wav")
	testsupport.WriteFile(t, path, testsupport.WAVBytes())
	return path
}

func TestDeepgramTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Token dg-key" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "audio/wav" {
			t.Errorf("Content-Type = %q", got)
		}
		if got := r.URL.Query().Get("model"); got != "nova-2" {
			t.Errorf("model = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.HasPrefix(string(body), "RIFF") {
			t.Errorf("expected raw audio body")
		}
		_, _ = io.WriteString(w, `{"results":{"channels":[{"alternatives":[{"transcript":" hello there ","confidence":0.93}]}]}}`)
	}))
	defer srv.Close()

	dg, err := transcribe.NewDeepgram(transcribe.DeepgramConfig{APIKey: "dg-key", BaseURL: srv.URL + "/v1/listen"})
	if err != nil {
		t.Fatalf("NewDeepgram: %v", err)
	}
	got, err := dg.Transcribe(context.Background(), writeAudio(t))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got.Text != "hello there" || got.Confidence != 0.93 || got.Provider != "deepgram" {
		t.Fatalf("unexpected transcript %#v", got)
	}
}

func TestProviderStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		marker error
		retry  bool
	}{
		{http.StatusUnauthorized, services.ErrAuth, false},
		{http.StatusTooManyRequests, services.ErrTransport, true},
		{http.StatusBadGateway, services.ErrTransport, true},
		{http.StatusBadRequest, services.ErrTranscription, false},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.Copy(io.Discard, r.Body)
			w.WriteHeader(tc.status)
		}))
		dg, _ := transcribe.NewDeepgram(transcribe.DeepgramConfig{APIKey: "k", BaseURL: srv.URL})
		_, err := dg.Transcribe(context.Background(), writeAudio(t))
		srv.Close()
		if !errors.Is(err, tc.marker) {
			t.Fatalf("status %d: expected %v, got %v", tc.status, tc.marker, err)
		}
		if services.IsRetryable(err) != tc.retry {
			t.Fatalf("status %d: retryable = %v", tc.status, !tc.retry)
		}
	}
}

func TestWhisperSendsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		if r.FormValue("model") != "whisper-1" || r.FormValue("language") != "en" {
			t.Errorf("fields = %v", r.MultipartForm.Value)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		defer file.Close()
		if header.Filename != "clip.wav" {
			t.Errorf("filename = %q", header.Filename)
		}
		_, _ = io.WriteString(w, `{"text":"call me at 555-123-4567"}`)
	}))
	defer srv.Close()

	wh, err := transcribe.NewWhisper(transcribe.WhisperConfig{APIKey: "sk-test", BaseURL: srv.URL, Language: "en"})
	if err != nil {
		t.Fatalf("NewWhisper: %v", err)
	}
	got, err := wh.Transcribe(context.Background(), writeAudio(t))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got.Text != "call me at 555-123-4567" {
		t.Fatalf("text = %q", got.Text)
	}
}

func TestWhisperXReadsSegments(t *testing.T) {
	audio := writeAudio(t)
	outBase := t.TempDir()
	wx := transcribe.NewWhisperX(transcribe.WhisperXConfig{OutputDir: outBase, Language: "EN"}).WithCommandRunner(
		func(_ context.Context, name string, args ...string) error {
			if name != "uvx" {
				t.Fatalf("command = %q", name)
			}
			var outDir string
			for i, a := range args {
				if a == "--output_dir" {
					outDir = args[i+1]
				}
			}
			if outDir == "" {
				t.Fatal("missing --output_dir")
			}
			payload := `{"segments":[{"text":" first "},{"text":""},{"text":"second"}]}`
			return os.WriteFile(filepath.Join(outDir, "clip.json"), []byte(payload), 0o644)
		})

	got, err := wx.Transcribe(context.Background(), audio)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got.Text != "first second" {
		t.Fatalf("text = %q", got.Text)
	}
	entries, _ := os.ReadDir(outBase)
	if len(entries) != 0 {
		t.Fatalf("expected per-call output dir to be removed, found %d entries", len(entries))
	}
}

func TestWhisperXArgs(t *testing.T) {
	wx := transcribe.NewWhisperX(transcribe.WhisperXConfig{Language: "en", CUDAEnabled: true})
	args := strings.Join(wx.Args("/a.wav", "/out"), " ")
	for _, want := range []string{"--extra-index-url", "whisperx /a.wav", "--model large-v3", "--device cuda", "--language en", "--vad_method silero"} {
		if !strings.Contains(args, want) {
			t.Fatalf("args missing %q: %s", want, args)
		}
	}
}

func TestNewSelectsProvider(t *testing.T) {
	cfg := config.Default().Transcription
	cfg.APIKey = "k"
	for provider, want := range map[string]string{
		config.ProviderDeepgram:   "*transcribe.Deepgram",
		config.ProviderAssemblyAI: "*transcribe.AssemblyAI",
		config.ProviderWhisper:    "*transcribe.Whisper",
		config.ProviderWhisperX:   "*transcribe.WhisperX",
	} {
		cfg.Provider = provider
		tr, err := transcribe.New(cfg, "ffmpeg", t.TempDir())
		if err != nil {
			t.Fatalf("New(%s): %v", provider, err)
		}
		if got := typeName(tr); got != want {
			t.Fatalf("New(%s) = %s", provider, got)
		}
	}
	cfg.Provider = "rev-ai"
	if _, err := transcribe.New(cfg, "ffmpeg", ""); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func typeName(v any) string {
	switch v.(type) {
	case *transcribe.Deepgram:
		return "*transcribe.Deepgram"
	case *transcribe.AssemblyAI:
		return "*transcribe.AssemblyAI"
	case *transcribe.Whisper:
		return "*transcribe.Whisper"
	case *transcribe.WhisperX:
		return "*transcribe.WhisperX"
	default:
		return "unknown"
	}
}

func newAssemblyAIServer(t *testing.T, finalStatus string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "aai-key" {
			t.Errorf("Authorization = %q", got)
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v2/upload":
			body, _ := io.ReadAll(r.Body)
			if !strings.HasPrefix(string(body), "RIFF") {
				t.Errorf("expected raw audio upload")
			}
			_, _ = io.WriteString(w, `{"upload_url":"https://cdn.example/upload/1"}`)
		case r.Method == http.MethodPost && r.URL.Path == "/v2/transcript":
			body, _ := io.ReadAll(r.Body)
			if !strings.Contains(string(body), `"audio_url":"https://cdn.example/upload/1"`) || !strings.Contains(string(body), `"language_code":"en"`) {
				t.Errorf("unexpected submit body %s", body)
			}
			_, _ = io.WriteString(w, `{"id":"job-1","status":"queued"}`)
		case r.Method == http.MethodGet && r.URL.Path == "/v2/transcript/job-1":
			if polls.Add(1) < 3 {
				_, _ = io.WriteString(w, `{"id":"job-1","status":"processing"}`)
				return
			}
			if finalStatus == "error" {
				_, _ = io.WriteString(w, `{"id":"job-1","status":"error","error":"audio too short"}`)
				return
			}
			_, _ = io.WriteString(w, `{"id":"job-1","status":"completed","text":" call me back ","confidence":0.88}`)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &polls
}

func TestAssemblyAIUploadsSubmitsAndPolls(t *testing.T) {
	srv, polls := newAssemblyAIServer(t, "completed")
	aai, err := transcribe.NewAssemblyAI(transcribe.AssemblyAIConfig{
		APIKey:       "aai-key",
		BaseURL:      srv.URL + "/v2",
		Language:     "en",
		PollInterval: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewAssemblyAI: %v", err)
	}
	got, err := aai.Transcribe(context.Background(), writeAudio(t))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got.Text != "call me back" || got.Confidence != 0.88 || got.Provider != "assemblyai" {
		t.Fatalf("unexpected transcript %#v", got)
	}
	if polls.Load() != 3 {
		t.Fatalf("polls = %d, want 3", polls.Load())
	}
}

func TestAssemblyAIJobErrorIsTranscriptionFailure(t *testing.T) {
	srv, _ := newAssemblyAIServer(t, "error")
	aai, _ := transcribe.NewAssemblyAI(transcribe.AssemblyAIConfig{
		APIKey:       "aai-key",
		BaseURL:      srv.URL + "/v2",
		Language:     "en",
		PollInterval: time.Millisecond,
	})
	_, err := aai.Transcribe(context.Background(), writeAudio(t))
	if !errors.Is(err, services.ErrTranscription) || !strings.Contains(err.Error(), "audio too short") {
		t.Fatalf("expected transcription error, got %v", err)
	}
	if services.IsRetryable(err) {
		t.Fatal("failed job must not be retried")
	}
}

func TestAssemblyAIStatusMappingAndTimeout(t *testing.T) {
	denied := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer denied.Close()
	aai, _ := transcribe.NewAssemblyAI(transcribe.AssemblyAIConfig{APIKey: "aai-key", BaseURL: denied.URL + "/v2"})
	if _, err := aai.Transcribe(context.Background(), writeAudio(t)); !errors.Is(err, services.ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}

	stuck := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		switch r.URL.Path {
		case "/v2/upload":
			_, _ = io.WriteString(w, `{"upload_url":"https://cdn.example/upload/2"}`)
		case "/v2/transcript":
			_, _ = io.WriteString(w, `{"id":"job-2","status":"queued"}`)
		default:
			_, _ = io.WriteString(w, `{"id":"job-2","status":"processing"}`)
		}
	}))
	defer stuck.Close()
	aai, _ = transcribe.NewAssemblyAI(transcribe.AssemblyAIConfig{
		APIKey:       "aai-key",
		BaseURL:      stuck.URL + "/v2",
		PollInterval: 5 * time.Millisecond,
		Timeout:      50 * time.Millisecond,
	})
	if _, err := aai.Transcribe(context.Background(), writeAudio(t)); err == nil {
		t.Fatal("expected polling to stop at the timeout")
	}
}
