package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"slackscribe/internal/services"
)

const (
	assemblyAIBaseURL      = "https://api.assemblyai.com/v2"
	assemblyAIPollInterval = 2 * time.Second
)

// AssemblyAIConfig configures the AssemblyAI provider.
type AssemblyAIConfig struct {
	APIKey       string
	BaseURL      string
	Model        string
	Language     string
	PollInterval time.Duration
	// Timeout bounds the whole upload, submit and poll cycle. Zero leaves the
	// caller's context as the only bound.
	Timeout    time.Duration
	HTTPClient *http.Client
}

// AssemblyAI uploads audio, submits a transcript job and polls it until the
// job completes or fails.
type AssemblyAI struct {
	apiKey   string
	base     *url.URL
	model    string
	language string
	interval time.Duration
	timeout  time.Duration
	http     *http.Client
}

// NewAssemblyAI validates cfg and returns a provider.
func NewAssemblyAI(cfg AssemblyAIConfig) (*AssemblyAI, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, services.Wrap(services.ErrConfiguration, "transcribe", "assemblyai", "api key is required", nil)
	}
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = assemblyAIBaseURL
	}
	parsed, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "transcribe", "assemblyai", "parse base url", err)
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = assemblyAIPollInterval
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &AssemblyAI{
		apiKey:   key,
		base:     parsed,
		model:    strings.TrimSpace(cfg.Model),
		language: strings.TrimSpace(cfg.Language),
		interval: interval,
		timeout:  cfg.Timeout,
		http:     client,
	}, nil
}

type assemblyAIUpload struct {
	UploadURL string `json:"upload_url"`
}

type assemblyAIRequest struct {
	AudioURL     string `json:"audio_url"`
	SpeechModel  string `json:"speech_model,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
}

type assemblyAIJob struct {
	ID         string  `json:"id"`
	Status     string  `json:"status"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Error      string  `json:"error"`
}

// Transcribe implements Transcriber.
func (a *AssemblyAI) Transcribe(ctx context.Context, path string) (Transcript, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	file, err := os.Open(path)
	if err != nil {
		return Transcript{}, services.Wrap(services.ErrTranscription, "transcribe", "assemblyai", "open audio", err)
	}
	defer file.Close()

	var upload assemblyAIUpload
	if err := a.do(ctx, http.MethodPost, "upload", "application/octet-stream", file, &upload); err != nil {
		return Transcript{}, err
	}
	if upload.UploadURL == "" {
		return Transcript{}, services.Wrap(services.ErrTranscription, "transcribe", "assemblyai", "upload returned no url", nil)
	}

	body, err := json.Marshal(assemblyAIRequest{
		AudioURL:     upload.UploadURL,
		SpeechModel:  a.model,
		LanguageCode: a.language,
	})
	if err != nil {
		return Transcript{}, services.Wrap(services.ErrTranscription, "transcribe", "assemblyai", "encode request", err)
	}
	var job assemblyAIJob
	if err := a.do(ctx, http.MethodPost, "transcript", "application/json", bytes.NewReader(body), &job); err != nil {
		return Transcript{}, err
	}
	if job.ID == "" {
		return Transcript{}, services.Wrap(services.ErrTranscription, "transcribe", "assemblyai", "submit returned no job id", nil)
	}
	return a.poll(ctx, job.ID)
}

func (a *AssemblyAI) poll(ctx context.Context, id string) (Transcript, error) {
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return Transcript{}, services.Wrap(services.ErrTranscription, "transcribe", "assemblyai",
				fmt.Sprintf("job %s did not finish", id), ctx.Err())
		case <-timer.C:
		}

		var job assemblyAIJob
		if err := a.do(ctx, http.MethodGet, "transcript/"+url.PathEscape(id), "", nil, &job); err != nil {
			return Transcript{}, err
		}
		switch job.Status {
		case "completed":
			return Transcript{
				Text:       strings.TrimSpace(job.Text),
				Confidence: job.Confidence,
				Provider:   "assemblyai",
				Model:      a.model,
			}, nil
		case "error":
			msg := strings.TrimSpace(job.Error)
			if msg == "" {
				msg = "transcription failed"
			}
			return Transcript{}, services.Wrap(services.ErrTranscription, "transcribe", "assemblyai",
				fmt.Sprintf("job %s: %s", id, msg), nil)
		}
		timer.Reset(a.interval)
	}
}

func (a *AssemblyAI) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, a.base.JoinPath(path).String(), body)
	if err != nil {
		return services.Wrap(services.ErrTranscription, "transcribe", "assemblyai", "build request", err)
	}
	req.Header.Set("Authorization", a.apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return services.ClassifyNetworkError("transcribe", "assemblyai", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return responseError("assemblyai", resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrTranscription, "transcribe", "assemblyai", "decode response", err)
	}
	return nil
}
