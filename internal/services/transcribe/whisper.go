package transcribe

import (
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"slackscribe/internal/services"
)

const (
	whisperBaseURL = "https://api.openai.com/v1/audio/transcriptions"
	whisperModel   = "whisper-1"
)

// WhisperConfig configures the OpenAI Whisper provider.
type WhisperConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Language   string
	HTTPClient *http.Client
}

// Whisper uploads audio as multipart form data.
type Whisper struct {
	apiKey   string
	endpoint string
	model    string
	language string
	http     *http.Client
}

// NewWhisper validates cfg and returns a provider.
func NewWhisper(cfg WhisperConfig) (*Whisper, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, services.Wrap(services.ErrConfiguration, "transcribe", "whisper", "api key is required", nil)
	}
	endpoint := strings.TrimSpace(cfg.BaseURL)
	if endpoint == "" {
		endpoint = whisperBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = whisperModel
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &Whisper{
		apiKey:   key,
		endpoint: endpoint,
		model:    model,
		language: strings.TrimSpace(cfg.Language),
		http:     client,
	}, nil
}

// Transcribe implements Transcriber. The multipart body is streamed through a
// pipe so large files are not buffered in memory.
func (w *Whisper) Transcribe(ctx context.Context, path string) (Transcript, error) {
	file, err := os.Open(path)
	if err != nil {
		return Transcript{}, services.Wrap(services.ErrTranscription, "transcribe", "whisper", "open audio", err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	defer pr.Close()
	form := multipart.NewWriter(pw)
	go func() {
		err := writeWhisperForm(form, file, filepath.Base(path), w.model, w.language)
		if err == nil {
			err = form.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, pr)
	if err != nil {
		return Transcript{}, services.Wrap(services.ErrTranscription, "transcribe", "whisper", "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+w.apiKey)
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := w.http.Do(req)
	if err != nil {
		return Transcript{}, services.ClassifyNetworkError("transcribe", "whisper", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Transcript{}, responseError("whisper", resp)
	}

	var payload struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Transcript{}, services.Wrap(services.ErrTranscription, "transcribe", "whisper", "decode response", err)
	}
	return Transcript{
		Text:     strings.TrimSpace(payload.Text),
		Provider: "whisper",
		Model:    w.model,
	}, nil
}

func writeWhisperForm(form *multipart.Writer, audio io.Reader, filename, model, language string) error {
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, audio); err != nil {
		return err
	}
	if err := form.WriteField("model", model); err != nil {
		return err
	}
	if err := form.WriteField("response_format", "json"); err != nil {
		return err
	}
	if language != "" {
		if err := form.WriteField("language", language); err != nil {
			return err
		}
	}
	return nil
}
