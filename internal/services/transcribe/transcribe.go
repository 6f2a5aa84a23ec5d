package transcribe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"slackscribe/internal/config"
	"slackscribe/internal/services"
)

const errorBodyLimit = 4096

// Transcript is the text recognised in one audio file.
type Transcript struct {
	Text       string
	Confidence float64
	Provider   string
	Model      string
}

// Transcriber converts a local audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (Transcript, error)
}

// New builds the provider named in cfg. workDir holds WhisperX output.
func New(cfg config.Transcription, ffmpegBinary, workDir string) (Transcriber, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	httpClient := &http.Client{Timeout: timeout}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case config.ProviderDeepgram:
		return NewDeepgram(DeepgramConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Language:   cfg.Language,
			HTTPClient: httpClient,
		})
	case config.ProviderAssemblyAI:
		return NewAssemblyAI(AssemblyAIConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Language:   cfg.Language,
			Timeout:    timeout,
			HTTPClient: httpClient,
		})
	case config.ProviderWhisper:
		return NewWhisper(WhisperConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Language:   cfg.Language,
			HTTPClient: httpClient,
		})
	case config.ProviderWhisperX:
		return NewWhisperX(WhisperXConfig{
			Model:       cfg.Model,
			Language:    cfg.Language,
			CUDAEnabled: cfg.WhisperXCUDAEnabled,
			VADMethod:   cfg.WhisperXVADMethod,
			OutputDir:   workDir,
			Timeout:     timeout,
		}), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "transcribe", "provider",
			fmt.Sprintf("unsupported provider %q", cfg.Provider), nil)
	}
}

// responseError converts a non-2xx provider response into a marked error.
// Statuses that do not map to auth, not-found or transport become
// ErrTranscription.
func responseError(provider string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	marker := services.ClassifyHTTPStatus(resp.StatusCode)
	if marker == services.ErrUpstream {
		marker = services.ErrTranscription
	}
	return services.Wrap(marker, "transcribe", provider,
		fmt.Sprintf("status %s: %s", resp.Status, strings.TrimSpace(string(body))), nil)
}
