package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"os"
	"strings"

	"slackscribe/internal/audiofmt"
	"slackscribe/internal/services"
)

const (
	deepgramBaseURL = "https://api.deepgram.com/v1/listen"
	deepgramModel   = "nova-2"
)

// DeepgramConfig configures the Deepgram provider.
type DeepgramConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Language   string
	HTTPClient *http.Client
}

// Deepgram posts raw audio to the prerecorded listen endpoint.
type Deepgram struct {
	apiKey   string
	endpoint *url.URL
	model    string
	language string
	http     *http.Client
}

// NewDeepgram validates cfg and returns a provider.
func NewDeepgram(cfg DeepgramConfig) (*Deepgram, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, services.Wrap(services.ErrConfiguration, "transcribe", "deepgram", "api key is required", nil)
	}
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = deepgramBaseURL
	}
	endpoint, err := url.Parse(base)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "transcribe", "deepgram", "parse base url", err)
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = deepgramModel
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &Deepgram{
		apiKey:   key,
		endpoint: endpoint,
		model:    model,
		language: strings.TrimSpace(cfg.Language),
		http:     client,
	}, nil
}

type deepgramResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// Transcribe implements Transcriber.
func (d *Deepgram) Transcribe(ctx context.Context, path string) (Transcript, error) {
	file, err := os.Open(path)
	if err != nil {
		return Transcript{}, services.Wrap(services.ErrTranscription, "transcribe", "deepgram", "open audio", err)
	}
	defer file.Close()

	contentType := "audio/*"
	if detected, err := audiofmt.SniffFile(path); err == nil && detected.Audio {
		contentType = detected.MIME
	}

	endpoint := *d.endpoint
	params := endpoint.Query()
	params.Set("model", d.model)
	params.Set("smart_format", "true")
	params.Set("punctuate", "true")
	if d.language != "" {
		params.Set("language", d.language)
	}
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), file)
	if err != nil {
		return Transcript{}, services.Wrap(services.ErrTranscription, "transcribe", "deepgram", "build request", err)
	}
	req.Header.Set("Authorization", "Token "+d.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := d.http.Do(req)
	if err != nil {
		return Transcript{}, services.ClassifyNetworkError("transcribe", "deepgram", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Transcript{}, responseError("deepgram", resp)
	}

	var payload deepgramResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Transcript{}, services.Wrap(services.ErrTranscription, "transcribe", "deepgram", "decode response", err)
	}
	if len(payload.Results.Channels) == 0 || len(payload.Results.Channels[0].Alternatives) == 0 {
		return Transcript{}, services.Wrap(services.ErrTranscription, "transcribe", "deepgram", "response has no alternatives", errors.New("empty results"))
	}
	alt := payload.Results.Channels[0].Alternatives[0]
	return Transcript{
		Text:       strings.TrimSpace(alt.Transcript),
		Confidence: alt.Confidence,
		Provider:   "deepgram",
		Model:      d.model,
	}, nil
}
