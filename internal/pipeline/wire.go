package pipeline

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"slackscribe/internal/config"
	"slackscribe/internal/deps"
	"slackscribe/internal/ingest"
	"slackscribe/internal/ledger"
	"slackscribe/internal/logging"
	"slackscribe/internal/media/ffmpeg"
	"slackscribe/internal/media/ffprobe"
	"slackscribe/internal/metrics"
	"slackscribe/internal/notifications"
	"slackscribe/internal/orchestrator"
	"slackscribe/internal/publish"
	"slackscribe/internal/retry"
	"slackscribe/internal/services"
	"slackscribe/internal/services/slack"
	"slackscribe/internal/services/transcribe"
)

// NewFromConfig wires the production pipeline. The caller owns store and rec.
func NewFromConfig(cfg *config.Config, store ledger.Ledger, rec *metrics.Recorder, logger *slog.Logger) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("pipeline: config is nil")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	slackClient, err := slack.New(slack.Config{
		BotToken:         cfg.Slack.BotToken,
		BaseURL:          cfg.Slack.APIBaseURL,
		MaxDownloadBytes: cfg.Pipeline.MaxDownloadBytes,
		HTTPClient:       &http.Client{Timeout: time.Duration(cfg.Slack.RequestTimeoutSeconds) * time.Second},
	})
	if err != nil {
		return nil, err
	}

	transcriber, err := transcribe.New(cfg.Transcription, cfg.Conversion.FFmpegBinary, cfg.Paths.WorkDir)
	if err != nil {
		return nil, err
	}

	orchOpts := orchestrator.Options{
		Resolver:             slackClient,
		Downloader:           slackClient,
		Transcriber:          transcriber,
		Prober:               ffprobe.NewProber(deps.ResolveFFprobePath(cfg.Conversion.FFmpegBinary, cfg.Conversion.FFprobeBinary)),
		WorkDir:              cfg.Paths.WorkDir,
		MaxConcurrent:        cfg.Pipeline.MaxConcurrentAssets,
		PassthroughMIMETypes: cfg.Conversion.PassthroughMIMETypes,
		Retry: retry.Policy{
			MaxAttempts: cfg.Pipeline.RetryMaxAttempts,
			BaseDelay:   cfg.RetryBaseDelay(),
			MaxDelay:    cfg.RetryMaxDelay(),
			Retryable:   services.IsRetryable,
		},
		Logger: logger,
		OnAssetStarted: func(int) {
			rec.AssetStarted()
		},
		OnAssetFinished: func(asset orchestrator.Asset) {
			rec.AssetFinished()
			rec.Asset(asset.Status.String(), asset.ErrorKind)
		},
	}
	if cfg.Conversion.Enabled {
		orchOpts.Converter = ffmpeg.NewConverter(ffmpeg.Options{
			Binary:       cfg.Conversion.FFmpegBinary,
			TargetFormat: cfg.Conversion.TargetFormat,
			Bitrate:      cfg.Conversion.Bitrate,
			SampleRate:   cfg.Conversion.SampleRate,
			Timeout:      time.Duration(cfg.Conversion.TimeoutSeconds) * time.Second,
		})
	}

	publishers := make([]publish.Publisher, 0, 2)
	if cfg.Ticketing.Enabled {
		zoho, err := publish.NewZoho(publish.ZohoConfigFrom(cfg.Ticketing),
			publish.WithZohoLogger(logging.NewComponentLogger(logger, "zoho")))
		if err != nil {
			return nil, err
		}
		publishers = append(publishers, zoho)
	}
	if cfg.Slack.FeedbackEnabled && cfg.Slack.BotToken != "" {
		publishers = append(publishers, publish.NewSlackFeedback(slackClient))
	}
	chain := publish.NewChain(logging.NewComponentLogger(logger, "publish"), rec.Publish, publishers...)

	normalizer := ingest.Normalizer{Defaults: map[string]string{
		ingest.FieldAuthToken: cfg.Slack.BotToken,
	}}
	opts := Options{
		Ledger:          store,
		Canvas:          slackClient,
		Assets:          orchestrator.New(orchOpts),
		Notifier:        notifications.NewService(cfg),
		Metrics:         rec,
		Normalizer:      normalizer,
		CanvasTextLimit: cfg.Pipeline.CanvasTextLimit,
		Timeout:         time.Duration(cfg.Pipeline.TimeoutSeconds) * time.Second,
		Logger:          logger,
	}
	if chain.Len() > 0 {
		opts.Publisher = chain
	}
	return New(opts)
}
