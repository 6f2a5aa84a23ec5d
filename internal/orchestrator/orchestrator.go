package orchestrator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"slackscribe/internal/audiofmt"
	"slackscribe/internal/canvas"
	"slackscribe/internal/logging"
	"slackscribe/internal/media/ffprobe"
	"slackscribe/internal/retry"
	"slackscribe/internal/services"
	"slackscribe/internal/services/slack"
	"slackscribe/internal/services/transcribe"
	"slackscribe/internal/textutil"
)

// DefaultMaxConcurrent caps in-flight assets per request.
const DefaultMaxConcurrent = 5

// MetadataResolver looks up a file's download URL when only its ID is known.
type MetadataResolver interface {
	FileInfo(ctx context.Context, fileID, token string) (slack.File, error)
}

// Downloader streams an authenticated URL into dst.
type Downloader interface {
	Download(ctx context.Context, url, token string, dst io.Writer) (int64, error)
}

// Converter transcodes src and returns the path of the new file.
type Converter interface {
	Convert(ctx context.Context, src string) (string, error)
}

// Prober reads media metadata. It is optional.
type Prober interface {
	Probe(ctx context.Context, path string) (ffprobe.Result, error)
}

// Transcriber converts a local audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (transcribe.Transcript, error)
}

// Options wires an Orchestrator.
type Options struct {
	Resolver    MetadataResolver
	Downloader  Downloader
	Converter   Converter
	Prober      Prober
	Transcriber Transcriber

	WorkDir              string
	MaxConcurrent        int
	PassthroughMIMETypes []string
	Retry                retry.Policy
	Logger               *slog.Logger

	// OnAssetStarted and OnAssetFinished, when set, bracket the work on each
	// asset. Every started asset is finished exactly once, in a terminal state.
	OnAssetStarted  func(index int)
	OnAssetFinished func(Asset)
}

// Orchestrator runs the per-asset pipeline with bounded concurrency.
type Orchestrator struct {
	opts   Options
	logger *slog.Logger
}

// New returns an Orchestrator. A zero retry policy becomes retry.Default().
func New(opts Options) *Orchestrator {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retry.Default()
	}
	if opts.WorkDir == "" {
		opts.WorkDir = os.TempDir()
	}
	return &Orchestrator{
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "orchestrator"),
	}
}

// Process downloads, converts, and transcribes every reference. The result
// has one Asset per reference, in input order. Individual failures are
// recorded on their asset; Process itself never fails.
func (o *Orchestrator) Process(ctx context.Context, refs []canvas.AssetRef, token string) []Asset {
	assets := make([]Asset, len(refs))
	if len(refs) == 0 {
		return assets
	}
	if err := os.MkdirAll(o.opts.WorkDir, 0o755); err != nil {
		for i, ref := range refs {
			o.start(i)
			assets[i] = Asset{Index: i, SourceURL: ref.URL, FileID: ref.FileID}
			assets[i].fail(services.Kind(services.ErrConfiguration), fmt.Errorf("create work dir: %w", err))
			o.finish(assets[i])
		}
		return assets
	}

	var g errgroup.Group
	g.SetLimit(o.opts.MaxConcurrent)
	for i, ref := range refs {
		g.Go(func() error {
			o.start(i)
			assets[i] = o.processOne(ctx, i, ref, token)
			o.finish(assets[i])
			return nil
		})
	}
	_ = g.Wait()
	return assets
}

func (o *Orchestrator) start(index int) {
	if o.opts.OnAssetStarted != nil {
		o.opts.OnAssetStarted(index)
	}
}

func (o *Orchestrator) finish(asset Asset) {
	if o.opts.OnAssetFinished != nil {
		o.opts.OnAssetFinished(asset)
	}
}

func (o *Orchestrator) processOne(ctx context.Context, index int, ref canvas.AssetRef, token string) Asset {
	asset := Asset{Index: index, SourceURL: ref.URL, FileID: ref.FileID, Status: StatusPending}
	ctx = services.WithAssetIndex(ctx, index)
	logger := logging.WithContext(ctx, o.logger)
	start := time.Now()

	failed := func(stage string, err error) Asset {
		kind := services.Kind(err)
		if ctx.Err() != nil {
			kind = services.Kind(ctx.Err())
		}
		asset.fail(kind, err)
		logging.WarnWithContext(logger, "asset failed", "asset_failed",
			logging.String(logging.FieldStage, stage),
			logging.String(logging.FieldErrorKind, kind),
			logging.String(logging.FieldErrorHint, hintFor(kind)),
			logging.Error(err),
		)
		return asset
	}

	if err := ctx.Err(); err != nil {
		return failed("start", err)
	}

	if strings.TrimSpace(asset.SourceURL) == "" {
		url, err := o.resolve(ctx, logger, asset.FileID, token)
		if err != nil {
			return failed("resolve", err)
		}
		asset.SourceURL = url
	}

	path, err := o.download(ctx, logger, index, asset.SourceURL, ref.ExtensionHint, token)
	if path != "" {
		defer removeQuietly(path)
	}
	if err != nil {
		return failed("download", err)
	}
	asset.advance(StatusDownloaded)

	transcribePath := path
	detected, sniffErr := audiofmt.SniffFile(path)
	if sniffErr == nil {
		asset.DetectedMIME = detected.MIME
	}
	if o.opts.Converter != nil && (sniffErr != nil || !detected.Matches(o.opts.PassthroughMIMETypes)) {
		converted, err := o.opts.Converter.Convert(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return failed("convert", err)
			}
			logging.WarnWithContext(logger, "conversion failed; transcribing original bytes", "conversion_fallback",
				logging.String("detected_mime", asset.DetectedMIME),
				logging.String(logging.FieldErrorHint, "verify ffmpeg is installed and supports the source codec"),
				logging.Error(err),
			)
		} else {
			defer removeQuietly(converted)
			transcribePath = converted
			asset.Converted = true
		}
	}
	asset.advance(StatusConverted)

	if o.opts.Prober != nil {
		if probe, err := o.opts.Prober.Probe(ctx, transcribePath); err == nil {
			asset.DurationSeconds = probe.DurationSeconds()
			if probe.AudioStreamCount() == 0 {
				logger.Debug("probe found no audio stream", logging.String("path", transcribePath))
			}
		} else {
			logger.Debug("probe failed", logging.Error(err))
		}
	}

	var transcript transcribe.Transcript
	policy := o.policy(logger, "transcribe")
	if err := policy.Do(ctx, func(ctx context.Context) error {
		var err error
		transcript, err = o.opts.Transcriber.Transcribe(ctx, transcribePath)
		return err
	}); err != nil {
		return failed("transcribe", err)
	}
	asset.Transcript = transcript.Text
	asset.Confidence = transcript.Confidence
	asset.advance(StatusTranscribed)
	asset.advance(StatusDone)

	logger.Info("asset transcribed",
		logging.String(logging.FieldEventType, "asset_transcribed"),
		logging.Bool("converted", asset.Converted),
		logging.Int("transcript_chars", len(asset.Transcript)),
		logging.Duration("elapsed", time.Since(start)),
	)
	return asset
}

func (o *Orchestrator) resolve(ctx context.Context, logger *slog.Logger, fileID, token string) (string, error) {
	if strings.TrimSpace(fileID) == "" {
		return "", services.Wrap(services.ErrNotFound, "resolve", "asset", "reference has neither url nor file id", nil)
	}
	if o.opts.Resolver == nil {
		return "", services.Wrap(services.ErrConfiguration, "resolve", "asset", "no metadata resolver configured", nil)
	}
	var file slack.File
	if err := o.policy(logger, "resolve").Do(ctx, func(ctx context.Context) error {
		var err error
		file, err = o.opts.Resolver.FileInfo(ctx, fileID, token)
		return err
	}); err != nil {
		return "", err
	}
	url := file.DownloadURL()
	if url == "" {
		return "", services.Wrap(services.ErrNotFound, "resolve", "files.info", "file has no download url", nil)
	}
	return url, nil
}

func (o *Orchestrator) download(ctx context.Context, logger *slog.Logger, index int, url, extHint, token string) (string, error) {
	ext := strings.TrimPrefix(extHint, ".")
	if ext == "" {
		if fromURL, ok := audiofmt.ExtensionFromURL(url); ok {
			ext = fromURL
		}
	}
	// The extension is caller controlled and ends up in a temp file pattern.
	ext = textutil.SanitizeToken(ext, "bin")
	file, err := os.CreateTemp(o.opts.WorkDir, fmt.Sprintf("asset-%d-*.%s", index, ext))
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	path := file.Name()
	defer file.Close()

	err = o.policy(logger, "download").Do(ctx, func(ctx context.Context) error {
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return err
		}
		if err := file.Truncate(0); err != nil {
			return err
		}
		_, err := o.opts.Downloader.Download(ctx, url, token, file)
		return err
	})
	if err != nil {
		return path, err
	}
	if err := file.Sync(); err != nil {
		return path, fmt.Errorf("sync download: %w", err)
	}
	return path, nil
}

func (o *Orchestrator) policy(logger *slog.Logger, stage string) retry.Policy {
	p := o.opts.Retry
	p.OnRetry = func(attempt int, delay time.Duration, err error) {
		logging.WarnWithContext(logger, "retrying after transient failure", "asset_retry",
			logging.String(logging.FieldStage, stage),
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.String(logging.FieldErrorHint, "upstream is slow or rate limiting; no action needed unless retries exhaust"),
			logging.Error(err),
		)
	}
	return p
}

func removeQuietly(path string) {
	if path == "" {
		return
	}
	_ = os.Remove(path)
}

func hintFor(kind string) string {
	switch kind {
	case "auth":
		return "check the bot token scopes (files:read) and provider credentials"
	case "not_found":
		return "the file was deleted or is not shared with the bot"
	case "transport":
		return "upstream unavailable after retries; the next event will retry"
	case "transcription":
		return "the provider rejected the audio; check format and provider logs"
	case "conversion":
		return "verify ffmpeg is installed"
	default:
		return "check logs for details"
	}
}
