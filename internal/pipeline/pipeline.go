package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"slackscribe/internal/canvas"
	"slackscribe/internal/classify"
	"slackscribe/internal/ingest"
	"slackscribe/internal/ledger"
	"slackscribe/internal/logging"
	"slackscribe/internal/metrics"
	"slackscribe/internal/notifications"
	"slackscribe/internal/orchestrator"
	"slackscribe/internal/publish"
	"slackscribe/internal/result"
	"slackscribe/internal/services"
	"slackscribe/internal/services/slack"
)

// canvasBodyLimit bounds the HTML downloaded when recovering canvas text.
const canvasBodyLimit = 4 << 20

// CanvasFetcher reads canvas content and file metadata from the chat
// platform.
type CanvasFetcher interface {
	CanvasBlocks(ctx context.Context, canvasID, token string) ([]byte, error)
	FileInfo(ctx context.Context, fileID, token string) (slack.File, error)
	FetchBody(ctx context.Context, url, token string, limit int64) ([]byte, error)
}

// AssetProcessor turns audio references into processed assets.
type AssetProcessor interface {
	Process(ctx context.Context, refs []canvas.AssetRef, token string) []orchestrator.Asset
}

// Publisher delivers a finished result downstream.
type Publisher interface {
	Publish(ctx context.Context, req publish.Request) (publish.Receipt, error)
}

// Options wires a Pipeline. Ledger and Assets are required.
type Options struct {
	Ledger     ledger.Ledger
	Canvas     CanvasFetcher
	Assets     AssetProcessor
	Publisher  Publisher
	Notifier   notifications.Service
	Metrics    *metrics.Recorder
	Normalizer ingest.Normalizer

	CanvasTextLimit int
	// Timeout bounds asset processing for one request. Zero means no limit.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Pipeline handles inbound webhook payloads.
type Pipeline struct {
	opts   Options
	logger *slog.Logger
}

// New validates opts and returns a Pipeline.
func New(opts Options) (*Pipeline, error) {
	if opts.Ledger == nil {
		return nil, errors.New("pipeline: ledger is required")
	}
	if opts.Assets == nil {
		return nil, errors.New("pipeline: asset processor is required")
	}
	if opts.Notifier == nil {
		opts.Notifier = notifications.Noop()
	}
	if opts.CanvasTextLimit <= 0 {
		opts.CanvasTextLimit = canvas.DefaultTextLimit
	}
	return &Pipeline{
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "pipeline"),
	}, nil
}

// Handle runs one payload through the pipeline and always returns an
// Outcome. Outcome.Err is set for format, classification and internal errors.
func (p *Pipeline) Handle(ctx context.Context, body []byte, contentType string) Outcome {
	start := time.Now()
	correlationID, ok := services.CorrelationIDFromContext(ctx)
	if !ok {
		correlationID = uuid.NewString()
		ctx = services.WithCorrelationID(ctx, correlationID)
	}
	out := Outcome{CorrelationID: correlationID}
	logger := logging.WithContext(ctx, p.logger)

	ev, err := p.opts.Normalizer.Normalize(body, contentType)
	if err != nil {
		out.Kind = OutcomeFormatError
		out.Err = err
		p.opts.Metrics.Event(metrics.OutcomeRejected)
		logging.WarnWithContext(logger, "payload rejected", "payload_rejected",
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.String(logging.FieldErrorHint, "payload must carry a file id and an auth token"),
			logging.Error(err),
		)
		return out
	}
	out.Event = ev

	if ev.RawKind == ingest.KindURLVerification {
		out.Kind = OutcomeChallenge
		out.Challenge = ev.Field(ingest.FieldChallenge)
		p.opts.Metrics.Event(metrics.OutcomeChallenge)
		logger.Info("url verification challenge", logging.String(logging.FieldEventType, "url_verification"))
		return out
	}

	ctx = services.WithSourceID(ctx, ev.SourceID)
	logger = logging.WithContext(ctx, p.logger)
	token := ev.Field(ingest.FieldAuthToken)
	// The fingerprint uses what the payload carried so a flaky metadata
	// lookup cannot change it between deliveries.
	sourceKey := ledger.SourceKey(ev.Field(ingest.FieldFileURL), ev.Field(ingest.FieldFileID))

	ev = p.enrich(ctx, logger, ev, token)
	out.Event = ev

	cls, err := classify.Classify(ev)
	out.Classification = cls
	if err != nil {
		out.Kind = OutcomeUnsupported
		out.Err = err
		p.opts.Metrics.Event(metrics.OutcomeIgnored)
		logger.Info("event ignored",
			logging.String(logging.FieldEventType, "event_unsupported"),
			logging.String("reason", cls.Reason),
			logging.String("file_type", ev.Field(ingest.FieldFileType)),
		)
		return out
	}

	fp := ledger.Fingerprint(
		sourceKey,
		ev.Field(ingest.FieldUserID),
		ev.Field(ingest.FieldChannelID),
		ev.Field(ingest.FieldTimestamp),
	)
	out.Fingerprint = fp
	logger = logger.With(logging.String(logging.FieldFingerprint, fp))

	claim, err := p.opts.Ledger.Claim(ctx, fp, ev.SourceID)
	if err != nil {
		out.Kind = OutcomeInternalError
		out.Err = fmt.Errorf("claim fingerprint: %w", err)
		p.opts.Metrics.Event(metrics.OutcomeFailed)
		logging.ErrorWithContext(logger, "ledger claim failed", "ledger_claim_failed",
			logging.String(logging.FieldErrorHint, "check ledger database availability"),
			logging.Error(err),
		)
		p.notifyError(ctx, logger, err, "ledger claim")
		return out
	}
	if !claim.New {
		out.Kind = OutcomeDuplicate
		out.Prior = claim.Prior
		if claim.Prior != nil && claim.Prior.ResultRef != "" {
			if prior, ok := result.ParseRef(claim.Prior.ResultRef); ok {
				out.PriorResult = &prior
			}
		}
		p.opts.Metrics.Event(metrics.OutcomeDuplicate)
		status := ""
		if claim.Prior != nil {
			status = string(claim.Prior.Status)
		}
		logger.Info("duplicate event skipped",
			logging.String(logging.FieldEventType, "event_duplicate"),
			logging.String("prior_status", status),
		)
		return out
	}

	logger.Info("event claimed",
		logging.String(logging.FieldEventType, "event_claimed"),
		logging.String("kind", cls.Kind.String()),
	)

	combined := p.run(ctx, logger, ev, cls, token)
	out.Result = combined

	// The claim must be settled even when the caller has gone away.
	settleCtx := context.WithoutCancel(ctx)
	status := ledger.StatusCompleted
	if combined.Failed() {
		status = ledger.StatusFailed
	}
	ref, err := combined.Ref()
	if err == nil {
		err = p.opts.Ledger.Complete(settleCtx, fp, status, ref)
	}
	if err != nil {
		out.Kind = OutcomeInternalError
		out.Err = fmt.Errorf("complete fingerprint: %w", err)
		p.opts.Metrics.Event(metrics.OutcomeFailed)
		logging.ErrorWithContext(logger, "ledger completion failed", "ledger_complete_failed",
			logging.String(logging.FieldErrorHint, "entry stays claimed until its TTL expires"),
			logging.Error(err),
		)
		p.notifyError(settleCtx, logger, err, "ledger completion")
		return out
	}

	out.Kind = OutcomeProcessed
	out.Receipt = p.publish(settleCtx, logger, ev, cls, combined)
	p.notifyRun(settleCtx, logger, cls, combined, out.Receipt, time.Since(start))

	elapsed := time.Since(start)
	p.opts.Metrics.Pipeline(cls.Kind.String(), elapsed)
	if combined.Failed() {
		p.opts.Metrics.Event(metrics.OutcomeFailed)
	} else {
		p.opts.Metrics.Event(metrics.OutcomeProcessed)
	}
	logger.Info("event processed",
		logging.String(logging.FieldEventType, "event_processed"),
		logging.String("ledger_status", string(status)),
		logging.Int("succeeded", combined.SucceededCount),
		logging.Int("failed", combined.FailedCount),
		logging.Bool("degraded", combined.Degraded),
		logging.String("ticket_id", out.Receipt.TicketID),
		logging.Duration("elapsed", elapsed),
	)
	return out
}

// enrich fills the file type from file metadata when the payload omitted it,
// which is typical of file_shared callbacks.
func (p *Pipeline) enrich(ctx context.Context, logger *slog.Logger, ev ingest.Event, token string) ingest.Event {
	if p.opts.Canvas == nil || ev.Field(ingest.FieldFileType) != "" {
		return ev
	}
	fileID := ev.Field(ingest.FieldFileID)
	file, err := p.opts.Canvas.FileInfo(ctx, fileID, token)
	if err != nil {
		logging.WarnWithContext(logger, "file metadata lookup failed", "file_info_failed",
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.String(logging.FieldErrorHint, "bot token may lack files:read scope"),
			logging.Error(err),
		)
		return ev
	}
	fileType := file.Filetype
	if ingest.IsCanvasMarker(file.PrettyType) || strings.EqualFold(file.Filetype, "quip") {
		fileType = "canvas"
	}
	return ev.With(map[string]string{
		ingest.FieldFileType: fileType,
		ingest.FieldMIMEType: file.Mimetype,
		ingest.FieldFileURL:  file.DownloadURL(),
		ingest.FieldFileName: firstNonEmpty(file.Name, file.Title),
	})
}

func (p *Pipeline) run(ctx context.Context, logger *slog.Logger, ev ingest.Event, cls classify.Result, token string) result.Combined {
	runCtx := ctx
	if p.opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
	}

	switch cls.Kind {
	case classify.CanvasDocument:
		return p.runCanvas(runCtx, logger, ev, cls, token)
	default:
		ref := canvas.AssetRef{
			URL:           ev.Field(ingest.FieldFileURL),
			FileID:        ev.Field(ingest.FieldFileID),
			ExtensionHint: cls.Extension,
		}
		assets := p.opts.Assets.Process(runCtx, []canvas.AssetRef{ref}, token)
		return result.Aggregate(ev.SourceID, nil, assets)
	}
}

func (p *Pipeline) runCanvas(ctx context.Context, logger *slog.Logger, ev ingest.Event, cls classify.Result, token string) result.Combined {
	canvasID := cls.CanvasID
	if canvasID == "" {
		canvasID = ev.Field(ingest.FieldFileID)
	}
	doc, refs, err := canvas.Load(ctx, p.opts.Canvas, canvasID, token, p.opts.CanvasTextLimit)
	if err != nil {
		logging.WarnWithContext(logger, "canvas fetch failed; recovering text", "canvas_fetch_failed",
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.String(logging.FieldErrorHint, "bot token may lack canvases:read scope"),
			logging.Error(err),
		)
		return p.recoverCanvas(ctx, logger, ev, canvasID, token, err)
	}

	logger.Info("canvas parsed",
		logging.String(logging.FieldEventType, "canvas_parsed"),
		logging.Int("asset_refs", len(refs)),
		logging.Int("text_runes", len([]rune(doc.TextContent))),
		logging.Bool("truncated", doc.Truncated),
	)
	assets := p.opts.Assets.Process(ctx, refs, token)
	return result.Aggregate(ev.SourceID, &doc, assets)
}

// recoverCanvas builds a text-only result from the canvas file body when the
// block tree could not be read.
func (p *Pipeline) recoverCanvas(ctx context.Context, logger *slog.Logger, ev ingest.Event, canvasID, token string, fetchErr error) result.Combined {
	text, err := p.canvasText(ctx, ev, canvasID, token)
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			logging.WarnWithContext(logger, "canvas text recovery failed", "canvas_recovery_failed",
				logging.String(logging.FieldErrorHint, "canvas is unreadable with the supplied token"),
				logging.Error(err),
			)
		}
		return result.Failure(ev.SourceID, services.Kind(fetchErr), fetchErr.Error())
	}
	doc := canvas.TextDocument(canvasID, text, p.opts.CanvasTextLimit)
	combined := result.Aggregate(ev.SourceID, &doc, nil)
	combined.Degrade(services.Kind(fetchErr), fetchErr.Error())
	logger.Info("canvas text recovered",
		logging.String(logging.FieldEventType, "canvas_degraded"),
		logging.Int("text_runes", len([]rune(doc.TextContent))),
	)
	return combined
}

func (p *Pipeline) canvasText(ctx context.Context, ev ingest.Event, canvasID, token string) (string, error) {
	if p.opts.Canvas == nil {
		return "", errors.New("no canvas fetcher configured")
	}
	url := ev.Field(ingest.FieldFileURL)
	if url == "" {
		file, err := p.opts.Canvas.FileInfo(ctx, canvasID, token)
		if err != nil {
			return "", fmt.Errorf("lookup canvas file: %w", err)
		}
		url = file.DownloadURL()
	}
	if url == "" {
		return "", errors.New("canvas has no download url")
	}
	body, err := p.opts.Canvas.FetchBody(ctx, url, token, canvasBodyLimit)
	if err != nil {
		return "", fmt.Errorf("download canvas body: %w", err)
	}
	return canvas.TextFromHTML(strings.NewReader(string(body)))
}

func (p *Pipeline) publish(ctx context.Context, logger *slog.Logger, ev ingest.Event, cls classify.Result, combined result.Combined) publish.Receipt {
	if p.opts.Publisher == nil {
		return publish.Receipt{}
	}
	receipt, err := p.opts.Publisher.Publish(ctx, publish.NewRequest(ev, cls.Kind.String(), combined))
	if err != nil {
		logging.WarnWithContext(logger, "result publication incomplete", "publish_incomplete",
			logging.String(logging.FieldErrorHint, "ledger outcome is recorded; publish manually if needed"),
			logging.Error(err),
		)
		p.notifyError(ctx, logger, err, "publish")
	}
	return receipt
}

func (p *Pipeline) notifyRun(ctx context.Context, logger *slog.Logger, cls classify.Result, combined result.Combined, receipt publish.Receipt, elapsed time.Duration) {
	var err error
	if combined.Failed() {
		kind := combined.FailureKind
		reason := combined.FailureReason
		if kind == "" {
			kind = "assets"
			reason = fmt.Sprintf("all %d audio assets failed", combined.FailedCount)
		}
		err = p.opts.Notifier.NotifyRunFailed(ctx, combined.SourceID, kind, reason)
	} else {
		err = p.opts.Notifier.NotifyRunCompleted(ctx, notifications.RunSummary{
			SourceID:  combined.SourceID,
			Kind:      cls.Kind.String(),
			Succeeded: combined.SucceededCount,
			Failed:    combined.FailedCount,
			Degraded:  combined.Degraded,
			TicketID:  receipt.TicketID,
			Duration:  elapsed,
		})
	}
	if err != nil {
		logger.Debug("run notification failed", logging.Error(err))
	}
}

func (p *Pipeline) notifyError(ctx context.Context, logger *slog.Logger, err error, label string) {
	if nerr := p.opts.Notifier.NotifyError(ctx, err, label); nerr != nil {
		logger.Debug("error notification failed", logging.Error(nerr))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
