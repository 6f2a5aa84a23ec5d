package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"slackscribe/internal/ingest"
	"slackscribe/internal/logging"
	"slackscribe/internal/result"
	"slackscribe/internal/services"
)

// Request carries everything a publisher needs about one run.
type Request struct {
	SourceID  string
	Kind      string
	FileName  string
	ChannelID string
	UserID    string
	Timestamp string
	ThreadTS  string
	Result    result.Combined

	// Prior accumulates receipts from publishers earlier in the chain.
	Prior Receipt
}

// NewRequest builds a Request from the normalized event.
func NewRequest(ev ingest.Event, kind string, combined result.Combined) Request {
	thread := ev.Field(ingest.FieldThreadTS)
	if thread == "" {
		thread = ev.Field(ingest.FieldTimestamp)
	}
	return Request{
		SourceID:  ev.SourceID,
		Kind:      kind,
		FileName:  ev.Field(ingest.FieldFileName),
		ChannelID: ev.Field(ingest.FieldChannelID),
		UserID:    ev.Field(ingest.FieldUserID),
		Timestamp: ev.Field(ingest.FieldTimestamp),
		ThreadTS:  thread,
		Result:    combined,
	}
}

// Receipt records what publishing produced.
type Receipt struct {
	TicketID       string `json:"ticket_id,omitempty"`
	TicketCreated  bool   `json:"ticket_created,omitempty"`
	FeedbackPosted bool   `json:"feedback_posted,omitempty"`
}

func (r Receipt) merge(other Receipt) Receipt {
	if other.TicketID != "" {
		r.TicketID = other.TicketID
		r.TicketCreated = other.TicketCreated
	}
	r.FeedbackPosted = r.FeedbackPosted || other.FeedbackPosted
	return r
}

// Publisher sends a run result somewhere.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, req Request) (Receipt, error)
}

// Chain runs publishers in order. Every publisher runs even when an earlier
// one fails.
type Chain struct {
	publishers []Publisher
	logger     *slog.Logger
	observe    func(name string, err error)
}

// NewChain builds a chain from the non-nil publishers. observe, when set, is
// called once per publisher attempt.
func NewChain(logger *slog.Logger, observe func(name string, err error), publishers ...Publisher) *Chain {
	if logger == nil {
		logger = logging.NewNop()
	}
	filtered := make([]Publisher, 0, len(publishers))
	for _, p := range publishers {
		if p != nil {
			filtered = append(filtered, p)
		}
	}
	return &Chain{publishers: filtered, logger: logger, observe: observe}
}

// Len reports how many publishers are configured.
func (c *Chain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.publishers)
}

// Publish runs every publisher and returns the merged receipt together with
// all publisher errors joined.
func (c *Chain) Publish(ctx context.Context, req Request) (Receipt, error) {
	if c == nil {
		return Receipt{}, nil
	}
	logger := logging.WithContext(ctx, c.logger)
	var errs []error
	for _, p := range c.publishers {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		receipt, err := p.Publish(ctx, req)
		if c.observe != nil {
			c.observe(p.Name(), err)
		}
		if err != nil {
			logging.WarnWithContext(logger, "publish failed", "publish_failed",
				logging.String("publisher", p.Name()),
				logging.String(logging.FieldErrorKind, services.Kind(err)),
				logging.String(logging.FieldErrorHint, "check publisher credentials and upstream availability"),
				logging.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		req.Prior = req.Prior.merge(receipt)
		logger.Info("published",
			logging.String(logging.FieldEventType, "published"),
			logging.String("publisher", p.Name()),
			logging.String("ticket_id", req.Prior.TicketID),
		)
	}
	return req.Prior, errors.Join(errs...)
}
