package publish

import (
	"context"
	"fmt"
	"strings"

	"slackscribe/internal/canvas"
	"slackscribe/internal/services"
	"slackscribe/internal/services/slack"
)

// feedbackTranscriptLimit bounds the transcript quoted in a Slack reply when
// no ticket was filed.
const feedbackTranscriptLimit = 3000

// MessagePoster posts a chat message.
type MessagePoster interface {
	PostMessage(ctx context.Context, msg slack.Message) error
}

// SlackFeedback replies in the originating thread with the run outcome.
type SlackFeedback struct {
	poster MessagePoster
}

// NewSlackFeedback wraps a message poster.
func NewSlackFeedback(poster MessagePoster) *SlackFeedback {
	return &SlackFeedback{poster: poster}
}

// Name implements Publisher.
func (f *SlackFeedback) Name() string { return "slack_feedback" }

// Publish implements Publisher. Events without a channel are skipped.
func (f *SlackFeedback) Publish(ctx context.Context, req Request) (Receipt, error) {
	if f == nil || f.poster == nil || strings.TrimSpace(req.ChannelID) == "" {
		return Receipt{}, nil
	}
	msg := slack.Message{
		Channel:  req.ChannelID,
		Text:     FeedbackText(req),
		ThreadTS: req.ThreadTS,
	}
	if err := f.poster.PostMessage(ctx, msg); err != nil {
		return Receipt{}, services.Wrap(services.ErrUpstream, "slack", "feedback", "post reply", err)
	}
	return Receipt{FeedbackPosted: true}, nil
}

// FeedbackText renders the thread reply for a run.
func FeedbackText(req Request) string {
	res := req.Result
	if req.Prior.TicketID != "" {
		return fmt.Sprintf(":white_check_mark: Transcript posted to Zoho Desk ticket #%s", req.Prior.TicketID)
	}
	if res.Failed() {
		reason := res.FailureReason
		if reason == "" {
			reason = "no audio could be transcribed"
		}
		return fmt.Sprintf(":x: Transcription failed (%s): %s", failureKind(res.FailureKind), reason)
	}

	var b strings.Builder
	switch total := res.SucceededCount + res.FailedCount; {
	case total == 0:
		b.WriteString(":memo: Canvas processed; no audio attachments found.")
	case res.FailedCount > 0:
		fmt.Fprintf(&b, ":warning: Transcribed %d of %d audio files.", res.SucceededCount, total)
	default:
		fmt.Fprintf(&b, ":white_check_mark: Transcribed %d audio file%s.", total, plural(total))
	}
	if res.Degraded {
		b.WriteString(" Canvas could not be read in full.")
	}
	if transcript := res.JoinedTranscript(); transcript != "" {
		quoted, truncated := canvas.Truncate(transcript, feedbackTranscriptLimit)
		if truncated {
			quoted += "..."
		}
		b.WriteString("\n\n")
		b.WriteString(quoted)
	}
	return b.String()
}

func failureKind(kind string) string {
	if kind == "" {
		return "internal"
	}
	return kind
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
