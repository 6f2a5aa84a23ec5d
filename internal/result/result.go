// Package result folds canvas text and per-asset outcomes into the single
// summary returned to webhook callers, stored as the ledger result
// reference, and handed to publishers.
package result

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"slackscribe/internal/canvas"
	"slackscribe/internal/orchestrator"
)

// SegmentSeparator joins successful transcripts.
const SegmentSeparator = "\n\n--- Audio Segment ---\n\n"

// Transcript is the outcome for one asset.
type Transcript struct {
	Index           int     `json:"index"`
	SourceURL       string  `json:"source_url,omitempty"`
	Text            string  `json:"text,omitempty"`
	Confidence      float64 `json:"confidence,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	ErrorKind       string  `json:"error_kind,omitempty"`
	Error           string  `json:"error,omitempty"`
}

// Succeeded reports whether the asset produced text.
func (t Transcript) Succeeded() bool {
	return t.ErrorKind == ""
}

// Combined summarizes one processed event.
type Combined struct {
	SourceID        string       `json:"source_id"`
	CanvasID        string       `json:"canvas_id,omitempty"`
	CanvasText      string       `json:"canvas_text,omitempty"`
	CanvasTruncated bool         `json:"canvas_truncated,omitempty"`
	Transcripts     []Transcript `json:"transcripts"`
	SucceededCount  int          `json:"succeeded_count"`
	FailedCount     int          `json:"failed_count"`
	Degraded        bool         `json:"degraded"`
	FailureKind     string       `json:"failure_kind,omitempty"`
	FailureReason   string       `json:"failure_reason,omitempty"`
}

// Aggregate builds the summary. doc may be nil for direct audio uploads.
// Transcripts are ordered by asset index regardless of input order.
func Aggregate(sourceID string, doc *canvas.Document, assets []orchestrator.Asset) Combined {
	combined := Combined{
		SourceID:    sourceID,
		Transcripts: make([]Transcript, 0, len(assets)),
	}
	if doc != nil {
		combined.CanvasID = doc.ID
		combined.CanvasText = doc.TextContent
		combined.CanvasTruncated = doc.Truncated
	}

	for _, asset := range assets {
		t := Transcript{
			Index:           asset.Index,
			SourceURL:       asset.SourceURL,
			DurationSeconds: asset.DurationSeconds,
		}
		if asset.Succeeded() {
			t.Text = asset.Transcript
			t.Confidence = asset.Confidence
			combined.SucceededCount++
		} else {
			t.ErrorKind = asset.ErrorKind
			if t.ErrorKind == "" {
				t.ErrorKind = "internal"
			}
			t.Error = asset.Error
			combined.FailedCount++
		}
		combined.Transcripts = append(combined.Transcripts, t)
	}
	sort.SliceStable(combined.Transcripts, func(i, j int) bool {
		return combined.Transcripts[i].Index < combined.Transcripts[j].Index
	})
	return combined
}

// Failure is the summary for a run that produced nothing usable.
func Failure(sourceID, kind, reason string) Combined {
	return Combined{
		SourceID:      sourceID,
		Transcripts:   []Transcript{},
		FailureKind:   kind,
		FailureReason: reason,
	}
}

// Degrade marks the summary as built from partial inputs.
func (c *Combined) Degrade(kind, reason string) {
	c.Degraded = true
	c.FailureKind = kind
	c.FailureReason = reason
}

// JoinedTranscript concatenates successful transcripts in index order.
func (c Combined) JoinedTranscript() string {
	parts := make([]string, 0, len(c.Transcripts))
	for _, t := range c.Transcripts {
		if t.Succeeded() && strings.TrimSpace(t.Text) != "" {
			parts = append(parts, t.Text)
		}
	}
	return strings.Join(parts, SegmentSeparator)
}

// Failed reports whether the run should be recorded as failed: an outright
// failure, or assets were found and none succeeded.
func (c Combined) Failed() bool {
	if c.FailureKind != "" && !c.Degraded {
		return true
	}
	return len(c.Transcripts) > 0 && c.SucceededCount == 0
}

// Ref serializes the summary for storage as a ledger result reference.
func (c Combined) Ref() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(data), nil
}

// ParseRef decodes a stored result reference. ok is false when ref is not a
// JSON summary.
func ParseRef(ref string) (c Combined, ok bool) {
	if err := json.Unmarshal([]byte(ref), &c); err != nil {
		return Combined{}, false
	}
	return c, true
}
