package classify_test

import (
	"errors"
	"strings"
	"testing"

	"slackscribe/internal/classify"
	"slackscribe/internal/ingest"
	"slackscribe/internal/services"
)

func event(fields map[string]string) ingest.Event {
	return ingest.Event{SourceID: "S1", RawKind: ingest.KindDirect, Fields: fields}
}

func TestClassifyDirectAudio(t *testing.T) {
	cases := map[string]string{
		"mp3":         "mp3",
		".M4A":        "m4a",
		"audio/mpeg":  "mp3",
		"audio/x-wav": "wav",
		"video/mp4":   "mp4",
		"webm":        "webm",
	}
	for fileType, wantExt := range cases {
		res, err := classify.Classify(event(map[string]string{ingest.FieldFileType: fileType}))
		if err != nil {
			t.Fatalf("%s: unexpected error %v", fileType, err)
		}
		if res.Kind != classify.DirectAudio || res.Extension != wantExt {
			t.Fatalf("%s: got %+v", fileType, res)
		}
	}
}

func TestClassifyCanvas(t *testing.T) {
	for _, marker := range []string{"canvas", "quip", "application/vnd.slack.canvas", "text/canvas"} {
		res, err := classify.Classify(event(map[string]string{ingest.FieldFileType: marker, ingest.FieldFileID: "F0CAN"}))
		if err != nil {
			t.Fatalf("%s: unexpected error %v", marker, err)
		}
		if res.Kind != classify.CanvasDocument || res.CanvasID != "F0CAN" {
			t.Fatalf("%s: got %+v", marker, res)
		}
	}
}

func TestClassifyUnsupported(t *testing.T) {
	res, err := classify.Classify(event(map[string]string{ingest.FieldFileType: "image/png"}))
	if !errors.Is(err, services.ErrClassification) {
		t.Fatalf("expected classification error, got %v", err)
	}
	if res.Kind != classify.Unsupported || !strings.Contains(res.Reason, "image/png") {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestClassifyFallsBackToMIMEType(t *testing.T) {
	res, err := classify.Classify(event(map[string]string{ingest.FieldMIMEType: "audio/ogg"}))
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if res.Kind != classify.DirectAudio || res.Extension != "ogg" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestClassifyMissingType(t *testing.T) {
	res, err := classify.Classify(event(map[string]string{}))
	if err == nil || res.Kind != classify.Unsupported {
		t.Fatalf("expected unsupported for missing type, got %+v %v", res, err)
	}
	if res.Kind.String() != "unsupported" {
		t.Fatalf("unexpected kind string %q", res.Kind.String())
	}
}
