// Package classify decides what kind of object an ingest event references.
package classify

import (
	"fmt"
	"strings"

	"slackscribe/internal/audiofmt"
	"slackscribe/internal/ingest"
	"slackscribe/internal/services"
)

// Kind enumerates classification outcomes.
type Kind int

const (
	Unsupported Kind = iota
	DirectAudio
	CanvasDocument
)

func (k Kind) String() string {
	switch k {
	case DirectAudio:
		return "direct_audio"
	case CanvasDocument:
		return "canvas"
	default:
		return "unsupported"
	}
}

// Result is the outcome of Classify. Extension is set for DirectAudio,
// CanvasID for CanvasDocument, Reason for Unsupported.
type Result struct {
	Kind      Kind
	Extension string
	CanvasID  string
	Reason    string
}

// Classify is a pure lookup on the event's fileType, which may be a bare
// extension ("m4a"), a dotted extension, or a MIME type ("audio/mpeg"). An
// Unsupported result is always returned together with an ErrClassification
// error.
func Classify(ev ingest.Event) (Result, error) {
	fileType := strings.ToLower(strings.TrimSpace(ev.Field(ingest.FieldFileType)))
	if fileType == "" {
		fileType = strings.ToLower(strings.TrimSpace(ev.Field(ingest.FieldMIMEType)))
	}

	switch {
	case fileType == "":
		return unsupported("file type missing")
	case ingest.IsCanvasMarker(fileType):
		return Result{Kind: CanvasDocument, CanvasID: ev.Field(ingest.FieldFileID)}, nil
	case audiofmt.IsAudioExtension(fileType):
		return Result{Kind: DirectAudio, Extension: strings.TrimPrefix(fileType, ".")}, nil
	}
	if ext, ok := audiofmt.ExtensionForMIME(fileType); ok {
		return Result{Kind: DirectAudio, Extension: ext}, nil
	}
	return unsupported(fmt.Sprintf("unsupported file type %q", fileType))
}

func unsupported(reason string) (Result, error) {
	return Result{Kind: Unsupported, Reason: reason},
		services.Wrap(services.ErrClassification, "classify", "", reason, nil)
}
