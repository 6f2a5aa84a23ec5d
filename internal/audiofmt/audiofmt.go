// Package audiofmt holds the audio format tables shared by classification,
// canvas parsing, and conversion: accepted extensions, upload MIME types, and
// content sniffing.
package audiofmt

import (
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var extensions = map[string]struct{}{
	"mp3": {}, "wav": {}, "m4a": {}, "mp4": {}, "aac": {}, "ogg": {}, "flac": {}, "webm": {},
}

var mimeExtensions = map[string]string{
	"audio/mpeg":   "mp3",
	"audio/mp3":    "mp3",
	"audio/wav":    "wav",
	"audio/x-wav":  "wav",
	"audio/wave":   "wav",
	"audio/m4a":    "m4a",
	"audio/x-m4a":  "m4a",
	"audio/mp4":    "mp4",
	"video/mp4":    "mp4",
	"audio/aac":    "aac",
	"audio/ogg":    "ogg",
	"audio/webm":   "webm",
	"video/webm":   "webm",
	"audio/flac":   "flac",
	"audio/x-flac": "flac",
}

// Extensions returns the supported audio extensions in a stable order.
func Extensions() []string {
	return []string{"mp3", "mp4", "wav", "m4a", "aac", "ogg", "flac", "webm"}
}

// IsAudioExtension reports whether ext (with or without a leading dot) is a
// supported audio extension.
func IsAudioExtension(ext string) bool {
	_, ok := extensions[normalizeExt(ext)]
	return ok
}

// ExtensionForMIME maps an upload MIME type to its audio extension.
func ExtensionForMIME(mimeType string) (string, bool) {
	mediaType := strings.ToLower(strings.TrimSpace(mimeType))
	if idx := strings.IndexByte(mediaType, ';'); idx >= 0 {
		mediaType = strings.TrimSpace(mediaType[:idx])
	}
	ext, ok := mimeExtensions[mediaType]
	return ext, ok
}

// ExtensionFromURL returns the audio extension of a URL's path, ignoring the
// query and fragment. ok is false when the path has no supported extension.
func ExtensionFromURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	p := raw
	if parsed, err := url.Parse(raw); err == nil && parsed.Path != "" {
		p = parsed.Path
	}
	ext := normalizeExt(path.Ext(p))
	if _, ok := extensions[ext]; !ok {
		return "", false
	}
	return ext, true
}

func normalizeExt(ext string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
}

// Detected describes the sniffed format of a file.
type Detected struct {
	MIME      string
	Extension string
	Audio     bool
}

// Sniff inspects the leading bytes of r and reports the detected format. The
// file name is never consulted.
func Sniff(r io.Reader) (Detected, error) {
	mt, err := mimetype.DetectReader(r)
	if err != nil {
		return Detected{}, fmt.Errorf("sniff content: %w", err)
	}
	return describe(mt), nil
}

// SniffFile is Sniff over a file on disk.
func SniffFile(filePath string) (Detected, error) {
	mt, err := mimetype.DetectFile(filePath)
	if err != nil {
		return Detected{}, fmt.Errorf("sniff %s: %w", filePath, err)
	}
	return describe(mt), nil
}

func describe(mt *mimetype.MIME) Detected {
	detected := Detected{
		MIME:      mt.String(),
		Extension: normalizeExt(mt.Extension()),
	}
	for m := mt; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "audio/") {
			detected.Audio = true
			break
		}
	}
	if _, ok := ExtensionForMIME(detected.MIME); ok {
		detected.Audio = true
	}
	return detected
}

// Matches reports whether the detected MIME type (or one of its aliases) is
// in the allowed list.
func (d Detected) Matches(allowed []string) bool {
	mt := mimetype.Lookup(d.MIME)
	for _, candidate := range allowed {
		candidate = strings.ToLower(strings.TrimSpace(candidate))
		if candidate == "" {
			continue
		}
		if mt != nil && mt.Is(candidate) {
			return true
		}
		if strings.EqualFold(d.MIME, candidate) {
			return true
		}
	}
	return false
}
