package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"slackscribe/internal/services"
)

var (
	errEmptyBody    = errors.New("empty body")
	errNotJSONObj   = errors.New("body is not a JSON object")
	errTrailingJSON = errors.New("body has data after the JSON object")
	errNotForm      = errors.New("body is not form encoded")

	filesPriPattern = regexp.MustCompile(`/files-pri/[^/]+-([A-Z0-9]+)/`)
	filesPattern    = regexp.MustCompile(`/files/[^/]+/([A-Z0-9]+)/`)
)

// Normalizer converts inbound payloads into Events. Defaults fill canonical
// fields the payload does not carry (typically the configured bot token as
// authToken).
type Normalizer struct {
	Defaults map[string]string
}

// Normalize parses body with the strategy matching contentType first and the
// other strategy as a fallback, then resolves every canonical field through
// its priority chain. It performs no I/O.
func (n Normalizer) Normalize(body []byte, contentType string) (Event, error) {
	doc, err := parseBody(body, contentType)
	if err != nil {
		return Event{}, services.Wrap(services.ErrFormat, "ingest", "parse", "unparseable body", err)
	}

	fields := make(map[string]string, len(fieldChains))
	for _, chain := range fieldChains {
		if value := resolveChain(doc, chain.paths); value != "" {
			fields[chain.field] = value
		}
	}

	if strings.EqualFold(lookupString(doc, "type"), "url_verification") {
		return Event{SourceID: "url_verification", RawKind: KindURLVerification, Fields: fields}, nil
	}

	if fields[FieldFileID] == "" {
		if id := FileIDFromURL(fields[FieldFileURL]); id != "" {
			fields[FieldFileID] = id
		}
	}
	for key, value := range n.Defaults {
		if fields[key] == "" && strings.TrimSpace(value) != "" {
			fields[key] = strings.TrimSpace(value)
		}
	}

	var missing []string
	for _, name := range requiredFields {
		if fields[name] == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return Event{}, services.Wrap(services.ErrFormat, "ingest", "resolve fields", "missing "+strings.Join(missing, ", "), nil)
	}

	kind := KindDirect
	switch {
	case strings.EqualFold(lookupString(doc, "type"), "event_callback"):
		kind = KindEventCallback
	case IsCanvasMarker(fields[FieldFileType]):
		kind = KindCanvas
	}

	sourceID := resolveChain(doc, sourceIDChain)
	if sourceID == "" {
		sourceID = fields[FieldFileID]
	}
	return Event{SourceID: sourceID, RawKind: kind, Fields: fields}, nil
}

// Normalize is a convenience for Normalizer{}.Normalize.
func Normalize(body []byte, contentType string) (Event, error) {
	return Normalizer{}.Normalize(body, contentType)
}

// FileIDFromURL recovers a Slack file identifier from a private download or
// permalink URL. It returns "" when the URL carries none.
func FileIDFromURL(raw string) string {
	if raw == "" {
		return ""
	}
	if m := filesPriPattern.FindStringSubmatch(raw); len(m) == 2 {
		return m[1]
	}
	if m := filesPattern.FindStringSubmatch(raw); len(m) == 2 {
		return m[1]
	}
	return ""
}

// IsCanvasMarker reports whether a fileType value denotes a canvas document.
func IsCanvasMarker(fileType string) bool {
	switch strings.ToLower(strings.TrimSpace(fileType)) {
	case "canvas", "quip", "application/vnd.slack.canvas", "text/canvas":
		return true
	default:
		return false
	}
}

func parseBody(body []byte, contentType string) (map[string]any, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errEmptyBody
	}
	strategies := []func([]byte) (map[string]any, error){parseJSON, parseForm}
	if declaresForm(contentType) {
		strategies = []func([]byte) (map[string]any, error){parseForm, parseJSON}
	}
	var errs []error
	for _, parse := range strategies {
		doc, err := parse(trimmed)
		if err == nil {
			return doc, nil
		}
		errs = append(errs, err)
	}
	return nil, errors.Join(errs...)
}

func declaresForm(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	return mediaType == "application/x-www-form-urlencoded" || mediaType == "multipart/form-data"
}

func parseJSON(body []byte) (map[string]any, error) {
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	var doc any
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return nil, errTrailingJSON
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, errNotJSONObj
	}
	return obj, nil
}

// parseForm accepts key=value pairs. Slack interactive payloads wrap a JSON
// document in a "payload" field; its keys are merged beneath the form keys.
func parseForm(body []byte) (map[string]any, error) {
	if body[0] == '{' || body[0] == '[' {
		return nil, errNotForm
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("decode form: %w", err)
	}
	if len(values) == 0 {
		return nil, errNotForm
	}
	doc := make(map[string]any, len(values))
	if raw := values.Get("payload"); raw != "" {
		if nested, err := parseJSON([]byte(raw)); err == nil {
			for k, v := range nested {
				doc[k] = v
			}
		}
	}
	for key, vals := range values {
		if key == "payload" || len(vals) == 0 {
			continue
		}
		doc[key] = vals[0]
	}
	return doc, nil
}

func resolveChain(doc map[string]any, paths []string) string {
	for _, path := range paths {
		if value := lookupString(doc, path); value != "" {
			return value
		}
	}
	return ""
}

// lookupString resolves a dotted path. A literal key containing dots (as form
// bodies may carry) wins over nested traversal.
func lookupString(doc map[string]any, path string) string {
	if v, ok := doc[path]; ok {
		return scalarString(v)
	}
	var current any = doc
	for _, segment := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[segment]
			if !ok {
				return ""
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return ""
			}
			current = node[idx]
		default:
			return ""
		}
	}
	return scalarString(current)
}

func scalarString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return ""
	}
}
