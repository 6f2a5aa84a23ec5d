package ingest

// RawKind describes the upstream shape an event arrived in.
type RawKind string

const (
	KindDirect          RawKind = "direct"
	KindCanvas          RawKind = "canvas"
	KindEventCallback   RawKind = "event_callback"
	KindURLVerification RawKind = "url_verification"
)

// Canonical field names produced by Normalize.
const (
	FieldFileType  = "fileType"
	FieldFileID    = "fileId"
	FieldAuthToken = "authToken"
	FieldUserID    = "userId"
	FieldChannelID = "channelId"
	FieldTimestamp = "timestamp"
	FieldFileURL   = "fileUrl"
	FieldFileName  = "fileName"
	FieldMIMEType  = "mimeType"
	FieldThreadTS  = "threadTs"
	FieldEventType = "eventType"
	FieldChallenge = "challenge"
)

// Event is the canonical form of an inbound chat notification. It is built
// once per request and never mutated afterwards; use With to derive an
// enriched copy.
type Event struct {
	SourceID string
	RawKind  RawKind
	Fields   map[string]string
}

// Field returns the canonical field value or "".
func (e Event) Field(name string) string {
	if e.Fields == nil {
		return ""
	}
	return e.Fields[name]
}

// With returns a copy of e with the supplied fields set. Empty values are
// ignored so enrichment never erases what the payload carried.
func (e Event) With(fields map[string]string) Event {
	merged := make(map[string]string, len(e.Fields)+len(fields))
	for k, v := range e.Fields {
		merged[k] = v
	}
	for k, v := range fields {
		if v != "" {
			merged[k] = v
		}
	}
	e.Fields = merged
	return e
}
