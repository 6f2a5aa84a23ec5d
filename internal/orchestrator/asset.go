package orchestrator

// Status is the processing stage an asset has reached.
type Status int

const (
	StatusPending Status = iota
	StatusDownloaded
	StatusConverted
	StatusTranscribed
	StatusDone
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusDownloaded:
		return "downloaded"
	case StatusConverted:
		return "converted"
	case StatusTranscribed:
		return "transcribed"
	case StatusDone:
		return "done"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText renders the status name in JSON summaries.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Asset is one audio file being processed for a request. Local files are
// scratch state of Process and never outlive it, so an Asset carries no path.
type Asset struct {
	Index           int
	SourceURL       string
	FileID          string
	Status          Status
	DetectedMIME    string
	Converted       bool
	DurationSeconds float64
	Transcript      string
	Confidence      float64
	ErrorKind       string
	Error           string
}

// advance moves the asset forward. Backward moves and moves out of a
// terminal state are ignored.
func (a *Asset) advance(to Status) {
	if a.Status == StatusFailed || a.Status == StatusDone {
		return
	}
	if to > a.Status {
		a.Status = to
	}
}

// fail freezes the asset as Failed with the given kind.
func (a *Asset) fail(kind string, err error) {
	if a.Status == StatusFailed || a.Status == StatusDone {
		return
	}
	a.Status = StatusFailed
	a.ErrorKind = kind
	if err != nil {
		a.Error = err.Error()
	}
}

// Succeeded reports whether a transcript was produced.
func (a Asset) Succeeded() bool {
	return a.Status == StatusDone
}
