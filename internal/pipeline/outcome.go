package pipeline

import (
	"slackscribe/internal/classify"
	"slackscribe/internal/ingest"
	"slackscribe/internal/ledger"
	"slackscribe/internal/publish"
	"slackscribe/internal/result"
)

// OutcomeKind enumerates how a request ended.
type OutcomeKind int

const (
	// OutcomeProcessed means the pipeline ran and recorded a terminal result,
	// which may itself describe failed assets.
	OutcomeProcessed OutcomeKind = iota
	OutcomeChallenge
	OutcomeFormatError
	OutcomeUnsupported
	OutcomeDuplicate
	OutcomeInternalError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeProcessed:
		return "processed"
	case OutcomeChallenge:
		return "url_verification"
	case OutcomeFormatError:
		return "format_error"
	case OutcomeUnsupported:
		return "unsupported"
	case OutcomeDuplicate:
		return "duplicate"
	default:
		return "internal_error"
	}
}

// Outcome is everything the HTTP layer and CLI need to render a response.
type Outcome struct {
	Kind           OutcomeKind
	CorrelationID  string
	Challenge      string
	Event          ingest.Event
	Classification classify.Result
	Fingerprint    string

	// Prior is the existing ledger entry for duplicates; PriorResult is its
	// decoded result reference when one was stored.
	Prior       *ledger.Entry
	PriorResult *result.Combined

	Result  result.Combined
	Receipt publish.Receipt
	Err     error
}
