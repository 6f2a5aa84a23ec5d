// Package pipeline coordinates one inbound webhook from raw bytes to a
// published result.
//
// Handle normalizes and classifies the payload, claims its fingerprint in the
// duplicate-prevention ledger, extracts audio references (from a canvas or the
// upload itself), hands them to the orchestrator, aggregates the outcome,
// records it in the ledger and publishes it exactly once. Classification runs
// before the claim so unsupported uploads never touch the ledger.
//
// NewFromConfig wires the production collaborators (Slack client, ffmpeg,
// ffprobe, transcription provider, Zoho and Slack publishers, ntfy) from the
// loaded configuration.
package pipeline
