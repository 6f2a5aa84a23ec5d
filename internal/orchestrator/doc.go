// Package orchestrator turns discovered audio references into transcripts.
//
// Each reference becomes an Asset that moves forward through
// Pending → Downloaded → Converted → Transcribed → Done, or stops at Failed
// with a stable error kind. Assets run concurrently under a fixed cap and
// never abort their siblings; the returned slice is in discovery order.
//
// Outbound capabilities (metadata lookup, download, conversion, probing,
// transcription) are small interfaces declared here so tests substitute stubs
// and the daemon wires the Slack, ffmpeg, and provider clients.
package orchestrator
