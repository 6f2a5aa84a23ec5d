// Package main hosts the slackscribe CLI entrypoint and command graph.
//
// The Cobra command tree runs the webhook daemon in the foreground, pushes
// single payloads through the pipeline for debugging, inspects and prunes the
// duplicate-prevention ledger, and scaffolds configuration. Configuration is
// resolved lazily once per invocation so commands such as `config init` can
// opt out.
//
// New behavior belongs in the internal packages first; commands here only
// parse flags, call into them, and render the result.
package main
