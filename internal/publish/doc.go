// Package publish delivers a finished transcription run to downstream
// systems: a Zoho Desk ticket and a threaded Slack reply.
//
// Publishers run in sequence through a Chain so later publishers can see
// what earlier ones produced (the Slack reply quotes the ticket number).
// Publishing never changes the ledger outcome of a run; failures are logged,
// counted and returned joined for the caller to report.
package publish
