// Package slack wraps the handful of Slack Web API calls the pipeline needs:
// file metadata lookups, canvas block retrieval, authenticated downloads of
// private file URLs, and threaded replies.
//
// Every call maps HTTP statuses and Slack's `ok:false` error codes onto the
// services markers so callers can decide on retries and error kinds without
// knowing Slack's vocabulary.
package slack
