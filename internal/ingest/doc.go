// Package ingest normalizes inbound chat-platform notifications.
//
// Slack delivers the same logical upload in several shapes: flat JSON from
// workflow steps, nested event callbacks, and form-encoded bodies that may be
// mislabelled as JSON. Normalize tries the declared encoding first and the
// other one second, then resolves each canonical field (fileType, fileId,
// authToken, userId, channelId, timestamp, ...) through a fixed priority chain
// of payload paths. The result is an immutable Event; nothing here touches the
// network or the ledger.
package ingest
