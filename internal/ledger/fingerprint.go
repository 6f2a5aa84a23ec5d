package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

const fingerprintDomain = "slackscribe/ledger/v1"

// Fingerprint derives the deduplication key for a Slack file. The source URL
// is canonicalized first so signed query strings and host casing do not
// produce distinct keys for the same file.
func Fingerprint(sourceURL, userID, channelID, timestamp string) string {
	parts := []string{
		CanonicalSourceURL(sourceURL),
		strings.TrimSpace(userID),
		strings.TrimSpace(channelID),
		strings.TrimSpace(timestamp),
	}
	h := sha256.New()
	h.Write([]byte(fingerprintDomain))
	h.Write([]byte{0})
	for _, part := range parts {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// SourceKey returns the value hashed as the source component of a
// fingerprint: the file URL when present, otherwise a stable file-id key.
func SourceKey(fileURL, fileID string) string {
	if strings.TrimSpace(fileURL) != "" {
		return fileURL
	}
	return "slack-file:" + strings.TrimSpace(fileID)
}

// CanonicalSourceURL lowercases scheme and host and drops query and fragment.
// Values that do not parse as absolute URLs are returned trimmed.
func CanonicalSourceURL(raw string) string {
	raw = strings.TrimSpace(raw)
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return raw
	}
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.RawQuery = ""
	parsed.ForceQuery = false
	parsed.Fragment = ""
	parsed.RawFragment = ""
	return parsed.String()
}
