package daemon

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"slackscribe/internal/services"
)

const (
	signatureHeader     = "X-Slack-Signature"
	timestampHeader     = "X-Slack-Request-Timestamp"
	signatureVersion    = "v0"
	maxSignatureSkewAge = 5 * time.Minute
)

// verifySlackSignature checks the v0 request signature: an HMAC-SHA256 of
// "v0:<timestamp>:<body>" keyed by the signing secret. Requests whose
// timestamp is more than five minutes from now are rejected to block replays.
func verifySlackSignature(secret string, header http.Header, body []byte, now time.Time) error {
	tsRaw := strings.TrimSpace(header.Get(timestampHeader))
	sig := strings.TrimSpace(header.Get(signatureHeader))
	if tsRaw == "" || sig == "" {
		return signatureError("missing signature headers")
	}
	ts, err := strconv.ParseInt(tsRaw, 10, 64)
	if err != nil {
		return signatureError("malformed timestamp")
	}
	skew := now.Sub(time.Unix(ts, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > maxSignatureSkewAge {
		return signatureError(fmt.Sprintf("timestamp outside %s window", maxSignatureSkewAge))
	}
	expected := computeSlackSignature(secret, tsRaw, body)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return signatureError("signature mismatch")
	}
	return nil
}

func computeSlackSignature(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signatureVersion + ":" + timestamp + ":"))
	mac.Write(body)
	return signatureVersion + "=" + hex.EncodeToString(mac.Sum(nil))
}

func signatureError(message string) error {
	return services.Wrap(services.ErrAuth, "webhook", "verify signature", message, nil)
}
