package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
)

var (
	ErrFormat         = errors.New("format error")
	ErrClassification = errors.New("classification error")
	ErrCanvasFetch    = errors.New("canvas fetch error")
	ErrTransport      = errors.New("transport error")
	ErrAuth           = errors.New("auth error")
	ErrNotFound       = errors.New("not found")
	ErrConversion     = errors.New("conversion error")
	ErrTranscription  = errors.New("transcription error")
	ErrUpstream       = errors.New("upstream rejected request")
	ErrConfiguration  = errors.New("configuration error")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransport
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind returns the stable error kind recorded on failed assets and surfaced in
// API responses. Unknown errors report "internal".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrFormat):
		return "format"
	case errors.Is(err, ErrClassification):
		return "classification"
	case errors.Is(err, ErrCanvasFetch):
		return "canvas_fetch"
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, ErrConversion):
		return "conversion"
	case errors.Is(err, ErrTranscription):
		return "transcription"
	case errors.Is(err, ErrUpstream):
		return "upstream"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "internal"
	}
}

// IsRetryable reports whether err is a transient transport failure. Auth and
// not-found failures are never retryable even when they also carry a
// transport marker. Callers still check their own context before retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAuth) || errors.Is(err, ErrNotFound) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, ErrTransport)
}

// ClassifyHTTPStatus maps an upstream HTTP status to the marker describing it.
// Success statuses return nil.
func ClassifyHTTPStatus(code int) error {
	switch {
	case code < http.StatusMultipleChoices:
		return nil
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return ErrAuth
	case code == http.StatusNotFound, code == http.StatusGone:
		return ErrNotFound
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests, code >= http.StatusInternalServerError:
		return ErrTransport
	default:
		return ErrUpstream
	}
}

// ClassifyNetworkError tags a failed HTTP round trip. Only transient failures
// become ErrTransport; the rest are ErrUpstream and are not retried.
// Cancellation is returned as-is.
func ClassifyNetworkError(stage, operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if isTransient(err) {
		return Wrap(ErrTransport, stage, operation, "network failure", err)
	}
	return Wrap(ErrUpstream, stage, operation, "request failed", err)
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
