package services_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"testing"

	"slackscribe/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrTransport, "download", "get", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"download", "get", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestKindMapping(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{services.Wrap(services.ErrFormat, "ingest", "parse", "bad body", nil), "format"},
		{services.Wrap(services.ErrClassification, "classify", "", "image/png", nil), "classification"},
		{services.Wrap(services.ErrCanvasFetch, "canvas", "fetch", "", nil), "canvas_fetch"},
		{services.Wrap(services.ErrAuth, "download", "", "", nil), "auth"},
		{services.Wrap(services.ErrNotFound, "resolve", "", "", nil), "not_found"},
		{services.Wrap(services.ErrTransport, "download", "", "", nil), "transport"},
		{services.Wrap(services.ErrConversion, "convert", "", "", nil), "conversion"},
		{services.Wrap(services.ErrTranscription, "transcribe", "", "", nil), "transcription"},
		{fmt.Errorf("wrapped: %w", context.Canceled), "canceled"},
		{errors.New("mystery"), "internal"},
	}
	for _, tc := range cases {
		if got := services.Kind(tc.err); got != tc.want {
			t.Fatalf("Kind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	if !services.IsRetryable(services.Wrap(services.ErrTransport, "download", "", "reset", nil)) {
		t.Fatal("expected transport error to be retryable")
	}
	authTransport := fmt.Errorf("%w: %w", services.ErrTransport, services.ErrAuth)
	if services.IsRetryable(authTransport) {
		t.Fatal("auth errors must never be retried")
	}
	if services.IsRetryable(services.Wrap(services.ErrNotFound, "resolve", "", "", nil)) {
		t.Fatal("not-found errors must never be retried")
	}
	if services.IsRetryable(errors.New("plain")) {
		t.Fatal("unmarked errors are not retryable")
	}
}

func TestClassifyHTTPStatus(t *testing.T) {
	cases := map[int]error{
		http.StatusOK:                  nil,
		http.StatusUnauthorized:        services.ErrAuth,
		http.StatusForbidden:           services.ErrAuth,
		http.StatusNotFound:            services.ErrNotFound,
		http.StatusTooManyRequests:     services.ErrTransport,
		http.StatusBadGateway:          services.ErrTransport,
		http.StatusBadRequest:          services.ErrUpstream,
		http.StatusUnprocessableEntity: services.ErrUpstream,
	}
	for code, want := range cases {
		if got := services.ClassifyHTTPStatus(code); got != want {
			t.Fatalf("ClassifyHTTPStatus(%d) = %v, want %v", code, got, want)
		}
	}
}

func TestClassifyNetworkError(t *testing.T) {
	err := services.ClassifyNetworkError("download", "get", fmt.Errorf("read: %w", syscall.ECONNRESET))
	if !services.IsRetryable(err) {
		t.Fatalf("expected reset to be retryable, got %v", err)
	}
	if got := services.ClassifyNetworkError("download", "get", context.Canceled); !errors.Is(got, context.Canceled) || services.IsRetryable(got) {
		t.Fatalf("expected cancellation to pass through, got %v", got)
	}
	if services.ClassifyNetworkError("download", "get", nil) != nil {
		t.Fatal("expected nil for nil error")
	}
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestClassifyNetworkErrorSeparatesTransientFromPermanent(t *testing.T) {
	transient := map[string]error{
		"timeout":    &url.Error{Op: "Get", URL: "https://files.slack.com/a", Err: timeoutError{}},
		"refused":    &url.Error{Op: "Get", URL: "https://files.slack.com/a", Err: syscall.ECONNREFUSED},
		"truncated":  fmt.Errorf("read body: %w", io.ErrUnexpectedEOF),
		"deadline":   fmt.Errorf("wait: %w", context.DeadlineExceeded),
		"connection": &url.Error{Op: "Get", URL: "https://files.slack.com/a", Err: io.EOF},
	}
	for name, cause := range transient {
		err := services.ClassifyNetworkError("slack", "download", cause)
		if !errors.Is(err, services.ErrTransport) || !services.IsRetryable(err) {
			t.Fatalf("%s: expected retryable transport error, got %v", name, err)
		}
	}

	permanent := map[string]error{
		"scheme":      &url.Error{Op: "Get", URL: "ftp://example.com/clip.mp3", Err: errors.New(`unsupported protocol scheme "ftp"`)},
		"certificate": &url.Error{Op: "Get", URL: "https://example.com", Err: errors.New("x509: certificate signed by unknown authority")},
	}
	for name, cause := range permanent {
		err := services.ClassifyNetworkError("slack", "download", cause)
		if !errors.Is(err, services.ErrUpstream) {
			t.Fatalf("%s: expected upstream marker, got %v", name, err)
		}
		if services.IsRetryable(err) {
			t.Fatalf("%s: expected no retry for %v", name, err)
		}
	}
}
