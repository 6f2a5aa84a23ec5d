package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"slackscribe/internal/config"
	"slackscribe/internal/deps"
	"slackscribe/internal/services"
	"slackscribe/internal/services/slack"
)

// CheckSlack verifies that the Slack Web API is reachable and the bot token
// is accepted. It uses a 10-second timeout and a single attempt.
func CheckSlack(ctx context.Context, baseURL, token string) Result {
	const name = "Slack"

	if strings.TrimSpace(token) == "" {
		return Result{Name: name, Detail: "missing bot token"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := slack.New(slack.Config{
		BotToken:   token,
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	})
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	id, err := client.AuthTest(checkCtx, "")
	if err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	detail := "Reachable"
	if id.Team != "" {
		detail = fmt.Sprintf("Reachable (team %s as %s)", id.Team, id.User)
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the binaries the configured pipeline shells out
// to. The daemon health endpoint and the CLI status command share this list.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.Check(deps.Toolchain{
		FFmpeg:     cfg.Conversion.FFmpegBinary,
		FFprobe:    cfg.Conversion.FFprobeBinary,
		Converting: cfg.Conversion.Enabled,
		WhisperX:   cfg.Transcription.Provider == config.ProviderWhisperX,
	})
}

// summarizeError produces a human-readable summary for remote check failures.
func summarizeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "check timed out (API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (API unreachable)"
	}
	if errors.Is(err, services.ErrAuth) {
		return "auth failed (invalid token)"
	}
	return err.Error()
}
