package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"slackscribe/internal/config"
	"slackscribe/internal/ledger"
	"slackscribe/internal/result"
	"slackscribe/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	homeDir    string
}

// setupCLITestEnv writes a config file into a scratch HOME and clears the
// environment overrides that would otherwise leak in from the host.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	for _, name := range []string{
		"SLACK_BOT_TOKEN", "SLACK_SIGNING_SECRET", "SLACKSCRIBE_API_TOKEN",
		"SLACKSCRIBE_LEDGER_DRIVER", "SLACKSCRIBE_LEDGER_DSN", "NTFY_TOPIC", "PORT",
	} {
		t.Setenv(name, "")
	}

	homeDir := filepath.Join(t.TempDir(), "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	cfg := testsupport.NewConfig(t)
	// No bot token keeps preflight and the pipeline off the network.
	cfg.Slack.BotToken = ""

	configPath := filepath.Join(homeDir, ".config", "slackscribe", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, configPath: configPath, homeDir: homeDir}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
work_dir = %q
log_dir = %q
env_file = ""

[server]
bind = %q
api_token = %q

[ledger]
driver = %q
path = %q

[transcription]
api_key = %q

[metrics]
enabled = false
`,
		cfg.Paths.WorkDir,
		cfg.Paths.LogDir,
		cfg.Server.Bind,
		cfg.Server.APIToken,
		cfg.Ledger.Driver,
		cfg.Ledger.Path,
		cfg.Transcription.APIKey,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	return runCLIWithInput(t, args, configPath, nil)
}

func runCLIWithInput(t *testing.T, args []string, configPath string, stdin io.Reader) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	if stdin != nil {
		cmd.SetIn(stdin)
	}
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// seedLedger records a completed entry and returns its fingerprint. A
// non-zero claimedAt backdates the claim so it is already expired.
func seedLedger(t *testing.T, cfg *config.Config, sourceID string, claimedAt time.Time) string {
	t.Helper()
	var opts []ledger.Option
	if !claimedAt.IsZero() {
		opts = append(opts, ledger.WithClock(func() time.Time { return claimedAt }))
	}
	store, err := ledger.Open(context.Background(), cfg, opts...)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	defer store.Close()

	fp := ledger.Fingerprint("https://files.example.com/"+sourceID, "U1", "C1", "1700000000.000100")
	if _, err := store.Claim(context.Background(), fp, sourceID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	ref, err := result.Combined{
		SourceID:       sourceID,
		Transcripts:    []result.Transcript{{Index: 0, Text: "hello"}},
		SucceededCount: 1,
	}.Ref()
	if err != nil {
		t.Fatalf("result ref: %v", err)
	}
	if err := store.Complete(context.Background(), fp, ledger.StatusCompleted, ref); err != nil {
		t.Fatalf("complete: %v", err)
	}
	return fp
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
