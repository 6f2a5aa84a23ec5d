package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkDir string `toml:"work_dir"`
	LogDir  string `toml:"log_dir"`
	EnvFile string `toml:"env_file"`
}

// Server contains HTTP listener configuration.
type Server struct {
	Bind                string `toml:"bind"`
	APIToken            string `toml:"api_token"`
	SigningSecret       string `toml:"signing_secret"`
	MaxBodyBytes        int64  `toml:"max_body_bytes"`
	ReadTimeoutSeconds  int    `toml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `toml:"write_timeout_seconds"`
}

// Slack contains chat platform API configuration.
type Slack struct {
	BotToken              string `toml:"bot_token"`
	APIBaseURL            string `toml:"api_base_url"`
	FeedbackEnabled       bool   `toml:"feedback_enabled"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Ledger contains duplicate-prevention store configuration.
type Ledger struct {
	Driver                string `toml:"driver"`
	Path                  string `toml:"path"`
	DSN                   string `toml:"dsn"`
	TTLHours              int    `toml:"ttl_hours"`
	ExpireIntervalSeconds int    `toml:"expire_interval_seconds"`
}

// Pipeline contains per-request processing limits.
type Pipeline struct {
	MaxConcurrentAssets int   `toml:"max_concurrent_assets"`
	CanvasTextLimit     int   `toml:"canvas_text_limit"`
	MaxDownloadBytes    int64 `toml:"max_download_bytes"`
	RetryMaxAttempts    int   `toml:"retry_max_attempts"`
	RetryBaseDelayMS    int   `toml:"retry_base_delay_ms"`
	RetryMaxDelayMS     int   `toml:"retry_max_delay_ms"`
	TimeoutSeconds      int   `toml:"timeout_seconds"`
}

// Conversion contains audio transcoding configuration.
type Conversion struct {
	Enabled              bool     `toml:"enabled"`
	FFmpegBinary         string   `toml:"ffmpeg_binary"`
	FFprobeBinary        string   `toml:"ffprobe_binary"`
	TargetFormat         string   `toml:"target_format"`
	Bitrate              string   `toml:"bitrate"`
	SampleRate           int      `toml:"sample_rate"`
	PassthroughMIMETypes []string `toml:"passthrough_mime_types"`
	TimeoutSeconds       int      `toml:"timeout_seconds"`
}

// Transcription contains speech-to-text provider configuration.
type Transcription struct {
	Provider            string `toml:"provider"`
	APIKey              string `toml:"api_key"`
	BaseURL             string `toml:"base_url"`
	Model               string `toml:"model"`
	Language            string `toml:"language"`
	TimeoutSeconds      int    `toml:"timeout_seconds"`
	WhisperXCUDAEnabled bool   `toml:"whisperx_cuda_enabled"`
	WhisperXVADMethod   string `toml:"whisperx_vad_method"`
}

// Ticketing contains help-desk publisher configuration.
type Ticketing struct {
	Enabled         bool   `toml:"enabled"`
	Domain          string `toml:"domain"`
	AccountsURL     string `toml:"accounts_url"`
	OrgID           string `toml:"org_id"`
	DepartmentID    string `toml:"department_id"`
	ContactID       string `toml:"contact_id"`
	ClientID        string `toml:"client_id"`
	ClientSecret    string `toml:"client_secret"`
	RefreshToken    string `toml:"refresh_token"`
	AccessToken     string `toml:"access_token"`
	DescriptionSize int    `toml:"description_size"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	RunCompleted   bool   `toml:"run_completed"`
	RunFailed      bool   `toml:"run_failed"`
	Errors         bool   `toml:"errors"`
}

// Metrics contains Prometheus exposition configuration.
type Metrics struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for slackscribe.
//
// Configuration sections by subsystem:
//   - Paths: working and log directories plus the optional .env file
//   - Server: webhook listener, operator API token, request signing
//   - Slack: bot token and API base URL
//   - Ledger: duplicate-prevention store backend and retention
//   - Pipeline: concurrency, text limits, retry policy
//   - Conversion: ffmpeg transcoding
//   - Transcription: speech-to-text provider
//   - Ticketing: Zoho Desk publisher
//   - Notifications: ntfy push notification settings
//   - Metrics: Prometheus endpoint
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Server        Server        `toml:"server"`
	Slack         Slack         `toml:"slack"`
	Ledger        Ledger        `toml:"ledger"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Conversion    Conversion    `toml:"conversion"`
	Transcription Transcription `toml:"transcription"`
	Ticketing     Ticketing     `toml:"ticketing"`
	Notifications Notifications `toml:"notifications"`
	Metrics       Metrics       `toml:"metrics"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. Secrets from the
// environment (and the optional .env file) override file values. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("slackscribe.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.WorkDir, c.Paths.LogDir}
	if c.Ledger.Driver == LedgerDriverSQLite {
		dirs = append(dirs, filepath.Dir(c.Ledger.Path))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LedgerTTL returns the retention window applied to ledger claims.
func (c *Config) LedgerTTL() time.Duration {
	return time.Duration(c.Ledger.TTLHours) * time.Hour
}

// LedgerExpireInterval returns how often expired ledger entries are purged.
func (c *Config) LedgerExpireInterval() time.Duration {
	return time.Duration(c.Ledger.ExpireIntervalSeconds) * time.Second
}

// RetryBaseDelay returns the first retry delay for transient transport failures.
func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.Pipeline.RetryBaseDelayMS) * time.Millisecond
}

// RetryMaxDelay returns the cap applied to retry backoff.
func (c *Config) RetryMaxDelay() time.Duration {
	return time.Duration(c.Pipeline.RetryMaxDelayMS) * time.Millisecond
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.WorkDir, "slackscribe.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
