package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Validate ensures the configuration is usable. Every problem is reported in
// one joined error.
func (c *Config) Validate() error {
	var problems []error
	for _, check := range []func() error{
		c.validateServer,
		c.validateLedger,
		c.validatePipeline,
		c.validateTranscription,
		c.validateTicketing,
		c.validateLogging,
	} {
		if err := check(); err != nil {
			problems = append(problems, err)
		}
	}
	return errors.Join(problems...)
}

func (c *Config) validateServer() error {
	if _, _, err := net.SplitHostPort(c.Server.Bind); err != nil {
		return fmt.Errorf("server.bind %q: %w", c.Server.Bind, err)
	}
	return nil
}

func (c *Config) validateLedger() error {
	switch c.Ledger.Driver {
	case LedgerDriverSQLite:
		if c.Ledger.Path == "" {
			return errors.New("ledger.path must be set for the sqlite driver")
		}
	case LedgerDriverPostgres:
		if c.Ledger.DSN == "" {
			return errors.New("ledger.dsn must be set for the postgres driver (or SLACKSCRIBE_LEDGER_DSN)")
		}
	case LedgerDriverMemory:
	default:
		return fmt.Errorf("ledger.driver %q must be one of sqlite, postgres, memory", c.Ledger.Driver)
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.RetryMaxDelayMS < c.Pipeline.RetryBaseDelayMS {
		return errors.New("pipeline.retry_max_delay_ms must be >= pipeline.retry_base_delay_ms")
	}
	return nil
}

func (c *Config) validateTranscription() error {
	switch c.Transcription.Provider {
	case ProviderDeepgram, ProviderAssemblyAI, ProviderWhisper:
		// API keys are checked by TranscriptionReady at daemon startup.
	case ProviderWhisperX:
		if c.Transcription.WhisperXVADMethod != "silero" && c.Transcription.WhisperXVADMethod != "pyannote" {
			return fmt.Errorf("transcription.whisperx_vad_method %q must be silero or pyannote", c.Transcription.WhisperXVADMethod)
		}
	default:
		return fmt.Errorf("transcription.provider %q must be one of deepgram, assemblyai, whisper, whisperx", c.Transcription.Provider)
	}
	return nil
}

func (c *Config) validateTicketing() error {
	if !c.Ticketing.Enabled {
		return nil
	}
	var missing []string
	if c.Ticketing.OrgID == "" {
		missing = append(missing, "org_id")
	}
	if c.Ticketing.AccessToken == "" && c.Ticketing.RefreshToken == "" {
		missing = append(missing, "access_token or refresh_token")
	}
	if c.Ticketing.RefreshToken != "" && (c.Ticketing.ClientID == "" || c.Ticketing.ClientSecret == "") {
		missing = append(missing, "client_id and client_secret (required with refresh_token)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("ticketing enabled but missing: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q must be console or json", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q must be debug, info, warn, or error", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return fmt.Errorf("logging.retention_days must be >= 0")
	}
	return nil
}

// TranscriptionReady reports whether the configured provider has the
// credentials it needs.
func (c *Config) TranscriptionReady() bool {
	if c.Transcription.Provider == ProviderWhisperX {
		return true
	}
	return c.Transcription.APIKey != ""
}
