package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeLedger(); err != nil {
		return err
	}
	c.normalizeServer()
	c.normalizeSlack()
	c.normalizePipeline()
	c.normalizeConversion()
	c.normalizeTranscription()
	c.normalizeTicketing()
	c.normalizeMetrics()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLedger() error {
	c.Ledger.Driver = strings.ToLower(strings.TrimSpace(c.Ledger.Driver))
	if c.Ledger.Driver == "" {
		c.Ledger.Driver = LedgerDriverSQLite
	}
	if strings.TrimSpace(c.Ledger.Path) == "" {
		c.Ledger.Path = defaultLedgerPath
	}
	var err error
	if c.Ledger.Path, err = expandPath(c.Ledger.Path); err != nil {
		return fmt.Errorf("ledger.path: %w", err)
	}
	c.Ledger.DSN = strings.TrimSpace(c.Ledger.DSN)
	if c.Ledger.TTLHours <= 0 {
		c.Ledger.TTLHours = defaultLedgerTTLHours
	}
	if c.Ledger.ExpireIntervalSeconds <= 0 {
		c.Ledger.ExpireIntervalSeconds = defaultLedgerExpireInterval
	}
	return nil
}

func (c *Config) normalizeServer() {
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultBind
	}
	c.Server.APIToken = strings.TrimSpace(c.Server.APIToken)
	c.Server.SigningSecret = strings.TrimSpace(c.Server.SigningSecret)
	if c.Server.MaxBodyBytes <= 0 {
		c.Server.MaxBodyBytes = defaultMaxBodyBytes
	}
	if c.Server.ReadTimeoutSeconds <= 0 {
		c.Server.ReadTimeoutSeconds = defaultReadTimeoutSeconds
	}
	if c.Server.WriteTimeoutSeconds <= 0 {
		c.Server.WriteTimeoutSeconds = defaultWriteTimeoutSeconds
	}
}

func (c *Config) normalizeSlack() {
	c.Slack.BotToken = strings.TrimSpace(c.Slack.BotToken)
	c.Slack.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.Slack.APIBaseURL), "/")
	if c.Slack.APIBaseURL == "" {
		c.Slack.APIBaseURL = defaultSlackAPIBaseURL
	}
	if c.Slack.RequestTimeoutSeconds <= 0 {
		c.Slack.RequestTimeoutSeconds = defaultSlackTimeoutSeconds
	}
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.MaxConcurrentAssets <= 0 {
		c.Pipeline.MaxConcurrentAssets = defaultMaxConcurrentAssets
	}
	if c.Pipeline.CanvasTextLimit <= 0 {
		c.Pipeline.CanvasTextLimit = defaultCanvasTextLimit
	}
	if c.Pipeline.MaxDownloadBytes <= 0 {
		c.Pipeline.MaxDownloadBytes = defaultMaxDownloadBytes
	}
	if c.Pipeline.RetryMaxAttempts <= 0 {
		c.Pipeline.RetryMaxAttempts = defaultRetryMaxAttempts
	}
	if c.Pipeline.RetryBaseDelayMS <= 0 {
		c.Pipeline.RetryBaseDelayMS = defaultRetryBaseDelayMS
	}
	if c.Pipeline.RetryMaxDelayMS <= 0 {
		c.Pipeline.RetryMaxDelayMS = defaultRetryMaxDelayMS
	}
	if c.Pipeline.TimeoutSeconds <= 0 {
		c.Pipeline.TimeoutSeconds = defaultPipelineTimeout
	}
}

func (c *Config) normalizeConversion() {
	if strings.TrimSpace(c.Conversion.FFmpegBinary) == "" {
		c.Conversion.FFmpegBinary = defaultFFmpegBinary
	}
	if strings.TrimSpace(c.Conversion.FFprobeBinary) == "" {
		c.Conversion.FFprobeBinary = defaultFFprobeBinary
	}
	c.Conversion.TargetFormat = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(c.Conversion.TargetFormat)), ".")
	if c.Conversion.TargetFormat == "" {
		c.Conversion.TargetFormat = defaultTargetFormat
	}
	if strings.TrimSpace(c.Conversion.Bitrate) == "" {
		c.Conversion.Bitrate = defaultBitrate
	}
	if c.Conversion.SampleRate <= 0 {
		c.Conversion.SampleRate = defaultSampleRate
	}
	if len(c.Conversion.PassthroughMIMETypes) == 0 {
		c.Conversion.PassthroughMIMETypes = defaultPassthroughMIMETypes()
	}
	for i, value := range c.Conversion.PassthroughMIMETypes {
		c.Conversion.PassthroughMIMETypes[i] = strings.ToLower(strings.TrimSpace(value))
	}
	if c.Conversion.TimeoutSeconds <= 0 {
		c.Conversion.TimeoutSeconds = defaultConversionTimeout
	}
}

func (c *Config) normalizeTranscription() {
	c.Transcription.Provider = strings.ToLower(strings.TrimSpace(c.Transcription.Provider))
	if c.Transcription.Provider == "" {
		c.Transcription.Provider = defaultTranscriptionProvider
	}
	c.Transcription.APIKey = strings.TrimSpace(c.Transcription.APIKey)
	c.Transcription.BaseURL = strings.TrimSpace(c.Transcription.BaseURL)
	if c.Transcription.BaseURL == "" {
		c.Transcription.BaseURL = defaultBaseURL(c.Transcription.Provider)
	}
	c.Transcription.Model = strings.TrimSpace(c.Transcription.Model)
	if c.Transcription.Model == "" {
		c.Transcription.Model = defaultModel(c.Transcription.Provider)
	}
	c.Transcription.Language = strings.TrimSpace(c.Transcription.Language)
	if c.Transcription.TimeoutSeconds <= 0 {
		c.Transcription.TimeoutSeconds = defaultTranscriptionTimeout
	}
	c.Transcription.WhisperXVADMethod = strings.ToLower(strings.TrimSpace(c.Transcription.WhisperXVADMethod))
	if c.Transcription.WhisperXVADMethod == "" {
		c.Transcription.WhisperXVADMethod = defaultWhisperXVADMethod
	}
}

func (c *Config) normalizeTicketing() {
	c.Ticketing.Domain = strings.TrimSpace(c.Ticketing.Domain)
	if c.Ticketing.Domain == "" {
		c.Ticketing.Domain = defaultZohoDomain
	}
	c.Ticketing.AccountsURL = strings.TrimRight(strings.TrimSpace(c.Ticketing.AccountsURL), "/")
	if c.Ticketing.AccountsURL == "" {
		c.Ticketing.AccountsURL = defaultZohoAccountsURL
	}
	if c.Ticketing.DescriptionSize <= 0 {
		c.Ticketing.DescriptionSize = defaultDescriptionSize
	}
}

func (c *Config) normalizeMetrics() {
	c.Metrics.Path = strings.TrimSpace(c.Metrics.Path)
	if c.Metrics.Path == "" {
		c.Metrics.Path = defaultMetricsPath
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		c.Metrics.Path = "/" + c.Metrics.Path
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
