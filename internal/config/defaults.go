package config

const (
	defaultConfigPath = "~/.config/slackscribe/config.toml"
	defaultWorkDir    = "~/.local/share/slackscribe/work"
	defaultLogDir     = "~/.local/share/slackscribe/logs"
	defaultEnvFile    = ".env"

	defaultBind                = "0.0.0.0:8000"
	defaultMaxBodyBytes        = 1 << 20
	defaultReadTimeoutSeconds  = 15
	defaultWriteTimeoutSeconds = 300

	defaultSlackAPIBaseURL       = "https://slack.com/api"
	defaultSlackTimeoutSeconds   = 30
	defaultSlackFeedbackEnabled  = true
	defaultLedgerPath            = "~/.local/share/slackscribe/ledger.db"
	defaultLedgerTTLHours        = 24
	defaultLedgerExpireInterval  = 3600
	defaultMaxConcurrentAssets   = 5
	defaultCanvasTextLimit       = 1000
	defaultMaxDownloadBytes      = 512 << 20
	defaultRetryMaxAttempts      = 3
	defaultRetryBaseDelayMS      = 500
	defaultRetryMaxDelayMS       = 4000
	defaultPipelineTimeout       = 600
	defaultFFmpegBinary          = "ffmpeg"
	defaultFFprobeBinary         = "ffprobe"
	defaultTargetFormat          = "mp3"
	defaultBitrate               = "128k"
	defaultSampleRate            = 44100
	defaultConversionTimeout     = 120
	defaultTranscriptionProvider = ProviderDeepgram
	defaultTranscriptionTimeout  = 300
	defaultTranscriptionLanguage = "en"
	defaultWhisperXVADMethod     = "silero"
	defaultZohoDomain            = "desk.zoho.com"
	defaultZohoAccountsURL       = "https://accounts.zoho.com"
	defaultDescriptionSize       = 1000
	defaultNotifyTimeout         = 10
	defaultMetricsPath           = "/metrics"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultLogRetentionDays      = 14
)

// Ledger backends.
const (
	LedgerDriverSQLite   = "sqlite"
	LedgerDriverPostgres = "postgres"
	LedgerDriverMemory   = "memory"
)

// Transcription providers.
const (
	ProviderDeepgram   = "deepgram"
	ProviderAssemblyAI = "assemblyai"
	ProviderWhisper    = "whisper"
	ProviderWhisperX   = "whisperx"
)

func defaultPassthroughMIMETypes() []string {
	return []string{"audio/mpeg", "audio/wav", "audio/flac", "audio/ogg"}
}

func defaultModel(provider string) string {
	switch provider {
	case ProviderDeepgram:
		return "nova-2"
	case ProviderAssemblyAI:
		return "best"
	case ProviderWhisper:
		return "whisper-1"
	case ProviderWhisperX:
		return "large-v3"
	default:
		return ""
	}
}

func defaultBaseURL(provider string) string {
	switch provider {
	case ProviderDeepgram:
		return "https://api.deepgram.com/v1/listen"
	case ProviderAssemblyAI:
		return "https://api.assemblyai.com/v2"
	case ProviderWhisper:
		return "https://api.openai.com/v1/audio/transcriptions"
	default:
		return ""
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir: defaultWorkDir,
			LogDir:  defaultLogDir,
			EnvFile: defaultEnvFile,
		},
		Server: Server{
			Bind:                defaultBind,
			MaxBodyBytes:        defaultMaxBodyBytes,
			ReadTimeoutSeconds:  defaultReadTimeoutSeconds,
			WriteTimeoutSeconds: defaultWriteTimeoutSeconds,
		},
		Slack: Slack{
			APIBaseURL:            defaultSlackAPIBaseURL,
			FeedbackEnabled:       defaultSlackFeedbackEnabled,
			RequestTimeoutSeconds: defaultSlackTimeoutSeconds,
		},
		Ledger: Ledger{
			Driver:                LedgerDriverSQLite,
			Path:                  defaultLedgerPath,
			TTLHours:              defaultLedgerTTLHours,
			ExpireIntervalSeconds: defaultLedgerExpireInterval,
		},
		Pipeline: Pipeline{
			MaxConcurrentAssets: defaultMaxConcurrentAssets,
			CanvasTextLimit:     defaultCanvasTextLimit,
			MaxDownloadBytes:    defaultMaxDownloadBytes,
			RetryMaxAttempts:    defaultRetryMaxAttempts,
			RetryBaseDelayMS:    defaultRetryBaseDelayMS,
			RetryMaxDelayMS:     defaultRetryMaxDelayMS,
			TimeoutSeconds:      defaultPipelineTimeout,
		},
		Conversion: Conversion{
			Enabled:              true,
			FFmpegBinary:         defaultFFmpegBinary,
			FFprobeBinary:        defaultFFprobeBinary,
			TargetFormat:         defaultTargetFormat,
			Bitrate:              defaultBitrate,
			SampleRate:           defaultSampleRate,
			PassthroughMIMETypes: defaultPassthroughMIMETypes(),
			TimeoutSeconds:       defaultConversionTimeout,
		},
		Transcription: Transcription{
			Provider:          defaultTranscriptionProvider,
			Language:          defaultTranscriptionLanguage,
			TimeoutSeconds:    defaultTranscriptionTimeout,
			WhisperXVADMethod: defaultWhisperXVADMethod,
		},
		Ticketing: Ticketing{
			Domain:          defaultZohoDomain,
			AccountsURL:     defaultZohoAccountsURL,
			DescriptionSize: defaultDescriptionSize,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			RunCompleted:   true,
			RunFailed:      true,
			Errors:         true,
		},
		Metrics: Metrics{
			Enabled: true,
			Path:    defaultMetricsPath,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
