package preflight

import (
	"strings"

	"slackscribe/internal/config"
)

// ServiceFlags reports which integrations the current config turns on.
type ServiceFlags struct {
	Transcription bool `json:"transcription"`
	Ticketing     bool `json:"ticketing"`
	Slack         bool `json:"slack"`
	Conversion    bool `json:"conversion"`
	Notifications bool `json:"notifications"`
}

// Services derives ServiceFlags from cfg without touching the network.
func Services(cfg *config.Config) ServiceFlags {
	if cfg == nil {
		return ServiceFlags{}
	}
	return ServiceFlags{
		Transcription: cfg.TranscriptionReady(),
		Ticketing:     cfg.Ticketing.Enabled && CheckTicketingFromConfig(cfg).Passed,
		Slack:         strings.TrimSpace(cfg.Slack.BotToken) != "",
		Conversion:    cfg.Conversion.Enabled,
		Notifications: strings.TrimSpace(cfg.Notifications.NtfyTopic) != "",
	}
}

// CheckTranscriptionFromConfig evaluates whether the configured provider has
// the credentials it needs.
func CheckTranscriptionFromConfig(cfg *config.Config) Result {
	const name = "Transcription"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	provider := cfg.Transcription.Provider
	if !cfg.TranscriptionReady() {
		return Result{Name: name, Detail: provider + ": missing API key"}
	}
	if provider == config.ProviderWhisperX {
		return Result{Name: name, Passed: true, Detail: "whisperx (local)"}
	}
	return Result{Name: name, Passed: true, Detail: provider + " (" + cfg.Transcription.Model + ")"}
}

// CheckTicketingFromConfig evaluates Zoho Desk settings.
func CheckTicketingFromConfig(cfg *config.Config) Result {
	const name = "Zoho Desk"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if !cfg.Ticketing.Enabled {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	t := cfg.Ticketing
	if strings.TrimSpace(t.OrgID) == "" {
		return Result{Name: name, Detail: "Missing org id"}
	}
	if strings.TrimSpace(t.AccessToken) == "" && strings.TrimSpace(t.RefreshToken) == "" {
		return Result{Name: name, Detail: "Missing access or refresh token"}
	}
	if strings.TrimSpace(t.RefreshToken) != "" && (t.ClientID == "" || t.ClientSecret == "") {
		return Result{Name: name, Detail: "Refresh token needs client id and secret"}
	}
	return Result{Name: name, Passed: true, Detail: t.Domain}
}

// CheckNotificationsFromConfig evaluates the ntfy settings.
func CheckNotificationsFromConfig(cfg *config.Config) Result {
	const name = "Notifications"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	return Result{Name: name, Passed: true, Detail: topic}
}
