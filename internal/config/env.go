package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// envOverrides maps environment variables onto config fields. Non-empty
// environment values win over the file.
func (c *Config) envOverrides() map[string]*string {
	return map[string]*string{
		"SLACK_BOT_TOKEN":           &c.Slack.BotToken,
		"SLACK_SIGNING_SECRET":      &c.Server.SigningSecret,
		"SLACKSCRIBE_API_TOKEN":     &c.Server.APIToken,
		"TRANSCRIPTION_PROVIDER":    &c.Transcription.Provider,
		"TRANSCRIPTION_API_KEY":     &c.Transcription.APIKey,
		"ZOHO_DESK_ACCESS_TOKEN":    &c.Ticketing.AccessToken,
		"ZOHO_DESK_REFRESH_TOKEN":   &c.Ticketing.RefreshToken,
		"ZOHO_DESK_CLIENT_ID":       &c.Ticketing.ClientID,
		"ZOHO_DESK_CLIENT_SECRET":   &c.Ticketing.ClientSecret,
		"ZOHO_DESK_ORG_ID":          &c.Ticketing.OrgID,
		"ZOHO_DESK_DOMAIN":          &c.Ticketing.Domain,
		"ZOHO_DESK_DEPARTMENT_ID":   &c.Ticketing.DepartmentID,
		"ZOHO_DESK_CONTACT_ID":      &c.Ticketing.ContactID,
		"SLACKSCRIBE_LEDGER_DSN":    &c.Ledger.DSN,
		"SLACKSCRIBE_LEDGER_DRIVER": &c.Ledger.Driver,
		"NTFY_TOPIC":                &c.Notifications.NtfyTopic,
	}
}

// applyEnv loads the optional .env file into the process environment and then
// overlays secret-bearing variables onto the config.
func (c *Config) applyEnv() error {
	if envFile := strings.TrimSpace(c.Paths.EnvFile); envFile != "" {
		path, err := expandPath(envFile)
		if err != nil {
			return fmt.Errorf("paths.env_file: %w", err)
		}
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
	}

	for name, target := range c.envOverrides() {
		if value, ok := os.LookupEnv(name); ok && strings.TrimSpace(value) != "" {
			*target = strings.TrimSpace(value)
		}
	}

	// OPENAI_API_KEY only applies to the whisper provider and never replaces an
	// explicit TRANSCRIPTION_API_KEY.
	if c.Transcription.APIKey == "" && strings.EqualFold(c.Transcription.Provider, ProviderWhisper) {
		if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			c.Transcription.APIKey = strings.TrimSpace(value)
		}
	}

	if port, ok := os.LookupEnv("PORT"); ok && strings.TrimSpace(port) != "" {
		host := "0.0.0.0"
		if idx := strings.LastIndex(c.Server.Bind, ":"); idx > 0 {
			host = c.Server.Bind[:idx]
		}
		c.Server.Bind = host + ":" + strings.TrimSpace(port)
	}
	return nil
}
