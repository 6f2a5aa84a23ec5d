// Package config loads, normalizes, and validates slackscribe configuration.
//
// Configuration is TOML. Load searches an explicit path, then
// ~/.config/slackscribe/config.toml, then ./slackscribe.toml, and falls back to
// Default when none exists. Secrets may instead come from the environment or
// a .env file; environment values override the file. CreateSample writes the
// embedded annotated sample used by `slackscribe config init`.
package config
