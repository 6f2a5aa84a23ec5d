package preflight

import (
	"context"
	"path/filepath"

	"slackscribe/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}

	if cfg.Ledger.Driver == config.LedgerDriverSQLite {
		results = append(results, CheckDirectoryAccess("Ledger directory", filepath.Dir(cfg.Ledger.Path)))
	}

	results = append(results, CheckTranscriptionFromConfig(cfg))

	// Without a bot token every request must carry its own authToken.
	if cfg.Slack.BotToken != "" {
		results = append(results, CheckSlack(ctx, cfg.Slack.APIBaseURL, cfg.Slack.BotToken))
	}

	if cfg.Ticketing.Enabled {
		results = append(results, CheckTicketingFromConfig(cfg))
	}

	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
