package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"slackscribe/internal/api"
	"slackscribe/internal/config"
	"slackscribe/internal/ledger"
	"slackscribe/internal/preflight"
)

const daemonProbeTimeout = 2 * time.Second

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, dependency, and ledger status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			daemonStatus, probeErr := probeDaemon(cmd.Context(), cfg)

			printSection(out, "System Status", colorize)
			fmt.Fprintln(out, configStatusLine(ctx.configPath, ctx.configExists, colorize))
			fmt.Fprintln(out, daemonStatusLine(daemonStatus, probeErr, colorize))
			for _, result := range preflight.RunAll(cmd.Context(), cfg) {
				fmt.Fprintln(out, preflightLine(result, colorize))
			}
			fmt.Fprintln(out, preflightLine(preflight.CheckNotificationsFromConfig(cfg), colorize))
			fmt.Fprintln(out)

			printSection(out, "Dependencies", colorize)
			for _, line := range dependencyLines(api.FromDependencies(preflight.CheckSystemDeps(cfg)), colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out)

			printSection(out, "Ledger", colorize)
			stats, source, err := ledgerStats(cmd.Context(), cfg, daemonStatus)
			if err != nil {
				fmt.Fprintln(out, renderStatusLine("Ledger", statusError, err.Error(), colorize))
				return nil
			}
			fmt.Fprintln(out, renderStatusLine("Driver", statusInfo, fmt.Sprintf("%s (%s)", cfg.Ledger.Driver, source), colorize))
			fmt.Fprint(out, renderTable([]string{"Status", "Count"}, ledgerStatsRows(stats), []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}
}

func printSection(out io.Writer, title string, colorize bool) {
	for _, line := range renderSectionHeader(title, colorize) {
		fmt.Fprintln(out, line)
	}
}

func configStatusLine(path string, exists, colorize bool) string {
	if !exists {
		return renderStatusLine("Config", statusWarn, "No config file found; using defaults", colorize)
	}
	return renderStatusLine("Config", statusOK, path, colorize)
}

func daemonStatusLine(status *api.DaemonStatus, probeErr error, colorize bool) string {
	switch {
	case status != nil && status.Running:
		detail := fmt.Sprintf("Running (pid %d)", status.PID)
		if status.StartedAt != "" {
			detail += " since " + status.StartedAt
		}
		return renderStatusLine("Daemon", statusOK, detail, colorize)
	case probeErr != nil:
		return renderStatusLine("Daemon", statusWarn, "Not reachable: "+probeErr.Error(), colorize)
	default:
		return renderStatusLine("Daemon", statusInfo, "Not running", colorize)
	}
}

func preflightLine(result preflight.Result, colorize bool) string {
	if result.Passed {
		return renderStatusLine(result.Name, statusOK, result.Detail, colorize)
	}
	return renderStatusLine(result.Name, statusWarn, result.Detail, colorize)
}

// probeDaemon asks a local daemon for its status. A nil status with a nil
// error means nothing is listening.
func probeDaemon(ctx context.Context, cfg *config.Config) (*api.DaemonStatus, error) {
	base, err := daemonBaseURL(cfg.Server.Bind)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, daemonProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/status", nil)
	if err != nil {
		return nil, err
	}
	if token := strings.TrimSpace(cfg.Server.APIToken); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		var opErr *net.OpError
		if errors.As(err, &opErr) {
			return nil, nil
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("operator API rejected server.api_token")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status endpoint returned %d", resp.StatusCode)
	}
	var status api.DaemonStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &status, nil
}

// daemonBaseURL turns a listen address into a loopback URL. Wildcard hosts
// are probed on 127.0.0.1.
func daemonBaseURL(bind string) (string, error) {
	host, port, err := net.SplitHostPort(strings.TrimSpace(bind))
	if err != nil {
		return "", fmt.Errorf("parse server.bind: %w", err)
	}
	if port == "" || port == "0" {
		return "", fmt.Errorf("server.bind %q has no fixed port", bind)
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port), nil
}

// ledgerStats prefers the running daemon's view and falls back to opening the
// ledger directly. The memory driver is only visible through the daemon.
func ledgerStats(ctx context.Context, cfg *config.Config, status *api.DaemonStatus) (api.LedgerStats, string, error) {
	if status != nil && status.Running && status.LedgerError == "" {
		return status.Ledger, "daemon", nil
	}
	if cfg.Ledger.Driver == config.LedgerDriverMemory {
		return api.LedgerStats{}, "", fmt.Errorf("memory ledger is only readable through a running daemon")
	}
	store, err := ledger.Open(ctx, cfg)
	if err != nil {
		return api.LedgerStats{}, "", err
	}
	defer store.Close()
	stats, err := api.NewLedgerService(store).Stats(ctx)
	if err != nil {
		return api.LedgerStats{}, "", err
	}
	return stats, "direct", nil
}
