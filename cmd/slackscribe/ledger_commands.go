package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"slackscribe/internal/api"
	"slackscribe/internal/ledger"
)

func newLedgerCommand(ctx *commandContext) *cobra.Command {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect and prune the duplicate-prevention ledger",
	}

	ledgerCmd.AddCommand(newLedgerListCommand(ctx))
	ledgerCmd.AddCommand(newLedgerShowCommand(ctx))
	ledgerCmd.AddCommand(newLedgerStatsCommand(ctx))
	ledgerCmd.AddCommand(newLedgerExpireCommand(ctx))

	return ledgerCmd
}

// withLedger opens the configured ledger for the duration of fn.
func (c *commandContext) withLedger(cmd *cobra.Command, fn func(ledger.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := ledger.Open(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func newLedgerListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent ledger entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLedger(cmd, func(store ledger.Store) error {
				entries, err := api.NewLedgerService(store).List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, api.LedgerListResponse{Entries: entries})
				}
				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, "Ledger is empty")
					return nil
				}
				fmt.Fprint(out, renderTable(
					[]string{"Fingerprint", "Source", "Status", "Claimed", "Completed", "OK", "Failed"},
					ledgerRows(entries),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", api.DefaultListLimit, "Maximum number of entries to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print entries as JSON")
	return cmd
}

func ledgerRows(entries []api.LedgerEntry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		succeeded, failed := "-", "-"
		if entry.Result != nil {
			succeeded = strconv.Itoa(entry.Result.SucceededCount)
			failed = strconv.Itoa(entry.Result.FailedCount)
		}
		rows = append(rows, []string{
			entry.Fingerprint,
			entry.SourceID,
			entry.Status,
			entry.ClaimedAt,
			orDash(entry.CompletedAt),
			succeeded,
			failed,
		})
	}
	return rows
}

func newLedgerShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <fingerprint>",
		Short: "Show one ledger entry with its recorded result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fingerprint := strings.TrimSpace(args[0])
			return ctx.withLedger(cmd, func(store ledger.Store) error {
				entry, err := api.NewLedgerService(store).Describe(cmd.Context(), fingerprint)
				if err != nil {
					return err
				}
				if entry == nil {
					return fmt.Errorf("ledger entry %s not found", fingerprint)
				}
				if asJSON {
					return writeJSON(cmd, api.LedgerEntryResponse{Entry: *entry})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"Field", "Value"},
					ledgerEntryRows(*entry),
					[]columnAlignment{alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the entry as JSON")
	return cmd
}

func ledgerEntryRows(entry api.LedgerEntry) [][]string {
	rows := [][]string{
		{"Fingerprint", entry.Fingerprint},
		{"Source", entry.SourceID},
		{"Status", entry.Status},
		{"Claimed", entry.ClaimedAt},
		{"Completed", orDash(entry.CompletedAt)},
		{"Expires", orDash(entry.ExpiresAt)},
	}
	if res := entry.Result; res != nil {
		rows = append(rows,
			[]string{"Succeeded", strconv.Itoa(res.SucceededCount)},
			[]string{"Failed", strconv.Itoa(res.FailedCount)},
			[]string{"Degraded", yesNo(res.Degraded)},
		)
		if res.CanvasID != "" {
			rows = append(rows, []string{"Canvas", res.CanvasID})
		}
		if res.FailureKind != "" {
			rows = append(rows, []string{"Failure", fmt.Sprintf("%s: %s", res.FailureKind, res.FailureReason)})
		}
	}
	return rows
}

func newLedgerStatsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize ledger entries by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLedger(cmd, func(store ledger.Store) error {
				stats, err := api.NewLedgerService(store).Stats(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, stats)
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"Status", "Count"},
					ledgerStatsRows(stats),
					[]columnAlignment{alignLeft, alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print stats as JSON")
	return cmd
}

func ledgerStatsRows(stats api.LedgerStats) [][]string {
	return [][]string{
		{"Claimed", strconv.FormatInt(stats.Claimed, 10)},
		{"Completed", strconv.FormatInt(stats.Completed, 10)},
		{"Failed", strconv.FormatInt(stats.Failed, 10)},
		{"Expired", strconv.FormatInt(stats.Expired, 10)},
		{"Total", strconv.FormatInt(stats.Total, 10)},
	}
}

func newLedgerExpireCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "expire",
		Short: "Remove ledger entries past their retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLedger(cmd, func(store ledger.Store) error {
				removed, err := store.Expire(cmd.Context())
				if err != nil {
					return fmt.Errorf("expire ledger: %w", err)
				}
				if removed == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No expired entries")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired %s\n", removed, pluralize(removed, "entry", "entries"))
				return nil
			})
		},
	}
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func pluralize(n int64, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}
