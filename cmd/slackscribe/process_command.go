package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"slackscribe/internal/daemon"
	"slackscribe/internal/ledger"
	"slackscribe/internal/logging"
	"slackscribe/internal/pipeline"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var filePath string
	var contentType string

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run one webhook payload through the pipeline",
		Long: "Reads a webhook payload from --file (or stdin with --file -), runs it through\n" +
			"the same pipeline the daemon uses, and prints the response body the webhook\n" +
			"would have returned. The configured ledger is used, so a replayed payload is\n" +
			"reported as a duplicate.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			body, err := readPayload(cmd.InOrStdin(), filePath)
			if err != nil {
				return err
			}

			logger, err := logging.New(logging.Options{
				Level:       cfg.Logging.Level,
				Format:      cfg.Logging.Format,
				OutputPaths: []string{"stderr"},
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			store, err := ledger.Open(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("open ledger: %w", err)
			}
			defer store.Close()

			pipe, err := pipeline.NewFromConfig(cfg, store, nil, logger)
			if err != nil {
				return fmt.Errorf("build pipeline: %w", err)
			}

			out := pipe.Handle(cmd.Context(), body, contentType)
			status, payload := daemon.OutcomeResponse(out)
			if err := writeJSON(cmd, payload); err != nil {
				return err
			}
			if status >= http.StatusBadRequest {
				return fmt.Errorf("payload not processed: %s (HTTP %d)", out.Kind, status)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&filePath, "file", "f", "", "Payload file to process (- reads stdin)")
	cmd.Flags().StringVar(&contentType, "content-type", "application/json", "Content type of the payload")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func readPayload(stdin io.Reader, path string) ([]byte, error) {
	path = strings.TrimSpace(path)
	if path == "-" {
		body, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return body, nil
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return body, nil
}
