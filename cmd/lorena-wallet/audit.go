package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lorena-ssi/wallet-fs/pkg/audit"
)

// Audit flags
var (
	auditLimit        int
	auditSince        string
	auditExportFormat string
	auditExportOutput string
)

func init() {
	auditCmd.AddCommand(auditListCmd)
	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditExportCmd)

	auditListCmd.Flags().IntVar(&auditLimit, "limit", 100, "Maximum number of events to show")
	auditListCmd.Flags().StringVar(&auditSince, "since", "", "Show events since duration (e.g., 24h, 7d)")

	auditExportCmd.Flags().StringVar(&auditExportFormat, "format", "json", "Output format: json, csv")
	auditExportCmd.Flags().StringVarP(&auditExportOutput, "output", "o", "", "Output file path (default: stdout)")
}

// auditCmd is the parent command for audit operations
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit journal operations",
}

func requireJournal() (*audit.Logger, error) {
	if journal == nil {
		return nil, errors.New("audit journal is disabled")
	}
	return journal, nil
}

// auditListCmd lists audit journal entries
var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit journal entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		j, err := requireJournal()
		if err != nil {
			return err
		}

		var since time.Time
		if auditSince != "" {
			duration, err := parseDuration(auditSince)
			if err != nil {
				return fmt.Errorf("invalid since format: %w", err)
			}
			since = time.Now().Add(-duration)
		}

		events, err := j.ListEvents(auditLimit, since)
		if err != nil {
			return fmt.Errorf("failed to list audit events: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(events) == 0 {
			fmt.Fprintln(out, "No audit events found")
			return nil
		}

		for _, event := range events {
			// Format: TIMESTAMP OPERATION RESULT WALLET
			line := fmt.Sprintf("%s %s %s %s", event.Timestamp, event.Operation, event.Result, event.Wallet)
			if event.Storage != "" {
				line += fmt.Sprintf(" storage:%s", event.Storage)
			}
			if event.Error != nil {
				line += fmt.Sprintf(" error:%s", event.Error.Code)
			}
			fmt.Fprintln(out, line)
		}

		fmt.Fprintf(out, "\nTotal: %d events\n", len(events))
		return nil
	},
}

// auditVerifyCmd verifies audit journal integrity
var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify audit journal hash chain integrity",
	RunE: func(cmd *cobra.Command, args []string) error {
		j, err := requireJournal()
		if err != nil {
			return err
		}

		result, err := j.Verify()
		if err != nil {
			return fmt.Errorf("failed to verify audit journal: %w", err)
		}

		out := cmd.OutOrStdout()
		if !result.Valid {
			fmt.Fprintf(out, "Audit journal verification FAILED\n")
			fmt.Fprintf(out, "  Records total: %d\n", result.RecordsTotal)
			fmt.Fprintln(out, "  Errors:")
			for _, e := range result.Errors {
				fmt.Fprintf(out, "    - %s\n", e)
			}
			return errors.New("audit journal integrity check failed")
		}
		fmt.Fprintf(out, "Audit journal verified: %d records, chain intact\n", result.RecordsTotal)
		return nil
	},
}

// auditExportCmd exports the audit journal
var auditExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the audit journal to JSON or CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		j, err := requireJournal()
		if err != nil {
			return err
		}
		if auditExportFormat != "json" && auditExportFormat != "csv" {
			return fmt.Errorf("invalid format: %s (use 'json' or 'csv')", auditExportFormat)
		}

		data, err := j.Export(auditExportFormat)
		if err != nil {
			return fmt.Errorf("failed to export audit journal: %w", err)
		}

		if auditExportOutput == "" {
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}
		if err := os.WriteFile(auditExportOutput, data, 0600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported audit journal to %s\n", auditExportOutput)
		return nil
	},
}
