package main

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/lorena-ssi/wallet-fs/pkg/storage"
	"github.com/lorena-ssi/wallet-fs/pkg/wallet"
)

var exportOutput string

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file path (default: stdout)")
}

// exportCmd writes the persisted envelopes of one or more wallets. The
// envelopes stay encrypted, so no password is needed.
var exportCmd = &cobra.Command{
	Use:   "export NAME...",
	Short: "Exports encrypted wallets as JSON",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		all := make(wallet.Export, len(args))
		for _, name := range args {
			w, err := openWallet(name)
			if err != nil {
				return err
			}
			exp, err := w.ToJSON(ctx)
			if err != nil {
				return fmt.Errorf("failed to export wallet %q: %w", name, err)
			}
			for k, v := range exp {
				all[k] = v
			}
		}

		data, err := json.MarshalIndent(all, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode export: %w", err)
		}
		data = append(data, '\n')

		if exportOutput == "" {
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}
		if err := os.WriteFile(exportOutput, data, storage.FileMode); err != nil {
			return fmt.Errorf("failed to write export file: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d wallet(s) to %s\n", len(all), exportOutput)
		return nil
	},
}

// importCmd restores every wallet of an export file that does not exist yet.
var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Imports wallets from an export file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read export file: %w", err)
		}
		var exp wallet.Export
		if err := json.Unmarshal(content, &exp); err != nil {
			return fmt.Errorf("failed to parse export file: %w", err)
		}
		if len(exp) == 0 {
			return fmt.Errorf("export file contains no wallets")
		}

		ctx := cmd.Context()
		for _, name := range slices.Sorted(maps.Keys(exp)) {
			w, err := openWallet(name)
			if err != nil {
				return err
			}
			if err := w.Import(ctx, exp); err != nil {
				return fmt.Errorf("failed to import wallet %q: %w", name, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wallet '%s' imported to %s\n", name, w.Location())
		}
		return nil
	},
}
